// Package scheduler runs the box expiry reaper. The reaper is the
// authoritative sweep for overdue boxes; the lazy check inside the open
// path only covers boxes someone still tries to open.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	boxdomain "github.com/duniafantasy/fantasybox/internal/box/domain"
	"github.com/duniafantasy/fantasybox/internal/clock"
	"github.com/duniafantasy/fantasybox/internal/ratelimit"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const reaperLockKey = "fantasybox:reaper"

var ErrInvalidConfig = errors.New("scheduler: invalid configuration")

type Params struct {
	fx.In

	Log    *zap.Logger
	Clock  clock.Clock
	BoxSvc boxdomain.Service
	Locker *ratelimit.Locker `optional:"true"`
	Config Config            `optional:"true"`
}

type Scheduler struct {
	log    *zap.Logger
	cfg    Config
	clock  clock.Clock
	boxSvc boxdomain.Service
	locker *ratelimit.Locker
}

func New(p Params) (*Scheduler, error) {
	if p.Log == nil || p.Clock == nil || p.BoxSvc == nil {
		return nil, ErrInvalidConfig
	}
	return &Scheduler{
		log:    p.Log.Named("scheduler").With(zap.String("component", "reaper")),
		cfg:    p.Config.withDefaults(),
		clock:  p.Clock,
		boxSvc: p.BoxSvc,
		locker: p.Locker,
	}, nil
}

// RunOnce drains every overdue box, batch by batch, until the sweep
// comes up empty.
func (s *Scheduler) RunOnce(parent context.Context) error {
	ctx, cancel := context.WithTimeout(parent, s.cfg.JobTimeout)
	defer cancel()

	start := s.clock.Now()
	total := 0
	for {
		if ctx.Err() != nil {
			break
		}
		expired, err := s.boxSvc.ExpireDue(ctx, s.clock.Now(), s.cfg.BatchSize)
		total += expired
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
				s.log.Warn("expiry sweep timed out",
					zap.Duration("timeout", s.cfg.JobTimeout),
					zap.Int("expired", total),
				)
				return nil
			}
			return fmt.Errorf("expire_boxes: %w", err)
		}
		if expired == 0 {
			break
		}
	}

	if total > 0 {
		s.log.Info("expiry sweep finished",
			zap.Int("expired", total),
			zap.Duration("elapsed", time.Since(start)),
		)
	}
	return nil
}

// RunForever sweeps on the configured interval. When a redis locker is
// configured only one replica holds the sweep at a time; without one
// the sweep still runs, the per-row status guard keeps it idempotent.
func (s *Scheduler) RunForever(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.RunInterval)
	defer ticker.Stop()

	for {
		if err := s.runGuarded(ctx); err != nil {
			s.log.Warn("reaper run failed", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (s *Scheduler) runGuarded(ctx context.Context) error {
	if s.locker == nil {
		return s.RunOnce(ctx)
	}

	lease, err := s.locker.TryAcquire(ctx, reaperLockKey, s.cfg.RunInterval)
	if err != nil {
		s.log.Warn("reaper lock unavailable, sweeping without it", zap.Error(err))
		return s.RunOnce(ctx)
	}
	if lease == nil {
		return nil
	}
	defer func() {
		if err := lease.Release(ctx); err != nil {
			s.log.Warn("reaper lock release failed", zap.Error(err))
		}
	}()
	return s.RunOnce(ctx)
}
