package ratelimit

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/duniafantasy/fantasybox/internal/config"
)

const keyPurchaseMember = "box:purchase:member:%s"

// PurchaseLimiter throttles box purchases per member so a scripted
// client cannot drain weighted draws faster than a human could.
type PurchaseLimiter struct {
	enabled bool

	bucket *TokenBucket
	rate   float64
	burst  int
}

func NewPurchaseLimiter(cfg config.Config, bucket *TokenBucket) *PurchaseLimiter {
	if !cfg.RateLimitEnabled || bucket == nil {
		return nil
	}
	rate := cfg.PurchaseRate
	if rate <= 0 {
		rate = 2
	}
	burst := cfg.PurchaseBurst
	if burst <= 0 {
		burst = 5
	}
	return &PurchaseLimiter{
		enabled: true,
		bucket:  bucket,
		rate:    rate,
		burst:   burst,
	}
}

func (l *PurchaseLimiter) Enabled() bool {
	return l != nil && l.enabled
}

// AllowMember reports whether the member may purchase right now. A
// disabled limiter always allows; redis trouble fails open so the core
// flow never depends on redis availability.
func (l *PurchaseLimiter) AllowMember(ctx context.Context, memberID string) (bool, error) {
	if !l.Enabled() {
		return true, nil
	}
	ctx, cancel := context.WithTimeout(ctx, 200*time.Millisecond)
	defer cancel()

	allowed, err := l.bucket.Allow(ctx, fmt.Sprintf(keyPurchaseMember, strings.TrimSpace(memberID)), l.rate, l.burst)
	if err != nil {
		return true, err
	}
	return allowed, nil
}
