// Package selector implements the weighted random draw shared by the
// purchase and open paths.
package selector

import (
	crand "crypto/rand"
	"errors"
	"math/big"

	"github.com/bwmarrin/snowflake"
)

// ErrNoEligibleCandidates means the active candidate set was empty or
// carried no positive weight. It signals a tenant configuration problem,
// not a retryable failure.
var ErrNoEligibleCandidates = errors.New("no_eligible_candidates")

// Candidate is one (id, weight) pair. Callers filter to active rows and
// resolve the track before building candidates.
type Candidate struct {
	ID     snowflake.ID
	Weight int64
}

// Draw picks one candidate id with probability proportional to weight
// using a CSPRNG uniform over [0, total). Weights do not need to sum to
// 100 here; the configuration invariant is enforced at save time.
// Negative weights are clamped to zero.
func Draw(candidates []Candidate) (snowflake.ID, error) {
	total := totalWeight(candidates)
	if total <= 0 {
		return 0, ErrNoEligibleCandidates
	}

	point, err := crand.Int(crand.Reader, big.NewInt(total))
	if err != nil {
		return 0, err
	}
	return pick(candidates, point.Int64()), nil
}

// pick resolves a point in [0, total) to a candidate. Buckets are
// half-open [cum, cum+weight): every positive-weight candidate owns a
// non-empty range and the ranges partition [0, total) without overlap.
func pick(candidates []Candidate, point int64) snowflake.ID {
	var cum int64
	last := snowflake.ID(0)
	for _, c := range candidates {
		if c.Weight <= 0 {
			continue
		}
		last = c.ID
		cum += c.Weight
		if point < cum {
			return c.ID
		}
	}
	return last
}

func totalWeight(candidates []Candidate) int64 {
	var total int64
	for _, c := range candidates {
		if c.Weight <= 0 {
			continue
		}
		total += c.Weight
	}
	return total
}
