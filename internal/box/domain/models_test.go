package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCanTransition(t *testing.T) {
	assert.True(t, CanTransition(StatusPurchased, StatusOpened))
	assert.True(t, CanTransition(StatusPurchased, StatusExpired))

	assert.False(t, CanTransition(StatusOpened, StatusExpired))
	assert.False(t, CanTransition(StatusExpired, StatusOpened))
	assert.False(t, CanTransition(StatusOpened, StatusPurchased))
	assert.False(t, CanTransition(StatusPurchased, StatusPurchased))
}

func TestTerminal(t *testing.T) {
	assert.False(t, StatusPurchased.Terminal())
	assert.True(t, StatusOpened.Terminal())
	assert.True(t, StatusExpired.Terminal())
}

func TestExpiredBoundary(t *testing.T) {
	deadline := time.Date(2026, 8, 8, 12, 0, 0, 0, time.UTC)
	tx := BoxTransaction{ExpiresAt: deadline}

	assert.False(t, tx.Expired(deadline.Add(-time.Nanosecond)))
	assert.True(t, tx.Expired(deadline), "the boundary instant counts as expired")
	assert.True(t, tx.Expired(deadline.Add(time.Nanosecond)))
}
