package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLimiterTakeAndRefill(t *testing.T) {
	now := time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)
	l := NewWithClock(func() time.Time { return now })

	ok, _ := l.Take("op-1", 2, 1)
	assert.True(t, ok)
	ok, _ = l.Take("op-1", 2, 1)
	assert.True(t, ok)
	ok, wait := l.Take("op-1", 2, 1)
	assert.False(t, ok)
	assert.Equal(t, time.Second, wait)

	// other keys have their own bucket
	ok, _ = l.Take("op-2", 2, 1)
	assert.True(t, ok)

	now = now.Add(1500 * time.Millisecond)
	ok, _ = l.Take("op-1", 2, 1)
	assert.True(t, ok)
	ok, wait = l.Take("op-1", 2, 1)
	assert.False(t, ok)
	assert.Equal(t, 500*time.Millisecond, wait)
}

func TestLimiterCapsAtCapacity(t *testing.T) {
	now := time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)
	l := NewWithClock(func() time.Time { return now })

	ok, _ := l.Take("k", 1, 1)
	assert.True(t, ok)
	now = now.Add(time.Hour)
	ok, _ = l.Take("k", 1, 1)
	assert.True(t, ok)
	ok, _ = l.Take("k", 1, 1)
	assert.False(t, ok)
}

func TestLimiterNoRefill(t *testing.T) {
	l := New()
	ok, _ := l.Take("k", 1, 0)
	assert.True(t, ok)
	ok, wait := l.Take("k", 1, 0)
	assert.False(t, ok)
	assert.Zero(t, wait)
}

func TestLimiterPrune(t *testing.T) {
	now := time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)
	l := NewWithClock(func() time.Time { return now })

	l.Take("busy", 5, 1)
	l.Take("idle", 5, 1)
	now = now.Add(2 * time.Second)
	l.Take("busy", 5, 1)
	l.Take("busy", 5, 1)

	assert.Equal(t, 1, l.Prune())
	_, kept := l.m["busy"]
	assert.True(t, kept)
}
