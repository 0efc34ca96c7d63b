package cache

import (
	"context"
	"testing"
	"time"

	"github.com/Domenick1991/bookingfulfillment/config"
	"github.com/Domenick1991/bookingfulfillment/internal/domain"
	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisCache_Keys(t *testing.T) {
	assert.Equal(t, "booking:outcome:sess_1", outcomeKey("sess_1"))
	assert.Equal(t, "booking:first_seen:sess_1", firstSeenKey("sess_1"))
	assert.Equal(t, "lock:reconcile:sess_1", reconcileLockKey("sess_1"))
}

func TestRedisCache_RefusesNonTerminalOutcome(t *testing.T) {
	c := NewRedisCache(config.RedisConfig{Addr: "127.0.0.1:0"}, time.Minute)
	defer c.Close()

	err := c.SetOutcome(context.Background(), "sess_1", domain.Outcome{Status: domain.OutcomeProcessing})
	assert.ErrorContains(t, err, "non-terminal")
}

func TestRedisCache_ReconcileLockIsOwned(t *testing.T) {
	mr := miniredis.RunT(t)
	c := NewRedisCache(config.RedisConfig{Addr: mr.Addr()}, time.Minute)
	defer c.Close()
	ctx := context.Background()

	token, ok, err := c.AcquireReconcileLock(ctx, "sess_1", 30*time.Second)
	require.NoError(t, err)
	require.True(t, ok)
	assert.NotEmpty(t, token)

	_, ok, err = c.AcquireReconcileLock(ctx, "sess_1", 30*time.Second)
	require.NoError(t, err)
	assert.False(t, ok)

	assert.ErrorIs(t, c.ReleaseReconcileLock(ctx, "sess_1", "someone-else"), ErrLockNotHeld)
	assert.True(t, mr.Exists(reconcileLockKey("sess_1")))

	require.NoError(t, c.ReleaseReconcileLock(ctx, "sess_1", token))
	assert.False(t, mr.Exists(reconcileLockKey("sess_1")))
}

func TestRedisCache_ExpiredLockIsNotReleasedByOldOwner(t *testing.T) {
	mr := miniredis.RunT(t)
	c := NewRedisCache(config.RedisConfig{Addr: mr.Addr()}, time.Minute)
	defer c.Close()
	ctx := context.Background()

	stale, ok, err := c.AcquireReconcileLock(ctx, "sess_1", 30*time.Second)
	require.NoError(t, err)
	require.True(t, ok)

	mr.FastForward(31 * time.Second)
	fresh, ok, err := c.AcquireReconcileLock(ctx, "sess_1", 30*time.Second)
	require.NoError(t, err)
	require.True(t, ok)

	assert.ErrorIs(t, c.ReleaseReconcileLock(ctx, "sess_1", stale), ErrLockNotHeld)
	got, err := mr.Get(reconcileLockKey("sess_1"))
	require.NoError(t, err)
	assert.Equal(t, fresh, got)
}

func TestRedisCache_OutcomeAndFirstSeen(t *testing.T) {
	mr := miniredis.RunT(t)
	c := NewRedisCache(config.RedisConfig{Addr: mr.Addr()}, time.Minute)
	defer c.Close()
	ctx := context.Background()

	miss, err := c.GetOutcome(ctx, "sess_1")
	require.NoError(t, err)
	assert.Nil(t, miss)

	require.NoError(t, c.SetOutcome(ctx, "sess_1", domain.ConfirmedOutcome("ord_1", "ABC123")))
	hit, err := c.GetOutcome(ctx, "sess_1")
	require.NoError(t, err)
	assert.Equal(t, domain.ConfirmedOutcome("ord_1", "ABC123"), *hit)

	first := time.UnixMilli(time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC).UnixMilli())
	got, err := c.MarkFirstSeen(ctx, "sess_1", first, time.Hour)
	require.NoError(t, err)
	assert.True(t, first.Equal(got))

	got, err = c.MarkFirstSeen(ctx, "sess_1", first.Add(time.Minute), time.Hour)
	require.NoError(t, err)
	assert.True(t, first.Equal(got))
}
