package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Domenick1991/bookingfulfillment/config"
	"github.com/Domenick1991/bookingfulfillment/internal/domain"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrLockNotHeld is returned when a lock expired or was taken over before release.
var ErrLockNotHeld = errors.New("reconcile lock not held")

var releaseLockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisCache stores terminal booking outcomes for cheap status polls and holds
// short-lived locks. Only terminal outcomes are cached since they never change.
type RedisCache struct {
	client    *redis.Client
	statusTTL time.Duration
}

func NewRedisCache(cfg config.RedisConfig, statusTTL time.Duration) *RedisCache {
	return &RedisCache{
		client:    redis.NewClient(&redis.Options{Addr: cfg.Addr, Password: cfg.Password, DB: cfg.DB}),
		statusTTL: statusTTL,
	}
}

func (c *RedisCache) Close() error {
	return c.client.Close()
}

// GetOutcome returns nil, nil on a miss.
func (c *RedisCache) GetOutcome(ctx context.Context, sessionKey string) (*domain.Outcome, error) {
	data, err := c.client.Get(ctx, outcomeKey(sessionKey)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}

	var outcome domain.Outcome
	if err := json.Unmarshal(data, &outcome); err != nil {
		return nil, err
	}
	return &outcome, nil
}

func (c *RedisCache) SetOutcome(ctx context.Context, sessionKey string, outcome domain.Outcome) error {
	if !outcome.IsTerminal() {
		return fmt.Errorf("refusing to cache non-terminal outcome %q", outcome.Status)
	}
	payload, err := json.Marshal(outcome)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, outcomeKey(sessionKey), payload, c.statusTTL).Err()
}

// MarkFirstSeen records at as the first time a paid-but-unfulfilled session was
// observed and returns the earliest recorded time.
func (c *RedisCache) MarkFirstSeen(ctx context.Context, sessionKey string, at time.Time, ttl time.Duration) (time.Time, error) {
	key := firstSeenKey(sessionKey)
	if _, err := c.client.SetNX(ctx, key, at.UnixMilli(), ttl).Result(); err != nil {
		return time.Time{}, err
	}
	ms, err := c.client.Get(ctx, key).Int64()
	if err != nil {
		return time.Time{}, err
	}
	return time.UnixMilli(ms), nil
}

// AcquireReconcileLock returns the owner token when the lock was taken.
func (c *RedisCache) AcquireReconcileLock(ctx context.Context, sessionKey string, ttl time.Duration) (string, bool, error) {
	token := uuid.NewString()
	ok, err := c.client.SetNX(ctx, reconcileLockKey(sessionKey), token, ttl).Result()
	if err != nil || !ok {
		return "", false, err
	}
	return token, true, nil
}

// ReleaseReconcileLock deletes the lock only while token still owns it.
func (c *RedisCache) ReleaseReconcileLock(ctx context.Context, sessionKey, token string) error {
	n, err := releaseLockScript.Run(ctx, c.client, []string{reconcileLockKey(sessionKey)}, token).Int64()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrLockNotHeld
	}
	return nil
}

func outcomeKey(sessionKey string) string {
	return "booking:outcome:" + sessionKey
}

func firstSeenKey(sessionKey string) string {
	return "booking:first_seen:" + sessionKey
}

func reconcileLockKey(sessionKey string) string {
	return "lock:reconcile:" + sessionKey
}
