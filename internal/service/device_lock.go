package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/Abulfadl-Ahmadi/Academia-sub002/internal/config"
)

// ErrActiveElsewhere signals that another device currently occupies this
// (student, test) pair.
var ErrActiveElsewhere = errors.New("session is active on another device")

// releaseIfHolder deletes the lock only when the caller still holds it, so a
// stale exit cannot drop a lock a newer device acquired.
var releaseIfHolder = redis.NewScript(`
if redis.call('GET', KEYS[1]) == ARGV[1] then
  return redis.call('DEL', KEYS[1])
end
return 0
`)

// DeviceLockGuard enforces at most one active device per (student, test).
// The device fingerprint is a soft identity: the same fingerprint always
// re-acquires its own lock, and a missing lock never blocks — the guard only
// rejects a *different* fingerprint while the lock is live.
type DeviceLockGuard struct {
	rdb *redis.Client
}

// NewDeviceLockGuard creates a new DeviceLockGuard.
func NewDeviceLockGuard(rdb *redis.Client) *DeviceLockGuard {
	return &DeviceLockGuard{rdb: rdb}
}

// Acquire takes the lock for deviceID, with the given TTL. Re-acquiring with
// the same fingerprint refreshes the TTL. A conflicting holder yields
// ErrActiveElsewhere.
func (g *DeviceLockGuard) Acquire(ctx context.Context, testID uuid.UUID, studentID int, deviceID string, ttl time.Duration) error {
	key := config.CacheKey.DeviceLockKey(testID.String(), studentID)

	ok, err := g.rdb.SetNX(ctx, key, deviceID, ttl).Result()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if ok {
		return nil
	}

	holder, err := g.rdb.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		// Lock vanished between SETNX and GET; take it.
		return g.Acquire(ctx, testID, studentID, deviceID, ttl)
	}
	if err != nil {
		return fmt.Errorf("read lock holder: %w", err)
	}

	if holderConflicts(holder, deviceID) {
		return ErrActiveElsewhere
	}

	// Same fingerprint: refresh the TTL so an active device keeps its lock.
	if err := g.rdb.Set(ctx, key, deviceID, ttl).Err(); err != nil {
		return fmt.Errorf("refresh lock: %w", err)
	}
	return nil
}

// Release frees the lock if deviceID still holds it. Releasing a lock held
// by someone else (or no one) is a no-op, never an error: the guard blocks
// concurrent occupancy, it does not punish fingerprint drift.
func (g *DeviceLockGuard) Release(ctx context.Context, testID uuid.UUID, studentID int, deviceID string) error {
	key := config.CacheKey.DeviceLockKey(testID.String(), studentID)
	return releaseIfHolder.Run(ctx, g.rdb, []string{key}, deviceID).Err()
}

// ForceRelease drops the lock regardless of holder. Teacher-facing override
// for fingerprint drift on a device that can no longer identify itself.
func (g *DeviceLockGuard) ForceRelease(ctx context.Context, testID uuid.UUID, studentID int) error {
	return g.rdb.Del(ctx, config.CacheKey.DeviceLockKey(testID.String(), studentID)).Err()
}

// Holder returns the fingerprint currently holding the lock, or "" if free.
func (g *DeviceLockGuard) Holder(ctx context.Context, testID uuid.UUID, studentID int) (string, error) {
	holder, err := g.rdb.Get(ctx, config.CacheKey.DeviceLockKey(testID.String(), studentID)).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read lock holder: %w", err)
	}
	return holder, nil
}

// holderConflicts reports whether an existing holder blocks deviceID. An
// empty holder never conflicts.
func holderConflicts(holder, deviceID string) bool {
	return holder != "" && holder != deviceID
}
