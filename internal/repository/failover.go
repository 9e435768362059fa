package repository

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"guestms/internal/domain"

	"github.com/rs/zerolog"
)

const defaultRecoverAfter = time.Minute

// FailoverCoordinator uses primary until it fails, then serves from fallback
// and probes primary again once recoverAfter has passed.
type FailoverCoordinator struct {
	primary      domain.Coordinator
	fallback     domain.Coordinator
	logger       *zerolog.Logger
	recoverAfter time.Duration
	isDown       atomic.Bool
	lastCheck    atomic.Int64
}

func NewFailoverCoordinator(primary, fallback domain.Coordinator, logger *zerolog.Logger) *FailoverCoordinator {
	return &FailoverCoordinator{
		primary:      primary,
		fallback:     fallback,
		logger:       logger,
		recoverAfter: defaultRecoverAfter,
	}
}

// usePrimary reports whether the next call should go to primary. While down,
// one call per recoverAfter is let through as a probe.
func (c *FailoverCoordinator) usePrimary() bool {
	if !c.isDown.Load() {
		return true
	}
	last := c.lastCheck.Load()
	now := time.Now().UnixNano()
	if time.Duration(now-last) < c.recoverAfter {
		return false
	}
	return c.lastCheck.CompareAndSwap(last, now)
}

// observe records the primary result. Lock contention is not a failure.
func (c *FailoverCoordinator) observe(err error, op string) bool {
	if err == nil || errors.Is(err, domain.ErrConflict) {
		if c.isDown.CompareAndSwap(true, false) {
			c.logger.Info().Str("op", op).Msg("Primary coordinator recovered")
		}
		return true
	}
	if !c.isDown.Swap(true) {
		c.logger.Error().Err(err).Str("op", op).Msg("Primary coordinator failed, falling back to memory")
	}
	c.lastCheck.Store(time.Now().UnixNano())
	return false
}

func (c *FailoverCoordinator) AcquireRoomLock(ctx context.Context, roomID int64, ttl time.Duration) (string, error) {
	if c.usePrimary() {
		token, err := c.primary.AcquireRoomLock(ctx, roomID, ttl)
		if c.observe(err, "acquire_room_lock") {
			return token, err
		}
	}
	return c.fallback.AcquireRoomLock(ctx, roomID, ttl)
}

// ReleaseRoomLock tries the side that is currently serving, then the other
// one, since the lock may have been taken before a switch.
func (c *FailoverCoordinator) ReleaseRoomLock(ctx context.Context, roomID int64, token string) error {
	first, second := c.primary, c.fallback
	if c.isDown.Load() {
		first, second = c.fallback, c.primary
	}
	err := first.ReleaseRoomLock(ctx, roomID, token)
	if err == nil {
		return nil
	}
	if err2 := second.ReleaseRoomLock(ctx, roomID, token); err2 == nil {
		return nil
	}
	return err
}

func (c *FailoverCoordinator) CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	if c.usePrimary() {
		allowed, err := c.primary.CheckRateLimit(ctx, key, limit, window)
		if c.observe(err, "check_rate_limit") {
			return allowed, err
		}
	}
	return c.fallback.CheckRateLimit(ctx, key, limit, window)
}
