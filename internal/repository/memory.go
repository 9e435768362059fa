package repository

import (
	"context"
	"fmt"
	"sync"
	"time"

	"guestms/internal/domain"

	"github.com/google/uuid"
)

// MemoryCoordinator is the single-process Coordinator. It also serves as the
// failover target when Redis is unreachable.
type MemoryCoordinator struct {
	mu         sync.Mutex
	locks      map[int64]lockEntry
	rateLimits map[string]*rateLimitEntry
	now        func() time.Time
}

type lockEntry struct {
	token     string
	expiresAt time.Time
}

type rateLimitEntry struct {
	count     int
	expiresAt time.Time
}

func NewMemoryCoordinator() *MemoryCoordinator {
	return &MemoryCoordinator{
		locks:      make(map[int64]lockEntry),
		rateLimits: make(map[string]*rateLimitEntry),
		now:        time.Now,
	}
}

func (m *MemoryCoordinator) AcquireRoomLock(_ context.Context, roomID int64, ttl time.Duration) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if held, ok := m.locks[roomID]; ok && now.Before(held.expiresAt) {
		return "", fmt.Errorf("room %d is locked: %w", roomID, domain.ErrConflict)
	}

	token := uuid.NewString()
	m.locks[roomID] = lockEntry{token: token, expiresAt: now.Add(ttl)}
	return token, nil
}

func (m *MemoryCoordinator) ReleaseRoomLock(_ context.Context, roomID int64, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	held, ok := m.locks[roomID]
	if !ok || held.token != token {
		return fmt.Errorf("room %d lock no longer held: %w", roomID, domain.ErrConflict)
	}
	delete(m.locks, roomID)
	return nil
}

func (m *MemoryCoordinator) CheckRateLimit(_ context.Context, key string, limit int, window time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	entry, ok := m.rateLimits[key]
	if !ok || now.After(entry.expiresAt) {
		entry = &rateLimitEntry{expiresAt: now.Add(window)}
		m.rateLimits[key] = entry
	}
	entry.count++

	return entry.count <= limit, nil
}
