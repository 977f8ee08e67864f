package repositories

import (
	"context"
	"sync"
	"time"
)

const memorySweepInterval = 5 * time.Minute

// RateLimitMemoryRepository implements rate limiting counter storage
// in process memory, for deployments without Redis and for tests.
// Windows for identities with no recent traffic are swept lazily
// during increments to bound memory.
type RateLimitMemoryRepository struct {
	mu        sync.Mutex
	windows   map[string]*memoryWindow
	lastSweep time.Time
	now       func() time.Time
}

type memoryWindow struct {
	start     time.Time
	count     int
	expiresAt time.Time
}

func NewRateLimitMemoryRepository() *RateLimitMemoryRepository {
	return &RateLimitMemoryRepository{
		windows:   make(map[string]*memoryWindow),
		lastSweep: time.Now(),
		now:       time.Now,
	}
}

func (repo *RateLimitMemoryRepository) IncrementWindow(_ context.Context, identity string, window time.Duration, ttl time.Duration) (int, time.Time, error) {
	repo.mu.Lock()
	defer repo.mu.Unlock()

	now := repo.now()
	windowStart := now.Truncate(window)

	if now.Sub(repo.lastSweep) > memorySweepInterval {
		for id, w := range repo.windows {
			if now.After(w.expiresAt) {
				delete(repo.windows, id)
			}
		}
		repo.lastSweep = now
	}

	w, ok := repo.windows[identity]
	if !ok || !w.start.Equal(windowStart) {
		w = &memoryWindow{start: windowStart}
		repo.windows[identity] = w
	}
	w.count++
	w.expiresAt = now.Add(ttl)
	return w.count, windowStart, nil
}
