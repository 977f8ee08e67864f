package services

import (
	"container/list"
	"context"
	"sync"
	"time"

	"github.com/frcrag/frcrag/internal/core/domain/query"
	"github.com/frcrag/frcrag/internal/core/ports"
	"golang.org/x/sync/singleflight"
)

// AnswerCacheService is the in-process response cache: a fingerprint
// keyed map with per-entry TTL and least-recently-used eviction, plus
// the singleflight registry that guarantees at most one concurrent
// computation per fingerprint.
type AnswerCacheService struct {
	mu      sync.Mutex
	entries map[string]*list.Element
	lru     *list.List // front = most recently used
	ttl     time.Duration
	max     int

	hits        int64
	misses      int64
	evictions   int64
	expirations int64

	sf singleflight.Group
}

type cacheEntry struct {
	fp        string
	answer    *query.Answer
	createdAt time.Time
	hitCount  int
}

// AnswerCacheConfig groups cache tuning parameters.
type AnswerCacheConfig struct {
	TTL        time.Duration
	MaxEntries int
}

func NewAnswerCacheService(cfg *AnswerCacheConfig) *AnswerCacheService {
	ttl := time.Hour
	max := 1000
	if cfg != nil {
		if cfg.TTL > 0 {
			ttl = cfg.TTL
		}
		if cfg.MaxEntries > 0 {
			max = cfg.MaxEntries
		}
	}
	return &AnswerCacheService{
		entries: make(map[string]*list.Element),
		lru:     list.New(),
		ttl:     ttl,
		max:     max,
	}
}

// Lookup returns the live answer for fp. Expired entries are removed on
// access and count as misses.
func (c *AnswerCacheService) Lookup(fp string) (*query.Answer, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lookupLocked(fp)
}

func (c *AnswerCacheService) lookupLocked(fp string) (*query.Answer, bool) {
	el, ok := c.entries[fp]
	if !ok {
		c.misses++
		return nil, false
	}
	entry := el.Value.(*cacheEntry)
	if time.Since(entry.createdAt) > c.ttl {
		c.removeLocked(el)
		c.expirations++
		c.misses++
		return nil, false
	}
	c.lru.MoveToFront(el)
	entry.hitCount++
	c.hits++
	ans := *entry.answer
	ans.Cached = true
	return &ans, true
}

// Store inserts or replaces the entry for fp, evicting the least
// recently used entry when the bound is exceeded.
func (c *AnswerCacheService) Store(fp string, ans *query.Answer) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.storeLocked(fp, ans)
}

func (c *AnswerCacheService) storeLocked(fp string, ans *query.Answer) {
	if el, ok := c.entries[fp]; ok {
		entry := el.Value.(*cacheEntry)
		entry.answer = ans
		entry.createdAt = time.Now()
		c.lru.MoveToFront(el)
		return
	}
	el := c.lru.PushFront(&cacheEntry{fp: fp, answer: ans, createdAt: time.Now()})
	c.entries[fp] = el
	for len(c.entries) > c.max {
		oldest := c.lru.Back()
		if oldest == nil {
			break
		}
		c.removeLocked(oldest)
		c.evictions++
	}
}

func (c *AnswerCacheService) removeLocked(el *list.Element) {
	entry := el.Value.(*cacheEntry)
	c.lru.Remove(el)
	delete(c.entries, entry.fp)
}

// Fetch implements the leader/waiter contract: the first caller for a
// fingerprint runs loader, concurrent callers for the same fingerprint
// wait on the in-flight result. All waiters observe the leader's exact
// outcome; failures are never cached. The loader runs on a context
// detached from any single caller so one waiter's disconnect cannot
// cancel work other waiters still depend on.
func (c *AnswerCacheService) Fetch(ctx context.Context, fp string, loader func(ctx context.Context) (*query.Answer, error)) (*query.Answer, bool, error) {
	if ans, ok := c.Lookup(fp); ok {
		return ans, true, nil
	}
	loaderCtx := context.WithoutCancel(ctx)
	res, err, _ := c.sf.Do(fp, func() (any, error) {
		// Re-check under the flight: another leader may have completed
		// between our miss and joining the group.
		c.mu.Lock()
		if el, ok := c.entries[fp]; ok {
			entry := el.Value.(*cacheEntry)
			if time.Since(entry.createdAt) <= c.ttl {
				ans := *entry.answer
				ans.Cached = true
				c.mu.Unlock()
				return &ans, nil
			}
		}
		c.mu.Unlock()
		ans, err := loader(loaderCtx)
		if err != nil {
			return nil, err
		}
		c.Store(fp, ans)
		return ans, nil
	})
	if err != nil {
		return nil, false, err
	}
	ans := res.(*query.Answer)
	return ans, ans.Cached, nil
}

// Clear drops all entries. Stats counters are preserved.
func (c *AnswerCacheService) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*list.Element)
	c.lru.Init()
}

func (c *AnswerCacheService) Stats() ports.CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	total := c.hits + c.misses
	rate := 0.0
	if total > 0 {
		rate = float64(c.hits) / float64(total) * 100
	}
	return ports.CacheStats{
		Entries:     len(c.entries),
		Hits:        c.hits,
		Misses:      c.misses,
		Evictions:   c.evictions,
		Expirations: c.expirations,
		HitRate:     rate,
	}
}

func (c *AnswerCacheService) ResetStats() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.hits, c.misses, c.evictions, c.expirations = 0, 0, 0, 0
}

var _ ports.AnswerCache = (*AnswerCacheService)(nil)
