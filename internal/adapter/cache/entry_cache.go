package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"logbook/internal/domain"
	"logbook/internal/logger"
	"logbook/internal/port"
)

// CachedStore serves repeated reads from an expiring LRU in front of another store.
// Any write bumps the generation and drops every cached read.
type CachedStore struct {
	port.EntryStore

	mu     sync.Mutex
	lru    *expirable.LRU[string, []domain.Entry]
	gen    uint64
	hits   uint64
	misses uint64
}

var _ port.EntryStore = (*CachedStore)(nil)

func NewCachedStore(inner port.EntryStore, maxSize int, ttl time.Duration) *CachedStore {
	if maxSize <= 0 {
		maxSize = 100
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &CachedStore{
		EntryStore: inner,
		lru:        expirable.NewLRU[string, []domain.Entry](maxSize, nil, ttl),
	}
}

func cacheKey(gen uint64, parts ...string) string {
	h := sha256.New()
	h.Write([]byte{byte(gen >> 24), byte(gen >> 16), byte(gen >> 8), byte(gen)})
	h.Write([]byte(strings.Join(parts, "\x00")))
	return hex.EncodeToString(h.Sum(nil)[:16])
}

func (c *CachedStore) cached(key string, gen uint64, load func() ([]domain.Entry, error)) ([]domain.Entry, error) {
	if entries, ok := c.lru.Get(key); ok {
		c.mu.Lock()
		c.hits++
		c.mu.Unlock()
		return clone(entries), nil
	}

	entries, err := load()
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.misses++
	// a write raced the load; its result may be stale
	if gen == c.gen {
		c.lru.Add(key, clone(entries))
	}
	c.mu.Unlock()
	return entries, nil
}

func (c *CachedStore) generation() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gen
}

func (c *CachedStore) GetEntriesByDateRange(ctx context.Context, start, end string) ([]domain.Entry, error) {
	gen := c.generation()
	return c.cached(cacheKey(gen, "range", start, end), gen, func() ([]domain.Entry, error) {
		return c.EntryStore.GetEntriesByDateRange(ctx, start, end)
	})
}

func (c *CachedStore) SearchEntries(ctx context.Context, keywords []string, dateRange *domain.DateRange, matchAll bool) ([]domain.Entry, error) {
	if len(keywords) == 0 {
		return nil, port.ErrNoKeywords
	}
	parts := []string{"search", boolKey(matchAll)}
	if dateRange != nil {
		parts = append(parts, dateRange.Start, dateRange.End)
	} else {
		parts = append(parts, "", "")
	}
	parts = append(parts, keywords...)

	gen := c.generation()
	return c.cached(cacheKey(gen, parts...), gen, func() ([]domain.Entry, error) {
		return c.EntryStore.SearchEntries(ctx, keywords, dateRange, matchAll)
	})
}

func (c *CachedStore) PutEntries(ctx context.Context, entries []domain.Entry) error {
	defer c.Invalidate()
	return c.EntryStore.PutEntries(ctx, entries)
}

func (c *CachedStore) Clear(ctx context.Context) error {
	defer c.Invalidate()
	return c.EntryStore.Clear(ctx)
}

// Invalidate drops every cached read.
func (c *CachedStore) Invalidate() {
	c.mu.Lock()
	c.gen++
	c.mu.Unlock()
	c.lru.Purge()
	logger.Debug("entry cache invalidated")
}

// Stats returns cache hit and miss counts.
func (c *CachedStore) Stats() (hits, misses uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hits, c.misses
}

func boolKey(b bool) string {
	if b {
		return "all"
	}
	return "any"
}

func clone(entries []domain.Entry) []domain.Entry {
	if entries == nil {
		return nil
	}
	return append([]domain.Entry(nil), entries...)
}
