package snapshot

import (
	"context"
	"sync"
	"time"

	"github.com/sells-group/holdings-cli/internal/model"
)

// DefaultCacheTTL is how long a loaded snapshot is served from memory.
const DefaultCacheTTL = 30 * time.Minute

type cacheKey struct {
	investor string
	quarter  model.QuarterKey
}

type cacheEntry struct {
	snap      *model.Snapshot
	expiresAt time.Time
}

// CachedReader serves snapshots from memory for a TTL in front of another
// Reader. Listings are not cached. Safe for concurrent use.
type CachedReader struct {
	next Reader
	ttl  time.Duration
	now  func() time.Time

	mu      sync.Mutex
	entries map[cacheKey]cacheEntry
}

// NewCachedReader wraps next. A ttl <= 0 uses DefaultCacheTTL.
func NewCachedReader(next Reader, ttl time.Duration) *CachedReader {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &CachedReader{
		next:    next,
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[cacheKey]cacheEntry),
	}
}

// Load returns a cached snapshot or loads and caches it. Misses are not
// cached.
func (c *CachedReader) Load(ctx context.Context, investorID string, q model.QuarterKey) (*model.Snapshot, error) {
	key := cacheKey{investor: investorID, quarter: q}

	c.mu.Lock()
	if e, ok := c.entries[key]; ok {
		if c.now().Before(e.expiresAt) {
			c.mu.Unlock()
			return e.snap, nil
		}
		delete(c.entries, key)
	}
	c.mu.Unlock()

	snap, err := c.next.Load(ctx, investorID, q)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.entries[key] = cacheEntry{snap: snap, expiresAt: c.now().Add(c.ttl)}
	c.mu.Unlock()
	return snap, nil
}

// Quarters delegates to the wrapped reader.
func (c *CachedReader) Quarters(ctx context.Context, investorID string) ([]model.QuarterKey, error) {
	return c.next.Quarters(ctx, investorID)
}

// Investors delegates to the wrapped reader.
func (c *CachedReader) Investors(ctx context.Context) ([]string, error) {
	return c.next.Investors(ctx)
}

// Invalidate drops one cached snapshot.
func (c *CachedReader) Invalidate(investorID string, q model.QuarterKey) {
	c.mu.Lock()
	delete(c.entries, cacheKey{investor: investorID, quarter: q})
	c.mu.Unlock()
}

// Purge drops every cached snapshot.
func (c *CachedReader) Purge() {
	c.mu.Lock()
	c.entries = make(map[cacheKey]cacheEntry)
	c.mu.Unlock()
}

// Len returns the number of cached entries, expired ones included.
func (c *CachedReader) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
