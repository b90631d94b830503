package categorize

import (
	"context"
	"hash/fnv"
	"sync"

	"github.com/pennywise-dev/pennywise/internal/domain"
	"github.com/pennywise-dev/pennywise/internal/store"
)

// Key reduces a sanitized description to its merchant cache key. Lookup and
// store use the same function, so "STARBUCKS #4821" and "starbucks #9910"
// resolve to the same entry.
func Key(description string) string {
	return domain.NormalizeDescription(description)
}

// Cache wraps the persistent category cache with merchant-key normalization
// and a single-writer-per-key discipline. Concurrent lookups go straight
// through; concurrent stores for the same key serialize on a striped lock
// so an upsert is never interleaved (last write wins, no partial writes).
type Cache struct {
	backend store.CategoryCache
	locks   [64]sync.Mutex
}

// NewCache wraps a persistent category cache.
func NewCache(backend store.CategoryCache) *Cache {
	return &Cache{backend: backend}
}

// Lookup resolves a description's merchant key against the cache.
func (c *Cache) Lookup(ctx context.Context, description string) (domain.Category, bool, error) {
	return c.backend.GetCategory(ctx, Key(description))
}

// Store upserts the category for a description's merchant key.
func (c *Cache) Store(ctx context.Context, description string, category domain.Category) error {
	key := Key(description)
	lock := c.lockFor(key)
	lock.Lock()
	defer lock.Unlock()
	return c.backend.PutCategory(ctx, key, category)
}

func (c *Cache) lockFor(key string) *sync.Mutex {
	h := fnv.New32a()
	h.Write([]byte(key))
	return &c.locks[h.Sum32()%uint32(len(c.locks))]
}
