package catalog

import (
	"errors"
	"io/fs"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/coinsora/server/pkg/logger"
	"github.com/coinsora/server/pkg/metrics"
)

const defaultCacheTTL = 10 * time.Second

// CacheOption customises the Cache.
type CacheOption func(*Cache)

// WithTTL adjusts how long a materialised snapshot is served without I/O.
func WithTTL(ttl time.Duration) CacheOption {
	return func(c *Cache) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// WithCacheClock overrides the time source, primarily for tests.
func WithCacheClock(clock func() time.Time) CacheOption {
	return func(c *Cache) {
		if clock != nil {
			c.clock = clock
		}
	}
}

// Cache is a TTL-gated materialised view of the workbook, grouped by
// category. Regeneration replaces the whole mapping atomically and is
// serialised so concurrent stale readers trigger a single re-parse.
type Cache struct {
	reader Reader
	ttl    time.Duration
	clock  func() time.Time
	log    *zap.Logger

	mu       sync.Mutex
	snapshot map[string][]Item
	loadedAt time.Time
}

// NewCache builds a Cache over the supplied reader.
func NewCache(reader Reader, opts ...CacheOption) (*Cache, error) {
	if reader == nil {
		return nil, errors.New("catalog cache: reader is required")
	}

	cache := &Cache{
		reader: reader,
		ttl:    defaultCacheTTL,
		clock:  time.Now,
		log:    logger.WithModule("catalog"),
	}

	for _, opt := range opts {
		opt(cache)
	}

	return cache, nil
}

// Load returns the category mapping, re-reading the workbook only when the
// snapshot is older than the TTL. An unreadable workbook yields an empty
// mapping and a log line, never an error; the failed attempt is not cached
// so the next call retries.
func (c *Cache) Load() map[string][]Item {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.clock()
	if c.snapshot != nil && now.Sub(c.loadedAt) < c.ttl {
		return c.snapshot
	}

	sheets, err := c.reader.ReadSheets()
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			c.log.Warn("workbook not found", zap.Error(err))
		} else {
			c.log.Warn("workbook read failed", zap.Error(err))
		}
		return map[string][]Item{}
	}

	categories := make(map[string][]Item, len(sheets))
	for _, sheet := range sheets {
		categories[sheet.Name] = itemsFromSheet(sheet)
	}

	c.snapshot = categories
	c.loadedAt = now
	metrics.CatalogReloads.Inc()
	c.log.Info("catalog reloaded", zap.Int("categories", len(categories)))

	return c.snapshot
}

// LoadedAt reports the generation time of the current snapshot.
func (c *Cache) LoadedAt() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loadedAt
}
