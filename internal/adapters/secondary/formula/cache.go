package formula

import (
	"context"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/fredcamaral/texdeck/internal/domain/ports"
)

// cacheKey identifies one rendering. Scale is rounded so float noise from
// the scale formula does not split entries.
type cacheKey struct {
	latex string
	scale int64
}

type cachedFormula struct {
	formula   *ports.RenderedFormula
	expiresAt time.Time
	hits      int
	lastHit   time.Time
}

// CacheStats reports cache effectiveness
type CacheStats struct {
	Size    int   `json:"size"`
	MaxSize int   `json:"max_size"`
	Hits    int64 `json:"hits"`
	Misses  int64 `json:"misses"`
}

// CachedRenderer memoizes successful renders of another FormulaRenderer.
// Failures are never cached, so a timed-out formula is retried next deck.
type CachedRenderer struct {
	next    ports.FormulaRenderer
	mu      sync.Mutex
	entries map[cacheKey]*cachedFormula
	maxSize int
	ttl     time.Duration
	hits    int64
	misses  int64
	now     func() time.Time
	logger  *slog.Logger
}

// NewCachedRenderer wraps next with an LRU cache of maxSize entries. A ttl
// of 0 keeps entries until they are evicted.
func NewCachedRenderer(next ports.FormulaRenderer, maxSize int, ttl time.Duration, logger *slog.Logger) *CachedRenderer {
	if logger == nil {
		logger = slog.Default()
	}
	return &CachedRenderer{
		next:    next,
		entries: make(map[cacheKey]*cachedFormula),
		maxSize: maxSize,
		ttl:     ttl,
		now:     time.Now,
		logger:  logger.With("component", "formula_cache"),
	}
}

// Render returns a cached raster or renders and stores a new one
func (c *CachedRenderer) Render(ctx context.Context, latex string, scale float64) (*ports.RenderedFormula, error) {
	key := cacheKey{latex: latex, scale: int64(math.Round(scale * 1000))}

	if cached, ok := c.get(key); ok {
		return cached, nil
	}

	rendered, err := c.next.Render(ctx, latex, scale)
	if err != nil {
		return nil, err
	}

	c.set(key, rendered)
	return rendered, nil
}

func (c *CachedRenderer) get(key cacheKey) (*ports.RenderedFormula, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	cached, exists := c.entries[key]
	if !exists {
		c.misses++
		return nil, false
	}

	now := c.now()
	if c.ttl > 0 && now.After(cached.expiresAt) {
		delete(c.entries, key)
		c.misses++
		return nil, false
	}

	cached.hits++
	cached.lastHit = now
	c.hits++
	return cached.formula, true
}

func (c *CachedRenderer) set(key cacheKey, formula *ports.RenderedFormula) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[key]; !exists && c.maxSize > 0 && len(c.entries) >= c.maxSize {
		c.evictLRU()
	}

	now := c.now()
	expiresAt := time.Time{}
	if c.ttl > 0 {
		expiresAt = now.Add(c.ttl)
	}

	c.entries[key] = &cachedFormula{
		formula:   formula,
		expiresAt: expiresAt,
		lastHit:   now,
	}
}

// evictLRU drops the entry hit least recently. Callers hold mu.
func (c *CachedRenderer) evictLRU() {
	var (
		evictKey cacheKey
		oldest   time.Time
		found    bool
	)

	for key, cached := range c.entries {
		if !found || cached.lastHit.Before(oldest) {
			evictKey, oldest, found = key, cached.lastHit, true
		}
	}

	if found {
		delete(c.entries, evictKey)
		c.logger.Debug("Evicted formula", slog.String("latex", evictKey.latex))
	}
}

// Clear drops every cached formula
func (c *CachedRenderer) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[cacheKey]*cachedFormula)
}

// Stats returns cache statistics
func (c *CachedRenderer) Stats() CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return CacheStats{
		Size:    len(c.entries),
		MaxSize: c.maxSize,
		Hits:    c.hits,
		Misses:  c.misses,
	}
}

var _ ports.FormulaRenderer = (*CachedRenderer)(nil)
