package formula

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fredcamaral/texdeck/internal/domain/ports"
)

// countingRenderer returns a fixed raster and counts calls per formula
type countingRenderer struct {
	mu    sync.Mutex
	calls map[string]int
	err   error
}

func newCountingRenderer() *countingRenderer {
	return &countingRenderer{calls: make(map[string]int)}
}

func (r *countingRenderer) Render(_ context.Context, latex string, scale float64) (*ports.RenderedFormula, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls[latex]++
	if r.err != nil {
		return nil, r.err
	}
	return &ports.RenderedFormula{PNG: []byte(latex), Width: int(scale * 10), Height: 10}, nil
}

func (r *countingRenderer) count(latex string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls[latex]
}

func TestCachedRenderer_Hit(t *testing.T) {
	next := newCountingRenderer()
	cache := NewCachedRenderer(next, 10, time.Hour, nil)
	ctx := context.Background()

	first, err := cache.Render(ctx, "E = mc^2", 6)
	require.NoError(t, err)
	second, err := cache.Render(ctx, "E = mc^2", 6)
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Equal(t, 1, next.count("E = mc^2"))

	stats := cache.Stats()
	assert.Equal(t, 1, stats.Size)
	assert.Equal(t, int64(1), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)
}

func TestCachedRenderer_ScaleIsPartOfKey(t *testing.T) {
	next := newCountingRenderer()
	cache := NewCachedRenderer(next, 10, 0, nil)
	ctx := context.Background()

	_, err := cache.Render(ctx, "x", 6)
	require.NoError(t, err)
	_, err = cache.Render(ctx, "x", 7.5)
	require.NoError(t, err)
	_, err = cache.Render(ctx, "x", 6.0000001)
	require.NoError(t, err)

	assert.Equal(t, 2, next.count("x"))
}

func TestCachedRenderer_FailuresNotCached(t *testing.T) {
	next := newCountingRenderer()
	next.err = errors.New("parse error")
	cache := NewCachedRenderer(next, 10, 0, nil)

	for i := 0; i < 2; i++ {
		_, err := cache.Render(context.Background(), `\frac{`, 6)
		assert.Error(t, err)
	}

	assert.Equal(t, 2, next.count(`\frac{`))
	assert.Equal(t, 0, cache.Stats().Size)
}

func TestCachedRenderer_TTL(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	next := newCountingRenderer()
	cache := NewCachedRenderer(next, 10, time.Minute, nil)
	cache.now = func() time.Time { return now }
	ctx := context.Background()

	_, _ = cache.Render(ctx, "a", 6)
	now = now.Add(30 * time.Second)
	_, _ = cache.Render(ctx, "a", 6)
	assert.Equal(t, 1, next.count("a"))

	now = now.Add(2 * time.Minute)
	_, _ = cache.Render(ctx, "a", 6)
	assert.Equal(t, 2, next.count("a"))
}

func TestCachedRenderer_LRUEviction(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	next := newCountingRenderer()
	cache := NewCachedRenderer(next, 2, 0, nil)
	cache.now = func() time.Time {
		now = now.Add(time.Second)
		return now
	}
	ctx := context.Background()

	_, _ = cache.Render(ctx, "a", 6)
	_, _ = cache.Render(ctx, "b", 6)
	_, _ = cache.Render(ctx, "a", 6) // a is now more recent than b
	_, _ = cache.Render(ctx, "c", 6) // evicts b

	assert.Equal(t, 2, cache.Stats().Size)

	_, _ = cache.Render(ctx, "a", 6)
	assert.Equal(t, 1, next.count("a"))

	_, _ = cache.Render(ctx, "b", 6)
	assert.Equal(t, 2, next.count("b"))
}

func TestCachedRenderer_Clear(t *testing.T) {
	next := newCountingRenderer()
	cache := NewCachedRenderer(next, 10, 0, nil)

	_, _ = cache.Render(context.Background(), "a", 6)
	cache.Clear()
	_, _ = cache.Render(context.Background(), "a", 6)

	assert.Equal(t, 2, next.count("a"))
}

func TestCachedRenderer_Concurrent(t *testing.T) {
	cache := NewCachedRenderer(newCountingRenderer(), 8, 0, nil)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := cache.Render(context.Background(), fmt.Sprintf("x_%d", i%12), 6)
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	assert.LessOrEqual(t, cache.Stats().Size, 8)
}
