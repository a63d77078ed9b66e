package formula

import (
	"bytes"
	"context"
	"image/png"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fredcamaral/texdeck/internal/domain/entities"
)

func TestOptionsFromConfig(t *testing.T) {
	opts := OptionsFromConfig(entities.RasterizerConfig{DPIPerScale: 30, Oversample: 2, TargetWidthPx: 1500})
	assert.Equal(t, CanvasOptions{DPIPerScale: 30, Oversample: 2, TargetWidthPx: 1500}, opts)
}

func TestCanvasRenderer_Render(t *testing.T) {
	r := NewCanvasRenderer(CanvasOptions{DPIPerScale: 28, Oversample: 2}, nil)

	t.Run("renders a simple formula", func(t *testing.T) {
		f, err := r.Render(context.Background(), "x^2", 6)
		require.NoError(t, err)
		require.NotNil(t, f)

		assert.Greater(t, f.Width, 0)
		assert.Greater(t, f.Height, 0)

		img, err := png.Decode(bytes.NewReader(f.PNG))
		require.NoError(t, err)
		// Embedded image carries the oversampled pixels
		assert.InDelta(t, f.Width*2, img.Bounds().Dx(), 2)
	})

	t.Run("larger scale gives larger image", func(t *testing.T) {
		small, err := r.Render(context.Background(), "a+b", 4)
		require.NoError(t, err)
		large, err := r.Render(context.Background(), "a+b", 8)
		require.NoError(t, err)
		assert.Greater(t, large.Width, small.Width)
	})

	t.Run("rejects empty source", func(t *testing.T) {
		_, err := r.Render(context.Background(), "   ", 6)
		assert.Error(t, err)
	})

	t.Run("rejects invalid scale", func(t *testing.T) {
		_, err := r.Render(context.Background(), "x", 0)
		assert.Error(t, err)
	})

	t.Run("honours a cancelled context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := r.Render(ctx, "x", 6)
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestCanvasRenderer_TargetWidth(t *testing.T) {
	r := NewCanvasRenderer(CanvasOptions{DPIPerScale: 28, Oversample: 1, TargetWidthPx: 300}, nil)

	f, err := r.Render(context.Background(), "E = mc^2", 6)
	require.NoError(t, err)

	img, err := png.Decode(bytes.NewReader(f.PNG))
	require.NoError(t, err)
	assert.Equal(t, 300, img.Bounds().Dx())
	assert.NotEqual(t, 300, f.Width, "reported size stays logical")
}

func TestPlaceholderRenderer(t *testing.T) {
	p, err := NewPlaceholderRenderer(CanvasOptions{DPIPerScale: 28})
	require.NoError(t, err)

	t.Run("draws a decodable image", func(t *testing.T) {
		f, err := p.RenderPlaceholder(`\frac{a}{b}`, 6)
		require.NoError(t, err)

		img, err := png.Decode(bytes.NewReader(f.PNG))
		require.NoError(t, err)
		assert.Equal(t, f.Width, img.Bounds().Dx())
		assert.Equal(t, f.Height, img.Bounds().Dy())
		assert.Greater(t, f.Width, f.Height)
	})

	t.Run("size follows scale", func(t *testing.T) {
		small, err := p.RenderPlaceholder("x", 3)
		require.NoError(t, err)
		large, err := p.RenderPlaceholder("x", 9)
		require.NoError(t, err)
		assert.Greater(t, large.Height, small.Height)
	})

	t.Run("empty source still renders", func(t *testing.T) {
		f, err := p.RenderPlaceholder("", 6)
		require.NoError(t, err)
		assert.NotEmpty(t, f.PNG)
	})

	t.Run("invalid scale", func(t *testing.T) {
		_, err := p.RenderPlaceholder("x", -1)
		assert.Error(t, err)
	})
}

func TestPlaceholderLabel(t *testing.T) {
	assert.Equal(t, "$x^2$", placeholderLabel("  x^2 "))
	assert.Equal(t, "$a b$", placeholderLabel("a\n\tb"))
	assert.Equal(t, "[empty formula]", placeholderLabel(""))

	long := placeholderLabel(strings.Repeat("y", 100))
	assert.Equal(t, placeholderMaxRunes+2, len([]rune(long)))
	assert.True(t, strings.HasSuffix(long, "…$"))
}
