package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fredcamaral/texdeck/internal/domain/entities"
)

func TestConfigMerger_Merge(t *testing.T) {
	merger := NewConfigMerger()

	t.Run("merge with no configs returns defaults", func(t *testing.T) {
		result := merger.Merge()
		require.NotNil(t, result)
		assert.Equal(t, "localhost", result.Server.Host)
		assert.Equal(t, 3000, result.Server.Port)
		assert.Equal(t, 0.4, result.Layout.TextLineHeight)
		assert.NoError(t, result.Validate())
	})

	t.Run("later configs take precedence", func(t *testing.T) {
		base := GetDefaultConfig()
		override := &entities.Config{
			Server: entities.ServerConfig{Host: "0.0.0.0"},
			Layout: entities.LayoutConfig{
				LeftMargin:          1,
				ImageBaselineOffset: -0.2,
			},
			Rasterizer: entities.RasterizerConfig{
				WideKeywords: []string{"frac"},
			},
		}

		result := merger.Merge(base, override)
		assert.Equal(t, "0.0.0.0", result.Server.Host)
		assert.Equal(t, 3000, result.Server.Port, "unset fields keep the base value")
		assert.Equal(t, 1.0, result.Layout.LeftMargin)
		assert.Equal(t, 0.5, result.Layout.RightMargin)
		assert.Equal(t, -0.2, result.Layout.ImageBaselineOffset)
		assert.Equal(t, []string{"frac"}, result.Rasterizer.WideKeywords)
	})

	t.Run("code-built configs treat zero values as unset", func(t *testing.T) {
		first := &entities.Config{Generation: entities.GenerationConfig{AllowPartial: true}}
		second := &entities.Config{Logging: entities.LoggingConfig{JSONFormat: true}}

		result := merger.Merge(GetDefaultConfig(), first, second)
		assert.True(t, result.Generation.AllowPartial)
		assert.True(t, result.Logging.JSONFormat)
		assert.Equal(t, -0.1, result.Layout.ImageBaselineOffset)
	})

	t.Run("defined keys win even when zero or false", func(t *testing.T) {
		global := &entities.Config{
			Generation: entities.GenerationConfig{AllowPartial: true},
			Defined:    entities.NewKeySet("generation.allow_partial"),
		}
		local := &entities.Config{
			Layout: entities.LayoutConfig{LeftMargin: 0.75},
			Defined: entities.NewKeySet(
				"layout.image_baseline_offset",
				"layout.tight_image_spacing",
				"layout.left_margin",
				"generation.allow_partial",
				"rasterizer.cache_size",
			),
		}

		result := merger.Merge(GetDefaultConfig(), global, local)
		assert.Equal(t, 0.0, result.Layout.ImageBaselineOffset)
		assert.Equal(t, 0.0, result.Layout.TightImageSpacing)
		assert.Equal(t, 0.75, result.Layout.LeftMargin)
		assert.False(t, result.Generation.AllowPartial)
		assert.Equal(t, 0, result.Rasterizer.CacheSize)

		// keys the file left out keep the lower-precedence value
		assert.Equal(t, 0.2, result.Layout.SeriesSpacing)
		assert.Equal(t, 3000, result.Server.Port)
		assert.Nil(t, result.Defined)
	})

	t.Run("nil configs are skipped", func(t *testing.T) {
		result := merger.Merge(GetDefaultConfig(), nil)
		assert.Equal(t, 3000, result.Server.Port)
	})

	t.Run("result does not alias inputs", func(t *testing.T) {
		base := GetDefaultConfig()
		result := merger.Merge(base)
		result.Server.CORSOrigins[0] = "http://changed"
		result.Rasterizer.WideKeywords[0] = "changed"

		assert.NotEqual(t, "http://changed", base.Server.CORSOrigins[0])
		assert.NotEqual(t, "changed", base.Rasterizer.WideKeywords[0])
	})
}

func TestConfigMerger_ApplyFlags(t *testing.T) {
	merger := NewConfigMerger()
	base := GetDefaultConfig()

	result := merger.ApplyFlags(base, map[string]interface{}{
		"port":          8080,
		"host":          "127.0.0.1",
		"measurer":      "font",
		"on-error":      "abort",
		"allow-partial": true,
		"font":          "Georgia",
		"log-level":     "debug",
		"unknown":       42,
	})

	assert.Equal(t, 8080, result.Server.Port)
	assert.Equal(t, "127.0.0.1", result.Server.Host)
	assert.Equal(t, "font", result.Layout.Measurer)
	assert.Equal(t, "abort", result.Rasterizer.OnError)
	assert.True(t, result.Generation.AllowPartial)
	assert.Equal(t, "Georgia", result.Generation.DefaultFontFamily)
	assert.Equal(t, "debug", result.Logging.Level)

	// Original unchanged
	assert.Equal(t, 3000, base.Server.Port)

	t.Run("zero values are ignored", func(t *testing.T) {
		result := merger.ApplyFlags(base, map[string]interface{}{"port": 0, "host": ""})
		assert.Equal(t, 3000, result.Server.Port)
		assert.Equal(t, "localhost", result.Server.Host)
	})
}

func TestConfigMerger_ApplyEnvVars(t *testing.T) {
	merger := NewConfigMerger()

	t.Run("overrides from environment", func(t *testing.T) {
		t.Setenv("TEXDECK_PORT", "9090")
		t.Setenv("TEXDECK_LEFT_MARGIN", "0.75")
		t.Setenv("TEXDECK_FORMULA_ON_ERROR", "skip")
		t.Setenv("TEXDECK_ALLOW_PARTIAL", "true")
		t.Setenv("TEXDECK_CORS_ORIGINS", "https://a.example, https://b.example")

		base := &entities.Config{}
		result := merger.ApplyEnvVars(base)

		assert.Equal(t, 9090, result.Server.Port)
		assert.Equal(t, 0.75, result.Layout.LeftMargin)
		assert.Equal(t, "skip", result.Rasterizer.OnError)
		assert.True(t, result.Generation.AllowPartial)
		assert.Equal(t, []string{"https://a.example", "https://b.example"}, result.Server.CORSOrigins)
	})

	t.Run("environment can switch booleans off", func(t *testing.T) {
		t.Setenv("TEXDECK_ALLOW_PARTIAL", "false")

		base := &entities.Config{Generation: entities.GenerationConfig{AllowPartial: true}}
		result := merger.ApplyEnvVars(base)
		assert.False(t, result.Generation.AllowPartial)
	})

	t.Run("invalid values keep current", func(t *testing.T) {
		t.Setenv("TEXDECK_PORT", "not-a-number")
		t.Setenv("TEXDECK_SLIDE_WIDTH", "wide")

		base := &entities.Config{
			Server: entities.ServerConfig{Port: 3000},
			Layout: entities.LayoutConfig{SlideWidth: 10},
		}
		result := merger.ApplyEnvVars(base)
		assert.Equal(t, 3000, result.Server.Port)
		assert.Equal(t, 10.0, result.Layout.SlideWidth)
	})
}
