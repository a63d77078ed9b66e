package config

import (
	"github.com/fredcamaral/texdeck/internal/domain/entities"
	"github.com/fredcamaral/texdeck/internal/domain/ports"
)

// ConfigMerger implements the ConfigMerger interface
type ConfigMerger struct{}

// NewConfigMerger creates a new configuration merger
func NewConfigMerger() *ConfigMerger {
	return &ConfigMerger{}
}

// Merge merges multiple configurations with later configs taking precedence
func (m *ConfigMerger) Merge(configs ...*entities.Config) *entities.Config {
	if len(configs) == 0 {
		return GetDefaultConfig()
	}

	// Start with first config as base
	result := deepCopy(configs[0])
	if result == nil {
		result = GetDefaultConfig()
	}

	// Merge subsequent configs
	for i := 1; i < len(configs); i++ {
		if configs[i] != nil {
			m.mergeInto(result, configs[i])
		}
	}

	return result
}

// ApplyFlags applies CLI flag overrides to a configuration
func (m *ConfigMerger) ApplyFlags(config *entities.Config, flags map[string]interface{}) *entities.Config {
	result := deepCopy(config)

	if port, ok := flags["port"].(int); ok && port > 0 {
		result.Server.Port = port
	}

	if host, ok := flags["host"].(string); ok && host != "" {
		result.Server.Host = host
	}

	if measurer, ok := flags["measurer"].(string); ok && measurer != "" {
		result.Layout.Measurer = measurer
	}

	if onError, ok := flags["on-error"].(string); ok && onError != "" {
		result.Rasterizer.OnError = onError
	}

	if allowPartial, ok := flags["allow-partial"].(bool); ok {
		result.Generation.AllowPartial = allowPartial
	}

	if font, ok := flags["font"].(string); ok && font != "" {
		result.Generation.DefaultFontFamily = font
	}

	if assets, ok := flags["assets"].(string); ok && assets != "" {
		result.Assets.Root = assets
	}

	if level, ok := flags["log-level"].(string); ok && level != "" {
		result.Logging.Level = level
	}

	if verbose, ok := flags["verbose"].(bool); ok && verbose {
		result.Logging.Verbose = true
	}

	return result
}

// ApplyEnvVars applies environment variable overrides to a configuration.
// Unset or unparsable variables keep the current value.
func (m *ConfigMerger) ApplyEnvVars(config *entities.Config) *entities.Config {
	result := deepCopy(config)

	// Server configuration from environment
	result.Server.Host = getEnvOrDefault("TEXDECK_HOST", result.Server.Host)
	result.Server.Port = getEnvIntOrDefault("TEXDECK_PORT", result.Server.Port)
	result.Server.ReadTimeout = getEnvIntOrDefault("TEXDECK_READ_TIMEOUT", result.Server.ReadTimeout)
	result.Server.WriteTimeout = getEnvIntOrDefault("TEXDECK_WRITE_TIMEOUT", result.Server.WriteTimeout)
	result.Server.ShutdownTimeout = getEnvIntOrDefault("TEXDECK_SHUTDOWN_TIMEOUT", result.Server.ShutdownTimeout)
	result.Server.Environment = getEnvOrDefault("TEXDECK_ENV", result.Server.Environment)
	result.Server.MaxRequestBytes = int64(getEnvIntOrDefault("TEXDECK_MAX_REQUEST_BYTES", int(result.Server.MaxRequestBytes)))
	result.Server.RateLimitPerMinute = getEnvIntOrDefault("TEXDECK_RATE_LIMIT", result.Server.RateLimitPerMinute)
	result.Server.CORSOrigins = getEnvSliceOrDefault("TEXDECK_CORS_ORIGINS", result.Server.CORSOrigins)

	// Layout geometry from environment
	result.Layout.SlideWidth = getEnvFloatOrDefault("TEXDECK_SLIDE_WIDTH", result.Layout.SlideWidth)
	result.Layout.SlideHeight = getEnvFloatOrDefault("TEXDECK_SLIDE_HEIGHT", result.Layout.SlideHeight)
	result.Layout.LeftMargin = getEnvFloatOrDefault("TEXDECK_LEFT_MARGIN", result.Layout.LeftMargin)
	result.Layout.RightMargin = getEnvFloatOrDefault("TEXDECK_RIGHT_MARGIN", result.Layout.RightMargin)
	result.Layout.BaseFontSize = getEnvFloatOrDefault("TEXDECK_FONT_SIZE", result.Layout.BaseFontSize)
	result.Layout.Measurer = getEnvOrDefault("TEXDECK_MEASURER", result.Layout.Measurer)

	// Rasterizer configuration from environment
	result.Rasterizer.TimeoutMs = getEnvIntOrDefault("TEXDECK_FORMULA_TIMEOUT_MS", result.Rasterizer.TimeoutMs)
	result.Rasterizer.OnError = getEnvOrDefault("TEXDECK_FORMULA_ON_ERROR", result.Rasterizer.OnError)
	result.Rasterizer.TargetWidthPx = getEnvIntOrDefault("TEXDECK_FORMULA_TARGET_WIDTH", result.Rasterizer.TargetWidthPx)
	result.Rasterizer.CacheSize = getEnvIntOrDefault("TEXDECK_FORMULA_CACHE_SIZE", result.Rasterizer.CacheSize)

	// Generation
	result.Generation.AllowPartial = getEnvBoolOrDefault("TEXDECK_ALLOW_PARTIAL", result.Generation.AllowPartial)
	result.Generation.Author = getEnvOrDefault("TEXDECK_AUTHOR", result.Generation.Author)
	result.Generation.DefaultFontFamily = getEnvOrDefault("TEXDECK_FONT", result.Generation.DefaultFontFamily)

	// Assets
	result.Assets.Root = getEnvOrDefault("TEXDECK_ASSETS_ROOT", result.Assets.Root)
	result.Assets.BlockRemote = getEnvBoolOrDefault("TEXDECK_ASSETS_BLOCK_REMOTE", result.Assets.BlockRemote)

	// Logging
	result.Logging.Level = getEnvOrDefault("TEXDECK_LOG_LEVEL", result.Logging.Level)
	result.Logging.Verbose = getEnvBoolOrDefault("TEXDECK_LOG_VERBOSE", result.Logging.Verbose)
	result.Logging.JSONFormat = getEnvBoolOrDefault("TEXDECK_LOG_JSON", result.Logging.JSONFormat)

	return result
}

// mergeInto merges source configuration into target configuration. Keys a
// loaded file defines win even when zero or false.
func (m *ConfigMerger) mergeInto(target, source *entities.Config) {
	// Server config
	sv, ss := &target.Server, source.Server
	merge(source, "server.host", &sv.Host, ss.Host)
	merge(source, "server.port", &sv.Port, ss.Port)
	merge(source, "server.read_timeout", &sv.ReadTimeout, ss.ReadTimeout)
	merge(source, "server.write_timeout", &sv.WriteTimeout, ss.WriteTimeout)
	merge(source, "server.shutdown_timeout", &sv.ShutdownTimeout, ss.ShutdownTimeout)
	merge(source, "server.environment", &sv.Environment, ss.Environment)
	merge(source, "server.rate_limit_per_minute", &sv.RateLimitPerMinute, ss.RateLimitPerMinute)
	merge(source, "server.max_request_bytes", &sv.MaxRequestBytes, ss.MaxRequestBytes)
	mergeSlice(source, "server.cors_origins", &sv.CORSOrigins, ss.CORSOrigins)

	// Layout config
	l, s := &target.Layout, source.Layout
	merge(source, "layout.slide_width", &l.SlideWidth, s.SlideWidth)
	merge(source, "layout.slide_height", &l.SlideHeight, s.SlideHeight)
	merge(source, "layout.left_margin", &l.LeftMargin, s.LeftMargin)
	merge(source, "layout.right_margin", &l.RightMargin, s.RightMargin)
	merge(source, "layout.title_x", &l.TitleX, s.TitleX)
	merge(source, "layout.title_y", &l.TitleY, s.TitleY)
	merge(source, "layout.subtitle_y", &l.SubtitleY, s.SubtitleY)
	merge(source, "layout.content_top", &l.ContentTop, s.ContentTop)
	merge(source, "layout.content_top_with_subtitle", &l.ContentTopWithSubtitle, s.ContentTopWithSubtitle)
	merge(source, "layout.base_font_size", &l.BaseFontSize, s.BaseFontSize)
	merge(source, "layout.title_font_size", &l.TitleFontSize, s.TitleFontSize)
	merge(source, "layout.subtitle_font_size", &l.SubtitleFontSize, s.SubtitleFontSize)
	merge(source, "layout.text_color", &l.TextColor, s.TextColor)
	merge(source, "layout.title_color", &l.TitleColor, s.TitleColor)
	merge(source, "layout.char_width", &l.CharWidth, s.CharWidth)
	merge(source, "layout.text_line_height", &l.TextLineHeight, s.TextLineHeight)
	merge(source, "layout.measurer", &l.Measurer, s.Measurer)
	merge(source, "layout.inter_word_spacing", &l.InterWordSpacing, s.InterWordSpacing)
	merge(source, "layout.image_spacing", &l.ImageSpacing, s.ImageSpacing)
	merge(source, "layout.tight_image_spacing", &l.TightImageSpacing, s.TightImageSpacing)
	merge(source, "layout.image_baseline_offset", &l.ImageBaselineOffset, s.ImageBaselineOffset)
	merge(source, "layout.series_spacing", &l.SeriesSpacing, s.SeriesSpacing)
	merge(source, "layout.break_spacing", &l.BreakSpacing, s.BreakSpacing)
	merge(source, "layout.closing_punctuation", &l.ClosingPunctuation, s.ClosingPunctuation)

	// Rasterizer config
	r, rs := &target.Rasterizer, source.Rasterizer
	merge(source, "rasterizer.base_scale", &r.BaseScale, rs.BaseScale)
	merge(source, "rasterizer.min_scale", &r.MinScale, rs.MinScale)
	merge(source, "rasterizer.length_divisor", &r.LengthDivisor, rs.LengthDivisor)
	merge(source, "rasterizer.max_length_bonus", &r.MaxLengthBonus, rs.MaxLengthBonus)
	merge(source, "rasterizer.resolution_multiplier", &r.ResolutionMultiplier, rs.ResolutionMultiplier)
	mergeSlice(source, "rasterizer.wide_keywords", &r.WideKeywords, rs.WideKeywords)
	merge(source, "rasterizer.dpi_per_scale", &r.DPIPerScale, rs.DPIPerScale)
	merge(source, "rasterizer.oversample", &r.Oversample, rs.Oversample)
	merge(source, "rasterizer.target_width_px", &r.TargetWidthPx, rs.TargetWidthPx)
	merge(source, "rasterizer.pixel_density", &r.PixelDensity, rs.PixelDensity)
	merge(source, "rasterizer.max_width_fraction", &r.MaxWidthFraction, rs.MaxWidthFraction)
	merge(source, "rasterizer.min_display_width", &r.MinDisplayWidth, rs.MinDisplayWidth)
	merge(source, "rasterizer.max_display_width", &r.MaxDisplayWidth, rs.MaxDisplayWidth)
	merge(source, "rasterizer.timeout_ms", &r.TimeoutMs, rs.TimeoutMs)
	merge(source, "rasterizer.on_error", &r.OnError, rs.OnError)
	merge(source, "rasterizer.cache_size", &r.CacheSize, rs.CacheSize)
	merge(source, "rasterizer.cache_ttl_seconds", &r.CacheTTLSeconds, rs.CacheTTLSeconds)

	// Generation config
	g, gs := &target.Generation, source.Generation
	merge(source, "generation.output_filename", &g.OutputFilename, gs.OutputFilename)
	merge(source, "generation.allow_partial", &g.AllowPartial, gs.AllowPartial)
	merge(source, "generation.max_slides", &g.MaxSlides, gs.MaxSlides)
	merge(source, "generation.default_font_family", &g.DefaultFontFamily, gs.DefaultFontFamily)
	merge(source, "generation.author", &g.Author, gs.Author)

	// Assets config
	a, as := &target.Assets, source.Assets
	merge(source, "assets.root", &a.Root, as.Root)
	merge(source, "assets.block_remote", &a.BlockRemote, as.BlockRemote)
	merge(source, "assets.fetch_timeout", &a.FetchTimeout, as.FetchTimeout)
	merge(source, "assets.max_retries", &a.MaxRetries, as.MaxRetries)
	merge(source, "assets.max_bytes", &a.MaxBytes, as.MaxBytes)

	// Logging config
	lg, lgs := &target.Logging, source.Logging
	merge(source, "logging.level", &lg.Level, lgs.Level)
	merge(source, "logging.verbose", &lg.Verbose, lgs.Verbose)
	merge(source, "logging.json_format", &lg.JSONFormat, lgs.JSONFormat)
}

// merge copies value into dst when source defines key
func merge[T comparable](source *entities.Config, key string, dst *T, value T) {
	var zero T
	if source.IsDefined(key, value != zero) {
		*dst = value
	}
}

func mergeSlice(source *entities.Config, key string, dst *[]string, value []string) {
	if source.IsDefined(key, len(value) > 0) {
		*dst = copyStrings(value)
	}
}

func copyStrings(src []string) []string {
	if src == nil {
		return nil
	}
	dst := make([]string, len(src))
	copy(dst, src)
	return dst
}

// deepCopy creates a deep copy of a configuration
func deepCopy(src *entities.Config) *entities.Config {
	if src == nil {
		return nil
	}

	// Every section is a flat value type apart from the slices. A copy is a
	// resolved config, so it carries no key set.
	dst := *src
	dst.Server.CORSOrigins = copyStrings(src.Server.CORSOrigins)
	dst.Rasterizer.WideKeywords = copyStrings(src.Rasterizer.WideKeywords)
	dst.Defined = nil

	return &dst
}

// Ensure ConfigMerger implements ports.ConfigMerger
var _ ports.ConfigMerger = (*ConfigMerger)(nil)
