package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/fredcamaral/texdeck/internal/domain/entities"
)

// GetDefaultConfig returns the default configuration with environment overrides
func GetDefaultConfig() *entities.Config {
	config := &entities.Config{
		Server: entities.ServerConfig{
			Host:               getEnvOrDefault("TEXDECK_HOST", "localhost"),
			Port:               getEnvIntOrDefault("TEXDECK_PORT", 3000),
			ReadTimeout:        getEnvIntOrDefault("TEXDECK_READ_TIMEOUT", 30),
			WriteTimeout:       getEnvIntOrDefault("TEXDECK_WRITE_TIMEOUT", 120),
			ShutdownTimeout:    getEnvIntOrDefault("TEXDECK_SHUTDOWN_TIMEOUT", 5),
			Environment:        getEnvOrDefault("TEXDECK_ENV", "development"),
			MaxRequestBytes:    int64(getEnvIntOrDefault("TEXDECK_MAX_REQUEST_BYTES", 10<<20)),
			RateLimitPerMinute: getEnvIntOrDefault("TEXDECK_RATE_LIMIT", 60),
			CORSOrigins: getEnvSliceOrDefault("TEXDECK_CORS_ORIGINS", []string{
				"http://localhost:3000",
				"http://127.0.0.1:3000",
			}),
		},
		Layout: entities.LayoutConfig{
			SlideWidth:  10,
			SlideHeight: 5.63,
			LeftMargin:  0.5,
			RightMargin: 0.5,

			TitleX:                 0.5,
			TitleY:                 0.5,
			SubtitleY:              1.0,
			ContentTop:             1.5,
			ContentTopWithSubtitle: 1.8,

			BaseFontSize:     16,
			TitleFontSize:    24,
			SubtitleFontSize: 18,
			TextColor:        "363636",
			TitleColor:       "000000",

			CharWidth:      0.1,
			TextLineHeight: 0.4,
			Measurer:       getEnvOrDefault("TEXDECK_MEASURER", entities.MeasurerHeuristic),

			InterWordSpacing:    0.1,
			ImageSpacing:        0.1,
			TightImageSpacing:   0.02,
			ImageBaselineOffset: -0.1,
			SeriesSpacing:       0.2,
			BreakSpacing:        0.3,
			ClosingPunctuation:  ".)",
		},
		Rasterizer: entities.RasterizerConfig{
			BaseScale:            4,
			MinScale:             3,
			LengthDivisor:        50,
			MaxLengthBonus:       2,
			ResolutionMultiplier: 1.5,
			WideKeywords:         []string{"frac", "sum", "int", "sqrt", "prod"},

			DPIPerScale:   28,
			Oversample:    4,
			TargetWidthPx: 0,

			PixelDensity:     96,
			MaxWidthFraction: 0.8,
			MinDisplayWidth:  0.25,
			MaxDisplayWidth:  6,

			TimeoutMs: getEnvIntOrDefault("TEXDECK_FORMULA_TIMEOUT_MS", 5000),
			OnError:   getEnvOrDefault("TEXDECK_FORMULA_ON_ERROR", entities.OnErrorPlaceholder),

			CacheSize:       getEnvIntOrDefault("TEXDECK_FORMULA_CACHE_SIZE", 256),
			CacheTTLSeconds: 3600,
		},
		Generation: entities.GenerationConfig{
			OutputFilename:    "GeneratedPresentation.pptx",
			AllowPartial:      getEnvBoolOrDefault("TEXDECK_ALLOW_PARTIAL", false),
			MaxSlides:         200,
			DefaultFontFamily: "Arial",
			Author:            getEnvOrDefault("TEXDECK_AUTHOR", ""),
		},
		Assets: entities.AssetsConfig{
			Root:         getEnvOrDefault("TEXDECK_ASSETS_ROOT", "public"),
			BlockRemote:  getEnvBoolOrDefault("TEXDECK_ASSETS_BLOCK_REMOTE", false),
			FetchTimeout: 10,
			MaxRetries:   2,
			MaxBytes:     10 << 20,
		},
		Logging: entities.LoggingConfig{
			Level:      getEnvOrDefault("TEXDECK_LOG_LEVEL", "info"),
			Verbose:    getEnvBoolOrDefault("TEXDECK_LOG_VERBOSE", false),
			JSONFormat: getEnvBoolOrDefault("TEXDECK_LOG_JSON", false),
		},
	}

	return config
}

// getEnvOrDefault returns environment variable value or default
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvIntOrDefault returns environment variable as int or default
func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvBoolOrDefault returns environment variable as bool or default
func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

// getEnvFloatOrDefault returns environment variable as float or default
func getEnvFloatOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

// getEnvSliceOrDefault returns a comma separated environment variable as slice or default
func getEnvSliceOrDefault(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		parts := strings.Split(value, ",")
		result := make([]string, 0, len(parts))
		for _, part := range parts {
			if trimmed := strings.TrimSpace(part); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		if len(result) > 0 {
			return result
		}
	}
	return defaultValue
}
