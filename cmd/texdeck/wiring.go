package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/fredcamaral/texdeck/internal/adapters/secondary/assets"
	"github.com/fredcamaral/texdeck/internal/adapters/secondary/config"
	"github.com/fredcamaral/texdeck/internal/adapters/secondary/formula"
	"github.com/fredcamaral/texdeck/internal/adapters/secondary/markup"
	"github.com/fredcamaral/texdeck/internal/adapters/secondary/measure"
	"github.com/fredcamaral/texdeck/internal/adapters/secondary/monitoring"
	"github.com/fredcamaral/texdeck/internal/adapters/secondary/pdf"
	"github.com/fredcamaral/texdeck/internal/adapters/secondary/pptx"
	"github.com/fredcamaral/texdeck/internal/domain/entities"
	"github.com/fredcamaral/texdeck/internal/domain/ports"
	"github.com/fredcamaral/texdeck/internal/domain/services"
)

var (
	stringFlags = []string{"host", "measurer", "on-error", "font", "assets", "log-level"}
	intFlags    = []string{"port"}
	boolFlags   = []string{"allow-partial", "verbose"}
)

// loadAndValidateConfig loads configuration and validates it
func loadAndValidateConfig(cmd *cobra.Command) (*entities.Config, error) {
	finalConfig, err := loadAndMergeConfig(cmd)
	if err != nil {
		return nil, fmt.Errorf("loading configuration: %w", err)
	}

	if err := finalConfig.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return finalConfig, nil
}

// loadAndMergeConfig resolves defaults < global < local or --config < env < flags
func loadAndMergeConfig(cmd *cobra.Command) (*entities.Config, error) {
	workingDir, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("resolving working directory: %w", err)
	}

	explicitPath, _ := cmd.Flags().GetString("config")
	skipGlobal, _ := cmd.Flags().GetBool("no-global")

	svc := services.NewConfigService(config.NewTOMLLoader(), config.NewConfigMerger())
	return svc.LoadConfig(cmd.Context(), ports.ConfigSources{
		WorkingDir:   workingDir,
		ExplicitPath: explicitPath,
		SkipGlobal:   skipGlobal,
		Flags:        changedFlags(cmd),
	})
}

// changedFlags collects only the flags set on the command line, so unset
// flags never mask file or environment values.
func changedFlags(cmd *cobra.Command) map[string]interface{} {
	flags := make(map[string]interface{})
	fs := cmd.Flags()

	for _, name := range stringFlags {
		if fs.Lookup(name) != nil && fs.Changed(name) {
			if v, err := fs.GetString(name); err == nil {
				flags[name] = v
			}
		}
	}
	for _, name := range intFlags {
		if fs.Lookup(name) != nil && fs.Changed(name) {
			if v, err := fs.GetInt(name); err == nil {
				flags[name] = v
			}
		}
	}
	for _, name := range boolFlags {
		if fs.Lookup(name) != nil && fs.Changed(name) {
			if v, err := fs.GetBool(name); err == nil {
				flags[name] = v
			}
		}
	}

	return flags
}

// newServiceLogger configures the structured logger used by the domain and adapters
func newServiceLogger(cfg *entities.Config) *slog.Logger {
	level := slog.LevelInfo
	switch cfg.Logging.GetLevel() {
	case entities.LogLevelDebug:
		level = slog.LevelDebug
	case entities.LogLevelWarn:
		level = slog.LevelWarn
	case entities.LogLevelError:
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Logging.JSONFormat {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

// pipeline is the wired generation stack
type pipeline struct {
	decks   *services.DeckService
	monitor *monitoring.PerformanceMonitor
	cache   *formula.CachedRenderer // nil when caching is disabled
}

// buildDeckService wires the generation pipeline with every output format
func buildDeckService(cfg *entities.Config, logger *slog.Logger) pipeline {
	opts := formula.OptionsFromConfig(cfg.Rasterizer)

	var placeholder ports.PlaceholderRenderer
	if p, err := formula.NewPlaceholderRenderer(opts); err != nil {
		logger.Warn("placeholder renderer unavailable, failed formulas will be skipped", "error", err)
	} else {
		placeholder = p
	}

	var cache *formula.CachedRenderer
	var renderer ports.FormulaRenderer = formula.NewCanvasRenderer(opts, logger)
	if cfg.Rasterizer.CacheSize > 0 {
		cache = formula.NewCachedRenderer(renderer, cfg.Rasterizer.CacheSize, cfg.Rasterizer.GetCacheTTL(), logger)
		renderer = cache
	}

	formulas := services.NewFormulaMeasurer(
		renderer,
		placeholder,
		cfg.Rasterizer,
		cfg.Layout,
		logger,
	)
	layout := services.NewLayoutEngine(cfg.Layout, measure.New(cfg.Layout, logger))
	assembler := services.NewSlideAssembler(layout, cfg.Layout, logger)

	clock := ports.NewRealTimeProvider()
	decks := services.NewDeckService(
		cfg,
		markup.NewExtractor(logger),
		formulas,
		assembler,
		[]ports.DocumentFactory{pptx.NewFactory(clock), pdf.NewFactory(clock)},
		logger,
	)
	decks.SetAssetFetcher(assets.NewFetcher(cfg.Assets, nil, logger))

	monitor := monitoring.NewPerformanceMonitor()
	decks.SetStatsRecorder(monitor)

	return pipeline{decks: decks, monitor: monitor, cache: cache}
}

// resolveVerbose prefers an explicit --verbose over the configured value
func resolveVerbose(cmd *cobra.Command, cfg *entities.Config) bool {
	if cmd.Flags().Changed("verbose") {
		verbose, _ := cmd.Flags().GetBool("verbose")
		return verbose
	}
	return cfg.Logging.Verbose
}
