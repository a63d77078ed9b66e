package main

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/spf13/cobra"

	httpadapter "github.com/fredcamaral/texdeck/internal/adapters/primary/http"
	"github.com/fredcamaral/texdeck/internal/domain/entities"
)

// Logger provides leveled console output for the CLI commands
type Logger struct {
	verbose bool
	level   entities.LogLevel
}

// shouldLog checks if the message should be logged based on level
func (l *Logger) shouldLog(msgLevel entities.LogLevel) bool {
	levelMap := map[entities.LogLevel]int{
		entities.LogLevelDebug: 0,
		entities.LogLevelInfo:  1,
		entities.LogLevelWarn:  2,
		entities.LogLevelError: 3,
	}

	return levelMap[msgLevel] >= levelMap[l.level]
}

// Info logs informational messages
func (l *Logger) Info(msg string, args ...interface{}) {
	if l.shouldLog(entities.LogLevelInfo) && l.verbose {
		log.Printf("[INFO] "+msg, args...)
	}
}

// Warn logs warning messages
func (l *Logger) Warn(msg string, args ...interface{}) {
	if l.shouldLog(entities.LogLevelWarn) {
		log.Printf("[WARN] "+msg, args...)
	}
}

// Error logs error messages
func (l *Logger) Error(msg string, args ...interface{}) {
	if l.shouldLog(entities.LogLevelError) {
		log.Printf("[ERROR] "+msg, args...)
	}
}

// Success logs success messages
func (l *Logger) Success(msg string, args ...interface{}) {
	if l.shouldLog(entities.LogLevelInfo) && l.verbose {
		log.Printf("[SUCCESS] "+msg, args...)
	}
}

// newLoggerWithLevel creates a new logger instance with specific level
func newLoggerWithLevel(verbose bool, level entities.LogLevel) *Logger {
	return &Logger{
		verbose: verbose,
		level:   level,
	}
}

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the deck generation HTTP service",
	Long: `Start the HTTP service. POST slide JSON to /ppt (or /api/ppt) to receive
a generated deck, GET /ppt for the built-in sample deck, or connect to
/ws/ppt to stream per-slide progress before the document arrives.

Example:
  texdeck serve
  texdeck serve --port 9090 --on-error skip --allow-partial`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	// Defaults are zero values; only flags set explicitly override config
	serveCmd.Flags().IntP("port", "p", 0, "Port to serve on (overrides config)")
	serveCmd.Flags().String("host", "", "Host to bind to (overrides config)")
	serveCmd.Flags().String("log-level", "", "Log level: debug, info, warn, error (overrides config)")
	addGenerationFlags(serveCmd)
}

// addGenerationFlags registers the pipeline overrides shared by serve and build
func addGenerationFlags(cmd *cobra.Command) {
	cmd.Flags().String("measurer", "", "Text measurer: heuristic or font (overrides config)")
	cmd.Flags().String("on-error", "", "Formula failure policy: placeholder, skip or abort (overrides config)")
	cmd.Flags().Bool("allow-partial", false, "Return a deck even when some slides fail (overrides config)")
	cmd.Flags().String("font", "", "Text font family (overrides config)")
	cmd.Flags().String("assets", "", "Directory for local background images (overrides config)")
}

// validateServeConfig validates configuration after it's loaded
func validateServeConfig(config *entities.Config) error {
	if config.Server.Port <= 0 || config.Server.Port > 65535 {
		return fmt.Errorf("invalid port number: %d", config.Server.Port)
	}

	if strings.Contains(config.Server.Host, " ") || strings.Contains(config.Server.Host, "!") {
		return fmt.Errorf("invalid host: %s", config.Server.Host)
	}

	return nil
}

func runServe(cmd *cobra.Command, _ []string) error {
	finalConfig, err := loadAndValidateConfig(cmd)
	if err != nil {
		return err
	}
	if err := validateServeConfig(finalConfig); err != nil {
		return err
	}

	logger := newLoggerWithLevel(resolveVerbose(cmd, finalConfig), finalConfig.Logging.GetLevel())
	printStartupInfo(logger, finalConfig)

	ctx := cmd.Context()
	stack := buildDeckService(finalConfig, newServiceLogger(finalConfig))
	stack.monitor.Start(ctx)
	defer stack.monitor.Stop()

	server := httpadapter.NewServer(stack.decks, finalConfig)
	server.SetMonitor(stack.monitor)
	if stack.cache != nil {
		server.AddStatsSource("formula_cache", func() interface{} { return stack.cache.Stats() })
	}

	return startAndManageServer(ctx, server, logger)
}

// printStartupInfo prints startup information if verbose mode is enabled
func printStartupInfo(logger *Logger, config *entities.Config) {
	logger.Info("Attempting to start server at: http://%s:%d", config.Server.Host, config.Server.Port)
	logger.Info("Text measurer: %s, formula failures: %s", config.Layout.GetMeasurer(), config.Rasterizer.GetOnError())
	if config.Generation.AllowPartial {
		logger.Info("Partial decks are returned when slides fail")
	}
}

// startAndManageServer starts the server and blocks until ctx ends or serving fails
func startAndManageServer(ctx context.Context, server *httpadapter.Server, logger *Logger) error {
	if err := server.Start(ctx); err != nil {
		return fmt.Errorf("starting server: %w", err)
	}

	logger.Success("Server running at: http://%s", server.Addr())

	return handleServerShutdown(ctx, server, logger)
}

// handleServerShutdown stops the server once ctx is cancelled or the serve loop fails
func handleServerShutdown(ctx context.Context, server *httpadapter.Server, logger *Logger) error {
	var serveErr error
	select {
	case serveErr = <-server.Errors():
	case <-ctx.Done():
		logger.Info("Shutting down server...")
	}

	// The run context is already done; Stop applies the configured timeout
	if err := server.Stop(context.Background()); err != nil {
		logger.Error("Error during shutdown: %v", err)
	}

	return serveErr
}
