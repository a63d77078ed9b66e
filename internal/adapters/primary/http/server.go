package http

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/gorilla/mux"
	"github.com/rs/cors"

	"github.com/fredcamaral/texdeck/internal/adapters/secondary/deckfile"
	"github.com/fredcamaral/texdeck/internal/domain/entities"
	"github.com/fredcamaral/texdeck/internal/domain/ports"
)

// HTTPLogger provides structured logging for the HTTP server
type HTTPLogger struct {
	component string
	verbose   bool
	level     entities.LogLevel
}

// NewHTTPLogger creates a new HTTP logger instance
func NewHTTPLogger(component string, verbose bool) *HTTPLogger {
	return &HTTPLogger{
		component: component,
		verbose:   verbose,
		level:     entities.LogLevelInfo,
	}
}

// NewHTTPLoggerWithLevel creates a new HTTP logger instance with specific level
func NewHTTPLoggerWithLevel(component string, verbose bool, level entities.LogLevel) *HTTPLogger {
	return &HTTPLogger{
		component: component,
		verbose:   verbose,
		level:     level,
	}
}

// shouldLog checks if the message should be logged based on level
func (l *HTTPLogger) shouldLog(msgLevel entities.LogLevel) bool {
	levelMap := map[entities.LogLevel]int{
		entities.LogLevelDebug: 0,
		entities.LogLevelInfo:  1,
		entities.LogLevelWarn:  2,
		entities.LogLevelError: 3,
	}

	return levelMap[msgLevel] >= levelMap[l.level]
}

// Debug logs debug messages (only if debug level is enabled)
func (l *HTTPLogger) Debug(msg string, args ...interface{}) {
	if l.shouldLog(entities.LogLevelDebug) {
		log.Printf("[DEBUG] [%s] "+msg, append([]interface{}{l.component}, args...)...)
	}
}

// Info logs informational messages
func (l *HTTPLogger) Info(msg string, args ...interface{}) {
	if l.shouldLog(entities.LogLevelInfo) {
		log.Printf("[INFO] [%s] "+msg, append([]interface{}{l.component}, args...)...)
	}
}

// Warn logs warning messages
func (l *HTTPLogger) Warn(msg string, args ...interface{}) {
	if l.shouldLog(entities.LogLevelWarn) {
		log.Printf("[WARN] [%s] "+msg, append([]interface{}{l.component}, args...)...)
	}
}

// Error logs error messages
func (l *HTTPLogger) Error(msg string, args ...interface{}) {
	if l.shouldLog(entities.LogLevelError) {
		log.Printf("[ERROR] [%s] "+msg, append([]interface{}{l.component}, args...)...)
	}
}

// SetLevel updates the logging level
func (l *HTTPLogger) SetLevel(level entities.LogLevel) {
	l.level = level
}

// Monitor is the runtime view the server reports on /api/health and /api/stats
type Monitor interface {
	ports.StatsRecorder
	RecordHTTPRequest()
	RecordStreamConnection()
	GetHealthStatus() map[string]interface{}
	GetMemoryStats() map[string]interface{}
}

// StatsSource contributes one named section to /api/stats
type StatsSource func() interface{}

// SampleFunc produces the deck served by GET /ppt
type SampleFunc func() (*entities.DeckRequest, error)

// Server exposes deck generation over HTTP and WebSocket
type Server struct {
	server   *http.Server
	listener net.Listener
	errs     chan error
	streams  *ConnectionManager
	decks    ports.DeckService
	monitor  Monitor
	extras   map[string]StatsSource
	sample   SampleFunc
	limiter  *rateLimiter
	config   *entities.Config
	logger   *HTTPLogger
	mu       sync.RWMutex
	running  bool
}

// NewServer creates a new HTTP server.
// config must not be nil; use config.GetDefaultConfig() if needed.
func NewServer(decks ports.DeckService, config *entities.Config) *Server {
	if config == nil {
		panic("server config cannot be nil - provide a valid Config")
	}

	return &Server{
		decks:   decks,
		streams: NewConnectionManager(),
		sample:  deckfile.Sample,
		limiter: newRateLimiter(config.Server.GetRateLimit()),
		config:  config,
		logger:  NewHTTPLoggerWithLevel("server", config.Logging.Verbose, config.Logging.GetLevel()),
	}
}

// SetMonitor sets the statistics and health source
func (s *Server) SetMonitor(monitor Monitor) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.monitor = monitor
}

// AddStatsSource publishes another component's counters under name on /api/stats
func (s *Server) AddStatsSource(name string, source StatsSource) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.extras == nil {
		s.extras = make(map[string]StatsSource)
	}
	s.extras[name] = source
}

// SetSample replaces the deck served by GET /ppt
func (s *Server) SetSample(sample SampleFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sample = sample
}

// Start binds the listener and serves in the background. Bind failures are
// returned directly; later serve failures arrive on Errors.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return errors.New("server already running")
	}

	addr := net.JoinHostPort(s.config.Server.Host, strconv.Itoa(s.config.Server.Port))
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("binding %s: %w", addr, err)
	}

	go s.limiter.cleanupRoutine(ctx)

	s.server = &http.Server{
		Handler:      s.Handler(),
		ReadTimeout:  s.config.Server.GetReadTimeout(),
		WriteTimeout: s.config.Server.GetWriteTimeout(),
		IdleTimeout:  s.config.Server.GetReadTimeout() * 2,
	}
	s.listener = listener
	s.errs = make(chan error, 1)
	s.running = true

	go func(server *http.Server, errs chan<- error) {
		s.logger.Info("HTTP server listening on %s", listener.Addr())
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("HTTP server error: %v", err)
			errs <- fmt.Errorf("server error: %w", err)
		}
	}(s.server, s.errs)

	return nil
}

// Addr returns the bound address, or nil before Start
func (s *Server) Addr() net.Addr {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Errors delivers a failure of the serve loop after a successful Start
func (s *Server) Errors() <-chan error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.errs
}

// Stop gracefully stops the HTTP server
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return errors.New("server not running")
	}

	// Hijacked stream connections are not tracked by Shutdown
	s.streams.CloseAll()

	shutdownCtx, cancel := context.WithTimeout(ctx, s.config.Server.GetShutdownTimeout())
	defer cancel()

	if err := s.server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	s.running = false
	return nil
}

// IsRunning returns whether the server is currently running
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

// Handler returns the fully wrapped router
func (s *Server) Handler() http.Handler {
	c := cors.New(cors.Options{
		AllowedOrigins:   s.config.Server.GetCORSOrigins(),
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Content-Type", "Accept"},
		ExposedHeaders:   []string{"Content-Disposition", requestIDHeader},
		AllowCredentials: false,
		MaxAge:           300, // 5 minutes
	})
	return c.Handler(s.setupRoutes())
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() http.Handler {
	router := mux.NewRouter()

	// Generation
	router.HandleFunc("/ppt", s.handleGenerate).Methods(http.MethodPost)
	router.HandleFunc("/api/ppt", s.handleGenerate).Methods(http.MethodPost)
	router.HandleFunc("/ppt", s.handleSample).Methods(http.MethodGet)
	router.HandleFunc("/ws/ppt", s.handleProgressStream).Methods(http.MethodGet)

	// Service information
	router.HandleFunc("/api/health", s.handleHealth).Methods(http.MethodGet)
	router.HandleFunc("/api/config", s.handleConfig).Methods(http.MethodGet)
	router.HandleFunc("/api/stats", s.handleStats).Methods(http.MethodGet)

	// Static assets with path validation
	router.PathPrefix("/public/").Handler(
		http.StripPrefix("/public/", s.secureFileServer(s.config.Assets.GetRoot())),
	).Methods(http.MethodGet, http.MethodHead)

	// Apply middleware in order: security -> rate limiting -> request ID -> logging -> recovery
	handler := securityHeadersMiddleware(router)
	handler = s.limiter.middleware(handler)
	handler = requestIDMiddleware(handler)
	handler = createLoggingMiddleware(handler, s.logger, s.recordRequest)
	handler = createRecoveryMiddleware(handler, s.logger)

	return handler
}

func (s *Server) recordRequest() {
	if m := s.getMonitor(); m != nil {
		m.RecordHTTPRequest()
	}
}

func (s *Server) getMonitor() Monitor {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.monitor
}

// secureFileServer creates a file server that prevents path traversal
func (s *Server) secureFileServer(root string) http.Handler {
	fs := http.FileServer(http.Dir(root))

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cleanPath := filepath.Clean("/" + r.URL.Path)

		if strings.Contains(r.URL.Path, "..") {
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}

		absRoot, err := filepath.Abs(root)
		if err != nil {
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}

		absPath, err := filepath.Abs(filepath.Join(root, cleanPath))
		if err != nil {
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}

		if absPath != absRoot && !strings.HasPrefix(absPath, absRoot+string(filepath.Separator)) {
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}

		info, err := os.Stat(absPath)
		if err != nil || info.IsDir() {
			// No directory listings
			http.NotFound(w, r)
			return
		}

		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("Cache-Control", "public, max-age=3600")

		fs.ServeHTTP(w, r)
	})
}
