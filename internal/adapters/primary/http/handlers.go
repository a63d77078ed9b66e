package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/fredcamaral/texdeck/internal/domain/entities"
)

// generationFailedMessage is the only detail clients see for server-side failures
const generationFailedMessage = "Error generating PPT."

// ErrorResponse is the JSON body of sanitized errors on the /api routes
type ErrorResponse struct {
	Error   string    `json:"error"`
	Message string    `json:"message"`
	Time    time.Time `json:"timestamp"`
}

// ConfigResponse exposes the layout constants a client needs to preview a deck
type ConfigResponse struct {
	SlideWidth       float64  `json:"slide_width"`
	SlideHeight      float64  `json:"slide_height"`
	LeftMargin       float64  `json:"left_margin"`
	RightMargin      float64  `json:"right_margin"`
	BaseFontSize     float64  `json:"base_font_size"`
	CharWidth        float64  `json:"char_width"`
	TextLineHeight   float64  `json:"text_line_height"`
	InterWordSpacing float64  `json:"inter_word_spacing"`
	SeriesSpacing    float64  `json:"series_spacing"`
	BreakSpacing     float64  `json:"break_spacing"`
	ImageSpacing     float64  `json:"image_spacing"`
	MinImageWidth    float64  `json:"min_image_width"`
	MaxImageWidth    float64  `json:"max_image_width"`
	Measurer         string   `json:"measurer"`
	OnFormulaError   string   `json:"on_formula_error"`
	Formats          []string `json:"formats"`
	MaxSlides        int      `json:"max_slides"`
}

// handleGenerate decodes a DeckRequest and responds with the document
func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	format, err := entities.ParseOutputFormat(r.URL.Query().Get("format"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.config.Server.GetMaxRequestBytes())

	var req entities.DeckRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			http.Error(w, "Request body too large", http.StatusRequestEntityTooLarge)
			return
		}
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	s.generate(w, r, &req, format)
}

// handleSample generates the bundled demonstration deck
func (s *Server) handleSample(w http.ResponseWriter, r *http.Request) {
	format, err := entities.ParseOutputFormat(r.URL.Query().Get("format"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	s.mu.RLock()
	sample := s.sample
	s.mu.RUnlock()

	req, err := sample()
	if err != nil {
		s.logger.Error("Loading sample deck [%s]: %v", RequestID(r.Context()), err)
		http.Error(w, generationFailedMessage, http.StatusInternalServerError)
		return
	}

	s.generate(w, r, req, format)
}

func (s *Server) generate(w http.ResponseWriter, r *http.Request, req *entities.DeckRequest, format entities.OutputFormat) {
	deck, err := s.decks.Generate(r.Context(), req, format, nil)
	if err != nil {
		s.writeGenerationError(w, r, err)
		return
	}

	if len(deck.Failures) > 0 {
		s.logger.Warn("Deck %s [%s] generated with %d formula or slide failures", deck.ID, RequestID(r.Context()), len(deck.Failures))
	}

	s.writeDocument(w, deck)
}

// writeGenerationError maps domain errors onto plain-text responses
func (s *Server) writeGenerationError(w http.ResponseWriter, r *http.Request, err error) {
	var validationErr *entities.ValidationError
	if errors.As(err, &validationErr) {
		s.logger.Debug("Rejected deck [%s]: %v", RequestID(r.Context()), err)
		http.Error(w, validationErr.Error(), http.StatusBadRequest)
		return
	}

	s.logger.Error("Generating deck [%s]: %v", RequestID(r.Context()), err)
	http.Error(w, generationFailedMessage, http.StatusInternalServerError)
}

// writeDocument sends the serialized deck as a download
func (s *Server) writeDocument(w http.ResponseWriter, deck *entities.GeneratedDeck) {
	w.Header().Set("Content-Type", deck.Format.ContentType())
	w.Header().Set("Content-Disposition", "attachment; filename="+s.downloadName(deck.Format))
	w.Header().Set("Content-Length", strconv.Itoa(len(deck.Data)))
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)

	if _, err := w.Write(deck.Data); err != nil {
		s.logger.Warn("Writing deck %s: %v", deck.ID, err)
	}
}

// downloadName swaps the configured filename's extension for the format's
func (s *Server) downloadName(format entities.OutputFormat) string {
	name := s.config.Generation.GetOutputFilename()
	if format == entities.OutputFormatPPTX {
		return name
	}

	return strings.TrimSuffix(name, filepath.Ext(name)) + format.Extension()
}

// handleHealth reports liveness plus runtime figures when a monitor is set
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	monitor := s.getMonitor()
	if monitor == nil {
		s.writeJSON(w, map[string]interface{}{
			"healthy": true,
			"streams": s.streams.Count(),
		})
		return
	}

	status := monitor.GetHealthStatus()
	status["streams"] = s.streams.Count()
	s.writeJSON(w, status)
}

// handleConfig returns the layout constants
func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	layout := s.config.Layout
	raster := s.config.Rasterizer

	formats := make([]string, 0, 2)
	for _, f := range s.decks.SupportedFormats() {
		formats = append(formats, string(f))
	}

	s.writeJSON(w, ConfigResponse{
		SlideWidth:       layout.SlideWidth,
		SlideHeight:      layout.SlideHeight,
		LeftMargin:       layout.LeftMargin,
		RightMargin:      layout.RightMargin,
		BaseFontSize:     layout.BaseFontSize,
		CharWidth:        layout.CharWidth,
		TextLineHeight:   layout.TextLineHeight,
		InterWordSpacing: layout.InterWordSpacing,
		SeriesSpacing:    layout.SeriesSpacing,
		BreakSpacing:     layout.BreakSpacing,
		ImageSpacing:     layout.ImageSpacing,
		MinImageWidth:    raster.MinDisplayWidth,
		MaxImageWidth:    raster.MaxDisplayWidth,
		Measurer:         layout.GetMeasurer(),
		OnFormulaError:   raster.GetOnError(),
		Formats:          formats,
		MaxSlides:        s.config.Generation.GetMaxSlides(),
	})
}

// handleStats returns generation counters
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	monitor := s.getMonitor()
	if monitor == nil {
		s.handleError(w, errors.New("no statistics recorder configured"), http.StatusServiceUnavailable)
		return
	}

	stats := map[string]interface{}{
		"generation": monitor.Snapshot(),
		"memory":     monitor.GetMemoryStats(),
		"streams":    s.streams.Count(),
	}

	s.mu.RLock()
	for name, source := range s.extras {
		stats[name] = source()
	}
	s.mu.RUnlock()

	s.writeJSON(w, stats)
}

// handleError handles error responses with sanitized messages
func (s *Server) handleError(w http.ResponseWriter, err error, status int) {
	var message string
	switch status {
	case http.StatusBadRequest:
		message = "Invalid request"
	case http.StatusNotFound:
		message = "Resource not found"
	case http.StatusServiceUnavailable:
		message = "Service unavailable"
	case http.StatusInternalServerError:
		message = "Internal server error"
	default:
		message = "An error occurred"
	}

	// Actual error stays server-side
	s.logger.Error("HTTP error (status %d): %v", status, err)

	response := ErrorResponse{
		Error:   http.StatusText(status),
		Message: message,
		Time:    time.Now(),
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if encodeErr := json.NewEncoder(w).Encode(response); encodeErr != nil {
		s.logger.Error("Failed to encode error response: %v", encodeErr)
	}
}

// writeJSON writes a JSON response
func (s *Server) writeJSON(w http.ResponseWriter, data interface{}) {
	body, err := json.Marshal(data)
	if err != nil {
		s.handleError(w, fmt.Errorf("encoding JSON response: %w", err), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(append(body, '\n')); err != nil {
		s.logger.Warn("Failed to write JSON response: %v", err)
	}
}
