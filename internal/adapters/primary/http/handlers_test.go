package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/fredcamaral/texdeck/internal/domain/entities"
	"github.com/fredcamaral/texdeck/internal/domain/ports"
)

const deckJSON = `{"slides":[{"title":"Algebra","content":"Solve $x^2=4$ for x."}],"template":{"fontFamily":"Georgia"}}`

func generatedDeck(format entities.OutputFormat) *entities.GeneratedDeck {
	return &entities.GeneratedDeck{
		ID:       "deck-1",
		Format:   format,
		Data:     []byte("PK\x03\x04document"),
		Slides:   1,
		Formulas: 1,
	}
}

func TestHandleGenerate(t *testing.T) {
	matchDeck := mock.MatchedBy(func(req *entities.DeckRequest) bool {
		return len(req.Slides) == 1 && req.Slides[0].Title == "Algebra" && req.Template.FontFamily == "Georgia"
	})

	for _, path := range []string{"/ppt", "/api/ppt"} {
		t.Run("pptx via "+path, func(t *testing.T) {
			decks := new(MockDeckService)
			decks.On("Generate", mock.Anything, matchDeck, entities.OutputFormatPPTX, mock.Anything).
				Return(generatedDeck(entities.OutputFormatPPTX), nil)
			server := NewServer(decks, getTestConfig(t))

			req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(deckJSON))
			w := httptest.NewRecorder()
			server.Handler().ServeHTTP(w, req)

			assert.Equal(t, http.StatusOK, w.Code)
			assert.Equal(t, "application/vnd.openxmlformats-officedocument.presentationml.presentation", w.Header().Get("Content-Type"))
			assert.Equal(t, "attachment; filename=GeneratedPresentation.pptx", w.Header().Get("Content-Disposition"))
			assert.Equal(t, "PK\x03\x04document", w.Body.String())
			decks.AssertExpectations(t)
		})
	}

	t.Run("pdf preview", func(t *testing.T) {
		decks := new(MockDeckService)
		decks.On("Generate", mock.Anything, matchDeck, entities.OutputFormatPDF, mock.Anything).
			Return(generatedDeck(entities.OutputFormatPDF), nil)
		server := NewServer(decks, getTestConfig(t))

		req := httptest.NewRequest(http.MethodPost, "/ppt?format=pdf", strings.NewReader(deckJSON))
		w := httptest.NewRecorder()
		server.Handler().ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "application/pdf", w.Header().Get("Content-Type"))
		assert.Equal(t, "attachment; filename=GeneratedPresentation.pdf", w.Header().Get("Content-Disposition"))
	})

	t.Run("configured filename", func(t *testing.T) {
		decks := new(MockDeckService)
		decks.On("Generate", mock.Anything, mock.Anything, entities.OutputFormatPPTX, mock.Anything).
			Return(generatedDeck(entities.OutputFormatPPTX), nil)
		cfg := getTestConfig(t)
		cfg.Generation.OutputFilename = "Lecture.pptx"
		server := NewServer(decks, cfg)

		w := httptest.NewRecorder()
		server.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/ppt", strings.NewReader(deckJSON)))

		assert.Equal(t, "attachment; filename=Lecture.pptx", w.Header().Get("Content-Disposition"))
	})

	t.Run("unknown format", func(t *testing.T) {
		decks := new(MockDeckService)
		server := NewServer(decks, getTestConfig(t))

		w := httptest.NewRecorder()
		server.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/ppt?format=docx", strings.NewReader(deckJSON)))

		assert.Equal(t, http.StatusBadRequest, w.Code)
		decks.AssertNotCalled(t, "Generate", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("malformed JSON", func(t *testing.T) {
		decks := new(MockDeckService)
		server := NewServer(decks, getTestConfig(t))

		w := httptest.NewRecorder()
		server.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/ppt", strings.NewReader(`{"slides":`)))

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Header().Get("Content-Type"), "text/plain")
		assert.Equal(t, "Invalid request body\n", w.Body.String())
	})

	t.Run("body too large", func(t *testing.T) {
		cfg := getTestConfig(t)
		cfg.Server.MaxRequestBytes = 16
		server := NewServer(new(MockDeckService), cfg)

		w := httptest.NewRecorder()
		server.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/ppt", strings.NewReader(deckJSON)))

		assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	})

	t.Run("validation error is 400", func(t *testing.T) {
		decks := new(MockDeckService)
		decks.On("Generate", mock.Anything, mock.Anything, entities.OutputFormatPPTX, mock.Anything).
			Return(nil, &entities.ValidationError{Field: "slides", Reason: "at least one slide is required"})
		server := NewServer(decks, getTestConfig(t))

		w := httptest.NewRecorder()
		server.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/ppt", strings.NewReader(`{"slides":[]}`)))

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "at least one slide is required")
	})

	t.Run("generation failure is sanitized 500", func(t *testing.T) {
		decks := new(MockDeckService)
		decks.On("Generate", mock.Anything, mock.Anything, entities.OutputFormatPPTX, mock.Anything).
			Return(nil, &entities.DocumentSerializationError{Format: entities.OutputFormatPPTX, Err: errors.New("disk on fire")})
		server := NewServer(decks, getTestConfig(t))

		w := httptest.NewRecorder()
		server.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/ppt", strings.NewReader(deckJSON)))

		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.Contains(t, w.Header().Get("Content-Type"), "text/plain")
		assert.Equal(t, "Error generating PPT.\n", w.Body.String())
		assert.NotContains(t, w.Body.String(), "disk on fire")
	})
}

func TestHandleSample(t *testing.T) {
	t.Run("generates sample deck", func(t *testing.T) {
		decks := new(MockDeckService)
		decks.On("Generate", mock.Anything, mock.MatchedBy(func(req *entities.DeckRequest) bool {
			return len(req.Slides) == 4
		}), entities.OutputFormatPPTX, mock.Anything).Return(generatedDeck(entities.OutputFormatPPTX), nil)
		server := NewServer(decks, getTestConfig(t))

		w := httptest.NewRecorder()
		server.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ppt", nil))

		assert.Equal(t, http.StatusOK, w.Code)
		decks.AssertExpectations(t)
	})

	t.Run("sample failure", func(t *testing.T) {
		server := NewServer(new(MockDeckService), getTestConfig(t))
		server.SetSample(func() (*entities.DeckRequest, error) {
			return nil, errors.New("embedded deck corrupt")
		})

		w := httptest.NewRecorder()
		server.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ppt", nil))

		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.Equal(t, "Error generating PPT.\n", w.Body.String())
	})
}

func TestHandleConfig(t *testing.T) {
	decks := new(MockDeckService)
	decks.On("SupportedFormats").Return([]entities.OutputFormat{entities.OutputFormatPDF, entities.OutputFormatPPTX})
	cfg := getTestConfig(t)
	server := NewServer(decks, cfg)

	w := httptest.NewRecorder()
	server.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/config", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var resp ConfigResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, cfg.Layout.SlideWidth, resp.SlideWidth)
	assert.Equal(t, cfg.Layout.LeftMargin, resp.LeftMargin)
	assert.Equal(t, cfg.Rasterizer.MinDisplayWidth, resp.MinImageWidth)
	assert.Equal(t, []string{"pdf", "pptx"}, resp.Formats)
	assert.Equal(t, cfg.Rasterizer.GetOnError(), resp.OnFormulaError)
}

func TestHandleHealthAndStats(t *testing.T) {
	t.Run("health without monitor", func(t *testing.T) {
		server := NewServer(new(MockDeckService), getTestConfig(t))

		w := httptest.NewRecorder()
		server.handleHealth(w, httptest.NewRequest(http.MethodGet, "/api/health", nil))

		var body map[string]interface{}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.Equal(t, true, body["healthy"])
		assert.Equal(t, float64(0), body["streams"])
	})

	t.Run("stats from monitor", func(t *testing.T) {
		monitor := new(MockMonitor)
		monitor.On("Snapshot").Return(ports.GenerationStats{Decks: 3, Formulas: 7})
		monitor.On("GetMemoryStats").Return(map[string]interface{}{"alloc_mb": 1})

		server := NewServer(new(MockDeckService), getTestConfig(t))
		server.SetMonitor(monitor)
		server.AddStatsSource("formula_cache", func() interface{} {
			return map[string]int{"hits": 5}
		})

		w := httptest.NewRecorder()
		server.handleStats(w, httptest.NewRequest(http.MethodGet, "/api/stats", nil))
		require.Equal(t, http.StatusOK, w.Code)

		var body struct {
			Generation   ports.GenerationStats  `json:"generation"`
			Memory       map[string]interface{} `json:"memory"`
			FormulaCache map[string]int         `json:"formula_cache"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.Equal(t, 5, body.FormulaCache["hits"])
		assert.Equal(t, int64(3), body.Generation.Decks)
		assert.Equal(t, int64(7), body.Generation.Formulas)
		assert.Contains(t, body.Memory, "alloc_mb")
		monitor.AssertExpectations(t)
	})
}

func TestHandleError(t *testing.T) {
	server := NewServer(new(MockDeckService), getTestConfig(t))

	w := httptest.NewRecorder()
	server.handleError(w, errors.New("secret internal detail"), http.StatusInternalServerError)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "Internal server error", resp.Message)
	assert.NotContains(t, w.Body.String(), "secret internal detail")
}
