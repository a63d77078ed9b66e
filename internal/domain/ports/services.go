package ports

import (
	"context"
	"time"

	"github.com/fredcamaral/texdeck/internal/domain/entities"
)

// ProgressEventType identifies a generation milestone
type ProgressEventType string

const (
	ProgressStarted       ProgressEventType = "started"
	ProgressSlideStarted  ProgressEventType = "slide_started"
	ProgressSlideDone     ProgressEventType = "slide_done"
	ProgressSlideFailed   ProgressEventType = "slide_failed"
	ProgressFormulaFailed ProgressEventType = "formula_failed"
	ProgressCompleted     ProgressEventType = "completed"
)

// ProgressEvent is emitted while a deck is generated
type ProgressEvent struct {
	Type      ProgressEventType `json:"type"`
	DeckID    string            `json:"deck_id"`
	Slide     int               `json:"slide"`
	Total     int               `json:"total"`
	Message   string            `json:"message,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
}

// ProgressFunc receives progress events; it must not block for long
type ProgressFunc func(ProgressEvent)

// DeckService turns a deck descriptor into a serialized document
type DeckService interface {
	// Generate runs the full pipeline and returns the encoded document
	Generate(ctx context.Context, req *entities.DeckRequest, format entities.OutputFormat, progress ProgressFunc) (*entities.GeneratedDeck, error)

	// SupportedFormats lists the output formats with a registered builder
	SupportedFormats() []entities.OutputFormat
}

// GenerationStats is a point-in-time view of generation counters
type GenerationStats struct {
	StartedAt       time.Time     `json:"started_at"`
	Decks           int64         `json:"decks"`
	FailedDecks     int64         `json:"failed_decks"`
	Slides          int64         `json:"slides"`
	Formulas        int64         `json:"formulas"`
	FormulaFailures int64         `json:"formula_failures"`
	LastDuration    time.Duration `json:"last_duration_ns"`
	AverageDuration time.Duration `json:"average_duration_ns"`
}

// StatsRecorder collects generation counters
type StatsRecorder interface {
	RecordDeck(slides, formulas, formulaFailures int, elapsed time.Duration, err error)
	Snapshot() GenerationStats
}
