package ports

import (
	"context"

	"github.com/fredcamaral/texdeck/internal/domain/entities"
)

// RenderedFormula is a rasterized formula. Width and Height are logical
// pixels at the renderer's nominal density, independent of oversampling.
type RenderedFormula struct {
	PNG    []byte
	Width  int
	Height int
}

// FormulaRenderer rasterizes LaTeX source at a given scale
type FormulaRenderer interface {
	Render(ctx context.Context, latex string, scale float64) (*RenderedFormula, error)
}

// PlaceholderRenderer draws a stand-in image for a formula that failed to render
type PlaceholderRenderer interface {
	RenderPlaceholder(latex string, scale float64) (*RenderedFormula, error)
}

// TextMeasurer estimates the display width of text in inches
type TextMeasurer interface {
	MeasureWidth(text, fontFamily string, sizePt float64) float64
}

// ContentExtractor converts slide markup into plain text with $...$ formula delimiters.
// Paragraph and line-break tags are preserved for segmentation.
type ContentExtractor interface {
	Extract(content string, format entities.ContentFormat) (string, error)
	// Fallback strips markup down to text, paragraphs and line breaks without
	// interpreting formula elements. Used when Extract fails.
	Fallback(content string) string
}
