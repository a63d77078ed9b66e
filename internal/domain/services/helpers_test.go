package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"regexp"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/fredcamaral/texdeck/internal/domain/entities"
	"github.com/fredcamaral/texdeck/internal/domain/ports"
)

var discardLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

func testLayoutConfig() entities.LayoutConfig {
	return entities.LayoutConfig{
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

		CharWidth:      0.1,
		TextLineHeight: 0.4,

		InterWordSpacing:    0.1,
		ImageSpacing:        0.1,
		TightImageSpacing:   0.02,
		ImageBaselineOffset: -0.1,
		SeriesSpacing:       0.2,
		BreakSpacing:        0.3,
		ClosingPunctuation:  ".)",
	}
}

func testRasterizerConfig() entities.RasterizerConfig {
	return entities.RasterizerConfig{
		BaseScale:            4,
		MinScale:             3,
		LengthDivisor:        50,
		MaxLengthBonus:       2,
		ResolutionMultiplier: 1.5,
		DPIPerScale:          28,
		Oversample:           4,
		PixelDensity:         96,
		MaxWidthFraction:     0.8,
		MinDisplayWidth:      0.25,
		MaxDisplayWidth:      6,
	}
}

// charMeasurer gives every rune the same advance
type charMeasurer struct {
	width float64
}

func (m charMeasurer) MeasureWidth(text, _ string, _ float64) float64 {
	return float64(utf8.RuneCountInString(text)) * m.width
}

// stubRenderer returns a fixed-size image and fails for listed sources
type stubRenderer struct {
	mu     sync.Mutex
	width  int
	height int
	fail   map[string]error
	block  bool
	calls  []float64
}

func newStubRenderer(width, height int) *stubRenderer {
	return &stubRenderer{width: width, height: height, fail: map[string]error{}}
}

func (r *stubRenderer) Render(ctx context.Context, latex string, scale float64) (*ports.RenderedFormula, error) {
	r.mu.Lock()
	r.calls = append(r.calls, scale)
	r.mu.Unlock()

	if r.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if err, ok := r.fail[latex]; ok {
		return nil, err
	}
	return &ports.RenderedFormula{PNG: []byte("png:" + latex), Width: r.width, Height: r.height}, nil
}

type stubPlaceholder struct {
	err error
}

func (p stubPlaceholder) RenderPlaceholder(latex string, _ float64) (*ports.RenderedFormula, error) {
	if p.err != nil {
		return nil, p.err
	}
	return &ports.RenderedFormula{PNG: []byte("placeholder:" + latex), Width: 96, Height: 38}, nil
}

var inlineTagPattern = regexp.MustCompile(`</?(b|i|em|strong|span|div)(\s[^>]*)?>`)

// passthroughExtractor returns content untouched, or fails for listed inputs
type passthroughExtractor struct {
	fail map[string]bool
}

func (e passthroughExtractor) Extract(content string, _ entities.ContentFormat) (string, error) {
	if e.fail[content] {
		return "", errors.New("malformed markup")
	}
	return content, nil
}

func (e passthroughExtractor) Fallback(content string) string {
	return inlineTagPattern.ReplaceAllString(content, "")
}

type builderOp struct {
	kind  string
	value string
	box   entities.PositionedBox
	style entities.TextStyle
}

// recordingBuilder captures every call a DocumentBuilder receives
type recordingBuilder struct {
	ops          []builderOp
	failText     string
	failImage    bool
	failSlide    bool
	serializeErr error
}

func (b *recordingBuilder) AddSlide() error {
	if b.failSlide {
		return errors.New("slide limit reached")
	}
	b.ops = append(b.ops, builderOp{kind: "slide"})
	return nil
}

func (b *recordingBuilder) AddText(text string, box entities.PositionedBox, style entities.TextStyle) error {
	if b.failText != "" && text == b.failText {
		return fmt.Errorf("text %q rejected", text)
	}
	b.ops = append(b.ops, builderOp{kind: "text", value: text, box: box, style: style})
	return nil
}

func (b *recordingBuilder) AddImage(png []byte, box entities.PositionedBox) error {
	if b.failImage {
		return errors.New("image rejected")
	}
	b.ops = append(b.ops, builderOp{kind: "image", value: string(png), box: box})
	return nil
}

func (b *recordingBuilder) Serialize() ([]byte, error) {
	if b.serializeErr != nil {
		return nil, b.serializeErr
	}
	return []byte("serialized"), nil
}

func (b *recordingBuilder) kinds() []string {
	out := make([]string, len(b.ops))
	for i, op := range b.ops {
		out[i] = op.kind
	}
	return out
}

func (b *recordingBuilder) images() []builderOp {
	var out []builderOp
	for _, op := range b.ops {
		if op.kind == "image" {
			out = append(out, op)
		}
	}
	return out
}

type stubFactory struct {
	format  entities.OutputFormat
	builder *recordingBuilder
	meta    ports.DocumentMeta
	err     error
}

func (f *stubFactory) Format() entities.OutputFormat { return f.format }

func (f *stubFactory) NewDocument(meta ports.DocumentMeta) (ports.DocumentBuilder, error) {
	f.meta = meta
	if f.err != nil {
		return nil, f.err
	}
	return f.builder, nil
}

type stubFetcher struct {
	err error
}

func (f stubFetcher) Fetch(_ context.Context, ref string) (*ports.Asset, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &ports.Asset{Name: ref, ContentType: "image/png", Data: []byte("bg")}, nil
}

type recordedDeck struct {
	slides, formulas, failures int
	elapsed                    time.Duration
	err                        error
}

type stubStats struct {
	decks []recordedDeck
}

func (s *stubStats) RecordDeck(slides, formulas, failures int, elapsed time.Duration, err error) {
	s.decks = append(s.decks, recordedDeck{slides, formulas, failures, elapsed, err})
}

func (s *stubStats) Snapshot() ports.GenerationStats { return ports.GenerationStats{} }
