// Package measure estimates rendered text widths for the layout engine.
package measure

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gomono"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/math/fixed"

	"github.com/fredcamaral/texdeck/internal/domain/entities"
	"github.com/fredcamaral/texdeck/internal/domain/ports"
)

const pointsPerInch = 72.0

// Heuristic charges a fixed advance per character, scaled by font size.
// It matches how presentation viewers are assumed to lay text out when no
// font metrics are available.
type Heuristic struct {
	charWidth float64
	baseSize  float64
}

// NewHeuristic creates a measurer charging charWidth inches per rune at baseSize points
func NewHeuristic(charWidth, baseSize float64) *Heuristic {
	return &Heuristic{charWidth: charWidth, baseSize: baseSize}
}

// MeasureWidth implements ports.TextMeasurer
func (h *Heuristic) MeasureWidth(text, fontFamily string, sizePt float64) float64 {
	n := utf8.RuneCountInString(text)
	if n == 0 {
		return 0
	}
	factor := 1.0
	if h.baseSize > 0 && sizePt > 0 {
		factor = sizePt / h.baseSize
	}
	return float64(n) * h.charWidth * factor
}

// Font measures text with real glyph advances from the bundled Go fonts.
// Monospace family names map to Go Mono, everything else to Go Regular.
type Font struct {
	regular *truetype.Font
	mono    *truetype.Font

	mu    sync.Mutex
	faces map[faceKey]font.Face
}

type faceKey struct {
	mono bool
	size float64
}

// NewFont parses the bundled fonts
func NewFont() (*Font, error) {
	regular, err := truetype.Parse(goregular.TTF)
	if err != nil {
		return nil, fmt.Errorf("parsing Go Regular: %w", err)
	}
	mono, err := truetype.Parse(gomono.TTF)
	if err != nil {
		return nil, fmt.Errorf("parsing Go Mono: %w", err)
	}
	return &Font{regular: regular, mono: mono, faces: make(map[faceKey]font.Face)}, nil
}

// MeasureWidth implements ports.TextMeasurer
func (f *Font) MeasureWidth(text, fontFamily string, sizePt float64) float64 {
	if text == "" || sizePt <= 0 {
		return 0
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	// DPI 72 makes one pixel one point
	advance := font.MeasureString(f.face(isMonospace(fontFamily), sizePt), text)
	return fixedToFloat(advance) / pointsPerInch
}

// face returns a cached face. Callers hold f.mu; faces are not safe for concurrent use.
func (f *Font) face(mono bool, size float64) font.Face {
	key := faceKey{mono: mono, size: size}
	if face, ok := f.faces[key]; ok {
		return face
	}

	ft := f.regular
	if mono {
		ft = f.mono
	}
	face := truetype.NewFace(ft, &truetype.Options{Size: size, DPI: pointsPerInch, Hinting: font.HintingNone})
	f.faces[key] = face
	return face
}

func isMonospace(family string) bool {
	family = strings.ToLower(family)
	for _, m := range []string{"mono", "courier", "consolas", "menlo"} {
		if strings.Contains(family, m) {
			return true
		}
	}
	return false
}

func fixedToFloat(v fixed.Int26_6) float64 {
	return float64(v) / 64
}

// New selects the measurer named by the layout configuration, falling back
// to the heuristic when fonts cannot be loaded
func New(cfg entities.LayoutConfig, logger *slog.Logger) ports.TextMeasurer {
	if logger == nil {
		logger = slog.Default()
	}

	if cfg.GetMeasurer() == entities.MeasurerFont {
		m, err := NewFont()
		if err == nil {
			return m
		}
		logger.Warn("Font measurer unavailable, using heuristic", slog.String("error", err.Error()))
	}

	return NewHeuristic(cfg.CharWidth, cfg.BaseFontSize)
}

// Ensure measurers implement ports.TextMeasurer
var (
	_ ports.TextMeasurer = (*Heuristic)(nil)
	_ ports.TextMeasurer = (*Font)(nil)
)
