package formula

import (
	"bytes"
	"fmt"
	"image/color"
	"image/png"
	"math"
	"strings"
	"unicode/utf8"

	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font/gofont/goregular"

	"github.com/fredcamaral/texdeck/internal/domain/ports"
)

const (
	placeholderPointSize = 12.0
	placeholderMaxRunes  = 40
	placeholderPadding   = 0.4 // fraction of the font size
)

// PlaceholderRenderer draws the raw LaTeX in a boxed image for formulas the
// typesetter rejects
type PlaceholderRenderer struct {
	font        *truetype.Font
	dpiPerScale float64
}

// NewPlaceholderRenderer creates a placeholder renderer using the Go regular font
func NewPlaceholderRenderer(opts CanvasOptions) (*PlaceholderRenderer, error) {
	ft, err := truetype.Parse(goregular.TTF)
	if err != nil {
		return nil, fmt.Errorf("loading placeholder font: %w", err)
	}
	dpi := opts.DPIPerScale
	if dpi <= 0 {
		dpi = 28
	}
	return &PlaceholderRenderer{font: ft, dpiPerScale: dpi}, nil
}

// RenderPlaceholder implements ports.PlaceholderRenderer. The image uses the
// same density as a rendered formula so both size alike on the slide.
func (p *PlaceholderRenderer) RenderPlaceholder(latex string, scale float64) (*ports.RenderedFormula, error) {
	if scale <= 0 || math.IsNaN(scale) || math.IsInf(scale, 0) {
		return nil, fmt.Errorf("invalid scale %v", scale)
	}

	label := placeholderLabel(latex)
	sizePx := placeholderPointSize * p.dpiPerScale * scale / 72

	face := truetype.NewFace(p.font, &truetype.Options{Size: sizePx})
	defer func() { _ = face.Close() }()

	measure := gg.NewContext(1, 1)
	measure.SetFontFace(face)
	textW, textH := measure.MeasureString(label)

	pad := sizePx * placeholderPadding
	width := int(math.Ceil(textW + 2*pad))
	height := int(math.Ceil(textH + 2*pad))

	dc := gg.NewContext(width, height)
	dc.SetColor(color.RGBA{255, 244, 229, 255}) // Pale amber
	dc.Clear()

	dc.SetColor(color.RGBA{204, 102, 0, 255})
	dc.SetLineWidth(math.Max(1, sizePx/16))
	dc.DrawRectangle(0.5, 0.5, float64(width)-1, float64(height)-1)
	dc.Stroke()

	dc.SetFontFace(face)
	dc.SetColor(color.RGBA{102, 51, 0, 255})
	dc.DrawStringAnchored(label, float64(width)/2, float64(height)/2, 0.5, 0.5)

	var buf bytes.Buffer
	if err := png.Encode(&buf, dc.Image()); err != nil {
		return nil, fmt.Errorf("encoding placeholder PNG: %w", err)
	}

	return &ports.RenderedFormula{PNG: buf.Bytes(), Width: width, Height: height}, nil
}

func placeholderLabel(latex string) string {
	latex = strings.Join(strings.Fields(latex), " ")
	if latex == "" {
		return "[empty formula]"
	}
	if utf8.RuneCountInString(latex) > placeholderMaxRunes {
		runes := []rune(latex)
		latex = string(runes[:placeholderMaxRunes-1]) + "…"
	}
	return "$" + latex + "$"
}

// Ensure PlaceholderRenderer implements ports.PlaceholderRenderer
var _ ports.PlaceholderRenderer = (*PlaceholderRenderer)(nil)
