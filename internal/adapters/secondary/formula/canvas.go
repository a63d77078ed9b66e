// Package formula rasterizes LaTeX formulas into PNG images.
package formula

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"
	"log/slog"
	"math"
	"strings"

	"github.com/nfnt/resize"
	"github.com/tdewolff/canvas"
	"github.com/tdewolff/canvas/renderers/rasterizer"

	"github.com/fredcamaral/texdeck/internal/domain/entities"
	"github.com/fredcamaral/texdeck/internal/domain/ports"
)

const (
	// formulaMarginMM pads the fitted formula so antialiasing is not clipped
	formulaMarginMM = 0.5
	mmPerInch       = 25.4
)

// ErrEmptyImage is returned when a formula rasterizes to nothing visible
var ErrEmptyImage = errors.New("formula produced an empty image")

// CanvasOptions controls raster density
type CanvasOptions struct {
	// DPIPerScale is the logical density contributed by one unit of scale
	DPIPerScale float64
	// Oversample renders at a multiple of the logical density for sharper output
	Oversample float64
	// TargetWidthPx resamples the embedded PNG to this width when positive.
	// Reported dimensions stay logical so the layout is unaffected.
	TargetWidthPx int
}

// OptionsFromConfig derives canvas options from the rasterizer configuration
func OptionsFromConfig(cfg entities.RasterizerConfig) CanvasOptions {
	return CanvasOptions{
		DPIPerScale:   cfg.DPIPerScale,
		Oversample:    cfg.Oversample,
		TargetWidthPx: cfg.TargetWidthPx,
	}
}

// CanvasRenderer implements ports.FormulaRenderer with the tdewolff/canvas LaTeX typesetter
type CanvasRenderer struct {
	opts   CanvasOptions
	logger *slog.Logger
}

// NewCanvasRenderer creates a formula renderer
func NewCanvasRenderer(opts CanvasOptions, logger *slog.Logger) *CanvasRenderer {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.DPIPerScale <= 0 {
		opts.DPIPerScale = 28
	}
	if opts.Oversample < 1 {
		opts.Oversample = 1
	}
	return &CanvasRenderer{
		opts:   opts,
		logger: logger.With("component", "formula_renderer"),
	}
}

type renderResult struct {
	formula *ports.RenderedFormula
	err     error
}

// Render typesets latex and rasterizes it at scale. The typesetter cannot be
// interrupted, so a cancelled context abandons the worker goroutine.
func (r *CanvasRenderer) Render(ctx context.Context, latex string, scale float64) (*ports.RenderedFormula, error) {
	latex = strings.TrimSpace(latex)
	if latex == "" {
		return nil, errors.New("empty formula")
	}
	if scale <= 0 || math.IsNaN(scale) || math.IsInf(scale, 0) {
		return nil, fmt.Errorf("invalid scale %v", scale)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	done := make(chan renderResult, 1)
	go func() {
		defer func() {
			if rec := recover(); rec != nil {
				done <- renderResult{err: fmt.Errorf("typesetter panic: %v", rec)}
			}
		}()
		f, err := r.render(latex, scale)
		done <- renderResult{formula: f, err: err}
	}()

	select {
	case <-ctx.Done():
		r.logger.Debug("Formula render abandoned",
			slog.String("latex", latex),
			slog.String("error", ctx.Err().Error()),
		)
		return nil, ctx.Err()
	case res := <-done:
		return res.formula, res.err
	}
}

func (r *CanvasRenderer) render(latex string, scale float64) (*ports.RenderedFormula, error) {
	path, err := canvas.ParseLaTeX(latex)
	if err != nil {
		return nil, fmt.Errorf("parsing LaTeX: %w", err)
	}
	if path == nil || path.Empty() {
		return nil, ErrEmptyImage
	}

	c := canvas.New(0, 0)
	ctx := canvas.NewContext(c)
	ctx.SetFillColor(canvas.Black)
	ctx.DrawPath(0, 0, path)
	c.Fit(formulaMarginMM)

	logicalDPI := r.opts.DPIPerScale * scale
	img := rasterizer.Draw(c, canvas.DPMM(logicalDPI*r.opts.Oversample/mmPerInch), canvas.DefaultColorSpace)

	bounds := img.Bounds()
	if bounds.Dx() == 0 || bounds.Dy() == 0 {
		return nil, ErrEmptyImage
	}

	width := int(math.Round(float64(bounds.Dx()) / r.opts.Oversample))
	height := int(math.Round(float64(bounds.Dy()) / r.opts.Oversample))
	if width < 1 || height < 1 {
		return nil, ErrEmptyImage
	}

	var out image.Image = img
	if r.opts.TargetWidthPx > 0 && r.opts.TargetWidthPx != bounds.Dx() {
		out = resize.Resize(uint(r.opts.TargetWidthPx), 0, img, resize.Lanczos3)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, out); err != nil {
		return nil, fmt.Errorf("encoding PNG: %w", err)
	}

	return &ports.RenderedFormula{
		PNG:    buf.Bytes(),
		Width:  width,
		Height: height,
	}, nil
}

// Ensure CanvasRenderer implements ports.FormulaRenderer
var _ ports.FormulaRenderer = (*CanvasRenderer)(nil)
