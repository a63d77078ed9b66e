package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"regexp"
	"strings"

	"github.com/fredcamaral/texdeck/internal/domain/entities"
	"github.com/fredcamaral/texdeck/internal/domain/ports"
)

var errEmptyFormula = errors.New("empty formula")

// FormulaMeasurer rasterizes formula runs and converts them to display sizes
type FormulaMeasurer struct {
	renderer    ports.FormulaRenderer
	placeholder ports.PlaceholderRenderer
	config      entities.RasterizerConfig
	usableWidth float64
	widePattern *regexp.Regexp
	logger      *slog.Logger
}

// NewFormulaMeasurer creates a formula measurer. placeholder may be nil,
// in which case failed formulas cannot be replaced by a stand-in image.
func NewFormulaMeasurer(
	renderer ports.FormulaRenderer,
	placeholder ports.PlaceholderRenderer,
	rasterizer entities.RasterizerConfig,
	layout entities.LayoutConfig,
	logger *slog.Logger,
) *FormulaMeasurer {
	if logger == nil {
		logger = slog.Default()
	}

	keywords := rasterizer.GetWideKeywords()
	quoted := make([]string, len(keywords))
	for i, k := range keywords {
		quoted[i] = regexp.QuoteMeta(k)
	}

	return &FormulaMeasurer{
		renderer:    renderer,
		placeholder: placeholder,
		config:      rasterizer,
		usableWidth: layout.UsableWidth(),
		widePattern: regexp.MustCompile(`\\(?:` + strings.Join(quoted, "|") + `)`),
		logger:      logger.With("service", "formula_measurer"),
	}
}

// Scale returns the rendering scale for a formula: the base scale plus one
// per wide construct plus a capped length term, floored at the minimum.
func (m *FormulaMeasurer) Scale(latex string) float64 {
	wide := float64(len(m.widePattern.FindAllStringIndex(latex, -1)))
	length := math.Min(float64(len(latex))/m.config.LengthDivisor, m.config.MaxLengthBonus)
	return math.Max(m.config.MinScale, m.config.BaseScale+wide+length)
}

// Measure renders a formula run and sizes it for layout. Any renderer
// failure, including the per-formula timeout, is a *entities.FormulaRenderError.
func (m *FormulaMeasurer) Measure(ctx context.Context, run entities.Run) (entities.MeasuredRun, error) {
	if run.Kind != entities.RunFormula {
		return entities.MeasuredRun{Run: run}, nil
	}

	if strings.TrimSpace(run.Latex) == "" {
		return entities.MeasuredRun{}, &entities.FormulaRenderError{Latex: run.Latex, Err: errEmptyFormula}
	}

	scale := m.Scale(run.Latex) * m.config.ResolutionMultiplier

	renderCtx, cancel := context.WithTimeout(ctx, m.config.GetTimeout())
	defer cancel()

	rendered, err := m.renderer.Render(renderCtx, run.Latex, scale)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			err = fmt.Errorf("timed out after %v: %w", m.config.GetTimeout(), err)
		}
		return entities.MeasuredRun{}, &entities.FormulaRenderError{Latex: run.Latex, Err: err}
	}

	measured, err := m.fromRendered(run, rendered)
	if err != nil {
		return entities.MeasuredRun{}, &entities.FormulaRenderError{Latex: run.Latex, Err: err}
	}

	m.logger.Debug("Formula rendered",
		slog.String("latex", run.Latex),
		slog.Float64("scale", scale),
		slog.Int("width_px", measured.PixelWidth),
		slog.Int("height_px", measured.PixelHeight),
	)
	return measured, nil
}

// Placeholder produces a stand-in image for a formula that failed to render
func (m *FormulaMeasurer) Placeholder(run entities.Run) (entities.MeasuredRun, error) {
	if m.placeholder == nil {
		return entities.MeasuredRun{}, errors.New("no placeholder renderer configured")
	}

	rendered, err := m.placeholder.RenderPlaceholder(run.Latex, m.Scale(run.Latex)*m.config.ResolutionMultiplier)
	if err != nil {
		return entities.MeasuredRun{}, fmt.Errorf("rendering placeholder: %w", err)
	}

	measured, err := m.fromRendered(run, rendered)
	if err != nil {
		return entities.MeasuredRun{}, err
	}
	measured.Placeholder = true
	return measured, nil
}

// DisplaySize converts pixel dimensions to inches, capping the width at a
// fraction of the usable line and enforcing the minimum width. Both
// adjustments keep the aspect ratio.
func (m *FormulaMeasurer) DisplaySize(widthPx, heightPx int) (float64, float64) {
	width := float64(widthPx) / m.config.PixelDensity
	height := float64(heightPx) / m.config.PixelDensity

	maxWidth := m.config.MaxWidthFraction * m.usableWidth
	if m.config.MaxDisplayWidth > 0 && m.config.MaxDisplayWidth < maxWidth {
		maxWidth = m.config.MaxDisplayWidth
	}

	if width > maxWidth {
		height *= maxWidth / width
		width = maxWidth
	}

	if width < m.config.MinDisplayWidth {
		height *= m.config.MinDisplayWidth / width
		width = m.config.MinDisplayWidth
	}

	return width, height
}

func (m *FormulaMeasurer) fromRendered(run entities.Run, rendered *ports.RenderedFormula) (entities.MeasuredRun, error) {
	if rendered == nil || len(rendered.PNG) == 0 {
		return entities.MeasuredRun{}, errors.New("renderer returned no image")
	}
	if rendered.Width <= 0 || rendered.Height <= 0 {
		return entities.MeasuredRun{}, fmt.Errorf("renderer returned invalid size %dx%d", rendered.Width, rendered.Height)
	}

	width, height := m.DisplaySize(rendered.Width, rendered.Height)
	return entities.MeasuredRun{
		Run:           run,
		Image:         rendered.PNG,
		PixelWidth:    rendered.Width,
		PixelHeight:   rendered.Height,
		DisplayWidth:  width,
		DisplayHeight: height,
	}, nil
}
