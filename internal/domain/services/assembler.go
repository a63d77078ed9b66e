package services

import (
	"log/slog"
	"strings"

	"github.com/fredcamaral/texdeck/internal/domain/entities"
	"github.com/fredcamaral/texdeck/internal/domain/ports"
)

const (
	titleHeight    = 0.6
	subtitleHeight = 0.45
)

// SlideAssembler emits a slide's title, subtitle and laid-out content into a document builder
type SlideAssembler struct {
	layout *LayoutEngine
	config entities.LayoutConfig
	logger *slog.Logger
}

// NewSlideAssembler creates a slide assembler
func NewSlideAssembler(layout *LayoutEngine, config entities.LayoutConfig, logger *slog.Logger) *SlideAssembler {
	if logger == nil {
		logger = slog.Default()
	}
	return &SlideAssembler{
		layout: layout,
		config: config,
		logger: logger.With("service", "slide_assembler"),
	}
}

// Assemble adds one slide to the builder. A rejected box stops the slide and
// returns a *entities.SlideAssemblyError naming the slide and run.
func (a *SlideAssembler) Assemble(builder ports.DocumentBuilder, index int, slide entities.Slide, series []entities.MeasuredSeries, fontFamily string) (LayoutResult, error) {
	if err := builder.AddSlide(); err != nil {
		return LayoutResult{}, &entities.SlideAssemblyError{SlideIndex: index, SeriesIndex: -1, RunIndex: -1, Err: err}
	}

	if err := a.addHeadings(builder, slide, fontFamily); err != nil {
		return LayoutResult{}, &entities.SlideAssemblyError{SlideIndex: index, SeriesIndex: -1, RunIndex: -1, Err: err}
	}

	result := a.layout.Layout(series, a.config.ContentStart(slide.HasSubtitle()), fontFamily)

	body := entities.TextStyle{
		FontFamily: fontFamily,
		FontSize:   a.config.BaseFontSize,
		Color:      a.config.GetTextColor(),
	}

	overflow := false
	for _, box := range result.Boxes {
		var err error
		switch box.Kind {
		case entities.BoxImage:
			err = builder.AddImage(box.Image, box)
		default:
			err = builder.AddText(box.Content, box, body)
		}
		if err != nil {
			return result, &entities.SlideAssemblyError{
				SlideIndex:  index,
				SeriesIndex: box.SeriesIndex,
				RunIndex:    box.RunIndex,
				Err:         err,
			}
		}
		if box.Bottom() > a.config.SlideHeight {
			overflow = true
		}
	}

	if overflow {
		a.logger.Warn("Slide content overflows the bottom edge",
			slog.Int("slide", index),
			slog.Float64("end_y", result.EndY),
			slog.Float64("slide_height", a.config.SlideHeight),
		)
	}

	return result, nil
}

func (a *SlideAssembler) addHeadings(builder ports.DocumentBuilder, slide entities.Slide, fontFamily string) error {
	width := a.config.SlideWidth - a.config.TitleX - a.config.RightMargin

	if title := strings.TrimSpace(slide.Title); title != "" {
		box := entities.PositionedBox{
			Kind:     entities.BoxText,
			Content:  title,
			X:        a.config.TitleX,
			Y:        a.config.TitleY,
			Width:    width,
			Height:   titleHeight,
			RunIndex: -1,
		}
		style := entities.TextStyle{
			FontFamily: fontFamily,
			FontSize:   a.config.TitleFontSize,
			Bold:       true,
			Color:      a.config.GetTitleColor(),
			Wrap:       true,
		}
		if err := builder.AddText(title, box, style); err != nil {
			return err
		}
	}

	if slide.HasSubtitle() {
		subtitle := strings.TrimSpace(slide.SubTitle)
		box := entities.PositionedBox{
			Kind:     entities.BoxText,
			Content:  subtitle,
			X:        a.config.TitleX,
			Y:        a.config.SubtitleY,
			Width:    width,
			Height:   subtitleHeight,
			RunIndex: -1,
		}
		style := entities.TextStyle{
			FontFamily: fontFamily,
			FontSize:   a.config.SubtitleFontSize,
			Italic:     true,
			Color:      a.config.GetTitleColor(),
			Wrap:       true,
		}
		if err := builder.AddText(subtitle, box, style); err != nil {
			return err
		}
	}

	return nil
}
