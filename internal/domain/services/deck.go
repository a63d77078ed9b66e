package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/fredcamaral/texdeck/internal/domain/entities"
	"github.com/fredcamaral/texdeck/internal/domain/ports"
)

// DeckService runs the generation pipeline: extract, segment, tokenize,
// rasterize, lay out, assemble and serialize. Slides, series and runs are
// processed strictly in order; nothing is shared between calls except
// read-only configuration.
type DeckService struct {
	config    *entities.Config
	extractor ports.ContentExtractor
	segmenter *Segmenter
	tokenizer *Tokenizer
	formulas  *FormulaMeasurer
	assembler *SlideAssembler
	factories map[entities.OutputFormat]ports.DocumentFactory
	assets    ports.AssetFetcher
	stats     ports.StatsRecorder
	clock     ports.TimeProvider
	logger    *slog.Logger
}

// NewDeckService creates the deck generation service
func NewDeckService(
	config *entities.Config,
	extractor ports.ContentExtractor,
	formulas *FormulaMeasurer,
	assembler *SlideAssembler,
	factories []ports.DocumentFactory,
	logger *slog.Logger,
) *DeckService {
	if logger == nil {
		logger = slog.Default()
	}

	registry := make(map[entities.OutputFormat]ports.DocumentFactory, len(factories))
	for _, f := range factories {
		registry[f.Format()] = f
	}

	return &DeckService{
		config:    config,
		extractor: extractor,
		segmenter: NewSegmenter(),
		tokenizer: NewTokenizer(),
		formulas:  formulas,
		assembler: assembler,
		factories: registry,
		clock:     ports.NewRealTimeProvider(),
		logger:    logger.With("service", "deck"),
	}
}

// SetAssetFetcher sets the resolver for template background images
func (s *DeckService) SetAssetFetcher(fetcher ports.AssetFetcher) {
	s.assets = fetcher
}

// SetStatsRecorder sets the generation statistics sink
func (s *DeckService) SetStatsRecorder(stats ports.StatsRecorder) {
	s.stats = stats
}

// SetTimeProvider replaces the clock used for progress timestamps and timings
func (s *DeckService) SetTimeProvider(clock ports.TimeProvider) {
	s.clock = clock
}

// SupportedFormats lists the output formats with a registered builder
func (s *DeckService) SupportedFormats() []entities.OutputFormat {
	formats := make([]entities.OutputFormat, 0, len(s.factories))
	for f := range s.factories {
		formats = append(formats, f)
	}
	sort.Slice(formats, func(i, j int) bool { return formats[i] < formats[j] })
	return formats
}

// Generate builds and serializes a deck. Any fatal error aborts the whole
// document; per-formula failures follow the configured policy and only
// surface in logs, progress events and GeneratedDeck.Failures.
func (s *DeckService) Generate(ctx context.Context, req *entities.DeckRequest, format entities.OutputFormat, progress ports.ProgressFunc) (*entities.GeneratedDeck, error) {
	start := s.clock.Now()
	run := &generation{service: s, id: uuid.New().String(), progress: progress}

	deck, err := run.execute(ctx, req, format)

	if s.stats != nil {
		s.stats.RecordDeck(run.slides, run.formulas, len(run.failures), s.clock.Since(start), err)
	}

	if err != nil {
		s.logger.Error("Deck generation failed",
			slog.String("deck_id", run.id),
			slog.String("error", err.Error()),
		)
		return nil, err
	}

	s.logger.Info("Deck generated",
		slog.String("deck_id", run.id),
		slog.String("format", string(format)),
		slog.Int("slides", deck.Slides),
		slog.Int("formulas", deck.Formulas),
		slog.Int("formula_failures", len(deck.Failures)),
		slog.Int("bytes", len(deck.Data)),
		slog.Duration("elapsed", s.clock.Since(start)),
	)
	return deck, nil
}

// generation holds the per-request state of one Generate call
type generation struct {
	service  *DeckService
	id       string
	progress ports.ProgressFunc
	total    int
	slides   int
	formulas int
	failures []error
}

func (g *generation) execute(ctx context.Context, req *entities.DeckRequest, format entities.OutputFormat) (*entities.GeneratedDeck, error) {
	s := g.service

	if err := req.Validate(s.config.Generation.GetMaxSlides()); err != nil {
		return nil, err
	}

	factory, ok := s.factories[format]
	if !ok {
		return nil, &entities.ValidationError{Field: "format", Reason: fmt.Sprintf("no builder registered for %q", format)}
	}

	g.total = len(req.Slides)
	g.emit(ports.ProgressStarted, 0, "")

	builder, err := factory.NewDocument(ports.DocumentMeta{
		Title:       strings.TrimSpace(req.Slides[0].Title),
		Author:      s.config.Generation.Author,
		SlideWidth:  s.config.Layout.SlideWidth,
		SlideHeight: s.config.Layout.SlideHeight,
		Background:  g.background(ctx, req.Template.BackgroundImage),
	})
	if err != nil {
		return nil, fmt.Errorf("creating %s document: %w", format, err)
	}

	font := strings.TrimSpace(req.Template.FontFamily)
	if font == "" {
		font = s.config.Generation.GetDefaultFontFamily()
	}

	var slideErrs []error
	for i, input := range req.Slides {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		g.emit(ports.ProgressSlideStarted, i, "")

		slide, measured, err := g.prepareSlide(ctx, i, input)
		if err != nil {
			return nil, err
		}

		if _, err := s.assembler.Assemble(builder, i, slide, measured, font); err != nil {
			var assemblyErr *entities.SlideAssemblyError
			if !errors.As(err, &assemblyErr) {
				return nil, err
			}
			s.logger.Warn("Slide assembly failed",
				slog.String("deck_id", g.id),
				slog.Int("slide", assemblyErr.SlideIndex),
				slog.Int("run", assemblyErr.RunIndex),
				slog.String("error", assemblyErr.Err.Error()),
			)
			slideErrs = append(slideErrs, err)
			g.emit(ports.ProgressSlideFailed, i, err.Error())
			continue
		}

		g.slides++
		g.emit(ports.ProgressSlideDone, i, "")
	}

	if len(slideErrs) > 0 && !s.config.Generation.AllowPartial {
		return nil, fmt.Errorf("deck %s: %w", g.id, errors.Join(slideErrs...))
	}

	data, err := builder.Serialize()
	if err != nil {
		return nil, &entities.DocumentSerializationError{Format: format, Err: err}
	}

	g.emit(ports.ProgressCompleted, g.total, "")

	return &entities.GeneratedDeck{
		ID:       g.id,
		Format:   format,
		Data:     data,
		Slides:   g.slides,
		Formulas: g.formulas,
		Failures: append(g.failures, slideErrs...),
	}, nil
}

// prepareSlide turns one slide's markup into measured series
func (g *generation) prepareSlide(ctx context.Context, index int, input entities.SlideInput) (entities.Slide, []entities.MeasuredSeries, error) {
	s := g.service

	text, err := s.extractor.Extract(input.Content, input.Format())
	if err != nil {
		// Extraction never aborts a slide; fall back to the tag-stripped content.
		s.logger.Warn("Content extraction failed, using sanitized content",
			slog.String("deck_id", g.id),
			slog.Int("slide", index),
			slog.String("error", err.Error()),
		)
		text = s.extractor.Fallback(input.Content)
	}

	slide := entities.Slide{
		Title:    input.Title,
		SubTitle: input.SubTitle,
		Series:   s.segmenter.Series(text, s.tokenizer),
	}

	measured := make([]entities.MeasuredSeries, 0, len(slide.Series))
	for _, series := range slide.Series {
		ms := entities.MeasuredSeries{Index: series.Index, Runs: make([]entities.MeasuredRun, 0, len(series.Runs))}
		for _, run := range series.Runs {
			if run.Kind != entities.RunFormula {
				ms.Runs = append(ms.Runs, entities.MeasuredRun{Run: run})
				continue
			}

			g.formulas++
			mr, keep, err := g.measureFormula(ctx, index, run)
			if err != nil {
				return entities.Slide{}, nil, err
			}
			if keep {
				ms.Runs = append(ms.Runs, mr)
			}
		}
		measured = append(measured, ms)
	}

	return slide, measured, nil
}

// measureFormula applies the configured failure policy. keep is false when
// the run should be dropped from the layout.
func (g *generation) measureFormula(ctx context.Context, index int, run entities.Run) (entities.MeasuredRun, bool, error) {
	s := g.service

	mr, err := s.formulas.Measure(ctx, run)
	if err == nil {
		return mr, true, nil
	}

	if ctxErr := ctx.Err(); ctxErr != nil {
		return entities.MeasuredRun{}, false, ctxErr
	}

	var renderErr *entities.FormulaRenderError
	if !errors.As(err, &renderErr) {
		return entities.MeasuredRun{}, false, err
	}

	g.failures = append(g.failures, err)
	g.emit(ports.ProgressFormulaFailed, index, err.Error())

	policy := s.config.Rasterizer.GetOnError()
	s.logger.Warn("Formula render failed",
		slog.String("deck_id", g.id),
		slog.Int("slide", index),
		slog.String("latex", renderErr.Latex),
		slog.String("policy", policy),
		slog.String("error", renderErr.Err.Error()),
	)

	switch policy {
	case entities.OnErrorAbort:
		return entities.MeasuredRun{}, false, err
	case entities.OnErrorSkip:
		return entities.MeasuredRun{}, false, nil
	}

	placeholder, perr := s.formulas.Placeholder(run)
	if perr != nil {
		s.logger.Warn("Placeholder unavailable, skipping formula",
			slog.String("deck_id", g.id),
			slog.Int("slide", index),
			slog.String("error", perr.Error()),
		)
		return entities.MeasuredRun{}, false, nil
	}
	return placeholder, true, nil
}

// background resolves the template image once per deck. Failures only cost the background.
func (g *generation) background(ctx context.Context, ref string) *ports.Asset {
	s := g.service
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil
	}

	if s.assets == nil {
		s.logger.Warn("Background image ignored, no asset fetcher configured", slog.String("ref", ref))
		return nil
	}

	asset, err := s.assets.Fetch(ctx, ref)
	if err != nil {
		s.logger.Warn("Background image unavailable",
			slog.String("deck_id", g.id),
			slog.String("ref", ref),
			slog.String("error", err.Error()),
		)
		return nil
	}
	return asset
}

func (g *generation) emit(kind ports.ProgressEventType, slide int, message string) {
	if g.progress == nil {
		return
	}
	g.progress(ports.ProgressEvent{
		Type:      kind,
		DeckID:    g.id,
		Slide:     slide,
		Total:     g.total,
		Message:   message,
		Timestamp: g.service.clock.Now(),
	})
}
