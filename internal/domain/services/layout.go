package services

import (
	"math"
	"strings"
	"unicode/utf8"

	"github.com/fredcamaral/texdeck/internal/domain/entities"
	"github.com/fredcamaral/texdeck/internal/domain/ports"
)

// fitTolerance absorbs float error when a box ends exactly at the right edge
const fitTolerance = 1e-9

type cursorState int

const (
	atLineStart cursorState = iota
	midLine
)

// cursor is the mutable position threaded through one layout pass
type cursor struct {
	x          float64
	y          float64
	lineHeight float64
	state      cursorState
}

// LayoutResult is the output of one layout pass
type LayoutResult struct {
	Boxes []entities.PositionedBox
	EndY  float64
}

// LayoutEngine places measured runs left to right, top to bottom on a
// fixed-width canvas. It is a single forward pass: placed boxes never move.
type LayoutEngine struct {
	config   entities.LayoutConfig
	measurer ports.TextMeasurer
}

// NewLayoutEngine creates a flow layout engine
func NewLayoutEngine(config entities.LayoutConfig, measurer ports.TextMeasurer) *LayoutEngine {
	return &LayoutEngine{
		config:   config,
		measurer: measurer,
	}
}

// Layout places every series starting at startY. Series holding at least one
// image are laid out word by word; text-only series are packed into line chunks.
func (e *LayoutEngine) Layout(series []entities.MeasuredSeries, startY float64, fontFamily string) LayoutResult {
	c := &cursor{x: e.config.LeftMargin, y: startY}
	var boxes []entities.PositionedBox

	for _, s := range series {
		placed := len(boxes)
		mixed := s.HasImage()

		for i, run := range s.Runs {
			switch {
			case run.Kind == entities.RunBreak:
				e.applyBreak(c)
			case run.IsImage():
				boxes = append(boxes, e.placeImage(c, run, nextRun(s.Runs, i), s.Index, i))
			case run.Kind == entities.RunText && mixed:
				boxes = append(boxes, e.placeWords(c, run, s.Index, i, fontFamily)...)
			case run.Kind == entities.RunText:
				boxes = append(boxes, e.placeChunks(c, run, s.Index, i, fontFamily)...)
			}
		}

		if len(boxes) > placed {
			e.endSeries(c)
		}
	}

	return LayoutResult{Boxes: boxes, EndY: c.y}
}

func (e *LayoutEngine) applyBreak(c *cursor) {
	if c.state == midLine {
		c.y += c.lineHeight
	}
	c.y += e.config.BreakSpacing
	e.resetLine(c)
}

func (e *LayoutEngine) endSeries(c *cursor) {
	if c.state == midLine {
		c.y += c.lineHeight
	}
	c.y += e.config.SeriesSpacing
	e.resetLine(c)
}

func (e *LayoutEngine) wrap(c *cursor) {
	c.y += c.lineHeight
	e.resetLine(c)
}

func (e *LayoutEngine) resetLine(c *cursor) {
	c.x = e.config.LeftMargin
	c.lineHeight = 0
	c.state = atLineStart
}

func (e *LayoutEngine) fits(c *cursor, width float64) bool {
	return c.x+width <= e.config.RightEdge()+fitTolerance
}

// occupy records a box of the given height placed offset below the line top
func (e *LayoutEngine) occupy(c *cursor, offset, height float64) {
	c.lineHeight = math.Max(c.lineHeight, math.Max(e.config.TextLineHeight, offset+height))
	c.state = midLine
}

func (e *LayoutEngine) placeWords(c *cursor, run entities.MeasuredRun, series, index int, font string) []entities.PositionedBox {
	words := strings.Fields(run.Value)
	boxes := make([]entities.PositionedBox, 0, len(words))

	for _, word := range words {
		width := e.measurer.MeasureWidth(word, font, e.config.BaseFontSize)
		if c.state == midLine && !e.fits(c, width) {
			e.wrap(c)
		}
		boxes = append(boxes, e.textBox(c, word, width, series, index))
		c.x += width + e.config.InterWordSpacing
	}

	return boxes
}

// placeChunks greedily packs words into the remaining line width and emits
// one box per line-sized chunk. Words inside a chunk are accounted the same
// inter-word spacing as words placed one by one.
func (e *LayoutEngine) placeChunks(c *cursor, run entities.MeasuredRun, series, index int, font string) []entities.PositionedBox {
	words := strings.Fields(run.Value)
	space := e.config.InterWordSpacing
	var boxes []entities.PositionedBox

	for i := 0; i < len(words); {
		first := e.measurer.MeasureWidth(words[i], font, e.config.BaseFontSize)
		if c.state == midLine && !e.fits(c, first) {
			e.wrap(c)
		}

		chunk := []string{words[i]}
		width := first
		i++
		for i < len(words) {
			next := width + space + e.measurer.MeasureWidth(words[i], font, e.config.BaseFontSize)
			if !e.fits(c, next) {
				break
			}
			chunk = append(chunk, words[i])
			width = next
			i++
		}

		boxes = append(boxes, e.textBox(c, strings.Join(chunk, " "), width, series, index))
		c.x += width + e.config.InterWordSpacing

		if i < len(words) {
			e.wrap(c)
		}
	}

	return boxes
}

func (e *LayoutEngine) textBox(c *cursor, content string, width float64, series, index int) entities.PositionedBox {
	box := entities.PositionedBox{
		Kind:        entities.BoxText,
		Content:     content,
		X:           c.x,
		Y:           c.y,
		Width:       width,
		Height:      e.config.TextLineHeight,
		SeriesIndex: series,
		RunIndex:    index,
	}
	e.occupy(c, 0, box.Height)
	return box
}

func (e *LayoutEngine) placeImage(c *cursor, run entities.MeasuredRun, next *entities.MeasuredRun, series, index int) entities.PositionedBox {
	width, height := run.DisplayWidth, run.DisplayHeight
	if c.state == midLine && !e.fits(c, width) {
		e.wrap(c)
	}

	// Short images are centred on the text line; all images get the
	// optical baseline correction, but never above the slide edge.
	offset := math.Max(0, (e.config.TextLineHeight-height)/2) + e.config.ImageBaselineOffset
	if c.y+offset < 0 {
		offset = -c.y
	}

	box := entities.PositionedBox{
		Kind:        entities.BoxImage,
		Image:       run.Image,
		Latex:       run.Latex,
		X:           c.x,
		Y:           c.y + offset,
		Width:       width,
		Height:      height,
		SeriesIndex: series,
		RunIndex:    index,
	}

	e.occupy(c, offset, height)
	c.x += width + e.imageSpacing(next)
	return box
}

// imageSpacing is tighter when the following text opens with closing punctuation
func (e *LayoutEngine) imageSpacing(next *entities.MeasuredRun) float64 {
	if next == nil || next.Kind != entities.RunText {
		return e.config.ImageSpacing
	}
	first, _ := utf8.DecodeRuneInString(next.Value)
	if first != utf8.RuneError && strings.ContainsRune(e.config.ClosingPunctuation, first) {
		return e.config.TightImageSpacing
	}
	return e.config.ImageSpacing
}

func nextRun(runs []entities.MeasuredRun, i int) *entities.MeasuredRun {
	if i+1 < len(runs) {
		return &runs[i+1]
	}
	return nil
}
