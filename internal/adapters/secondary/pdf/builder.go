// Package pdf renders decks as one-page-per-slide PDF handouts.
package pdf

import (
	"bytes"
	"errors"
	"fmt"
	"image/png"
	"strconv"
	"strings"

	"github.com/jung-kurt/gofpdf/v2"

	"github.com/fredcamaral/texdeck/internal/domain/entities"
	"github.com/fredcamaral/texdeck/internal/domain/ports"
)

const (
	pointsPerInch = 72.0
	lineSpacing   = 1.2
	backgroundKey = "background"
)

// ErrNoPage is returned when content is added before the first AddSlide
var ErrNoPage = errors.New("no page started")

// Factory creates PDF builders
type Factory struct {
	clock ports.TimeProvider
}

// NewFactory creates a PDF document factory
func NewFactory(clock ports.TimeProvider) *Factory {
	if clock == nil {
		clock = ports.NewRealTimeProvider()
	}
	return &Factory{clock: clock}
}

// Format implements ports.DocumentFactory
func (f *Factory) Format() entities.OutputFormat {
	return entities.OutputFormatPDF
}

// NewDocument implements ports.DocumentFactory
func (f *Factory) NewDocument(meta ports.DocumentMeta) (ports.DocumentBuilder, error) {
	return NewBuilder(meta, f.clock)
}

// Builder draws slides onto gofpdf pages using inch units, so layout
// coordinates map one to one
type Builder struct {
	pdf        *gofpdf.Fpdf
	meta       ports.DocumentMeta
	translate  func(string) string
	background *gofpdf.ImageOptions
	images     int
}

// NewBuilder creates a builder with a page size equal to the slide size
func NewBuilder(meta ports.DocumentMeta, clock ports.TimeProvider) (*Builder, error) {
	if meta.SlideWidth <= 0 || meta.SlideHeight <= 0 {
		return nil, fmt.Errorf("slide size %.2fx%.2f in must be positive", meta.SlideWidth, meta.SlideHeight)
	}
	if clock == nil {
		clock = ports.NewRealTimeProvider()
	}

	orientation := "L"
	if meta.SlideHeight > meta.SlideWidth {
		orientation = "P"
	}

	pdf := gofpdf.NewCustom(&gofpdf.InitType{
		OrientationStr: orientation,
		UnitStr:        "in",
		Size:           gofpdf.SizeType{Wd: meta.SlideWidth, Ht: meta.SlideHeight},
	})
	pdf.SetMargins(0, 0, 0)
	pdf.SetAutoPageBreak(false, 0)
	pdf.SetCellMargin(0)
	pdf.SetTitle(meta.Title, true)
	pdf.SetAuthor(meta.Author, true)
	pdf.SetCreator("texdeck", true)
	pdf.SetCreationDate(clock.Now())
	pdf.SetCatalogSort(true)

	b := &Builder{
		pdf:       pdf,
		meta:      meta,
		translate: pdf.UnicodeTranslatorFromDescriptor(""),
	}

	if bg := meta.Background; bg != nil && len(bg.Data) > 0 {
		opts := gofpdf.ImageOptions{ImageType: imageType(bg.ContentType)}
		pdf.RegisterImageOptionsReader(backgroundKey, opts, bytes.NewReader(bg.Data))
		if err := pdf.Error(); err != nil {
			return nil, fmt.Errorf("registering background: %w", err)
		}
		b.background = &opts
	}

	return b, nil
}

// AddSlide implements ports.DocumentBuilder
func (b *Builder) AddSlide() error {
	b.pdf.AddPage()
	if b.background != nil {
		b.pdf.ImageOptions(backgroundKey, 0, 0, b.meta.SlideWidth, b.meta.SlideHeight, false, *b.background, 0, "")
	}
	return b.pdf.Error()
}

// AddText implements ports.DocumentBuilder
func (b *Builder) AddText(text string, box entities.PositionedBox, style entities.TextStyle) error {
	if b.pdf.PageCount() == 0 {
		return ErrNoPage
	}
	if err := box.CheckBounds(); err != nil {
		return err
	}
	if style.FontSize <= 0 {
		return fmt.Errorf("font size %.2fpt must be positive", style.FontSize)
	}

	r, g, bl, err := parseColor(style.Color)
	if err != nil {
		return err
	}

	b.pdf.SetFont(coreFont(style.FontFamily), fontStyle(style), style.FontSize)
	b.pdf.SetTextColor(r, g, bl)
	b.pdf.SetXY(box.X, box.Y)

	text = b.translate(text)
	lineHeight := style.FontSize / pointsPerInch * lineSpacing
	if style.Wrap {
		b.pdf.MultiCell(box.Width, lineHeight, text, "", "L", false)
	} else {
		b.pdf.CellFormat(box.Width, lineHeight, text, "", 0, "LT", false, 0, "")
	}

	return b.pdf.Error()
}

// AddImage implements ports.DocumentBuilder
func (b *Builder) AddImage(data []byte, box entities.PositionedBox) error {
	if b.pdf.PageCount() == 0 {
		return ErrNoPage
	}
	if err := box.CheckBounds(); err != nil {
		return err
	}
	if _, err := png.DecodeConfig(bytes.NewReader(data)); err != nil {
		return fmt.Errorf("image is not a valid PNG: %w", err)
	}

	b.images++
	name := "formula-" + strconv.Itoa(b.images)
	opts := gofpdf.ImageOptions{ImageType: "PNG"}

	b.pdf.RegisterImageOptionsReader(name, opts, bytes.NewReader(data))
	b.pdf.ImageOptions(name, box.X, box.Y, box.Width, box.Height, false, opts, 0, "")

	return b.pdf.Error()
}

// PageCount returns the number of pages drawn so far
func (b *Builder) PageCount() int {
	return b.pdf.PageCount()
}

// Serialize implements ports.DocumentBuilder
func (b *Builder) Serialize() ([]byte, error) {
	var buf bytes.Buffer
	if err := b.pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("writing PDF: %w", err)
	}
	return buf.Bytes(), nil
}

// coreFont maps a family name onto the nearest PDF base font
func coreFont(family string) string {
	f := strings.ToLower(family)
	switch {
	case strings.Contains(f, "mono"), strings.Contains(f, "courier"), strings.Contains(f, "consolas"):
		return "Courier"
	case strings.Contains(f, "times"), strings.Contains(f, "georgia"), strings.Contains(f, "serif") && !strings.Contains(f, "sans"):
		return "Times"
	default:
		return "Helvetica"
	}
}

func fontStyle(style entities.TextStyle) string {
	s := ""
	if style.Bold {
		s += "B"
	}
	if style.Italic {
		s += "I"
	}
	return s
}

func parseColor(hex string) (int, int, int, error) {
	hex = strings.TrimPrefix(hex, "#")
	if hex == "" {
		return 0, 0, 0, nil
	}
	if len(hex) != 6 {
		return 0, 0, 0, fmt.Errorf("invalid color %q", hex)
	}
	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("invalid color %q: %w", hex, err)
	}
	return int(v >> 16 & 0xFF), int(v >> 8 & 0xFF), int(v & 0xFF), nil
}

func imageType(contentType string) string {
	switch contentType {
	case "image/jpeg":
		return "JPG"
	case "image/gif":
		return "GIF"
	default:
		return "PNG"
	}
}

// Ensure interface compliance
var (
	_ ports.DocumentFactory = (*Factory)(nil)
	_ ports.DocumentBuilder = (*Builder)(nil)
)
