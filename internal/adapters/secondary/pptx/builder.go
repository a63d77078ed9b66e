// Package pptx writes PresentationML (.pptx) packages.
package pptx

import (
	"archive/zip"
	"bytes"
	"errors"
	"fmt"
	"image/png"
	"math"
	"strings"
	"time"

	"github.com/fredcamaral/texdeck/internal/domain/entities"
	"github.com/fredcamaral/texdeck/internal/domain/ports"
)

const (
	emuPerInch = 914400

	// PowerPoint accepts slide edges between 1 and 56 inches
	minSlideInches = 1.0
	maxSlideInches = 56.0

	firstSlideID = 256
	application  = "texdeck"
)

var (
	// ErrNoSlide is returned when content is added before the first AddSlide
	ErrNoSlide = errors.New("no slide started")
	// ErrNotPNG is returned for image bytes that are not a decodable PNG
	ErrNotPNG = errors.New("image is not a valid PNG")
)

// Factory creates PPTX builders
type Factory struct {
	clock ports.TimeProvider
}

// NewFactory creates a PPTX document factory
func NewFactory(clock ports.TimeProvider) *Factory {
	if clock == nil {
		clock = ports.NewRealTimeProvider()
	}
	return &Factory{clock: clock}
}

// Format implements ports.DocumentFactory
func (f *Factory) Format() entities.OutputFormat {
	return entities.OutputFormatPPTX
}

// NewDocument implements ports.DocumentFactory
func (f *Factory) NewDocument(meta ports.DocumentMeta) (ports.DocumentBuilder, error) {
	return NewBuilder(meta, f.clock)
}

// Builder accumulates slides in memory and writes the package on Serialize
type Builder struct {
	meta       ports.DocumentMeta
	clock      ports.TimeProvider
	slides     []*slidePart
	media      []mediaFile
	background string
}

type slidePart struct {
	shapes []shape
	rels   []mediaRel
}

type shape struct {
	ID      int
	Picture bool
	RelID   string
	Text    string
	X, Y    int64
	CX, CY  int64
	Size    int
	Bold    bool
	Italic  bool
	Wrap    bool
	Color   string
	Font    string
}

type mediaRel struct {
	RelID string
	Name  string
}

type mediaFile struct {
	name string
	data []byte
}

// NewBuilder creates a builder for one presentation
func NewBuilder(meta ports.DocumentMeta, clock ports.TimeProvider) (*Builder, error) {
	for _, v := range []float64{meta.SlideWidth, meta.SlideHeight} {
		if math.IsNaN(v) || v < minSlideInches || v > maxSlideInches {
			return nil, fmt.Errorf("slide size %.2fx%.2f in is outside %.0f-%.0f in", meta.SlideWidth, meta.SlideHeight, minSlideInches, maxSlideInches)
		}
	}
	if clock == nil {
		clock = ports.NewRealTimeProvider()
	}

	b := &Builder{meta: meta, clock: clock}

	if bg := meta.Background; bg != nil && len(bg.Data) > 0 {
		b.background = "background." + bg.Extension()
		b.media = append(b.media, mediaFile{name: b.background, data: bg.Data})
	}

	return b, nil
}

// AddSlide implements ports.DocumentBuilder
func (b *Builder) AddSlide() error {
	s := &slidePart{}
	if b.background != "" {
		s.rels = append(s.rels, mediaRel{RelID: "rId2", Name: b.background})
	}
	b.slides = append(b.slides, s)
	return nil
}

// AddText implements ports.DocumentBuilder
func (b *Builder) AddText(text string, box entities.PositionedBox, style entities.TextStyle) error {
	s, err := b.current()
	if err != nil {
		return err
	}
	if err := box.CheckBounds(); err != nil {
		return err
	}

	size := int(math.Round(style.FontSize * 100))
	if size < 100 || size > 400000 {
		return fmt.Errorf("font size %.2fpt out of range", style.FontSize)
	}

	color := strings.ToUpper(strings.TrimPrefix(style.Color, "#"))
	if color == "" {
		color = "000000"
	}
	if !isHex(color) {
		return fmt.Errorf("invalid color %q", style.Color)
	}

	font := style.FontFamily
	if strings.TrimSpace(font) == "" {
		font = "Arial"
	}

	sh := b.place(s, box)
	sh.Text = text
	sh.Size = size
	sh.Bold = style.Bold
	sh.Italic = style.Italic
	sh.Wrap = style.Wrap
	sh.Color = color
	sh.Font = font
	s.shapes = append(s.shapes, sh)
	return nil
}

// AddImage implements ports.DocumentBuilder
func (b *Builder) AddImage(data []byte, box entities.PositionedBox) error {
	s, err := b.current()
	if err != nil {
		return err
	}
	if err := box.CheckBounds(); err != nil {
		return err
	}
	if _, err := png.DecodeConfig(bytes.NewReader(data)); err != nil {
		return fmt.Errorf("%w: %v", ErrNotPNG, err)
	}

	name := fmt.Sprintf("image%d.png", len(b.media)+1)
	b.media = append(b.media, mediaFile{name: name, data: data})

	rel := mediaRel{RelID: fmt.Sprintf("rId%d", len(s.rels)+2), Name: name}
	s.rels = append(s.rels, rel)

	sh := b.place(s, box)
	sh.Picture = true
	sh.RelID = rel.RelID
	sh.Text = box.Latex
	s.shapes = append(s.shapes, sh)
	return nil
}

func (b *Builder) current() (*slidePart, error) {
	if len(b.slides) == 0 {
		return nil, ErrNoSlide
	}
	return b.slides[len(b.slides)-1], nil
}

// place assigns the next shape id; id 1 is the slide's group shape
func (b *Builder) place(s *slidePart, box entities.PositionedBox) shape {
	return shape{
		ID: len(s.shapes) + 2,
		X:  emu(box.X),
		Y:  emu(box.Y),
		CX: emu(box.Width),
		CY: emu(box.Height),
	}
}

// SlideCount returns the number of slides added so far
func (b *Builder) SlideCount() int {
	return len(b.slides)
}

type slideRef struct {
	Number int
	ID     int
	RelID  string
}

// Serialize implements ports.DocumentBuilder
func (b *Builder) Serialize() ([]byte, error) {
	refs := make([]slideRef, len(b.slides))
	for i := range b.slides {
		refs[i] = slideRef{Number: i + 1, ID: firstSlideID + i, RelID: fmt.Sprintf("rId%d", i+2)}
	}
	n := len(b.slides)
	now := b.clock.Now().UTC()

	pkg := &packageWriter{modified: now}
	pkg.buf = &bytes.Buffer{}
	pkg.zw = zip.NewWriter(pkg.buf)

	pkg.render("[Content_Types].xml", "content_types", map[string]interface{}{"Slides": refs})
	pkg.render("_rels/.rels", "root_rels", nil)
	pkg.render("docProps/core.xml", "core", map[string]interface{}{
		"Title":   b.meta.Title,
		"Author":  b.meta.Author,
		"Created": now.Format("2006-01-02T15:04:05Z"),
	})
	pkg.render("docProps/app.xml", "app", map[string]interface{}{
		"Application": application,
		"Slides":      refs,
	})
	pkg.render("ppt/presentation.xml", "presentation", map[string]interface{}{
		"Slides": refs,
		"Width":  emu(b.meta.SlideWidth),
		"Height": emu(b.meta.SlideHeight),
	})
	pkg.render("ppt/_rels/presentation.xml.rels", "presentation_rels", map[string]interface{}{
		"Slides":         refs,
		"PresPropsRel":   fmt.Sprintf("rId%d", n+2),
		"ViewPropsRel":   fmt.Sprintf("rId%d", n+3),
		"ThemeRel":       fmt.Sprintf("rId%d", n+4),
		"TableStylesRel": fmt.Sprintf("rId%d", n+5),
	})
	pkg.render("ppt/presProps.xml", "pres_props", nil)
	pkg.render("ppt/viewProps.xml", "view_props", nil)
	pkg.render("ppt/tableStyles.xml", "table_styles", nil)
	pkg.write("ppt/theme/theme1.xml", []byte(themeXML))
	pkg.render("ppt/slideMasters/slideMaster1.xml", "slide_master", nil)
	pkg.render("ppt/slideMasters/_rels/slideMaster1.xml.rels", "slide_master_rels", nil)
	pkg.render("ppt/slideLayouts/slideLayout1.xml", "slide_layout", nil)
	pkg.render("ppt/slideLayouts/_rels/slideLayout1.xml.rels", "slide_layout_rels", nil)

	for i, s := range b.slides {
		backgroundRel := ""
		if b.background != "" {
			backgroundRel = "rId2"
		}
		pkg.render(fmt.Sprintf("ppt/slides/slide%d.xml", i+1), "slide", map[string]interface{}{
			"BackgroundRel": backgroundRel,
			"Shapes":        s.shapes,
		})
		pkg.render(fmt.Sprintf("ppt/slides/_rels/slide%d.xml.rels", i+1), "slide_rels", map[string]interface{}{
			"Media": s.rels,
		})
	}

	for _, m := range b.media {
		pkg.write("ppt/media/"+m.name, m.data)
	}

	return pkg.close()
}

// packageWriter records the first error so the part list reads straight through
type packageWriter struct {
	buf      *bytes.Buffer
	zw       *zip.Writer
	modified time.Time
	err      error
}

func (p *packageWriter) render(name, tmpl string, data interface{}) {
	if p.err != nil {
		return
	}
	content, err := renderPart(tmpl, data)
	if err != nil {
		p.err = err
		return
	}
	p.write(name, content)
}

func (p *packageWriter) write(name string, data []byte) {
	if p.err != nil {
		return
	}
	w, err := p.zw.CreateHeader(&zip.FileHeader{
		Name:     name,
		Method:   zip.Deflate,
		Modified: p.modified,
	})
	if err != nil {
		p.err = fmt.Errorf("creating %s: %w", name, err)
		return
	}
	if _, err := w.Write(data); err != nil {
		p.err = fmt.Errorf("writing %s: %w", name, err)
	}
}

func (p *packageWriter) close() ([]byte, error) {
	if p.err != nil {
		return nil, p.err
	}
	if err := p.zw.Close(); err != nil {
		return nil, fmt.Errorf("closing package: %w", err)
	}
	return p.buf.Bytes(), nil
}

func emu(inches float64) int64 {
	return int64(math.Round(inches * emuPerInch))
}

func isHex(s string) bool {
	if len(s) != 6 {
		return false
	}
	for _, r := range s {
		if !strings.ContainsRune("0123456789ABCDEF", r) {
			return false
		}
	}
	return true
}

// Ensure interface compliance
var (
	_ ports.DocumentFactory = (*Factory)(nil)
	_ ports.DocumentBuilder = (*Builder)(nil)
)
