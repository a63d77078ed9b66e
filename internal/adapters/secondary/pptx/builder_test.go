package pptx

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"image"
	"image/png"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fredcamaral/texdeck/internal/domain/entities"
	"github.com/fredcamaral/texdeck/internal/domain/ports"
)

var fixedClock = ports.FixedTimeProvider{At: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}

func testPNG(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, w, h))))
	return buf.Bytes()
}

func testMeta() ports.DocumentMeta {
	return ports.DocumentMeta{Title: "Physics", Author: "Dept", SlideWidth: 10, SlideHeight: 5.63}
}

func textBox(x, y, w, h float64) entities.PositionedBox {
	return entities.PositionedBox{Kind: entities.BoxText, X: x, Y: y, Width: w, Height: h}
}

func bodyStyle() entities.TextStyle {
	return entities.TextStyle{FontFamily: "Arial", FontSize: 16, Color: "363636"}
}

// readPackage unzips a serialized deck into name -> content
func readPackage(t *testing.T, data []byte) map[string][]byte {
	t.Helper()
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)

	files := make(map[string][]byte, len(zr.File))
	for _, f := range zr.File {
		rc, err := f.Open()
		require.NoError(t, err)
		content, err := io.ReadAll(rc)
		require.NoError(t, err)
		require.NoError(t, rc.Close())
		files[f.Name] = content
	}
	return files
}

func assertWellFormed(t *testing.T, name string, content []byte) {
	t.Helper()
	dec := xml.NewDecoder(bytes.NewReader(content))
	for {
		_, err := dec.Token()
		if err == io.EOF {
			return
		}
		require.NoError(t, err, "part %s is not well-formed XML", name)
	}
}

func TestFactory(t *testing.T) {
	f := NewFactory(fixedClock)
	assert.Equal(t, entities.OutputFormatPPTX, f.Format())

	b, err := f.NewDocument(testMeta())
	require.NoError(t, err)
	assert.NotNil(t, b)

	_, err = f.NewDocument(ports.DocumentMeta{SlideWidth: 0.5, SlideHeight: 5})
	assert.Error(t, err)
}

func TestBuilder_Serialize(t *testing.T) {
	b, err := NewBuilder(testMeta(), fixedClock)
	require.NoError(t, err)

	require.NoError(t, b.AddSlide())
	require.NoError(t, b.AddText("Title & <Intro>", textBox(0.5, 0.5, 9, 0.6), entities.TextStyle{FontFamily: "Arial", FontSize: 24, Bold: true, Color: "000000", Wrap: true}))
	require.NoError(t, b.AddText("Solve", textBox(1, 1.5, 0.5, 0.4), bodyStyle()))
	require.NoError(t, b.AddImage(testPNG(t, 40, 20), entities.PositionedBox{Kind: entities.BoxImage, Latex: `x^2 < 4`, X: 1.6, Y: 1.5, Width: 0.5, Height: 0.25}))

	require.NoError(t, b.AddSlide())
	require.NoError(t, b.AddText("Second", textBox(1, 1.5, 0.6, 0.4), bodyStyle()))
	assert.Equal(t, 2, b.SlideCount())

	data, err := b.Serialize()
	require.NoError(t, err)

	files := readPackage(t, data)

	for _, part := range []string{
		"[Content_Types].xml",
		"_rels/.rels",
		"docProps/core.xml",
		"docProps/app.xml",
		"ppt/presentation.xml",
		"ppt/_rels/presentation.xml.rels",
		"ppt/theme/theme1.xml",
		"ppt/slideMasters/slideMaster1.xml",
		"ppt/slideLayouts/slideLayout1.xml",
		"ppt/slides/slide1.xml",
		"ppt/slides/slide2.xml",
		"ppt/slides/_rels/slide1.xml.rels",
		"ppt/media/image1.png",
	} {
		assert.Contains(t, files, part)
	}

	for name, content := range files {
		if strings.HasSuffix(name, ".xml") || strings.HasSuffix(name, ".rels") {
			assertWellFormed(t, name, content)
		}
	}

	t.Run("slide size in EMU", func(t *testing.T) {
		var pres struct {
			Size struct {
				CX int64 `xml:"cx,attr"`
				CY int64 `xml:"cy,attr"`
			} `xml:"sldSz"`
			Slides []struct {
				ID int `xml:"id,attr"`
			} `xml:"sldIdLst>sldId"`
		}
		require.NoError(t, xml.Unmarshal(files["ppt/presentation.xml"], &pres))
		assert.Equal(t, int64(9144000), pres.Size.CX)
		assert.Equal(t, int64(5148072), pres.Size.CY)
		require.Len(t, pres.Slides, 2)
		assert.Equal(t, 256, pres.Slides[0].ID)
		assert.Equal(t, 257, pres.Slides[1].ID)
	})

	t.Run("text is escaped and positioned", func(t *testing.T) {
		slide := string(files["ppt/slides/slide1.xml"])
		assert.Contains(t, slide, "Title &amp; &lt;Intro&gt;")
		assert.Contains(t, slide, `<a:off x="914400" y="1371600"/>`)
		assert.Contains(t, slide, `sz="2400" b="1"`)
		assert.Contains(t, slide, `wrap="square"`)
		assert.Contains(t, slide, `wrap="none"`)
		assert.Contains(t, slide, `lIns="0"`)
		assert.Contains(t, slide, `<a:srgbClr val="363636"/>`)
	})

	t.Run("picture references media with alt text", func(t *testing.T) {
		slide := string(files["ppt/slides/slide1.xml"])
		assert.Contains(t, slide, `r:embed="rId2"`)
		assert.Contains(t, slide, `descr="x^2 &lt; 4"`)

		rels := string(files["ppt/slides/_rels/slide1.xml.rels"])
		assert.Contains(t, rels, `Target="../media/image1.png"`)
		assert.Contains(t, rels, `Target="../slideLayouts/slideLayout1.xml"`)
	})

	t.Run("metadata", func(t *testing.T) {
		core := string(files["docProps/core.xml"])
		assert.Contains(t, core, "<dc:title>Physics</dc:title>")
		assert.Contains(t, core, "<dc:creator>Dept</dc:creator>")
		assert.Contains(t, core, "2024-03-01T12:00:00Z")

		app := string(files["docProps/app.xml"])
		assert.Contains(t, app, "<Slides>2</Slides>")
	})

	t.Run("content types list every slide", func(t *testing.T) {
		ct := string(files["[Content_Types].xml"])
		assert.Contains(t, ct, `PartName="/ppt/slides/slide1.xml"`)
		assert.Contains(t, ct, `PartName="/ppt/slides/slide2.xml"`)
	})
}

func TestBuilder_Background(t *testing.T) {
	meta := testMeta()
	meta.Background = &ports.Asset{Name: "bg.png", ContentType: "image/png", Data: testPNG(t, 10, 10)}

	b, err := NewBuilder(meta, fixedClock)
	require.NoError(t, err)
	require.NoError(t, b.AddSlide())
	require.NoError(t, b.AddImage(testPNG(t, 4, 4), entities.PositionedBox{Kind: entities.BoxImage, X: 1, Y: 1, Width: 1, Height: 1}))
	require.NoError(t, b.AddSlide())

	data, err := b.Serialize()
	require.NoError(t, err)
	files := readPackage(t, data)

	assert.Contains(t, files, "ppt/media/background.png")
	assert.Contains(t, files, "ppt/media/image2.png")

	for _, n := range []string{"1", "2"} {
		slide := string(files["ppt/slides/slide"+n+".xml"])
		assert.Contains(t, slide, `<p:bg><p:bgPr><a:blipFill dpi="0" rotWithShape="1"><a:blip r:embed="rId2"/>`)
	}

	// Formula relationships come after the shared background
	assert.Contains(t, string(files["ppt/slides/slide1.xml"]), `<a:blip r:embed="rId3"/>`)
}

func TestBuilder_EmptyDeck(t *testing.T) {
	b, err := NewBuilder(testMeta(), fixedClock)
	require.NoError(t, err)

	data, err := b.Serialize()
	require.NoError(t, err)

	files := readPackage(t, data)
	assert.NotContains(t, string(files["ppt/presentation.xml"]), "sldIdLst")
}

func TestBuilder_Errors(t *testing.T) {
	t.Run("content before first slide", func(t *testing.T) {
		b, err := NewBuilder(testMeta(), fixedClock)
		require.NoError(t, err)

		assert.ErrorIs(t, b.AddText("x", textBox(1, 1, 1, 1), bodyStyle()), ErrNoSlide)
		assert.ErrorIs(t, b.AddImage(testPNG(t, 1, 1), textBox(1, 1, 1, 1)), ErrNoSlide)
	})

	b, err := NewBuilder(testMeta(), fixedClock)
	require.NoError(t, err)
	require.NoError(t, b.AddSlide())

	t.Run("invalid geometry", func(t *testing.T) {
		assert.Error(t, b.AddText("x", textBox(-1, 1, 1, 1), bodyStyle()))
		assert.Error(t, b.AddText("x", textBox(1, 1, 0, 1), bodyStyle()))
	})

	t.Run("invalid image bytes", func(t *testing.T) {
		err := b.AddImage([]byte("not a png"), textBox(1, 1, 1, 1))
		assert.ErrorIs(t, err, ErrNotPNG)
	})

	t.Run("invalid style", func(t *testing.T) {
		style := bodyStyle()
		style.Color = "red"
		assert.Error(t, b.AddText("x", textBox(1, 1, 1, 1), style))

		style = bodyStyle()
		style.FontSize = 0
		assert.Error(t, b.AddText("x", textBox(1, 1, 1, 1), style))
	})

	t.Run("overflowing boxes are accepted", func(t *testing.T) {
		assert.NoError(t, b.AddText("x", textBox(9.8, 5.5, 2, 1), bodyStyle()))
	})
}

func TestEMU(t *testing.T) {
	assert.Equal(t, int64(914400), emu(1))
	assert.Equal(t, int64(457200), emu(0.5))
	assert.Equal(t, int64(0), emu(0))
}
