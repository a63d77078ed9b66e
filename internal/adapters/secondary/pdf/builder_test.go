package pdf

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fredcamaral/texdeck/internal/domain/entities"
	"github.com/fredcamaral/texdeck/internal/domain/ports"
)

var fixedClock = ports.FixedTimeProvider{At: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}

func testPNG(t *testing.T) []byte {
	t.Helper()
	// Fully opaque so the encoder writes RGB without an alpha mask
	img := image.NewRGBA(image.Rect(0, 0, 8, 4))
	for x := 0; x < 8; x++ {
		for y := 0; y < 4; y++ {
			img.Set(x, y, color.White)
		}
	}
	img.Set(1, 1, color.Black)
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func testMeta() ports.DocumentMeta {
	return ports.DocumentMeta{Title: "Physics", Author: "Dept", SlideWidth: 10, SlideHeight: 5.63}
}

func box(x, y, w, h float64) entities.PositionedBox {
	return entities.PositionedBox{X: x, Y: y, Width: w, Height: h}
}

func TestFactory(t *testing.T) {
	f := NewFactory(fixedClock)
	assert.Equal(t, entities.OutputFormatPDF, f.Format())

	_, err := f.NewDocument(ports.DocumentMeta{})
	assert.Error(t, err)
}

func TestBuilder_Serialize(t *testing.T) {
	b, err := NewBuilder(testMeta(), fixedClock)
	require.NoError(t, err)

	require.NoError(t, b.AddSlide())
	require.NoError(t, b.AddText("Momentum – café", box(0.5, 0.5, 9, 0.6), entities.TextStyle{FontFamily: "Arial", FontSize: 24, Bold: true, Color: "000000", Wrap: true}))
	require.NoError(t, b.AddText("Solve", box(1, 1.5, 0.5, 0.4), entities.TextStyle{FontFamily: "Georgia", FontSize: 16, Color: "363636"}))
	require.NoError(t, b.AddImage(testPNG(t), box(1.6, 1.5, 0.5, 0.25)))
	require.NoError(t, b.AddSlide())

	assert.Equal(t, 2, b.PageCount())

	data, err := b.Serialize()
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("%PDF-")))
	assert.Equal(t, 2, bytes.Count(data, []byte("/Type /Page\n")))
}

func TestBuilder_Background(t *testing.T) {
	meta := testMeta()
	meta.Background = &ports.Asset{Name: "bg.png", ContentType: "image/png", Data: testPNG(t)}

	b, err := NewBuilder(meta, fixedClock)
	require.NoError(t, err)
	require.NoError(t, b.AddSlide())
	require.NoError(t, b.AddSlide())

	data, err := b.Serialize()
	require.NoError(t, err)
	// One shared image object, drawn on both pages
	assert.Equal(t, 1, bytes.Count(data, []byte("/Subtype /Image")))
}

func TestBuilder_Errors(t *testing.T) {
	b, err := NewBuilder(testMeta(), fixedClock)
	require.NoError(t, err)

	assert.ErrorIs(t, b.AddText("x", box(1, 1, 1, 1), entities.TextStyle{FontSize: 16}), ErrNoPage)
	assert.ErrorIs(t, b.AddImage(testPNG(t), box(1, 1, 1, 1)), ErrNoPage)

	require.NoError(t, b.AddSlide())
	assert.Error(t, b.AddImage([]byte("junk"), box(1, 1, 1, 1)))
	assert.Error(t, b.AddText("x", box(1, 1, -1, 1), entities.TextStyle{FontSize: 16}))
	assert.Error(t, b.AddText("x", box(1, 1, 1, 1), entities.TextStyle{FontSize: 16, Color: "zzzzzz"}))
}

func TestCoreFont(t *testing.T) {
	assert.Equal(t, "Helvetica", coreFont("Arial"))
	assert.Equal(t, "Helvetica", coreFont("Open Sans"))
	assert.Equal(t, "Times", coreFont("Times New Roman"))
	assert.Equal(t, "Times", coreFont("Georgia"))
	assert.Equal(t, "Courier", coreFont("Courier New"))
}

func TestParseColor(t *testing.T) {
	r, g, b, err := parseColor("#363636")
	require.NoError(t, err)
	assert.Equal(t, []int{0x36, 0x36, 0x36}, []int{r, g, b})

	r, g, b, err = parseColor("FF8000")
	require.NoError(t, err)
	assert.Equal(t, []int{255, 128, 0}, []int{r, g, b})

	_, _, _, err = parseColor("abc")
	assert.Error(t, err)
}
