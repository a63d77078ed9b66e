package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fredcamaral/texdeck/internal/domain/entities"
)

func segmentTexts(segments []Segment) []string {
	out := make([]string, len(segments))
	for i, s := range segments {
		if s.IsBreak {
			out[i] = "<gap>"
			continue
		}
		out[i] = s.Text
	}
	return out
}

func TestSegmenter_Segment(t *testing.T) {
	segmenter := NewSegmenter()

	tests := []struct {
		name string
		text string
		want []string
	}{
		{"single line", "Hello", []string{"Hello"}},
		{"line feeds", "One\nTwo", []string{"One", "Two"}},
		{"crlf", "One\r\nTwo", []string{"One", "Two"}},
		{"escaped newline", `One\nTwo`, []string{"One", "Two"}},
		{"paragraph pair is one boundary", "<p>One</p><p>Two</p>", []string{"One", "Two"}},
		{"paragraph with attributes", `<p class="lead">One</p>  <P>Two</P>`, []string{"One", "Two"}},
		{"line break tags", "One<br>Two<br/>Three<BR />Four", []string{"One", "Two", "Three", "Four"}},
		{"blank line is a gap", "One\n\nTwo", []string{"One", "<gap>", "Two"}},
		{"each blank line is a gap", "first\n \n\t\nsecond", []string{"first", "<gap>", "<gap>", "second"}},
		{"blank lines and breaks keep their count", "One\n\n\n<br>Two", []string{"One", "<gap>", "<gap>", "<gap>", "Two"}},
		{"editor empty paragraph is one gap", "<p>One</p><p><br></p><p>Two</p>", []string{"One", "<gap>", "Two"}},
		{"two editor empty paragraphs", `<p>One</p><p><br/></p><p class="x"> <br> </p><p>Two</p>`, []string{"One", "<gap>", "<gap>", "Two"}},
		{"empty paragraph at the edges", "<p><br></p><p>One</p><p><br></p>", []string{"One"}},
		{"edge gaps dropped", "\n\n<br>One\n\n\n", []string{"One"}},
		{"entities decoded", "Fish &amp; chips &lt;3", []string{"Fish & chips <3"}},
		{"latex newline commands survive", `Since $a \neq b$ and $\nabla f$`, []string{`Since $a \neq b$ and $\nabla f$`}},
		{"escaped newline outside formula only", `$\nu$\nnext`, []string{`$\nu$`, "next"}},
		{"format characters removed", "a\u200bb\ufeffc\u00a0d", []string{"abc d"}},
		{"nfc normalized", "cafe\u0301", []string{"caf\u00e9"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, segmentTexts(segmenter.Segment(tt.text)))
		})
	}
}

func TestSegmenter_SegmentEmpty(t *testing.T) {
	segmenter := NewSegmenter()

	for _, text := range []string{"", "   ", "\n\n", "<p></p>", "<br><br/>"} {
		assert.Empty(t, segmenter.Segment(text), "input %q", text)
	}
}

func TestSegmenter_SegmentIndexes(t *testing.T) {
	segments := NewSegmenter().Segment("One\n\nTwo\nThree")

	require.Len(t, segments, 4)
	for i, s := range segments {
		assert.Equal(t, i, s.Index)
	}
	assert.True(t, segments[1].IsBreak)
}

func TestSegmenter_Series(t *testing.T) {
	series := NewSegmenter().Series("Intro $x$\n\n$y$ end", NewTokenizer())

	require.Len(t, series, 3)

	assert.Equal(t, 0, series[0].Index)
	assert.Equal(t, []entities.Run{entities.TextRun(0, "Intro"), entities.FormulaRun(0, "x")}, series[0].Runs)

	assert.True(t, series[1].IsBreak())
	assert.Equal(t, 1, series[1].Index)

	assert.Equal(t, []entities.Run{entities.FormulaRun(2, "y"), entities.TextRun(2, "end")}, series[2].Runs)
	assert.Equal(t, 1, series[2].FormulaCount())
}
