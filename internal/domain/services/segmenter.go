package services

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/net/html"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/fredcamaral/texdeck/internal/domain/entities"
)

var (
	// An editor's empty line (<p><br></p>) is one blank paragraph, not a
	// paragraph plus a line break.
	emptyParagraphPattern = regexp.MustCompile(`(?i)<p(\s[^>]*)?>\s*<br\s*/?>\s*</p\s*>`)
	// A closing paragraph immediately followed by an opening one is a single boundary.
	paragraphPairPattern = regexp.MustCompile(`(?i)</p\s*>\s*<p(\s[^>]*)?>`)
	paragraphTagPattern  = regexp.MustCompile(`(?i)</?p(\s[^>]*)?>`)
	lineBreakTagPattern  = regexp.MustCompile(`(?i)<br\s*/?>`)
)

// Segment is one boundary-delimited piece of slide text
type Segment struct {
	Index   int
	Text    string
	IsBreak bool
}

// Segmenter splits extracted slide text into paragraph-equivalent segments
type Segmenter struct{}

// NewSegmenter creates a new segmenter
func NewSegmenter() *Segmenter {
	return &Segmenter{}
}

// Segment splits text on line feeds, escaped "\n" sequences, <br> and
// paragraph tags. Every blank segment becomes a break so vertical spacing
// follows the source; breaks at either end are dropped.
func (s *Segmenter) Segment(text string) []Segment {
	normalized := normalizeBoundaries(text)
	if strings.TrimSpace(normalized) == "" {
		return nil
	}

	var segments []Segment
	for _, line := range strings.Split(normalized, "\n") {
		clean := cleanText(html.UnescapeString(line))
		if strings.TrimSpace(clean) == "" {
			if len(segments) == 0 {
				continue
			}
			segments = append(segments, Segment{IsBreak: true})
			continue
		}
		segments = append(segments, Segment{Text: clean})
	}

	for len(segments) > 0 && segments[len(segments)-1].IsBreak {
		segments = segments[:len(segments)-1]
	}

	for i := range segments {
		segments[i].Index = i
	}
	return segments
}

// Series segments text and tokenizes every segment into runs
func (s *Segmenter) Series(text string, tokenizer *Tokenizer) []entities.Series {
	segments := s.Segment(text)
	series := make([]entities.Series, 0, len(segments))
	for _, seg := range segments {
		if seg.IsBreak {
			series = append(series, entities.Series{Index: seg.Index, Runs: []entities.Run{entities.BreakRun(seg.Index)}})
			continue
		}
		runs := tokenizer.Tokenize(seg.Index, seg.Text)
		if len(runs) == 0 {
			continue
		}
		series = append(series, entities.Series{Index: seg.Index, Runs: runs})
	}
	return series
}

func normalizeBoundaries(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = outsideFormulas(text, func(s string) string {
		return strings.ReplaceAll(s, `\n`, "\n")
	})
	text = emptyParagraphPattern.ReplaceAllString(text, "<p></p>")
	text = paragraphPairPattern.ReplaceAllString(text, "\n")
	text = paragraphTagPattern.ReplaceAllString(text, "\n")
	text = lineBreakTagPattern.ReplaceAllString(text, "\n")
	return strings.Trim(text, "\n")
}

// outsideFormulas applies fn to the parts of s that are not inside a closed
// $...$ span. LaTeX commands such as \neq or \nabla must survive untouched.
func outsideFormulas(s string, fn func(string) string) string {
	var b strings.Builder
	rest := s
	for {
		open := strings.IndexByte(rest, '$')
		if open < 0 {
			break
		}
		end := strings.IndexByte(rest[open+1:], '$')
		if end < 0 {
			break
		}
		end += open + 1
		b.WriteString(fn(rest[:open]))
		b.WriteString(rest[open : end+1])
		rest = rest[end+1:]
	}
	b.WriteString(fn(rest))
	return b.String()
}

// cleanText drops invisible format characters that rich-text editors inject
// around embedded widgets, maps no-break spaces to spaces and NFC-normalizes.
func cleanText(s string) string {
	t := transform.Chain(
		runes.Remove(runes.In(unicode.Cf)),
		runes.Map(func(r rune) rune {
			if r == '\u00a0' {
				return ' '
			}
			return r
		}),
		norm.NFC,
	)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}
