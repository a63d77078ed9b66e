// Package markup turns rich-text slide content into the flat, delimiter-marked
// text the segmenter consumes.
package markup

import (
	"bytes"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/antchfx/htmlquery"
	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	gmhtml "github.com/yuin/goldmark/renderer/html"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/fredcamaral/texdeck/internal/domain/entities"
	"github.com/fredcamaral/texdeck/internal/domain/ports"
)

// FormulaClass marks an editor span holding LaTeX in its data-value attribute
const FormulaClass = "ql-custom-formula"

const (
	formulaXPath = `//*[contains(concat(' ', normalize-space(@class), ' '), ' ` + FormulaClass + ` ')]`
	blockXPath   = `//li|//h1|//h2|//h3|//h4|//h5|//h6|//div|//blockquote|//pre|//tr`
)

// inlineFormulaPattern matches closed $...$ spans in markdown source
var inlineFormulaPattern = regexp.MustCompile(`\$[^$]*\$`)

// Extractor implements ports.ContentExtractor for HTML and markdown slides
type Extractor struct {
	policy   *bluemonday.Policy
	markdown goldmark.Markdown
	logger   *slog.Logger
}

// NewExtractor creates an extractor that keeps only paragraph and line-break tags
func NewExtractor(logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}

	policy := bluemonday.NewPolicy()
	policy.AllowElements("p", "br")

	md := goldmark.New(
		goldmark.WithExtensions(
			extension.Strikethrough,
		),
		goldmark.WithRendererOptions(
			gmhtml.WithHardWraps(),
			gmhtml.WithUnsafe(), // Embedded editor spans must survive; the sanitizer runs afterwards
		),
	)

	return &Extractor{
		policy:   policy,
		markdown: md,
		logger:   logger.With("component", "markup"),
	}
}

// Fallback sanitizes content with the same paragraph and line-break policy
// and leaves formula elements as their visible text
func (e *Extractor) Fallback(content string) string {
	return e.policy.Sanitize(content)
}

// Extract replaces every formula element with $latex$, rewrites block
// elements to paragraphs and strips everything but <p> and <br>.
func (e *Extractor) Extract(content string, format entities.ContentFormat) (string, error) {
	if strings.TrimSpace(content) == "" {
		return "", nil
	}

	source := content
	if format == entities.ContentFormatMarkdown {
		converted, err := e.convertMarkdown(content)
		if err != nil {
			return "", &entities.MarkupExtractionError{Element: "markdown", Reason: err.Error()}
		}
		source = converted
	}

	doc, err := htmlquery.Parse(strings.NewReader(source))
	if err != nil {
		return "", &entities.MarkupExtractionError{Element: "document", Reason: err.Error()}
	}

	if err := e.replaceFormulas(doc); err != nil {
		return "", err
	}

	blocks, err := htmlquery.QueryAll(doc, blockXPath)
	if err != nil {
		return "", fmt.Errorf("querying block elements: %w", err)
	}
	for _, n := range blocks {
		n.Data = "p"
		n.DataAtom = atom.P
		n.Attr = nil
	}

	body := htmlquery.FindOne(doc, "//body")
	if body == nil {
		body = doc
	}

	var buf bytes.Buffer
	for c := body.FirstChild; c != nil; c = c.NextSibling {
		if err := html.Render(&buf, c); err != nil {
			return "", &entities.MarkupExtractionError{Element: "document", Reason: err.Error()}
		}
	}

	return e.policy.Sanitize(buf.String()), nil
}

// replaceFormulas swaps each formula element, including its rendered preview
// children, for a text node holding the delimited source
func (e *Extractor) replaceFormulas(doc *html.Node) error {
	nodes, err := htmlquery.QueryAll(doc, formulaXPath)
	if err != nil {
		return fmt.Errorf("querying formula elements: %w", err)
	}

	for _, n := range nodes {
		if n.Parent == nil {
			continue
		}

		latex := strings.TrimSpace(htmlquery.SelectAttr(n, "data-value"))
		if latex == "" {
			e.logger.Debug("Formula element without source",
				slog.String("error", (&entities.MarkupExtractionError{Element: n.Data, Reason: "empty data-value"}).Error()),
			)
		}
		if strings.Contains(latex, "$") {
			e.logger.Debug("Dropping delimiter characters from formula source", slog.String("latex", latex))
			latex = strings.ReplaceAll(latex, "$", "")
		}

		n.Parent.InsertBefore(&html.Node{Type: html.TextNode, Data: "$" + latex + "$"}, n)
		n.Parent.RemoveChild(n)
	}

	return nil
}

// convertMarkdown renders markdown to HTML with formula spans shielded from
// emphasis and escaping rules
func (e *Extractor) convertMarkdown(content string) (string, error) {
	var formulas []string
	shielded := inlineFormulaPattern.ReplaceAllStringFunc(content, func(m string) string {
		formulas = append(formulas, m)
		return formulaToken(len(formulas) - 1)
	})

	var buf bytes.Buffer
	if err := e.markdown.Convert([]byte(shielded), &buf); err != nil {
		return "", err
	}

	out := buf.String()
	for i, f := range formulas {
		out = strings.Replace(out, formulaToken(i), html.EscapeString(f), 1)
	}
	return out, nil
}

func formulaToken(i int) string {
	return fmt.Sprintf("texdeckformula%dtoken", i)
}

// Ensure Extractor implements ports.ContentExtractor
var _ ports.ContentExtractor = (*Extractor)(nil)
