// Package deckfile reads deck descriptors from YAML, JSON or markdown files.
package deckfile

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/fredcamaral/texdeck/internal/domain/entities"
)

//go:embed sample.yaml
var sampleDeck []byte

// ErrUnknownExtension is returned for files that are not .yaml, .yml, .json or .md
var ErrUnknownExtension = errors.New("unsupported deck file extension")

// Sample returns the built-in demonstration deck
func Sample() (*entities.DeckRequest, error) {
	return Parse(sampleDeck)
}

// Load reads a deck file, choosing the decoder from its extension
func Load(path string) (*entities.DeckRequest, error) {
	data, err := os.ReadFile(path) // #nosec G304 - path is a CLI argument
	if err != nil {
		return nil, fmt.Errorf("reading deck %s: %w", path, err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml", ".json":
		// JSON is valid YAML, so one strict decoder serves both
		deck, err := Parse(data)
		if err != nil {
			return nil, fmt.Errorf("parsing deck %s: %w", path, err)
		}
		return deck, nil
	case ".md", ".markdown":
		return ParseMarkdown(data)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownExtension, path)
	}
}

// Parse decodes a YAML or JSON descriptor, rejecting unknown fields
func Parse(data []byte) (*entities.DeckRequest, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var deck entities.DeckRequest
	if err := dec.Decode(&deck); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, &entities.ValidationError{Field: "slides", Reason: "deck file is empty"}
		}
		return nil, err
	}
	return &deck, nil
}

// ParseMarkdown reads a markdown deck: optional YAML frontmatter holding the
// template, then slides separated by "---" lines. A leading "# " line is the
// slide title and a "## " line right after it the subtitle. Lines starting
// with "Note:" are speaker notes and are dropped.
func ParseMarkdown(data []byte) (*entities.DeckRequest, error) {
	template, body, err := extractFrontmatter(data)
	if err != nil {
		return nil, err
	}

	deck := &entities.DeckRequest{Template: template}
	for _, raw := range splitSlides(body) {
		deck.Slides = append(deck.Slides, parseMarkdownSlide(raw))
	}
	return deck, nil
}

// extractFrontmatter splits off a leading ---...--- YAML block
func extractFrontmatter(content []byte) (entities.Template, []byte, error) {
	var template entities.Template

	content = bytes.ReplaceAll(content, []byte("\r\n"), []byte("\n"))
	if !bytes.HasPrefix(content, []byte("---\n")) {
		return template, content, nil
	}

	lines := bytes.Split(content, []byte("\n"))
	endIndex := -1
	for i := 1; i < len(lines); i++ {
		if bytes.Equal(bytes.TrimSpace(lines[i]), []byte("---")) {
			endIndex = i
			break
		}
	}
	if endIndex == -1 {
		// No closing delimiter, the leading rule is a slide separator
		return template, content, nil
	}

	frontmatter := bytes.Join(lines[1:endIndex], []byte("\n"))
	if len(bytes.TrimSpace(frontmatter)) > 0 {
		if err := yaml.Unmarshal(frontmatter, &template); err != nil {
			return template, nil, fmt.Errorf("parsing frontmatter: %w", err)
		}
	}

	return template, bytes.Join(lines[endIndex+1:], []byte("\n")), nil
}

// splitSlides splits content on horizontal rules, dropping empty slides
func splitSlides(content []byte) []string {
	parts := strings.Split("\n"+string(content)+"\n", "\n---\n")

	slides := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			slides = append(slides, trimmed)
		}
	}
	return slides
}

func parseMarkdownSlide(raw string) entities.SlideInput {
	slide := entities.SlideInput{ContentFormat: entities.ContentFormatMarkdown}

	lines := strings.Split(raw, "\n")
	var content []string
	headerDone := false

	for _, line := range lines {
		trimmed := strings.TrimSpace(line)

		if strings.HasPrefix(trimmed, "Note:") {
			continue
		}

		if !headerDone {
			switch {
			case trimmed == "":
				continue
			case slide.Title == "" && strings.HasPrefix(trimmed, "# "):
				slide.Title = strings.TrimSpace(strings.TrimPrefix(trimmed, "# "))
				continue
			case slide.Title != "" && slide.SubTitle == "" && strings.HasPrefix(trimmed, "## "):
				slide.SubTitle = strings.TrimSpace(strings.TrimPrefix(trimmed, "## "))
				continue
			default:
				headerDone = true
			}
		}

		content = append(content, line)
	}

	slide.Content = strings.TrimSpace(strings.Join(content, "\n"))
	return slide
}
