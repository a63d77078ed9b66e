package entities

import (
	"fmt"
	"strings"
)

// ContentFormat identifies how slide content is marked up
type ContentFormat string

const (
	ContentFormatHTML     ContentFormat = "html"
	ContentFormatMarkdown ContentFormat = "markdown"
)

// OutputFormat identifies the produced document type
type OutputFormat string

const (
	OutputFormatPPTX OutputFormat = "pptx"
	OutputFormatPDF  OutputFormat = "pdf"
)

// ContentType returns the MIME type served for the format
func (f OutputFormat) ContentType() string {
	switch f {
	case OutputFormatPDF:
		return "application/pdf"
	default:
		return "application/vnd.openxmlformats-officedocument.presentationml.presentation"
	}
}

// Extension returns the file extension for the format, including the dot
func (f OutputFormat) Extension() string {
	if f == OutputFormatPDF {
		return ".pdf"
	}
	return ".pptx"
}

// ParseOutputFormat maps a user-supplied name to an OutputFormat
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "pptx":
		return OutputFormatPPTX, nil
	case "pdf":
		return OutputFormatPDF, nil
	default:
		return "", &ValidationError{Field: "format", Reason: fmt.Sprintf("unsupported output format %q", s)}
	}
}

// DeckRequest is the document descriptor accepted over HTTP and from deck files
type DeckRequest struct {
	Slides   []SlideInput `json:"slides" yaml:"slides"`
	Template Template     `json:"template" yaml:"template"`
}

// SlideInput is one logical slide before any processing
type SlideInput struct {
	Title         string        `json:"title" yaml:"title"`
	SubTitle      string        `json:"sub_title,omitempty" yaml:"sub_title,omitempty"`
	Content       string        `json:"content" yaml:"content"`
	ContentFormat ContentFormat `json:"content_format,omitempty" yaml:"content_format,omitempty"`
}

// HasSubtitle reports whether the slide carries a non-blank subtitle
func (s SlideInput) HasSubtitle() bool {
	return strings.TrimSpace(s.SubTitle) != ""
}

// Format returns the content format with default
func (s SlideInput) Format() ContentFormat {
	if s.ContentFormat == "" {
		return ContentFormatHTML
	}
	return s.ContentFormat
}

// Template carries deck-wide presentation settings
type Template struct {
	BackgroundImage string `json:"backgroundImage,omitempty" yaml:"backgroundImage,omitempty"`
	FontFamily      string `json:"fontFamily,omitempty" yaml:"fontFamily,omitempty"`
}

// Validate checks the descriptor against structural limits
func (d *DeckRequest) Validate(maxSlides int) error {
	if d == nil {
		return &ValidationError{Field: "slides", Reason: "request is empty"}
	}

	if len(d.Slides) == 0 {
		return &ValidationError{Field: "slides", Reason: "at least one slide is required"}
	}

	if maxSlides > 0 && len(d.Slides) > maxSlides {
		return &ValidationError{Field: "slides", Reason: fmt.Sprintf("%d slides exceeds the limit of %d", len(d.Slides), maxSlides)}
	}

	for i, s := range d.Slides {
		switch s.Format() {
		case ContentFormatHTML, ContentFormatMarkdown:
		default:
			return &ValidationError{
				Field:  fmt.Sprintf("slides[%d].content_format", i),
				Reason: fmt.Sprintf("unsupported content format %q", s.ContentFormat),
			}
		}
	}

	return nil
}

// Slide is a slide after segmentation and tokenization
type Slide struct {
	Title    string
	SubTitle string
	Series   []Series
}

// HasSubtitle reports whether the slide carries a non-blank subtitle
func (s Slide) HasSubtitle() bool {
	return strings.TrimSpace(s.SubTitle) != ""
}

// GeneratedDeck is a serialized document plus what went into it
type GeneratedDeck struct {
	ID       string
	Format   OutputFormat
	Data     []byte
	Slides   int
	Formulas int
	Failures []error
}
