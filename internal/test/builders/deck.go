package builders

import (
	"strconv"

	"github.com/fredcamaral/texdeck/internal/domain/entities"
)

// DeckBuilder helps build DeckRequest values for testing
type DeckBuilder struct {
	deck *entities.DeckRequest
}

// NewDeckBuilder creates a deck builder with no slides and an empty template
func NewDeckBuilder() *DeckBuilder {
	return &DeckBuilder{deck: &entities.DeckRequest{}}
}

// WithFont sets the template font family
func (b *DeckBuilder) WithFont(font string) *DeckBuilder {
	b.deck.Template.FontFamily = font
	return b
}

// WithBackground sets the template background image reference
func (b *DeckBuilder) WithBackground(ref string) *DeckBuilder {
	b.deck.Template.BackgroundImage = ref
	return b
}

// WithSlide adds a slide with HTML content
func (b *DeckBuilder) WithSlide(title, content string) *DeckBuilder {
	b.deck.Slides = append(b.deck.Slides, entities.SlideInput{Title: title, Content: content})
	return b
}

// WithSubtitledSlide adds a slide with a subtitle
func (b *DeckBuilder) WithSubtitledSlide(title, subtitle, content string) *DeckBuilder {
	b.deck.Slides = append(b.deck.Slides, entities.SlideInput{Title: title, SubTitle: subtitle, Content: content})
	return b
}

// WithMarkdownSlide adds a slide whose content is Markdown
func (b *DeckBuilder) WithMarkdownSlide(title, content string) *DeckBuilder {
	b.deck.Slides = append(b.deck.Slides, entities.SlideInput{
		Title:         title,
		Content:       content,
		ContentFormat: entities.ContentFormatMarkdown,
	})
	return b
}

// WithSlideCount adds count numbered text-only slides
func (b *DeckBuilder) WithSlideCount(count int) *DeckBuilder {
	for i := 0; i < count; i++ {
		n := strconv.Itoa(len(b.deck.Slides) + 1)
		b.WithSlide("Slide "+n, "<p>Body of slide "+n+"</p>")
	}
	return b
}

// Build returns the built deck request
func (b *DeckBuilder) Build() *entities.DeckRequest {
	return b.deck
}

// FormulaDeck returns a two-slide deck mixing text and formulas
func FormulaDeck() *entities.DeckRequest {
	return NewDeckBuilder().
		WithFont("Times New Roman").
		WithSubtitledSlide("Energy", "Mass equivalence", `<p>Einstein said $E = mc^2$ changed physics.</p>`).
		WithSlide("Quadratics", `<p>Roots: $x = \frac{-b \pm \sqrt{b^2 - 4ac}}{2a}$.</p><p>Check the discriminant.</p>`).
		Build()
}
