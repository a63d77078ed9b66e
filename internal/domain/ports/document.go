package ports

import "github.com/fredcamaral/texdeck/internal/domain/entities"

// DocumentMeta carries deck-wide settings for a document builder
type DocumentMeta struct {
	Title       string
	Author      string
	SlideWidth  float64 // inches
	SlideHeight float64 // inches
	Background  *Asset
}

// DocumentBuilder accumulates slides and encodes them into one document
type DocumentBuilder interface {
	// AddSlide starts a new slide; later boxes land on it
	AddSlide() error

	// AddText places a text box on the current slide
	AddText(text string, box entities.PositionedBox, style entities.TextStyle) error

	// AddImage places a PNG picture on the current slide
	AddImage(png []byte, box entities.PositionedBox) error

	// Serialize encodes the document
	Serialize() ([]byte, error)
}

// DocumentFactory creates builders for one output format
type DocumentFactory interface {
	Format() entities.OutputFormat
	NewDocument(meta DocumentMeta) (DocumentBuilder, error)
}
