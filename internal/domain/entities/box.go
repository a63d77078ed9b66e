package entities

import (
	"errors"
	"fmt"
	"math"
)

// BoxKind identifies what a positioned box renders
type BoxKind string

const (
	BoxText  BoxKind = "text"
	BoxImage BoxKind = "image"
)

// PositionedBox is a run placed at absolute slide coordinates (inches)
type PositionedBox struct {
	Kind        BoxKind
	Content     string
	Image       []byte
	Latex       string
	X           float64
	Y           float64
	Width       float64
	Height      float64
	SeriesIndex int
	RunIndex    int
}

// Right returns the x coordinate of the box's right edge
func (b PositionedBox) Right() float64 {
	return b.X + b.Width
}

// Bottom returns the y coordinate of the box's bottom edge
func (b PositionedBox) Bottom() float64 {
	return b.Y + b.Height
}

// CheckBounds rejects boxes no document format can represent
func (b PositionedBox) CheckBounds() error {
	for _, v := range []float64{b.X, b.Y, b.Width, b.Height} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return errors.New("box has non-finite geometry")
		}
	}
	if b.X < 0 || b.Y < 0 {
		return fmt.Errorf("box origin (%.3f, %.3f) is outside the slide", b.X, b.Y)
	}
	if b.Width <= 0 || b.Height <= 0 {
		return fmt.Errorf("box size %.3fx%.3f must be positive", b.Width, b.Height)
	}
	return nil
}

// TextStyle describes how a text box is drawn
type TextStyle struct {
	FontFamily string
	FontSize   float64 // points
	Bold       bool
	Italic     bool
	Color      string // RRGGBB
	Wrap       bool   // let the viewer wrap text inside the box
}
