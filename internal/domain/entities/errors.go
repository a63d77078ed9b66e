package entities

import "fmt"

// ValidationError reports a malformed deck descriptor
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// MarkupExtractionError reports a formula element that could not be read.
// It is recovered locally by substituting an empty formula.
type MarkupExtractionError struct {
	Element string
	Reason  string
}

func (e *MarkupExtractionError) Error() string {
	return fmt.Sprintf("formula markup %s: %s", e.Element, e.Reason)
}

// FormulaRenderError reports a formula the renderer could not rasterize
type FormulaRenderError struct {
	Latex string
	Err   error
}

func (e *FormulaRenderError) Error() string {
	return fmt.Sprintf("rendering formula %q: %v", e.Latex, e.Err)
}

func (e *FormulaRenderError) Unwrap() error {
	return e.Err
}

// SlideAssemblyError reports a box the document builder rejected. A run is
// identified by its series and its index within that series; both are -1
// when the failure is not tied to a content run.
type SlideAssemblyError struct {
	SlideIndex  int
	SeriesIndex int
	RunIndex    int
	Err         error
}

func (e *SlideAssemblyError) Error() string {
	if e.RunIndex < 0 {
		return fmt.Sprintf("assembling slide %d: %v", e.SlideIndex, e.Err)
	}
	return fmt.Sprintf("assembling slide %d series %d run %d: %v", e.SlideIndex, e.SeriesIndex, e.RunIndex, e.Err)
}

func (e *SlideAssemblyError) Unwrap() error {
	return e.Err
}

// DocumentSerializationError reports a failure encoding the final document
type DocumentSerializationError struct {
	Format OutputFormat
	Err    error
}

func (e *DocumentSerializationError) Error() string {
	return fmt.Sprintf("serializing %s document: %v", e.Format, e.Err)
}

func (e *DocumentSerializationError) Unwrap() error {
	return e.Err
}
