package entities

// RunKind identifies the type of an atomic content unit
type RunKind string

const (
	RunText    RunKind = "text"
	RunFormula RunKind = "formula"
	RunBreak   RunKind = "break"
)

// Run is an atomic content unit inside a series
type Run struct {
	Kind        RunKind
	Value       string // text runs
	Latex       string // formula runs
	SeriesIndex int
}

// TextRun creates a text run
func TextRun(series int, value string) Run {
	return Run{Kind: RunText, Value: value, SeriesIndex: series}
}

// FormulaRun creates a formula run
func FormulaRun(series int, latex string) Run {
	return Run{Kind: RunFormula, Latex: latex, SeriesIndex: series}
}

// BreakRun creates a paragraph gap
func BreakRun(series int) Run {
	return Run{Kind: RunBreak, SeriesIndex: series}
}

// Series is a paragraph-equivalent group of runs sharing vertical flow
type Series struct {
	Index int
	Runs  []Run
}

// IsBreak reports whether the series is a paragraph gap
func (s Series) IsBreak() bool {
	return len(s.Runs) == 1 && s.Runs[0].Kind == RunBreak
}

// FormulaCount returns the number of formula runs in the series
func (s Series) FormulaCount() int {
	n := 0
	for _, r := range s.Runs {
		if r.Kind == RunFormula {
			n++
		}
	}
	return n
}

// MeasuredRun is a run ready for layout. Formula runs carry their raster
// and display size in inches; text runs are measured per word at layout time.
type MeasuredRun struct {
	Run

	Image         []byte
	PixelWidth    int
	PixelHeight   int
	DisplayWidth  float64
	DisplayHeight float64
	Placeholder   bool
}

// IsImage reports whether the run is placed as a picture
func (m MeasuredRun) IsImage() bool {
	return m.Kind == RunFormula && len(m.Image) > 0
}

// MeasuredSeries is a series whose formula runs have been rasterized
type MeasuredSeries struct {
	Index int
	Runs  []MeasuredRun
}

// HasImage reports whether any run in the series is an image
func (s MeasuredSeries) HasImage() bool {
	for _, r := range s.Runs {
		if r.IsImage() {
			return true
		}
	}
	return false
}
