package builders

import "github.com/fredcamaral/texdeck/internal/domain/entities"

// fakePNG is never decoded by layout; only its presence matters
var fakePNG = []byte("\x89PNG\r\n\x1a\n")

// SeriesBuilder helps build MeasuredSeries values for layout tests
type SeriesBuilder struct {
	series entities.MeasuredSeries
}

// NewSeriesBuilder creates a builder for the series at index
func NewSeriesBuilder(index int) *SeriesBuilder {
	return &SeriesBuilder{series: entities.MeasuredSeries{Index: index}}
}

// Text appends a text run
func (b *SeriesBuilder) Text(value string) *SeriesBuilder {
	b.series.Runs = append(b.series.Runs, entities.MeasuredRun{Run: entities.TextRun(b.series.Index, value)})
	return b
}

// Formula appends a rasterized formula run with the given display size in inches
func (b *SeriesBuilder) Formula(latex string, width, height float64) *SeriesBuilder {
	b.series.Runs = append(b.series.Runs, entities.MeasuredRun{
		Run:           entities.FormulaRun(b.series.Index, latex),
		Image:         fakePNG,
		PixelWidth:    int(width * 96),
		PixelHeight:   int(height * 96),
		DisplayWidth:  width,
		DisplayHeight: height,
	})
	return b
}

// Build returns the built series
func (b *SeriesBuilder) Build() entities.MeasuredSeries {
	return b.series
}

// BreakSeries returns a paragraph gap series
func BreakSeries(index int) entities.MeasuredSeries {
	return entities.MeasuredSeries{
		Index: index,
		Runs:  []entities.MeasuredRun{{Run: entities.BreakRun(index)}},
	}
}
