package ports

import "time"

// TimeProvider abstracts the clock for testability
type TimeProvider interface {
	Now() time.Time
	Since(t time.Time) time.Duration
}

// RealTimeProvider implements TimeProvider using standard time package
type RealTimeProvider struct{}

// NewRealTimeProvider creates a new real time provider implementation
func NewRealTimeProvider() TimeProvider {
	return &RealTimeProvider{}
}

// Now returns the current time
func (tp *RealTimeProvider) Now() time.Time {
	return time.Now()
}

// Since returns the time elapsed since t
func (tp *RealTimeProvider) Since(t time.Time) time.Duration {
	return time.Since(t)
}

// FixedTimeProvider always reports the same instant
type FixedTimeProvider struct {
	At time.Time
}

// Now returns the fixed instant
func (tp FixedTimeProvider) Now() time.Time {
	return tp.At
}

// Since returns the distance from t to the fixed instant
func (tp FixedTimeProvider) Since(t time.Time) time.Duration {
	return tp.At.Sub(t)
}
