package domain

import "time"

// Clock supplies the current instant. Lifecycle transitions are a pure
// function of the clock and stored state, so tests inject fixed clocks.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock in UTC.
type SystemClock struct{}

// Now returns the current UTC time.
func (SystemClock) Now() time.Time {
	return time.Now().UTC()
}
