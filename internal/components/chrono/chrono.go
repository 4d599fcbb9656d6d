package chrono

import "time"

// API is where components get the current time from, tests swap in a Fixed.
type API interface {
	Now() time.Time
}

type StandardImpl struct{}

func (StandardImpl) Now() time.Time {
	return time.Now()
}

// Fixed always returns the same instant.
type Fixed struct {
	At time.Time
}

func (f Fixed) Now() time.Time {
	return f.At
}
