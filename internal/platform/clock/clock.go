package clock

import "time"

// Clock abstracts time to keep usecases deterministic in tests.
type Clock interface {
	Now() time.Time
}

type SystemClock struct{}

func (SystemClock) Now() time.Time {
	return time.Now().UTC()
}

// Fixed always reports the same instant.
type Fixed time.Time

func (f Fixed) Now() time.Time {
	return time.Time(f)
}

// Truncated rounds every reading down to Precision, for stores that keep coarser instants.
type Truncated struct {
	Clock     Clock
	Precision time.Duration
}

func (t Truncated) Now() time.Time {
	return t.Clock.Now().Truncate(t.Precision)
}
