// Package clock provides an injectable time source.
//
// Every cache expiry, recency calculation, and staleness check in
// sessionwatch reads the current time through a Clock so tests can pin
// and advance time without sleeping.
package clock

import "time"

// Clock abstracts the wall clock.
type Clock interface {
	// Now returns the current time.
	Now() time.Time
}

// Real returns a Clock backed by the system clock.
func Real() Clock {
	return realClock{}
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }
