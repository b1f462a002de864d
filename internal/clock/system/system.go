// Package system provides the wall clock used outside tests.
package system

import "time"

// Clock implements hn.Clock on top of the process wall clock, normalized to UTC.
type Clock struct{}

// New returns a Clock.
func New() Clock {
	return Clock{}
}

// Now returns the current UTC time.
func (Clock) Now() time.Time {
	return time.Now().UTC()
}

// Since reports the elapsed time from start according to c.
func (c Clock) Since(start time.Time) time.Duration {
	return c.Now().Sub(start)
}
