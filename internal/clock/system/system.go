// Package system is the wall clock behind session folder names and media
// file timestamps.
package system

import "time"

// Clock reads the wall clock in a fixed zone. Session folders are named by
// the operator's calendar date, so New pins the process's local zone rather
// than UTC.
type Clock struct {
	loc *time.Location
}

// New returns a Clock in the local zone.
func New() *Clock {
	return &Clock{loc: time.Local}
}

// Now returns the current time in the clock's zone.
func (c *Clock) Now() time.Time {
	if c == nil || c.loc == nil {
		return time.Now()
	}
	return time.Now().In(c.loc)
}
