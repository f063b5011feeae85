package actor

import "time"

// Clock is a testable time source.
//
// Reducers must stay deterministic, so they never consult a Clock directly;
// callers and runtimes stamp timestamps into inputs instead.
type Clock interface {
	Now() time.Time
}

// RealClock is the production Clock backed by time.Now.
type RealClock struct{}

// Now implements Clock.
func (RealClock) Now() time.Time { return time.Now() }
