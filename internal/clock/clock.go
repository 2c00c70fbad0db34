// Package clock provides an injectable time source.
//
// Code that reads the time or schedules work takes a Clock instead of calling
// the time package directly. Production wiring uses Real(); tests use Fake()
// and move time forward with Advance.
package clock

import "time"

// Clock abstracts the time operations used by the gateway.
type Clock interface {
	// Now returns the current time.
	Now() time.Time

	// AfterFunc calls f once after d elapses. The returned Timer can cancel
	// the pending call.
	AfterFunc(d time.Duration, f func()) *Timer

	// NewTicker delivers ticks on C every d. Panics if d <= 0.
	NewTicker(d time.Duration) *Ticker
}

// Timer represents a scheduled call.
type Timer struct {
	stopFunc func() bool
}

// Stop prevents the Timer from firing. Returns false if it already fired or
// was stopped.
func (t *Timer) Stop() bool { return t.stopFunc() }

// Ticker delivers periodic ticks. C has capacity 1; slow consumers drop ticks.
type Ticker struct {
	C <-chan time.Time

	stopFunc func()
}

// Stop turns off the ticker. It does not close C.
func (t *Ticker) Stop() { t.stopFunc() }
