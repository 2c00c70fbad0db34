package clock

import (
	"sync"
	"time"
)

// FakeClock is a deterministic Clock. Time only moves when Advance is called,
// and timers due within the advanced span fire synchronously in deadline
// order from the goroutine calling Advance.
type FakeClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*fakeTimer
}

type fakeTimer struct {
	when   time.Time
	period time.Duration // zero for one-shot timers
	fn     func()
	ch     chan time.Time
}

// Fake returns a FakeClock starting at start.
func Fake(start time.Time) *FakeClock {
	return &FakeClock{now: start}
}

func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *FakeClock) AfterFunc(d time.Duration, f func()) *Timer {
	if d <= 0 {
		f()
		return &Timer{stopFunc: func() bool { return false }}
	}

	c.mu.Lock()
	ft := &fakeTimer{when: c.now.Add(d), fn: f}
	c.timers = append(c.timers, ft)
	c.mu.Unlock()

	return &Timer{stopFunc: func() bool { return c.remove(ft) }}
}

func (c *FakeClock) NewTicker(d time.Duration) *Ticker {
	if d <= 0 {
		panic("clock: non-positive interval for NewTicker")
	}

	ch := make(chan time.Time, 1)

	c.mu.Lock()
	ft := &fakeTimer{when: c.now.Add(d), period: d, ch: ch}
	c.timers = append(c.timers, ft)
	c.mu.Unlock()

	return &Ticker{C: ch, stopFunc: func() { c.remove(ft) }}
}

// Advance moves the clock forward by d, firing every timer that comes due.
func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	target := c.now.Add(d)

	for {
		next := c.earliestLocked(target)
		if next == nil {
			break
		}
		c.now = next.when

		if next.period > 0 {
			next.when = next.when.Add(next.period)
			select {
			case next.ch <- c.now:
			default:
			}
			continue
		}

		c.removeLocked(next)
		fn := next.fn
		c.mu.Unlock()
		fn()
		c.mu.Lock()
	}

	c.now = target
	c.mu.Unlock()
}

// PendingTimers reports how many timers and tickers are registered.
func (c *FakeClock) PendingTimers() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.timers)
}

func (c *FakeClock) earliestLocked(limit time.Time) *fakeTimer {
	var next *fakeTimer
	for _, t := range c.timers {
		if t.when.After(limit) {
			continue
		}
		if next == nil || t.when.Before(next.when) {
			next = t
		}
	}
	return next
}

func (c *FakeClock) remove(ft *fakeTimer) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.removeLocked(ft)
}

func (c *FakeClock) removeLocked(ft *fakeTimer) bool {
	for i, t := range c.timers {
		if t == ft {
			c.timers = append(c.timers[:i], c.timers[i+1:]...)
			return true
		}
	}
	return false
}
