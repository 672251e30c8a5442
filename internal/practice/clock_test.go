package practice_test

import (
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/MrWong99/joytutor/internal/practice"
	"github.com/MrWong99/joytutor/pkg/audio"
)

// epoch is the start time of every manual clock.
var epoch = time.Date(2024, 9, 5, 8, 0, 0, 0, time.UTC)

// manualClock is a [practice.Clock] that only moves on Advance. Each due
// tick or timer is delivered synchronously, in time order, so the receiver
// has handled one event before the next is sent.
type manualClock struct {
	mu      sync.Mutex
	now     time.Time
	waiters []*waiter
	seq     int
	added   chan struct{}
}

type waiter struct {
	at      time.Time
	period  time.Duration
	seq     int
	c       chan time.Time
	stopped chan struct{}
	once    sync.Once
	fired   bool
}

func (w *waiter) stop() bool {
	first := false
	w.once.Do(func() {
		close(w.stopped)
		first = true
	})
	return first
}

func (w *waiter) isStopped() bool {
	select {
	case <-w.stopped:
		return true
	default:
		return false
	}
}

type manualTicker struct{ w *waiter }

func (t manualTicker) C() <-chan time.Time { return t.w.c }
func (t manualTicker) Stop()               { t.w.stop() }

type manualTimer struct{ w *waiter }

func (t manualTimer) C() <-chan time.Time { return t.w.c }
func (t manualTimer) Stop() bool          { return t.w.stop() }

func newManualClock() *manualClock {
	return &manualClock{now: epoch, added: make(chan struct{}, 64)}
}

var _ practice.Clock = (*manualClock)(nil)

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) add(d, period time.Duration) *waiter {
	c.mu.Lock()
	c.seq++
	w := &waiter{
		at:      c.now.Add(d),
		period:  period,
		seq:     c.seq,
		c:       make(chan time.Time),
		stopped: make(chan struct{}),
	}
	c.waiters = append(c.waiters, w)
	c.mu.Unlock()
	c.added <- struct{}{}
	return w
}

func (c *manualClock) NewTicker(d time.Duration) practice.Ticker {
	return manualTicker{c.add(d, d)}
}

func (c *manualClock) NewTimer(d time.Duration) practice.Timer {
	return manualTimer{c.add(d, 0)}
}

// WaitForWaiters blocks until n tickers or timers have been created.
func (c *manualClock) WaitForWaiters(t *testing.T, n int) {
	t.Helper()
	for range n {
		select {
		case <-c.added:
		case <-time.After(5 * time.Second):
			t.Fatalf("timed out waiting for %d clock waiters", n)
		}
	}
}

// Advance moves the clock forward by d, delivering every due event.
func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	target := c.now.Add(d)
	c.mu.Unlock()

	for {
		c.mu.Lock()
		var due []*waiter
		for _, w := range c.waiters {
			if !w.isStopped() && !w.fired && !w.at.After(target) {
				due = append(due, w)
			}
		}
		if len(due) == 0 {
			c.now = target
			c.mu.Unlock()
			return
		}
		sort.Slice(due, func(i, j int) bool {
			if due[i].at.Equal(due[j].at) {
				return due[i].seq < due[j].seq
			}
			return due[i].at.Before(due[j].at)
		})
		w := due[0]
		at := w.at
		c.now = at
		if w.period > 0 {
			w.at = at.Add(w.period)
		} else {
			w.fired = true
		}
		c.mu.Unlock()

		select {
		case w.c <- at:
		case <-w.stopped:
		}
	}
}

// traceMeter is an [practice.Analyser] whose n-th reading (1-based) is
// level(n). Written audio is ignored.
type traceMeter struct {
	mu    sync.Mutex
	calls int
	level func(n int) float64
}

func (m *traceMeter) Level() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	return m.level(m.calls)
}

func (m *traceMeter) Write([]byte, audio.Format) {}

func (m *traceMeter) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func silent(int) float64 { return 0 }

func loud(int) float64 { return 80 }

// loudFor is voiced for the first n readings and silent afterwards.
func loudFor(n int) func(int) float64 {
	return func(i int) float64 {
		if i <= n {
			return 80
		}
		return 2
	}
}
