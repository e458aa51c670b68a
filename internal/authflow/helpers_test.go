package authflow

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

type fakeTicker struct {
	ch    chan time.Time
	stops atomic.Int32
}

func (t *fakeTicker) C() <-chan time.Time { return t.ch }
func (t *fakeTicker) Stop()               { t.stops.Add(1) }

// Fire delivers one tick and returns once the poller has received it.
func (t *fakeTicker) Fire(tb testing.TB) {
	tb.Helper()
	select {
	case t.ch <- time.Now():
	case <-time.After(time.Second):
		tb.Fatal("poller did not receive tick")
	}
}

type tickerFactory struct {
	mu       sync.Mutex
	tickers  []*fakeTicker
	interval time.Duration
}

func (f *tickerFactory) New(d time.Duration) Ticker {
	f.mu.Lock()
	defer f.mu.Unlock()
	t := &fakeTicker{ch: make(chan time.Time)}
	f.tickers = append(f.tickers, t)
	f.interval = d
	return t
}

func (f *tickerFactory) Started() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.tickers)
}

func (f *tickerFactory) Stopped() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, t := range f.tickers {
		n += int(t.stops.Load())
	}
	return n
}

func (f *tickerFactory) Last() *fakeTicker {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.tickers[len(f.tickers)-1]
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}
