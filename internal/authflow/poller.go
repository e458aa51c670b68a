package authflow

import (
	"context"
	"sync"
	"time"
)

// Ticker is the part of time.Ticker the poller uses.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

// TickerFactory creates the ticker that paces scan status polls.
type TickerFactory func(d time.Duration) Ticker

type timeTicker struct {
	t *time.Ticker
}

func (t timeTicker) C() <-chan time.Time { return t.t.C }
func (t timeTicker) Stop()               { t.t.Stop() }

// NewTimeTicker is the production TickerFactory.
func NewTimeTicker(d time.Duration) Ticker {
	return timeTicker{t: time.NewTicker(d)}
}

// poller owns one polling goroutine. The ticker is created when the poller
// starts and stopped when the goroutine exits, so each poller starts and
// stops exactly one ticker.
type poller struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// startPoller calls tick on every ticker fire until ctx is cancelled or tick
// returns false.
func startPoller(parent context.Context, wg *sync.WaitGroup, newTicker TickerFactory, interval time.Duration, tick func(ctx context.Context) bool) *poller {
	ctx, cancel := context.WithCancel(parent)
	p := &poller{cancel: cancel, done: make(chan struct{})}
	ticker := newTicker(interval)

	wg.Add(1)
	go func() {
		defer wg.Done()
		defer close(p.done)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C():
				if ctx.Err() != nil {
					return
				}
				if !tick(ctx) {
					return
				}
			}
		}
	}()
	return p
}

// halt cancels the poller without waiting. Safe to call from inside tick and
// more than once.
func (p *poller) halt() {
	p.cancel()
}

// wait blocks until the polling goroutine has exited. It must not be called
// while holding the session lock.
func (p *poller) wait() {
	<-p.done
}
