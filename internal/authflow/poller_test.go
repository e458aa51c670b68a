package authflow

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestPoller_StopsWhenTickReturnsFalse(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	tickers := &tickerFactory{}
	var wg sync.WaitGroup
	var calls atomic.Int32
	p := startPoller(context.Background(), &wg, tickers.New, time.Second, func(context.Context) bool {
		return calls.Add(1) < 2
	})

	tk := tickers.Last()
	tk.Fire(t)
	tk.Fire(t)
	p.wait()
	wg.Wait()

	assert.Equal(t, int32(2), calls.Load())
	assert.Equal(t, 1, tickers.Started())
	assert.Equal(t, 1, tickers.Stopped())
	assert.Equal(t, time.Second, tickers.interval)
}

func TestPoller_HaltIsIdempotent(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	tickers := &tickerFactory{}
	var wg sync.WaitGroup
	p := startPoller(context.Background(), &wg, tickers.New, time.Second, func(context.Context) bool {
		t.Error("tick should not run after halt")
		return true
	})

	p.halt()
	p.halt()
	p.wait()
	wg.Wait()

	assert.Equal(t, 1, tickers.Stopped())
}

func TestPoller_ParentCancelStops(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	ctx, cancel := context.WithCancel(context.Background())
	tickers := &tickerFactory{}
	var wg sync.WaitGroup
	p := startPoller(ctx, &wg, tickers.New, time.Second, func(context.Context) bool { return true })

	cancel()
	p.wait()
	wg.Wait()
	require.Equal(t, 1, tickers.Stopped())
}

func TestNewTimeTicker(t *testing.T) {
	tk := NewTimeTicker(5 * time.Millisecond)
	defer tk.Stop()

	select {
	case <-tk.C():
	case <-time.After(time.Second):
		t.Fatal("ticker did not fire")
	}
}
