package integrity

import (
	"sync"
	"time"
)

// Clock is the time source of a Tracker.
type Clock interface {
	Now() time.Time
	NewTicker(d time.Duration) Ticker
}

type Ticker interface {
	C() <-chan time.Time
	Stop()
}

type realClock struct{}

// RealClock is backed by the time package.
var RealClock Clock = realClock{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) NewTicker(d time.Duration) Ticker { return realTicker{time.NewTicker(d)} }

type realTicker struct{ t *time.Ticker }

func (rt realTicker) C() <-chan time.Time { return rt.t.C }
func (rt realTicker) Stop()               { rt.t.Stop() }

// ManualClock only moves when told to. Tickers fire from Advance.
type ManualClock struct {
	mu      sync.Mutex
	now     time.Time
	tickers []*manualTicker
}

func NewManualClock(start time.Time) *ManualClock {
	return &ManualClock{now: start}
}

func (c *ManualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *ManualClock) NewTicker(d time.Duration) Ticker {
	c.mu.Lock()
	defer c.mu.Unlock()

	t := &manualTicker{
		period: d,
		next:   c.now.Add(d),
		ch:     make(chan time.Time),
		done:   make(chan struct{}),
	}
	c.tickers = append(c.tickers, t)
	return t
}

// Advance moves the clock forward by d and delivers every tick that fell due, in order.
// Each delivery blocks until the ticker's reader receives it or the ticker is stopped.
func (c *ManualClock) Advance(d time.Duration) {
	c.mu.Lock()
	target := c.now.Add(d)
	tickers := make([]*manualTicker, len(c.tickers))
	copy(tickers, c.tickers)
	c.mu.Unlock()

	for {
		var due *manualTicker
		for _, t := range tickers {
			if t.stopped() || t.next.After(target) {
				continue
			}
			if due == nil || t.next.Before(due.next) {
				due = t
			}
		}
		if due == nil {
			break
		}
		at := due.next
		due.next = due.next.Add(due.period)

		c.mu.Lock()
		c.now = at
		c.mu.Unlock()

		select {
		case due.ch <- at:
		case <-due.done:
		}
	}

	c.mu.Lock()
	c.now = target
	c.mu.Unlock()
}

type manualTicker struct {
	period time.Duration
	next   time.Time
	ch     chan time.Time
	done   chan struct{}
	once   sync.Once
}

func (t *manualTicker) C() <-chan time.Time { return t.ch }

func (t *manualTicker) Stop() { t.once.Do(func() { close(t.done) }) }

func (t *manualTicker) stopped() bool {
	select {
	case <-t.done:
		return true
	default:
		return false
	}
}
