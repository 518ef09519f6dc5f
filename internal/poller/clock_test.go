package poller

import (
	"sync"
	"time"
)

// manualClock hands out tickers that fire only when Tick is called
type manualClock struct {
	mu      sync.Mutex
	now     time.Time
	tickers []*manualTicker
}

func newManualClock() *manualClock {
	return &manualClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) Ticker(d time.Duration) Ticker {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &manualTicker{ch: make(chan time.Time), d: d}
	c.tickers = append(c.tickers, t)
	return t
}

// Tick advances time by each ticker's period and delivers one tick to every
// live ticker, blocking until the receiving loop accepts it.
func (c *manualClock) Tick() {
	c.mu.Lock()
	tickers := append([]*manualTicker(nil), c.tickers...)
	c.mu.Unlock()

	for _, t := range tickers {
		if t.stopped() {
			continue
		}
		c.mu.Lock()
		c.now = c.now.Add(t.d)
		now := c.now
		c.mu.Unlock()

		select {
		case t.ch <- now:
		case <-time.After(time.Second):
		}
	}
}

// waitTickers blocks until n tickers were created
func (c *manualClock) waitTickers(n int) bool {
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		c.mu.Lock()
		got := len(c.tickers)
		c.mu.Unlock()
		if got >= n {
			return true
		}
		time.Sleep(time.Millisecond)
	}
	return false
}

type manualTicker struct {
	mu   sync.Mutex
	ch   chan time.Time
	d    time.Duration
	stop bool
}

func (t *manualTicker) Chan() <-chan time.Time {
	return t.ch
}

func (t *manualTicker) Stop() {
	t.mu.Lock()
	t.stop = true
	t.mu.Unlock()
}

func (t *manualTicker) stopped() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stop
}
