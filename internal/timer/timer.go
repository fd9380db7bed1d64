// Package timer drives the per-turn countdown of a room.
package timer

import (
	"sync"
	"time"
)

// Ticker is the subset of *time.Ticker the countdown needs.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

// Factory creates tickers. Tests swap in a manual implementation.
type Factory interface {
	NewTicker(d time.Duration) Ticker
}

type realTicker struct{ t *time.Ticker }

func (r realTicker) C() <-chan time.Time { return r.t.C }
func (r realTicker) Stop()               { r.t.Stop() }

type systemFactory struct{}

func (systemFactory) NewTicker(d time.Duration) Ticker {
	return realTicker{t: time.NewTicker(d)}
}

// System returns a factory backed by time.NewTicker.
func System() Factory { return systemFactory{} }

// Countdown calls a tick handler once per interval until cancelled.
type Countdown struct {
	ticker Ticker
	stop   chan struct{}
	once   sync.Once
}

// Start launches a countdown. onTick runs on the countdown's own goroutine, so it must do
// its own locking and must tolerate being called once more right after Cancel.
func Start(f Factory, interval time.Duration, onTick func()) *Countdown {
	c := &Countdown{
		ticker: f.NewTicker(interval),
		stop:   make(chan struct{}),
	}
	go c.run(onTick)
	return c
}

func (c *Countdown) run(onTick func()) {
	defer c.ticker.Stop()
	for {
		select {
		case <-c.stop:
			return
		case <-c.ticker.C():
			select {
			case <-c.stop:
				return
			default:
			}
			onTick()
		}
	}
}

// Cancel stops future ticks. It never blocks, so it is safe to call while holding the lock
// onTick acquires.
func (c *Countdown) Cancel() {
	if c == nil {
		return
	}
	c.once.Do(func() { close(c.stop) })
}
