package timer

import (
	"sync"
	"time"
)

// Manual is a Factory whose tickers only fire when Fire is called.
type Manual struct {
	mu      sync.Mutex
	tickers []*ManualTicker
}

type ManualTicker struct {
	ch      chan time.Time
	mu      sync.Mutex
	stopped bool
}

func (t *ManualTicker) C() <-chan time.Time { return t.ch }

func (t *ManualTicker) Stop() {
	t.mu.Lock()
	t.stopped = true
	t.mu.Unlock()
}

func (t *ManualTicker) Stopped() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stopped
}

func (m *Manual) NewTicker(time.Duration) Ticker {
	t := &ManualTicker{ch: make(chan time.Time)}
	m.mu.Lock()
	m.tickers = append(m.tickers, t)
	m.mu.Unlock()
	return t
}

// Created reports how many tickers have been handed out.
func (m *Manual) Created() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.tickers)
}

// Latest returns the most recently created ticker, or nil.
func (m *Manual) Latest() *ManualTicker {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.tickers) == 0 {
		return nil
	}
	return m.tickers[len(m.tickers)-1]
}

// Fire delivers one tick to t, giving up after wait if nobody is listening.
func (t *ManualTicker) Fire(wait time.Duration) bool {
	select {
	case t.ch <- time.Now():
		return true
	case <-time.After(wait):
		return false
	}
}
