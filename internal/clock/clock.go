// Package clock abstracts time for the scheduler so tests can drive
// ticks and "now" values without real sleeps.
package clock

import (
	"sync"
	"time"
)

// Clock supplies the current time and tickers.
type Clock interface {
	// Now returns the current UTC instant.
	Now() time.Time

	// NewTicker returns a ticker firing every d.
	NewTicker(d time.Duration) Ticker
}

// Ticker is the minimal surface of time.Ticker the scheduler needs.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

// NewReal returns a Clock backed by the system clock.
func NewReal() Clock {
	return realClock{}
}

type realClock struct{}

func (realClock) Now() time.Time {
	return time.Now().UTC()
}

func (realClock) NewTicker(d time.Duration) Ticker {
	return &realTicker{t: time.NewTicker(d)}
}

type realTicker struct {
	t *time.Ticker
}

func (r *realTicker) C() <-chan time.Time { return r.t.C }
func (r *realTicker) Stop()               { r.t.Stop() }

// Manual is a test clock. Now returns a settable instant and Tick
// fires every ticker created from it.
type Manual struct {
	mu      sync.Mutex
	now     time.Time
	tickers []*manualTicker
}

// NewManual returns a Manual clock starting at the given instant.
func NewManual(now time.Time) *Manual {
	return &Manual{now: now.UTC()}
}

// Now implements Clock.
func (m *Manual) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

// Set moves the clock to the given instant.
func (m *Manual) Set(now time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = now.UTC()
}

// Advance moves the clock forward by d.
func (m *Manual) Advance(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = m.now.Add(d)
}

// NewTicker implements Clock.
func (m *Manual) NewTicker(d time.Duration) Ticker {
	m.mu.Lock()
	defer m.mu.Unlock()
	t := &manualTicker{ch: make(chan time.Time, 1)}
	m.tickers = append(m.tickers, t)
	return t
}

// Tick fires every live ticker once with the clock's current time.
func (m *Manual) Tick() {
	m.mu.Lock()
	now := m.now
	tickers := append([]*manualTicker(nil), m.tickers...)
	m.mu.Unlock()

	for _, t := range tickers {
		t.fire(now)
	}
}

type manualTicker struct {
	mu      sync.Mutex
	ch      chan time.Time
	stopped bool
}

func (t *manualTicker) C() <-chan time.Time { return t.ch }

func (t *manualTicker) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopped = true
}

func (t *manualTicker) fire(now time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stopped {
		return
	}
	select {
	case t.ch <- now:
	default:
	}
}
