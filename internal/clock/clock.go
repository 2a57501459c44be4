// Package clock abstracts the wall clock so reconnection schedules can be tested.
package clock

import (
	"sync"
	"time"
)

// Face is the interface for a clock that can be used to get the current time.
type Face interface {
	Now() time.Time
}

// System is the system clock.
type System struct{}

// Now returns the current time.
func (System) Now() time.Time {
	return time.Now()
}

// Mock is a settable clock. The zero value reports the zero time.
type Mock struct {
	mu  sync.RWMutex
	now time.Time
}

// NewMock returns a mock clock set to now.
func NewMock(now time.Time) *Mock {
	return &Mock{now: now}
}

// Now returns the current mock time.
func (m *Mock) Now() time.Time {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.now
}

// SetNow sets the current time.
func (m *Mock) SetNow(now time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = now
}

// Advance moves the clock forward by d.
func (m *Mock) Advance(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = m.now.Add(d)
}
