// Package cooldown rate-limits access-log writes with a single global window.
//
// The window is shared across every identity: a grant for one person
// suppresses logging of anyone else seen inside the window.
package cooldown

import (
	"sync"
	"time"
)

const DefaultWindow = 2 * time.Second

// State is the last emission time. The zero value has never emitted.
type State struct {
	LastEmitted time.Time
}

// ShouldEmit reports whether an event at now falls strictly after the window.
func ShouldEmit(s State, window time.Duration, now time.Time) bool {
	if s.LastEmitted.IsZero() {
		return true
	}
	return now.Sub(s.LastEmitted) > window
}

// Record returns the state after emitting at now.
func (s State) Record(now time.Time) State {
	return State{LastEmitted: now}
}

// Gate is a goroutine-safe wrapper over State.
type Gate struct {
	mu     sync.Mutex
	window time.Duration
	state  State
}

func NewGate(window time.Duration) *Gate {
	if window < 0 {
		window = 0
	}
	return &Gate{window: window}
}

func (g *Gate) Window() time.Duration { return g.window }

func (g *Gate) ShouldEmit(now time.Time) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return ShouldEmit(g.state, g.window, now)
}

func (g *Gate) RecordEmitted(now time.Time) {
	g.mu.Lock()
	g.state = g.state.Record(now)
	g.mu.Unlock()
}

func (g *Gate) State() State {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

// TryEmit checks and records in one step. It returns false when suppressed.
func (g *Gate) TryEmit(now time.Time) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !ShouldEmit(g.state, g.window, now) {
		return false
	}
	g.state = g.state.Record(now)
	return true
}
