package connector

import (
	"sync"
	"time"
)

// Status is the lifecycle state of the platform connection.
type Status string

const (
	StatusDisconnected Status = "disconnected"
	StatusQRChallenge  Status = "qr_challenge"
	StatusConnected    Status = "connected"
)

// State is one observed snapshot of the connection lifecycle. QR carries the
// pairing challenge payload while Status is StatusQRChallenge, empty otherwise.
type State struct {
	Status Status    `json:"status"`
	QR     string    `json:"qr,omitempty"`
	Since  time.Time `json:"since"`
}

// StateTracker owns the connection lifecycle state and fans transitions out
// to subscribers. It replaces ad hoc process-wide "client ready" and
// "current QR" flags: the transport adapter calls Set, everyone else reads
// Current or subscribes.
type StateTracker struct {
	mu     sync.RWMutex
	cur    State
	subs   []chan State
	closed bool
}

// NewStateTracker starts in StatusDisconnected.
func NewStateTracker() *StateTracker {
	return &StateTracker{
		cur: State{Status: StatusDisconnected, Since: time.Now()},
	}
}

// Set records a lifecycle transition and notifies subscribers.
// Subscriber channels are buffered; slow subscribers drop transitions.
func (t *StateTracker) Set(status Status, qr string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return
	}
	t.cur = State{Status: status, QR: qr, Since: time.Now()}
	for _, ch := range t.subs {
		select {
		case ch <- t.cur:
		default:
		}
	}
}

// Current returns the latest observed state.
func (t *StateTracker) Current() State {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.cur
}

// Connected reports whether dispatch may proceed.
func (t *StateTracker) Connected() bool {
	return t.Current().Status == StatusConnected
}

// Subscribe returns a channel that receives every subsequent transition.
// The channel is closed when the tracker shuts down.
func (t *StateTracker) Subscribe() <-chan State {
	t.mu.Lock()
	defer t.mu.Unlock()
	ch := make(chan State, 8)
	t.subs = append(t.subs, ch)
	return ch
}

// Close marks the tracker finished and closes all subscriber channels.
func (t *StateTracker) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return
	}
	t.closed = true
	for _, ch := range t.subs {
		close(ch)
	}
	t.subs = nil
}
