package mocks

import (
	"sync"

	"github.com/mcoot/smartkiosk/internal/model"
)

// RecordingConn is an in-memory session connection that records every event
type RecordingConn struct {
	mu      sync.Mutex
	events  []model.Event
	closed  bool
	SendErr error // returned by Send when set
}

// NewRecordingConn creates an open RecordingConn
func NewRecordingConn() *RecordingConn {
	return &RecordingConn{}
}

// Send records the event, or fails once the connection is closed or SendErr is set
func (c *RecordingConn) Send(event model.Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return model.ErrConnectionClosed
	}
	if c.SendErr != nil {
		return c.SendErr
	}
	c.events = append(c.events, event)
	return nil
}

// Close marks the connection closed
func (c *RecordingConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

// IsClosed reports whether Close was called
func (c *RecordingConn) IsClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// Events returns a copy of the recorded events
func (c *RecordingConn) Events() []model.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]model.Event, len(c.events))
	copy(out, c.events)
	return out
}

// Types returns the recorded event types in order
func (c *RecordingConn) Types() []model.EventType {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]model.EventType, len(c.events))
	for i, e := range c.events {
		out[i] = e.Type
	}
	return out
}

// Reset discards recorded events
func (c *RecordingConn) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = nil
}
