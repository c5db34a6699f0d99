package session

import (
	"context"
	"sync/atomic"
)

// Mailbox is a single-slot, latest-wins frame inbox. A frame published while
// an older one is still unconsumed replaces it, so the consumer never works
// through a backlog of stale frames.
//
// Put must be called from a single producer (the connection reader).
type Mailbox struct {
	slot    chan string
	dropped atomic.Uint64
}

// NewMailbox creates an empty mailbox
func NewMailbox() *Mailbox {
	return &Mailbox{slot: make(chan string, 1)}
}

// Put publishes payload. It reports true if an unconsumed older payload was
// discarded to make room.
func (m *Mailbox) Put(payload string) (superseded bool) {
	for {
		select {
		case m.slot <- payload:
			return superseded
		default:
		}
		select {
		case <-m.slot:
			superseded = true
			m.dropped.Add(1)
		default:
			// Consumer took it between the two selects; retry the send
		}
	}
}

// Take blocks until a payload is available or ctx is done
func (m *Mailbox) Take(ctx context.Context) (string, error) {
	select {
	case p := <-m.slot:
		return p, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// Dropped returns how many payloads were superseded
func (m *Mailbox) Dropped() uint64 {
	return m.dropped.Load()
}
