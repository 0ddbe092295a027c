// Package download implements the batched, re-authenticating, retrying asset
// download core: sequential signed batches with concurrent fetches inside
// each batch, per-batch partial artifacts merged afterwards, a bounded
// whole-collection retry loop, and a statistical size preview.
package download

import (
	"sync/atomic"

	"github.com/google/uuid"
)

// EventPhase classifies progress events.
type EventPhase string

// Progress event phases.
const (
	PhaseFile EventPhase = "file"
	PhaseItem EventPhase = "item"
)

// Event is emitted on the session channel for every completed file and item.
type Event struct {
	Phase  EventPhase
	ItemID string
	Path   string
}

// Session is the ephemeral per-run state of one download attempt: the
// progress-event channel, the output directory, and the directory-size cell
// shared between the background poller (writer) and the progress consumer
// (reader).
type Session struct {
	ID  string
	Dir string

	// Events carries one event per completed file/item. The orchestrator
	// closes it once all batches finish; the monitor exits on close.
	Events chan Event

	dirSize atomic.Int64
}

// NewSession creates a session for one attempt into dir.
func NewSession(dir string) *Session {
	return &Session{
		ID:     uuid.NewString(),
		Dir:    dir,
		Events: make(chan Event, 64),
	}
}

// Emit publishes a progress event without ever blocking a fetch worker.
func (s *Session) Emit(ev Event) {
	select {
	case s.Events <- ev:
	default:
	}
}

// Close signals the end of the session to the progress consumer.
func (s *Session) Close() {
	close(s.Events)
}

// ObservedSize returns the last directory size sampled by the poller.
func (s *Session) ObservedSize() int64 {
	return s.dirSize.Load()
}

// setObservedSize is called by the background poller only.
func (s *Session) setObservedSize(size int64) {
	s.dirSize.Store(size)
}
