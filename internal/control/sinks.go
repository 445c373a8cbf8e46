package control

import (
	"context"
	"errors"
	"sync"

	"github.com/banshee-data/reflex/internal/avoidance"
)

// MultiSink publishes each tick to every sink in order. A failing sink does
// not prevent the others from receiving the tick.
type MultiSink []Sink

// Publish fans t out and joins any errors.
func (m MultiSink) Publish(ctx context.Context, t Tick) error {
	var errs []error
	for _, s := range m {
		if err := s.Publish(ctx, t); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// StateTracker is a sink that remembers the latest tick and how often each
// decision has been taken. It is safe for concurrent use.
type StateTracker struct {
	mu     sync.RWMutex
	latest Tick
	seen   bool
	counts map[avoidance.Decision]uint64
	stops  uint64
}

// NewStateTracker returns an empty tracker.
func NewStateTracker() *StateTracker {
	return &StateTracker{counts: make(map[avoidance.Decision]uint64)}
}

// Publish records t.
func (s *StateTracker) Publish(_ context.Context, t Tick) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.latest = t
	s.seen = true
	if t.Final {
		s.stops++
	} else {
		s.counts[t.Decision]++
	}
	return nil
}

// Latest returns the most recent tick, if any.
func (s *StateTracker) Latest() (Tick, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.latest, s.seen
}

// Counts returns a copy of the per-decision tick counts.
func (s *StateTracker) Counts() map[avoidance.Decision]uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[avoidance.Decision]uint64, len(s.counts))
	for d, n := range s.counts {
		out[d] = n
	}
	return out
}

// Stops returns how many final stop ticks have been seen.
func (s *StateTracker) Stops() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stops
}
