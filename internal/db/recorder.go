package db

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/banshee-data/reflex/internal/control"
	"github.com/banshee-data/reflex/internal/monitoring"
)

// ErrRecorderClosed is returned by Recorder.Publish after Close.
var ErrRecorderClosed = errors.New("recorder closed")

// DefaultRecorderBuffer is the number of ticks a Recorder queues before it
// starts dropping.
const DefaultRecorderBuffer = 256

// Recorder is a control.Sink that journals ticks on a background goroutine so
// the control loop never waits on disk. When the queue is full ordinary ticks
// are dropped and counted; the final stop tick waits for room.
type Recorder struct {
	db    *DB
	runID string

	mu     sync.RWMutex
	closed bool
	queue  chan control.Tick
	done   chan struct{}

	dropped atomic.Uint64
	written atomic.Uint64
	failed  atomic.Uint64
}

// StartRecorder starts the writer goroutine. Close must be called once the
// control loop has returned.
func StartRecorder(db *DB, runID string, buffer int) *Recorder {
	if buffer <= 0 {
		buffer = DefaultRecorderBuffer
	}
	r := &Recorder{
		db:    db,
		runID: runID,
		queue: make(chan control.Tick, buffer),
		done:  make(chan struct{}),
	}
	go r.run()
	return r
}

func (r *Recorder) run() {
	defer close(r.done)
	for t := range r.queue {
		if err := r.db.RecordTick(r.runID, t); err != nil {
			r.failed.Add(1)
			monitoring.Warnf("[db] %v", err)
			continue
		}
		r.written.Add(1)
	}
}

// Publish queues t for writing.
func (r *Recorder) Publish(ctx context.Context, t control.Tick) error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return ErrRecorderClosed
	}
	if t.Final {
		select {
		case r.queue <- t:
			return nil
		case <-ctx.Done():
			r.dropped.Add(1)
			return ctx.Err()
		}
	}
	select {
	case r.queue <- t:
	default:
		if r.dropped.Add(1) == 1 {
			monitoring.Warnf("[db] recorder queue full, dropping ticks")
		}
	}
	return nil
}

// Close stops accepting ticks and waits for the queue to drain.
func (r *Recorder) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		<-r.done
		return
	}
	r.closed = true
	close(r.queue)
	r.mu.Unlock()
	<-r.done
	monitoring.Logf("[db] recorder closed: run=%s written=%d dropped=%d failed=%d",
		r.runID, r.written.Load(), r.dropped.Load(), r.failed.Load())
}

// RunID is the run the recorder writes to.
func (r *Recorder) RunID() string { return r.runID }

// Written returns the number of ticks committed.
func (r *Recorder) Written() uint64 { return r.written.Load() }

// Dropped returns the number of ticks discarded because the queue was full.
func (r *Recorder) Dropped() uint64 { return r.dropped.Load() }
