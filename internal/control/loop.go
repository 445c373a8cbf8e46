package control

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/banshee-data/reflex/internal/avoidance"
	"github.com/banshee-data/reflex/internal/monitoring"
	"github.com/banshee-data/reflex/internal/timeutil"
)

// DefaultStopTimeout bounds how long the final stop command may take to
// publish once the loop has been cancelled.
const DefaultStopTimeout = time.Second

// ErrAlreadyRunning is returned by Run if the loop has been started before.
var ErrAlreadyRunning = errors.New("control loop already started")

// Evaluator is the controller side of the loop.
type Evaluator interface {
	Evaluate() (avoidance.Readings, avoidance.Command, avoidance.Decision)
}

// LoopOptions configures a Loop.
type LoopOptions struct {
	// Interval is the tick period. Required.
	Interval time.Duration
	// Clock drives the ticker; defaults to timeutil.RealClock.
	Clock timeutil.Clock
	// StopTimeout bounds the final stop publish; defaults to DefaultStopTimeout.
	StopTimeout time.Duration
}

// Loop ticks at a fixed rate, evaluating the controller and publishing the
// result. It never reads sensors itself, only the cached controller state.
type Loop struct {
	ctrl        Evaluator
	sink        Sink
	clock       timeutil.Clock
	interval    time.Duration
	stopTimeout time.Duration

	started atomic.Bool
	seq     atomic.Uint64
}

// NewLoop builds a loop publishing ctrl's commands to sink.
func NewLoop(ctrl Evaluator, sink Sink, opts LoopOptions) (*Loop, error) {
	if ctrl == nil {
		return nil, errors.New("control loop requires a controller")
	}
	if sink == nil {
		return nil, errors.New("control loop requires a sink")
	}
	if opts.Interval <= 0 {
		return nil, fmt.Errorf("invalid tick interval %v", opts.Interval)
	}
	if opts.Clock == nil {
		opts.Clock = timeutil.RealClock{}
	}
	if opts.StopTimeout <= 0 {
		opts.StopTimeout = DefaultStopTimeout
	}
	return &Loop{
		ctrl:        ctrl,
		sink:        sink,
		clock:       opts.Clock,
		interval:    opts.Interval,
		stopTimeout: opts.StopTimeout,
	}, nil
}

// Ticks returns the number of ticks published so far, including the final
// stop once it has been sent.
func (l *Loop) Ticks() uint64 {
	return l.seq.Load()
}

// Run publishes one command per tick until ctx is cancelled, then publishes
// exactly one stop command and returns nil. Sink errors are logged and do not
// stop the loop.
func (l *Loop) Run(ctx context.Context) error {
	if !l.started.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}

	ticker := l.clock.NewTicker(l.interval)
	defer ticker.Stop()
	defer l.halt(ctx)

	monitoring.Logf("[control] loop started, interval %v", l.interval)
	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-ticker.C():
			if ctx.Err() != nil {
				return nil
			}
			l.step(ctx, now)
		}
	}
}

func (l *Loop) step(ctx context.Context, now time.Time) {
	r, cmd, d := l.ctrl.Evaluate()
	t := Tick{
		Seq:      l.seq.Add(1),
		At:       now,
		Readings: r,
		Command:  cmd,
		Decision: d,
	}
	if err := l.sink.Publish(ctx, t); err != nil {
		monitoring.Logf("[control] tick %d: publish failed: %v", t.Seq, err)
	}
}

// halt publishes the final stop command on a context that outlives the
// cancelled run context.
func (l *Loop) halt(ctx context.Context) {
	stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), l.stopTimeout)
	defer cancel()

	r, _, _ := l.ctrl.Evaluate()
	t := Tick{
		Seq:      l.seq.Add(1),
		At:       l.clock.Now(),
		Readings: r,
		Command:  avoidance.Stop,
		Final:    true,
	}
	if err := l.sink.Publish(stopCtx, t); err != nil {
		monitoring.Logf("[control] final stop publish failed: %v", err)
		return
	}
	monitoring.Logf("[control] loop stopped after %d ticks, sent %s", t.Seq-1, t.Command)
}
