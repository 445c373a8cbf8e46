// Package sensorfeed turns lines from the range sensor board into controller
// updates. It is the only writer of the controller's readings.
package sensorfeed

import (
	"context"
	"errors"
	"sync/atomic"

	"github.com/banshee-data/reflex/internal/avoidance"
	"github.com/banshee-data/reflex/internal/monitoring"
	"github.com/banshee-data/reflex/internal/serialmux"
)

// Updater receives parsed readings. *avoidance.Controller satisfies it.
type Updater interface {
	UpdateReading(s avoidance.Sensor, d float64)
}

// Source is the subset of serialmux.SerialMuxInterface the feed needs.
type Source interface {
	Subscribe() (string, chan string)
	Unsubscribe(string)
}

var _ Source = serialmux.SerialMuxInterface(nil)

// Stats counts what a feed has seen.
type Stats struct {
	Readings  uint64 `json:"readings"`
	Skipped   uint64 `json:"skipped"`
	Malformed uint64 `json:"malformed"`
}

// Feed subscribes to a Source and forwards every reading to an Updater.
type Feed struct {
	src   Source
	dst   Updater
	fixed *avoidance.Sensor
	name  string

	readings  atomic.Uint64
	skipped   atomic.Uint64
	malformed atomic.Uint64
}

// New returns a feed for a port carrying readings from any sensor, each line
// naming its sensor.
func New(name string, src Source, dst Updater) *Feed {
	return &Feed{name: name, src: src, dst: dst}
}

// NewDedicated returns a feed for a port wired to a single sensor; bare
// numeric lines are attributed to s.
func NewDedicated(name string, src Source, dst Updater, s avoidance.Sensor) *Feed {
	return &Feed{name: name, src: src, dst: dst, fixed: &s}
}

// Stats returns a snapshot of the feed counters.
func (f *Feed) Stats() Stats {
	return Stats{
		Readings:  f.readings.Load(),
		Skipped:   f.skipped.Load(),
		Malformed: f.malformed.Load(),
	}
}

// HandleLine parses one line and applies it. Malformed lines are logged and
// counted; they never stop the feed.
func (f *Feed) HandleLine(line string) error {
	r, err := ParseLine(line, f.fixed)
	if errors.Is(err, ErrSkip) {
		f.skipped.Add(1)
		return nil
	}
	if err != nil {
		f.malformed.Add(1)
		return err
	}
	f.dst.UpdateReading(r.Sensor, r.Distance)
	f.readings.Add(1)
	return nil
}

// Run forwards lines until ctx is cancelled or the subscription closes. It
// returns nil in both cases.
func (f *Feed) Run(ctx context.Context) error {
	id, c := f.src.Subscribe()
	defer f.src.Unsubscribe(id)

	for {
		select {
		case line, ok := <-c:
			if !ok {
				monitoring.Logf("[sensorfeed] %s: subscription closed", f.name)
				return nil
			}
			if err := f.HandleLine(line); err != nil {
				monitoring.Logf("[sensorfeed] %s: error handling line: %v", f.name, err)
			}
		case <-ctx.Done():
			monitoring.Logf("[sensorfeed] %s: stopped after %d readings", f.name, f.readings.Load())
			return nil
		}
	}
}
