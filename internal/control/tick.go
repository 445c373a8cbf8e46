// Package control runs the fixed-rate loop that turns controller state into
// one velocity command per tick and hands it to an actuator sink.
package control

import (
	"context"
	"time"

	"github.com/banshee-data/reflex/internal/avoidance"
)

// StopLabel is the label of the final hard-stop tick.
const StopLabel = "stop"

// Tick is one control cycle: the snapshot the controller saw and the command
// it produced. The final tick emitted on shutdown has Final set and always
// carries avoidance.Stop.
type Tick struct {
	Seq      uint64
	At       time.Time
	Readings avoidance.Readings
	Command  avoidance.Command
	Decision avoidance.Decision
	Final    bool
}

// Label names the tick for logs and the journal: the decision, or "stop" for
// the final tick.
func (t Tick) Label() string {
	if t.Final {
		return StopLabel
	}
	return t.Decision.String()
}

// Sink receives every command the loop produces.
type Sink interface {
	Publish(ctx context.Context, t Tick) error
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(ctx context.Context, t Tick) error

// Publish calls f.
func (f SinkFunc) Publish(ctx context.Context, t Tick) error {
	return f(ctx, t)
}
