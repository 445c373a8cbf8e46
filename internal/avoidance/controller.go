// Package avoidance implements a memoryless reflex controller that turns the
// latest left, front and right range readings into a velocity command.
//
// The controller keeps no history beyond the raw readings: every command is
// recomputed from scratch, so oscillation around a threshold is possible and
// accepted.
package avoidance

import (
	"math"
	"sync"

	"github.com/banshee-data/reflex/internal/monitoring"
)

// Controller holds the latest reading per sensor and the fixed parameters.
// UpdateReading and ComputeCommand may be called from different goroutines.
type Controller struct {
	params Params

	mu       sync.RWMutex
	readings Readings
}

// NewController validates p and returns a controller with every reading set
// to Unknown. A *ConfigError is returned for any bad parameter.
func NewController(p Params) (*Controller, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &Controller{
		params:   p,
		readings: UnknownReadings(),
	}, nil
}

// Params returns the parameters the controller was built with.
func (c *Controller) Params() Params {
	return c.params
}

// UpdateReading stores v as the current distance for s. Negative values are
// kept as-is; NaN is stored as Unknown. No command is computed.
func (c *Controller) UpdateReading(s Sensor, v float64) {
	if !s.Valid() {
		monitoring.Logf("[avoidance] ignoring reading %v for %s", v, s)
		return
	}
	if math.IsNaN(v) {
		v = Unknown
	}
	c.mu.Lock()
	c.readings.set(s, v)
	c.mu.Unlock()
}

// Readings returns a consistent snapshot of the three distances.
func (c *Controller) Readings() Readings {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.readings
}

// ComputeCommand returns the command for the current readings.
func (c *Controller) ComputeCommand() Command {
	cmd, _ := Decide(c.Readings(), c.params)
	return cmd
}

// Evaluate is ComputeCommand that also reports the snapshot it used and the
// branch taken.
func (c *Controller) Evaluate() (Readings, Command, Decision) {
	r := c.Readings()
	cmd, d := Decide(r, c.params)
	return r, cmd, d
}

// Decide maps readings to a command. It is a pure function.
//
// When the front is blocked the robot stops and turns in place toward the
// side with strictly more clearance; a left/right tie turns right. Otherwise
// it drives forward and, if a side obstacle is inside the side zone, nudges
// away from it at half the turn rate. The left side is checked first. All
// comparisons are strict, so a reading exactly at a threshold does not
// trigger avoidance.
func Decide(r Readings, p Params) (Command, Decision) {
	left, front, right := sanitize(r.Left), sanitize(r.Front), sanitize(r.Right)

	if front < p.ObstacleThreshold {
		if left > right {
			return Command{LinearX: 0, AngularZ: p.AngularSpeed}, TurnLeft
		}
		return Command{LinearX: 0, AngularZ: -p.AngularSpeed}, TurnRight
	}

	cmd := Command{LinearX: p.LinearSpeed, AngularZ: 0}
	zone := p.SideZone()
	switch {
	case left < zone:
		cmd.AngularZ = -p.AngularSpeed * nudgeScale
		return cmd, NudgeRight
	case right < zone:
		cmd.AngularZ = p.AngularSpeed * nudgeScale
		return cmd, NudgeLeft
	}
	return cmd, Cruise
}

func sanitize(d float64) float64 {
	if math.IsNaN(d) {
		return Unknown
	}
	return d
}
