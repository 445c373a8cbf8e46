package avoidance

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// Default control parameters. These match the values shipped in
// config/avoider.defaults.json.
const (
	DefaultObstacleThreshold = 0.3  // metres
	DefaultLinearSpeed       = 0.2  // m/s
	DefaultAngularSpeed      = 0.5  // rad/s
	DefaultSideMarginFactor  = 1.2  // dimensionless
	DefaultTickRateHz        = 10.0 // Hz
)

// nudgeScale is applied to AngularSpeed for side proximity corrections.
const nudgeScale = 0.5

// ErrInvalidParameter is wrapped by every ConfigError so callers can test
// for configuration failures with errors.Is.
var ErrInvalidParameter = errors.New("invalid control parameter")

// ConfigError reports a control parameter that is non-positive, NaN or
// infinite.
type ConfigError struct {
	Field string
	Value float64
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("%s must be a positive finite number, got %v", e.Field, e.Value)
}

func (e *ConfigError) Unwrap() error { return ErrInvalidParameter }

// Params holds the control parameters. They are fixed once a Controller has
// been constructed.
type Params struct {
	ObstacleThreshold float64 `json:"obstacle_threshold"`
	LinearSpeed       float64 `json:"linear_speed"`
	AngularSpeed      float64 `json:"angular_speed"`
	SideMarginFactor  float64 `json:"side_margin_factor"`
	TickRateHz        float64 `json:"tick_rate_hz"`
}

// DefaultParams returns the stock parameter set.
func DefaultParams() Params {
	return Params{
		ObstacleThreshold: DefaultObstacleThreshold,
		LinearSpeed:       DefaultLinearSpeed,
		AngularSpeed:      DefaultAngularSpeed,
		SideMarginFactor:  DefaultSideMarginFactor,
		TickRateHz:        DefaultTickRateHz,
	}
}

// Validate returns a *ConfigError for the first parameter that is not a
// positive finite number.
func (p Params) Validate() error {
	for _, f := range []struct {
		name  string
		value float64
	}{
		{"obstacle_threshold", p.ObstacleThreshold},
		{"linear_speed", p.LinearSpeed},
		{"angular_speed", p.AngularSpeed},
		{"side_margin_factor", p.SideMarginFactor},
		{"tick_rate_hz", p.TickRateHz},
	} {
		if math.IsNaN(f.value) || math.IsInf(f.value, 0) || f.value <= 0 {
			return &ConfigError{Field: f.name, Value: f.value}
		}
	}
	return nil
}

// SideZone is the distance under which a side reading triggers a nudge.
func (p Params) SideZone() float64 {
	return p.ObstacleThreshold * p.SideMarginFactor
}

// TickInterval converts TickRateHz into the loop period.
func (p Params) TickInterval() time.Duration {
	return time.Duration(float64(time.Second) / p.TickRateHz)
}
