package avoidance

import (
	"fmt"
	"math"
	"strings"
)

// Unknown is the distance stored for a sensor that has not reported yet, or
// that reported something unusable. It never compares less than a threshold.
var Unknown = math.Inf(1)

// Sensor identifies one of the three range sensors.
type Sensor int

const (
	Left Sensor = iota
	Front
	Right
)

// Sensors lists every sensor in a stable order.
var Sensors = []Sensor{Left, Front, Right}

func (s Sensor) String() string {
	switch s {
	case Left:
		return "left"
	case Front:
		return "front"
	case Right:
		return "right"
	default:
		return fmt.Sprintf("sensor(%d)", int(s))
	}
}

// Valid reports whether s names one of the three sensors.
func (s Sensor) Valid() bool {
	return s == Left || s == Front || s == Right
}

// ParseSensor accepts the full sensor name or its first letter, in any case.
func ParseSensor(name string) (Sensor, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "left", "l":
		return Left, nil
	case "front", "f":
		return Front, nil
	case "right", "r":
		return Right, nil
	}
	return 0, fmt.Errorf("unknown sensor %q: expected left, front or right", name)
}

// Readings is a snapshot of the three distances in metres.
type Readings struct {
	Left  float64 `json:"left"`
	Front float64 `json:"front"`
	Right float64 `json:"right"`
}

// UnknownReadings is the state before any sensor has reported.
func UnknownReadings() Readings {
	return Readings{Left: Unknown, Front: Unknown, Right: Unknown}
}

// Get returns the reading for s. Invalid sensors read as Unknown.
func (r Readings) Get(s Sensor) float64 {
	switch s {
	case Left:
		return r.Left
	case Front:
		return r.Front
	case Right:
		return r.Right
	}
	return Unknown
}

func (r *Readings) set(s Sensor, v float64) {
	switch s {
	case Left:
		r.Left = v
	case Front:
		r.Front = v
	case Right:
		r.Right = v
	}
}

func (r Readings) String() string {
	return fmt.Sprintf("left=%s front=%s right=%s", fmtDistance(r.Left), fmtDistance(r.Front), fmtDistance(r.Right))
}

func fmtDistance(d float64) string {
	if math.IsInf(d, 1) {
		return "inf"
	}
	return fmt.Sprintf("%.2fm", d)
}

// Command is a velocity command for the drive: forward speed in m/s and turn
// rate in rad/s, positive turning left.
type Command struct {
	LinearX  float64 `json:"linear_x"`
	AngularZ float64 `json:"angular_z"`
}

// Stop is the hard-stop command.
var Stop = Command{}

// IsStop reports whether c commands no motion at all.
func (c Command) IsStop() bool {
	return c.LinearX == 0 && c.AngularZ == 0
}

func (c Command) String() string {
	return fmt.Sprintf("linear_x=%.3f angular_z=%.3f", c.LinearX, c.AngularZ)
}

// Decision names the branch that produced a Command.
type Decision int

const (
	// Cruise: front clear, no side obstacle.
	Cruise Decision = iota
	// TurnLeft: front blocked, left has strictly more clearance.
	TurnLeft
	// TurnRight: front blocked, right has at least as much clearance.
	TurnRight
	// NudgeRight: front clear, obstacle close on the left.
	NudgeRight
	// NudgeLeft: front clear, obstacle close on the right.
	NudgeLeft
)

var decisionNames = map[Decision]string{
	Cruise:     "cruise",
	TurnLeft:   "turn_left",
	TurnRight:  "turn_right",
	NudgeRight: "nudge_right",
	NudgeLeft:  "nudge_left",
}

func (d Decision) String() string {
	if name, ok := decisionNames[d]; ok {
		return name
	}
	return fmt.Sprintf("decision(%d)", int(d))
}

// ParseDecision is the inverse of Decision.String.
func ParseDecision(name string) (Decision, error) {
	for d, n := range decisionNames {
		if n == name {
			return d, nil
		}
	}
	return 0, fmt.Errorf("unknown decision %q", name)
}

// FrontBlocked reports whether d is one of the in-place turns.
func (d Decision) FrontBlocked() bool {
	return d == TurnLeft || d == TurnRight
}
