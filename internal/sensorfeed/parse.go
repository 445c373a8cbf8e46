package sensorfeed

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/banshee-data/reflex/internal/avoidance"
)

// ErrSkip is returned by ParseLine for lines that carry no reading, such as
// comments and blank lines.
var ErrSkip = errors.New("no reading in line")

// Reading is one parsed range measurement.
type Reading struct {
	Sensor   avoidance.Sensor
	Distance float64
}

// rangeMessage is the JSON form emitted by the sensor board. MaxRange, when
// positive, marks the far limit of the sensor; anything beyond it is out of
// range and reported as unknown.
type rangeMessage struct {
	Sensor   string   `json:"sensor"`
	Range    *float64 `json:"range"`
	MaxRange float64  `json:"max_range,omitempty"`
}

// ParseLine decodes one line from the sensor board. Accepted forms:
//
//	{"sensor":"front","range":0.42,"max_range":0.8}
//	front,0.42
//	F,0.42
//	0.42          (only when fixed is non-nil)
func ParseLine(line string, fixed *avoidance.Sensor) (Reading, error) {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return Reading{}, ErrSkip
	}

	if strings.HasPrefix(line, "{") {
		return parseJSON(line, fixed)
	}

	fields := strings.Split(line, ",")
	switch len(fields) {
	case 1:
		if fixed == nil {
			return Reading{}, fmt.Errorf("bare value %q on a shared port", line)
		}
		d, err := parseDistance(fields[0])
		if err != nil {
			return Reading{}, err
		}
		return Reading{Sensor: *fixed, Distance: d}, nil
	case 2:
		s, err := avoidance.ParseSensor(fields[0])
		if err != nil {
			return Reading{}, err
		}
		if fixed != nil && s != *fixed {
			return Reading{}, fmt.Errorf("%s reading on the %s port", s, *fixed)
		}
		d, err := parseDistance(fields[1])
		if err != nil {
			return Reading{}, err
		}
		return Reading{Sensor: s, Distance: d}, nil
	default:
		return Reading{}, fmt.Errorf("invalid payload format: %q, expected sensor,distance", line)
	}
}

func parseJSON(line string, fixed *avoidance.Sensor) (Reading, error) {
	var m rangeMessage
	if err := json.Unmarshal([]byte(line), &m); err != nil {
		return Reading{}, fmt.Errorf("failed to unmarshal JSON: %w", err)
	}
	if m.Range == nil {
		return Reading{}, ErrSkip
	}

	var s avoidance.Sensor
	switch {
	case m.Sensor != "":
		parsed, err := avoidance.ParseSensor(m.Sensor)
		if err != nil {
			return Reading{}, err
		}
		if fixed != nil && parsed != *fixed {
			return Reading{}, fmt.Errorf("%s reading on the %s port", parsed, *fixed)
		}
		s = parsed
	case fixed != nil:
		s = *fixed
	default:
		return Reading{}, fmt.Errorf("JSON reading without sensor on a shared port: %s", line)
	}

	d := *m.Range
	if m.MaxRange > 0 && d > m.MaxRange {
		d = avoidance.Unknown
	}
	return Reading{Sensor: s, Distance: d}, nil
}

// parseDistance accepts any float strconv understands, including inf and nan.
func parseDistance(s string) (float64, error) {
	d, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, fmt.Errorf("failed to parse distance %q: %w", s, err)
	}
	return d, nil
}
