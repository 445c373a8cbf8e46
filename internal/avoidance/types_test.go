package avoidance

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSensor(t *testing.T) {
	t.Parallel()

	for in, want := range map[string]Sensor{
		"left": Left, "L": Left, " Front ": Front, "f": Front, "RIGHT": Right, "r": Right,
	} {
		got, err := ParseSensor(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseSensor("rear")
	assert.Error(t, err)
}

func TestSensorString(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "left", Left.String())
	assert.Equal(t, "front", Front.String())
	assert.Equal(t, "right", Right.String())
	assert.Equal(t, "sensor(9)", Sensor(9).String())
	assert.False(t, Sensor(-1).Valid())
}

func TestDecisionRoundTrip(t *testing.T) {
	t.Parallel()
	for _, d := range []Decision{Cruise, TurnLeft, TurnRight, NudgeRight, NudgeLeft} {
		got, err := ParseDecision(d.String())
		require.NoError(t, err)
		assert.Equal(t, d, got)
	}
	_, err := ParseDecision("reverse")
	assert.Error(t, err)
}

func TestParamsHelpers(t *testing.T) {
	t.Parallel()
	p := DefaultParams()
	require.NoError(t, p.Validate())
	assert.InDelta(t, 0.36, p.SideZone(), 1e-12)
	assert.Equal(t, 100*time.Millisecond, p.TickInterval())

	p.TickRateHz = 4
	assert.Equal(t, 250*time.Millisecond, p.TickInterval())
}

func TestConfigErrorMessage(t *testing.T) {
	t.Parallel()
	p := DefaultParams()
	p.AngularSpeed = 0
	err := p.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "angular_speed")
}

func TestReadingsString(t *testing.T) {
	t.Parallel()
	r := Readings{Left: 0.5, Front: Unknown, Right: 0.123}
	assert.Equal(t, "left=0.50m front=inf right=0.12m", r.String())
	assert.Equal(t, 0.5, r.Get(Left))
	assert.Equal(t, Unknown, r.Get(Sensor(5)))
}

func TestCommandIsStop(t *testing.T) {
	t.Parallel()
	assert.True(t, Stop.IsStop())
	assert.False(t, Command{AngularZ: 0.1}.IsStop())
	assert.Equal(t, "linear_x=0.200 angular_z=-0.250", Command{LinearX: 0.2, AngularZ: -0.25}.String())
}
