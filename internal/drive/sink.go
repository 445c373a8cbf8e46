package drive

import (
	"context"
	"fmt"
	"sync"

	"github.com/banshee-data/reflex/internal/avoidance"
	"github.com/banshee-data/reflex/internal/control"
	"github.com/banshee-data/reflex/internal/monitoring"
)

// Commander is the subset of serialmux.SerialMuxInterface used to reach the
// drive board.
type Commander interface {
	SendCommand(string) error
}

// SerialSink writes each tick's command to the drive board.
type SerialSink struct {
	board Commander
}

// NewSerialSink returns a sink writing to board.
func NewSerialSink(board Commander) *SerialSink {
	return &SerialSink{board: board}
}

// Publish sends t.Command. The final stop is sent like any other command.
func (s *SerialSink) Publish(_ context.Context, t control.Tick) error {
	if err := s.board.SendCommand(FormatCommand(t.Command)); err != nil {
		return fmt.Errorf("drive: tick %d: %w", t.Seq, err)
	}
	return nil
}

// LogSink logs decisions for an operator. A decision is logged when it
// differs from the previous tick's, so a robot cruising down a corridor
// does not flood the log at the tick rate.
type LogSink struct {
	mu   sync.Mutex
	last string
}

// NewLogSink returns a LogSink.
func NewLogSink() *LogSink {
	return &LogSink{}
}

// Publish logs t if its decision changed.
func (l *LogSink) Publish(_ context.Context, t control.Tick) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	label := t.Label()
	if label == l.last {
		return nil
	}
	l.last = label

	switch {
	case t.Final:
		monitoring.Logf("[drive] stopping: sent %s", t.Command)
	case t.Decision.FrontBlocked():
		monitoring.Warnf("[drive] obstacle ahead at %.2fm", t.Readings.Front)
		if t.Decision == avoidance.TurnLeft {
			monitoring.Logf("[drive] turning left (%s)", t.Readings)
		} else {
			monitoring.Logf("[drive] turning right (%s)", t.Readings)
		}
	case t.Decision == avoidance.NudgeRight:
		monitoring.Logf("[drive] obstacle on the left, easing right (%s)", t.Readings)
	case t.Decision == avoidance.NudgeLeft:
		monitoring.Logf("[drive] obstacle on the right, easing left (%s)", t.Readings)
	default:
		monitoring.Logf("[drive] path clear, driving at %.2fm/s", t.Command.LinearX)
	}
	return nil
}
