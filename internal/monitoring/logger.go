// Package monitoring holds the process-wide diagnostic logger shared by the
// controller, the serial feeds and the drive sinks.
package monitoring

import "log"

// Logf is the package-level diagnostic logger. It defaults to log.Printf but
// may be replaced by SetLogger so tests can capture or mute output.
var Logf func(format string, v ...interface{}) = log.Printf

// SetLogger replaces the package logger. Passing nil sets a no-op logger.
func SetLogger(f func(format string, v ...interface{})) {
	if f == nil {
		Logf = func(string, ...interface{}) {}
		return
	}
	Logf = f
}

// Warnf logs through Logf with a WARN marker, for conditions an operator
// should notice such as an obstacle dead ahead.
func Warnf(format string, v ...interface{}) {
	Logf("WARN "+format, v...)
}
