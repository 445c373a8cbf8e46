// Package drive delivers velocity commands to the motor board and to the
// operator log.
package drive

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/banshee-data/reflex/internal/avoidance"
)

// FormatCommand renders c in the drive board's wire form, "V <linear> <angular>",
// with three decimals.
func FormatCommand(c avoidance.Command) string {
	return fmt.Sprintf("V %.3f %.3f", c.LinearX, c.AngularZ)
}

// ParseCommand is the inverse of FormatCommand. The board echoes commands
// back, and the dev-mode replay uses it to check what was sent.
func ParseCommand(line string) (avoidance.Command, error) {
	fields := strings.Fields(line)
	if len(fields) != 3 || fields[0] != "V" {
		return avoidance.Command{}, fmt.Errorf("invalid drive command %q, expected V <linear> <angular>", line)
	}
	lin, err := strconv.ParseFloat(fields[1], 64)
	if err != nil {
		return avoidance.Command{}, fmt.Errorf("failed to parse linear_x: %w", err)
	}
	ang, err := strconv.ParseFloat(fields[2], 64)
	if err != nil {
		return avoidance.Command{}, fmt.Errorf("failed to parse angular_z: %w", err)
	}
	return avoidance.Command{LinearX: lin, AngularZ: ang}, nil
}
