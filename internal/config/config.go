// Package config loads the avoider's startup configuration: the control
// parameters, the serial wiring of the sensor and drive boards, and the
// journal and HTTP settings. Values are read once and never change while the
// process runs.
package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/banshee-data/reflex/internal/avoidance"
	"github.com/banshee-data/reflex/internal/serialmux"
)

// DefaultConfigPath is the path to the canonical defaults file.
const DefaultConfigPath = "config/avoider.defaults.json"

// SharedSensorPort is the sensor_ports key for a single board carrying all
// three sensors.
const SharedSensorPort = "all"

const maxFileSize = 1 * 1024 * 1024 // 1MB

// Config is the root configuration document. Every field is optional; the
// Get* methods supply defaults for anything omitted, so partial files are
// safe.
type Config struct {
	// Control parameters
	ObstacleThreshold *float64 `json:"obstacle_threshold,omitempty"`
	LinearSpeed       *float64 `json:"linear_speed,omitempty"`
	AngularSpeed      *float64 `json:"angular_speed,omitempty"`
	SideMarginFactor  *float64 `json:"side_margin_factor,omitempty"`
	TickRateHz        *float64 `json:"tick_rate_hz,omitempty"`

	// Serial wiring. SensorPorts maps "left", "front", "right" to dedicated
	// ports, or "all" to one port carrying every sensor.
	SensorPorts        map[string]string      `json:"sensor_ports,omitempty"`
	DrivePort          *string                `json:"drive_port,omitempty"`
	Serial             *serialmux.PortOptions `json:"serial,omitempty"`
	SensorInitCommands []string               `json:"sensor_init_commands,omitempty"`
	DriveInitCommands  []string               `json:"drive_init_commands,omitempty"`

	// Service
	Listen      *string `json:"listen,omitempty"`
	DBPath      *string `json:"db_path,omitempty"`
	RecordTicks *bool   `json:"record_ticks,omitempty"`
}

func ptrFloat64(v float64) *float64 { return &v }
func ptrString(v string) *string    { return &v }
func ptrBool(v bool) *bool          { return &v }

// DefaultConfig returns a Config with every field populated with its default.
func DefaultConfig() *Config {
	return &Config{
		ObstacleThreshold: ptrFloat64(avoidance.DefaultObstacleThreshold),
		LinearSpeed:       ptrFloat64(avoidance.DefaultLinearSpeed),
		AngularSpeed:      ptrFloat64(avoidance.DefaultAngularSpeed),
		SideMarginFactor:  ptrFloat64(avoidance.DefaultSideMarginFactor),
		TickRateHz:        ptrFloat64(avoidance.DefaultTickRateHz),
		SensorPorts:       map[string]string{SharedSensorPort: "/dev/ttyACM0"},
		DrivePort:         ptrString("/dev/ttyACM1"),
		Serial:            &serialmux.PortOptions{},
		Listen:            ptrString(":8080"),
		DBPath:            ptrString("avoider.db"),
		RecordTicks:       ptrBool(true),
	}
}

// LoadConfig loads a Config from a JSON file. The path must have a .json
// extension and the file must be under 1MB.
func LoadConfig(path string) (*Config, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := &Config{}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// MustLoadDefaultConfig loads DefaultConfigPath, searching the current
// directory and its parents up to the repository root. It panics if the file
// cannot be loaded and is intended for test setup.
func MustLoadDefaultConfig() *Config {
	candidates := []string{
		DefaultConfigPath,
		"../" + DefaultConfigPath,
		"../../" + DefaultConfigPath,
		"../../../" + DefaultConfigPath,
	}
	for _, path := range candidates {
		if cfg, err := LoadConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks every value that is set. Control parameters must be
// positive and finite; the same rule NewController enforces, surfaced here
// so a bad file is reported with its field name before anything starts.
func (c *Config) Validate() error {
	if err := c.Params().Validate(); err != nil {
		return err
	}

	shared := false
	for key, path := range c.SensorPorts {
		if strings.TrimSpace(path) == "" {
			return fmt.Errorf("sensor_ports[%q] has an empty path", key)
		}
		if key == SharedSensorPort {
			shared = true
			continue
		}
		if _, err := avoidance.ParseSensor(key); err != nil {
			return fmt.Errorf("sensor_ports: %w", err)
		}
	}
	if shared && len(c.SensorPorts) > 1 {
		return fmt.Errorf("sensor_ports: %q cannot be combined with per-sensor ports", SharedSensorPort)
	}

	if c.Serial != nil {
		if _, err := c.Serial.Normalize(); err != nil {
			return fmt.Errorf("serial: %w", err)
		}
	}
	return nil
}

// Params returns the control parameters with defaults applied.
func (c *Config) Params() avoidance.Params {
	return avoidance.Params{
		ObstacleThreshold: c.GetObstacleThreshold(),
		LinearSpeed:       c.GetLinearSpeed(),
		AngularSpeed:      c.GetAngularSpeed(),
		SideMarginFactor:  c.GetSideMarginFactor(),
		TickRateHz:        c.GetTickRateHz(),
	}
}

func floatOr(p *float64, def float64) float64 {
	if p == nil {
		return def
	}
	return *p
}

// GetObstacleThreshold returns the front-stop distance or the default.
func (c *Config) GetObstacleThreshold() float64 {
	return floatOr(c.ObstacleThreshold, avoidance.DefaultObstacleThreshold)
}

// GetLinearSpeed returns the cruise speed or the default.
func (c *Config) GetLinearSpeed() float64 {
	return floatOr(c.LinearSpeed, avoidance.DefaultLinearSpeed)
}

// GetAngularSpeed returns the turn rate or the default.
func (c *Config) GetAngularSpeed() float64 {
	return floatOr(c.AngularSpeed, avoidance.DefaultAngularSpeed)
}

// GetSideMarginFactor returns the side zone multiplier or the default.
func (c *Config) GetSideMarginFactor() float64 {
	return floatOr(c.SideMarginFactor, avoidance.DefaultSideMarginFactor)
}

// GetTickRateHz returns the loop frequency or the default.
func (c *Config) GetTickRateHz() float64 {
	return floatOr(c.TickRateHz, avoidance.DefaultTickRateHz)
}

// GetSensorPorts returns the sensor wiring, defaulting to one shared board.
// The returned map is a copy.
func (c *Config) GetSensorPorts() map[string]string {
	src := c.SensorPorts
	if len(src) == 0 {
		src = DefaultConfig().SensorPorts
	}
	out := make(map[string]string, len(src))
	for k, v := range src {
		out[strings.ToLower(k)] = v
	}
	return out
}

// SensorPortKeys returns the keys of GetSensorPorts in a stable order.
func (c *Config) SensorPortKeys() []string {
	ports := c.GetSensorPorts()
	keys := make([]string, 0, len(ports))
	for k := range ports {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// GetDrivePort returns the drive board path or the default.
func (c *Config) GetDrivePort() string {
	if c.DrivePort == nil {
		return *DefaultConfig().DrivePort
	}
	return *c.DrivePort
}

// GetSerial returns the serial options shared by both boards.
func (c *Config) GetSerial() serialmux.PortOptions {
	if c.Serial == nil {
		return serialmux.PortOptions{}
	}
	return *c.Serial
}

// GetListen returns the HTTP listen address or the default.
func (c *Config) GetListen() string {
	if c.Listen == nil || *c.Listen == "" {
		return *DefaultConfig().Listen
	}
	return *c.Listen
}

// GetDBPath returns the journal path or the default.
func (c *Config) GetDBPath() string {
	if c.DBPath == nil || *c.DBPath == "" {
		return *DefaultConfig().DBPath
	}
	return *c.DBPath
}

// GetRecordTicks reports whether every tick is journalled. Defaults to true.
func (c *Config) GetRecordTicks() bool {
	if c.RecordTicks == nil {
		return true
	}
	return *c.RecordTicks
}
