package main

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"testing/fstest"
	"time"

	"github.com/banshee-data/reflex/internal/avoidance"
	"github.com/banshee-data/reflex/internal/config"
	"github.com/banshee-data/reflex/internal/serialmux"
)

func TestFlagDefaults(t *testing.T) {
	if *configPath != config.DefaultConfigPath {
		t.Errorf("config default = %q, want %q", *configPath, config.DefaultConfigPath)
	}
	if *devMode || *noDrive || *showVersion {
		t.Error("boolean flags should default to false")
	}
	if *listen != "" || *dbPath != "" {
		t.Error("override flags should default to empty")
	}
	if *replayInterval != 50*time.Millisecond {
		t.Errorf("replay interval default = %v", *replayInterval)
	}
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "avoider.json")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadConfig_Overrides(t *testing.T) {
	path := writeConfig(t, `{"listen": ":9000", "db_path": "a.db"}`)

	cfg, err := loadConfig(path, "", "")
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if cfg.GetListen() != ":9000" || cfg.GetDBPath() != "a.db" {
		t.Errorf("file values not used: %s %s", cfg.GetListen(), cfg.GetDBPath())
	}

	cfg, err = loadConfig(path, "127.0.0.1:0", "b.db")
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if cfg.GetListen() != "127.0.0.1:0" || cfg.GetDBPath() != "b.db" {
		t.Errorf("overrides not applied: %s %s", cfg.GetListen(), cfg.GetDBPath())
	}
}

func TestLoadConfig_BadParamsFailBeforeStartup(t *testing.T) {
	path := writeConfig(t, `{"linear_speed": -1}`)
	_, err := loadConfig(path, "", "")
	if !errors.Is(err, avoidance.ErrInvalidParameter) {
		t.Fatalf("err = %v, want ErrInvalidParameter", err)
	}
}

func TestLoadConfig_RepositoryDefaults(t *testing.T) {
	cfg, err := loadConfig(filepath.Join("..", "..", config.DefaultConfigPath), "", "")
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if cfg.Params() != avoidance.DefaultParams() {
		t.Errorf("shipped params = %+v, want defaults", cfg.Params())
	}
}

func TestLoadFixtures(t *testing.T) {
	fsys := fstest.MapFS{
		"fixtures.txt": {Data: []byte("left,1.0\n\n  front,0.2 \n")},
		"empty.txt":    {Data: []byte("\n\n")},
	}

	lines, err := loadFixtures(fsys, "fixtures.txt")
	if err != nil {
		t.Fatalf("loadFixtures: %v", err)
	}
	if len(lines) != 2 || lines[0] != "left,1.0" || lines[1] != "front,0.2" {
		t.Errorf("lines = %q", lines)
	}

	if _, err := loadFixtures(fsys, "empty.txt"); err == nil {
		t.Error("expected error for empty fixtures")
	}
	if _, err := loadFixtures(fsys, "missing.txt"); err == nil {
		t.Error("expected error for missing fixtures")
	}
}

func TestLoadFixtures_RepositoryFile(t *testing.T) {
	lines, err := loadFixtures(os.DirFS(filepath.Join("..", "..", "config")), "fixtures.txt")
	if err != nil {
		t.Fatalf("loadFixtures: %v", err)
	}
	if len(lines) == 0 {
		t.Fatal("no fixture lines")
	}
}

func TestOpenSensorPorts_Dedicated(t *testing.T) {
	path := writeConfig(t, `{"sensor_ports": {"left": "/dev/l", "front": "/dev/f", "right": "/dev/r"}}`)
	cfg, err := loadConfig(path, "", "")
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}

	var openedPaths []string
	ports, err := openSensorPorts(cfg, func(name, path string) (serialmux.SerialMuxInterface, error) {
		openedPaths = append(openedPaths, path)
		return serialmux.NewSerialMux(name, serialmux.NewTestableSerialPort()), nil
	})
	if err != nil {
		t.Fatalf("openSensorPorts: %v", err)
	}
	defer closeSensorPorts(ports)

	if len(ports) != 3 {
		t.Fatalf("opened %d ports, want 3", len(ports))
	}
	// keys are sorted: front, left, right
	want := []avoidance.Sensor{avoidance.Front, avoidance.Left, avoidance.Right}
	for i, p := range ports {
		if p.fixed == nil || *p.fixed != want[i] {
			t.Errorf("port %d fixed = %v, want %v", i, p.fixed, want[i])
		}
	}
	if openedPaths[0] != "/dev/f" {
		t.Errorf("first opened path = %s, want /dev/f", openedPaths[0])
	}
}

func TestOpenSensorPorts_FailureClosesOpened(t *testing.T) {
	path := writeConfig(t, `{"sensor_ports": {"left": "/dev/l", "right": "/dev/r"}}`)
	cfg, err := loadConfig(path, "", "")
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}

	first := serialmux.NewTestableSerialPort()
	_, err = openSensorPorts(cfg, func(name, path string) (serialmux.SerialMuxInterface, error) {
		if name == "left" {
			return serialmux.NewSerialMux(name, first), nil
		}
		return nil, errors.New("no such device")
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if !first.Closed {
		t.Error("left port was not closed after right failed")
	}
}

func TestNewFeed_SharedPortRejectsBareValues(t *testing.T) {
	ctrl, err := avoidance.NewController(avoidance.DefaultParams())
	if err != nil {
		t.Fatalf("NewController: %v", err)
	}

	shared := newFeed(sensorPort{mux: serialmux.NewDisabledSerialMux("sensors")}, ctrl)
	if err := shared.HandleLine("0.2"); err == nil {
		t.Error("bare value accepted on a shared port")
	}

	front := avoidance.Front
	dedicated := newFeed(sensorPort{mux: serialmux.NewDisabledSerialMux("front"), fixed: &front}, ctrl)
	if err := dedicated.HandleLine("0.2"); err != nil {
		t.Fatalf("HandleLine: %v", err)
	}
	if got := ctrl.Readings().Front; got != 0.2 {
		t.Errorf("front = %v, want 0.2", got)
	}
}
