// Command avoider drives a small robot away from obstacles using three
// infrared range sensors. It reads the sensor board, runs the reflex
// controller at a fixed rate and writes velocity commands to the drive board.
package main

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/banshee-data/reflex/internal/api"
	"github.com/banshee-data/reflex/internal/avoidance"
	"github.com/banshee-data/reflex/internal/config"
	"github.com/banshee-data/reflex/internal/control"
	"github.com/banshee-data/reflex/internal/db"
	"github.com/banshee-data/reflex/internal/drive"
	"github.com/banshee-data/reflex/internal/sensorfeed"
	"github.com/banshee-data/reflex/internal/serialmux"
	"github.com/banshee-data/reflex/internal/version"
)

var (
	configPath     = flag.String("config", config.DefaultConfigPath, "Path to the JSON configuration file")
	devMode        = flag.Bool("dev", false, "Replay -fixtures instead of opening the sensor and drive boards")
	fixturesPath   = flag.String("fixtures", "config/fixtures.txt", "Sensor lines replayed in dev mode")
	replayInterval = flag.Duration("replay-interval", 50*time.Millisecond, "Delay between replayed fixture lines in dev mode")
	listen         = flag.String("listen", "", "HTTP listen address (overrides config)")
	dbPath         = flag.String("db", "", "Tick journal path (overrides config)")
	noDrive        = flag.Bool("no-drive", false, "Do not open the drive board; commands are computed and dropped")
	showVersion    = flag.Bool("version", false, "Print version information and exit")
)

// sensorPort is one opened sensor board connection and the sensor it is
// dedicated to, if any.
type sensorPort struct {
	mux   serialmux.SerialMuxInterface
	fixed *avoidance.Sensor
}

// loadConfig reads the configuration file and applies command-line overrides.
func loadConfig(path, listenOverride, dbOverride string) (*config.Config, error) {
	cfg, err := config.LoadConfig(path)
	if err != nil {
		return nil, err
	}
	if listenOverride != "" {
		cfg.Listen = &listenOverride
	}
	if dbOverride != "" {
		cfg.DBPath = &dbOverride
	}
	return cfg, nil
}

// loadFixtures returns the non-blank lines of name in fsys.
func loadFixtures(fsys fs.FS, name string) ([]string, error) {
	data, err := fs.ReadFile(fsys, name)
	if err != nil {
		return nil, fmt.Errorf("failed to open fixtures file: %w", err)
	}
	var lines []string
	scan := bufio.NewScanner(bytes.NewReader(data))
	for scan.Scan() {
		if l := strings.TrimSpace(scan.Text()); l != "" {
			lines = append(lines, l)
		}
	}
	if err := scan.Err(); err != nil {
		return nil, err
	}
	if len(lines) == 0 {
		return nil, fmt.Errorf("fixtures file %s has no lines", name)
	}
	return lines, nil
}

// openSensorPorts opens one mux per configured sensor port. On failure any
// port already opened is closed again.
func openSensorPorts(cfg *config.Config, open func(name, path string) (serialmux.SerialMuxInterface, error)) ([]sensorPort, error) {
	ports := cfg.GetSensorPorts()
	var opened []sensorPort
	for _, key := range cfg.SensorPortKeys() {
		var fixed *avoidance.Sensor
		if key != config.SharedSensorPort {
			s, err := avoidance.ParseSensor(key)
			if err != nil {
				closeSensorPorts(opened)
				return nil, err
			}
			fixed = &s
		}
		m, err := open(key, ports[key])
		if err != nil {
			closeSensorPorts(opened)
			return nil, fmt.Errorf("failed to open %s sensor port %s: %w", key, ports[key], err)
		}
		opened = append(opened, sensorPort{mux: m, fixed: fixed})
	}
	return opened, nil
}

func closeSensorPorts(ports []sensorPort) {
	for _, p := range ports {
		if err := p.mux.Close(); err != nil {
			log.Printf("failed to close %s: %v", p.mux, err)
		}
	}
}

func newFeed(p sensorPort, ctrl sensorfeed.Updater) *sensorfeed.Feed {
	name := fmt.Sprint(p.mux)
	if p.fixed != nil {
		return sensorfeed.NewDedicated(name, p.mux, ctrl, *p.fixed)
	}
	return sensorfeed.New(name, p.mux, ctrl)
}

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String())
		return
	}

	// Configuration problems abort here, before any port is opened or the
	// loop is started.
	cfg, err := loadConfig(*configPath, *listen, *dbPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	ctrl, err := avoidance.NewController(cfg.Params())
	if err != nil {
		log.Fatalf("invalid control parameters: %v", err)
	}
	log.Printf("%s starting: %+v", version.String(), ctrl.Params())

	var sensors []sensorPort
	if *devMode {
		lines, err := loadFixtures(os.DirFS(filepath.Dir(*fixturesPath)), filepath.Base(*fixturesPath))
		if err != nil {
			log.Fatalf("%v", err)
		}
		sensors = []sensorPort{{mux: serialmux.NewMockSerialMux("sensors", lines, *replayInterval)}}
	} else {
		sensors, err = openSensorPorts(cfg, func(name, path string) (serialmux.SerialMuxInterface, error) {
			return serialmux.NewRealSerialMux(name, path, cfg.GetSerial())
		})
		if err != nil {
			log.Fatalf("%v", err)
		}
	}
	defer closeSensorPorts(sensors)

	for _, p := range sensors {
		if err := p.mux.Initialise(cfg.SensorInitCommands); err != nil {
			log.Fatalf("failed to initialise %s: %v", p.mux, err)
		}
		log.Printf("initialised sensor board %s", p.mux)
	}

	var board serialmux.SerialMuxInterface
	switch {
	case *noDrive:
		board = serialmux.NewDisabledSerialMux("drive")
	case *devMode:
		board = serialmux.NewMockSerialMux("drive", nil, 0)
	default:
		board, err = serialmux.NewRealSerialMux("drive", cfg.GetDrivePort(), cfg.GetSerial())
		if err != nil {
			log.Fatalf("failed to open drive port: %v", err)
		}
	}
	defer board.Close()
	if err := board.Initialise(cfg.DriveInitCommands); err != nil {
		log.Fatalf("failed to initialise %s: %v", board, err)
	}

	var (
		journal  *db.DB
		recorder *db.Recorder
		runID    string
	)
	if cfg.GetRecordTicks() {
		journal, err = db.NewDB(cfg.GetDBPath())
		if err != nil {
			log.Fatalf("failed to open tick journal: %v", err)
		}
		defer journal.Close()
		run, err := journal.StartRun(ctrl.Params(), time.Now())
		if err != nil {
			log.Fatalf("failed to start run: %v", err)
		}
		runID = run.ID
		recorder = db.StartRecorder(journal, runID, db.DefaultRecorderBuffer)
		log.Printf("recording ticks to %s (run %s)", cfg.GetDBPath(), runID)
	}

	tracker := control.NewStateTracker()
	sinks := control.MultiSink{drive.NewSerialSink(board), drive.NewLogSink(), tracker}
	if recorder != nil {
		sinks = append(sinks, recorder)
	}
	loop, err := control.NewLoop(ctrl, sinks, control.LoopOptions{Interval: ctrl.Params().TickInterval()})
	if err != nil {
		log.Fatalf("failed to build control loop: %v", err)
	}

	// Create a wait group for the serial monitors, feeds and HTTP server
	var wg sync.WaitGroup
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	monitored := []serialmux.SerialMuxInterface{board}
	for _, p := range sensors {
		monitored = append(monitored, p.mux)
	}
	for _, m := range monitored {
		wg.Add(1)
		go func(m serialmux.SerialMuxInterface) {
			defer wg.Done()
			if err := m.Monitor(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Printf("failed to monitor %s: %v", m, err)
			}
			log.Printf("%s monitor routine terminated", m)
		}(m)
	}

	for _, p := range sensors {
		feed := newFeed(p, ctrl)
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = feed.Run(ctx)
		}()
	}

	loopDone := make(chan struct{})

	// HTTP server goroutine
	wg.Add(1)
	go func() {
		defer wg.Done()

		var j api.Journal
		if journal != nil {
			j = journal
		}
		mux := api.NewServer(ctrl, tracker, j, runID).ServeMux()
		for _, m := range monitored {
			m.AttachAdminRoutes(mux)
		}
		if journal != nil {
			if err := journal.AttachAdminRoutes(mux); err != nil {
				log.Printf("journal admin routes unavailable: %v", err)
			}
		}

		server := &http.Server{
			Addr:    cfg.GetListen(),
			Handler: api.LoggingMiddleware(mux),
		}

		go func() {
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Fatalf("failed to start server: %v", err)
			}
		}()
		log.Printf("listening on %s", cfg.GetListen())

		// The server stays up until the final stop has gone out.
		<-loopDone
		log.Println("shutting down HTTP server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("HTTP server shutdown error: %v", err)
			if err := server.Close(); err != nil {
				log.Printf("HTTP server force close error: %v", err)
			}
		}
		log.Printf("HTTP server routine stopped")
	}()

	if err := loop.Run(ctx); err != nil {
		log.Printf("control loop error: %v", err)
	}
	log.Printf("control loop stopped after %d ticks", loop.Ticks())
	if recorder != nil {
		recorder.Close()
	}
	close(loopDone)

	// Wait for all goroutines to finish
	wg.Wait()
	log.Printf("Graceful shutdown complete")
}
