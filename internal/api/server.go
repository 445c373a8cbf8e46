// Package api serves the controller's live state, the tick journal and a
// couple of debugging charts over HTTP.
package api

import (
	"fmt"
	"math"
	"net/http"
	"time"

	"github.com/banshee-data/reflex/internal/avoidance"
	"github.com/banshee-data/reflex/internal/control"
	"github.com/banshee-data/reflex/internal/db"
	"github.com/banshee-data/reflex/internal/httputil"
	"github.com/banshee-data/reflex/internal/version"
)

const (
	defaultTickLimit = 100
	maxTickLimit     = 2000
)

// LiveState is the controller view the server reads from.
type LiveState interface {
	Readings() avoidance.Readings
	Params() avoidance.Params
}

// TickState reports what the control loop last published.
type TickState interface {
	Latest() (control.Tick, bool)
	Counts() map[avoidance.Decision]uint64
	Stops() uint64
}

// Journal is the read side of the tick journal.
type Journal interface {
	RecentTicks(runID string, limit int) ([]db.TickRecord, error)
	DecisionCounts(runID string) (map[string]int64, error)
}

type Server struct {
	live    LiveState
	ticks   TickState
	journal Journal
	runID   string
}

// NewServer builds a server. journal may be nil when tick recording is off;
// the journal-backed endpoints then answer 404.
func NewServer(live LiveState, ticks TickState, journal Journal, runID string) *Server {
	return &Server{
		live:    live,
		ticks:   ticks,
		journal: journal,
		runID:   runID,
	}
}

func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/state", s.showState)
	mux.HandleFunc("/api/config", s.showConfig)
	mux.HandleFunc("/api/ticks", s.listTicks)
	mux.HandleFunc("/api/summary", s.showSummary)
	mux.HandleFunc("/charts/commands", s.handleCommandChart)
	mux.HandleFunc("/charts/clearance.png", s.handleClearancePlot)
	return mux
}

// readingsJSON renders distances with unknown values as null, since JSON has
// no infinity.
type readingsJSON struct {
	Left  *float64 `json:"left"`
	Front *float64 `json:"front"`
	Right *float64 `json:"right"`
}

func toReadingsJSON(r avoidance.Readings) readingsJSON {
	return readingsJSON{
		Left:  finitePtr(r.Left),
		Front: finitePtr(r.Front),
		Right: finitePtr(r.Right),
	}
}

func finitePtr(v float64) *float64 {
	if math.IsInf(v, 0) || math.IsNaN(v) {
		return nil
	}
	return &v
}

type tickJSON struct {
	Seq      uint64            `json:"seq"`
	At       time.Time         `json:"at"`
	Readings readingsJSON      `json:"readings"`
	Command  avoidance.Command `json:"command"`
	Decision string            `json:"decision"`
	Final    bool              `json:"final"`
}

type stateResponse struct {
	Readings readingsJSON      `json:"readings"`
	Last     *tickJSON         `json:"last_tick"`
	Counts   map[string]uint64 `json:"decision_counts"`
	Stops    uint64            `json:"stops"`
	RunID    string            `json:"run_id,omitempty"`
	Version  string            `json:"version"`
}

func (s *Server) showState(w http.ResponseWriter, r *http.Request) {
	if !httputil.RequireGet(w, r) {
		return
	}

	resp := stateResponse{
		Readings: toReadingsJSON(s.live.Readings()),
		Counts:   make(map[string]uint64),
		RunID:    s.runID,
		Version:  version.Version,
	}
	if t, ok := s.ticks.Latest(); ok {
		resp.Last = &tickJSON{
			Seq:      t.Seq,
			At:       t.At,
			Readings: toReadingsJSON(t.Readings),
			Command:  t.Command,
			Decision: t.Label(),
			Final:    t.Final,
		}
	}
	for d, n := range s.ticks.Counts() {
		resp.Counts[d.String()] = n
	}
	resp.Stops = s.ticks.Stops()
	httputil.WriteJSONOK(w, resp)
}

func (s *Server) showConfig(w http.ResponseWriter, r *http.Request) {
	if !httputil.RequireGet(w, r) {
		return
	}
	p := s.live.Params()
	httputil.WriteJSONOK(w, map[string]interface{}{
		"params":           p,
		"side_zone":        p.SideZone(),
		"tick_interval_ms": p.TickInterval().Milliseconds(),
		"version":          version.String(),
	})
}

// recentTicks parses ?limit= and loads from the journal. It writes the error
// response itself and returns ok=false on failure.
func (s *Server) recentTicks(w http.ResponseWriter, r *http.Request) ([]db.TickRecord, bool) {
	if s.journal == nil {
		httputil.NotFound(w, "tick journal disabled")
		return nil, false
	}
	limit, err := httputil.QueryInt(r, "limit", defaultTickLimit, 1, maxTickLimit)
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return nil, false
	}
	recs, err := s.journal.RecentTicks(s.runID, limit)
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to load ticks: %v", err))
		return nil, false
	}
	return recs, true
}

func (s *Server) listTicks(w http.ResponseWriter, r *http.Request) {
	if !httputil.RequireGet(w, r) {
		return
	}
	recs, ok := s.recentTicks(w, r)
	if !ok {
		return
	}
	out := make([]tickJSON, 0, len(recs))
	for _, rec := range recs {
		out = append(out, tickJSON{
			Seq:      rec.Seq,
			At:       rec.At,
			Readings: toReadingsJSON(rec.Readings),
			Command:  rec.Command,
			Decision: rec.Label,
			Final:    rec.Final,
		})
	}
	httputil.WriteJSONOK(w, out)
}
