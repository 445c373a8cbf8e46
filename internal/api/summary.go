package api

import (
	"fmt"
	"math"
	"net/http"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/banshee-data/reflex/internal/avoidance"
	"github.com/banshee-data/reflex/internal/db"
	"github.com/banshee-data/reflex/internal/httputil"
)

// ClearanceStats summarises the finite readings of one sensor.
type ClearanceStats struct {
	Samples int     `json:"samples"`
	Unknown int     `json:"unknown"`
	Mean    float64 `json:"mean"`
	StdDev  float64 `json:"stddev"`
	Min     float64 `json:"min"`
	Max     float64 `json:"max"`
}

// SummarizeClearance computes stats over the finite values of sensor in recs.
func SummarizeClearance(recs []db.TickRecord, sensor avoidance.Sensor) ClearanceStats {
	values := make([]float64, 0, len(recs))
	var cs ClearanceStats
	for _, rec := range recs {
		v := rec.Readings.Get(sensor)
		if math.IsInf(v, 0) || math.IsNaN(v) {
			cs.Unknown++
			continue
		}
		values = append(values, v)
	}
	cs.Samples = len(values)
	if cs.Samples == 0 {
		return cs
	}
	cs.Mean, cs.StdDev = stat.MeanStdDev(values, nil)
	if math.IsNaN(cs.StdDev) {
		cs.StdDev = 0
	}
	cs.Min = floats.Min(values)
	cs.Max = floats.Max(values)
	return cs
}

type summaryResponse struct {
	RunID     string                    `json:"run_id"`
	Ticks     int                       `json:"ticks"`
	Counts    map[string]int64          `json:"decision_counts"`
	Clearance map[string]ClearanceStats `json:"clearance"`
	// BlockedRatio is the share of recent ticks spent turning in place.
	BlockedRatio float64 `json:"blocked_ratio"`
}

func (s *Server) showSummary(w http.ResponseWriter, r *http.Request) {
	if !httputil.RequireGet(w, r) {
		return
	}
	recs, ok := s.recentTicks(w, r)
	if !ok {
		return
	}
	counts, err := s.journal.DecisionCounts(s.runID)
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("Failed to count decisions: %v", err))
		return
	}

	resp := summaryResponse{
		RunID:     s.runID,
		Ticks:     len(recs),
		Counts:    counts,
		Clearance: make(map[string]ClearanceStats, len(avoidance.Sensors)),
	}
	for _, sensor := range avoidance.Sensors {
		resp.Clearance[sensor.String()] = SummarizeClearance(recs, sensor)
	}

	var blocked int
	for _, rec := range recs {
		if d, err := avoidance.ParseDecision(rec.Label); err == nil && d.FrontBlocked() {
			blocked++
		}
	}
	if len(recs) > 0 {
		resp.BlockedRatio = float64(blocked) / float64(len(recs))
	}
	httputil.WriteJSONOK(w, resp)
}
