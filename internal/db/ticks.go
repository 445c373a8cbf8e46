package db

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/banshee-data/reflex/internal/avoidance"
	"github.com/banshee-data/reflex/internal/control"
	"github.com/banshee-data/reflex/internal/version"
)

// ErrRunNotFound is returned when a run id has no row in runs.
var ErrRunNotFound = errors.New("run not found")

// Run is one controller session: the parameters it was started with.
type Run struct {
	ID        string           `json:"run_id"`
	StartedAt time.Time        `json:"started_at"`
	Params    avoidance.Params `json:"params"`
	Version   string           `json:"version"`
}

// TickRecord is a journalled tick. Unknown distances round-trip as +Inf.
type TickRecord struct {
	RunID    string             `json:"run_id"`
	Seq      uint64             `json:"seq"`
	At       time.Time          `json:"at"`
	Readings avoidance.Readings `json:"-"`
	Command  avoidance.Command  `json:"command"`
	Label    string             `json:"decision"`
	Final    bool               `json:"final"`
}

// StartRun inserts a new run row and returns its id.
func (db *DB) StartRun(p avoidance.Params, at time.Time) (*Run, error) {
	paramsJSON, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("failed to encode params: %w", err)
	}
	run := &Run{
		ID:        uuid.NewString(),
		StartedAt: at,
		Params:    p,
		Version:   version.Version,
	}
	_, err = db.Exec(
		`INSERT INTO runs (run_id, started_at, params, version) VALUES (?, ?, ?, ?)`,
		run.ID, at.UnixNano(), string(paramsJSON), run.Version,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert run: %w", err)
	}
	return run, nil
}

// GetRun loads a run by id.
func (db *DB) GetRun(runID string) (*Run, error) {
	var (
		startedAt  int64
		paramsJSON string
		run        = &Run{ID: runID}
	)
	err := db.QueryRow(
		`SELECT started_at, params, version FROM runs WHERE run_id = ?`, runID,
	).Scan(&startedAt, &paramsJSON, &run.Version)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(paramsJSON), &run.Params); err != nil {
		return nil, fmt.Errorf("failed to decode params for run %s: %w", runID, err)
	}
	run.StartedAt = time.Unix(0, startedAt)
	return run, nil
}

// RecordTick appends t to the journal of runID.
func (db *DB) RecordTick(runID string, t control.Tick) error {
	_, err := db.Exec(
		`INSERT INTO ticks (run_id, seq, recorded_at, left_m, front_m, right_m, linear_x, angular_z, decision, final)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		runID, t.Seq, t.At.UnixNano(),
		nullDistance(t.Readings.Left), nullDistance(t.Readings.Front), nullDistance(t.Readings.Right),
		t.Command.LinearX, t.Command.AngularZ, t.Label(), t.Final,
	)
	if err != nil {
		return fmt.Errorf("failed to record tick %d: %w", t.Seq, err)
	}
	return nil
}

// RecentTicks returns up to limit of the latest ticks of runID, oldest first.
func (db *DB) RecentTicks(runID string, limit int) ([]TickRecord, error) {
	if limit <= 0 {
		return nil, nil
	}
	rows, err := db.Query(
		`SELECT seq, recorded_at, left_m, front_m, right_m, linear_x, angular_z, decision, final
		 FROM (SELECT * FROM ticks WHERE run_id = ? ORDER BY seq DESC LIMIT ?)
		 ORDER BY seq ASC`,
		runID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []TickRecord
	for rows.Next() {
		var (
			rec                TickRecord
			recordedAt         int64
			left, front, right sql.NullFloat64
		)
		if err := rows.Scan(&rec.Seq, &recordedAt, &left, &front, &right,
			&rec.Command.LinearX, &rec.Command.AngularZ, &rec.Label, &rec.Final); err != nil {
			return nil, err
		}
		rec.RunID = runID
		rec.At = time.Unix(0, recordedAt)
		rec.Readings = avoidance.Readings{
			Left:  fromNull(left),
			Front: fromNull(front),
			Right: fromNull(right),
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// DecisionCounts returns how many ticks of runID carried each label.
func (db *DB) DecisionCounts(runID string) (map[string]int64, error) {
	rows, err := db.Query(
		`SELECT decision, COUNT(*) FROM ticks WHERE run_id = ? GROUP BY decision`, runID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int64)
	for rows.Next() {
		var (
			label string
			n     int64
		)
		if err := rows.Scan(&label, &n); err != nil {
			return nil, err
		}
		counts[label] = n
	}
	return counts, rows.Err()
}

// nullDistance stores Unknown (and NaN) as NULL.
func nullDistance(d float64) sql.NullFloat64 {
	if math.IsInf(d, 0) || math.IsNaN(d) {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: d, Valid: true}
}

func fromNull(n sql.NullFloat64) float64 {
	if !n.Valid {
		return avoidance.Unknown
	}
	return n.Float64
}
