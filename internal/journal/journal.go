package journal

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/constellation-edge/overwatch/internal/threat"
	"github.com/constellation-edge/overwatch/internal/tracking"
)

// Journal is the local SQLite log of detections and threat alerts. It exists
// for offline review on the edge node itself; the constellation KV store is
// the authoritative shared state.
type Journal struct {
	conn *sql.DB
}

// DetectionRow is one journaled detection.
type DetectionRow struct {
	ID          string
	TrackID     string
	ModelType   string
	Label       string
	Confidence  float64
	ThreatLevel string
	BBox        tracking.BBox
	FrameIndex  int
	Timestamp   string
}

func Open(path string) (*Journal, error) {
	conn, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal: %w", err)
	}
	if err := conn.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping journal: %w", err)
	}

	j := &Journal{conn: conn}
	if err := j.createTables(); err != nil {
		return nil, fmt.Errorf("failed to create journal tables: %w", err)
	}
	return j, nil
}

func (j *Journal) createTables() error {
	query := `
	CREATE TABLE IF NOT EXISTS detections (
		id TEXT PRIMARY KEY,
		track_id TEXT NOT NULL,
		model_type TEXT NOT NULL,
		label TEXT NOT NULL,
		confidence REAL NOT NULL,
		threat_level TEXT NOT NULL,
		bbox TEXT NOT NULL,
		frame_index INTEGER NOT NULL,
		timestamp TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_detections_track ON detections(track_id);

	CREATE TABLE IF NOT EXISTS alerts (
		alert_id TEXT PRIMARY KEY,
		track_id TEXT NOT NULL,
		label TEXT NOT NULL,
		threat_level TEXT NOT NULL,
		confidence REAL NOT NULL,
		first_detected TEXT NOT NULL,
		status TEXT NOT NULL
	);
	`
	_, err := j.conn.Exec(query)
	return err
}

// RecordDetection appends one detection. The row ID is assigned here.
func (j *Journal) RecordDetection(ctx context.Context, row *DetectionRow) error {
	row.ID = uuid.New().String()

	bboxJSON, err := json.Marshal(row.BBox)
	if err != nil {
		return fmt.Errorf("failed to marshal bbox: %w", err)
	}

	query := `
		INSERT INTO detections (
			id, track_id, model_type, label, confidence,
			threat_level, bbox, frame_index, timestamp
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err = j.conn.ExecContext(ctx, query,
		row.ID,
		row.TrackID,
		row.ModelType,
		row.Label,
		row.Confidence,
		row.ThreatLevel,
		string(bboxJSON),
		row.FrameIndex,
		row.Timestamp,
	)
	return err
}

// RecordAlert stores a threat alert. Re-recording the same alert ID is a
// no-op overwrite, so the caller can journal alerts idempotently.
func (j *Journal) RecordAlert(ctx context.Context, alert tracking.ThreatAlert) error {
	query := `
		INSERT OR REPLACE INTO alerts (
			alert_id, track_id, label, threat_level,
			confidence, first_detected, status
		) VALUES (?, ?, ?, ?, ?, ?, ?)`

	_, err := j.conn.ExecContext(ctx, query,
		alert.AlertID,
		alert.TrackID,
		alert.Label,
		string(alert.ThreatLevel),
		alert.Confidence,
		alert.FirstDetected,
		alert.Status,
	)
	return err
}

// RecentDetections returns the newest rows first.
func (j *Journal) RecentDetections(ctx context.Context, limit int) ([]*DetectionRow, error) {
	query := `
		SELECT id, track_id, model_type, label, confidence,
			   threat_level, bbox, frame_index, timestamp
		FROM detections
		ORDER BY frame_index DESC, timestamp DESC
		LIMIT ?`

	rows, err := j.conn.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query detections: %w", err)
	}
	defer rows.Close()

	var out []*DetectionRow
	for rows.Next() {
		row := &DetectionRow{}
		var bboxJSON string
		if err := rows.Scan(
			&row.ID,
			&row.TrackID,
			&row.ModelType,
			&row.Label,
			&row.Confidence,
			&row.ThreatLevel,
			&bboxJSON,
			&row.FrameIndex,
			&row.Timestamp,
		); err != nil {
			return nil, fmt.Errorf("failed to scan detection: %w", err)
		}
		if err := json.Unmarshal([]byte(bboxJSON), &row.BBox); err != nil {
			return nil, fmt.Errorf("failed to unmarshal bbox: %w", err)
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// DetectionsByTrack returns every journaled detection for one track ID in
// frame order.
func (j *Journal) DetectionsByTrack(ctx context.Context, trackID string) ([]*DetectionRow, error) {
	query := `
		SELECT id, track_id, model_type, label, confidence,
			   threat_level, bbox, frame_index, timestamp
		FROM detections
		WHERE track_id = ?
		ORDER BY frame_index`

	rows, err := j.conn.QueryContext(ctx, query, trackID)
	if err != nil {
		return nil, fmt.Errorf("failed to query detections for track %s: %w", trackID, err)
	}
	defer rows.Close()

	var out []*DetectionRow
	for rows.Next() {
		row := &DetectionRow{}
		var bboxJSON string
		if err := rows.Scan(
			&row.ID,
			&row.TrackID,
			&row.ModelType,
			&row.Label,
			&row.Confidence,
			&row.ThreatLevel,
			&bboxJSON,
			&row.FrameIndex,
			&row.Timestamp,
		); err != nil {
			return nil, fmt.Errorf("failed to scan detection: %w", err)
		}
		if err := json.Unmarshal([]byte(bboxJSON), &row.BBox); err != nil {
			return nil, fmt.Errorf("failed to unmarshal bbox: %w", err)
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// LabelCounts aggregates journaled detections per label.
func (j *Journal) LabelCounts(ctx context.Context) (map[string]int, error) {
	rows, err := j.conn.QueryContext(ctx, `SELECT label, COUNT(*) FROM detections GROUP BY label`)
	if err != nil {
		return nil, fmt.Errorf("failed to query label counts: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var label string
		var n int
		if err := rows.Scan(&label, &n); err != nil {
			return nil, fmt.Errorf("failed to scan label count: %w", err)
		}
		counts[label] = n
	}
	return counts, rows.Err()
}

// Alerts returns all journaled threat alerts, newest first.
func (j *Journal) Alerts(ctx context.Context) ([]tracking.ThreatAlert, error) {
	query := `
		SELECT alert_id, track_id, label, threat_level,
			   confidence, first_detected, status
		FROM alerts
		ORDER BY first_detected DESC`

	rows, err := j.conn.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query alerts: %w", err)
	}
	defer rows.Close()

	var out []tracking.ThreatAlert
	for rows.Next() {
		var alert tracking.ThreatAlert
		var tier string
		if err := rows.Scan(
			&alert.AlertID,
			&alert.TrackID,
			&alert.Label,
			&tier,
			&alert.Confidence,
			&alert.FirstDetected,
			&alert.Status,
		); err != nil {
			return nil, fmt.Errorf("failed to scan alert: %w", err)
		}
		alert.ThreatLevel = threat.Tier(tier)
		out = append(out, alert)
	}
	return out, rows.Err()
}

func (j *Journal) Close() error {
	return j.conn.Close()
}
