package journal

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/constellation-edge/overwatch/internal/threat"
	"github.com/constellation-edge/overwatch/internal/tracking"
)

func setupTestJournal(t *testing.T) *Journal {
	t.Helper()
	j, err := Open(filepath.Join(t.TempDir(), "journal_test.db"))
	if err != nil {
		t.Fatalf("Failed to open test journal: %v", err)
	}
	t.Cleanup(func() { j.Close() })
	return j
}

func TestJournal_RecordAndQueryDetections(t *testing.T) {
	j := setupTestJournal(t)
	ctx := context.Background()

	rows := []*DetectionRow{
		{TrackID: "t1", ModelType: "ssd-object-tracking", Label: "person", Confidence: 0.8,
			ThreatLevel: "LOW_THREAT", BBox: tracking.BBox{XMin: 0.1, YMin: 0.1, XMax: 0.2, YMax: 0.2},
			FrameIndex: 1, Timestamp: "2025-06-01T12:00:01Z"},
		{TrackID: "t1", ModelType: "ssd-object-tracking", Label: "person", Confidence: 0.9,
			ThreatLevel: "LOW_THREAT", BBox: tracking.BBox{XMin: 0.15, YMin: 0.1, XMax: 0.25, YMax: 0.2},
			FrameIndex: 2, Timestamp: "2025-06-01T12:00:02Z"},
		{TrackID: "t2", ModelType: "ssd-object-tracking", Label: "knife", Confidence: 0.7,
			ThreatLevel: "HIGH_THREAT", BBox: tracking.BBox{XMin: 0.5, YMin: 0.5, XMax: 0.6, YMax: 0.6},
			FrameIndex: 2, Timestamp: "2025-06-01T12:00:02Z"},
	}
	for _, row := range rows {
		if err := j.RecordDetection(ctx, row); err != nil {
			t.Fatalf("Failed to record detection: %v", err)
		}
		if row.ID == "" {
			t.Error("Expected row ID assigned on insert")
		}
	}

	recent, err := j.RecentDetections(ctx, 2)
	if err != nil {
		t.Fatalf("Failed to query recent detections: %v", err)
	}
	if len(recent) != 2 {
		t.Fatalf("Expected 2 recent rows, got %d", len(recent))
	}
	if recent[0].FrameIndex != 2 {
		t.Errorf("Expected newest frame first, got frame %d", recent[0].FrameIndex)
	}

	byTrack, err := j.DetectionsByTrack(ctx, "t1")
	if err != nil {
		t.Fatalf("Failed to query by track: %v", err)
	}
	if len(byTrack) != 2 {
		t.Fatalf("Expected 2 rows for t1, got %d", len(byTrack))
	}
	if byTrack[0].FrameIndex != 1 || byTrack[1].FrameIndex != 2 {
		t.Error("Expected frame order for per-track query")
	}
	if byTrack[1].BBox.XMin != 0.15 {
		t.Errorf("BBox round-trip failed: %+v", byTrack[1].BBox)
	}

	counts, err := j.LabelCounts(ctx)
	if err != nil {
		t.Fatalf("Failed to query label counts: %v", err)
	}
	if counts["person"] != 2 || counts["knife"] != 1 {
		t.Errorf("Unexpected label counts: %v", counts)
	}
}

func TestJournal_AlertsIdempotent(t *testing.T) {
	j := setupTestJournal(t)
	ctx := context.Background()

	alert := tracking.ThreatAlert{
		AlertID:       "t2_2025-06-01T12:00:02Z",
		TrackID:       "t2",
		Label:         "knife",
		ThreatLevel:   threat.TierHigh,
		Confidence:    0.7,
		FirstDetected: "2025-06-01T12:00:02Z",
		Status:        "active",
	}
	if err := j.RecordAlert(ctx, alert); err != nil {
		t.Fatalf("Failed to record alert: %v", err)
	}
	if err := j.RecordAlert(ctx, alert); err != nil {
		t.Fatalf("Failed to re-record alert: %v", err)
	}

	alerts, err := j.Alerts(ctx)
	if err != nil {
		t.Fatalf("Failed to query alerts: %v", err)
	}
	if len(alerts) != 1 {
		t.Fatalf("Expected 1 alert after duplicate insert, got %d", len(alerts))
	}
	if alerts[0].ThreatLevel != threat.TierHigh {
		t.Errorf("Expected HIGH_THREAT, got %s", alerts[0].ThreatLevel)
	}
}
