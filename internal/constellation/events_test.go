package constellation

import (
	"testing"

	"github.com/constellation-edge/overwatch/internal/threat"
	"github.com/constellation-edge/overwatch/internal/tracking"
)

func TestBuildKVKey(t *testing.T) {
	got := BuildKVKey("entity-7", "c4isr", "threat_intelligence")
	if got != "entity-7.c4isr.threat_intelligence" {
		t.Errorf("Unexpected KV key: %s", got)
	}
}

func TestBuildThreatIntelligence_AlertLevel(t *testing.T) {
	tests := []struct {
		name         string
		distribution map[threat.Tier]int
		want         string
	}{
		{"active high threat", map[threat.Tier]int{threat.TierHigh: 1}, "HIGH"},
		{"medium only", map[threat.Tier]int{threat.TierMedium: 3}, "NORMAL"},
		{"no threats", map[threat.Tier]int{threat.TierLow: 5}, "NORMAL"},
		{"empty", nil, "NORMAL"},
	}
	for _, tt := range tests {
		intel := BuildThreatIntelligence("e", "d", "ts", tracking.Analytics{
			ThreatDistribution: tt.distribution,
		})
		if intel.ThreatSummary.AlertLevel != tt.want {
			t.Errorf("%s: expected alert level %s, got %s", tt.name, tt.want, intel.ThreatSummary.AlertLevel)
		}
		if intel.Mission != "C4ISR" {
			t.Errorf("%s: expected mission C4ISR, got %s", tt.name, intel.Mission)
		}
	}
}

func TestBuildStateSnapshot_ProjectsObjects(t *testing.T) {
	objects := map[string]tracking.TrackedObject{
		"t1": {
			TrackID:       "t1",
			Label:         "backpack",
			FrameCount:    7,
			AvgConfidence: 0.6,
			IsActive:      false,
			ThreatLevel:   threat.TierMedium,
		},
	}
	snap := BuildStateSnapshot("entity-7", "dev", "ts", objects, tracking.Analytics{})

	obj, ok := snap.TrackedObjects["t1"]
	if !ok {
		t.Fatal("Expected t1 projected into snapshot")
	}
	if obj.CurrentBBox != nil {
		t.Errorf("Expected nil current bbox for empty history, got %+v", obj.CurrentBBox)
	}
	if obj.IsActive {
		t.Error("Expected inactive object to stay inactive in snapshot")
	}
	if snap.EntityID != "entity-7" || snap.DeviceID != "dev" {
		t.Errorf("Identity fields mangled: %s/%s", snap.EntityID, snap.DeviceID)
	}
}
