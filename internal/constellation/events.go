package constellation

import (
	"fmt"

	"github.com/constellation-edge/overwatch/internal/threat"
	"github.com/constellation-edge/overwatch/internal/tracking"
)

// Event types carried in the envelope and in the Event-Type header.
const (
	EventBootsequence = "bootsequence"
	EventDetection    = "detection"
	EventShutdown     = "shutdown"
)

// Component describes the sensor role this node plays in the constellation.
type Component struct {
	Type        string `json:"type"`
	Description string `json:"description"`
}

// Source identifies the publishing node. It rides on lifecycle events so
// consumers can attribute a session to a physical device.
type Source struct {
	DeviceID  string    `json:"device_id"`
	Hostname  string    `json:"hostname"`
	Platform  string    `json:"platform"`
	MAC       string    `json:"mac_address"`
	Component Component `json:"component"`
}

// LifecycleEvent is the bootsequence/shutdown envelope. FinalAnalytics is set
// only on shutdown.
type LifecycleEvent struct {
	Timestamp      string              `json:"timestamp"`
	EventType      string              `json:"event_type"`
	Source         Source              `json:"source"`
	Message        string              `json:"message"`
	FinalAnalytics *tracking.Analytics `json:"final_analytics,omitempty"`
}

// Metadata carries the model-specific trail behind a canonical detection.
type Metadata struct {
	NativeID             string      `json:"native_id"`
	ThreatLevel          threat.Tier `json:"threat_level,omitempty"`
	SuspiciousIndicators []string    `json:"suspicious_indicators,omitempty"`
	Area                 int         `json:"area,omitempty"`
}

// DetectionPayload is the canonical per-detection record. The shape is
// identical for every detector back-end; only metadata varies.
type DetectionPayload struct {
	TrackID    string        `json:"track_id"`
	ModelType  string        `json:"model_type"`
	Label      string        `json:"label"`
	Confidence float64       `json:"confidence"`
	BBox       tracking.BBox `json:"bbox"`
	Timestamp  string        `json:"timestamp"`
	Metadata   Metadata      `json:"metadata"`
}

// DetectionEvent is the per-detection stream envelope.
type DetectionEvent struct {
	Timestamp string           `json:"timestamp"`
	EventType string           `json:"event_type"`
	EntityID  string           `json:"entity_id"`
	DeviceID  string           `json:"device_id"`
	Detection DetectionPayload `json:"detection"`
}

// ObjectSummary is the KV-snapshot projection of one tracked object.
type ObjectSummary struct {
	TrackID              string         `json:"track_id"`
	Label                string         `json:"label"`
	FirstSeen            string         `json:"first_seen"`
	LastSeen             string         `json:"last_seen"`
	FrameCount           int            `json:"frame_count"`
	AvgConfidence        float64        `json:"avg_confidence"`
	IsActive             bool           `json:"is_active"`
	ThreatLevel          threat.Tier    `json:"threat_level"`
	SuspiciousIndicators []string       `json:"suspicious_indicators"`
	Area                 int            `json:"area,omitempty"`
	CurrentBBox          *tracking.BBox `json:"current_bbox"`
}

// StateSnapshot is the full persistent-object KV entry
// ({entity}.detections.objects).
type StateSnapshot struct {
	Timestamp      string                   `json:"timestamp"`
	EntityID       string                   `json:"entity_id"`
	DeviceID       string                   `json:"device_id"`
	Analytics      tracking.Analytics       `json:"analytics"`
	TrackedObjects map[string]ObjectSummary `json:"tracked_objects"`
}

// AnalyticsRecord is the standalone analytics KV entry
// ({entity}.analytics.summary). The analytics fields are inlined.
type AnalyticsRecord struct {
	Timestamp string `json:"timestamp"`
	EntityID  string `json:"entity_id"`
	tracking.Analytics
}

// ThreatSummary rolls the distribution up to a single alert level.
type ThreatSummary struct {
	TotalThreats       int                 `json:"total_threats"`
	ThreatDistribution map[threat.Tier]int `json:"threat_distribution"`
	AlertLevel         string              `json:"alert_level"`
}

// ThreatIntelligence is the C4ISR KV entry ({entity}.c4isr.threat_intelligence).
type ThreatIntelligence struct {
	Timestamp     string                 `json:"timestamp"`
	EntityID      string                 `json:"entity_id"`
	DeviceID      string                 `json:"device_id"`
	Mission       string                 `json:"mission"`
	Analytics     tracking.Analytics     `json:"analytics"`
	ThreatSummary ThreatSummary          `json:"threat_summary"`
	ThreatAlerts  []tracking.ThreatAlert `json:"threat_alerts"`
}

// BuildKVKey composes the hierarchical KV key {entity}.{category}.{name}.
func BuildKVKey(entityID, category, name string) string {
	return fmt.Sprintf("%s.%s.%s", entityID, category, name)
}

// BuildStateSnapshot projects persistent objects into the KV snapshot shape.
func BuildStateSnapshot(entityID, deviceID, timestamp string, objects map[string]tracking.TrackedObject, analytics tracking.Analytics) StateSnapshot {
	summaries := make(map[string]ObjectSummary, len(objects))
	for trackID, obj := range objects {
		summaries[trackID] = ObjectSummary{
			TrackID:              obj.TrackID,
			Label:                obj.Label,
			FirstSeen:            obj.FirstSeen,
			LastSeen:             obj.LastSeen,
			FrameCount:           obj.FrameCount,
			AvgConfidence:        obj.AvgConfidence,
			IsActive:             obj.IsActive,
			ThreatLevel:          obj.ThreatLevel,
			SuspiciousIndicators: obj.SuspiciousIndicators,
			Area:                 obj.Area,
			CurrentBBox:          obj.CurrentBBox(),
		}
	}
	return StateSnapshot{
		Timestamp:      timestamp,
		EntityID:       entityID,
		DeviceID:       deviceID,
		Analytics:      analytics,
		TrackedObjects: summaries,
	}
}

// BuildThreatIntelligence rolls analytics into the C4ISR intelligence entry.
// Alert level is HIGH exactly when a HIGH_THREAT object is currently active.
func BuildThreatIntelligence(entityID, deviceID, timestamp string, analytics tracking.Analytics) ThreatIntelligence {
	alertLevel := "NORMAL"
	if analytics.ThreatDistribution[threat.TierHigh] > 0 {
		alertLevel = "HIGH"
	}
	return ThreatIntelligence{
		Timestamp: timestamp,
		EntityID:  entityID,
		DeviceID:  deviceID,
		Mission:   "C4ISR",
		Analytics: analytics,
		ThreatSummary: ThreatSummary{
			TotalThreats:       analytics.ActiveThreatCount,
			ThreatDistribution: analytics.ThreatDistribution,
			AlertLevel:         alertLevel,
		},
		ThreatAlerts: analytics.ThreatAlerts,
	}
}
