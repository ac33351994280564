package tracking

import (
	"fmt"
	"sync"

	"github.com/constellation-edge/overwatch/internal/threat"
)

// bboxHistoryCap bounds each object's box history; oldest entries drop first.
const bboxHistoryCap = 30

// alertHistoryCap bounds the retained threat alerts; analytics reports the
// most recent alerts only.
const alertHistoryCap = 10

// BBox is a bounding box normalized to [0,1] frame coordinates.
type BBox struct {
	XMin float64 `json:"x_min"`
	YMin float64 `json:"y_min"`
	XMax float64 `json:"x_max"`
	YMax float64 `json:"y_max"`
}

// TrackedObject is the durable per-track aggregate. It is created on first
// detection of a track ID, mutated on every reappearance, and marked inactive
// (never deleted) when the ID is absent from a frame.
type TrackedObject struct {
	TrackID              string      `json:"track_id"`
	Label                string      `json:"label"`
	ThreatLevel          threat.Tier `json:"threat_level"`
	FirstSeen            string      `json:"first_seen"`
	LastSeen             string      `json:"last_seen"`
	FrameCount           int         `json:"frame_count"`
	TotalConfidence      float64     `json:"total_confidence"`
	AvgConfidence        float64     `json:"avg_confidence"`
	MaxConfidence        float64     `json:"max_confidence"`
	BBoxHistory          []BBox      `json:"bbox_history"`
	IsActive             bool        `json:"is_active"`
	SuspiciousIndicators []string    `json:"suspicious_indicators"`
	Area                 int         `json:"area,omitempty"`
}

// CurrentBBox returns the most recent box, or nil if none was ever recorded.
func (o *TrackedObject) CurrentBBox() *BBox {
	if len(o.BBoxHistory) == 0 {
		return nil
	}
	b := o.BBoxHistory[len(o.BBoxHistory)-1]
	return &b
}

// ThreatAlert is recorded exactly once per object, at first sight, when the
// initial classification is HIGH_THREAT or MEDIUM_THREAT. Later
// reclassification of the same object does not raise a new alert.
type ThreatAlert struct {
	AlertID       string      `json:"alert_id"`
	TrackID       string      `json:"track_id"`
	Label         string      `json:"label"`
	ThreatLevel   threat.Tier `json:"threat_level"`
	Confidence    float64     `json:"confidence"`
	FirstDetected string      `json:"first_detected"`
	BBox          BBox        `json:"bbox"`
	Status        string      `json:"status"`
}

// Analytics is a point-in-time summary over the store. Distribution counts
// cover currently active objects only; unique/frame counters are cumulative.
type Analytics struct {
	TotalUniqueObjects   int                 `json:"total_unique_objects"`
	TotalFramesProcessed int                 `json:"total_frames_processed"`
	ActiveObjectsCount   int                 `json:"active_objects_count"`
	TrackedObjectsCount  int                 `json:"tracked_objects_count"`
	LabelDistribution    map[string]int      `json:"label_distribution"`
	ThreatDistribution   map[threat.Tier]int `json:"threat_distribution"`
	ActiveThreatCount    int                 `json:"active_threat_count"`
	ActiveTrackIDs       []string            `json:"active_track_ids"`
	ThreatAlerts         []ThreatAlert       `json:"threat_alerts"`
}

// Store holds all tracked objects for one session. The frame loop is the sole
// writer; the status API reads concurrently, so access goes through a mutex.
type Store struct {
	mu              sync.RWMutex
	objects         map[string]*TrackedObject
	activeIDs       map[string]struct{}
	totalUnique     int
	framesProcessed int
	alerts          []ThreatAlert
	alertsTotal     int
}

func NewStore() *Store {
	return &Store{
		objects:   make(map[string]*TrackedObject),
		activeIDs: make(map[string]struct{}),
	}
}

// Update creates or refreshes the aggregate for a track ID observed in the
// current frame. Confidence is taken as supplied; range validation belongs to
// the caller.
func (s *Store) Update(trackID, label string, confidence float64, bbox BBox, timestamp string, tier threat.Tier) {
	s.mu.Lock()
	defer s.mu.Unlock()

	obj, ok := s.objects[trackID]
	if !ok {
		s.totalUnique++

		if tier == threat.TierHigh || tier == threat.TierMedium {
			s.recordAlert(ThreatAlert{
				AlertID:       fmt.Sprintf("%s_%s", trackID, timestamp),
				TrackID:       trackID,
				Label:         label,
				ThreatLevel:   tier,
				Confidence:    confidence,
				FirstDetected: timestamp,
				BBox:          bbox,
				Status:        "active",
			})
		}

		s.objects[trackID] = &TrackedObject{
			TrackID:              trackID,
			Label:                label,
			ThreatLevel:          tier,
			FirstSeen:            timestamp,
			LastSeen:             timestamp,
			FrameCount:           1,
			TotalConfidence:      confidence,
			AvgConfidence:        confidence,
			MaxConfidence:        confidence,
			BBoxHistory:          []BBox{bbox},
			IsActive:             true,
			SuspiciousIndicators: threat.SuspiciousIndicators(confidence, tier),
		}
	} else {
		obj.Label = label
		obj.ThreatLevel = tier
		obj.LastSeen = timestamp
		obj.FrameCount++
		obj.TotalConfidence += confidence
		obj.AvgConfidence = obj.TotalConfidence / float64(obj.FrameCount)
		if confidence > obj.MaxConfidence {
			obj.MaxConfidence = confidence
		}
		obj.BBoxHistory = append(obj.BBoxHistory, bbox)
		if len(obj.BBoxHistory) > bboxHistoryCap {
			obj.BBoxHistory = obj.BBoxHistory[len(obj.BBoxHistory)-bboxHistoryCap:]
		}
		obj.IsActive = true
		obj.SuspiciousIndicators = threat.SuspiciousIndicators(confidence, tier)
	}

	s.activeIDs[trackID] = struct{}{}
}

// SetArea records the mask pixel area for segment-producing back-ends.
func (s *Store) SetArea(trackID string, area int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if obj, ok := s.objects[trackID]; ok {
		obj.Area = area
	}
}

// recordAlert appends to the bounded alert ring. Caller holds the lock.
func (s *Store) recordAlert(alert ThreatAlert) {
	s.alertsTotal++
	s.alerts = append(s.alerts, alert)
	if len(s.alerts) > alertHistoryCap {
		s.alerts = s.alerts[len(s.alerts)-alertHistoryCap:]
	}
}

// MarkInactive flips every tracked object absent from the current frame's
// track ID set to inactive and drops it from the active set. Records are
// never deleted here; a returning ID resumes its history via Update.
func (s *Store) MarkInactive(currentTrackIDs map[string]struct{}) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for trackID, obj := range s.objects {
		if _, ok := currentTrackIDs[trackID]; !ok {
			obj.IsActive = false
			delete(s.activeIDs, trackID)
		}
	}
}

// FrameProcessed advances the cumulative frame counter.
func (s *Store) FrameProcessed() {
	s.mu.Lock()
	s.framesProcessed++
	s.mu.Unlock()
}

// Get returns a copy of one tracked object.
func (s *Store) Get(trackID string) (TrackedObject, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	obj, ok := s.objects[trackID]
	if !ok {
		return TrackedObject{}, false
	}
	return copyObject(obj), true
}

// GetPersistentObjects returns copies of all objects, active or not, seen in
// at least minFrames frames. This is the publish-eligibility gate: an object
// below the threshold is never published regardless of confidence.
func (s *Store) GetPersistentObjects(minFrames int) map[string]TrackedObject {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]TrackedObject)
	for trackID, obj := range s.objects {
		if obj.FrameCount >= minFrames {
			out[trackID] = copyObject(obj)
		}
	}
	return out
}

// ActiveTrackIDs returns a copy of the current active-ID set, used by the
// frame loop for periodic reconciler cleanup sweeps.
func (s *Store) ActiveTrackIDs() map[string]struct{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]struct{}, len(s.activeIDs))
	for id := range s.activeIDs {
		out[id] = struct{}{}
	}
	return out
}

// AlertsTotal reports the cumulative number of threat alerts ever recorded.
func (s *Store) AlertsTotal() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.alertsTotal
}

// Analytics computes the distribution summary over active objects plus the
// cumulative session counters and the most recent threat alerts.
func (s *Store) Analytics() Analytics {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a := Analytics{
		TotalUniqueObjects:   s.totalUnique,
		TotalFramesProcessed: s.framesProcessed,
		TrackedObjectsCount:  len(s.objects),
		LabelDistribution:    make(map[string]int),
		ThreatDistribution:   make(map[threat.Tier]int),
		ActiveTrackIDs:       make([]string, 0, len(s.activeIDs)),
		ThreatAlerts:         append([]ThreatAlert(nil), s.alerts...),
	}

	for _, obj := range s.objects {
		if !obj.IsActive {
			continue
		}
		a.ActiveObjectsCount++
		a.LabelDistribution[obj.Label]++
		a.ThreatDistribution[obj.ThreatLevel]++
		if obj.ThreatLevel == threat.TierHigh || obj.ThreatLevel == threat.TierMedium {
			a.ActiveThreatCount++
		}
	}
	for id := range s.activeIDs {
		a.ActiveTrackIDs = append(a.ActiveTrackIDs, id)
	}
	return a
}

func copyObject(obj *TrackedObject) TrackedObject {
	out := *obj
	out.BBoxHistory = append([]BBox(nil), obj.BBoxHistory...)
	out.SuspiciousIndicators = append([]string(nil), obj.SuspiciousIndicators...)
	return out
}
