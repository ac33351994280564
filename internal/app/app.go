package app

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"gocv.io/x/gocv"

	"github.com/constellation-edge/overwatch/internal/api"
	"github.com/constellation-edge/overwatch/internal/capture"
	"github.com/constellation-edge/overwatch/internal/constellation"
	"github.com/constellation-edge/overwatch/internal/detection"
	"github.com/constellation-edge/overwatch/internal/journal"
	"github.com/constellation-edge/overwatch/internal/threat"
	"github.com/constellation-edge/overwatch/internal/tracking"
)

// Runtime is the single-writer frame loop. Detections flow through
// normalization, identity reconciliation, classification, and state update,
// then out through the publisher; nothing downstream of the store may abort
// the loop.
type Runtime struct {
	Detector   detection.Detector
	Normalizer *detection.Normalizer
	Classifier *threat.Classifier
	Store      *tracking.Store
	Reconciler *tracking.Reconciler
	Publisher  *constellation.Publisher
	Journal    *journal.Journal
	Hub        *api.Hub

	Mode            detection.Mode
	MinFrames       int
	CleanupInterval time.Duration

	frameIndex     int
	lastCleanup    time.Time
	lastAlertTotal int
}

// Run drives the capture loop until the context is cancelled or the source
// is exhausted. The current frame always completes before shutdown.
func (rt *Runtime) Run(ctx context.Context, source *capture.Source) error {
	img := gocv.NewMat()
	defer img.Close()

	rt.lastCleanup = time.Now()
	log.Printf("[LOOP] Processing started: source=%s model=%s", source.Label(), rt.Normalizer.ModelType())

	for {
		select {
		case <-ctx.Done():
			log.Printf("[LOOP] Interrupted after %d frames", rt.frameIndex)
			return ctx.Err()
		default:
		}

		if !source.Read(&img) {
			log.Printf("[LOOP] Source exhausted after %d frames", rt.frameIndex)
			return nil
		}

		raws, err := rt.Detector.ProcessFrame(img, rt.frameIndex)
		if err != nil {
			log.Printf("[LOOP] Inference error on frame %d: %v", rt.frameIndex, err)
			rt.frameIndex++
			continue
		}

		timestamp := time.Now().UTC().Format(time.RFC3339Nano)
		records := rt.Normalizer.Normalize(raws, img.Cols(), img.Rows(), rt.frameIndex, timestamp)
		rt.ProcessDetections(records)

		rt.frameIndex++
		rt.maybeCleanup()

		if rt.frameIndex%300 == 0 {
			a := rt.Store.Analytics()
			log.Printf("[LOOP] Frame %d: active=%d tracked=%d threats=%d",
				rt.frameIndex, a.ActiveObjectsCount, a.TrackedObjectsCount, a.ActiveThreatCount)
		}
	}
}

// ProcessDetections applies one frame's worth of normalized detections to the
// tracking state and publishes per the mode's policy. It is the pure core of
// the loop: callers own frame acquisition and inference.
func (rt *Runtime) ProcessDetections(records []detection.Record) {
	currentIDs := make(map[string]struct{}, len(records))
	trackIDs := make([]string, len(records))

	// State first. Publishing sees the post-update store.
	for i, rec := range records {
		trackID := rt.Reconciler.GetOrCreateTrackID(rec.NativeID, rec.ModelType)
		trackIDs[i] = trackID
		currentIDs[trackID] = struct{}{}

		tier := rt.Classifier.Classify(rec.Label)
		rt.Store.Update(trackID, rec.Label, rec.Confidence, rec.BBox, rec.Timestamp, tier)
		if rec.Area > 0 {
			rt.Store.SetArea(trackID, rec.Area)
		}
	}

	rt.Store.MarkInactive(currentIDs)
	rt.Store.FrameProcessed()

	persistent := rt.Store.GetPersistentObjects(rt.MinFrames)

	// C4ISR publishes every detection immediately; other modes hold events
	// until at least one object clears the persistence gate.
	publishEvents := rt.Mode == detection.ModeC4ISR || len(persistent) > 0

	for i, rec := range records {
		obj, ok := rt.Store.Get(trackIDs[i])
		if !ok {
			continue
		}
		payload := constellation.DetectionPayload{
			TrackID:    trackIDs[i],
			ModelType:  rec.ModelType,
			Label:      rec.Label,
			Confidence: rec.Confidence,
			BBox:       rec.BBox,
			Timestamp:  rec.Timestamp,
			Metadata: constellation.Metadata{
				NativeID:             rec.NativeID,
				ThreatLevel:          obj.ThreatLevel,
				SuspiciousIndicators: obj.SuspiciousIndicators,
				Area:                 rec.Area,
			},
		}

		if publishEvents {
			rt.Publisher.PublishDetection(payload)
		}
		rt.journalDetection(rec, trackIDs[i], obj.ThreatLevel)
		rt.broadcast(payload)
	}

	if len(persistent) > 0 {
		analytics := rt.Store.Analytics()
		rt.Publisher.PublishSnapshot(persistent, analytics)
		if rt.Mode == detection.ModeC4ISR {
			rt.Publisher.PublishThreatIntelligence(analytics)
		}
	}

	rt.journalNewAlerts()
}

// maybeCleanup sweeps reconciler mappings whose track IDs are no longer
// active. Sweeps are periodic rather than per-frame so briefly occluded
// objects keep their identity between sightings.
func (rt *Runtime) maybeCleanup() {
	if rt.CleanupInterval <= 0 || time.Since(rt.lastCleanup) < rt.CleanupInterval {
		return
	}
	rt.lastCleanup = time.Now()
	if removed := rt.Reconciler.CleanupStale(rt.Store.ActiveTrackIDs()); removed > 0 {
		log.Printf("[TRACK] Cleaned up %d stale ID mappings", removed)
	}
}

func (rt *Runtime) journalDetection(rec detection.Record, trackID string, tier threat.Tier) {
	if rt.Journal == nil {
		return
	}
	row := &journal.DetectionRow{
		TrackID:     trackID,
		ModelType:   rec.ModelType,
		Label:       rec.Label,
		Confidence:  rec.Confidence,
		ThreatLevel: string(tier),
		BBox:        rec.BBox,
		FrameIndex:  rt.frameIndex,
		Timestamp:   rec.Timestamp,
	}
	if err := rt.Journal.RecordDetection(context.Background(), row); err != nil {
		log.Printf("[JOURNAL] Error recording detection: %v", err)
	}
}

// journalNewAlerts persists alerts raised this frame. Alert writes are
// idempotent on alert ID, so re-journaling the tail of the ring is safe.
func (rt *Runtime) journalNewAlerts() {
	if rt.Journal == nil {
		return
	}
	total := rt.Store.AlertsTotal()
	if total == rt.lastAlertTotal {
		return
	}
	rt.lastAlertTotal = total

	for _, alert := range rt.Store.Analytics().ThreatAlerts {
		if err := rt.Journal.RecordAlert(context.Background(), alert); err != nil {
			log.Printf("[JOURNAL] Error recording alert %s: %v", alert.AlertID, err)
		}
	}
}

// broadcast sends the detection to live viewers with the display attributes
// of its tier attached.
func (rt *Runtime) broadcast(payload constellation.DetectionPayload) {
	if rt.Hub == nil {
		return
	}
	cat := threat.CategoryFor(payload.Metadata.ThreatLevel)
	frame := struct {
		constellation.DetectionPayload
		AlertLevel string   `json:"alert_level"`
		Color      [3]uint8 `json:"color"`
	}{
		DetectionPayload: payload,
		AlertLevel:       cat.AlertLevel,
		Color:            cat.Color,
	}
	data, err := json.Marshal(frame)
	if err != nil {
		return
	}
	rt.Hub.Broadcast(data)
}
