package constellation

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/constellation-edge/overwatch/internal/threat"
	"github.com/constellation-edge/overwatch/internal/tracking"
)

type publishedMsg struct {
	data   []byte
	header nats.Header
}

type kvWrite struct {
	key   string
	value []byte
}

// fakeTransport records everything the publisher ships.
type fakeTransport struct {
	mu     sync.Mutex
	events []publishedMsg
	kv     []kvWrite
}

func (f *fakeTransport) PublishEvent(data []byte, header nats.Header) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, publishedMsg{data: data, header: header})
	return nil
}

func (f *fakeTransport) PutKV(key string, value []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.kv = append(f.kv, kvWrite{key: key, value: value})
	return nil
}

func (f *fakeTransport) snapshot() ([]publishedMsg, []kvWrite) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]publishedMsg(nil), f.events...), append([]kvWrite(nil), f.kv...)
}

func testSource() Source {
	return Source{
		DeviceID: "abcdef0123456789",
		Hostname: "edge-node-1",
		Platform: "linux/amd64",
		MAC:      "aa:bb:cc:dd:ee:ff",
		Component: Component{
			Type:        "c4isr-threat-detection",
			Description: "Threat-vocabulary detection with C4ISR classification",
		},
	}
}

func TestPublisher_DetectionEvent(t *testing.T) {
	tr := &fakeTransport{}
	p := NewPublisher(tr, "entity-7", testSource(), 16)

	p.PublishDetection(DetectionPayload{
		TrackID:    "track-1",
		ModelType:  "ssd-c4isr-threat-detection",
		Label:      "knife",
		Confidence: 0.91,
		BBox:       tracking.BBox{XMin: 0.1, YMin: 0.2, XMax: 0.3, YMax: 0.4},
		Timestamp:  "2025-06-01T12:00:00Z",
		Metadata: Metadata{
			NativeID:             "3",
			ThreatLevel:          threat.TierHigh,
			SuspiciousIndicators: []string{"high_confidence_weapon_detection"},
		},
	})
	p.Shutdown("done", tracking.Analytics{})

	events, _ := tr.snapshot()
	if len(events) != 2 {
		t.Fatalf("Expected detection + shutdown events, got %d", len(events))
	}

	var evt DetectionEvent
	if err := json.Unmarshal(events[0].data, &evt); err != nil {
		t.Fatalf("Failed to decode detection event: %v", err)
	}
	if evt.EventType != EventDetection {
		t.Errorf("Expected event_type detection, got %s", evt.EventType)
	}
	if evt.EntityID != "entity-7" {
		t.Errorf("Expected entity_id entity-7, got %s", evt.EntityID)
	}
	if evt.Detection.TrackID != "track-1" || evt.Detection.Metadata.NativeID != "3" {
		t.Errorf("Detection payload mangled: %+v", evt.Detection)
	}
	if got := events[0].header.Get("Threat-Level"); got != "HIGH_THREAT" {
		t.Errorf("Expected Threat-Level header HIGH_THREAT, got %q", got)
	}
	if got := events[0].header.Get("Label"); got != "knife" {
		t.Errorf("Expected Label header knife, got %q", got)
	}
}

func TestPublisher_DetectionWithoutThreatOmitsHeaders(t *testing.T) {
	tr := &fakeTransport{}
	p := NewPublisher(tr, "entity-7", testSource(), 16)

	p.PublishDetection(DetectionPayload{
		TrackID:   "track-2",
		Label:     "bench",
		Timestamp: "ts",
	})
	p.Shutdown("done", tracking.Analytics{})

	events, _ := tr.snapshot()
	if got := events[0].header.Get("Threat-Level"); got != "" {
		t.Errorf("Expected no Threat-Level header, got %q", got)
	}
}

func TestPublisher_SnapshotWritesBothKVEntries(t *testing.T) {
	tr := &fakeTransport{}
	p := NewPublisher(tr, "entity-7", testSource(), 16)

	objects := map[string]tracking.TrackedObject{
		"t1": {
			TrackID:     "t1",
			Label:       "person",
			FrameCount:  5,
			IsActive:    true,
			ThreatLevel: threat.TierLow,
			BBoxHistory: []tracking.BBox{{XMin: 0.1, YMin: 0.1, XMax: 0.2, YMax: 0.2}},
		},
	}
	p.PublishSnapshot(objects, tracking.Analytics{ActiveObjectsCount: 1})
	p.Shutdown("done", tracking.Analytics{})

	_, kv := tr.snapshot()
	if len(kv) != 2 {
		t.Fatalf("Expected 2 KV writes, got %d", len(kv))
	}
	if kv[0].key != "entity-7.detections.objects" {
		t.Errorf("Unexpected objects key: %s", kv[0].key)
	}
	if kv[1].key != "entity-7.analytics.summary" {
		t.Errorf("Unexpected analytics key: %s", kv[1].key)
	}

	var snap StateSnapshot
	if err := json.Unmarshal(kv[0].value, &snap); err != nil {
		t.Fatalf("Failed to decode snapshot: %v", err)
	}
	obj, ok := snap.TrackedObjects["t1"]
	if !ok {
		t.Fatal("Expected t1 in snapshot")
	}
	if obj.CurrentBBox == nil || obj.CurrentBBox.XMin != 0.1 {
		t.Errorf("Expected current bbox from history, got %+v", obj.CurrentBBox)
	}

	// Analytics fields must be inlined, not nested.
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(kv[1].value, &raw); err != nil {
		t.Fatalf("Failed to decode analytics record: %v", err)
	}
	if _, ok := raw["active_objects_count"]; !ok {
		t.Error("Expected active_objects_count inlined in analytics record")
	}
}

func TestPublisher_ShutdownCarriesFinalAnalytics(t *testing.T) {
	tr := &fakeTransport{}
	p := NewPublisher(tr, "entity-7", testSource(), 16)

	p.Shutdown("Overwatch ISR component shutting down gracefully", tracking.Analytics{
		TotalUniqueObjects:   12,
		TotalFramesProcessed: 900,
	})

	events, _ := tr.snapshot()
	if len(events) != 1 {
		t.Fatalf("Expected 1 event, got %d", len(events))
	}
	var evt LifecycleEvent
	if err := json.Unmarshal(events[0].data, &evt); err != nil {
		t.Fatalf("Failed to decode shutdown event: %v", err)
	}
	if evt.EventType != EventShutdown {
		t.Errorf("Expected event_type shutdown, got %s", evt.EventType)
	}
	if evt.FinalAnalytics == nil || evt.FinalAnalytics.TotalUniqueObjects != 12 {
		t.Errorf("Expected final analytics in shutdown event, got %+v", evt.FinalAnalytics)
	}
	if evt.Source.DeviceID != "abcdef0123456789" {
		t.Errorf("Expected source device fingerprint, got %+v", evt.Source)
	}
}

func TestPublisher_NilPublisherNoOps(t *testing.T) {
	var p *Publisher
	p.PublishBootsequence("ignored")
	p.PublishDetection(DetectionPayload{})
	p.PublishSnapshot(nil, tracking.Analytics{})
	p.PublishThreatIntelligence(tracking.Analytics{})
	p.Shutdown("ignored", tracking.Analytics{})
}

// blockingTransport stalls the writer goroutine so queue overflow is testable.
type blockingTransport struct {
	fakeTransport
	release chan struct{}
	once    sync.Once
}

func (b *blockingTransport) PublishEvent(data []byte, header nats.Header) error {
	b.once.Do(func() { <-b.release })
	return b.fakeTransport.PublishEvent(data, header)
}

func TestPublisher_QueueOverflowDrops(t *testing.T) {
	tr := &blockingTransport{release: make(chan struct{})}
	p := NewPublisher(tr, "entity-7", testSource(), 2)

	// First event occupies the writer; the next two fill the queue; the rest
	// must be dropped without blocking.
	for i := 0; i < 10; i++ {
		p.PublishDetection(DetectionPayload{TrackID: "t", Timestamp: "ts"})
	}

	done := make(chan struct{})
	go func() {
		close(tr.release)
		p.Shutdown("done", tracking.Analytics{})
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Publisher deadlocked on overflow")
	}

	events, _ := tr.snapshot()
	// 3 detections at most (1 in-flight + 2 queued) plus shutdown.
	if len(events) > 4 {
		t.Errorf("Expected overflow drops, got %d events", len(events))
	}
}
