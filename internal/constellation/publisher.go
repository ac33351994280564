package constellation

import (
	"encoding/json"
	"log"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/constellation-edge/overwatch/internal/tracking"
)

// Transport is the slice of Client the publisher needs. Tests substitute a
// recording fake.
type Transport interface {
	PublishEvent(data []byte, header nats.Header) error
	PutKV(key string, value []byte) error
}

// Publisher serializes tracking state into the constellation contract and
// ships it through a bounded outbound queue. The frame loop never blocks on
// the network: when the queue is full the event is dropped and logged, which
// matches the at-most-once delivery guarantee of the telemetry layer.
//
// A nil *Publisher is valid and drops everything; the frame loop runs
// unchanged when NATS is unreachable.
type Publisher struct {
	tr       Transport
	entityID string
	source   Source
	queue    chan func()
	done     chan struct{}
	now      func() time.Time
}

func NewPublisher(tr Transport, entityID string, source Source, queueSize int) *Publisher {
	p := &Publisher{
		tr:       tr,
		entityID: entityID,
		source:   source,
		queue:    make(chan func(), queueSize),
		done:     make(chan struct{}),
		now:      time.Now,
	}
	go p.drain()
	return p
}

func (p *Publisher) drain() {
	for job := range p.queue {
		job()
	}
	close(p.done)
}

func (p *Publisher) timestamp() string {
	return p.now().UTC().Format(time.RFC3339Nano)
}

// enqueue hands a publish job to the writer goroutine without blocking.
func (p *Publisher) enqueue(kind string, job func()) {
	select {
	case p.queue <- job:
	default:
		log.Printf("[NATS] Publish queue full, dropping %s event", kind)
	}
}

// PublishBootsequence announces session start with the device identity.
func (p *Publisher) PublishBootsequence(message string) {
	if p == nil {
		return
	}
	evt := LifecycleEvent{
		Timestamp: p.timestamp(),
		EventType: EventBootsequence,
		Source:    p.source,
		Message:   message,
	}
	p.enqueue(EventBootsequence, func() {
		data, err := json.Marshal(evt)
		if err != nil {
			log.Printf("[NATS] Error encoding bootsequence event: %v", err)
			return
		}
		header := nats.Header{
			"Content-Type": []string{"application/json"},
			"Event-Type":   []string{EventBootsequence},
		}
		if err := p.tr.PublishEvent(data, header); err != nil {
			log.Printf("[NATS] Error publishing bootsequence: %v", err)
			return
		}
		log.Printf("[NATS] Published bootsequence event")
	})
}

// PublishDetection ships one canonical detection record.
func (p *Publisher) PublishDetection(payload DetectionPayload) {
	if p == nil {
		return
	}
	evt := DetectionEvent{
		Timestamp: payload.Timestamp,
		EventType: EventDetection,
		EntityID:  p.entityID,
		DeviceID:  p.source.DeviceID,
		Detection: payload,
	}
	p.enqueue(EventDetection, func() {
		data, err := json.Marshal(evt)
		if err != nil {
			log.Printf("[NATS] Error encoding detection event: %v", err)
			return
		}
		header := nats.Header{
			"Content-Type": []string{"application/json"},
			"Event-Type":   []string{EventDetection},
			"Device-ID":    []string{p.source.DeviceID},
		}
		if payload.Metadata.ThreatLevel != "" {
			header["Threat-Level"] = []string{string(payload.Metadata.ThreatLevel)}
			header["Label"] = []string{payload.Label}
		}
		if err := p.tr.PublishEvent(data, header); err != nil {
			log.Printf("[NATS] Error publishing detection event: %v", err)
		}
	})
}

// PublishSnapshot writes the persistent-object set and the analytics summary
// to the KV bucket.
func (p *Publisher) PublishSnapshot(objects map[string]tracking.TrackedObject, analytics tracking.Analytics) {
	if p == nil {
		return
	}
	ts := p.timestamp()
	snapshot := BuildStateSnapshot(p.entityID, p.source.DeviceID, ts, objects, analytics)
	record := AnalyticsRecord{Timestamp: ts, EntityID: p.entityID, Analytics: analytics}

	p.enqueue("snapshot", func() {
		if data, err := json.Marshal(snapshot); err != nil {
			log.Printf("[NATS] Error encoding state snapshot: %v", err)
		} else if err := p.tr.PutKV(BuildKVKey(p.entityID, "detections", "objects"), data); err != nil {
			log.Printf("[NATS] Error writing state snapshot to KV: %v", err)
		}

		if data, err := json.Marshal(record); err != nil {
			log.Printf("[NATS] Error encoding analytics summary: %v", err)
		} else if err := p.tr.PutKV(BuildKVKey(p.entityID, "analytics", "summary"), data); err != nil {
			log.Printf("[NATS] Error writing analytics summary to KV: %v", err)
		}
	})
}

// PublishThreatIntelligence writes the C4ISR intelligence KV entry.
func (p *Publisher) PublishThreatIntelligence(analytics tracking.Analytics) {
	if p == nil {
		return
	}
	intel := BuildThreatIntelligence(p.entityID, p.source.DeviceID, p.timestamp(), analytics)
	p.enqueue("threat_intelligence", func() {
		data, err := json.Marshal(intel)
		if err != nil {
			log.Printf("[NATS] Error encoding threat intelligence: %v", err)
			return
		}
		if err := p.tr.PutKV(BuildKVKey(p.entityID, "c4isr", "threat_intelligence"), data); err != nil {
			log.Printf("[NATS] Error writing threat intelligence to KV: %v", err)
		}
	})
}

// Shutdown publishes the final shutdown event with closing analytics, then
// flushes the queue and stops the writer. The shutdown event blocks for a
// queue slot instead of dropping: it is the one event worth waiting for.
func (p *Publisher) Shutdown(message string, final tracking.Analytics) {
	if p == nil {
		return
	}
	evt := LifecycleEvent{
		Timestamp:      p.timestamp(),
		EventType:      EventShutdown,
		Source:         p.source,
		Message:        message,
		FinalAnalytics: &final,
	}
	p.queue <- func() {
		data, err := json.Marshal(evt)
		if err != nil {
			log.Printf("[NATS] Error encoding shutdown event: %v", err)
			return
		}
		header := nats.Header{
			"Content-Type": []string{"application/json"},
			"Event-Type":   []string{EventShutdown},
		}
		if err := p.tr.PublishEvent(data, header); err != nil {
			log.Printf("[NATS] Error publishing shutdown event: %v", err)
			return
		}
		log.Printf("[NATS] Published shutdown event")
	}
	close(p.queue)
	<-p.done
}
