package constellation

import (
	"fmt"
	"log"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/constellation-edge/overwatch/internal/config"
)

// Client wraps the NATS/JetStream connection and the shared KV bucket. A
// missing KV bucket degrades to event-only operation rather than failing.
type Client struct {
	nc      *nats.Conn
	js      nats.JetStreamContext
	kv      nats.KeyValue
	subject string
}

// Connect establishes the NATS connection, resolves the JetStream stream, and
// creates or attaches to the shared KV bucket.
func Connect(cfg *config.Config) (*Client, error) {
	subject := fmt.Sprintf("%s.%s.%s", cfg.SubjectRoot, cfg.OrganizationID, cfg.EntityID)

	nc, err := nats.Connect(cfg.NATSURL, nats.Name("overwatch-"+cfg.EntityID))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS at %s: %w", cfg.NATSURL, err)
	}
	log.Printf("[NATS] Connected to %s", cfg.NATSURL)
	log.Printf("[NATS] Subject: %s", subject)

	js, err := nc.JetStream()
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	if info, err := js.StreamInfo(cfg.StreamName); err != nil {
		log.Printf("[NATS] Warning: stream %s not found: %v", cfg.StreamName, err)
	} else {
		log.Printf("[NATS] Stream %s (subjects: %v)", cfg.StreamName, info.Config.Subjects)
	}

	kv := setupKV(js, cfg)

	return &Client{nc: nc, js: js, kv: kv, subject: subject}, nil
}

// setupKV creates the shared state bucket, attaching to an existing one when
// creation races or is forbidden. Returns nil when the bucket is unusable;
// callers skip persistence in that case.
func setupKV(js nats.JetStreamContext, cfg *config.Config) nats.KeyValue {
	kv, err := js.CreateKeyValue(&nats.KeyValueConfig{
		Bucket:       cfg.KVBucket,
		Description:  "Constellation global state for object tracking and threat intelligence",
		History:      cfg.KVHistory,
		TTL:          cfg.KVTTL,
		MaxValueSize: 1 << 20,
	})
	if err == nil {
		log.Printf("[NATS] KV bucket ready: %s", cfg.KVBucket)
		return kv
	}

	kv, err2 := js.KeyValue(cfg.KVBucket)
	if err2 == nil {
		log.Printf("[NATS] Attached to existing KV bucket: %s", cfg.KVBucket)
		return kv
	}

	log.Printf("[NATS] KV bucket unavailable (%v), continuing without state persistence", err2)
	return nil
}

// Subject returns the event subject this client publishes to.
func (c *Client) Subject() string {
	return c.subject
}

// PublishEvent sends one event message to the entity subject.
func (c *Client) PublishEvent(data []byte, header nats.Header) error {
	_, err := c.js.PublishMsg(&nats.Msg{
		Subject: c.subject,
		Data:    data,
		Header:  header,
	})
	return err
}

// PutKV writes one KV entry. A nil bucket is a silent no-op: the degraded
// mode was already logged at setup.
func (c *Client) PutKV(key string, value []byte) error {
	if c.kv == nil {
		return nil
	}
	_, err := c.kv.Put(key, value)
	return err
}

// Close drains in-flight publishes and tears the connection down.
func (c *Client) Close() {
	if c.nc == nil {
		return
	}
	if err := c.nc.Drain(); err != nil {
		c.nc.Close()
	}
	// Drain closes asynchronously; give it a moment before the process exits.
	for i := 0; i < 20 && !c.nc.IsClosed(); i++ {
		time.Sleep(50 * time.Millisecond)
	}
	log.Printf("[NATS] Connection closed")
}
