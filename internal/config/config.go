package config

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds everything the sensor needs to run. Values come from the
// environment (optionally a .env file), with flags layered on top by main.
type Config struct {
	// Constellation identity. Both are required before anything publishes.
	OrganizationID string
	EntityID       string

	// NATS / JetStream.
	NATSURL          string
	SubjectRoot      string
	StreamName       string
	KVBucket         string
	KVHistory        uint8
	KVTTL            time.Duration
	PublishQueueSize int

	// Tracking.
	MinFrames       int
	Confidence      float64
	CleanupInterval time.Duration

	// Local services.
	HTTPAddr    string
	JournalPath string

	// Detection model files.
	ModelPath     string
	ModelConfPath string
}

// Load reads configuration from the environment. A .env file in the working
// directory is merged in first when present; real environment variables win.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		OrganizationID:   os.Getenv("CONSTELLATION_ORG_ID"),
		EntityID:         os.Getenv("CONSTELLATION_ENTITY_ID"),
		NATSURL:          getEnv("NATS_URL", "nats://localhost:4222"),
		SubjectRoot:      getEnv("CONSTELLATION_SUBJECT_ROOT", "constellation.events.isr"),
		StreamName:       getEnv("CONSTELLATION_STREAM", "CONSTELLATION_EVENTS"),
		KVBucket:         getEnv("CONSTELLATION_KV_BUCKET", "CONSTELLATION_GLOBAL_STATE"),
		HTTPAddr:         getEnv("HTTP_ADDR", ":8090"),
		JournalPath:      getEnv("JOURNAL_PATH", "./overwatch.db"),
		ModelPath:        getEnv("MODEL_PATH", "./models/frozen_inference_graph.pb"),
		ModelConfPath:    getEnv("MODEL_CONFIG_PATH", "./models/ssd_mobilenet_v2_coco.pbtxt"),
		MinFrames:        getEnvInt("MIN_FRAMES", 3),
		PublishQueueSize: getEnvInt("PUBLISH_QUEUE_SIZE", 256),
		Confidence:       getEnvFloat("DETECTION_CONFIDENCE", 0.25),
		KVTTL:            getEnvDuration("CONSTELLATION_KV_TTL", 24*time.Hour),
		CleanupInterval:  getEnvDuration("CLEANUP_INTERVAL", 60*time.Second),
	}

	history := getEnvInt("CONSTELLATION_KV_HISTORY", 10)
	if history < 1 || history > 64 {
		return nil, fmt.Errorf("CONSTELLATION_KV_HISTORY must be between 1 and 64, got %d", history)
	}
	cfg.KVHistory = uint8(history)

	if cfg.MinFrames < 1 {
		return nil, fmt.Errorf("MIN_FRAMES must be at least 1, got %d", cfg.MinFrames)
	}
	if cfg.PublishQueueSize < 1 {
		return nil, fmt.Errorf("PUBLISH_QUEUE_SIZE must be at least 1, got %d", cfg.PublishQueueSize)
	}

	return cfg, nil
}

// EnsureIdentity prompts on stdin for any missing constellation identity
// field. It fails rather than prompting when stdin is not a terminal.
func (c *Config) EnsureIdentity() error {
	reader := bufio.NewReader(os.Stdin)

	if c.OrganizationID == "" {
		v, err := prompt(reader, "Organization ID")
		if err != nil {
			return err
		}
		c.OrganizationID = v
	}
	if c.EntityID == "" {
		v, err := prompt(reader, "Entity ID")
		if err != nil {
			return err
		}
		c.EntityID = v
	}
	return nil
}

func prompt(reader *bufio.Reader, name string) (string, error) {
	info, err := os.Stdin.Stat()
	if err != nil || info.Mode()&os.ModeCharDevice == 0 {
		return "", fmt.Errorf("%s is required (set CONSTELLATION_ORG_ID / CONSTELLATION_ENTITY_ID)", name)
	}
	fmt.Printf("%s: ", name)
	line, err := reader.ReadString('\n')
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", name, err)
	}
	v := strings.TrimSpace(line)
	if v == "" {
		return "", fmt.Errorf("%s cannot be empty", name)
	}
	return v, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
