package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/constellation-edge/overwatch/internal/api"
	"github.com/constellation-edge/overwatch/internal/app"
	"github.com/constellation-edge/overwatch/internal/capture"
	"github.com/constellation-edge/overwatch/internal/config"
	"github.com/constellation-edge/overwatch/internal/constellation"
	"github.com/constellation-edge/overwatch/internal/detection"
	"github.com/constellation-edge/overwatch/internal/fingerprint"
	"github.com/constellation-edge/overwatch/internal/journal"
	"github.com/constellation-edge/overwatch/internal/threat"
	"github.com/constellation-edge/overwatch/internal/tracking"
)

func main() {
	listDevices := flag.Bool("list-devices", false, "List local camera devices and exit")
	listModes := flag.Bool("list-modes", false, "List detection modes and exit")
	camera := flag.Int("camera", 0, "Local camera index")
	source := flag.String("source", "", "Video file or stream URL (overrides -camera)")
	mode := flag.String("mode", string(detection.DefaultMode), "Detection mode")
	conf := flag.Float64("conf", 0, "Confidence threshold override")
	minFrames := flag.Int("min-frames", 0, "Persistence gate override (frames)")
	httpAddr := flag.String("http", "", "Status API listen address override")
	customThreats := flag.String("custom-threats", "", "Comma-separated labels to register as custom threats")
	flag.Parse()

	if *listDevices {
		devices := capture.EnumerateDevices()
		if len(devices) == 0 {
			fmt.Println("No camera devices found")
			return
		}
		for _, d := range devices {
			if d.Path != "" {
				fmt.Printf("  %d: %s\n", d.Index, d.Path)
			} else {
				fmt.Printf("  %d\n", d.Index)
			}
		}
		return
	}

	if *listModes {
		for _, m := range detection.AvailableModes() {
			fmt.Println(m)
		}
		return
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Invalid configuration: ", err)
	}
	if *minFrames > 0 {
		cfg.MinFrames = *minFrames
	}
	if *httpAddr != "" {
		cfg.HTTPAddr = *httpAddr
	}
	if err := cfg.EnsureIdentity(); err != nil {
		log.Fatal(err)
	}

	modelCfg, err := detection.ConfigFor(detection.Mode(*mode))
	if err != nil {
		log.Fatal(err)
	}

	identity := fingerprint.Collect()
	log.Printf("Device: %s (%s, %s)", identity.DeviceID, identity.Hostname, identity.Platform)
	log.Printf("Constellation identity: org=%s entity=%s", cfg.OrganizationID, cfg.EntityID)

	classifier := threat.NewClassifier()
	if *customThreats != "" {
		for _, label := range strings.Split(*customThreats, ",") {
			label = strings.TrimSpace(label)
			if label == "" {
				continue
			}
			classifier.RegisterCustomLabel(label, "")
			log.Printf("[TRACK] Registered custom threat label: %s", label)
		}
	}

	if modelCfg.RequiresPrompts {
		log.Printf("[TRACK] Prompt vocabulary: %d labels", len(classifier.Labels()))
	}

	detector, err := detection.NewDetector(detection.Mode(*mode), detection.Options{
		ModelPath:  cfg.ModelPath,
		ConfigPath: cfg.ModelConfPath,
		Confidence: pickConfidence(*conf, cfg.Confidence),
	})
	if err != nil {
		log.Fatal("Failed to initialize detector: ", err)
	}
	defer detector.Close()

	store := tracking.NewStore()
	reconciler := tracking.NewReconciler()

	// Telemetry is best-effort: an unreachable NATS server degrades to
	// in-memory tracking with the status API still available.
	var publisher *constellation.Publisher
	client, err := constellation.Connect(cfg)
	if err != nil {
		log.Printf("[NATS] %v", err)
		log.Printf("[NATS] Continuing without event publishing")
	} else {
		defer client.Close()
		publisher = constellation.NewPublisher(client, cfg.EntityID, constellation.Source{
			DeviceID: identity.DeviceID,
			Hostname: identity.Hostname,
			Platform: identity.Platform,
			MAC:      identity.MAC,
			Component: constellation.Component{
				Type:        modelCfg.ComponentType,
				Description: modelCfg.Description,
			},
		}, cfg.PublishQueueSize)
		publisher.PublishBootsequence(
			fmt.Sprintf("Overwatch ISR component initialized: %s", modelCfg.ComponentType))
	}

	jnl, err := journal.Open(cfg.JournalPath)
	if err != nil {
		log.Printf("[JOURNAL] %v", err)
		log.Printf("[JOURNAL] Continuing without local journal")
		jnl = nil
	} else {
		defer jnl.Close()
	}

	hub := api.NewHub()
	go hub.Run()

	statusAPI := &api.App{
		Store:      store,
		Reconciler: reconciler,
		Journal:    jnl,
		Hub:        hub,
		EntityID:   cfg.EntityID,
		ModelName:  modelCfg.Name,
		MinFrames:  cfg.MinFrames,
		StartedAt:  time.Now(),
	}
	go func() {
		log.Printf("Status API listening on %s", cfg.HTTPAddr)
		if err := http.ListenAndServe(cfg.HTTPAddr, api.NewRouter(statusAPI)); err != nil {
			log.Printf("Status API stopped: %v", err)
		}
	}()

	var src *capture.Source
	if *source != "" {
		src, err = capture.OpenURL(*source)
	} else {
		src, err = capture.OpenDevice(*camera)
	}
	if err != nil {
		log.Fatal(err)
	}
	defer src.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runtime := &app.Runtime{
		Detector:        detector,
		Normalizer:      detection.NewNormalizer(detector.Model()),
		Classifier:      classifier,
		Store:           store,
		Reconciler:      reconciler,
		Publisher:       publisher,
		Journal:         jnl,
		Hub:             hub,
		Mode:            detection.Mode(*mode),
		MinFrames:       cfg.MinFrames,
		CleanupInterval: cfg.CleanupInterval,
	}

	if err := runtime.Run(ctx, src); err != nil && err != context.Canceled {
		log.Printf("[LOOP] %v", err)
	}

	publisher.Shutdown("Overwatch ISR component shutting down gracefully", store.Analytics())
}

func pickConfidence(flagValue, envValue float64) float64 {
	if flagValue > 0 {
		return flagValue
	}
	return envValue
}
