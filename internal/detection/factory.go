package detection

import (
	"fmt"
	"sort"
)

// Mode selects a detection pipeline profile. The profile determines the
// model tag carried in every payload, the normalization policy, and whether
// native track IDs are assigned across frames.
type Mode string

const (
	// ModeC4ISR is the default: threat-vocabulary detection with per-frame
	// synthetic IDs for immediate alerting.
	ModeC4ISR Mode = "c4isr"
	// ModeTracking assigns cross-frame native IDs via IoU association.
	ModeTracking Mode = "tracking"
	// ModeSegment consumes mask-producing back-ends; small segments are
	// filtered before reconciliation.
	ModeSegment Mode = "segment"
	// ModeVocab is open-vocabulary prompt detection without IDs or scores.
	ModeVocab Mode = "vocab"
)

// ModelConfig describes one detection profile. Name doubles as the model_type
// tag in detection payloads and reconciler keys.
type ModelConfig struct {
	Name                 string
	ComponentType        string
	Description          string
	DefaultConfidence    float64
	SupportsTracking     bool
	SupportsSegmentation bool
	RequiresPrompts      bool
	MinMaskArea          int
}

var modelConfigs = map[Mode]ModelConfig{
	ModeC4ISR: {
		Name:              "ssd-c4isr-threat-detection",
		ComponentType:     "c4isr-threat-detection",
		Description:       "Threat-vocabulary detection with C4ISR classification",
		DefaultConfidence: 0.25,
	},
	ModeTracking: {
		Name:              "ssd-object-tracking",
		ComponentType:     "object-tracking",
		Description:       "Object detection with cross-frame IoU track association",
		DefaultConfidence: 0.25,
		SupportsTracking:  true,
	},
	ModeSegment: {
		Name:                 "segment-detection",
		ComponentType:        "segmentation",
		Description:          "Mask-based segmentation with area filtering",
		DefaultConfidence:    0.25,
		SupportsSegmentation: true,
		MinMaskArea:          100,
	},
	ModeVocab: {
		Name:              "open-vocab-detection",
		ComponentType:     "open-vocab-detection",
		Description:       "Open-vocabulary prompt detection",
		DefaultConfidence: 0.5,
		RequiresPrompts:   true,
	},
}

// DefaultMode is the C4ISR threat-detection profile.
const DefaultMode = ModeC4ISR

// ConfigFor returns the profile for a mode.
func ConfigFor(mode Mode) (ModelConfig, error) {
	cfg, ok := modelConfigs[mode]
	if !ok {
		return ModelConfig{}, fmt.Errorf("unknown detection mode: %s", mode)
	}
	return cfg, nil
}

// AvailableModes lists mode names and descriptions in stable order.
func AvailableModes() []string {
	out := make([]string, 0, len(modelConfigs))
	for mode, cfg := range modelConfigs {
		suffix := ""
		if mode == DefaultMode {
			suffix = " (default)"
		}
		out = append(out, fmt.Sprintf("%s%s: %s", mode, suffix, cfg.Description))
	}
	sort.Strings(out)
	return out
}

// Options carries back-end construction parameters.
type Options struct {
	ModelPath  string
	ConfigPath string
	Confidence float64
	ClassNames map[int]string
}

// NewDetector builds the detector for a mode. All modes are served by the
// OpenCV-DNN back-end; tracking mode wraps it in the IoU association adapter
// so downstream consumers see stable native IDs.
func NewDetector(mode Mode, opts Options) (Detector, error) {
	cfg, err := ConfigFor(mode)
	if err != nil {
		return nil, err
	}
	if opts.Confidence > 0 {
		cfg.DefaultConfidence = opts.Confidence
	}
	if opts.ClassNames == nil {
		opts.ClassNames = DefaultClassNames()
	}

	det, err := NewSSDDetector(cfg, opts.ModelPath, opts.ConfigPath, opts.ClassNames)
	if err != nil {
		return nil, err
	}
	if cfg.SupportsTracking {
		return NewTrackingAdapter(det, 0.3, 30), nil
	}
	return det, nil
}
