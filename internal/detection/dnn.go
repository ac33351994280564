package detection

import (
	"fmt"
	"image"

	"gocv.io/x/gocv"
)

// DefaultClassNames maps SSD MobileNet COCO class IDs to the labels the
// threat classifier knows. IDs absent from the map are skipped.
func DefaultClassNames() map[int]string {
	return map[int]string{
		1:  "person",
		2:  "bicycle",
		3:  "car",
		4:  "motorcycle",
		6:  "unauthorized vehicle",
		8:  "truck",
		10: "traffic light",
		13: "stop sign",
		15: "bench",
		16: "bird",
		17: "cat",
		18: "dog",
		27: "backpack",
		33: "suitcase",
		49: "knife",
	}
}

// SSDDetector runs an SSD MobileNet network through OpenCV's DNN module.
// It is stateless across frames: it emits no native IDs, so every detection
// reconciles to a fresh global track ID unless wrapped in a TrackingAdapter.
type SSDDetector struct {
	net        gocv.Net
	classNames map[int]string
	cfg        ModelConfig
}

// NewSSDDetector loads the frozen graph and its pbtxt config.
func NewSSDDetector(cfg ModelConfig, modelPath, configPath string, classNames map[int]string) (*SSDDetector, error) {
	net := gocv.ReadNet(modelPath, configPath)
	if net.Empty() {
		return nil, fmt.Errorf("failed to load detection model from %s", modelPath)
	}
	return &SSDDetector{
		net:        net,
		classNames: classNames,
		cfg:        cfg,
	}, nil
}

// Model returns the active profile.
func (d *SSDDetector) Model() ModelConfig {
	return d.cfg
}

// ProcessFrame runs one inference pass. SSD output rows are
// [batch, classID, confidence, x1, y1, x2, y2] with coordinates already
// normalized to [0,1].
func (d *SSDDetector) ProcessFrame(img gocv.Mat, frameIndex int) ([]RawDetection, error) {
	if img.Empty() {
		return nil, fmt.Errorf("empty frame at index %d", frameIndex)
	}

	blob := gocv.BlobFromImage(img, 1.0/127.5, image.Pt(300, 300),
		gocv.NewScalar(127.5, 127.5, 127.5, 0), true, false)
	defer blob.Close()

	d.net.SetInput(blob, "")
	results := d.net.Forward("")
	defer results.Close()

	var detections []RawDetection
	for i := 0; i < results.Total(); i += 7 {
		confidence := float64(results.GetFloatAt(0, i+2))
		if confidence < d.cfg.DefaultConfidence {
			continue
		}

		classID := int(results.GetFloatAt(0, i+1))
		label, ok := d.classNames[classID]
		if !ok {
			continue
		}

		detections = append(detections, RawDetection{
			Label:      label,
			Confidence: confidence,
			X1:         float64(results.GetFloatAt(0, i+3)),
			Y1:         float64(results.GetFloatAt(0, i+4)),
			X2:         float64(results.GetFloatAt(0, i+5)),
			Y2:         float64(results.GetFloatAt(0, i+6)),
			HasBox:     true,
			Normalized: true,
		})
	}
	return detections, nil
}

func (d *SSDDetector) Close() error {
	return d.net.Close()
}
