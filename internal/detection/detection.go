package detection

import (
	"gocv.io/x/gocv"

	"github.com/constellation-edge/overwatch/internal/tracking"
)

// RawDetection is one object as a back-end reports it, before normalization.
// Box coordinates are pixels unless Normalized is set. NativeID is the
// back-end's own track identifier and is empty for stateless back-ends.
type RawDetection struct {
	Label      string
	Confidence float64
	X1, Y1     float64
	X2, Y2     float64
	HasBox     bool
	Normalized bool
	NativeID   string
	Mask       *Mask
}

// Record is the canonical per-frame detection consumed by the tracking layer.
type Record struct {
	Label      string
	Confidence float64
	BBox       tracking.BBox
	NativeID   string
	ModelType  string
	Area       int
	Timestamp  string
}

// Detector is the single capability every back-end exposes: one frame in,
// raw detections out. Inference engines are black boxes behind this.
type Detector interface {
	ProcessFrame(img gocv.Mat, frameIndex int) ([]RawDetection, error)
	Model() ModelConfig
	Close() error
}

// Mask is a row-major binary segmentation mask.
type Mask struct {
	Width  int
	Height int
	Bits   []uint8
}

// Area returns the number of foreground pixels.
func (m *Mask) Area() int {
	area := 0
	for _, b := range m.Bits {
		if b != 0 {
			area++
		}
	}
	return area
}

// Bounds returns the pixel bounding box of the foreground, ok=false when the
// mask is empty.
func (m *Mask) Bounds() (x1, y1, x2, y2 int, ok bool) {
	x1, y1 = m.Width, m.Height
	x2, y2 = -1, -1
	for y := 0; y < m.Height; y++ {
		row := m.Bits[y*m.Width : (y+1)*m.Width]
		for x, b := range row {
			if b == 0 {
				continue
			}
			if x < x1 {
				x1 = x
			}
			if x > x2 {
				x2 = x
			}
			if y < y1 {
				y1 = y
			}
			if y > y2 {
				y2 = y
			}
		}
	}
	if x2 < 0 {
		return 0, 0, 0, 0, false
	}
	return x1, y1, x2 + 1, y2 + 1, true
}
