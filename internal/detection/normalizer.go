package detection

import (
	"fmt"

	"github.com/constellation-edge/overwatch/internal/tracking"
)

// Normalizer adapts one back-end's raw output into canonical Records:
// pixel boxes are scaled to [0,1], missing boxes are derived from masks,
// undersized segments are dropped, and stateless detections get a synthetic
// per-frame native ID.
type Normalizer struct {
	modelType   string
	minMaskArea int
}

func NewNormalizer(cfg ModelConfig) *Normalizer {
	return &Normalizer{
		modelType:   cfg.Name,
		minMaskArea: cfg.MinMaskArea,
	}
}

// ModelType returns the model tag stamped on every record.
func (n *Normalizer) ModelType() string {
	return n.modelType
}

// Normalize converts raw detections from one frame. A dropped detection
// consumes no track ID: the mask-area floor is applied here, before identity
// reconciliation ever sees the detection.
func (n *Normalizer) Normalize(raws []RawDetection, frameW, frameH, frameIndex int, timestamp string) []Record {
	records := make([]Record, 0, len(raws))

	for i, raw := range raws {
		area := 0
		x1, y1, x2, y2 := raw.X1, raw.Y1, raw.X2, raw.Y2
		normalized := raw.Normalized

		if raw.Mask != nil {
			area = raw.Mask.Area()
			if n.minMaskArea > 0 && area < n.minMaskArea {
				continue
			}
			if !raw.HasBox {
				mx1, my1, mx2, my2, ok := raw.Mask.Bounds()
				if !ok {
					continue
				}
				x1, y1, x2, y2 = float64(mx1), float64(my1), float64(mx2), float64(my2)
				normalized = false
			}
		} else if !raw.HasBox {
			continue
		}

		bbox := tracking.BBox{XMin: x1, YMin: y1, XMax: x2, YMax: y2}
		if !normalized {
			bbox = tracking.BBox{
				XMin: x1 / float64(frameW),
				YMin: y1 / float64(frameH),
				XMax: x2 / float64(frameW),
				YMax: y2 / float64(frameH),
			}
		}

		nativeID := raw.NativeID
		if nativeID == "" {
			nativeID = fmt.Sprintf("%d_%d", frameIndex, i)
		}

		records = append(records, Record{
			Label:      raw.Label,
			Confidence: raw.Confidence,
			BBox:       bbox,
			NativeID:   nativeID,
			ModelType:  n.modelType,
			Area:       area,
			Timestamp:  timestamp,
		})
	}
	return records
}
