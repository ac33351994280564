package detection

import (
	"sort"
	"strconv"

	"gocv.io/x/gocv"
)

// iouTrack is one live association maintained by the TrackingAdapter.
type iouTrack struct {
	id             int
	x1, y1, x2, y2 float64
	misses         int
}

// TrackingAdapter decorates a stateless detector with cross-frame IoU
// association so detections carry stable integer native IDs. Tracks missing
// for more than maxMisses consecutive frames are dropped; a reappearing
// object past that window gets a new native ID, which the identity
// reconciler then maps to a new global track ID.
type TrackingAdapter struct {
	inner        Detector
	iouThreshold float64
	maxMisses    int
	tracks       []*iouTrack
	nextID       int
}

func NewTrackingAdapter(inner Detector, iouThreshold float64, maxMisses int) *TrackingAdapter {
	return &TrackingAdapter{
		inner:        inner,
		iouThreshold: iouThreshold,
		maxMisses:    maxMisses,
		nextID:       1,
	}
}

func (a *TrackingAdapter) Model() ModelConfig {
	return a.inner.Model()
}

func (a *TrackingAdapter) Close() error {
	return a.inner.Close()
}

// ProcessFrame runs the inner detector and assigns native IDs by greedy
// best-IoU matching, strongest pairs first.
func (a *TrackingAdapter) ProcessFrame(img gocv.Mat, frameIndex int) ([]RawDetection, error) {
	raws, err := a.inner.ProcessFrame(img, frameIndex)
	if err != nil {
		return nil, err
	}
	a.assign(raws)
	return raws, nil
}

type iouCandidate struct {
	detIdx   int
	trackIdx int
	score    float64
}

func (a *TrackingAdapter) assign(raws []RawDetection) {
	var candidates []iouCandidate
	for di, raw := range raws {
		if !raw.HasBox {
			continue
		}
		for ti, track := range a.tracks {
			score := iou(raw.X1, raw.Y1, raw.X2, raw.Y2, track.x1, track.y1, track.x2, track.y2)
			if score >= a.iouThreshold {
				candidates = append(candidates, iouCandidate{detIdx: di, trackIdx: ti, score: score})
			}
		}
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].score > candidates[j].score })

	matchedDet := make(map[int]bool)
	matchedTrack := make(map[int]bool)
	for _, c := range candidates {
		if matchedDet[c.detIdx] || matchedTrack[c.trackIdx] {
			continue
		}
		matchedDet[c.detIdx] = true
		matchedTrack[c.trackIdx] = true

		track := a.tracks[c.trackIdx]
		raw := raws[c.detIdx]
		track.x1, track.y1, track.x2, track.y2 = raw.X1, raw.Y1, raw.X2, raw.Y2
		track.misses = 0
		raws[c.detIdx].NativeID = strconv.Itoa(track.id)
	}

	// Unmatched detections open new tracks.
	for di := range raws {
		if matchedDet[di] || !raws[di].HasBox {
			continue
		}
		track := &iouTrack{
			id: a.nextID,
			x1: raws[di].X1, y1: raws[di].Y1,
			x2: raws[di].X2, y2: raws[di].Y2,
		}
		a.nextID++
		a.tracks = append(a.tracks, track)
		raws[di].NativeID = strconv.Itoa(track.id)
	}

	// Unmatched tracks age out.
	kept := a.tracks[:0]
	for ti, track := range a.tracks {
		if !matchedTrack[ti] {
			track.misses++
			if track.misses > a.maxMisses {
				continue
			}
		}
		kept = append(kept, track)
	}
	a.tracks = kept
}

func iou(ax1, ay1, ax2, ay2, bx1, by1, bx2, by2 float64) float64 {
	ix1 := max64(ax1, bx1)
	iy1 := max64(ay1, by1)
	ix2 := min64(ax2, bx2)
	iy2 := min64(ay2, by2)
	if ix2 <= ix1 || iy2 <= iy1 {
		return 0
	}
	inter := (ix2 - ix1) * (iy2 - iy1)
	areaA := (ax2 - ax1) * (ay2 - ay1)
	areaB := (bx2 - bx1) * (by2 - by1)
	union := areaA + areaB - inter
	if union <= 0 {
		return 0
	}
	return inter / union
}

func max64(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

func min64(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
