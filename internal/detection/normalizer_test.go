package detection

import (
	"math"
	"testing"
)

func TestNormalize_PixelCoordinates(t *testing.T) {
	n := NewNormalizer(ModelConfig{Name: "rtdetr-test"})

	raws := []RawDetection{
		{Label: "person", Confidence: 0.8, X1: 64, Y1: 48, X2: 320, Y2: 240, HasBox: true},
	}
	records := n.Normalize(raws, 640, 480, 5, "2025-01-01T00:00:00Z")

	if len(records) != 1 {
		t.Fatalf("Expected 1 record, got %d", len(records))
	}
	rec := records[0]
	want := []float64{0.1, 0.1, 0.5, 0.5}
	got := []float64{rec.BBox.XMin, rec.BBox.YMin, rec.BBox.XMax, rec.BBox.YMax}
	for i := range want {
		if math.Abs(got[i]-want[i]) > 1e-9 {
			t.Errorf("Coordinate %d: expected %v, got %v", i, want[i], got[i])
		}
	}
	if rec.ModelType != "rtdetr-test" {
		t.Errorf("Expected model type rtdetr-test, got %s", rec.ModelType)
	}
	if rec.Timestamp != "2025-01-01T00:00:00Z" {
		t.Errorf("Unexpected timestamp %s", rec.Timestamp)
	}
}

func TestNormalize_AlreadyNormalized(t *testing.T) {
	n := NewNormalizer(ModelConfig{Name: "ssd-test"})

	raws := []RawDetection{
		{Label: "car", Confidence: 0.7, X1: 0.2, Y1: 0.3, X2: 0.4, Y2: 0.6, HasBox: true, Normalized: true},
	}
	records := n.Normalize(raws, 1920, 1080, 1, "ts")

	rec := records[0]
	if rec.BBox.XMin != 0.2 || rec.BBox.YMax != 0.6 {
		t.Errorf("Expected normalized coordinates passed through, got %+v", rec.BBox)
	}
}

func TestNormalize_SyntheticNativeID(t *testing.T) {
	n := NewNormalizer(ModelConfig{Name: "ssd-test"})

	raws := []RawDetection{
		{Label: "person", Confidence: 0.8, X1: 0.1, Y1: 0.1, X2: 0.2, Y2: 0.2, HasBox: true, Normalized: true},
		{Label: "car", Confidence: 0.6, X1: 0.5, Y1: 0.5, X2: 0.7, Y2: 0.7, HasBox: true, Normalized: true},
		{Label: "dog", Confidence: 0.6, X1: 0.8, Y1: 0.8, X2: 0.9, Y2: 0.9, HasBox: true, Normalized: true, NativeID: "42"},
	}
	records := n.Normalize(raws, 640, 480, 17, "ts")

	if records[0].NativeID != "17_0" {
		t.Errorf("Expected synthetic ID 17_0, got %s", records[0].NativeID)
	}
	if records[1].NativeID != "17_1" {
		t.Errorf("Expected synthetic ID 17_1, got %s", records[1].NativeID)
	}
	if records[2].NativeID != "42" {
		t.Errorf("Expected native ID 42 preserved, got %s", records[2].NativeID)
	}
}

func maskFromRows(rows []string) *Mask {
	h := len(rows)
	w := len(rows[0])
	bits := make([]uint8, w*h)
	for y, row := range rows {
		for x, c := range row {
			if c == '#' {
				bits[y*w+x] = 1
			}
		}
	}
	return &Mask{Width: w, Height: h, Bits: bits}
}

func TestNormalize_MaskAreaFloor(t *testing.T) {
	n := NewNormalizer(ModelConfig{Name: "segment-test", MinMaskArea: 4})

	small := maskFromRows([]string{
		"....",
		".#..",
		"....",
		"....",
	})
	big := maskFromRows([]string{
		"....",
		".##.",
		".##.",
		"....",
	})

	raws := []RawDetection{
		{Label: "segment", Confidence: 0.9, Mask: small},
		{Label: "segment", Confidence: 0.9, Mask: big},
	}
	records := n.Normalize(raws, 4, 4, 3, "ts")

	if len(records) != 1 {
		t.Fatalf("Expected small segment dropped, got %d records", len(records))
	}
	rec := records[0]
	if rec.Area != 4 {
		t.Errorf("Expected area 4, got %d", rec.Area)
	}
	// Box derived from mask bounds: pixels [1,3) in both axes on a 4x4 frame.
	if math.Abs(rec.BBox.XMin-0.25) > 1e-9 || math.Abs(rec.BBox.XMax-0.75) > 1e-9 {
		t.Errorf("Unexpected derived box: %+v", rec.BBox)
	}
	// A skipped detection still advances the synthetic index.
	if rec.NativeID != "3_1" {
		t.Errorf("Expected native ID 3_1, got %s", rec.NativeID)
	}
}

func TestNormalize_NoBoxNoMask(t *testing.T) {
	n := NewNormalizer(ModelConfig{Name: "test"})
	records := n.Normalize([]RawDetection{{Label: "ghost", Confidence: 0.9}}, 640, 480, 1, "ts")
	if len(records) != 0 {
		t.Errorf("Expected boxless maskless detection dropped, got %d records", len(records))
	}
}

func TestMaskBounds_Empty(t *testing.T) {
	m := &Mask{Width: 3, Height: 3, Bits: make([]uint8, 9)}
	if _, _, _, _, ok := m.Bounds(); ok {
		t.Error("Expected no bounds for empty mask")
	}
	if m.Area() != 0 {
		t.Errorf("Expected area 0, got %d", m.Area())
	}
}
