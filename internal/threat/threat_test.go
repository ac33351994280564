package threat

import (
	"reflect"
	"testing"
)

func TestClassify(t *testing.T) {
	c := NewClassifier()

	tests := []struct {
		label string
		want  Tier
	}{
		{"weapon", TierHigh},
		{"knife", TierHigh},
		{"backpack", TierMedium},
		{"suspicious package", TierMedium},
		{"person", TierLow},
		{"car", TierLow},
		{"bench", TierNormal},
		{"unregistered_xyz", TierNormal},
		{"", TierNormal},
	}

	for _, tt := range tests {
		if got := c.Classify(tt.label); got != tt.want {
			t.Errorf("Classify(%q) = %s, want %s", tt.label, got, tt.want)
		}
	}
}

func TestRegisterCustomLabel(t *testing.T) {
	c := NewClassifier()

	c.RegisterCustomLabel("drone", "")
	if got := c.Classify("drone"); got != TierMedium {
		t.Errorf("Expected custom label to default to MEDIUM_THREAT, got %s", got)
	}

	c.RegisterCustomLabel("mortar", TierHigh)
	if got := c.Classify("mortar"); got != TierHigh {
		t.Errorf("Expected mortar to be HIGH_THREAT, got %s", got)
	}

	// Re-registering must not reclassify an existing label.
	c.RegisterCustomLabel("person", TierHigh)
	if got := c.Classify("person"); got != TierLow {
		t.Errorf("Expected person to stay LOW_THREAT after re-register, got %s", got)
	}

	labels := c.Labels()
	count := 0
	for _, l := range labels {
		if l == "drone" {
			count++
		}
	}
	if count != 1 {
		t.Errorf("Expected drone to appear once in labels, got %d", count)
	}
}

func TestSuspiciousIndicators(t *testing.T) {
	tests := []struct {
		name       string
		confidence float64
		tier       Tier
		want       []string
	}{
		{"high tier high confidence", 0.8, TierHigh, []string{"high_confidence_weapon_detection"}},
		{"high tier low confidence", 0.3, TierHigh, []string{"uncertain_threat_requires_validation"}},
		{"high tier mid confidence", 0.6, TierHigh, nil},
		{"medium tier above threshold", 0.6, TierMedium, []string{"suspicious_object_detected"}},
		{"medium tier below threshold", 0.4, TierMedium, nil},
		{"low tier", 0.99, TierLow, nil},
		{"normal tier", 0.99, TierNormal, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SuspiciousIndicators(tt.confidence, tt.tier)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("SuspiciousIndicators(%v, %s) = %v, want %v", tt.confidence, tt.tier, got, tt.want)
			}
			if len(got) > 1 {
				t.Errorf("Expected at most one indicator, got %d", len(got))
			}
		})
	}
}

func TestCategoryFor(t *testing.T) {
	if cat := CategoryFor(TierHigh); cat.Priority != 1 || cat.AlertLevel != "CRITICAL" {
		t.Errorf("Unexpected HIGH_THREAT category: %+v", cat)
	}
	if cat := CategoryFor("bogus"); cat.Tier != TierNormal {
		t.Errorf("Expected unknown tier to fall back to NORMAL, got %s", cat.Tier)
	}
}
