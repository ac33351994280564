package threat

// Tier is an ordered threat severity level assigned to a detection label.
type Tier string

const (
	TierHigh   Tier = "HIGH_THREAT"
	TierMedium Tier = "MEDIUM_THREAT"
	TierLow    Tier = "LOW_THREAT"
	TierNormal Tier = "NORMAL"
)

// Category describes one threat tier: its member labels, display color,
// priority order (1 = most severe) and operator-facing alert level.
type Category struct {
	Tier       Tier
	Labels     []string
	Color      [3]uint8 // RGB
	Priority   int
	AlertLevel string
}

// DefaultCategories is the C4ISR classification table. Label membership is
// flattened into a lookup at Classifier construction time.
var DefaultCategories = []Category{
	{
		Tier:       TierHigh,
		Labels:     []string{"weapon", "knife", "gun", "rifle", "pistol", "explosive", "bomb"},
		Color:      [3]uint8{255, 0, 0},
		Priority:   1,
		AlertLevel: "CRITICAL",
	},
	{
		Tier: TierMedium,
		Labels: []string{
			"suspicious package", "unattended bag", "backpack", "suitcase",
			"unauthorized vehicle", "truck", "van",
		},
		Color:      [3]uint8{255, 165, 0},
		Priority:   2,
		AlertLevel: "WARNING",
	},
	{
		Tier:       TierLow,
		Labels:     []string{"person", "car", "bicycle", "motorcycle", "dog"},
		Color:      [3]uint8{255, 255, 0},
		Priority:   3,
		AlertLevel: "MONITOR",
	},
	{
		Tier:       TierNormal,
		Labels:     []string{"traffic light", "stop sign", "bench", "bird", "cat"},
		Color:      [3]uint8{0, 255, 0},
		Priority:   4,
		AlertLevel: "NORMAL",
	},
}

// Classifier maps detection labels to threat tiers. The lookup table is built
// once from DefaultCategories; custom labels can be registered afterwards.
// Unknown labels classify as TierNormal.
type Classifier struct {
	labelTier map[string]Tier
	labels    []string
}

// NewClassifier builds a classifier from the default classification table.
func NewClassifier() *Classifier {
	c := &Classifier{labelTier: make(map[string]Tier)}
	for _, cat := range DefaultCategories {
		for _, label := range cat.Labels {
			c.labels = append(c.labels, label)
			c.labelTier[label] = cat.Tier
		}
	}
	return c
}

// Classify returns the threat tier for a label.
func (c *Classifier) Classify(label string) Tier {
	if tier, ok := c.labelTier[label]; ok {
		return tier
	}
	return TierNormal
}

// RegisterCustomLabel adds a label to the lookup table if it is not already
// present. Custom labels without an explicit tier default to TierMedium.
func (c *Classifier) RegisterCustomLabel(label string, tier Tier) {
	if _, ok := c.labelTier[label]; ok {
		return
	}
	if tier == "" {
		tier = TierMedium
	}
	c.labels = append(c.labels, label)
	c.labelTier[label] = tier
}

// Labels returns all known labels in registration order, suitable for
// configuring open-vocabulary detector prompts.
func (c *Classifier) Labels() []string {
	out := make([]string, len(c.labels))
	copy(out, c.labels)
	return out
}

// CategoryFor returns the category definition for a tier. Unknown tiers fall
// back to the NORMAL category.
func CategoryFor(tier Tier) Category {
	for _, cat := range DefaultCategories {
		if cat.Tier == tier {
			return cat
		}
	}
	return DefaultCategories[len(DefaultCategories)-1]
}

// SuspiciousIndicators evaluates the threat assessment rules for one
// observation. The conditions are mutually exclusive and evaluated in order,
// so at most one indicator fires per call.
func SuspiciousIndicators(confidence float64, tier Tier) []string {
	switch {
	case tier == TierHigh && confidence > 0.7:
		return []string{"high_confidence_weapon_detection"}
	case tier == TierMedium && confidence > 0.5:
		return []string{"suspicious_object_detected"}
	case tier == TierHigh && confidence < 0.5:
		return []string{"uncertain_threat_requires_validation"}
	}
	return nil
}
