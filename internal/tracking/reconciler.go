package tracking

import (
	"sync"

	"github.com/google/uuid"
)

// TrackKey identifies a detection in a back-end's own terms: the model that
// produced it plus whatever native identifier that model uses (an integer
// track ID, a "frame_idx" composite, or a synthesized per-frame value).
// Native IDs are carried as strings so heterogeneous back-ends share one map.
type TrackKey struct {
	ModelType string
	NativeID  string
}

// Reconciler maps model-specific native IDs onto globally unique, stable
// track IDs. A (modelType, nativeID) pair always resolves to the same track
// ID for the life of the session; the mapping is append-only except for
// explicit stale cleanup.
type Reconciler struct {
	mu      sync.Mutex
	mapping map[TrackKey]string
}

// MappingStats summarizes the reconciler's current map.
type MappingStats struct {
	TotalMappings int            `json:"total_mappings"`
	ByModel       map[string]int `json:"by_model"`
}

func NewReconciler() *Reconciler {
	return &Reconciler{mapping: make(map[TrackKey]string)}
}

// GetOrCreateTrackID returns the global track ID for a native ID, allocating
// a new collision-resistant ID on first sight.
func (r *Reconciler) GetOrCreateTrackID(nativeID, modelType string) string {
	key := TrackKey{ModelType: modelType, NativeID: nativeID}

	r.mu.Lock()
	defer r.mu.Unlock()

	if id, ok := r.mapping[key]; ok {
		return id
	}
	id := uuid.New().String()
	r.mapping[key] = id
	return id
}

// CleanupStale removes mappings whose track ID is not in the active set and
// returns the number of entries removed. This is the only mutation besides
// GetOrCreateTrackID; it is invoked by the frame loop, never automatically.
func (r *Reconciler) CleanupStale(activeTrackIDs map[string]struct{}) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	for key, id := range r.mapping {
		if _, ok := activeTrackIDs[id]; !ok {
			delete(r.mapping, key)
			removed++
		}
	}
	return removed
}

// Stats returns mapping counts, total and per model type.
func (r *Reconciler) Stats() MappingStats {
	r.mu.Lock()
	defer r.mu.Unlock()

	stats := MappingStats{
		TotalMappings: len(r.mapping),
		ByModel:       make(map[string]int),
	}
	for key := range r.mapping {
		stats.ByModel[key.ModelType]++
	}
	return stats
}
