package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/constellation-edge/overwatch/internal/journal"
	"github.com/constellation-edge/overwatch/internal/tracking"
)

// App carries the live tracking state the status endpoints read. The frame
// loop owns the writes; every read here goes through the store's own locking.
type App struct {
	Store      *tracking.Store
	Reconciler *tracking.Reconciler
	Journal    *journal.Journal
	Hub        *Hub
	EntityID   string
	ModelName  string
	MinFrames  int
	StartedAt  time.Time
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, "Error encoding response", http.StatusInternalServerError)
	}
}

func (app *App) HealthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":         "ok",
		"entity_id":      app.EntityID,
		"model":          app.ModelName,
		"uptime_seconds": int(time.Since(app.StartedAt).Seconds()),
	})
}

func (app *App) AnalyticsHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, app.Store.Analytics())
}

// ObjectsHandler returns the persistent-object set. The min_frames query
// parameter overrides the configured persistence gate for ad-hoc inspection.
func (app *App) ObjectsHandler(w http.ResponseWriter, r *http.Request) {
	minFrames := app.MinFrames
	if v := r.URL.Query().Get("min_frames"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			http.Error(w, "min_frames must be a positive integer", http.StatusBadRequest)
			return
		}
		minFrames = n
	}

	objects := app.Store.GetPersistentObjects(minFrames)
	writeJSON(w, http.StatusOK, map[string]any{
		"min_frames": minFrames,
		"count":      len(objects),
		"objects":    objects,
	})
}

func (app *App) ObjectHandler(w http.ResponseWriter, r *http.Request) {
	trackID := chi.URLParam(r, "trackID")
	obj, ok := app.Store.Get(trackID)
	if !ok {
		http.Error(w, "Unknown track ID", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, obj)
}

// AlertsHandler serves the journaled alert history when a journal is
// attached, falling back to the in-memory ring otherwise.
func (app *App) AlertsHandler(w http.ResponseWriter, r *http.Request) {
	if app.Journal != nil {
		alerts, err := app.Journal.Alerts(r.Context())
		if err != nil {
			http.Error(w, "Error reading alert journal", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"total":  app.Store.AlertsTotal(),
			"alerts": alerts,
		})
		return
	}

	analytics := app.Store.Analytics()
	writeJSON(w, http.StatusOK, map[string]any{
		"total":  app.Store.AlertsTotal(),
		"alerts": analytics.ThreatAlerts,
	})
}

func (app *App) MappingsHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, app.Reconciler.Stats())
}
