package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

func NewRouter(app *App) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", app.HealthHandler)
	r.Get("/api/analytics", app.AnalyticsHandler)
	r.Get("/api/objects", app.ObjectsHandler)
	r.Get("/api/objects/{trackID}", app.ObjectHandler)
	r.Get("/api/alerts", app.AlertsHandler)
	r.Get("/api/mappings", app.MappingsHandler)

	if app.Hub != nil {
		r.Get("/ws", app.Hub.serveWS)
	}

	return r
}
