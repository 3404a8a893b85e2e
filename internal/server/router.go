// Package server is the HTTP API consumed by the display layer.
package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"
	"github.com/rs/zerolog"

	"nithronos/nosdu/internal/httpx"
	"nithronos/nosdu/internal/jobs"
	"nithronos/nosdu/internal/metrics"
)

// Deps are the collaborators the router serves.
type Deps struct {
	Topology    *Topology
	Jobs        *jobs.Manager
	Metrics     *metrics.Metrics
	Logger      zerolog.Logger
	CORSOrigins []string
	Version     string
}

func NewRouter(d Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(zerologMiddleware(d.Logger.With().Str("component", "http").Logger()))
	r.Use(securityHeaders)

	if len(d.CORSOrigins) > 0 {
		c := cors.New(cors.Options{
			AllowedOrigins: d.CORSOrigins,
			AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
			AllowedHeaders: []string{"*"},
		})
		r.Use(c.Handler)
	}

	r.Get("/api/health", func(w http.ResponseWriter, r *http.Request) {
		httpx.WriteJSON(w, http.StatusOK, map[string]any{"ok": true, "version": d.Version})
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Mount("/drives", NewDrivesHandler(d.Topology).Routes())
		r.Mount("/crawls", NewCrawlsHandler(d.Jobs).Routes())
	})

	if d.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", d.Metrics.Handler())
	}

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		httpx.WriteError(w, http.StatusNotFound, "no such endpoint")
	})
	return r
}
