package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/tankwatch/tankwatch-core/internal/auth"
)

// healthCheckTimeout bounds each component check in /health.
const healthCheckTimeout = 2 * time.Second

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(s.bodySizeLimitMiddleware)
	if s.metrics != nil {
		r.Use(s.metricsMiddleware)
		r.Handle("/metrics", s.metrics.Handler())
	}

	r.Route("/api/v1", func(r chi.Router) {
		// Health check (no auth required)
		r.Get("/health", s.handleHealth)

		// Readers. Public unless api.require_token is set.
		r.Group(func(r chi.Router) {
			if s.cfg.RequireToken {
				r.Use(s.requirePermission(auth.PermLevelsRead))
			}
			r.Get("/points", s.handleListPoints)
			r.Get("/levels", s.handleLevels)
			r.Get("/report", s.handleReport)
			r.Get("/cycles", s.handleListCycles)
			r.Get("/jobs", s.handleListJobs)
			r.Post("/auth/ws-ticket", s.handleWSTicket)
		})

		// Operator actions
		r.Group(func(r chi.Router) {
			r.With(s.requirePermission(auth.PermCaptureTrigger)).Post("/capture", s.handleTriggerCapture)
			r.With(s.requirePermission(auth.PermDebugRead)).Get("/debug/screenshot", s.handleScreenshot)
		})

		// WebSocket (auth via ticket when tokens are required, validated in handler)
		r.Get("/ws", s.handleWebSocket)
	})

	return r
}

// healthResponse is the body of GET /health.
type healthResponse struct {
	Status        string            `json:"status"`
	Version       string            `json:"version"`
	UptimeSeconds int64             `json:"uptime_seconds"`
	Components    map[string]string `json:"components,omitempty"`
	LastCapture   *time.Time        `json:"last_capture,omitempty"`
	WSClients     int               `json:"ws_clients"`
}

// handleHealth reports the server and its dependencies. A failing
// component marks the status degraded; the response stays 200.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{
		Status:        "ok",
		Version:       s.version,
		UptimeSeconds: int64(time.Since(s.startTime).Seconds()),
		WSClients:     s.Hub().ClientCount(),
	}

	if len(s.health) > 0 {
		resp.Components = make(map[string]string, len(s.health))
		for name, c := range s.health {
			ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
			err := c.HealthCheck(ctx)
			cancel()
			if err != nil {
				resp.Components[name] = err.Error()
				resp.Status = "degraded"
				continue
			}
			resp.Components[name] = "ok"
		}
	}

	if s.history != nil {
		rec, ok, err := s.history.LastSuccess(r.Context())
		if err != nil {
			s.logger.Warn("reading last capture for health", "error", err)
		} else if ok {
			resp.LastCapture = &rec.FinishedAt
		}
	}

	writeJSON(w, http.StatusOK, resp)
}
