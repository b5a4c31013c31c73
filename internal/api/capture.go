package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/tankwatch/tankwatch-core/internal/capture"
	"github.com/tankwatch/tankwatch-core/internal/scheduler"
)

// handleTriggerCapture asks the scheduler to run the capture job now. The
// request returns as soon as the cycle is started; its outcome arrives on
// the capture.finished WebSocket event and in /cycles.
func (s *Server) handleTriggerCapture(w http.ResponseWriter, r *http.Request) {
	if s.jobs == nil || s.captureJob == "" {
		writeUnavailable(w, "capture scheduling is not running")
		return
	}

	subject := ""
	if c, ok := claimsFromContext(r.Context()); ok {
		subject = c.Subject
	}

	err := s.jobs.Trigger(s.captureJob)
	switch {
	case err == nil:
		s.logger.Info("manual capture requested", "subject", subject,
			"request_id", r.Context().Value(ctxKeyRequestID))
		writeJSON(w, http.StatusAccepted, map[string]any{
			"status": "started",
			"job":    s.captureJob,
		})
	case errors.Is(err, scheduler.ErrJobBusy):
		writeConflict(w, "a capture cycle is already running")
	case errors.Is(err, scheduler.ErrNotRunning):
		writeUnavailable(w, "scheduler is not running")
	default:
		s.logger.Error("triggering capture", "error", err)
		writeInternalError(w, "failed to start capture")
	}
}

// handleListCycles returns recent capture cycles, newest first.
func (s *Server) handleListCycles(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeUnavailable(w, "cycle history is not available")
		return
	}

	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeBadRequest(w, "limit must be a positive integer")
			return
		}
		limit = n
	}

	cycles, err := s.history.Recent(r.Context(), limit)
	if err != nil {
		s.logger.Error("listing cycles", "error", err)
		writeInternalError(w, "failed to list cycles")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"cycles": cycles,
		"count":  len(cycles),
	})
}

// handleListJobs returns the state of every scheduled job.
func (s *Server) handleListJobs(w http.ResponseWriter, _ *http.Request) {
	jobs := []scheduler.JobStatus{}
	if s.jobs != nil {
		jobs = s.jobs.Status()
	}
	writeJSON(w, http.StatusOK, map[string]any{"jobs": jobs})
}

// handleScreenshot serves the most recent diagnostic screenshot.
func (s *Server) handleScreenshot(w http.ResponseWriter, _ *http.Request) {
	if s.artifacts == nil {
		writeNotFound(w, "no screenshot available")
		return
	}

	data, meta, err := s.artifacts.Read()
	if errors.Is(err, capture.ErrNoArtifact) {
		writeNotFound(w, "no screenshot available")
		return
	}
	if err != nil {
		s.logger.Error("reading screenshot", "error", err)
		writeInternalError(w, "failed to read screenshot")
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("X-Screenshot-Kind", string(meta.Kind))
	if meta.CycleID != "" {
		w.Header().Set("X-Cycle-ID", meta.CycleID)
	}
	if !meta.TakenAt.IsZero() {
		w.Header().Set("Last-Modified", meta.TakenAt.UTC().Format(http.TimeFormat))
		w.Header().Set("X-Taken-At", meta.TakenAt.UTC().Format(time.RFC3339))
	}
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	w.Write(data) //nolint:errcheck // Best-effort write to response
}
