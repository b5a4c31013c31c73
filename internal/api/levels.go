package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/tankwatch/tankwatch-core/internal/report"
	"github.com/tankwatch/tankwatch-core/internal/trend"
)

// maxReportWindow bounds the ?window= parameter of the report endpoint.
const maxReportWindow = 7 * 24 * time.Hour

// handleListPoints returns the monitored point catalog.
func (s *Server) handleListPoints(w http.ResponseWriter, _ *http.Request) {
	points := s.catalog.Points()
	writeJSON(w, http.StatusOK, map[string]any{
		"points": points,
		"sites":  s.catalog.Sites(),
		"count":  len(points),
	})
}

// levelsResponse is the body of GET /levels.
type levelsResponse struct {
	Points []trend.PointStatus `json:"points"`
	Count  int                 `json:"count"`
}

// handleLevels returns every point with its latest reading and trend.
func (s *Server) handleLevels(w http.ResponseWriter, r *http.Request) {
	points, err := s.levels.LatestWithTrend(r.Context())
	if err != nil {
		s.logger.Error("loading levels", "error", err, "request_id", r.Context().Value(ctxKeyRequestID))
		writeInternalError(w, "failed to load levels")
		return
	}
	if site := r.URL.Query().Get("site"); site != "" {
		points = filterSite(points, site)
	}
	writeJSON(w, http.StatusOK, levelsResponse{Points: points, Count: len(points)})
}

// handleReport returns the digest view over ?window= (default: the report
// window). ?format=text or ?format=html renders the digest exactly as it
// would be mailed.
func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	window, err := parseWindow(r.URL.Query().Get("window"))
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	rep, err := s.levels.SummaryForReport(r.Context(), window)
	if err != nil {
		s.logger.Error("building report", "error", err, "request_id", r.Context().Value(ctxKeyRequestID))
		writeInternalError(w, "failed to build report")
		return
	}

	format := r.URL.Query().Get("format")
	if format == "" || format == "json" {
		writeJSON(w, http.StatusOK, rep)
		return
	}

	opts := s.reportOpts
	opts.Now = time.Now()
	msg, err := report.Compose(rep, opts)
	if err != nil {
		s.logger.Error("composing report", "error", err)
		writeInternalError(w, "failed to compose report")
		return
	}

	switch format {
	case "text":
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Header().Set("X-Report-Subject", msg.Subject)
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(msg.Text)) //nolint:errcheck // Best-effort write to response
	case "html":
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("X-Report-Subject", msg.Subject)
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(msg.HTML)) //nolint:errcheck // Best-effort write to response
	default:
		writeBadRequest(w, fmt.Sprintf("unknown format %q (want json, text or html)", format))
	}
}

// parseWindow parses a report window. Empty means the service default.
func parseWindow(v string) (time.Duration, error) {
	if v == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid window %q", v)
	}
	if d <= 0 || d > maxReportWindow {
		return 0, fmt.Errorf("window must be between 0 and %s", maxReportWindow)
	}
	return d, nil
}

func filterSite(points []trend.PointStatus, site string) []trend.PointStatus {
	out := make([]trend.PointStatus, 0, len(points))
	for _, p := range points {
		if p.Site == site {
			out = append(out, p)
		}
	}
	return out
}
