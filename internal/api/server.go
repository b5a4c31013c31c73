package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/tankwatch/tankwatch-core/internal/capture"
	"github.com/tankwatch/tankwatch-core/internal/catalog"
	"github.com/tankwatch/tankwatch-core/internal/infrastructure/config"
	"github.com/tankwatch/tankwatch-core/internal/infrastructure/logging"
	"github.com/tankwatch/tankwatch-core/internal/infrastructure/metrics"
	"github.com/tankwatch/tankwatch-core/internal/report"
	"github.com/tankwatch/tankwatch-core/internal/scheduler"
	"github.com/tankwatch/tankwatch-core/internal/trend"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// LevelService answers the renderer queries. trend.Engine implements it.
type LevelService interface {
	LatestWithTrend(ctx context.Context) ([]trend.PointStatus, error)
	SummaryForReport(ctx context.Context, window time.Duration) (*trend.Report, error)
}

// JobRunner triggers and reports on scheduled jobs. scheduler.Scheduler
// implements it.
type JobRunner interface {
	Trigger(name string) error
	Status() []scheduler.JobStatus
}

// HealthChecker is any component that can report its health.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config   config.APIConfig
	WS       config.WebSocketConfig
	Security config.SecurityConfig
	Logger   *logging.Logger

	Levels    LevelService
	Catalog   *catalog.Catalog
	History   capture.History
	Artifacts *capture.ArtifactStore

	// Jobs and CaptureJob back POST /capture and GET /jobs. Optional.
	Jobs       JobRunner
	CaptureJob string

	// Report holds the digest layout used by the report preview.
	Report report.ComposeOptions

	// Metrics, when set, is served on /metrics and counts requests.
	Metrics *metrics.Metrics

	// Health lists optional components checked by /health, by name.
	Health map[string]HealthChecker

	// Hub, if set, is used instead of creating one. The fan-out observer
	// needs the same hub to broadcast cycle events.
	Hub *Hub

	Version string
}

// Server is the HTTP API server for Tankwatch Core.
//
// It manages the HTTP listener, routes, middleware, and WebSocket hub.
// The server is created with New() and started with Start().
type Server struct {
	cfg        config.APIConfig
	wsCfg      config.WebSocketConfig
	secCfg     config.SecurityConfig
	logger     *logging.Logger
	levels     LevelService
	catalog    *catalog.Catalog
	history    capture.History
	artifacts  *capture.ArtifactStore
	jobs       JobRunner
	captureJob string
	reportOpts report.ComposeOptions
	metrics    *metrics.Metrics
	health     map[string]HealthChecker
	version    string
	startTime  time.Time

	server      *http.Server
	hub         *Hub
	externalHub bool
	tickets     *ticketStore
	cancel      context.CancelFunc // cancels background goroutines on Close()
}

// New creates a new API server with the given dependencies.
//
// The server is not started until Start() is called.
//
// Parameters:
//   - deps: Required dependencies (logger, level service, catalog)
//
// Returns:
//   - *Server: Configured server ready to start
//   - error: If required dependencies are missing
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Levels == nil {
		return nil, fmt.Errorf("level service is required")
	}
	if deps.Catalog == nil {
		return nil, fmt.Errorf("catalog is required")
	}
	if deps.Config.RequireToken && deps.Security.JWT.Secret == "" {
		return nil, fmt.Errorf("require_token needs a jwt secret")
	}

	s := &Server{
		cfg:        deps.Config,
		wsCfg:      deps.WS,
		secCfg:     deps.Security,
		logger:     deps.Logger.Component("api"),
		levels:     deps.Levels,
		catalog:    deps.Catalog,
		history:    deps.History,
		artifacts:  deps.Artifacts,
		jobs:       deps.Jobs,
		captureJob: deps.CaptureJob,
		reportOpts: deps.Report,
		metrics:    deps.Metrics,
		health:     deps.Health,
		version:    deps.Version,
		startTime:  time.Now(),
		tickets:    newTicketStore(),
	}

	if deps.Hub != nil {
		s.hub = deps.Hub
		s.externalHub = true
	}

	return s, nil
}

// Hub returns the WebSocket hub, creating it if Start has not run yet.
func (s *Server) Hub() *Hub {
	if s.hub == nil {
		s.hub = NewHub(s.logger)
	}
	return s.hub
}

// Start begins listening for HTTP connections.
//
// It sets up the router, starts the WebSocket hub, and launches the HTTP
// listener in a background goroutine. The server can be stopped with Close().
//
// Parameters:
//   - ctx: Parent of the hub and ticket cleanup goroutines
//
// Returns:
//   - error: If the listen address cannot be bound
func (s *Server) Start(ctx context.Context) error {
	var srvCtx context.Context
	srvCtx, s.cancel = context.WithCancel(ctx)

	hub := s.Hub()
	if !s.externalHub {
		go hub.Run(srvCtx)
	}
	go s.cleanTicketsLoop(srvCtx)

	s.server = &http.Server{
		Addr:              net.JoinHostPort(s.cfg.Host, fmt.Sprint(s.cfg.Port)),
		Handler:           s.buildRouter(),
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	// Bind synchronously so a busy port fails startup.
	ln, err := net.Listen("tcp", s.server.Addr)
	if err != nil {
		s.cancel()
		return fmt.Errorf("listening on %s: %w", s.server.Addr, err)
	}
	s.logger.Info("API server listening", "address", ln.Addr().String())

	go func() {
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	return nil
}

// Close gracefully shuts down the API server.
//
// It waits up to 10 seconds for in-flight requests to complete,
// then forcefully closes remaining connections.
//
// Returns:
//   - error: If shutdown encounters an error
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}

	if s.cancel != nil {
		s.cancel()
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("API server shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}

// HealthCheck verifies the API server is running and responsive.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//
// Returns:
//   - error: nil if healthy, error describing the issue otherwise
func (s *Server) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("api health check: %w", ctx.Err())
	default:
	}

	if s.server == nil {
		return fmt.Errorf("api server not started")
	}

	return nil
}
