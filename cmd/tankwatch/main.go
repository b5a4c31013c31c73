// Tankwatch Core - fuel tank level capture and trend service
//
// This is the main entry point for the Tankwatch Core application.
// Tankwatch reads tank levels from a PI Vision display on a schedule,
// keeps a rolling reading history in SQLite and serves levels with trends
// to dashboards, MQTT consumers and the email digest.
//
// Usage:
//
//	tankwatch [-config path]                 run the service
//	tankwatch -capture-once                  run one capture cycle and exit
//	tankwatch -issue-token alice -role operator
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	_ "github.com/tankwatch/tankwatch-core/migrations"

	"github.com/tankwatch/tankwatch-core/internal/api"
	"github.com/tankwatch/tankwatch-core/internal/auth"
	"github.com/tankwatch/tankwatch-core/internal/capture"
	"github.com/tankwatch/tankwatch-core/internal/catalog"
	"github.com/tankwatch/tankwatch-core/internal/fanout"
	"github.com/tankwatch/tankwatch-core/internal/infrastructure/config"
	"github.com/tankwatch/tankwatch-core/internal/infrastructure/database"
	"github.com/tankwatch/tankwatch-core/internal/infrastructure/influxdb"
	"github.com/tankwatch/tankwatch-core/internal/infrastructure/logging"
	"github.com/tankwatch/tankwatch-core/internal/infrastructure/metrics"
	"github.com/tankwatch/tankwatch-core/internal/infrastructure/mqtt"
	"github.com/tankwatch/tankwatch-core/internal/reading"
	"github.com/tankwatch/tankwatch-core/internal/report"
	"github.com/tankwatch/tankwatch-core/internal/scheduler"
	"github.com/tankwatch/tankwatch-core/internal/trend"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

// Scheduler job names.
const (
	captureJob = "capture"
	reportJob  = "report"
)

// options are the command line flags.
type options struct {
	configPath  string
	captureOnce bool
	issueToken  string
	role        string
}

func main() {
	var opts options
	flag.StringVar(&opts.configPath, "config", "", "path to the YAML configuration (default $TANKWATCH_CONFIG or "+defaultConfigPath+")")
	flag.BoolVar(&opts.captureOnce, "capture-once", false, "run a single capture cycle and exit")
	flag.StringVar(&opts.issueToken, "issue-token", "", "print an API token for the given subject and exit")
	flag.StringVar(&opts.role, "role", string(auth.RoleOperator), "role of the token minted by -issue-token (viewer or operator)")
	flag.Parse()

	if opts.issueToken != "" {
		if err := issueToken(os.Stdout, opts); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	// Cancel on Ctrl+C and SIGTERM for graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, opts); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
// Returning an error allows main to handle exit codes consistently.
//
// Parameters:
//   - ctx: Context for cancellation and shutdown signals
//   - opts: Parsed command line flags
//
// Returns:
//   - error: nil on clean shutdown, or error describing failure
func run(ctx context.Context, opts options) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting Tankwatch Core",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	configPath := getConfigPath(opts.configPath)
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
		"site", cfg.Site.ID,
	)

	cat, err := catalog.FromConfig(cfg.Catalog)
	if err != nil {
		return fmt.Errorf("loading catalog: %w", err)
	}
	log.Info("catalog loaded", "points", cat.Len(), "sites", cat.Sites())

	db, err := database.Open(ctx, database.FromConfig(cfg.Database))
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		log.Info("closing database")
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()
	log.Info("database connected", "path", cfg.Database.Path)

	if migrateErr := db.Migrate(ctx); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database migrations complete")

	store := reading.NewSQLiteStore(db.DB)
	history := capture.NewSQLiteHistory(db.DB)
	artifacts := capture.NewArtifactStore(cfg.Capture.ArtifactPath)

	engine := trend.NewEngine(store, cat, trend.Options{
		Lookback:  cfg.Trend.Lookback,
		SeriesCap: cfg.Trend.SeriesCap,
		Frame: trend.Frame{
			Width:   cfg.Trend.Sparkline.Width,
			Height:  cfg.Trend.Sparkline.Height,
			Padding: cfg.Trend.Sparkline.Padding,
		},
	})

	if opts.captureOnce {
		return captureOnce(ctx, cfg, cat, store, history, artifacts, log)
	}

	m := metrics.New()

	mqttClient, err := connectMQTT(cfg, log)
	if err != nil {
		return err
	}
	if mqttClient != nil {
		defer func() {
			log.Info("disconnecting from MQTT")
			if closeErr := mqttClient.Close(); closeErr != nil {
				log.Error("error closing MQTT", "error", closeErr)
			}
		}()
	}

	influxClient, err := connectInfluxDB(cfg, log)
	if err != nil {
		return err
	}
	if influxClient != nil {
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
	}

	hub := api.NewHub(log.Component("websocket"))

	fan, err := fanout.New(fanoutDeps(engine, mqttClient, influxClient, m, hub, log))
	if err != nil {
		return fmt.Errorf("creating fan-out: %w", err)
	}

	session, err := capture.NewSession(sessionConfig(cfg), capture.Deps{
		Catalog:   cat,
		Launcher:  capture.NewChromeLauncher(chromeOptions(cfg.Browser)),
		Store:     store,
		Artifacts: artifacts,
		History:   history,
		Observers: []capture.Observer{fan},
		Logger:    log,
		Location:  cfg.Location(),
	})
	if err != nil {
		return fmt.Errorf("creating capture session: %w", err)
	}

	sched := scheduler.New(cfg.Location(), log, scheduler.Hooks{
		Dropped:  m.TriggerDropped,
		Finished: m.JobFinished,
	})
	if err := sched.Add(captureJob, cfg.Capture.Schedule, cfg.Capture.RunOnStart, func(ctx context.Context) error {
		_, err := session.Run(ctx)
		return err
	}); err != nil {
		return fmt.Errorf("scheduling capture: %w", err)
	}

	composeOpts := report.ComposeOptions{
		Title:        cfg.Report.Title,
		DashboardURL: cfg.Report.DashboardURL,
		Location:     cfg.Location(),
	}
	if cfg.Report.Enabled {
		mailer := report.NewBrevoMailer(cfg.Report.Mail)
		if mailErr := mailer.Configured(); mailErr != nil {
			log.Warn("digest mail not configured, report job will skip sending", "error", mailErr)
		}
		job := report.NewJob(engine, mailer, cfg.Report.Window, composeOpts, log)
		job.OnResult = m.ReportFinished
		if err := sched.Add(reportJob, cfg.Report.Schedule, cfg.Report.RunOnStart, job.Run); err != nil {
			return fmt.Errorf("scheduling report: %w", err)
		}
	} else {
		log.Info("email digest disabled")
	}

	if mqttClient != nil {
		if err := subscribeCaptureCommand(mqttClient, sched, log); err != nil {
			return err
		}
	}

	health := map[string]api.HealthChecker{"database": db}
	if mqttClient != nil {
		health["mqtt"] = mqttClient
	}
	if influxClient != nil {
		health["influxdb"] = influxClient
	}

	server, err := api.New(api.Deps{
		Config:     cfg.API,
		WS:         cfg.WebSocket,
		Security:   cfg.Security,
		Logger:     log,
		Levels:     engine,
		Catalog:    cat,
		History:    history,
		Artifacts:  artifacts,
		Jobs:       sched,
		CaptureJob: captureJob,
		Report:     composeOpts,
		Metrics:    m,
		Health:     health,
		Hub:        hub,
		Version:    version,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}

	if err := db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("health check failed: database: %w", err)
	}

	if err := server.Start(ctx); err != nil {
		return fmt.Errorf("starting API server: %w", err)
	}
	defer func() {
		if closeErr := server.Close(); closeErr != nil {
			log.Error("error closing API server", "error", closeErr)
		}
	}()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		hub.Run(gctx)
		return nil
	})
	g.Go(func() error {
		return sched.Run(gctx)
	})
	log.Info("initialisation complete, waiting for shutdown signal")

	if err := g.Wait(); err != nil {
		return err
	}

	// Deferred Close() calls run in reverse order:
	// API server, InfluxDB, MQTT, database.
	log.Info("Tankwatch Core stopped")
	return nil
}

// getConfigPath returns the configuration file path. The flag wins over
// TANKWATCH_CONFIG, which wins over the default.
func getConfigPath(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if path := os.Getenv("TANKWATCH_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// sessionConfig maps configuration onto the capture session.
func sessionConfig(cfg *config.Config) capture.Config {
	creds := make([]capture.Credential, 0, len(cfg.Source.Credentials))
	for _, c := range cfg.Source.Credentials {
		creds = append(creds, capture.Credential{Username: c.Username, Password: c.Password})
	}
	return capture.Config{
		Target: capture.Target{
			BaseURL:     cfg.Source.BaseURL,
			DisplayID:   cfg.Source.Display.ID,
			DisplayName: cfg.Source.Display.Name,
			Params:      cfg.Source.Display.Params,
		},
		Credentials: creds,
		SettleDelay: cfg.Source.SettleDelay,
		Navigation: capture.RetryPolicy{
			Attempts: cfg.Source.Navigation.Attempts,
			Timeout:  cfg.Source.Navigation.Timeout,
			Delay:    cfg.Source.Navigation.Delay,
		},
		RenderTimeout:   cfg.Source.RenderTimeout,
		PostRenderDelay: cfg.Source.PostRenderDelay,
		ExtractTimeout:  cfg.Source.ExtractTimeout,
		Retention:       cfg.Capture.Retention,
	}
}

// chromeOptions maps browser configuration onto the launcher.
func chromeOptions(b config.BrowserConfig) capture.ChromeOptions {
	return capture.ChromeOptions{
		RemoteURL:    b.RemoteURL,
		ExecPath:     b.ExecPath,
		Headless:     b.Headless,
		NoSandbox:    b.NoSandbox,
		WindowWidth:  b.WindowWidth,
		WindowHeight: b.WindowHeight,
		UserAgent:    b.UserAgent,
	}
}

// fanoutDeps assembles the fan-out sinks. Nil clients stay nil interfaces
// so the fan-out skips them.
func fanoutDeps(levels fanout.LevelSource, mqttClient *mqtt.Client, influxClient *influxdb.Client, m *metrics.Metrics, hub *api.Hub, log *logging.Logger) fanout.Deps {
	deps := fanout.Deps{
		Levels:  levels,
		Metrics: m,
		Hub:     hub,
		Logger:  log,
	}
	if mqttClient != nil {
		deps.MQTT = mqttClient
	}
	if influxClient != nil {
		deps.Influx = influxClient
	}
	return deps
}

// connectMQTT connects to the broker when enabled. It returns a nil client
// when MQTT is disabled.
func connectMQTT(cfg *config.Config, log *logging.Logger) (*mqtt.Client, error) {
	if !cfg.MQTT.Enabled {
		log.Info("MQTT disabled")
		return nil, nil
	}

	client, err := mqtt.Connect(cfg.MQTT)
	if err != nil {
		return nil, fmt.Errorf("connecting to MQTT: %w", err)
	}
	client.SetLogger(log.Component("mqtt"))
	client.SetOnConnect(func() {
		log.Info("MQTT reconnected")
	})
	client.SetOnDisconnect(func(err error) {
		log.Warn("MQTT disconnected", "error", err)
	})

	log.Info("MQTT connected",
		"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
		"client_id", cfg.MQTT.Broker.ClientID,
		"prefix", client.Topics().Prefix(),
	)
	return client, nil
}

// connectInfluxDB connects to InfluxDB when enabled. It returns a nil
// client when InfluxDB is disabled.
func connectInfluxDB(cfg *config.Config, log *logging.Logger) (*influxdb.Client, error) {
	client, err := influxdb.Connect(cfg.InfluxDB)
	if errors.Is(err, influxdb.ErrDisabled) {
		log.Info("InfluxDB disabled")
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("connecting to InfluxDB: %w", err)
	}

	client.SetOnError(func(err error) {
		log.Error("InfluxDB write error", "error", err)
	})
	log.Info("InfluxDB connected",
		"url", cfg.InfluxDB.URL,
		"org", cfg.InfluxDB.Org,
		"bucket", cfg.InfluxDB.Bucket,
	)
	return client, nil
}

// jobTrigger starts a scheduled job by name.
type jobTrigger interface {
	Trigger(name string) error
}

// commandSubscriber is the part of the MQTT client used for commands.
type commandSubscriber interface {
	Topics() mqtt.Topics
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
}

// subscribeCaptureCommand starts a capture whenever a message arrives on the
// capture command topic. The payload is ignored.
func subscribeCaptureCommand(client commandSubscriber, jobs jobTrigger, log *logging.Logger) error {
	topic := client.Topics().CaptureCommand()
	err := client.Subscribe(topic, 1, captureCommandHandler(jobs, log))
	if err != nil {
		return fmt.Errorf("subscribing to %s: %w", topic, err)
	}
	log.Info("listening for capture commands", "topic", topic)
	return nil
}

func captureCommandHandler(jobs jobTrigger, log *logging.Logger) mqtt.MessageHandler {
	return func(topic string, _ []byte) error {
		err := jobs.Trigger(captureJob)
		switch {
		case err == nil:
			log.Info("capture requested over MQTT", "topic", topic)
			return nil
		case errors.Is(err, scheduler.ErrJobBusy):
			log.Info("capture command ignored, cycle already running", "topic", topic)
			return nil
		default:
			return fmt.Errorf("triggering capture: %w", err)
		}
	}
}

// captureOnce runs a single cycle with no schedule, API or sinks, for
// checking credentials and selectors from a shell.
func captureOnce(ctx context.Context, cfg *config.Config, cat *catalog.Catalog, store reading.Store, history capture.History, artifacts *capture.ArtifactStore, log *logging.Logger) error {
	session, err := capture.NewSession(sessionConfig(cfg), capture.Deps{
		Catalog:   cat,
		Launcher:  capture.NewChromeLauncher(chromeOptions(cfg.Browser)),
		Store:     store,
		Artifacts: artifacts,
		History:   history,
		Logger:    log,
		Location:  cfg.Location(),
	})
	if err != nil {
		return fmt.Errorf("creating capture session: %w", err)
	}

	start := time.Now()
	res, err := session.Run(ctx)
	if err != nil {
		if res != nil {
			return fmt.Errorf("capture cycle %s: %w", res.CycleID, err)
		}
		return fmt.Errorf("capture cycle: %w", err)
	}
	log.Info("capture complete",
		"cycle_id", res.CycleID,
		"readings", len(res.Readings),
		"failed", res.Failed,
		"trimmed", res.Trimmed,
		"duration", time.Since(start),
	)
	return nil
}

// issueToken prints a signed API token. It needs only the JWT secret, so
// the rest of the configuration is still loaded and validated.
func issueToken(w io.Writer, opts options) error {
	cfg, err := config.Load(getConfigPath(opts.configPath))
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if cfg.Security.JWT.Secret == "" {
		return errors.New("security.jwt.secret is not set (TANKWATCH_JWT_SECRET)")
	}
	token, err := auth.IssueToken(opts.issueToken, auth.Role(opts.role), cfg.Security.JWT.Secret, cfg.TokenTTL())
	if err != nil {
		return fmt.Errorf("issuing token: %w", err)
	}
	_, err = fmt.Fprintln(w, token)
	return err
}
