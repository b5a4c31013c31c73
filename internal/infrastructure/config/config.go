package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for Tankwatch Core.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Site      SiteConfig      `yaml:"site"`
	Database  DatabaseConfig  `yaml:"database"`
	Source    SourceConfig    `yaml:"source"`
	Browser   BrowserConfig   `yaml:"browser"`
	Capture   CaptureConfig   `yaml:"capture"`
	Trend     TrendConfig     `yaml:"trend"`
	Catalog   CatalogConfig   `yaml:"catalog"`
	Report    ReportConfig    `yaml:"report"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	API       APIConfig       `yaml:"api"`
	WebSocket WebSocketConfig `yaml:"websocket"`
	InfluxDB  InfluxDBConfig  `yaml:"influxdb"`
	Logging   LoggingConfig   `yaml:"logging"`
	Security  SecurityConfig  `yaml:"security"`
}

// SiteConfig contains site-specific information.
type SiteConfig struct {
	ID       string `yaml:"id"`
	Name     string `yaml:"name"`
	Timezone string `yaml:"timezone"`
	DataDir  string `yaml:"data_dir"`
}

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// SourceConfig describes the remote dashboard the readings are scraped from.
type SourceConfig struct {
	// BaseURL is the root of the visualisation web app (trailing slash kept).
	BaseURL string `yaml:"base_url"`

	// Display identifies the single view holding every monitored element.
	Display DisplayConfig `yaml:"display"`

	// Credentials are tried in order. Exactly two are expected: the
	// primary and the fallback set.
	Credentials []Credential `yaml:"credentials"`

	// SettleDelay is the pause after the authenticated base-URL load.
	SettleDelay time.Duration `yaml:"settle_delay"`

	// PostRenderDelay is the pause between render detection and extraction.
	PostRenderDelay time.Duration `yaml:"post_render_delay"`

	// RenderTimeout bounds the wait for the first element to appear.
	RenderTimeout time.Duration `yaml:"render_timeout"`

	// ExtractTimeout bounds each per-element read.
	ExtractTimeout time.Duration `yaml:"extract_timeout"`

	// Navigation is the bounded retry policy for reaching the display.
	Navigation RetryConfig `yaml:"navigation"`
}

// DisplayConfig identifies a display inside the visualisation app.
type DisplayConfig struct {
	ID     string `yaml:"id"`
	Name   string `yaml:"name"`
	Params string `yaml:"params"`
}

// Credential is one username/password pair for the remote UI.
type Credential struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// String hides the password so credentials can be logged safely.
func (c Credential) String() string {
	return c.Username + ":[redacted]"
}

// RetryConfig is a bounded retry policy.
type RetryConfig struct {
	Attempts int           `yaml:"attempts"`
	Timeout  time.Duration `yaml:"timeout"`
	Delay    time.Duration `yaml:"delay"`
}

// BrowserConfig controls the automated browser used for capture.
type BrowserConfig struct {
	// RemoteURL points at an already running DevTools endpoint
	// (ws://host:9222). When empty a local Chrome is launched.
	RemoteURL    string `yaml:"remote_url"`
	ExecPath     string `yaml:"exec_path"`
	Headless     bool   `yaml:"headless"`
	NoSandbox    bool   `yaml:"no_sandbox"`
	WindowWidth  int    `yaml:"window_width"`
	WindowHeight int    `yaml:"window_height"`
	UserAgent    string `yaml:"user_agent"`
}

// CaptureConfig contains capture cadence and retention settings.
type CaptureConfig struct {
	Schedule     string        `yaml:"schedule"`
	RunOnStart   bool          `yaml:"run_on_start"`
	Retention    time.Duration `yaml:"retention"`
	ArtifactPath string        `yaml:"artifact_path"`
}

// TrendConfig contains trend derivation settings.
type TrendConfig struct {
	Lookback  time.Duration   `yaml:"lookback"`
	SeriesCap int             `yaml:"series_cap"`
	Sparkline SparklineConfig `yaml:"sparkline"`
}

// SparklineConfig is the drawing frame for sparkline geometry.
type SparklineConfig struct {
	Width   float64 `yaml:"width"`
	Height  float64 `yaml:"height"`
	Padding float64 `yaml:"padding"`
}

// CatalogConfig locates the monitored point catalog. Inline points win
// over File when both are set.
type CatalogConfig struct {
	File   string        `yaml:"file"`
	Points []PointConfig `yaml:"points"`
}

// PointConfig is one monitored point as written in YAML.
type PointConfig struct {
	Tag      string  `yaml:"tag"`
	Label    string  `yaml:"label"`
	Capacity float64 `yaml:"capacity"`
	Site     string  `yaml:"site"`
}

// ReportConfig contains email digest settings.
type ReportConfig struct {
	Enabled bool `yaml:"enabled"`

	// Title prefixes the digest subject: "<title> levels - <date>".
	Title        string        `yaml:"title"`
	Schedule     string        `yaml:"schedule"`
	RunOnStart   bool          `yaml:"run_on_start"`
	Window       time.Duration `yaml:"window"`
	DashboardURL string        `yaml:"dashboard_url"`
	Mail         MailConfig    `yaml:"mail"`
}

// MailConfig contains transactional email API settings.
type MailConfig struct {
	Endpoint string        `yaml:"endpoint"`
	APIKey   string        `yaml:"api_key"`
	From     string        `yaml:"from"`
	FromName string        `yaml:"from_name"`
	To       []string      `yaml:"to"`
	Timeout  time.Duration `yaml:"timeout"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Enabled   bool                `yaml:"enabled"`
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	QoS       int                 `yaml:"qos"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`

	// TopicPrefix roots every topic, e.g. tankwatch/barranco.
	TopicPrefix string `yaml:"topic_prefix"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig contains MQTT reconnection settings.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
}

// APIConfig contains HTTP API server settings.
type APIConfig struct {
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
	CORS     CORSConfig       `yaml:"cors"`

	// RequireToken makes read endpoints demand a viewer token too.
	RequireToken bool `yaml:"require_token"`
}

// APITimeoutConfig contains HTTP timeout settings in seconds.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// CORSConfig contains Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// WebSocketConfig contains WebSocket server settings.
type WebSocketConfig struct {
	Path           string `yaml:"path"`
	MaxMessageSize int    `yaml:"max_message_size"`
	PingInterval   int    `yaml:"ping_interval"`
	PongTimeout    int    `yaml:"pong_timeout"`
}

// InfluxDBConfig contains InfluxDB connection settings.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// SecurityConfig contains security settings.
type SecurityConfig struct {
	JWT JWTConfig `yaml:"jwt"`
}

// JWTConfig contains operator token settings. An empty secret disables
// the operator-only endpoints.
type JWTConfig struct {
	Secret   string `yaml:"secret"`
	TokenTTL int    `yaml:"token_ttl"`
}

// minJWTSecretLength is the shortest accepted operator token secret.
const minJWTSecretLength = 32

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: TANKWATCH_SECTION_KEY
// For example: TANKWATCH_DATABASE_PATH, TANKWATCH_SOURCE_PASSWORD_1
//
// Parameters:
//   - path: Path to the YAML configuration file
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If file cannot be read, parsed, or validation fails
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a Config with the production dashboard defaults.
func defaultConfig() *Config {
	return &Config{
		Site: SiteConfig{
			ID:       "balance-combustible",
			Name:     "Tank levels",
			Timezone: "Atlantic/Canary",
			DataDir:  "./data",
		},
		Database: DatabaseConfig{
			Path:        "./data/tankwatch.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		Source: SourceConfig{
			BaseURL: "https://eworkerbrrc.endesa.es/PIVision/",
			Display: DisplayConfig{
				ID:     "88153",
				Name:   "Balance-Combustible-Bco",
				Params: "mode=kiosk&hidetoolbar&redirect=false",
			},
			SettleDelay:     5 * time.Second,
			PostRenderDelay: 5 * time.Second,
			RenderTimeout:   90 * time.Second,
			ExtractTimeout:  5 * time.Second,
			Navigation: RetryConfig{
				Attempts: 3,
				Timeout:  20 * time.Second,
				Delay:    2 * time.Second,
			},
		},
		Browser: BrowserConfig{
			Headless:     true,
			NoSandbox:    true,
			WindowWidth:  1920,
			WindowHeight: 1080,
			UserAgent:    "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36",
		},
		Capture: CaptureConfig{
			Schedule:     "0 0,15,30,45 * * * *",
			RunOnStart:   true,
			Retention:    48 * time.Hour,
			ArtifactPath: "./data/debug.png",
		},
		Trend: TrendConfig{
			Lookback:  24 * time.Hour,
			SeriesCap: 96,
			Sparkline: SparklineConfig{
				Width:   120,
				Height:  28,
				Padding: 2,
			},
		},
		Report: ReportConfig{
			Enabled:  true,
			Title:    "Fuel",
			Schedule: "0 5 4,12,18 * * *",
			Window:   24 * time.Hour,
			Mail: MailConfig{
				Endpoint: "https://api.brevo.com/v3/smtp/email",
				FromName: "Tank levels",
				Timeout:  20 * time.Second,
			},
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "tankwatch-core",
			},
			QoS:         1,
			TopicPrefix: "tankwatch",
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
		},
		API: APIConfig{
			Host: "0.0.0.0",
			Port: 8080,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
		},
		WebSocket: WebSocketConfig{
			Path:           "/ws",
			MaxMessageSize: 8192,
			PingInterval:   30,
			PongTimeout:    10,
		},
		InfluxDB: InfluxDBConfig{
			Bucket:        "tankwatch",
			BatchSize:     100,
			FlushInterval: 10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Security: SecurityConfig{
			JWT: JWTConfig{
				TokenTTL: 60,
			},
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: TANKWATCH_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("TANKWATCH_DATA_DIR"); v != "" {
		cfg.Site.DataDir = v
		cfg.Database.Path = v + "/tankwatch.db"
		cfg.Capture.ArtifactPath = v + "/debug.png"
	}
	if v := os.Getenv("TANKWATCH_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	// Source credentials never live in the file in production.
	for i := 0; i < 2; i++ {
		user := os.Getenv(fmt.Sprintf("TANKWATCH_SOURCE_USERNAME_%d", i+1))
		pass := os.Getenv(fmt.Sprintf("TANKWATCH_SOURCE_PASSWORD_%d", i+1))
		if user == "" && pass == "" {
			continue
		}
		for len(cfg.Source.Credentials) <= i {
			cfg.Source.Credentials = append(cfg.Source.Credentials, Credential{})
		}
		if user != "" {
			cfg.Source.Credentials[i].Username = user
		}
		if pass != "" {
			cfg.Source.Credentials[i].Password = pass
		}
	}
	if v := os.Getenv("TANKWATCH_SOURCE_BASE_URL"); v != "" {
		cfg.Source.BaseURL = v
	}
	if v := os.Getenv("TANKWATCH_BROWSER_REMOTE_URL"); v != "" {
		cfg.Browser.RemoteURL = v
	}

	// Mail
	if v := os.Getenv("TANKWATCH_MAIL_API_KEY"); v != "" {
		cfg.Report.Mail.APIKey = v
	}
	if v := os.Getenv("TANKWATCH_MAIL_FROM"); v != "" {
		cfg.Report.Mail.From = v
	}
	if v := os.Getenv("TANKWATCH_MAIL_FROM_NAME"); v != "" {
		cfg.Report.Mail.FromName = v
	}
	if v := os.Getenv("TANKWATCH_MAIL_TO"); v != "" {
		cfg.Report.Mail.To = splitList(v)
	}
	if v := os.Getenv("TANKWATCH_DASHBOARD_URL"); v != "" {
		cfg.Report.DashboardURL = v
	}

	// MQTT
	if v := os.Getenv("TANKWATCH_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("TANKWATCH_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("TANKWATCH_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// API
	if v := os.Getenv("TANKWATCH_API_HOST"); v != "" {
		cfg.API.Host = v
	}

	// InfluxDB
	if v := os.Getenv("TANKWATCH_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}

	if v := os.Getenv("TANKWATCH_JWT_SECRET"); v != "" {
		cfg.Security.JWT.Secret = v
	}
}

// splitList splits a comma separated env value, dropping blanks.
func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Validate checks the configuration for errors and security issues.
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	if c.Site.ID == "" {
		errs = append(errs, "site.id is required")
	}
	if _, err := time.LoadLocation(c.Site.Timezone); err != nil {
		errs = append(errs, fmt.Sprintf("site.timezone %q is not a known zone", c.Site.Timezone))
	}

	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}

	errs = append(errs, c.Source.validate()...)

	if c.Capture.Schedule == "" {
		errs = append(errs, "capture.schedule is required")
	}
	if c.Capture.Retention <= 0 {
		errs = append(errs, "capture.retention must be positive")
	}
	if c.Trend.Lookback <= 0 {
		errs = append(errs, "trend.lookback must be positive")
	}
	if c.Trend.SeriesCap < 2 {
		errs = append(errs, "trend.series_cap must be at least 2")
	}
	if c.Trend.Sparkline.Width <= 2*c.Trend.Sparkline.Padding || c.Trend.Sparkline.Height <= 2*c.Trend.Sparkline.Padding {
		errs = append(errs, "trend.sparkline must be larger than twice its padding")
	}

	if c.Catalog.File == "" && len(c.Catalog.Points) == 0 {
		errs = append(errs, "catalog.file or catalog.points is required")
	}

	if c.Report.Enabled && c.Report.Schedule == "" {
		errs = append(errs, "report.schedule is required when report.enabled is true")
	}

	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}
	if c.MQTT.Enabled && strings.Trim(c.MQTT.TopicPrefix, "/") == "" {
		errs = append(errs, "mqtt.topic_prefix is required when mqtt is enabled")
	}

	if c.API.Port < 1 || c.API.Port > 65535 {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	if c.InfluxDB.Enabled && c.InfluxDB.URL == "" {
		errs = append(errs, "influxdb.url is required when influxdb.enabled is true")
	}

	if c.API.RequireToken && c.Security.JWT.Secret == "" {
		errs = append(errs, "api.require_token needs security.jwt.secret")
	}

	// Operator endpoints stay disabled without a secret, but a short one is refused.
	if s := c.Security.JWT.Secret; s != "" && len(s) < minJWTSecretLength {
		errs = append(errs, "security.jwt.secret must be at least 32 characters")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

func (s SourceConfig) validate() []string {
	var errs []string

	u, err := url.Parse(s.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, "source.base_url must be an absolute URL")
	}
	if s.Display.ID == "" {
		errs = append(errs, "source.display.id is required")
	}
	if len(s.Credentials) != 2 {
		errs = append(errs, "source.credentials must hold exactly two entries (set TANKWATCH_SOURCE_USERNAME_1/2 and TANKWATCH_SOURCE_PASSWORD_1/2)")
	}
	for i, c := range s.Credentials {
		if c.Username == "" || c.Password == "" {
			errs = append(errs, fmt.Sprintf("source.credentials[%d] needs username and password", i))
		}
	}
	if s.Navigation.Attempts < 1 || s.Navigation.Attempts > 5 {
		errs = append(errs, "source.navigation.attempts must be between 1 and 5")
	}
	if s.Navigation.Timeout <= 0 {
		errs = append(errs, "source.navigation.timeout must be positive")
	}
	if s.RenderTimeout <= 0 || s.RenderTimeout > 5*time.Minute {
		errs = append(errs, "source.render_timeout must be positive and at most 5m")
	}
	if s.ExtractTimeout <= 0 {
		errs = append(errs, "source.extract_timeout must be positive")
	}

	return errs
}

// Location returns the site timezone. Validate guarantees it resolves.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Site.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// GetReadTimeout returns the API read timeout as a Duration.
func (c *Config) GetReadTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Read) * time.Second
}

// GetWriteTimeout returns the API write timeout as a Duration.
func (c *Config) GetWriteTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Write) * time.Second
}

// GetIdleTimeout returns the API idle timeout as a Duration.
func (c *Config) GetIdleTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Idle) * time.Second
}

// TokenTTL returns the operator token lifetime.
func (c *Config) TokenTTL() time.Duration {
	return time.Duration(c.Security.JWT.TokenTTL) * time.Minute
}
