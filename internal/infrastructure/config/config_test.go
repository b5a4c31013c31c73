package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const validYAML = `
site:
  id: "test-site"
database:
  path: "/tmp/test.db"
source:
  base_url: "https://pi.example.com/PIVision/"
  credentials:
    - username: "first"
      password: "one"
    - username: "second"
      password: "two"
  render_timeout: 60s
catalog:
  points:
    - tag: '\PI-A\TANK1'
      label: "TANK 1"
      capacity: 18
      site: "North"
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return path
}

func TestLoad_ValidConfig(t *testing.T) {
	cfg, err := Load(writeConfig(t, validYAML))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Site.ID != "test-site" {
		t.Errorf("Site.ID = %q, want %q", cfg.Site.ID, "test-site")
	}
	if cfg.Database.Path != "/tmp/test.db" {
		t.Errorf("Database.Path = %q, want %q", cfg.Database.Path, "/tmp/test.db")
	}
	if cfg.Source.RenderTimeout != 60*time.Second {
		t.Errorf("Source.RenderTimeout = %v, want 60s", cfg.Source.RenderTimeout)
	}
	if got := cfg.Catalog.Points[0].Tag; got != `\PI-A\TANK1` {
		t.Errorf("Catalog.Points[0].Tag = %q", got)
	}

	// Defaults survive a partial file.
	if cfg.Capture.Retention != 48*time.Hour {
		t.Errorf("Capture.Retention = %v, want 48h", cfg.Capture.Retention)
	}
	if cfg.Trend.SeriesCap != 96 {
		t.Errorf("Trend.SeriesCap = %d, want 96", cfg.Trend.SeriesCap)
	}
	if cfg.Location().String() != "Atlantic/Canary" {
		t.Errorf("Location() = %v, want Atlantic/Canary", cfg.Location())
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("TANKWATCH_SOURCE_PASSWORD_1", "from-env")
	t.Setenv("TANKWATCH_MAIL_TO", "a@example.com, b@example.com,")
	t.Setenv("TANKWATCH_JWT_SECRET", strings.Repeat("s", 40))

	cfg, err := Load(writeConfig(t, validYAML))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Source.Credentials[0].Password != "from-env" {
		t.Errorf("Credentials[0].Password = %q, want from-env", cfg.Source.Credentials[0].Password)
	}
	if cfg.Source.Credentials[1].Password != "two" {
		t.Errorf("Credentials[1].Password = %q, want two", cfg.Source.Credentials[1].Password)
	}
	if len(cfg.Report.Mail.To) != 2 || cfg.Report.Mail.To[1] != "b@example.com" {
		t.Errorf("Report.Mail.To = %v", cfg.Report.Mail.To)
	}
	if cfg.Security.JWT.Secret == "" {
		t.Error("JWT secret override not applied")
	}
}

func TestLoad_CredentialsFromEnvOnly(t *testing.T) {
	content := strings.Replace(validYAML, `  credentials:
    - username: "first"
      password: "one"
    - username: "second"
      password: "two"
`, "", 1)
	t.Setenv("TANKWATCH_SOURCE_USERNAME_1", "u1")
	t.Setenv("TANKWATCH_SOURCE_PASSWORD_1", "p1")
	t.Setenv("TANKWATCH_SOURCE_USERNAME_2", "u2")
	t.Setenv("TANKWATCH_SOURCE_PASSWORD_2", "p2")

	cfg, err := Load(writeConfig(t, content))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(cfg.Source.Credentials) != 2 || cfg.Source.Credentials[1].Username != "u2" {
		t.Errorf("Credentials = %v", cfg.Source.Credentials)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	if err == nil {
		t.Error("Load() expected error for missing file, got nil")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	_, err := Load(writeConfig(t, "invalid: [yaml: content"))
	if err == nil {
		t.Error("Load() expected error for invalid YAML, got nil")
	}
}

func TestConfig_Validate(t *testing.T) {
	valid := func() *Config {
		cfg := defaultConfig()
		cfg.Source.Credentials = []Credential{{"a", "1"}, {"b", "2"}}
		cfg.Catalog.Points = []PointConfig{{Tag: "T", Label: "L", Capacity: 1}}
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "valid config", mutate: func(*Config) {}},
		{
			name:    "missing site id",
			mutate:  func(c *Config) { c.Site.ID = "" },
			wantErr: "site.id",
		},
		{
			name:    "unknown timezone",
			mutate:  func(c *Config) { c.Site.Timezone = "Mars/Olympus" },
			wantErr: "site.timezone",
		},
		{
			name:    "single credential",
			mutate:  func(c *Config) { c.Source.Credentials = c.Source.Credentials[:1] },
			wantErr: "exactly two",
		},
		{
			name:    "blank password",
			mutate:  func(c *Config) { c.Source.Credentials[1].Password = "" },
			wantErr: "credentials[1]",
		},
		{
			name:    "too many navigation attempts",
			mutate:  func(c *Config) { c.Source.Navigation.Attempts = 9 },
			wantErr: "navigation.attempts",
		},
		{
			name:    "relative base url",
			mutate:  func(c *Config) { c.Source.BaseURL = "/PIVision/" },
			wantErr: "base_url",
		},
		{
			name:    "no catalog",
			mutate:  func(c *Config) { c.Catalog.Points = nil },
			wantErr: "catalog",
		},
		{
			name:    "short jwt secret",
			mutate:  func(c *Config) { c.Security.JWT.Secret = "short" },
			wantErr: "32 characters",
		},
		{
			name:    "require token without secret",
			mutate:  func(c *Config) { c.API.RequireToken = true },
			wantErr: "require_token",
		},
		{
			name:    "sparkline smaller than padding",
			mutate:  func(c *Config) { c.Trend.Sparkline.Height = 3 },
			wantErr: "sparkline",
		},
		{
			name:    "invalid port",
			mutate:  func(c *Config) { c.API.Port = 0 },
			wantErr: "api.port",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() error = %v, want nil", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestCredential_StringRedactsPassword(t *testing.T) {
	c := Credential{Username: "operator", Password: "hunter2"}
	if strings.Contains(c.String(), "hunter2") {
		t.Errorf("String() leaked password: %s", c.String())
	}
}

func TestConfig_Timeouts(t *testing.T) {
	cfg := defaultConfig()
	if cfg.GetReadTimeout() != 30*time.Second {
		t.Errorf("GetReadTimeout() = %v", cfg.GetReadTimeout())
	}
	if cfg.GetIdleTimeout() != 60*time.Second {
		t.Errorf("GetIdleTimeout() = %v", cfg.GetIdleTimeout())
	}
	if cfg.TokenTTL() != time.Hour {
		t.Errorf("TokenTTL() = %v", cfg.TokenTTL())
	}
}
