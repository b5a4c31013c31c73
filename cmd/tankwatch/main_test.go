package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/tankwatch/tankwatch-core/internal/auth"
	"github.com/tankwatch/tankwatch-core/internal/infrastructure/config"
	"github.com/tankwatch/tankwatch-core/internal/infrastructure/logging"
	"github.com/tankwatch/tankwatch-core/internal/infrastructure/mqtt"
	"github.com/tankwatch/tankwatch-core/internal/scheduler"
)

const testSecret = "test-secret-key-at-least-32-characters-long"

// writeConfig writes a minimal valid configuration and returns its path.
func writeConfig(t *testing.T, extra string) string {
	t.Helper()
	dir := t.TempDir()
	content := `
site:
  id: test-site
  timezone: UTC
database:
  path: ` + filepath.Join(dir, "test.db") + `
source:
  base_url: https://vision.example.test/PIVision/
  display:
    id: "1"
  credentials:
    - username: primary
      password: one
    - username: fallback
      password: two
catalog:
  points:
    - tag: '\\PI\LT-101'
      label: TANK 1
      capacity: 18
      site: Barranco
logging:
  level: error
  format: text
` + extra
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return path
}

// TestRun_InvalidConfig verifies run fails with invalid config path.
func TestRun_InvalidConfig(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := run(ctx, options{configPath: "/nonexistent/path/config.yaml"})
	if err == nil {
		t.Fatal("run() should fail with invalid config path")
	}
	if !strings.Contains(err.Error(), "loading config") {
		t.Errorf("error = %v, want loading config failure", err)
	}
}

// TestRun_MissingCredentials verifies run refuses to start without both
// credential sets.
func TestRun_MissingCredentials(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
site:
  id: test-site
database:
  path: ` + filepath.Join(dir, "test.db") + `
catalog:
  file: configs/points.yaml
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := run(ctx, options{configPath: path})
	if err == nil || !strings.Contains(err.Error(), "source.credentials") {
		t.Fatalf("run() error = %v, want credentials validation failure", err)
	}
}

// TestRun_ShutsDownOnCancel starts the full service with every optional
// sink disabled and stops it through the context.
func TestRun_ShutsDownOnCancel(t *testing.T) {
	path := writeConfig(t, `
capture:
  schedule: "0 0 0 1 1 *"
  run_on_start: false
  artifact_path: `+filepath.Join(t.TempDir(), "debug.png")+`
report:
  enabled: false
api:
  host: 127.0.0.1
  port: 38511
`)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- run(ctx, options{configPath: path}) }()

	time.Sleep(300 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("run() error = %v", err)
		}
	case <-time.After(15 * time.Second):
		t.Fatal("run() did not return after cancel")
	}
}

// TestGetConfigPath verifies flag, environment and default precedence.
func TestGetConfigPath(t *testing.T) {
	t.Setenv("TANKWATCH_CONFIG", "")
	if got := getConfigPath(""); got != defaultConfigPath {
		t.Errorf("getConfigPath() = %q, want %q", got, defaultConfigPath)
	}

	t.Setenv("TANKWATCH_CONFIG", "/custom/path/config.yaml")
	if got := getConfigPath(""); got != "/custom/path/config.yaml" {
		t.Errorf("getConfigPath() = %q, want env override", got)
	}
	if got := getConfigPath("/flag/config.yaml"); got != "/flag/config.yaml" {
		t.Errorf("getConfigPath() = %q, want flag override", got)
	}
}

func TestSessionConfig(t *testing.T) {
	cfg, err := config.Load(writeConfig(t, ""))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	sc := sessionConfig(cfg)
	if len(sc.Credentials) != 2 || sc.Credentials[1].Username != "fallback" || sc.Credentials[1].Password != "two" {
		t.Errorf("credentials = %v", sc.Credentials)
	}
	if got := sc.Target.URL(); !strings.HasPrefix(got, "https://vision.example.test/PIVision/#/Displays/1") {
		t.Errorf("target URL = %q", got)
	}
	if sc.Navigation.Attempts != cfg.Source.Navigation.Attempts || sc.RenderTimeout != cfg.Source.RenderTimeout {
		t.Errorf("timings not carried over: %+v", sc)
	}
	if sc.Retention != 48*time.Hour {
		t.Errorf("retention = %v, want 48h", sc.Retention)
	}
}

func TestFanoutDeps_NilClientsStayNil(t *testing.T) {
	deps := fanoutDeps(nil, nil, nil, nil, nil, logging.Discard())
	if deps.MQTT != nil {
		t.Error("MQTT sink should be a nil interface when disabled")
	}
	if deps.Influx != nil {
		t.Error("Influx sink should be a nil interface when disabled")
	}
}

type fakeJobs struct {
	err       error
	triggered []string
}

func (f *fakeJobs) Trigger(name string) error {
	f.triggered = append(f.triggered, name)
	return f.err
}

func TestCaptureCommandHandler(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		wantErr bool
	}{
		{"started", nil, false},
		{"busy is not an error", scheduler.ErrJobBusy, false},
		{"scheduler stopped", scheduler.ErrNotRunning, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			jobs := &fakeJobs{err: tt.err}
			h := captureCommandHandler(jobs, logging.Discard())

			err := h("tankwatch/capture/command", []byte("now"))
			if (err != nil) != tt.wantErr {
				t.Fatalf("handler error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr && !errors.Is(err, tt.err) {
				t.Errorf("error = %v, want wrapping %v", err, tt.err)
			}
			if len(jobs.triggered) != 1 || jobs.triggered[0] != captureJob {
				t.Errorf("triggered = %v", jobs.triggered)
			}
		})
	}
}

type fakeSubscriber struct {
	err     error
	topic   string
	handler mqtt.MessageHandler
}

func (f *fakeSubscriber) Topics() mqtt.Topics { return mqtt.NewTopics("tankwatch/test") }

func (f *fakeSubscriber) Subscribe(topic string, _ byte, handler mqtt.MessageHandler) error {
	f.topic, f.handler = topic, handler
	return f.err
}

func TestSubscribeCaptureCommand(t *testing.T) {
	sub := &fakeSubscriber{}
	jobs := &fakeJobs{}
	if err := subscribeCaptureCommand(sub, jobs, logging.Discard()); err != nil {
		t.Fatalf("subscribeCaptureCommand: %v", err)
	}
	if want := mqtt.NewTopics("tankwatch/test").CaptureCommand(); sub.topic != want {
		t.Errorf("topic = %q, want %q", sub.topic, want)
	}
	if err := sub.handler(sub.topic, nil); err != nil || len(jobs.triggered) != 1 {
		t.Errorf("handler error = %v, triggered = %v", err, jobs.triggered)
	}

	failing := &fakeSubscriber{err: mqtt.ErrNotConnected}
	if err := subscribeCaptureCommand(failing, jobs, logging.Discard()); !errors.Is(err, mqtt.ErrNotConnected) {
		t.Errorf("error = %v, want ErrNotConnected", err)
	}
}

func TestIssueToken(t *testing.T) {
	path := writeConfig(t, "security:\n  jwt:\n    secret: "+testSecret+"\n")

	var out bytes.Buffer
	if err := issueToken(&out, options{configPath: path, issueToken: "alice", role: "viewer"}); err != nil {
		t.Fatalf("issueToken: %v", err)
	}

	claims, err := auth.ParseToken(strings.TrimSpace(out.String()), testSecret)
	if err != nil {
		t.Fatalf("ParseToken: %v", err)
	}
	if claims.Subject != "alice" || claims.Role != auth.RoleViewer {
		t.Errorf("claims = %+v", claims)
	}
}

func TestIssueToken_Errors(t *testing.T) {
	noSecret := writeConfig(t, "")
	if err := issueToken(&bytes.Buffer{}, options{configPath: noSecret, issueToken: "alice", role: "operator"}); err == nil {
		t.Error("issueToken without a secret should fail")
	}

	withSecret := writeConfig(t, "security:\n  jwt:\n    secret: "+testSecret+"\n")
	if err := issueToken(&bytes.Buffer{}, options{configPath: withSecret, issueToken: "alice", role: "admin"}); err == nil {
		t.Error("issueToken with an unknown role should fail")
	}
}
