package influxdb

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/tankwatch/tankwatch-core/internal/infrastructure/config"
)

// fakeInflux answers /ping and records line protocol posted to /api/v2/write.
type fakeInflux struct {
	mu    sync.Mutex
	lines []string
	query string
}

func (f *fakeInflux) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Path {
	case "/ping", "/health":
		w.WriteHeader(http.StatusNoContent)
	case "/api/v2/write":
		body, _ := io.ReadAll(r.Body)
		f.mu.Lock()
		f.query = r.URL.RawQuery
		for _, l := range strings.Split(strings.TrimSpace(string(body)), "\n") {
			if l != "" {
				f.lines = append(f.lines, l)
			}
		}
		f.mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	default:
		http.NotFound(w, r)
	}
}

func (f *fakeInflux) written() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.lines...)
}

func connectFake(t *testing.T) (*Client, *fakeInflux) {
	t.Helper()
	fake := &fakeInflux{}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	c, err := Connect(config.InfluxDBConfig{
		Enabled: true,
		URL:     srv.URL,
		Token:   "test-token",
		Org:     "tankwatch",
		Bucket:  "levels",
	})
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	t.Cleanup(func() { c.Close() }) //nolint:errcheck // Test cleanup
	return c, fake
}

func TestConnect_Disabled(t *testing.T) {
	_, err := Connect(config.InfluxDBConfig{Enabled: false})
	if !errors.Is(err, ErrDisabled) {
		t.Errorf("Connect() error = %v, want ErrDisabled", err)
	}
}

func TestConnect_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := Connect(config.InfluxDBConfig{Enabled: true, URL: url, Org: "o", Bucket: "b"})
	if !errors.Is(err, ErrConnectionFailed) {
		t.Errorf("Connect() error = %v, want ErrConnectionFailed", err)
	}
}

func TestWriteLevelAndCycle(t *testing.T) {
	c, fake := connectFake(t)
	at := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)

	c.WriteLevel(Level{Tag: "BCO.LT-101", Site: "Barranco", Value: 12.4, Percent: 68.9, Capacity: 18, Band: "high", At: at})
	c.WriteCycle(Cycle{Status: "ok", Duration: 42 * time.Second, Readings: 11, Failed: 1, At: at})
	c.Flush()

	lines := fake.written()
	if len(lines) != 2 {
		t.Fatalf("wrote %d lines, want 2: %v", len(lines), lines)
	}
	if !strings.HasPrefix(lines[0], "tank_level,site=Barranco,tag=BCO.LT-101 ") {
		t.Errorf("level line = %q", lines[0])
	}
	if !strings.HasPrefix(lines[1], "capture_cycle,status=ok ") || !strings.Contains(lines[1], "readings=11i") {
		t.Errorf("cycle line = %q", lines[1])
	}
	if !strings.Contains(fake.query, "bucket=levels") {
		t.Errorf("write query = %q", fake.query)
	}
}

func TestHealthCheck(t *testing.T) {
	c, _ := connectFake(t)
	if err := c.HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck() error = %v", err)
	}

	c.Close() //nolint:errcheck // Closing under test
	if err := c.HealthCheck(context.Background()); !errors.Is(err, ErrNotConnected) {
		t.Errorf("HealthCheck() after Close = %v, want ErrNotConnected", err)
	}
	c.WriteLevel(Level{Tag: "x"})
	c.Flush()
}

func TestLevelPoint(t *testing.T) {
	at := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)
	line := write.PointToLineProtocol(levelPoint(Level{Tag: "JIN.LT-1", Value: 2.5, Percent: 83.3, Capacity: 3, Band: "high", At: at}), time.Second)

	want := "tank_level,tag=JIN.LT-1 band=\"high\",capacity=3,percent=83.3,value=2.5 1772452800\n"
	if line != want {
		t.Errorf("line protocol = %q, want %q", line, want)
	}
}
