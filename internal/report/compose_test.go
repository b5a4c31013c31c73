package report

import (
	"strings"
	"testing"
	"time"

	"github.com/tankwatch/tankwatch-core/internal/trend"
)

var madrid = time.FixedZone("CET", 3600)

func point(tag, label, site, raw string, capacity float64, series ...float64) trend.PointStatus {
	delta, ok := trend.Delta(series)
	p := trend.PointStatus{
		Tag:        tag,
		Label:      label,
		Site:       site,
		RawValue:   raw,
		HasReading: raw != "---",
		Capacity:   capacity,
		Level:      trend.Fill(raw, capacity),
		Trend: trend.Summary{
			Tag:      tag,
			Delta:    delta,
			HasDelta: ok,
			Class:    trend.Classify(delta, ok),
			Series:   series,
		},
	}
	p.Sparkline = p.Trend.Sparkline(trend.DefaultFrame)
	return p
}

func testReport() *trend.Report {
	return &trend.Report{
		Points: []trend.PointStatus{
			point("B1", "Tank 1", "Barranco", "12.00", 18, 11.5, 12.0),
			point("B2", "Tank 2", "Barranco", "Error", 13),
			point("J1", "Tank J", "Jinamar", "0.90", 3, 1.2, 0.9),
		},
		ReportTime:    time.Date(2026, 3, 2, 11, 0, 0, 0, time.UTC),
		HasReportTime: true,
		Window:        24 * time.Hour,
	}
}

func TestCompose_Subject(t *testing.T) {
	msg, err := Compose(testReport(), ComposeOptions{Title: "Fuel", Location: madrid})
	if err != nil {
		t.Fatalf("Compose() error = %v", err)
	}
	if want := "Fuel levels - 02/03/2026 12:00"; msg.Subject != want {
		t.Errorf("Subject = %q, want %q", msg.Subject, want)
	}
}

func TestCompose_TextLines(t *testing.T) {
	msg, err := Compose(testReport(), ComposeOptions{Title: "Fuel", DashboardURL: "https://levels.example.test", Location: madrid})
	if err != nil {
		t.Fatalf("Compose() error = %v", err)
	}

	for _, want := range []string{
		"Dashboard: https://levels.example.test",
		"BARRANCO\n- Tank 1: 12.00 m | 66.7% | Δ24h +0.50 m",
		"- Tank 2: Error | — | Δ24h —",
		"JINAMAR\n- Tank J: 0.90 m | 30.0% | Δ24h -0.30 m",
	} {
		if !strings.Contains(msg.Text, want) {
			t.Errorf("Text missing %q:\n%s", want, msg.Text)
		}
	}
	if strings.Index(msg.Text, "BARRANCO") > strings.Index(msg.Text, "JINAMAR") {
		t.Error("sites out of catalog order")
	}
}

func TestCompose_HTML(t *testing.T) {
	msg, err := Compose(testReport(), ComposeOptions{Title: "Fuel <Ops>", DashboardURL: "https://levels.example.test"})
	if err != nil {
		t.Fatalf("Compose() error = %v", err)
	}
	for _, want := range []string{"Fuel &lt;Ops&gt;", "band-high", "band-error", "trend-falling", `href="https://levels.example.test"`, "<path d=\"M "} {
		if !strings.Contains(msg.HTML, want) {
			t.Errorf("HTML missing %q", want)
		}
	}
}

func TestCompose_NoReadingsUsesNow(t *testing.T) {
	rep := &trend.Report{
		Points: []trend.PointStatus{point("X", "", "", "---", 5)},
		Window: 12 * time.Hour,
	}
	now := time.Date(2026, 3, 2, 18, 5, 0, 0, time.UTC)
	msg, err := Compose(rep, ComposeOptions{Title: "Fuel", Now: now})
	if err != nil {
		t.Fatalf("Compose() error = %v", err)
	}
	if !strings.HasSuffix(msg.Subject, "02/03/2026 18:05") {
		t.Errorf("Subject = %q", msg.Subject)
	}
	if !strings.Contains(msg.Text, "OTHER\n- X: --- | — | Δ12h —") {
		t.Errorf("Text = %s", msg.Text)
	}
}

func TestWindowLabel(t *testing.T) {
	tests := map[time.Duration]string{
		24 * time.Hour:   "24h",
		6 * time.Hour:    "6h",
		90 * time.Minute: "1h30m0s",
	}
	for d, want := range tests {
		if got := windowLabel(d); got != want {
			t.Errorf("windowLabel(%v) = %q, want %q", d, got, want)
		}
	}
}
