package report

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"math"
	"strings"
	"time"

	"github.com/tankwatch/tankwatch-core/internal/trend"
)

//go:embed templates/digest.html
var templateFS embed.FS

var digestTemplate = template.Must(template.ParseFS(templateFS, "templates/digest.html"))

// dateLayout is dd/mm/yyyy HH:MM.
const dateLayout = "02/01/2006 15:04"

// noValue stands in for a percentage or delta that cannot be computed.
const noValue = "—"

// otherSite heads points that belong to no site.
const otherSite = "Other"

// Message is one email.
type Message struct {
	Subject string
	Text    string
	HTML    string
}

// ComposeOptions shape the digest.
type ComposeOptions struct {
	// Title prefixes the subject, e.g. the site or company name.
	Title        string
	DashboardURL string
	Location     *time.Location

	// Now stands in for the report time when nothing was captured yet.
	Now time.Time
}

// Line is one point as shown in the digest.
type Line struct {
	Label     string
	Level     string
	Percent   string
	Band      trend.Band
	Delta     string
	Class     trend.Classification
	Sparkline string
}

// Section is one site.
type Section struct {
	Site  string
	Lines []Line
}

type digestView struct {
	Title        string
	CapturedAt   string
	DashboardURL string
	WindowLabel  string
	Sections     []Section
}

// Compose renders rep as a digest message.
func Compose(rep *trend.Report, opts ComposeOptions) (Message, error) {
	loc := opts.Location
	if loc == nil {
		loc = time.UTC
	}
	at := opts.Now
	if rep.HasReportTime {
		at = rep.ReportTime
	}

	view := digestView{
		Title:        opts.Title,
		CapturedAt:   at.In(loc).Format(dateLayout),
		DashboardURL: opts.DashboardURL,
		WindowLabel:  "Δ" + windowLabel(rep.Window),
		Sections:     sections(rep.Points),
	}

	var html bytes.Buffer
	if err := digestTemplate.Execute(&html, view); err != nil {
		return Message{}, fmt.Errorf("rendering digest html: %w", err)
	}

	return Message{
		Subject: fmt.Sprintf("%s levels - %s", opts.Title, view.CapturedAt),
		Text:    plainText(view),
		HTML:    html.String(),
	}, nil
}

func plainText(v digestView) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Automatic level summary\nReading: %s\n", v.CapturedAt)
	if v.DashboardURL != "" {
		fmt.Fprintf(&b, "Dashboard: %s\n", v.DashboardURL)
	}
	for _, s := range v.Sections {
		fmt.Fprintf(&b, "\n%s\n", strings.ToUpper(s.Site))
		for _, l := range s.Lines {
			fmt.Fprintf(&b, "- %s: %s | %s | %s %s\n", l.Label, l.Level, l.Percent, v.WindowLabel, l.Delta)
		}
	}
	return b.String()
}

// sections groups points by site in order of first appearance.
func sections(points []trend.PointStatus) []Section {
	var out []Section
	index := make(map[string]int)
	for _, p := range points {
		site := p.Site
		if site == "" {
			site = otherSite
		}
		i, ok := index[site]
		if !ok {
			i = len(out)
			index[site] = i
			out = append(out, Section{Site: site})
		}
		out[i].Lines = append(out[i].Lines, lineFor(p))
	}
	return out
}

func lineFor(p trend.PointStatus) Line {
	l := Line{
		Label:     p.Label,
		Level:     p.RawValue,
		Percent:   noValue,
		Band:      p.Level.Band,
		Delta:     noValue,
		Class:     p.Trend.Class,
		Sparkline: p.Sparkline.Path(),
	}
	if l.Label == "" {
		l.Label = p.Tag
	}
	if p.Level.OK {
		l.Level = fmt.Sprintf("%.2f m", p.Level.Value)
		l.Percent = fmt.Sprintf("%.1f%%", p.Level.Percent)
	}
	if p.Trend.HasDelta {
		l.Delta = fmt.Sprintf("%+.2f m", p.Trend.Delta)
	}
	return l
}

// windowLabel prints whole hours as "24h" and anything else as a duration.
func windowLabel(d time.Duration) string {
	if d > 0 && d%time.Hour == 0 {
		return fmt.Sprintf("%dh", int64(math.Round(d.Hours())))
	}
	return d.String()
}
