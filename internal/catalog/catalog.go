package catalog

import (
	"fmt"
	"regexp"
	"strings"
)

// MonitoredPoint is one tank level shown on the remote dashboard.
type MonitoredPoint struct {
	// Tag is the hierarchical source path, e.g. \PI-BRRC-S1\BRRC00-0LBL111A.
	// The dashboard element for the point carries it in its title attribute.
	Tag string `json:"tag" yaml:"tag"`

	// Label is the human-readable tank name.
	Label string `json:"label" yaml:"label"`

	// Capacity is the full-tank level in metres, used as the percentage
	// denominator.
	Capacity float64 `json:"capacity" yaml:"capacity"`

	// Site is the plant the tank belongs to.
	Site string `json:"site,omitempty" yaml:"site"`
}

// Validate checks a single point.
func (p MonitoredPoint) Validate() error {
	if strings.TrimSpace(p.Tag) == "" {
		return fmt.Errorf("%w: tag cannot be empty", ErrInvalidPoint)
	}
	if strings.TrimSpace(p.Label) == "" {
		return fmt.Errorf("%w: %s: label cannot be empty", ErrInvalidPoint, p.Tag)
	}
	if p.Capacity <= 0 {
		return fmt.Errorf("%w: %s: capacity must be positive, got %v", ErrInvalidPoint, p.Tag, p.Capacity)
	}
	return nil
}

var nonSlug = regexp.MustCompile(`[^a-z0-9]+`)

// Slug returns a lowercase, hyphenated form of the tag suitable for MQTT
// topic levels and metric labels.
//
//	\PI-BRRC-S1\BRRC00-0LBL111A -> pi-brrc-s1-brrc00-0lbl111a
func (p MonitoredPoint) Slug() string {
	return strings.Trim(nonSlug.ReplaceAllString(strings.ToLower(p.Tag), "-"), "-")
}

// Catalog is an immutable, ordered set of monitored points.
//
// Thread Safety:
//   - Read-only after New; safe for concurrent use.
type Catalog struct {
	points []MonitoredPoint
	byTag  map[string]int
	sites  []string
}

// New validates points and builds a Catalog preserving their order.
//
// Returns ErrEmptyCatalog, ErrInvalidPoint or ErrDuplicateTag on bad input.
func New(points []MonitoredPoint) (*Catalog, error) {
	if len(points) == 0 {
		return nil, ErrEmptyCatalog
	}

	c := &Catalog{
		points: make([]MonitoredPoint, 0, len(points)),
		byTag:  make(map[string]int, len(points)),
	}
	seenSite := make(map[string]bool)

	for _, p := range points {
		p.Tag = strings.TrimSpace(p.Tag)
		p.Label = strings.TrimSpace(p.Label)
		p.Site = strings.TrimSpace(p.Site)
		if err := p.Validate(); err != nil {
			return nil, err
		}
		if _, dup := c.byTag[p.Tag]; dup {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateTag, p.Tag)
		}
		c.byTag[p.Tag] = len(c.points)
		c.points = append(c.points, p)

		if !seenSite[p.Site] {
			seenSite[p.Site] = true
			c.sites = append(c.sites, p.Site)
		}
	}

	return c, nil
}

// Points returns a copy of the points in catalog order.
func (c *Catalog) Points() []MonitoredPoint {
	out := make([]MonitoredPoint, len(c.points))
	copy(out, c.points)
	return out
}

// Len returns the number of points.
func (c *Catalog) Len() int {
	return len(c.points)
}

// First returns the first point. Its element is the render sentinel: once
// it is present the whole display is assumed rendered.
func (c *Catalog) First() MonitoredPoint {
	return c.points[0]
}

// Lookup returns the point for tag.
func (c *Catalog) Lookup(tag string) (MonitoredPoint, error) {
	i, ok := c.byTag[tag]
	if !ok {
		return MonitoredPoint{}, fmt.Errorf("%w: %s", ErrPointNotFound, tag)
	}
	return c.points[i], nil
}

// Index returns the catalog position of tag, or -1.
func (c *Catalog) Index(tag string) int {
	if i, ok := c.byTag[tag]; ok {
		return i
	}
	return -1
}

// Sites returns site names in order of first appearance. Points without a
// site are grouped under "".
func (c *Catalog) Sites() []string {
	out := make([]string, len(c.sites))
	copy(out, c.sites)
	return out
}

// BySite returns the points of one site in catalog order.
func (c *Catalog) BySite(site string) []MonitoredPoint {
	var out []MonitoredPoint
	for _, p := range c.points {
		if p.Site == site {
			out = append(out, p)
		}
	}
	return out
}
