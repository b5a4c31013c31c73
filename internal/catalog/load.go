package catalog

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/tankwatch/tankwatch-core/internal/infrastructure/config"
)

// fileFormat is the on-disk layout of a catalog file.
type fileFormat struct {
	Points []MonitoredPoint `yaml:"points"`
}

// LoadFile reads a YAML catalog:
//
//	points:
//	  - tag: '\PI-BRRC-S1\BRRC00-0LBL111A'
//	    label: TANQUE ALMACEN FO
//	    capacity: 18
//	    site: Barranco
func LoadFile(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading catalog file: %w", err)
	}

	var f fileFormat
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing catalog file: %w", err)
	}

	return New(f.Points)
}

// FromConfig builds the catalog from the catalog section of config.yaml.
// Inline points take precedence over a catalog file.
func FromConfig(cfg config.CatalogConfig) (*Catalog, error) {
	if len(cfg.Points) == 0 {
		return LoadFile(cfg.File)
	}

	points := make([]MonitoredPoint, 0, len(cfg.Points))
	for _, p := range cfg.Points {
		points = append(points, MonitoredPoint{
			Tag:      p.Tag,
			Label:    p.Label,
			Capacity: p.Capacity,
			Site:     p.Site,
		})
	}
	return New(points)
}
