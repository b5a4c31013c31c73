// Package catalog holds the fixed set of monitored points: the dashboard
// tags to read, their display labels, tank capacities and plant site.
//
// A Catalog is built once at startup (from config.yaml or a separate YAML
// file) and never changes while the process runs. Its order is the order
// points are extracted, stored and shown.
package catalog
