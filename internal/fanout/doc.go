// Package fanout distributes capture outcomes beyond the SQLite store.
//
// After every cycle it publishes the cycle status, and after a committed
// cycle the refreshed level of every point, to:
//   - MQTT: retained messages on <prefix>/capture/status and
//     <prefix>/level/<slug>
//   - InfluxDB: capture_cycle and tank_level points
//   - Prometheus: cycle counters and per-tag level gauges
//   - WebSocket: capture.finished and levels.updated events
//
// Each sink is optional. A failing sink is logged and does not affect the
// others or the capture cycle itself.
package fanout
