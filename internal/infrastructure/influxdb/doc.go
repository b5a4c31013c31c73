// Package influxdb mirrors captured tank levels into InfluxDB v2 for
// long-term history beyond the local retention window.
//
// Each committed cycle writes one tank_level point per parseable reading
// (tags: tag, site; fields: value, percent, capacity, band) and one
// capture_cycle point. Points carry the capture time, not the write time.
//
//	client, err := influxdb.Connect(cfg.InfluxDB)
//	if errors.Is(err, influxdb.ErrDisabled) {
//	    // mirror not configured
//	}
//	defer client.Close()
//
//	client.WriteLevel(influxdb.Level{Tag: "BCO.LT-101", Value: 12.4, At: capturedAt})
//
// Writes never block the capture cycle; errors arrive on the SetOnError
// callback.
package influxdb
