// Package influxdb ships the light node's connectivity telemetry to InfluxDB.
//
// It wraps the official influxdb-client-go v2 library for connection
// management, batched writes and health monitoring. Three measurements
// are written, all tagged with device_id:
//   - link_state: wireless link transitions and the reconnect counter
//   - session_state: MQTT session transitions and the open attempt counter
//   - light_state: lamp on/off, brightness and mode after each change
//
// # Usage
//
//	client, err := influxdb.Connect(ctx, cfg.InfluxDB, cfg.Device.ID)
//	if err != nil {
//	    // telemetry is optional; carry on without it
//	}
//	defer client.Close()
//
//	client.WriteLinkState("connecting", "connected", 0)
//
// # Thread Safety
//
// All methods are safe for concurrent use from multiple goroutines.
// The underlying write API uses non-blocking batched writes.
//
// # Error Handling
//
// Write operations are non-blocking and batch errors are delivered via the
// SetOnError callback. Connection and health check errors are returned
// directly.
package influxdb
