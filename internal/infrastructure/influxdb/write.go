package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Measurement names.
const (
	measurementLink    = "link_state"
	measurementSession = "session_state"
	measurementLight   = "light_state"
)

// WriteLinkState records a wireless link transition.
//
// Parameters:
//   - from, to: State names (e.g. "connecting", "connected")
//   - retries: The reconnect counter at the time of the transition
func (c *Client) WriteLinkState(from, to string, retries int) {
	c.writePoint(linkPoint(c.deviceID, from, to, retries, time.Now()))
}

// WriteSessionState records an MQTT session transition.
func (c *Client) WriteSessionState(state string, attempts int) {
	c.writePoint(sessionPoint(c.deviceID, state, attempts, time.Now()))
}

// WriteLightState records the lamp state after a change.
//
// Example:
//
//	client.WriteLightState(true, 70, 2)
func (c *Client) WriteLightState(on bool, brightness, mode int) {
	c.writePoint(lightPoint(c.deviceID, on, brightness, mode, time.Now()))
}

func (c *Client) writePoint(p *write.Point) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(p)
}

func linkPoint(deviceID, from, to string, retries int, ts time.Time) *write.Point {
	return write.NewPoint(
		measurementLink,
		map[string]string{
			"device_id": deviceID,
			"state":     to,
		},
		map[string]interface{}{
			"from":      from,
			"connected": to == "connected",
			"retries":   retries,
		},
		ts,
	)
}

func sessionPoint(deviceID, state string, attempts int, ts time.Time) *write.Point {
	return write.NewPoint(
		measurementSession,
		map[string]string{
			"device_id": deviceID,
			"state":     state,
		},
		map[string]interface{}{
			"open":     state == "open",
			"attempts": attempts,
		},
		ts,
	)
}

func lightPoint(deviceID string, on bool, brightness, mode int, ts time.Time) *write.Point {
	return write.NewPoint(
		measurementLight,
		map[string]string{
			"device_id": deviceID,
		},
		map[string]interface{}{
			"on":         on,
			"brightness": brightness,
			"mode":       mode,
		},
		ts,
	)
}
