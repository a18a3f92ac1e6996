// Package panel serves the node's status page as an embedded asset.
//
// The page is a single HTML file with a small script that reads
// /api/v1/status once and then follows the WebSocket status stream. It
// also posts the operator requests (reconnect, provisioning, session
// reset, on/off) to the API. The assets are embedded with go:embed so the
// binary has no runtime file dependency.
//
// Unknown paths fall back to index.html.
package panel
