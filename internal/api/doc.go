// Package api implements the light node's operator HTTP API and WebSocket
// status stream.
//
// This package provides:
//   - Read endpoints for the published node status and the event journal
//   - Request endpoints that queue operator actions on the control loop
//     (reconnect, provisioning, session reset, lamp commands, factory reset)
//   - The provisioning credential submission used by commissioning apps
//   - A WebSocket hub that pushes every status change to connected clients
//   - Middleware stack (request ID, logging, recovery, body size limit)
//
// # Authorisation
//
// When api.auth.jwt_secret is set, every route except health and the
// provisioning pair requires an operator token (see package auth). The
// WebSocket endpoint also accepts the token as ?token= because browsers
// cannot set headers on an upgrade.
//
// # Concurrency
//
// Handlers never touch the link, session or lamp directly. Reads go through
// the orchestrator's published snapshot and writes are queued with Submit,
// so the control goroutine stays the only owner of device state.
//
// # Lifecycle
//
//	server, err := api.New(deps)
//	server.Start(ctx)
//	defer server.Close()
package api
