// Package link owns the node's wireless association lifecycle.
//
// Manager is a polled state machine with four states:
//
//	Disconnected ──Connect──▶ Connecting ──associated──▶ Connected
//	      ▲                        │                         │
//	      └──── association lost ──┴─────────────────────────┘
//	                               │
//	         retries exhausted ────▶ Provisioning ──done/timeout──▶ restart
//
// Reconnection is rate-limited by an interval gate and bounded by a retry
// budget; the attempt after the budget is spent escalates to provisioning.
// Provisioning always ends in a device restart so the wireless stack is
// reinitialised from the freshly stored credentials.
//
// Manager is not safe for concurrent use. The orchestrator owns it and
// calls it from a single goroutine.
package link
