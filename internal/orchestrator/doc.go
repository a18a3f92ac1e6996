// Package orchestrator runs the light node's single control loop.
//
// Each Tick drains operator requests, button presses and inbound MQTT
// commands, so a command lands within one loop period. It then advances the
// wireless link every LinkCheckInterval and, unless the link is
// provisioning, advances the MQTT session every SessionCheckInterval.
// The two cadences are independent so their retry timers never pace each
// other.
//
// The orchestrator maps commands to lamp actions and lamp changes to
// telemetry. It holds no retry logic of its own.
//
// Only Submit and Status may be called from other goroutines. Everything
// else runs on the goroutine that calls Run.
package orchestrator
