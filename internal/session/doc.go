// Package session keeps the node's MQTT session alive while the wireless
// link is up and translates session traffic to and from commands.
//
// The Manager is driven by Tick on the control goroutine. It never opens
// the session unless the link reports Connected, it paces open attempts
// with an interval gate, and it stops trying once its attempt budget is
// spent. Messages received on transport goroutines are queued by Deliver
// and handled by Drain, which the control loop calls on every pass, so
// command side effects always run on the control goroutine.
package session
