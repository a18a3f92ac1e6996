// Package provisioning implements the zero-touch credential hand-off.
//
// While the link manager is provisioning, an Exchange is open: the node
// advertises itself over mDNS and accepts a single credential submission
// from the operator API. The link manager polls Done and, once true,
// reads Result and persists it. There are no callbacks; completion is
// observed only by polling, which keeps all state changes on the control
// goroutine.
package provisioning
