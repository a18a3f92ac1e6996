// Package wireless associates the node with a wireless network by driving
// wpa_supplicant through wpa_cli, and reads interface state over netlink.
//
// Supplicant implements the association primitive the link manager needs:
//
//	radio := wireless.NewSupplicant(cfg.Wireless, wireless.ExecRunner{}, wireless.Netlink{})
//	if err := radio.Join(ctx, "HomeNet", "secret"); err != nil { ... }
//	radio.Associated() // wpa_state=COMPLETED and an IPv4 address assigned
//
// Every wpa_cli call is bounded by the configured call timeout so the
// control loop never stalls on a wedged daemon.
package wireless
