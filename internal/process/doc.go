// Package process supervises the wpa_supplicant daemon when the light
// node is configured to run it itself.
//
// The supervisor starts the daemon in its own process group, relays its
// output to the logger line by line, restarts it after unexpected exits
// with a fixed delay and an optional attempt cap, and can kill it when a
// health probe (a wpa_cli ping) fails repeatedly.
//
//	sup := process.NewSupervisor(process.ForSupplicant(cfg.Wireless))
//	if err := sup.Start(ctx); err != nil {
//	    return err
//	}
//	defer sup.Stop()
package process
