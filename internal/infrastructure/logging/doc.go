// Package logging provides structured logging for the light node.
//
// It wraps log/slog so every component logs the same way: JSON in
// production, text on a bench, with service, version and device fields
// on every record.
//
// # Configuration
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr
//
// # Usage
//
//	logger := logging.New(cfg.Logging, version, cfg.Device.ID)
//	linkLog := logger.Component("link")
//	linkLog.Info("associated", "network", name)
//
// Never log network secrets or broker passwords.
package logging
