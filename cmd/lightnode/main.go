// Gray Logic Light Node
//
// This is the main entry point for the light node daemon. The node keeps a
// dimmable two-channel lamp reachable over a wireless link and an MQTT
// session:
//   - joins the stored network, retrying and falling back to provisioning
//   - keeps a command session open with a bounded retry budget
//   - applies "on" / "off" / "<brightness>[#<mode>]" commands and buttons
//   - publishes lamp telemetry and serves a local operator API
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/alecthomas/kong"
	"github.com/google/uuid"

	_ "github.com/nerrad567/gray-logic-lightnode/migrations"

	"github.com/nerrad567/gray-logic-lightnode/internal/api"
	"github.com/nerrad567/gray-logic-lightnode/internal/buttons"
	"github.com/nerrad567/gray-logic-lightnode/internal/credentials"
	"github.com/nerrad567/gray-logic-lightnode/internal/history"
	"github.com/nerrad567/gray-logic-lightnode/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-lightnode/internal/infrastructure/database"
	"github.com/nerrad567/gray-logic-lightnode/internal/infrastructure/influxdb"
	"github.com/nerrad567/gray-logic-lightnode/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-lightnode/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-lightnode/internal/light"
	"github.com/nerrad567/gray-logic-lightnode/internal/link"
	"github.com/nerrad567/gray-logic-lightnode/internal/metrics"
	"github.com/nerrad567/gray-logic-lightnode/internal/orchestrator"
	"github.com/nerrad567/gray-logic-lightnode/internal/panel"
	"github.com/nerrad567/gray-logic-lightnode/internal/process"
	"github.com/nerrad567/gray-logic-lightnode/internal/provisioning"
	"github.com/nerrad567/gray-logic-lightnode/internal/session"
	"github.com/nerrad567/gray-logic-lightnode/internal/wireless"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// pruneInterval is how often the event journal is trimmed to its retention.
const pruneInterval = time.Hour

func main() {
	var c cli
	kctx := kong.Parse(&c,
		kong.Name("lightnode"),
		kong.Description("Connectivity manager for a networked dimmable lamp."),
		kong.Vars{"version": fmt.Sprintf("%s (%s, %s)", version, commit, date)},
		kong.UsageOnError(),
	)

	err := kctx.Run(&c)

	var restart *restartError
	switch {
	case err == nil:
	case errors.As(err, &restart):
		fmt.Fprintf(os.Stderr, "Restarting: %s\n", restart.reason)
		if restart.mode == restartModeReboot {
			if rebootErr := rebootHost(); rebootErr != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", rebootErr)
			}
		}
		os.Exit(exitRestart)
	default:
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
//
// Parameters:
//   - ctx: Context for cancellation and shutdown signals
//   - configPath: YAML configuration file
//
// Returns:
//   - error: nil on clean shutdown, a *restartError when a component asked
//     for a device restart, or an error describing a startup failure
func run(ctx context.Context, configPath string) error { //nolint:gocognit,gocyclo // Linear wiring of every component
	log := logging.Default()
	log.Info("starting light node",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	log = logging.New(cfg.Logging, version, cfg.Device.ID)
	log.Info("configuration loaded",
		"path", configPath,
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	// Restart requests cancel this context so every component unwinds
	// through the deferred closes below.
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Open database (event journal, optional credential backend)
	db, err := database.Open(ctx, database.Config{
		Path:        cfg.Database.Path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
	})
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		log.Info("closing database")
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()
	if migrateErr := db.Migrate(ctx); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database ready", "path", cfg.Database.Path)

	journal := history.NewJournal(db.DB)
	journal.SetLogger(log.Component("history"))
	if cfg.Database.RetentionDays > 0 {
		retention := time.Duration(cfg.Database.RetentionDays) * 24 * time.Hour
		go journal.RunPruner(ctx, retention, pruneInterval)
	}

	recorder := metrics.NewRecorder(nil)

	restarts := newRestarter(cfg.System.RestartMode, cancel, log)
	restarts.onRequest(recorder.RestartRequested)
	restarts.onRequest(func(reason string) {
		recordCtx, recordCancel := context.WithTimeout(context.Background(), time.Second)
		defer recordCancel()
		//nolint:errcheck // Journal failures are logged by the journal itself
		journal.Record(recordCtx, history.Event{
			Source: history.SourceSystem,
			To:     "restarting",
			Detail: reason,
		})
	})

	// Credential storage
	store, err := openStore(cfg, db)
	if err != nil {
		return err
	}

	// Wireless backend (optionally supervising wpa_supplicant)
	if cfg.Wireless.Supplicant.Managed {
		supervisor := process.NewSupervisor(process.ForSupplicant(cfg.Wireless))
		supervisor.SetLogger(log.Component("wpa_supplicant"))
		if startErr := supervisor.Start(ctx); startErr != nil {
			return fmt.Errorf("starting wpa_supplicant: %w", startErr)
		}
		defer func() {
			log.Info("stopping wpa_supplicant")
			if stopErr := supervisor.Stop(); stopErr != nil {
				log.Error("error stopping wpa_supplicant", "error", stopErr)
			}
		}()
	}
	radio := wireless.NewSupplicant(cfg.Wireless, wireless.ExecRunner{}, wireless.Netlink{})
	radio.SetLogger(log.Component("wireless"))

	// Provisioning exchange
	var advertiser provisioning.Advertiser
	if cfg.Provisioning.Advertise && cfg.API.Enabled {
		advertiser = provisioning.NewMDNSAdvertiser(provisioning.MDNSConfig{
			Instance:    cfg.Provisioning.Instance,
			ServiceType: cfg.Provisioning.ServiceType,
			Port:        cfg.API.Port,
			DeviceID:    cfg.Device.ID,
			SubmitPath:  "/api/v1/provisioning/credentials",
		})
	}
	exchange := provisioning.NewExchange(advertiser)
	exchange.SetLogger(log.Component("provisioning"))

	linkMgr := link.NewManager(link.Deps{
		Store:       store,
		Radio:       radio,
		Provisioner: exchange,
		Restart:     restarts.Request,
		Logger:      log.Component("link"),
	}, link.Options{
		ReconnectInterval:    cfg.Wireless.ReconnectInterval,
		MaxReconnectAttempts: cfg.Wireless.MaxReconnectAttempts,
		ProvisioningTimeout:  cfg.Provisioning.Timeout,
	})

	// MQTT session
	mqttClient := mqtt.New(cfg.MQTT, clientID(cfg))
	mqttClient.SetLogger(log.Component("mqtt"))
	mqttClient.SetOnConnectionLost(func(err error) {
		log.Warn("MQTT connection lost", "error", err)
	})

	sessionMgr := session.NewManager(session.Deps{
		Broker: &sessionBroker{client: mqttClient},
		Link:   linkMgr,
		Logger: log.Component("session"),
	}, session.Options{
		RetryInterval: cfg.MQTT.Session.RetryInterval,
		MaxAttempts:   cfg.MQTT.Session.MaxAttempts,
		CommandTopic:  cfg.Device.CommandTopic,
		ResetAfter:    cfg.MQTT.Session.ResetAfter,
	})
	defer func() {
		log.Info("closing MQTT session")
		if closeErr := sessionMgr.Close(); closeErr != nil {
			log.Error("error closing MQTT session", "error", closeErr)
		}
	}()

	// Lamp
	actuator, closeActuator, err := openActuator(cfg.Light, log.Component("light"))
	if err != nil {
		return err
	}
	defer closeActuator()

	lamp := light.NewController(actuator, light.Options{
		DefaultBrightness: cfg.Light.DefaultBrightness,
		Step:              cfg.Light.Step,
	})
	lamp.SetLogger(log.Component("light"))

	// Buttons (optional hardware)
	var presses <-chan buttons.Button
	if cfg.Buttons.Enabled {
		source, openErr := buttons.Open(cfg.Buttons)
		if openErr != nil {
			log.Warn("buttons unavailable, continuing without them", "error", openErr)
		} else {
			presses = source.Events()
			defer func() {
				if closeErr := source.Close(); closeErr != nil {
					log.Error("error closing buttons", "error", closeErr)
				}
			}()
			log.Info("buttons ready", "chip", cfg.Buttons.Chip)
		}
	}

	notifiers := []orchestrator.Notifier{recorder, journal}

	// InfluxDB (optional)
	var influxClient *influxdb.Client
	if cfg.InfluxDB.Enabled {
		influxClient, err = influxdb.Connect(ctx, cfg.InfluxDB, cfg.Device.ID)
		if err != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", err)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
		notifiers = append(notifiers, &influxNotifier{
			client:   influxClient,
			retries:  linkMgr.RetryCount,
			attempts: sessionMgr.Attempts,
		})
		log.Info("InfluxDB connected", "url", cfg.InfluxDB.URL, "bucket", cfg.InfluxDB.Bucket)
	} else {
		log.Info("InfluxDB disabled")
	}

	// WebSocket hub exists before the orchestrator so status changes can
	// be pushed from the control goroutine.
	var hub *api.Hub
	var onStatus func(orchestrator.Status)
	if cfg.API.Enabled {
		hub = api.NewHub(log.Component("api"))
		go hub.Run(ctx)
		onStatus = hub.BroadcastStatus
	}

	orch := orchestrator.New(orchestrator.Deps{
		Link:      linkMgr,
		Session:   sessionMgr,
		Light:     lamp,
		Store:     store,
		Restart:   restarts.Request,
		Buttons:   presses,
		Notifiers: notifiers,
		Metrics:   recorder,
		Logger:    log.Component("orchestrator"),
		OnStatus:  onStatus,
	}, orchestrator.Options{
		TickInterval:         cfg.Scheduler.TickInterval(),
		LinkCheckInterval:    cfg.Scheduler.LinkCheckInterval,
		SessionCheckInterval: cfg.Scheduler.SessionCheckInterval,
	})

	// Operator API
	if cfg.API.Enabled {
		server, newErr := api.New(api.Deps{
			Config:       cfg.API,
			Logger:       log.Component("api"),
			Orchestrator: orch,
			Provisioning: exchange,
			Journal:      journal,
			Metrics:      recorder.Handler(),
			Panel:        panel.Handler(""),
			ExternalHub:  hub,
			DeviceID:     cfg.Device.ID,
			Version:      version,
		})
		if newErr != nil {
			return fmt.Errorf("creating API server: %w", newErr)
		}
		if startErr := server.Start(ctx); startErr != nil {
			return fmt.Errorf("starting API server: %w", startErr)
		}
		defer func() {
			if closeErr := server.Close(); closeErr != nil {
				log.Error("error closing API server", "error", closeErr)
			}
		}()
	} else {
		log.Info("API disabled")
	}

	if err := healthCheck(ctx, db, influxClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}

	log.Info("initialisation complete",
		"device_id", cfg.Device.ID,
		"command_topic", cfg.Device.CommandTopic,
		"storage", cfg.Storage.Backend,
	)

	if err := orch.Run(ctx); err != nil && ctx.Err() == nil {
		return fmt.Errorf("orchestrator: %w", err)
	}

	if reason, ok := restarts.Reason(); ok {
		log.Warn("restart requested, shutting down", "reason", reason)
		return &restartError{reason: reason, mode: cfg.System.RestartMode}
	}

	log.Info("shutdown signal received, cleaning up")
	return nil
}

// clientIDSuffixLen is how much of a random UUID is appended to the
// device ID when no MQTT client ID is configured.
const clientIDSuffixLen = 8

// clientID returns the configured MQTT client ID, or the device ID with a
// random suffix so two nodes sharing a config do not evict each other.
func clientID(cfg *config.Config) string {
	if cfg.MQTT.Broker.ClientID != "" {
		return cfg.MQTT.Broker.ClientID
	}
	return cfg.Device.ID + "-" + uuid.NewString()[:clientIDSuffixLen]
}

// openStore returns the configured credential backend.
func openStore(cfg *config.Config, db *database.DB) (credentials.Store, error) {
	switch cfg.Storage.Backend {
	case "file":
		return credentials.NewFileStore(cfg.Storage.Path), nil
	case "sqlite":
		return credentials.NewSQLiteStore(db.DB), nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}
}

// openActuator returns the lamp output driver and its cleanup.
func openActuator(cfg config.LightConfig, log *logging.Logger) (light.Actuator, func(), error) {
	if cfg.Actuator != "sysfs" {
		return light.LogActuator{Logger: log}, func() {}, nil
	}

	pwm := light.NewSysfsPWM(cfg.PWM.Chip, cfg.PWM.WhiteChannel, cfg.PWM.YellowChannel, cfg.PWM.PeriodNS)
	if err := pwm.Open(); err != nil {
		return nil, nil, fmt.Errorf("opening PWM outputs: %w", err)
	}
	return pwm, func() {
		if err := pwm.Close(); err != nil {
			log.Error("error closing PWM outputs", "error", err)
		}
	}, nil
}

// healthCheck verifies the infrastructure connections that must be up
// before the loop starts. The MQTT session is opened later by the loop.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//   - db: Database connection to check
//   - influxClient: InfluxDB client to check (may be nil if disabled)
//
// Returns:
//   - error: First health check failure, or nil if all healthy
func healthCheck(ctx context.Context, db *database.DB, influxClient *influxdb.Client) error {
	if err := db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}
	if influxClient != nil {
		if err := influxClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}
	return nil
}
