package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// minJWTSecretLen is the shortest accepted HS256 signing secret.
const minJWTSecretLen = 32

// Config is the root configuration structure for the Gray Logic light node.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Device       DeviceConfig       `yaml:"device"`
	Wireless     WirelessConfig     `yaml:"wireless"`
	Provisioning ProvisioningConfig `yaml:"provisioning"`
	MQTT         MQTTConfig         `yaml:"mqtt"`
	Scheduler    SchedulerConfig    `yaml:"scheduler"`
	Storage      StorageConfig      `yaml:"storage"`
	Database     DatabaseConfig     `yaml:"database"`
	InfluxDB     InfluxDBConfig     `yaml:"influxdb"`
	API          APIConfig          `yaml:"api"`
	Light        LightConfig        `yaml:"light"`
	Buttons      ButtonsConfig      `yaml:"buttons"`
	System       SystemConfig       `yaml:"system"`
	Logging      LoggingConfig      `yaml:"logging"`
}

// DeviceConfig identifies this node on the messaging bus.
type DeviceConfig struct {
	ID           string `yaml:"id"`
	Name         string `yaml:"name"`
	CommandTopic string `yaml:"command_topic"`
}

// WirelessConfig contains settings for the wireless association backend.
type WirelessConfig struct {
	// Interface is the wireless network interface (e.g., "wlan0").
	Interface string `yaml:"interface"`

	// WPACLI is the path to the wpa_cli executable.
	WPACLI string `yaml:"wpa_cli"`

	// ControlDir is the wpa_supplicant control socket directory.
	ControlDir string `yaml:"control_dir"`

	// CallTimeoutMS bounds every wpa_cli invocation so a tick never stalls.
	CallTimeoutMS int `yaml:"call_timeout_ms"`

	// ReconnectInterval is the minimum time between reconnection attempts.
	ReconnectInterval time.Duration `yaml:"reconnect_interval"`

	// MaxReconnectAttempts is the retry budget before falling back to provisioning.
	MaxReconnectAttempts int `yaml:"max_reconnect_attempts"`

	// Supplicant configures the optional supervised wpa_supplicant daemon.
	Supplicant SupplicantConfig `yaml:"supplicant"`
}

// SupplicantConfig contains settings for managing the wpa_supplicant daemon.
type SupplicantConfig struct {
	// Managed indicates whether the light node should run wpa_supplicant itself.
	// If false, wpa_supplicant is expected to be running as a system service.
	Managed bool `yaml:"managed"`

	// Binary is the path to the wpa_supplicant executable.
	Binary string `yaml:"binary"`

	// ConfigFile is the wpa_supplicant configuration file.
	ConfigFile string `yaml:"config_file"`

	// Driver is the wpa_supplicant driver name (e.g., "nl80211").
	Driver string `yaml:"driver"`

	// RestartDelaySeconds is the time to wait before restarting a crashed daemon.
	RestartDelaySeconds int `yaml:"restart_delay_seconds"`

	// MaxRestartAttempts limits restart attempts. 0 means unlimited.
	MaxRestartAttempts int `yaml:"max_restart_attempts"`
}

// ProvisioningConfig contains zero-touch provisioning settings.
type ProvisioningConfig struct {
	// Timeout is how long provisioning may run before the node restarts.
	Timeout time.Duration `yaml:"timeout"`

	// Advertise enables mDNS advertisement while provisioning is active.
	Advertise bool `yaml:"advertise"`

	// ServiceType is the DNS-SD service type advertised (e.g., "_lightnode._tcp").
	ServiceType string `yaml:"service_type"`

	// Instance is the DNS-SD instance name. Defaults to the device ID.
	Instance string `yaml:"instance"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Broker    MQTTBrokerConfig  `yaml:"broker"`
	Auth      MQTTAuthConfig    `yaml:"auth"`
	KeepAlive int               `yaml:"keepalive"`
	Session   MQTTSessionConfig `yaml:"session"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTSessionConfig contains session open retry settings.
type MQTTSessionConfig struct {
	RetryInterval time.Duration `yaml:"retry_interval"`
	MaxAttempts   int           `yaml:"max_attempts"`

	// ResetAfter re-arms the attempt counter this long after the retry budget
	// is exhausted. Zero keeps the session closed until an operator reset.
	ResetAfter time.Duration `yaml:"reset_after"`
}

// SchedulerConfig contains the orchestrator cadences.
type SchedulerConfig struct {
	TickMS               int           `yaml:"tick_ms"`
	LinkCheckInterval    time.Duration `yaml:"link_check_interval"`
	SessionCheckInterval time.Duration `yaml:"session_check_interval"`
}

// StorageConfig selects where network credentials are persisted.
type StorageConfig struct {
	// Backend is "file" (fixed-layout record) or "sqlite".
	Backend string `yaml:"backend"`

	// Path is the record file for the file backend.
	Path string `yaml:"path"`
}

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	Path          string `yaml:"path"`
	WALMode       bool   `yaml:"wal_mode"`
	BusyTimeout   int    `yaml:"busy_timeout"`
	RetentionDays int    `yaml:"retention_days"`
}

// InfluxDBConfig contains InfluxDB connection settings.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// APIConfig contains HTTP API server settings.
type APIConfig struct {
	Enabled  bool             `yaml:"enabled"`
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
	Auth     APIAuthConfig    `yaml:"auth"`
}

// APIAuthConfig controls operator tokens on the HTTP API.
// An empty JWTSecret leaves the API open to the local network.
type APIAuthConfig struct {
	JWTSecret string `yaml:"jwt_secret"`

	// TokenTTLMinutes is the lifetime of tokens minted by "lightnode token".
	TokenTTLMinutes int `yaml:"token_ttl_minutes"`
}

// APITimeoutConfig contains HTTP timeout settings.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// LightConfig contains lamp output settings.
type LightConfig struct {
	// Actuator is "log" (no hardware) or "sysfs" (Linux PWM class).
	Actuator          string    `yaml:"actuator"`
	DefaultBrightness int       `yaml:"default_brightness"`
	Step              int       `yaml:"step"`
	PWM               PWMConfig `yaml:"pwm"`
}

// PWMConfig describes the two sysfs PWM channels driving the lamp.
type PWMConfig struct {
	Chip          string `yaml:"chip"`
	WhiteChannel  int    `yaml:"white_channel"`
	YellowChannel int    `yaml:"yellow_channel"`
	PeriodNS      int    `yaml:"period_ns"`
}

// ButtonsConfig contains the physical button wiring.
type ButtonsConfig struct {
	Enabled    bool   `yaml:"enabled"`
	Chip       string `yaml:"chip"`
	Power      int    `yaml:"power"`
	Up         int    `yaml:"up"`
	Down       int    `yaml:"down"`
	DebounceMS int    `yaml:"debounce_ms"`
}

// SystemConfig contains host integration settings.
type SystemConfig struct {
	// RestartMode is "exit" (leave restart to the service manager) or "reboot".
	RestartMode string `yaml:"restart_mode"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: LIGHTNODE_SECTION_KEY
// For example: LIGHTNODE_MQTT_HOST, LIGHTNODE_WIFI_INTERFACE
//
// Parameters:
//   - path: Path to the YAML configuration file
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If file cannot be read, parsed, or validation fails
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// Default returns a Config with the values the firmware shipped with.
func Default() *Config {
	return &Config{
		Device: DeviceConfig{
			ID:           "lightnode-001",
			Name:         "Smart Light",
			CommandTopic: "led002",
		},
		Wireless: WirelessConfig{
			Interface:            "wlan0",
			WPACLI:               "/usr/sbin/wpa_cli",
			ControlDir:           "/run/wpa_supplicant",
			CallTimeoutMS:        2000,
			ReconnectInterval:    5 * time.Second,
			MaxReconnectAttempts: 10,
			Supplicant: SupplicantConfig{
				Binary:              "/usr/sbin/wpa_supplicant",
				ConfigFile:          "/etc/wpa_supplicant/wpa_supplicant-wlan0.conf",
				Driver:              "nl80211",
				RestartDelaySeconds: 5,
				MaxRestartAttempts:  10,
			},
		},
		Provisioning: ProvisioningConfig{
			Timeout:     180 * time.Second,
			Advertise:   true,
			ServiceType: "_lightnode._tcp",
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host: "bemfa.com",
				Port: 9501,
			},
			KeepAlive: 60,
			Session: MQTTSessionConfig{
				RetryInterval: 5 * time.Second,
				MaxAttempts:   10,
			},
		},
		Scheduler: SchedulerConfig{
			TickMS:               10,
			LinkCheckInterval:    10 * time.Second,
			SessionCheckInterval: 2 * time.Second,
		},
		Storage: StorageConfig{
			Backend: "file",
			Path:    "./data/credentials.bin",
		},
		Database: DatabaseConfig{
			Path:          "./data/lightnode.db",
			WALMode:       true,
			BusyTimeout:   5,
			RetentionDays: 30,
		},
		API: APIConfig{
			Enabled: true,
			Host:    "0.0.0.0",
			Port:    8080,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
			Auth: APIAuthConfig{
				TokenTTLMinutes: 24 * 60,
			},
		},
		Light: LightConfig{
			Actuator:          "log",
			DefaultBrightness: 50,
			Step:              10,
			PWM: PWMConfig{
				Chip:          "/sys/class/pwm/pwmchip0",
				WhiteChannel:  0,
				YellowChannel: 1,
				PeriodNS:      43478, // ~23 kHz
			},
		},
		Buttons: ButtonsConfig{
			Chip:       "gpiochip0",
			Power:      5,
			Up:         4,
			Down:       2,
			DebounceMS: 50,
		},
		System: SystemConfig{
			RestartMode: "exit",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: LIGHTNODE_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	// Device
	if v := os.Getenv("LIGHTNODE_DEVICE_ID"); v != "" {
		cfg.Device.ID = v
	}
	if v := os.Getenv("LIGHTNODE_COMMAND_TOPIC"); v != "" {
		cfg.Device.CommandTopic = v
	}

	// Wireless
	if v := os.Getenv("LIGHTNODE_WIFI_INTERFACE"); v != "" {
		cfg.Wireless.Interface = v
	}

	// MQTT
	if v := os.Getenv("LIGHTNODE_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("LIGHTNODE_MQTT_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.MQTT.Broker.Port = port
		}
	}
	if v := os.Getenv("LIGHTNODE_MQTT_CLIENT_ID"); v != "" {
		cfg.MQTT.Broker.ClientID = v
	}
	if v := os.Getenv("LIGHTNODE_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("LIGHTNODE_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// Storage
	if v := os.Getenv("LIGHTNODE_STORAGE_PATH"); v != "" {
		cfg.Storage.Path = v
	}
	if v := os.Getenv("LIGHTNODE_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	// API
	if v := os.Getenv("LIGHTNODE_API_JWT_SECRET"); v != "" {
		cfg.API.Auth.JWTSecret = v
	}

	// InfluxDB
	if v := os.Getenv("LIGHTNODE_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}
}

// Validate checks the configuration for errors.
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	// Device validation
	if c.Device.ID == "" {
		errs = append(errs, "device.id is required")
	}
	if c.Device.CommandTopic == "" {
		errs = append(errs, "device.command_topic is required")
	}

	// Wireless validation
	if c.Wireless.Interface == "" {
		errs = append(errs, "wireless.interface is required")
	}
	if c.Wireless.ReconnectInterval <= 0 {
		errs = append(errs, "wireless.reconnect_interval must be positive")
	}
	if c.Wireless.MaxReconnectAttempts < 1 {
		errs = append(errs, "wireless.max_reconnect_attempts must be at least 1")
	}
	if c.Provisioning.Timeout <= 0 {
		errs = append(errs, "provisioning.timeout must be positive")
	}

	// MQTT validation
	if c.MQTT.Broker.Host == "" {
		errs = append(errs, "mqtt.broker.host is required")
	}
	if c.MQTT.Broker.Port < 1 || c.MQTT.Broker.Port > 65535 {
		errs = append(errs, "mqtt.broker.port must be between 1 and 65535")
	}
	if c.MQTT.Session.RetryInterval <= 0 {
		errs = append(errs, "mqtt.session.retry_interval must be positive")
	}
	if c.MQTT.Session.MaxAttempts < 1 {
		errs = append(errs, "mqtt.session.max_attempts must be at least 1")
	}

	// Scheduler validation
	if c.Scheduler.TickMS < 1 {
		errs = append(errs, "scheduler.tick_ms must be at least 1")
	}
	if c.Scheduler.LinkCheckInterval <= 0 || c.Scheduler.SessionCheckInterval <= 0 {
		errs = append(errs, "scheduler intervals must be positive")
	}

	// Storage validation
	switch c.Storage.Backend {
	case "file":
		if c.Storage.Path == "" {
			errs = append(errs, "storage.path is required for the file backend")
		}
	case "sqlite":
		if c.Database.Path == "" {
			errs = append(errs, "database.path is required for the sqlite backend")
		}
	default:
		errs = append(errs, "storage.backend must be \"file\" or \"sqlite\"")
	}

	// API validation
	if c.API.Enabled && (c.API.Port < 1 || c.API.Port > 65535) {
		errs = append(errs, "api.port must be between 1 and 65535")
	}
	if s := c.API.Auth.JWTSecret; s != "" && len(s) < minJWTSecretLen {
		errs = append(errs, fmt.Sprintf("api.auth.jwt_secret must be at least %d characters", minJWTSecretLen))
	}

	// Light validation
	switch c.Light.Actuator {
	case "log", "sysfs":
	default:
		errs = append(errs, "light.actuator must be \"log\" or \"sysfs\"")
	}
	if c.Light.DefaultBrightness < 1 || c.Light.DefaultBrightness > 100 {
		errs = append(errs, "light.default_brightness must be between 1 and 100")
	}

	// System validation
	switch c.System.RestartMode {
	case "exit", "reboot":
	default:
		errs = append(errs, "system.restart_mode must be \"exit\" or \"reboot\"")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// CallTimeout returns the wpa_cli call timeout as a Duration.
func (w WirelessConfig) CallTimeout() time.Duration {
	return time.Duration(w.CallTimeoutMS) * time.Millisecond
}

// TickInterval returns the orchestrator tick cadence as a Duration.
func (s SchedulerConfig) TickInterval() time.Duration {
	return time.Duration(s.TickMS) * time.Millisecond
}

// GetReadTimeout returns the API read timeout as a Duration.
func (c *Config) GetReadTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Read) * time.Second
}

// GetWriteTimeout returns the API write timeout as a Duration.
func (c *Config) GetWriteTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Write) * time.Second
}

// GetIdleTimeout returns the API idle timeout as a Duration.
func (c *Config) GetIdleTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Idle) * time.Second
}
