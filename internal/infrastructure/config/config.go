package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for the Dynalite bridge.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	MQTT     MQTTConfig     `yaml:"mqtt"`
	Bridge   BridgeConfig   `yaml:"bridge"`
	Packet   PacketConfig   `yaml:"packet"`
	API      APIConfig      `yaml:"api"`
	InfluxDB InfluxDBConfig `yaml:"influxdb"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	QoS       int                 `yaml:"qos"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`
}

// String renders the MQTT settings with credentials redacted.
func (m MQTTConfig) String() string {
	password := ""
	if m.Auth.Password != "" {
		password = "[redacted]"
	}
	return fmt.Sprintf("mqtt{host=%s port=%d tls=%t client_id=%s username=%s password=%s qos=%d}",
		m.Broker.Host, m.Broker.Port, m.Broker.TLS, m.Broker.ClientID, m.Auth.Username, password, m.QoS)
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

// MQTTReconnectConfig contains MQTT reconnection settings.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
	MaxAttempts  int `yaml:"max_attempts"`
}

// BridgeConfig contains the topic prefixes and translation settings.
type BridgeConfig struct {
	// DynalitePrefix is the gateway's topic prefix (events, requests, acks).
	DynalitePrefix string `yaml:"dynalite_prefix"`

	// HomeAssistantPrefix is the Home Assistant entity prefix.
	HomeAssistantPrefix string `yaml:"homeassistant_prefix"`

	// BridgeWill is the prefix for this bridge's status and health topics.
	BridgeWill string `yaml:"bridge_will"`

	// DynaliteWill is the gateway's availability topic.
	// Empty means "<dynalite_prefix>/status".
	DynaliteWill string `yaml:"dynalite_will"`

	// MapPath is the Dynalite map document.
	MapPath string `yaml:"map_path"`

	// WatchMap reloads the map when the file changes.
	WatchMap bool `yaml:"watch_map"`

	// ResponseTTL is how long a request waits for its acknowledgement.
	ResponseTTL time.Duration `yaml:"response_ttl"`

	// HealthInterval is how often health is published.
	HealthInterval time.Duration `yaml:"health_interval"`

	// Fade is the preset recall fade in hundredths of a second.
	Fade int `yaml:"fade"`

	// DisableDiscovery suppresses Home Assistant discovery configs.
	DisableDiscovery bool `yaml:"disable_discovery"`

	// SWVersion is reported in health and discovery.
	SWVersion string `yaml:"sw_version"`
}

// FadeDuration returns the configured fade as a Duration.
func (b BridgeConfig) FadeDuration() time.Duration {
	return time.Duration(b.Fade) * 10 * time.Millisecond
}

// PacketConfig holds the packet template fields.
type PacketConfig struct {
	Device int `yaml:"device"`
	Box    int `yaml:"box"`
	Join   int `yaml:"join"`
}

// APIConfig contains admin HTTP API server settings.
type APIConfig struct {
	Enabled  bool             `yaml:"enabled"`
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
}

// APITimeoutConfig contains HTTP timeout settings.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
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
//  2. YAML file values (override defaults), if the file exists
//  3. Environment variables (override file values)
//
// A missing file is not an error: the bridge can be configured from the
// environment alone (MQTT_HOST, MQTT_DYNALITE_PREFIX, CONFIG_PATH, ...).
//
// Parameters:
//   - path: Path to the YAML configuration file
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If the file cannot be read or parsed, or validation fails
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		// Defaults and environment only.
	case err != nil:
		return nil, fmt.Errorf("reading config file: %w", err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, fmt.Errorf("applying environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "dynalite-bridge",
			},
			QoS: 0,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
				MaxAttempts:  0,
			},
		},
		Bridge: BridgeConfig{
			DynalitePrefix:      "dynalite",
			HomeAssistantPrefix: "homeassistant",
			BridgeWill:          "bridges/light_dynalite",
			MapPath:             "dynalite_map.yaml",
			WatchMap:            true,
			ResponseTTL:         15 * time.Second,
			HealthInterval:      30 * time.Second,
			Fade:                50,
			SWVersion:           "0.1a",
		},
		Packet: PacketConfig{
			Device: 0xBB,
			Box:    8,
			Join:   0xFF,
		},
		API: APIConfig{
			Enabled: true,
			Host:    "0.0.0.0",
			Port:    8915,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
		},
		InfluxDB: InfluxDBConfig{
			BatchSize:     100,
			FlushInterval: 10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
func applyEnvOverrides(cfg *Config) error {
	var errs []string

	// MQTT
	if v := os.Getenv("MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("MQTT_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Sprintf("MQTT_PORT %q is not a number", v))
		} else {
			cfg.MQTT.Broker.Port = port
		}
	}
	if v := os.Getenv("MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}
	if truthy(os.Getenv("MQTT_DEBUG")) {
		cfg.Logging.Level = "debug"
	}

	// Bridge
	if v := os.Getenv("MQTT_DYNALITE_PREFIX"); v != "" {
		cfg.Bridge.DynalitePrefix = v
	}
	if v := os.Getenv("MQTT_HOMEASSISTANT_PREFIX"); v != "" {
		cfg.Bridge.HomeAssistantPrefix = v
	}
	if v := os.Getenv("MQTT_BRIDGE_WILL"); v != "" {
		cfg.Bridge.BridgeWill = v
	}
	if v := os.Getenv("MQTT_DYNALITE_WILL"); v != "" {
		cfg.Bridge.DynaliteWill = v
	}
	if v := os.Getenv("SW_VER"); v != "" {
		cfg.Bridge.SWVersion = v
	}
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		cfg.Bridge.MapPath = v
	}

	// API
	if v := os.Getenv("CONFIG_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Sprintf("CONFIG_PORT %q is not a number", v))
		} else {
			cfg.API.Port = port
		}
	}

	// InfluxDB
	if v := os.Getenv("DYNALITE_BRIDGE_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}

	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}

// truthy interprets loose boolean env flags.
func truthy(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}

// Validate checks the configuration for errors.
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	// MQTT validation
	if c.MQTT.Broker.Host == "" {
		errs = append(errs, "mqtt.broker.host is required")
	}
	if c.MQTT.Broker.Port < 1 || c.MQTT.Broker.Port > 65535 {
		errs = append(errs, "mqtt.broker.port must be between 1 and 65535")
	}
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}

	// Bridge validation
	for name, prefix := range map[string]string{
		"bridge.dynalite_prefix":      c.Bridge.DynalitePrefix,
		"bridge.homeassistant_prefix": c.Bridge.HomeAssistantPrefix,
		"bridge.bridge_will":          c.Bridge.BridgeWill,
	} {
		if prefix == "" {
			errs = append(errs, name+" is required")
		} else if strings.ContainsAny(prefix, "+#") {
			errs = append(errs, name+" must not contain MQTT wildcards")
		}
	}
	if c.Bridge.MapPath == "" {
		errs = append(errs, "bridge.map_path is required")
	}
	if c.Bridge.ResponseTTL <= 0 {
		errs = append(errs, "bridge.response_ttl must be positive")
	}
	if c.Bridge.HealthInterval <= 0 {
		errs = append(errs, "bridge.health_interval must be positive")
	}
	if c.Bridge.Fade < 0 || c.Bridge.Fade > 0xFFFFFF {
		errs = append(errs, "bridge.fade must be between 0 and 16777215 hundredths")
	}

	// Packet validation
	if c.Packet.Device < 0 || c.Packet.Device > 0xFF {
		errs = append(errs, "packet.device must be between 0 and 255")
	}
	if c.Packet.Box < 0 || c.Packet.Box > 0xFFFF {
		errs = append(errs, "packet.box must be between 0 and 65535")
	}
	if c.Packet.Join < 0 || c.Packet.Join > 0xFF {
		errs = append(errs, "packet.join must be between 0 and 255")
	}

	// API validation
	if c.API.Enabled && (c.API.Port < 1 || c.API.Port > 65535) {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	// InfluxDB validation
	if c.InfluxDB.Enabled {
		if c.InfluxDB.URL == "" {
			errs = append(errs, "influxdb.url is required when influxdb is enabled")
		}
		if c.InfluxDB.Org == "" || c.InfluxDB.Bucket == "" {
			errs = append(errs, "influxdb.org and influxdb.bucket are required when influxdb is enabled")
		}
	}

	if len(errs) > 0 {
		sort.Strings(errs)
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
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
