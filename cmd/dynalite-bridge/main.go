// Dynalite Bridge - Philips Dynalite lighting for Home Assistant over MQTT
//
// This is the main entry point for the bridge. It sits between a Dynalite
// gateway that exposes the DyNet bus on MQTT and Home Assistant:
//   - brightness and level commands become preset recalls on the bus
//   - preset events from the bus become brightness state
//   - every request is correlated with the gateway's acknowledgement
//
// Configuration comes from configs/config.yaml (or DYNALITE_BRIDGE_CONFIG)
// with environment overrides; the area/channel layout lives in a separate
// map document that can be reloaded while running.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/nerrad567/gray-logic-dynalite/internal/api"
	"github.com/nerrad567/gray-logic-dynalite/internal/bridges/dynet"
	"github.com/nerrad567/gray-logic-dynalite/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-dynalite/internal/infrastructure/influxdb"
	"github.com/nerrad567/gray-logic-dynalite/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-dynalite/internal/infrastructure/mqtt"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

func main() {
	// Create a context that cancels on interrupt signals (Ctrl+C, SIGTERM)
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
// Returning an error allows main to handle exit codes consistently.
func run(ctx context.Context) error { //nolint:gocognit // linear startup sequence with paired teardown
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting Dynalite bridge",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	// Load configuration
	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	// Reinitialise logger with config settings
	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)
	log.Debug("mqtt settings", "mqtt", cfg.MQTT.String())

	// Load the Dynalite map
	maps, err := dynet.NewMapStore(cfg.Bridge.MapPath, log)
	if err != nil {
		return fmt.Errorf("loading dynalite map: %w", err)
	}
	log.Info("dynalite map loaded",
		"path", cfg.Bridge.MapPath,
		"areas", len(maps.Map().Areas),
	)

	topics := bridgeTopics(cfg.Bridge)

	// Connect to MQTT broker; the bridge status topic carries the LWT
	mqttClient, err := mqtt.Connect(cfg.MQTT, mqtt.Availability{Topic: topics.BridgeStatus()})
	if err != nil {
		return fmt.Errorf("connecting to MQTT: %w", err)
	}
	defer func() {
		log.Info("disconnecting from MQTT")
		if closeErr := mqttClient.Close(); closeErr != nil {
			log.Error("error closing MQTT", "error", closeErr)
		}
	}()
	mqttClient.SetLogger(log)
	log.Info("MQTT connected",
		"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
		"client_id", cfg.MQTT.Broker.ClientID,
	)

	mqttClient.SetOnConnect(func() {
		log.Info("MQTT reconnected")
	})
	mqttClient.SetOnDisconnect(func(err error) {
		log.Warn("MQTT disconnected", "error", err)
	})

	// Connect to InfluxDB (optional)
	var influxClient *influxdb.Client
	if cfg.InfluxDB.Enabled {
		influxClient, err = influxdb.Connect(cfg.InfluxDB)
		if err != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", err)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)

		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
	} else {
		log.Info("InfluxDB disabled")
	}

	// The hub exists before the bridge so the first events are not lost
	var hub *api.Hub
	if cfg.API.Enabled {
		hub = api.NewHub(log)
		go hub.Run(ctx)
	}

	opts := bridgeOptions(cfg, topics, maps, &mqttBridgeAdapter{client: mqttClient}, log)
	if influxClient != nil {
		opts.Recorder = influxClient
	}
	if hub != nil {
		opts.Events = hub
	}

	bridge, err := dynet.NewBridge(opts)
	if err != nil {
		return fmt.Errorf("creating dynalite bridge: %w", err)
	}
	if err := bridge.Start(ctx); err != nil {
		bridge.Stop()
		return fmt.Errorf("starting dynalite bridge: %w", err)
	}
	defer func() {
		log.Info("stopping dynalite bridge")
		bridge.Stop()
	}()

	// Watch the map file for edits
	if cfg.Bridge.WatchMap {
		if err := maps.Watch(ctx); err != nil {
			log.Warn("map watcher failed to start, reload via API only", "error", err)
		} else {
			log.Info("watching dynalite map", "path", cfg.Bridge.MapPath)
		}
	}

	// Start admin API (optional)
	if cfg.API.Enabled {
		srv, srvErr := api.New(api.Deps{
			Config:  cfg.API,
			Logger:  log,
			Bridge:  bridge,
			Maps:    maps,
			MQTT:    mqttClient,
			Hub:     hub,
			Version: cfg.Bridge.SWVersion,
		})
		if srvErr != nil {
			return fmt.Errorf("creating API server: %w", srvErr)
		}
		if err := srv.Start(ctx); err != nil {
			return fmt.Errorf("starting API server: %w", err)
		}
		defer func() {
			if closeErr := srv.Close(); closeErr != nil {
				log.Error("error closing API server", "error", closeErr)
			}
		}()
	} else {
		log.Info("admin API disabled")
	}

	// Verify all connections are healthy
	if err := healthCheck(ctx, mqttClient, influxClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	log.Info("initialisation complete, waiting for shutdown signal")

	// Wait for shutdown signal
	<-ctx.Done()
	log.Info("shutdown signal received, cleaning up")

	// Deferred calls run in reverse order:
	// 1. API server
	// 2. Bridge (publishes "stopping" health)
	// 3. InfluxDB (if enabled)
	// 4. MQTT (publishes "offline")
	log.Info("Dynalite bridge stopped")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses DYNALITE_BRIDGE_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("DYNALITE_BRIDGE_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// bridgeTopics maps the bridge config onto topic prefixes.
func bridgeTopics(cfg config.BridgeConfig) dynet.Topics {
	return dynet.Topics{
		Bus:           cfg.DynalitePrefix,
		HomeAssistant: cfg.HomeAssistantPrefix,
		BridgeWill:    cfg.BridgeWill,
		GatewayWill:   cfg.DynaliteWill,
	}
}

// bridgeOptions assembles the bridge options from configuration. Recorder
// and Events are left for the caller so a nil client never becomes a
// non-nil interface.
func bridgeOptions(cfg *config.Config, topics dynet.Topics, maps *dynet.MapStore, client dynet.MQTTClient, log *logging.Logger) dynet.BridgeOptions {
	return dynet.BridgeOptions{
		Topics:     topics,
		Maps:       maps,
		MQTTClient: client,
		Builder: dynet.Builder{
			Device: byte(cfg.Packet.Device), //nolint:gosec // validated to 0..255 by config.Validate
			Box:    uint16(cfg.Packet.Box),  //nolint:gosec // validated to 0..65535 by config.Validate
			Join:   byte(cfg.Packet.Join),   //nolint:gosec // validated to 0..255 by config.Validate
		},
		Fade:             cfg.Bridge.FadeDuration(),
		ResponseTTL:      cfg.Bridge.ResponseTTL,
		HealthInterval:   cfg.Bridge.HealthInterval,
		Version:          cfg.Bridge.SWVersion,
		QoS:              byte(cfg.MQTT.QoS), //nolint:gosec // validated to 0..2 by config.Validate
		Logger:           log,
		DisableDiscovery: cfg.Bridge.DisableDiscovery,
	}
}

// healthCheck verifies all infrastructure connections are healthy.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//   - mqttClient: MQTT client to check
//   - influxClient: InfluxDB client to check (may be nil if disabled)
//
// Returns:
//   - error: First health check failure, or nil if all healthy
func healthCheck(ctx context.Context, mqttClient *mqtt.Client, influxClient *influxdb.Client) error {
	// Check MQTT
	if err := mqttClient.HealthCheck(ctx); err != nil {
		return fmt.Errorf("mqtt: %w", err)
	}

	// Check InfluxDB (if enabled)
	if influxClient != nil {
		if err := influxClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}

	return nil
}

// mqttBridgeAdapter adapts the infrastructure MQTT client to the bridge's
// MQTTClient interface. The primary difference is the Subscribe handler signature:
// - Infrastructure mqtt: func(topic, payload []byte) error
// - Dynalite bridge expects: func(topic, payload []byte)
type mqttBridgeAdapter struct {
	client *mqtt.Client
}

// Publish implements dynet.MQTTClient.
func (a *mqttBridgeAdapter) Publish(topic string, payload []byte, qos byte, retained bool) error {
	return a.client.Publish(topic, payload, qos, retained)
}

// Subscribe implements dynet.MQTTClient.
func (a *mqttBridgeAdapter) Subscribe(topic string, qos byte, handler func(topic string, payload []byte)) error {
	// Bridge handlers log their own failures and never return errors
	return a.client.Subscribe(topic, qos, func(t string, p []byte) error {
		handler(t, p)
		return nil
	})
}

// Unsubscribe implements dynet.MQTTClient.
func (a *mqttBridgeAdapter) Unsubscribe(topic string) error {
	return a.client.Unsubscribe(topic)
}

// IsConnected implements dynet.MQTTClient.
func (a *mqttBridgeAdapter) IsConnected() bool {
	return a.client.IsConnected()
}
