// Package config handles loading and validating the Dynalite bridge configuration.
//
// This package manages:
//   - Loading configuration from an optional YAML file
//   - Overriding with environment variables
//   - Validation of topic prefixes, packet template and listeners
//   - Default value handling
//
// Environment variables keep the names used by existing deployments of the
// bridge: MQTT_HOST, MQTT_PORT, MQTT_USERNAME, MQTT_PASSWORD,
// MQTT_DYNALITE_PREFIX, MQTT_HOMEASSISTANT_PREFIX, MQTT_BRIDGE_WILL,
// MQTT_DYNALITE_WILL, MQTT_DEBUG, SW_VER, CONFIG_PATH (map document) and
// CONFIG_PORT (admin API). DYNALITE_BRIDGE_INFLUXDB_TOKEN sets the InfluxDB
// token.
//
// Security Considerations:
//   - Sensitive values (passwords, tokens) should be set via environment variables
//   - MQTTConfig.String redacts the broker password
//
// Usage:
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.Bridge.DynalitePrefix)
package config
