// Package mqtt provides MQTT client connectivity for the Dynalite bridge.
//
// This package manages:
//   - Connection to the broker with auto-reconnect
//   - Message publishing with QoS guarantees
//   - Topic subscriptions with wildcard support
//   - Availability: Last Will "offline", retained "online" on connect,
//     retained "offline" on graceful close
//   - Connection health monitoring
//
// # Architecture
//
// The broker carries both sides of the bridge: the Dynalite gateway's
// decoded packets and request envelopes, and Home Assistant's light
// entities.
//
//	Home Assistant ↔ MQTT Broker ↔ dynalite-bridge ↔ MQTT Broker ↔ Dynalite gateway
//
// # Security Considerations
//
//   - TLS is recommended outside a trusted LAN (cfg.Broker.TLS=true)
//   - Credentials are validated against broker ACL
//   - Message payloads are not encrypted beyond TLS transport
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT, mqtt.Availability{Topic: "bridges/light_dynalite/status"})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	err = client.Subscribe("dynalite", 0,
//	    func(topic string, payload []byte) error {
//	        log.Printf("gateway: %s", payload)
//	        return nil
//	    })
//
//	client.Publish("dynalite/set", envelope, 0, false)
package mqtt
