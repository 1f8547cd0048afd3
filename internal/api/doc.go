// Package api implements the admin HTTP API and WebSocket event stream for
// the Dynalite bridge.
//
// This package provides:
//   - Health, pending request and runtime metrics endpoints
//   - Read and replace of the Dynalite map document
//   - Home Assistant discovery republish
//   - WebSocket hub broadcasting bridge events as they happen
//   - Middleware stack (request ID, logging, recovery, body limit)
//
// # Architecture
//
// The API sits beside the bridge, not in front of it: MQTT carries every
// command and state change, and this server only observes and administers.
// The Hub doubles as the bridge's dynet.EventSink, so brightness
// publications, failed and expired requests, and map reloads reach
// WebSocket clients without touching the broker.
//
// # Endpoints
//
//	GET  /api/v1/health       bridge health report
//	GET  /api/v1/metrics      runtime, websocket and bridge figures
//	GET  /api/v1/requests     outstanding correlated requests
//	GET  /api/v1/areas        configured areas with effective levels
//	GET  /api/v1/map          current map document (YAML)
//	PUT  /api/v1/map          validate, persist and apply a new map
//	POST /api/v1/map/reload   re-read the map file
//	POST /api/v1/discovery    republish discovery configs
//	GET  /api/v1/ws           event stream
//
// # Security
//
// There is no authentication. Bind the listener to a trusted interface.
package api
