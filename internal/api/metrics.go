package api

import (
	"net/http"
	"runtime"
	"time"
)

// SystemMetrics represents the complete system metrics response.
type SystemMetrics struct {
	Timestamp     string         `json:"timestamp"`
	Version       string         `json:"version"`
	UptimeSeconds int64          `json:"uptime_seconds"`
	Runtime       RuntimeMetrics `json:"runtime"`
	WebSocket     WSMetrics      `json:"websocket"`
	MQTT          MQTTMetrics    `json:"mqtt"`
	Bridge        BridgeMetrics  `json:"bridge"`
}

// RuntimeMetrics contains Go runtime statistics.
type RuntimeMetrics struct {
	Goroutines    int     `json:"goroutines"`
	MemoryAllocMB float64 `json:"memory_alloc_mb"`
	MemoryTotalMB float64 `json:"memory_total_mb"`
	NumGC         uint32  `json:"num_gc"`
}

// WSMetrics contains WebSocket hub statistics.
type WSMetrics struct {
	ConnectedClients int `json:"connected_clients"`
}

// MQTTMetrics contains MQTT client statistics.
type MQTTMetrics struct {
	Connected bool `json:"connected"`
}

// BridgeMetrics contains Dynalite bridge statistics.
type BridgeMetrics struct {
	Status          string `json:"status"`
	GatewayOnline   bool   `json:"gateway_online"`
	PendingRequests int    `json:"pending_requests"`
	AreasConfigured int    `json:"areas_configured"`
}

// bytesPerMB converts bytes to megabytes.
const bytesPerMB = 1024 * 1024

// handleMetrics returns runtime, websocket and bridge figures.
func (s *Server) handleMetrics(w http.ResponseWriter, _ *http.Request) {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	health := s.bridge.Health()

	metrics := SystemMetrics{
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
		Version:       s.version,
		UptimeSeconds: int64(time.Since(s.startTime).Seconds()),
		Runtime: RuntimeMetrics{
			Goroutines:    runtime.NumGoroutine(),
			MemoryAllocMB: float64(mem.Alloc) / bytesPerMB,
			MemoryTotalMB: float64(mem.TotalAlloc) / bytesPerMB,
			NumGC:         mem.NumGC,
		},
		WebSocket: WSMetrics{
			ConnectedClients: s.hub.ClientCount(),
		},
		Bridge: BridgeMetrics{
			Status:          string(health.Status),
			GatewayOnline:   health.GatewayOnline,
			PendingRequests: health.PendingRequests,
			AreasConfigured: health.AreasConfigured,
		},
	}

	// MQTT metrics (if available)
	if s.mqtt != nil {
		metrics.MQTT = MQTTMetrics{
			Connected: s.mqtt.IsConnected(),
		}
	}

	writeJSON(w, http.StatusOK, metrics)
}
