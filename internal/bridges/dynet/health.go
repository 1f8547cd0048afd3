package dynet

import (
	"context"
	"encoding/json"
	"sync"
	"time"
)

// defaultHealthInterval is used when no interval is configured.
const defaultHealthInterval = 30 * time.Second

// HealthReporter manages periodic health status reporting.
// It publishes retained health messages to MQTT at regular intervals.
type HealthReporter struct {
	topic     string
	version   string
	startTime time.Time
	interval  time.Duration
	publisher HealthPublisher
	source    HealthSource

	// Shutdown coordination (stopOnce prevents double-close panics)
	done     chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once

	// Logger (optional)
	logger   Logger
	loggerMu sync.RWMutex
}

// HealthPublisher is the interface for publishing health messages.
// This is typically implemented by an MQTT client.
type HealthPublisher interface {
	// Publish sends a message to a topic with the specified QoS and retention.
	Publish(topic string, payload []byte, qos byte, retained bool) error

	// IsConnected returns true if the publisher is connected.
	IsConnected() bool
}

// HealthSource supplies the figures a health message reports.
type HealthSource interface {
	GatewayOnline() bool
	PendingCount() int
	AreasConfigured() int
}

// HealthReporterConfig holds configuration for the health reporter.
type HealthReporterConfig struct {
	// Topic is where health is published ({bridge_will}/health).
	Topic string

	// Version is the bridge software version.
	Version string

	// Interval is how often to publish health status.
	// Default: 30 seconds.
	Interval time.Duration

	// Publisher is the MQTT client for publishing messages.
	Publisher HealthPublisher

	// Source provides gateway and request figures. Optional.
	Source HealthSource
}

// NewHealthReporter creates a new health reporter.
// Call Start to begin reporting.
func NewHealthReporter(cfg HealthReporterConfig) *HealthReporter {
	interval := cfg.Interval
	if interval <= 0 {
		interval = defaultHealthInterval
	}

	return &HealthReporter{
		topic:     cfg.Topic,
		version:   cfg.Version,
		startTime: time.Now(),
		interval:  interval,
		publisher: cfg.Publisher,
		source:    cfg.Source,
		done:      make(chan struct{}),
	}
}

// Start begins periodic health reporting until ctx is cancelled or Stop is
// called.
func (h *HealthReporter) Start(ctx context.Context) {
	h.wg.Add(1)
	go h.reportLoop(ctx)
}

// Stop gracefully stops health reporting.
// Publishes a final "stopping" status before returning.
// Safe to call multiple times (uses sync.Once).
func (h *HealthReporter) Stop() {
	h.stopOnce.Do(func() {
		close(h.done)
		h.wg.Wait()

		//nolint:errcheck // Best-effort during shutdown
		h.publishStatus(HealthStopping, "bridge stopping")
	})
}

// SetLogger sets the logger for this reporter.
func (h *HealthReporter) SetLogger(logger Logger) {
	h.loggerMu.Lock()
	h.logger = logger
	h.loggerMu.Unlock()
}

// PublishNow publishes the current health status immediately.
func (h *HealthReporter) PublishNow() error {
	status, reason := h.determineStatus()
	return h.publishStatus(status, reason)
}

// Snapshot returns the current health message without publishing it.
func (h *HealthReporter) Snapshot() HealthMessage {
	status, reason := h.determineStatus()
	return h.message(status, reason)
}

func (h *HealthReporter) reportLoop(ctx context.Context) {
	defer h.wg.Done()

	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	if err := h.PublishNow(); err != nil {
		h.logError("failed to publish initial health", err)
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-h.done:
			return
		case <-ticker.C:
			if err := h.PublishNow(); err != nil {
				h.logError("failed to publish health", err)
			}
		}
	}
}

// determineStatus evaluates the current bridge status.
func (h *HealthReporter) determineStatus() (HealthStatus, string) {
	if h.publisher == nil || !h.publisher.IsConnected() {
		return HealthDegraded, "MQTT disconnected"
	}
	if h.source != nil && !h.source.GatewayOnline() {
		return HealthDegraded, "gateway offline"
	}
	return HealthHealthy, ""
}

func (h *HealthReporter) message(status HealthStatus, reason string) HealthMessage {
	var (
		online  bool
		pending int
		areas   int
	)
	if h.source != nil {
		online = h.source.GatewayOnline()
		pending = h.source.PendingCount()
		areas = h.source.AreasConfigured()
	}

	msg := NewHealthMessage(h.version, online, pending, areas, h.startTime)
	msg.Status = status
	msg.Reason = reason
	return msg
}

// publishStatus publishes a health status message (QoS 1, retained).
func (h *HealthReporter) publishStatus(status HealthStatus, reason string) error {
	if h.publisher == nil || h.topic == "" {
		return nil
	}
	payload, err := json.Marshal(h.message(status, reason))
	if err != nil {
		return err
	}
	return h.publisher.Publish(h.topic, payload, 1, true)
}

// logError logs an error if logger is set.
func (h *HealthReporter) logError(msg string, err error) {
	h.loggerMu.RLock()
	logger := h.logger
	h.loggerMu.RUnlock()

	if logger != nil {
		logger.Error(msg, "error", err)
	}
}
