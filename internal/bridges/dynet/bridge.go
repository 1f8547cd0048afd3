package dynet

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// Bridge operation constants.
const (
	// DefaultFade is the fade used for preset recalls.
	DefaultFade = 500 * time.Millisecond

	// maxBrightness is the top of the Home Assistant brightness scale.
	maxBrightness = 255

	// stateQoS is used for brightness state publications.
	stateQoS = 0

	// discoveryQoS is used for retained discovery configs.
	discoveryQoS = 1

	gatewayOnlinePayload = "online"
)

// Logger is the structured logging interface used by this package.
// It is satisfied by logging.Logger and *slog.Logger.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

// MQTTClient is the interface for MQTT operations.
// This allows mocking in tests and flexibility in implementation.
type MQTTClient interface {
	// Publish sends a message to a topic.
	Publish(topic string, payload []byte, qos byte, retained bool) error

	// Subscribe registers a handler for a topic pattern.
	Subscribe(topic string, qos byte, handler func(topic string, payload []byte)) error

	// Unsubscribe removes a subscription.
	Unsubscribe(topic string) error

	// IsConnected returns true if connected to the broker.
	IsConnected() bool
}

// BridgeOptions holds configuration for creating a bridge.
type BridgeOptions struct {
	// Topics holds the MQTT prefixes. Zero fields take the defaults.
	Topics Topics

	// Maps provides the current Dynalite map.
	Maps *MapStore

	// MQTTClient is the MQTT client implementation.
	MQTTClient MQTTClient

	// Builder is the packet template. Zero value means NewBuilder().
	Builder Builder

	// Fade is the preset recall fade. Default: DefaultFade.
	Fade time.Duration

	// ResponseTTL bounds how long a request waits for its ack.
	// Default: DefaultResponseTTL.
	ResponseTTL time.Duration

	// HealthInterval is how often health is published. Default 30 s.
	HealthInterval time.Duration

	// Version is reported in health and discovery.
	Version string

	// QoS for subscriptions and requests.
	QoS byte

	// Logger is optional structured logger.
	Logger Logger

	// Recorder is optional request outcome telemetry.
	Recorder RequestRecorder

	// Events is optional live event sink.
	Events EventSink

	// DisableDiscovery suppresses Home Assistant discovery configs.
	DisableDiscovery bool
}

// Bridge translates between Home Assistant MQTT topics and the Dynalite
// gateway. It handles:
//   - brightness, level and climate commands from Home Assistant
//   - preset events from the gateway, published back as brightness
//   - request/acknowledgement correlation
//   - discovery, gateway availability and health reporting
//
// Thread Safety: All methods are safe for concurrent use.
type Bridge struct {
	topics  Topics
	maps    *MapStore
	mqtt    MQTTClient
	builder Builder
	fade    time.Duration
	qos     byte
	version string

	correlator *Correlator
	health     *HealthReporter
	events     EventSink
	discovery  bool

	gatewayOnline atomic.Bool
	started       atomic.Bool

	subMu      sync.Mutex
	subscribed []string

	// Shutdown coordination
	done     chan struct{}
	stopOnce sync.Once

	// Logger
	logger   Logger
	loggerMu sync.RWMutex
}

// NewBridge creates a new bridge instance.
// Call Start() to begin operation.
func NewBridge(opts BridgeOptions) (*Bridge, error) {
	if opts.MQTTClient == nil {
		return nil, fmt.Errorf("MQTT client is required")
	}
	if opts.Maps == nil || opts.Maps.Map() == nil {
		return nil, fmt.Errorf("map store is required")
	}

	topics := opts.Topics
	defaults := DefaultTopics()
	if topics.Bus == "" {
		topics.Bus = defaults.Bus
	}
	if topics.HomeAssistant == "" {
		topics.HomeAssistant = defaults.HomeAssistant
	}
	if topics.BridgeWill == "" {
		topics.BridgeWill = defaults.BridgeWill
	}

	builder := opts.Builder
	if builder == (Builder{}) {
		builder = NewBuilder()
	}
	fade := opts.Fade
	if fade <= 0 {
		fade = DefaultFade
	}

	b := &Bridge{
		topics:    topics,
		maps:      opts.Maps,
		mqtt:      opts.MQTTClient,
		builder:   builder,
		fade:      fade,
		qos:       opts.QoS,
		version:   opts.Version,
		events:    opts.Events,
		discovery: !opts.DisableDiscovery,
		done:      make(chan struct{}),
		logger:    opts.Logger,
	}

	corr, err := NewCorrelator(CorrelatorConfig{
		Topic:     topics.Request(),
		TTL:       opts.ResponseTTL,
		QoS:       opts.QoS,
		Publisher: opts.MQTTClient,
		Logger:    opts.Logger,
		Recorder:  opts.Recorder,
		Events:    opts.Events,
	})
	if err != nil {
		return nil, fmt.Errorf("creating correlator: %w", err)
	}
	b.correlator = corr

	b.health = NewHealthReporter(HealthReporterConfig{
		Topic:     topics.Health(),
		Version:   opts.Version,
		Interval:  opts.HealthInterval,
		Publisher: opts.MQTTClient,
		Source:    b,
	})
	if opts.Logger != nil {
		b.health.SetLogger(opts.Logger)
	}

	return b, nil
}

// Start subscribes to command, event, ack and gateway status topics, starts
// the request sweep and health reporting, and publishes discovery.
// A bridge can be started once.
func (b *Bridge) Start(ctx context.Context) error {
	if b.started.Swap(true) {
		return errors.New("bridge already started")
	}

	subs := []struct {
		topic   string
		handler func(string, []byte)
	}{
		{b.topics.LightCommandSubscribe(CommandBrightness), b.handleBrightnessSet},
		{b.topics.LightCommandSubscribe(CommandLevel), b.handleLevelSet},
		{b.topics.ClimateCommandSubscribe(), b.handleClimateSet},
		{b.topics.BusEvents(), b.handleBusEvent},
		{b.topics.AckSubscribe(), b.handleAck},
		{b.topics.GatewayStatus(), b.handleGatewayStatus},
	}
	for _, s := range subs {
		if err := b.mqtt.Subscribe(s.topic, b.qos, b.guard(s.handler)); err != nil {
			return fmt.Errorf("subscribe to %s: %w", s.topic, err)
		}
		b.subMu.Lock()
		b.subscribed = append(b.subscribed, s.topic)
		b.subMu.Unlock()
		b.logInfo("subscribed", "topic", s.topic)
	}

	b.correlator.Start(ctx)

	b.maps.OnReload(b.onMapReload)
	if b.discovery {
		b.PublishDiscovery()
	}

	b.health.Start(ctx)

	b.logInfo("bridge started",
		"bus_prefix", b.topics.Bus,
		"ha_prefix", b.topics.HomeAssistant,
		"areas", len(b.maps.Map().Areas))
	return nil
}

// Stop gracefully shuts down the bridge.
func (b *Bridge) Stop() {
	b.stopOnce.Do(func() {
		close(b.done)
		b.unsubscribeAll()
		b.correlator.Stop()

		// Publishes "stopping" status
		b.health.Stop()

		b.logInfo("bridge stopped", "pending_requests", b.correlator.Len())
	})
}

// unsubscribeAll removes the bridge's subscriptions. Failures are logged;
// guard still drops anything delivered afterwards.
func (b *Bridge) unsubscribeAll() {
	b.subMu.Lock()
	topics := b.subscribed
	b.subscribed = nil
	b.subMu.Unlock()

	for _, topic := range topics {
		if err := b.mqtt.Unsubscribe(topic); err != nil {
			b.logWarn("failed to unsubscribe", "topic", topic, "error", err)
		}
	}
}

// guard drops messages after Stop.
func (b *Bridge) guard(h func(string, []byte)) func(string, []byte) {
	return func(topic string, payload []byte) {
		select {
		case <-b.done:
			return
		default:
		}
		h(topic, payload)
	}
}

// GatewayOnline reports the last availability published by the gateway.
func (b *Bridge) GatewayOnline() bool {
	return b.gatewayOnline.Load()
}

// PendingRequests returns outstanding correlated requests.
func (b *Bridge) PendingRequests() []PendingRequest {
	return b.correlator.Pending()
}

// PendingCount returns the number of outstanding requests.
func (b *Bridge) PendingCount() int {
	return b.correlator.Len()
}

// AreasConfigured returns the number of areas in the current map.
func (b *Bridge) AreasConfigured() int {
	return len(b.maps.Map().Areas)
}

// Health returns the current health report.
func (b *Bridge) Health() HealthMessage {
	return b.health.Snapshot()
}

// Version returns the bridge version string.
func (b *Bridge) Version() string {
	return b.version
}

// Topics returns the bridge's resolved topics.
func (b *Bridge) Topics() Topics {
	return b.topics
}

// handleBrightnessSet translates a Home Assistant brightness command into
// preset recalls on both wire variants, a current-preset request, and an
// optimistic brightness publication.
func (b *Bridge) handleBrightnessSet(topic string, payload []byte) {
	cmd, err := b.topics.ParseLightCommand(topic)
	if err != nil {
		b.logWarn("ignoring brightness command", "topic", topic, "error", err)
		return
	}
	brightness, err := parseBrightness(payload)
	if err != nil {
		b.logWarn("ignoring brightness command", "topic", topic, "error", err)
		return
	}

	m := b.maps.Map()
	preset, level, err := m.ResolveBrightness(cmd.Area, cmd.Channel, brightness)
	if err != nil {
		b.logWarn("no presets/levels for channel, dropping command",
			"area", cmd.Area, "channel", cmd.Channel.String(), "error", err)
		return
	}

	b.logInfo("brightness command",
		"area", cmd.Area,
		"channel", cmd.Channel.String(),
		"brightness", brightness,
		"preset", preset,
		"level", level)

	comment := fmt.Sprintf("area %d channel %s brightness %d -> preset %d", cmd.Area, cmd.Channel, brightness, preset)

	b.issue(VariantV2, comment, func() (Body, error) {
		return b.builder.AreaPresetV2(cmd.Area, cmd.Channel, preset, b.fade)
	})
	b.issue(VariantV1, comment, func() (Body, error) {
		return b.builder.SetPresetV1(cmd.Area, cmd.Channel, preset, b.fade)
	})
	b.issue(VariantV1, "confirm "+comment, func() (Body, error) {
		return b.builder.RequestCurrentPresetV1(cmd.Area, cmd.Channel)
	})

	b.publishPreset(m, cmd.Area, cmd.Channel, preset)
}

// handleLevelSet translates a percentage into a DyNet2 channel level.
func (b *Bridge) handleLevelSet(topic string, payload []byte) {
	cmd, err := b.topics.ParseLightCommand(topic)
	if err != nil {
		b.logWarn("ignoring level command", "topic", topic, "error", err)
		return
	}
	percent, err := parseNumber(strings.TrimSuffix(strings.TrimSpace(string(payload)), "%"))
	if err != nil {
		b.logWarn("ignoring level command", "topic", topic, "error", err)
		return
	}

	comment := fmt.Sprintf("area %d channel %s level %g%%", cmd.Area, cmd.Channel, percent)
	b.issue(VariantV2, comment, func() (Body, error) {
		return b.builder.ChannelLevelV2(cmd.Area, cmd.Channel, percent, b.fade)
	})
}

// handleClimateSet translates setpoint and temperature commands.
func (b *Bridge) handleClimateSet(topic string, payload []byte) {
	cmd, err := b.topics.ParseClimateCommand(topic)
	if err != nil {
		b.logWarn("ignoring climate command", "topic", topic, "error", err)
		return
	}
	value, err := parseNumber(strings.TrimSpace(string(payload)))
	if err != nil {
		b.logWarn("ignoring climate command", "topic", topic, "error", err)
		return
	}

	var build func(int, byte, float64) (Body, error)
	switch cmd.Kind {
	case CommandSetpoint:
		build = b.builder.Setpoint
	case CommandTemperature:
		build = b.builder.Temperature
	default:
		b.logWarn("ignoring climate command", "topic", topic, "error", fmt.Errorf("%w: unknown kind %q", ErrInvalidTopic, cmd.Kind))
		return
	}

	comment := fmt.Sprintf("area %d join %d %s %g", cmd.Area, cmd.Join, cmd.Kind, value)
	b.issue(VariantV2, comment, func() (Body, error) {
		return build(cmd.Area, cmd.Join, value)
	})
}

// handleBusEvent publishes brightness for preset events from the gateway.
func (b *Bridge) handleBusEvent(topic string, payload []byte) {
	var msg GatewayMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		b.logWarn("ignoring gateway message", "topic", topic, "error", fmt.Errorf("%w: %w", ErrInvalidPayload, err))
		return
	}

	ev, err := ParsePresetEvent(msg)
	if err != nil {
		b.logWarn("ignoring gateway message", "description", msg.Description, "type", msg.Type, "error", err)
		return
	}
	if ev == nil {
		b.logDebug("gateway message not preset related", "description", msg.Description)
		return
	}
	if ev.ChannelMissing {
		b.logDebug("gateway event without channel, using all", "description", msg.Description)
	}

	b.logInfo("preset event",
		"type", ev.Variant,
		"area", ev.Area,
		"channel", ev.Channel.String(),
		"preset", ev.Preset)

	b.publishPreset(b.maps.Map(), ev.Area, ev.Channel, ev.Preset)
}

// handleAck resolves a correlated request.
func (b *Bridge) handleAck(topic string, payload []byte) {
	id, ok := b.topics.AckID(topic)
	if !ok {
		b.logWarn("ignoring ack", "topic", topic, "error", ErrInvalidTopic)
		return
	}
	var ack AckPayload
	if err := json.Unmarshal(payload, &ack); err != nil {
		b.logWarn("ignoring ack", "response_id", id, "error", fmt.Errorf("%w: %w", ErrInvalidPayload, err))
		return
	}
	if !b.correlator.Acknowledge(id, ack) {
		b.logDebug("ack for unknown request", "response_id", id, "status", ack.Status)
	}
}

// handleGatewayStatus tracks the gateway's availability.
func (b *Bridge) handleGatewayStatus(_ string, payload []byte) {
	online := strings.EqualFold(strings.TrimSpace(string(payload)), gatewayOnlinePayload)
	if b.gatewayOnline.Swap(online) != online {
		b.logInfo("gateway availability changed", "online", online)
		b.emit(EventGatewayStatus, map[string]any{"online": online})
		if err := b.health.PublishNow(); err != nil {
			b.logError("failed to publish health", err)
		}
	}
}

// issue builds a body and hands it to the correlator. Build and publish
// failures are logged and do not affect sibling requests.
func (b *Bridge) issue(v Variant, comment string, build func() (Body, error)) {
	body, err := build()
	if err != nil {
		b.logWarn("skipping packet", "type", v, "comment", comment, "error", err)
		return
	}
	id, err := b.correlator.Issue(v, body, comment)
	if err != nil {
		b.logError("failed to issue request", err)
		return
	}
	b.logDebug("packet sent", "type", v, "hex", body.String(), "response_id", id)
}

// publishPreset publishes the brightness a preset maps to, fanning out to
// every channel of the area for the master channel.
func (b *Bridge) publishPreset(m *Map, area int, ch ChannelID, preset int) {
	pubs, err := m.Publications(area, ch, preset)
	if err != nil {
		b.logWarn("no brightness to publish", "area", area, "channel", ch.String(), "preset", preset, "error", err)
		return
	}
	for _, p := range pubs {
		b.publishBrightness(p)
	}
}

func (b *Bridge) publishBrightness(p Publication) {
	topic := b.topics.Brightness(p.Area, p.Channel)
	if err := b.mqtt.Publish(topic, []byte(strconv.Itoa(p.Brightness)), stateQoS, false); err != nil {
		b.logError("failed to publish brightness", err)
		return
	}
	b.logDebug("brightness published", "topic", topic, "brightness", p.Brightness)
	b.emit(EventBrightnessPublished, map[string]any{
		"area":       p.Area,
		"channel":    p.Channel.String(),
		"brightness": p.Brightness,
		"topic":      topic,
	})
}

// PublishDiscovery publishes retained discovery configs for every channel
// in the current map.
func (b *Bridge) PublishDiscovery() {
	msgs, err := BuildDiscovery(b.maps.Map(), b.topics, b.version)
	if err != nil {
		b.logError("failed to build discovery", err)
		return
	}
	published := 0
	for _, msg := range msgs {
		if err := b.mqtt.Publish(msg.Topic, msg.Payload, discoveryQoS, true); err != nil {
			b.logError("failed to publish discovery", fmt.Errorf("%s: %w", msg.Topic, err))
			continue
		}
		published++
	}
	b.logInfo("discovery published", "lights", published)
}

func (b *Bridge) onMapReload(m *Map) {
	if b.discovery {
		b.PublishDiscovery()
	}
	b.emit(EventMapReloaded, map[string]any{"areas": len(m.Areas)})
}

func (b *Bridge) emit(kind string, data any) {
	if b.events != nil {
		b.events.Emit(kind, data)
	}
}

// parseBrightness parses a decimal brightness, truncating fractions and
// clamping to 0..255.
func parseBrightness(payload []byte) (int, error) {
	f, err := parseNumber(strings.TrimSpace(string(payload)))
	if err != nil {
		return 0, err
	}
	return int(math.Max(0, math.Min(f, maxBrightness))), nil
}

func parseNumber(s string) (float64, error) {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || !isFinite(f) {
		return 0, fmt.Errorf("%w: %q is not a number", ErrInvalidPayload, s)
	}
	return f, nil
}

// SetLogger sets the logger for the bridge.
func (b *Bridge) SetLogger(logger Logger) {
	b.loggerMu.Lock()
	b.logger = logger
	b.loggerMu.Unlock()

	if b.health != nil {
		b.health.SetLogger(logger)
	}
}

func (b *Bridge) getLogger() Logger {
	b.loggerMu.RLock()
	defer b.loggerMu.RUnlock()
	return b.logger
}

// logInfo logs an info message if logger is set.
func (b *Bridge) logInfo(msg string, keysAndValues ...any) {
	if logger := b.getLogger(); logger != nil {
		logger.Info(msg, keysAndValues...)
	}
}

// logWarn logs a warning if logger is set.
func (b *Bridge) logWarn(msg string, keysAndValues ...any) {
	if logger := b.getLogger(); logger != nil {
		logger.Warn(msg, keysAndValues...)
	}
}

// logError logs an error message if logger is set.
func (b *Bridge) logError(msg string, err error) {
	if logger := b.getLogger(); logger != nil {
		logger.Error(msg, "error", err)
	}
}

// logDebug logs a debug message if logger is set.
func (b *Bridge) logDebug(msg string, keysAndValues ...any) {
	if logger := b.getLogger(); logger != nil {
		logger.Debug(msg, keysAndValues...)
	}
}
