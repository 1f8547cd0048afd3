package dynet

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"
)

// MQTT message types exchanged with the Dynalite gateway.

// RequestEnvelope is sent to the gateway to put a packet body on the bus.
// Topic: {bus}/set
type RequestEnvelope struct {
	// Type is the wire variant ("dynet1" or "dynet2").
	Type Variant `json:"type"`

	// HexString is the packet body as space-separated hex pairs.
	HexString string `json:"hex_string"`

	// ResponseID correlates the gateway's acknowledgement.
	ResponseID string `json:"response_id"`
}

// AckPayload is the gateway's acknowledgement of a RequestEnvelope.
// Topic: {bus}/set/res/{response_id}
type AckPayload struct {
	// Status is "ok" on success; anything else is a failure.
	Status string `json:"status"`
}

// OK reports whether the acknowledgement signals success.
func (a AckPayload) OK() bool {
	return strings.EqualFold(a.Status, "ok")
}

// Gateway field type names.
const (
	FieldArea      = "MES_AREA"
	FieldPresetV1  = "MES_PRESET"
	FieldPresetV2  = "MES_PRESET_DYNET2"
	FieldChannelV1 = "MES_CHANNEL_ZERO_BASED"
	FieldChannelV2 = "MES_CHANNEL_DYNET2_LOGICAL"
)

// Placeholder values the gateway uses for fields it could not decode.
const (
	unsetFieldValue     = "<unset>"
	erroneousFieldValue = "<err>"
)

// presetPhrases are the description fragments that mark a preset event.
var presetPhrases = []string{
	"select preset",
	"recall preset",
	"area to preset",
	"reply current preset",
	"reply channel current preset",
	"reply with current preset",
}

// GatewayMessage is a decoded bus packet as published by the gateway.
// Topic: {bus}
//
// Fields holds the positional values; FieldTypes maps a decimal index into
// Fields to the field's semantic type name.
type GatewayMessage struct {
	Description string            `json:"description"`
	Type        string            `json:"type"`
	Fields      []any             `json:"fields"`
	FieldTypes  map[string]string `json:"field_types"`
}

// IsPresetRelated reports whether the description names a preset operation.
func (m GatewayMessage) IsPresetRelated() bool {
	desc := strings.ToLower(m.Description)
	for _, p := range presetPhrases {
		if strings.Contains(desc, p) {
			return true
		}
	}
	return false
}

// FieldValue returns the integer value of the first field whose type matches
// name case-insensitively, in ascending index order. Missing, null, empty,
// "<unset>" and "<err>" values report false, as do values that are not
// numeric. Numbers are truncated toward zero.
func (m GatewayMessage) FieldValue(name string) (int, bool) {
	for _, idx := range m.sortedIndexes() {
		if !strings.EqualFold(m.FieldTypes[strconv.Itoa(idx)], name) {
			continue
		}
		if idx >= len(m.Fields) {
			return 0, false
		}
		return fieldInt(m.Fields[idx])
	}
	return 0, false
}

func (m GatewayMessage) sortedIndexes() []int {
	idxs := make([]int, 0, len(m.FieldTypes))
	for k := range m.FieldTypes {
		n, err := strconv.Atoi(strings.TrimSpace(k))
		if err != nil || n < 0 {
			continue
		}
		idxs = append(idxs, n)
	}
	sort.Ints(idxs)
	return idxs
}

func fieldInt(v any) (int, bool) {
	var f float64
	switch x := v.(type) {
	case nil:
		return 0, false
	case float64:
		f = x
	case json.Number:
		parsed, err := x.Float64()
		if err != nil {
			return 0, false
		}
		f = parsed
	case int:
		return x, true
	case string:
		s := strings.TrimSpace(x)
		if s == "" || s == unsetFieldValue || s == erroneousFieldValue {
			return 0, false
		}
		parsed, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	if !isFinite(f) || math.Abs(f) > maxExactFloat {
		return 0, false
	}
	return int(f), true
}

// PresetEvent is a preset change extracted from a GatewayMessage.
type PresetEvent struct {
	Variant Variant
	Area    int
	Preset  int

	// Channel is ChannelAll when the packet carried no channel field.
	Channel ChannelID

	// ChannelMissing reports that the packet carried no channel field.
	ChannelMissing bool
}

// ParsePresetEvent extracts a PresetEvent from a gateway message. Messages
// whose description is not preset related yield (nil, nil).
func ParsePresetEvent(m GatewayMessage) (*PresetEvent, error) {
	if !m.IsPresetRelated() {
		return nil, nil
	}
	variant, err := ParseVariant(m.Type)
	if err != nil {
		return nil, err
	}

	presetField, channelField := FieldPresetV2, FieldChannelV2
	if variant == VariantV1 {
		presetField, channelField = FieldPresetV1, FieldChannelV1
	}

	area, okArea := m.FieldValue(FieldArea)
	preset, okPreset := m.FieldValue(presetField)
	if !okArea || !okPreset {
		return nil, fmt.Errorf("%w: area present=%t preset present=%t", ErrIncompleteEvent, okArea, okPreset)
	}

	ev := &PresetEvent{Variant: variant, Area: area, Preset: preset, Channel: ChannelAll}
	wire, ok := m.FieldValue(channelField)
	if !ok {
		ev.ChannelMissing = true
		return ev, nil
	}
	ch, err := ChannelFromWire(variant, wire)
	if err != nil {
		return nil, err
	}
	ev.Channel = ch
	return ev, nil
}

// HealthStatus represents the operational status of the bridge.
type HealthStatus string

const (
	// HealthHealthy indicates the bridge and gateway are online.
	HealthHealthy HealthStatus = "healthy"

	// HealthDegraded indicates the bridge is up but the gateway is not.
	HealthDegraded HealthStatus = "degraded"

	// HealthStopping indicates the bridge is shutting down.
	HealthStopping HealthStatus = "stopping"
)

// HealthMessage reports the bridge's operational status.
// Topic: {bridge_will}/health
// QoS: 1, Retained: Yes
type HealthMessage struct {
	Timestamp       time.Time    `json:"timestamp"`
	Status          HealthStatus `json:"status"`
	Version         string       `json:"version"`
	UptimeSeconds   int64        `json:"uptime_seconds"`
	GatewayOnline   bool         `json:"gateway_online"`
	PendingRequests int          `json:"pending_requests"`
	AreasConfigured int          `json:"areas_configured"`
	Reason          string       `json:"reason,omitempty"`
}

// NewHealthMessage creates a health status message.
func NewHealthMessage(version string, gatewayOnline bool, pending, areas int, startTime time.Time) HealthMessage {
	msg := HealthMessage{
		Timestamp:       time.Now().UTC(),
		Status:          HealthHealthy,
		Version:         version,
		UptimeSeconds:   int64(time.Since(startTime).Seconds()),
		GatewayOnline:   gatewayOnline,
		PendingRequests: pending,
		AreasConfigured: areas,
	}
	if !gatewayOnline {
		msg.Status = HealthDegraded
		msg.Reason = "gateway offline"
	}
	return msg
}
