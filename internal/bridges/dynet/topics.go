package dynet

import (
	"fmt"
	"strconv"
	"strings"
)

// Default topic prefixes.
const (
	DefaultBusPrefix           = "dynalite"
	DefaultHomeAssistantPrefix = "homeassistant"
	DefaultBridgeWill          = "bridges/light_dynalite"
)

// Command kinds carried in the last segment before "/set".
const (
	CommandBrightness  = "brightness"
	CommandLevel       = "level"
	CommandSetpoint    = "setpoint"
	CommandTemperature = "temperature"
)

const (
	areaSegmentPrefix    = "dynet_area_"
	channelSegmentPrefix = "channel_"
	joinSegmentPrefix    = "join_"
	ackSegment           = "/set/res/"
)

// Topics builds and parses the bridge's MQTT topics from three prefixes:
//
//	{bus}            gateway events, requests ({bus}/set) and acks
//	{homeassistant}  light and climate entities
//	{bridge_will}    bridge availability and health
type Topics struct {
	Bus           string
	HomeAssistant string
	BridgeWill    string

	// GatewayWill overrides the gateway availability topic ({bus}/status).
	GatewayWill string
}

// DefaultTopics returns Topics with the default prefixes.
func DefaultTopics() Topics {
	return Topics{Bus: DefaultBusPrefix, HomeAssistant: DefaultHomeAssistantPrefix, BridgeWill: DefaultBridgeWill}
}

// BusEvents is where the gateway publishes decoded packets.
//
// Example: dynalite
func (t Topics) BusEvents() string {
	return t.Bus
}

// Request is where request envelopes are published.
//
// Example: dynalite/set
func (t Topics) Request() string {
	return t.Bus + "/set"
}

// AckSubscribe matches every acknowledgement.
//
// Pattern: dynalite/set/res/+
func (t Topics) AckSubscribe() string {
	return t.Bus + ackSegment + "+"
}

// Ack returns the acknowledgement topic for a response id.
//
// Example: dynalite/set/res/4f1c...
func (t Topics) Ack(id string) string {
	return t.Bus + ackSegment + id
}

// GatewayStatus is the gateway's availability topic.
//
// Example: dynalite/status
func (t Topics) GatewayStatus() string {
	if t.GatewayWill != "" {
		return t.GatewayWill
	}
	return t.Bus + "/status"
}

// LightCommandSubscribe matches light commands of one kind.
//
// Pattern: homeassistant/light/+/+/brightness/set
func (t Topics) LightCommandSubscribe(kind string) string {
	return fmt.Sprintf("%s/light/+/+/%s/set", t.HomeAssistant, kind)
}

// ClimateCommandSubscribe matches setpoint and temperature commands.
//
// Pattern: homeassistant/climate/+/+/+/set
func (t Topics) ClimateCommandSubscribe() string {
	return t.HomeAssistant + "/climate/+/+/+/set"
}

// LightBase is the entity base topic of a channel.
//
// Example: homeassistant/light/dynet_area_1/channel_all
func (t Topics) LightBase(area int, ch ChannelID) string {
	return fmt.Sprintf("%s/light/%s%d/%s%s", t.HomeAssistant, areaSegmentPrefix, area, channelSegmentPrefix, ch)
}

// Brightness is the brightness state topic of a channel.
//
// Example: homeassistant/light/dynet_area_1/channel_3/brightness
func (t Topics) Brightness(area int, ch ChannelID) string {
	return t.LightBase(area, ch) + "/brightness"
}

// BrightnessSet is the brightness command topic of a channel.
func (t Topics) BrightnessSet(area int, ch ChannelID) string {
	return t.LightBase(area, ch) + "/brightness/set"
}

// LightConfig is the retained discovery topic of a channel.
//
// Example: homeassistant/light/dynet_area_1/channel_3/config
func (t Topics) LightConfig(area int, ch ChannelID) string {
	return t.LightBase(area, ch) + "/config"
}

// BridgeStatus carries the bridge's online/offline availability.
//
// Example: bridges/light_dynalite/status
func (t Topics) BridgeStatus() string {
	return t.BridgeWill + "/status"
}

// Health carries the bridge's periodic health report.
//
// Example: bridges/light_dynalite/health
func (t Topics) Health() string {
	return t.BridgeWill + "/health"
}

// LightCommand identifies a parsed light command topic.
type LightCommand struct {
	Area    int
	Channel ChannelID
	Kind    string
}

// ParseLightCommand parses {ha}/light/dynet_area_<a>/channel_<c>/<kind>/set.
func (t Topics) ParseLightCommand(topic string) (LightCommand, error) {
	parts, err := t.entityParts(topic, "light", channelSegmentPrefix)
	if err != nil {
		return LightCommand{}, err
	}
	ch, err := ParseChannelID(parts.key)
	if err != nil {
		return LightCommand{}, fmt.Errorf("%w: %q: %w", ErrInvalidTopic, topic, err)
	}
	return LightCommand{Area: parts.area, Channel: ch, Kind: parts.kind}, nil
}

// ClimateCommand identifies a parsed climate command topic.
type ClimateCommand struct {
	Area int
	Join byte
	Kind string
}

// ParseClimateCommand parses {ha}/climate/dynet_area_<a>/join_<j>/<kind>/set.
func (t Topics) ParseClimateCommand(topic string) (ClimateCommand, error) {
	parts, err := t.entityParts(topic, "climate", joinSegmentPrefix)
	if err != nil {
		return ClimateCommand{}, err
	}
	join, err := strconv.Atoi(parts.key)
	if err != nil || join < 0 || join > 0xFF {
		return ClimateCommand{}, fmt.Errorf("%w: %q: join must be 0..255", ErrInvalidTopic, topic)
	}
	return ClimateCommand{Area: parts.area, Join: byte(join), Kind: parts.kind}, nil
}

// AckID extracts the response id from an acknowledgement topic.
func (t Topics) AckID(topic string) (string, bool) {
	prefix := t.Bus + ackSegment
	if !strings.HasPrefix(topic, prefix) {
		return "", false
	}
	id := strings.TrimPrefix(topic, prefix)
	if id == "" || strings.Contains(id, "/") {
		return "", false
	}
	return id, true
}

type entityTopic struct {
	area int
	key  string
	kind string
}

// entityParts splits {ha}/<component>/dynet_area_<a>/<keyPrefix><key>/<kind>/set.
func (t Topics) entityParts(topic, component, keyPrefix string) (entityTopic, error) {
	prefix := t.HomeAssistant + "/" + component + "/"
	if !strings.HasPrefix(topic, prefix) || !strings.HasSuffix(topic, "/set") {
		return entityTopic{}, fmt.Errorf("%w: %q", ErrInvalidTopic, topic)
	}
	parts := strings.Split(strings.TrimSuffix(strings.TrimPrefix(topic, prefix), "/set"), "/")
	if len(parts) != 3 {
		return entityTopic{}, fmt.Errorf("%w: %q", ErrInvalidTopic, topic)
	}

	areaStr, ok := strings.CutPrefix(parts[0], areaSegmentPrefix)
	if !ok {
		return entityTopic{}, fmt.Errorf("%w: %q: missing %s", ErrInvalidTopic, topic, areaSegmentPrefix)
	}
	area, err := strconv.Atoi(areaStr)
	if err != nil || area < 0 {
		return entityTopic{}, fmt.Errorf("%w: %q: bad area %q", ErrInvalidTopic, topic, areaStr)
	}
	key, ok := strings.CutPrefix(parts[1], keyPrefix)
	if !ok || key == "" {
		return entityTopic{}, fmt.Errorf("%w: %q: missing %s", ErrInvalidTopic, topic, keyPrefix)
	}
	if parts[2] == "" {
		return entityTopic{}, fmt.Errorf("%w: %q", ErrInvalidTopic, topic)
	}
	return entityTopic{area: area, key: key, kind: parts[2]}, nil
}
