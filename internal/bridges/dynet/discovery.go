package dynet

import (
	"encoding/json"
	"fmt"
)

const (
	discoveryManufacturer = "Philips Dynalite"
	discoveryModel        = "Dynalite MQTT Bridge"

	onOffPayloadOn  = "255"
	onOffPayloadOff = "0"
)

// DiscoveryMessage is a retained Home Assistant discovery config.
type DiscoveryMessage struct {
	Topic   string
	Payload []byte
}

// haDevice is the "device" block in HA discovery.
type haDevice struct {
	Identifiers  []string `json:"identifiers"`
	Name         string   `json:"name"`
	Manufacturer string   `json:"manufacturer"`
	Model        string   `json:"model"`
	SWVersion    string   `json:"sw_version,omitempty"`
}

// haLight is an HA MQTT light discovery payload.
type haLight struct {
	Platform          string   `json:"platform"`
	Name              string   `json:"name"`
	UniqueID          string   `json:"unique_id"`
	AvailabilityTopic string   `json:"availability_topic"`
	Retain            bool     `json:"retain"`
	Icon              string   `json:"icon"`
	Device            haDevice `json:"device"`

	StateTopic              string `json:"state_topic,omitempty"`
	StateValueTemplate      string `json:"state_value_template,omitempty"`
	CommandTopic            string `json:"command_topic,omitempty"`
	BrightnessStateTopic    string `json:"brightness_state_topic,omitempty"`
	BrightnessCommandTopic  string `json:"brightness_command_topic,omitempty"`
	BrightnessValueTemplate string `json:"brightness_value_template,omitempty"`
	OnCommandType           string `json:"on_command_type,omitempty"`
	PayloadOn               string `json:"payload_on,omitempty"`
	PayloadOff              string `json:"payload_off,omitempty"`
}

// BuildDiscovery returns one light config per configured channel, areas and
// channels in ascending order. Dimmable channels expose brightness state and
// command topics; on/off channels switch between 0 and 255 on the brightness
// command topic.
func BuildDiscovery(m *Map, topics Topics, version string) ([]DiscoveryMessage, error) {
	var msgs []DiscoveryMessage

	for _, area := range m.AreaIDs() {
		areaCfg := m.Areas[area]
		areaName := areaCfg.Name
		if areaName == "" {
			areaName = fmt.Sprintf("Area %d", area)
		}
		areaUID := fmt.Sprintf("%s%d", areaSegmentPrefix, area)
		dev := haDevice{
			Identifiers:  []string{areaUID},
			Name:         fmt.Sprintf("Area %d - %s", area, areaName),
			Manufacturer: discoveryManufacturer,
			Model:        discoveryModel,
			SWVersion:    version,
		}

		for _, ch := range m.ChannelIDs(area) {
			cfg := areaCfg.Channels[ch.String()]
			payload, err := json.Marshal(lightConfig(m, topics, area, ch, cfg, areaUID, dev))
			if err != nil {
				return nil, fmt.Errorf("marshal discovery for area %d channel %s: %w", area, ch, err)
			}
			msgs = append(msgs, DiscoveryMessage{Topic: topics.LightConfig(area, ch), Payload: payload})
		}
	}
	return msgs, nil
}

func lightConfig(m *Map, topics Topics, area int, ch ChannelID, cfg ChannelConfig, areaUID string, dev haDevice) haLight {
	name := cfg.Name
	if name == "" {
		name = "Light " + ch.String()
	}
	state := topics.Brightness(area, ch)
	command := topics.BrightnessSet(area, ch)

	light := haLight{
		Platform:          "light",
		Name:              name,
		UniqueID:          fmt.Sprintf("%s_%s%s", areaUID, channelSegmentPrefix, ch),
		AvailabilityTopic: topics.BridgeStatus(),
		Icon:              cfg.IconOrDefault(),
		Device:            dev,
		StateTopic:        state,
		CommandTopic:      command,
	}

	switch m.Style(cfg) {
	case StyleOnOff:
		light.StateValueTemplate = "{{ '" + onOffPayloadOn + "' if value | int > 0 else '" + onOffPayloadOff + "' }}"
		light.PayloadOn = onOffPayloadOn
		light.PayloadOff = onOffPayloadOff
	default:
		light.StateValueTemplate = "{{ 'ON' if value | int > 0 else 'OFF' }}"
		light.BrightnessStateTopic = state
		light.BrightnessCommandTopic = command
		light.BrightnessValueTemplate = "{{ value | int }}"
		light.OnCommandType = "brightness"
		light.PayloadOff = onOffPayloadOff
	}
	return light
}
