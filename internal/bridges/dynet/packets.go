package dynet

import (
	"fmt"
	"strings"
	"time"
)

// Variant identifies a DyNet wire encoding.
type Variant string

const (
	// VariantV1 is the 7-byte DyNet1 encoding.
	VariantV1 Variant = "dynet1"

	// VariantV2 is the DyNet2 encoding.
	VariantV2 Variant = "dynet2"
)

// ParseVariant validates a protocol type string from the gateway.
func ParseVariant(s string) (Variant, error) {
	switch Variant(strings.ToLower(s)) {
	case VariantV1:
		return VariantV1, nil
	case VariantV2:
		return VariantV2, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownVariant, s)
	}
}

// DyNet opcodes and sub-opcodes.
const (
	opV1Header        = 0x1C
	opV1RequestPreset = 0x63
	opV1SetPreset     = 0x6B
	opV2ChannelLevel  = 0x10
	opV2AreaPreset    = 0x11
	opV2Climate       = 0x56

	subV2ChannelLevel = 0x02
	subTemperature    = 0x0C
	subSetpoint       = 0x0D

	maxV1Area   = 0xFF
	maxV2Area   = 0xFFFF
	maxV2Preset = 0xFFFF
	maxV1Preset = 0x100
)

// Defaults for the structural fields of a packet body.
const (
	DefaultDevice = 0xBB
	DefaultBox    = 8
	DefaultJoin   = 0xFF
)

// Body is an unframed DyNet packet body.
type Body []byte

// String renders the body in the gateway wire form: upper-case hex pairs
// separated by single spaces.
func (b Body) String() string {
	var sb strings.Builder
	for i, v := range b {
		if i > 0 {
			sb.WriteByte(' ')
		}
		fmt.Fprintf(&sb, "%02X", v)
	}
	return sb.String()
}

// Builder builds packet bodies addressed from a fixed device/box/join
// template. The zero value is not useful; use NewBuilder or set every field.
type Builder struct {
	Device byte
	Box    uint16
	Join   byte
}

// NewBuilder returns a Builder with the default device id, box and join.
func NewBuilder() Builder {
	return Builder{Device: DefaultDevice, Box: DefaultBox, Join: DefaultJoin}
}

// AreaPresetV2 builds a DyNet2 "fade channel/area to preset" body (opcode 0x11).
//
// Layout:
//
//	11 dev boxH boxL areaH areaL join 00 chH chL presetH presetL fadeH fadeM fadeL 00
//
// The fade field counts hundredths of a second.
func (b Builder) AreaPresetV2(area int, ch ChannelID, preset int, fade time.Duration) (Body, error) {
	if err := checkRange("area", area, 0, maxV2Area); err != nil {
		return nil, err
	}
	if err := checkRange("preset", preset, 0, maxV2Preset); err != nil {
		return nil, err
	}
	wireCh, err := ch.V2()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBuildFailed, err)
	}
	f, ok := fadeHundredths(fade)
	if !ok {
		return nil, fmt.Errorf("%w: fade %v out of range", ErrBuildFailed, fade)
	}

	return Body{
		opV2AreaPreset, b.Device,
		byte(b.Box >> byteShift), byte(b.Box),
		byte(area >> byteShift), byte(area),
		b.Join,
		0x00,
		byte(wireCh >> byteShift), byte(wireCh),
		byte(preset >> byteShift), byte(preset),
		byte(f >> 16), byte(f >> byteShift), byte(f),
		0x00,
	}, nil
}

// ChannelLevelV2 builds a DyNet2 "set channel level" body (opcode 0x10).
// The percentage is converted with PercentToLevel.
func (b Builder) ChannelLevelV2(area int, ch ChannelID, percent float64, fade time.Duration) (Body, error) {
	if err := checkRange("area", area, 0, maxV2Area); err != nil {
		return nil, err
	}
	wireCh, err := ch.V2()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBuildFailed, err)
	}
	f, ok := fadeHundredths(fade)
	if !ok {
		return nil, fmt.Errorf("%w: fade %v out of range", ErrBuildFailed, fade)
	}

	return Body{
		opV2ChannelLevel, b.Device,
		byte(b.Box >> byteShift), byte(b.Box),
		byte(area >> byteShift), byte(area),
		b.Join,
		subV2ChannelLevel,
		byte(wireCh >> byteShift), byte(wireCh),
		byte(PercentToLevel(percent)),
		0x00,
		byte(f >> 16), byte(f >> byteShift), byte(f),
		0x00,
	}, nil
}

// RequestCurrentPresetV1 builds the DyNet1 "request current preset" body:
//
//	1C area 00 63 ch 00 join
func (b Builder) RequestCurrentPresetV1(area int, ch ChannelID) (Body, error) {
	if err := checkRange("area", area, 0, maxV1Area); err != nil {
		return nil, err
	}
	wireCh, err := ch.V1()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBuildFailed, err)
	}
	return Body{opV1Header, byte(area), 0x00, opV1RequestPreset, wireCh, 0x00, b.Join}, nil
}

// SetPresetV1 builds the DyNet1 "set channel to preset" body:
//
//	1C area ch 6B preset-1 fade join
//
// Presets are 1-based in the API and 0-based on the wire. The fade byte
// counts 20 ms steps and saturates at 0xFF.
func (b Builder) SetPresetV1(area int, ch ChannelID, preset int, fade time.Duration) (Body, error) {
	if err := checkRange("area", area, 0, maxV1Area); err != nil {
		return nil, err
	}
	if err := checkRange("preset", preset, 1, maxV1Preset); err != nil {
		return nil, err
	}
	wireCh, err := ch.V1()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBuildFailed, err)
	}
	return Body{opV1Header, byte(area), wireCh, opV1SetPreset, byte(preset - 1), fadeV1(fade), b.Join}, nil
}

// Setpoint builds a DyNet2 climate body carrying a temperature setpoint.
func (b Builder) Setpoint(area int, join byte, value float64) (Body, error) {
	return b.climate(area, join, subSetpoint, value)
}

// Temperature builds a DyNet2 climate body carrying a measured temperature.
func (b Builder) Temperature(area int, join byte, value float64) (Body, error) {
	return b.climate(area, join, subTemperature, value)
}

// climate builds the shared 0x56 layout:
//
//	56 dev boxH boxL areaH areaL join sub int frac 00 00
func (b Builder) climate(area int, join, sub byte, value float64) (Body, error) {
	if err := checkRange("area", area, 0, maxV2Area); err != nil {
		return nil, err
	}
	if !isFinite(value) {
		return nil, fmt.Errorf("%w: value %v is not a number", ErrBuildFailed, value)
	}
	hi, lo := EncodeDecimal(value)
	return Body{
		opV2Climate, b.Device,
		byte(b.Box >> byteShift), byte(b.Box),
		byte(area >> byteShift), byte(area),
		join,
		sub,
		hi, lo,
		0x00, 0x00,
	}, nil
}

func checkRange(field string, v, lo, hi int) error {
	if v < lo || v > hi {
		return fmt.Errorf("%w: %s %d outside %d..%d", ErrBuildFailed, field, v, lo, hi)
	}
	return nil
}
