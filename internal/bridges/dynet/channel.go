package dynet

import (
	"fmt"
	"strconv"
	"strings"
)

// Wire sentinels for "all channels".
const (
	// V1AllChannels is the DyNet1 all-channels value.
	V1AllChannels = 0xFF

	// V2AllChannels is the DyNet2 all-channels value.
	V2AllChannels = 0xFFFF

	// allKey is the map and topic key for the area master channel.
	allKey = "all"
)

// ChannelID is a logical channel number (1-based) or ChannelAll.
type ChannelID int

// ChannelAll addresses the area master/group channel.
const ChannelAll ChannelID = 0

// ParseChannelID parses a logical channel key: a positive integer or "all".
func ParseChannelID(s string) (ChannelID, error) {
	if strings.EqualFold(s, allKey) {
		return ChannelAll, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidChannel, s)
	}
	return ChannelID(n), nil
}

// IsAll reports whether c is the master channel.
func (c ChannelID) IsAll() bool {
	return c == ChannelAll
}

// String returns the map/topic key: "all" or the decimal channel number.
func (c ChannelID) String() string {
	if c.IsAll() {
		return allKey
	}
	return strconv.Itoa(int(c))
}

// V1 returns the 0-based DyNet1 wire value, or V1AllChannels for ChannelAll.
// Channels above 255 collide with the sentinel and are rejected.
func (c ChannelID) V1() (byte, error) {
	if c.IsAll() {
		return V1AllChannels, nil
	}
	if c < 1 || c > V1AllChannels {
		return 0, fmt.Errorf("%w: %d does not fit the DyNet1 channel byte", ErrInvalidChannel, c)
	}
	return byte(c - 1), nil
}

// V2 returns the DyNet2 wire value, or V2AllChannels for ChannelAll.
func (c ChannelID) V2() (uint16, error) {
	if c.IsAll() {
		return V2AllChannels, nil
	}
	if c < 1 || c >= V2AllChannels {
		return 0, fmt.Errorf("%w: %d does not fit the DyNet2 channel field", ErrInvalidChannel, c)
	}
	return uint16(c), nil
}

// ChannelFromV1 decodes a 0-based DyNet1 channel field.
func ChannelFromV1(wire int) ChannelID {
	if wire == V1AllChannels {
		return ChannelAll
	}
	return ChannelID(wire + 1)
}

// ChannelFromV2 decodes a DyNet2 logical channel field.
func ChannelFromV2(wire int) ChannelID {
	if wire == V2AllChannels {
		return ChannelAll
	}
	return ChannelID(wire)
}

// ChannelFromWire decodes a channel field for the given variant, rejecting
// values outside the variant's wire range.
func ChannelFromWire(v Variant, wire int) (ChannelID, error) {
	switch v {
	case VariantV1:
		if wire < 0 || wire > V1AllChannels {
			return 0, fmt.Errorf("%w: DyNet1 wire value %d", ErrInvalidChannel, wire)
		}
		return ChannelFromV1(wire), nil
	case VariantV2:
		if wire < 1 || wire > V2AllChannels {
			return 0, fmt.Errorf("%w: DyNet2 wire value %d", ErrInvalidChannel, wire)
		}
		return ChannelFromV2(wire), nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownVariant, v)
	}
}
