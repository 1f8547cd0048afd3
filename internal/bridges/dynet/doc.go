// Package dynet implements the Philips Dynalite protocol bridge.
//
// The bridge does not speak to the lighting bus directly. An external gateway
// owns the RS-485 framing and checksums and exchanges already-framed packet
// bodies with this package over MQTT, rendered as space-separated upper-case
// hex pairs ("1C 01 00 63 FF 00 FF").
//
// # Architecture
//
//	┌──────────────────┐   MQTT   ┌──────────────────┐   MQTT   ┌──────────┐
//	│  Home Assistant  │◄────────►│  Dynet Bridge    │◄────────►│ Gateway  │◄──► DyNet bus
//	└──────────────────┘          │   (this pkg)     │          └──────────┘
//	                              └──────────────────┘
//
// # Key Responsibilities
//
//   - Encode numeric values into DyNet byte fields (codec.go)
//   - Build DyNet1 and DyNet2 packet bodies (packets.go)
//   - Resolve brightness levels to presets and back using the area map
//     (resolver.go, mapconfig.go)
//   - Correlate outbound requests with gateway acknowledgements and expire
//     the ones that never arrive (correlator.go)
//   - Translate Home Assistant commands to packets and gateway events to
//     brightness publications (bridge.go)
//
// # Channel Numbering
//
// Three numbering domains meet in this package:
//
//   - Logical: 1-based channel numbers, or "all" (topics and map keys)
//   - DyNet1 wire: 0-based, 0xFF is all channels
//   - DyNet2 wire: logical numbers unchanged, 0xFFFF is all channels
//
// ChannelID holds the logical value; its V1/V2 methods apply the wire
// encoding and ChannelFromV1/ChannelFromV2 apply the inverse.
//
// # Thread Safety
//
// Bridge, Correlator and MapStore are safe for concurrent use. Builders and
// codec functions are pure.
package dynet
