package dynet

import "errors"

// Domain errors for the Dynalite bridge package.
var (
	// ErrInvalidTopic is returned when an MQTT topic does not match the
	// expected command pattern.
	ErrInvalidTopic = errors.New("dynet: invalid topic")

	// ErrInvalidPayload is returned when a message payload cannot be parsed.
	ErrInvalidPayload = errors.New("dynet: invalid payload")

	// ErrInvalidChannel is returned when a channel key is not a positive
	// integer or "all", or cannot be represented on the wire.
	ErrInvalidChannel = errors.New("dynet: invalid channel")

	// ErrAreaNotConfigured is returned when an area is missing from the map.
	ErrAreaNotConfigured = errors.New("dynet: area not configured")

	// ErrChannelNotMapped is returned when a channel is missing from its area.
	ErrChannelNotMapped = errors.New("dynet: channel not mapped")

	// ErrNoLevels is returned when a channel resolves to empty preset or
	// level lists.
	ErrNoLevels = errors.New("dynet: no presets/levels configured")

	// ErrPresetNotFound is returned when a preset is absent from the
	// effective preset list.
	ErrPresetNotFound = errors.New("dynet: preset not found")

	// ErrBuildFailed is returned when a packet body cannot be built.
	ErrBuildFailed = errors.New("dynet: packet build failed")

	// ErrUnknownVariant is returned for protocol types other than dynet1
	// and dynet2.
	ErrUnknownVariant = errors.New("dynet: unknown protocol variant")

	// ErrIncompleteEvent is returned when a gateway event lacks area or
	// preset fields.
	ErrIncompleteEvent = errors.New("dynet: incomplete event")

	// ErrInvalidMap is returned when a map document fails validation.
	ErrInvalidMap = errors.New("dynet: invalid map")
)
