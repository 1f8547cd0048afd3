package dynet

// Event kinds emitted to an EventSink.
const (
	EventBrightnessPublished = "brightness.published"
	EventRequestFailed       = "request.failed"
	EventRequestExpired      = "request.expired"
	EventMapReloaded         = "map.reloaded"
	EventGatewayStatus       = "gateway.status"
)

// EventSink receives bridge events for live observers such as the admin
// websocket. Emit must not block.
type EventSink interface {
	Emit(kind string, data any)
}
