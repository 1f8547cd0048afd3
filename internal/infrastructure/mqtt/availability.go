package mqtt

// Availability payloads, matching Home Assistant's default
// payload_available / payload_not_available.
const (
	PayloadOnline  = "online"
	PayloadOffline = "offline"
)

// availabilityQoS is used for the will and the retained status messages.
const availabilityQoS = 1

// Availability names the retained topic that carries this client's
// online/offline status.
//
// The broker publishes PayloadOffline as the Last Will if the connection
// drops; the client publishes PayloadOnline on every (re)connect and
// PayloadOffline on Close. An empty Topic disables all three.
//
// Example topic: bridges/light_dynalite/status
type Availability struct {
	Topic string
}

// Enabled reports whether availability messages are configured.
func (a Availability) Enabled() bool {
	return a.Topic != ""
}
