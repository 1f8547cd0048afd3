package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// requestMeasurement holds one point per correlated request outcome.
const requestMeasurement = "dynet_requests"

// RecordRequest writes the outcome of a correlated gateway request.
//
// The write is non-blocking; points are batched and sent asynchronously.
// Outcomes are "acked", "failed" or "expired"; elapsed is the time from
// issue to acknowledgement (or to expiry).
//
// Example:
//
//	client.RecordRequest("dynet1", "acked", 120*time.Millisecond)
func (c *Client) RecordRequest(variant, outcome string, elapsed time.Duration) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(requestPoint(variant, outcome, elapsed, c.now()))
}

// requestPoint builds the dynet_requests point. Variant and outcome are
// low-cardinality tags.
func requestPoint(variant, outcome string, elapsed time.Duration, at time.Time) *write.Point {
	return write.NewPoint(
		requestMeasurement,
		map[string]string{
			"variant": variant,
			"outcome": outcome,
		},
		map[string]interface{}{
			"elapsed_ms": float64(elapsed) / float64(time.Millisecond),
			"count":      1,
		},
		at,
	)
}
