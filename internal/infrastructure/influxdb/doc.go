// Package influxdb records bridge telemetry in InfluxDB.
//
// It wraps the official influxdb-client-go v2 library with connection
// management, batched writes and health monitoring.
//
// # Purpose
//
// Every correlated gateway request ends acked, failed or expired. Each
// outcome becomes one point in the dynet_requests measurement, tagged by
// request variant and outcome with the round-trip time as a field:
//
//	dynet_requests,outcome=acked,variant=dynet1 count=1i,elapsed_ms=120
//
// # Usage
//
//	cfg := config.InfluxDBConfig{
//	    Enabled: true,
//	    URL:     "http://localhost:8086",
//	    Token:   "your-token",
//	    Org:     "home",
//	    Bucket:  "dynalite",
//	}
//
//	client, err := influxdb.Connect(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	client.RecordRequest("dynet1", "acked", 120*time.Millisecond)
//
// *Client satisfies dynet.RequestRecorder and can be passed straight to
// the bridge.
//
// # Thread Safety
//
// All methods are safe for concurrent use from multiple goroutines.
// The underlying write API uses non-blocking batched writes.
//
// # Error Handling
//
// Write operations are non-blocking and batch errors are delivered via a
// callback (see SetOnError). Connection and health check errors are
// returned directly.
package influxdb
