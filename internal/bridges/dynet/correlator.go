package dynet

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultResponseTTL is how long a request waits for its acknowledgement.
const DefaultResponseTTL = 15 * time.Second

// Request outcomes reported to a RequestRecorder.
const (
	OutcomeAcked   = "acked"
	OutcomeFailed  = "failed"
	OutcomeExpired = "expired"
)

// Publisher sends MQTT messages.
type Publisher interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
}

// RequestRecorder receives the outcome of every correlated request.
// It is optional; the InfluxDB client satisfies it.
type RequestRecorder interface {
	RecordRequest(variant, outcome string, elapsed time.Duration)
}

// PendingRequest is an issued request awaiting its acknowledgement.
type PendingRequest struct {
	ID        string    `json:"id"`
	Variant   Variant   `json:"type"`
	HexString string    `json:"hex_string"`
	Comment   string    `json:"comment,omitempty"`
	SentAt    time.Time `json:"sent_at"`
}

// CorrelatorConfig holds configuration for a Correlator.
type CorrelatorConfig struct {
	// Topic is where request envelopes are published ({bus}/set).
	Topic string

	// TTL is both the expiry age and the sweep interval.
	// Default: DefaultResponseTTL.
	TTL time.Duration

	// QoS for request envelopes. Default 0.
	QoS byte

	Publisher Publisher
	Logger    Logger

	// Recorder and Events are optional.
	Recorder RequestRecorder
	Events   EventSink
}

// Correlator issues requests to the gateway and matches acknowledgements
// back to them. Requests that are never acknowledged are dropped by a
// periodic sweep once older than the TTL, so an unanswered request is
// detected after at most twice the TTL.
//
// There are no retries.
//
// Thread Safety: All methods are safe for concurrent use.
type Correlator struct {
	topic     string
	ttl       time.Duration
	qos       byte
	publisher Publisher
	logger    Logger
	recorder  RequestRecorder
	events    EventSink

	mu      sync.Mutex
	pending map[string]PendingRequest

	now   func() time.Time
	newID func() string

	done     chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once
}

// NewCorrelator creates a correlator. Call Start to begin sweeping.
func NewCorrelator(cfg CorrelatorConfig) (*Correlator, error) {
	if cfg.Publisher == nil {
		return nil, fmt.Errorf("publisher is required")
	}
	if cfg.Topic == "" {
		return nil, fmt.Errorf("request topic is required")
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = DefaultResponseTTL
	}
	return &Correlator{
		topic:     cfg.Topic,
		ttl:       ttl,
		qos:       cfg.QoS,
		publisher: cfg.Publisher,
		logger:    cfg.Logger,
		recorder:  cfg.Recorder,
		events:    cfg.Events,
		pending:   make(map[string]PendingRequest),
		now:       time.Now,
		newID:     newResponseID,
		done:      make(chan struct{}),
	}, nil
}

// newResponseID returns a random UUID as 32 lower-case hex digits.
func newResponseID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// TTL returns the configured expiry age.
func (c *Correlator) TTL() time.Duration {
	return c.ttl
}

// Issue records a request and publishes its envelope. It does not wait for
// the acknowledgement. If publishing fails the record is discarded.
func (c *Correlator) Issue(v Variant, body Body, comment string) (string, error) {
	id := c.newID()
	req := PendingRequest{
		ID:        id,
		Variant:   v,
		HexString: body.String(),
		Comment:   comment,
		SentAt:    c.now(),
	}

	payload, err := json.Marshal(RequestEnvelope{Type: v, HexString: req.HexString, ResponseID: id})
	if err != nil {
		return "", fmt.Errorf("marshal request envelope: %w", err)
	}

	// Record first so an acknowledgement racing the publish finds it.
	c.mu.Lock()
	c.pending[id] = req
	c.mu.Unlock()

	if err := c.publisher.Publish(c.topic, payload, c.qos, false); err != nil {
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
		return "", fmt.Errorf("publish request %s: %w", id, err)
	}

	c.logDebug("request issued", "response_id", id, "type", v, "hex", req.HexString, "comment", comment)
	return id, nil
}

// Acknowledge resolves a pending request. Unknown ids (already expired, or
// never issued) are ignored and report false. Failures are logged with the
// elapsed time and comment; success is silent.
func (c *Correlator) Acknowledge(id string, ack AckPayload) bool {
	c.mu.Lock()
	req, ok := c.pending[id]
	if ok {
		delete(c.pending, id)
	}
	c.mu.Unlock()
	if !ok {
		return false
	}

	elapsed := c.now().Sub(req.SentAt)
	if ack.OK() {
		c.record(req, OutcomeAcked, elapsed)
		return true
	}

	status := ack.Status
	if status == "" {
		status = "unknown"
	}
	c.logWarn("request failed",
		"response_id", id,
		"status", status,
		"elapsed", elapsed.Round(time.Millisecond).String(),
		"comment", req.Comment)
	c.record(req, OutcomeFailed, elapsed)
	c.emit(EventRequestFailed, map[string]any{"request": req, "status": status})
	return true
}

// Sweep removes and returns every request older than the TTL.
func (c *Correlator) Sweep() []PendingRequest {
	now := c.now()

	c.mu.Lock()
	var expired []PendingRequest
	for id, req := range c.pending {
		if now.Sub(req.SentAt) > c.ttl {
			expired = append(expired, req)
			delete(c.pending, id)
		}
	}
	c.mu.Unlock()

	sortBySentAt(expired)
	for _, req := range expired {
		c.logWarn("request expired without acknowledgement",
			"response_id", req.ID,
			"type", req.Variant,
			"hex", req.HexString,
			"comment", req.Comment,
			"sent_at", req.SentAt.UTC().Format(time.RFC3339Nano))
		c.record(req, OutcomeExpired, now.Sub(req.SentAt))
		c.emit(EventRequestExpired, req)
	}
	return expired
}

// Pending returns a snapshot of outstanding requests, oldest first.
func (c *Correlator) Pending() []PendingRequest {
	c.mu.Lock()
	out := make([]PendingRequest, 0, len(c.pending))
	for _, req := range c.pending {
		out = append(out, req)
	}
	c.mu.Unlock()
	sortBySentAt(out)
	return out
}

// Len returns the number of outstanding requests.
func (c *Correlator) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

// Start launches the sweep loop, which ticks once per TTL until ctx is
// cancelled or Stop is called.
func (c *Correlator) Start(ctx context.Context) {
	c.wg.Add(1)
	go c.sweepLoop(ctx)
}

// Stop ends the sweep loop. Safe to call multiple times.
func (c *Correlator) Stop() {
	c.stopOnce.Do(func() {
		close(c.done)
		c.wg.Wait()
	})
}

func (c *Correlator) sweepLoop(ctx context.Context) {
	defer c.wg.Done()

	ticker := time.NewTicker(c.ttl)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-c.done:
			return
		case <-ticker.C:
			c.Sweep()
		}
	}
}

func (c *Correlator) record(req PendingRequest, outcome string, elapsed time.Duration) {
	if c.recorder != nil {
		c.recorder.RecordRequest(string(req.Variant), outcome, elapsed)
	}
}

func (c *Correlator) emit(kind string, data any) {
	if c.events != nil {
		c.events.Emit(kind, data)
	}
}

func (c *Correlator) logDebug(msg string, keysAndValues ...any) {
	if c.logger != nil {
		c.logger.Debug(msg, keysAndValues...)
	}
}

func (c *Correlator) logWarn(msg string, keysAndValues ...any) {
	if c.logger != nil {
		c.logger.Warn(msg, keysAndValues...)
	}
}

func sortBySentAt(reqs []PendingRequest) {
	sort.Slice(reqs, func(i, j int) bool {
		if reqs[i].SentAt.Equal(reqs[j].SentAt) {
			return reqs[i].ID < reqs[j].ID
		}
		return reqs[i].SentAt.Before(reqs[j].SentAt)
	})
}
