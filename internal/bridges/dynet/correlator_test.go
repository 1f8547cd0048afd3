package dynet

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"testing"
	"time"
)

func newTestCorrelator(t *testing.T, client *MockMQTTClient) (*Correlator, *fakeClock, *captureLogger, *mockRecorder, *mockSink) {
	t.Helper()
	logger := &captureLogger{}
	recorder := &mockRecorder{}
	sink := &mockSink{}
	c, err := NewCorrelator(CorrelatorConfig{
		Topic:     "dynalite/set",
		TTL:       15 * time.Second,
		Publisher: client,
		Logger:    logger,
		Recorder:  recorder,
		Events:    sink,
	})
	if err != nil {
		t.Fatalf("NewCorrelator() error = %v", err)
	}
	clock := newFakeClock()
	c.now = clock.Now
	seq := 0
	c.newID = func() string {
		seq++
		return fmt.Sprintf("id%02d", seq)
	}
	return c, clock, logger, recorder, sink
}

func TestNewCorrelatorValidation(t *testing.T) {
	if _, err := NewCorrelator(CorrelatorConfig{Topic: "x"}); err == nil {
		t.Error("expected error without publisher")
	}
	if _, err := NewCorrelator(CorrelatorConfig{Publisher: NewMockMQTTClient()}); err == nil {
		t.Error("expected error without topic")
	}
	c, err := NewCorrelator(CorrelatorConfig{Topic: "x", Publisher: NewMockMQTTClient()})
	if err != nil {
		t.Fatalf("NewCorrelator() error = %v", err)
	}
	if c.TTL() != DefaultResponseTTL {
		t.Errorf("TTL() = %v, want %v", c.TTL(), DefaultResponseTTL)
	}
}

func TestNewResponseID(t *testing.T) {
	hex32 := regexp.MustCompile(`^[0-9a-f]{32}$`)
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id := newResponseID()
		if !hex32.MatchString(id) {
			t.Fatalf("newResponseID() = %q, want 32 hex digits", id)
		}
		if seen[id] {
			t.Fatalf("newResponseID() repeated %q", id)
		}
		seen[id] = true
	}
}

func TestCorrelatorIssue(t *testing.T) {
	client := NewMockMQTTClient()
	c, clock, _, _, _ := newTestCorrelator(t, client)

	body := Body{0x1C, 0x01, 0x00, 0x63, 0xFF, 0x00, 0xFF}
	id, err := c.Issue(VariantV1, body, "confirm")
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}
	if id != "id01" {
		t.Errorf("id = %q, want id01", id)
	}

	pubs := client.PublishedTo("dynalite/set")
	if len(pubs) != 1 {
		t.Fatalf("published %d envelopes, want 1", len(pubs))
	}
	if pubs[0].Retained {
		t.Error("request envelope should not be retained")
	}
	var env RequestEnvelope
	if err := json.Unmarshal(pubs[0].Payload, &env); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if env.Type != VariantV1 || env.HexString != "1C 01 00 63 FF 00 FF" || env.ResponseID != id {
		t.Errorf("envelope = %+v", env)
	}

	pending := c.Pending()
	if len(pending) != 1 {
		t.Fatalf("Pending() = %d, want 1", len(pending))
	}
	if pending[0].Comment != "confirm" || !pending[0].SentAt.Equal(clock.Now()) {
		t.Errorf("pending = %+v", pending[0])
	}
}

func TestCorrelatorIssuePublishFailure(t *testing.T) {
	client := NewMockMQTTClient()
	client.SetPublishError(errors.New("broker down"))
	c, _, _, _, _ := newTestCorrelator(t, client)

	if _, err := c.Issue(VariantV2, Body{0x11}, ""); err == nil {
		t.Fatal("Issue() expected error")
	}
	if c.Len() != 0 {
		t.Errorf("Len() = %d after failed publish, want 0", c.Len())
	}
}

func TestCorrelatorAcknowledgeOK(t *testing.T) {
	client := NewMockMQTTClient()
	c, clock, logger, recorder, sink := newTestCorrelator(t, client)

	id, _ := c.Issue(VariantV2, Body{0x11}, "preset")
	clock.Advance(120 * time.Millisecond)

	if !c.Acknowledge(id, AckPayload{Status: "OK"}) {
		t.Fatal("Acknowledge() = false for pending id")
	}
	if c.Len() != 0 {
		t.Errorf("Len() = %d, want 0", c.Len())
	}
	if _, ok := logger.find("warn", "request failed"); ok {
		t.Error("successful ack should not log a failure")
	}
	got := recorder.get()
	if len(got) != 1 || got[0].Outcome != OutcomeAcked || got[0].Elapsed != 120*time.Millisecond || got[0].Variant != "dynet2" {
		t.Errorf("recorded = %+v", got)
	}
	if len(sink.kinds()) != 0 {
		t.Errorf("events = %v, want none", sink.kinds())
	}
}

func TestCorrelatorAcknowledgeFailure(t *testing.T) {
	client := NewMockMQTTClient()
	c, clock, logger, recorder, sink := newTestCorrelator(t, client)

	id, _ := c.Issue(VariantV1, Body{0x1C}, "area 1 channel all")
	clock.Advance(2 * time.Second)

	if !c.Acknowledge(id, AckPayload{Status: "timeout"}) {
		t.Fatal("Acknowledge() = false for pending id")
	}

	entry, ok := logger.find("warn", "request failed")
	if !ok {
		t.Fatal("failure was not logged")
	}
	if v, _ := entry.value("status"); v != "timeout" {
		t.Errorf("logged status = %v, want timeout", v)
	}
	if v, _ := entry.value("comment"); v != "area 1 channel all" {
		t.Errorf("logged comment = %v", v)
	}
	if v, _ := entry.value("elapsed"); v != "2s" {
		t.Errorf("logged elapsed = %v, want 2s", v)
	}
	if got := recorder.get(); len(got) != 1 || got[0].Outcome != OutcomeFailed {
		t.Errorf("recorded = %+v", got)
	}
	if kinds := sink.kinds(); len(kinds) != 1 || kinds[0] != EventRequestFailed {
		t.Errorf("events = %v, want [%s]", kinds, EventRequestFailed)
	}
}

func TestCorrelatorAcknowledgeUnknown(t *testing.T) {
	c, _, logger, recorder, _ := newTestCorrelator(t, NewMockMQTTClient())

	if c.Acknowledge("nope", AckPayload{Status: "error"}) {
		t.Error("Acknowledge() = true for unknown id")
	}
	if _, ok := logger.find("warn", "request failed"); ok {
		t.Error("unknown id should not log a failure")
	}
	if len(recorder.get()) != 0 {
		t.Error("unknown id should not be recorded")
	}
}

func TestCorrelatorAcknowledgeTwice(t *testing.T) {
	c, _, _, _, _ := newTestCorrelator(t, NewMockMQTTClient())

	id, _ := c.Issue(VariantV2, Body{0x11}, "")
	if !c.Acknowledge(id, AckPayload{Status: "ok"}) {
		t.Fatal("first Acknowledge() = false")
	}
	if c.Acknowledge(id, AckPayload{Status: "ok"}) {
		t.Error("second Acknowledge() = true, want false")
	}
}

func TestCorrelatorSweep(t *testing.T) {
	c, clock, logger, recorder, sink := newTestCorrelator(t, NewMockMQTTClient())

	old, _ := c.Issue(VariantV1, Body{0x1C}, "old")
	clock.Advance(10 * time.Second)
	young, _ := c.Issue(VariantV2, Body{0x11}, "young")

	// At exactly the TTL nothing has expired yet.
	clock.Advance(5 * time.Second)
	if expired := c.Sweep(); len(expired) != 0 {
		t.Fatalf("Sweep() at TTL expired %d, want 0", len(expired))
	}

	clock.Advance(time.Millisecond)
	expired := c.Sweep()
	if len(expired) != 1 || expired[0].ID != old {
		t.Fatalf("Sweep() = %+v, want only %s", expired, old)
	}
	if c.Len() != 1 || c.Pending()[0].ID != young {
		t.Errorf("Pending() = %+v, want only %s", c.Pending(), young)
	}

	entry, ok := logger.find("warn", "expired")
	if !ok {
		t.Fatal("expiry was not logged")
	}
	if v, _ := entry.value("comment"); v != "old" {
		t.Errorf("logged comment = %v, want old", v)
	}
	if got := recorder.get(); len(got) != 1 || got[0].Outcome != OutcomeExpired {
		t.Errorf("recorded = %+v", got)
	}
	if kinds := sink.kinds(); len(kinds) != 1 || kinds[0] != EventRequestExpired {
		t.Errorf("events = %v", kinds)
	}

	// A late ack for an expired request is ignored.
	if c.Acknowledge(old, AckPayload{Status: "ok"}) {
		t.Error("Acknowledge() = true for expired request")
	}
}

func TestCorrelatorPendingOrder(t *testing.T) {
	c, clock, _, _, _ := newTestCorrelator(t, NewMockMQTTClient())

	for i := 0; i < 5; i++ {
		if _, err := c.Issue(VariantV2, Body{byte(i)}, ""); err != nil {
			t.Fatalf("Issue() error = %v", err)
		}
		clock.Advance(time.Second)
	}
	pending := c.Pending()
	for i := 1; i < len(pending); i++ {
		if pending[i].SentAt.Before(pending[i-1].SentAt) {
			t.Fatalf("Pending() not ordered by SentAt: %+v", pending)
		}
	}
}

func TestCorrelatorStartStop(t *testing.T) {
	client := NewMockMQTTClient()
	c, err := NewCorrelator(CorrelatorConfig{Topic: "dynalite/set", TTL: 20 * time.Millisecond, Publisher: client})
	if err != nil {
		t.Fatalf("NewCorrelator() error = %v", err)
	}
	if _, err := c.Issue(VariantV2, Body{0x11}, ""); err != nil {
		t.Fatalf("Issue() error = %v", err)
	}

	c.Start(context.Background())
	deadline := time.Now().Add(2 * time.Second)
	for c.Len() != 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	c.Stop()
	c.Stop() // safe to call twice

	if c.Len() != 0 {
		t.Errorf("Len() = %d, want the sweep loop to expire the request", c.Len())
	}
}

func TestCorrelatorStopsOnContextCancel(t *testing.T) {
	c, err := NewCorrelator(CorrelatorConfig{Topic: "dynalite/set", TTL: time.Hour, Publisher: NewMockMQTTClient()})
	if err != nil {
		t.Fatalf("NewCorrelator() error = %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	c.Start(ctx)
	cancel()

	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweep loop did not exit on context cancel")
	}
}
