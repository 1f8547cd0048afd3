package dynet

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
)

var errSimulated = errors.New("simulated failure")

// MockMQTTClient implements MQTTClient for testing.
type MockMQTTClient struct {
	mu            sync.Mutex
	published     []mockPublish
	subscriptions []mockSubscription
	unsubscribed  []string
	connected     bool
	publishErr    error
	handlers      map[string]func(topic string, payload []byte)
}

type mockPublish struct {
	Topic    string
	Payload  []byte
	QoS      byte
	Retained bool
}

type mockSubscription struct {
	Topic string
	QoS   byte
}

func NewMockMQTTClient() *MockMQTTClient {
	return &MockMQTTClient{
		connected: true,
		handlers:  make(map[string]func(topic string, payload []byte)),
	}
}

func (m *MockMQTTClient) Publish(topic string, payload []byte, qos byte, retained bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.publishErr != nil {
		return m.publishErr
	}
	m.published = append(m.published, mockPublish{
		Topic:    topic,
		Payload:  payload,
		QoS:      qos,
		Retained: retained,
	})
	return nil
}

func (m *MockMQTTClient) Subscribe(topic string, qos byte, handler func(topic string, payload []byte)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subscriptions = append(m.subscriptions, mockSubscription{Topic: topic, QoS: qos})
	m.handlers[topic] = handler
	return nil
}

// Unsubscribe records the topic. The handler is kept so tests can still
// deliver a message that was already in flight.
func (m *MockMQTTClient) Unsubscribe(topic string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.unsubscribed = append(m.unsubscribed, topic)
	return nil
}

func (m *MockMQTTClient) Unsubscribed() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.unsubscribed...)
}

func (m *MockMQTTClient) IsConnected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connected
}

func (m *MockMQTTClient) SetConnected(connected bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connected = connected
}

func (m *MockMQTTClient) SetPublishError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.publishErr = err
}

func (m *MockMQTTClient) GetPublished() []mockPublish {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]mockPublish(nil), m.published...)
}

// PublishedTo returns messages published to topic, in order.
func (m *MockMQTTClient) PublishedTo(topic string) []mockPublish {
	var out []mockPublish
	for _, p := range m.GetPublished() {
		if p.Topic == topic {
			out = append(out, p)
		}
	}
	return out
}

func (m *MockMQTTClient) GetSubscriptions() []mockSubscription {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]mockSubscription(nil), m.subscriptions...)
}

func (m *MockMQTTClient) ClearPublished() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.published = nil
}

// SimulateMessage delivers a message to the subscription whose pattern
// matches topic.
func (m *MockMQTTClient) SimulateMessage(topic string, payload []byte) bool {
	m.mu.Lock()
	var handler func(string, []byte)
	for pattern, h := range m.handlers {
		if topicMatches(pattern, topic) {
			handler = h
			break
		}
	}
	m.mu.Unlock()
	if handler == nil {
		return false
	}
	handler(topic, payload)
	return true
}

// topicMatches implements MQTT wildcard matching for + and #.
func topicMatches(pattern, topic string) bool {
	p := strings.Split(pattern, "/")
	t := strings.Split(topic, "/")
	for i, seg := range p {
		if seg == "#" {
			return true
		}
		if i >= len(t) {
			return false
		}
		if seg != "+" && seg != t[i] {
			return false
		}
	}
	return len(p) == len(t)
}

// logEntry is one captured log call.
type logEntry struct {
	Level string
	Msg   string
	KV    []any
}

// captureLogger implements Logger and records every call.
type captureLogger struct {
	mu      sync.Mutex
	entries []logEntry
}

func (l *captureLogger) log(level, msg string, kv []any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, logEntry{Level: level, Msg: msg, KV: kv})
}

func (l *captureLogger) Debug(msg string, kv ...any) { l.log("debug", msg, kv) }
func (l *captureLogger) Info(msg string, kv ...any)  { l.log("info", msg, kv) }
func (l *captureLogger) Warn(msg string, kv ...any)  { l.log("warn", msg, kv) }
func (l *captureLogger) Error(msg string, kv ...any) { l.log("error", msg, kv) }

// find returns the first entry at level whose message contains substr.
func (l *captureLogger) find(level, substr string) (logEntry, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, e := range l.entries {
		if e.Level == level && strings.Contains(e.Msg, substr) {
			return e, true
		}
	}
	return logEntry{}, false
}

// value returns the value logged for key.
func (e logEntry) value(key string) (any, bool) {
	for i := 0; i+1 < len(e.KV); i += 2 {
		if fmt.Sprint(e.KV[i]) == key {
			return e.KV[i+1], true
		}
	}
	return nil, false
}

// fakeClock is a settable time source.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// recordedOutcome is one RequestRecorder call.
type recordedOutcome struct {
	Variant string
	Outcome string
	Elapsed time.Duration
}

type mockRecorder struct {
	mu       sync.Mutex
	outcomes []recordedOutcome
}

func (r *mockRecorder) RecordRequest(variant, outcome string, elapsed time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outcomes = append(r.outcomes, recordedOutcome{variant, outcome, elapsed})
}

func (r *mockRecorder) get() []recordedOutcome {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]recordedOutcome(nil), r.outcomes...)
}

type emittedEvent struct {
	Kind string
	Data any
}

type mockSink struct {
	mu     sync.Mutex
	events []emittedEvent
}

func (s *mockSink) Emit(kind string, data any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, emittedEvent{kind, data})
}

func (s *mockSink) kinds() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.events))
	for _, e := range s.events {
		out = append(out, e.Kind)
	}
	return out
}
