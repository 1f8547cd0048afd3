package mqtt

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/nerrad567/gray-logic-dynalite/internal/infrastructure/config"
)

// testConfig returns a valid MQTT configuration for testing.
// Nothing in this file connects to a broker; see integration_test.go.
func testConfig() config.MQTTConfig {
	return config.MQTTConfig{
		Broker: config.MQTTBrokerConfig{
			Host:     "127.0.0.1",
			Port:     1883,
			ClientID: "dynalite-bridge-test",
			TLS:      false,
		},
		Auth: config.MQTTAuthConfig{
			Username: "",
			Password: "",
		},
		QoS: 1,
		Reconnect: config.MQTTReconnectConfig{
			InitialDelay: 1,
			MaxDelay:     5,
		},
	}
}

var testAvailability = Availability{Topic: "bridges/light_dynalite/status"}

// mockLogger implements Logger interface for testing.
type mockLogger struct {
	errors []string
	warns  []string
	infos  []string
	mu     sync.Mutex
}

func (l *mockLogger) Error(msg string, args ...any) {
	l.mu.Lock()
	l.errors = append(l.errors, msg)
	l.mu.Unlock()
}

func (l *mockLogger) Warn(msg string, args ...any) {
	l.mu.Lock()
	l.warns = append(l.warns, msg)
	l.mu.Unlock()
}

func (l *mockLogger) Info(msg string, args ...any) {
	l.mu.Lock()
	l.infos = append(l.infos, msg)
	l.mu.Unlock()
}

func (l *mockLogger) counts() (errs, warns int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.errors), len(l.warns)
}

// fakeMessage implements pahomqtt.Message.
type fakeMessage struct {
	topic   string
	payload []byte
}

func (m fakeMessage) Duplicate() bool   { return false }
func (m fakeMessage) Qos() byte         { return 0 }
func (m fakeMessage) Retained() bool    { return false }
func (m fakeMessage) Topic() string     { return m.topic }
func (m fakeMessage) MessageID() uint16 { return 1 }
func (m fakeMessage) Payload() []byte   { return m.payload }
func (m fakeMessage) Ack()              {}

// =============================================================================
// Options Tests
// =============================================================================

func TestBuildClientOptions(t *testing.T) {
	cfg := testConfig()
	cfg.Auth = config.MQTTAuthConfig{Username: "bridge", Password: "secret"}

	opts := buildClientOptions(cfg)

	if len(opts.Servers) != 1 || opts.Servers[0].String() != "tcp://127.0.0.1:1883" {
		t.Errorf("Servers = %v, want [tcp://127.0.0.1:1883]", opts.Servers)
	}
	if opts.ClientID != "dynalite-bridge-test" {
		t.Errorf("ClientID = %q", opts.ClientID)
	}
	if opts.Username != "bridge" || opts.Password != "secret" {
		t.Errorf("credentials = %q/%q", opts.Username, opts.Password)
	}
	if !opts.CleanSession || !opts.AutoReconnect || !opts.ConnectRetry {
		t.Error("expected clean session with auto reconnect and connect retry")
	}
	if opts.ConnectRetryInterval != time.Second || opts.MaxReconnectInterval != 5*time.Second {
		t.Errorf("retry intervals = %v/%v, want 1s/5s", opts.ConnectRetryInterval, opts.MaxReconnectInterval)
	}
	if opts.TLSConfig != nil {
		t.Error("TLSConfig should be nil without TLS")
	}
}

func TestBuildClientOptionsTLS(t *testing.T) {
	cfg := testConfig()
	cfg.Broker.TLS = true
	cfg.Broker.Port = 8883

	opts := buildClientOptions(cfg)

	if opts.Servers[0].String() != "ssl://127.0.0.1:8883" {
		t.Errorf("Servers = %v, want ssl scheme", opts.Servers)
	}
	if opts.TLSConfig == nil || opts.TLSConfig.MinVersion != tlsMinVersion {
		t.Error("expected TLS 1.2 minimum")
	}
}

func TestBuildClientOptionsAnonymous(t *testing.T) {
	opts := buildClientOptions(testConfig())
	if opts.Username != "" || opts.Password != "" {
		t.Errorf("anonymous config set credentials %q/%q", opts.Username, opts.Password)
	}
}

func TestConfigureLWT(t *testing.T) {
	opts := buildClientOptions(testConfig())
	configureLWT(opts, testAvailability)

	if !opts.WillEnabled {
		t.Fatal("WillEnabled = false")
	}
	if opts.WillTopic != "bridges/light_dynalite/status" {
		t.Errorf("WillTopic = %q", opts.WillTopic)
	}
	if string(opts.WillPayload) != PayloadOffline {
		t.Errorf("WillPayload = %q, want %q", opts.WillPayload, PayloadOffline)
	}
	if opts.WillQos != 1 || !opts.WillRetained {
		t.Errorf("will qos=%d retained=%v, want 1 retained", opts.WillQos, opts.WillRetained)
	}
}

func TestConfigureLWTDisabled(t *testing.T) {
	opts := buildClientOptions(testConfig())
	configureLWT(opts, Availability{})

	if opts.WillEnabled {
		t.Error("WillEnabled = true for empty availability topic")
	}
}

// =============================================================================
// Validation Tests (no connection)
// =============================================================================

func TestIsConnected_InitialState(t *testing.T) {
	client := &Client{}

	if client.IsConnected() {
		t.Error("IsConnected() should be false for uninitialised client")
	}
}

func TestCloseNil(t *testing.T) {
	client := newClient(testConfig(), testAvailability)

	if err := client.Close(); err != nil {
		t.Errorf("Close() on unconnected client error = %v", err)
	}
}

func TestPublishValidation(t *testing.T) {
	client := newClient(testConfig(), testAvailability)

	tests := []struct {
		name    string
		topic   string
		payload []byte
		qos     byte
		want    error
	}{
		{"empty topic", "", []byte("x"), 0, ErrInvalidTopic},
		{"invalid qos", "dynalite/set", []byte("x"), 3, ErrInvalidQoS},
		{"oversized payload", "dynalite/set", make([]byte, maxPayloadSize+1), 0, ErrPublishFailed},
		{"not connected", "dynalite/set", []byte("x"), 0, ErrNotConnected},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := client.Publish(tt.topic, tt.payload, tt.qos, false)
			if !errors.Is(err, tt.want) {
				t.Errorf("Publish() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestSubscribeValidation(t *testing.T) {
	client := newClient(testConfig(), testAvailability)
	handler := func(string, []byte) error { return nil }

	tests := []struct {
		name    string
		topic   string
		qos     byte
		handler MessageHandler
		want    error
	}{
		{"empty topic", "", 0, handler, ErrInvalidTopic},
		{"invalid qos", "dynalite", 3, handler, ErrInvalidQoS},
		{"nil handler", "dynalite", 0, nil, ErrSubscribeFailed},
		{"not connected", "dynalite", 0, handler, ErrNotConnected},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := client.Subscribe(tt.topic, tt.qos, tt.handler)
			if !errors.Is(err, tt.want) {
				t.Errorf("Subscribe() error = %v, want %v", err, tt.want)
			}
		})
	}
	if client.SubscriptionCount() != 0 {
		t.Errorf("SubscriptionCount() = %d after failed subscribes, want 0", client.SubscriptionCount())
	}
	if client.HasSubscription("dynalite") {
		t.Error("HasSubscription() = true after failed subscribe")
	}
}

func TestUnsubscribeValidation(t *testing.T) {
	client := newClient(testConfig(), testAvailability)

	if err := client.Unsubscribe(""); !errors.Is(err, ErrInvalidTopic) {
		t.Errorf("Unsubscribe(\"\") error = %v, want ErrInvalidTopic", err)
	}
	if err := client.Unsubscribe("dynalite"); !errors.Is(err, ErrNotConnected) {
		t.Errorf("Unsubscribe() error = %v, want ErrNotConnected", err)
	}
}

func TestHealthCheck(t *testing.T) {
	client := newClient(testConfig(), testAvailability)

	if err := client.HealthCheck(context.Background()); !errors.Is(err, ErrNotConnected) {
		t.Errorf("HealthCheck() error = %v, want ErrNotConnected", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := client.HealthCheck(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("HealthCheck() error = %v, want context.Canceled", err)
	}
}

func TestPublishAvailabilityDisabled(t *testing.T) {
	client := newClient(testConfig(), Availability{})

	if token := client.publishAvailability(PayloadOnline); token != nil {
		t.Error("publishAvailability() with no topic should not publish")
	}
}

// =============================================================================
// Handler Tests
// =============================================================================

func TestWrapHandlerDeliversMessage(t *testing.T) {
	client := newClient(testConfig(), testAvailability)

	var gotTopic, gotPayload string
	wrapped := client.wrapHandler(func(topic string, payload []byte) error {
		gotTopic, gotPayload = topic, string(payload)
		return nil
	})
	wrapped(nil, fakeMessage{topic: "dynalite/set/res/abc", payload: []byte(`{"status":"ok"}`)})

	if gotTopic != "dynalite/set/res/abc" || gotPayload != `{"status":"ok"}` {
		t.Errorf("handler got %q %q", gotTopic, gotPayload)
	}
}

func TestWrapHandlerLogsError(t *testing.T) {
	client := newClient(testConfig(), testAvailability)
	logger := &mockLogger{}
	client.SetLogger(logger)

	wrapped := client.wrapHandler(func(string, []byte) error {
		return errors.New("handler error")
	})
	wrapped(nil, fakeMessage{topic: "dynalite"})

	if _, warns := logger.counts(); warns != 1 {
		t.Errorf("warns = %d, want 1", warns)
	}
}

func TestWrapHandlerRecoversPanic(t *testing.T) {
	client := newClient(testConfig(), testAvailability)
	logger := &mockLogger{}
	client.SetLogger(logger)

	wrapped := client.wrapHandler(func(string, []byte) error {
		panic("boom")
	})
	wrapped(nil, fakeMessage{topic: "dynalite"})

	if errs, _ := logger.counts(); errs != 1 {
		t.Errorf("errors = %d, want 1 panic log", errs)
	}
}

func TestWrapHandlerWithoutLogger(t *testing.T) {
	client := newClient(testConfig(), testAvailability)

	wrapped := client.wrapHandler(func(string, []byte) error {
		panic("boom")
	})
	// Must not propagate.
	wrapped(nil, fakeMessage{topic: "dynalite"})
}

func TestSetLogger(t *testing.T) {
	client := newClient(testConfig(), testAvailability)

	client.SetLogger(&mockLogger{})
	if client.getLogger() == nil {
		t.Error("getLogger() = nil after SetLogger()")
	}
	client.SetLogger(nil)
	if client.getLogger() != nil {
		t.Error("getLogger() should be nil after SetLogger(nil)")
	}
}

func TestDisconnectCallback(t *testing.T) {
	client := newClient(testConfig(), testAvailability)
	logger := &mockLogger{}
	client.SetLogger(logger)
	client.connected = true

	var gotErr error
	client.SetOnDisconnect(func(err error) { gotErr = err })

	lost := errors.New("connection reset")
	client.handleDisconnect(lost)

	if gotErr != lost {
		t.Errorf("callback err = %v, want %v", gotErr, lost)
	}
	if client.IsConnected() {
		t.Error("IsConnected() = true after connection lost")
	}
	if _, warns := logger.counts(); warns != 1 {
		t.Errorf("warns = %d, want 1", warns)
	}
}

// stalledToken never completes.
type stalledToken struct{}

func (stalledToken) Wait() bool                     { return false }
func (stalledToken) WaitTimeout(time.Duration) bool { return false }
func (stalledToken) Done() <-chan struct{}          { return make(chan struct{}) }
func (stalledToken) Error() error                   { return nil }

// stalledPaho is a connected paho client whose operations never complete.
type stalledPaho struct {
	pahomqtt.Client
}

func (stalledPaho) IsConnected() bool { return true }

func (stalledPaho) Publish(string, byte, bool, interface{}) pahomqtt.Token {
	return stalledToken{}
}

func (stalledPaho) Subscribe(string, byte, pahomqtt.MessageHandler) pahomqtt.Token {
	return stalledToken{}
}

func (stalledPaho) Unsubscribe(...string) pahomqtt.Token {
	return stalledToken{}
}

func TestOperationTimeouts(t *testing.T) {
	client := newClient(testConfig(), testAvailability)
	client.client = stalledPaho{}
	client.connected = true

	err := client.Publish("dynalite/set", []byte("{}"), 1, false)
	if !errors.Is(err, ErrTimeout) || !errors.Is(err, ErrPublishFailed) {
		t.Errorf("Publish() error = %v, want ErrPublishFailed and ErrTimeout", err)
	}

	err = client.Subscribe("dynalite", 1, func(string, []byte) error { return nil })
	if !errors.Is(err, ErrTimeout) || !errors.Is(err, ErrSubscribeFailed) {
		t.Errorf("Subscribe() error = %v, want ErrSubscribeFailed and ErrTimeout", err)
	}
	if n := client.SubscriptionCount(); n != 0 {
		t.Errorf("SubscriptionCount() = %d after timed out subscribe, want 0", n)
	}

	err = client.Unsubscribe("dynalite")
	if !errors.Is(err, ErrTimeout) || !errors.Is(err, ErrUnsubscribeFailed) {
		t.Errorf("Unsubscribe() error = %v, want ErrUnsubscribeFailed and ErrTimeout", err)
	}
}
