package mqtt

import (
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/nerrad567/gray-logic-device/internal/infrastructure/config"
)

func testConfig() config.MQTTConfig {
	return config.MQTTConfig{
		Broker: config.MQTTBrokerConfig{
			Host: "127.0.0.1",
			Port: 1883,
		},
		QoS: 1,
		Reconnect: config.MQTTReconnectConfig{
			InitialDelay: 1,
			MaxDelay:     5,
		},
	}
}

func testTopics() Topics {
	return Topics{Root: "graylogic/dm", Endpoint: "dev-01"}
}

// =============================================================================
// Topic Tests
// =============================================================================

func TestTopicBuilders(t *testing.T) {
	topics := testTopics()

	tests := []struct {
		name string
		got  string
		want string
	}{
		{"Base", topics.Base(), "graylogic/dm/dev-01"},
		{"Register", topics.Register(), "graylogic/dm/dev-01/register"},
		{"Deregister", topics.Deregister(), "graylogic/dm/dev-01/deregister"},
		{"Status", topics.Status(), "graylogic/dm/dev-01/status"},
		{"Notify", topics.Notify("3303/0/5700"), "graylogic/dm/dev-01/notify/3303/0/5700"},
		{"Response", topics.Response("abc"), "graylogic/dm/dev-01/response/abc"},
		{"Request", topics.Request("3201/0/5850"), "graylogic/dm/dev-01/request/3201/0/5850"},
		{"AllRequests", topics.AllRequests(), "graylogic/dm/dev-01/request/+/+/+"},
		{"Ack", topics.Ack(), "graylogic/dm/dev-01/ack"},
		{"DefaultRoot", Topics{Endpoint: "x"}.Base(), "graylogic/dm/x"},
		{"TrailingSlash", Topics{Root: "lab/", Endpoint: "x"}.Base(), "lab/x"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("%s = %q, want %q", tt.name, tt.got, tt.want)
			}
		})
	}
}

func TestTopics_RequestPath(t *testing.T) {
	topics := testTopics()

	tests := []struct {
		topic  string
		want   string
		wantOK bool
	}{
		{"graylogic/dm/dev-01/request/3201/0/5850", "3201/0/5850", true},
		{"graylogic/dm/dev-02/request/3201/0/5850", "", false},
		{"graylogic/dm/dev-01/request/3201/0", "", false},
		{"graylogic/dm/dev-01/notify/3201/0/5850", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.topic, func(t *testing.T) {
			got, ok := topics.RequestPath(tt.topic)
			if got != tt.want || ok != tt.wantOK {
				t.Errorf("RequestPath(%q) = (%q, %v), want (%q, %v)", tt.topic, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

// =============================================================================
// Options Tests
// =============================================================================

func TestBuildClientOptions(t *testing.T) {
	t.Run("client id falls back to endpoint", func(t *testing.T) {
		opts := buildClientOptions(testConfig(), "dev-01")
		if opts.ClientID != "dev-01" {
			t.Errorf("ClientID = %q, want dev-01", opts.ClientID)
		}
		if len(opts.Servers) != 1 || opts.Servers[0].String() != "tcp://127.0.0.1:1883" {
			t.Errorf("Servers = %v, want tcp://127.0.0.1:1883", opts.Servers)
		}
		if opts.Username != "" {
			t.Errorf("Username = %q, want empty", opts.Username)
		}
	})

	t.Run("explicit client id, auth and tls", func(t *testing.T) {
		cfg := testConfig()
		cfg.Broker.ClientID = "custom"
		cfg.Broker.TLS = true
		cfg.Auth.Username = "user"
		cfg.Auth.Password = "pass"

		opts := buildClientOptions(cfg, "dev-01")
		if opts.ClientID != "custom" {
			t.Errorf("ClientID = %q, want custom", opts.ClientID)
		}
		if opts.Servers[0].Scheme != "ssl" {
			t.Errorf("scheme = %q, want ssl", opts.Servers[0].Scheme)
		}
		if opts.Username != "user" || opts.Password != "pass" {
			t.Error("credentials not applied")
		}
		if opts.TLSConfig == nil || opts.TLSConfig.MinVersion != tlsMinVersion {
			t.Error("TLS config not applied")
		}
	})
}

func TestConfigureLWT(t *testing.T) {
	opts := pahomqtt.NewClientOptions()
	configureLWT(opts, testTopics())

	if !opts.WillEnabled {
		t.Fatal("WillEnabled = false")
	}
	if opts.WillTopic != "graylogic/dm/dev-01/status" {
		t.Errorf("WillTopic = %q", opts.WillTopic)
	}
	if !opts.WillRetained {
		t.Error("WillRetained = false, want true")
	}

	var msg statusMessage
	if err := json.Unmarshal(opts.WillPayload, &msg); err != nil {
		t.Fatalf("will payload is not JSON: %v", err)
	}
	if msg.Status != StatusOffline || msg.Endpoint != "dev-01" || msg.Reason != "unexpected_disconnect" {
		t.Errorf("will payload = %+v", msg)
	}
}

// =============================================================================
// Validation Tests (no broker required)
// =============================================================================

func TestPublish_Validation(t *testing.T) {
	c := newClient(testConfig(), testTopics())

	tests := []struct {
		name    string
		topic   string
		payload []byte
		qos     byte
		wantErr error
	}{
		{"empty topic", "", []byte("x"), 1, ErrInvalidTopic},
		{"invalid qos", "t", []byte("x"), 3, ErrInvalidQoS},
		{"oversized", "t", make([]byte, maxPayloadSize+1), 1, ErrPayloadTooLarge},
		{"not connected", "t", []byte("x"), 1, ErrNotConnected},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := c.Publish(tt.topic, tt.payload, tt.qos, false)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Publish() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestSubscribe_Validation(t *testing.T) {
	c := newClient(testConfig(), testTopics())
	noop := func(string, []byte) error { return nil }

	if err := c.Subscribe("", 1, noop); !errors.Is(err, ErrInvalidTopic) {
		t.Errorf("empty topic error = %v", err)
	}
	if err := c.Subscribe("t", 3, noop); !errors.Is(err, ErrInvalidQoS) {
		t.Errorf("invalid qos error = %v", err)
	}
	if err := c.Subscribe("t", 1, nil); !errors.Is(err, ErrSubscribeFailed) {
		t.Errorf("nil handler error = %v", err)
	}
	if err := c.Subscribe("t", 1, noop); !errors.Is(err, ErrNotConnected) {
		t.Errorf("disconnected error = %v", err)
	}
	if c.SubscriptionCount() != 0 || c.HasSubscription("t") {
		t.Error("failed subscribe should not be tracked")
	}
	if err := c.Unsubscribe(""); !errors.Is(err, ErrInvalidTopic) {
		t.Errorf("Unsubscribe empty topic error = %v", err)
	}
}

func TestClose_NotConnected(t *testing.T) {
	var nilClient *Client
	if err := nilClient.Close(); err != nil {
		t.Errorf("nil Close() error = %v", err)
	}
	if err := newClient(testConfig(), testTopics()).Close(); err != nil {
		t.Errorf("Close() without connection error = %v", err)
	}
}

// =============================================================================
// Handler Wrapping Tests
// =============================================================================

type fakeMessage struct {
	topic   string
	payload []byte
}

func (m fakeMessage) Duplicate() bool   { return false }
func (m fakeMessage) Qos() byte         { return 1 }
func (m fakeMessage) Retained() bool    { return false }
func (m fakeMessage) Topic() string     { return m.topic }
func (m fakeMessage) MessageID() uint16 { return 1 }
func (m fakeMessage) Payload() []byte   { return m.payload }
func (m fakeMessage) Ack()              {}

type mockLogger struct {
	mu     sync.Mutex
	errors []string
	warns  []string
}

func (l *mockLogger) Error(msg string, _ ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.errors = append(l.errors, msg)
}

func (l *mockLogger) Warn(msg string, _ ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.warns = append(l.warns, msg)
}

func TestWrapHandler(t *testing.T) {
	c := newClient(testConfig(), testTopics())
	logger := &mockLogger{}
	c.SetLogger(logger)

	var got string
	c.wrapHandler(func(topic string, payload []byte) error {
		got = topic + "=" + string(payload)
		return nil
	})(nil, fakeMessage{topic: "a/b", payload: []byte("1")})
	if got != "a/b=1" {
		t.Errorf("handler saw %q", got)
	}

	c.wrapHandler(func(string, []byte) error {
		return errors.New("bad request")
	})(nil, fakeMessage{topic: "a/b"})
	if len(logger.warns) != 1 {
		t.Errorf("warns = %v, want 1 entry", logger.warns)
	}

	c.wrapHandler(func(string, []byte) error {
		panic("boom")
	})(nil, fakeMessage{topic: "a/b"})
	if len(logger.errors) != 1 || !strings.Contains(logger.errors[0], "panic") {
		t.Errorf("errors = %v, want panic entry", logger.errors)
	}
}
