package devmgmt

import (
	"github.com/nerrad567/gray-logic-device/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-device/internal/infrastructure/mqtt"
)

// Transport is the message connection to the management service.
// *mqtt.Client satisfies it.
type Transport interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	Unsubscribe(topic string) error
	IsConnected() bool
	Close() error
}

var _ Transport = (*mqtt.Client)(nil)

// Dialer opens a transport for an endpoint.
type Dialer func(topics mqtt.Topics) (Transport, error)

// MQTTDialer returns a Dialer that connects to the configured broker.
// logger receives handler errors and panics from the MQTT client; it may be nil.
func MQTTDialer(cfg config.MQTTConfig, logger mqtt.Logger) Dialer {
	return func(topics mqtt.Topics) (Transport, error) {
		client, err := mqtt.Connect(cfg, topics)
		if err != nil {
			return nil, err
		}
		if logger != nil {
			client.SetLogger(logger)
		}
		return client, nil
	}
}
