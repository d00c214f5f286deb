// Package mqtt provides the broker connection behind the device-management
// client.
//
// This package manages:
//   - Connection to the broker with auto-reconnect
//   - Publishing with QoS and payload-size checks
//   - Subscriptions restored after reconnect
//   - Last Will on the endpoint status topic for offline detection
//
// # Topic layout
//
// All traffic for one device lives under {root}/{endpoint}, see Topics:
//
//	graylogic/dm/dev-01/register           device → server (retained)
//	graylogic/dm/dev-01/status             device → server (retained, LWT)
//	graylogic/dm/dev-01/notify/3303/0/5700 device → server
//	graylogic/dm/dev-01/request/+/+/+      server → device
//
// # Security Considerations
//
//   - Enable TLS for anything beyond a lab bench (cfg.Broker.TLS=true)
//   - Credentials come from config or GRAYLOGIC_DEVICE_MQTT_* variables
//
// # Usage
//
//	topics := mqtt.Topics{Root: cfg.Device.TopicRoot, Endpoint: identity.EndpointName}
//	client, err := mqtt.Connect(cfg.MQTT, topics)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	err = client.Subscribe(topics.AllRequests(), 1,
//	    func(topic string, payload []byte) error {
//	        return handleRequest(topic, payload)
//	    })
package mqtt
