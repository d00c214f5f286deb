package mqtt

import (
	"fmt"
	"strings"
)

// DefaultTopicRoot is the prefix for all device-management traffic.
const DefaultTopicRoot = "graylogic/dm"

// Topics builds device-management topics for one endpoint.
//
// Every topic lives under {Root}/{Endpoint}:
//
//	topics := mqtt.Topics{Root: "graylogic/dm", Endpoint: "dev-01"}
//	topics.Notify("3303/0/5700")
//	// Returns: "graylogic/dm/dev-01/notify/3303/0/5700"
type Topics struct {
	Root     string
	Endpoint string
}

// Base returns the per-endpoint topic prefix.
//
// Example: graylogic/dm/dev-01
func (t Topics) Base() string {
	root := t.Root
	if root == "" {
		root = DefaultTopicRoot
	}
	return fmt.Sprintf("%s/%s", strings.TrimSuffix(root, "/"), t.Endpoint)
}

// Register returns the retained registration topic.
//
// Example: graylogic/dm/dev-01/register
func (t Topics) Register() string {
	return t.Base() + "/register"
}

// Deregister returns the topic announcing a deliberate unregistration.
//
// Example: graylogic/dm/dev-01/deregister
func (t Topics) Deregister() string {
	return t.Base() + "/deregister"
}

// Status returns the retained online/offline topic. It doubles as the
// Last Will topic.
//
// Example: graylogic/dm/dev-01/status
func (t Topics) Status() string {
	return t.Base() + "/status"
}

// Notify returns the topic for value notifications of one resource.
//
// Example: graylogic/dm/dev-01/notify/3200/0/5501
func (t Topics) Notify(path string) string {
	return fmt.Sprintf("%s/notify/%s", t.Base(), path)
}

// Response returns the topic for the response to one request.
//
// Example: graylogic/dm/dev-01/response/7d3c...
func (t Topics) Response(requestID string) string {
	return fmt.Sprintf("%s/response/%s", t.Base(), requestID)
}

// Request returns the topic the server uses to address one resource.
//
// Example: graylogic/dm/dev-01/request/3201/0/5850
func (t Topics) Request(path string) string {
	return fmt.Sprintf("%s/request/%s", t.Base(), path)
}

// AllRequests returns the wildcard subscription for every resource request.
//
// Example: graylogic/dm/dev-01/request/+/+/+
func (t Topics) AllRequests() string {
	return t.Base() + "/request/+/+/+"
}

// Ack returns the topic on which the server acknowledges notifications.
//
// Example: graylogic/dm/dev-01/ack
func (t Topics) Ack() string {
	return t.Base() + "/ack"
}

// RequestPath extracts the "o/i/r" path from a request topic.
// Returns false if topic is not a request topic for this endpoint.
func (t Topics) RequestPath(topic string) (string, bool) {
	prefix := t.Base() + "/request/"
	path, ok := strings.CutPrefix(topic, prefix)
	if !ok || strings.Count(path, "/") != 2 {
		return "", false
	}
	return path, true
}
