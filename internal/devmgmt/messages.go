package devmgmt

import (
	"encoding/json"
	"time"

	"github.com/nerrad567/gray-logic-device/internal/resource"
)

// Response codes.
const (
	CodeContent          = 205
	CodeChanged          = 204
	CodeBadRequest       = 400
	CodeNotFound         = 404
	CodeMethodNotAllowed = 405
	CodeInternalError    = 500
)

// Request methods.
const (
	MethodGet           = "GET"
	MethodPut           = "PUT"
	MethodPost          = "POST"
	MethodObserve       = "OBSERVE"
	MethodCancelObserve = "CANCEL_OBSERVE"
)

// Ack statuses sent by the server.
const (
	AckDelivered = "delivered"
	AckRejected  = "rejected"
)

// maxNotifyPayload bounds one notification. Larger values are reported as
// BuildError instead of being queued.
const maxNotifyPayload = 16 << 10

// resourceDescriptor describes one resource in the register message.
type resourceDescriptor struct {
	Path       string `json:"path"`
	Name       string `json:"name"`
	Type       string `json:"type"`
	Operations string `json:"operations"`
	Observable bool   `json:"observable"`
	Delayed    bool   `json:"delayed,omitempty"`
}

type registerMessage struct {
	Endpoint  string               `json:"endpoint"`
	Lifetime  int                  `json:"lifetime"`
	Resources []resourceDescriptor `json:"resources"`
	Timestamp time.Time            `json:"timestamp"`
}

type deregisterMessage struct {
	Endpoint  string    `json:"endpoint"`
	Reason    string    `json:"reason"`
	Timestamp time.Time `json:"timestamp"`
}

type notifyMessage struct {
	Seq       uint64    `json:"seq"`
	Path      string    `json:"path"`
	Value     any       `json:"value"`
	Timestamp time.Time `json:"timestamp"`
}

// Request is an inbound request addressed to one resource.
type Request struct {
	ID     string `json:"id"`
	Method string `json:"method"`
	Value  string `json:"value,omitempty"`
	Args   string `json:"args,omitempty"`
}

// Response answers one Request.
type Response struct {
	ID      string `json:"id"`
	Path    string `json:"path"`
	Code    int    `json:"code"`
	Value   any    `json:"value,omitempty"`
	Message string `json:"message,omitempty"`
}

type ackMessage struct {
	Seq    uint64 `json:"seq"`
	Path   string `json:"path"`
	Status string `json:"status"`
}

func describe(res *resource.Resource) resourceDescriptor {
	return resourceDescriptor{
		Path:       res.Path().String(),
		Name:       res.Name(),
		Type:       res.Type().String(),
		Operations: res.Operations().String(),
		Observable: res.Observable(),
		Delayed:    res.Delayed(),
	}
}

func marshalNotify(seq uint64, res *resource.Resource) ([]byte, error) {
	return json.Marshal(notifyMessage{
		Seq:       seq,
		Path:      res.Path().String(),
		Value:     res.Value(),
		Timestamp: time.Now().UTC(),
	})
}
