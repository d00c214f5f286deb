package resource

import (
	"fmt"
	"strconv"
	"strings"
)

// Path addresses one resource as object/instance/resource.
type Path struct {
	Object   uint16
	Instance uint16
	Resource uint16
}

// String renders the path as "object/instance/resource".
func (p Path) String() string {
	return fmt.Sprintf("%d/%d/%d", p.Object, p.Instance, p.Resource)
}

// ParsePath parses "3303/0/5700". Leading and trailing slashes are ignored.
func ParsePath(s string) (Path, error) {
	parts := strings.Split(strings.Trim(s, "/"), "/")
	if len(parts) != 3 {
		return Path{}, fmt.Errorf("%w: %q", ErrInvalidPath, s)
	}

	var ids [3]uint16
	for i, part := range parts {
		v, err := strconv.ParseUint(part, 10, 16)
		if err != nil {
			return Path{}, fmt.Errorf("%w: %q: %w", ErrInvalidPath, s, err)
		}
		ids[i] = uint16(v)
	}
	return Path{Object: ids[0], Instance: ids[1], Resource: ids[2]}, nil
}

// ValueType is the declared type of a resource value. It never changes
// after creation.
type ValueType int

// Value types.
const (
	Integer ValueType = iota
	String
)

// String returns the wire name of the type.
func (t ValueType) String() string {
	switch t {
	case Integer:
		return "integer"
	case String:
		return "string"
	default:
		return fmt.Sprintf("ValueType(%d)", int(t))
	}
}

// Operations is the access mode of a resource.
type Operations uint8

// Operation bits.
const (
	OpGet Operations = 1 << iota
	OpPut
	OpPost
)

// Common access modes.
const (
	ReadOnly    = OpGet
	ReadWrite   = OpGet | OpPut
	ExecuteOnly = OpPost
)

// Has reports whether all bits of op are allowed.
func (o Operations) Has(op Operations) bool {
	return op != 0 && o&op == op
}

// String renders the set as "GET|PUT".
func (o Operations) String() string {
	var names []string
	if o&OpGet != 0 {
		names = append(names, "GET")
	}
	if o&OpPut != 0 {
		names = append(names, "PUT")
	}
	if o&OpPost != 0 {
		names = append(names, "POST")
	}
	if len(names) == 0 {
		return "NONE"
	}
	return strings.Join(names, "|")
}

// DeliveryStatus is the outcome of one upstream transmission about a
// resource. It is observational only.
type DeliveryStatus int

// Delivery statuses.
const (
	BuildError DeliveryStatus = iota
	ResendQueueFull
	Queued
	Sent
	Delivered
	SendFailed
	Subscribed
	Unsubscribed
	Rejected
)

var deliveryStatusNames = map[DeliveryStatus]string{
	BuildError:      "build_error",
	ResendQueueFull: "resend_queue_full",
	Queued:          "queued",
	Sent:            "sent",
	Delivered:       "delivered",
	SendFailed:      "send_failed",
	Subscribed:      "subscribed",
	Unsubscribed:    "unsubscribed",
	Rejected:        "rejected",
}

func (s DeliveryStatus) String() string {
	if name, ok := deliveryStatusNames[s]; ok {
		return name
	}
	return fmt.Sprintf("DeliveryStatus(%d)", int(s))
}

// MessageKind says what kind of message a delivery status refers to.
type MessageKind int

// Message kinds.
const (
	Notification MessageKind = iota
	Response
	Observation
)

func (k MessageKind) String() string {
	switch k {
	case Notification:
		return "notification"
	case Response:
		return "response"
	case Observation:
		return "observation"
	default:
		return fmt.Sprintf("MessageKind(%d)", int(k))
	}
}
