package influxdb

import (
	"sync/atomic"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/nerrad567/gray-logic-device/internal/resource"
)

// Measurement names.
const (
	MeasurementResource = "resource_value"
	MeasurementDelivery = "delivery_status"
)

// PointWriter accepts points. *Client satisfies it.
type PointWriter interface {
	Write(point *write.Point) error
}

var _ PointWriter = (*Client)(nil)

// Recorder turns resource changes and delivery outcomes into points.
//
// Register Record with resource.Registry.OnChange and RecordDelivery from
// the delivery-status handler.
type Recorder struct {
	writer   PointWriter
	endpoint string
	now      func() time.Time

	dropped atomic.Uint64
}

// NewRecorder creates a recorder tagging every point with endpoint.
func NewRecorder(writer PointWriter, endpoint string) *Recorder {
	return &Recorder{writer: writer, endpoint: endpoint, now: time.Now}
}

// Record writes the current value of res.
func (r *Recorder) Record(res *resource.Resource) {
	r.write(ResourcePoint(r.endpoint, res, r.now()))
}

// RecordDelivery writes one delivery-status transition.
func (r *Recorder) RecordDelivery(res *resource.Resource, status resource.DeliveryStatus, kind resource.MessageKind) {
	r.write(DeliveryPoint(r.endpoint, res.Path(), status, kind, r.now()))
}

// Dropped counts points the writer refused.
func (r *Recorder) Dropped() uint64 {
	return r.dropped.Load()
}

// write hands p to the writer. Callers are resource callbacks with no
// error path, so refusals are only counted.
func (r *Recorder) write(p *write.Point) {
	if err := r.writer.Write(p); err != nil {
		r.dropped.Add(1)
	}
}

// ResourcePoint builds the point for a resource value.
//
// Integer resources are written to the "value" field, text resources to
// "text". Tags: endpoint, path, name.
func ResourcePoint(endpoint string, res *resource.Resource, ts time.Time) *write.Point {
	fields := make(map[string]interface{}, 1)
	switch v := res.Value().(type) {
	case int64:
		fields["value"] = v
	case string:
		fields["text"] = v
	}

	return write.NewPoint(
		MeasurementResource,
		map[string]string{
			"endpoint": endpoint,
			"path":     res.Path().String(),
			"name":     res.Name(),
		},
		fields,
		ts,
	)
}

// DeliveryPoint builds the point for one delivery-status transition.
func DeliveryPoint(endpoint string, path resource.Path, status resource.DeliveryStatus, kind resource.MessageKind, ts time.Time) *write.Point {
	return write.NewPoint(
		MeasurementDelivery,
		map[string]string{
			"endpoint": endpoint,
			"path":     path.String(),
			"status":   status.String(),
			"kind":     kind.String(),
		},
		map[string]interface{}{
			"count": 1,
		},
		ts,
	)
}
