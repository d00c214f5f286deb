package influxdb

import (
	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Write queues point for the next batch. A nil point is ignored. Write
// returns ErrNotConnected after Close; failures of the batch itself are
// reported through SetOnError.
func (c *Client) Write(point *write.Point) error {
	if point == nil {
		return nil
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	if !c.connected {
		return ErrNotConnected
	}
	c.writeAPI.WritePoint(point)
	c.written.Add(1)
	return nil
}
