package devmgmt

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/nerrad567/gray-logic-device/internal/resource"
)

// handleChange queues a notification for an observable resource.
// It runs on the goroutine that set the value.
func (c *Client) handleChange(res *resource.Resource) {
	if !res.Observable() || !c.registered.Load() {
		return
	}

	seq := c.seq.Add(1)
	payload, err := marshalNotify(seq, res)
	if err != nil || len(payload) > maxNotifyPayload {
		c.logger.Warn("notification not built",
			"path", res.Path().String(),
			"size", len(payload),
			"error", err,
		)
		c.report(res, resource.BuildError, resource.Notification)
		return
	}

	n := notification{seq: seq, res: res, payload: payload, queued: make(chan struct{})}
	switch err := c.enqueue(n); {
	case errors.Is(err, ErrNotRegistered):
		return
	case err != nil:
		c.report(res, resource.ResendQueueFull, resource.Notification)
		return
	}
	c.report(res, resource.Queued, resource.Notification)
	close(n.queued)
}

// enqueue hands n to the send loop without blocking. It refuses with
// ErrNotRegistered once Close has started, so every accepted notification
// is either sent or drained.
func (c *Client) enqueue(n notification) error {
	c.gate.RLock()
	defer c.gate.RUnlock()

	if !c.registered.Load() {
		return ErrNotRegistered
	}
	select {
	case c.queue <- n:
		return nil
	default:
		return errQueueFull
	}
}

// sendLoop publishes queued notifications until done is closed.
func (c *Client) sendLoop(transport Transport, queue <-chan notification, done <-chan struct{}) {
	defer c.wg.Done()

	for {
		// Stop promptly once closed; Close drains what is left.
		select {
		case <-done:
			return
		default:
		}

		select {
		case <-done:
			return
		case n := <-queue:
			c.send(transport, n)
		}
	}
}

// drainQueue reports every notification the send loop never reached.
// It runs after the send loop has exited.
func (c *Client) drainQueue() {
	for {
		select {
		case n := <-c.queue:
			<-n.queued
			c.logger.Debug("notification dropped on close", "path", n.res.Path().String(), "seq", n.seq)
			c.report(n.res, resource.SendFailed, resource.Notification)
		default:
			return
		}
	}
}

func (c *Client) send(transport Transport, n notification) {
	path := n.res.Path().String()
	err := transport.Publish(c.cfg.Topics.Notify(path), n.payload, c.cfg.QoS, false)
	<-n.queued

	if err != nil {
		c.logger.Warn("notification send failed", "path", path, "seq", n.seq, "error", err)
		c.report(n.res, resource.SendFailed, resource.Notification)
		return
	}

	c.trackInflight(n.seq, n.res)
	c.report(n.res, resource.Sent, resource.Notification)
}

// trackInflight remembers a sent notification until the server acks it.
// The oldest entries are dropped when the table is full.
func (c *Client) trackInflight(seq uint64, res *resource.Resource) {
	c.inflightMu.Lock()
	defer c.inflightMu.Unlock()

	if len(c.inflight) >= maxInflight {
		oldest := seq
		for s := range c.inflight {
			if s < oldest {
				oldest = s
			}
		}
		delete(c.inflight, oldest)
	}
	c.inflight[seq] = res
}

// handleAckMessage maps a server ack to Delivered or Rejected.
func (c *Client) handleAckMessage(_ string, payload []byte) error {
	var ack ackMessage
	if err := json.Unmarshal(payload, &ack); err != nil {
		return fmt.Errorf("%w: ack: %w", ErrInvalidRequest, err)
	}

	c.inflightMu.Lock()
	res, ok := c.inflight[ack.Seq]
	delete(c.inflight, ack.Seq)
	c.inflightMu.Unlock()

	if !ok {
		c.logger.Debug("ack for unknown notification", "seq", ack.Seq, "path", ack.Path)
		return nil
	}

	switch ack.Status {
	case AckDelivered:
		c.report(res, resource.Delivered, resource.Notification)
	case AckRejected:
		c.report(res, resource.Rejected, resource.Notification)
	default:
		return fmt.Errorf("%w: ack status %q", ErrInvalidRequest, ack.Status)
	}
	return nil
}
