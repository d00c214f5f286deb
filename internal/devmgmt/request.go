package devmgmt

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/nerrad567/gray-logic-device/internal/resource"
)

// handleRequestMessage decodes a request and dispatches it through the
// executor. It runs on the transport's goroutine.
func (c *Client) handleRequestMessage(topic string, payload []byte) error {
	path, ok := c.cfg.Topics.RequestPath(topic)
	if !ok {
		return fmt.Errorf("%w: unexpected topic %s", ErrInvalidRequest, topic)
	}

	var req Request
	if err := json.Unmarshal(payload, &req); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}
	if req.ID == "" {
		return fmt.Errorf("%w: missing id", ErrInvalidRequest)
	}

	c.executor(func() {
		c.Dispatch(path, req)
	})
	return nil
}

// Dispatch handles one request addressed to path and publishes the
// response. POST responses may be deferred by the execute callback.
//
// It must run on the executor's goroutine.
func (c *Client) Dispatch(path string, req Request) {
	if !c.registered.Load() {
		c.logger.Debug("request dropped, not registered", "id", req.ID, "path", path)
		return
	}

	res, err := c.registry.Lookup(path)
	if err != nil {
		code := CodeNotFound
		if errors.Is(err, resource.ErrInvalidPath) {
			code = CodeBadRequest
		}
		c.respond(nil, Response{ID: req.ID, Path: path, Code: code, Message: err.Error()})
		return
	}

	c.logger.Debug("request received", "id", req.ID, "method", req.Method, "path", path)

	switch req.Method {
	case MethodGet:
		c.handleGet(res, req)
	case MethodPut:
		c.handlePut(res, req)
	case MethodPost:
		c.handlePost(res, req)
	case MethodObserve:
		c.handleObserve(res, req)
	case MethodCancelObserve:
		c.handleCancelObserve(res, req)
	default:
		c.respond(res, Response{ID: req.ID, Path: path, Code: CodeBadRequest,
			Message: fmt.Sprintf("unknown method %q", req.Method)})
	}
}

func (c *Client) handleGet(res *resource.Resource, req Request) {
	if !res.Allows(resource.OpGet) {
		c.respond(res, methodNotAllowed(res, req))
		return
	}
	c.respond(res, Response{ID: req.ID, Path: res.Path().String(), Code: CodeContent, Value: res.Value()})
}

func (c *Client) handlePut(res *resource.Resource, req Request) {
	if !res.Allows(resource.OpPut) {
		c.respond(res, methodNotAllowed(res, req))
		return
	}
	if err := res.Write(req.Value); err != nil {
		c.respond(res, Response{ID: req.ID, Path: res.Path().String(), Code: CodeBadRequest, Message: err.Error()})
		return
	}
	c.respond(res, Response{ID: req.ID, Path: res.Path().String(), Code: CodeChanged})
}

func (c *Client) handlePost(res *resource.Resource, req Request) {
	if !res.Allows(resource.OpPost) {
		c.respond(res, methodNotAllowed(res, req))
		return
	}

	path := res.Path().String()
	exec := resource.NewExecuteRequest(req.ID, res, req.Args, func(payload string) {
		resp := Response{ID: req.ID, Path: path, Code: CodeChanged}
		if payload != "" {
			resp.Value = payload
		}
		c.respond(res, resp)
	})

	pending, err := res.Execute(exec)
	if err != nil {
		c.respond(res, Response{ID: req.ID, Path: path, Code: CodeInternalError, Message: err.Error()})
		return
	}
	if pending != nil {
		c.logger.Debug("response deferred", "id", req.ID, "path", path)
		return
	}
	c.respond(res, Response{ID: req.ID, Path: path, Code: CodeChanged})
}

func (c *Client) handleObserve(res *resource.Resource, req Request) {
	if !res.Allows(resource.OpGet) || !res.Observable() {
		c.respond(res, methodNotAllowed(res, req))
		return
	}

	c.observedMu.Lock()
	c.observed[res.Path()] = true
	c.observedMu.Unlock()

	c.respond(res, Response{ID: req.ID, Path: res.Path().String(), Code: CodeContent, Value: res.Value()})
	c.report(res, resource.Subscribed, resource.Observation)
}

func (c *Client) handleCancelObserve(res *resource.Resource, req Request) {
	c.observedMu.Lock()
	_, was := c.observed[res.Path()]
	delete(c.observed, res.Path())
	c.observedMu.Unlock()

	c.respond(res, Response{ID: req.ID, Path: res.Path().String(), Code: CodeChanged})
	if was {
		c.report(res, resource.Unsubscribed, resource.Observation)
	}
}

func methodNotAllowed(res *resource.Resource, req Request) Response {
	return Response{
		ID:      req.ID,
		Path:    res.Path().String(),
		Code:    CodeMethodNotAllowed,
		Message: fmt.Sprintf("%s not allowed, resource supports %s", req.Method, res.Operations()),
	}
}

// respond publishes a response and reports its delivery outcome on res.
// res is nil when the request did not address a known resource.
func (c *Client) respond(res *resource.Resource, resp Response) {
	c.mu.Lock()
	transport := c.transport
	c.mu.Unlock()

	status := c.publishResponse(transport, resp)
	if res != nil {
		c.report(res, status, resource.Response)
	}
}

func (c *Client) publishResponse(transport Transport, resp Response) resource.DeliveryStatus {
	payload, err := json.Marshal(resp)
	if err != nil {
		c.logger.Error("encoding response", "id", resp.ID, "error", err)
		return resource.BuildError
	}
	if transport == nil {
		c.logger.Warn("response dropped, connection closed", "id", resp.ID, "path", resp.Path)
		return resource.SendFailed
	}
	if err := transport.Publish(c.cfg.Topics.Response(resp.ID), payload, c.cfg.QoS, false); err != nil {
		c.logger.Warn("response send failed", "id", resp.ID, "path", resp.Path, "error", err)
		return resource.SendFailed
	}
	return resource.Sent
}
