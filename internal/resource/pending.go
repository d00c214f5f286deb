package resource

import (
	"sync"
	"sync/atomic"
)

// ExecuteRequest is one remote POST handed to an ExecuteFunc.
type ExecuteRequest struct {
	// ID identifies the request on the wire.
	ID string

	// Resource is the executed resource.
	Resource *Resource

	// Args is the opaque argument text sent with the request.
	Args string

	respond func(payload string)

	deferOnce sync.Once
	pending   *Pending
}

// NewExecuteRequest builds a request. respond is called at most once with
// the payload passed to Pending.Resolve when the handler defers.
func NewExecuteRequest(id string, res *Resource, args string, respond func(payload string)) *ExecuteRequest {
	return &ExecuteRequest{
		ID:       id,
		Resource: res,
		Args:     args,
		respond:  respond,
	}
}

// Defer returns the pending token for this request. It returns nil when
// the resource does not allow delayed responses. Repeated calls return the
// same token.
func (r *ExecuteRequest) Defer() *Pending {
	if r.Resource == nil || !r.Resource.Delayed() {
		return nil
	}
	r.deferOnce.Do(func() {
		r.pending = &Pending{
			requestID: r.ID,
			path:      r.Resource.Path(),
			respond:   r.respond,
		}
	})
	return r.pending
}

// Pending is a deferred response to one execute request.
// It is resolved exactly once.
type Pending struct {
	requestID string
	path      Path
	respond   func(payload string)

	once     sync.Once
	resolved atomic.Bool
}

// RequestID returns the ID of the request this token answers.
func (p *Pending) RequestID() string { return p.requestID }

// Path returns the executed resource's path.
func (p *Pending) Path() Path { return p.path }

// Resolved reports whether Resolve has been called.
func (p *Pending) Resolved() bool { return p.resolved.Load() }

// Resolve sends the deferred response. A second call does nothing and
// returns ErrAlreadyResolved.
func (p *Pending) Resolve(payload string) error {
	err := ErrAlreadyResolved
	p.once.Do(func() {
		p.resolved.Store(true)
		if p.respond != nil {
			p.respond(payload)
		}
		err = nil
	})
	return err
}
