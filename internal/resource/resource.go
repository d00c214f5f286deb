package resource

import (
	"fmt"
	"strconv"
	"sync"
	"time"
)

// WriteFunc is called after a remote PUT has stored a new value.
type WriteFunc func(res *Resource)

// ExecuteFunc handles a remote POST. It returns the pending token obtained
// from req.Defer when the response should wait for the work to finish, or
// nil to acknowledge immediately.
type ExecuteFunc func(req *ExecuteRequest) *Pending

// StatusFunc observes the delivery outcome of a message about res.
type StatusFunc func(res *Resource, status DeliveryStatus, kind MessageKind)

// Spec describes a resource to create.
type Spec struct {
	Path       Path
	Name       string
	Type       ValueType
	Operations Operations

	// Observable resources are reported upstream on every value change.
	Observable bool

	// Delayed lets the execute handler defer its response.
	Delayed bool

	// Initial is the starting value: int64 (or int) for Integer, string for String.
	// Nil means zero value.
	Initial any

	OnWrite   WriteFunc
	OnExecute ExecuteFunc
	OnStatus  StatusFunc
}

// Resource is one registered resource. Handles are obtained from
// Registry.Create or Registry.Get and stay valid for the registry's life.
type Resource struct {
	path       Path
	name       string
	typ        ValueType
	ops        Operations
	observable bool
	delayed    bool

	onWrite   WriteFunc
	onExecute ExecuteFunc
	onStatus  StatusFunc

	mu        sync.RWMutex
	intValue  int64
	textValue string
	updatedAt time.Time

	// changed is installed by the registry.
	changed func(*Resource)
}

// Path returns the resource path.
func (r *Resource) Path() Path { return r.path }

// Name returns the human-readable name.
func (r *Resource) Name() string { return r.name }

// Type returns the value type.
func (r *Resource) Type() ValueType { return r.typ }

// Operations returns the access mode.
func (r *Resource) Operations() Operations { return r.ops }

// Observable reports whether value changes are pushed upstream.
func (r *Resource) Observable() bool { return r.observable }

// Delayed reports whether execute responses may be deferred.
func (r *Resource) Delayed() bool { return r.delayed }

// Allows reports whether the access mode permits op.
func (r *Resource) Allows(op Operations) bool { return r.ops.Has(op) }

// Int returns the value of an Integer resource.
func (r *Resource) Int() (int64, error) {
	if r.typ != Integer {
		return 0, fmt.Errorf("%w: %s is %s", ErrTypeMismatch, r.path, r.typ)
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.intValue, nil
}

// Text returns the value rendered as text. Integers are rendered in decimal.
func (r *Resource) Text() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.typ == Integer {
		return strconv.FormatInt(r.intValue, 10)
	}
	return r.textValue
}

// Value returns the current value as int64 or string.
func (r *Resource) Value() any {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.typ == Integer {
		return r.intValue
	}
	return r.textValue
}

// UpdatedAt returns when the value was last set. Zero if never set.
func (r *Resource) UpdatedAt() time.Time {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.updatedAt
}

// SetInt stores an integer value and notifies change listeners.
func (r *Resource) SetInt(v int64) error {
	if r.typ != Integer {
		return fmt.Errorf("%w: %s is %s", ErrTypeMismatch, r.path, r.typ)
	}
	r.mu.Lock()
	r.intValue = v
	r.updatedAt = time.Now()
	r.mu.Unlock()

	r.notifyChanged()
	return nil
}

// SetText stores a text value and notifies change listeners.
func (r *Resource) SetText(s string) error {
	if r.typ != String {
		return fmt.Errorf("%w: %s is %s", ErrTypeMismatch, r.path, r.typ)
	}
	r.mu.Lock()
	r.textValue = s
	r.updatedAt = time.Now()
	r.mu.Unlock()

	r.notifyChanged()
	return nil
}

// Write applies a remote PUT: the text is parsed per the value type, stored,
// and the write callback runs.
func (r *Resource) Write(text string) error {
	if !r.Allows(OpPut) {
		return fmt.Errorf("%w: PUT on %s", ErrOperationNotAllowed, r.path)
	}

	switch r.typ {
	case Integer:
		v, err := strconv.ParseInt(text, 10, 64)
		if err != nil {
			return fmt.Errorf("%w: %q is not an integer", ErrTypeMismatch, text)
		}
		if err := r.SetInt(v); err != nil {
			return err
		}
	default:
		if err := r.SetText(text); err != nil {
			return err
		}
	}

	if r.onWrite != nil {
		r.onWrite(r)
	}
	return nil
}

// Execute applies a remote POST by running the execute callback.
// The returned Pending is nil when the response is immediate.
func (r *Resource) Execute(req *ExecuteRequest) (*Pending, error) {
	if !r.Allows(OpPost) {
		return nil, fmt.Errorf("%w: POST on %s", ErrOperationNotAllowed, r.path)
	}
	if r.onExecute == nil {
		return nil, fmt.Errorf("%w: %s", ErrNoHandler, r.path)
	}
	return r.onExecute(req), nil
}

// ReportStatus hands a delivery outcome to the status callback, if any.
func (r *Resource) ReportStatus(status DeliveryStatus, kind MessageKind) {
	if r.onStatus != nil {
		r.onStatus(r, status, kind)
	}
}

func (r *Resource) notifyChanged() {
	if r.changed != nil {
		r.changed(r)
	}
}

// setInitial stores the starting value without notifying.
func (r *Resource) setInitial(v any) error {
	switch val := v.(type) {
	case nil:
		return nil
	case int:
		if r.typ == Integer {
			r.intValue = int64(val)
			return nil
		}
	case int64:
		if r.typ == Integer {
			r.intValue = val
			return nil
		}
	case string:
		if r.typ == String {
			r.textValue = val
			return nil
		}
	}
	return fmt.Errorf("%w: initial value %v (%T) for %s resource %s", ErrTypeMismatch, v, v, r.typ, r.path)
}
