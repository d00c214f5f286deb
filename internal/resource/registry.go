package resource

import (
	"fmt"
	"sync"
)

// Logger defines the logging interface used by the Registry.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// ChangeFunc is called after any resource value is set, locally or remotely.
type ChangeFunc func(res *Resource)

// Registry owns every resource of the device.
//
// All public methods are thread-safe.
type Registry struct {
	mu        sync.RWMutex
	resources map[Path]*Resource
	order     []*Resource

	listenersMu sync.RWMutex
	listeners   []ChangeFunc

	logger Logger
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		resources: make(map[Path]*Resource),
		logger:    noopLogger{},
	}
}

// SetLogger sets the logger for the registry.
func (r *Registry) SetLogger(logger Logger) {
	r.logger = logger
}

// Create registers a new resource and returns its handle.
//
// Returns ErrResourceExists for a duplicate path, ErrInvalidSpec for an
// incomplete definition and ErrTypeMismatch for a bad initial value.
func (r *Registry) Create(spec Spec) (*Resource, error) {
	if spec.Operations == 0 {
		return nil, fmt.Errorf("%w: %s has no operations", ErrInvalidSpec, spec.Path)
	}
	if spec.Delayed && !spec.Operations.Has(OpPost) {
		return nil, fmt.Errorf("%w: %s is delayed but not executable", ErrInvalidSpec, spec.Path)
	}
	if spec.Type != Integer && spec.Type != String {
		return nil, fmt.Errorf("%w: %s has unknown type %s", ErrInvalidSpec, spec.Path, spec.Type)
	}

	res := &Resource{
		path:       spec.Path,
		name:       spec.Name,
		typ:        spec.Type,
		ops:        spec.Operations,
		observable: spec.Observable,
		delayed:    spec.Delayed,
		onWrite:    spec.OnWrite,
		onExecute:  spec.OnExecute,
		onStatus:   spec.OnStatus,
		changed:    r.fireChanged,
	}
	if err := res.setInitial(spec.Initial); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.resources[spec.Path]; exists {
		return nil, fmt.Errorf("%w: %s", ErrResourceExists, spec.Path)
	}
	r.resources[spec.Path] = res
	r.order = append(r.order, res)

	r.logger.Debug("resource created",
		"path", spec.Path.String(),
		"name", spec.Name,
		"type", spec.Type.String(),
		"operations", spec.Operations.String(),
	)
	return res, nil
}

// Get returns the resource at path or ErrNotFound.
func (r *Registry) Get(path Path) (*Resource, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	res, ok := r.resources[path]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
	}
	return res, nil
}

// Lookup parses a path string and returns the resource.
func (r *Registry) Lookup(path string) (*Resource, error) {
	p, err := ParsePath(path)
	if err != nil {
		return nil, err
	}
	return r.Get(p)
}

// List returns all resources in creation order.
func (r *Registry) List() []*Resource {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Resource, len(r.order))
	copy(out, r.order)
	return out
}

// Len returns the number of registered resources.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}

// OnChange adds a listener called after every value change.
// Listeners run on the goroutine that set the value.
func (r *Registry) OnChange(fn ChangeFunc) {
	if fn == nil {
		return
	}
	r.listenersMu.Lock()
	r.listeners = append(r.listeners, fn)
	r.listenersMu.Unlock()
}

func (r *Registry) fireChanged(res *Resource) {
	r.listenersMu.RLock()
	listeners := make([]ChangeFunc, len(r.listeners))
	copy(listeners, r.listeners)
	r.listenersMu.RUnlock()

	for _, fn := range listeners {
		fn(res)
	}
}
