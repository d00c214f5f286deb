package devmgmt

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nerrad567/gray-logic-device/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-device/internal/resource"
)

// Default settings.
const (
	DefaultLifetime  = 3600
	DefaultQueueSize = 32

	// maxInflight bounds the notifications awaiting a server ack.
	maxInflight = 256
)

// Logger defines the logging interface used by the client.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Executor runs fn, possibly later on another goroutine.
type Executor func(fn func())

func runInline(fn func()) { fn() }

// Config configures a Client.
type Config struct {
	// Topics addresses this endpoint.
	Topics mqtt.Topics

	// Lifetime is the registration lifetime in seconds. Default: 3600
	Lifetime int

	// QoS is used for every publish and subscription.
	QoS byte

	// QueueSize bounds the outbound notification queue. Default: 32
	QueueSize int
}

// notification is one queued observable value.
type notification struct {
	seq     uint64
	res     *resource.Resource
	payload []byte

	// queued is closed once Queued has been reported, so later statuses
	// for the same message are reported after it.
	queued chan struct{}
}

// Client is the device-management client.
//
// Thread Safety:
//   - All methods are safe for concurrent use.
//   - Resource callbacks run through the Executor.
type Client struct {
	cfg      Config
	registry *resource.Registry
	dial     Dialer

	logger   Logger
	executor Executor

	mu         sync.Mutex
	transport  Transport
	registered atomic.Bool

	// gate orders enqueues against Close: nothing enters queue once
	// registered has been cleared under the write lock.
	gate  sync.RWMutex
	queue chan notification

	done       chan struct{}
	wg         sync.WaitGroup

	seq atomic.Uint64

	inflightMu sync.Mutex
	inflight   map[uint64]*resource.Resource

	observedMu sync.RWMutex
	observed   map[resource.Path]bool
}

// New creates a client for the resources in registry. Observable resources
// are announced upstream whenever their value changes while registered.
func New(cfg Config, registry *resource.Registry, dial Dialer) *Client {
	if cfg.Lifetime <= 0 {
		cfg.Lifetime = DefaultLifetime
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = DefaultQueueSize
	}

	c := &Client{
		cfg:      cfg,
		registry: registry,
		dial:     dial,
		logger:   noopLogger{},
		executor: runInline,
		inflight: make(map[uint64]*resource.Resource),
		observed: make(map[resource.Path]bool),
	}
	registry.OnChange(c.handleChange)
	return c
}

// SetLogger sets the logger for the client.
func (c *Client) SetLogger(logger Logger) {
	c.logger = logger
}

// SetExecutor installs the executor for callbacks. Must be called before
// RegisterAndConnect.
func (c *Client) SetExecutor(exec Executor) {
	if exec == nil {
		exec = runInline
	}
	c.executor = exec
}

// Endpoint returns the endpoint name.
func (c *Client) Endpoint() string {
	return c.cfg.Topics.Endpoint
}

// RegisterAndConnect connects to the management service, subscribes to
// requests and acks, and publishes the retained register message listing
// every resource.
//
// Returns:
//   - error: ErrAlreadyRegistered, ErrNoResources, or a wrapped transport error
func (c *Client) RegisterAndConnect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.registered.Load() {
		return ErrAlreadyRegistered
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	resources := c.registry.List()
	if len(resources) == 0 {
		return ErrNoResources
	}

	transport, err := c.dial(c.cfg.Topics)
	if err != nil {
		return fmt.Errorf("connecting transport: %w", err)
	}

	topics := c.cfg.Topics
	if err := transport.Subscribe(topics.AllRequests(), c.cfg.QoS, c.handleRequestMessage); err != nil {
		transport.Close() //nolint:errcheck // best effort cleanup on error path
		return fmt.Errorf("subscribing to requests: %w", err)
	}
	if err := transport.Subscribe(topics.Ack(), c.cfg.QoS, c.handleAckMessage); err != nil {
		transport.Close() //nolint:errcheck // best effort cleanup on error path
		return fmt.Errorf("subscribing to acks: %w", err)
	}

	msg := registerMessage{
		Endpoint:  topics.Endpoint,
		Lifetime:  c.cfg.Lifetime,
		Resources: make([]resourceDescriptor, 0, len(resources)),
		Timestamp: time.Now().UTC(),
	}
	for _, res := range resources {
		msg.Resources = append(msg.Resources, describe(res))
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		transport.Close() //nolint:errcheck // best effort cleanup on error path
		return fmt.Errorf("encoding register message: %w", err)
	}
	if err := transport.Publish(topics.Register(), payload, c.cfg.QoS, true); err != nil {
		transport.Close() //nolint:errcheck // best effort cleanup on error path
		return fmt.Errorf("publishing register message: %w", err)
	}

	c.transport = transport
	c.queue = make(chan notification, c.cfg.QueueSize)
	c.done = make(chan struct{})
	c.wg.Add(1)
	go c.sendLoop(transport, c.queue, c.done)

	c.registered.Store(true)
	c.logger.Info("registered with device management",
		"endpoint", topics.Endpoint,
		"resources", len(resources),
		"lifetime", c.cfg.Lifetime,
	)
	return nil
}

// IsRegisterCalled reports whether the client is registered and has not
// been closed. The application loop runs while this is true.
func (c *Client) IsRegisterCalled() bool {
	return c.registered.Load()
}

// Close deregisters and closes the connection. Notifications still queued
// are reported as SendFailed. Closing an unregistered client is a no-op.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.gate.Lock()
	wasRegistered := c.registered.Swap(false)
	c.gate.Unlock()
	if !wasRegistered {
		return nil
	}

	close(c.done)
	c.wg.Wait()
	c.drainQueue()

	transport := c.transport
	c.transport = nil

	payload, err := json.Marshal(deregisterMessage{
		Endpoint:  c.cfg.Topics.Endpoint,
		Reason:    "client_close",
		Timestamp: time.Now().UTC(),
	})
	if err == nil && transport.IsConnected() {
		if err := transport.Publish(c.cfg.Topics.Deregister(), payload, c.cfg.QoS, false); err != nil {
			c.logger.Warn("publishing deregister failed", "error", err)
		}
		// Clear the retained registration.
		if err := transport.Publish(c.cfg.Topics.Register(), nil, c.cfg.QoS, true); err != nil {
			c.logger.Warn("clearing registration failed", "error", err)
		}
	}

	c.observedMu.Lock()
	clear(c.observed)
	c.observedMu.Unlock()

	c.inflightMu.Lock()
	clear(c.inflight)
	c.inflightMu.Unlock()

	c.logger.Info("device management connection closed", "endpoint", c.cfg.Topics.Endpoint)

	if err := transport.Close(); err != nil {
		return fmt.Errorf("closing transport: %w", err)
	}
	return nil
}

// Observed reports whether the server is observing path.
func (c *Client) Observed(path resource.Path) bool {
	c.observedMu.RLock()
	defer c.observedMu.RUnlock()
	return c.observed[path]
}

// report hands a delivery outcome to the resource through the executor.
func (c *Client) report(res *resource.Resource, status resource.DeliveryStatus, kind resource.MessageKind) {
	c.executor(func() {
		res.ReportStatus(status, kind)
	})
}
