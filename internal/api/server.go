package api

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/nerrad567/gray-logic-device/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-device/internal/infrastructure/influxdb"
	"github.com/nerrad567/gray-logic-device/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-device/internal/platform"
	"github.com/nerrad567/gray-logic-device/internal/resource"
	"github.com/nerrad567/gray-logic-device/internal/storage"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 5 * time.Second

// Peripherals is the part of the platform the API uses.
type Peripherals interface {
	PressButton()
	BuildInfo() platform.BuildInfo
}

// Registration reports the device-management connection state.
type Registration interface {
	IsRegisterCalled() bool
	Endpoint() string
}

// Database is the part of the database the API uses.
type Database interface {
	HealthCheck(ctx context.Context) error
	Stats() sql.DBStats
}

// Telemetry is the InfluxDB writer, present only when telemetry connected.
type Telemetry interface {
	HealthCheck(ctx context.Context) error
	Stats() influxdb.Stats
}

// DeliveryReader lists recent delivery-status reports.
type DeliveryReader interface {
	Recent(ctx context.Context, limit int) ([]storage.DeliveryRecord, error)
}

// Deps holds the dependencies required by the API server.
// Registry and Logger are required; the rest are optional.
type Deps struct {
	Config     config.APIConfig
	Logger     *logging.Logger
	Registry   *resource.Registry
	Deliveries DeliveryReader
	Platform   Peripherals
	Client     Registration
	DB         Database
	Telemetry  Telemetry
	Identity   *storage.Identity
	Version    string
}

// Server is the diagnostics HTTP server.
type Server struct {
	cfg        config.APIConfig
	logger     *logging.Logger
	registry   *resource.Registry
	deliveries DeliveryReader
	platform   Peripherals
	client     Registration
	db         Database
	telemetry  Telemetry
	identity   *storage.Identity
	version    string
	startTime  time.Time
	server     *http.Server
	addr       string
}

// New creates a new API server with the given dependencies.
//
// The server is not started until Start() is called.
//
// Returns:
//   - *Server: Configured server ready to start
//   - error: If required dependencies are missing
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Registry == nil {
		return nil, fmt.Errorf("resource registry is required")
	}

	return &Server{
		cfg:        deps.Config,
		logger:     deps.Logger,
		registry:   deps.Registry,
		deliveries: deps.Deliveries,
		platform:   deps.Platform,
		client:     deps.Client,
		db:         deps.DB,
		telemetry:  deps.Telemetry,
		identity:   deps.Identity,
		version:    deps.Version,
		startTime:  time.Now(),
	}, nil
}

// Start binds the listener and serves in a background goroutine.
//
// Returns:
//   - error: If the address cannot be bound (port in use, etc.)
func (s *Server) Start(_ context.Context) error {
	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           s.buildRouter(),
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	ln, err := net.Listen("tcp", s.server.Addr)
	if err != nil {
		s.server = nil
		return fmt.Errorf("listening on %s:%d: %w", s.cfg.Host, s.cfg.Port, err)
	}
	s.addr = ln.Addr().String()

	s.logger.Info("API server starting", "address", s.addr)
	go func() {
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	return nil
}

// Addr returns the bound address. Empty before Start.
func (s *Server) Addr() string {
	return s.addr
}

// Close gracefully shuts down the API server.
//
// It waits for in-flight requests to complete, then forcefully closes
// remaining connections.
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("API server shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}
