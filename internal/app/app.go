package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nerrad567/gray-logic-device/internal/api"
	"github.com/nerrad567/gray-logic-device/internal/blinky"
	"github.com/nerrad567/gray-logic-device/internal/devmgmt"
	"github.com/nerrad567/gray-logic-device/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-device/internal/infrastructure/database"
	"github.com/nerrad567/gray-logic-device/internal/infrastructure/influxdb"
	"github.com/nerrad567/gray-logic-device/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-device/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-device/internal/platform"
	"github.com/nerrad567/gray-logic-device/internal/resource"
	"github.com/nerrad567/gray-logic-device/internal/storage"
	"github.com/nerrad567/gray-logic-device/migrations"
)

// sensorReadTimeout bounds one temperature sample.
const sensorReadTimeout = 2 * time.Second

// Options configures an App.
type Options struct {
	Config    *config.Config
	Logger    *logging.Logger
	BuildInfo platform.BuildInfo

	// Dialer opens the device-management transport. Nil dials the MQTT
	// broker from Config.MQTT.
	Dialer devmgmt.Dialer
}

// App is the device application context. It owns every collaborator and
// resource handle; resource callbacks are methods on it.
type App struct {
	cfg    *config.Config
	logger *logging.Logger
	info   platform.BuildInfo
	dialer devmgmt.Dialer

	// ctx is the Run context, used by handlers for storage calls.
	ctx    context.Context
	events *eventQueue

	db         *database.DB
	store      *storage.Store
	deliveries *storage.DeliveryLog
	platform   *platform.Platform
	identity   *storage.Identity
	registry   *resource.Registry
	blinker    *blinky.Sequencer
	client     *devmgmt.Client
	influx     *influxdb.Client
	recorder   *influxdb.Recorder
	api        *api.Server

	button       *resource.Resource
	pattern      *resource.Resource
	blink        *resource.Resource
	temperature  *resource.Resource
	unregister   *resource.Resource
	factoryReset *resource.Resource

	// buttonCount is owned by the loop goroutine.
	buttonCount int64

	// ready is closed when startup has finished.
	ready chan struct{}
}

// New creates the application. Nothing is started until Run.
func New(opts Options) *App {
	logger := opts.Logger
	if logger == nil {
		logger = logging.Default()
	}
	dialer := opts.Dialer
	if dialer == nil {
		dialer = devmgmt.MQTTDialer(opts.Config.MQTT, logger.With("component", "mqtt"))
	}

	return &App{
		cfg:    opts.Config,
		logger: logger,
		info:   opts.BuildInfo,
		dialer: dialer,
		ctx:    context.Background(),
		events: newEventQueue(),
		ready:  make(chan struct{}),
	}
}

// Run starts the device and runs the control loop until the client is
// closed or ctx is cancelled.
//
// Returns:
//   - error: nil after a normal stop, or the first startup failure
func (a *App) Run(ctx context.Context) error {
	a.ctx = ctx
	defer a.shutdown()

	if err := a.start(ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			a.logger.Info("startup cancelled")
			return nil
		}
		a.logger.Error("startup failed", "error", err)
		return err
	}
	close(a.ready)

	a.loop(ctx)
	return nil
}

// Ready is closed once startup has completed.
func (a *App) Ready() <-chan struct{} {
	return a.ready
}

func (a *App) start(ctx context.Context) error {
	if d := a.cfg.Platform.StartupDelay; d > 0 {
		a.logger.Debug("waiting for peripherals to settle", "delay", d)
		select {
		case <-time.After(d):
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	if err := a.initStorage(ctx); err != nil {
		return fmt.Errorf("storage init: %w", err)
	}
	if err := a.initPlatform(ctx); err != nil {
		return fmt.Errorf("platform init: %w", err)
	}
	if err := a.bootstrap(ctx); err != nil {
		return fmt.Errorf("bootstrap: %w", err)
	}

	a.registry = resource.NewRegistry()
	a.registry.SetLogger(a.logger.With("component", "resource"))
	a.blinker = blinky.New(a.platform.LED())
	if err := a.registerResources(); err != nil {
		return fmt.Errorf("resource registration: %w", err)
	}
	a.startTelemetry()

	if err := a.connect(ctx); err != nil {
		return fmt.Errorf("register and connect: %w", err)
	}

	if a.cfg.API.Enabled {
		if err := a.startAPI(ctx); err != nil {
			return fmt.Errorf("starting api: %w", err)
		}
	}
	return nil
}

func (a *App) initStorage(ctx context.Context) error {
	db, err := database.Open(ctx, database.Config{
		Path:        a.cfg.Database.Path,
		WALMode:     a.cfg.Database.WALMode,
		BusyTimeout: a.cfg.Database.BusyTimeout,
	})
	if err != nil {
		return err
	}
	a.db = db

	if err := db.Migrate(ctx, migrations.FS); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}

	a.store = storage.New(db.DB)
	if err := a.store.Init(ctx); err != nil {
		return err
	}
	a.deliveries = storage.NewDeliveryLog(db.DB)

	a.logger.Info("storage initialized", "path", db.Path())
	return nil
}

func (a *App) initPlatform(ctx context.Context) error {
	a.platform = platform.New(a.cfg.Platform, a.info)
	a.platform.SetLogger(a.logger.With("component", "platform"))
	if err := a.platform.Init(ctx); err != nil {
		return err
	}

	info := a.platform.BuildInfo()
	a.logger.Info("build info",
		"version", info.Version,
		"commit", info.Commit,
		"build_date", info.BuildDate,
		"go_version", info.GoVersion,
		"target", info.Target,
	)
	return nil
}

func (a *App) bootstrap(ctx context.Context) error {
	id, err := a.store.Bootstrap(ctx, a.cfg.Device.EndpointName, a.cfg.Device.ServerURI)
	if err != nil {
		return err
	}
	a.identity = id
	a.logger.Info("device identity loaded",
		"endpoint", id.EndpointName,
		"server_uri", id.ServerURI,
		"bootstrapped_at", id.BootstrappedAt,
	)
	return nil
}

// startTelemetry connects InfluxDB when enabled. Telemetry is optional;
// a failed connection is logged and the device carries on without it.
func (a *App) startTelemetry() {
	client, err := influxdb.Connect(a.cfg.InfluxDB)
	switch {
	case errors.Is(err, influxdb.ErrDisabled):
		a.logger.Debug("telemetry disabled")
		return
	case err != nil:
		a.logger.Warn("influxdb unavailable, telemetry disabled", "error", err)
		return
	}
	client.SetOnError(func(err error) {
		a.logger.Warn("influxdb write error", "error", err)
	})

	a.influx = client
	a.recorder = influxdb.NewRecorder(client, a.identity.EndpointName)
	a.registry.OnChange(a.recorder.Record)
	a.logger.Info("influxdb connected", "url", a.cfg.InfluxDB.URL, "bucket", a.cfg.InfluxDB.Bucket)
}

func (a *App) connect(ctx context.Context) error {
	topics := mqtt.Topics{Root: a.cfg.Device.TopicRoot, Endpoint: a.identity.EndpointName}

	a.client = devmgmt.New(devmgmt.Config{
		Topics:   topics,
		Lifetime: a.cfg.Device.Lifetime,
		QoS:      byte(a.cfg.MQTT.QoS),
	}, a.registry, a.dialer)
	a.client.SetLogger(a.logger.With("component", "devmgmt"))
	a.client.SetExecutor(a.events.post)

	return a.client.RegisterAndConnect(ctx)
}

func (a *App) startAPI(ctx context.Context) error {
	deps := api.Deps{
		Config:     a.cfg.API,
		Logger:     a.logger.With("component", "api"),
		Registry:   a.registry,
		Deliveries: a.deliveries,
		Platform:   a.platform,
		Client:     a.client,
		DB:         a.db,
		Identity:   a.identity,
		Version:    a.info.Version,
	}
	if a.influx != nil {
		deps.Telemetry = a.influx
	}

	srv, err := api.New(deps)
	if err != nil {
		return err
	}
	if err := srv.Start(ctx); err != nil {
		return err
	}
	a.api = srv
	return nil
}

// shutdown releases everything start acquired, in reverse order.
func (a *App) shutdown() {
	if a.api != nil {
		if err := a.api.Close(); err != nil {
			a.logger.Error("error closing api", "error", err)
		}
	}
	if a.client != nil {
		if err := a.client.Close(); err != nil {
			a.logger.Error("error closing device management", "error", err)
		}
	}
	if a.blinker != nil {
		a.blinker.Stop()
	}
	if a.influx != nil {
		if err := a.influx.Close(); err != nil {
			a.logger.Error("error closing influxdb", "error", err)
		}
	}
	if a.platform != nil {
		if err := a.platform.Close(); err != nil {
			a.logger.Error("error closing platform", "error", err)
		}
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.logger.Error("error closing database", "error", err)
		}
	}
}

// Registry returns the resource registry. Nil before startup.
func (a *App) Registry() *resource.Registry { return a.registry }

// Identity returns the bootstrapped identity. Nil before startup.
func (a *App) Identity() *storage.Identity { return a.identity }
