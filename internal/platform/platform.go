package platform

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/nerrad567/gray-logic-device/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-device/internal/platform/aht20"
	"github.com/nerrad567/gray-logic-device/internal/platform/modbussensor"
	"tinygo.org/x/drivers"
)

// simConversion is the measurement time of the simulated AHT20.
const simConversion = 20 * time.Millisecond

// Logger defines the logging interface used by the platform.
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

// BuildInfo describes the running firmware.
type BuildInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildDate string `json:"build_date"`
	GoVersion string `json:"go_version"`
	Target    string `json:"target"`
}

// NewBuildInfo fills in the runtime fields.
func NewBuildInfo(version, commit, buildDate string) BuildInfo {
	return BuildInfo{
		Version:   version,
		Commit:    commit,
		BuildDate: buildDate,
		GoVersion: runtime.Version(),
		Target:    runtime.GOOS + "/" + runtime.GOARCH,
	}
}

// String renders the build info on one line.
func (b BuildInfo) String() string {
	return fmt.Sprintf("%s (commit %s, built %s, %s, %s)", b.Version, b.Commit, b.BuildDate, b.GoVersion, b.Target)
}

// Platform owns the peripherals.
type Platform struct {
	cfg    config.PlatformConfig
	info   BuildInfo
	logger Logger

	mu          sync.Mutex
	initialized bool
	button      *Button
	led         LED
	sensor      TemperatureSensor
	simBus      *aht20.SimBus
	closers     []func() error
}

// New creates an uninitialised platform.
func New(cfg config.PlatformConfig, info BuildInfo) *Platform {
	return &Platform{
		cfg:    cfg,
		info:   info,
		logger: noopLogger{},
		button: &Button{},
	}
}

// SetLogger sets the logger for the platform.
func (p *Platform) SetLogger(logger Logger) {
	p.logger = logger
}

// Init brings up the configured backends. It is the platform-init step of
// device startup; the LED ends up off.
func (p *Platform) Init(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.initialized {
		return nil
	}

	switch p.cfg.LED.Driver {
	case "sim":
		p.led = &SimLED{logger: p.logger}
	case "none", "":
		p.led = nopLED{}
	default:
		return fmt.Errorf("%w: led %q", ErrUnknownDriver, p.cfg.LED.Driver)
	}
	p.led.Set(false)

	switch p.cfg.Button.Driver {
	case "sim", "none", "":
	default:
		return fmt.Errorf("%w: button %q", ErrUnknownDriver, p.cfg.Button.Driver)
	}

	sensor, err := p.openSensor(ctx)
	if err != nil {
		p.closeLocked()
		return err
	}
	p.sensor = sensor
	p.initialized = true

	p.logger.Info("platform initialized",
		"button", p.cfg.Button.Driver,
		"led", p.cfg.LED.Driver,
		"sensor", p.cfg.Sensor.Driver,
	)
	return nil
}

func (p *Platform) openSensor(ctx context.Context) (TemperatureSensor, error) {
	switch p.cfg.Sensor.Driver {
	case "sim":
		p.simBus = aht20.NewSimBus(simulatedCelsius(time.Now()), simConversion)
		return p.configureAHT20(p.simBus, simConversion)

	case "aht20":
		bus, err := aht20.OpenLinuxBus(p.cfg.Sensor.I2CBus)
		if err != nil {
			return nil, err
		}
		p.closers = append(p.closers, bus.Close)
		return p.configureAHT20(bus, 0)

	case "modbus":
		m := p.cfg.Sensor.Modbus
		s, err := modbussensor.Connect(modbussensor.Config{
			Endpoint: m.Endpoint,
			UnitID:   m.UnitID,
			Register: m.Register,
			Timeout:  m.Timeout,
		})
		if err != nil {
			return nil, err
		}
		p.closers = append(p.closers, s.Close)
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return s, nil

	default:
		return nil, fmt.Errorf("%w: sensor %q", ErrUnknownDriver, p.cfg.Sensor.Driver)
	}
}

func (p *Platform) configureAHT20(bus drivers.I2C, conversion time.Duration) (TemperatureSensor, error) {
	dev := aht20.New(bus, aht20.Config{
		Address:        p.cfg.Sensor.I2CAddress,
		ConversionTime: conversion,
	})
	if err := dev.Configure(); err != nil {
		return nil, fmt.Errorf("configuring aht20: %w", err)
	}
	return aht20Sensor{dev: dev}, nil
}

// BuildInfo returns the firmware build information.
func (p *Platform) BuildInfo() BuildInfo {
	return p.info
}

// ButtonClicked reports whether the button was pressed since the last call.
// Multiple presses between calls count once.
func (p *Platform) ButtonClicked() bool {
	if p.cfg.Button.Driver == "none" {
		return false
	}
	return p.button.Clicked()
}

// PressButton simulates a button press.
func (p *Platform) PressButton() {
	p.button.Press()
}

// LED returns the status LED. Nil before Init.
func (p *Platform) LED() LED {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.led
}

// ReadTemperature samples the sensor.
func (p *Platform) ReadTemperature(ctx context.Context) (float64, error) {
	p.mu.Lock()
	sensor := p.sensor
	p.mu.Unlock()

	if sensor == nil {
		return 0, ErrNotInitialized
	}
	return sensor.ReadCelsius(ctx)
}

// SimBus returns the simulated sensor bus, or nil when the sensor is real.
func (p *Platform) SimBus() *aht20.SimBus {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.simBus
}

// Close releases hardware handles.
func (p *Platform) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closeLocked()
}

func (p *Platform) closeLocked() error {
	var firstErr error
	for _, closeFn := range p.closers {
		if err := closeFn(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	p.closers = nil
	p.initialized = false
	return firstErr
}
