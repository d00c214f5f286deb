package app

import (
	"context"
	"errors"
	"math"

	"github.com/nerrad567/gray-logic-device/internal/platform"
)

// loop polls the peripherals while the client is registered.
func (a *App) loop(ctx context.Context) {
	a.logger.Info("control loop started",
		"button_interval", a.cfg.Application.ButtonInterval,
		"sensor_interval", a.cfg.Application.SensorInterval,
	)

	for a.client.IsRegisterCalled() {
		if !a.events.wait(ctx, a.cfg.Application.ButtonInterval) {
			break
		}
		if !a.client.IsRegisterCalled() {
			break
		}

		a.pollButton()
		a.pollTemperature(ctx)

		if !a.events.wait(ctx, a.cfg.Application.SensorInterval) {
			break
		}
	}

	if ctx.Err() != nil {
		a.logger.Info("control loop stopped", "reason", "shutdown")
		return
	}
	a.logger.Info("control loop stopped", "reason", "connection closed")
}

// pollButton counts at most one press per tick.
func (a *App) pollButton() {
	if !a.platform.ButtonClicked() {
		return
	}

	a.buttonCount++
	if err := a.button.SetInt(a.buttonCount); err != nil {
		a.logger.Error("setting button count", "error", err)
		return
	}
	a.logger.Info("button pressed", "count", a.buttonCount)
}

// pollTemperature pushes the reading as hundredths of a degree. A checksum
// failure is transient and skipped silently; other errors are logged.
func (a *App) pollTemperature(ctx context.Context) {
	readCtx, cancel := context.WithTimeout(ctx, sensorReadTimeout)
	defer cancel()

	celsius, err := a.platform.ReadTemperature(readCtx)
	switch {
	case errors.Is(err, platform.ErrChecksum):
		return
	case err != nil:
		a.logger.Warn("temperature read failed", "error", err)
		return
	}

	if err := a.temperature.SetInt(centiCelsius(celsius)); err != nil {
		a.logger.Error("setting temperature", "error", err)
	}
}

// centiCelsius returns floor(c × 100). The epsilon absorbs binary
// representation error so 21.5 stays 2150 rather than 2149.
func centiCelsius(c float64) int64 {
	return int64(math.Floor(c*100 + 1e-9))
}
