package platform

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nerrad567/gray-logic-device/internal/platform/aht20"
	"github.com/nerrad567/gray-logic-device/internal/platform/modbussensor"
)

// LED is a binary status output.
type LED interface {
	Set(on bool)
}

// TemperatureSensor reads degrees Celsius.
// A transient integrity failure is reported as ErrChecksum.
type TemperatureSensor interface {
	ReadCelsius(ctx context.Context) (float64, error)
}

// Button latches presses until they are consumed.
type Button struct {
	pressed atomic.Bool
	presses atomic.Uint64
}

// Press records a press.
func (b *Button) Press() {
	b.presses.Add(1)
	b.pressed.Store(true)
}

// Clicked reports whether the button was pressed since the last call and
// clears the latch.
func (b *Button) Clicked() bool {
	return b.pressed.Swap(false)
}

// Presses returns the total number of raw presses.
func (b *Button) Presses() uint64 {
	return b.presses.Load()
}

// SimLED remembers its state and logs changes.
type SimLED struct {
	mu     sync.Mutex
	on     bool
	logger Logger
}

// Set implements LED.
func (l *SimLED) Set(on bool) {
	l.mu.Lock()
	changed := l.on != on
	l.on = on
	l.mu.Unlock()

	if changed {
		l.logger.Debug("led", "on", on)
	}
}

// On returns the current state.
func (l *SimLED) On() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.on
}

// nopLED discards output.
type nopLED struct{}

func (nopLED) Set(bool) {}

// aht20Sensor adapts the AHT20 driver to TemperatureSensor.
type aht20Sensor struct {
	dev *aht20.Device
}

func (s aht20Sensor) ReadCelsius(ctx context.Context) (float64, error) {
	sample, err := s.dev.Read(ctx)
	if errors.Is(err, aht20.ErrChecksum) {
		return 0, fmt.Errorf("%w: %w", ErrChecksum, err)
	}
	if err != nil {
		return 0, err
	}
	return sample.Celsius(), nil
}

var _ TemperatureSensor = (*modbussensor.Sensor)(nil)

// simulatedCelsius drifts slowly around 21.5 °C.
func simulatedCelsius(start time.Time) func() float64 {
	return func() float64 {
		elapsed := time.Since(start).Minutes()
		return 21.5 + 0.75*math.Sin(elapsed/5)
	}
}
