// Package modbussensor reads temperature from a Modbus-TCP transmitter.
//
// The transmitter exposes the temperature as one signed holding register in
// hundredths of a degree Celsius, the common layout for DIN-rail probes.
package modbussensor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/goburrow/modbus"
)

// ErrShortResponse is returned when the device answers with fewer bytes than requested.
var ErrShortResponse = errors.New("modbussensor: short register response")

// Config describes the transmitter.
type Config struct {
	Endpoint string
	UnitID   uint8
	Register uint16
	Timeout  time.Duration
}

// RegisterReader is the part of modbus.Client the sensor uses.
type RegisterReader interface {
	ReadHoldingRegisters(address, quantity uint16) ([]byte, error)
}

// Sensor polls one register.
type Sensor struct {
	mu       sync.Mutex
	reader   RegisterReader
	register uint16
	closer   func() error
}

// Connect opens a TCP connection to the transmitter.
func Connect(cfg Config) (*Sensor, error) {
	if cfg.Endpoint == "" {
		return nil, errors.New("modbussensor: endpoint required")
	}

	h := modbus.NewTCPClientHandler(cfg.Endpoint)
	h.Timeout = cfg.Timeout
	h.SlaveId = cfg.UnitID

	if err := h.Connect(); err != nil {
		return nil, fmt.Errorf("modbussensor: connecting to %s: %w", cfg.Endpoint, err)
	}

	s := New(modbus.NewClient(h), cfg.Register)
	s.closer = h.Close
	return s, nil
}

// New wraps an existing register reader.
func New(reader RegisterReader, register uint16) *Sensor {
	return &Sensor{reader: reader, register: register}
}

// ReadCelsius reads the register and converts it.
// The Modbus client enforces its own timeout; ctx is checked before the request.
func (s *Sensor) ReadCelsius(ctx context.Context) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := s.reader.ReadHoldingRegisters(s.register, 1)
	if err != nil {
		return 0, fmt.Errorf("modbussensor: reading register %d: %w", s.register, err)
	}
	if len(data) < 2 {
		return 0, fmt.Errorf("%w: %d bytes", ErrShortResponse, len(data))
	}

	centi := int16(uint16(data[0])<<8 | uint16(data[1]))
	return float64(centi) / 100, nil
}

// Close releases the TCP connection.
func (s *Sensor) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closer == nil {
		return nil
	}
	return s.closer()
}
