// Package aht20 reads an AHT20 temperature/humidity sensor over I2C.
//
// The bus is any tinygo.org/x/drivers.I2C: a Linux /dev/i2c-N device
// (OpenLinuxBus), a microcontroller bus, or the simulated SimBus.
//
// Every measurement frame carries a CRC-8 in its last byte; a mismatch is
// reported as ErrChecksum so callers can treat it as transient.
package aht20

import (
	"context"
	"errors"
	"sync"
	"time"

	"tinygo.org/x/drivers"
)

// Address is the fixed I2C address of the AHT20.
const Address = 0x38

const (
	cmdTrigger    = 0xAC
	cmdInitialize = 0xBE
	cmdSoftReset  = 0xBA
	cmdStatus     = 0x71

	statusBusy       = 0x80
	statusCalibrated = 0x08

	frameLen = 7
)

// Errors returned by the driver.
var (
	ErrChecksum = errors.New("aht20: checksum mismatch")
	ErrTimeout  = errors.New("aht20: measurement timeout")
	ErrNotReady = errors.New("aht20: not ready")
)

// Config holds timing parameters. Zero values select defaults.
type Config struct {
	Address        uint16
	PollInterval   time.Duration // default 15ms
	CollectTimeout time.Duration // default 250ms
	ConversionTime time.Duration // default 80ms
}

// Sample is one decoded measurement.
type Sample struct {
	RawHumidity uint32
	RawTemp     uint32
}

// Celsius converts the raw temperature.
func (s Sample) Celsius() float64 {
	return float64(s.RawTemp)*200/0x100000 - 50
}

// RelHumidity converts the raw humidity to percent.
func (s Sample) RelHumidity() float64 {
	return float64(s.RawHumidity) * 100 / 0x100000
}

// Device is an AHT20 on a bus.
type Device struct {
	bus drivers.I2C
	cfg Config

	mu  sync.Mutex
	buf [frameLen]byte
}

// New creates a device handle. It does not touch the bus.
func New(bus drivers.I2C, cfg Config) *Device {
	if cfg.Address == 0 {
		cfg.Address = Address
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 15 * time.Millisecond
	}
	if cfg.CollectTimeout <= 0 {
		cfg.CollectTimeout = 250 * time.Millisecond
	}
	if cfg.ConversionTime <= 0 {
		cfg.ConversionTime = 80 * time.Millisecond
	}
	return &Device{bus: bus, cfg: cfg}
}

// Configure calibrates the sensor if it reports uncalibrated.
func (d *Device) Configure() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	st, err := d.status()
	if err != nil {
		return err
	}
	if st&statusCalibrated != 0 {
		return nil
	}
	if err := d.bus.Tx(d.cfg.Address, []byte{cmdInitialize, 0x08, 0x00}, nil); err != nil {
		return err
	}
	time.Sleep(10 * time.Millisecond)
	return nil
}

// Reset issues a soft reset. The sensor needs about 20ms afterwards.
func (d *Device) Reset() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.bus.Tx(d.cfg.Address, []byte{cmdSoftReset}, nil)
}

func (d *Device) status() (byte, error) {
	data := []byte{0}
	if err := d.bus.Tx(d.cfg.Address, []byte{cmdStatus}, data); err != nil {
		return 0, err
	}
	return data[0], nil
}

// Read triggers a measurement and polls until it is ready, the collect
// timeout elapses or ctx is done.
func (d *Device) Read(ctx context.Context) (Sample, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.bus.Tx(d.cfg.Address, []byte{cmdTrigger, 0x33, 0x00}, nil); err != nil {
		return Sample{}, err
	}

	wait := d.cfg.ConversionTime
	deadline := time.Now().Add(d.cfg.ConversionTime + d.cfg.CollectTimeout)
	for {
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return Sample{}, ctx.Err()
		case <-timer.C:
		}

		s, err := d.collect()
		if !errors.Is(err, ErrNotReady) {
			return s, err
		}
		if time.Now().After(deadline) {
			return Sample{}, ErrTimeout
		}
		wait = d.cfg.PollInterval
	}
}

// collect reads and validates one frame.
func (d *Device) collect() (Sample, error) {
	data := d.buf[:]
	if err := d.bus.Tx(d.cfg.Address, nil, data); err != nil {
		return Sample{}, err
	}
	if data[0]&statusCalibrated == 0 || data[0]&statusBusy != 0 {
		return Sample{}, ErrNotReady
	}
	if crc8(data[:frameLen-1]) != data[frameLen-1] {
		return Sample{}, ErrChecksum
	}

	return Sample{
		RawHumidity: uint32(data[1])<<12 | uint32(data[2])<<4 | uint32(data[3])>>4,
		RawTemp:     uint32(data[3]&0x0F)<<16 | uint32(data[4])<<8 | uint32(data[5]),
	}, nil
}

// crc8 is the AHT20 frame checksum: polynomial 0x31, initial value 0xFF.
func crc8(data []byte) byte {
	crc := byte(0xFF)
	for _, b := range data {
		crc ^= b
		for i := 0; i < 8; i++ {
			if crc&0x80 != 0 {
				crc = crc<<1 ^ 0x31
			} else {
				crc <<= 1
			}
		}
	}
	return crc
}
