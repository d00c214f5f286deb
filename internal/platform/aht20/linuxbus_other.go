//go:build !linux

package aht20

import (
	"errors"

	"tinygo.org/x/drivers"
)

var _ drivers.I2C = (*LinuxBus)(nil)

// LinuxBus is only available on Linux.
type LinuxBus struct{}

// OpenLinuxBus always fails outside Linux.
func OpenLinuxBus(path string) (*LinuxBus, error) {
	return nil, errors.New("aht20: i2c character devices require linux: " + path)
}

// Tx implements drivers.I2C.
func (b *LinuxBus) Tx(uint16, []byte, []byte) error {
	return errors.New("aht20: i2c unavailable")
}

// Close is a no-op.
func (b *LinuxBus) Close() error { return nil }
