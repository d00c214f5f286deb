package aht20

import (
	"fmt"
	"os"
	"sync"

	"golang.org/x/sys/unix"
	"tinygo.org/x/drivers"
)

// i2cSlave is the I2C_SLAVE ioctl from linux/i2c-dev.h.
const i2cSlave = 0x0703

var _ drivers.I2C = (*LinuxBus)(nil)

// LinuxBus is a /dev/i2c-N adapter.
//
// Tx issues the write and read as two transfers; the AHT20 does not need a
// repeated start.
type LinuxBus struct {
	mu   sync.Mutex
	f    *os.File
	addr uint16
}

// OpenLinuxBus opens an I2C character device such as /dev/i2c-1.
func OpenLinuxBus(path string) (*LinuxBus, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("opening i2c bus %s: %w", path, err)
	}
	return &LinuxBus{f: f}, nil
}

// Tx implements drivers.I2C.
func (b *LinuxBus) Tx(addr uint16, w, r []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if addr != b.addr {
		if err := unix.IoctlSetInt(int(b.f.Fd()), i2cSlave, int(addr)); err != nil {
			return fmt.Errorf("selecting i2c address 0x%02x: %w", addr, err)
		}
		b.addr = addr
	}
	if len(w) > 0 {
		if _, err := b.f.Write(w); err != nil {
			return fmt.Errorf("i2c write: %w", err)
		}
	}
	if len(r) > 0 {
		if _, err := b.f.Read(r); err != nil {
			return fmt.Errorf("i2c read: %w", err)
		}
	}
	return nil
}

// Close releases the device file.
func (b *LinuxBus) Close() error {
	return b.f.Close()
}
