//go:build linux

package stream

import (
	"fmt"
	"os"
	"sync"

	"golang.org/x/sys/unix"
)

const i2cSlave = 0x0703

// I2CBus is a Linux i2c-dev bus
type I2CBus struct {
	mu   sync.Mutex
	file *os.File
	addr int
}

// OpenI2C opens an i2c-dev device such as /dev/i2c-1
func OpenI2C(path string) (*I2CBus, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("open i2c bus: %w", err)
	}
	return &I2CBus{file: f, addr: -1}, nil
}

// Tx selects the device at addr then writes w and reads into r
func (b *I2CBus) Tx(addr uint8, w, r []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.addr != int(addr) {
		if err := unix.IoctlSetInt(int(b.file.Fd()), i2cSlave, int(addr)); err != nil {
			return fmt.Errorf("select device %#x: %w", addr, err)
		}
		b.addr = int(addr)
	}
	if len(w) > 0 {
		if _, err := b.file.Write(w); err != nil {
			return fmt.Errorf("write device %#x: %w", addr, err)
		}
	}
	if len(r) > 0 {
		if _, err := b.file.Read(r); err != nil {
			return fmt.Errorf("read device %#x: %w", addr, err)
		}
	}
	return nil
}

// Close releases the bus
func (b *I2CBus) Close() error {
	return b.file.Close()
}
