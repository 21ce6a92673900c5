//go:build !linux

package stream

import (
	"errors"
)

// I2CBus is unavailable off Linux
type I2CBus struct{}

// OpenI2C always fails off Linux
func OpenI2C(path string) (*I2CBus, error) {
	return nil, errors.New("i2c-dev buses are only supported on linux")
}

// Tx always fails
func (b *I2CBus) Tx(addr uint8, w, r []byte) error {
	return errors.New("i2c-dev buses are only supported on linux")
}

// Close does nothing
func (b *I2CBus) Close() error {
	return nil
}
