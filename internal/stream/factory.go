package stream

import (
	"io"

	"github.com/phorp/calcrib/internal/config"
)

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// NewADC creates the converter selected by cfg. The returned closer
// releases the bus and must be called once the streams are no longer used.
func NewADC(cfg config.StreamConfig) (ADC, io.Closer, error) {
	if cfg.Simulated {
		return NewSimulatedADC(cfg.NoiseMV, cfg.Seed), nopCloser{}, nil
	}

	bus, err := OpenI2C(cfg.Bus)
	if err != nil {
		return nil, nil, err
	}
	return NewMCP3428(bus), bus, nil
}
