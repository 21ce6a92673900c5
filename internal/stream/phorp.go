package stream

import (
	"context"
	"fmt"
)

// TypePhorp is the stream type of pHorp ADC boards
const TypePhorp = "phorp"

// ADC performs single conversions. The caller owns the underlying bus and
// its lifetime.
type ADC interface {
	// Convert returns the voltage on a channel of the converter at busAddr
	Convert(ctx context.Context, busAddr uint8, channel int) (float64, error)
}

// RollingAverage is an exponential moving average with a window of n samples
type RollingAverage struct {
	n      float64
	value  float64
	primed bool
}

// NewRollingAverage returns a filter of length n. Lengths below one disable
// filtering.
func NewRollingAverage(n float64) *RollingAverage {
	if n < 1 {
		n = 1
	}
	return &RollingAverage{n: n}
}

// Update folds in a sample and returns the filtered value. The first sample
// seeds the filter.
func (f *RollingAverage) Update(sample float64) float64 {
	if !f.primed {
		f.value = sample
		f.primed = true
		return f.value
	}
	f.value += (sample - f.value) / f.n
	return f.value
}

// Reset forgets the filter history
func (f *RollingAverage) Reset() {
	f.value = 0
	f.primed = false
}

// PhorpStream reads one pHorp channel in millivolts
type PhorpStream struct {
	adc     ADC
	filter  *RollingAverage
	address Address
	bound   bool
	raw     float64
}

// NewPhorpStream creates an unconnected stream reading through adc
func NewPhorpStream(adc ADC, filterConstant float64) *PhorpStream {
	return &PhorpStream{adc: adc, filter: NewRollingAverage(filterConstant)}
}

// Type returns TypePhorp
func (s *PhorpStream) Type() string {
	return TypePhorp
}

// Connect binds the stream to a board channel
func (s *PhorpStream) Connect(address string) error {
	addr, err := ParseAddress(address)
	if err != nil {
		return err
	}
	s.address = addr
	s.bound = true
	s.filter.Reset()
	return nil
}

// Address returns the connected address
func (s *PhorpStream) Address() Address {
	return s.address
}

// Update converts once and filters the result
func (s *PhorpStream) Update(ctx context.Context) error {
	if !s.bound {
		return ErrNotConnected
	}
	volts, err := s.adc.Convert(ctx, s.address.BusAddress(), s.address.ADCChannel())
	if err != nil {
		return fmt.Errorf("convert %s: %w", s.address, err)
	}
	s.raw = s.filter.Update(volts * 1000)
	return nil
}

// Reset clears the filter so the next update starts from a fresh reading
func (s *PhorpStream) Reset() {
	s.filter.Reset()
	s.raw = 0
}

// RawValue returns the filtered millivolts of the last update
func (s *PhorpStream) RawValue() float64 {
	return s.raw
}

// RawUnits returns "mV"
func (s *PhorpStream) RawUnits() string {
	return "mV"
}
