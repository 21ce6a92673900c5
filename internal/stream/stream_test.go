package stream

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phorp/calcrib/internal/config"
)

func TestParseAddress(t *testing.T) {
	tests := []struct {
		text    string
		bus     uint8
		channel int
		wantErr bool
	}{
		{"a1", 0x68, 3, false},
		{"a4", 0x68, 0, false},
		{" B3 ", 0x69, 1, false},
		{"h2", 0x6f, 2, false},
		{"i1", 0, 0, true},
		{"a0", 0, 0, true},
		{"a5", 0, 0, true},
		{"a", 0, 0, true},
		{"a12", 0, 0, true},
		{"", 0, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			addr, err := ParseAddress(tt.text)
			if tt.wantErr {
				assert.True(t, errors.Is(err, ErrInvalidAddress))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.bus, addr.BusAddress())
			assert.Equal(t, tt.channel, addr.ADCChannel())
		})
	}

	addr, _ := ParseAddress("B3")
	assert.Equal(t, "b3", addr.String())
}

func TestRollingAverage(t *testing.T) {
	f := NewRollingAverage(4)
	assert.Equal(t, 100.0, f.Update(100))
	assert.Equal(t, 75.0, f.Update(0))

	f.Reset()
	assert.Equal(t, 8.0, f.Update(8))

	off := NewRollingAverage(0)
	off.Update(1)
	assert.Equal(t, 42.0, off.Update(42))
}

func TestPhorpStream(t *testing.T) {
	adc := NewSimulatedADC(0, 1)
	addr, err := ParseAddress("b3")
	require.NoError(t, err)
	adc.SetLevel(addr, 0.1775)

	s := NewPhorpStream(adc, 1)
	assert.Equal(t, TypePhorp, s.Type())
	assert.Equal(t, "mV", s.RawUnits())

	err = s.Update(context.Background())
	assert.True(t, errors.Is(err, ErrNotConnected))

	require.NoError(t, s.Connect("b3"))
	require.NoError(t, s.Update(context.Background()))
	assert.InDelta(t, 177.5, s.RawValue(), 1e-9)
	assert.Equal(t, 1, adc.Conversions())

	assert.True(t, errors.Is(s.Connect("z9"), ErrInvalidAddress))
	assert.Equal(t, "b3", s.Address().String(), "a failed connect keeps the binding")
}

func TestPhorpStream_Filtered(t *testing.T) {
	adc := NewSimulatedADC(0, 1)
	addr, _ := ParseAddress("a2")
	adc.SetLevel(addr, 0.1)

	s := NewPhorpStream(adc, 2)
	require.NoError(t, s.Connect("a2"))
	require.NoError(t, s.Update(context.Background()))
	assert.InDelta(t, 100.0, s.RawValue(), 1e-9)

	adc.SetLevel(addr, 0.2)
	require.NoError(t, s.Update(context.Background()))
	assert.InDelta(t, 150.0, s.RawValue(), 1e-9)

	s.Reset()
	assert.Equal(t, 0.0, s.RawValue())
	require.NoError(t, s.Update(context.Background()))
	assert.InDelta(t, 200.0, s.RawValue(), 1e-9)
}

func TestSimulatedADC_Noise(t *testing.T) {
	a := NewSimulatedADC(1, 7)
	b := NewSimulatedADC(1, 7)
	ctx := context.Background()

	varied := false
	for i := 0; i < 10; i++ {
		va, _ := a.Convert(ctx, 0x68, 0)
		vb, _ := b.Convert(ctx, 0x68, 0)
		assert.Equal(t, va, vb, "same seed, same sequence")
		assert.InDelta(t, 0, va, 0.01)
		if va != 0 {
			varied = true
		}
	}
	assert.True(t, varied)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, err := a.Convert(cancelled, 0x68, 0)
	assert.Error(t, err)
}

func TestRegistry(t *testing.T) {
	adc := NewSimulatedADC(0, 1)
	r := NewDefaultRegistry(config.DefaultConfig().Stream, adc)
	assert.Equal(t, []string{TypePhorp}, r.Types())

	a, err := r.New("PHORP")
	require.NoError(t, err)
	b, err := r.New("phorp")
	require.NoError(t, err)
	assert.NotSame(t, a, b)
	require.NoError(t, a.Connect("a2"))
	assert.True(t, errors.Is(a.Connect("q7"), ErrInvalidAddress))

	_, err = r.New("modbus")
	assert.True(t, errors.Is(err, ErrUnknownStream))
}

func TestNewADC_Simulated(t *testing.T) {
	adc, closer, err := NewADC(config.DefaultConfig().Stream)
	require.NoError(t, err)
	assert.IsType(t, &SimulatedADC{}, adc)
	assert.NoError(t, closer.Close())
}
