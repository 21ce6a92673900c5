package stream

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBus struct {
	writes  [][]byte
	reads   [][]byte
	addrs   []uint8
	failure error
}

func (b *fakeBus) Tx(addr uint8, w, r []byte) error {
	if b.failure != nil {
		return b.failure
	}
	b.addrs = append(b.addrs, addr)
	if len(w) > 0 {
		b.writes = append(b.writes, append([]byte(nil), w...))
	}
	if len(r) > 0 {
		next := b.reads[0]
		if len(b.reads) > 1 {
			b.reads = b.reads[1:]
		}
		copy(r, next)
	}
	return nil
}

func TestMCP3428_Convert(t *testing.T) {
	bus := &fakeBus{reads: [][]byte{
		{0x00, 0x00, 0x88}, // still converting
		{0x0b, 0x18, 0x08}, // 2840 counts
	}}
	adc := NewMCP3428(bus)

	volts, err := adc.Convert(context.Background(), 0x69, 1)
	require.NoError(t, err)
	assert.InDelta(t, 2840*2.048/32768, volts, 1e-12)

	require.Len(t, bus.writes, 1)
	assert.Equal(t, byte(0x80|1<<5|0x08), bus.writes[0][0])
	for _, a := range bus.addrs {
		assert.Equal(t, uint8(0x69), a)
	}
}

func TestMCP3428_Negative(t *testing.T) {
	bus := &fakeBus{reads: [][]byte{{0xff, 0xf6, 0x08}}}
	volts, err := NewMCP3428(bus).Convert(context.Background(), 0x68, 0)
	require.NoError(t, err)
	assert.InDelta(t, -10*2.048/32768, volts, 1e-12)
}

func TestMCP3428_Errors(t *testing.T) {
	_, err := NewMCP3428(&fakeBus{}).Convert(context.Background(), 0x68, 4)
	assert.Error(t, err)

	boom := errors.New("nack")
	_, err = NewMCP3428(&fakeBus{failure: boom}).Convert(context.Background(), 0x68, 0)
	assert.True(t, errors.Is(err, boom))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = NewMCP3428(&fakeBus{reads: [][]byte{{0, 0, 0}}}).Convert(ctx, 0x68, 0)
	assert.True(t, errors.Is(err, context.Canceled))
}
