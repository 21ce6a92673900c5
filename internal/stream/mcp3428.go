package stream

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Bus is a raw I2C transport
type Bus interface {
	// Tx writes w then reads len(r) bytes from the device at addr
	Tx(addr uint8, w, r []byte) error
}

const (
	mcpReady       = 0x80 // write: start a one-shot conversion, read: conversion pending
	mcpOneShot16   = 0x08 // one-shot, 15 SPS, 16 bit, gain 1
	mcpLSBVolts    = 2.048 / 32768
	mcpConvertTime = 67 * time.Millisecond
	mcpPollPeriod  = 5 * time.Millisecond
	mcpMaxPolls    = 40
)

var errConversionTimeout = errors.New("conversion did not complete")

// MCP3428 drives the four channel delta-sigma converter fitted to pHorp boards
type MCP3428 struct {
	bus Bus
}

// NewMCP3428 creates a driver over bus
func NewMCP3428(bus Bus) *MCP3428 {
	return &MCP3428{bus: bus}
}

// Convert performs a 16 bit one-shot conversion and returns volts
func (m *MCP3428) Convert(ctx context.Context, busAddr uint8, channel int) (float64, error) {
	if channel < 0 || channel >= channelCount {
		return 0, fmt.Errorf("channel %d out of range", channel)
	}

	cfg := byte(mcpReady | channel<<5 | mcpOneShot16)
	if err := m.bus.Tx(busAddr, []byte{cfg}, nil); err != nil {
		return 0, err
	}

	if err := sleep(ctx, mcpConvertTime); err != nil {
		return 0, err
	}

	buf := make([]byte, 3)
	for i := 0; i < mcpMaxPolls; i++ {
		if err := m.bus.Tx(busAddr, nil, buf); err != nil {
			return 0, err
		}
		if buf[2]&mcpReady == 0 {
			code := int16(uint16(buf[0])<<8 | uint16(buf[1]))
			return float64(code) * mcpLSBVolts, nil
		}
		if err := sleep(ctx, mcpPollPeriod); err != nil {
			return 0, err
		}
	}
	return 0, errConversionTimeout
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
