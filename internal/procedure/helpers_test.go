package procedure

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/phorp/calcrib/internal/config"
	"github.com/phorp/calcrib/internal/logging"
	"github.com/phorp/calcrib/internal/sensor"
	"github.com/phorp/calcrib/internal/setpoint"
	"github.com/phorp/calcrib/internal/stream"
)

var (
	testNow   = time.Date(2026, 10, 18, 9, 30, 0, 0, time.UTC)
	testRunID = uuid.MustParse("6f1c2d3e-4a5b-4c6d-8e7f-901234567890")
)

// benchKeys answers prompts from a script. Before a key is read the hook
// registered for its index runs, so tests can move the probe between buffers.
type benchKeys struct {
	keys   []rune
	before map[int]func()
	read   int
}

func (k *benchKeys) ReadKey() (rune, error) {
	if hook, ok := k.before[k.read]; ok {
		hook()
	}
	if k.read >= len(k.keys) {
		return 0, errors.New("no more keys")
	}
	r := k.keys[k.read]
	k.read++
	return r, nil
}

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	return c.now
}

func (c *fakeClock) Sleep(ctx context.Context, d time.Duration) error {
	c.now = c.now.Add(d)
	return ctx.Err()
}

type bench struct {
	env  *Env
	adc  *stream.SimulatedADC
	keys *benchKeys
	out  *bytes.Buffer
}

func newBench(t *testing.T) *bench {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Sampling.NumberOfSamples = 3

	adc := stream.NewSimulatedADC(0, 1)
	keys := &benchKeys{before: map[int]func(){}}
	out := &bytes.Buffer{}
	sampler := setpoint.NewSampler(keys, out, cfg.Sampling, logging.NewNop()).
		WithClock(&fakeClock{now: testNow})

	return &bench{
		env: &Env{
			Streams:  stream.NewDefaultRegistry(cfg.Stream, adc),
			Sampler:  sampler,
			Out:      out,
			Logger:   logging.NewNop(),
			Sampling: cfg.Sampling,
			Defaults: cfg.Procedures,
			Now:      func() time.Time { return testNow },
			NewRunID: func() uuid.UUID { return testRunID },
		},
		adc:  adc,
		keys: keys,
		out:  out,
	}
}

// present sets the millivolts seen on address before key index i is read
func (b *bench) present(t *testing.T, i int, address string, mv float64) {
	t.Helper()
	addr, err := stream.ParseAddress(address)
	require.NoError(t, err)
	b.keys.before[i] = func() { b.adc.SetLevel(addr, mv/1000) }
}

// script sets the keys; each accepted setpoint takes a begin and an advance
func (b *bench) script(keys ...rune) {
	b.keys.keys = keys
}

func newSensor(t *testing.T, typ sensor.Type, id string) *sensor.Sensor {
	t.Helper()
	s, err := sensor.New(typ, id)
	require.NoError(t, err)
	return s
}
