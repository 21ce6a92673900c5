package setpoint

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phorp/calcrib/internal/config"
	"github.com/phorp/calcrib/internal/logging"
	"github.com/phorp/calcrib/internal/stream"
)

func testSetpoint(n int) *Setpoint {
	cfg := config.DefaultConfig().Sampling
	cfg.NumberOfSamples = n
	return New("p1", "pH", 4, cfg)
}

func newTestSampler(keys ...rune) (*Sampler, *fakeClock, *bytes.Buffer) {
	var out bytes.Buffer
	clock := newFakeClock()
	s := NewSampler(&scriptedKeys{keys: keys}, &out, config.DefaultConfig().Sampling, logging.NewNop())
	s.WithClock(clock)
	return s, clock, &out
}

func TestSampler_CancelNeverUpdates(t *testing.T) {
	s, clock, out := newTestSampler('x')
	src := &countingSource{clock: clock}
	sp := testSetpoint(5)

	ok, err := s.Run(context.Background(), sp, src)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, Cancelled, s.State())
	assert.Equal(t, 0, src.updates)
	assert.Equal(t, 0, sp.Stats.N())
	assert.Contains(t, out.String(), "run cancelled")
}

func TestSampler_CompletedPass(t *testing.T) {
	s, clock, out := newTestSampler(' ', 'n')
	src := &countingSource{clock: clock}
	sp := testSetpoint(5)

	ok, err := s.Run(context.Background(), sp, src)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, Done, s.State())
	assert.Equal(t, 5, src.updates)
	assert.Equal(t, 5, sp.Stats.N())
	assert.Equal(t, 3.0, sp.Mean())
	assert.Contains(t, out.String(), "n=5, mean=3.0000")

	// no sleep after the final sample
	assert.Len(t, clock.sleeps, 4)
}

func TestSampler_RepeatClearsStats(t *testing.T) {
	s, clock, _ := newTestSampler(' ', ' ', 'n')
	src := &countingSource{clock: clock}
	sp := testSetpoint(3)

	ok, err := s.Run(context.Background(), sp, src)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 6, src.updates)
	assert.Equal(t, 3, sp.Stats.N())
	assert.Equal(t, 5.0, sp.Mean(), "second pass saw 4, 5, 6")
}

func TestSampler_DriftCorrection(t *testing.T) {
	s, clock, _ := newTestSampler(' ', 'n')
	sp := testSetpoint(4)
	sp.SamplePeriod = 200 * time.Millisecond

	// each conversion takes 50ms so the sleeps shrink to keep the cadence
	src := &countingSource{clock: clock, cost: 50 * time.Millisecond}
	start := clock.Now()
	_, err := s.Run(context.Background(), sp, src)
	require.NoError(t, err)

	assert.Equal(t, []time.Duration{150 * time.Millisecond, 150 * time.Millisecond, 150 * time.Millisecond}, clock.sleeps)
	assert.Equal(t, start.Add(650*time.Millisecond), clock.Now())
}

func TestSampler_OverrunRebases(t *testing.T) {
	s, clock, _ := newTestSampler(' ', 'n')
	sp := testSetpoint(4)
	sp.SamplePeriod = 100 * time.Millisecond

	src := &countingSource{clock: clock, cost: 250 * time.Millisecond}
	_, err := s.Run(context.Background(), sp, src)
	require.NoError(t, err)

	for _, d := range clock.sleeps {
		assert.Equal(t, time.Duration(0), d, "overruns never wait")
	}
}

func TestSampler_SlowConversionRebases(t *testing.T) {
	s, clock, _ := newTestSampler(' ', 'n')
	sp := testSetpoint(5)
	sp.SamplePeriod = 200 * time.Millisecond

	src := &countingSource{clock: clock, costs: map[int]time.Duration{2: 500 * time.Millisecond}}
	_, err := s.Run(context.Background(), sp, src)
	require.NoError(t, err)

	// the schedule restarts after the slow sample instead of bursting to catch up
	assert.Equal(t, []time.Duration{
		200 * time.Millisecond,
		0,
		200 * time.Millisecond,
		200 * time.Millisecond,
	}, clock.sleeps)
}

func TestSampler_FilterStartsFreshEachPass(t *testing.T) {
	s, _, _ := newTestSampler(' ', 'n', ' ', ' ', 'n')
	adc := stream.NewSimulatedADC(0, 1)
	st := stream.NewPhorpStream(adc, 10)
	require.NoError(t, st.Connect("a2"))
	addr, err := stream.ParseAddress("a2")
	require.NoError(t, err)

	p1 := testSetpoint(30)
	adc.SetLevel(addr, 0.100)
	ok, err := s.Run(context.Background(), p1, st)
	require.NoError(t, err)
	require.True(t, ok)
	assert.InDelta(t, 100.0, p1.Mean(), 1e-9)

	// p2 is sampled twice; both passes see only the new level
	p2 := testSetpoint(30)
	adc.SetLevel(addr, 0.300)
	ok, err = s.Run(context.Background(), p2, st)
	require.NoError(t, err)
	require.True(t, ok)
	assert.InDelta(t, 300.0, p2.Mean(), 1e-9)
	assert.Equal(t, 30, p2.Stats.N())
}

func TestSampler_EchoCadence(t *testing.T) {
	s, clock, out := newTestSampler(' ', 'n')
	sp := testSetpoint(10)
	sp.SamplePeriod = 200 * time.Millisecond
	sp.UpdatePeriod = time.Second

	src := &countingSource{clock: clock}
	_, err := s.Run(context.Background(), sp, src)
	require.NoError(t, err)

	// samples at 0s, 0.2s ... 1.8s echo at 0s and 1s
	assert.Contains(t, out.String(), "(4 pH): 1.000, 6.000, \n")
}

func TestSampler_SourceErrorAborts(t *testing.T) {
	s, clock, _ := newTestSampler(' ', 'n')
	src := &countingSource{clock: clock, failAt: 3}

	ok, err := s.Run(context.Background(), testSetpoint(5), src)
	assert.Error(t, err)
	assert.False(t, ok)
	assert.Equal(t, Sampling, s.State())
}

func TestSampler_KeyReaderError(t *testing.T) {
	s, clock, _ := newTestSampler()
	ok, err := s.Run(context.Background(), testSetpoint(5), &countingSource{clock: clock})
	assert.Error(t, err)
	assert.False(t, ok)
}

func TestSampler_ContextCancelled(t *testing.T) {
	var out bytes.Buffer
	s := NewSampler(&scriptedKeys{keys: []rune{' '}}, &out, config.DefaultConfig().Sampling, logging.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	sp := testSetpoint(5)
	sp.SamplePeriod = time.Hour
	ok, err := s.Run(ctx, sp, &countingSource{})
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, ok)
}

func TestLineKeyReader(t *testing.T) {
	k := NewLineKeyReader(strings.NewReader("\nyes\r\n q\nlast"))

	for _, want := range []rune{' ', 'y', ' ', 'l'} {
		r, err := k.ReadKey()
		require.NoError(t, err)
		assert.Equal(t, want, r)
	}

	_, err := k.ReadKey()
	assert.ErrorIs(t, err, io.EOF)
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "armed", ArmedPrompt.String())
	assert.Equal(t, "state(42)", State(42).String())
}
