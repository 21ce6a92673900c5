package setpoint

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/phorp/calcrib/internal/config"
	"github.com/phorp/calcrib/internal/logging"
)

// State is a step of a sampling run
type State int

const (
	Idle State = iota
	ArmedPrompt
	Sampling
	ReviewPrompt
	Done
	Cancelled
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case ArmedPrompt:
		return "armed"
	case Sampling:
		return "sampling"
	case ReviewPrompt:
		return "review"
	case Done:
		return "done"
	case Cancelled:
		return "cancelled"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Source is the raw value provider sampled by a run
type Source interface {
	Update(ctx context.Context) error
	RawValue() float64
	RawUnits() string
}

// Resetter is implemented by sources that filter across updates. Each
// pass resets them before its first sample.
type Resetter interface {
	Reset()
}

// KeyReader blocks until the operator answers a prompt with one key
type KeyReader interface {
	ReadKey() (rune, error)
}

// Clock provides time and suspension to the sampling loop
type Clock interface {
	Now() time.Time
	Sleep(ctx context.Context, d time.Duration) error
}

type realClock struct{}

// RealClock is the wall clock
var RealClock Clock = realClock{}

func (realClock) Now() time.Time {
	return time.Now()
}

func (realClock) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// LineKeyReader reads one answer per input line. The first character of
// the line is the key; an empty line is a space.
type LineKeyReader struct {
	r *bufio.Reader
}

// NewLineKeyReader wraps r
func NewLineKeyReader(r io.Reader) *LineKeyReader {
	if br, ok := r.(*bufio.Reader); ok {
		return &LineKeyReader{r: br}
	}
	return &LineKeyReader{r: bufio.NewReader(r)}
}

// ReadKey returns the key of the next line
func (k *LineKeyReader) ReadKey() (rune, error) {
	line, err := k.r.ReadString('\n')
	if err != nil && (err != io.EOF || line == "") {
		return 0, err
	}
	line = strings.TrimRight(line, "\r\n")
	if line == "" {
		return ' ', nil
	}
	r, _ := utf8.DecodeRuneInString(line)
	return r, nil
}

// Sampler runs the sampling state machine of a setpoint:
// Idle, ArmedPrompt, then Sampling and ReviewPrompt until the operator
// advances (Done) or declines to begin (Cancelled).
type Sampler struct {
	keys      KeyReader
	out       io.Writer
	clock     Clock
	beginKey  rune
	repeatKey rune
	logger    *logging.Logger
	state     State
}

// NewSampler creates a sampler prompting on out and reading answers from keys
func NewSampler(keys KeyReader, out io.Writer, cfg config.SamplingConfig, logger *logging.Logger) *Sampler {
	if logger == nil {
		logger = logging.Global()
	}
	return &Sampler{
		keys:      keys,
		out:       out,
		clock:     RealClock,
		beginKey:  cfg.BeginRune(),
		repeatKey: cfg.RepeatRune(),
		logger:    logger.With("component", "sampler"),
	}
}

// WithClock replaces the clock
func (s *Sampler) WithClock(c Clock) *Sampler {
	s.clock = c
	return s
}

// State returns the state reached by the last run
func (s *Sampler) State() State {
	return s.state
}

func keyName(r rune) string {
	if r == ' ' {
		return "<space>"
	}
	return string(r)
}

// Run samples sp from src. It returns true when the operator accepted a
// completed pass and false when the run was cancelled before sampling.
// Errors from the source or the key reader abort the run.
func (s *Sampler) Run(ctx context.Context, sp *Setpoint, src Source) (bool, error) {
	s.state = Idle
	log := s.logger.WithContext(ctx)

	fmt.Fprintf(s.out, "  ready %g %s calibration solution. press %s to begin, other to cancel\n",
		sp.ScaledValue, sp.ScaledUnits, keyName(s.beginKey))
	s.state = ArmedPrompt
	key, err := s.keys.ReadKey()
	if err != nil {
		return false, fmt.Errorf("read key: %w", err)
	}
	if key != s.beginKey {
		s.state = Cancelled
		fmt.Fprintln(s.out, "  run cancelled")
		log.Info("sampling cancelled", "setpoint", sp.Name)
		return false, nil
	}

	for {
		s.state = Sampling
		if err := s.pass(ctx, sp, src); err != nil {
			return false, err
		}

		fmt.Fprintf(s.out, "     %s\n", sp.Stats.Synopsis())
		log.Debug("sampling pass complete", "setpoint", sp.Name,
			"n", sp.Stats.N(), "mean", sp.Stats.Mean(), "sd", sp.Stats.StandardDeviation())

		s.state = ReviewPrompt
		fmt.Fprintf(s.out, "  %g %s calibration solution. press %s to repeat, other to advance\n",
			sp.ScaledValue, sp.ScaledUnits, keyName(s.repeatKey))
		key, err := s.keys.ReadKey()
		if err != nil {
			return false, fmt.Errorf("read key: %w", err)
		}
		if key != s.repeatKey {
			s.state = Done
			return true, nil
		}
	}
}

// pass takes NumberOfSamples samples. The target wake time advances by
// SamplePeriod each sample; an overrun re-bases the schedule on the current
// time instead of bursting to catch up.
func (s *Sampler) pass(ctx context.Context, sp *Setpoint, src Source) error {
	sp.Stats.Clear()
	if r, ok := src.(Resetter); ok {
		r.Reset()
	}
	fmt.Fprintf(s.out, "   (%g %s): ", sp.ScaledValue, sp.ScaledUnits)
	defer fmt.Fprintln(s.out)

	target := s.clock.Now()
	echo := target
	for i := 0; i < sp.NumberOfSamples; i++ {
		if err := src.Update(ctx); err != nil {
			return fmt.Errorf("update %s: %w", sp.Name, err)
		}
		raw := src.RawValue()
		sp.Stats.Push(raw)

		now := s.clock.Now()
		if !now.Before(echo) {
			fmt.Fprintf(s.out, "%.3f, ", raw)
			echo = now.Add(sp.UpdatePeriod)
		}

		if i == sp.NumberOfSamples-1 {
			break
		}

		target = target.Add(sp.SamplePeriod)
		wait := target.Sub(now)
		if wait < 0 {
			wait = 0
			target = now
		}
		if err := s.clock.Sleep(ctx, wait); err != nil {
			return err
		}
	}
	return nil
}
