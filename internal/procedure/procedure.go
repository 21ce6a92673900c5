// Package procedure implements the per sensor type calibration procedures.
// A procedure holds the default setpoints and constants of its type, copies
// them onto sensors with Prep and produces a calibration with Run.
package procedure

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/phorp/calcrib/internal/calibration"
	"github.com/phorp/calcrib/internal/config"
	"github.com/phorp/calcrib/internal/document"
	"github.com/phorp/calcrib/internal/equation"
	"github.com/phorp/calcrib/internal/logging"
	"github.com/phorp/calcrib/internal/sensor"
	"github.com/phorp/calcrib/internal/setpoint"
	"github.com/phorp/calcrib/internal/stream"
)

var (
	// ErrUnknownProcedure is returned for sensor types without a procedure
	ErrUnknownProcedure = errors.New("unknown procedure")
	// ErrQualityUnsupported is returned by procedures without a quality report
	ErrQualityUnsupported = errors.New("quality report not implemented")
	// ErrNotFittable is returned when a sensor's equation cannot be fitted
	ErrNotFittable = errors.New("equation cannot be fitted")
	// ErrUnknownEdit is returned for edit keys a procedure does not have
	ErrUnknownEdit = errors.New("unknown setting")
	// ErrInvalidValue is returned for edit values that do not parse or fit
	ErrInvalidValue = errors.New("invalid value")
)

// EditKey describes one editable procedure setting
type EditKey struct {
	Name string
	Help string
}

// Procedure calibrates sensors of one type
type Procedure interface {
	// Type returns the sensor type served
	Type() sensor.Type
	// Prep copies the defaults onto s and attaches a fresh stream
	Prep(s *sensor.Sensor) error
	// Connect attaches a fresh stream without touching the defaults of s
	Connect(s *sensor.Sensor) error
	// Run calibrates s. It returns false when the run was cancelled or the
	// fit was degenerate; the prior calibration is then untouched.
	Run(ctx context.Context, s *sensor.Sensor) (bool, error)
	// Quality reports on the calibration of s
	Quality(w io.Writer, s *sensor.Sensor) error
	// Show writes the defaults
	Show(w io.Writer)
	// Edit changes one default setting
	Edit(key, value string) error
	// EditKeys lists the editable settings
	EditKeys() []EditKey
	// Pack writes the defaults into sec
	Pack(sec *document.Section)
	// Unpack reads defaults written by Pack
	Unpack(sec *document.Section) error
}

// Env carries the collaborators shared by all procedures
type Env struct {
	Streams  *stream.Registry
	Sampler  *setpoint.Sampler
	Out      io.Writer
	Logger   *logging.Logger
	Sampling config.SamplingConfig
	Defaults config.ProceduresConfig
	Now      func() time.Time
	NewRunID func() uuid.UUID
}

func (e *Env) today() time.Time {
	if e.Now == nil {
		return document.Date(time.Now())
	}
	return document.Date(e.Now())
}

func (e *Env) runID() uuid.UUID {
	if e.NewRunID == nil {
		return uuid.New()
	}
	return e.NewRunID()
}

// base holds the settings every procedure has
type base struct {
	env           *Env
	kind          sensor.Type
	name          string
	scaledUnits   string
	rawUnits      string
	streamType    string
	streamAddress string
	intervalDays  int
	equationKind  equation.Kind
}

// defaultAddress is the calibration bench channel used when none is configured
const defaultAddress = "a2"

func newBase(env *Env, kind sensor.Type, name, scaledUnits string, eq equation.Kind) base {
	address := env.Defaults.Address
	if address == "" {
		address = defaultAddress
	}
	return base{
		env:           env,
		kind:          kind,
		name:          name,
		scaledUnits:   scaledUnits,
		rawUnits:      "mV",
		streamType:    stream.TypePhorp,
		streamAddress: address,
		intervalDays:  env.Defaults.IntervalDays,
		equationKind:  eq,
	}
}

func (b *base) Type() sensor.Type {
	return b.kind
}

func (b *base) logger() *logging.Logger {
	if b.env.Logger == nil {
		return logging.Global()
	}
	return b.env.Logger
}

// Connect attaches a fresh stream bound to the procedure's address
func (b *base) Connect(s *sensor.Sensor) error {
	st, err := b.env.Streams.New(b.streamType)
	if err != nil {
		return err
	}
	return s.Connect(st, b.streamAddress)
}

// prep applies the shared settings and connects s
func (b *base) prep(s *sensor.Sensor) error {
	if err := b.Connect(s); err != nil {
		return err
	}

	s.Name = b.name
	s.Calibration.ScaledUnits = b.scaledUnits
	s.Calibration.Interval = calibration.Days(b.intervalDays)
	if s.Calibration.Equation == nil || s.Calibration.Equation.Kind() != b.equationKind {
		eq, err := equation.New(b.equationKind)
		if err != nil {
			return err
		}
		s.Calibration.Equation = eq
	}
	return nil
}

// startRun allocates the run id and tags ctx with it and the sensor id.
// The returned logger carries both fields.
func (b *base) startRun(ctx context.Context, s *sensor.Sensor) (context.Context, uuid.UUID, *logging.Logger) {
	runID := b.env.runID()
	ctx = logging.WithSensorID(logging.WithRunID(ctx, runID.String()), s.ID)
	return ctx, runID, b.logger().WithContext(ctx).With("type", string(s.Type))
}

// commit installs a finished equation on s with a fresh timestamp
func (b *base) commit(s *sensor.Sensor, eq equation.Equation, runID uuid.UUID) {
	cal := s.Calibration.Clone()
	cal.Equation = eq
	cal.ScaledUnits = b.scaledUnits
	cal.Interval = calibration.Days(b.intervalDays)
	cal.Commit(b.env.today(), runID)
	s.Calibration = cal
}

func (b *base) showCommon(w io.Writer) {
	fmt.Fprintf(w, "  Interval: %d days\n", b.intervalDays)
	fmt.Fprintln(w)
	fmt.Fprintf(w, "  Stream Type:  %s\n", b.streamType)
	fmt.Fprintf(w, "  Stream Address:  %s\n", b.streamAddress)
}

var baseEditKeys = []EditKey{
	{Name: "interval", Help: "interval <days> calibration interval in days, 0 never expires"},
	{Name: "address", Help: "address <addr> pHorp channel used for calibration, board a-h and channel 1-4 as in b3"},
}

func (b *base) edit(key, value string) (bool, error) {
	switch key {
	case "interval":
		days, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil || days < 0 {
			return true, fmt.Errorf("%w: interval must be a whole number of days, got %q", ErrInvalidValue, value)
		}
		b.intervalDays = days
		return true, nil
	case "address":
		addr, err := stream.ParseAddress(value)
		if err != nil {
			return true, err
		}
		b.streamAddress = addr.String()
		return true, nil
	}
	return false, nil
}

func (b *base) pack(sec *document.Section) {
	sec.SetString("type", string(b.kind))
	sec.SetString("name", b.name)
	sec.SetString("scaled_units", b.scaledUnits)
	sec.SetString("raw_units", b.rawUnits)
	sec.SetString("stream_type", b.streamType)
	sec.SetString("stream_address", b.streamAddress)
	sec.SetInt("interval", b.intervalDays)
}

func (b *base) unpack(sec *document.Section) error {
	b.name = sec.GetString("name", b.name)
	b.scaledUnits = sec.GetString("scaled_units", b.scaledUnits)
	b.rawUnits = sec.GetString("raw_units", b.rawUnits)
	b.streamType = sec.GetString("stream_type", b.streamType)

	address := sec.GetString("stream_address", b.streamAddress)
	addr, err := stream.ParseAddress(address)
	if err != nil {
		return &document.DecodeError{Path: sec.Path(), Key: "stream_address", Err: err}
	}
	b.streamAddress = addr.String()

	days, err := sec.GetInt("interval", b.intervalDays)
	if err != nil {
		return err
	}
	if days < 0 {
		return &document.DecodeError{Path: sec.Path(), Key: "interval", Err: fmt.Errorf("negative interval %d", days)}
	}
	b.intervalDays = days
	return nil
}

func parseValue(key, value string) (float64, error) {
	f, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %s unchanged, %q is not a number", ErrInvalidValue, key, value)
	}
	return f, nil
}
