// Package sensor binds a stream, a calibration and its setpoints into one
// deployed sensor, and keeps the ordered sensor collection.
package sensor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/phorp/calcrib/internal/calibration"
	"github.com/phorp/calcrib/internal/config"
	"github.com/phorp/calcrib/internal/document"
	"github.com/phorp/calcrib/internal/setpoint"
	"github.com/phorp/calcrib/internal/stream"
)

var (
	// ErrInvalidID is returned for ids that are empty or not representable
	// as a document key after normalization
	ErrInvalidID = errors.New("invalid sensor id")
	// ErrDuplicateSensor is returned when an id is already in the collection
	ErrDuplicateSensor = errors.New("sensor already exists")
	// ErrSensorNotFound is returned for ids missing from the collection
	ErrSensorNotFound = errors.New("sensor not found")
)

// Type identifies the kind of sensor and thereby its procedure
type Type string

const (
	TypePH  Type = "ph"
	TypeEh  Type = "eh"
	TypeNTC Type = "ntc"
	TypeDO  Type = "do"
)

const (
	DefaultAddress     = "a1"
	calibrationSection = "calibration"
	setpointsSection   = "setpoints"
)

// NormalizeID trims, lowercases and replaces spaces with underscores
func NormalizeID(id string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(id)), " ", "_")
}

func checkID(id string) error {
	if id == "" {
		return fmt.Errorf("%w: empty", ErrInvalidID)
	}
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_', r == '-':
		default:
			return fmt.Errorf("%w: %q contains %q", ErrInvalidID, id, r)
		}
	}
	return nil
}

// Sensor is one deployed sensor. It owns its calibration and setpoints and
// borrows a stream attached with Connect.
type Sensor struct {
	Type        Type
	ID          string
	Name        string
	Location    string
	Address     string
	StreamType  string
	Calibration *calibration.Calibration
	Setpoints   []*setpoint.Setpoint

	stream stream.Stream
}

// New creates an uncalibrated sensor with a normalized id
func New(t Type, id string) (*Sensor, error) {
	id = NormalizeID(id)
	if err := checkID(id); err != nil {
		return nil, err
	}
	return &Sensor{
		Type:        t,
		ID:          id,
		Address:     DefaultAddress,
		Calibration: calibration.New(),
	}, nil
}

// Connect attaches st bound to address, or to the deployed address when
// address is empty. Calibration benches bind to their own channel, so the
// deployed address is left as is.
func (s *Sensor) Connect(st stream.Stream, address string) error {
	if address == "" {
		address = s.Address
	}
	if err := st.Connect(address); err != nil {
		return err
	}
	s.stream = st
	s.StreamType = st.Type()
	return nil
}

// Stream returns the attached stream, nil before Connect
func (s *Sensor) Stream() stream.Stream {
	return s.stream
}

// SetAddress validates and stores a deployed address such as "b3"
func (s *Sensor) SetAddress(address string) error {
	addr, err := stream.ParseAddress(address)
	if err != nil {
		return err
	}
	s.Address = addr.String()
	return nil
}

// Update triggers one conversion on the attached stream
func (s *Sensor) Update(ctx context.Context) error {
	if s.stream == nil {
		return fmt.Errorf("sensor %s: %w", s.ID, stream.ErrNotConnected)
	}
	return s.stream.Update(ctx)
}

// Reset clears any filter history held by the stream
func (s *Sensor) Reset() {
	if r, ok := s.stream.(stream.Resetter); ok {
		r.Reset()
	}
}

// RawValue returns the last raw conversion
func (s *Sensor) RawValue() float64 {
	if s.stream == nil {
		return 0
	}
	return s.stream.RawValue()
}

// RawUnits returns the units of RawValue
func (s *Sensor) RawUnits() string {
	if s.stream == nil {
		return ""
	}
	return s.stream.RawUnits()
}

// ScaledValue returns the last conversion in scaled units
func (s *Sensor) ScaledValue() float64 {
	return s.Evaluate(s.RawValue())
}

// Evaluate converts a raw value with the calibration
func (s *Sensor) Evaluate(raw float64) float64 {
	return s.Calibration.EvaluateY(raw)
}

// IsCalibrated reports whether the calibration is valid today
func (s *Sensor) IsCalibrated(today time.Time) bool {
	return s.Calibration.IsValid(today)
}

// Setpoint returns the named setpoint
func (s *Sensor) Setpoint(name string) (*setpoint.Setpoint, bool) {
	for _, sp := range s.Setpoints {
		if sp.Name == name {
			return sp, true
		}
	}
	return nil, false
}

// Show writes the sensor summary for the operator
func (s *Sensor) Show(w io.Writer) {
	fmt.Fprintf(w, " ID:   %s\n", s.ID)
	fmt.Fprintf(w, "  Type: %s\n", s.Type)
	fmt.Fprintf(w, "  Name: %s\n", s.Name)
	fmt.Fprintf(w, "  Location: %s\n", s.Location)
	fmt.Fprintf(w, "  Stream Type:  %s\n", s.StreamType)
	fmt.Fprintf(w, "  Stream Address:  %s\n", s.Address)
	fmt.Fprintf(w, "  calibration due: %s\n", s.Calibration.DueString())
}

// Dump writes setpoint statistics and the calibration
func (s *Sensor) Dump(w io.Writer) {
	for _, sp := range s.Setpoints {
		fmt.Fprintf(w, "  %s\n", sp.Dump())
	}
	fmt.Fprintf(w, "  %s\n", s.Calibration.Synopsis())
}

// Pack writes the sensor, its calibration and setpoints into sec
func (s *Sensor) Pack(sec *document.Section) {
	sec.SetString("id", s.ID)
	sec.SetString("type", string(s.Type))
	sec.SetString("name", s.Name)
	sec.SetString("location", s.Location)
	sec.SetString("address", s.Address)
	sec.SetString("stream_type", s.StreamType)

	s.Calibration.Pack(sec.Child(calibrationSection))

	if len(s.Setpoints) > 0 {
		sps := sec.Child(setpointsSection)
		for _, sp := range s.Setpoints {
			sp.Pack(sps.Child(sp.Name))
		}
	}
}

// Unpack reads a sensor written by Pack. The id falls back to the section
// name; the type is required.
func Unpack(sec *document.Section, sampling config.SamplingConfig) (*Sensor, error) {
	t := Type(sec.GetString("type", ""))
	if t == "" {
		return nil, &document.DecodeError{Path: sec.Path(), Key: "type", Err: errors.New("missing sensor type")}
	}

	s, err := New(t, sec.GetString("id", sec.Name()))
	if err != nil {
		return nil, &document.DecodeError{Path: sec.Path(), Key: "id", Err: err}
	}
	s.Name = sec.GetString("name", "")
	s.Location = sec.GetString("location", "")
	addr, err := stream.ParseAddress(sec.GetString("address", DefaultAddress))
	if err != nil {
		return nil, &document.DecodeError{Path: sec.Path(), Key: "address", Err: err}
	}
	s.Address = addr.String()
	s.StreamType = sec.GetString("stream_type", "")

	if calSec, ok := sec.Lookup(calibrationSection); ok {
		if s.Calibration, err = calibration.Unpack(calSec); err != nil {
			return nil, err
		}
	}

	if sps, ok := sec.Lookup(setpointsSection); ok {
		for _, spSec := range sps.Children() {
			sp, err := setpoint.Unpack(spSec, sampling)
			if err != nil {
				return nil, err
			}
			s.Setpoints = append(s.Setpoints, sp)
		}
	}
	return s, nil
}
