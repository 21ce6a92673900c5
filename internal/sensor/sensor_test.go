package sensor

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phorp/calcrib/internal/calibration"
	"github.com/phorp/calcrib/internal/config"
	"github.com/phorp/calcrib/internal/document"
	"github.com/phorp/calcrib/internal/equation"
	"github.com/phorp/calcrib/internal/setpoint"
	"github.com/phorp/calcrib/internal/stream"
)

var today = time.Date(2026, 10, 18, 0, 0, 0, 0, time.UTC)

func calibratedSensor(t *testing.T) *Sensor {
	t.Helper()
	s, err := New(TypePH, "Tank 3")
	require.NoError(t, err)
	s.Name = "pH"
	s.Location = "bay 2"
	s.Address = "b3"
	s.StreamType = stream.TypePhorp

	eq := equation.NewPolynomial()
	eq.Generate(4, 177.5, 7, 0)
	s.Calibration.Equation = eq
	s.Calibration.ScaledUnits = "pH"
	s.Calibration.Interval = calibration.Days(180)
	s.Calibration.Timestamp = today

	cfg := config.DefaultConfig().Sampling
	p1 := setpoint.New("p1", "pH", 4, cfg)
	p2 := setpoint.New("p2", "pH", 7, cfg)
	p1.Stats.Push(177.5)
	p2.Stats.Push(0)
	s.Setpoints = []*setpoint.Setpoint{p1, p2}
	return s
}

func TestNormalizeID(t *testing.T) {
	assert.Equal(t, "tank_3", NormalizeID("  Tank 3 "))
	assert.Equal(t, "a-b_c", NormalizeID("A-B_C"))
}

func TestNew_InvalidID(t *testing.T) {
	for _, id := range []string{"", "   ", "tank.3", "tank/3", "ph\"x"} {
		_, err := New(TypePH, id)
		assert.True(t, errors.Is(err, ErrInvalidID), "id %q", id)
	}
}

func TestSensor_RoundTrip(t *testing.T) {
	s := calibratedSensor(t)

	root := document.New()
	s.Pack(root.Child("sensors").Child(s.ID))

	doc, err := document.Unmarshal(document.Marshal(root))
	require.NoError(t, err)
	sec, ok := doc.Walk("sensors.tank_3")
	require.True(t, ok)

	got, err := Unpack(sec, config.DefaultConfig().Sampling)
	require.NoError(t, err)

	assert.Equal(t, s.ID, got.ID)
	assert.Equal(t, s.Type, got.Type)
	assert.Equal(t, s.Address, got.Address)
	assert.Equal(t, s.Name, got.Name)
	assert.Equal(t, s.Location, got.Location)
	assert.Equal(t, s.StreamType, got.StreamType)
	assert.Equal(t, s.Calibration.ScaledUnits, got.Calibration.ScaledUnits)
	assert.True(t, s.Calibration.Timestamp.Equal(got.Calibration.Timestamp))
	assert.Equal(t, s.Calibration.Equation.(*equation.Polynomial).Coefficients(),
		got.Calibration.Equation.(*equation.Polynomial).Coefficients())

	require.Len(t, got.Setpoints, 2)
	for i, sp := range s.Setpoints {
		assert.Equal(t, sp.Name, got.Setpoints[i].Name)
		assert.Equal(t, sp.ScaledValue, got.Setpoints[i].ScaledValue)
		assert.Equal(t, sp.Stats.N(), got.Setpoints[i].Stats.N())
	}
	assert.True(t, got.IsCalibrated(today))
}

func TestUnpack_Defaults(t *testing.T) {
	sec := document.New().Child("sensors").Child("probe")
	sec.SetString("type", "eh")

	got, err := Unpack(sec, config.DefaultConfig().Sampling)
	require.NoError(t, err)
	assert.Equal(t, "probe", got.ID)
	assert.Equal(t, "", got.Name)
	assert.Equal(t, DefaultAddress, got.Address)
	assert.Equal(t, calibration.New(), got.Calibration)
	assert.Empty(t, got.Setpoints)
}

func TestUnpack_MissingType(t *testing.T) {
	sec := document.New().Child("sensors").Child("probe")
	_, err := Unpack(sec, config.DefaultConfig().Sampling)
	var decodeErr *document.DecodeError
	assert.True(t, errors.As(err, &decodeErr))
}

func TestSensor_Stream(t *testing.T) {
	s, err := New(TypePH, "tank3")
	require.NoError(t, err)

	assert.Error(t, s.Update(context.Background()))
	assert.Equal(t, 0.0, s.RawValue())

	adc := stream.NewSimulatedADC(0, 1)
	addr, _ := stream.ParseAddress("b3")
	adc.SetLevel(addr, 0.1775)

	require.NoError(t, s.Connect(stream.NewPhorpStream(adc, 1), "b3"))
	assert.Equal(t, DefaultAddress, s.Address, "the deployed address is kept")
	assert.Equal(t, "b3", s.Stream().(*stream.PhorpStream).Address().String())
	assert.Equal(t, stream.TypePhorp, s.StreamType)

	require.NoError(t, s.Update(context.Background()))
	assert.InDelta(t, 177.5, s.RawValue(), 1e-9)
	assert.Equal(t, "mV", s.RawUnits())
	assert.InDelta(t, 177.5, s.ScaledValue(), 1e-9, "uncalibrated sensors pass raw through")

	s.Calibration = calibratedSensor(t).Calibration
	assert.InDelta(t, 4.0, s.ScaledValue(), 1e-9)
	assert.InDelta(t, 7.0, s.Evaluate(0), 1e-9)
}

func TestUnpack_InvalidAddress(t *testing.T) {
	sec := document.New().Child("sensors").Child("probe")
	sec.SetString("type", "ph")
	sec.SetString("address", "z9")

	_, err := Unpack(sec, config.DefaultConfig().Sampling)
	var decodeErr *document.DecodeError
	require.True(t, errors.As(err, &decodeErr))
	assert.Equal(t, "address", decodeErr.Key)
	assert.True(t, errors.Is(err, stream.ErrInvalidAddress))

	sec.SetString("address", "B3")
	got, err := Unpack(sec, config.DefaultConfig().Sampling)
	require.NoError(t, err)
	assert.Equal(t, "b3", got.Address)
}

func TestSensor_ResetClearsFilter(t *testing.T) {
	s, err := New(TypePH, "tank3")
	require.NoError(t, err)
	s.Reset()

	adc := stream.NewSimulatedADC(0, 1)
	addr, _ := stream.ParseAddress("a2")
	require.NoError(t, s.Connect(stream.NewPhorpStream(adc, 10), "a2"))

	adc.SetLevel(addr, 0.1)
	require.NoError(t, s.Update(context.Background()))
	adc.SetLevel(addr, 0.3)
	require.NoError(t, s.Update(context.Background()))
	assert.InDelta(t, 120.0, s.RawValue(), 1e-9)

	s.Reset()
	require.NoError(t, s.Update(context.Background()))
	assert.InDelta(t, 300.0, s.RawValue(), 1e-9)
}

func TestSensor_SetAddress(t *testing.T) {
	s, err := New(TypePH, "tank3")
	require.NoError(t, err)
	require.NoError(t, s.Connect(stream.NewPhorpStream(stream.NewSimulatedADC(0, 1), 1), ""))
	assert.Equal(t, DefaultAddress, s.Stream().(*stream.PhorpStream).Address().String())

	require.NoError(t, s.SetAddress("C4"))
	assert.Equal(t, "c4", s.Address)

	assert.True(t, errors.Is(s.SetAddress("z9"), stream.ErrInvalidAddress))
	assert.Equal(t, "c4", s.Address)
}

func TestSensor_ShowDump(t *testing.T) {
	s := calibratedSensor(t)

	var buf bytes.Buffer
	s.Show(&buf)
	assert.Contains(t, buf.String(), "ID:   tank_3")
	assert.Contains(t, buf.String(), "calibration due: 2027-04-16")

	buf.Reset()
	s.Dump(&buf)
	assert.Contains(t, buf.String(), "p1 4 pH: n=1")
	assert.Contains(t, buf.String(), "polynomial degree 1")
}
