package crib

import (
	"bytes"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phorp/calcrib/internal/config"
	"github.com/phorp/calcrib/internal/document"
	"github.com/phorp/calcrib/internal/equation"
	"github.com/phorp/calcrib/internal/logging"
	"github.com/phorp/calcrib/internal/procedure"
	"github.com/phorp/calcrib/internal/sensor"
	"github.com/phorp/calcrib/internal/setpoint"
	"github.com/phorp/calcrib/internal/stream"
)

var (
	testNow   = time.Date(2026, 10, 18, 9, 30, 0, 0, time.UTC)
	testRunID = uuid.MustParse("0b7e3f4a-1c2d-4e5f-8a9b-0c1d2e3f4a5b")
)

type noKeys struct{}

func (noKeys) ReadKey() (rune, error) {
	return 0, errors.New("no operator")
}

func newTestCrib(t *testing.T) *Crib {
	t.Helper()
	cfg := config.DefaultConfig()
	dir := t.TempDir()
	cfg.Document.Dir = dir
	cfg.Document.Archive.Enabled = true
	cfg.Document.Archive.Dir = filepath.Join(dir, "archive")

	store, err := document.NewStore(cfg.Document, logging.NewNop())
	require.NoError(t, err)

	adc := stream.NewSimulatedADC(0, 1)
	var out bytes.Buffer
	env := &procedure.Env{
		Streams:  stream.NewDefaultRegistry(cfg.Stream, adc),
		Sampler:  setpoint.NewSampler(noKeys{}, &out, cfg.Sampling, logging.NewNop()),
		Out:      &out,
		Logger:   logging.NewNop(),
		Sampling: cfg.Sampling,
		Defaults: cfg.Procedures,
		Now:      func() time.Time { return testNow },
		NewRunID: func() uuid.UUID { return testRunID },
	}
	return New(env, store, logging.NewNop())
}

// calibrated adds a pH sensor with a committed calibration
func calibrated(t *testing.T, c *Crib, id string) *sensor.Sensor {
	t.Helper()
	s, err := c.NewSensor(sensor.TypePH, id)
	require.NoError(t, err)
	s.Calibration.Equation = equation.NewPolynomialFrom(414.1, -59.2)
	s.Calibration.Commit(testNow, testRunID)
	s.Location = "north basin"
	require.NoError(t, s.SetAddress("b3"))
	return s
}

func TestCrib_NewSensor(t *testing.T) {
	c := newTestCrib(t)

	s, err := c.NewSensor("PH", "Tank 3")
	require.NoError(t, err)
	assert.Equal(t, "tank_3", s.ID)
	assert.Equal(t, sensor.TypePH, s.Type)
	assert.Len(t, s.Setpoints, 2)
	assert.NotNil(t, s.Stream())

	sel, err := c.Selected()
	require.NoError(t, err)
	assert.Same(t, s, sel)

	_, err = c.NewSensor(sensor.TypeNTC, "probe")
	require.NoError(t, err)
	assert.Equal(t, 1, c.Sensors.SelectedIndex(), "new sensor is selected")
}

func TestCrib_NewSensorRejects(t *testing.T) {
	c := newTestCrib(t)
	s := calibrated(t, c, "tank_3")

	_, err := c.NewSensor(sensor.TypeEh, "TANK 3")
	assert.ErrorIs(t, err, sensor.ErrDuplicateSensor)
	assert.Equal(t, sensor.TypePH, s.Type, "existing sensor untouched")
	assert.Equal(t, "north basin", s.Location)
	assert.True(t, s.IsCalibrated(testNow))

	_, err = c.NewSensor("orp", "redox")
	assert.ErrorIs(t, err, procedure.ErrUnknownProcedure)

	_, err = c.NewSensor(sensor.TypeEh, "bad/id")
	assert.ErrorIs(t, err, sensor.ErrInvalidID)

	assert.Equal(t, 1, c.Sensors.Len())
}

func TestCrib_SelectedEmpty(t *testing.T) {
	c := newTestCrib(t)
	_, err := c.Selected()
	assert.ErrorIs(t, err, ErrNoSensor)
}

func TestCrib_DeleteSensor(t *testing.T) {
	c := newTestCrib(t)
	calibrated(t, c, "tank3")

	require.NoError(t, c.DeleteSensor("TANK3"))
	assert.Equal(t, 0, c.Sensors.Len())
	assert.ErrorIs(t, c.DeleteSensor("tank3"), sensor.ErrSensorNotFound)
}

func TestCrib_PackLayout(t *testing.T) {
	c := newTestCrib(t)
	calibrated(t, c, "tank3")

	text := string(c.View())
	assert.True(t, strings.HasPrefix(text, "date = \"2026-10-18T09:30:00\"\n"), text)
	assert.Contains(t, text, "[procedures.ph]\n")
	assert.Contains(t, text, "[procedures.ntc.parameters.beta]\n")
	assert.Contains(t, text, "[sensors.tank3]\n")
	assert.Contains(t, text, "[sensors.tank3.calibration.equation.coefficients]\n")
	assert.Contains(t, text, "run_id = \""+testRunID.String()+"\"")
	assert.Less(t, strings.Index(text, "[procedures."), strings.Index(text, "[sensors."))
}

func TestCrib_SaveLoad(t *testing.T) {
	c := newTestCrib(t)
	want := calibrated(t, c, "tank3")
	_, err := c.NewSensor(sensor.TypeNTC, "probe")
	require.NoError(t, err)
	ph, err := c.Procedures.Get(sensor.TypePH)
	require.NoError(t, err)
	require.NoError(t, ph.Edit("interval", "90"))

	path, err := c.Save("bench")
	require.NoError(t, err)
	assert.Equal(t, "bench.toml", filepath.Base(path))
	assert.Equal(t, "bench", c.DocumentName())

	// a second crib over the same store reads it back
	d := New(c.env, c.store, logging.NewNop())
	_, err = d.Load("bench")
	require.NoError(t, err)
	assert.Equal(t, "2026-10-18T09:30:00", d.SavedAt())
	require.Equal(t, 2, d.Sensors.Len())
	assert.Equal(t, 0, d.Sensors.SelectedIndex())

	got, err := d.Sensors.Get("tank3")
	require.NoError(t, err)
	assert.Equal(t, want.ID, got.ID)
	assert.Equal(t, want.Type, got.Type)
	assert.Equal(t, "b3", got.Address)
	assert.Equal(t, "north basin", got.Location)
	assert.Equal(t, want.Calibration.ScaledUnits, got.Calibration.ScaledUnits)
	assert.Equal(t, want.Calibration.Timestamp, got.Calibration.Timestamp)
	assert.Equal(t, testRunID, got.Calibration.RunID)
	assert.Equal(t,
		want.Calibration.Equation.(*equation.Polynomial).Coefficients(),
		got.Calibration.Equation.(*equation.Polynomial).Coefficients())
	require.Len(t, got.Setpoints, len(want.Setpoints))
	for i := range want.Setpoints {
		assert.Equal(t, want.Setpoints[i].Name, got.Setpoints[i].Name)
		assert.Equal(t, want.Setpoints[i].ScaledValue, got.Setpoints[i].ScaledValue)
	}
	assert.NotNil(t, got.Stream(), "loaded sensors are reconnected")

	dph, err := d.Procedures.Get(sensor.TypePH)
	require.NoError(t, err)
	var a, b bytes.Buffer
	ph.Show(&a)
	dph.Show(&b)
	assert.Equal(t, a.String(), b.String())
}

func TestCrib_LoadMissingKeepsState(t *testing.T) {
	c := newTestCrib(t)
	calibrated(t, c, "tank3")

	_, err := c.Load("nothing_here")
	assert.ErrorIs(t, err, document.ErrNotFound)
	assert.Equal(t, 1, c.Sensors.Len())
	assert.Equal(t, "", c.DocumentName())
}

func TestCrib_UnpackIsAllOrNothing(t *testing.T) {
	c := newTestCrib(t)
	calibrated(t, c, "tank3")
	procs := c.Procedures

	doc := c.Pack()
	doc.Child("sensors").Child("redox").SetString("type", "orp")

	err := c.Unpack(doc)
	assert.ErrorIs(t, err, procedure.ErrUnknownProcedure)
	assert.Equal(t, 1, c.Sensors.Len())
	assert.Same(t, procs, c.Procedures)

	bad := c.Pack()
	bad.Child("procedures").Child("ph").SetInt("point_count", 9)
	var de *document.DecodeError
	assert.ErrorAs(t, c.Unpack(bad), &de)
	assert.Same(t, procs, c.Procedures)
}

func TestCrib_Archives(t *testing.T) {
	c := newTestCrib(t)
	calibrated(t, c, "tank3")

	_, err := c.Save("")
	require.NoError(t, err)
	archives, err := c.Archives()
	require.NoError(t, err)
	assert.Empty(t, archives, "first save has nothing to archive")

	_, err = c.Save("")
	require.NoError(t, err)
	archives, err = c.Archives()
	require.NoError(t, err)
	require.Len(t, archives, 1)
	assert.True(t, strings.HasPrefix(filepath.Base(archives[0]), "coefficients-"))

	text, err := c.ViewArchive(archives[0])
	require.NoError(t, err)
	assert.Contains(t, string(text), "[sensors.tank3]")
}

func TestCrib_Path(t *testing.T) {
	c := newTestCrib(t)
	assert.Equal(t, "coefficients.toml", filepath.Base(c.Path("")))
	assert.Equal(t, "lab_2.toml", filepath.Base(c.Path("lab_2")))
	assert.Equal(t, "lab2.toml", filepath.Base(c.Path("lab/2")))
}
