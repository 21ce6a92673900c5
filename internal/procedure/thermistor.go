package procedure

import (
	"context"
	"fmt"
	"io"

	"github.com/phorp/calcrib/internal/document"
	"github.com/phorp/calcrib/internal/equation"
	"github.com/phorp/calcrib/internal/sensor"
	"github.com/phorp/calcrib/internal/setpoint"
)

// ThermistorProcedure configures NTC thermistors read through the pHorp
// bias divider. Its constants are entered by the operator; nothing is
// sampled or fitted.
type ThermistorProcedure struct {
	base
	params []*setpoint.Parameter
}

// NewThermistorProcedure returns the ntc procedure with datasheet defaults
func NewThermistorProcedure(env *Env) *ThermistorProcedure {
	return &ThermistorProcedure{
		base: newBase(env, sensor.TypeNTC, "Temperature", "°C", equation.KindPhorpNtcBeta),
		params: []*setpoint.Parameter{
			setpoint.NewParameter("beta", "K", equation.DefaultBeta),
			setpoint.NewParameter("r25", "ohms", equation.DefaultR25),
			setpoint.NewParameter("bias_volts", "V", equation.DefaultBiasVolts),
			setpoint.NewParameter("bias_ohms", "ohms", equation.DefaultBiasOhms),
		},
	}
}

// Parameter returns the constant with the given name
func (p *ThermistorProcedure) Parameter(name string) (*setpoint.Parameter, bool) {
	for _, prm := range p.params {
		if prm.Name == name {
			return prm, true
		}
	}
	return nil, false
}

func (p *ThermistorProcedure) value(name string) float64 {
	prm, _ := p.Parameter(name)
	return prm.ScaledValue
}

func (p *ThermistorProcedure) newEquation() *equation.PhorpThermistor {
	eq := equation.NewPhorpThermistor()
	eq.Beta = p.value("beta")
	eq.R25 = p.value("r25")
	eq.BiasVolts = p.value("bias_volts")
	eq.BiasOhms = p.value("bias_ohms")
	return eq
}

// Prep attaches a stream and installs the configured constants. The
// calibration is not stamped until Run.
func (p *ThermistorProcedure) Prep(s *sensor.Sensor) error {
	if err := p.prep(s); err != nil {
		return err
	}
	s.Setpoints = nil
	s.Calibration.Equation = p.newEquation()
	return nil
}

// Run applies the configured constants to s and stamps the calibration
func (p *ThermistorProcedure) Run(ctx context.Context, s *sensor.Sensor) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if s.Stream() == nil {
		if err := p.Connect(s); err != nil {
			return false, err
		}
	}

	_, runID, log := p.startRun(ctx, s)
	eq := p.newEquation()
	p.commit(s, eq, runID)
	fmt.Fprintf(p.env.Out, "  %s\n", s.Calibration.Synopsis())
	log.Info("calibration committed", "equation", eq.Synopsis())
	return true, nil
}

// Quality is not available for thermistors
func (p *ThermistorProcedure) Quality(w io.Writer, s *sensor.Sensor) error {
	return fmt.Errorf("%w for %s", ErrQualityUnsupported, p.kind)
}

// Show writes the constants
func (p *ThermistorProcedure) Show(w io.Writer) {
	fmt.Fprintln(w, " Configuration")
	fmt.Fprintf(w, "  Units:  %s\n", p.scaledUnits)
	for _, prm := range p.params {
		fmt.Fprintf(w, "   %s\n", prm.Synopsis())
	}
	p.showCommon(w)
}

// EditKeys lists the editable settings
func (p *ThermistorProcedure) EditKeys() []EditKey {
	keys := make([]EditKey, 0, len(p.params)+len(baseEditKeys))
	for _, prm := range p.params {
		keys = append(keys, EditKey{Name: prm.Name, Help: fmt.Sprintf("%s <n> thermistor constant in %s", prm.Name, prm.ScaledUnits)})
	}
	return append(keys, baseEditKeys...)
}

// Edit changes a constant or a shared setting. Constants must be positive.
func (p *ThermistorProcedure) Edit(key, value string) error {
	if handled, err := p.edit(key, value); handled {
		return err
	}

	prm, ok := p.Parameter(key)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownEdit, key)
	}
	v, err := parseValue(key, value)
	if err != nil {
		return err
	}
	if !(v > 0) {
		return fmt.Errorf("%w: %s must be positive, got %g", ErrInvalidValue, key, v)
	}
	prm.ScaledValue = v
	return nil
}

// Pack writes the defaults and the constants
func (p *ThermistorProcedure) Pack(sec *document.Section) {
	p.pack(sec)
	params := sec.Child("parameters")
	for _, prm := range p.params {
		prm.Pack(params.Child(prm.Name))
	}
}

// Unpack reads defaults written by Pack. Unknown parameters are rejected.
func (p *ThermistorProcedure) Unpack(sec *document.Section) error {
	if err := p.unpack(sec); err != nil {
		return err
	}

	params, ok := sec.Lookup("parameters")
	if !ok {
		return nil
	}
	for _, prmSec := range params.Children() {
		prm, err := setpoint.UnpackParameter(prmSec)
		if err != nil {
			return err
		}
		cur, ok := p.Parameter(prm.Name)
		if !ok {
			return &document.DecodeError{Path: prmSec.Path(), Key: "name", Err: fmt.Errorf("%w: %s", ErrUnknownEdit, prm.Name)}
		}
		if !(prm.ScaledValue > 0) {
			return &document.DecodeError{Path: prmSec.Path(), Key: "scaled_value", Err: fmt.Errorf("%s must be positive", prm.Name)}
		}
		cur.ScaledValue = prm.ScaledValue
		if prm.ScaledUnits != "" {
			cur.ScaledUnits = prm.ScaledUnits
		}
	}
	return nil
}
