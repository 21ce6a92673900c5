// Package setpoint holds calibration targets and the operator driven
// sampling pass that measures a sensor at each target.
package setpoint

import (
	"fmt"

	"github.com/phorp/calcrib/internal/document"
)

// Parameter is a named value in scaled units, such as a buffer target or a
// thermistor constant
type Parameter struct {
	Name        string
	ScaledUnits string
	ScaledValue float64
}

// NewParameter creates a parameter
func NewParameter(name, units string, value float64) *Parameter {
	return &Parameter{Name: name, ScaledUnits: units, ScaledValue: value}
}

// Clone returns a copy
func (p *Parameter) Clone() *Parameter {
	c := *p
	return &c
}

// Synopsis returns "name: value units"
func (p *Parameter) Synopsis() string {
	return fmt.Sprintf("%s: %g %s", p.Name, p.ScaledValue, p.ScaledUnits)
}

// Pack writes the parameter into sec
func (p *Parameter) Pack(sec *document.Section) {
	sec.SetString("name", p.Name)
	sec.SetString("scaled_units", p.ScaledUnits)
	sec.SetFloat("scaled_value", p.ScaledValue)
}

func (p *Parameter) unpack(sec *document.Section) error {
	p.Name = sec.GetString("name", sec.Name())
	p.ScaledUnits = sec.GetString("scaled_units", "")

	var err error
	p.ScaledValue, err = sec.GetFloat("scaled_value", 0)
	return err
}

// UnpackParameter reads a parameter written by Pack. A missing name falls
// back to the section name.
func UnpackParameter(sec *document.Section) (*Parameter, error) {
	p := &Parameter{}
	if err := p.unpack(sec); err != nil {
		return nil, err
	}
	return p, nil
}
