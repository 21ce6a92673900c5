package procedure

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/phorp/calcrib/internal/document"
	"github.com/phorp/calcrib/internal/equation"
	"github.com/phorp/calcrib/internal/sensor"
	"github.com/phorp/calcrib/internal/setpoint"
)

// FitMode selects how sampled setpoints become an equation
type FitMode string

const (
	// FitTwoPoint fits the line through p1 and p2 exactly
	FitTwoPoint FitMode = "two_point"
	// FitLeastSquares fits a line over every sampled point
	FitLeastSquares FitMode = "least_squares"
)

func parseFitMode(s string) (FitMode, error) {
	switch m := FitMode(strings.ToLower(strings.TrimSpace(s))); m {
	case FitTwoPoint, FitLeastSquares:
		return m, nil
	}
	return "", fmt.Errorf("%w: fit is %s or %s, got %q", ErrInvalidValue, FitTwoPoint, FitLeastSquares, s)
}

// PointProcedure calibrates linear sensors against two or three buffer
// solutions
type PointProcedure struct {
	base
	pointCount int
	fit        FitMode
	setpoints  []*setpoint.Setpoint
	quality    bool
}

func newPointProcedure(env *Env, kind sensor.Type, name, units string, values ...float64) *PointProcedure {
	p := &PointProcedure{
		base:       newBase(env, kind, name, units, equation.KindPolynomial),
		pointCount: 2,
		fit:        FitTwoPoint,
	}
	for i, v := range values {
		p.setpoints = append(p.setpoints, setpoint.New(fmt.Sprintf("p%d", i+1), units, v, env.Sampling))
	}
	return p
}

// NewPHProcedure returns the pH procedure with 4, 7 and 10 pH buffers
func NewPHProcedure(env *Env) *PointProcedure {
	p := newPointProcedure(env, sensor.TypePH, "pH", "pH", 4, 7, 10)
	p.quality = true
	return p
}

// NewEhProcedure returns the redox procedure with 0 and 225 mV standards
func NewEhProcedure(env *Env) *PointProcedure {
	return newPointProcedure(env, sensor.TypeEh, "Eh", "mV", 0, 225)
}

// NewDOProcedure returns the dissolved oxygen procedure: zero solution and
// air saturated water at 25 °C
func NewDOProcedure(env *Env) *PointProcedure {
	return newPointProcedure(env, sensor.TypeDO, "DO", "mg/L", 0, 8.26)
}

// PointCount returns the number of setpoints sampled per run
func (p *PointProcedure) PointCount() int {
	return p.pointCount
}

// Fit returns the fit mode
func (p *PointProcedure) Fit() FitMode {
	return p.fit
}

// Setpoint returns the default setpoint with the given name
func (p *PointProcedure) Setpoint(name string) (*setpoint.Setpoint, bool) {
	for _, sp := range p.setpoints {
		if sp.Name == name {
			return sp, true
		}
	}
	return nil, false
}

// Prep gives s its own copies of the active setpoints and a polynomial
func (p *PointProcedure) Prep(s *sensor.Sensor) error {
	if err := p.prep(s); err != nil {
		return err
	}
	s.Setpoints = make([]*setpoint.Setpoint, 0, p.pointCount)
	for _, sp := range p.setpoints[:p.pointCount] {
		s.Setpoints = append(s.Setpoints, sp.Clone())
	}
	return nil
}

// Run samples every setpoint of s in order, then fits and commits the
// equation. Sampling happens on copies so a cancelled run changes nothing.
func (p *PointProcedure) Run(ctx context.Context, s *sensor.Sensor) (bool, error) {
	out := p.env.Out
	ctx, runID, log := p.startRun(ctx, s)
	defer func() { fmt.Fprintf(out, "  %s\n", s.Calibration.Synopsis()) }()

	if len(s.Setpoints) < 2 {
		return false, fmt.Errorf("sensor %s has %d setpoints, prep it first", s.ID, len(s.Setpoints))
	}
	if s.Stream() == nil {
		if err := p.Connect(s); err != nil {
			return false, err
		}
	}

	fmt.Fprintf(out, " running %d point calibration on sensor %s\n", len(s.Setpoints), s.ID)
	sampled := make([]*setpoint.Setpoint, len(s.Setpoints))
	for i, sp := range s.Setpoints {
		sampled[i] = sp.Clone()
		ok, err := p.env.Sampler.Run(ctx, sampled[i], s)
		if err != nil {
			log.Error("calibration aborted", "setpoint", sp.Name, "error", err)
			return false, err
		}
		if !ok {
			log.Info("calibration cancelled", "setpoint", sp.Name)
			return false, nil
		}
	}
	s.Setpoints = sampled

	eq, ok, err := p.fitSetpoints(sampled)
	if err != nil {
		return false, err
	}
	if !ok {
		fmt.Fprintf(out, "  degenerate fit (%s), calibration unchanged\n", eq.Synopsis())
		log.Warn("degenerate fit", "equation", eq.Synopsis())
		return false, nil
	}

	p.commit(s, eq, runID)
	log.Info("calibration committed", "equation", eq.Synopsis())
	return true, nil
}

func (p *PointProcedure) fitSetpoints(sps []*setpoint.Setpoint) (*equation.Polynomial, bool, error) {
	eq := equation.NewPolynomial()
	if p.fit == FitLeastSquares {
		xs := make([]float64, len(sps))
		ys := make([]float64, len(sps))
		for i, sp := range sps {
			xs[i] = sp.ScaledValue
			ys[i] = sp.Mean()
		}
		ok, err := eq.Fit(xs, ys, 1)
		return eq, ok, err
	}

	p1, p2 := sps[0], sps[1]
	return eq, eq.Generate(p1.ScaledValue, p1.Mean(), p2.ScaledValue, p2.Mean()), nil
}

// Quality reports slope, offset and efficiency for pH sensors
func (p *PointProcedure) Quality(w io.Writer, s *sensor.Sensor) error {
	if !p.quality {
		return fmt.Errorf("%w for %s", ErrQualityUnsupported, p.kind)
	}
	q, err := PHQuality(s.Calibration)
	if err != nil {
		return err
	}
	if !s.IsCalibrated(p.env.today()) {
		fmt.Fprintln(w, " sensor out of calibration")
	}
	q.Write(w)
	return nil
}

// Show writes the defaults
func (p *PointProcedure) Show(w io.Writer) {
	fmt.Fprintln(w, " Configuration")
	fmt.Fprintf(w, "  Units:  %s\n", p.scaledUnits)
	fmt.Fprintf(w, "  Spread: %d point\n", p.pointCount)
	fmt.Fprintf(w, "  Fit:    %s\n", p.fit)
	for _, sp := range p.setpoints[:p.pointCount] {
		fmt.Fprintf(w, "   %s:    %g %s\n", strings.ToUpper(sp.Name), sp.ScaledValue, sp.ScaledUnits)
	}
	p.showCommon(w)
}

// EditKeys lists the editable settings
func (p *PointProcedure) EditKeys() []EditKey {
	keys := make([]EditKey, 0, len(p.setpoints)+4)
	for _, sp := range p.setpoints {
		keys = append(keys, EditKey{Name: sp.Name, Help: fmt.Sprintf("%s <n> calibration point %s in %s", sp.Name, sp.Name, p.scaledUnits)})
	}
	keys = append(keys,
		EditKey{Name: "spread", Help: fmt.Sprintf("spread <n> calibration point count, 2 to %d", len(p.setpoints))},
		EditKey{Name: "fit", Help: "fit <mode> two_point or least_squares"},
	)
	return append(keys, baseEditKeys...)
}

// Edit changes a setpoint value, the spread, the fit mode or a shared setting
func (p *PointProcedure) Edit(key, value string) error {
	if handled, err := p.edit(key, value); handled {
		return err
	}

	switch key {
	case "spread":
		n, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil || n < 2 || n > len(p.setpoints) {
			return fmt.Errorf("%w: spread is 2 to %d, got %q", ErrInvalidValue, len(p.setpoints), value)
		}
		p.pointCount = n
		return nil
	case "fit":
		m, err := parseFitMode(value)
		if err != nil {
			return err
		}
		p.fit = m
		return nil
	}

	for i, sp := range p.setpoints {
		if sp.Name != key {
			continue
		}
		if i >= p.pointCount {
			return fmt.Errorf("%w: there is no %s in a %d point calibration", ErrInvalidValue, key, p.pointCount)
		}
		v, err := parseValue(key, value)
		if err != nil {
			return err
		}
		sp.ScaledValue = v
		return nil
	}
	return fmt.Errorf("%w: %s", ErrUnknownEdit, key)
}

// Pack writes the defaults and every setpoint template
func (p *PointProcedure) Pack(sec *document.Section) {
	p.pack(sec)
	sec.SetInt("point_count", p.pointCount)
	sec.SetString("fit", string(p.fit))
	sps := sec.Child("setpoints")
	for _, sp := range p.setpoints {
		sp.Pack(sps.Child(sp.Name))
	}
}

// Unpack reads defaults written by Pack. Stored setpoints replace the
// templates of the same name.
func (p *PointProcedure) Unpack(sec *document.Section) error {
	if err := p.unpack(sec); err != nil {
		return err
	}

	var err error
	if p.fit, err = parseFitMode(sec.GetString("fit", string(FitTwoPoint))); err != nil {
		return &document.DecodeError{Path: sec.Path(), Key: "fit", Err: err}
	}

	if sps, ok := sec.Lookup("setpoints"); ok {
		for _, spSec := range sps.Children() {
			sp, err := setpoint.Unpack(spSec, p.env.Sampling)
			if err != nil {
				return err
			}
			if i := p.indexOf(sp.Name); i >= 0 {
				p.setpoints[i] = sp
			} else {
				p.setpoints = append(p.setpoints, sp)
			}
		}
	}

	count, err := sec.GetInt("point_count", p.pointCount)
	if err != nil {
		return err
	}
	if count < 2 || count > len(p.setpoints) {
		return &document.DecodeError{Path: sec.Path(), Key: "point_count", Err: fmt.Errorf("%d points with %d setpoints", count, len(p.setpoints))}
	}
	p.pointCount = count
	return nil
}

func (p *PointProcedure) indexOf(name string) int {
	for i, sp := range p.setpoints {
		if sp.Name == name {
			return i
		}
	}
	return -1
}
