package equation

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/phorp/calcrib/internal/document"
	"github.com/phorp/calcrib/internal/utils"
)

const (
	newtonIterations = 64
	newtonTolerance  = 1e-12
)

// Polynomial is y = c0 + c1*x + ... + cn*x^n. The zero value is not usable,
// use NewPolynomial.
type Polynomial struct {
	coefficients []float64
}

// NewPolynomial returns the identity line y = x
func NewPolynomial() *Polynomial {
	return &Polynomial{coefficients: []float64{0, 1}}
}

// NewPolynomialFrom returns a polynomial with coefficients in ascending
// power order. At least a constant term is always present.
func NewPolynomialFrom(coefficients ...float64) *Polynomial {
	if len(coefficients) == 0 {
		coefficients = []float64{0}
	}
	c := make([]float64, len(coefficients))
	copy(c, coefficients)
	return &Polynomial{coefficients: c}
}

func (p *Polynomial) sealed() {}

// Kind returns KindPolynomial
func (p *Polynomial) Kind() Kind {
	return KindPolynomial
}

// Degree returns the highest power
func (p *Polynomial) Degree() int {
	return len(p.coefficients) - 1
}

// Coefficients returns a copy of the coefficients in ascending power order
func (p *Polynomial) Coefficients() []float64 {
	c := make([]float64, len(p.coefficients))
	copy(c, p.coefficients)
	return c
}

// Coefficient returns the coefficient of x^i, zero beyond the degree
func (p *Polynomial) Coefficient(i int) float64 {
	if i < 0 || i >= len(p.coefficients) {
		return 0
	}
	return p.coefficients[i]
}

// Offset returns c0
func (p *Polynomial) Offset() float64 {
	return p.Coefficient(0)
}

// Slope returns c1
func (p *Polynomial) Slope() float64 {
	return p.Coefficient(1)
}

// Generate fits the line through (x1, y1) and (x2, y2). When x1 == x2 the
// line degenerates to slope utils.DegenerateSlope through the origin and
// false is returned.
func (p *Polynomial) Generate(x1, y1, x2, y2 float64) bool {
	span := x2 - x1
	if span == 0 || !utils.IsFinite(span) {
		p.coefficients = []float64{0, utils.DegenerateSlope}
		return false
	}

	slope := (y2 - y1) / span
	p.coefficients = []float64{y1 - slope*x1, slope}
	return utils.IsFinite(slope) && utils.IsFinite(p.coefficients[0])
}

// Fit performs a least squares fit of the given degree over the points.
// A singular system (for example every x equal) degenerates like Generate
// and reports false.
func (p *Polynomial) Fit(xs, ys []float64, degree int) (bool, error) {
	if len(xs) != len(ys) {
		return false, fmt.Errorf("fit: %d x values but %d y values", len(xs), len(ys))
	}
	if degree < 1 {
		return false, fmt.Errorf("fit: degree %d is below 1", degree)
	}
	if len(xs) < degree+1 {
		return false, fmt.Errorf("fit: degree %d needs %d points, have %d", degree, degree+1, len(xs))
	}

	coefficients, ok := leastSquares(xs, ys, degree)
	if !ok {
		p.coefficients = []float64{0, utils.DegenerateSlope}
		return false, nil
	}
	p.coefficients = coefficients
	return true, nil
}

// leastSquares fits lines by simple regression and higher degrees by a QR
// solve of the Vandermonde system. A singular or non-finite result reports
// false.
func leastSquares(xs, ys []float64, degree int) ([]float64, bool) {
	if degree == 1 {
		offset, slope := stat.LinearRegression(xs, ys, nil, false)
		return []float64{offset, slope}, utils.IsFinite(offset) && utils.IsFinite(slope)
	}

	size := degree + 1
	v := mat.NewDense(len(xs), size, nil)
	for i, x := range xs {
		pow := 1.0
		for j := 0; j < size; j++ {
			v.Set(i, j, pow)
			pow *= x
		}
	}

	var c mat.VecDense
	if err := c.SolveVec(v, mat.NewVecDense(len(ys), ys)); err != nil {
		return nil, false
	}
	coefficients := make([]float64, size)
	for i := range coefficients {
		coefficients[i] = c.AtVec(i)
		if !utils.IsFinite(coefficients[i]) {
			return nil, false
		}
	}
	return coefficients, true
}

// EvaluateX returns y for x using Horner's rule
func (p *Polynomial) EvaluateX(x float64) float64 {
	y := 0.0
	for i := len(p.coefficients) - 1; i >= 0; i-- {
		y = y*x + p.coefficients[i]
	}
	return y
}

func (p *Polynomial) derivative(x float64) float64 {
	d := 0.0
	for i := len(p.coefficients) - 1; i >= 1; i-- {
		d = d*x + float64(i)*p.coefficients[i]
	}
	return d
}

// EvaluateY returns x for y. Lines are inverted directly, substituting
// utils.DegenerateSlope for a zero slope. Higher degrees use Newton's method
// seeded from the linear terms.
func (p *Polynomial) EvaluateY(y float64) float64 {
	slope := p.Slope()
	if slope == 0 {
		slope = utils.DegenerateSlope
	}
	x := (y - p.Offset()) / slope
	if p.Degree() <= 1 {
		return x
	}

	for i := 0; i < newtonIterations; i++ {
		d := p.derivative(x)
		if d == 0 || !utils.IsFinite(d) {
			break
		}
		step := (p.EvaluateX(x) - y) / d
		if !utils.IsFinite(step) {
			break
		}
		x -= step
		if math.Abs(step) <= newtonTolerance*math.Max(1, math.Abs(x)) {
			break
		}
	}
	return x
}

// Clone returns an independent copy
func (p *Polynomial) Clone() Equation {
	return NewPolynomialFrom(p.coefficients...)
}

// Synopsis returns the coefficients in ascending power order
func (p *Polynomial) Synopsis() string {
	parts := make([]string, len(p.coefficients))
	for i, c := range p.coefficients {
		parts[i] = fmt.Sprintf("c%d=%.6g", i, c)
	}
	return fmt.Sprintf("polynomial degree %d: %s", p.Degree(), strings.Join(parts, " "))
}

// Pack writes the degree and the coefficients keyed by power
func (p *Polynomial) Pack(sec *document.Section) {
	sec.SetString(typeKey, string(KindPolynomial))
	sec.SetInt("degree", p.Degree())
	coef := sec.Child(coefficientSection)
	for i, c := range p.coefficients {
		coef.SetFloat(strconv.Itoa(i), c)
	}
}

func unpackPolynomial(sec *document.Section) (Equation, error) {
	p := NewPolynomial()

	degree, err := sec.GetInt("degree", p.Degree())
	if err != nil {
		return nil, err
	}
	if degree < 0 {
		return nil, &document.DecodeError{Path: sec.Path(), Key: "degree", Err: fmt.Errorf("negative degree %d", degree)}
	}

	coef, ok := sec.Lookup(coefficientSection)
	if !ok {
		return p, nil
	}

	c := make([]float64, degree+1)
	for _, key := range coef.Keys() {
		i, err := strconv.Atoi(key)
		if err != nil || i < 0 || i > degree {
			return nil, &document.DecodeError{Path: coef.Path(), Key: key, Err: fmt.Errorf("no power %q in degree %d", key, degree)}
		}
		if c[i], err = coef.GetFloat(key, 0); err != nil {
			return nil, err
		}
	}
	p.coefficients = c
	return p, nil
}
