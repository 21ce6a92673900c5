package procedure

import (
	"fmt"
	"io"
	"math"

	"github.com/phorp/calcrib/internal/calibration"
	"github.com/phorp/calcrib/internal/equation"
	"github.com/phorp/calcrib/internal/utils"
)

// NernstSlope is the ideal pH electrode response at 25 °C, mV per pH
const NernstSlope = utils.NernstSlopeMV

// neutralPH is where an ideal electrode reads 0 mV
const neutralPH = 7.0

// PHReport describes a pH calibration in electrode terms
type PHReport struct {
	Slope      float64 // mV per pH
	Offset     float64 // mV at pH 7
	Efficiency float64 // percent of NernstSlope
}

// PHQuality derives the electrode report from a linear calibration
func PHQuality(cal *calibration.Calibration) (PHReport, error) {
	poly, ok := cal.Equation.(*equation.Polynomial)
	if !ok {
		return PHReport{}, fmt.Errorf("%w: pH quality needs a polynomial equation", ErrNotFittable)
	}
	slope := poly.Slope()
	return PHReport{
		Slope:      slope,
		Offset:     poly.EvaluateX(neutralPH),
		Efficiency: math.Abs(slope) / NernstSlope * 100,
	}, nil
}

// Write prints the report for the operator
func (r PHReport) Write(w io.Writer) {
	fmt.Fprintf(w, "  slope:      %.2f mV/pH\n", r.Slope)
	fmt.Fprintf(w, "  offset:     %.2f mV at pH 7\n", r.Offset)
	fmt.Fprintf(w, "  efficiency: %.1f %%\n", r.Efficiency)
}
