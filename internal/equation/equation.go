// Package equation implements the calibration function family. Every
// equation relates a scaled engineering value x to a raw instrument value y:
// EvaluateX maps x to y and EvaluateY maps a raw reading y back to x.
package equation

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/phorp/calcrib/internal/document"
)

// ErrUnknownKind is returned when a persisted equation carries an
// unregistered type tag
var ErrUnknownKind = errors.New("unknown equation kind")

// Kind is the serialization tag of an equation variant
type Kind string

const (
	KindPolynomial   Kind = "polynomial"
	KindNtcBeta      Kind = "ntc_beta"
	KindPhorpNtcBeta Kind = "phorp_ntc_beta"
)

const (
	typeKey            = "type"
	coefficientSection = "coefficients"
)

// Equation is the closed set of calibration functions. Implementations live
// in this package only.
type Equation interface {
	// Kind returns the serialization tag
	Kind() Kind
	// EvaluateX returns the raw value y for a scaled value x
	EvaluateX(x float64) float64
	// EvaluateY returns the scaled value x for a raw value y
	EvaluateY(y float64) float64
	// Pack writes the parameters into sec, including the type tag
	Pack(sec *document.Section)
	// Clone returns an independent copy
	Clone() Equation
	// Synopsis returns a one line description of the parameters
	Synopsis() string

	sealed()
}

// Fitter is implemented by equations that can fit themselves from two
// (x, y) pairs. Generate reports false when the fit was degenerate.
type Fitter interface {
	Equation
	Generate(x1, y1, x2, y2 float64) bool
}

type unpacker func(sec *document.Section) (Equation, error)

type variant struct {
	create func() Equation
	unpack unpacker
}

var registry = map[Kind]variant{
	KindPolynomial: {
		create: func() Equation { return NewPolynomial() },
		unpack: unpackPolynomial,
	},
	KindNtcBeta: {
		create: func() Equation { return NewBetaThermistor() },
		unpack: unpackBetaThermistor,
	},
	KindPhorpNtcBeta: {
		create: func() Equation { return NewPhorpThermistor() },
		unpack: unpackPhorpThermistor,
	},
}

// New returns an equation of the given kind with default parameters
func New(kind Kind) (Equation, error) {
	v, ok := registry[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %q (known: %s)", ErrUnknownKind, kind, knownKinds())
	}
	return v.create(), nil
}

// Unpack reconstructs the equation stored in sec from its type tag
func Unpack(sec *document.Section) (Equation, error) {
	kind := Kind(sec.GetString(typeKey, ""))
	v, ok := registry[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %q at %s (known: %s)", ErrUnknownKind, kind, sec.Path(), knownKinds())
	}
	return v.unpack(sec)
}

func knownKinds() string {
	kinds := Kinds()
	names := make([]string, len(kinds))
	for i, k := range kinds {
		names[i] = string(k)
	}
	return strings.Join(names, ", ")
}

// Kinds returns the registered type tags in sorted order
func Kinds() []Kind {
	kinds := make([]Kind, 0, len(registry))
	for k := range registry {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}
