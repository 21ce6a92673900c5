package equation

import (
	"fmt"
	"math"

	"github.com/phorp/calcrib/internal/document"
	"github.com/phorp/calcrib/internal/utils"
)

const (
	DefaultBeta      = 3500.0
	DefaultR25       = 10000.0
	DefaultBiasVolts = 1.5
	DefaultBiasOhms  = 10000.0

	t25 = utils.KelvinOffset + 25.0
)

// BetaThermistor converts NTC resistance in ohms to temperature with the
// Beta equation 1/T = 1/T25 + ln(R/R25)/beta. Its parameters are operator
// entered constants, it is never fitted.
type BetaThermistor struct {
	Beta float64
	R25  float64
}

// NewBetaThermistor returns a thermistor with beta 3500 and R25 10 kΩ
func NewBetaThermistor() *BetaThermistor {
	return &BetaThermistor{Beta: DefaultBeta, R25: DefaultR25}
}

func (t *BetaThermistor) sealed() {}

// Kind returns KindNtcBeta
func (t *BetaThermistor) Kind() Kind {
	return KindNtcBeta
}

// ToKelvin returns the temperature for a resistance. A resistance outside
// the domain of the logarithm yields 0.
func (t *BetaThermistor) ToKelvin(ohms float64) float64 {
	if !(ohms > 0) || math.IsInf(ohms, 0) || !(t.R25 > 0) || t.Beta == 0 {
		return 0
	}
	kelvin := 1.0 / (1.0/t25 + math.Log(ohms/t.R25)/t.Beta)
	if !utils.IsFinite(kelvin) {
		return 0
	}
	return kelvin
}

// ToCelsius returns the temperature in °C for a resistance
func (t *BetaThermistor) ToCelsius(ohms float64) float64 {
	return t.ToKelvin(ohms) - utils.KelvinOffset
}

// ToFahrenheit returns the temperature in °F for a resistance
func (t *BetaThermistor) ToFahrenheit(ohms float64) float64 {
	return 9.0/5.0*t.ToCelsius(ohms) + 32
}

// Ohms returns the resistance at a temperature in °C, 0 at or below
// absolute zero
func (t *BetaThermistor) Ohms(celsius float64) float64 {
	kelvin := celsius + utils.KelvinOffset
	if !(kelvin > 0) {
		return 0
	}
	return t.R25 * math.Exp(t.Beta*(1/kelvin-1/t25))
}

// EvaluateX returns the resistance for a temperature in °C
func (t *BetaThermistor) EvaluateX(celsius float64) float64 {
	return t.Ohms(celsius)
}

// EvaluateY returns the temperature in °C for a resistance
func (t *BetaThermistor) EvaluateY(ohms float64) float64 {
	return t.ToCelsius(ohms)
}

// Clone returns an independent copy
func (t *BetaThermistor) Clone() Equation {
	c := *t
	return &c
}

// Synopsis returns beta and R25
func (t *BetaThermistor) Synopsis() string {
	return fmt.Sprintf("ntc beta=%g r25=%g", t.Beta, t.R25)
}

// Pack writes beta and r25
func (t *BetaThermistor) Pack(sec *document.Section) {
	sec.SetString(typeKey, string(KindNtcBeta))
	t.packConstants(sec)
}

func (t *BetaThermistor) packConstants(sec *document.Section) {
	sec.SetFloat("beta", t.Beta)
	sec.SetFloat("r25", t.R25)
}

func (t *BetaThermistor) unpackConstants(sec *document.Section) error {
	var err error
	if t.Beta, err = sec.GetFloat("beta", DefaultBeta); err != nil {
		return err
	}
	if t.R25, err = sec.GetFloat("r25", DefaultR25); err != nil {
		return err
	}
	return nil
}

func unpackBetaThermistor(sec *document.Section) (Equation, error) {
	t := NewBetaThermistor()
	if err := t.unpackConstants(sec); err != nil {
		return nil, err
	}
	return t, nil
}

// PhorpThermistor reads the thermistor as the lower leg of a divider fed
// from BiasVolts through BiasOhms. Raw values are divider millivolts.
type PhorpThermistor struct {
	BetaThermistor
	BiasVolts float64
	BiasOhms  float64
}

// NewPhorpThermistor returns a thermistor behind the default 1.5 V, 10 kΩ bias
func NewPhorpThermistor() *PhorpThermistor {
	return &PhorpThermistor{
		BetaThermistor: *NewBetaThermistor(),
		BiasVolts:      DefaultBiasVolts,
		BiasOhms:       DefaultBiasOhms,
	}
}

// Kind returns KindPhorpNtcBeta
func (t *PhorpThermistor) Kind() Kind {
	return KindPhorpNtcBeta
}

// DividerOhms returns the thermistor resistance for a divider reading
func (t *PhorpThermistor) DividerOhms(millivolts float64) float64 {
	volts := millivolts / 1000
	amps := (t.BiasVolts - volts) / t.BiasOhms
	return volts / amps
}

// DividerMillivolts returns the divider reading for a thermistor resistance
func (t *PhorpThermistor) DividerMillivolts(ohms float64) float64 {
	return 1000 * t.BiasVolts * ohms / (ohms + t.BiasOhms)
}

// EvaluateX returns the divider millivolts at a temperature in °C
func (t *PhorpThermistor) EvaluateX(celsius float64) float64 {
	return t.DividerMillivolts(t.Ohms(celsius))
}

// EvaluateY returns the temperature in °C for a divider reading
func (t *PhorpThermistor) EvaluateY(millivolts float64) float64 {
	return t.ToCelsius(t.DividerOhms(millivolts))
}

// Clone returns an independent copy
func (t *PhorpThermistor) Clone() Equation {
	c := *t
	return &c
}

// Synopsis returns the thermistor constants and the bias network
func (t *PhorpThermistor) Synopsis() string {
	return fmt.Sprintf("phorp ntc beta=%g r25=%g bias=%gV/%gΩ", t.Beta, t.R25, t.BiasVolts, t.BiasOhms)
}

// Pack writes the thermistor constants and the bias network
func (t *PhorpThermistor) Pack(sec *document.Section) {
	sec.SetString(typeKey, string(KindPhorpNtcBeta))
	t.packConstants(sec)
	sec.SetFloat("bias_volts", t.BiasVolts)
	sec.SetFloat("bias_ohms", t.BiasOhms)
}

func unpackPhorpThermistor(sec *document.Section) (Equation, error) {
	t := NewPhorpThermistor()
	if err := t.unpackConstants(sec); err != nil {
		return nil, err
	}
	var err error
	if t.BiasVolts, err = sec.GetFloat("bias_volts", DefaultBiasVolts); err != nil {
		return nil, err
	}
	if t.BiasOhms, err = sec.GetFloat("bias_ohms", DefaultBiasOhms); err != nil {
		return nil, err
	}
	return t, nil
}
