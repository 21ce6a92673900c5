package stream

import (
	"context"
	"math/rand/v2"
)

type channelKey struct {
	bus     uint8
	channel int
}

// SimulatedADC returns configured levels plus gaussian noise. It stands in
// for a bench without hardware.
type SimulatedADC struct {
	levels  map[channelKey]float64
	noise   float64
	rng     *rand.Rand
	convert int
}

// NewSimulatedADC creates a simulated converter with noise standard
// deviation noiseMV and a deterministic seed
func NewSimulatedADC(noiseMV float64, seed uint64) *SimulatedADC {
	return &SimulatedADC{
		levels: make(map[channelKey]float64),
		noise:  noiseMV / 1000,
		rng:    rand.New(rand.NewPCG(seed, seed)),
	}
}

// SetLevel sets the voltage presented on an address
func (a *SimulatedADC) SetLevel(addr Address, volts float64) {
	a.levels[channelKey{addr.BusAddress(), addr.ADCChannel()}] = volts
}

// Conversions returns the number of conversions performed
func (a *SimulatedADC) Conversions() int {
	return a.convert
}

// Convert returns the level of the channel with noise added
func (a *SimulatedADC) Convert(ctx context.Context, busAddr uint8, channel int) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	a.convert++
	return a.levels[channelKey{busAddr, channel}] + a.rng.NormFloat64()*a.noise, nil
}
