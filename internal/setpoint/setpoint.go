package setpoint

import (
	"fmt"
	"time"

	"github.com/phorp/calcrib/internal/config"
	"github.com/phorp/calcrib/internal/document"
	"github.com/phorp/calcrib/internal/stats"
)

const statsSection = "stats"

// Setpoint is a calibration target sampled NumberOfSamples times, one
// sample every SamplePeriod
type Setpoint struct {
	Parameter
	SamplePeriod    time.Duration
	UpdatePeriod    time.Duration
	NumberOfSamples int
	Stats           stats.RunningStats
}

// New creates a setpoint with the sampling defaults of cfg
func New(name, units string, value float64, cfg config.SamplingConfig) *Setpoint {
	return &Setpoint{
		Parameter:       Parameter{Name: name, ScaledUnits: units, ScaledValue: value},
		SamplePeriod:    cfg.SamplePeriod,
		UpdatePeriod:    cfg.UpdatePeriod,
		NumberOfSamples: cfg.NumberOfSamples,
	}
}

// Clone returns an independent copy including the statistics
func (s *Setpoint) Clone() *Setpoint {
	c := *s
	return &c
}

// Mean returns the mean of the last pass
func (s *Setpoint) Mean() float64 {
	return s.Stats.Mean()
}

// Dump returns the target and the statistics of the last pass
func (s *Setpoint) Dump() string {
	return fmt.Sprintf("%s %g %s: %s", s.Name, s.ScaledValue, s.ScaledUnits, s.Stats.Synopsis())
}

// Pack writes the setpoint into sec. Statistics are included once a pass
// has produced samples.
func (s *Setpoint) Pack(sec *document.Section) {
	s.Parameter.Pack(sec)
	sec.SetFloat("sample_period", s.SamplePeriod.Seconds())
	sec.SetFloat("update_period", s.UpdatePeriod.Seconds())
	sec.SetInt("number_of_samples", s.NumberOfSamples)

	if s.Stats.N() > 0 {
		st := sec.Child(statsSection)
		st.SetInt("n", s.Stats.N())
		st.SetFloat("mean", s.Stats.Mean())
		st.SetFloat("variance", s.Stats.Variance())
	}
}

// Unpack reads a setpoint written by Pack. Missing sampling keys take the
// values of defaults.
func Unpack(sec *document.Section, defaults config.SamplingConfig) (*Setpoint, error) {
	s := New("", "", 0, defaults)
	if err := s.Parameter.unpack(sec); err != nil {
		return nil, err
	}

	var err error
	if s.SamplePeriod, err = getSeconds(sec, "sample_period", defaults.SamplePeriod); err != nil {
		return nil, err
	}
	if s.UpdatePeriod, err = getSeconds(sec, "update_period", defaults.UpdatePeriod); err != nil {
		return nil, err
	}
	if s.NumberOfSamples, err = sec.GetInt("number_of_samples", defaults.NumberOfSamples); err != nil {
		return nil, err
	}
	if s.NumberOfSamples < 1 {
		return nil, &document.DecodeError{Path: sec.Path(), Key: "number_of_samples", Err: fmt.Errorf("must be at least 1, got %d", s.NumberOfSamples)}
	}

	if st, ok := sec.Lookup(statsSection); ok {
		n, err := st.GetInt("n", 0)
		if err != nil {
			return nil, err
		}
		if n < 0 || n > s.NumberOfSamples {
			return nil, &document.DecodeError{Path: st.Path(), Key: "n",
				Err: fmt.Errorf("%d samples outside 0..%d", n, s.NumberOfSamples)}
		}
		mean, err := st.GetFloat("mean", 0)
		if err != nil {
			return nil, err
		}
		variance, err := st.GetFloat("variance", 0)
		if err != nil {
			return nil, err
		}
		s.Stats = stats.Restore(n, mean, variance)
	}
	return s, nil
}

func getSeconds(sec *document.Section, key string, def time.Duration) (time.Duration, error) {
	secs, err := sec.GetFloat(key, def.Seconds())
	if err != nil {
		return def, err
	}
	if secs < 0 {
		return def, &document.DecodeError{Path: sec.Path(), Key: key, Err: fmt.Errorf("negative period %g", secs)}
	}
	return time.Duration(secs * float64(time.Second)), nil
}
