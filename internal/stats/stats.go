// Package stats provides the online accumulator used while a calibration
// setpoint is being sampled.
package stats

import (
	"fmt"
	"math"
)

// RunningStats accumulates mean and variance of a sample run using Welford's
// online update. The zero value is an empty accumulator ready for use.
type RunningStats struct {
	n    int
	mean float64
	m2   float64 // sum of squared differences from the current mean
}

// Clear resets the accumulator to empty.
func (s *RunningStats) Clear() {
	s.n = 0
	s.mean = 0
	s.m2 = 0
}

// Push incorporates one sample.
func (s *RunningStats) Push(x float64) {
	s.n++
	delta := x - s.mean
	s.mean += delta / float64(s.n)
	s.m2 += delta * (x - s.mean)
}

// N returns the number of samples pushed since the last Clear.
func (s *RunningStats) N() int {
	return s.n
}

// Mean returns the sample mean, or 0 when empty.
func (s *RunningStats) Mean() float64 {
	if s.n == 0 {
		return 0
	}
	return s.mean
}

// Variance returns the unbiased sample variance, or 0 when fewer than two
// samples have been pushed.
func (s *RunningStats) Variance() float64 {
	if s.n < 2 {
		return 0
	}
	v := s.m2 / float64(s.n-1)
	if v < 0 {
		return 0
	}
	return v
}

// StandardDeviation returns the square root of Variance.
func (s *RunningStats) StandardDeviation() float64 {
	return math.Sqrt(s.Variance())
}

// Restore rebuilds the accumulator from a persisted summary. It is the
// inverse of reading N, Mean and Variance.
func Restore(n int, mean, variance float64) RunningStats {
	if n <= 0 {
		return RunningStats{}
	}
	s := RunningStats{n: n, mean: mean}
	if n > 1 && variance > 0 {
		s.m2 = variance * float64(n-1)
	}
	return s
}

// Synopsis formats the accumulator for operator display.
func (s *RunningStats) Synopsis() string {
	return fmt.Sprintf("n=%d, mean=%.4f, var=%.6f, sd=%.6f",
		s.N(), s.Mean(), s.Variance(), s.StandardDeviation())
}
