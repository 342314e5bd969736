// Package stats provides streaming summary statistics for fitness signals.
package stats

import "math"

// Moments accumulates count, mean and variance of a stream of values in a
// single pass using Welford's algorithm. The zero value is ready to use.
type Moments struct {
	n    int
	mean float64
	m2   float64
	min  float64
	max  float64
}

// Add feeds one value into the accumulator.
func (m *Moments) Add(x float64) {
	if m.n == 0 {
		m.min = x
		m.max = x
	} else {
		m.min = math.Min(m.min, x)
		m.max = math.Max(m.max, x)
	}

	m.n++
	delta := x - m.mean
	m.mean += delta / float64(m.n)
	m.m2 += delta * (x - m.mean)
}

// Count returns the number of values seen so far.
func (m *Moments) Count() int {
	return m.n
}

// Mean returns the arithmetic mean of the values seen so far, or 0 if no
// values have been added.
func (m *Moments) Mean() float64 {
	if m.n == 0 {
		return 0
	}
	return m.mean
}

// Variance returns the sample variance of the values seen so far. Fewer than
// two values yield 0; a degenerate stream carries no dispersion signal.
func (m *Moments) Variance() float64 {
	if m.n < 2 {
		return 0
	}
	return m.m2 / float64(m.n-1)
}

// StdDev returns the sample standard deviation.
func (m *Moments) StdDev() float64 {
	return math.Sqrt(m.Variance())
}

// Min returns the smallest value seen so far, or 0 if no values have been
// added.
func (m *Moments) Min() float64 {
	if m.n == 0 {
		return 0
	}
	return m.min
}

// Max returns the largest value seen so far, or 0 if no values have been
// added.
func (m *Moments) Max() float64 {
	if m.n == 0 {
		return 0
	}
	return m.max
}

// Of accumulates all given values into a fresh Moments.
func Of(values ...float64) Moments {
	var m Moments
	for _, v := range values {
		m.Add(v)
	}
	return m
}
