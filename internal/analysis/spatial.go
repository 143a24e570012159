package analysis

import (
	"math"

	"github.com/mjibson/go-dsp/fft"

	"github.com/san-kum/synchro/internal/field"
)

// Autocorrelation returns the normalized autocorrelation of the mean-removed
// series for lags 0..n-1 (lag 0 is 1). It is computed through a zero-padded
// FFT, so it is the linear (not circular) autocorrelation.
func Autocorrelation(series []float64) []float64 {
	n := len(series)
	if n == 0 {
		return nil
	}
	size := 1
	for size < 2*n {
		size <<= 1
	}

	padded := make([]float64, size)
	copy(padded, Demean(series))

	spec := fft.FFTReal(padded)
	for i, c := range spec {
		spec[i] = complex(real(c)*real(c)+imag(c)*imag(c), 0)
	}
	raw := fft.IFFT(spec)

	out := make([]float64, n)
	zero := real(raw[0])
	if zero == 0 {
		return out
	}
	for i := range out {
		out[i] = real(raw[i]) / zero
	}
	return out
}

// FirstZeroCrossing returns the index i of the first sign change between
// ac[i] and ac[i+1], or -1.
func FirstZeroCrossing(ac []float64) int {
	for i := 0; i+1 < len(ac); i++ {
		if sign(ac[i]) != sign(ac[i+1]) {
			return i
		}
	}
	return -1
}

func sign(v float64) int {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	}
	return 0
}

// CorrelationLength is the lag, in the units of dx, of the first zero
// crossing of the autocorrelation, or NaN if there is none.
func CorrelationLength(series []float64, dx float64) float64 {
	i := FirstZeroCrossing(Autocorrelation(series))
	if i < 0 {
		return math.NaN()
	}
	return float64(i) * dx
}

type SpatialReport struct {
	field.GridStats
	Range float64
	// EstimatedWavelength is NaN when the autocorrelation never crosses 0.
	EstimatedWavelength float64
}

// SpatialAnalysis summarizes a grid from Field.SampleGrid and estimates the
// dominant wavelength from the middle row.
func SpatialAnalysis(grid [][]float64, xs, ys []float64) SpatialReport {
	rep := SpatialReport{GridStats: field.Stats(grid), EstimatedWavelength: math.NaN()}
	rep.Range = rep.Max - rep.Min
	if len(grid) == 0 || len(ys) == 0 {
		return rep
	}

	dx := 1.0
	if len(xs) > 1 {
		dx = xs[1] - xs[0]
	}
	rep.EstimatedWavelength = CorrelationLength(grid[len(ys)/2], dx)
	return rep
}

// TransectCorrelationLength samples n points along x at spacing dx on the
// line y, time t, and returns their correlation length in metres.
func TransectCorrelationLength(f *field.Field, y, t, dx float64, n int) float64 {
	series := make([]float64, n)
	for i := range series {
		series[i] = f.Sample(float64(i)*dx, y, t)
	}
	return CorrelationLength(series, dx)
}
