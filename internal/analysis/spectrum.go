package analysis

import (
	"math"
	"math/cmplx"

	"github.com/mjibson/go-dsp/fft"
	"github.com/mjibson/go-dsp/spectral"
	"github.com/mjibson/go-dsp/window"

	"github.com/san-kum/synchro/internal/field"
	"github.com/san-kum/synchro/internal/sim"
)

// Peak search band for frequency analysis, Hz.
const (
	FrequencyMin = 0.1
	FrequencyMax = 2.0
)

type Spectrum struct {
	Frequencies []float64
	Power       []float64
}

// Peak returns the frequency with maximum power inside [lo, hi], or 0 if no
// bin falls in the band.
func (s Spectrum) Peak(lo, hi float64) float64 {
	best, peak := -1.0, 0.0
	for i, f := range s.Frequencies {
		if f < lo || f > hi {
			continue
		}
		if s.Power[i] > best {
			best, peak = s.Power[i], f
		}
	}
	return peak
}

// Welch estimates the power spectral density of a mean-removed series.
func Welch(series []float64, sampleRate float64) Spectrum {
	if len(series) < 8 {
		return Spectrum{}
	}
	centered := Demean(series)

	nfft := 256
	for nfft > len(centered)/4 && nfft > 8 {
		nfft /= 2
	}
	p, freqs := spectral.Pwelch(centered, sampleRate, &spectral.PwelchOptions{
		NFFT:     nfft,
		Noverlap: nfft / 2,
		Window:   window.Hann,
	})
	return Spectrum{Frequencies: freqs, Power: p}
}

// PowerSpectrum is the one-sided magnitude spectrum of a single FFT.
func PowerSpectrum(series []float64, sampleRate float64) Spectrum {
	n := len(series)
	if n == 0 {
		return Spectrum{}
	}
	coeffs := fft.FFTReal(Demean(series))
	half := n / 2
	s := Spectrum{
		Frequencies: make([]float64, half),
		Power:       make([]float64, half),
	}
	for i := 0; i < half; i++ {
		s.Frequencies[i] = float64(i) * sampleRate / float64(n)
		s.Power[i] = cmplx.Abs(coeffs[i])
	}
	return s
}

type FrequencyReport struct {
	Times             []float64
	Density           []float64
	Spectrum          Spectrum
	PeakFrequency     float64
	ExpectedFrequency float64
}

// FrequencyAnalysis samples density at (x, y) for duration seconds at
// sampleRate Hz and locates the spectral peak. By Taylor's frozen
// turbulence hypothesis the expected dominant frequency is V/λ.
func FrequencyAnalysis(f *field.Field, x, y, duration, sampleRate float64) FrequencyReport {
	n := int(duration * sampleRate)
	rep := FrequencyReport{
		Times:   make([]float64, n),
		Density: make([]float64, n),
	}
	for i := 0; i < n; i++ {
		t := float64(i) / sampleRate
		rep.Times[i] = t
		rep.Density[i] = f.Sample(x, y, t)
	}

	cfg := f.Config()
	rep.Spectrum = Welch(rep.Density, sampleRate)
	rep.PeakFrequency = rep.Spectrum.Peak(FrequencyMin, FrequencyMax)
	rep.ExpectedFrequency = math.Abs(cfg.DriftVelocity) / cfg.Wavelength
	return rep
}

// SpeedErrorSpectrum is the Welch spectrum of RPM_main − RPM_follower over
// the recorded samples, which must be evenly spaced.
func SpeedErrorSpectrum(samples []sim.Sample) Spectrum {
	if len(samples) < 2 {
		return Spectrum{}
	}
	dt := samples[1].Time - samples[0].Time
	if dt <= 0 {
		return Spectrum{}
	}
	series := make([]float64, len(samples))
	for i, s := range samples {
		series[i] = s.SpeedErrorRPM
	}
	return Welch(series, 1/dt)
}

func Demean(series []float64) []float64 {
	if len(series) == 0 {
		return nil
	}
	mean := 0.0
	for _, v := range series {
		mean += v
	}
	mean /= float64(len(series))
	out := make([]float64, len(series))
	for i, v := range series {
		out[i] = v - mean
	}
	return out
}
