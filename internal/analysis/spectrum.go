// Package analysis extracts vibration characteristics from sampled
// signals such as the tip height of a cable.
package analysis

import (
	"errors"
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

var (
	ErrTooShort       = errors.New("analysis: signal too short")
	ErrFlat           = errors.New("analysis: signal has no oscillation")
	ErrNotOscillating = errors.New("analysis: fewer than two peaks")
)

// Spectrum returns the one-sided power spectrum of samples taken every dt
// seconds, with the mean removed. freqs are in Hz.
func Spectrum(samples []float64, dt float64) (freqs, power []float64, err error) {
	n := len(samples)
	if n < 4 || !(dt > 0) {
		return nil, nil, ErrTooShort
	}

	centered := make([]float64, n)
	copy(centered, samples)
	floats.AddConst(-stat.Mean(samples, nil), centered)

	fft := fourier.NewFFT(n)
	coeff := fft.Coefficients(nil, centered)

	freqs = make([]float64, len(coeff))
	power = make([]float64, len(coeff))
	for i, c := range coeff {
		freqs[i] = fft.Freq(i) / dt
		a := cmplx.Abs(c)
		power[i] = a * a
	}
	return freqs, power, nil
}

// DominantFrequency returns the frequency in Hz of the strongest non-zero
// spectral line.
func DominantFrequency(samples []float64, dt float64) (float64, error) {
	freqs, power, err := Spectrum(samples, dt)
	if err != nil {
		return 0, err
	}
	i := floats.MaxIdx(power[1:]) + 1
	if power[i] <= 1e-30*float64(len(samples)) {
		return 0, ErrFlat
	}
	return freqs[i], nil
}

// DampingRatio estimates the damping ratio of a free decay about zero
// from the logarithmic decrement between successive positive peaks.
func DampingRatio(samples []float64) (float64, error) {
	var peaks []float64
	for i := 1; i+1 < len(samples); i++ {
		if samples[i] > 0 && samples[i] > samples[i-1] && samples[i] >= samples[i+1] {
			peaks = append(peaks, samples[i])
		}
	}
	if len(peaks) < 2 {
		return 0, ErrNotOscillating
	}

	decrements := make([]float64, len(peaks)-1)
	for k := range decrements {
		decrements[k] = math.Log(peaks[k] / peaks[k+1])
	}
	delta := stat.Mean(decrements, nil)
	return delta / math.Sqrt(4*math.Pi*math.Pi+delta*delta), nil
}
