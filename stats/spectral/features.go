// Package spectral derives shape descriptors from a one-sided power
// spectrum as published by the spectrum engine.
//
// The power slice covers bins 0 (DC) to Nyquist, so an FFT of size N yields
// N/2+1 values and bin i sits at
//
//	f_i = i * sampleRate / (2 * (len(power) - 1))
package spectral

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// DefaultRolloff is the energy fraction used by [Describe].
const DefaultRolloff = 0.85

// Features describes the shape of a power spectrum.
type Features struct {
	Bins int
	// PeakHz and PeakDB locate the loudest bin.
	PeakHz float64
	PeakDB float64
	// Centroid and Spread are the power-weighted mean and standard
	// deviation of frequency.
	Centroid float64
	Spread   float64
	Flatness float64 // 0..1, DC excluded
	Rolloff  float64 // Hz below which DefaultRolloff of the energy lies
}

// BinHz returns the width of one bin.
func BinHz(sampleRate uint32, bins int) float64 {
	if bins < 2 {
		return 0
	}
	return float64(sampleRate) / float64(2*(bins-1))
}

// Describe computes all features. A spectrum with fewer than two bins or
// without energy yields zero features and a -Inf peak.
func Describe(sampleRate uint32, power []float64) Features {
	f := Features{Bins: len(power), PeakDB: math.Inf(-1)}
	if len(power) < 2 {
		return f
	}

	total := floats.Sum(power)
	if total <= 0 {
		return f
	}

	step := BinHz(sampleRate, len(power))
	peak := floats.MaxIdx(power)
	f.PeakHz = float64(peak) * step
	f.PeakDB = 10 * math.Log10(power[peak])

	freqs := make([]float64, len(power))
	floats.Span(freqs, 0, float64(len(power)-1)*step)
	mean, variance := stat.PopMeanVariance(freqs, power)
	f.Centroid = mean
	f.Spread = math.Sqrt(variance)

	f.Flatness = Flatness(power)
	f.Rolloff = rolloff(power, step, DefaultRolloff, total)

	return f
}

// Flatness returns the ratio of the geometric to the arithmetic mean of the
// bins above DC. Any silent bin makes it zero.
func Flatness(power []float64) float64 {
	if len(power) < 2 {
		return 0
	}
	bins := power[1:]

	mean := floats.Sum(bins) / float64(len(bins))
	if mean == 0 {
		return 0
	}

	sumLog := 0.0
	for _, v := range bins {
		if v <= 0 {
			return 0
		}
		sumLog += math.Log(v)
	}
	return math.Exp(sumLog/float64(len(bins))) / mean
}

// Rolloff returns the frequency below which fraction (0..1) of the spectral
// energy lies.
func Rolloff(sampleRate uint32, power []float64, fraction float64) float64 {
	if len(power) < 2 {
		return 0
	}
	total := floats.Sum(power)
	if total <= 0 {
		return 0
	}
	return rolloff(power, BinHz(sampleRate, len(power)), fraction, total)
}

func rolloff(power []float64, step, fraction, total float64) float64 {
	threshold := fraction * total
	cum := 0.0
	for i, v := range power {
		cum += v
		if cum >= threshold {
			return float64(i) * step
		}
	}
	return float64(len(power)-1) * step
}
