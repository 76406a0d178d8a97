package testutil

import (
	"math"
	"math/rand"
)

// DeterministicSine generates a deterministic sine wave.
func DeterministicSine(freqHz, sampleRate, amplitude float64, length int) []float64 {
	out := make([]float64, length)
	step := 2 * math.Pi * freqHz / sampleRate
	for i := range out {
		out[i] = amplitude * math.Sin(step*float64(i))
	}
	return out
}

// DeterministicNoise generates white noise with a fixed seed for reproducibility.
func DeterministicNoise(seed int64, amplitude float64, length int) []float64 {
	out := make([]float64, length)
	rng := rand.New(rand.NewSource(seed))
	for i := range out {
		out[i] = (rng.Float64()*2 - 1) * amplitude
	}
	return out
}

// DC generates a constant-valued signal.
func DC(value float64, length int) []float64 {
	out := make([]float64, length)
	for i := range out {
		out[i] = value
	}
	return out
}

// Blocks splits signal into consecutive blocks of size n. A trailing partial
// block is kept.
func Blocks(signal []float64, n int) [][]float64 {
	if n <= 0 {
		return nil
	}

	out := make([][]float64, 0, (len(signal)+n-1)/n)
	for start := 0; start < len(signal); start += n {
		end := min(start+n, len(signal))
		out = append(out, signal[start:end])
	}

	return out
}
