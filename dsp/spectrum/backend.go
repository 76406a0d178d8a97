package spectrum

import (
	"fmt"
	"strings"

	algofft "github.com/MeKo-Christian/algo-fft"
	"gonum.org/v1/gonum/dsp/fourier"
)

// Backend selects the FFT implementation behind an [Engine].
type Backend int

const (
	// BackendAlgoFFT uses a precomputed complex plan from algo-fft.
	BackendAlgoFFT Backend = iota
	// BackendGonum uses gonum's real FFT.
	BackendGonum
)

var backendNames = map[Backend]string{
	BackendAlgoFFT: "algofft",
	BackendGonum:   "gonum",
}

func (b Backend) String() string {
	if name, ok := backendNames[b]; ok {
		return name
	}
	return fmt.Sprintf("Backend(%d)", int(b))
}

// ParseBackend resolves a backend by name. An empty name selects
// [BackendAlgoFFT].
func ParseBackend(name string) (Backend, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" {
		return BackendAlgoFFT, nil
	}
	for b, n := range backendNames {
		if n == key {
			return b, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrBackend, name)
}

// transform computes the first len(re) bins of the DFT of in.
// Implementations preallocate everything at construction.
type transform interface {
	forward(re, im, in []float64) error
}

func newTransform(b Backend, n int) (transform, error) {
	switch b {
	case BackendAlgoFFT:
		plan, err := algofft.NewPlan64(n)
		if err != nil {
			return nil, fmt.Errorf("spectrum: algofft plan: %w", err)
		}
		return &algofftTransform{
			plan: plan,
			in:   make([]complex128, n),
			out:  make([]complex128, n),
		}, nil
	case BackendGonum:
		return &gonumTransform{
			fft:    fourier.NewFFT(n),
			coeffs: make([]complex128, n/2+1),
		}, nil
	default:
		return nil, fmt.Errorf("%w: %v", ErrBackend, b)
	}
}

type algofftTransform struct {
	plan *algofft.Plan[complex128]
	in   []complex128
	out  []complex128
}

func (t *algofftTransform) forward(re, im, in []float64) error {
	for i, v := range in {
		t.in[i] = complex(v, 0)
	}
	if err := t.plan.Forward(t.out, t.in); err != nil {
		return err
	}
	for k := range re {
		re[k] = real(t.out[k])
		im[k] = imag(t.out[k])
	}
	return nil
}

type gonumTransform struct {
	fft    *fourier.FFT
	coeffs []complex128
}

func (t *gonumTransform) forward(re, im, in []float64) error {
	t.fft.Coefficients(t.coeffs, in)
	for k := range re {
		re[k] = real(t.coeffs[k])
		im[k] = imag(t.coeffs[k])
	}
	return nil
}
