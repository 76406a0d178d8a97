package spectrum

import (
	"errors"
	"fmt"
	"math"

	"github.com/cwbudde/algo-fxchain/dsp/core"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/interp"
)

// MinimumDB is the display floor for power levels.
const MinimumDB = -120.0

// minSpanHz is the narrowest accepted axis span.
const minSpanHz = 100.0

// ErrAxis is returned for unusable display axis parameters.
var ErrAxis = errors.New("spectrum: invalid axis")

// PowerToDB converts linear power to decibels, mapping zero, negative and
// NaN inputs to floor. dst is reused when large enough.
func PowerToDB(dst, src []float64, floor float64) []float64 {
	dst = core.EnsureLen(dst, len(src))
	for i, p := range src {
		dst[i] = core.SanitizeDB(core.LinearPowerToDB(p), floor, math.Inf(1))
	}
	return dst
}

// Axis is a logarithmically spaced frequency axis.
type Axis struct {
	minHz float64
	maxHz float64
	freqs []float64
}

// NewAxis builds an axis of points frequencies from minHz to maxHz.
// A minimum closer than 100 Hz to the maximum is lowered to maxHz-100.
func NewAxis(minHz, maxHz float64, points int) (*Axis, error) {
	if points < 2 {
		return nil, fmt.Errorf("%w: need at least 2 points, got %d", ErrAxis, points)
	}
	if minHz > maxHz-minSpanHz {
		minHz = maxHz - minSpanHz
	}
	if minHz <= 0 || math.IsNaN(minHz) || math.IsNaN(maxHz) {
		return nil, fmt.Errorf("%w: range [%g, %g] Hz", ErrAxis, minHz, maxHz)
	}

	freqs := floats.LogSpan(make([]float64, points), minHz, maxHz)

	return &Axis{minHz: minHz, maxHz: maxHz, freqs: freqs}, nil
}

// Min returns the lowest frequency in Hz.
func (a *Axis) Min() float64 { return a.minHz }

// Max returns the highest frequency in Hz.
func (a *Axis) Max() float64 { return a.maxHz }

// Len returns the number of points.
func (a *Axis) Len() int { return len(a.freqs) }

// Frequencies returns the axis points. The slice must not be modified.
func (a *Axis) Frequencies() []float64 { return a.freqs }

// Curve resamples published spectra onto an [Axis] in decibels.
// A Curve is owned by a single consumer goroutine.
type Curve struct {
	axis  *Axis
	rate  uint32
	bands int
	binHz []float64
	fit   interp.FritschButland
	out   []float64
}

// NewCurve returns a curve rendering onto axis.
func NewCurve(axis *Axis) *Curve {
	return &Curve{axis: axis}
}

// Axis returns the current display axis.
func (c *Curve) Axis() *Axis { return c.axis }

// SetAxis replaces the display axis.
func (c *Curve) SetAxis(axis *Axis) { c.axis = axis }

// Update interpolates power (as returned by Engine.ComputeMagnitudes) onto
// the axis and converts it to dB, clamped at MinimumDB. Frequencies above
// Nyquist read the Nyquist bin. It reports false for the empty sentinel and
// for unusable input.
func (c *Curve) Update(rate uint32, bands int, power []float64) ([]float64, bool) {
	if c.axis == nil || rate == 0 || bands < 3 || len(power) < bands {
		return nil, false
	}

	if rate != c.rate || bands != c.bands {
		c.binHz = core.EnsureLen(c.binHz, bands)
		step := 0.5 * float64(rate) / float64(bands-1)
		for k := range c.binHz {
			c.binHz[k] = step * float64(k)
		}
		c.rate = rate
		c.bands = bands
	}

	if err := c.fit.Fit(c.binHz, power[:bands]); err != nil {
		return nil, false
	}

	nyquist := c.binHz[bands-1]
	c.out = core.EnsureLen(c.out, c.axis.Len())
	for i, f := range c.axis.freqs {
		c.out[i] = c.fit.Predict(min(f, nyquist))
	}

	return PowerToDB(c.out, c.out, MinimumDB), true
}
