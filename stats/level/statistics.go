package level

import (
	"errors"
	"fmt"
	"math"
	"sync/atomic"

	"github.com/cwbudde/algo-fxchain/dsp/core"
	"gonum.org/v1/gonum/stat"
)

const (
	// FloorDB is the lowest level tracked; NaN and anything quieter maps here.
	FloorDB = -120.0
	// CeilDB is the highest level tracked.
	CeilDB = 0.0

	DefaultWindowSize = 8192
	DefaultBins       = 100
)

var (
	// ErrWindowSize is returned for a non-positive moving-window size.
	ErrWindowSize = errors.New("level: window size must be > 0")
	// ErrBins is returned for a non-positive histogram bin count.
	ErrBins = errors.New("level: histogram bin count must be > 0")
)

// ring is the circular sample buffer. cursor belongs to the writer; count is
// shared with readers.
type ring struct {
	samples []atomic.Uint64
	cursor  int
	count   atomic.Int64
}

func newRing(size int) *ring {
	return &ring{samples: make([]atomic.Uint64, size)}
}

// values copies the valid portion of the buffer.
func (r *ring) values() []float64 {
	n := int(r.count.Load())
	out := make([]float64, n)

	for i := range out {
		out[i] = math.Float64frombits(r.samples[i].Load())
	}

	return out
}

type histogram struct {
	bins  []atomic.Uint64
	width float64
}

func newHistogram(bins int) *histogram {
	return &histogram{
		bins:  make([]atomic.Uint64, bins),
		width: (CeilDB - FloorDB) / float64(bins),
	}
}

// index maps a sanitised level to its bin. CeilDB falls into the last bin.
func (h *histogram) index(db float64) int {
	i := int((db - FloorDB) / h.width)
	if i < 0 {
		return 0
	}

	if i >= len(h.bins) {
		return len(h.bins) - 1
	}

	return i
}

// Statistics is a moving window of dB samples with a level histogram.
type Statistics struct {
	ring atomic.Pointer[ring]
	hist atomic.Pointer[histogram]
}

// New creates statistics over the last windowSize samples with bins uniform
// histogram bins spanning [FloorDB, CeilDB].
func New(windowSize, bins int) (*Statistics, error) {
	if windowSize <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrWindowSize, windowSize)
	}

	if bins <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrBins, bins)
	}

	s := &Statistics{}
	s.ring.Store(newRing(windowSize))
	s.hist.Store(newHistogram(bins))

	return s, nil
}

// AddSample records one level in dB. NaN is treated as silence and values are
// clamped to [FloorDB, CeilDB]. Once the window is full the oldest sample is
// overwritten.
func (s *Statistics) AddSample(db float64) {
	db = core.SanitizeDB(db, FloorDB, CeilDB)

	r := s.ring.Load()
	r.samples[r.cursor].Store(math.Float64bits(db))

	r.cursor++
	if r.cursor == len(r.samples) {
		r.cursor = 0
	}

	if r.count.Load() < int64(len(r.samples)) {
		r.count.Add(1)
	}

	h := s.hist.Load()
	h.bins[h.index(db)].Add(1)
}

// Count returns the number of valid samples in the window.
func (s *Statistics) Count() int {
	return int(s.ring.Load().count.Load())
}

// WindowSize returns the moving-window capacity.
func (s *Statistics) WindowSize() int {
	return len(s.ring.Load().samples)
}

// HistogramBins returns the current histogram bin count.
func (s *Statistics) HistogramBins() int {
	return len(s.hist.Load().bins)
}

// Mean returns the mean level in dB over the valid samples, or 0 when empty.
func (s *Statistics) Mean() float64 {
	return mean(s.ring.Load().values())
}

// Kurtosis returns the excess kurtosis of the valid samples after converting
// them back to linear amplitude. Fewer than four samples, or a window with no
// spread, yield 0.
func (s *Statistics) Kurtosis() float64 {
	return kurtosis(s.ring.Load().values())
}

// HistogramData returns the histogram normalised by its tallest bin. An empty
// histogram yields all zeros.
func (s *Statistics) HistogramData() []float64 {
	h := s.hist.Load()
	out := make([]float64, len(h.bins))

	var peak uint64

	for i := range h.bins {
		c := h.bins[i].Load()
		out[i] = float64(c)

		if c > peak {
			peak = c
		}
	}

	if peak == 0 {
		return out
	}

	scale := 1 / float64(peak)
	for i := range out {
		out[i] *= scale
	}

	return out
}

// UpdateHistogramBins replaces the histogram with bins uniform bins and resets
// all accumulated state. The moving window keeps its size.
func (s *Statistics) UpdateHistogramBins(bins int) error {
	if bins <= 0 {
		return fmt.Errorf("%w: %d", ErrBins, bins)
	}

	s.ring.Store(newRing(s.WindowSize()))
	s.hist.Store(newHistogram(bins))

	return nil
}

// Resize changes the moving-window size and resets all accumulated state.
func (s *Statistics) Resize(windowSize int) error {
	if windowSize <= 0 {
		return fmt.Errorf("%w: %d", ErrWindowSize, windowSize)
	}

	s.ring.Store(newRing(windowSize))
	s.hist.Store(newHistogram(s.HistogramBins()))

	return nil
}

// Reset clears the histogram, the window, its cursor and the valid count.
func (s *Statistics) Reset() {
	s.ring.Store(newRing(s.WindowSize()))
	s.hist.Store(newHistogram(s.HistogramBins()))
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}

	return stat.Mean(values, nil)
}

// kurtosis follows gsl_stats_kurtosis_m_sd: the fourth standardised moment
// with the sample standard deviation, minus 3.
func kurtosis(db []float64) float64 {
	if len(db) < 4 {
		return 0
	}

	linear := make([]float64, len(db))
	for i, v := range db {
		linear[i] = core.DBToLinear(v)
	}

	m, sd := stat.MeanStdDev(linear, nil)
	if sd == 0 || math.IsNaN(sd) {
		return 0
	}

	avg := 0.0
	for i, x := range linear {
		z := (x - m) / sd
		avg += (z*z*z*z - avg) / float64(i+1)
	}

	return avg - 3
}
