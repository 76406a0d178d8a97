package level

import (
	"errors"
	"math"
	"sync"
	"testing"

	"github.com/cwbudde/algo-fxchain/internal/testutil"
)

const tolerance = 1e-9

func newStats(t *testing.T, window, bins int) *Statistics {
	t.Helper()

	s, err := New(window, bins)
	if err != nil {
		t.Fatalf("New(%d, %d) error = %v", window, bins, err)
	}

	return s
}

// levels maps deterministic noise onto the tracked dB range.
func levels(seed int64, n int) []float64 {
	noise := testutil.DeterministicNoise(seed, 1, n)
	out := make([]float64, n)
	for i, v := range noise {
		out[i] = -60 + 60*v
	}
	return out
}

func TestNewValidation(t *testing.T) {
	if _, err := New(0, 10); !errors.Is(err, ErrWindowSize) {
		t.Fatalf("New(0, 10) error = %v, want ErrWindowSize", err)
	}

	if _, err := New(10, -1); !errors.Is(err, ErrBins) {
		t.Fatalf("New(10, -1) error = %v, want ErrBins", err)
	}
}

func TestEmptyStatistics(t *testing.T) {
	s := newStats(t, 16, 8)

	if got := s.Mean(); got != 0 {
		t.Errorf("Mean: got %g, want 0", got)
	}

	if got := s.Kurtosis(); got != 0 {
		t.Errorf("Kurtosis: got %g, want 0", got)
	}

	for i, v := range s.HistogramData() {
		if v != 0 {
			t.Fatalf("HistogramData[%d]: got %g, want 0", i, v)
		}
	}
}

func TestAddSampleSanitises(t *testing.T) {
	s := newStats(t, 4, 12)

	s.AddSample(math.NaN())
	s.AddSample(math.Inf(-1))
	s.AddSample(-500)

	if got := s.Mean(); got != FloorDB {
		t.Fatalf("Mean after floor samples: got %g, want %g", got, FloorDB)
	}

	s.Reset()
	s.AddSample(12)

	if got := s.Mean(); got != CeilDB {
		t.Fatalf("Mean after loud sample: got %g, want %g", got, CeilDB)
	}

	hist := s.HistogramData()
	if hist[len(hist)-1] != 1 {
		t.Fatalf("ceiling level must land in the last bin, got %v", hist)
	}
}

func TestCountSaturatesAtWindow(t *testing.T) {
	const window = 32

	s := newStats(t, window, 10)
	for i, v := range levels(7, 3*window) {
		s.AddSample(v)

		want := min(i+1, window)
		if got := s.Count(); got != want {
			t.Fatalf("after %d samples Count: got %d, want %d", i+1, got, want)
		}
	}
}

func TestMeanOfLastWindow(t *testing.T) {
	for _, window := range []int{1, 5, 64, 100} {
		for _, extra := range []int{0, 1, 37, 250} {
			s := newStats(t, window, 20)
			samples := levels(int64(window*1000+extra), window+extra)

			for _, v := range samples {
				s.AddSample(v)
			}

			tail := samples[len(samples)-window:]
			want := 0.0
			for _, v := range tail {
				want += v
			}
			want /= float64(window)

			if got := s.Mean(); math.Abs(got-want) > tolerance {
				t.Errorf("window=%d extra=%d Mean: got %g, want %g", window, extra, got, want)
			}
		}
	}
}

func TestPartialWindowMean(t *testing.T) {
	s := newStats(t, 10, 10)
	for _, v := range []float64{-10, -20, -30} {
		s.AddSample(v)
	}

	if got := s.Mean(); math.Abs(got+20) > tolerance {
		t.Fatalf("Mean: got %g, want -20", got)
	}
}

func TestKurtosisNeedsFourSamples(t *testing.T) {
	s := newStats(t, 10, 10)
	for _, v := range []float64{-10, -20, -30} {
		s.AddSample(v)
	}

	if got := s.Kurtosis(); got != 0 {
		t.Fatalf("Kurtosis with 3 samples: got %g, want 0", got)
	}
}

func TestKurtosisConstantSignal(t *testing.T) {
	s := newStats(t, 10, 10)
	for range 10 {
		s.AddSample(-6)
	}

	if got := s.Kurtosis(); got != 0 {
		t.Fatalf("Kurtosis of constant window: got %g, want 0", got)
	}
}

func TestKurtosisUniformAmplitude(t *testing.T) {
	const n = 20000

	s := newStats(t, n, 50)
	for i := range n {
		amp := float64(i+1) / n
		s.AddSample(20 * math.Log10(amp))
	}

	// A uniform distribution has excess kurtosis -1.2.
	if got := s.Kurtosis(); math.Abs(got+1.2) > 0.01 {
		t.Fatalf("Kurtosis: got %g, want about -1.2", got)
	}
}

func TestKurtosisMatchesReference(t *testing.T) {
	samples := []float64{-3, -6, -12, -1, -40, -20, -9}

	s := newStats(t, len(samples), 10)
	for _, v := range samples {
		s.AddSample(v)
	}

	lin := make([]float64, len(samples))
	m := 0.0
	for i, v := range samples {
		lin[i] = math.Pow(10, v/20)
		m += lin[i]
	}
	m /= float64(len(lin))

	ss := 0.0
	for _, x := range lin {
		ss += (x - m) * (x - m)
	}
	sd := math.Sqrt(ss / float64(len(lin)-1))

	k := 0.0
	for _, x := range lin {
		z := (x - m) / sd
		k += z * z * z * z
	}
	want := k/float64(len(lin)) - 3

	if got := s.Kurtosis(); math.Abs(got-want) > tolerance {
		t.Fatalf("Kurtosis: got %g, want %g", got, want)
	}
}

func TestHistogramNormalised(t *testing.T) {
	s := newStats(t, 64, 24)

	for i, v := range levels(3, 500) {
		s.AddSample(v)

		hist := s.HistogramData()
		peak := 0.0
		for j, h := range hist {
			if h < 0 || h > 1 {
				t.Fatalf("sample %d: bin %d out of range: %g", i, j, h)
			}
			peak = math.Max(peak, h)
		}

		if peak != 1 {
			t.Fatalf("sample %d: tallest bin = %g, want 1", i, peak)
		}
	}
}

func TestHistogramBinPlacement(t *testing.T) {
	s := newStats(t, 8, 4) // 30 dB per bin

	s.AddSample(-119)
	s.AddSample(-100)
	s.AddSample(-45)

	want := []float64{1, 0, 0.5, 0}
	testutil.RequireSliceNearlyEqual(t, s.HistogramData(), want, tolerance)
}

func TestUpdateHistogramBinsResets(t *testing.T) {
	s := newStats(t, 16, 10)
	for _, v := range levels(11, 40) {
		s.AddSample(v)
	}

	if err := s.UpdateHistogramBins(30); err != nil {
		t.Fatalf("UpdateHistogramBins error = %v", err)
	}

	if got := s.HistogramBins(); got != 30 {
		t.Fatalf("HistogramBins: got %d, want 30", got)
	}

	if got := s.WindowSize(); got != 16 {
		t.Fatalf("WindowSize: got %d, want 16", got)
	}

	if got := s.Count(); got != 0 {
		t.Fatalf("Count after bin change: got %d, want 0", got)
	}

	if err := s.UpdateHistogramBins(0); !errors.Is(err, ErrBins) {
		t.Fatalf("UpdateHistogramBins(0) error = %v", err)
	}
}

func TestResize(t *testing.T) {
	s := newStats(t, 16, 10)
	for _, v := range levels(5, 40) {
		s.AddSample(v)
	}

	if err := s.Resize(4); err != nil {
		t.Fatalf("Resize error = %v", err)
	}

	if s.WindowSize() != 4 || s.Count() != 0 || s.HistogramBins() != 10 {
		t.Fatalf("after Resize: window=%d count=%d bins=%d", s.WindowSize(), s.Count(), s.HistogramBins())
	}

	for _, v := range []float64{-1, -2, -3, -4, -5, -6} {
		s.AddSample(v)
	}

	if got := s.Mean(); math.Abs(got+4.5) > tolerance {
		t.Fatalf("Mean after wrap: got %g, want -4.5", got)
	}

	if err := s.Resize(-2); !errors.Is(err, ErrWindowSize) {
		t.Fatalf("Resize(-2) error = %v", err)
	}
}

func TestSnapshot(t *testing.T) {
	s := newStats(t, 8, 6)
	for _, v := range []float64{-10, -20, -30, -40} {
		s.AddSample(v)
	}

	snap := s.Snapshot()
	if snap.Count != 4 || snap.WindowSize != 8 || len(snap.Histogram) != 6 {
		t.Fatalf("Snapshot: %+v", snap)
	}

	if math.Abs(snap.Mean+25) > tolerance {
		t.Fatalf("Snapshot.Mean: got %g, want -25", snap.Mean)
	}

	if math.Abs(snap.Kurtosis-s.Kurtosis()) > tolerance {
		t.Fatalf("Snapshot.Kurtosis: got %g, want %g", snap.Kurtosis, s.Kurtosis())
	}
}

func TestConcurrentWriterAndReader(t *testing.T) {
	s := newStats(t, 256, 32)
	samples := levels(99, 20000)

	var wg sync.WaitGroup
	wg.Add(1)

	go func() {
		defer wg.Done()
		for _, v := range samples {
			s.AddSample(v)
		}
	}()

	for range 200 {
		snap := s.Snapshot()
		if snap.Count > snap.WindowSize {
			t.Fatalf("Count %d exceeds window %d", snap.Count, snap.WindowSize)
		}
		if snap.Mean < FloorDB || snap.Mean > CeilDB {
			t.Fatalf("Mean %g out of range", snap.Mean)
		}
	}

	wg.Wait()

	if got := s.Count(); got != 256 {
		t.Fatalf("Count: got %d, want 256", got)
	}
}
