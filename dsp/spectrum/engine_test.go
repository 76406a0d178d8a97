package spectrum

import (
	"errors"
	"math"
	"runtime"
	"sync"
	"testing"

	"github.com/cwbudde/algo-fxchain/dsp/core"
	"github.com/cwbudde/algo-fxchain/dsp/window"
	"github.com/cwbudde/algo-fxchain/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testRate  = 48000
	smallSize = 64
	// Bin 4 of a 64-point transform at 48 kHz.
	centeredHz = 4 * testRate / smallSize
)

type recordingSink struct {
	levels []float64
}

func (s *recordingSink) AddSample(db float64) { s.levels = append(s.levels, db) }

func newSmallEngine(t *testing.T, opts ...Option) *Engine {
	t.Helper()

	e, err := NewEngine(append([]Option{WithSize(smallSize), WithSampleRate(testRate)}, opts...)...)
	require.NoError(t, err)

	return e
}

func TestNewEngineValidation(t *testing.T) {
	for _, size := range []int{0, 8, 100, 1000, -16} {
		_, err := NewEngine(WithSize(size))
		assert.ErrorIs(t, err, ErrSize, "size %d", size)
	}

	_, err := NewEngine(WithBackend(Backend(42)))
	assert.ErrorIs(t, err, ErrBackend)
}

func TestEngineDefaults(t *testing.T) {
	e, err := NewEngine()
	require.NoError(t, err)

	assert.Equal(t, DefaultSize, e.Size())
	assert.Equal(t, DefaultSize/2+1, e.Bands())
	assert.Equal(t, BackendAlgoFFT, e.Backend())
	assert.Equal(t, uint32(48000), e.SampleRate())
	assert.InDelta(t, 8192.0/48000.0, e.LatencySeconds(), 1e-12)

	e.SetSampleRate(96000)
	assert.InDelta(t, 8192.0/96000.0, e.LatencySeconds(), 1e-12)

	e.SetSampleRate(0)
	assert.Zero(t, e.LatencySeconds())
}

func TestComputeMagnitudesEmptyBeforeProcess(t *testing.T) {
	e := newSmallEngine(t)

	rate, bands, power := e.ComputeMagnitudes()
	assert.Zero(t, rate)
	assert.Zero(t, bands)
	assert.Nil(t, power)
}

func TestComputeMagnitudesReturnsEachPublicationOnce(t *testing.T) {
	for _, backend := range []Backend{BackendAlgoFFT, BackendGonum} {
		t.Run(backend.String(), func(t *testing.T) {
			e := newSmallEngine(t, WithBackend(backend))

			for i := 1; i <= 10; i++ {
				amp := 0.05 * float64(i)
				sig := testutil.DeterministicSine(centeredHz, testRate, amp, smallSize)
				e.Process(sig, sig)

				rate, bands, power := e.ComputeMagnitudes()
				require.NotNil(t, power, "publication %d", i)
				assert.Equal(t, uint32(testRate), rate)
				assert.Equal(t, smallSize/2+1, bands)
				assert.Len(t, power, bands)
				assert.Equal(t, 4, testutil.ArgMax(power))
				assert.InDelta(t, amp*amp, power[4], 1e-9)
				assert.InDelta(t, 0.25, power[3]/power[4], 1e-9)

				_, _, again := e.ComputeMagnitudes()
				assert.Nil(t, again, "publication %d read twice", i)
			}

			c := e.Counters()
			assert.Equal(t, uint64(10), c.Blocks)
			assert.Equal(t, uint64(10), c.Published)
			assert.Zero(t, c.Dropped)
			assert.Zero(t, c.SincePublish)
		})
	}
}

func TestComputeMagnitudesReturnsLatest(t *testing.T) {
	e := newSmallEngine(t)

	for _, amp := range []float64{0.1, 0.2, 0.7} {
		sig := testutil.DeterministicSine(centeredHz, testRate, amp, smallSize)
		e.Process(sig, sig)
	}

	_, _, power := e.ComputeMagnitudes()
	require.NotNil(t, power)
	assert.InDelta(t, 0.49, power[4], 1e-9)
}

func TestProcessUsesShorterChannel(t *testing.T) {
	e := newSmallEngine(t)
	sink := &recordingSink{}
	e.sink = sink

	e.Process(make([]float64, 10), make([]float64, 7))
	assert.Len(t, sink.levels, 7)

	e.Process(nil, make([]float64, 3))
	assert.Len(t, sink.levels, 7)
	assert.Equal(t, uint64(1), e.Counters().Blocks)
}

func TestSinkReceivesMonoLevels(t *testing.T) {
	sink := &recordingSink{}
	e := newSmallEngine(t, WithSink(sink))

	e.Process([]float64{1, 0.5, 0}, []float64{0, 0.5, 0})

	require.Len(t, sink.levels, 3)
	assert.InDelta(t, 20*math.Log10(0.5), sink.levels[0], 1e-12)
	assert.InDelta(t, 20*math.Log10(0.5), sink.levels[1], 1e-12)
	assert.True(t, math.IsInf(sink.levels[2], -1))
}

func TestWindowNormalisation(t *testing.T) {
	for _, typ := range []window.Type{window.TypeRectangular, window.TypeHann, window.TypeHamming, window.TypeBlackman} {
		t.Run(window.Info(typ).Name, func(t *testing.T) {
			e := newSmallEngine(t, WithWindow(typ))
			assert.Equal(t, typ, e.Window())

			sig := testutil.DeterministicSine(centeredHz, testRate, 0.5, smallSize)
			e.Process(sig, sig)

			_, _, power := e.ComputeMagnitudes()
			require.NotNil(t, power)
			assert.InDelta(t, 0.25, power[4], 1e-9)
		})
	}
}

func TestProcessSanitizesNonFinite(t *testing.T) {
	sink := &recordingSink{}
	e := newSmallEngine(t, WithSink(sink))

	sig := testutil.DeterministicSine(centeredHz, testRate, 0.5, smallSize)
	left := append([]float64(nil), sig...)
	left[10] = math.NaN()
	left[20] = math.Inf(1)
	e.Process(left, sig)

	_, _, power := e.ComputeMagnitudes()
	require.NotNil(t, power)
	testutil.RequireFinite(t, power)
	assert.Equal(t, 4, testutil.ArgMax(power))
	assert.True(t, math.IsInf(sink.levels[10], -1))
}

func TestProcessFramesMatchesProcess(t *testing.T) {
	sig := testutil.DeterministicSine(centeredHz, testRate, 0.5, smallSize)

	a := newSmallEngine(t)
	a.Process(sig, sig)

	b := newSmallEngine(t)
	b.ProcessFrames(func(yield func(float64, float64) bool) {
		for _, v := range sig {
			if !yield(v, v) {
				return
			}
		}
	})

	_, _, pa := a.ComputeMagnitudes()
	_, _, pb := b.ComputeMagnitudes()
	testutil.RequireSliceNearlyEqual(t, pb, pa, 1e-12)
}

func TestBusyControlWordDropsBlock(t *testing.T) {
	e := newSmallEngine(t)
	sig := testutil.DeterministicSine(centeredHz, testRate, 1, smallSize)

	// A writer that never cleared busy.
	e.control.Store(bitBusy | bitNewData)

	e.Process(sig, sig)
	e.Process(sig, sig)

	c := e.Counters()
	assert.Equal(t, uint64(2), c.Blocks)
	assert.Equal(t, uint64(2), c.Dropped)
	assert.Equal(t, uint64(2), c.SincePublish)
	assert.Zero(t, c.Published)

	_, _, power := e.ComputeMagnitudes()
	assert.Nil(t, power)

	e.Reset()
	e.Process(sig, sig)

	_, _, power = e.ComputeMagnitudes()
	require.NotNil(t, power)
	assert.Zero(t, e.Counters().SincePublish)
}

func TestToneSpectrum(t *testing.T) {
	const (
		toneHz   = 1000.0
		block    = 1024
		excluded = 32
	)

	for _, backend := range []Backend{BackendAlgoFFT, BackendGonum} {
		t.Run(backend.String(), func(t *testing.T) {
			e, err := NewEngine(WithSampleRate(testRate), WithBackend(backend))
			require.NoError(t, err)

			sig := testutil.DeterministicSine(toneHz, testRate, 1, 16*block)
			for _, b := range testutil.Blocks(sig, block) {
				e.Process(b, b)
			}

			rate, bands, power := e.ComputeMagnitudes()
			require.NotNil(t, power)
			require.Equal(t, DefaultSize/2+1, bands)

			db := PowerToDB(nil, power, MinimumDB)
			testutil.RequireFinite(t, db)

			peak := testutil.ArgMax(db)
			binHz := float64(rate) / float64(DefaultSize)
			assert.InDelta(t, toneHz, float64(peak)*binHz, binHz)
			assert.InDelta(t, 0, db[peak], 2)

			for k, v := range db {
				if k >= peak-excluded && k <= peak+excluded {
					continue
				}
				if v > MinimumDB+40 {
					t.Fatalf("bin %d (%.1f Hz) = %.1f dB, want <= %.1f", k, float64(k)*binHz, v, MinimumDB+40)
				}
			}
		})
	}
}

func TestConcurrentReaderNeverSeesTornBuffer(t *testing.T) {
	const blocks = 4000

	e := newSmallEngine(t)

	signals := make([][]float64, 8)
	for i := range signals {
		signals[i] = testutil.DeterministicSine(centeredHz, testRate, 0.1*float64(i+1), smallSize)
	}

	var wg sync.WaitGroup
	done := make(chan struct{})

	wg.Add(1)
	go func() {
		defer wg.Done()
		defer close(done)
		for i := range blocks {
			sig := signals[i%len(signals)]
			e.Process(sig, sig)
		}
	}()

	var failures []error
	reads := 0

	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-done:
				return
			default:
			}

			_, _, power := e.ComputeMagnitudes()
			if power == nil {
				runtime.Gosched()
				continue
			}
			reads++

			if ratio := power[3] / power[4]; !core.NearlyEqual(ratio, 0.25, 1e-6) {
				failures = append(failures, errors.New("inconsistent neighbour ratio"))
			}
			if ratio := power[5] / power[4]; !core.NearlyEqual(ratio, 0.25, 1e-6) {
				failures = append(failures, errors.New("inconsistent neighbour ratio"))
			}
		}
	}()

	wg.Wait()

	assert.Empty(t, failures)
	c := e.Counters()
	assert.Equal(t, uint64(blocks), c.Blocks)
	assert.Equal(t, c.Blocks, c.Published+c.Dropped)
	t.Logf("reads=%d published=%d dropped=%d", reads, c.Published, c.Dropped)
}

func BenchmarkProcess(b *testing.B) {
	for _, backend := range []Backend{BackendAlgoFFT, BackendGonum} {
		b.Run(backend.String(), func(b *testing.B) {
			e, err := NewEngine(WithBackend(backend))
			if err != nil {
				b.Fatal(err)
			}

			sig := testutil.DeterministicSine(1000, testRate, 0.5, 1024)
			b.ReportAllocs()
			b.ResetTimer()

			for range b.N {
				e.Process(sig, sig)
			}
		})
	}
}
