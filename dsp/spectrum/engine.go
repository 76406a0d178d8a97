package spectrum

import (
	"fmt"
	"iter"
	"sync/atomic"

	"github.com/cwbudde/algo-fxchain/dsp/core"
	"github.com/cwbudde/algo-fxchain/dsp/window"
	vecmath "github.com/cwbudde/algo-vecmath"
)

// Control word layout. bitIndex names the buffer the writer fills next.
const (
	bitIndex   int32 = 1 << 0
	bitNewData int32 = 1 << 1
	bitBusy    int32 = 1 << 2
)

// Counters is a snapshot of writer-side bookkeeping.
type Counters struct {
	// Blocks is the number of non-empty Process calls.
	Blocks uint64
	// Published is the number of blocks that reached a buffer.
	Published uint64
	// Dropped is the number of blocks discarded because the buffer was busy.
	Dropped uint64
	// SincePublish is the number of consecutive blocks since the last
	// successful publication.
	SincePublish uint64
}

// Engine is a single-writer single-reader spectrum analyzer.
type Engine struct {
	size  int
	bands int
	kind  window.Type
	back  Backend
	sink  Sink
	rate  atomic.Uint32
	win   []float64
	scale float64

	// Writer state.
	history  []float64
	pos      int
	windowed []float64
	re, im   []float64
	fft      transform

	buffers [2][]float64
	rates   [2]uint32
	control atomic.Int32

	blocks       atomic.Uint64
	published    atomic.Uint64
	dropped      atomic.Uint64
	sincePublish atomic.Uint64
}

// NewEngine allocates every buffer the real-time path needs.
func NewEngine(opts ...Option) (*Engine, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	fft, err := newTransform(cfg.Backend, cfg.Size)
	if err != nil {
		return nil, err
	}

	n := cfg.Size
	bands := n/2 + 1
	win := window.Generate(cfg.Window, n, window.WithPeriodic())

	// A full-scale sine splits into two bins of amplitude N*gain/2.
	gain, err := window.CoherentGain(win)
	if err != nil {
		return nil, fmt.Errorf("spectrum: %w", err)
	}
	sum := gain * float64(n)

	e := &Engine{
		size:     n,
		bands:    bands,
		kind:     cfg.Window,
		back:     cfg.Backend,
		sink:     cfg.Sink,
		win:      win,
		scale:    4 / (sum * sum),
		history:  make([]float64, n),
		windowed: make([]float64, n),
		re:       make([]float64, bands),
		im:       make([]float64, bands),
		fft:      fft,
	}
	e.buffers[0] = make([]float64, bands)
	e.buffers[1] = make([]float64, bands)
	e.rate.Store(cfg.SampleRate)

	return e, nil
}

// Size returns the transform length N.
func (e *Engine) Size() int { return e.size }

// Bands returns the number of published bins, N/2+1.
func (e *Engine) Bands() int { return e.bands }

// Backend returns the FFT backend in use.
func (e *Engine) Backend() Backend { return e.back }

// Window returns the analysis window type.
func (e *Engine) Window() window.Type { return e.kind }

// SampleRate returns the current sample rate in Hz.
func (e *Engine) SampleRate() uint32 { return e.rate.Load() }

// SetSampleRate updates the rate tagged onto subsequent publications.
// Safe to call from any goroutine.
func (e *Engine) SetSampleRate(hz uint32) { e.rate.Store(hz) }

// LatencySeconds returns the span of the analysis window, N / rate.
func (e *Engine) LatencySeconds() float64 {
	rate := e.rate.Load()
	if rate == 0 {
		return 0
	}
	return float64(e.size) / float64(rate)
}

// Process consumes one stereo block. Only min(len(left), len(right)) frames
// are read and non-finite samples count as silence. Must be called from a single goroutine; it does not allocate.
func (e *Engine) Process(left, right []float64) {
	n := min(len(left), len(right))
	if n == 0 {
		return
	}

	for i := range n {
		e.push(0.5 * (left[i] + right[i]))
	}

	e.publish()
}

// ProcessFrames consumes one block of (left, right) frames. It follows the
// same rules as Process.
func (e *Engine) ProcessFrames(frames iter.Seq2[float64, float64]) {
	pushed := false
	for l, r := range frames {
		e.push(0.5 * (l + r))
		pushed = true
	}

	if pushed {
		e.publish()
	}
}

func (e *Engine) push(mono float64) {
	mono = core.SanitizeSample(mono)
	e.history[e.pos] = mono
	e.pos = (e.pos + 1) & (e.size - 1)

	if e.sink != nil {
		e.sink.AddSample(core.LinearToDB(mono))
	}
}

func (e *Engine) publish() {
	e.blocks.Add(1)

	// Unroll the ring oldest-first while applying the window.
	tail := e.size - e.pos
	if err := window.ApplyInto(e.windowed[:tail], e.history[e.pos:], e.win[:tail]); err != nil {
		e.drop()
		return
	}
	if e.pos > 0 {
		if err := window.ApplyInto(e.windowed[tail:], e.history[:e.pos], e.win[tail:]); err != nil {
			e.drop()
			return
		}
	}

	if err := e.fft.forward(e.re, e.im, e.windowed); err != nil {
		e.drop()
		return
	}

	prev := e.control.Or(bitBusy)
	if prev&bitBusy != 0 {
		e.drop()
		return
	}

	idx := prev & bitIndex
	buf := e.buffers[idx]
	vecmath.Power(buf, e.re, e.im)
	vecmath.ScaleBlock(buf, buf, e.scale)
	e.rates[idx] = e.rate.Load()

	e.control.Store(bitNewData | idx)
	e.published.Add(1)
	e.sincePublish.Store(0)
}

func (e *Engine) drop() {
	e.dropped.Add(1)
	e.sincePublish.Add(1)
}

// ComputeMagnitudes returns the most recent publication as
// (rate, bands, power). When nothing new was published since the previous
// call, or the writer currently holds the buffer, it returns (0, 0, nil).
//
// The returned slice stays valid until the next call. Must be called from a
// single consumer goroutine.
func (e *Engine) ComputeMagnitudes() (uint32, int, []float64) {
	cur := e.control.Load()
	if cur&bitNewData == 0 || cur&bitBusy != 0 {
		return 0, 0, nil
	}

	next := (cur &^ bitNewData) ^ bitIndex
	if !e.control.CompareAndSwap(cur, next) {
		return 0, 0, nil
	}

	idx := cur & bitIndex
	return e.rates[idx], e.bands, e.buffers[idx]
}

// Counters returns the writer bookkeeping.
func (e *Engine) Counters() Counters {
	return Counters{
		Blocks:       e.blocks.Load(),
		Published:    e.published.Load(),
		Dropped:      e.dropped.Load(),
		SincePublish: e.sincePublish.Load(),
	}
}

// Reset clears the history, both buffers and the control word.
// The caller must ensure neither Process nor ComputeMagnitudes runs
// concurrently.
func (e *Engine) Reset() {
	core.Fill(e.history, 0)
	core.Fill(e.buffers[0], 0)
	core.Fill(e.buffers[1], 0)
	e.pos = 0
	e.rates = [2]uint32{}
	e.control.Store(0)
	e.sincePublish.Store(0)
}
