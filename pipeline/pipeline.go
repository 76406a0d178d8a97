// Package pipeline is the composition root tying the filter-chain router,
// the spectrum engine and the level statistics together.
//
// Configuration and topology changes are delivered as Events and applied one
// at a time on the goroutine running Run. Audio enters through Process on the
// real-time goroutine; consumers poll ComputeMagnitudes and Statistics.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync/atomic"
	"time"

	"github.com/cwbudde/algo-fxchain/dsp/effectchain"
	"github.com/cwbudde/algo-fxchain/dsp/spectrum"
	"github.com/cwbudde/algo-fxchain/dsp/window"
	"github.com/cwbudde/algo-fxchain/stats/level"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
)

// ErrClosed is returned by Post and Flush once Run has returned.
var ErrClosed = errors.New("pipeline: closed")

// Pipeline owns one router, one spectrum engine and one statistics instance.
type Pipeline struct {
	cfg      Config
	log      logrus.FieldLogger
	reg      prometheus.Registerer
	fallback bool

	graph   effectchain.Graph
	plugins *effectchain.Registry
	router  *effectchain.Router
	engine  *spectrum.Engine
	stats   *level.Statistics
	metrics *metrics

	events      chan Event
	done        chan struct{}
	binsChanged chan int

	enabled atomic.Bool
	playing atomic.Bool
	axis    atomic.Pointer[spectrum.Axis]
	active  atomic.Pointer[string]

	// Owned by the Run goroutine.
	attached   bool
	chain      []string
	deviceName string
	useDefault bool
	bypass     bool
	axisMin    float64
	axisMax    float64
	axisPoints int
	stalled    bool
}

// New builds a pipeline on g. Plugins named in chains are resolved through
// plugins.
func New(g effectchain.Graph, plugins *effectchain.Registry, cfg Config, opts ...Option) (*Pipeline, error) {
	cfg = cfg.withDefaults()

	p := &Pipeline{
		cfg:         cfg,
		log:         logrus.StandardLogger(),
		fallback:    true,
		graph:       g,
		plugins:     plugins,
		events:      make(chan Event, cfg.QueueSize),
		done:        make(chan struct{}),
		binsChanged: make(chan int, 1),
		chain:       slices.Clone(cfg.Chain),
		deviceName:  cfg.Device,
		useDefault:  cfg.UseDefaultDevice,
		bypass:      cfg.Bypass,
		axisMin:     cfg.MinimumFrequency,
		axisMax:     cfg.MaximumFrequency,
		axisPoints:  cfg.Points,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(p)
		}
	}

	stats, err := level.New(cfg.WindowSize, cfg.HistogramBins)
	if err != nil {
		return nil, fmt.Errorf("pipeline: %w", err)
	}

	engine, err := spectrum.NewEngine(
		spectrum.WithSize(cfg.FFTSize),
		spectrum.WithSampleRate(cfg.SampleRate),
		spectrum.WithBackend(cfg.Backend),
		spectrum.WithWindow(cfg.Window),
		spectrum.WithSink(stats),
	)
	if err != nil {
		return nil, fmt.Errorf("pipeline: %w", err)
	}

	axis, err := spectrum.NewAxis(cfg.MinimumFrequency, cfg.MaximumFrequency, cfg.Points)
	if err != nil {
		return nil, fmt.Errorf("pipeline: %w", err)
	}

	p.stats = stats
	p.engine = engine
	p.axis.Store(axis)
	p.enabled.Store(cfg.Show)
	p.router = effectchain.NewRouter(g, plugins, cfg.Endpoints, effectchain.WithLogger(p.log))
	p.metrics = newMetrics(p.reg, p)

	p.log.WithFields(logrus.Fields{
		"function":    "New",
		"fft_size":    engine.Size(),
		"backend":     engine.Backend().String(),
		"window":      window.Info(engine.Window()).Name,
		"sample_rate": engine.SampleRate(),
		"latency_s":   engine.LatencySeconds(),
	}).Info("Pipeline created")

	return p, nil
}

// Run applies events until ctx is done, then tears the wiring down.
func (p *Pipeline) Run(ctx context.Context) error {
	defer close(p.done)

	ticker := time.NewTicker(p.cfg.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			destroyed := p.router.Teardown()
			p.log.WithFields(logrus.Fields{
				"function":  "Run",
				"destroyed": destroyed,
			}).Info("Pipeline stopped")
			return nil
		case ev := <-p.events:
			p.handle(ev)
		case <-ticker.C:
			p.watch()
		}
	}
}

// Post queues ev for the Run goroutine.
func (p *Pipeline) Post(ctx context.Context, ev Event) error {
	if ev == nil {
		return nil
	}

	select {
	case p.events <- ev:
		return nil
	case <-p.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Flush waits until every event posted before it has been applied.
func (p *Pipeline) Flush(ctx context.Context) error {
	f := flush{done: make(chan struct{})}
	if err := p.Post(ctx, f); err != nil {
		return err
	}

	select {
	case <-f.done:
		return nil
	case <-p.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Process feeds one stereo block. It runs on the real-time goroutine and
// does nothing while no consumer is attached.
func (p *Pipeline) Process(left, right []float64) {
	if p.enabled.Load() {
		p.engine.Process(left, right)
	}
}

// SetSampleRate updates the stream sample rate.
func (p *Pipeline) SetSampleRate(hz uint32) { p.engine.SetSampleRate(hz) }

// ComputeMagnitudes returns the latest spectrum publication, see
// spectrum.Engine.ComputeMagnitudes.
func (p *Pipeline) ComputeMagnitudes() (uint32, int, []float64) {
	return p.engine.ComputeMagnitudes()
}

// Statistics returns a snapshot of the level statistics.
func (p *Pipeline) Statistics() level.Snapshot { return p.stats.Snapshot() }

// Axis returns the current display axis.
func (p *Pipeline) Axis() *spectrum.Axis { return p.axis.Load() }

// HistogramBinsChanged delivers the new bin count after each change. Only
// the most recent value is kept.
func (p *Pipeline) HistogramBinsChanged() <-chan int { return p.binsChanged }

// LatencySeconds returns the spectrum latency.
func (p *Pipeline) LatencySeconds() float64 { return p.engine.LatencySeconds() }

// RouterState returns the router wiring state.
func (p *Pipeline) RouterState() effectchain.State { return p.router.State() }

// Router exposes the router for inspection.
func (p *Pipeline) Router() *effectchain.Router { return p.router }

// Engine exposes the spectrum engine for inspection.
func (p *Pipeline) Engine() *spectrum.Engine { return p.engine }

// InputDevice returns the name of the device currently wired, or "" while
// unwired.
func (p *Pipeline) InputDevice() string {
	if p.router.State() != effectchain.StateWired {
		return ""
	}
	if name := p.active.Load(); name != nil {
		return *name
	}
	return ""
}

// Playing reports whether any stream is actively consuming the output.
func (p *Pipeline) Playing() bool { return p.playing.Load() }

// Enabled reports whether spectrum processing is on.
func (p *Pipeline) Enabled() bool { return p.enabled.Load() }
