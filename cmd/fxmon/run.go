package main

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/cwbudde/algo-fxchain/dsp/core"
	"github.com/cwbudde/algo-fxchain/dsp/effectchain"
	"github.com/cwbudde/algo-fxchain/dsp/spectrum"
	"github.com/cwbudde/algo-fxchain/dsp/window"
	"github.com/cwbudde/algo-fxchain/internal/settings"
	"github.com/cwbudde/algo-fxchain/pipeline"
	"github.com/cwbudde/algo-fxchain/stats/spectral"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/floats"
)

const reportInterval = 500 * time.Millisecond

func run(cli *CLI) error {
	logger := logrus.New()
	lvl, err := logrus.ParseLevel(cli.LogLevel)
	if err != nil {
		return err
	}
	logger.SetLevel(lvl)

	values := settings.Default()
	if cli.Config != "" {
		if values, err = settings.Load(cli.Config); err != nil {
			return err
		}
	}
	if cli.Chain != "" {
		values.SelectedPlugins = effectchain.ParseChain(cli.Chain)
	}

	backend, err := spectrum.ParseBackend(cli.Backend)
	if err != nil {
		return err
	}
	win, err := window.Parse(cli.Window)
	if err != nil {
		return err
	}

	stream := core.ApplyStreamOptions(core.WithSampleRate(cli.SampleRate), core.WithBlockSize(cli.BlockSize))
	sim := newStudio(values.InputDevice)

	cfg := pipeline.DefaultConfig().FromSettings(values)
	cfg.SampleRate = stream.SampleRate
	cfg.FFTSize = cli.FFTSize
	cfg.Backend = backend
	cfg.Window = win
	cfg.Endpoints = sim.ep

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())

	p, err := pipeline.New(sim.graph, sim.plugins, cfg, pipeline.WithLogger(logger), pipeline.WithRegisterer(reg))
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if cli.Duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cli.Duration)
		defer cancel()
	}

	var wg sync.WaitGroup
	spawn := func(fn func()) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			fn()
		}()
	}

	spawn(func() {
		if err := p.Run(ctx); err != nil {
			logger.WithError(err).Error("Pipeline stopped")
		}
	})
	spawn(func() { forwardTopology(ctx, sim.graph.Events(), p) })

	if cli.Config != "" {
		spawn(func() {
			err := settings.Watch(ctx, cli.Config, values, func(changes []settings.Change, _ settings.Values) {
				for _, c := range changes {
					if err := p.Post(ctx, pipeline.SettingChanged{Key: c.Key, Value: c.Value}); err != nil {
						return
					}
				}
			}, settings.WithLogger(logger))
			if err != nil {
				logger.WithError(err).Warn("Settings are not watched")
			}
		})
	}

	if cli.MetricsAddr != "" {
		srv := &http.Server{
			Addr:              cli.MetricsAddr,
			Handler:           promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
			ReadHeaderTimeout: 5 * time.Second,
		}
		spawn(func() { serveMetrics(ctx, srv, logger) })
	}

	if err := p.Post(ctx, pipeline.Attach{Device: values.InputDevice}); err != nil {
		return err
	}
	if err := sim.play(); err != nil {
		return err
	}
	if err := p.Flush(ctx); err != nil {
		return err
	}
	path, err := sim.signalPath()
	if err != nil {
		return err
	}

	logger.WithFields(logrus.Fields{
		"function":    "run",
		"path":        strings.Join(path, " -> "),
		"tone_hz":     cli.Tone,
		"block":       stream.BlockSize,
		"sample_rate": stream.SampleRate,
		"latency_s":   p.LatencySeconds(),
	}).Info("Monitoring")

	spawn(func() { produce(ctx, p, stream, cli.Tone) })
	consume(ctx, p, logger)

	wg.Wait()

	return nil
}

func forwardTopology(ctx context.Context, events <-chan effectchain.TopologyEvent, p *pipeline.Pipeline) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-events:
			if err := p.Post(ctx, pipeline.Topology{TopologyEvent: ev}); err != nil {
				return
			}
		}
	}
}

func serveMetrics(ctx context.Context, srv *http.Server, logger logrus.FieldLogger) {
	go func() {
		<-ctx.Done()
		shutdown, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdown)
	}()

	logger.WithField("addr", srv.Addr).Info("Serving metrics")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.WithError(err).Error("Metrics server failed")
	}
}

// produce feeds sine blocks paced at the stream rate, standing in for the
// real-time audio callback.
func produce(ctx context.Context, p *pipeline.Pipeline, stream core.StreamConfig, toneHz float64) {
	period := time.Duration(stream.BlockSeconds() * float64(time.Second))
	ticker := time.NewTicker(period)
	defer ticker.Stop()

	// One second of an integer-Hz tone wraps without a phase jump.
	rate := int(stream.SampleRate)
	tone := renderTone(toneHz, rate, 0.5, rate+stream.BlockSize)
	pos := 0

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			block := tone[pos : pos+stream.BlockSize]
			p.Process(block, block)
			pos = (pos + stream.BlockSize) % rate
		}
	}
}

// consume polls the pipeline like a display would.
func consume(ctx context.Context, p *pipeline.Pipeline, logger logrus.FieldLogger) {
	ticker := time.NewTicker(reportInterval)
	defer ticker.Stop()

	curve := spectrum.NewCurve(p.Axis())

	for {
		select {
		case <-ctx.Done():
			return
		case bins := <-p.HistogramBinsChanged():
			logger.WithField("bins", bins).Info("Histogram resized")
		case <-ticker.C:
			curve.SetAxis(p.Axis())
			rate, bands, power := p.ComputeMagnitudes()
			levels, ok := curve.Update(rate, bands, power)
			if !ok {
				continue
			}
			shape := spectral.Describe(rate, power)

			freq, db := peak(curve.Axis().Frequencies(), levels)
			snap := p.Statistics()
			logger.WithFields(logrus.Fields{
				"peak_hz":  fmt.Sprintf("%.0f", freq),
				"peak_db":  fmt.Sprintf("%.1f", db),
				"centroid": fmt.Sprintf("%.0f", shape.Centroid),
				"flatness": fmt.Sprintf("%.3f", shape.Flatness),
				"rolloff":  fmt.Sprintf("%.0f", shape.Rolloff),
				"mean_db":  fmt.Sprintf("%.1f", snap.Mean),
				"kurtosis": fmt.Sprintf("%.2f", snap.Kurtosis),
				"router":   p.RouterState().String(),
				"playing":  p.Playing(),
			}).Info("Spectrum")
		}
	}
}

// peak returns the frequency and level of the loudest point.
func peak(freqs, levels []float64) (float64, float64) {
	if len(levels) == 0 || len(levels) != len(freqs) {
		return math.NaN(), math.Inf(-1)
	}
	idx := floats.MaxIdx(levels)
	return freqs[idx], levels[idx]
}

func renderTone(freqHz float64, rate int, amplitude float64, length int) []float64 {
	out := make([]float64, length)
	step := 2 * math.Pi * freqHz / float64(rate)
	for i := range out {
		out[i] = amplitude * math.Sin(step*float64(i))
	}
	return out
}
