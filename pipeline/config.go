package pipeline

import (
	"time"

	"github.com/cwbudde/algo-fxchain/dsp/core"
	"github.com/cwbudde/algo-fxchain/dsp/effectchain"
	"github.com/cwbudde/algo-fxchain/dsp/spectrum"
	"github.com/cwbudde/algo-fxchain/dsp/window"
	"github.com/cwbudde/algo-fxchain/internal/settings"
	"github.com/cwbudde/algo-fxchain/stats/level"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
)

// Defaults for Config fields left zero.
const (
	DefaultQueueSize    = 32
	DefaultStallBlocks  = 8
	DefaultTickInterval = 250 * time.Millisecond
)

// Config holds construction parameters.
type Config struct {
	SampleRate uint32
	FFTSize    int
	Backend    spectrum.Backend
	Window     window.Type

	WindowSize    int
	HistogramBins int

	MinimumFrequency float64
	MaximumFrequency float64
	Points           int

	// Endpoints are the tap, meter and output nodes every wiring ends in.
	Endpoints effectchain.Endpoints

	// Chain, Device and Bypass seed the desired wiring applied on Attach.
	Chain  []string
	Device string
	Bypass bool
	// UseDefaultDevice ignores Device and wires the default device.
	UseDefaultDevice bool
	// Show enables spectrum processing from the start.
	Show bool

	QueueSize    int
	StallBlocks  uint64
	TickInterval time.Duration
}

// DefaultConfig returns a configuration matching settings.Default.
func DefaultConfig() Config {
	s := settings.Default()

	return Config{
		SampleRate:       core.DefaultStreamConfig().SampleRate,
		FFTSize:          spectrum.DefaultSize,
		Backend:          spectrum.BackendAlgoFFT,
		Window:           window.TypeHann,
		WindowSize:       level.DefaultWindowSize,
		HistogramBins:    level.DefaultBins,
		MinimumFrequency: s.MinimumFrequency,
		MaximumFrequency: s.MaximumFrequency,
		Points:           s.NPoints,
		Show:             s.Show,
		QueueSize:        DefaultQueueSize,
		StallBlocks:      DefaultStallBlocks,
		TickInterval:     DefaultTickInterval,
	}
}

// FromSettings copies the persisted values into cfg.
func (cfg Config) FromSettings(v settings.Values) Config {
	cfg.Chain = v.SelectedPlugins
	cfg.Device = v.InputDevice
	cfg.UseDefaultDevice = v.UseDefaultDevice
	cfg.Bypass = v.Bypass
	cfg.MinimumFrequency = v.MinimumFrequency
	cfg.MaximumFrequency = v.MaximumFrequency
	cfg.Points = v.NPoints
	cfg.HistogramBins = v.HistogramBins
	cfg.WindowSize = v.WindowSize
	cfg.Show = v.Show
	return cfg
}

func (cfg Config) withDefaults() Config {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = DefaultQueueSize
	}
	if cfg.StallBlocks == 0 {
		cfg.StallBlocks = DefaultStallBlocks
	}
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = DefaultTickInterval
	}
	return cfg
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets the logger used by the pipeline and its router.
func WithLogger(l logrus.FieldLogger) Option {
	return func(p *Pipeline) {
		if l != nil {
			p.log = l
		}
	}
}

// WithRegisterer registers the pipeline metrics with reg.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(p *Pipeline) { p.reg = reg }
}

// WithoutFallback disables the passthrough retry after a failed rewire.
func WithoutFallback() Option {
	return func(p *Pipeline) { p.fallback = false }
}
