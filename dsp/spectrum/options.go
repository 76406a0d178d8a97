package spectrum

import (
	"errors"
	"fmt"

	"github.com/cwbudde/algo-fxchain/dsp/core"
	"github.com/cwbudde/algo-fxchain/dsp/window"
)

const (
	// DefaultSize is the default transform length.
	DefaultSize = 8192
	// MinSize is the smallest accepted transform length.
	MinSize = 16
)

var (
	// ErrSize is returned for transform lengths that are not a power of two
	// of at least MinSize.
	ErrSize = errors.New("spectrum: size must be a power of two >= 16")
	// ErrBackend is returned for unknown FFT backends.
	ErrBackend = errors.New("spectrum: unknown backend")
)

// Sink receives the level of every mono frame, in dBFS.
type Sink interface {
	AddSample(db float64)
}

// Config holds engine construction parameters.
type Config struct {
	Size       int
	SampleRate uint32
	Backend    Backend
	Window     window.Type
	Sink       Sink
}

// Option mutates engine construction parameters.
type Option func(*Config)

// WithSize sets the transform length.
func WithSize(n int) Option {
	return func(cfg *Config) { cfg.Size = n }
}

// WithSampleRate sets the initial sample rate in Hz.
func WithSampleRate(hz uint32) Option {
	return func(cfg *Config) { cfg.SampleRate = hz }
}

// WithBackend selects the FFT implementation.
func WithBackend(b Backend) Option {
	return func(cfg *Config) { cfg.Backend = b }
}

// WithWindow selects the analysis window.
func WithWindow(t window.Type) Option {
	return func(cfg *Config) { cfg.Window = t }
}

// WithSink routes per-frame levels to s. A nil sink disables the feed.
func WithSink(s Sink) Option {
	return func(cfg *Config) { cfg.Sink = s }
}

func defaultConfig() Config {
	return Config{
		Size:       DefaultSize,
		SampleRate: core.DefaultStreamConfig().SampleRate,
		Backend:    BackendAlgoFFT,
		Window:     window.TypeHann,
	}
}

func (cfg Config) validate() error {
	if cfg.Size < MinSize || !core.IsPowerOfTwo(cfg.Size) {
		return fmt.Errorf("%w: got %d", ErrSize, cfg.Size)
	}
	if _, ok := backendNames[cfg.Backend]; !ok {
		return fmt.Errorf("%w: %v", ErrBackend, cfg.Backend)
	}
	return nil
}
