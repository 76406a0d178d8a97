package core

// StreamConfig describes the audio stream delivered to the real-time callback.
type StreamConfig struct {
	SampleRate uint32
	BlockSize  int
}

// StreamOption mutates a StreamConfig.
type StreamOption func(*StreamConfig)

// DefaultStreamConfig returns the stream layout used when nothing else is known.
func DefaultStreamConfig() StreamConfig {
	return StreamConfig{
		SampleRate: 48000,
		BlockSize:  1024,
	}
}

// WithSampleRate sets the stream sample rate. Zero is ignored.
func WithSampleRate(sampleRate uint32) StreamOption {
	return func(cfg *StreamConfig) {
		if sampleRate > 0 {
			cfg.SampleRate = sampleRate
		}
	}
}

// WithBlockSize sets the number of frames per callback. Non-positive values are ignored.
func WithBlockSize(blockSize int) StreamOption {
	return func(cfg *StreamConfig) {
		if blockSize > 0 {
			cfg.BlockSize = blockSize
		}
	}
}

// ApplyStreamOptions applies zero or more options to the default config.
func ApplyStreamOptions(opts ...StreamOption) StreamConfig {
	cfg := DefaultStreamConfig()
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}

	return cfg
}

// BlockSeconds returns the wall-clock duration of one block in seconds.
func (c StreamConfig) BlockSeconds() float64 {
	if c.SampleRate == 0 {
		return 0
	}

	return float64(c.BlockSize) / float64(c.SampleRate)
}
