package pipeline

import (
	"github.com/cwbudde/algo-fxchain/dsp/spectrum"
	"github.com/sirupsen/logrus"
)

// writerStalled reports whether the spectrum writer has gone threshold
// blocks without publishing.
func writerStalled(c spectrum.Counters, threshold uint64) bool {
	return threshold > 0 && c.SincePublish >= threshold
}

// watch runs on every tick.
func (p *Pipeline) watch() { p.observeWriter(p.engine.Counters()) }

// observeWriter logs a stall once and clears it on the next publication.
func (p *Pipeline) observeWriter(c spectrum.Counters) {
	stalled := writerStalled(c, p.cfg.StallBlocks)
	if stalled == p.stalled {
		return
	}
	p.stalled = stalled

	log := p.log.WithFields(logrus.Fields{
		"function":      "watch",
		"since_publish": c.SincePublish,
		"dropped":       c.Dropped,
		"published":     c.Published,
	})

	if stalled {
		p.metrics.writerStalled.Set(1)
		log.Error("Spectrum writer stalled")
		return
	}

	p.metrics.writerStalled.Set(0)
	log.Info("Spectrum writer recovered")
}
