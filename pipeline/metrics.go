package pipeline

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "fxchain"

type metrics struct {
	reconfigures    *prometheus.CounterVec
	reconfigureTime prometheus.Histogram
	writerStalled   prometheus.Gauge
	settingChanges  prometheus.Counter
}

// newMetrics registers the pipeline collectors with reg. A nil reg leaves
// them unregistered.
func newMetrics(reg prometheus.Registerer, p *Pipeline) *metrics {
	factory := promauto.With(reg)

	m := &metrics{
		reconfigures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reconfigures_total",
			Help:      "Router reconfigurations by result",
		}, []string{"result"}),
		reconfigureTime: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "reconfigure_duration_seconds",
			Help:      "Duration of router reconfigurations",
			Buckets:   []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1},
		}),
		writerStalled: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "spectrum_writer_stalled",
			Help:      "1 while the spectrum writer has not published for too many blocks",
		}),
		settingChanges: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "setting_changes_total",
			Help:      "Configuration changes applied",
		}),
	}

	factory.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "router_owned_links",
		Help:      "Links currently owned by the router",
	}, func() float64 { return float64(p.router.OwnedCount()) })

	factory.NewCounterFunc(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "spectrum_blocks_published_total",
		Help:      "Spectrum blocks published to the consumer",
	}, func() float64 { return float64(p.engine.Counters().Published) })

	factory.NewCounterFunc(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "spectrum_blocks_dropped_total",
		Help:      "Spectrum blocks dropped because the buffer was busy",
	}, func() float64 { return float64(p.engine.Counters().Dropped) })

	factory.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "statistics_samples",
		Help:      "Valid samples in the level statistics window",
	}, func() float64 { return float64(p.stats.Count()) })

	return m
}

func (m *metrics) observeReconfigure(err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.reconfigures.WithLabelValues(result).Inc()
}
