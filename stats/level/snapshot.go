package level

// Snapshot is a point-in-time copy of the statistics for display.
type Snapshot struct {
	Count      int
	WindowSize int
	Mean       float64
	Kurtosis   float64
	Histogram  []float64
}

// Snapshot returns mean, kurtosis and histogram computed from one view of the
// window.
func (s *Statistics) Snapshot() Snapshot {
	r := s.ring.Load()
	values := r.values()

	return Snapshot{
		Count:      len(values),
		WindowSize: len(r.samples),
		Mean:       mean(values),
		Kurtosis:   kurtosis(values),
		Histogram:  s.HistogramData(),
	}
}
