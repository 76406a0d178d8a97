package level_test

import (
	"fmt"

	"github.com/cwbudde/algo-fxchain/stats/level"
)

func ExampleStatistics() {
	s, _ := level.New(4, 4)

	for _, db := range []float64{-100, -50, -50, -10, -20} {
		s.AddSample(db)
	}

	fmt.Printf("count=%d mean=%.1f hist=%v\n", s.Count(), s.Mean(), s.HistogramData())

	// Output:
	// count=4 mean=-32.5 hist=[0.5 0 1 1]
}
