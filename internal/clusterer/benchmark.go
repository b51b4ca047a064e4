package clusterer

import (
	"context"
	"fmt"
	"math"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/dshills/semcluster/pkg/types"
)

// BenchmarkStats summarizes repeated runs. Times are in seconds.
type BenchmarkStats struct {
	MeanTime   float64   `json:"mean_time"`
	StdDevTime float64   `json:"stddev_time"`
	NRuns      int       `json:"n_runs"`
	Runs       []float64 `json:"runs"`
}

// Benchmark runs GenerateClusters nRuns times and reports wall-clock
// statistics. The cache is not bypassed, so runs after the first are warm.
func (c *Clusterizer) Benchmark(ctx context.Context, keywords []*types.Keyword, category, domain string, nRuns int) (*BenchmarkStats, error) {
	if nRuns < 1 {
		return nil, types.NewConfigurationError("n_runs", nRuns, types.ErrInvalidBenchmarkRuns)
	}

	times := make([]float64, 0, nRuns)
	for i := 0; i < nRuns; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		start := time.Now()
		result, err := c.GenerateClusters(ctx, keywords, category, domain, c.cfg.Parallel)
		if err != nil {
			return nil, fmt.Errorf("benchmark run %d: %w", i+1, err)
		}
		times = append(times, time.Since(start).Seconds())

		c.logger.Debug().
			Int("run", i+1).
			Int("clusters", result.Report.ClusterCount).
			Float64("seconds", times[i]).
			Msg("benchmark run")
	}

	mean, std := stat.MeanStdDev(times, nil)
	if math.IsNaN(std) {
		std = 0
	}

	return &BenchmarkStats{
		MeanTime:   mean,
		StdDevTime: std,
		NRuns:      nRuns,
		Runs:       times,
	}, nil
}

// ToMap returns the stats with the keys mean_time, stddev_time and n_runs
func (b *BenchmarkStats) ToMap() map[string]any {
	return map[string]any{
		"mean_time":   b.MeanTime,
		"stddev_time": b.StdDevTime,
		"n_runs":      b.NRuns,
	}
}
