package metrics

import (
	"context"
	"math"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/dshills/semcluster/internal/embedder"
	"github.com/dshills/semcluster/internal/storage"
	"github.com/dshills/semcluster/pkg/types"
)

const namespace = "semcluster"

// Recorder turns run results into Prometheus metrics.
// Observe has the clusterer Monitor signature.
type Recorder struct {
	registry *prometheus.Registry

	runs           *prometheus.CounterVec
	clusters       prometheus.Counter
	keywords       prometheus.Counter
	discards       *prometheus.CounterVec
	duration       *prometheus.HistogramVec
	meanSimilarity prometheus.Histogram
}

// NewRecorder creates a recorder with its own registry
func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Clustering runs by mode and outcome",
		}, []string{"mode", "outcome"}),
		clusters: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "clusters_accepted_total",
			Help:      "Accepted clusters",
		}),
		keywords: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "keywords_clustered_total",
			Help:      "Keywords placed in accepted clusters",
		}),
		discards: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "clusters_discarded_total",
			Help:      "Discarded cluster attempts by reason",
		}, []string{"reason"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Wall-clock duration of clustering runs",
			Buckets:   prometheus.ExponentialBuckets(0.005, 4, 8),
		}, []string{"mode"}),
		meanSimilarity: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "cluster_mean_similarity",
			Help:      "Mean head-to-member similarity of accepted clusters",
			Buckets:   prometheus.LinearBuckets(0, 0.1, 11),
		}),
	}

	r.registry.MustRegister(r.runs, r.clusters, r.keywords, r.discards, r.duration, r.meanSimilarity)
	return r
}

// Registry exposes the recorder's registry for extra collectors and tests
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// Observe records one finished run
func (r *Recorder) Observe(result *types.RunResult) error {
	if result == nil {
		return nil
	}

	mode := "sequential"
	if result.Parallel {
		mode = "parallel"
	}
	outcome := "ok"
	if result.Failed() {
		outcome = "failed"
	}

	r.runs.WithLabelValues(mode, outcome).Inc()
	r.duration.WithLabelValues(mode).Observe(result.Elapsed.Seconds())

	for _, c := range result.Clusters {
		r.clusters.Inc()
		r.keywords.Add(float64(len(c.Keywords)))
		if !math.IsNaN(c.MeanSimilarity) {
			r.meanSimilarity.Observe(c.MeanSimilarity)
		}
	}
	for _, d := range result.Discarded {
		r.discards.WithLabelValues(string(d.Reason)).Inc()
	}
	return nil
}

// RegisterCache exposes embedding cache counters read on each scrape
func (r *Recorder) RegisterCache(stats func() embedder.CacheStats) error {
	collectors := []prometheus.Collector{
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "embedding_cache_hits_total",
			Help:      "Embedding cache hits",
		}, func() float64 { return float64(stats().Hits) }),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "embedding_cache_misses_total",
			Help:      "Embedding cache misses",
		}, func() float64 { return float64(stats().Misses) }),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "embedding_computations_total",
			Help:      "Embedding function invocations",
		}, func() float64 { return float64(stats().Computations) }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "embedding_cache_entries",
			Help:      "Entries held by the embedding cache",
		}, func() float64 { return float64(stats().Entries) }),
	}
	for _, c := range collectors {
		if err := r.registry.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// RegisterHistory adds a collector reading run history counts on each scrape
func (r *Recorder) RegisterHistory(store storage.Storage) error {
	return r.registry.Register(&HistoryCollector{store: store, timeout: 5 * time.Second})
}

// Handler serves the registry in the Prometheus exposition format
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

var (
	storedRunsDesc = prometheus.NewDesc(
		namespace+"_stored_runs",
		"Runs held in the history store",
		nil, nil,
	)
	storedClustersDesc = prometheus.NewDesc(
		namespace+"_stored_clusters",
		"Stored clusters by lifecycle status",
		[]string{"status"}, nil,
	)
)

// HistoryCollector is a custom Prometheus collector that reads run history
// counts from the store on each scrape.
type HistoryCollector struct {
	store   storage.Storage
	timeout time.Duration
}

// Describe sends the metric descriptors to the channel.
func (c *HistoryCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- storedRunsDesc
	ch <- storedClustersDesc
}

// Collect queries the store and emits gauges.
func (c *HistoryCollector) Collect(ch chan<- prometheus.Metric) {
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	status, err := c.store.GetStatus(ctx)
	if err != nil {
		log.Error().Err(err).Msg("failed to collect run history metrics")
		return
	}

	ch <- prometheus.MustNewConstMetric(storedRunsDesc, prometheus.GaugeValue, float64(status.RunsCount))
	for _, st := range []types.ClusterStatus{types.ClusterPending, types.ClusterGenerated, types.ClusterFailed} {
		ch <- prometheus.MustNewConstMetric(
			storedClustersDesc,
			prometheus.GaugeValue,
			float64(status.ClustersByStatus[st]),
			string(st),
		)
	}
}
