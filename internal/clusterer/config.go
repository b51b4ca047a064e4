package clusterer

import (
	"math"
	"runtime"

	"github.com/rs/zerolog"

	"github.com/dshills/semcluster/internal/embedder"
	"github.com/dshills/semcluster/internal/similarity"
	"github.com/dshills/semcluster/pkg/types"
)

// Defaults
const (
	DefaultClusterSize   = 6
	DefaultMinSimilarity = 0.5
	DefaultLocale        = "pt-BR"
	MinClusterSize       = 2
)

// Config controls a Clusterizer
type Config struct {
	ClusterSize      int      // Members per cluster, head included
	MinSimilarity    float64  // Minimum mean head-to-member similarity
	MaxClusters      int      // 0 = unbounded
	Parallel         bool     // Mode used by Run and Benchmark
	Workers          int      // Parallel workers; <= 0 uses GOMAXPROCS
	EnforceDiversity bool     // Reject clusters reusing a term from an accepted cluster
	Model            string   // Embedding model id, part of the cache key
	Locale           string   // Language of warnings and log messages
	FunnelStages     []string // Ordered stage vocabulary, cycled over members
	IncludeHeatmap   bool     // Attach the N×N similarity matrix to the report
	BatchSize        int      // Terms per provider request
	CacheSize        int      // Embedding cache entries; <= 0 = unbounded
}

// DefaultConfig returns the configuration used when fields are left at zero
func DefaultConfig() Config {
	return Config{
		ClusterSize:      DefaultClusterSize,
		MinSimilarity:    DefaultMinSimilarity,
		Workers:          runtime.GOMAXPROCS(0),
		EnforceDiversity: true,
		Locale:           DefaultLocale,
		FunnelStages:     append([]string(nil), types.DefaultFunnelStages...),
		IncludeHeatmap:   true,
		BatchSize:        embedder.DefaultBatchSize,
	}
}

// Validate checks the numeric settings. Labels are validated per run.
func (c Config) Validate() error {
	if c.ClusterSize < MinClusterSize {
		return types.NewConfigurationError("cluster_size", c.ClusterSize, types.ErrInvalidClusterSize)
	}
	if math.IsNaN(c.MinSimilarity) || math.IsInf(c.MinSimilarity, 0) || c.MinSimilarity < 0 {
		return types.NewConfigurationError("min_similarity", c.MinSimilarity, types.ErrInvalidSimilarity)
	}
	if c.MaxClusters < 0 {
		return types.NewConfigurationError("max_clusters", c.MaxClusters, types.ErrInvalidMaxClusters)
	}
	if c.Workers < 0 {
		return types.NewConfigurationError("workers", c.Workers, types.ErrInvalidWorkers)
	}
	if c.FunnelStages != nil && len(c.FunnelStages) == 0 {
		return types.NewConfigurationError("funnel_stages", nil, types.ErrEmptyFunnelStages)
	}
	return nil
}

func (c Config) withDefaults() Config {
	if c.Workers <= 0 {
		c.Workers = runtime.GOMAXPROCS(0)
	}
	if c.Locale == "" {
		c.Locale = DefaultLocale
	}
	if c.FunnelStages == nil {
		c.FunnelStages = append([]string(nil), types.DefaultFunnelStages...)
	}
	if c.BatchSize <= 0 {
		c.BatchSize = embedder.DefaultBatchSize
	}
	return c
}

func (c Config) capReached(accepted int) bool {
	return c.MaxClusters > 0 && accepted >= c.MaxClusters
}

// ClusterCallback is invoked synchronously for every accepted cluster
type ClusterCallback func(cluster *types.Cluster) error

// Monitor is invoked once per run with the finished result
type Monitor func(result *types.RunResult) error

// Option configures a Clusterizer
type Option func(*Clusterizer)

// WithEmbedFunc sets the function that turns terms into vectors
func WithEmbedFunc(fn embedder.EmbedFunc) Option {
	return func(c *Clusterizer) {
		c.embed = fn
	}
}

// WithEmbedder uses a provider, batched by Config.BatchSize.
// The Clusterizer closes it on Close.
func WithEmbedder(e embedder.Embedder) Option {
	return func(c *Clusterizer) {
		c.provider = e
	}
}

// WithSimilarityFunc replaces cosine similarity
func WithSimilarityFunc(fn similarity.Func) Option {
	return func(c *Clusterizer) {
		c.similarity = fn
	}
}

// WithClusterCallback registers a per-cluster hook
func WithClusterCallback(fn ClusterCallback) Option {
	return func(c *Clusterizer) {
		c.callback = fn
	}
}

// WithMonitor registers an end-of-run hook
func WithMonitor(fn Monitor) Option {
	return func(c *Clusterizer) {
		c.monitor = fn
	}
}

// WithLogger sets the logger; the global zerolog logger is used otherwise
func WithLogger(logger zerolog.Logger) Option {
	return func(c *Clusterizer) {
		c.logger = logger
	}
}

// WithCacheSize bounds the embedding cache, overriding Config.CacheSize
func WithCacheSize(n int) Option {
	return func(c *Clusterizer) {
		c.cfg.CacheSize = n
	}
}

