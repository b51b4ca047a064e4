package clusterer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/dshills/semcluster/internal/embedder"
	"github.com/dshills/semcluster/internal/similarity"
	"github.com/dshills/semcluster/pkg/types"
)

// Clusterizer groups keywords into fixed-size semantic clusters.
// It is safe for concurrent use; the embedding cache is shared by all runs.
type Clusterizer struct {
	cfg        Config
	embed      embedder.EmbedFunc
	provider   embedder.Embedder
	similarity similarity.Func
	callback   ClusterCallback
	monitor    Monitor
	logger     zerolog.Logger
	cache      *embedder.Cache
	msgs       messages
}

// New validates cfg and builds a Clusterizer. Without WithEmbedFunc or
// WithEmbedder the offline local provider is used.
func New(cfg Config, opts ...Option) (*Clusterizer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	c := &Clusterizer{
		cfg:        cfg.withDefaults(),
		similarity: similarity.Cosine,
		logger:     log.Logger.With().Str("component", "clusterer").Logger(),
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.similarity == nil {
		c.similarity = similarity.Cosine
	}
	if c.embed == nil {
		if c.provider == nil {
			local, err := embedder.NewLocalProvider()
			if err != nil {
				return nil, fmt.Errorf("create local embedder: %w", err)
			}
			c.provider = local
		}
		c.embed = embedder.BatchEmbedFunc(c.provider, c.cfg.BatchSize)
	}
	if c.cfg.Model == "" {
		if c.provider != nil {
			c.cfg.Model = c.provider.Model()
		} else {
			c.cfg.Model = "custom"
		}
	}

	c.cache = embedder.NewCache(c.cfg.CacheSize)
	c.msgs = newMessages(c.cfg.Locale)

	if c.cfg.MinSimilarity > 1 {
		c.logger.Warn().Float64("min_similarity", c.cfg.MinSimilarity).Msg(c.msgs.thresholdAboveOne(c.cfg.MinSimilarity))
	}

	return c, nil
}

// Config returns the effective configuration
func (c *Clusterizer) Config() Config {
	cfg := c.cfg
	cfg.FunnelStages = append([]string(nil), c.cfg.FunnelStages...)
	return cfg
}

// GenerateClusters runs one clustering pass over keywords.
//
// The returned error is non-nil only for a *types.ConfigurationError
// (invalid labels or duplicate terms). Insufficient data and embedding or
// similarity failures produce a RunResult with zero clusters and Warnings
// or Error set. Keywords that land in an accepted cluster are modified.
func (c *Clusterizer) GenerateClusters(ctx context.Context, keywords []*types.Keyword, category, domain string, parallel bool) (*types.RunResult, error) {
	start := time.Now()

	if err := ValidateLabels(category, domain); err != nil {
		return nil, err
	}

	prep, err := c.prepareKeywords(keywords)
	if err != nil {
		c.logger.Warn().Err(err).Str("category", category).Str("domain", domain).Msg("keywords rejected")
		return nil, err
	}

	result := types.NewRunResult(uuid.NewString(), category, domain, c.cfg.Model, parallel)
	result.Warnings = append(result.Warnings, prep.warnings...)
	logger := c.logger.With().Str("execution_id", result.ExecutionID).Logger()

	if len(prep.keywords) < c.cfg.ClusterSize {
		msg := c.msgs.insufficientData(len(prep.keywords), c.cfg.ClusterSize)
		logger.Warn().Err(types.ErrInsufficientData).Int("valid", len(prep.keywords)).Int("cluster_size", c.cfg.ClusterSize).Msg(msg)
		result.Warnings = append(result.Warnings, msg)
		return c.finish(logger, result, start), nil
	}

	terms := make([]string, len(prep.keywords))
	for i, kw := range prep.keywords {
		terms[i] = kw.Term
	}

	vectors, err := c.cache.GetOrCompute(ctx, terms, c.cfg.Model, c.embed)
	if err != nil {
		logger.Error().Msg(c.msgs.embeddingFailed(err))
		result.Error = fmt.Errorf("%w: %v", types.ErrEmbeddingFailed, err).Error()
		return c.finish(logger, result, start), nil
	}

	if c.cfg.IncludeHeatmap {
		heatmap, err := similarity.Matrix(c.similarity, vectors)
		if err != nil {
			logger.Error().Msg(c.msgs.similarityFailed(err))
			result.Error = fmt.Errorf("%w: %v", ErrSimilarityFailed, err).Error()
			return c.finish(logger, result, start), nil
		}
		result.Report.Heatmap = heatmap
	}

	a := c.newAssembly(ctx, logger, prep.keywords, vectors, result)
	if parallel {
		err = a.runParallel()
	} else {
		err = a.runSequential()
	}
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			logger.Warn().Msg(c.msgs.cancelled(err))
		} else {
			logger.Error().Msg(err.Error())
		}
		result.Error = err.Error()
	}

	return c.finish(logger, result, start), nil
}

func (c *Clusterizer) finish(logger zerolog.Logger, result *types.RunResult, start time.Time) *types.RunResult {
	result.Elapsed = time.Since(start)
	result.Finalize()

	logger.Info().
		Int("clusters", result.Report.ClusterCount).
		Int("discarded", result.Report.DiscardCount).
		Bool("parallel", result.Parallel).
		Dur("elapsed", result.Elapsed).
		Msg("clustering run finished")

	c.notifyMonitor(result)
	return result
}

// AsyncResult carries the outcome of GenerateClustersAsync
type AsyncResult struct {
	Result *types.RunResult
	Err    error
}

// GenerateClustersAsync runs GenerateClusters on its own goroutine. The
// channel receives exactly one value and is then closed.
func (c *Clusterizer) GenerateClustersAsync(ctx context.Context, keywords []*types.Keyword, category, domain string, parallel bool) <-chan AsyncResult {
	ch := make(chan AsyncResult, 1)
	go func() {
		defer close(ch)
		result, err := c.GenerateClusters(ctx, keywords, category, domain, parallel)
		ch <- AsyncResult{Result: result, Err: err}
	}()
	return ch
}

// Run is the map-returning entry point. It never fails: configuration
// errors are reported in the "error" key. Config.Parallel selects the mode.
func (c *Clusterizer) Run(ctx context.Context, keywords []*types.Keyword, category, domain string) map[string]any {
	result, err := c.GenerateClusters(ctx, keywords, category, domain, c.cfg.Parallel)
	if err != nil {
		result = types.NewRunResult(uuid.NewString(), category, domain, c.cfg.Model, c.cfg.Parallel)
		result.Error = err.Error()
		result.Finalize()
	}
	return result.ToMap()
}

// ClearCache drops every cached embedding
func (c *Clusterizer) ClearCache() {
	c.cache.Clear()
}

// CacheStats reports embedding cache usage
func (c *Clusterizer) CacheStats() embedder.CacheStats {
	return c.cache.Stats()
}

// Close releases the embedding provider, if any
func (c *Clusterizer) Close() error {
	if c.provider != nil {
		return c.provider.Close()
	}
	return nil
}

// notifyCluster and notifyMonitor isolate caller hooks: errors and panics
// are logged and never reach the run.
func (c *Clusterizer) notifyCluster(cluster *types.Cluster) {
	if c.callback == nil {
		return
	}
	if err := safeCall(func() error { return c.callback(cluster) }); err != nil {
		c.logger.Error().Err(err).Str("cluster_id", cluster.ID).Msg("cluster callback failed")
	}
}

func (c *Clusterizer) notifyMonitor(result *types.RunResult) {
	if c.monitor == nil {
		return
	}
	if err := safeCall(func() error { return c.monitor(result) }); err != nil {
		c.logger.Error().Err(err).Str("execution_id", result.ExecutionID).Msg("monitor hook failed")
	}
}

func safeCall(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("hook panicked: %v", r)
		}
	}()
	return fn()
}
