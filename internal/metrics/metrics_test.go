package metrics

import (
	"context"
	"math"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/semcluster/internal/embedder"
	"github.com/dshills/semcluster/internal/storage"
	"github.com/dshills/semcluster/pkg/types"
)

func sampleResult(parallel bool) *types.RunResult {
	r := types.NewRunResult("exec", "cat", "dom", "m", parallel)
	r.Elapsed = 120 * time.Millisecond
	r.Clusters = append(r.Clusters,
		&types.Cluster{ID: "a", Keywords: make([]*types.Keyword, 3), MeanSimilarity: 0.8},
		&types.Cluster{ID: "b", Keywords: make([]*types.Keyword, 3), MeanSimilarity: math.NaN()},
	)
	r.Discarded = append(r.Discarded,
		types.DiscardRecord{HeadTerm: "x", Reason: types.ReasonLowSimilarity},
		types.DiscardRecord{HeadTerm: "y", Reason: types.ReasonLowSimilarity},
		types.DiscardRecord{HeadTerm: "z", Reason: types.ReasonInsufficientSimilar},
	)
	return r
}

func TestObserve(t *testing.T) {
	r := NewRecorder()

	require.NoError(t, r.Observe(sampleResult(false)))
	failed := sampleResult(true)
	failed.Error = "embedding failed"
	require.NoError(t, r.Observe(failed))
	require.NoError(t, r.Observe(nil))

	assert.Equal(t, 1.0, testutil.ToFloat64(r.runs.WithLabelValues("sequential", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.runs.WithLabelValues("parallel", "failed")))
	assert.Equal(t, 4.0, testutil.ToFloat64(r.clusters))
	assert.Equal(t, 12.0, testutil.ToFloat64(r.keywords))
	assert.Equal(t, 4.0, testutil.ToFloat64(r.discards.WithLabelValues(string(types.ReasonLowSimilarity))))
	assert.Equal(t, 2.0, testutil.ToFloat64(r.discards.WithLabelValues(string(types.ReasonInsufficientSimilar))))
}

func TestRegisterCache(t *testing.T) {
	r := NewRecorder()
	stats := embedder.CacheStats{Hits: 7, Misses: 3, Computations: 2, Entries: 2}
	require.NoError(t, r.RegisterCache(func() embedder.CacheStats { return stats }))

	expected := `
# HELP semcluster_embedding_cache_hits_total Embedding cache hits
# TYPE semcluster_embedding_cache_hits_total counter
semcluster_embedding_cache_hits_total 7
# HELP semcluster_embedding_cache_entries Entries held by the embedding cache
# TYPE semcluster_embedding_cache_entries gauge
semcluster_embedding_cache_entries 2
`
	err := testutil.GatherAndCompare(r.Registry(), strings.NewReader(expected),
		"semcluster_embedding_cache_hits_total", "semcluster_embedding_cache_entries")
	assert.NoError(t, err)

	// Registering twice collides
	assert.Error(t, r.RegisterCache(func() embedder.CacheStats { return stats }))
}

func TestHistoryCollector(t *testing.T) {
	store, err := storage.NewSQLiteStorage(":memory:")
	require.NoError(t, err)
	defer store.Close()

	run := sampleResult(false)
	for i, c := range run.Clusters {
		c.ID = []string{"c1", "c2"}[i]
		c.Keywords = []*types.Keyword{{Term: c.ID + " term", Volume: 1}}
		c.Status = types.ClusterPending
	}
	ctx := context.Background()
	require.NoError(t, store.SaveRun(ctx, run))
	require.NoError(t, store.UpdateClusterStatus(ctx, "c2", types.ClusterGenerated))

	r := NewRecorder()
	require.NoError(t, r.RegisterHistory(store))

	expected := `
# HELP semcluster_stored_clusters Stored clusters by lifecycle status
# TYPE semcluster_stored_clusters gauge
semcluster_stored_clusters{status="failed"} 0
semcluster_stored_clusters{status="generated"} 1
semcluster_stored_clusters{status="pending"} 1
# HELP semcluster_stored_runs Runs held in the history store
# TYPE semcluster_stored_runs gauge
semcluster_stored_runs 1
`
	err = testutil.GatherAndCompare(r.Registry(), strings.NewReader(expected),
		"semcluster_stored_clusters", "semcluster_stored_runs")
	assert.NoError(t, err)
}

func TestHandler(t *testing.T) {
	r := NewRecorder()
	require.NoError(t, r.Observe(sampleResult(false)))

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	assert.Equal(t, 200, rec.Code)
	assert.Contains(t, rec.Body.String(), "semcluster_runs_total")
}
