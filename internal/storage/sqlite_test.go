package storage

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/semcluster/pkg/types"
)

func setupTestDB(t *testing.T) *SQLiteStorage {
	// Use in-memory database for testing
	storage, err := NewSQLiteStorage(":memory:")
	require.NoError(t, err)
	require.NotNil(t, storage)
	t.Cleanup(func() { _ = storage.Close() })
	return storage
}

func testRun(id, category string) *types.RunResult {
	run := types.NewRunResult(id, category, "example.com", "local-ngram-v1", false)
	run.Elapsed = 1500 * time.Millisecond

	score := 0.8
	members := []*types.Keyword{
		{Term: "tenis corrida", Volume: 1000, CPC: 1.2, Competition: 0.4, Intent: "commercial", Score: &score},
		{Term: "tenis trail", Volume: 500},
	}
	for i, kw := range members {
		kw.Assign(types.FunnelStageFor(types.DefaultFunnelStages, i), i)
	}

	run.Clusters = append(run.Clusters, &types.Cluster{
		ID:             id + "-c1",
		HeadIndex:      0,
		Keywords:       members,
		MeanSimilarity: 0.91,
		FunnelStage:    members[0].FunnelStage,
		Category:       category,
		Domain:         "example.com",
		CreatedAt:      time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
		Status:         types.ClusterPending,
	})
	run.Discarded = append(run.Discarded,
		types.DiscardRecord{HeadTerm: "meia", Reason: types.ReasonLowSimilarity},
		types.DiscardRecord{HeadTerm: "bone", Reason: types.ReasonInsufficientSimilar},
	)
	run.Warnings = []string{"dropped keyword"}
	run.Report.Heatmap = [][]float64{{1, 0.5}, {0.5, math.NaN()}}
	run.Finalize()
	return run
}

func TestNewSQLiteStorage(t *testing.T) {
	storage := setupTestDB(t)
	assert.NotNil(t, storage.db)
}

func TestSaveAndGetRun(t *testing.T) {
	storage := setupTestDB(t)
	ctx := context.Background()

	run := testRun("run-1", "tenis")
	require.NoError(t, storage.SaveRun(ctx, run))

	got, err := storage.GetRun(ctx, "run-1")
	require.NoError(t, err)

	assert.Equal(t, "tenis", got.Category)
	assert.Equal(t, "example.com", got.Domain)
	assert.Equal(t, "local-ngram-v1", got.Model)
	assert.Equal(t, run.Elapsed, got.Elapsed)
	assert.Equal(t, []string{"dropped keyword"}, got.Warnings)
	assert.Equal(t, run.Discarded, got.Discarded)
	assert.Equal(t, 1, got.Report.ClusterCount)
	assert.Equal(t, 2, got.Report.DiscardCount)
	assert.Equal(t, 1, got.Report.DiscardReasons[types.ReasonLowSimilarity])

	require.Len(t, got.Report.Heatmap, 2)
	assert.Equal(t, 0.5, got.Report.Heatmap[0][1])
	assert.True(t, math.IsNaN(got.Report.Heatmap[1][1]))

	require.Len(t, got.Clusters, 1)
	c := got.Clusters[0]
	assert.Equal(t, "run-1-c1", c.ID)
	assert.InDelta(t, 0.91, c.MeanSimilarity, 1e-9)
	assert.Equal(t, types.ClusterPending, c.Status)
	assert.True(t, c.CreatedAt.Equal(run.Clusters[0].CreatedAt))
	assert.Equal(t, []string{"tenis corrida", "tenis trail"}, c.Terms())

	first := c.Keywords[0]
	require.NotNil(t, first.Score)
	assert.Equal(t, 0.8, *first.Score)
	require.NotNil(t, first.Position)
	assert.Equal(t, 0, *first.Position)
	assert.Equal(t, "Artigo1", first.ArticleName)
	assert.Equal(t, "commercial", first.Intent)
	assert.Nil(t, c.Keywords[1].Score)
}

func TestSaveRun_Duplicate(t *testing.T) {
	storage := setupTestDB(t)
	ctx := context.Background()

	require.NoError(t, storage.SaveRun(ctx, testRun("run-1", "tenis")))
	err := storage.SaveRun(ctx, testRun("run-1", "tenis"))
	assert.ErrorIs(t, err, ErrAlreadyExists)

	err = storage.SaveRun(ctx, types.NewRunResult("", "c", "d", "m", false))
	assert.ErrorIs(t, err, ErrInvalidRun)
}

func TestSaveRun_NaNMeanSimilarity(t *testing.T) {
	storage := setupTestDB(t)
	ctx := context.Background()

	run := testRun("run-nan", "tenis")
	run.Clusters[0].MeanSimilarity = math.NaN()
	require.NoError(t, storage.SaveRun(ctx, run))

	c, err := storage.GetCluster(ctx, "run-nan-c1")
	require.NoError(t, err)
	assert.True(t, math.IsNaN(c.MeanSimilarity))
}

func TestGetRun_NotFound(t *testing.T) {
	storage := setupTestDB(t)

	_, err := storage.GetRun(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListRuns(t *testing.T) {
	storage := setupTestDB(t)
	ctx := context.Background()

	require.NoError(t, storage.SaveRun(ctx, testRun("run-1", "tenis")))
	require.NoError(t, storage.SaveRun(ctx, testRun("run-2", "meias")))
	require.NoError(t, storage.SaveRun(ctx, testRun("run-3", "tenis")))

	runs, err := storage.ListRuns(ctx, RunFilter{})
	require.NoError(t, err)
	require.Len(t, runs, 3)
	assert.Equal(t, "run-3", runs[0].ExecutionID)
	assert.Equal(t, 1, runs[0].ClusterCount)
	assert.Equal(t, 2, runs[0].DiscardCount)

	runs, err = storage.ListRuns(ctx, RunFilter{Category: "tenis"})
	require.NoError(t, err)
	assert.Len(t, runs, 2)

	runs, err = storage.ListRuns(ctx, RunFilter{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, runs, 1)
}

func TestDeleteRun_Cascades(t *testing.T) {
	storage := setupTestDB(t)
	ctx := context.Background()

	require.NoError(t, storage.SaveRun(ctx, testRun("run-1", "tenis")))
	require.NoError(t, storage.RecordExport(ctx, &Export{ExecutionID: "run-1", Path: "/tmp/a.csv", Format: "csv"}))

	require.NoError(t, storage.DeleteRun(ctx, "run-1"))

	_, err := storage.GetCluster(ctx, "run-1-c1")
	assert.ErrorIs(t, err, ErrNotFound)

	status, err := storage.GetStatus(ctx)
	require.NoError(t, err)
	assert.Zero(t, status.RunsCount)
	assert.Zero(t, status.ClustersCount)
	assert.Zero(t, status.DiscardsCount)
	assert.Zero(t, status.ExportsCount)

	assert.ErrorIs(t, storage.DeleteRun(ctx, "run-1"), ErrNotFound)
}

func TestUpdateClusterStatus(t *testing.T) {
	storage := setupTestDB(t)
	ctx := context.Background()
	require.NoError(t, storage.SaveRun(ctx, testRun("run-1", "tenis")))

	require.NoError(t, storage.UpdateClusterStatus(ctx, "run-1-c1", types.ClusterGenerated))
	c, err := storage.GetCluster(ctx, "run-1-c1")
	require.NoError(t, err)
	assert.Equal(t, types.ClusterGenerated, c.Status)

	assert.ErrorIs(t, storage.UpdateClusterStatus(ctx, "run-1-c1", "archived"), ErrInvalidStatus)
	assert.ErrorIs(t, storage.UpdateClusterStatus(ctx, "missing", types.ClusterFailed), ErrNotFound)
}

func TestExports(t *testing.T) {
	storage := setupTestDB(t)
	ctx := context.Background()
	require.NoError(t, storage.SaveRun(ctx, testRun("run-1", "tenis")))

	e := &Export{ExecutionID: "run-1", Path: "/exports/acme/x/tenis.csv", Format: "csv"}
	require.NoError(t, storage.RecordExport(ctx, e))
	assert.Greater(t, e.ID, int64(0))
	require.NoError(t, storage.RecordExport(ctx, &Export{ExecutionID: "run-1", Path: "/exports/acme/x/tenis.json", Format: "json"}))

	exports, err := storage.ListExports(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, exports, 2)
	assert.Equal(t, "csv", exports[0].Format)
	assert.Equal(t, "json", exports[1].Format)

	// Unknown run violates the foreign key
	err = storage.RecordExport(ctx, &Export{ExecutionID: "missing", Path: "p", Format: "csv"})
	assert.Error(t, err)
}

func TestGetStatus(t *testing.T) {
	storage := setupTestDB(t)
	ctx := context.Background()

	status, err := storage.GetStatus(ctx)
	require.NoError(t, err)
	assert.True(t, status.LastRunAt.IsZero())
	assert.Equal(t, CurrentSchemaVersion, status.SchemaVersion)
	assert.True(t, status.Health.DatabaseAccessible)
	assert.True(t, status.Health.SchemaCurrent)
	assert.Equal(t, BuildMode, status.BuildMode)

	require.NoError(t, storage.SaveRun(ctx, testRun("run-1", "tenis")))
	require.NoError(t, storage.UpdateClusterStatus(ctx, "run-1-c1", types.ClusterFailed))

	status, err = storage.GetStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, status.RunsCount)
	assert.Equal(t, 1, status.ClustersCount)
	assert.Equal(t, 2, status.DiscardsCount)
	assert.Equal(t, 1, status.ClustersByStatus[types.ClusterFailed])
	assert.False(t, status.LastRunAt.IsZero())
}

func TestTransaction(t *testing.T) {
	storage := setupTestDB(t)
	ctx := context.Background()

	tx, err := storage.BeginTx(ctx)
	require.NoError(t, err)
	require.NoError(t, tx.SaveRun(ctx, testRun("run-tx", "tenis")))

	status, err := tx.GetStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, status.RunsCount)

	_, err = tx.BeginTx(ctx)
	assert.Error(t, err)

	require.NoError(t, tx.Rollback())

	_, err = storage.GetRun(ctx, "run-tx")
	assert.ErrorIs(t, err, ErrNotFound)

	tx, err = storage.BeginTx(ctx)
	require.NoError(t, err)
	require.NoError(t, tx.SaveRun(ctx, testRun("run-tx", "tenis")))
	require.NoError(t, tx.UpdateClusterStatus(ctx, "run-tx-c1", types.ClusterGenerated))
	require.NoError(t, tx.Commit())

	c, err := storage.GetCluster(ctx, "run-tx-c1")
	require.NoError(t, err)
	assert.Equal(t, types.ClusterGenerated, c.Status)
}

func TestMigrations(t *testing.T) {
	storage := setupTestDB(t)
	ctx := context.Background()

	// Idempotent
	require.NoError(t, ApplyMigrations(ctx, storage.db))

	require.NoError(t, RollbackMigration(ctx, storage.db))
	v, err := currentVersion(ctx, storage.db)
	require.NoError(t, err)
	assert.Equal(t, "1.0.0", v.String())

	var name string
	err = storage.db.QueryRowContext(ctx, "SELECT name FROM sqlite_master WHERE type='table' AND name='exports'").Scan(&name)
	assert.Error(t, err)

	require.NoError(t, ApplyMigrations(ctx, storage.db))
	v, err = currentVersion(ctx, storage.db)
	require.NoError(t, err)
	assert.Equal(t, CurrentSchemaVersion, v.String())
}
