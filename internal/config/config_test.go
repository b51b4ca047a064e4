package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/semcluster/internal/clusterer"
	"github.com/dshills/semcluster/internal/embedder"
	"github.com/dshills/semcluster/pkg/types"
)

// clearEnv blanks every variable Load reads so the host environment cannot leak in
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		EnvConfigFile, EnvDBPath, EnvModel, EnvClusterSize, EnvMinSimilarity, EnvMaxClusters,
		EnvWorkers, EnvDiversity, EnvLocale, EnvCacheSize, EnvMetricsAddr, EnvLogLevel, EnvExportDir,
		embedder.EnvProvider, embedder.EnvJinaAPIKey, embedder.EnvOpenAIAPIKey,
	} {
		t.Setenv(key, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, embedder.ProviderLocal, cfg.Embedding.Provider)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Empty(t, cfg.MetricsAddr)
	assert.Equal(t, "history.db", filepath.Base(cfg.DBPath))
	assert.Equal(t, clusterer.DefaultClusterSize, cfg.Clustering.ClusterSize)
	assert.Equal(t, clusterer.DefaultMinSimilarity, cfg.Clustering.MinSimilarity)
	assert.True(t, cfg.Clustering.EnforceDiversity)
}

func TestLoadEnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv(EnvDBPath, "/tmp/h.db")
	t.Setenv(EnvClusterSize, "4")
	t.Setenv(EnvMinSimilarity, "0.72")
	t.Setenv(EnvMaxClusters, "10")
	t.Setenv(EnvDiversity, "false")
	t.Setenv(EnvLocale, "en")
	t.Setenv(EnvCacheSize, "256")
	t.Setenv(EnvMetricsAddr, ":9090")
	t.Setenv(embedder.EnvProvider, "jina")
	t.Setenv(embedder.EnvJinaAPIKey, "secret")
	t.Setenv(EnvModel, "jina-embeddings-v2-base-en")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "/tmp/h.db", cfg.DBPath)
	assert.Equal(t, ":9090", cfg.MetricsAddr)
	assert.Equal(t, 4, cfg.Clustering.ClusterSize)
	assert.Equal(t, 0.72, cfg.Clustering.MinSimilarity)
	assert.Equal(t, 10, cfg.Clustering.MaxClusters)
	assert.False(t, cfg.Clustering.EnforceDiversity)
	assert.Equal(t, "en", cfg.Clustering.Locale)
	assert.Equal(t, 256, cfg.Clustering.CacheSize)
	assert.Equal(t, embedder.Config{Provider: "jina", APIKey: "secret", Model: "jina-embeddings-v2-base-en"}, cfg.Embedding)
}

func TestLoadInvalidEnv(t *testing.T) {
	tests := []struct {
		key, value string
	}{
		{EnvClusterSize, "six"},
		{EnvMinSimilarity, "high"},
		{EnvDiversity, "maybe"},
		{EnvWorkers, "1.5"},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(tt.key, tt.value)

			_, err := Load()
			assert.ErrorIs(t, err, ErrInvalidValue)
		})
	}
}

func TestLoadRejectsInvalidClustering(t *testing.T) {
	clearEnv(t)
	t.Setenv(EnvClusterSize, "1")

	_, err := Load()
	var cfgErr *types.ConfigurationError
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, "cluster_size", cfgErr.Field)
}

func TestLoadFile(t *testing.T) {
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "semcluster.yaml")
	content := `
db_path: /data/history.db
embedding:
  provider: openai
clustering:
  cluster_size: 3
  min_similarity: 0.65
  enforce_diversity: false
  include_heatmap: false
  funnel_stages: [topo, meio, fundo]
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	t.Setenv(EnvConfigFile, path)
	t.Setenv(EnvMinSimilarity, "0.7") // env wins over the file

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "/data/history.db", cfg.DBPath)
	assert.Equal(t, "openai", cfg.Embedding.Provider)
	assert.Equal(t, 3, cfg.Clustering.ClusterSize)
	assert.Equal(t, 0.7, cfg.Clustering.MinSimilarity)
	assert.False(t, cfg.Clustering.EnforceDiversity)
	assert.False(t, cfg.Clustering.IncludeHeatmap)
	assert.Equal(t, []string{"topo", "meio", "fundo"}, cfg.Clustering.FunnelStages)
	// Untouched keys keep their defaults
	assert.Equal(t, clusterer.DefaultLocale, cfg.Clustering.Locale)
}

func TestLoadFileErrors(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()

	t.Setenv(EnvConfigFile, filepath.Join(dir, "missing.yaml"))
	_, err := Load()
	assert.ErrorIs(t, err, os.ErrNotExist)

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("clustering: [unclosed"), 0o600))
	t.Setenv(EnvConfigFile, bad)
	_, err = Load()
	assert.ErrorIs(t, err, ErrInvalidValue)
}

func TestLoadEnvFile(t *testing.T) {
	clearEnv(t)

	root := t.TempDir()
	nested := filepath.Join(root, "a", "b")
	require.NoError(t, os.MkdirAll(nested, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, ".env"), []byte(EnvLogLevel+"=debug\n"), 0o600))

	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(nested))
	t.Cleanup(func() { _ = os.Chdir(wd) })

	// godotenv does not override variables that are already set
	require.NoError(t, os.Unsetenv(EnvLogLevel))
	require.NoError(t, LoadEnv())

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.LogLevel)
}
