package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/dshills/semcluster/internal/clusterer"
	"github.com/dshills/semcluster/internal/embedder"
)

// Environment variables
const (
	EnvConfigFile    = "SEMCLUSTER_CONFIG"
	EnvDBPath        = "SEMCLUSTER_DB_PATH"
	EnvModel         = "SEMCLUSTER_MODEL"
	EnvClusterSize   = "SEMCLUSTER_CLUSTER_SIZE"
	EnvMinSimilarity = "SEMCLUSTER_MIN_SIMILARITY"
	EnvMaxClusters   = "SEMCLUSTER_MAX_CLUSTERS"
	EnvWorkers       = "SEMCLUSTER_WORKERS"
	EnvDiversity     = "SEMCLUSTER_DIVERSITY"
	EnvLocale        = "SEMCLUSTER_LOCALE"
	EnvCacheSize     = "SEMCLUSTER_CACHE_SIZE"
	EnvMetricsAddr   = "SEMCLUSTER_METRICS_ADDR"
	EnvLogLevel      = "SEMCLUSTER_LOG_LEVEL"
	EnvExportDir     = "SEMCLUSTER_EXPORT_DIR"
)

// ErrInvalidValue is returned for a malformed environment or file value
var ErrInvalidValue = errors.New("invalid configuration value")

// Config holds all application configuration
type Config struct {
	// Storage
	DBPath    string
	ExportDir string

	// Observability
	MetricsAddr string // Empty disables the /metrics endpoint
	LogLevel    string

	// Embedding provider
	Embedding embedder.Config

	// Clustering defaults for every run
	Clustering clusterer.Config
}

// fileConfig mirrors the YAML file; pointers distinguish unset from zero
type fileConfig struct {
	DBPath      string `yaml:"db_path"`
	ExportDir   string `yaml:"export_dir"`
	MetricsAddr string `yaml:"metrics_addr"`
	LogLevel    string `yaml:"log_level"`

	Embedding struct {
		Provider string `yaml:"provider"`
		Model    string `yaml:"model"`
	} `yaml:"embedding"`

	Clustering struct {
		ClusterSize      *int     `yaml:"cluster_size"`
		MinSimilarity    *float64 `yaml:"min_similarity"`
		MaxClusters      *int     `yaml:"max_clusters"`
		Workers          *int     `yaml:"workers"`
		EnforceDiversity *bool    `yaml:"enforce_diversity"`
		Locale           string   `yaml:"locale"`
		FunnelStages     []string `yaml:"funnel_stages"`
		IncludeHeatmap   *bool    `yaml:"include_heatmap"`
		BatchSize        *int     `yaml:"batch_size"`
		CacheSize        *int     `yaml:"cache_size"`
	} `yaml:"clustering"`
}

// Default returns the configuration used when nothing is set
func Default() *Config {
	return &Config{
		DBPath:     defaultDBPath(),
		ExportDir:  "exports",
		LogLevel:   "info",
		Embedding:  embedder.Config{Provider: embedder.DetectProvider()},
		Clustering: clusterer.DefaultConfig(),
	}
}

// Load builds the configuration from defaults, then the YAML file named by
// SEMCLUSTER_CONFIG, then environment variables.
func Load() (*Config, error) {
	cfg := Default()

	if path := getEnv(EnvConfigFile, ""); path != "" {
		if err := cfg.applyFile(path); err != nil {
			return nil, err
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}

	if err := cfg.Clustering.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadEnv loads environment variables from a .env file, searching up the directory tree.
func LoadEnv() error {
	dir, err := os.Getwd()
	if err != nil {
		return err
	}

	for {
		envPath := filepath.Join(dir, ".env")
		if _, err := os.Stat(envPath); err == nil {
			return godotenv.Load(envPath)
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break // Reached root
		}
		dir = parent
	}

	// Not found is fine
	return nil
}

func (c *Config) applyFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrInvalidValue, path, err)
	}

	setString(&c.DBPath, fc.DBPath)
	setString(&c.ExportDir, fc.ExportDir)
	setString(&c.MetricsAddr, fc.MetricsAddr)
	setString(&c.LogLevel, fc.LogLevel)
	setString(&c.Embedding.Provider, fc.Embedding.Provider)
	setString(&c.Embedding.Model, fc.Embedding.Model)

	cl := &c.Clustering
	f := fc.Clustering
	if f.ClusterSize != nil {
		cl.ClusterSize = *f.ClusterSize
	}
	if f.MinSimilarity != nil {
		cl.MinSimilarity = *f.MinSimilarity
	}
	if f.MaxClusters != nil {
		cl.MaxClusters = *f.MaxClusters
	}
	if f.Workers != nil {
		cl.Workers = *f.Workers
	}
	if f.EnforceDiversity != nil {
		cl.EnforceDiversity = *f.EnforceDiversity
	}
	if f.IncludeHeatmap != nil {
		cl.IncludeHeatmap = *f.IncludeHeatmap
	}
	if f.BatchSize != nil {
		cl.BatchSize = *f.BatchSize
	}
	if f.CacheSize != nil {
		cl.CacheSize = *f.CacheSize
	}
	if f.FunnelStages != nil {
		cl.FunnelStages = f.FunnelStages
	}
	setString(&cl.Locale, f.Locale)
	return nil
}

func (c *Config) applyEnv() error {
	c.DBPath = getEnv(EnvDBPath, c.DBPath)
	c.ExportDir = getEnv(EnvExportDir, c.ExportDir)
	c.MetricsAddr = getEnv(EnvMetricsAddr, c.MetricsAddr)
	c.LogLevel = getEnv(EnvLogLevel, c.LogLevel)
	c.Embedding.Provider = getEnv(embedder.EnvProvider, c.Embedding.Provider)
	c.Embedding.Model = getEnv(EnvModel, c.Embedding.Model)

	switch c.Embedding.Provider {
	case embedder.ProviderJina:
		c.Embedding.APIKey = getEnv(embedder.EnvJinaAPIKey, c.Embedding.APIKey)
	case embedder.ProviderOpenAI:
		c.Embedding.APIKey = getEnv(embedder.EnvOpenAIAPIKey, c.Embedding.APIKey)
	}

	cl := &c.Clustering
	cl.Locale = getEnv(EnvLocale, cl.Locale)

	var err error
	if cl.ClusterSize, err = getEnvInt(EnvClusterSize, cl.ClusterSize); err != nil {
		return err
	}
	if cl.MinSimilarity, err = getEnvFloat(EnvMinSimilarity, cl.MinSimilarity); err != nil {
		return err
	}
	if cl.MaxClusters, err = getEnvInt(EnvMaxClusters, cl.MaxClusters); err != nil {
		return err
	}
	if cl.Workers, err = getEnvInt(EnvWorkers, cl.Workers); err != nil {
		return err
	}
	if cl.CacheSize, err = getEnvInt(EnvCacheSize, cl.CacheSize); err != nil {
		return err
	}
	if cl.EnforceDiversity, err = getEnvBool(EnvDiversity, cl.EnforceDiversity); err != nil {
		return err
	}
	return nil
}

func defaultDBPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".semcluster", "history.db")
	}
	return filepath.Join(home, ".semcluster", "history.db")
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %s=%q", ErrInvalidValue, key, raw)
	}
	return v, nil
}

func getEnvFloat(key string, fallback float64) (float64, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %s=%q", ErrInvalidValue, key, raw)
	}
	return v, nil
}

func getEnvBool(key string, fallback bool) (bool, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("%w: %s=%q", ErrInvalidValue, key, raw)
	}
	return v, nil
}
