package storage

import (
	"context"
	"time"

	"github.com/dshills/semcluster/pkg/types"
)

// Storage defines the interface for persisting clustering runs
type Storage interface {
	// Run operations
	SaveRun(ctx context.Context, run *types.RunResult) error
	GetRun(ctx context.Context, executionID string) (*types.RunResult, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]*RunSummary, error)
	DeleteRun(ctx context.Context, executionID string) error

	// Cluster operations
	GetCluster(ctx context.Context, clusterID string) (*types.Cluster, error)
	UpdateClusterStatus(ctx context.Context, clusterID string, status types.ClusterStatus) error

	// Export operations
	RecordExport(ctx context.Context, export *Export) error
	ListExports(ctx context.Context, executionID string) ([]*Export, error)

	// Status operations
	GetStatus(ctx context.Context) (*Status, error)

	// Database operations
	Close() error
	BeginTx(ctx context.Context) (Tx, error)
}

// Tx represents a database transaction
type Tx interface {
	Commit() error
	Rollback() error
	Storage // Embed Storage interface for transaction operations
}

// RunFilter narrows ListRuns
type RunFilter struct {
	Category string // Exact match when set
	Domain   string // Exact match when set
	Limit    int    // 0 means DefaultListLimit
}

// DefaultListLimit bounds ListRuns when no limit is given
const DefaultListLimit = 50

// RunSummary is a run row without its clusters
type RunSummary struct {
	ExecutionID  string
	Category     string
	Domain       string
	Model        string
	Parallel     bool
	ClusterCount int
	DiscardCount int
	Elapsed      time.Duration
	Error        string
	CreatedAt    time.Time
}

// Export records a file written for a run
type Export struct {
	ID          int64
	ExecutionID string
	Path        string
	Format      string
	CreatedAt   time.Time
}

// Status contains statistics about the run history
type Status struct {
	RunsCount        int
	ClustersCount    int
	DiscardsCount    int
	ExportsCount     int
	ClustersByStatus map[types.ClusterStatus]int
	LastRunAt        time.Time
	SchemaVersion    string
	DatabaseSizeMB   float64
	BuildMode        string
	Health           HealthStatus
}

// HealthStatus represents the health of the store
type HealthStatus struct {
	DatabaseAccessible bool
	SchemaCurrent      bool
}
