package types

import (
	"errors"
	"fmt"
)

// Domain errors for clustering input and output
var (
	// Configuration errors
	ErrInvalidDomain        = errors.New("invalid domain label")
	ErrInvalidCategory      = errors.New("invalid category label")
	ErrInvalidClusterSize   = errors.New("cluster size must be >= 2")
	ErrInvalidSimilarity    = errors.New("minimum similarity must be a finite value >= 0")
	ErrInvalidMaxClusters   = errors.New("max clusters must be >= 0")
	ErrDuplicateTerm        = errors.New("duplicate keyword term")
	ErrEmptyFunnelStages    = errors.New("funnel stage vocabulary cannot be empty")
	ErrInvalidWorkers       = errors.New("workers must be >= 0")
	ErrInvalidBenchmarkRuns = errors.New("benchmark runs must be >= 1")

	// Keyword validation errors
	ErrEmptyTerm      = errors.New("keyword term cannot be empty")
	ErrNegativeVolume = errors.New("search volume must be a finite value >= 0")

	// Run errors
	ErrInsufficientData    = errors.New("not enough valid keywords to form a cluster")
	ErrEmbeddingFailed     = errors.New("embedding generation failed")
	ErrInconsistentCluster = errors.New("cluster contains duplicate terms")
)

// ConfigurationError reports an invalid label or setting detected before any
// embedding work starts.
type ConfigurationError struct {
	Field string
	Value any
	Err   error
}

func (e *ConfigurationError) Error() string {
	if e.Value == nil {
		return fmt.Sprintf("configuration error: %s: %v", e.Field, e.Err)
	}
	return fmt.Sprintf("configuration error: %s=%v: %v", e.Field, e.Value, e.Err)
}

func (e *ConfigurationError) Unwrap() error {
	return e.Err
}

// NewConfigurationError builds a ConfigurationError for field.
func NewConfigurationError(field string, value any, err error) *ConfigurationError {
	return &ConfigurationError{Field: field, Value: value, Err: err}
}
