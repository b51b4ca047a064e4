package embedder

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"
)

// Common errors
var (
	ErrInvalidInput        = errors.New("invalid input")
	ErrProviderFailed      = errors.New("embedding provider failed")
	ErrUnsupportedModel    = errors.New("unsupported model")
	ErrEmptyText           = errors.New("text cannot be empty")
	ErrBatchTooLarge       = errors.New("batch size exceeds limit")
	ErrNoProviderEnabled   = errors.New("no embedding provider configured")
	ErrCountMismatch       = errors.New("embedding count does not match input count")
	ErrDimensionMismatch   = errors.New("embeddings have inconsistent dimensions")
	ErrEmptyEmbeddingValue = errors.New("provider returned an empty vector")
)

// Embedding represents a vector embedding with metadata
type Embedding struct {
	Vector    []float32
	Dimension int
	Provider  string
	Model     string
	Hash      string // Content hash of the embedded text
}

// EmbeddingRequest represents a request to generate embeddings
type EmbeddingRequest struct {
	Text  string
	Model string // Optional: override default model
}

// BatchEmbeddingRequest represents a batch request
type BatchEmbeddingRequest struct {
	Texts []string
	Model string // Optional: override default model
}

// BatchEmbeddingResponse represents a batch response
type BatchEmbeddingResponse struct {
	Embeddings []*Embedding
	Provider   string
	Model      string
}

// Embedder interface defines methods for generating embeddings
type Embedder interface {
	// GenerateEmbedding generates a single embedding for the given text
	GenerateEmbedding(ctx context.Context, req EmbeddingRequest) (*Embedding, error)

	// GenerateBatch generates embeddings for multiple texts efficiently
	GenerateBatch(ctx context.Context, req BatchEmbeddingRequest) (*BatchEmbeddingResponse, error)

	// Dimension returns the embedding dimension for this provider
	Dimension() int

	// Provider returns the provider name
	Provider() string

	// Model returns the model name
	Model() string

	// Close releases any resources held by the embedder
	Close() error
}

// EmbedFunc maps terms to one vector per term for the given model id.
// Implementations must be deterministic for identical input so results can be cached.
type EmbedFunc func(ctx context.Context, terms []string, model string) ([][]float32, error)

// BatchEmbedFunc adapts an Embedder into an EmbedFunc that splits the terms
// into provider-sized batches and checks the returned shape.
func BatchEmbedFunc(e Embedder, batchSize int) EmbedFunc {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	if batchSize > MaxBatchSize {
		batchSize = MaxBatchSize
	}

	return func(ctx context.Context, terms []string, model string) ([][]float32, error) {
		if len(terms) == 0 {
			return nil, fmt.Errorf("%w: no terms provided", ErrInvalidInput)
		}

		vectors := make([][]float32, 0, len(terms))
		for start := 0; start < len(terms); start += batchSize {
			end := start + batchSize
			if end > len(terms) {
				end = len(terms)
			}

			resp, err := e.GenerateBatch(ctx, BatchEmbeddingRequest{
				Texts: terms[start:end],
				Model: model,
			})
			if err != nil {
				return nil, fmt.Errorf("batch %d-%d: %w", start, end, err)
			}
			if len(resp.Embeddings) != end-start {
				return nil, fmt.Errorf("%w: got %d, want %d", ErrCountMismatch, len(resp.Embeddings), end-start)
			}
			for _, emb := range resp.Embeddings {
				vectors = append(vectors, emb.Vector)
			}
		}

		if err := checkShape(vectors, len(terms)); err != nil {
			return nil, err
		}
		return vectors, nil
	}
}

// checkShape verifies a provider result is a non-empty n×d matrix
func checkShape(vectors [][]float32, n int) error {
	if len(vectors) != n {
		return fmt.Errorf("%w: got %d, want %d", ErrCountMismatch, len(vectors), n)
	}
	if n == 0 {
		return nil
	}
	dim := len(vectors[0])
	if dim == 0 {
		return ErrEmptyEmbeddingValue
	}
	for i, v := range vectors {
		if len(v) != dim {
			return fmt.Errorf("%w: row %d has %d, want %d", ErrDimensionMismatch, i, len(v), dim)
		}
	}
	return nil
}

// CacheStats reports cache effectiveness
type CacheStats struct {
	Hits         int64
	Misses       int64
	Computations int64 // Number of times the underlying EmbedFunc ran
	Entries      int
}

// cacheEntry holds the vectors of one term set in canonical (sorted) order
type cacheEntry struct {
	index   map[string]int
	vectors [][]float32
}

// Cache memoizes EmbedFunc results keyed by the term set and model id.
//
// The key ignores term order: a permuted request hits the same entry and gets
// its vectors re-aligned to the requested order. With maxEntries <= 0 the
// cache grows without bound for the lifetime of its owner.
type Cache struct {
	bounded *lru.Cache[string, *cacheEntry]

	mu        sync.RWMutex
	unbounded map[string]*cacheEntry

	group singleflight.Group

	hits         atomic.Int64
	misses       atomic.Int64
	computations atomic.Int64
}

// NewCache creates a term-set cache; maxEntries <= 0 disables eviction
func NewCache(maxEntries int) *Cache {
	c := &Cache{}
	if maxEntries > 0 {
		cache, err := lru.New[string, *cacheEntry](maxEntries)
		if err == nil {
			c.bounded = cache
			return c
		}
	}
	c.unbounded = make(map[string]*cacheEntry)
	return c
}

// GetOrCompute returns the vectors for terms, calling compute only on a miss.
// Failed computations are not cached.
func (c *Cache) GetOrCompute(ctx context.Context, terms []string, model string, compute EmbedFunc) ([][]float32, error) {
	if len(terms) == 0 {
		return nil, fmt.Errorf("%w: no terms provided", ErrInvalidInput)
	}

	canonical := canonicalTerms(terms)
	key := CacheKey(canonical, model)

	if entry, ok := c.load(key); ok {
		c.hits.Add(1)
		return entry.project(terms), nil
	}
	c.misses.Add(1)

	// The shared computation outlives any single caller; each caller only
	// stops waiting when its own context ends.
	shared := context.WithoutCancel(ctx)
	ch := c.group.DoChan(key, func() (interface{}, error) {
		if entry, ok := c.load(key); ok {
			return entry, nil
		}

		c.computations.Add(1)
		vectors, err := compute(shared, canonical, model)
		if err != nil {
			return nil, err
		}
		if err := checkShape(vectors, len(canonical)); err != nil {
			return nil, err
		}

		entry := newCacheEntry(canonical, vectors)
		c.store(key, entry)
		return entry, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*cacheEntry).project(terms), nil
	}
}

// Get returns cached vectors for terms without computing
func (c *Cache) Get(terms []string, model string) ([][]float32, bool) {
	if len(terms) == 0 {
		return nil, false
	}
	entry, ok := c.load(CacheKey(canonicalTerms(terms), model))
	if !ok {
		return nil, false
	}
	return entry.project(terms), true
}

// Len returns the number of cached term sets
func (c *Cache) Len() int {
	if c.bounded != nil {
		return c.bounded.Len()
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.unbounded)
}

// Clear empties the cache and resets its counters
func (c *Cache) Clear() {
	if c.bounded != nil {
		c.bounded.Purge()
	} else {
		c.mu.Lock()
		c.unbounded = make(map[string]*cacheEntry)
		c.mu.Unlock()
	}
	c.hits.Store(0)
	c.misses.Store(0)
	c.computations.Store(0)
}

// Stats returns a snapshot of the cache counters
func (c *Cache) Stats() CacheStats {
	return CacheStats{
		Hits:         c.hits.Load(),
		Misses:       c.misses.Load(),
		Computations: c.computations.Load(),
		Entries:      c.Len(),
	}
}

func (c *Cache) load(key string) (*cacheEntry, bool) {
	if c.bounded != nil {
		return c.bounded.Get(key)
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	entry, ok := c.unbounded[key]
	return entry, ok
}

func (c *Cache) store(key string, entry *cacheEntry) {
	if c.bounded != nil {
		c.bounded.Add(key, entry)
		return
	}
	c.mu.Lock()
	c.unbounded[key] = entry
	c.mu.Unlock()
}

func newCacheEntry(canonical []string, vectors [][]float32) *cacheEntry {
	entry := &cacheEntry{
		index:   make(map[string]int, len(canonical)),
		vectors: make([][]float32, len(vectors)),
	}
	for i, term := range canonical {
		entry.index[term] = i
		entry.vectors[i] = copyVector(vectors[i])
	}
	return entry
}

// project returns deep copies of the vectors in the order of terms
func (e *cacheEntry) project(terms []string) [][]float32 {
	out := make([][]float32, len(terms))
	for i, term := range terms {
		out[i] = copyVector(e.vectors[e.index[term]])
	}
	return out
}

func copyVector(v []float32) []float32 {
	c := make([]float32, len(v))
	copy(c, v)
	return c
}

// canonicalTerms returns the sorted, de-duplicated term set
func canonicalTerms(terms []string) []string {
	set := make(map[string]struct{}, len(terms))
	for _, t := range terms {
		set[t] = struct{}{}
	}
	out := make([]string, 0, len(set))
	for t := range set {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// CacheKey derives the order-independent key of a term set and model id
func CacheKey(terms []string, model string) string {
	canonical := canonicalTerms(terms)
	return ComputeHash(strings.Join(canonical, "\x1f") + "\x1e" + model)
}

// ComputeHash computes SHA-256 hash of text for caching
func ComputeHash(text string) string {
	h := sha256.Sum256([]byte(text))
	return hex.EncodeToString(h[:])
}

// ValidateRequest validates an embedding request
func ValidateRequest(req EmbeddingRequest) error {
	if req.Text == "" {
		return ErrEmptyText
	}
	return nil
}

// ValidateBatchRequest validates a batch embedding request
func ValidateBatchRequest(req BatchEmbeddingRequest) error {
	if len(req.Texts) == 0 {
		return fmt.Errorf("%w: no texts provided", ErrInvalidInput)
	}

	for i, text := range req.Texts {
		if text == "" {
			return fmt.Errorf("%w: text at index %d is empty", ErrInvalidInput, i)
		}
	}

	return nil
}
