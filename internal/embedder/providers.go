package embedder

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"net/http"
	"os"
	"sort"
	"strings"
	"time"
	"unicode"

	"github.com/goccy/go-json"
)

// Provider configuration
const (
	ProviderJina   = "jina"
	ProviderOpenAI = "openai"
	ProviderLocal  = "local"

	// Default models
	DefaultJinaModel   = "jina-embeddings-v3"
	DefaultOpenAIModel = "text-embedding-3-small"
	DefaultLocalModel  = "local-ngram-v1"

	// Endpoints
	JinaEndpoint   = "https://api.jina.ai/v1/embeddings"
	OpenAIEndpoint = "https://api.openai.com/v1/embeddings"

	// Dimensions
	JinaDimension   = 1024
	OpenAIDimension = 1536
	LocalDimension  = 384

	// Batch limits
	DefaultBatchSize = 50
	MaxBatchSize     = 100

	// Retry configuration
	MaxRetries        = 3
	InitialBackoffMs  = 100
	MaxBackoffMs      = 5000
	BackoffMultiplier = 2.0

	requestTimeout = 30 * time.Second
)

// APIError is a non-200 response from a remote embedding API
type APIError struct {
	Provider   string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s api error %d: %s", e.Provider, e.StatusCode, e.Body)
}

// Retryable reports whether the request may succeed when repeated
func (e *APIError) Retryable() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// httpProvider is the request plumbing shared by the OpenAI-compatible APIs
type httpProvider struct {
	name       string
	endpoint   string
	apiKey     string
	model      string
	dimension  int
	httpClient *http.Client
	retry      RetryConfig
}

func newHTTPProvider(name, endpoint, apiKey, envKey, model string, dimension int) (*httpProvider, error) {
	if apiKey == "" {
		apiKey = os.Getenv(envKey)
	}
	if apiKey == "" {
		return nil, fmt.Errorf("%w: %s not set", ErrNoProviderEnabled, envKey)
	}

	return &httpProvider{
		name:       name,
		endpoint:   endpoint,
		apiKey:     apiKey,
		model:      model,
		dimension:  dimension,
		httpClient: &http.Client{Timeout: requestTimeout},
		retry:      DefaultRetryConfig(),
	}, nil
}

func (p *httpProvider) GenerateEmbedding(ctx context.Context, req EmbeddingRequest) (*Embedding, error) {
	if err := ValidateRequest(req); err != nil {
		return nil, err
	}

	resp, err := p.GenerateBatch(ctx, BatchEmbeddingRequest{
		Texts: []string{req.Text},
		Model: req.Model,
	})
	if err != nil {
		return nil, err
	}

	if len(resp.Embeddings) == 0 {
		return nil, fmt.Errorf("%w: no embeddings returned", ErrProviderFailed)
	}

	return resp.Embeddings[0], nil
}

func (p *httpProvider) GenerateBatch(ctx context.Context, req BatchEmbeddingRequest) (*BatchEmbeddingResponse, error) {
	if err := ValidateBatchRequest(req); err != nil {
		return nil, err
	}

	if len(req.Texts) > MaxBatchSize {
		return nil, fmt.Errorf("%w: max %d texts allowed", ErrBatchTooLarge, MaxBatchSize)
	}

	model := req.Model
	if model == "" {
		model = p.model
	}

	embeddings, err := retryWithBackoff(ctx, p.retry, func() ([]*Embedding, error) {
		return p.callAPI(ctx, req.Texts, model)
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrProviderFailed, p.name, err)
	}

	for i, emb := range embeddings {
		emb.Hash = ComputeHash(req.Texts[i])
	}

	return &BatchEmbeddingResponse{
		Embeddings: embeddings,
		Provider:   p.name,
		Model:      model,
	}, nil
}

func (p *httpProvider) callAPI(ctx context.Context, texts []string, model string) ([]*Embedding, error) {
	body, err := json.Marshal(map[string]interface{}{
		"input": texts,
		"model": model,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("api call: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, &APIError{Provider: p.name, StatusCode: resp.StatusCode, Body: string(bodyBytes)}
	}

	var apiResp struct {
		Data []struct {
			Embedding []float32 `json:"embedding"`
			Index     int       `json:"index"`
		} `json:"data"`
		Model string `json:"model"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if len(apiResp.Data) != len(texts) {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrCountMismatch, len(apiResp.Data), len(texts))
	}

	// The APIs may return rows out of order; index is authoritative
	sort.SliceStable(apiResp.Data, func(a, b int) bool {
		return apiResp.Data[a].Index < apiResp.Data[b].Index
	})

	respModel := apiResp.Model
	if respModel == "" {
		respModel = model
	}

	embeddings := make([]*Embedding, len(apiResp.Data))
	for i, data := range apiResp.Data {
		embeddings[i] = &Embedding{
			Vector:    data.Embedding,
			Dimension: len(data.Embedding),
			Provider:  p.name,
			Model:     respModel,
		}
	}

	return embeddings, nil
}

func (p *httpProvider) Dimension() int   { return p.dimension }
func (p *httpProvider) Provider() string { return p.name }
func (p *httpProvider) Model() string    { return p.model }

func (p *httpProvider) Close() error {
	p.httpClient.CloseIdleConnections()
	return nil
}

// JinaProvider implements Embedder using Jina AI API
type JinaProvider struct {
	*httpProvider
}

// NewJinaProvider creates a new Jina AI embedder; an empty key falls back to JINA_API_KEY
func NewJinaProvider(apiKey string) (*JinaProvider, error) {
	p, err := newHTTPProvider(ProviderJina, JinaEndpoint, apiKey, EnvJinaAPIKey, DefaultJinaModel, JinaDimension)
	if err != nil {
		return nil, err
	}
	return &JinaProvider{httpProvider: p}, nil
}

// OpenAIProvider implements Embedder using OpenAI API
type OpenAIProvider struct {
	*httpProvider
}

// NewOpenAIProvider creates a new OpenAI embedder; an empty key falls back to OPENAI_API_KEY
func NewOpenAIProvider(apiKey string) (*OpenAIProvider, error) {
	p, err := newHTTPProvider(ProviderOpenAI, OpenAIEndpoint, apiKey, EnvOpenAIAPIKey, DefaultOpenAIModel, OpenAIDimension)
	if err != nil {
		return nil, err
	}
	return &OpenAIProvider{httpProvider: p}, nil
}

// LocalProvider embeds text offline by hashing word and character n-grams
// into a fixed-size signed vector. Terms sharing words or spelling land close
// together under cosine similarity, which is enough for offline runs and tests.
type LocalProvider struct {
	model     string
	dimension int
}

// NewLocalProvider creates a new local embedder
func NewLocalProvider() (*LocalProvider, error) {
	return &LocalProvider{
		model:     DefaultLocalModel,
		dimension: LocalDimension,
	}, nil
}

func (l *LocalProvider) GenerateEmbedding(ctx context.Context, req EmbeddingRequest) (*Embedding, error) {
	if err := ValidateRequest(req); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	vector := NormalizeVector(l.hashFeatures(req.Text))

	return &Embedding{
		Vector:    vector,
		Dimension: l.dimension,
		Provider:  ProviderLocal,
		Model:     l.model,
		Hash:      ComputeHash(req.Text),
	}, nil
}

func (l *LocalProvider) GenerateBatch(ctx context.Context, req BatchEmbeddingRequest) (*BatchEmbeddingResponse, error) {
	if err := ValidateBatchRequest(req); err != nil {
		return nil, err
	}

	embeddings := make([]*Embedding, len(req.Texts))
	for i, text := range req.Texts {
		emb, err := l.GenerateEmbedding(ctx, EmbeddingRequest{Text: text, Model: req.Model})
		if err != nil {
			return nil, fmt.Errorf("embedding text %d: %w", i, err)
		}
		embeddings[i] = emb
	}

	return &BatchEmbeddingResponse{
		Embeddings: embeddings,
		Provider:   ProviderLocal,
		Model:      l.model,
	}, nil
}

// hashFeatures accumulates word unigrams and character trigrams.
// Words weigh twice as much as trigrams.
func (l *LocalProvider) hashFeatures(text string) []float32 {
	vector := make([]float32, l.dimension)

	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})

	for _, w := range words {
		l.addFeature(vector, "w:"+w, 2)

		runes := []rune(" " + w + " ")
		for i := 0; i+3 <= len(runes); i++ {
			l.addFeature(vector, "c:"+string(runes[i:i+3]), 1)
		}
	}

	return vector
}

func (l *LocalProvider) addFeature(vector []float32, feature string, weight float32) {
	sum := sha256.Sum256([]byte(feature))
	idx := binary.BigEndian.Uint32(sum[:4]) % uint32(l.dimension)
	if sum[4]&1 == 1 {
		weight = -weight
	}
	vector[idx] += weight
}

func (l *LocalProvider) Dimension() int {
	return l.dimension
}

func (l *LocalProvider) Provider() string {
	return ProviderLocal
}

func (l *LocalProvider) Model() string {
	return l.model
}

func (l *LocalProvider) Close() error {
	return nil
}

// NormalizeVector normalizes a vector to unit length (for cosine similarity)
func NormalizeVector(v []float32) []float32 {
	var sum float64
	for _, val := range v {
		sum += float64(val) * float64(val)
	}

	if sum == 0 {
		return v
	}

	norm := float32(math.Sqrt(sum))
	result := make([]float32, len(v))
	for i, val := range v {
		result[i] = val / norm
	}

	return result
}
