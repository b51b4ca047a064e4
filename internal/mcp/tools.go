package mcp

import (
	"context"
	"errors"
	"fmt"
	"math"
	"path/filepath"
	"strings"

	"github.com/goccy/go-json"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/dshills/semcluster/internal/exporter"
	"github.com/dshills/semcluster/internal/storage"
	"github.com/dshills/semcluster/pkg/types"
)

// MCP error codes
const (
	ErrorCodeInvalidParams   = -32602 // Invalid method parameters
	ErrorCodeInternalError   = -32603 // Internal JSON-RPC error
	ErrorCodeRunNotFound     = -32001 // No stored run with that execution id
	ErrorCodeClusterNotFound = -32002 // No stored cluster with that id
	ErrorCodeInvalidKeywords = -32003 // Keyword list failed validation
	ErrorCodeNothingToExport = -32004 // Run has no clustered keywords
)

const (
	DefaultListRunsLimit = 20
	maxListRunsLimit     = 100
)

// handleClusterKeywords handles the cluster_keywords tool invocation
func (s *Server) handleClusterKeywords(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	keywords, err := parseKeywords(args["keywords"])
	if err != nil {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid keywords", map[string]interface{}{
			"param":  "keywords",
			"reason": err.Error(),
		})
	}

	category, ok := args["category"].(string)
	if !ok || category == "" {
		return nil, newMCPError(ErrorCodeInvalidParams, "category parameter is required", map[string]interface{}{
			"param":  "category",
			"reason": "missing or empty",
		})
	}
	domain, ok := args["domain"].(string)
	if !ok || domain == "" {
		return nil, newMCPError(ErrorCodeInvalidParams, "domain parameter is required", map[string]interface{}{
			"param":  "domain",
			"reason": "missing or empty",
		})
	}

	parallel := getBoolDefault(args, "parallel", false)
	persist := getBoolDefault(args, "persist", true)

	result, err := s.clusterer.GenerateClusters(ctx, keywords, category, domain, parallel)
	if err != nil {
		var cfgErr *types.ConfigurationError
		if errors.As(err, &cfgErr) {
			return nil, newMCPError(ErrorCodeInvalidKeywords, cfgErr.Error(), map[string]interface{}{
				"param":  cfgErr.Field,
				"reason": cfgErr.Err.Error(),
			})
		}
		return nil, newMCPError(ErrorCodeInternalError, "clustering failed", map[string]interface{}{
			"error": err.Error(),
		})
	}

	response := result.ToMap()
	if persist {
		if err := s.storage.SaveRun(ctx, result); err != nil {
			s.logger.Error().Err(err).Str("execution_id", result.ExecutionID).Msg("failed to save run")
			response["persisted"] = false
		} else {
			response["persisted"] = true
		}
	}

	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleGetRun handles the get_run tool invocation
func (s *Server) handleGetRun(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	id, err := requireString(args, "execution_id")
	if err != nil {
		return nil, err
	}

	run, err := s.storage.GetRun(ctx, id)
	if err != nil {
		return nil, storageError(err, ErrorCodeRunNotFound, "execution_id", id)
	}

	return mcp.NewToolResultText(formatJSON(run.ToMap())), nil
}

// handleListRuns handles the list_runs tool invocation
func (s *Server) handleListRuns(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		args = map[string]interface{}{}
	}

	limit := getIntDefault(args, "limit", DefaultListRunsLimit)
	if limit < 1 || limit > maxListRunsLimit {
		return nil, newMCPError(ErrorCodeInvalidParams, "limit must be between 1 and 100", map[string]interface{}{
			"param": "limit",
			"value": limit,
		})
	}

	runs, err := s.storage.ListRuns(ctx, storage.RunFilter{
		Category: getStringDefault(args, "category", ""),
		Domain:   getStringDefault(args, "domain", ""),
		Limit:    limit,
	})
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "failed to list runs", map[string]interface{}{
			"error": err.Error(),
		})
	}

	items := make([]interface{}, len(runs))
	for i, r := range runs {
		item := map[string]interface{}{
			"execution_id":    r.ExecutionID,
			"category":        r.Category,
			"domain":          r.Domain,
			"model":           r.Model,
			"parallel":        r.Parallel,
			"cluster_count":   r.ClusterCount,
			"discard_count":   r.DiscardCount,
			"elapsed_seconds": r.Elapsed.Seconds(),
			"created_at":      r.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
		}
		if r.Error != "" {
			item["error"] = r.Error
		}
		items[i] = item
	}

	return mcp.NewToolResultText(formatJSON(map[string]interface{}{
		"count": len(items),
		"runs":  items,
	})), nil
}

// handleExportRun handles the export_run tool invocation
func (s *Server) handleExportRun(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	id, err := requireString(args, "execution_id")
	if err != nil {
		return nil, err
	}
	client, err := requireString(args, "client")
	if err != nil {
		return nil, err
	}
	niche, err := requireString(args, "niche")
	if err != nil {
		return nil, err
	}

	var formats []exporter.Format
	if raw, ok := args["formats"].([]interface{}); ok {
		for _, item := range raw {
			name, _ := item.(string)
			f, err := exporter.ParseFormat(name)
			if err != nil {
				return nil, newMCPError(ErrorCodeInvalidParams, "invalid format", map[string]interface{}{
					"param":   "formats",
					"value":   item,
					"allowed": []string{string(exporter.FormatCSV), string(exporter.FormatJSON)},
				})
			}
			formats = append(formats, f)
		}
	}

	run, err := s.storage.GetRun(ctx, id)
	if err != nil {
		return nil, storageError(err, ErrorCodeRunNotFound, "execution_id", id)
	}

	paths, err := s.exporter.ExportRun(ctx, run, client, niche, formats...)
	switch {
	case errors.Is(err, exporter.ErrInvalidLabel):
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid export label", map[string]interface{}{
			"reason": err.Error(),
		})
	case errors.Is(err, exporter.ErrNoKeywords):
		return nil, newMCPError(ErrorCodeNothingToExport, "run has no clustered keywords", map[string]interface{}{
			"execution_id": id,
		})
	case err != nil:
		return nil, newMCPError(ErrorCodeInternalError, "export failed", map[string]interface{}{
			"error": err.Error(),
		})
	}

	for _, path := range paths {
		format := strings.TrimPrefix(filepath.Ext(path), ".")
		if err := s.storage.RecordExport(ctx, &storage.Export{ExecutionID: id, Path: path, Format: format}); err != nil {
			s.logger.Error().Err(err).Str("path", path).Msg("failed to record export")
		}
	}

	return mcp.NewToolResultText(formatJSON(map[string]interface{}{
		"execution_id": id,
		"files":        paths,
	})), nil
}

// handleUpdateClusterStatus handles the update_cluster_status tool invocation
func (s *Server) handleUpdateClusterStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	id, err := requireString(args, "cluster_id")
	if err != nil {
		return nil, err
	}
	raw, err := requireString(args, "status")
	if err != nil {
		return nil, err
	}

	status := types.ClusterStatus(raw)
	if !status.Valid() {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid status", map[string]interface{}{
			"param":   "status",
			"value":   raw,
			"allowed": []string{string(types.ClusterPending), string(types.ClusterGenerated), string(types.ClusterFailed)},
		})
	}

	if err := s.storage.UpdateClusterStatus(ctx, id, status); err != nil {
		return nil, storageError(err, ErrorCodeClusterNotFound, "cluster_id", id)
	}

	return mcp.NewToolResultText(formatJSON(map[string]interface{}{
		"cluster_id": id,
		"status":     string(status),
	})), nil
}

// handleClearCache handles the clear_cache tool invocation
func (s *Server) handleClearCache(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	before := s.clusterer.CacheStats()
	s.clusterer.ClearCache()

	return mcp.NewToolResultText(formatJSON(map[string]interface{}{
		"cleared_entries": before.Entries,
	})), nil
}

// handleGetStatus handles the get_status tool invocation
func (s *Server) handleGetStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	status, err := s.storage.GetStatus(ctx)
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "failed to get status", map[string]interface{}{
			"error": err.Error(),
		})
	}

	byStatus := make(map[string]interface{}, len(status.ClustersByStatus))
	for st, n := range status.ClustersByStatus {
		byStatus[string(st)] = n
	}

	history := map[string]interface{}{
		"runs_count":         status.RunsCount,
		"clusters_count":     status.ClustersCount,
		"discards_count":     status.DiscardsCount,
		"exports_count":      status.ExportsCount,
		"clusters_by_status": byStatus,
		"database_size_mb":   fmt.Sprintf("%.2f", status.DatabaseSizeMB),
		"schema_version":     status.SchemaVersion,
		"build_mode":         status.BuildMode,
	}
	if !status.LastRunAt.IsZero() {
		history["last_run_at"] = status.LastRunAt.Format("2006-01-02T15:04:05Z07:00")
	}

	cache := s.clusterer.CacheStats()
	cfg := s.clusterer.Config()

	response := map[string]interface{}{
		"history": history,
		"cache": map[string]interface{}{
			"hits":         cache.Hits,
			"misses":       cache.Misses,
			"computations": cache.Computations,
			"entries":      cache.Entries,
		},
		"settings": map[string]interface{}{
			"model":             cfg.Model,
			"cluster_size":      cfg.ClusterSize,
			"min_similarity":    cfg.MinSimilarity,
			"max_clusters":      cfg.MaxClusters,
			"workers":           cfg.Workers,
			"enforce_diversity": cfg.EnforceDiversity,
			"locale":            cfg.Locale,
		},
		"health": map[string]interface{}{
			"database_accessible": status.Health.DatabaseAccessible,
			"schema_current":      status.Health.SchemaCurrent,
		},
	}

	return mcp.NewToolResultText(formatJSON(response)), nil
}

// Helper functions

// newMCPError creates a properly formatted MCP error
func newMCPError(code int, message string, data interface{}) error {
	// MCP errors are returned as regular errors, the framework handles encoding
	return &MCPError{
		Code:    code,
		Message: message,
		Data:    data,
	}
}

// MCPError represents an MCP protocol error
type MCPError struct {
	Code    int
	Message string
	Data    interface{}
}

func (e *MCPError) Error() string {
	return fmt.Sprintf("MCP error %d: %s", e.Code, e.Message)
}

// storageError maps storage.ErrNotFound to notFoundCode
func storageError(err error, notFoundCode int, param, value string) error {
	if errors.Is(err, storage.ErrNotFound) {
		return newMCPError(notFoundCode, fmt.Sprintf("%s not found", param), map[string]interface{}{
			"param": param,
			"value": value,
		})
	}
	return newMCPError(ErrorCodeInternalError, "storage operation failed", map[string]interface{}{
		"error": err.Error(),
	})
}

// parseKeywords converts tool arguments into keywords. Items may be plain
// term strings or objects using the Keyword JSON field names.
func parseKeywords(raw interface{}) ([]*types.Keyword, error) {
	items, ok := raw.([]interface{})
	if !ok {
		return nil, ErrKeywordsRequired
	}
	if len(items) == 0 {
		return nil, ErrKeywordsRequired
	}

	keywords := make([]*types.Keyword, 0, len(items))
	for i, item := range items {
		switch v := item.(type) {
		case string:
			keywords = append(keywords, &types.Keyword{Term: v})
		case map[string]interface{}:
			term, ok := v["term"].(string)
			if !ok {
				return nil, fmt.Errorf("%w: item %d", ErrKeywordTermMissing, i)
			}
			kw := &types.Keyword{
				Term:        term,
				Volume:      getFloatDefault(v, "search_volume", 0),
				CPC:         getFloatDefault(v, "cpc", 0),
				Competition: getFloatDefault(v, "competition", 0),
				Intent:      getStringDefault(v, "intent", ""),
			}
			if score, ok := v["score"].(float64); ok && !math.IsNaN(score) {
				kw.Score = &score
			}
			keywords = append(keywords, kw)
		default:
			return nil, fmt.Errorf("%w: item %d has type %T", ErrKeywordType, i, item)
		}
	}
	return keywords, nil
}

// requireString extracts a non-empty string parameter
func requireString(args map[string]interface{}, key string) (string, error) {
	v, ok := args[key].(string)
	if !ok || v == "" {
		return "", newMCPError(ErrorCodeInvalidParams, key+" parameter is required", map[string]interface{}{
			"param":  key,
			"reason": "missing or empty",
		})
	}
	return v, nil
}

// formatJSON formats a map as indented JSON
func formatJSON(data map[string]interface{}) string {
	bytes, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", data)
	}
	return string(bytes)
}

// getBoolDefault extracts a boolean parameter with a default value
func getBoolDefault(args map[string]interface{}, key string, defaultValue bool) bool {
	if val, ok := args[key].(bool); ok {
		return val
	}
	return defaultValue
}

// getIntDefault extracts an integer parameter with a default value
func getIntDefault(args map[string]interface{}, key string, defaultValue int) int {
	if val, ok := args[key].(float64); ok {
		return int(val)
	}
	if val, ok := args[key].(int); ok {
		return val
	}
	return defaultValue
}

// getFloatDefault extracts a number parameter with a default value
func getFloatDefault(args map[string]interface{}, key string, defaultValue float64) float64 {
	switch val := args[key].(type) {
	case float64:
		return val
	case int:
		return float64(val)
	}
	return defaultValue
}

// getStringDefault extracts a string parameter with a default value
func getStringDefault(args map[string]interface{}, key string, defaultValue string) string {
	if val, ok := args[key].(string); ok {
		return val
	}
	return defaultValue
}

// Validation helpers

var (
	ErrKeywordsRequired   = errors.New("keywords must be a non-empty array")
	ErrKeywordTermMissing = errors.New("keyword object needs a string term")
	ErrKeywordType        = errors.New("keyword must be a string or an object")
)
