package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"
)

// clusterKeywordsTool returns the tool definition for cluster_keywords
func clusterKeywordsTool() mcp.Tool {
	return mcp.Tool{
		Name:        "cluster_keywords",
		Description: "Group research keywords into fixed-size semantic clusters ready for content planning",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"keywords": map[string]interface{}{
					"type":        "array",
					"description": "Keywords to cluster. Items are objects or plain term strings.",
					"items": map[string]interface{}{
						"oneOf": []interface{}{
							map[string]interface{}{"type": "string"},
							map[string]interface{}{
								"type": "object",
								"properties": map[string]interface{}{
									"term":          map[string]interface{}{"type": "string"},
									"search_volume": map[string]interface{}{"type": "number", "minimum": 0},
									"cpc":           map[string]interface{}{"type": "number"},
									"competition":   map[string]interface{}{"type": "number"},
									"intent":        map[string]interface{}{"type": "string"},
									"score":         map[string]interface{}{"type": "number"},
								},
								"required": []string{"term"},
							},
						},
					},
				},
				"category": map[string]interface{}{
					"type":        "string",
					"description": "Category label (letters, digits, spaces, . _ -; max 100 chars)",
				},
				"domain": map[string]interface{}{
					"type":        "string",
					"description": "Domain label, same rules as category",
				},
				"parallel": map[string]interface{}{
					"type":        "boolean",
					"description": "Assemble clusters on a worker pool; output order is not deterministic",
					"default":     false,
				},
				"persist": map[string]interface{}{
					"type":        "boolean",
					"description": "Save the run to the history store",
					"default":     true,
				},
			},
			Required: []string{"keywords", "category", "domain"},
		},
	}
}

// getRunTool returns the tool definition for get_run
func getRunTool() mcp.Tool {
	return mcp.Tool{
		Name:        "get_run",
		Description: "Fetch a stored clustering run with its clusters and discards",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"execution_id": map[string]interface{}{
					"type":        "string",
					"description": "Execution id returned by cluster_keywords",
				},
			},
			Required: []string{"execution_id"},
		},
	}
}

// listRunsTool returns the tool definition for list_runs
func listRunsTool() mcp.Tool {
	return mcp.Tool{
		Name:        "list_runs",
		Description: "List stored clustering runs, newest first",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"category": map[string]interface{}{
					"type":        "string",
					"description": "Only runs with this category",
				},
				"domain": map[string]interface{}{
					"type":        "string",
					"description": "Only runs with this domain",
				},
				"limit": map[string]interface{}{
					"type":        "integer",
					"description": "Maximum number of runs to return (1-100)",
					"default":     20,
					"minimum":     1,
					"maximum":     100,
				},
			},
		},
	}
}

// exportRunTool returns the tool definition for export_run
func exportRunTool() mcp.Tool {
	return mcp.Tool{
		Name:        "export_run",
		Description: "Write the clustered keywords of a stored run to CSV and/or JSON files",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"execution_id": map[string]interface{}{
					"type":        "string",
					"description": "Run to export",
				},
				"client": map[string]interface{}{
					"type":        "string",
					"description": "Client label, first directory level",
				},
				"niche": map[string]interface{}{
					"type":        "string",
					"description": "Niche label, second directory level",
				},
				"formats": map[string]interface{}{
					"type":        "array",
					"description": "Output formats",
					"items": map[string]interface{}{
						"type": "string",
						"enum": []string{"csv", "json"},
					},
					"default": []string{"csv", "json"},
				},
			},
			Required: []string{"execution_id", "client", "niche"},
		},
	}
}

// updateClusterStatusTool returns the tool definition for update_cluster_status
func updateClusterStatusTool() mcp.Tool {
	return mcp.Tool{
		Name:        "update_cluster_status",
		Description: "Record the content generation status of a stored cluster",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"cluster_id": map[string]interface{}{
					"type":        "string",
					"description": "Cluster id",
				},
				"status": map[string]interface{}{
					"type": "string",
					"enum": []string{"pending", "generated", "failed"},
				},
			},
			Required: []string{"cluster_id", "status"},
		},
	}
}

// clearCacheTool returns the tool definition for clear_cache
func clearCacheTool() mcp.Tool {
	return mcp.Tool{
		Name:        "clear_cache",
		Description: "Drop all cached keyword embeddings",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}
}

// getStatusTool returns the tool definition for get_status
func getStatusTool() mcp.Tool {
	return mcp.Tool{
		Name:        "get_status",
		Description: "Report run history statistics, embedding cache counters and active settings",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}
}
