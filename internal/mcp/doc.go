// Package mcp implements the Model Context Protocol (MCP) server for semcluster.
//
// The server exposes these tools to AI assistants:
//   - cluster_keywords: group research keywords into semantic clusters
//   - get_run: fetch a stored run
//   - list_runs: list stored runs, newest first
//   - export_run: write a run's clustered keywords to CSV and/or JSON
//   - update_cluster_status: mark a cluster pending, generated or failed
//   - clear_cache: drop cached keyword embeddings
//   - get_status: history statistics, cache counters and active settings
//
// # Protocol Overview
//
// MCP is a JSON-RPC 2.0 protocol over stdio transport. Stdout is reserved for
// protocol messages; logs go to stderr.
//
// # Tool: cluster_keywords
//
//	Request:
//	{
//	  "name": "cluster_keywords",
//	  "arguments": {
//	    "keywords": [
//	      {"term": "tenis corrida", "search_volume": 9900, "intent": "comercial"},
//	      "tenis corrida feminino"
//	    ],
//	    "category": "calcados",
//	    "domain": "example.com",
//	    "parallel": false
//	  }
//	}
//
//	Response:
//	{
//	  "execution_id": "7c1f...",
//	  "clusters": [
//	    {
//	      "id": "...",
//	      "mean_similarity": 0.91,
//	      "keywords": [{"term": "tenis corrida", "funnel_stage": "awareness", "article_name": "Artigo1", ...}]
//	    }
//	  ],
//	  "discarded": [{"head_term": "...", "reason": "similares insuficientes"}],
//	  "report": {"cluster_count": 1, "discard_count": 1, "discard_reasons": {...}},
//	  "persisted": true
//	}
//
// A run that forms no cluster is not an error: inspect "discarded",
// "warnings" and "error" in the response.
//
// # MCP Client Configuration
//
//	{
//	  "mcpServers": {
//	    "semcluster": {
//	      "command": "/usr/local/bin/semcluster",
//	      "env": {
//	        "SEMCLUSTER_EMBEDDING_PROVIDER": "jina",
//	        "JINA_API_KEY": "your-api-key"
//	      }
//	    }
//	  }
//	}
//
// # Error Handling
//
// Error codes:
//   - -32602: Invalid params (missing or malformed arguments)
//   - -32603: Internal error (database, filesystem, etc.)
//   - -32001: Run not found
//   - -32002: Cluster not found
//   - -32003: Keywords or labels rejected by the clusterer
//   - -32004: Run has no clustered keywords to export
package mcp
