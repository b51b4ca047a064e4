// Package types provides shared type definitions for the semcluster keyword clusterer.
//
// This package defines the domain types used across the clusterer, the run
// history store, the exporter and the MCP tool surface.
//
// # Core Types
//
// Keyword is a research keyword supplied by the caller. The clusterer writes the
// funnel stage, position and article name fields when the keyword lands in an
// accepted cluster:
//
//	kw := &types.Keyword{
//	    Term:   "running shoes",
//	    Volume: 12000,
//	    CPC:    1.35,
//	    Intent: "commercial",
//	}
//
// Cluster is a fixed-size group of keywords built around a head keyword:
//
//	cluster.Keywords[0].ArticleName // "Artigo1"
//	cluster.FunnelStage             // stage of the first member
//	cluster.Status                  // types.ClusterPending
//
// RunResult bundles the accepted clusters, the discard audit trail and a report.
// ToMap converts it into JSON primitives for callers that need a plain structure.
//
// # Discard Reasons
//
// Failed cluster attempts are recorded with a stable reason code:
//
//	types.ReasonInsufficientSimilar // "similares insuficientes"
//	types.ReasonLowSimilarity       // "similaridade/diversidade baixa"
//	types.ReasonInconsistent        // "cluster inconsistente"
//
// # Errors
//
// Configuration problems are returned as *ConfigurationError wrapping a sentinel:
//
//	var cfgErr *types.ConfigurationError
//	if errors.As(err, &cfgErr) && errors.Is(err, types.ErrInvalidDomain) {
//	    // reject the request
//	}
package types
