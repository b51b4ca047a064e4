// Package clusterer groups research keywords into fixed-size semantic clusters.
//
// # Basic Usage
//
//	cfg := clusterer.DefaultConfig()
//	cfg.ClusterSize = 6
//	cfg.MinSimilarity = 0.6
//
//	c, err := clusterer.New(cfg, clusterer.WithEmbedder(emb))
//	if err != nil {
//	    return err
//	}
//	defer c.Close()
//
//	result, err := c.GenerateClusters(ctx, keywords, "running", "example.com", false)
//	if err != nil {
//	    // *types.ConfigurationError: bad labels or duplicate terms
//	}
//	for _, cl := range result.Clusters {
//	    fmt.Println(cl.FunnelStage, cl.Terms())
//	}
//
// # Pipeline
//
//  1. Validate the domain and category labels
//  2. Drop keywords with empty terms or negative volume (warning)
//  3. Reject duplicate terms, compared case-insensitively
//  4. Stop with a warning if fewer keywords than ClusterSize remain
//  5. Sort by search volume, highest first (stable)
//  6. Embed all terms through the instance cache
//  7. Build the full similarity heatmap when IncludeHeatmap is set
//  8. Assemble clusters sequentially or in parallel
//
// # Assembly
//
// The highest-volume unclaimed keyword becomes the head. Its ClusterSize-1
// most similar unclaimed keywords are the candidates. The head and its
// candidates are consumed whether the attempt is accepted or not. An attempt
// is discarded when:
//
//   - fewer candidates with a finite similarity exist ("similares insuficientes")
//   - the mean head-to-candidate similarity is below MinSimilarity, or a
//     member term already belongs to an accepted cluster while
//     EnforceDiversity is set ("similaridade/diversidade baixa")
//
// Members of accepted clusters get a funnel stage, a position and an article
// name written into the caller's Keyword values.
//
// # Parallel Mode
//
// Every head is a unit of work on a bounded worker pool. Units speculate over
// a snapshot of the claimed set and only the commit is serialized, so
// overlapping candidate pools lose at the diversity check rather than being
// prevented up front. Accepted output stays disjoint with EnforceDiversity;
// its order is not deterministic.
//
// # Hooks
//
// WithClusterCallback runs for each accepted cluster and WithMonitor once per
// run. Errors and panics from either are logged and ignored.
package clusterer
