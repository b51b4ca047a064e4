package types

import (
	"math"
	"time"
)

// Report summarizes a clustering run
type Report struct {
	ClusterCount   int                   `json:"cluster_count"`
	DiscardCount   int                   `json:"discard_count"`
	DiscardReasons map[DiscardReason]int `json:"discard_reasons"`
	Heatmap        [][]float64           `json:"heatmap,omitempty"` // Full pairwise similarity matrix
}

// RunResult is the outcome of one clustering invocation.
//
// A RunResult with zero clusters is a valid outcome; callers should inspect
// Discarded, Warnings and Error before treating a run as successful.
type RunResult struct {
	// Identification
	ExecutionID string `json:"execution_id"`
	Category    string `json:"category"`
	Domain      string `json:"domain"`
	Model       string `json:"model"`
	Parallel    bool   `json:"parallel"`

	// Output
	Clusters  []*Cluster      `json:"clusters"`
	Discarded []DiscardRecord `json:"discarded"`
	Report    Report          `json:"report"`

	// Diagnostics
	Elapsed  time.Duration `json:"elapsed_ns"`
	Warnings []string      `json:"warnings,omitempty"`
	Error    string        `json:"error,omitempty"`
}

// NewRunResult returns an empty result ready to be filled by a run
func NewRunResult(executionID, category, domain, model string, parallel bool) *RunResult {
	return &RunResult{
		ExecutionID: executionID,
		Category:    category,
		Domain:      domain,
		Model:       model,
		Parallel:    parallel,
		Clusters:    make([]*Cluster, 0),
		Discarded:   make([]DiscardRecord, 0),
		Report: Report{
			DiscardReasons: make(map[DiscardReason]int),
		},
	}
}

// Failed reports whether the run aborted with an error
func (r *RunResult) Failed() bool {
	return r.Error != ""
}

// Finalize recomputes the report counters from the clusters and discards
func (r *RunResult) Finalize() {
	r.Report.ClusterCount = len(r.Clusters)
	r.Report.DiscardCount = len(r.Discarded)
	reasons := make(map[DiscardReason]int)
	for _, d := range r.Discarded {
		reasons[d.Reason]++
	}
	r.Report.DiscardReasons = reasons
}

// ToMap converts the result into nested maps and slices containing only JSON
// primitives. Non-finite similarity values become nil.
func (r *RunResult) ToMap() map[string]any {
	clusters := make([]any, len(r.Clusters))
	for i, c := range r.Clusters {
		clusters[i] = clusterToMap(c)
	}

	discarded := make([]any, len(r.Discarded))
	for i, d := range r.Discarded {
		discarded[i] = map[string]any{
			"head_term": d.HeadTerm,
			"reason":    string(d.Reason),
		}
	}

	reasons := make(map[string]any, len(r.Report.DiscardReasons))
	for reason, count := range r.Report.DiscardReasons {
		reasons[string(reason)] = count
	}

	report := map[string]any{
		"cluster_count":   r.Report.ClusterCount,
		"discard_count":   r.Report.DiscardCount,
		"discard_reasons": reasons,
	}
	if r.Report.Heatmap != nil {
		rows := make([]any, len(r.Report.Heatmap))
		for i, row := range r.Report.Heatmap {
			cells := make([]any, len(row))
			for j, v := range row {
				cells[j] = finiteOrNil(v)
			}
			rows[i] = cells
		}
		report["heatmap"] = rows
	}

	out := map[string]any{
		"execution_id":    r.ExecutionID,
		"category":        r.Category,
		"domain":          r.Domain,
		"model":           r.Model,
		"parallel":        r.Parallel,
		"clusters":        clusters,
		"discarded":       discarded,
		"elapsed_seconds": r.Elapsed.Seconds(),
		"report":          report,
	}
	if len(r.Warnings) > 0 {
		warnings := make([]any, len(r.Warnings))
		for i, w := range r.Warnings {
			warnings[i] = w
		}
		out["warnings"] = warnings
	}
	if r.Error != "" {
		out["error"] = r.Error
	}
	return out
}

func clusterToMap(c *Cluster) map[string]any {
	keywords := make([]any, len(c.Keywords))
	for i, kw := range c.Keywords {
		keywords[i] = KeywordToMap(kw)
	}
	return map[string]any{
		"id":              c.ID,
		"head_index":      c.HeadIndex,
		"keywords":        keywords,
		"mean_similarity": finiteOrNil(c.MeanSimilarity),
		"funnel_stage":    c.FunnelStage,
		"category":        c.Category,
		"domain":          c.Domain,
		"created_at":      c.CreatedAt.UTC().Format(time.RFC3339Nano),
		"status":          string(c.Status),
	}
}

// KeywordToMap converts a keyword into a JSON-safe map
func KeywordToMap(kw *Keyword) map[string]any {
	m := map[string]any{
		"term":          kw.Term,
		"search_volume": kw.Volume,
		"cpc":           kw.CPC,
		"competition":   kw.Competition,
		"intent":        kw.Intent,
	}
	if kw.Score != nil {
		m["score"] = finiteOrNil(*kw.Score)
	}
	if kw.Position != nil {
		m["cluster_position"] = *kw.Position
		m["funnel_stage"] = kw.FunnelStage
		m["article_name"] = kw.ArticleName
	}
	return m
}

func finiteOrNil(v float64) any {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return v
}
