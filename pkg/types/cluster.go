package types

import (
	"fmt"
	"time"
)

// ClusterStatus tracks content generation for a cluster
type ClusterStatus string

const (
	ClusterPending   ClusterStatus = "pending"
	ClusterGenerated ClusterStatus = "generated"
	ClusterFailed    ClusterStatus = "failed"
)

// Valid reports whether s is a known status
func (s ClusterStatus) Valid() bool {
	switch s {
	case ClusterPending, ClusterGenerated, ClusterFailed:
		return true
	default:
		return false
	}
}

// DiscardReason is the reason code attached to a failed cluster attempt.
// The codes are stable wire values shared with downstream consumers.
type DiscardReason string

const (
	ReasonInsufficientSimilar DiscardReason = "similares insuficientes"
	ReasonLowSimilarity       DiscardReason = "similaridade/diversidade baixa"
	ReasonInconsistent        DiscardReason = "cluster inconsistente"
)

// DefaultFunnelStages is the ordered stage vocabulary assigned to cluster
// members by position. It is cycled when a cluster has more members.
var DefaultFunnelStages = []string{
	"awareness",
	"interest",
	"consideration",
	"intent",
	"evaluation",
	"decision",
}

// FunnelStageFor returns the stage label for a zero-based member position
func FunnelStageFor(stages []string, position int) string {
	if len(stages) == 0 {
		return ""
	}
	return stages[position%len(stages)]
}

// ArticleName returns the generated article name for a zero-based position
func ArticleName(position int) string {
	return fmt.Sprintf("Artigo%d", position+1)
}

// Cluster is a fixed-size group of semantically related keywords
type Cluster struct {
	// Identification
	ID        string `json:"id"`
	HeadIndex int    `json:"head_index"` // Index of the head in the volume-sorted input

	// Members
	Keywords []*Keyword `json:"keywords"`

	// Scoring and labels
	MeanSimilarity float64 `json:"mean_similarity"`
	FunnelStage    string  `json:"funnel_stage"`
	Category       string  `json:"category"`
	Domain         string  `json:"domain"`

	// Lifecycle
	CreatedAt time.Time     `json:"created_at"`
	Status    ClusterStatus `json:"status"`
}

// Terms returns the member terms in cluster order
func (c *Cluster) Terms() []string {
	terms := make([]string, len(c.Keywords))
	for i, kw := range c.Keywords {
		terms[i] = kw.Term
	}
	return terms
}

// Validate checks that no two members share a lowercase term
func (c *Cluster) Validate() error {
	seen := make(map[string]struct{}, len(c.Keywords))
	for _, kw := range c.Keywords {
		term := kw.NormalizedTerm()
		if _, ok := seen[term]; ok {
			return fmt.Errorf("%w: %q", ErrInconsistentCluster, term)
		}
		seen[term] = struct{}{}
	}
	return nil
}

// DiscardRecord describes a head keyword that failed to form a cluster
type DiscardRecord struct {
	HeadTerm string        `json:"head_term"`
	Reason   DiscardReason `json:"reason"`
}
