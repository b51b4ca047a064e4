package types

import (
	"math"
	"strings"
)

// Keyword is a research keyword supplied by the caller.
//
// FunnelStage, Position and ArticleName are written by the clusterer when the
// keyword becomes part of an accepted cluster. They are left untouched otherwise.
type Keyword struct {
	// Research data
	Term        string   `json:"term"`
	Volume      float64  `json:"search_volume"`
	CPC         float64  `json:"cpc"`
	Competition float64  `json:"competition"`
	Intent      string   `json:"intent"`
	Score       *float64 `json:"score,omitempty"`

	// Cluster assignment
	FunnelStage string `json:"funnel_stage,omitempty"`
	Position    *int   `json:"cluster_position,omitempty"`
	ArticleName string `json:"article_name,omitempty"`
}

// NormalizedTerm returns the lowercase, trimmed term used for uniqueness checks
func (k *Keyword) NormalizedTerm() string {
	return strings.ToLower(strings.TrimSpace(k.Term))
}

// Validate checks the keyword can take part in clustering
func (k *Keyword) Validate() error {
	if strings.TrimSpace(k.Term) == "" {
		return ErrEmptyTerm
	}
	if k.Volume < 0 || math.IsNaN(k.Volume) || math.IsInf(k.Volume, 0) {
		return ErrNegativeVolume
	}
	return nil
}

// Assign records the cluster placement of the keyword
func (k *Keyword) Assign(stage string, position int) {
	pos := position
	k.FunnelStage = stage
	k.Position = &pos
	k.ArticleName = ArticleName(position)
}

// IsAssigned reports whether the keyword was placed in a cluster
func (k *Keyword) IsAssigned() bool {
	return k.Position != nil
}

// Clone returns a copy that does not share pointer fields with k
func (k *Keyword) Clone() *Keyword {
	c := *k
	if k.Score != nil {
		s := *k.Score
		c.Score = &s
	}
	if k.Position != nil {
		p := *k.Position
		c.Position = &p
	}
	return &c
}
