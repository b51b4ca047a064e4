package clusterer

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/dshills/semcluster/pkg/types"
)

// ErrSimilarityFailed wraps failures of the configured similarity function
var ErrSimilarityFailed = errors.New("similarity computation failed")

// assembly is the state of one clustering run over sorted keywords
type assembly struct {
	c        *Clusterizer
	ctx      context.Context
	logger   zerolog.Logger
	keywords []*types.Keyword
	vectors  [][]float32
	category string
	domain   string
	result   *types.RunResult
	terms    map[string]struct{} // lowercase terms of accepted clusters
}

func (c *Clusterizer) newAssembly(ctx context.Context, logger zerolog.Logger, keywords []*types.Keyword,
	vectors [][]float32, result *types.RunResult) *assembly {
	return &assembly{
		c:        c,
		ctx:      ctx,
		logger:   logger,
		keywords: keywords,
		vectors:  vectors,
		category: result.Category,
		domain:   result.Domain,
		result:   result,
		terms:    make(map[string]struct{}),
	}
}

// row computes the similarity of head against every keyword
func (a *assembly) row(head int) ([]float64, error) {
	m, err := a.c.similarity(a.vectors[head:head+1], a.vectors)
	if err != nil {
		return nil, fmt.Errorf("%w: head %d: %v", ErrSimilarityFailed, head, err)
	}
	if len(m) != 1 || len(m[0]) != len(a.vectors) {
		return nil, fmt.Errorf("%w: head %d: unexpected result shape", ErrSimilarityFailed, head)
	}
	return m[0], nil
}

// candidates returns the ClusterSize-1 unclaimed keywords most similar to
// head, ties broken by index. Non-finite similarities are not candidates.
// Returns nil when the pool is too small.
func (a *assembly) candidates(head int, row []float64, claimed []bool) []int {
	pool := make([]int, 0, len(row))
	for j, s := range row {
		if j == head || claimed[j] || math.IsNaN(s) || math.IsInf(s, 0) {
			continue
		}
		pool = append(pool, j)
	}

	sort.SliceStable(pool, func(x, y int) bool {
		return row[pool[x]] > row[pool[y]]
	})

	need := a.c.cfg.ClusterSize - 1
	if len(pool) < need {
		return nil
	}
	return pool[:need]
}

func meanSimilarity(row []float64, members []int) float64 {
	if len(members) == 0 {
		return 0
	}
	var sum float64
	for _, m := range members {
		sum += row[m]
	}
	return sum / float64(len(members))
}

// evaluate checks the threshold, diversity and consistency of a candidate
// cluster. Keywords are not modified; accept does that.
func (a *assembly) evaluate(head int, members []int, mean float64) (*types.Cluster, types.DiscardReason, bool) {
	cfg := a.c.cfg

	if mean < cfg.MinSimilarity {
		return nil, types.ReasonLowSimilarity, false
	}

	indices := append([]int{head}, members...)
	kws := make([]*types.Keyword, len(indices))
	for i, idx := range indices {
		kws[i] = a.keywords[idx]
	}

	if cfg.EnforceDiversity {
		for _, kw := range kws {
			if _, taken := a.terms[kw.NormalizedTerm()]; taken {
				return nil, types.ReasonLowSimilarity, false
			}
		}
	}

	cluster := &types.Cluster{
		ID:             uuid.NewString(),
		HeadIndex:      head,
		Keywords:       kws,
		MeanSimilarity: mean,
		Category:       a.category,
		Domain:         a.domain,
		CreatedAt:      time.Now().UTC(),
		Status:         types.ClusterPending,
	}

	if err := cluster.Validate(); err != nil {
		a.logger.Error().Err(err).Str("head", a.keywords[head].Term).Msg("inconsistent cluster discarded")
		return nil, types.ReasonInconsistent, false
	}

	return cluster, "", true
}

// accept writes funnel stage, position and article name into each member
// and records the cluster
func (a *assembly) accept(cluster *types.Cluster) {
	stages := a.c.cfg.FunnelStages
	for pos, kw := range cluster.Keywords {
		kw.Assign(types.FunnelStageFor(stages, pos), pos)
		a.terms[kw.NormalizedTerm()] = struct{}{}
	}
	cluster.FunnelStage = cluster.Keywords[0].FunnelStage
	a.result.Clusters = append(a.result.Clusters, cluster)

	a.logger.Debug().
		Str("cluster_id", cluster.ID).
		Str("head", cluster.Keywords[0].Term).
		Float64("mean_similarity", cluster.MeanSimilarity).
		Msg("cluster accepted")
}

func (a *assembly) discard(head int, reason types.DiscardReason) {
	a.result.Discarded = append(a.result.Discarded, types.DiscardRecord{
		HeadTerm: a.keywords[head].Term,
		Reason:   reason,
	})

	a.logger.Debug().
		Str("head", a.keywords[head].Term).
		Str("reason", string(reason)).
		Msg("cluster discarded")
}

// runSequential draws heads in index order, which over volume-sorted input
// makes the highest-volume unclaimed keyword the next head.
func (a *assembly) runSequential() error {
	cfg := a.c.cfg
	n := len(a.keywords)
	used := make([]bool, n)
	usedCount := 0
	next := 0

	for n-usedCount >= cfg.ClusterSize && !cfg.capReached(len(a.result.Clusters)) {
		if err := a.ctx.Err(); err != nil {
			return err
		}

		for used[next] {
			next++
		}
		head := next

		row, err := a.row(head)
		if err != nil {
			return err
		}

		members := a.candidates(head, row, used)
		if members == nil {
			a.discard(head, types.ReasonInsufficientSimilar)
			used[head] = true
			usedCount++
			continue
		}

		// Head and candidates are consumed whether or not the cluster is accepted
		used[head] = true
		for _, m := range members {
			used[m] = true
		}
		usedCount += len(members) + 1

		cluster, reason, ok := a.evaluate(head, members, meanSimilarity(row, members))
		if !ok {
			a.discard(head, reason)
			continue
		}

		a.accept(cluster)
		a.c.notifyCluster(cluster)
	}

	return nil
}
