package clusterer

import (
	"context"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/dshills/semcluster/pkg/types"
)

// claimSet tracks keywords consumed by committed attempts in parallel mode
type claimSet struct {
	mu      sync.Mutex
	claimed []bool
	count   int
}

func (s *claimSet) claimLocked(indices ...int) {
	for _, i := range indices {
		if !s.claimed[i] {
			s.claimed[i] = true
			s.count++
		}
	}
}

// runParallel submits every head as an independent unit of work.
//
// Units select candidates against a snapshot of the claimed set taken when
// they start, so two units may speculate over overlapping pools. Only the
// commit is serialized: the later of two overlapping clusters fails the
// diversity check there. Pools are not mutually exclusive between running
// units; accepted output is, when diversity is enforced. Append order
// depends on scheduling. A ClusterCallback may run concurrently.
func (a *assembly) runParallel() error {
	n := len(a.keywords)
	claims := &claimSet{claimed: make([]bool, n)}

	var started, skipped atomic.Int32
	semaphore := make(chan struct{}, a.c.cfg.Workers)
	g, gctx := errgroup.WithContext(a.ctx)

submit:
	for head := 0; head < n; head++ {
		if a.capReached(claims) {
			break
		}

		select {
		case semaphore <- struct{}{}:
		case <-gctx.Done():
			break submit
		}

		g.Go(func() error {
			defer func() { <-semaphore }()
			started.Add(1)
			ran, err := a.unit(gctx, claims, head)
			if !ran {
				skipped.Add(1)
			}
			return err
		})
	}

	err := g.Wait()
	if err == nil {
		err = a.ctx.Err()
	}

	a.logger.Debug().
		Int32("units", started.Load()).
		Int32("skipped", skipped.Load()).
		Int("workers", a.c.cfg.Workers).
		Msg("parallel assembly finished")

	return err
}

func (a *assembly) capReached(claims *claimSet) bool {
	claims.mu.Lock()
	defer claims.mu.Unlock()
	return a.c.cfg.capReached(len(a.result.Clusters))
}

// unit builds one speculative cluster around head and commits it.
// It reports whether it got past the snapshot stage.
func (a *assembly) unit(ctx context.Context, claims *claimSet, head int) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	cfg := a.c.cfg

	claims.mu.Lock()
	if claims.claimed[head] || cfg.capReached(len(a.result.Clusters)) ||
		len(claims.claimed)-claims.count < cfg.ClusterSize {
		claims.mu.Unlock()
		return false, nil
	}
	snapshot := make([]bool, len(claims.claimed))
	copy(snapshot, claims.claimed)
	claims.mu.Unlock()

	row, err := a.row(head)
	if err != nil {
		return true, err
	}

	members := a.candidates(head, row, snapshot)
	var mean float64
	if members != nil {
		mean = meanSimilarity(row, members)
	}

	claims.mu.Lock()
	if cfg.capReached(len(a.result.Clusters)) {
		claims.mu.Unlock()
		return true, nil
	}

	if members == nil {
		a.discard(head, types.ReasonInsufficientSimilar)
		claims.claimLocked(head)
		claims.mu.Unlock()
		return true, nil
	}

	claims.claimLocked(head)
	claims.claimLocked(members...)

	cluster, reason, ok := a.evaluate(head, members, mean)
	if !ok {
		a.discard(head, reason)
		claims.mu.Unlock()
		return true, nil
	}
	a.accept(cluster)
	claims.mu.Unlock()

	a.c.notifyCluster(cluster)
	return true, nil
}
