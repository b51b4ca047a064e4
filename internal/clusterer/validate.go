package clusterer

import (
	"fmt"
	"sort"

	"github.com/dshills/semcluster/pkg/types"
)

// ValidateLabels checks category and domain pass label sanitization
func ValidateLabels(category, domain string) error {
	if !types.ValidateLabel(domain) {
		return types.NewConfigurationError("domain", domain, types.ErrInvalidDomain)
	}
	if !types.ValidateLabel(category) {
		return types.NewConfigurationError("category", category, types.ErrInvalidCategory)
	}
	return nil
}

// prepared is the clusterable input of one run
type prepared struct {
	keywords []*types.Keyword // valid, sorted by volume descending
	warnings []string
}

// prepareKeywords drops invalid keywords, rejects duplicate terms and sorts
// the remainder by search volume, highest first. Equal volumes keep input order.
func (c *Clusterizer) prepareKeywords(keywords []*types.Keyword) (*prepared, error) {
	p := &prepared{keywords: make([]*types.Keyword, 0, len(keywords))}
	seen := make(map[string]int, len(keywords))

	for i, kw := range keywords {
		if kw == nil {
			continue
		}
		if err := kw.Validate(); err != nil {
			msg := c.msgs.droppedKeyword(i, kw.Term, err)
			c.logger.Warn().Int("index", i).Str("term", kw.Term).Err(err).Msg("keyword dropped")
			p.warnings = append(p.warnings, msg)
			continue
		}

		norm := kw.NormalizedTerm()
		if first, ok := seen[norm]; ok {
			return nil, types.NewConfigurationError("keywords", kw.Term,
				fmt.Errorf("%w: %q at positions %d and %d", types.ErrDuplicateTerm, kw.Term, first, i))
		}
		seen[norm] = i
		p.keywords = append(p.keywords, kw)
	}

	sort.SliceStable(p.keywords, func(a, b int) bool {
		return p.keywords[a].Volume > p.keywords[b].Volume
	})

	return p, nil
}

