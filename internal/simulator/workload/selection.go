// Package workload drives weighted, parameterized query traffic against the
// populated schema.
package workload

import (
	"math/rand"

	"github.com/pkg/errors"

	"github.com/sqlsimproject/sqlsim/internal/simulator/configuration"
)

// weightedPicker selects queries at random in proportion to their weights.
type weightedPicker struct {
	queries    []configuration.QueryConfig
	thresholds []int
	total      int
}

func newWeightedPicker(queries []configuration.QueryConfig) (*weightedPicker, error) {
	if len(queries) == 0 {
		return nil, errors.New("no queries to pick from")
	}
	p := &weightedPicker{
		queries:    queries,
		thresholds: make([]int, len(queries)),
	}
	for i, q := range queries {
		if q.Weight < 1 {
			return nil, errors.Errorf("query %q has non-positive weight %d", q.Name, q.Weight)
		}
		p.total += q.Weight
		p.thresholds[i] = p.total
	}
	return p, nil
}

// Pick returns one query drawn with probability weight/totalWeight.
func (p *weightedPicker) Pick(rng *rand.Rand) configuration.QueryConfig {
	n := rng.Intn(p.total)
	for i, threshold := range p.thresholds {
		if n < threshold {
			return p.queries[i]
		}
	}
	return p.queries[len(p.queries)-1]
}
