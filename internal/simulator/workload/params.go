package workload

import (
	"math/rand"

	"github.com/pkg/errors"

	"github.com/sqlsimproject/sqlsim/internal/simulator/configuration"
	"github.com/sqlsimproject/sqlsim/internal/simulator/datagen"
)

// ParamGenerator produces one query parameter per invocation.
type ParamGenerator interface {
	Generate(rng *rand.Rand) any
}

// BuildParamGenerators resolves a query's parameter generators against the
// values captured during data generation. The rng draws the retained subset
// for sample generators.
func BuildParamGenerators(configs []configuration.ParamGeneratorConfig, snapshot *datagen.Snapshot, rng *rand.Rand) ([]ParamGenerator, error) {
	generators := make([]ParamGenerator, len(configs))
	for i, cfg := range configs {
		gen, err := buildParamGenerator(cfg, snapshot, rng)
		if err != nil {
			return nil, err
		}
		generators[i] = gen
	}
	return generators, nil
}

func buildParamGenerator(cfg configuration.ParamGeneratorConfig, snapshot *datagen.Snapshot, rng *rand.Rand) (ParamGenerator, error) {
	switch cfg.Type {
	case configuration.ParamRandomIntFromColumnRange:
		min, max, ok := snapshot.Range(cfg.Table, cfg.Column)
		if !ok {
			return nil, errors.Errorf("no numeric range known for %s.%s", cfg.Table, cfg.Column)
		}
		return &intRangeGenerator{min: min, max: max}, nil

	case configuration.ParamRandomFromColumnSample:
		values := snapshot.Values(cfg.Table, cfg.Column)
		if len(values) == 0 {
			return nil, errors.Errorf("no values captured for %s.%s", cfg.Table, cfg.Column)
		}
		return &sampleGenerator{values: randomSubset(values, cfg.SampleSize, rng)}, nil

	default:
		return nil, errors.Errorf("unknown parameter generator type %q", cfg.Type)
	}
}

// randomSubset retains up to size values drawn at random from the whole
// materialized set, so the sample is not biased towards generation order.
func randomSubset(values []any, size int, rng *rand.Rand) []any {
	if size <= 0 || len(values) <= size {
		return values
	}
	subset := make([]any, 0, size)
	for _, i := range rng.Perm(len(values))[:size] {
		subset = append(subset, values[i])
	}
	return subset
}

// intRangeGenerator draws uniformly from a closed integer interval.
type intRangeGenerator struct {
	min int64
	max int64
}

func (g *intRangeGenerator) Generate(rng *rand.Rand) any {
	return g.min + rng.Int63n(g.max-g.min+1)
}

// sampleGenerator draws from a fixed set of captured values.
type sampleGenerator struct {
	values []any
}

func (g *sampleGenerator) Generate(rng *rand.Rand) any {
	return g.values[rng.Intn(len(g.values))]
}
