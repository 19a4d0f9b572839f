package recommend

import (
	"time"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
	"github.com/pkg/errors"

	"github.com/sqlsimproject/sqlsim/internal/common/logging"
	"github.com/sqlsimproject/sqlsim/internal/simulator/configuration"
	"github.com/sqlsimproject/sqlsim/internal/simulator/metrics"
)

type compiledHeuristic struct {
	config  configuration.HeuristicConfig
	program *vm.Program
}

// Engine holds the compiled heuristics of a run. Conditions are compiled once
// at construction so that a syntactically invalid rule fails the run before
// any traffic is generated.
type Engine struct {
	heuristics []compiledHeuristic
}

// NewEngine compiles every configured heuristic.
func NewEngine(config configuration.RecommendationConfig) (*Engine, error) {
	engine := &Engine{}
	for _, h := range config.Heuristics {
		// Row shapes are unknown until samples arrive, so variables stay
		// unchecked here; a reference to an absent field evaluates to nil.
		program, err := expr.Compile(h.Condition, expr.AllowUndefinedVariables(), expr.AsBool())
		if err != nil {
			return nil, errors.Wrapf(err, "compiling condition of heuristic %s", h.Name)
		}
		engine.heuristics = append(engine.heuristics, compiledHeuristic{config: h, program: program})
	}
	return engine, nil
}

// Evaluate runs every heuristic against the latest snapshot of its target
// metric and returns the triggered recommendations. Evaluation is pure: the
// same samples always yield the same recommendations.
func (e *Engine) Evaluate(samples []metrics.DBMSSample, now time.Time) []metrics.Recommendation {
	latest := latestSnapshots(samples)

	var recommendations []metrics.Recommendation
	for _, h := range e.heuristics {
		rows := latest[h.config.DMV]
		if len(rows) == 0 {
			logging.WithField("heuristic", h.config.Name).
				Debugf("No samples collected for metric %s, skipping", h.config.DMV)
			continue
		}
		for _, sample := range rows {
			triggered, err := e.evaluateRow(h, sample.Row)
			if err != nil {
				logging.WithError(err).WithField("heuristic", h.config.Name).
					Warn("Condition evaluation failed, row skipped")
				continue
			}
			if !triggered {
				continue
			}
			recommendations = append(recommendations, metrics.Recommendation{
				Timestamp: now,
				Heuristic: h.config.Name,
				Metric:    h.config.DMV,
				Text:      RenderTemplate(h.config.RecommendationTemplate, sample.Row),
			})
		}
	}
	return recommendations
}

func (e *Engine) evaluateRow(h compiledHeuristic, row map[string]any) (bool, error) {
	output, err := expr.Run(h.program, row)
	if err != nil {
		return false, err
	}
	triggered, ok := output.(bool)
	if !ok {
		return false, errors.Errorf("condition returned %T, expected bool", output)
	}
	return triggered, nil
}

// latestSnapshots returns, per metric, the rows of its most recent poll.
// Samples arrive in chronological order, so the last snapshot ID seen per
// metric identifies the latest poll.
func latestSnapshots(samples []metrics.DBMSSample) map[string][]metrics.DBMSSample {
	latestID := map[string]string{}
	for _, s := range samples {
		latestID[s.Metric] = s.SnapshotID
	}

	result := map[string][]metrics.DBMSSample{}
	for _, s := range samples {
		if s.SnapshotID == latestID[s.Metric] {
			result[s.Metric] = append(result[s.Metric], s)
		}
	}
	return result
}
