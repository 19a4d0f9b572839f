package recommend

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sqlsimproject/sqlsim/internal/simulator/configuration"
	"github.com/sqlsimproject/sqlsim/internal/simulator/metrics"
)

func indexUsageConfig() configuration.RecommendationConfig {
	return configuration.RecommendationConfig{
		Heuristics: []configuration.HeuristicConfig{
			{
				Name:                   "unused_index",
				DMV:                    "index_usage",
				Condition:              "idx_scan == 0",
				RecommendationTemplate: "Index {relname} was never scanned; consider dropping it.",
			},
		},
	}
}

func sample(metric, snapshotID string, ts time.Time, row map[string]any) metrics.DBMSSample {
	return metrics.DBMSSample{Timestamp: ts, Metric: metric, SnapshotID: snapshotID, Row: row}
}

func TestNewEngine_RejectsInvalidCondition(t *testing.T) {
	_, err := NewEngine(configuration.RecommendationConfig{
		Heuristics: []configuration.HeuristicConfig{
			{Name: "broken", DMV: "m", Condition: "idx_scan ==", RecommendationTemplate: "x"},
		},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broken")
}

func TestEngine_TriggersOnMatchingRows(t *testing.T) {
	engine, err := NewEngine(indexUsageConfig())
	require.NoError(t, err)

	now := time.Date(2026, 8, 23, 17, 0, 0, 0, time.UTC)
	samples := []metrics.DBMSSample{
		sample("index_usage", "snap-1", now, map[string]any{"relname": "IX_Posts_UserID", "idx_scan": 0}),
		sample("index_usage", "snap-1", now, map[string]any{"relname": "IX_Users_Username", "idx_scan": 12}),
	}

	recommendations := engine.Evaluate(samples, now)
	require.Len(t, recommendations, 1)
	assert.Equal(t, "unused_index", recommendations[0].Heuristic)
	assert.Equal(t, "index_usage", recommendations[0].Metric)
	assert.Equal(t, "Index IX_Posts_UserID was never scanned; consider dropping it.", recommendations[0].Text)
}

func TestEngine_UsesOnlyLatestSnapshot(t *testing.T) {
	engine, err := NewEngine(indexUsageConfig())
	require.NoError(t, err)

	now := time.Now().UTC()
	samples := []metrics.DBMSSample{
		// Older poll: index unused at the time.
		sample("index_usage", "snap-1", now.Add(-time.Minute), map[string]any{"relname": "IX_Posts_UserID", "idx_scan": 0}),
		// Latest poll: index was used.
		sample("index_usage", "snap-2", now, map[string]any{"relname": "IX_Posts_UserID", "idx_scan": 3}),
	}

	assert.Empty(t, engine.Evaluate(samples, now))
}

func TestEngine_NoSamplesYieldsNoRecommendations(t *testing.T) {
	engine, err := NewEngine(indexUsageConfig())
	require.NoError(t, err)

	assert.Empty(t, engine.Evaluate(nil, time.Now()))
}

func TestEngine_EvaluationIsDeterministic(t *testing.T) {
	engine, err := NewEngine(indexUsageConfig())
	require.NoError(t, err)

	now := time.Now().UTC()
	samples := []metrics.DBMSSample{
		sample("index_usage", "snap-1", now, map[string]any{"relname": "a", "idx_scan": 0}),
		sample("index_usage", "snap-1", now, map[string]any{"relname": "b", "idx_scan": 0}),
	}

	first := engine.Evaluate(samples, now)
	second := engine.Evaluate(samples, now)
	assert.Equal(t, first, second)
	assert.Len(t, first, 2)
}

func TestEngine_RowWithoutConditionFieldDoesNotTrigger(t *testing.T) {
	engine, err := NewEngine(indexUsageConfig())
	require.NoError(t, err)

	now := time.Now().UTC()
	samples := []metrics.DBMSSample{
		sample("index_usage", "snap-1", now, map[string]any{"relname": "a"}),
	}

	// idx_scan is absent so the condition compares nil == 0, which is false.
	assert.Empty(t, engine.Evaluate(samples, now))
}

func TestRenderTemplate(t *testing.T) {
	row := map[string]any{"relname": "IX_Posts_UserID", "idx_scan": 0}

	assert.Equal(t,
		"Index IX_Posts_UserID has idx_scan=0.",
		RenderTemplate("Index {relname} has idx_scan={idx_scan}.", row))

	// Unknown references stay verbatim.
	assert.Equal(t,
		"Value {missing} not found.",
		RenderTemplate("Value {missing} not found.", row))

	// Templates without references pass through unchanged.
	assert.Equal(t, "static text", RenderTemplate("static text", row))
}
