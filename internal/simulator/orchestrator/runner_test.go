package orchestrator

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sqlsimproject/sqlsim/internal/common/logging"
	"github.com/sqlsimproject/sqlsim/internal/simulator/configuration"
	"github.com/sqlsimproject/sqlsim/internal/simulator/metrics"
)

func testConfig(t *testing.T) *configuration.Config {
	t.Helper()
	return &configuration.Config{
		Database: configuration.DatabaseConfig{InMemory: true},
		Schema: configuration.SchemaConfig{
			Tables: []configuration.TableConfig{
				{
					Name:     "Users",
					RowCount: 50,
					Columns: []configuration.ColumnConfig{
						{Name: "UserID", Type: "INT", PrimaryKey: true, Identity: true},
						{Name: "Username", Type: "VARCHAR", Length: 50, Unique: true, Generator: "username"},
					},
				},
				{
					Name:     "Posts",
					RowCount: 100,
					Columns: []configuration.ColumnConfig{
						{Name: "PostID", Type: "INT", PrimaryKey: true, Identity: true},
						{Name: "UserID", Type: "INT", ForeignKey: &configuration.ForeignKeyConfig{Table: "Users", Column: "UserID"}},
						{Name: "Body", Type: "TEXT", Generator: "sentence"},
					},
				},
			},
		},
		Workloads: []configuration.WorkloadConfig{
			{
				Name:            "Simple_User_Lookups",
				Kind:            "OLTP",
				DurationSeconds: 1,
				Concurrency:     2,
				ThinkTimeMinMs:  1,
				ThinkTimeMaxMs:  2,
				Queries: []configuration.QueryConfig{
					{
						Name:     "GetUserByID",
						Template: `SELECT * FROM "Users" WHERE "UserID" = $1`,
						Weight:   5,
						ParamGenerators: []configuration.ParamGeneratorConfig{
							{Type: configuration.ParamRandomIntFromColumnRange, Table: "Users", Column: "UserID", SampleSize: 100},
						},
					},
					{
						Name:     "GetUserByUsername",
						Template: `SELECT * FROM "Users" WHERE "Username" = $1`,
						Weight:   3,
						ParamGenerators: []configuration.ParamGeneratorConfig{
							{Type: configuration.ParamRandomFromColumnSample, Table: "Users", Column: "Username", SampleSize: 100},
						},
					},
				},
			},
		},
		Monitoring: configuration.MonitoringConfig{
			OSMetrics:                 []string{configuration.OSMetricMemoryPercent},
			MonitoringIntervalSeconds: 1,
			DBMSMetrics: []configuration.DBMSMetricConfig{
				{Name: "index_usage", Query: "SELECT relname, idx_scan FROM pg_stat_user_indexes", FrequencySeconds: 1},
			},
		},
		Recommendation: configuration.RecommendationConfig{
			Heuristics: []configuration.HeuristicConfig{
				{
					Name:                   "unused_index",
					DMV:                    "index_usage",
					Condition:              "idx_scan == 0",
					RecommendationTemplate: "Index {relname} was never scanned; consider dropping it.",
				},
			},
		},
		Parameters: configuration.SimulationParameters{
			GlobalDurationSeconds:      5,
			DataGenerationBatchSize:    25,
			RecreateSchemaOnRun:        true,
			OutputDirectory:            t.TempDir(),
			ShutdownGracePeriodSeconds: 5,
			RandomSeed:                 1,
		},
		Logging: logging.DefaultConfig(),
	}
}

func runDir(t *testing.T, outputDir string) string {
	t.Helper()
	entries, err := os.ReadDir(outputDir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	return filepath.Join(outputDir, entries[0].Name())
}

func TestRunner_CompletesEndToEnd(t *testing.T) {
	config := testConfig(t)
	runner := NewRunner(config)

	require.NoError(t, runner.Run(context.Background()))
	assert.Equal(t, StateComplete, runner.State())

	dir := runDir(t, config.Parameters.OutputDirectory)
	for _, name := range []string{metrics.QueryResultsFile, "simulation.log"} {
		_, err := os.Stat(filepath.Join(dir, name))
		assert.NoError(t, err, "expected %s in run directory", name)
	}
}

func TestRunner_GlobalDurationBoundsWorkloads(t *testing.T) {
	config := testConfig(t)
	// Workload asks for far longer than the global ceiling allows.
	config.Workloads[0].DurationSeconds = 60
	config.Parameters.GlobalDurationSeconds = 1

	runner := NewRunner(config)
	start := time.Now()
	require.NoError(t, runner.Run(context.Background()))
	elapsed := time.Since(start)

	assert.Equal(t, StateComplete, runner.State())
	assert.Less(t, elapsed, 10*time.Second)
}

func TestRunner_CancellationStopsRun(t *testing.T) {
	config := testConfig(t)
	config.Workloads[0].DurationSeconds = 60
	config.Parameters.GlobalDurationSeconds = 60

	runner := NewRunner(config)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- runner.Run(ctx) }()

	time.Sleep(500 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(15 * time.Second):
		t.Fatal("run did not stop after cancellation")
	}
}

func TestRunner_FailsOnBadHeuristic(t *testing.T) {
	config := testConfig(t)
	config.Recommendation.Heuristics[0].Condition = "idx_scan =="

	runner := NewRunner(config)
	require.Error(t, runner.Run(context.Background()))
	assert.Equal(t, StateFailed, runner.State())
}

func TestSummarize(t *testing.T) {
	results := []metrics.QueryResult{
		{Workload: "w", Query: "a", Duration: 10 * time.Millisecond, Succeeded: true},
		{Workload: "w", Query: "a", Duration: 30 * time.Millisecond, Succeeded: false},
		{Workload: "w", Query: "b", Duration: 5 * time.Millisecond, Succeeded: true},
	}

	summaries := Summarize(results)
	require.Len(t, summaries, 2)

	assert.Equal(t, "a", summaries[0].Query)
	assert.Equal(t, 2, summaries[0].Count)
	assert.Equal(t, 1, summaries[0].Failures)
	assert.Equal(t, 20*time.Millisecond, summaries[0].AvgDuration())
	assert.Equal(t, 10*time.Millisecond, summaries[0].MinDuration)
	assert.Equal(t, 30*time.Millisecond, summaries[0].MaxDuration)

	assert.Equal(t, "b", summaries[1].Query)
}

func TestSummarize_Empty(t *testing.T) {
	assert.Empty(t, Summarize(nil))
}
