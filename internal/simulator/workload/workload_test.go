package workload

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sqlsimproject/sqlsim/internal/simulator/configuration"
	"github.com/sqlsimproject/sqlsim/internal/simulator/datagen"
	"github.com/sqlsimproject/sqlsim/internal/simulator/db"
	"github.com/sqlsimproject/sqlsim/internal/simulator/metrics"
)

// memoryRecorder collects query results in memory for assertions.
type memoryRecorder struct {
	mu      sync.Mutex
	results []metrics.QueryResult
}

func (r *memoryRecorder) RecordQueryResult(result metrics.QueryResult) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.results = append(r.results, result)
	return nil
}

func (r *memoryRecorder) all() []metrics.QueryResult {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]metrics.QueryResult{}, r.results...)
}

func testSnapshot() *datagen.Snapshot {
	index := datagen.NewReferenceIndex()
	index.SetRange("Users", "UserID", 1, 100)
	index.Add("Users", "Username", "alice", "bob", "carol")
	return index.Snapshot()
}

func fastWorkload(queries ...configuration.QueryConfig) configuration.WorkloadConfig {
	return configuration.WorkloadConfig{
		Name:            "test",
		DurationSeconds: 1,
		Concurrency:     2,
		ThinkTimeMinMs:  1,
		ThinkTimeMaxMs:  2,
		Queries:         queries,
	}
}

func TestWeightedPicker_ConvergesToWeights(t *testing.T) {
	picker, err := newWeightedPicker([]configuration.QueryConfig{
		{Name: "heavy", Weight: 5},
		{Name: "light", Weight: 1},
	})
	require.NoError(t, err)

	rng := rand.New(rand.NewSource(1))
	counts := map[string]int{}
	const draws = 60000
	for i := 0; i < draws; i++ {
		counts[picker.Pick(rng).Name]++
	}

	heavyShare := float64(counts["heavy"]) / draws
	assert.InDelta(t, 5.0/6.0, heavyShare, 0.02)
	assert.Positive(t, counts["light"])
}

func TestWeightedPicker_RejectsBadWeights(t *testing.T) {
	_, err := newWeightedPicker(nil)
	require.Error(t, err)

	_, err = newWeightedPicker([]configuration.QueryConfig{{Name: "q", Weight: 0}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "non-positive weight")
}

func TestBuildParamGenerators(t *testing.T) {
	snapshot := testSnapshot()
	rng := rand.New(rand.NewSource(1))

	gens, err := BuildParamGenerators([]configuration.ParamGeneratorConfig{
		{Type: configuration.ParamRandomIntFromColumnRange, Table: "Users", Column: "UserID"},
		{Type: configuration.ParamRandomFromColumnSample, Table: "Users", Column: "Username", SampleSize: 2},
	}, snapshot, rng)
	require.NoError(t, err)
	require.Len(t, gens, 2)

	for i := 0; i < 100; i++ {
		n := gens[0].Generate(rng).(int64)
		assert.GreaterOrEqual(t, n, int64(1))
		assert.LessOrEqual(t, n, int64(100))

		s := gens[1].Generate(rng).(string)
		assert.Contains(t, []string{"alice", "bob", "carol"}, s)
	}
}

func TestBuildParamGenerators_MissingData(t *testing.T) {
	empty := datagen.NewReferenceIndex().Snapshot()
	rng := rand.New(rand.NewSource(1))

	_, err := BuildParamGenerators([]configuration.ParamGeneratorConfig{
		{Type: configuration.ParamRandomIntFromColumnRange, Table: "Users", Column: "UserID"},
	}, empty, rng)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no numeric range known")

	_, err = BuildParamGenerators([]configuration.ParamGeneratorConfig{
		{Type: configuration.ParamRandomFromColumnSample, Table: "Users", Column: "Username"},
	}, empty, rng)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no values captured")
}

func TestSampleGenerator_DrawsFromWholeColumn(t *testing.T) {
	index := datagen.NewReferenceIndex()
	for i := 0; i < 1000; i++ {
		index.Add("Users", "Username", fmt.Sprintf("user%04d", i))
	}

	rng := rand.New(rand.NewSource(1))
	gens, err := BuildParamGenerators([]configuration.ParamGeneratorConfig{
		{Type: configuration.ParamRandomFromColumnSample, Table: "Users", Column: "Username", SampleSize: 100},
	}, index.Snapshot(), rng)
	require.NoError(t, err)
	require.Len(t, gens, 1)

	earliest := map[string]bool{}
	for i := 0; i < 100; i++ {
		earliest[fmt.Sprintf("user%04d", i)] = true
	}

	var beyond int
	for i := 0; i < 1000; i++ {
		if !earliest[gens[0].Generate(rng).(string)] {
			beyond++
		}
	}
	// A sample restricted to the first generated values would never draw past
	// them; a random subset of 100 out of 1000 almost surely does.
	assert.Positive(t, beyond)
}

func TestExecutor_RecordsResults(t *testing.T) {
	database := db.NewMemoryDatabase()
	database.RegisterQueryHandler(`FROM "Users"`, func(_ context.Context, params ...any) ([]db.Row, error) {
		return []db.Row{{"UserID": params[0]}}, nil
	})
	recorder := &memoryRecorder{}
	executor := NewExecutor(database, recorder, testSnapshot(), 1)

	cfg := fastWorkload(configuration.QueryConfig{
		Name:     "GetUserByID",
		Template: `SELECT * FROM "Users" WHERE "UserID" = $1`,
		Weight:   1,
		ParamGenerators: []configuration.ParamGeneratorConfig{
			{Type: configuration.ParamRandomIntFromColumnRange, Table: "Users", Column: "UserID"},
		},
	})

	require.NoError(t, executor.RunWorkload(context.Background(), context.Background(), cfg))

	results := recorder.all()
	require.NotEmpty(t, results)
	for _, r := range results {
		assert.Equal(t, "test", r.Workload)
		assert.Equal(t, "GetUserByID", r.Query)
		assert.True(t, r.Succeeded)
		assert.Equal(t, 1, r.Rows)
	}
}

func TestExecutor_ContinuesAfterQueryFailure(t *testing.T) {
	database := db.NewMemoryDatabase()
	var calls int
	var mu sync.Mutex
	database.RegisterQueryHandler("SELECT", func(_ context.Context, params ...any) ([]db.Row, error) {
		mu.Lock()
		defer mu.Unlock()
		calls++
		if calls%2 == 1 {
			return nil, errors.New("deadlock detected")
		}
		return []db.Row{}, nil
	})
	recorder := &memoryRecorder{}
	executor := NewExecutor(database, recorder, testSnapshot(), 1)

	cfg := fastWorkload(configuration.QueryConfig{Name: "Flaky", Template: "SELECT 1", Weight: 1})
	require.NoError(t, executor.RunWorkload(context.Background(), context.Background(), cfg))

	results := recorder.all()
	require.NotEmpty(t, results)

	var failed, succeeded int
	for _, r := range results {
		if r.Succeeded {
			succeeded++
		} else {
			failed++
			assert.Contains(t, r.Error, "deadlock")
		}
	}
	assert.Positive(t, failed)
	assert.Positive(t, succeeded)
}

func TestExecutor_StopsOnCancellation(t *testing.T) {
	recorder := &memoryRecorder{}
	executor := NewExecutor(db.NewMemoryDatabase(), recorder, testSnapshot(), 1)

	cfg := fastWorkload(configuration.QueryConfig{Name: "Noop", Template: "SELECT 1", Weight: 1})
	cfg.DurationSeconds = 60

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- executor.RunWorkload(ctx, context.Background(), cfg) }()

	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("workload did not stop after cancellation")
	}
}

func TestExecutor_FinishesInFlightQueryOnStop(t *testing.T) {
	database := db.NewMemoryDatabase()
	started := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	database.RegisterQueryHandler("SELECT", func(ctx context.Context, params ...any) ([]db.Row, error) {
		once.Do(func() { close(started) })
		select {
		case <-release:
			return []db.Row{{"n": int64(1)}}, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	})
	recorder := &memoryRecorder{}
	executor := NewExecutor(database, recorder, testSnapshot(), 1)

	cfg := fastWorkload(configuration.QueryConfig{Name: "Slow", Template: "SELECT pg_sleep(1)", Weight: 1})
	cfg.Concurrency = 1
	cfg.DurationSeconds = 60

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- executor.RunWorkload(ctx, context.Background(), cfg) }()

	// Stop the workload while the first query is still on the wire, then let
	// the query return.
	<-started
	cancel()
	close(release)

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("workload did not stop after cancellation")
	}

	results := recorder.all()
	require.NotEmpty(t, results)
	assert.True(t, results[0].Succeeded)
	assert.Equal(t, 1, results[0].Rows)
}

func TestExecutor_AbandonsQueryWhenQueryContextExpires(t *testing.T) {
	database := db.NewMemoryDatabase()
	started := make(chan struct{})
	var once sync.Once
	database.RegisterQueryHandler("SELECT", func(ctx context.Context, params ...any) ([]db.Row, error) {
		once.Do(func() { close(started) })
		<-ctx.Done()
		return nil, ctx.Err()
	})
	recorder := &memoryRecorder{}
	executor := NewExecutor(database, recorder, testSnapshot(), 1)

	cfg := fastWorkload(configuration.QueryConfig{Name: "Hung", Template: "SELECT pg_sleep(600)", Weight: 1})
	cfg.Concurrency = 1
	cfg.DurationSeconds = 60

	ctx, cancel := context.WithCancel(context.Background())
	queryCtx, abandon := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- executor.RunWorkload(ctx, queryCtx, cfg) }()

	<-started
	cancel()
	abandon()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("workload did not stop after abandonment")
	}

	// The abandoned query must not surface as a recorded failure.
	assert.Empty(t, recorder.all())
}

func TestExecutor_RunAllSkipsDisabledWorkloads(t *testing.T) {
	recorder := &memoryRecorder{}
	executor := NewExecutor(db.NewMemoryDatabase(), recorder, testSnapshot(), 1)

	disabled := false
	workloads := []configuration.WorkloadConfig{
		fastWorkload(configuration.QueryConfig{Name: "Active", Template: "SELECT 1", Weight: 1}),
	}
	off := fastWorkload(configuration.QueryConfig{Name: "Dormant", Template: "SELECT 2", Weight: 1})
	off.Name = "disabled"
	off.Enabled = &disabled
	workloads = append(workloads, off)

	require.NoError(t, executor.RunAll(context.Background(), context.Background(), workloads))

	for _, r := range recorder.all() {
		assert.NotEqual(t, "Dormant", r.Query)
	}
}
