package workload

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/sqlsimproject/sqlsim/internal/common/logging"
	"github.com/sqlsimproject/sqlsim/internal/simulator/configuration"
	"github.com/sqlsimproject/sqlsim/internal/simulator/datagen"
	"github.com/sqlsimproject/sqlsim/internal/simulator/db"
	"github.com/sqlsimproject/sqlsim/internal/simulator/metrics"
)

// ResultRecorder receives one record per executed query.
type ResultRecorder interface {
	RecordQueryResult(metrics.QueryResult) error
}

// Executor drives one or more workloads against the database. Query failures
// are recorded and do not stop the workload; only context cancellation or the
// workload's deadline ends it.
type Executor struct {
	database db.Database
	recorder ResultRecorder
	snapshot *datagen.Snapshot
	seed     int64
}

// NewExecutor returns an Executor drawing query parameters from the given
// snapshot.
func NewExecutor(database db.Database, recorder ResultRecorder, snapshot *datagen.Snapshot, seed int64) *Executor {
	return &Executor{
		database: database,
		recorder: recorder,
		snapshot: snapshot,
		seed:     seed,
	}
}

// RunAll runs every enabled workload concurrently and returns once all have
// finished. ctx is the stop signal checked between iterations; queryCtx is
// the context in-flight queries run under, so that an operation already on
// the wire can finish after ctx is cancelled and only gets abandoned when
// queryCtx is cancelled too.
func (e *Executor) RunAll(ctx, queryCtx context.Context, workloads []configuration.WorkloadConfig) error {
	var wg sync.WaitGroup
	errs := make(chan error, len(workloads))
	for _, w := range workloads {
		if !w.IsEnabled() {
			logging.WithField("workload", w.Name).Info("Workload disabled, skipping")
			continue
		}
		wg.Add(1)
		go func(cfg configuration.WorkloadConfig) {
			defer wg.Done()
			if err := e.RunWorkload(ctx, queryCtx, cfg); err != nil {
				errs <- errors.Wrapf(err, "workload %s", cfg.Name)
			}
		}(w)
	}
	wg.Wait()

	select {
	case err := <-errs:
		return err
	default:
		return nil
	}
}

// RunWorkload runs one workload until its duration elapses or ctx is
// cancelled.
func (e *Executor) RunWorkload(ctx, queryCtx context.Context, cfg configuration.WorkloadConfig) error {
	picker, err := newWeightedPicker(cfg.Queries)
	if err != nil {
		return err
	}
	rng := rand.New(rand.NewSource(e.seed))
	paramGens := make(map[string][]ParamGenerator, len(cfg.Queries))
	for _, q := range cfg.Queries {
		gens, err := BuildParamGenerators(q.ParamGenerators, e.snapshot, rng)
		if err != nil {
			return errors.Wrapf(err, "query %s", q.Name)
		}
		paramGens[q.Name] = gens
	}

	log := logging.WithField("workload", cfg.Name)
	log.Infof("Starting %d worker(s) for %s", cfg.Concurrency, cfg.Duration())

	runCtx, cancel := context.WithTimeout(ctx, cfg.Duration())
	defer cancel()

	var wg sync.WaitGroup
	for i := 0; i < cfg.Concurrency; i++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			e.runWorker(runCtx, queryCtx, cfg, picker, paramGens, worker)
		}(i)
	}
	wg.Wait()

	log.Info("Workload finished")
	return nil
}

func (e *Executor) runWorker(
	ctx, queryCtx context.Context,
	cfg configuration.WorkloadConfig,
	picker *weightedPicker,
	paramGens map[string][]ParamGenerator,
	worker int,
) {
	// Each worker gets its own rng; rand.Rand is not safe for concurrent use.
	rng := rand.New(rand.NewSource(e.seed + int64(worker)))
	thinkMin, thinkMax := cfg.ThinkTime()

	for {
		if ctx.Err() != nil {
			return
		}

		query := picker.Pick(rng)
		params := make([]any, len(paramGens[query.Name]))
		for i, gen := range paramGens[query.Name] {
			params[i] = gen.Generate(rng)
		}

		// The query runs under queryCtx, not ctx: cancellation of ctx stops
		// the loop at the next check, while the in-flight statement finishes
		// and its result is still recorded. Only queryCtx expiring abandons
		// the operation outright.
		start := time.Now()
		rows, err := e.database.ExecuteQuery(queryCtx, query.Template, params...)
		result := metrics.QueryResult{
			Timestamp: start.UTC(),
			Workload:  cfg.Name,
			Query:     query.Name,
			Worker:    worker,
			Duration:  time.Since(start),
			Rows:      len(rows),
			Succeeded: err == nil,
		}
		if err != nil {
			if queryCtx.Err() != nil {
				// Grace period elapsed mid-query; the result is discarded.
				return
			}
			result.Error = err.Error()
			logging.WithError(err).WithFields(map[string]any{
				"workload": cfg.Name,
				"query":    query.Name,
			}).Warn("Query failed")
		}
		if err := e.recorder.RecordQueryResult(result); err != nil {
			logging.WithError(err).Error("Recording query result failed")
		}

		if !sleepWithContext(ctx, thinkTime(rng, thinkMin, thinkMax)) {
			return
		}
	}
}

func thinkTime(rng *rand.Rand, min, max time.Duration) time.Duration {
	if max <= min {
		return min
	}
	return min + time.Duration(rng.Int63n(int64(max-min)))
}

// sleepWithContext sleeps for d and reports false if the context was
// cancelled first.
func sleepWithContext(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
