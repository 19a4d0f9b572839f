// Package orchestrator coordinates a full simulation run: schema creation,
// data generation, workload execution, metric sampling and the final
// recommendation pass.
package orchestrator

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/sqlsimproject/sqlsim/internal/common/logging"
	"github.com/sqlsimproject/sqlsim/internal/simulator/configuration"
	"github.com/sqlsimproject/sqlsim/internal/simulator/datagen"
	"github.com/sqlsimproject/sqlsim/internal/simulator/db"
	"github.com/sqlsimproject/sqlsim/internal/simulator/metrics"
	"github.com/sqlsimproject/sqlsim/internal/simulator/monitoring"
	"github.com/sqlsimproject/sqlsim/internal/simulator/recommend"
	"github.com/sqlsimproject/sqlsim/internal/simulator/schema"
	"github.com/sqlsimproject/sqlsim/internal/simulator/workload"
)

// State is the phase a run is in.
type State int

const (
	StateInitializing State = iota
	StateSchemaReady
	StateDataGenerated
	StateRunning
	StateFinalizing
	StateComplete
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateInitializing:
		return "Initializing"
	case StateSchemaReady:
		return "SchemaReady"
	case StateDataGenerated:
		return "DataGenerated"
	case StateRunning:
		return "Running"
	case StateFinalizing:
		return "Finalizing"
	case StateComplete:
		return "Complete"
	case StateFailed:
		return "Failed"
	default:
		return "Unknown"
	}
}

// Runner executes one simulation run end to end.
type Runner struct {
	config *configuration.Config

	mu    sync.Mutex
	state State
}

// NewRunner returns a Runner for the given, already validated, configuration.
func NewRunner(config *configuration.Config) *Runner {
	return &Runner{config: config, state: StateInitializing}
}

// State returns the run's current phase.
func (r *Runner) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

func (r *Runner) setState(s State) {
	r.mu.Lock()
	r.state = s
	r.mu.Unlock()
	logging.WithField("state", s.String()).Info("Run state changed")
}

// Run executes the whole simulation. It returns once the run is complete, the
// global duration has elapsed, or the context is cancelled.
func (r *Runner) Run(ctx context.Context) (err error) {
	defer func() {
		if err != nil {
			r.setState(StateFailed)
		}
	}()

	logging.Infof("Starting simulation: %s", r.config.String())

	collector, err := metrics.NewCollector(r.config.Parameters.OutputDirectory, time.Now())
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := collector.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()
	logging.WithField("dir", collector.RunDir()).Info("Writing run output")
	r.configureRunLogging(collector.RunDir())

	// Compile heuristics up front so a bad rule fails the run before any
	// database traffic.
	engine, err := recommend.NewEngine(r.config.Recommendation)
	if err != nil {
		return err
	}

	database, err := db.NewDatabase(ctx, r.config.Database)
	if err != nil {
		return err
	}
	defer database.Close()

	if err := schema.NewManager(&r.config.Schema, database).
		CreateAll(ctx, r.config.Parameters.RecreateSchemaOnRun); err != nil {
		return err
	}
	r.setState(StateSchemaReady)

	seed := r.config.Parameters.RandomSeed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	generator := datagen.NewGenerator(&r.config.Schema, database, r.config.Parameters.DataGenerationBatchSize, seed)
	if err := generator.GenerateAll(ctx); err != nil {
		return err
	}
	snapshot := generator.ReferenceIndex().Snapshot()
	r.setState(StateDataGenerated)

	r.setState(StateRunning)
	if err := r.runWorkloads(ctx, database, collector, snapshot, seed); err != nil {
		return err
	}

	r.setState(StateFinalizing)
	if err := r.recommendAndSummarize(collector, engine); err != nil {
		return err
	}

	r.setState(StateComplete)
	logging.Info("Simulation complete")
	return nil
}

// runWorkloads drives the workloads under the global duration ceiling while
// the monitor samples in the background.
func (r *Runner) runWorkloads(
	ctx context.Context,
	database db.Database,
	collector *metrics.Collector,
	snapshot *datagen.Snapshot,
	seed int64,
) error {
	runCtx, cancel := context.WithTimeout(ctx, r.config.Parameters.GlobalDuration())
	defer cancel()

	// In-flight queries and samples run under opCtx so they can finish after
	// the global duration elapses; opCtx is only cancelled once the grace
	// period has passed, abandoning whatever is still outstanding.
	opCtx, opCancel := context.WithCancel(context.Background())
	defer opCancel()
	go func() {
		<-runCtx.Done()
		grace := time.NewTimer(r.config.Parameters.ShutdownGracePeriod())
		defer grace.Stop()
		select {
		case <-grace.C:
		case <-opCtx.Done():
		}
		opCancel()
	}()

	monitor := monitoring.NewMonitor(r.config.Monitoring, database, collector)
	monitorDone := make(chan struct{})
	go func() {
		defer close(monitorDone)
		monitor.Run(runCtx, opCtx)
	}()
	go logProgress(runCtx, r.config.Parameters.GlobalDuration())

	executor := workload.NewExecutor(database, collector, snapshot, seed)
	err := executor.RunAll(runCtx, opCtx, r.config.Workloads)

	// Workloads are done; stop the monitor and wait for it, but never longer
	// than the grace period.
	cancel()
	if !waitWithTimeout(monitorDone, r.config.Parameters.ShutdownGracePeriod()) {
		logging.Warn("Monitor did not stop within the grace period")
	}

	if err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}

// recommendAndSummarize reads back everything persisted during the run,
// evaluates the heuristics and logs a per-query summary.
func (r *Runner) recommendAndSummarize(collector *metrics.Collector, engine *recommend.Engine) error {
	samples, err := collector.ReadDBMSSamples()
	if err != nil {
		return err
	}
	recommendations := engine.Evaluate(samples, time.Now().UTC())
	for _, rec := range recommendations {
		logging.WithField("heuristic", rec.Heuristic).Infof("Recommendation: %s", rec.Text)
		if err := collector.RecordRecommendation(rec); err != nil {
			return errors.Wrap(err, "persisting recommendation")
		}
	}
	logging.Infof("%d recommendation(s) emitted", len(recommendations))

	results, err := collector.ReadQueryResults()
	if err != nil {
		return err
	}
	for _, s := range Summarize(results) {
		logging.WithFields(map[string]any{
			"workload": s.Workload,
			"query":    s.Query,
		}).Infof("%d execution(s), %d failed, avg %s, min %s, max %s",
			s.Count, s.Failures, s.AvgDuration(), s.MinDuration, s.MaxDuration)
	}
	return nil
}

// configureRunLogging adds a per-run log file next to the collected metrics.
func (r *Runner) configureRunLogging(runDir string) {
	cfg := r.config.Logging
	cfg.File.Enabled = true
	cfg.File.LogFile = filepath.Join(runDir, "simulation.log")
	if cfg.File.Level == "" {
		cfg.File.Level = "debug"
	}
	if cfg.File.MaxSizeMb == 0 {
		cfg.File.MaxSizeMb = 100
	}
	if err := logging.ConfigureApplicationLogging(cfg); err != nil {
		logging.WithError(err).Warn("Could not set up per-run log file")
	}
}

// logProgress reports elapsed time against the global duration while the
// workloads run.
func logProgress(ctx context.Context, total time.Duration) {
	interval := 10 * time.Second
	if total < interval {
		return
	}
	start := time.Now()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			logging.Infof("Simulation running for %s of %s", time.Since(start).Round(time.Second), total)
		}
	}
}

// waitWithTimeout reports whether done closed before the timeout elapsed.
func waitWithTimeout(done <-chan struct{}, timeout time.Duration) bool {
	select {
	case <-done:
		return true
	case <-time.After(timeout):
		return false
	}
}
