package monitoring

import (
	"context"
	"sync"
	"time"

	"github.com/sqlsimproject/sqlsim/internal/common/logging"
	"github.com/sqlsimproject/sqlsim/internal/simulator/configuration"
	"github.com/sqlsimproject/sqlsim/internal/simulator/db"
	"github.com/sqlsimproject/sqlsim/internal/simulator/metrics"
)

// SampleRecorder receives collected samples.
type SampleRecorder interface {
	RecordSystemSample(metrics.SystemSample) error
	RecordDBMSSample(metrics.DBMSSample) error
}

// Monitor runs the OS sampler and every DBMS sampler on their own schedules.
// A failed sample is logged and skipped; sampling continues until the context
// is cancelled.
type Monitor struct {
	config       configuration.MonitoringConfig
	systemSample SystemSampler
	dbmsSamplers []*DBMSSampler
	recorder     SampleRecorder
}

// NewMonitor builds a Monitor from the configuration.
func NewMonitor(config configuration.MonitoringConfig, database db.Database, recorder SampleRecorder) *Monitor {
	m := &Monitor{
		config:       config,
		systemSample: NewHostSampler(config.OSMetrics),
		recorder:     recorder,
	}
	for _, metric := range config.DBMSMetrics {
		m.dbmsSamplers = append(m.dbmsSamplers, NewDBMSSampler(metric, database))
	}
	return m
}

// WithSystemSampler replaces the OS sampler, used by tests.
func (m *Monitor) WithSystemSampler(sampler SystemSampler) *Monitor {
	m.systemSample = sampler
	return m
}

// Run samples until ctx is cancelled, then returns. ctx is the scheduling
// signal; queryCtx is what in-flight samples run under, so a poll already
// issued can finish after ctx is cancelled.
func (m *Monitor) Run(ctx, queryCtx context.Context) {
	var wg sync.WaitGroup

	if len(m.config.OSMetrics) > 0 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.runSystemLoop(ctx, queryCtx)
		}()
	}

	for _, sampler := range m.dbmsSamplers {
		wg.Add(1)
		go func(s *DBMSSampler) {
			defer wg.Done()
			m.runDBMSLoop(ctx, queryCtx, s)
		}(sampler)
	}

	wg.Wait()
}

func (m *Monitor) runSystemLoop(ctx, queryCtx context.Context) {
	// First sample at t=0; this also primes the cpu usage counters so later
	// readings cover one interval each.
	m.sampleSystem(ctx, queryCtx)

	ticker := time.NewTicker(m.config.MonitoringInterval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.sampleSystem(ctx, queryCtx)
		}
	}
}

func (m *Monitor) sampleSystem(ctx, queryCtx context.Context) {
	sample, err := m.systemSample.Sample(queryCtx)
	if err != nil {
		if ctx.Err() == nil && queryCtx.Err() == nil {
			logging.WithError(err).Warn("OS metrics sample failed")
		}
		return
	}
	if err := m.recorder.RecordSystemSample(sample); err != nil {
		logging.WithError(err).Error("Recording OS metrics sample failed")
	}
}

func (m *Monitor) runDBMSLoop(ctx, queryCtx context.Context, sampler *DBMSSampler) {
	log := logging.WithField("metric", sampler.metric.Name)

	// Poll immediately; waiting a full interval first would leave metrics
	// with a frequency longer than the run without any samples at all.
	m.pollDBMS(ctx, queryCtx, sampler, log)

	ticker := time.NewTicker(sampler.metric.Frequency())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.pollDBMS(ctx, queryCtx, sampler, log)
		}
	}
}

func (m *Monitor) pollDBMS(ctx, queryCtx context.Context, sampler *DBMSSampler, log *logging.Logger) {
	samples, err := sampler.Poll(queryCtx)
	if err != nil {
		if ctx.Err() == nil && queryCtx.Err() == nil {
			log.WithError(err).Warn("DBMS metrics poll failed")
		}
		return
	}
	for _, sample := range samples {
		if err := m.recorder.RecordDBMSSample(sample); err != nil {
			log.WithError(err).Error("Recording DBMS metrics sample failed")
		}
	}
}
