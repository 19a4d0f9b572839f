// Package monitoring samples OS and DBMS metrics on independent schedules
// while the workloads run.
package monitoring

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/sqlsimproject/sqlsim/internal/simulator/configuration"
	"github.com/sqlsimproject/sqlsim/internal/simulator/db"
	"github.com/sqlsimproject/sqlsim/internal/simulator/metrics"
)

// SystemSampler produces one OS metrics sample per call.
type SystemSampler interface {
	Sample(ctx context.Context) (metrics.SystemSample, error)
}

// HostSampler samples the local host via gopsutil. Only the configured
// metrics are collected.
type HostSampler struct {
	metricNames []string
}

// NewHostSampler returns a sampler for the given OS metric names.
func NewHostSampler(metricNames []string) *HostSampler {
	return &HostSampler{metricNames: metricNames}
}

func (s *HostSampler) Sample(ctx context.Context) (metrics.SystemSample, error) {
	sample := metrics.SystemSample{Timestamp: time.Now().UTC()}
	for _, name := range s.metricNames {
		switch name {
		case configuration.OSMetricCPUPercent:
			// Zero interval reports usage since the previous call.
			percents, err := cpu.PercentWithContext(ctx, 0, false)
			if err != nil {
				return sample, errors.Wrap(err, "sampling cpu")
			}
			if len(percents) > 0 {
				sample.CPUPercent = &percents[0]
			}
		case configuration.OSMetricMemoryPercent:
			vm, err := mem.VirtualMemoryWithContext(ctx)
			if err != nil {
				return sample, errors.Wrap(err, "sampling memory")
			}
			sample.MemoryPercent = &vm.UsedPercent
		case configuration.OSMetricDiskIOCounters:
			counters, err := disk.IOCountersWithContext(ctx)
			if err != nil {
				return sample, errors.Wrap(err, "sampling disk io")
			}
			var readBytes, writeBytes, readCount, writeCount uint64
			for _, c := range counters {
				readBytes += c.ReadBytes
				writeBytes += c.WriteBytes
				readCount += c.ReadCount
				writeCount += c.WriteCount
			}
			sample.DiskReadBytes = &readBytes
			sample.DiskWriteBytes = &writeBytes
			sample.DiskReadCount = &readCount
			sample.DiskWriteCount = &writeCount
		}
	}
	return sample, nil
}

// DBMSSampler polls one configured DBMS metric query. Every row of a poll
// shares a snapshot ID so the full result set can be reassembled later.
type DBMSSampler struct {
	metric   configuration.DBMSMetricConfig
	database db.Database
}

// NewDBMSSampler returns a sampler for the given metric.
func NewDBMSSampler(metric configuration.DBMSMetricConfig, database db.Database) *DBMSSampler {
	return &DBMSSampler{metric: metric, database: database}
}

// Poll runs the metric query once.
func (s *DBMSSampler) Poll(ctx context.Context) ([]metrics.DBMSSample, error) {
	rows, err := s.database.ExecuteQuery(ctx, s.metric.Query)
	if err != nil {
		return nil, errors.Wrapf(err, "polling dbms metric %s", s.metric.Name)
	}

	snapshotID := uuid.NewString()
	now := time.Now().UTC()
	samples := make([]metrics.DBMSSample, 0, len(rows))
	for _, row := range rows {
		samples = append(samples, metrics.DBMSSample{
			Timestamp:  now,
			Metric:     s.metric.Name,
			SnapshotID: snapshotID,
			Row:        row,
		})
	}
	return samples, nil
}
