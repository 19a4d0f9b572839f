// Package metrics defines the records emitted during a simulation run and the
// collector that persists them as JSON lines under the run's output directory.
package metrics

import "time"

// QueryResult records one query execution by a workload worker.
type QueryResult struct {
	Timestamp time.Time     `json:"timestamp"`
	Workload  string        `json:"workload"`
	Query     string        `json:"query"`
	Worker    int           `json:"worker"`
	Duration  time.Duration `json:"duration_ns"`
	Rows      int           `json:"rows"`
	Succeeded bool          `json:"succeeded"`
	Error     string        `json:"error,omitempty"`
}

// SystemSample records one poll of the host OS metrics. Only the fields for
// the configured metrics are populated.
type SystemSample struct {
	Timestamp      time.Time `json:"timestamp"`
	CPUPercent     *float64  `json:"cpu_percent,omitempty"`
	MemoryPercent  *float64  `json:"memory_percent,omitempty"`
	DiskReadBytes  *uint64   `json:"disk_read_bytes,omitempty"`
	DiskWriteBytes *uint64   `json:"disk_write_bytes,omitempty"`
	DiskReadCount  *uint64   `json:"disk_read_count,omitempty"`
	DiskWriteCount *uint64   `json:"disk_write_count,omitempty"`
}

// DBMSSample records one row returned by a DBMS metric query. All rows from
// the same poll share a SnapshotID so that a complete result set can be
// reassembled later.
type DBMSSample struct {
	Timestamp  time.Time      `json:"timestamp"`
	Metric     string         `json:"metric"`
	SnapshotID string         `json:"snapshot_id"`
	Row        map[string]any `json:"row"`
}

// Recommendation records one heuristic that triggered on a collected sample.
type Recommendation struct {
	Timestamp time.Time `json:"timestamp"`
	Heuristic string    `json:"heuristic"`
	Metric    string    `json:"metric"`
	Text      string    `json:"text"`
}
