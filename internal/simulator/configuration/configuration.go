package configuration

import (
	"time"

	"github.com/sqlsimproject/sqlsim/internal/common/logging"
)

// Config is the top-level configuration for a simulation run.
type Config struct {
	// Database backend to run against. Exactly one backend must be configured.
	Database DatabaseConfig `mapstructure:"database"`
	// Synthetic schema to create and populate.
	Schema SchemaConfig `mapstructure:"schema_config"`
	// Workloads to drive against the populated schema.
	Workloads []WorkloadConfig `mapstructure:"workloads"`
	// OS and DBMS metric sampling schedules.
	Monitoring MonitoringConfig `mapstructure:"monitoring"`
	// Heuristics evaluated over collected DBMS samples after the run.
	Recommendation RecommendationConfig `mapstructure:"recommendation_config"`
	// Global run parameters.
	Parameters SimulationParameters `mapstructure:"simulation_parameters"`
	// Application logging; this is independent of the per-run simulation.log.
	Logging logging.Config `mapstructure:"logging"`
}

// DatabaseConfig selects and configures the database backend.
type DatabaseConfig struct {
	// Postgres connection parameters, e.g. host, port, user, password, dbname.
	// Keys are joined into a pgx connection string verbatim.
	Postgres map[string]string `mapstructure:"postgres"`
	// InMemory selects the in-process backend used for dry runs and tests.
	InMemory bool `mapstructure:"in_memory"`
}

// SchemaConfig describes the synthetic schema.
type SchemaConfig struct {
	Tables []TableConfig `mapstructure:"tables"`
}

// TableConfig describes one table to create and populate.
type TableConfig struct {
	Name string `mapstructure:"name"`
	// Number of rows to generate for this table.
	RowCount int            `mapstructure:"row_count"`
	Columns  []ColumnConfig `mapstructure:"columns"`
	Indexes  []IndexConfig  `mapstructure:"indexes"`
}

// ColumnConfig describes one column of a table.
type ColumnConfig struct {
	Name string `mapstructure:"name"`
	// Logical type, e.g. INT, BIGINT, VARCHAR, TEXT, DECIMAL, BOOLEAN, TIMESTAMP.
	Type       string `mapstructure:"type"`
	PrimaryKey bool   `mapstructure:"primary_key"`
	// Identity columns are assigned by the database, not the data generator.
	Identity bool `mapstructure:"identity"`
	NotNull  bool `mapstructure:"not_null"`
	Unique   bool `mapstructure:"unique"`
	// Default value rendered into the DDL, if any.
	Default any `mapstructure:"default"`
	// Name of the value generator used to synthesise data for this column.
	// Defaults to a type-appropriate generator when empty.
	Generator string `mapstructure:"generator"`
	// Generator-specific parameters, e.g. min/max for numeric ranges.
	Params map[string]any `mapstructure:"params"`
	// Length for character types, e.g. VARCHAR(50).
	Length int `mapstructure:"length"`
	// Precision and scale for DECIMAL columns.
	Precision int `mapstructure:"precision"`
	Scale     int `mapstructure:"scale"`
	// ForeignKey makes this column reference a key column of another table.
	ForeignKey *ForeignKeyConfig `mapstructure:"foreign_key"`
}

// ForeignKeyConfig names the referenced table and column.
type ForeignKeyConfig struct {
	Table  string `mapstructure:"table"`
	Column string `mapstructure:"column"`
}

// IndexConfig describes one secondary index.
type IndexConfig struct {
	Name    string   `mapstructure:"name"`
	Columns []string `mapstructure:"columns"`
	// Kind is one of unique, nonclustered or clustered. Clustered is accepted
	// as a descriptive label only; Postgres has no clustered indexes.
	Kind   string `mapstructure:"kind"`
	Unique bool   `mapstructure:"unique"`
	// Columns carried in the index leaf pages without being key columns.
	Include []string `mapstructure:"include"`
}

// IsUnique reports whether the index enforces uniqueness, either via the
// unique flag or the unique kind.
func (c IndexConfig) IsUnique() bool {
	return c.Unique || c.Kind == "unique"
}

// WorkloadConfig describes one workload: a weighted set of query templates
// driven concurrently for a bounded duration.
type WorkloadConfig struct {
	Name string `mapstructure:"name"`
	// Free-form label, e.g. OLTP or Analytical. Recorded with results only.
	Kind string `mapstructure:"type"`
	// Enabled defaults to true when omitted.
	Enabled *bool `mapstructure:"enabled"`
	// How long to run this workload for. Bounded by the global duration.
	DurationSeconds int `mapstructure:"duration_seconds"`
	// Number of concurrent workers issuing queries.
	Concurrency int           `mapstructure:"concurrency"`
	Queries     []QueryConfig `mapstructure:"queries"`
	// Think-time slept between consecutive queries on each worker.
	ThinkTimeMinMs int `mapstructure:"think_time_min_ms"`
	ThinkTimeMaxMs int `mapstructure:"think_time_max_ms"`
}

// IsEnabled reports whether the workload should run. Workloads are enabled
// unless explicitly disabled.
func (c WorkloadConfig) IsEnabled() bool {
	return c.Enabled == nil || *c.Enabled
}

// Duration returns the workload duration.
func (c WorkloadConfig) Duration() time.Duration {
	return time.Duration(c.DurationSeconds) * time.Second
}

// ThinkTime returns the think-time bounds.
func (c WorkloadConfig) ThinkTime() (min, max time.Duration) {
	return time.Duration(c.ThinkTimeMinMs) * time.Millisecond,
		time.Duration(c.ThinkTimeMaxMs) * time.Millisecond
}

// QueryConfig describes one parameterized query template within a workload.
type QueryConfig struct {
	Name string `mapstructure:"name"`
	// SQL text with positional placeholders $1..$n.
	Template string `mapstructure:"template"`
	// Relative selection weight; defaults to 1.
	Weight int `mapstructure:"weight"`
	// One generator per placeholder, in placeholder order.
	ParamGenerators []ParamGeneratorConfig `mapstructure:"param_generators"`
}

// Parameter generator types.
const (
	ParamRandomIntFromColumnRange = "random_int_from_column_range"
	ParamRandomFromColumnSample   = "random_from_column_sample"
)

// ParamGeneratorConfig describes how to produce one query parameter from the
// values present in a populated column.
type ParamGeneratorConfig struct {
	Type   string `mapstructure:"type"`
	Table  string `mapstructure:"table"`
	Column string `mapstructure:"column"`
	// Number of values retained for random_from_column_sample. Defaults to 100.
	SampleSize int `mapstructure:"sample_size"`
}

// OS metric names accepted in MonitoringConfig.OSMetrics.
const (
	OSMetricCPUPercent     = "cpu_percent"
	OSMetricMemoryPercent  = "memory_percent"
	OSMetricDiskIOCounters = "disk_io_counters"
)

// MonitoringConfig describes the OS and DBMS sampling schedules.
type MonitoringConfig struct {
	// OS metrics to sample, e.g. cpu_percent, memory_percent, disk_io_counters.
	OSMetrics []string `mapstructure:"os_metrics"`
	// Interval between OS samples.
	MonitoringIntervalSeconds int `mapstructure:"monitoring_interval_seconds"`
	// DBMS metric queries, each polled on its own schedule.
	DBMSMetrics []DBMSMetricConfig `mapstructure:"dbms_metrics"`
}

// MonitoringInterval returns the OS sampling interval.
func (c MonitoringConfig) MonitoringInterval() time.Duration {
	return time.Duration(c.MonitoringIntervalSeconds) * time.Second
}

// DBMSMetricConfig describes one DBMS metric query and its poll frequency.
type DBMSMetricConfig struct {
	Name             string `mapstructure:"name"`
	Query            string `mapstructure:"query"`
	FrequencySeconds int    `mapstructure:"frequency_seconds"`
}

// Frequency returns the poll interval for this metric.
func (c DBMSMetricConfig) Frequency() time.Duration {
	return time.Duration(c.FrequencySeconds) * time.Second
}

// RecommendationConfig holds the heuristics evaluated after the run.
type RecommendationConfig struct {
	Heuristics []HeuristicConfig `mapstructure:"heuristics"`
}

// HeuristicConfig describes one rule evaluated over the rows of a collected
// DBMS metric.
type HeuristicConfig struct {
	Name string `mapstructure:"name"`
	// Name of the DBMS metric whose rows this heuristic inspects.
	DMV string `mapstructure:"dmv"`
	// Boolean expression over the row's fields, e.g. "idx_scan == 0".
	Condition string `mapstructure:"condition"`
	// Text emitted per triggering row; {field} references are substituted
	// from the row.
	RecommendationTemplate string `mapstructure:"recommendation_template"`
}

// SimulationParameters are the global run parameters.
type SimulationParameters struct {
	// Hard ceiling on the whole run; everything is cancelled when it elapses.
	GlobalDurationSeconds int `mapstructure:"global_duration_seconds"`
	// Rows per bulk insert during data generation.
	DataGenerationBatchSize int `mapstructure:"data_generation_batch_size"`
	// Drop and recreate the schema at the start of the run.
	RecreateSchemaOnRun bool `mapstructure:"recreate_schema_on_run"`
	// Directory under which a timestamped directory is created per run.
	OutputDirectory string `mapstructure:"output_directory"`
	// How long to wait for in-flight work after cancellation.
	ShutdownGracePeriodSeconds int `mapstructure:"shutdown_grace_period_seconds"`
	// Seed for all randomness; zero seeds from the clock.
	RandomSeed int64 `mapstructure:"random_seed"`
}

// GlobalDuration returns the run's hard duration ceiling.
func (p SimulationParameters) GlobalDuration() time.Duration {
	return time.Duration(p.GlobalDurationSeconds) * time.Second
}

// ShutdownGracePeriod returns how long to wait for in-flight work after
// cancellation.
func (p SimulationParameters) ShutdownGracePeriod() time.Duration {
	return time.Duration(p.ShutdownGracePeriodSeconds) * time.Second
}
