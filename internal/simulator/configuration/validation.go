package configuration

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
)

// placeholderPattern matches positional SQL placeholders $1..$n.
var placeholderPattern = regexp.MustCompile(`\$([0-9]+)`)

// templateFieldPattern matches {field} references in a recommendation template.
var templateFieldPattern = regexp.MustCompile(`\{([^{}]*)\}`)

var validOSMetrics = map[string]bool{
	OSMetricCPUPercent:     true,
	OSMetricMemoryPercent:  true,
	OSMetricDiskIOCounters: true,
}

var validParamGeneratorTypes = map[string]bool{
	ParamRandomIntFromColumnRange: true,
	ParamRandomFromColumnSample:   true,
}

var validIndexKinds = map[string]bool{
	"":             true,
	"unique":       true,
	"nonclustered": true,
	"clustered":    true,
}

// Validate checks the whole configuration tree and aggregates every problem
// found into a single error.
func (c *Config) Validate() error {
	var result *multierror.Error

	result = multierror.Append(result, c.Database.Validate())
	result = multierror.Append(result, c.Schema.Validate())

	workloadNames := map[string]bool{}
	for _, w := range c.Workloads {
		result = multierror.Append(result, w.Validate(&c.Schema))
		if workloadNames[w.Name] {
			result = multierror.Append(result, errors.Errorf("duplicate workload name %q", w.Name))
		}
		workloadNames[w.Name] = true
	}

	result = multierror.Append(result, c.Monitoring.Validate())
	result = multierror.Append(result, c.Recommendation.Validate(&c.Monitoring))
	result = multierror.Append(result, c.Parameters.Validate())

	return result.ErrorOrNil()
}

// Validate checks that exactly one database backend is configured.
func (c DatabaseConfig) Validate() error {
	hasPostgres := len(c.Postgres) > 0
	if hasPostgres && c.InMemory {
		return errors.New("database: postgres and in_memory are mutually exclusive")
	}
	if !hasPostgres && !c.InMemory {
		return errors.New("database: no backend configured; set postgres or in_memory")
	}
	return nil
}

// Validate checks table definitions and all intra-schema references.
func (c *SchemaConfig) Validate() error {
	var result *multierror.Error

	if len(c.Tables) == 0 {
		result = multierror.Append(result, errors.New("schema_config: no tables defined"))
	}

	tableNames := map[string]bool{}
	for _, t := range c.Tables {
		result = multierror.Append(result, t.Validate())
		if tableNames[t.Name] {
			result = multierror.Append(result, errors.Errorf("duplicate table name %q", t.Name))
		}
		tableNames[t.Name] = true
	}

	// Foreign keys can only be checked once the full table set is known.
	for _, t := range c.Tables {
		for _, col := range t.Columns {
			if col.ForeignKey == nil {
				continue
			}
			if err := c.validateForeignKey(t, col); err != nil {
				result = multierror.Append(result, err)
			}
		}
	}

	return result.ErrorOrNil()
}

func (c *SchemaConfig) validateForeignKey(t TableConfig, col ColumnConfig) error {
	fk := col.ForeignKey
	target, ok := c.Table(fk.Table)
	if !ok {
		return errors.Errorf("table %q column %q: foreign key references unknown table %q",
			t.Name, col.Name, fk.Table)
	}
	targetCol, ok := target.Column(fk.Column)
	if !ok {
		return errors.Errorf("table %q column %q: foreign key references unknown column %q.%q",
			t.Name, col.Name, fk.Table, fk.Column)
	}
	if !targetCol.PrimaryKey && !targetCol.Unique {
		return errors.Errorf("table %q column %q: foreign key target %q.%q is neither a primary key nor unique",
			t.Name, col.Name, fk.Table, fk.Column)
	}
	return nil
}

// Table returns the table with the given name.
func (c *SchemaConfig) Table(name string) (TableConfig, bool) {
	for _, t := range c.Tables {
		if t.Name == name {
			return t, true
		}
	}
	return TableConfig{}, false
}

// Validate checks the table definition in isolation.
func (c TableConfig) Validate() error {
	var result *multierror.Error

	if c.Name == "" {
		result = multierror.Append(result, errors.New("table with empty name"))
	}
	if c.RowCount < 0 {
		result = multierror.Append(result, errors.Errorf("table %q: row_count must not be negative", c.Name))
	}
	if len(c.Columns) == 0 {
		result = multierror.Append(result, errors.Errorf("table %q: no columns defined", c.Name))
	}

	columnNames := map[string]bool{}
	for _, col := range c.Columns {
		result = multierror.Append(result, col.Validate(c.Name))
		if columnNames[col.Name] {
			result = multierror.Append(result, errors.Errorf("table %q: duplicate column name %q", c.Name, col.Name))
		}
		columnNames[col.Name] = true
	}

	for _, idx := range c.Indexes {
		result = multierror.Append(result, idx.Validate(c.Name, columnNames))
	}

	return result.ErrorOrNil()
}

// Column returns the column with the given name.
func (c TableConfig) Column(name string) (ColumnConfig, bool) {
	for _, col := range c.Columns {
		if col.Name == name {
			return col, true
		}
	}
	return ColumnConfig{}, false
}

// Validate checks the column definition.
func (c ColumnConfig) Validate(table string) error {
	var result *multierror.Error

	if c.Name == "" {
		result = multierror.Append(result, errors.Errorf("table %q: column with empty name", table))
	}
	if c.Type == "" {
		result = multierror.Append(result, errors.Errorf("table %q column %q: missing type", table, c.Name))
	}
	if c.Identity && !c.PrimaryKey {
		result = multierror.Append(result, errors.Errorf("table %q column %q: identity requires primary_key", table, c.Name))
	}
	if c.Identity && c.ForeignKey != nil {
		result = multierror.Append(result, errors.Errorf("table %q column %q: identity and foreign_key are mutually exclusive", table, c.Name))
	}
	if c.Length < 0 {
		result = multierror.Append(result, errors.Errorf("table %q column %q: length must not be negative", table, c.Name))
	}
	if c.ForeignKey != nil && (c.ForeignKey.Table == "" || c.ForeignKey.Column == "") {
		result = multierror.Append(result, errors.Errorf("table %q column %q: foreign_key requires both table and column", table, c.Name))
	}

	return result.ErrorOrNil()
}

// Validate checks the index definition against the table's columns.
func (c IndexConfig) Validate(table string, columns map[string]bool) error {
	var result *multierror.Error

	if c.Name == "" {
		result = multierror.Append(result, errors.Errorf("table %q: index with empty name", table))
	}
	if len(c.Columns) == 0 {
		result = multierror.Append(result, errors.Errorf("table %q index %q: no columns", table, c.Name))
	}
	if !validIndexKinds[c.Kind] {
		result = multierror.Append(result, errors.Errorf("table %q index %q: unknown kind %q", table, c.Name, c.Kind))
	}
	for _, col := range append(append([]string{}, c.Columns...), c.Include...) {
		if !columns[col] {
			result = multierror.Append(result, errors.Errorf("table %q index %q: unknown column %q", table, c.Name, col))
		}
	}

	return result.ErrorOrNil()
}

// Validate checks the workload and its queries against the schema.
func (c WorkloadConfig) Validate(schema *SchemaConfig) error {
	var result *multierror.Error

	if c.Name == "" {
		result = multierror.Append(result, errors.New("workload with empty name"))
	}
	if c.DurationSeconds < 0 {
		result = multierror.Append(result, errors.Errorf("workload %q: duration_seconds must not be negative", c.Name))
	}
	if c.Concurrency < 1 {
		result = multierror.Append(result, errors.Errorf("workload %q: concurrency must be at least 1", c.Name))
	}
	if c.ThinkTimeMinMs > c.ThinkTimeMaxMs {
		result = multierror.Append(result, errors.Errorf("workload %q: think_time_min_ms exceeds think_time_max_ms", c.Name))
	}
	if len(c.Queries) == 0 {
		result = multierror.Append(result, errors.Errorf("workload %q: no queries defined", c.Name))
	}

	queryNames := map[string]bool{}
	for _, q := range c.Queries {
		result = multierror.Append(result, q.Validate(c.Name, schema))
		if queryNames[q.Name] {
			result = multierror.Append(result, errors.Errorf("workload %q: duplicate query name %q", c.Name, q.Name))
		}
		queryNames[q.Name] = true
	}

	return result.ErrorOrNil()
}

// Validate checks the query template and its parameter generators.
func (c QueryConfig) Validate(workload string, schema *SchemaConfig) error {
	var result *multierror.Error

	if c.Name == "" {
		result = multierror.Append(result, errors.Errorf("workload %q: query with empty name", workload))
	}
	if strings.TrimSpace(c.Template) == "" {
		result = multierror.Append(result, errors.Errorf("workload %q query %q: empty template", workload, c.Name))
	}
	if c.Weight < 1 {
		result = multierror.Append(result, errors.Errorf("workload %q query %q: weight must be at least 1", workload, c.Name))
	}

	if n := maxPlaceholder(c.Template); n != len(c.ParamGenerators) {
		result = multierror.Append(result, errors.Errorf(
			"workload %q query %q: template has %d placeholder(s) but %d param_generators",
			workload, c.Name, n, len(c.ParamGenerators)))
	}

	for i, pg := range c.ParamGenerators {
		if err := pg.Validate(schema); err != nil {
			result = multierror.Append(result, errors.Wrapf(err, "workload %q query %q param_generator %d", workload, c.Name, i+1))
		}
	}

	return result.ErrorOrNil()
}

// maxPlaceholder returns the highest $n placeholder in the template.
func maxPlaceholder(template string) int {
	max := 0
	for _, m := range placeholderPattern.FindAllStringSubmatch(template, -1) {
		if n, err := strconv.Atoi(m[1]); err == nil && n > max {
			max = n
		}
	}
	return max
}

// Validate checks that the generator references a populated key column.
func (c ParamGeneratorConfig) Validate(schema *SchemaConfig) error {
	if !validParamGeneratorTypes[c.Type] {
		return errors.Errorf("unknown type %q", c.Type)
	}
	table, ok := schema.Table(c.Table)
	if !ok {
		return errors.Errorf("references unknown table %q", c.Table)
	}
	col, ok := table.Column(c.Column)
	if !ok {
		return errors.Errorf("references unknown column %q.%q", c.Table, c.Column)
	}
	if !col.PrimaryKey && !col.Unique && col.ForeignKey == nil {
		return errors.Errorf("column %q.%q is not key-indexed; parameter generators require a primary key, unique or foreign key column", c.Table, c.Column)
	}
	if c.SampleSize < 0 {
		return errors.New("sample_size must not be negative")
	}
	return nil
}

// Validate checks the metric names and schedules.
func (c MonitoringConfig) Validate() error {
	var result *multierror.Error

	for _, m := range c.OSMetrics {
		if !validOSMetrics[m] {
			result = multierror.Append(result, errors.Errorf("monitoring: unknown os metric %q", m))
		}
	}
	if c.MonitoringIntervalSeconds < 1 {
		result = multierror.Append(result, errors.New("monitoring: monitoring_interval_seconds must be at least 1"))
	}

	metricNames := map[string]bool{}
	for _, m := range c.DBMSMetrics {
		if m.Name == "" {
			result = multierror.Append(result, errors.New("monitoring: dbms metric with empty name"))
		}
		if strings.TrimSpace(m.Query) == "" {
			result = multierror.Append(result, errors.Errorf("monitoring: dbms metric %q has an empty query", m.Name))
		}
		if m.FrequencySeconds < 1 {
			result = multierror.Append(result, errors.Errorf("monitoring: dbms metric %q: frequency_seconds must be at least 1", m.Name))
		}
		if metricNames[m.Name] {
			result = multierror.Append(result, errors.Errorf("monitoring: duplicate dbms metric name %q", m.Name))
		}
		metricNames[m.Name] = true
	}

	return result.ErrorOrNil()
}

// DBMSMetric returns the DBMS metric with the given name.
func (c MonitoringConfig) DBMSMetric(name string) (DBMSMetricConfig, bool) {
	for _, m := range c.DBMSMetrics {
		if m.Name == name {
			return m, true
		}
	}
	return DBMSMetricConfig{}, false
}

// Validate checks each heuristic against the configured DBMS metrics.
func (c RecommendationConfig) Validate(monitoring *MonitoringConfig) error {
	var result *multierror.Error

	heuristicNames := map[string]bool{}
	for _, h := range c.Heuristics {
		result = multierror.Append(result, h.Validate(monitoring))
		if heuristicNames[h.Name] {
			result = multierror.Append(result, errors.Errorf("duplicate heuristic name %q", h.Name))
		}
		heuristicNames[h.Name] = true
	}

	return result.ErrorOrNil()
}

// Validate checks the heuristic's target metric and template syntax. The
// condition expression is compiled later, when the recommendation engine is
// constructed.
func (c HeuristicConfig) Validate(monitoring *MonitoringConfig) error {
	var result *multierror.Error

	if c.Name == "" {
		result = multierror.Append(result, errors.New("heuristic with empty name"))
	}
	if c.DMV == "" {
		result = multierror.Append(result, errors.Errorf("heuristic %q: missing dmv", c.Name))
	} else if _, ok := monitoring.DBMSMetric(c.DMV); !ok {
		result = multierror.Append(result, errors.Errorf("heuristic %q: dmv %q is not a configured dbms metric", c.Name, c.DMV))
	}
	if strings.TrimSpace(c.Condition) == "" {
		result = multierror.Append(result, errors.Errorf("heuristic %q: empty condition", c.Name))
	}
	if strings.TrimSpace(c.RecommendationTemplate) == "" {
		result = multierror.Append(result, errors.Errorf("heuristic %q: empty recommendation_template", c.Name))
	}
	for _, m := range templateFieldPattern.FindAllStringSubmatch(c.RecommendationTemplate, -1) {
		if strings.TrimSpace(m[1]) == "" {
			result = multierror.Append(result, errors.Errorf("heuristic %q: recommendation_template contains an empty {} reference", c.Name))
		}
	}

	return result.ErrorOrNil()
}

// TemplateFields returns the {field} references of the recommendation template.
func (c HeuristicConfig) TemplateFields() []string {
	var fields []string
	for _, m := range templateFieldPattern.FindAllStringSubmatch(c.RecommendationTemplate, -1) {
		fields = append(fields, m[1])
	}
	return fields
}

// Validate checks the global run parameters.
func (p SimulationParameters) Validate() error {
	var result *multierror.Error

	if p.GlobalDurationSeconds < 1 {
		result = multierror.Append(result, errors.New("simulation_parameters: global_duration_seconds must be at least 1"))
	}
	if p.DataGenerationBatchSize < 1 {
		result = multierror.Append(result, errors.New("simulation_parameters: data_generation_batch_size must be at least 1"))
	}
	if p.OutputDirectory == "" {
		result = multierror.Append(result, errors.New("simulation_parameters: output_directory must not be empty"))
	}
	if p.ShutdownGracePeriodSeconds < 0 {
		result = multierror.Append(result, errors.New("simulation_parameters: shutdown_grace_period_seconds must not be negative"))
	}

	return result.ErrorOrNil()
}

// String renders a short human-readable summary of the run, used in startup
// logging.
func (c *Config) String() string {
	return fmt.Sprintf("%d table(s), %d workload(s), %d dbms metric(s), %d heuristic(s), global duration %s",
		len(c.Schema.Tables), len(c.Workloads), len(c.Monitoring.DBMSMetrics),
		len(c.Recommendation.Heuristics), c.Parameters.GlobalDuration())
}
