package datagen

import (
	"context"
	"fmt"
	"math/rand"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/pkg/errors"

	"github.com/sqlsimproject/sqlsim/internal/common/logging"
	"github.com/sqlsimproject/sqlsim/internal/simulator/configuration"
	"github.com/sqlsimproject/sqlsim/internal/simulator/db"
	"github.com/sqlsimproject/sqlsim/internal/simulator/schema"
)

// uniqueRetryBudget bounds how many times a fresh value is drawn for a unique
// column before generation fails.
const uniqueRetryBudget = 50

// identitySampleLimit bounds how many identity values are read back per
// column after insertion.
const identitySampleLimit = 1000

// GenerationError reports a failure to produce a value for a column.
type GenerationError struct {
	Table  string
	Column string
	Err    error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("generating data for %s.%s: %v", e.Table, e.Column, e.Err)
}

func (e *GenerationError) Unwrap() error {
	return e.Err
}

// Generator populates the schema's tables with fake data, in dependency order
// so that foreign keys always reference rows that exist.
type Generator struct {
	schema    *configuration.SchemaConfig
	database  db.Database
	refIndex  *ReferenceIndex
	batchSize int
	faker     *gofakeit.Faker
	rng       *rand.Rand
}

// NewGenerator returns a Generator writing through the given backend. The
// seed makes generation reproducible.
func NewGenerator(schemaConfig *configuration.SchemaConfig, database db.Database, batchSize int, seed int64) *Generator {
	return &Generator{
		schema:    schemaConfig,
		database:  database,
		refIndex:  NewReferenceIndex(),
		batchSize: batchSize,
		faker:     gofakeit.New(seed),
		rng:       rand.New(rand.NewSource(seed)),
	}
}

// ReferenceIndex returns the index of generated key values.
func (g *Generator) ReferenceIndex() *ReferenceIndex {
	return g.refIndex
}

// GenerateAll populates every table with its configured row count.
func (g *Generator) GenerateAll(ctx context.Context) error {
	ordered, err := schema.TopologicalOrder(g.schema)
	if err != nil {
		return err
	}
	for _, table := range ordered {
		if err := g.generateTable(ctx, table); err != nil {
			return err
		}
	}
	return nil
}

func (g *Generator) generateTable(ctx context.Context, table configuration.TableConfig) error {
	log := logging.WithField("table", table.Name)
	log.Infof("Generating %d row(s)", table.RowCount)

	columns, generators, err := g.columnGenerators(table)
	if err != nil {
		return err
	}

	// Values already used per unique column, to keep generated data insertable.
	seen := map[string]map[any]bool{}
	for _, col := range table.Columns {
		if !col.Identity && (col.Unique || col.PrimaryKey) {
			seen[col.Name] = map[any]bool{}
		}
	}

	remaining := table.RowCount
	for remaining > 0 {
		if err := ctx.Err(); err != nil {
			return err
		}
		batch := g.batchSize
		if batch > remaining {
			batch = remaining
		}

		rows := make([][]any, 0, batch)
		for i := 0; i < batch; i++ {
			row := make([]any, len(columns))
			for j, col := range columns {
				value, err := g.generateValue(table, col, generators[j], seen[col.Name])
				if err != nil {
					return err
				}
				row[j] = value
			}
			rows = append(rows, row)
		}

		columnNames := make([]string, len(columns))
		for i, col := range columns {
			columnNames[i] = col.Name
		}
		if err := g.database.ExecuteBulkInsert(ctx, table.Name, columnNames, rows); err != nil {
			return err
		}

		// Index key column values only after the batch is durably inserted.
		for j, col := range columns {
			if !keyIndexed(col) {
				continue
			}
			values := make([]any, len(rows))
			for i, row := range rows {
				values[i] = row[j]
			}
			g.refIndex.Add(table.Name, col.Name, values...)
		}

		remaining -= batch
	}

	for _, col := range table.Columns {
		if col.Identity {
			if err := g.backfillIdentity(ctx, table, col); err != nil {
				return err
			}
		}
	}

	log.Debug("Table populated")
	return nil
}

// columnGenerators resolves a value generator per generated column. Identity
// columns are assigned by the database and skipped.
func (g *Generator) columnGenerators(table configuration.TableConfig) ([]configuration.ColumnConfig, []ValueGenerator, error) {
	var columns []configuration.ColumnConfig
	var generators []ValueGenerator
	for _, col := range table.Columns {
		if col.Identity {
			continue
		}
		if col.ForeignKey != nil {
			columns = append(columns, col)
			generators = append(generators, nil)
			continue
		}
		gen, err := ResolveGenerator(col)
		if err != nil {
			return nil, nil, &GenerationError{Table: table.Name, Column: col.Name, Err: err}
		}
		columns = append(columns, col)
		generators = append(generators, gen)
	}
	return columns, generators, nil
}

func (g *Generator) generateValue(
	table configuration.TableConfig,
	col configuration.ColumnConfig,
	gen ValueGenerator,
	seen map[any]bool,
) (any, error) {
	if col.ForeignKey != nil {
		candidates := g.refIndex.Values(col.ForeignKey.Table, col.ForeignKey.Column)
		if len(candidates) == 0 {
			return nil, &GenerationError{
				Table:  table.Name,
				Column: col.Name,
				Err:    errors.Errorf("referenced column %s.%s has no values", col.ForeignKey.Table, col.ForeignKey.Column),
			}
		}
		if seen == nil {
			return candidates[g.rng.Intn(len(candidates))], nil
		}
		// Unique foreign keys (one-to-one relations) must not repeat a draw.
		for attempt := 0; attempt < uniqueRetryBudget; attempt++ {
			value := candidates[g.rng.Intn(len(candidates))]
			if !seen[value] {
				seen[value] = true
				return value, nil
			}
		}
		return nil, &GenerationError{
			Table:  table.Name,
			Column: col.Name,
			Err: errors.Errorf("could not draw a fresh unique value from %s.%s in %d attempts",
				col.ForeignKey.Table, col.ForeignKey.Column, uniqueRetryBudget),
		}
	}

	if seen == nil {
		return gen(g.faker), nil
	}
	for attempt := 0; attempt < uniqueRetryBudget; attempt++ {
		value := gen(g.faker)
		if !seen[value] {
			seen[value] = true
			return value, nil
		}
	}
	return nil, &GenerationError{
		Table:  table.Name,
		Column: col.Name,
		Err:    errors.Errorf("could not draw a fresh unique value in %d attempts", uniqueRetryBudget),
	}
}

// backfillIdentity reads the database-assigned values of an identity column
// into the reference index. When the backend cannot answer, values are
// assumed to be the sequence 1..rowCount of a freshly created table.
func (g *Generator) backfillIdentity(ctx context.Context, table configuration.TableConfig, col configuration.ColumnConfig) error {
	quotedTable := quote(table.Name)
	quotedCol := quote(col.Name)

	minMax, err := g.database.ExecuteQuery(ctx,
		fmt.Sprintf(`SELECT MIN(%s) AS min, MAX(%s) AS max FROM %s`, quotedCol, quotedCol, quotedTable))
	if err != nil {
		return errors.Wrapf(err, "reading bounds of %s.%s", table.Name, col.Name)
	}

	min, max, ok := boundsFromRow(minMax)
	if !ok {
		// Fresh identity columns start at 1 and step by 1.
		min, max = 1, int64(table.RowCount)
	}
	g.refIndex.SetRange(table.Name, col.Name, min, max)

	limit := identitySampleLimit
	sample, err := g.database.ExecuteQuery(ctx,
		fmt.Sprintf(`SELECT %s AS value FROM %s ORDER BY random() LIMIT %d`, quotedCol, quotedTable, limit))
	if err != nil {
		return errors.Wrapf(err, "sampling %s.%s", table.Name, col.Name)
	}
	if len(sample) > 0 {
		for _, row := range sample {
			g.refIndex.Add(table.Name, col.Name, row["value"])
		}
		return nil
	}

	count := table.RowCount
	if count > limit {
		count = limit
	}
	for i := 0; i < count; i++ {
		g.refIndex.Add(table.Name, col.Name, min+int64(i))
	}
	return nil
}

func boundsFromRow(rows []db.Row) (min, max int64, ok bool) {
	if len(rows) == 0 {
		return 0, 0, false
	}
	minV, minOk := asInt64(rows[0]["min"])
	maxV, maxOk := asInt64(rows[0]["max"])
	if !minOk || !maxOk {
		return 0, 0, false
	}
	return minV, maxV, true
}

func keyIndexed(col configuration.ColumnConfig) bool {
	return col.PrimaryKey || col.Unique || col.ForeignKey != nil
}

func quote(name string) string {
	return `"` + name + `"`
}
