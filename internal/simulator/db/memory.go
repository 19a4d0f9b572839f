package db

import (
	"context"
	"strings"
	"sync"

	"github.com/pkg/errors"
)

// QueryHandler produces the rows returned for a matched query. The context is
// the one the query runs under, so handlers can emulate statements that block
// until cancellation.
type QueryHandler func(ctx context.Context, params ...any) ([]Row, error)

// MemoryDatabase is an in-process Database used for dry runs and tests. DDL
// statements are recorded, bulk inserts are stored per table, and queries are
// answered by registered handlers since the SQL text is opaque to it.
type MemoryDatabase struct {
	mu sync.Mutex

	ddl      []string
	tables   map[string]*memoryTable
	handlers []queryHandlerEntry
}

type memoryTable struct {
	columns []string
	rows    [][]any
}

type queryHandlerEntry struct {
	substring string
	handler   QueryHandler
}

// NewMemoryDatabase returns an empty in-memory database.
func NewMemoryDatabase() *MemoryDatabase {
	return &MemoryDatabase{tables: map[string]*memoryTable{}}
}

// RegisterQueryHandler answers queries whose text contains the given
// substring. Handlers are matched in registration order.
func (m *MemoryDatabase) RegisterQueryHandler(substring string, handler QueryHandler) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers = append(m.handlers, queryHandlerEntry{substring: substring, handler: handler})
}

func (m *MemoryDatabase) ExecuteDDL(_ context.Context, statement string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ddl = append(m.ddl, statement)
	return nil
}

func (m *MemoryDatabase) ExecuteQuery(ctx context.Context, query string, params ...any) ([]Row, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	handlers := make([]queryHandlerEntry, len(m.handlers))
	copy(handlers, m.handlers)
	m.mu.Unlock()

	for _, h := range handlers {
		if strings.Contains(query, h.substring) {
			return h.handler(ctx, params...)
		}
	}
	// Unmatched queries succeed with no rows so that workloads can run against
	// this backend without registering a handler per template.
	return []Row{}, nil
}

func (m *MemoryDatabase) ExecuteBulkInsert(_ context.Context, table string, columns []string, rows [][]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.tables[table]
	if !ok {
		t = &memoryTable{columns: append([]string{}, columns...)}
		m.tables[table] = t
	}
	if len(t.columns) != len(columns) {
		return errors.Errorf("bulk insert into %s: expected %d columns, got %d", table, len(t.columns), len(columns))
	}
	for _, row := range rows {
		if len(row) != len(columns) {
			return errors.Errorf("bulk insert into %s: row has %d values for %d columns", table, len(row), len(columns))
		}
		t.rows = append(t.rows, append([]any{}, row...))
	}
	return nil
}

func (m *MemoryDatabase) Close() {}

// DDLStatements returns the DDL executed so far, in order.
func (m *MemoryDatabase) DDLStatements() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string{}, m.ddl...)
}

// RowCount returns the number of rows inserted into the given table.
func (m *MemoryDatabase) RowCount(table string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t, ok := m.tables[table]; ok {
		return len(t.rows)
	}
	return 0
}

// TableRows returns the inserted rows of the given table keyed by column name.
func (m *MemoryDatabase) TableRows(table string) []Row {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tables[table]
	if !ok {
		return nil
	}
	rows := make([]Row, 0, len(t.rows))
	for _, values := range t.rows {
		row := make(Row, len(t.columns))
		for i, col := range t.columns {
			row[col] = values[i]
		}
		rows = append(rows, row)
	}
	return rows
}

// ColumnValues returns the inserted values of one column of the given table.
func (m *MemoryDatabase) ColumnValues(table, column string) []any {
	var values []any
	for _, row := range m.TableRows(table) {
		if v, ok := row[column]; ok {
			values = append(values, v)
		}
	}
	return values
}
