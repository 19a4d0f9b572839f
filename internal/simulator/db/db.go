// Package db abstracts the database backend the simulator runs against.
package db

import (
	"context"

	"github.com/pkg/errors"

	"github.com/sqlsimproject/sqlsim/internal/simulator/configuration"
)

// Row is one result row keyed by column name.
type Row map[string]any

// Database is the backend interface used by schema management, data
// generation, workloads and DBMS monitoring.
type Database interface {
	// ExecuteDDL runs a schema-changing statement.
	ExecuteDDL(ctx context.Context, statement string) error
	// ExecuteQuery runs a parameterized statement and returns its rows.
	// Statements that return no rows yield an empty slice.
	ExecuteQuery(ctx context.Context, query string, params ...any) ([]Row, error)
	// ExecuteBulkInsert inserts rows into a table in one operation. Values are
	// given per row, in the order of columns.
	ExecuteBulkInsert(ctx context.Context, table string, columns []string, rows [][]any) error
	// Close releases the backend's resources.
	Close()
}

// NewDatabase constructs the backend selected by the configuration.
func NewDatabase(ctx context.Context, config configuration.DatabaseConfig) (Database, error) {
	switch {
	case len(config.Postgres) > 0:
		return OpenPostgresDatabase(ctx, config.Postgres)
	case config.InMemory:
		return NewMemoryDatabase(), nil
	default:
		return nil, errors.New("no database backend configured")
	}
}
