package db

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/avast/retry-go"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"

	"github.com/sqlsimproject/sqlsim/internal/common/logging"
)

// PostgresDatabase implements Database on a pgx connection pool.
type PostgresDatabase struct {
	pool *pgxpool.Pool
}

// CreateConnectionString joins libpq-style key/value parameters into a
// connection string.
// See https://www.postgresql.org/docs/current/libpq-connect.html#LIBPQ-CONNSTRING
func CreateConnectionString(values map[string]string) string {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	replacer := strings.NewReplacer(`\`, `\\`, `'`, `\'`)
	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, k+"='"+replacer.Replace(values[k])+"'")
	}
	return strings.Join(pairs, " ")
}

// OpenPostgresDatabase opens a connection pool using the given libpq-style
// parameters, retrying the initial connection a few times since the database
// may still be starting up.
func OpenPostgresDatabase(ctx context.Context, config map[string]string) (*PostgresDatabase, error) {
	connString := CreateConnectionString(config)
	poolConfig, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, errors.Wrap(err, "parsing postgres connection parameters")
	}

	var pool *pgxpool.Pool
	err = retry.Do(
		func() error {
			var err error
			pool, err = pgxpool.NewWithConfig(ctx, poolConfig)
			if err != nil {
				return err
			}
			if err = pool.Ping(ctx); err != nil {
				pool.Close()
				return err
			}
			return nil
		},
		retry.Attempts(5),
		retry.Delay(time.Second),
		retry.OnRetry(func(n uint, err error) {
			logging.WithError(err).Warnf("Postgres connection attempt %d failed, retrying", n+1)
		}),
	)
	if err != nil {
		return nil, errors.Wrap(err, "connecting to postgres")
	}
	return &PostgresDatabase{pool: pool}, nil
}

func (p *PostgresDatabase) ExecuteDDL(ctx context.Context, statement string) error {
	if _, err := p.pool.Exec(ctx, statement); err != nil {
		return errors.Wrapf(err, "executing ddl %q", statement)
	}
	return nil
}

func (p *PostgresDatabase) ExecuteQuery(ctx context.Context, query string, params ...any) ([]Row, error) {
	rows, err := p.pool.Query(ctx, query, params...)
	if err != nil {
		return nil, errors.Wrap(err, "executing query")
	}
	defer rows.Close()

	fields := rows.FieldDescriptions()
	results := []Row{}
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, errors.Wrap(err, "reading row")
		}
		row := make(Row, len(fields))
		for i, field := range fields {
			row[field.Name] = values[i]
		}
		results = append(results, row)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "iterating rows")
	}
	return results, nil
}

func (p *PostgresDatabase) ExecuteBulkInsert(ctx context.Context, table string, columns []string, rows [][]any) error {
	if len(rows) == 0 {
		return nil
	}
	n, err := p.pool.CopyFrom(
		ctx,
		pgx.Identifier{table},
		columns,
		pgx.CopyFromRows(rows),
	)
	if err != nil {
		return errors.Wrapf(err, "bulk inserting into %s", table)
	}
	if int(n) != len(rows) {
		return errors.Errorf("bulk insert into %s wrote %d of %d rows", table, n, len(rows))
	}
	return nil
}

func (p *PostgresDatabase) Close() {
	p.pool.Close()
}
