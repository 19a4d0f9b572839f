package schema

import (
	"context"
	"fmt"
	"strings"

	"github.com/pkg/errors"

	"github.com/sqlsimproject/sqlsim/internal/common/logging"
	"github.com/sqlsimproject/sqlsim/internal/simulator/configuration"
	"github.com/sqlsimproject/sqlsim/internal/simulator/db"
)

// Manager creates and drops the configured schema on a database backend.
type Manager struct {
	schema   *configuration.SchemaConfig
	database db.Database
}

// NewManager returns a Manager for the given schema and backend.
func NewManager(schema *configuration.SchemaConfig, database db.Database) *Manager {
	return &Manager{schema: schema, database: database}
}

// CreateAll creates every table, index and foreign key constraint. When
// recreate is set, existing tables are dropped first. Tables are created in
// dependency order; foreign keys are added afterwards so that self-references
// work too.
func (m *Manager) CreateAll(ctx context.Context, recreate bool) error {
	ordered, err := TopologicalOrder(m.schema)
	if err != nil {
		return err
	}

	if recreate {
		if err := m.dropAll(ctx, ordered); err != nil {
			return err
		}
	}

	for _, table := range ordered {
		statement := CreateTableStatement(table)
		logging.WithField("table", table.Name).Debug("Creating table")
		if err := m.database.ExecuteDDL(ctx, statement); err != nil {
			return errors.Wrapf(err, "creating table %s", table.Name)
		}
		for _, idx := range table.Indexes {
			if err := m.database.ExecuteDDL(ctx, CreateIndexStatement(table.Name, idx)); err != nil {
				return errors.Wrapf(err, "creating index %s on %s", idx.Name, table.Name)
			}
		}
	}

	for _, table := range ordered {
		for _, col := range table.Columns {
			if col.ForeignKey == nil {
				continue
			}
			if err := m.database.ExecuteDDL(ctx, AddForeignKeyStatement(table.Name, col)); err != nil {
				return errors.Wrapf(err, "adding foreign key on %s.%s", table.Name, col.Name)
			}
		}
	}

	logging.Infof("Created %d table(s)", len(ordered))
	return nil
}

// DropAll drops every configured table, referents before referenced.
func (m *Manager) DropAll(ctx context.Context) error {
	ordered, err := TopologicalOrder(m.schema)
	if err != nil {
		return err
	}
	return m.dropAll(ctx, ordered)
}

func (m *Manager) dropAll(ctx context.Context, ordered []configuration.TableConfig) error {
	for i := len(ordered) - 1; i >= 0; i-- {
		statement := fmt.Sprintf(`DROP TABLE IF EXISTS %s CASCADE`, quoteIdentifier(ordered[i].Name))
		if err := m.database.ExecuteDDL(ctx, statement); err != nil {
			return errors.Wrapf(err, "dropping table %s", ordered[i].Name)
		}
	}
	return nil
}

// CreateTableStatement renders the CREATE TABLE DDL for a table, excluding
// foreign key constraints.
func CreateTableStatement(table configuration.TableConfig) string {
	defs := make([]string, 0, len(table.Columns)+1)
	var pkColumns []string
	for _, col := range table.Columns {
		defs = append(defs, columnDefinition(col))
		if col.PrimaryKey {
			pkColumns = append(pkColumns, quoteIdentifier(col.Name))
		}
	}
	if len(pkColumns) > 0 {
		defs = append(defs, fmt.Sprintf("PRIMARY KEY (%s)", strings.Join(pkColumns, ", ")))
	}
	return fmt.Sprintf("CREATE TABLE %s (\n    %s\n)", quoteIdentifier(table.Name), strings.Join(defs, ",\n    "))
}

// CreateIndexStatement renders the CREATE INDEX DDL for an index.
func CreateIndexStatement(table string, idx configuration.IndexConfig) string {
	unique := ""
	if idx.IsUnique() {
		unique = "UNIQUE "
	}
	statement := fmt.Sprintf("CREATE %sINDEX %s ON %s (%s)",
		unique, quoteIdentifier(idx.Name), quoteIdentifier(table), quoteIdentifiers(idx.Columns))
	if len(idx.Include) > 0 {
		statement += fmt.Sprintf(" INCLUDE (%s)", quoteIdentifiers(idx.Include))
	}
	return statement
}

// AddForeignKeyStatement renders the ALTER TABLE DDL adding a column's foreign
// key constraint.
func AddForeignKeyStatement(table string, col configuration.ColumnConfig) string {
	fk := col.ForeignKey
	constraint := fmt.Sprintf("FK_%s_%s", table, col.Name)
	return fmt.Sprintf("ALTER TABLE %s ADD CONSTRAINT %s FOREIGN KEY (%s) REFERENCES %s (%s)",
		quoteIdentifier(table), quoteIdentifier(constraint), quoteIdentifier(col.Name),
		quoteIdentifier(fk.Table), quoteIdentifier(fk.Column))
}

func columnDefinition(col configuration.ColumnConfig) string {
	parts := []string{quoteIdentifier(col.Name), sqlType(col)}
	if col.Identity {
		parts = append(parts, "GENERATED ALWAYS AS IDENTITY")
	}
	if col.NotNull && !col.PrimaryKey {
		parts = append(parts, "NOT NULL")
	}
	if col.Unique && !col.PrimaryKey {
		parts = append(parts, "UNIQUE")
	}
	if col.Default != nil {
		parts = append(parts, "DEFAULT "+renderDefault(col.Default))
	}
	return strings.Join(parts, " ")
}

// sqlType maps a configured logical type onto a Postgres type.
func sqlType(col configuration.ColumnConfig) string {
	switch strings.ToUpper(col.Type) {
	case "INT", "INTEGER":
		return "INTEGER"
	case "BIGINT":
		return "BIGINT"
	case "SMALLINT":
		return "SMALLINT"
	case "VARCHAR", "NVARCHAR":
		if col.Length > 0 {
			return fmt.Sprintf("VARCHAR(%d)", col.Length)
		}
		return "TEXT"
	case "CHAR", "NCHAR":
		if col.Length > 0 {
			return fmt.Sprintf("CHAR(%d)", col.Length)
		}
		return "CHAR(1)"
	case "TEXT":
		return "TEXT"
	case "DECIMAL", "NUMERIC":
		if col.Precision > 0 {
			return fmt.Sprintf("NUMERIC(%d,%d)", col.Precision, col.Scale)
		}
		return "NUMERIC"
	case "FLOAT", "DOUBLE":
		return "DOUBLE PRECISION"
	case "BIT", "BOOLEAN", "BOOL":
		return "BOOLEAN"
	case "DATE":
		return "DATE"
	case "DATETIME", "TIMESTAMP":
		return "TIMESTAMP"
	case "UUID":
		return "UUID"
	default:
		// Pass unrecognised types through verbatim; the backend will reject
		// them if they are invalid.
		return col.Type
	}
}

func renderDefault(value any) string {
	switch v := value.(type) {
	case string:
		return "'" + strings.ReplaceAll(v, "'", "''") + "'"
	case bool:
		if v {
			return "TRUE"
		}
		return "FALSE"
	default:
		return fmt.Sprintf("%v", v)
	}
}

func quoteIdentifier(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func quoteIdentifiers(names []string) string {
	quoted := make([]string, len(names))
	for i, n := range names {
		quoted[i] = quoteIdentifier(n)
	}
	return strings.Join(quoted, ", ")
}
