// Package datagen populates the synthetic schema with relationally consistent
// fake data.
package datagen

import (
	"strings"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/pkg/errors"

	"github.com/sqlsimproject/sqlsim/internal/simulator/configuration"
)

// ValueGenerator produces one value for a column.
type ValueGenerator func(faker *gofakeit.Faker) any

// namedGenerators are the generators selectable by name in a column's
// configuration. Params, where used, are read when the generator is resolved.
var namedGenerators = map[string]func(col configuration.ColumnConfig) ValueGenerator{
	"name":       func(configuration.ColumnConfig) ValueGenerator { return func(f *gofakeit.Faker) any { return f.Name() } },
	"first_name": func(configuration.ColumnConfig) ValueGenerator { return func(f *gofakeit.Faker) any { return f.FirstName() } },
	"last_name":  func(configuration.ColumnConfig) ValueGenerator { return func(f *gofakeit.Faker) any { return f.LastName() } },
	"username":   func(configuration.ColumnConfig) ValueGenerator { return func(f *gofakeit.Faker) any { return f.Username() } },
	"email":      func(configuration.ColumnConfig) ValueGenerator { return func(f *gofakeit.Faker) any { return f.Email() } },
	"company":    func(configuration.ColumnConfig) ValueGenerator { return func(f *gofakeit.Faker) any { return f.Company() } },
	"city":       func(configuration.ColumnConfig) ValueGenerator { return func(f *gofakeit.Faker) any { return f.City() } },
	"country":    func(configuration.ColumnConfig) ValueGenerator { return func(f *gofakeit.Faker) any { return f.Country() } },
	"street":     func(configuration.ColumnConfig) ValueGenerator { return func(f *gofakeit.Faker) any { return f.Street() } },
	"phone":      func(configuration.ColumnConfig) ValueGenerator { return func(f *gofakeit.Faker) any { return f.Phone() } },
	"uuid":       func(configuration.ColumnConfig) ValueGenerator { return func(f *gofakeit.Faker) any { return f.UUID() } },
	"word":       func(configuration.ColumnConfig) ValueGenerator { return func(f *gofakeit.Faker) any { return f.Word() } },
	"sentence": func(col configuration.ColumnConfig) ValueGenerator {
		words := intParam(col, "words", 8)
		return func(f *gofakeit.Faker) any { return f.Sentence(words) }
	},
	"paragraph": func(col configuration.ColumnConfig) ValueGenerator {
		sentences := intParam(col, "sentences", 4)
		return func(f *gofakeit.Faker) any { return f.Paragraph(1, sentences, 10, " ") }
	},
	"int": func(col configuration.ColumnConfig) ValueGenerator {
		min := intParam(col, "min", 0)
		max := intParam(col, "max", 1_000_000)
		return func(f *gofakeit.Faker) any { return f.Number(min, max) }
	},
	"float": func(col configuration.ColumnConfig) ValueGenerator {
		min := floatParam(col, "min", 0)
		max := floatParam(col, "max", 1_000_000)
		return func(f *gofakeit.Faker) any { return f.Float64Range(min, max) }
	},
	"price": func(col configuration.ColumnConfig) ValueGenerator {
		min := floatParam(col, "min", 0.01)
		max := floatParam(col, "max", 10_000)
		return func(f *gofakeit.Faker) any { return f.Price(min, max) }
	},
	"bool": func(configuration.ColumnConfig) ValueGenerator { return func(f *gofakeit.Faker) any { return f.Bool() } },
	"date": func(col configuration.ColumnConfig) ValueGenerator {
		end := time.Now()
		start := end.AddDate(-intParam(col, "years_back", 5), 0, 0)
		return func(f *gofakeit.Faker) any { return f.DateRange(start, end) }
	},
}

// ResolveGenerator returns the value generator for a column: the configured
// named generator if set, otherwise one appropriate to the column's type.
func ResolveGenerator(col configuration.ColumnConfig) (ValueGenerator, error) {
	name := col.Generator
	if name == "" {
		name = defaultGeneratorName(col)
	}
	factory, ok := namedGenerators[name]
	if !ok {
		return nil, errors.Errorf("unknown generator %q for column %q", name, col.Name)
	}

	gen := factory(col)
	if maxLen := col.Length; maxLen > 0 {
		return truncated(gen, maxLen), nil
	}
	return gen, nil
}

func defaultGeneratorName(col configuration.ColumnConfig) string {
	switch strings.ToUpper(col.Type) {
	case "INT", "INTEGER", "BIGINT", "SMALLINT":
		return "int"
	case "DECIMAL", "NUMERIC":
		return "price"
	case "FLOAT", "DOUBLE":
		return "float"
	case "BIT", "BOOLEAN", "BOOL":
		return "bool"
	case "DATE", "DATETIME", "TIMESTAMP":
		return "date"
	case "UUID":
		return "uuid"
	default:
		return "word"
	}
}

// truncated clips string values to the column length.
func truncated(gen ValueGenerator, maxLen int) ValueGenerator {
	return func(f *gofakeit.Faker) any {
		v := gen(f)
		if s, ok := v.(string); ok && len(s) > maxLen {
			return s[:maxLen]
		}
		return v
	}
}

func intParam(col configuration.ColumnConfig, name string, fallback int) int {
	if v, ok := col.Params[name]; ok {
		if n, isInt := asInt64(v); isInt {
			return int(n)
		}
	}
	return fallback
}

func floatParam(col configuration.ColumnConfig, name string, fallback float64) float64 {
	if v, ok := col.Params[name]; ok {
		switch n := v.(type) {
		case float64:
			return n
		case int:
			return float64(n)
		case int64:
			return float64(n)
		}
	}
	return fallback
}
