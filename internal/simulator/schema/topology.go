// Package schema creates and drops the synthetic schema on the database
// backend, ordering tables so that referenced tables always exist before their
// referents.
package schema

import (
	"fmt"
	"sort"
	"strings"

	"github.com/sqlsimproject/sqlsim/internal/simulator/configuration"
)

// CycleError reports a foreign key cycle in the schema definition.
type CycleError struct {
	// Tables still unordered when the sort stalled.
	Tables []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("foreign key cycle involving tables: %s", strings.Join(e.Tables, ", "))
}

// TopologicalOrder returns the schema's tables ordered so that every table
// appears after the tables it references. Tables with no dependency between
// them keep their configuration order.
func TopologicalOrder(schema *configuration.SchemaConfig) ([]configuration.TableConfig, error) {
	position := make(map[string]int, len(schema.Tables))
	inDegree := make(map[string]int, len(schema.Tables))
	dependents := make(map[string][]string, len(schema.Tables))

	for i, t := range schema.Tables {
		position[t.Name] = i
		inDegree[t.Name] = 0
	}
	for _, t := range schema.Tables {
		for _, col := range t.Columns {
			if col.ForeignKey == nil || col.ForeignKey.Table == t.Name {
				// Self-references do not constrain table creation order.
				continue
			}
			inDegree[t.Name]++
			dependents[col.ForeignKey.Table] = append(dependents[col.ForeignKey.Table], t.Name)
		}
	}

	var ready []string
	for _, t := range schema.Tables {
		if inDegree[t.Name] == 0 {
			ready = append(ready, t.Name)
		}
	}

	ordered := make([]configuration.TableConfig, 0, len(schema.Tables))
	for len(ready) > 0 {
		sort.Slice(ready, func(i, j int) bool { return position[ready[i]] < position[ready[j]] })
		name := ready[0]
		ready = ready[1:]

		table, _ := schema.Table(name)
		ordered = append(ordered, table)
		for _, dep := range dependents[name] {
			inDegree[dep]--
			if inDegree[dep] == 0 {
				ready = append(ready, dep)
			}
		}
	}

	if len(ordered) != len(schema.Tables) {
		var remaining []string
		for _, t := range schema.Tables {
			if inDegree[t.Name] > 0 {
				remaining = append(remaining, t.Name)
			}
		}
		return nil, &CycleError{Tables: remaining}
	}
	return ordered, nil
}
