// Package recommend evaluates heuristic rules over collected DBMS samples and
// emits human-readable recommendations.
package recommend

import (
	"fmt"
	"regexp"
)

var fieldPattern = regexp.MustCompile(`\{([^{}]+)\}`)

// RenderTemplate substitutes {field} references with the row's values. A
// reference to a field absent from the row is left verbatim so that a
// misconfigured template is visible in the output.
func RenderTemplate(template string, row map[string]any) string {
	return fieldPattern.ReplaceAllStringFunc(template, func(match string) string {
		field := match[1 : len(match)-1]
		if value, ok := row[field]; ok {
			return fmt.Sprintf("%v", value)
		}
		return match
	})
}
