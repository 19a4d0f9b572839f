package datagen

import (
	"fmt"
	"sync"
)

type columnKey struct {
	table  string
	column string
}

// columnRange holds the known numeric bounds of a column.
type columnRange struct {
	min int64
	max int64
}

// ReferenceIndex accumulates the values written to key columns during data
// generation so that foreign keys and query parameters can be drawn from
// values that actually exist. Writes happen during generation only; workloads
// read from an immutable Snapshot.
type ReferenceIndex struct {
	mu     sync.Mutex
	values map[columnKey][]any
	ranges map[columnKey]columnRange
}

// NewReferenceIndex returns an empty index.
func NewReferenceIndex() *ReferenceIndex {
	return &ReferenceIndex{
		values: map[columnKey][]any{},
		ranges: map[columnKey]columnRange{},
	}
}

// Add records values generated for a column.
func (r *ReferenceIndex) Add(table, column string, values ...any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := columnKey{table: table, column: column}
	r.values[key] = append(r.values[key], values...)
}

// SetRange records the numeric bounds of a column, overriding any bounds
// derived from recorded values.
func (r *ReferenceIndex) SetRange(table, column string, min, max int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ranges[columnKey{table: table, column: column}] = columnRange{min: min, max: max}
}

// Values returns the values recorded for a column.
func (r *ReferenceIndex) Values(table, column string) []any {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]any{}, r.values[columnKey{table: table, column: column}]...)
}

// Snapshot returns an immutable view of the index, safe for lock-free
// concurrent reads by workload workers.
func (r *ReferenceIndex) Snapshot() *Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	values := make(map[columnKey][]any, len(r.values))
	for k, v := range r.values {
		values[k] = append([]any{}, v...)
	}
	ranges := make(map[columnKey]columnRange, len(r.ranges))
	for k, v := range r.ranges {
		ranges[k] = v
	}
	return &Snapshot{values: values, ranges: ranges}
}

// Snapshot is an immutable view of a ReferenceIndex.
type Snapshot struct {
	values map[columnKey][]any
	ranges map[columnKey]columnRange
}

// Values returns the values recorded for a column. The returned slice must
// not be modified.
func (s *Snapshot) Values(table, column string) []any {
	return s.values[columnKey{table: table, column: column}]
}

// Range returns the numeric bounds of a column. An explicitly set range wins;
// otherwise bounds are derived from the recorded integer values.
func (s *Snapshot) Range(table, column string) (min, max int64, ok bool) {
	key := columnKey{table: table, column: column}
	if r, found := s.ranges[key]; found {
		return r.min, r.max, true
	}

	values := s.values[key]
	first := true
	for _, v := range values {
		n, isInt := asInt64(v)
		if !isInt {
			continue
		}
		if first || n < min {
			min = n
		}
		if first || n > max {
			max = n
		}
		first = false
	}
	if first {
		return 0, 0, false
	}
	return min, max, true
}

func asInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case uint:
		return int64(n), true
	case uint32:
		return int64(n), true
	case uint64:
		return int64(n), true
	case float64:
		if n == float64(int64(n)) {
			return int64(n), true
		}
		return 0, false
	default:
		return 0, false
	}
}

// String is used in debug logging only.
func (s *Snapshot) String() string {
	return fmt.Sprintf("snapshot of %d column(s)", len(s.values))
}
