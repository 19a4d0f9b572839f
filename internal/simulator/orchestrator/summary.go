package orchestrator

import (
	"sort"
	"time"

	"github.com/sqlsimproject/sqlsim/internal/simulator/metrics"
)

// QuerySummary aggregates the executions of one query within one workload.
type QuerySummary struct {
	Workload      string
	Query         string
	Count         int
	Failures      int
	TotalDuration time.Duration
	MinDuration   time.Duration
	MaxDuration   time.Duration
}

// AvgDuration returns the mean execution duration.
func (s QuerySummary) AvgDuration() time.Duration {
	if s.Count == 0 {
		return 0
	}
	return s.TotalDuration / time.Duration(s.Count)
}

// Summarize aggregates query results per workload and query, ordered by
// workload then query name.
func Summarize(results []metrics.QueryResult) []QuerySummary {
	type key struct {
		workload string
		query    string
	}

	byQuery := map[key]*QuerySummary{}
	for _, r := range results {
		k := key{workload: r.Workload, query: r.Query}
		s, ok := byQuery[k]
		if !ok {
			s = &QuerySummary{Workload: r.Workload, Query: r.Query, MinDuration: r.Duration}
			byQuery[k] = s
		}
		s.Count++
		if !r.Succeeded {
			s.Failures++
		}
		s.TotalDuration += r.Duration
		if r.Duration < s.MinDuration {
			s.MinDuration = r.Duration
		}
		if r.Duration > s.MaxDuration {
			s.MaxDuration = r.Duration
		}
	}

	summaries := make([]QuerySummary, 0, len(byQuery))
	for _, s := range byQuery {
		summaries = append(summaries, *s)
	}
	sort.Slice(summaries, func(i, j int) bool {
		if summaries[i].Workload != summaries[j].Workload {
			return summaries[i].Workload < summaries[j].Workload
		}
		return summaries[i].Query < summaries[j].Query
	})
	return summaries
}
