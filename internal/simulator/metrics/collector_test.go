package metrics

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCollector(t *testing.T) *Collector {
	t.Helper()
	c, err := NewCollector(t.TempDir(), time.Date(2026, 8, 23, 15, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestCollector_CreatesRunDirectory(t *testing.T) {
	outputDir := t.TempDir()
	start := time.Date(2026, 8, 23, 15, 4, 5, 0, time.UTC)

	c, err := NewCollector(outputDir, start)
	require.NoError(t, err)
	defer c.Close()

	assert.Equal(t, filepath.Join(outputDir, "20260823_150405"), c.RunDir())
	info, err := os.Stat(c.RunDir())
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestCollector_QueryResultsRoundTrip(t *testing.T) {
	c := newTestCollector(t)

	want := QueryResult{
		Timestamp: time.Now().UTC().Truncate(time.Millisecond),
		Workload:  "Simple_User_Lookups",
		Query:     "GetUserByID",
		Worker:    1,
		Duration:  12 * time.Millisecond,
		Rows:      1,
		Succeeded: true,
	}
	require.NoError(t, c.RecordQueryResult(want))

	got, err := c.ReadQueryResults()
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, want, got[0])
}

func TestCollector_DBMSSamplesRoundTrip(t *testing.T) {
	c := newTestCollector(t)

	require.NoError(t, c.RecordDBMSSample(DBMSSample{
		Timestamp:  time.Now().UTC(),
		Metric:     "index_usage",
		SnapshotID: "snap-1",
		Row:        map[string]any{"relname": "IX_Posts_UserID", "idx_scan": float64(0)},
	}))
	require.NoError(t, c.RecordDBMSSample(DBMSSample{
		Timestamp:  time.Now().UTC(),
		Metric:     "index_usage",
		SnapshotID: "snap-1",
		Row:        map[string]any{"relname": "IX_Users_Username", "idx_scan": float64(42)},
	}))

	samples, err := c.ReadDBMSSamples()
	require.NoError(t, err)
	require.Len(t, samples, 2)
	assert.Equal(t, "index_usage", samples[0].Metric)
	assert.Equal(t, "snap-1", samples[1].SnapshotID)
	assert.Equal(t, float64(42), samples[1].Row["idx_scan"])
}

func TestCollector_ReadWithoutRecords(t *testing.T) {
	c := newTestCollector(t)

	samples, err := c.ReadDBMSSamples()
	require.NoError(t, err)
	assert.Empty(t, samples)

	results, err := c.ReadQueryResults()
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestCollector_ConcurrentWritesProduceValidLines(t *testing.T) {
	c := newTestCollector(t)

	const writers = 8
	const perWriter = 50

	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			for i := 0; i < perWriter; i++ {
				err := c.RecordQueryResult(QueryResult{
					Timestamp: time.Now().UTC(),
					Workload:  "load",
					Query:     "q",
					Worker:    worker,
					Succeeded: true,
				})
				assert.NoError(t, err)
			}
		}(w)
	}
	wg.Wait()
	require.NoError(t, c.Close())

	f, err := os.Open(filepath.Join(c.RunDir(), QueryResultsFile))
	require.NoError(t, err)
	defer f.Close()

	lines := 0
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var r QueryResult
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &r))
		lines++
	}
	require.NoError(t, scanner.Err())
	assert.Equal(t, writers*perWriter, lines)
}

func TestCollector_RecommendationsArePlainText(t *testing.T) {
	c := newTestCollector(t)

	require.NoError(t, c.RecordRecommendation(Recommendation{
		Timestamp: time.Date(2026, 8, 23, 16, 0, 0, 0, time.UTC),
		Heuristic: "unused_index",
		Metric:    "index_usage",
		Text:      "Index on IX_Posts_UserID was never scanned; consider dropping it.",
	}))
	require.NoError(t, c.Close())

	data, err := os.ReadFile(filepath.Join(c.RunDir(), RecommendationsFile))
	require.NoError(t, err)
	line := strings.TrimSpace(string(data))
	assert.Contains(t, line, "[unused_index]")
	assert.Contains(t, line, "never scanned")
	assert.False(t, strings.HasPrefix(line, "{"))
}
