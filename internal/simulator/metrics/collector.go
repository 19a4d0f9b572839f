package metrics

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
)

// File names written under the run directory.
const (
	QueryResultsFile    = "query_results.jsonl"
	SystemSamplesFile   = "system_samples.jsonl"
	DBMSSamplesFile     = "dbms_samples.jsonl"
	RecommendationsFile = "recommendations.log"
)

// runDirTimestampFormat names the per-run directory, e.g. 20260823_151504.
const runDirTimestampFormat = "20060102_150405"

// Collector persists run records as JSON lines, one file per record kind,
// under a timestamped directory. It is safe for concurrent use.
type Collector struct {
	runDir string

	mu    sync.Mutex
	files map[string]*os.File
}

// NewCollector creates the run directory under outputDir and returns a
// collector writing into it.
func NewCollector(outputDir string, start time.Time) (*Collector, error) {
	runDir := filepath.Join(outputDir, start.Format(runDirTimestampFormat))
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return nil, errors.Wrapf(err, "creating run directory %s", runDir)
	}
	return &Collector{
		runDir: runDir,
		files:  map[string]*os.File{},
	}, nil
}

// RunDir returns the directory this collector writes into.
func (c *Collector) RunDir() string {
	return c.runDir
}

// RecordQueryResult appends a query execution record.
func (c *Collector) RecordQueryResult(r QueryResult) error {
	return c.appendJSON(QueryResultsFile, r)
}

// RecordSystemSample appends an OS metrics sample.
func (c *Collector) RecordSystemSample(s SystemSample) error {
	return c.appendJSON(SystemSamplesFile, s)
}

// RecordDBMSSample appends one row of a DBMS metrics poll.
func (c *Collector) RecordDBMSSample(s DBMSSample) error {
	return c.appendJSON(DBMSSamplesFile, s)
}

// RecordRecommendation appends a triggered recommendation. Recommendations are
// written as plain text, one per line, since they are meant to be read by a
// person rather than parsed.
func (c *Collector) RecordRecommendation(r Recommendation) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	f, err := c.file(RecommendationsFile)
	if err != nil {
		return err
	}
	line := r.Timestamp.Format(time.RFC3339) + " [" + r.Heuristic + "] " + r.Text + "\n"
	_, err = f.WriteString(line)
	return errors.Wrap(err, "writing recommendation")
}

// ReadDBMSSamples reads back every DBMS sample persisted so far. Used by the
// recommendation phase after the workloads have finished.
func (c *Collector) ReadDBMSSamples() ([]DBMSSample, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if f, ok := c.files[DBMSSamplesFile]; ok {
		if err := f.Sync(); err != nil {
			return nil, errors.Wrap(err, "syncing dbms samples")
		}
	}

	path := filepath.Join(c.runDir, DBMSSamplesFile)
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.Wrapf(err, "opening %s", path)
	}
	defer f.Close()

	var samples []DBMSSample
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		var s DBMSSample
		if err := json.Unmarshal(scanner.Bytes(), &s); err != nil {
			return nil, errors.Wrapf(err, "parsing %s", path)
		}
		samples = append(samples, s)
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrapf(err, "reading %s", path)
	}
	return samples, nil
}

// ReadQueryResults reads back every query result persisted so far. Used by the
// post-run summary.
func (c *Collector) ReadQueryResults() ([]QueryResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if f, ok := c.files[QueryResultsFile]; ok {
		if err := f.Sync(); err != nil {
			return nil, errors.Wrap(err, "syncing query results")
		}
	}

	path := filepath.Join(c.runDir, QueryResultsFile)
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.Wrapf(err, "opening %s", path)
	}
	defer f.Close()

	var results []QueryResult
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		var r QueryResult
		if err := json.Unmarshal(scanner.Bytes(), &r); err != nil {
			return nil, errors.Wrapf(err, "parsing %s", path)
		}
		results = append(results, r)
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrapf(err, "reading %s", path)
	}
	return results, nil
}

// Close flushes and closes every open file.
func (c *Collector) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var result *multierror.Error
	for name, f := range c.files {
		if err := f.Close(); err != nil {
			result = multierror.Append(result, errors.Wrapf(err, "closing %s", name))
		}
		delete(c.files, name)
	}
	return result.ErrorOrNil()
}

func (c *Collector) appendJSON(name string, record any) error {
	// Marshal outside the critical section; a single Write keeps lines intact
	// under concurrent use.
	data, err := json.Marshal(record)
	if err != nil {
		return errors.Wrapf(err, "marshalling %s record", name)
	}
	data = append(data, '\n')

	c.mu.Lock()
	defer c.mu.Unlock()
	f, err := c.file(name)
	if err != nil {
		return err
	}
	_, err = f.Write(data)
	return errors.Wrapf(err, "writing %s record", name)
}

// file returns the open file for the given name, opening it on first use.
// Callers must hold c.mu.
func (c *Collector) file(name string) (*os.File, error) {
	if f, ok := c.files[name]; ok {
		return f, nil
	}
	path := filepath.Join(c.runDir, name)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, errors.Wrapf(err, "opening %s", path)
	}
	c.files[name] = f
	return f, nil
}
