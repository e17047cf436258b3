package csvbackend

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/FranksOps/jobsweep/internal/storage"
)

// ensure csvBackend implements storage.Backend and storage.Querier
var (
	_ storage.Backend = (*csvBackend)(nil)
	_ storage.Querier = (*csvBackend)(nil)
)

type csvBackend struct {
	mu  sync.Mutex
	dir string
}

// headers defines the CSV column order
var headers = []string{
	"run_id",
	"source_query",
	"found_keyword",
	"job_title",
	"link",
	"snippet",
	"retrieved_at",
}

// Backend is the concrete type returned by New.
type Backend interface {
	storage.Backend
	storage.Querier
}

// New creates a CSV store that writes one file per run into dir.
func New(dir string) (Backend, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create csv dir: %w", err)
	}
	return &csvBackend{dir: dir}, nil
}

func fileName(key string) string {
	return strings.TrimSuffix(key, ".json") + ".csv"
}

func (b *csvBackend) Save(ctx context.Context, batch *storage.Batch) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	// Write to a temp file and rename so a failed save leaves no partial file.
	tmp, err := os.CreateTemp(b.dir, ".findings-*.tmp")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := writeRecords(tmp, batch); err != nil {
		tmp.Close()
		return "", err
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("close temp file: %w", err)
	}

	target := filepath.Join(b.dir, fileName(batch.Key))
	if err := os.Rename(tmp.Name(), target); err != nil {
		return "", fmt.Errorf("rename csv file: %w", err)
	}

	return target, nil
}

func writeRecords(out io.Writer, batch *storage.Batch) error {
	w := csv.NewWriter(out)
	if err := w.Write(headers); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, fd := range batch.Findings {
		record := []string{
			batch.RunID,
			fd.SourceQuery,
			fd.FoundKeyword,
			fd.JobTitle,
			fd.Link,
			fd.Snippet,
			fd.RetrievedAt.UTC().Format(time.RFC3339Nano),
		}
		if err := w.Write(record); err != nil {
			return fmt.Errorf("write csv record: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	return nil
}

func (b *csvBackend) Query(ctx context.Context, filter storage.Filter) ([]*storage.Finding, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	entries, err := os.ReadDir(b.dir)
	if err != nil {
		return nil, fmt.Errorf("read csv dir: %w", err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".csv") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	var all []*storage.Finding
	for _, name := range names {
		found, err := readFile(filepath.Join(b.dir, name))
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		all = append(all, found...)
	}

	return storage.ApplyFilter(all, filter), nil
}

func readFile(path string) ([]*storage.Finding, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	// Read headers
	if _, err := r.Read(); err != nil {
		if err == io.EOF {
			return nil, nil
		}
		return nil, err
	}

	var out []*storage.Finding
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if len(record) != len(headers) {
			continue // skip malformed rows
		}

		retrievedAt, _ := time.Parse(time.RFC3339Nano, record[6])
		out = append(out, &storage.Finding{
			SourceQuery:  record[1],
			FoundKeyword: record[2],
			JobTitle:     record[3],
			Link:         record[4],
			Snippet:      record[5],
			RetrievedAt:  retrievedAt,
		})
	}
	return out, nil
}

func (b *csvBackend) Close() error {
	return nil
}
