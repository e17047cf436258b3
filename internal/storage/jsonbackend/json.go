package jsonbackend

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/FranksOps/jobsweep/internal/storage"
)

// ensure jsonBackend implements storage.Backend and storage.Querier
var (
	_ storage.Backend = (*jsonBackend)(nil)
	_ storage.Querier = (*jsonBackend)(nil)
)

type jsonBackend struct {
	mu  sync.Mutex
	dir string
}

// Backend is the concrete type returned by New.
type Backend interface {
	storage.Backend
	storage.Querier
}

// New creates a directory-backed store that writes each batch as the same
// JSON object the object-store backend would upload.
func New(dir string) (Backend, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}
	return &jsonBackend{dir: dir}, nil
}

func (b *jsonBackend) Save(ctx context.Context, batch *storage.Batch) (string, error) {
	data, err := storage.Encode(batch.Findings)
	if err != nil {
		return "", err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	// Write to a temp file and rename so readers never see a partial object.
	tmp, err := os.CreateTemp(b.dir, ".findings-*.tmp")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return "", fmt.Errorf("write findings: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("close temp file: %w", err)
	}

	target := filepath.Join(b.dir, batch.Key)
	if err := os.Rename(tmp.Name(), target); err != nil {
		return "", fmt.Errorf("rename findings file: %w", err)
	}

	return target, nil
}

func (b *jsonBackend) Query(ctx context.Context, filter storage.Filter) ([]*storage.Finding, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	entries, err := os.ReadDir(b.dir)
	if err != nil {
		return nil, fmt.Errorf("read output dir: %w", err)
	}

	// Keys embed a sortable timestamp, so name order is run order.
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)

	var all []*storage.Finding
	for _, name := range names {
		data, err := os.ReadFile(filepath.Join(b.dir, name))
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", name, err)
		}
		findings, err := storage.Decode(data)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		for i := range findings {
			all = append(all, &findings[i])
		}
	}

	return storage.ApplyFilter(all, filter), nil
}

func (b *jsonBackend) Close() error {
	return nil
}
