package jsonbackend

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/FranksOps/jobsweep/internal/storage"
)

func TestJSONBackend(t *testing.T) {
	tmpDir := t.TempDir()
	dir := filepath.Join(tmpDir, "out")

	b, err := New(dir)
	if err != nil {
		t.Fatalf("Failed to create JSON backend: %v", err)
	}
	defer b.Close()

	ctx := context.Background()
	now := time.Now().Truncate(time.Millisecond).UTC()

	first := &storage.Batch{
		RunID:     "run1",
		Key:       storage.ObjectKey(storage.DefaultKeyPrefix, now.Add(-2*time.Hour)),
		CreatedAt: now.Add(-2 * time.Hour),
		Findings: []storage.Finding{
			{SourceQuery: "q1", FoundKeyword: "cloud engineer", JobTitle: "Cloud Engineer", Link: "https://a/1", RetrievedAt: now.Add(-2 * time.Hour)},
		},
	}
	second := &storage.Batch{
		RunID:     "run2",
		Key:       storage.ObjectKey(storage.DefaultKeyPrefix, now),
		CreatedAt: now,
		Findings: []storage.Finding{
			{SourceQuery: "q2", FoundKeyword: "devsecops", JobTitle: "DevSecOps Lead", Link: "https://a/2", RetrievedAt: now.Add(-time.Minute)},
			{SourceQuery: "q2", FoundKeyword: "cloud engineer", JobTitle: "Senior Cloud Engineer", Link: "https://a/3", RetrievedAt: now},
		},
	}

	loc, err := b.Save(ctx, first)
	if err != nil {
		t.Fatalf("Failed to save batch 1: %v", err)
	}
	if loc != filepath.Join(dir, first.Key) {
		t.Errorf("Unexpected location %s", loc)
	}
	if _, err := b.Save(ctx, second); err != nil {
		t.Fatalf("Failed to save batch 2: %v", err)
	}

	data, err := os.ReadFile(loc)
	if err != nil {
		t.Fatalf("Failed to read written object: %v", err)
	}
	decoded, err := storage.Decode(data)
	if err != nil || len(decoded) != 1 {
		t.Fatalf("Expected 1 decoded finding, got %d (%v)", len(decoded), err)
	}

	// No temp files left behind
	entries, _ := os.ReadDir(dir)
	if len(entries) != 2 {
		t.Errorf("Expected 2 files in output dir, got %d", len(entries))
	}

	resultsAll, err := b.Query(ctx, storage.Filter{})
	if err != nil {
		t.Fatalf("Failed to query all: %v", err)
	}
	if len(resultsAll) != 3 {
		t.Fatalf("Expected 3 results, got %d", len(resultsAll))
	}
	if resultsAll[0].Link != "https://a/3" {
		t.Errorf("Expected newest finding first, got %s", resultsAll[0].Link)
	}

	resultsKeyword, err := b.Query(ctx, storage.Filter{Keyword: "cloud engineer"})
	if err != nil {
		t.Fatalf("Failed to query by keyword: %v", err)
	}
	if len(resultsKeyword) != 2 {
		t.Fatalf("Expected 2 results for keyword filter, got %d", len(resultsKeyword))
	}

	past := now.Add(-90 * time.Minute)
	resultsSince, err := b.Query(ctx, storage.Filter{Since: &past})
	if err != nil {
		t.Fatalf("Failed to query by Since: %v", err)
	}
	if len(resultsSince) != 2 {
		t.Fatalf("Expected 2 results for Since filter, got %d", len(resultsSince))
	}

	resultsOffset, err := b.Query(ctx, storage.Filter{Offset: 2})
	if err != nil {
		t.Fatalf("Failed to query offset: %v", err)
	}
	if len(resultsOffset) != 1 || resultsOffset[0].Link != "https://a/1" {
		t.Errorf("Expected https://a/1 for offset 2, got %+v", resultsOffset)
	}
}

func TestJSONBackend_SameKeyOverwrites(t *testing.T) {
	b, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("Failed to create JSON backend: %v", err)
	}
	ctx := context.Background()

	batch := &storage.Batch{Key: "multi_query_findings_2024-01-01_00-00-00.json", Findings: []storage.Finding{{Link: "https://a/1"}}}
	if _, err := b.Save(ctx, batch); err != nil {
		t.Fatalf("save failed: %v", err)
	}
	batch.Findings = []storage.Finding{{Link: "https://a/2"}, {Link: "https://a/3"}}
	if _, err := b.Save(ctx, batch); err != nil {
		t.Fatalf("second save failed: %v", err)
	}

	got, err := b.Query(ctx, storage.Filter{})
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if len(got) != 2 {
		t.Errorf("expected the second write to replace the first, got %d findings", len(got))
	}
}
