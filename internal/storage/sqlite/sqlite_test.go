package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/FranksOps/jobsweep/internal/storage"
)

func TestSQLiteBackend(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "findings.db")
	b, err := New(dsn)
	if err != nil {
		t.Fatalf("Failed to create SQLite backend: %v", err)
	}
	defer b.Close()

	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)

	batch := &storage.Batch{
		RunID:     "run-1234",
		Key:       storage.ObjectKey(storage.DefaultKeyPrefix, now),
		CreatedAt: now,
		Findings: []storage.Finding{
			{
				SourceQuery:  "site:boards.example.com sre",
				FoundKeyword: "site reliability engineer",
				JobTitle:     "Site Reliability Engineer",
				Link:         "https://a/1",
				Snippet:      "on-call rotation",
				RetrievedAt:  now.Add(-2 * time.Hour),
			},
			{
				SourceQuery:  "site:boards.example.com sre",
				FoundKeyword: "devsecops",
				JobTitle:     "DevSecOps",
				Link:         "https://a/2",
				Snippet:      "pipelines",
				RetrievedAt:  now,
			},
		},
	}

	loc, err := b.Save(ctx, batch)
	if err != nil {
		t.Fatalf("Failed to save batch: %v", err)
	}
	if loc != "sqlite:runs/run-1234" {
		t.Errorf("Unexpected location %s", loc)
	}

	results, err := b.Query(ctx, storage.Filter{Link: "https://a/1"})
	if err != nil {
		t.Fatalf("Failed to query results: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("Expected 1 result, got %d", len(results))
	}

	got := results[0]
	want := batch.Findings[0]
	if got.SourceQuery != want.SourceQuery {
		t.Errorf("Expected SourceQuery %s, got %s", want.SourceQuery, got.SourceQuery)
	}
	if got.FoundKeyword != want.FoundKeyword {
		t.Errorf("Expected FoundKeyword %s, got %s", want.FoundKeyword, got.FoundKeyword)
	}
	if got.JobTitle != want.JobTitle {
		t.Errorf("Expected JobTitle %s, got %s", want.JobTitle, got.JobTitle)
	}
	if got.Snippet != want.Snippet {
		t.Errorf("Expected Snippet %s, got %s", want.Snippet, got.Snippet)
	}
	if got.RetrievedAt.Unix() != want.RetrievedAt.Unix() {
		t.Errorf("Expected RetrievedAt %v, got %v", want.RetrievedAt, got.RetrievedAt)
	}

	all, err := b.Query(ctx, storage.Filter{})
	if err != nil {
		t.Fatalf("Failed to query all: %v", err)
	}
	if len(all) != 2 || all[0].Link != "https://a/2" {
		t.Fatalf("Expected 2 results newest first, got %+v", all)
	}

	past := now.Add(-1 * time.Hour)
	resultsSince, err := b.Query(ctx, storage.Filter{Since: &past})
	if err != nil {
		t.Fatalf("Failed to query results with Since: %v", err)
	}
	if len(resultsSince) != 1 {
		t.Fatalf("Expected 1 result, got %d", len(resultsSince))
	}

	resultsKeyword, err := b.Query(ctx, storage.Filter{Keyword: "devsecops"})
	if err != nil {
		t.Fatalf("Failed to query by keyword: %v", err)
	}
	if len(resultsKeyword) != 1 {
		t.Fatalf("Expected 1 result, got %d", len(resultsKeyword))
	}

	resultsOffset, err := b.Query(ctx, storage.Filter{Offset: 1})
	if err != nil {
		t.Fatalf("Failed to query with offset: %v", err)
	}
	if len(resultsOffset) != 1 || resultsOffset[0].Link != "https://a/1" {
		t.Fatalf("Expected https://a/1 at offset 1, got %+v", resultsOffset)
	}

	// Same run ID twice violates the primary key and must not leave partial rows.
	if _, err := b.Save(ctx, batch); err == nil {
		t.Fatal("Expected duplicate run to fail")
	}
	all, err = b.Query(ctx, storage.Filter{})
	if err != nil {
		t.Fatalf("Failed to query all: %v", err)
	}
	if len(all) != 2 {
		t.Errorf("Expected failed save to roll back, got %d findings", len(all))
	}
}
