package storage

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"
)

func TestObjectKey(t *testing.T) {
	loc := time.FixedZone("UTC-3", -3*60*60)
	ts := time.Date(2024, 3, 9, 21, 4, 5, 0, loc)

	got := ObjectKey(DefaultKeyPrefix, ts)
	want := "multi_query_findings_2024-03-10_00-04-05.json"
	if got != want {
		t.Errorf("expected %s, got %s", want, got)
	}
}

func TestEncode(t *testing.T) {
	at := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	data, err := Encode([]Finding{{
		SourceQuery:  "site:jobs.example.com cloud",
		FoundKeyword: "cloud engineer",
		JobTitle:     "Cloud Engineer & SRE",
		Link:         "https://a/1?x=1&y=2",
		Snippet:      "remote",
		RetrievedAt:  at,
	}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	out := string(data)
	if !strings.HasPrefix(out, "[\n    {\n        \"source_query\"") {
		t.Errorf("expected four-space indentation, got:\n%s", out)
	}
	if !strings.Contains(out, `"job_title": "Cloud Engineer & SRE"`) {
		t.Errorf("expected unescaped ampersand in output:\n%s", out)
	}
	if !strings.Contains(out, `"retrieved_at": "2024-01-02T03:04:05Z"`) {
		t.Errorf("expected RFC3339 UTC timestamp:\n%s", out)
	}

	back, err := Decode(data)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if len(back) != 1 || back[0].Link != "https://a/1?x=1&y=2" {
		t.Errorf("unexpected decoded findings: %+v", back)
	}
}

func TestEncode_Nil(t *testing.T) {
	data, err := Encode(nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.TrimSpace(string(data)) != "[]" {
		t.Errorf("expected [], got %q", data)
	}
}

func TestApplyFilter(t *testing.T) {
	now := time.Now().UTC()
	all := []*Finding{
		{Link: "https://a/1", FoundKeyword: "devsecops", SourceQuery: "q1", RetrievedAt: now.Add(-2 * time.Hour)},
		{Link: "https://a/2", FoundKeyword: "data scientist", SourceQuery: "q1", RetrievedAt: now.Add(-1 * time.Hour)},
		{Link: "https://a/3", FoundKeyword: "devsecops", SourceQuery: "q2", RetrievedAt: now},
	}

	if got := ApplyFilter(all, Filter{Keyword: "devsecops"}); len(got) != 2 || got[0].Link != "https://a/3" {
		t.Errorf("keyword filter: unexpected result %+v", got)
	}
	if got := ApplyFilter(all, Filter{Query: "q1", Limit: 1}); len(got) != 1 || got[0].Link != "https://a/2" {
		t.Errorf("query+limit filter: unexpected result %+v", got)
	}
	past := now.Add(-90 * time.Minute)
	if got := ApplyFilter(all, Filter{Since: &past}); len(got) != 2 {
		t.Errorf("since filter: expected 2, got %d", len(got))
	}
	if got := ApplyFilter(all, Filter{Offset: 5}); len(got) != 0 {
		t.Errorf("offset past end: expected empty, got %d", len(got))
	}
	if got := ApplyFilter(all, Filter{Link: "https://a/1"}); len(got) != 1 {
		t.Errorf("link filter: expected 1, got %d", len(got))
	}
}

type recordingBackend struct {
	mu     sync.Mutex
	name   string
	fail   error
	saved  []*Batch
	closed bool
}

func (r *recordingBackend) Save(ctx context.Context, b *Batch) (string, error) {
	if r.fail != nil {
		return "", r.fail
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.saved = append(r.saved, b)
	return r.name + "/" + b.Key, nil
}

func (r *recordingBackend) Close() error {
	r.closed = true
	return nil
}

func TestMulti(t *testing.T) {
	a := &recordingBackend{name: "a"}
	b := &recordingBackend{name: "b"}
	m := Multi(a, b)

	loc, err := m.Save(context.Background(), &Batch{Key: "k.json"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if loc != "a/k.json, b/k.json" {
		t.Errorf("unexpected location %q", loc)
	}
	if len(a.saved) != 1 || len(b.saved) != 1 {
		t.Errorf("expected both backends to receive the batch")
	}
	if err := m.Close(); err != nil {
		t.Fatalf("close failed: %v", err)
	}
	if !a.closed || !b.closed {
		t.Errorf("expected both backends closed")
	}
}

func TestMulti_Failure(t *testing.T) {
	boom := errors.New("bucket gone")
	m := Multi(&recordingBackend{name: "a"}, &recordingBackend{name: "b", fail: boom})

	_, err := m.Save(context.Background(), &Batch{Key: "k.json"})
	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped failure, got %v", err)
	}
}

func TestMulti_PrimarySkippedOnSecondaryFailure(t *testing.T) {
	primary := &recordingBackend{name: "s3"}
	boom := errors.New("database is locked")
	m := Multi(primary, &recordingBackend{name: "sqlite", fail: boom})

	if _, err := m.Save(context.Background(), &Batch{Key: "k.json"}); !errors.Is(err, boom) {
		t.Fatalf("expected wrapped failure, got %v", err)
	}
	if len(primary.saved) != 0 {
		t.Errorf("primary should not be written when a secondary fails")
	}
}

func TestMulti_Single(t *testing.T) {
	a := &recordingBackend{name: "a"}
	if Multi(a) != Backend(a) {
		t.Errorf("expected a single backend to be returned as-is")
	}
}
