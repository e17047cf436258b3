package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"
)

// DefaultKeyPrefix is prepended to every object key.
const DefaultKeyPrefix = "multi_query_findings_"

// keyLayout renders as YYYY-MM-DD_HH-MM-SS.
const keyLayout = "2006-01-02_15-04-05"

// Finding is one keyword match against one search result.
type Finding struct {
	SourceQuery  string    `json:"source_query"`
	FoundKeyword string    `json:"found_keyword"`
	JobTitle     string    `json:"job_title"`
	Link         string    `json:"link"`
	Snippet      string    `json:"snippet"`
	RetrievedAt  time.Time `json:"retrieved_at"`
}

// Batch is everything a single run persists.
type Batch struct {
	RunID     string
	Key       string
	CreatedAt time.Time
	Findings  []Finding
}

// Filter allows querying archived findings.
type Filter struct {
	Link    string
	Keyword string
	Query   string
	Since   *time.Time
	Limit   int
	Offset  int
}

// Backend persists a batch of findings as one unit.
// Save returns a human-readable location of what was written.
type Backend interface {
	Save(ctx context.Context, batch *Batch) (string, error)
	Close() error
}

// Querier is implemented by backends that can read findings back.
type Querier interface {
	Query(ctx context.Context, filter Filter) ([]*Finding, error)
}

// ObjectKey builds the storage key for a run started at t.
func ObjectKey(prefix string, t time.Time) string {
	return prefix + t.UTC().Format(keyLayout) + ".json"
}

// Encode renders findings as an indented JSON array. A nil slice still
// encodes as [].
func Encode(findings []Finding) ([]byte, error) {
	if findings == nil {
		findings = []Finding{}
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "    ")
	if err := enc.Encode(findings); err != nil {
		return nil, fmt.Errorf("encode findings: %w", err)
	}
	return buf.Bytes(), nil
}

// Decode parses the output of Encode.
func Decode(data []byte) ([]Finding, error) {
	var findings []Finding
	if err := json.Unmarshal(data, &findings); err != nil {
		return nil, fmt.Errorf("decode findings: %w", err)
	}
	return findings, nil
}

// Matches reports whether f passes the field filters of filter. Limit and
// Offset are not considered.
func (filter Filter) Matches(f *Finding) bool {
	if filter.Link != "" && f.Link != filter.Link {
		return false
	}
	if filter.Keyword != "" && f.FoundKeyword != filter.Keyword {
		return false
	}
	if filter.Query != "" && f.SourceQuery != filter.Query {
		return false
	}
	if filter.Since != nil && f.RetrievedAt.Before(*filter.Since) {
		return false
	}
	return true
}

// ApplyFilter filters findings in memory for file-based backends, orders
// them newest first and applies offset and limit.
func ApplyFilter(all []*Finding, filter Filter) []*Finding {
	filtered := make([]*Finding, 0, len(all))
	for _, f := range all {
		if filter.Matches(f) {
			filtered = append(filtered, f)
		}
	}

	sort.SliceStable(filtered, func(i, j int) bool {
		return filtered[i].RetrievedAt.After(filtered[j].RetrievedAt)
	})

	if filter.Offset > 0 {
		if filter.Offset >= len(filtered) {
			return []*Finding{}
		}
		filtered = filtered[filter.Offset:]
	}
	if filter.Limit > 0 && filter.Limit < len(filtered) {
		filtered = filtered[:filter.Limit]
	}
	return filtered
}
