package analyzer

import (
	"time"

	"github.com/FranksOps/jobsweep/internal/serp"
	"github.com/FranksOps/jobsweep/internal/storage"
)

// Outcome explains what Filter.Accept did with an item.
type Outcome int

const (
	Accepted Outcome = iota
	NoLink
	Duplicate
	NoMatch
)

func (o Outcome) String() string {
	switch o {
	case Accepted:
		return "accepted"
	case NoLink:
		return "no_link"
	case Duplicate:
		return "duplicate"
	default:
		return "no_match"
	}
}

// Filter applies keyword matching and link deduplication for one run.
// It is not safe for concurrent use.
type Filter struct {
	matcher *Matcher
	seen    map[string]struct{}
	now     func() time.Time
}

// NewFilter creates a filter with an empty seen-link set. now defaults to
// time.Now.
func NewFilter(m *Matcher, now func() time.Time) *Filter {
	if now == nil {
		now = time.Now
	}
	return &Filter{
		matcher: m,
		seen:    make(map[string]struct{}),
		now:     now,
	}
}

// Accept returns a Finding for item when it has a link not seen before in
// this run and matches a keyword. Only accepted links are remembered.
func (f *Filter) Accept(query string, item serp.Item) (storage.Finding, Outcome) {
	if item.Link == "" {
		return storage.Finding{}, NoLink
	}
	if _, ok := f.seen[item.Link]; ok {
		return storage.Finding{}, Duplicate
	}

	keyword, ok := f.matcher.Match(item.Title, item.Snippet)
	if !ok {
		return storage.Finding{}, NoMatch
	}

	f.seen[item.Link] = struct{}{}
	return storage.Finding{
		SourceQuery:  query,
		FoundKeyword: keyword,
		JobTitle:     item.Title,
		Link:         item.Link,
		Snippet:      item.Snippet,
		RetrievedAt:  f.now().UTC(),
	}, Accepted
}

// Seen reports how many distinct links have been accepted.
func (f *Filter) Seen() int {
	return len(f.seen)
}
