package analyzer

import (
	"strings"
)

// DefaultKeywords is the stock keyword list, in priority order.
var DefaultKeywords = []string{
	"cloud engineer",
	"security engineer",
	"devsecops",
	"cloud security engineer",
	"site reliability engineer",
	"data scientist",
}

// Matcher finds the first configured keyword contained in a search result.
// Keyword order is significant: when several keywords match, the earliest
// one in the list wins.
type Matcher struct {
	keywords []string
	lower    []string
}

// NewMatcher pre-lowercases keywords once. Blank keywords are dropped since
// the empty string would match everything.
func NewMatcher(keywords []string) *Matcher {
	m := &Matcher{
		keywords: make([]string, 0, len(keywords)),
		lower:    make([]string, 0, len(keywords)),
	}
	for _, k := range keywords {
		if strings.TrimSpace(k) == "" {
			continue
		}
		m.keywords = append(m.keywords, k)
		m.lower = append(m.lower, strings.ToLower(k))
	}
	return m
}

// Keywords returns a copy of the keywords in priority order.
func (m *Matcher) Keywords() []string {
	copied := make([]string, len(m.keywords))
	copy(copied, m.keywords)
	return copied
}

// Match returns the first keyword (as configured) that is a case-insensitive
// substring of title and snippet joined by a single space.
func (m *Matcher) Match(title, snippet string) (string, bool) {
	buf := strings.ToLower(title) + " " + strings.ToLower(snippet)
	for i, lk := range m.lower {
		if strings.Contains(buf, lk) {
			return m.keywords[i], true
		}
	}
	return "", false
}
