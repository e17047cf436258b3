// Package serp fetches organic search results page by page from a search
// provider.
package serp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/FranksOps/jobsweep/internal/bypass"
)

// DefaultPageSize is the number of results requested per page.
const DefaultPageSize = 100

// Item is a single organic result. Fields the provider omits are empty.
type Item struct {
	Title   string `json:"title"`
	Snippet string `json:"snippet"`
	Link    string `json:"link"`
}

// Request asks for one page of results. Start is the zero-based offset of the
// first result and Num the page size.
type Request struct {
	Query string
	Start int
	Num   int
}

// Page is one page of results. Notice carries a message the provider returned
// alongside a successful response, such as "no results for this query".
type Page struct {
	Items  []Item
	Notice string
}

// Provider abstracts a search engine that returns organic results for a
// query. Implementations may use official APIs or HTML endpoints.
type Provider interface {
	Name() string
	Search(ctx context.Context, req Request) (*Page, error)
}

// Strider is implemented by providers that serve a fixed number of results
// per page regardless of Request.Num.
type Strider interface {
	PageStride() int
}

// Stride returns the offset step between consecutive pages of p: its
// PageStride when it has one, otherwise pageSize.
func Stride(p Provider, pageSize int) int {
	if s, ok := p.(Strider); ok {
		if n := s.PageStride(); n > 0 {
			return n
		}
	}
	return pageSize
}

// StatusError reports a non-2xx response from a provider. BlockedBy names the
// bot protection that produced the response, when one was recognised.
type StatusError struct {
	Provider   string
	StatusCode int
	Body       string
	BlockedBy  string
}

func (e *StatusError) Error() string {
	msg := fmt.Sprintf("%s: unexpected status %d", e.Provider, e.StatusCode)
	if e.BlockedBy != "" {
		msg += " (blocked by " + e.BlockedBy + ")"
	}
	if e.Body != "" {
		msg += ": " + e.Body
	}
	return msg
}

// Blocked reports whether err means the provider refused the client itself,
// through a bot challenge, a recognised protection page, or a 403 or 429.
func Blocked(err error) bool {
	if errors.Is(err, ErrChallenged) {
		return true
	}
	var se *StatusError
	if !errors.As(err, &se) {
		return false
	}
	return se.BlockedBy != "" || se.StatusCode == http.StatusForbidden || se.StatusCode == http.StatusTooManyRequests
}

const (
	maxErrorBody  = 512
	maxDetectBody = 64 << 10
)

// statusError reads a bounded prefix of a failed response and classifies it.
func statusError(provider string, resp *http.Response) *StatusError {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxDetectBody))
	se := &StatusError{Provider: provider, StatusCode: resp.StatusCode}
	if src, ok := bypass.Detect(&bypass.Response{StatusCode: resp.StatusCode, Header: resp.Header, Body: body}, bypass.DefaultDetectors()); ok {
		se.BlockedBy = src
	}
	if len(body) > maxErrorBody {
		body = body[:maxErrorBody]
	}
	se.Body = strings.TrimSpace(string(body))
	return se
}
