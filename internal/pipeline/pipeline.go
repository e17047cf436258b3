// Package pipeline drives a sweep: every query is searched page by page and
// each result is passed through the keyword filter.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/FranksOps/jobsweep/internal/analyzer"
	"github.com/FranksOps/jobsweep/internal/apperr"
	"github.com/FranksOps/jobsweep/internal/metrics"
	"github.com/FranksOps/jobsweep/internal/serp"
	"github.com/FranksOps/jobsweep/internal/storage"
)

const (
	DefaultMaxPages = 2
	DefaultPageSize = serp.DefaultPageSize
)

// Stats counts what happened during a run.
type Stats struct {
	Queries    int // queries searched
	Skipped    int // blank queries
	Pages      int // search requests that returned
	Items      int
	NoLink     int
	Duplicates int
	NoMatch    int
	Findings   int
}

// Result is the outcome of a successful run.
type Result struct {
	Findings []storage.Finding
	Stats    Stats
}

// Pipeline orchestrates search and filtering. It is single-threaded; one
// search request is in flight at a time.
type Pipeline struct {
	Provider serp.Provider
	Matcher  *analyzer.Matcher
	MaxPages int
	PageSize int
	Logger   *slog.Logger
	// Now stamps findings. Defaults to time.Now.
	Now func() time.Time
}

// Run searches every query in order. A query stops paging at the first empty
// page. Any search failure aborts the run and discards partial findings.
func (p *Pipeline) Run(ctx context.Context, queries []string) (*Result, error) {
	if p.Provider == nil {
		return nil, errors.New("pipeline: provider is nil")
	}
	if p.Matcher == nil {
		return nil, errors.New("pipeline: matcher is nil")
	}

	maxPages := p.MaxPages
	if maxPages <= 0 {
		maxPages = DefaultMaxPages
	}
	pageSize := p.PageSize
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}

	// Providers with a fixed page width advance by that width, not pageSize.
	stride := serp.Stride(p.Provider, pageSize)

	filter := analyzer.NewFilter(p.Matcher, p.Now)
	res := &Result{}

	for _, query := range queries {
		if strings.TrimSpace(query) == "" {
			res.Stats.Skipped++
			continue
		}
		res.Stats.Queries++
		logger.Info("searching", "query", query)

		for page := 0; page < maxPages; page++ {
			if err := ctx.Err(); err != nil {
				return nil, apperr.New(apperr.KindUnexpected, "pipeline", err)
			}

			req := serp.Request{Query: query, Start: page * stride, Num: pageSize}
			start := time.Now()
			got, err := p.Provider.Search(ctx, req)
			metrics.RecordSearch(p.Provider.Name(), time.Since(start), err)
			if err != nil {
				logger.Error("search failed", "query", query, "page", page+1, "error", err)
				return nil, apperr.New(apperr.KindUpstream, "search",
					fmt.Errorf("query %q page %d: %w", query, page+1, err))
			}
			res.Stats.Pages++

			if got.Notice != "" {
				logger.Warn("provider notice", "query", query, "page", page+1, "notice", got.Notice)
			}
			if len(got.Items) == 0 {
				logger.Debug("no more results", "query", query, "page", page+1)
				break
			}

			accepted := 0
			for _, item := range got.Items {
				res.Stats.Items++
				finding, outcome := filter.Accept(query, item)
				metrics.RecordItem(outcome.String())
				switch outcome {
				case analyzer.Accepted:
					res.Findings = append(res.Findings, finding)
					accepted++
				case analyzer.NoLink:
					res.Stats.NoLink++
				case analyzer.Duplicate:
					res.Stats.Duplicates++
				case analyzer.NoMatch:
					res.Stats.NoMatch++
				}
			}
			logger.Info("page processed", "query", query, "page", page+1, "items", len(got.Items), "accepted", accepted)
		}
	}

	res.Stats.Findings = len(res.Findings)
	return res, nil
}
