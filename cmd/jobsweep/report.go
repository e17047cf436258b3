package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/FranksOps/jobsweep/internal/app"
	"github.com/FranksOps/jobsweep/internal/report"
	"github.com/FranksOps/jobsweep/internal/storage"
)

var (
	reportFrom   string
	reportFormat string
	reportFilter storage.Filter
	reportSince  time.Duration
)

func init() {
	f := reportCmd.Flags()
	f.StringVar(&reportFrom, "from", "sqlite", "Archive to read: file, csv, sqlite, postgres")
	f.StringVar(&reportFormat, "format", "text", "Output format: text, json, html")
	f.StringVar(&reportFilter.Keyword, "filter-keyword", "", "Only findings for this keyword")
	f.StringVar(&reportFilter.Query, "filter-query", "", "Only findings from this query")
	f.StringVar(&reportFilter.Link, "filter-link", "", "Only findings with this link")
	f.DurationVar(&reportSince, "since", 0, "Only findings retrieved within this window, e.g. 168h")
	f.IntVar(&reportFilter.Limit, "limit", 0, "Maximum number of findings to read (0 for all)")
	f.String("output-dir", "", "Directory of the file and csv archives")
	f.String("sqlite-path", "", "Database file of the sqlite archive")
	f.String("postgres", "", "Connection string of the postgres archive")
}

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Summarise archived findings",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		archive, err := app.OpenArchive(ctx, cfg, reportFrom)
		if err != nil {
			return err
		}
		defer archive.Close()

		filter := reportFilter
		if reportSince > 0 {
			since := time.Now().Add(-reportSince)
			filter.Since = &since
		}

		findings, err := archive.Query(ctx, filter)
		if err != nil {
			return fmt.Errorf("query %s archive: %w", reportFrom, err)
		}
		logger.Debug("findings loaded", "archive", reportFrom, "count", len(findings))

		return report.Write(cmd.OutOrStdout(), reportFormat, report.GenerateSummary(findings))
	},
}
