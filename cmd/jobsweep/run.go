package main

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/FranksOps/jobsweep/internal/app"
	"github.com/FranksOps/jobsweep/internal/metrics"
)

func init() {
	f := runCmd.Flags()
	f.String("query-file", "", "File with one search query per line (default urls_to_scan.txt)")
	f.String("bucket", "", "S3 bucket for findings (overrides S3_BUCKET_NAME)")
	f.StringSlice("keyword", nil, "Keyword to match, repeatable; replaces the default list")
	f.String("provider", "", "Search provider: serpapi or duckduckgo")
	f.Int("max-pages", 0, "Result pages to fetch per query")
	f.Int("page-size", 0, "Results requested per page")
	f.StringSlice("sink", nil, "Storage sinks: s3, file, csv, sqlite, postgres")
	f.String("output-dir", "", "Directory for the file and csv sinks")
	f.String("sqlite-path", "", "Database file for the sqlite sink")
	f.String("postgres", "", "Connection string for the postgres sink")
	f.String("fingerprint", "", "TLS fingerprint: go, chrome, firefox, safari, random")
	f.Duration("timeout", 0, "HTTP timeout per search request")
	f.String("proxy-file", "", "File listing proxies to rotate searches through")
	f.String("push-url", "", "Prometheus Pushgateway URL")
	f.String("metrics-addr", "", "Serve /metrics on this address while the sweep runs")
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run one sweep and print the invocation result",
	Long: `Run one sweep and print the result as {"statusCode": ..., "body": ...}.
The exit code is 0 when the status is 200 and 1 otherwise.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		if cfg.Metrics.Addr != "" {
			srv := metrics.Start(cfg.Metrics.Addr, logger)
			defer srv.Stop(context.Background())
		}

		resp := app.NewHandler(cfg, logger).Invoke(ctx)

		enc := json.NewEncoder(cmd.OutOrStdout())
		if err := enc.Encode(resp); err != nil {
			return err
		}
		if resp.StatusCode != http.StatusOK {
			return ExitError{Code: 1, Message: resp.Message()}
		}
		return nil
	},
}
