package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/FranksOps/jobsweep/internal/config"
	"github.com/FranksOps/jobsweep/internal/logging"
)

var (
	configFile string
	envFile    string

	cfg    *config.Config
	logger *slog.Logger
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "YAML config file (default ./jobsweep.yaml if present)")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", "", "dotenv file to load (default ./.env if present)")
	rootCmd.PersistentFlags().String("log-level", "info", "Log level: debug, info, warn, error")
	rootCmd.PersistentFlags().String("log-format", "json", "Log format: json or text")

	rootCmd.AddCommand(runCmd, lambdaCmd, reportCmd)
}

var rootCmd = &cobra.Command{
	Use:   "jobsweep",
	Short: "Sweep search results for job postings that match a keyword list",
	Long: `jobsweep runs every query in a query file against a search provider,
keeps results whose title or snippet mention a configured keyword, and saves
the matches as one timestamped JSON object.

Examples:
  jobsweep run                               # one sweep, S3 sink
  jobsweep run --sink file --output-dir out  # write locally instead
  jobsweep lambda                            # serve the AWS Lambda runtime
  jobsweep report --from sqlite --format html > report.html`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	CompletionOptions: cobra.CompletionOptions{DisableDefaultCmd: true},
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load(config.LoadOptions{
			ConfigFile: configFile,
			EnvFile:    envFile,
			Flags:      cmd.Flags(),
		})
		if err != nil {
			return err
		}
		l, err := logging.New(os.Stderr, logging.Options{Level: loaded.Log.Level, Format: loaded.Log.Format})
		if err != nil {
			return fmt.Errorf("configure logging: %w", err)
		}
		cfg, logger = loaded, l
		slog.SetDefault(l)
		return nil
	},
}
