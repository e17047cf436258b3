package main

import (
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/spf13/cobra"

	"github.com/FranksOps/jobsweep/internal/app"
)

var lambdaCmd = &cobra.Command{
	Use:   "lambda",
	Short: "Serve sweeps through the AWS Lambda runtime API",
	Long: `Serve sweeps through the AWS Lambda runtime API. Every invocation runs
one sweep; the event payload is ignored, which suits EventBridge schedules.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		handler := app.NewHandler(cfg, logger)
		lambda.Start(handler.HandleLambda)
		return nil
	},
}
