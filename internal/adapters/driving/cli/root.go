// Package cli implements the command-line interface of the pipeline.
package cli

import (
	"github.com/spf13/cobra"

	"github.com/salesmind/ragcore/internal/core/ports/driving"
	"github.com/salesmind/ragcore/internal/logger"
)

// Services the commands dispatch to. Wired by Setup before Execute runs.
var (
	pipelineService driving.Pipeline
)

var (
	flagTenant  string
	flagVerbose bool
)

var rootCmd = &cobra.Command{
	Use:   "ragcore",
	Short: "Tenant-scoped retrieval-augmented generation pipeline",
	Long: `ragcore ingests documents into a per-tenant vector index and answers
questions grounded in the indexed content.`,
	SilenceUsage: true,
	PersistentPreRun: func(*cobra.Command, []string) {
		logger.SetVerbose(flagVerbose)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagTenant, "tenant", "default", "tenant namespace")
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "verbose output")
}

// Setup wires the pipeline the commands run against.
func Setup(pipeline driving.Pipeline) {
	pipelineService = pipeline
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
