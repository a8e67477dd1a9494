package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/systmms/cfrotate/cmd/cfrotate/commands"
	"github.com/systmms/cfrotate/internal/config"
	"github.com/systmms/cfrotate/internal/logging"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		noColor bool
		debug   bool
	)

	// Config placeholder, filled in once flags are parsed
	cfg := &config.Config{}

	rootCmd := &cobra.Command{
		Use:   "cfrotate",
		Short: "Rotate Cloudflare credentials stored in AWS Secrets Manager",
		Long: `cfrotate drives the four-phase Secrets Manager rotation protocol for
Cloudflare credentials: API tokens (zero-downtime dual-token alternation),
origin tunnel service keys, and Argo tunnel tokens.`,
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			*cfg = *config.FromEnv()
			cfg.Logger = logging.New(debug, noColor)
		},
	}

	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colored output")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging")

	rootCmd.AddCommand(
		commands.NewRotateCommand(cfg),
		commands.NewServeCommand(cfg),
		commands.NewKindsCommand(cfg),
		commands.NewVerifyCommand(cfg),
	)

	return rootCmd.Execute()
}
