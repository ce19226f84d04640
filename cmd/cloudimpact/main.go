// Package main provides the entry point for the cloudimpact CLI tool.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/zlbkkk/cloudimpact/cmd/cloudimpact/commands"
	"github.com/zlbkkk/cloudimpact/pkg/version"
)

var (
	verbose    bool
	quiet      bool
	configPath string
)

func main() {
	version.InitBinaryVersion()

	rootCmd := &cobra.Command{
		Use:   "cloudimpact",
		Short: "Cross-project impact engine for Java repositories",
		Long: `cloudimpact computes which classes, API endpoints and RPC references in
related repositories are touched by a Git diff on a main repository, then
asks a language model to assess the blast radius of that change.

Commands:
  analyze   Run the impact engine for one base..target commit range`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "suppress output")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to the cloudimpact config file")

	rootCmd.AddCommand(commands.NewAnalyzeCommand(&configPath))
	rootCmd.AddCommand(versionCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(_ *cobra.Command, _ []string) {
			fmt.Fprintf(os.Stdout, "cloudimpact %s (commit: %s, built: %s)\n", version.Version, version.Commit, version.Date)
		},
	}
}
