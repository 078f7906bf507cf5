// Package main provides the smarter CLI: it runs one tool-calling chat
// completion from the command line.
//
// # Basic Usage
//
//	smarter chat --config smarter.yaml --session demo "What is the weather in Oslo?"
//	smarter chat --config smarter.yaml --session demo --plugin 7 --function get_current_weather "..."
//	smarter version
//
// # Environment Variables
//
//   - SMARTER_CONFIG: path to the configuration file (default: smarter.yaml)
//   - OPENAI_API_KEY: fills provider.api_key when the file leaves it empty
package main

import (
	"fmt"
	"log/slog"
	"os"

	_ "github.com/lib/pq"
	"github.com/spf13/cobra"
	_ "modernc.org/sqlite"

	"github.com/smarter-sh/smarter-sub001/internal/container"
)

// Build information, populated by ldflags.
var (
	version = "dev"
	commit  = "none"
)

func main() {
	container.Version = version
	if err := buildRootCmd().Execute(); err != nil {
		slog.Error("command execution failed", "error", err)
		os.Exit(1)
	}
}

// buildRootCmd creates the root command with all subcommands attached.
func buildRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "smarter",
		Short:        "Tool-calling chat completions",
		Version:      fmt.Sprintf("%s (commit: %s)", version, commit),
		SilenceUsage: true,
	}
	rootCmd.AddCommand(
		buildChatCmd(),
		buildVersionCmd(),
	)
	return rootCmd
}

func buildVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "smarter %s (commit: %s)\n", version, commit)
			return err
		},
	}
}

func defaultConfigPath() string {
	if p := os.Getenv("SMARTER_CONFIG"); p != "" {
		return p
	}
	return "smarter.yaml"
}
