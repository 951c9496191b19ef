package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Niruuu2005/ZenKnowledgeForge/internal/logging"
)

// version is stamped at build time via -ldflags; "dev" otherwise.
var version = "dev"

var cfgFile string

func main() {
	rootCmd := &cobra.Command{
		Use:   "zkf",
		Short: "Deliberative multi-agent knowledge-synthesis pipeline",
		Long: `zkf runs a local-first, multi-agent deliberation pipeline over a user
brief: an Interpreter clarifies intent, a Planner decomposes the work into
research questions, a Grounder and Auditor gather and stress-test evidence,
an optional Visualizer proposes diagrams, and a Judge scores the result and
decides whether another deliberation round is needed.`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default $XDG_CONFIG_HOME/zkf/config.yaml)")

	rootCmd.AddCommand(newRunCmd())
	rootCmd.AddCommand(newDoctorCmd())
	rootCmd.AddCommand(newConfigCmd())
	rootCmd.AddCommand(newVersionCmd())

	if err := rootCmd.Execute(); err != nil {
		logging.Error("command failed", "error", err)
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitCodeFor(err))
	}
}

// exitCodeFor maps a command failure to spec.md §6's process exit codes.
// Cancellation and quality-gate rejection are reported by the run command
// itself via os.Exit before Execute ever sees an error; anything that
// reaches here is a configuration or fatal error.
func exitCodeFor(err error) int {
	return 1
}
