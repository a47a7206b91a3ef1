package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/cuemby/agentbroker/pkg/log"
)

var (
	// Version is set via ldflags at build time.
	Version = "dev"
	Commit  = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "agentbroker",
	Short:   "Tool-dispatching broker for CLI code-assistant agents",
	Long:    `agentbroker receives line-delimited JSON-RPC tool calls over stdio and dispatches them to claude/codex/gemini/opencode subprocesses, streaming normalised events to a live browser dashboard.`,
	Version: Version,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf("agentbroker version %s (%s)\n", Version, Commit))

	rootCmd.PersistentFlags().String("config", "", "path to a YAML config file overlay")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("log-json", false, "emit logs as JSON instead of console format")

	cobra.OnInitialize(initLogging)

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(toolsCmd)
}

// initLogging always sends broker logs to stderr: stdout carries the
// JSON-RPC stream once serve's loop starts, and must never be shared
// with anything else (AMBIENT STACK "Logging").
func initLogging() {
	logLevel, _ := rootCmd.PersistentFlags().GetString("log-level")
	logJSON, _ := rootCmd.PersistentFlags().GetBool("log-json")

	log.Init(log.Config{
		Level:      log.Level(logLevel),
		JSONOutput: logJSON,
		Output:     os.Stderr,
	})
}
