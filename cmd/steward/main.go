// Package main provides the CLI entry point for the Steward personal agent.
//
// Steward is a single-user conversational assistant: an event bus couples
// front-ends to an LLM-driven agent loop with policy-gated tools, persistent
// sessions, scheduled reminders, and MCP server integration.
//
// # Basic Usage
//
// Start an interactive chat:
//
//	steward chat --config steward.yaml
//
// # Environment Variables
//
//   - STEWARD_CONFIG: Path to configuration file
//   - STEWARD_DATA_DIR: Data directory (default: ~/.steward)
//   - OPENROUTER_API_KEY / OPENAI_API_KEY / ANTHROPIC_API_KEY: LLM credentials
//   - BRAVE_SEARCH_API_KEY / PERPLEXITY_API_KEY: web search credentials
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

// Build information - populated by ldflags during build.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var (
	configPath string
	debug      bool
)

func main() {
	// A .env next to the binary is a development convenience; absence is
	// not an error.
	_ = godotenv.Load()

	if err := buildRootCmd().Execute(); err != nil {
		slog.Error("command execution failed", "error", err)
		os.Exit(1)
	}
}

func buildRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "steward",
		Short:        "Steward - personal AI agent",
		Long:         "Steward runs a tool-using conversational agent with persistent sessions,\nscheduled reminders, and MCP server integration.",
		Version:      fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", os.Getenv("STEWARD_CONFIG"),
		"Path to configuration file (or set STEWARD_CONFIG)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging")

	rootCmd.AddCommand(buildChatCmd())
	return rootCmd
}
