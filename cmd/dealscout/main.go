// Package main implements the dealscout CLI.
//
// Usage:
//
//	# Serve the HTTP API
//	dealscout serve
//
//	# Serve MCP over stdio
//	dealscout mcp
//
//	# Score a candidate once and print a card
//	dealscout score --persona early --file candidate.json
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version information (set via ldflags during build)
var (
	version   = "dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

var (
	// configPath overrides the default config file location.
	configPath string
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "dealscout",
	Short: "Persona-driven candidate scoring with feedback learning",
	Long: `dealscout scores people and companies against investor and recruiter
personas, learns from like/dislike feedback, and serves the engine over
HTTP or MCP.

Configuration is read from ~/.config/dealscout/config.yaml and can be
overridden with DEALSCOUT_SECTION_FIELD environment variables.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: false,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default ~/.config/dealscout/config.yaml)")
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(mcpCmd)
	rootCmd.AddCommand(scoreCmd)
	rootCmd.AddCommand(personasCmd)
	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Run: func(cmd *cobra.Command, args []string) {
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "dealscout by Fyrsmith Labs\n")
		fmt.Fprintf(out, "Version:    %s\n", version)
		fmt.Fprintf(out, "Commit:     %s\n", gitCommit)
		fmt.Fprintf(out, "Build Date: %s\n", buildDate)
	},
}
