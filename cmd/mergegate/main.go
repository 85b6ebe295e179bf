package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/devricklin/slack-merge-gate/internal/conf"
)

// Set by ldflags at build time.
var version = "dev"

var apiURL string

var rootCmd = &cobra.Command{
	Use:   "mergegate",
	Short: "Gate pull request merges on a Slack channel",
	Long: `mergegate watches a Slack channel for merge announcements and tells
connected Bitbucket pages whether the merge button should be enabled.

Run "mergegate serve" for the daemon. The other commands talk to a running
daemon over its HTTP API.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		// Load .env file
		if err := godotenv.Load(); err != nil {
			slog.Debug("no .env file found, using environment variables")
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&apiURL, "api", "", "daemon API base URL (default http://$LISTEN_ADDR)")
	rootCmd.AddCommand(serveCmd, statusCmd, mcpCmd)
}

// daemonURL resolves the API base URL for client commands
func daemonURL() string {
	if apiURL != "" {
		return apiURL
	}
	return "http://" + conf.LoadFromEnv().ListenAddr
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
