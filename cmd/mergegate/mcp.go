package main

import (
	"github.com/spf13/cobra"

	"github.com/devricklin/slack-merge-gate/internal/conf"
	"github.com/devricklin/slack-merge-gate/internal/logging"
	"github.com/devricklin/slack-merge-gate/internal/mcp"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve merge gate tools over MCP stdio",
	Long: `Serve the merge_status, refresh_messages, reconnect_feed and
set_merge_guard tools over stdio. Each call is forwarded to the running
daemon's HTTP API.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		// stdout carries the protocol; logs go to stderr or LOG_DIR
		cfg := conf.LoadFromEnv()
		logging.Init(logging.Config{
			LogDir: cfg.Log.Dir,
			Level:  cfg.Log.Level,
			Format: cfg.Log.Format,
			Debug:  cfg.Debug,
		})
		defer logging.Shutdown()

		return mcp.NewServer(mcp.NewClient(daemonURL()), version).Run(cmd.Context())
	},
}
