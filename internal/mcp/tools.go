package mcp

import (
	"context"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"
)

// Tool names
const (
	ToolMergeStatus     = "merge_status"
	ToolRefreshMessages = "refresh_messages"
	ToolReconnectFeed   = "reconnect_feed"
	ToolSetMergeGuard   = "set_merge_guard"
)

// Server exposes the daemon as MCP tools
type Server struct {
	server  *sdk.Server
	handler *Handler
}

// NewServer creates the tool server for a daemon client
func NewServer(client *Client, version string) *Server {
	s := &Server{
		server: sdk.NewServer(&sdk.Implementation{
			Name:    "slack-merge-gate",
			Version: version,
		}, nil),
		handler: NewHandler(client),
	}
	s.registerTools()
	return s
}

func (s *Server) registerTools() {
	sdk.AddTool(s.server, &sdk.Tool{
		Name:        ToolMergeStatus,
		Description: "Report whether merging is currently allowed, with the deciding Slack message and any pending reactivation.",
	}, s.handler.MergeStatus)

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        ToolRefreshMessages,
		Description: "Re-read the merge channel history and recompute the merge status.",
	}, s.handler.RefreshMessages)

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        ToolReconnectFeed,
		Description: "Drop the Slack event connection and open a new one.",
	}, s.handler.ReconnectFeed)

	// Turning the guard off schedules automatic reactivation
	sdk.AddTool(s.server, &sdk.Tool{
		Name:        ToolSetMergeGuard,
		Description: "Turn the merge guard on or off. When off, it switches itself back on after the reactivation delay.",
	}, s.handler.SetMergeGuard)
}

// Run serves the tools over stdio until ctx ends or the peer disconnects
func (s *Server) Run(ctx context.Context) error {
	mcpLog.Info("mcp_serving", "tools", 4)
	return s.server.Run(ctx, &sdk.StdioTransport{})
}

// MCPServer returns the underlying MCP server
func (s *Server) MCPServer() *sdk.Server {
	return s.server
}
