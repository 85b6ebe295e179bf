package mcp

import (
	"context"
	"fmt"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/devricklin/slack-merge-gate/internal/logging"
	"github.com/devricklin/slack-merge-gate/internal/service"
)

var mcpLog = logging.ForComponent(logging.CompMCP)

// Handler answers MCP tool calls through the daemon API
type Handler struct {
	client *Client
}

// NewHandler creates a new tool handler
func NewHandler(client *Client) *Handler {
	return &Handler{client: client}
}

// ============ Inputs / Outputs ============

// Empty is the input of tools without arguments
type Empty struct{}

// MergeStatusOutput is the output of merge_status
type MergeStatusOutput struct {
	Status          string `json:"status"`
	MergeAllowed    bool   `json:"merge_allowed"`
	GuardEnabled    bool   `json:"guard_enabled"`
	Channel         string `json:"channel,omitempty"`
	LastMessage     string `json:"last_message,omitempty"`
	LastMessageTS   string `json:"last_message_ts,omitempty"`
	AppStatus       string `json:"app_status,omitempty"`
	FeedState       string `json:"feed_state"`
	StoredMessages  int    `json:"stored_messages"`
	CountdownActive bool   `json:"countdown_active"`
	TimeLeftSeconds int64  `json:"time_left_seconds,omitempty"`
}

// ActionOutput is the output of tools that trigger a daemon action
type ActionOutput struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// SetMergeGuardInput is the input of set_merge_guard
type SetMergeGuardInput struct {
	Enabled bool `json:"enabled" jsonschema:"true to block merges according to the channel, false to pause the guard"`
}

// ============ Tools ============

// MergeStatus summarizes the daemon state
func (h *Handler) MergeStatus(ctx context.Context, req *sdk.CallToolRequest, _ Empty) (*sdk.CallToolResult, MergeStatusOutput, error) {
	state, err := h.client.State(ctx)
	if err != nil {
		return nil, MergeStatusOutput{}, fmt.Errorf("read state: %w", err)
	}
	return nil, summarize(state), nil
}

// RefreshMessages rebuilds the message store from channel history
func (h *Handler) RefreshMessages(ctx context.Context, req *sdk.CallToolRequest, _ Empty) (*sdk.CallToolResult, ActionOutput, error) {
	return h.action(ctx, service.ActionFetchNewMessages, nil)
}

// ReconnectFeed replaces the event connection
func (h *Handler) ReconnectFeed(ctx context.Context, req *sdk.CallToolRequest, _ Empty) (*sdk.CallToolResult, ActionOutput, error) {
	return h.action(ctx, service.ActionReconnect, nil)
}

// SetMergeGuard switches the feature toggle
func (h *Handler) SetMergeGuard(ctx context.Context, req *sdk.CallToolRequest, in SetMergeGuardInput) (*sdk.CallToolResult, ActionOutput, error) {
	return h.action(ctx, service.ActionFeatureToggleChanged, map[string]any{"enabled": in.Enabled})
}

// action failures are tool results, not protocol errors
func (h *Handler) action(ctx context.Context, name string, fields map[string]any) (*sdk.CallToolResult, ActionOutput, error) {
	if err := h.client.Action(ctx, name, fields); err != nil {
		mcpLog.Warn("mcp_action_failed", "action", name, "error", err)
		return &sdk.CallToolResult{
			IsError: true,
			Content: []sdk.Content{&sdk.TextContent{Text: err.Error()}},
		}, ActionOutput{Error: err.Error()}, nil
	}
	mcpLog.Info("mcp_action", "action", name)
	return nil, ActionOutput{Success: true}, nil
}

// ============ Helpers ============

func summarize(state *service.PopupState) MergeStatusOutput {
	out := MergeStatusOutput{
		Status:          string(state.PopupStatus),
		AppStatus:       string(state.AppStatus),
		FeedState:       state.FeedState,
		StoredMessages:  len(state.Messages),
		CountdownActive: state.Countdown.IsCountdownActive,
	}
	if state.Countdown.IsCountdownActive {
		out.TimeLeftSeconds = state.Countdown.TimeLeft / 1000
	}

	info := state.Status
	if info == nil {
		return out
	}
	out.GuardEnabled = info.FeatureEnabled
	out.MergeAllowed = !info.IsMergeDisabled
	out.Channel = info.ChannelName
	if info.LastSlackMessage != nil {
		out.LastMessage = info.LastSlackMessage.Text
		out.LastMessageTS = info.LastSlackMessage.TS
	}
	return out
}
