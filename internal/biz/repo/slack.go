package repo

import (
	"context"
	"fmt"

	"github.com/devricklin/slack-merge-gate/internal/biz/domain"
)

// APIError is an upstream response with ok=false
type APIError struct {
	Method string
	Code   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("slack %s: %s", e.Method, e.Code)
}

// Channel is a conversation summary from the channel listing
type Channel struct {
	ID   string
	Name string
}

// ChannelInfo is channel metadata relevant to canvas discovery
type ChannelInfo struct {
	ID   string
	Name string
	// CanvasFileIDs lists canvas files in tab order, the channel canvas first
	CanvasFileIDs []string
}

// CanvasFile is the raw block content of a canvas document
type CanvasFile struct {
	FileID string
	TS     string
	Blocks []domain.CanvasNode
}

// SlackRepo is the chat platform interface
// Every call authenticates with the given bearer token.
type SlackRepo interface {
	// ListChannels lists public and private channels, following pagination
	ListChannels(ctx context.Context, token string) ([]Channel, error)

	// TeamID resolves the workspace of the token
	TeamID(ctx context.Context, token string) (string, error)

	// ChannelInfo fetches channel metadata
	ChannelInfo(ctx context.Context, token, channelID string) (*ChannelInfo, error)

	// History fetches up to limit recent messages, newest first
	History(ctx context.Context, token, channelID string, limit int) ([]domain.IncomingMessage, error)

	// OpenConnection performs the realtime handshake and returns a one-time feed URL
	OpenConnection(ctx context.Context, appToken string) (string, error)

	// CanvasContent fetches the block content of a canvas file
	CanvasContent(ctx context.Context, token, fileID string) (*CanvasFile, error)
}
