package usecase

import (
	"context"
	"fmt"
	"strings"

	"github.com/devricklin/slack-merge-gate/internal/biz/repo"
)

// ChannelResolver resolves channel names to ids with a storage-backed cache
type ChannelResolver struct {
	store *Storage
	slack repo.SlackRepo
}

// NewChannelResolver creates a new channel resolver
func NewChannelResolver(store *Storage, slack repo.SlackRepo) *ChannelResolver {
	return &ChannelResolver{store: store, slack: slack}
}

// Resolve returns the id of channelName. The cache is only used when it was
// filled for the same name.
func (uc *ChannelResolver) Resolve(ctx context.Context, token, channelName string) (string, error) {
	name := strings.TrimPrefix(strings.TrimSpace(channelName), "#")

	cachedID, cachedName, err := uc.store.ChannelCache(ctx)
	if err != nil {
		return "", err
	}
	if cachedID != "" && cachedName == name {
		return cachedID, nil
	}

	channels, err := uc.slack.ListChannels(ctx, token)
	if err != nil {
		return "", fmt.Errorf("list channels: %w", err)
	}
	for _, ch := range channels {
		if ch.Name == name {
			if err := uc.store.SetChannelCache(ctx, ch.ID, name); err != nil {
				return "", err
			}
			return ch.ID, nil
		}
	}
	return "", &repo.APIError{Method: "conversations.list", Code: "channel_not_found"}
}
