package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/devricklin/slack-merge-gate/internal/biz/domain"
	"github.com/devricklin/slack-merge-gate/internal/biz/repo"
)

// MessageStore maintains the bounded message list and the last match cache
type MessageStore struct {
	store       *Storage
	slack       repo.SlackRepo
	canvas      *CanvasFetcher
	status      *StatusCoordinator
	propagator  *Propagator
	runtime     *Runtime
	maxMessages int

	// mu serializes read-modify-write of the live path only
	mu sync.Mutex
}

// NewMessageStore creates a new message store
func NewMessageStore(
	store *Storage,
	slack repo.SlackRepo,
	canvas *CanvasFetcher,
	status *StatusCoordinator,
	propagator *Propagator,
	runtime *Runtime,
	maxMessages int,
) *MessageStore {
	if maxMessages <= 0 {
		maxMessages = domain.DefaultMaxMessages
	}
	return &MessageStore{
		store:       store,
		slack:       slack,
		canvas:      canvas,
		status:      status,
		propagator:  propagator,
		runtime:     runtime,
		maxMessages: maxMessages,
	}
}

// RecordIncomingMessage adds a live message. Messages without ts or text and
// already known timestamps are ignored. Returns whether the store changed.
func (uc *MessageStore) RecordIncomingMessage(ctx context.Context, msg domain.IncomingMessage) (bool, error) {
	if msg.TS == "" || msg.Text == "" {
		return false, nil
	}

	uc.mu.Lock()
	msgs, err := uc.store.Messages(ctx)
	if err != nil {
		uc.mu.Unlock()
		return false, err
	}
	if domain.ContainsTS(msgs, msg.TS) {
		uc.mu.Unlock()
		return false, nil
	}

	processed := domain.ProcessedMessage{
		Text: domain.CleanMessageText(msg.Text),
		TS:   msg.TS,
		User: msg.User,
	}
	msgs = domain.MergeMessages(append([]domain.ProcessedMessage{processed}, msgs...), uc.maxMessages)
	err = uc.store.SetMessages(ctx, msgs)
	uc.mu.Unlock()
	if err != nil {
		return false, err
	}

	if err := uc.saveClassification(ctx, msgs); err != nil {
		return true, err
	}
	return true, uc.status.RefreshIconFromStore(ctx)
}

// ReplaceAllMessages rebuilds the store from channel history and canvases.
// Only an upstream error response from history retrieval is returned; other
// fetch failures count as "no data from that source".
func (uc *MessageStore) ReplaceAllMessages(ctx context.Context, channelID, canvasFileID string) error {
	settings, err := uc.store.Settings(ctx)
	if err != nil {
		return err
	}
	token := settings.SlackToken

	var (
		history []domain.IncomingMessage
		info    *repo.ChannelInfo
		g       errgroup.Group
	)
	g.Go(func() error {
		msgs, err := uc.slack.History(ctx, token, channelID, uc.maxMessages)
		if err != nil {
			var apiErr *repo.APIError
			if errors.As(err, &apiErr) {
				return err
			}
			storeLog.Warn("history_fetch_failed", "channel_id", channelID, "error", err)
			return nil
		}
		history = msgs
		return nil
	})
	g.Go(func() error {
		ci, err := uc.slack.ChannelInfo(ctx, token, channelID)
		if err != nil {
			storeLog.Warn("channel_info_failed", "channel_id", channelID, "error", err)
			return nil
		}
		info = ci
		return nil
	})
	if err := g.Wait(); err != nil {
		return fmt.Errorf("fetch history: %w", err)
	}

	all := make([]domain.ProcessedMessage, 0, len(history))
	for _, m := range history {
		if m.TS == "" {
			continue
		}
		all = append(all, domain.ProcessedMessage{
			Text: domain.CleanMessageText(m.Text),
			TS:   m.TS,
			User: m.User,
		})
	}
	for _, c := range uc.canvas.FetchAllForChannel(ctx, token, info, canvasFileID) {
		all = append(all, domain.ProcessedMessage{
			Text: c.Content,
			TS:   c.TS,
			User: domain.CanvasUser(c.FileID),
		})
	}

	msgs := domain.MergeMessages(all, uc.maxMessages)
	if err := uc.store.SetMessages(ctx, msgs); err != nil {
		return err
	}
	storeLog.Info("messages_replaced", "channel_id", channelID, "count", len(msgs))

	if err := uc.saveClassification(ctx, msgs); err != nil {
		return err
	}
	if err := uc.status.RefreshIconFromStore(ctx); err != nil {
		return err
	}
	_, err = uc.propagator.PropagateMergeState(ctx, settings.ChannelName, uc.runtime.BitbucketTabID())
	return err
}

// ClearMessages empties the store
func (uc *MessageStore) ClearMessages(ctx context.Context) error {
	uc.mu.Lock()
	defer uc.mu.Unlock()
	if err := uc.store.SetMessages(ctx, nil); err != nil {
		return err
	}
	return uc.store.SetLastMatchingMessage(ctx, nil)
}

func (uc *MessageStore) saveClassification(ctx context.Context, msgs []domain.ProcessedMessage) error {
	phrases, err := uc.store.Phrases(ctx)
	if err != nil {
		return err
	}
	result := domain.Classify(msgs, phrases)
	return uc.store.SetLastMatchingMessage(ctx, result.Message)
}
