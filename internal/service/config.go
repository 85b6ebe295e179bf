package service

import (
	"context"

	"github.com/devricklin/slack-merge-gate/internal/biz/domain"
	"github.com/devricklin/slack-merge-gate/internal/biz/usecase"
	"github.com/devricklin/slack-merge-gate/internal/logging"
)

var configLog = logging.ForComponent(logging.CompHTTP)

// ConfigService reads and writes the synced settings and reacts to changes
type ConfigService struct {
	store      *usecase.Storage
	propagator *usecase.Propagator
	runtime    *usecase.Runtime
	feed       Feed
}

// NewConfigService creates a new config service
func NewConfigService(store *usecase.Storage, propagator *usecase.Propagator, runtime *usecase.Runtime, feed Feed) *ConfigService {
	return &ConfigService{
		store:      store,
		propagator: propagator,
		runtime:    runtime,
		feed:       feed,
	}
}

// Get returns the current settings
func (s *ConfigService) Get(ctx context.Context) (domain.Settings, error) {
	return s.store.Settings(ctx)
}

// Update stores next and applies whatever the change requires:
// connection settings reconnect the feed, a new page URL re-registers
// the content script, and phrase or selector edits re-propagate.
func (s *ConfigService) Update(ctx context.Context, next domain.Settings) (domain.SettingsChange, error) {
	prev, err := s.store.Settings(ctx)
	if err != nil {
		return domain.SettingsChange{}, err
	}
	if err := s.store.SaveSettings(ctx, next); err != nil {
		return domain.SettingsChange{}, err
	}

	change := domain.DiffSettings(prev, next)
	if !change.Any() {
		return change, nil
	}
	configLog.Info("settings_changed",
		"connection", change.Connection,
		"page_url", change.PageURL,
		"matching", change.Matching)

	if change.PageURL {
		s.propagator.RegisterContentScript(ctx)
	}
	if change.Connection {
		if err := s.feed.Reconnect(ctx); err != nil {
			configLog.Warn("reconnect_after_change_failed", "error", err)
		}
	}
	if change.PageURL || change.Matching {
		if _, err := s.propagator.PropagateMergeState(ctx, next.ChannelName, s.runtime.BitbucketTabID()); err != nil {
			configLog.Warn("propagate_after_change_failed", "error", err)
		}
	}
	return change, nil
}

// Seed fills empty stored settings from seed. Stored values win.
func (s *ConfigService) Seed(ctx context.Context, seed domain.Settings) error {
	cur, err := s.store.Settings(ctx)
	if err != nil {
		return err
	}
	merged := cur
	fill := func(dst *string, v string) {
		if *dst == "" {
			*dst = v
		}
	}
	fill(&merged.SlackToken, seed.SlackToken)
	fill(&merged.AppToken, seed.AppToken)
	fill(&merged.ChannelName, seed.ChannelName)
	fill(&merged.BitbucketURL, seed.BitbucketURL)
	fill(&merged.MergeButtonSelector, seed.MergeButtonSelector)
	fill(&merged.AllowedPhrases, seed.AllowedPhrases)
	fill(&merged.DisallowedPhrases, seed.DisallowedPhrases)
	fill(&merged.ExceptionPhrases, seed.ExceptionPhrases)
	if merged == cur {
		return nil
	}
	return s.store.SaveSettings(ctx, merged)
}
