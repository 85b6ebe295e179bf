package service

import (
	"context"

	"github.com/devricklin/slack-merge-gate/internal/biz/domain"
	"github.com/devricklin/slack-merge-gate/internal/biz/usecase"
)

// IconSource exposes the icon currently shown
type IconSource interface {
	CurrentIcon() (domain.MergeStatus, domain.IconSet)
}

// PopupState is everything a popup renders on open
type PopupState struct {
	PopupStatus domain.MergeStatus        `json:"popupStatus"`
	Status      *domain.MergeStatusInfo   `json:"status"`
	Messages    []domain.ProcessedMessage `json:"messages"`
	IconStatus  domain.MergeStatus        `json:"iconStatus"`
	Icon        domain.IconSet            `json:"icon"`
	Countdown   domain.CountdownStatus    `json:"countdown"`
	AppStatus   domain.AppStatus          `json:"appStatus,omitempty"`
	FeedState   string                    `json:"feedState"`
}

// StateService assembles popup snapshots
type StateService struct {
	store     *usecase.Storage
	countdown *usecase.Countdown
	icons     IconSource
	feed      Feed
}

// NewStateService creates a new state service
func NewStateService(store *usecase.Storage, countdown *usecase.Countdown, icons IconSource, feed Feed) *StateService {
	return &StateService{
		store:     store,
		countdown: countdown,
		icons:     icons,
		feed:      feed,
	}
}

// Snapshot reads the current state
func (s *StateService) Snapshot(ctx context.Context) (*PopupState, error) {
	settings, err := s.store.Settings(ctx)
	if err != nil {
		return nil, err
	}
	record, err := s.store.StatusRecord(ctx)
	if err != nil {
		return nil, err
	}
	msgs, err := s.store.Messages(ctx)
	if err != nil {
		return nil, err
	}
	countdown, err := s.countdown.Status(ctx)
	if err != nil {
		return nil, err
	}

	state := &PopupState{
		Status:    record,
		Messages:  msgs,
		Countdown: countdown,
		FeedState: s.feed.State(),
	}
	state.IconStatus, state.Icon = s.icons.CurrentIcon()

	switch {
	case !settings.HasFeedConfig():
		state.PopupStatus = domain.MergeStatusConfigNeeded
	case record == nil:
		state.PopupStatus = domain.MergeStatusLoading
	default:
		state.PopupStatus = record.MergeStatus
		state.AppStatus = record.AppStatus
	}
	return state, nil
}
