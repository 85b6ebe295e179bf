package usecase

import (
	"context"
	"fmt"

	"github.com/devricklin/slack-merge-gate/internal/biz/domain"
	"github.com/devricklin/slack-merge-gate/internal/biz/repo"
	"github.com/devricklin/slack-merge-gate/internal/logging"
)

var statusLog = logging.ForComponent(logging.CompStatus)

// StatusCoordinator derives icons and the app status part of the status record
type StatusCoordinator struct {
	store   *Storage
	icons   repo.IconSink
	runtime *Runtime
}

// NewStatusCoordinator creates a new status coordinator
func NewStatusCoordinator(store *Storage, icons repo.IconSink, runtime *Runtime) *StatusCoordinator {
	return &StatusCoordinator{
		store:   store,
		icons:   icons,
		runtime: runtime,
	}
}

// SetIconForStatus applies the icon pair of a merge status
func (uc *StatusCoordinator) SetIconForStatus(status domain.MergeStatus) {
	uc.icons.SetIcon(status, domain.IconFor(status))
}

// SetAppStatus records the app status and updates the icon.
// Returns false without side effects if the status equals the last applied one.
func (uc *StatusCoordinator) SetAppStatus(ctx context.Context, status domain.AppStatus) (bool, error) {
	prev, changed := uc.runtime.swapAppStatus(status)
	if !changed {
		return false, nil
	}

	if err := uc.writeAppStatus(ctx, status); err != nil {
		uc.runtime.restoreAppStatus(status, prev)
		return false, err
	}
	statusLog.Info("app_status_changed", "from", string(prev), "to", string(status))
	return true, uc.ApplyIcon(ctx, status)
}

// ApplyIcon shows the icon an app status calls for. Error statuses always
// show the error icon; ok derives it from the stored messages.
func (uc *StatusCoordinator) ApplyIcon(ctx context.Context, status domain.AppStatus) error {
	switch {
	case status == domain.AppStatusOK:
		return uc.RefreshIconFromStore(ctx)
	case status.IsError():
		uc.SetIconForStatus(domain.MergeStatusError)
	default:
		uc.SetIconForStatus(domain.MergeStatusUnknown)
	}
	return nil
}

func (uc *StatusCoordinator) writeAppStatus(ctx context.Context, status domain.AppStatus) error {
	info, err := uc.store.StatusRecord(ctx)
	if err != nil {
		return fmt.Errorf("read status record: %w", err)
	}
	if info == nil {
		enabled, err := uc.store.FeatureEnabled(ctx)
		if err != nil {
			return err
		}
		info = &domain.MergeStatusInfo{MergeStatus: domain.MergeStatusLoading, FeatureEnabled: enabled}
	}
	info.AppStatus = status
	if err := uc.store.SetStatusRecord(ctx, info); err != nil {
		return fmt.Errorf("write status record: %w", err)
	}
	return nil
}

// RefreshIconFromStore classifies the stored messages and applies the icon.
// The app status is not consulted.
func (uc *StatusCoordinator) RefreshIconFromStore(ctx context.Context) error {
	msgs, err := uc.store.Messages(ctx)
	if err != nil {
		return err
	}
	phrases, err := uc.store.Phrases(ctx)
	if err != nil {
		return err
	}
	uc.SetIconForStatus(domain.Classify(msgs, phrases).Status)
	return nil
}
