package usecase

import (
	"context"
	"errors"
	"strings"

	"github.com/devricklin/slack-merge-gate/internal/biz/domain"
	"github.com/devricklin/slack-merge-gate/internal/biz/repo"
	"github.com/devricklin/slack-merge-gate/internal/logging"
)

var bridgeLog = logging.ForComponent(logging.CompBridge)

// ContentScriptID is the fixed id of the page-control registration
const ContentScriptID = "bitbucket-content-script"

// noReceiverMarkers identify deliveries that failed only because nobody listens
var noReceiverMarkers = []string{
	"receiving end does not exist",
	"message port closed",
	"no tab with id",
}

// IsNoReceiver reports whether a delivery error only means the listener is gone
func IsNoReceiver(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, repo.ErrNoReceiver) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range noReceiverMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

// Propagator publishes the merge state to the status record, popups and pages
type Propagator struct {
	store   *Storage
	popup   repo.PopupNotifier
	pages   repo.PageBroadcaster
	scripts repo.ScriptRegistry
}

// NewPropagator creates a new propagator
func NewPropagator(store *Storage, popup repo.PopupNotifier, pages repo.PageBroadcaster, scripts repo.ScriptRegistry) *Propagator {
	return &Propagator{
		store:   store,
		popup:   popup,
		pages:   pages,
		scripts: scripts,
	}
}

// PropagateMergeState classifies the stored messages, persists the status
// record and delivers it. With a tabID only that page is updated, otherwise
// every page matching the configured URL pattern is.
func (uc *Propagator) PropagateMergeState(ctx context.Context, channelName, tabID string) (*domain.MergeStatusInfo, error) {
	msgs, err := uc.store.Messages(ctx)
	if err != nil {
		return nil, err
	}
	featureEnabled, err := uc.store.FeatureEnabled(ctx)
	if err != nil {
		return nil, err
	}
	prior, err := uc.store.StatusRecord(ctx)
	if err != nil {
		return nil, err
	}
	settings, err := uc.store.Settings(ctx)
	if err != nil {
		return nil, err
	}

	info := BuildStatusRecord(msgs, settings.Phrases(), prior, channelName, featureEnabled)
	if err := uc.store.SetStatusRecord(ctx, info); err != nil {
		return nil, err
	}
	bridgeLog.Debug("merge_state_propagated",
		"status", string(info.MergeStatus),
		"disabled", info.IsMergeDisabled,
		"tab_id", tabID,
	)

	uc.report("popup", uc.popup.NotifyPopup(ctx, domain.PopupEvent{Action: domain.PopupUpdateMergeStatus, Status: info}))

	payload := domain.NewPagePayload(info, settings.MergeButtonSelector)
	if tabID != "" {
		uc.report(tabID, uc.pages.SendToTab(ctx, tabID, payload))
		return info, nil
	}
	for _, tab := range uc.pages.Tabs() {
		if domain.MatchURLPattern(settings.BitbucketURL, tab.URL) {
			uc.report(tab.ID, uc.pages.SendToTab(ctx, tab.ID, payload))
		}
	}
	return info, nil
}

// BuildStatusRecord derives the status record. An error app status forces
// the error state; a disabled merge guard forces allowed.
func BuildStatusRecord(
	msgs []domain.ProcessedMessage,
	phrases domain.PhraseSets,
	prior *domain.MergeStatusInfo,
	channelName string,
	featureEnabled bool,
) *domain.MergeStatusInfo {
	result := domain.Classify(msgs, phrases)

	var appStatus domain.AppStatus
	if prior != nil {
		appStatus = prior.AppStatus
	}
	status := result.Status
	if appStatus.IsError() {
		status = domain.MergeStatusError
	}
	disabled := status.DisablesMerge()
	if !featureEnabled {
		status = domain.MergeStatusAllowed
		disabled = false
	}

	return &domain.MergeStatusInfo{
		MergeStatus:      status,
		IsMergeDisabled:  disabled,
		LastSlackMessage: result.Message,
		ChannelName:      channelName,
		FeatureEnabled:   featureEnabled,
		AppStatus:        appStatus,
	}
}

func (uc *Propagator) report(target string, d repo.Delivery) {
	if d.OK() || IsNoReceiver(d.Err) {
		return
	}
	bridgeLog.Warn("delivery_failed", "target", target, "error", d.Err)
}

// RegisterContentScript re-registers the page control for the configured URL.
// Failures are logged.
func (uc *Propagator) RegisterContentScript(ctx context.Context) {
	existing, err := uc.scripts.RegisteredScripts(ctx, ContentScriptID)
	if err != nil {
		bridgeLog.Error("list_scripts_failed", "error", err)
	} else if len(existing) > 0 {
		if err := uc.scripts.UnregisterScripts(ctx, ContentScriptID); err != nil {
			bridgeLog.Error("unregister_script_failed", "error", err)
		}
	}

	settings, err := uc.store.Settings(ctx)
	if err != nil {
		bridgeLog.Error("read_settings_failed", "error", err)
		return
	}
	if settings.BitbucketURL == "" {
		bridgeLog.Info("content_script_skipped", "reason", "no url configured")
		return
	}
	script := repo.ContentScript{ID: ContentScriptID, Matches: []string{settings.BitbucketURL}}
	if err := uc.scripts.RegisterScripts(ctx, script); err != nil {
		bridgeLog.Error("register_script_failed", "error", err)
		return
	}
	bridgeLog.Info("content_script_registered", "matches", settings.BitbucketURL)
}
