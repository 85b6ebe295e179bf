package service

import (
	"fmt"

	"github.com/goccy/go-json"
)

// Action names accepted from popups, page controls and the HTTP API
const (
	ActionFetchNewMessages     = "fetchNewMessages"
	ActionReconnect            = "reconnect"
	ActionFeatureToggleChanged = "featureToggleChanged"
	ActionCountdownCompleted   = "countdownCompleted"
	ActionGetCountdownStatus   = "getCountdownStatus"
	ActionUpdateMergeButton    = "updateMergeButton"
	ActionBitbucketTabLoaded   = "bitbucketTabLoaded"
)

// Action is the closed set of requests the daemon handles.
// Only types in this package implement it.
type Action interface {
	Name() string
	isAction()
}

// FetchNewMessages rebuilds the message store from history
type FetchNewMessages struct{}

// Reconnect drops the feed connection and connects again
type Reconnect struct{}

// FeatureToggleChanged switches the merge guard
type FeatureToggleChanged struct {
	Enabled bool
}

// CountdownCompleted forces the pending reactivation to happen now
type CountdownCompleted struct{}

// GetCountdownStatus reports the pending reactivation
type GetCountdownStatus struct{}

// UpdateMergeButton re-propagates the merge state to page controls
type UpdateMergeButton struct{}

// BitbucketTabLoaded announces a page control
type BitbucketTabLoaded struct {
	TabID string
}

func (FetchNewMessages) Name() string     { return ActionFetchNewMessages }
func (Reconnect) Name() string            { return ActionReconnect }
func (FeatureToggleChanged) Name() string { return ActionFeatureToggleChanged }
func (CountdownCompleted) Name() string   { return ActionCountdownCompleted }
func (GetCountdownStatus) Name() string   { return ActionGetCountdownStatus }
func (UpdateMergeButton) Name() string    { return ActionUpdateMergeButton }
func (BitbucketTabLoaded) Name() string   { return ActionBitbucketTabLoaded }

func (FetchNewMessages) isAction()     {}
func (Reconnect) isAction()            {}
func (FeatureToggleChanged) isAction() {}
func (CountdownCompleted) isAction()   {}
func (GetCountdownStatus) isAction()   {}
func (UpdateMergeButton) isAction()    {}
func (BitbucketTabLoaded) isAction()   {}

type actionEnvelope struct {
	Action  string `json:"action"`
	Enabled *bool  `json:"enabled"`
	TabID   string `json:"tabId"`
}

// DecodeAction parses a {"action": ...} request. tabID, when non-empty,
// is the page control the request arrived from.
func DecodeAction(raw []byte, tabID string) (Action, error) {
	var env actionEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("invalid action payload: %w", err)
	}

	switch env.Action {
	case ActionFetchNewMessages:
		return FetchNewMessages{}, nil
	case ActionReconnect:
		return Reconnect{}, nil
	case ActionFeatureToggleChanged:
		if env.Enabled == nil {
			return nil, fmt.Errorf("%s requires enabled", env.Action)
		}
		return FeatureToggleChanged{Enabled: *env.Enabled}, nil
	case ActionCountdownCompleted:
		return CountdownCompleted{}, nil
	case ActionGetCountdownStatus:
		return GetCountdownStatus{}, nil
	case ActionUpdateMergeButton:
		return UpdateMergeButton{}, nil
	case ActionBitbucketTabLoaded:
		if tabID == "" {
			tabID = env.TabID
		}
		if tabID == "" {
			return nil, fmt.Errorf("%s requires tabId", env.Action)
		}
		return BitbucketTabLoaded{TabID: tabID}, nil
	case "":
		return nil, fmt.Errorf("missing action")
	default:
		return nil, fmt.Errorf("unknown action %q", env.Action)
	}
}

// Result is the generic action response
type Result struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

func ok() Result {
	return Result{Success: true}
}

func failed(err error) Result {
	return Result{Success: false, Error: err.Error()}
}
