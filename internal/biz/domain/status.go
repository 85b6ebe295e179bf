package domain

// MergeStatus is the merge verdict derived from channel messages
type MergeStatus string

const (
	MergeStatusLoading      MergeStatus = "loading"
	MergeStatusAllowed      MergeStatus = "allowed"
	MergeStatusDisallowed   MergeStatus = "disallowed"
	MergeStatusException    MergeStatus = "exception"
	MergeStatusUnknown      MergeStatus = "unknown"
	MergeStatusError        MergeStatus = "error"
	MergeStatusConfigNeeded MergeStatus = "config_needed"
)

// DisablesMerge reports whether the status should block the merge button
func (s MergeStatus) DisablesMerge() bool {
	return s == MergeStatusDisallowed || s == MergeStatusException
}

// AppStatus describes the health of the integration itself
type AppStatus string

const (
	AppStatusOK              AppStatus = "ok"
	AppStatusConfigError     AppStatus = "config_error"
	AppStatusTokenError      AppStatus = "token_error"
	AppStatusWebSocketError  AppStatus = "websocket_error"
	AppStatusChannelNotFound AppStatus = "channel_not_found"
	AppStatusUnknownError    AppStatus = "unknown_error"
)

// IsError reports whether the status forces the merge status to error
func (s AppStatus) IsError() bool {
	switch s {
	case AppStatusConfigError, AppStatusTokenError, AppStatusWebSocketError,
		AppStatusChannelNotFound, AppStatusUnknownError:
		return true
	}
	return false
}

// MergeStatusInfo is the single persisted status record
type MergeStatusInfo struct {
	MergeStatus      MergeStatus       `json:"mergeStatus"`
	IsMergeDisabled  bool              `json:"isMergeDisabled"`
	LastSlackMessage *ProcessedMessage `json:"lastSlackMessage"`
	ChannelName      string            `json:"channelName"`
	FeatureEnabled   bool              `json:"featureEnabled"`
	AppStatus        AppStatus         `json:"appStatus,omitempty"`
}

// IconSet is a pair of action icon asset paths
type IconSet struct {
	Small string `json:"16"`
	Large string `json:"48"`
}

var iconSets = map[MergeStatus]IconSet{
	MergeStatusLoading:    {Small: "images/icon-loading-16.png", Large: "images/icon-loading-48.png"},
	MergeStatusAllowed:    {Small: "images/icon-allowed-16.png", Large: "images/icon-allowed-48.png"},
	MergeStatusDisallowed: {Small: "images/icon-disallowed-16.png", Large: "images/icon-disallowed-48.png"},
	MergeStatusException:  {Small: "images/icon-exception-16.png", Large: "images/icon-exception-48.png"},
	MergeStatusUnknown:    {Small: "images/icon-unknown-16.png", Large: "images/icon-unknown-48.png"},
	MergeStatusError:      {Small: "images/icon-error-16.png", Large: "images/icon-error-48.png"},
}

// IconFor maps a merge status to its icon pair. Unmapped statuses use the loading icons.
func IconFor(status MergeStatus) IconSet {
	if icons, ok := iconSets[status]; ok {
		return icons
	}
	return iconSets[MergeStatusLoading]
}
