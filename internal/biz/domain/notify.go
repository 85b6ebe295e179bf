package domain

// Popup event actions
const (
	PopupUpdateMergeStatus  = "updateMergeStatus"
	PopupUpdateCountdown    = "updateCountdownDisplay"
	PopupCountdownCompleted = "countdownCompleted"
	PopupIconChanged        = "iconChanged"
)

// PageUpdateAction is the action name of the payload sent to page controls
const PageUpdateAction = "updateMergeButtonFromBackground"

// PopupEvent is a best-effort message to open popups
type PopupEvent struct {
	Action   string           `json:"action"`
	Status   *MergeStatusInfo `json:"status,omitempty"`
	TimeLeft int64            `json:"timeLeft,omitempty"`
	Icon     *IconSet         `json:"icon,omitempty"`
}

// PagePayload is what the injected page control receives
type PagePayload struct {
	Action              string            `json:"action"`
	MergeStatus         MergeStatus       `json:"mergeStatus"`
	IsMergeDisabled     bool              `json:"isMergeDisabled"`
	LastSlackMessage    *ProcessedMessage `json:"lastSlackMessage"`
	ChannelName         string            `json:"channelName"`
	FeatureEnabled      bool              `json:"featureEnabled"`
	MergeButtonSelector string            `json:"mergeButtonSelector,omitempty"`
}

// NewPagePayload builds the page payload from a status record
func NewPagePayload(info *MergeStatusInfo, selector string) PagePayload {
	return PagePayload{
		Action:              PageUpdateAction,
		MergeStatus:         info.MergeStatus,
		IsMergeDisabled:     info.IsMergeDisabled,
		LastSlackMessage:    info.LastSlackMessage,
		ChannelName:         info.ChannelName,
		FeatureEnabled:      info.FeatureEnabled,
		MergeButtonSelector: selector,
	}
}
