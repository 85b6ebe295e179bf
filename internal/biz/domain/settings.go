package domain

import "time"

// Settings is the user-editable synced configuration
type Settings struct {
	SlackToken          string `json:"slackToken"`
	AppToken            string `json:"appToken"`
	ChannelName         string `json:"channelName"`
	BitbucketURL        string `json:"bitbucketUrl"`
	MergeButtonSelector string `json:"mergeButtonSelector"`
	AllowedPhrases      string `json:"allowedPhrases"`
	DisallowedPhrases   string `json:"disallowedPhrases"`
	ExceptionPhrases    string `json:"exceptionPhrases"`
}

// HasFeedConfig reports whether the settings are sufficient to connect
func (s *Settings) HasFeedConfig() bool {
	return s.SlackToken != "" && s.AppToken != "" && s.ChannelName != ""
}

// Phrases resolves the configured phrase sets with defaults
func (s *Settings) Phrases() PhraseSets {
	return ResolvePhraseSets(s.AllowedPhrases, s.DisallowedPhrases, s.ExceptionPhrases)
}

// SettingsChange lists which groups of settings differ between two snapshots
type SettingsChange struct {
	Connection bool `json:"connection"` // token, app token or channel
	PageURL    bool `json:"pageUrl"`
	Matching   bool `json:"matching"`   // phrases or button selector
}

// Any reports whether anything changed
func (c SettingsChange) Any() bool {
	return c.Connection || c.PageURL || c.Matching
}

// DiffSettings compares two settings snapshots
func DiffSettings(before, after Settings) SettingsChange {
	var c SettingsChange
	c.Connection = before.SlackToken != after.SlackToken ||
		before.AppToken != after.AppToken ||
		before.ChannelName != after.ChannelName
	c.PageURL = before.BitbucketURL != after.BitbucketURL
	c.Matching = before.AllowedPhrases != after.AllowedPhrases ||
		before.DisallowedPhrases != after.DisallowedPhrases ||
		before.ExceptionPhrases != after.ExceptionPhrases ||
		before.MergeButtonSelector != after.MergeButtonSelector
	return c
}

// CountdownStatus describes a pending feature reactivation
type CountdownStatus struct {
	IsCountdownActive bool  `json:"isCountdownActive"`
	TimeLeft          int64 `json:"timeLeft"`
	ReactivationTime  int64 `json:"reactivationTime,omitempty"`
}

// NewCountdownStatus builds the status for a reactivation due at the given epoch-ms
func NewCountdownStatus(reactivationMs int64, now time.Time) CountdownStatus {
	if reactivationMs <= 0 {
		return CountdownStatus{}
	}
	left := reactivationMs - now.UnixMilli()
	if left <= 0 {
		return CountdownStatus{ReactivationTime: reactivationMs}
	}
	return CountdownStatus{IsCountdownActive: true, TimeLeft: left, ReactivationTime: reactivationMs}
}
