package server

import "github.com/goccy/go-json"

// Socket Mode frames

type socketEnvelope struct {
	EnvelopeID string          `json:"envelope_id,omitempty"`
	Type       string          `json:"type"`
	Reason     string          `json:"reason,omitempty"`
	Payload    json.RawMessage `json:"payload,omitempty"`
}

type eventsAPIPayload struct {
	TeamID string          `json:"team_id,omitempty"`
	Event  json.RawMessage `json:"event"`
}

type feedEvent struct {
	Type    string `json:"type"`
	Subtype string `json:"subtype,omitempty"`
	User    string `json:"user,omitempty"`
	Text    string `json:"text,omitempty"`
	Channel string `json:"channel,omitempty"`
	TS      string `json:"ts,omitempty"`
	FileID  string `json:"file_id,omitempty"`
	File    struct {
		ID string `json:"id,omitempty"`
	} `json:"file,omitempty"`
}

func (e *feedEvent) fileID() string {
	if e.FileID != "" {
		return e.FileID
	}
	return e.File.ID
}

type ackFrame struct {
	EnvelopeID string `json:"envelope_id"`
}

type pingFrame struct {
	Type string `json:"type"`
	ID   int64  `json:"id"`
}
