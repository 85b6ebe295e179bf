package repo

import (
	"context"
	"errors"

	"github.com/devricklin/slack-merge-gate/internal/biz/domain"
)

// ErrNoReceiver is returned when nobody is listening on the other end
var ErrNoReceiver = errors.New("could not establish connection. receiving end does not exist")

// Delivery is the result of a best-effort send. Callers may ignore it.
type Delivery struct {
	Target string
	Err    error
}

// OK reports whether the message was handed to a receiver
func (d Delivery) OK() bool {
	return d.Err == nil
}

// Tab is a connected page control
type Tab struct {
	ID  string
	URL string
}

// ContentScript is a page-control registration
type ContentScript struct {
	ID      string
	Matches []string
}

// IconSink displays the current status icon
type IconSink interface {
	SetIcon(status domain.MergeStatus, icons domain.IconSet)
}

// PopupNotifier delivers events to any open popup
type PopupNotifier interface {
	NotifyPopup(ctx context.Context, event domain.PopupEvent) Delivery
}

// PageBroadcaster delivers payloads to connected page controls
type PageBroadcaster interface {
	Tabs() []Tab
	SendToTab(ctx context.Context, tabID string, payload domain.PagePayload) Delivery
}

// ScriptRegistry manages page-control registrations
type ScriptRegistry interface {
	RegisteredScripts(ctx context.Context, ids ...string) ([]ContentScript, error)
	UnregisterScripts(ctx context.Context, ids ...string) error
	RegisterScripts(ctx context.Context, scripts ...ContentScript) error
}
