package desktop

import (
	"sync"

	"github.com/gen2brain/beeep"

	"github.com/devricklin/slack-merge-gate/internal/biz/domain"
	"github.com/devricklin/slack-merge-gate/internal/biz/repo"
	"github.com/devricklin/slack-merge-gate/internal/logging"
)

var desktopLog = logging.ForComponent(logging.CompDesktop)

const notificationTitle = "Merge gate"

var statusMessages = map[domain.MergeStatus]string{
	domain.MergeStatusAllowed:    "Merging is allowed",
	domain.MergeStatusDisallowed: "Merging is blocked",
	domain.MergeStatusException:  "Merging is blocked by an exception",
	domain.MergeStatusError:      "Merge gate cannot read the channel",
}

// IconNotifier passes icon changes through and raises a desktop
// notification when the shown status moves to a different verdict.
// Loading and unknown are not announced.
type IconNotifier struct {
	next   repo.IconSink
	notify func(title, body string) error

	mu   sync.Mutex
	last domain.MergeStatus
	wg   sync.WaitGroup
}

var _ repo.IconSink = (*IconNotifier)(nil)

// NewIconNotifier wraps next with beeep notifications
func NewIconNotifier(next repo.IconSink) *IconNotifier {
	return &IconNotifier{
		next: next,
		notify: func(title, body string) error {
			return beeep.Notify(title, body, "")
		},
	}
}

// SetIcon implements repo.IconSink
func (n *IconNotifier) SetIcon(status domain.MergeStatus, icons domain.IconSet) {
	n.next.SetIcon(status, icons)

	body, announce := statusMessages[status]
	if !announce {
		return
	}
	n.mu.Lock()
	if status == n.last {
		n.mu.Unlock()
		return
	}
	n.last = status
	n.mu.Unlock()

	// notification backends may block on the session bus
	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		if err := n.notify(notificationTitle, body); err != nil {
			desktopLog.Warn("notify_failed", "status", string(status), "error", err)
		}
	}()
}

// Wait blocks until pending notifications are sent
func (n *IconNotifier) Wait() {
	n.wg.Wait()
}
