package usecase

import (
	"context"
	"sync"

	"github.com/devricklin/slack-merge-gate/internal/biz/domain"
)

// Runtime is the process-wide mutable state shared by the usecases.
// It is constructed once at startup and passed by reference.
type Runtime struct {
	mu sync.Mutex

	// appStatus is the last status applied by SetAppStatus
	appStatus domain.AppStatus

	// bitbucketTabID is the last page control that announced itself
	bitbucketTabID string

	// stopCountdown cancels the running countdown, if any
	stopCountdown context.CancelFunc
	// countdownGen identifies the installed countdown
	countdownGen uint64
}

// NewRuntime creates an empty runtime context
func NewRuntime() *Runtime {
	return &Runtime{}
}

// BitbucketTabID returns the cached page control id ("" if unknown)
func (r *Runtime) BitbucketTabID() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.bitbucketTabID
}

// SetBitbucketTabID caches the page control id
func (r *Runtime) SetBitbucketTabID(tabID string) {
	r.mu.Lock()
	r.bitbucketTabID = tabID
	r.mu.Unlock()
}

// ForgetTab clears the cached id if it refers to tabID
func (r *Runtime) ForgetTab(tabID string) {
	r.mu.Lock()
	if r.bitbucketTabID == tabID {
		r.bitbucketTabID = ""
	}
	r.mu.Unlock()
}

// AppStatus returns the last applied app status
func (r *Runtime) AppStatus() domain.AppStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.appStatus
}

// swapAppStatus stores s and returns the previous value and whether it changed
func (r *Runtime) swapAppStatus(s domain.AppStatus) (domain.AppStatus, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	prev := r.appStatus
	if prev == s {
		return prev, false
	}
	r.appStatus = s
	return prev, true
}

// restoreAppStatus undoes a swap whose write failed
func (r *Runtime) restoreAppStatus(expected, prev domain.AppStatus) {
	r.mu.Lock()
	if r.appStatus == expected {
		r.appStatus = prev
	}
	r.mu.Unlock()
}

// replaceCountdown installs a new countdown canceller, stopping the old one.
// Returns the generation of the installed countdown.
func (r *Runtime) replaceCountdown(stop context.CancelFunc) uint64 {
	r.mu.Lock()
	old := r.stopCountdown
	r.stopCountdown = stop
	r.countdownGen++
	gen := r.countdownGen
	r.mu.Unlock()
	if old != nil {
		old()
	}
	return gen
}

// clearCountdown stops the running countdown, if any
func (r *Runtime) clearCountdown() {
	r.replaceCountdown(nil)
}

// releaseCountdown uninstalls the countdown of generation gen. It reports
// false if another countdown replaced it or it was cleared.
func (r *Runtime) releaseCountdown(gen uint64) bool {
	r.mu.Lock()
	stop := r.stopCountdown
	if r.countdownGen != gen || stop == nil {
		r.mu.Unlock()
		return false
	}
	r.stopCountdown = nil
	r.mu.Unlock()
	stop()
	return true
}

// countdownActive reports whether a countdown goroutine is installed
func (r *Runtime) countdownActive() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stopCountdown != nil
}
