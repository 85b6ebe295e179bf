package usecase

import (
	"context"
	"sync"
	"time"

	"github.com/devricklin/slack-merge-gate/internal/biz/domain"
	"github.com/devricklin/slack-merge-gate/internal/biz/repo"
	"github.com/devricklin/slack-merge-gate/internal/logging"
)

var countdownLog = logging.ForComponent(logging.CompCountdown)

// CountdownConfig holds countdown timing
type CountdownConfig struct {
	// Timeout is how long the merge guard stays disabled
	Timeout time.Duration
	// Tick is the popup update interval
	Tick time.Duration
}

// Countdown temporarily disables the merge guard and re-enables it later
type Countdown struct {
	// mu orders toggles against reactivation
	mu sync.Mutex

	store      *Storage
	propagator *Propagator
	popup      repo.PopupNotifier
	runtime    *Runtime
	config     CountdownConfig
	now        func() time.Time
}

// NewCountdown creates a new countdown usecase
func NewCountdown(
	store *Storage,
	propagator *Propagator,
	popup repo.PopupNotifier,
	runtime *Runtime,
	config CountdownConfig,
) *Countdown {
	if config.Timeout <= 0 {
		config.Timeout = 30 * time.Minute
	}
	if config.Tick <= 0 {
		config.Tick = time.Second
	}
	return &Countdown{
		store:      store,
		propagator: propagator,
		popup:      popup,
		runtime:    runtime,
		config:     config,
		now:        time.Now,
	}
}

// ToggleFeature handles the merge guard switch. Disabling schedules the
// automatic reactivation; enabling cancels it.
func (uc *Countdown) ToggleFeature(ctx context.Context, enabled bool) error {
	uc.mu.Lock()
	defer uc.mu.Unlock()

	if err := uc.store.SetFeatureEnabled(ctx, enabled); err != nil {
		return err
	}
	if enabled {
		uc.runtime.clearCountdown()
		if err := uc.store.ClearReactivationTime(ctx); err != nil {
			return err
		}
	} else if err := uc.scheduleReactivation(ctx); err != nil {
		return err
	}
	return uc.propagate(ctx)
}

// ScheduleReactivation persists a reactivation time and starts the countdown
func (uc *Countdown) ScheduleReactivation(ctx context.Context) error {
	uc.mu.Lock()
	defer uc.mu.Unlock()
	return uc.scheduleReactivation(ctx)
}

func (uc *Countdown) scheduleReactivation(ctx context.Context) error {
	due := uc.now().Add(uc.config.Timeout).UnixMilli()
	if err := uc.store.SetReactivationTime(ctx, due); err != nil {
		return err
	}
	countdownLog.Info("reactivation_scheduled", "due", time.UnixMilli(due).Format(time.RFC3339))
	uc.start(due)
	return nil
}

// CheckScheduledReactivation resumes a persisted countdown, or reactivates
// immediately if it is already overdue.
func (uc *Countdown) CheckScheduledReactivation(ctx context.Context) error {
	due, err := uc.store.ReactivationTime(ctx)
	if err != nil {
		return err
	}
	if due <= 0 {
		return nil
	}
	if due <= uc.now().UnixMilli() {
		return uc.Complete(ctx)
	}
	countdownLog.Info("countdown_resumed", "left_ms", due-uc.now().UnixMilli())
	uc.start(due)
	return nil
}

// Status reports the pending reactivation
func (uc *Countdown) Status(ctx context.Context) (domain.CountdownStatus, error) {
	due, err := uc.store.ReactivationTime(ctx)
	if err != nil {
		return domain.CountdownStatus{}, err
	}
	return domain.NewCountdownStatus(due, uc.now()), nil
}

// Cancel stops the countdown timer without touching stored state
func (uc *Countdown) Cancel() {
	uc.runtime.clearCountdown()
}

// Complete re-enables the merge guard and re-propagates
func (uc *Countdown) Complete(ctx context.Context) error {
	uc.mu.Lock()
	defer uc.mu.Unlock()
	uc.runtime.clearCountdown()
	return uc.reactivate(ctx)
}

// expire completes the countdown of generation gen unless a toggle or a newer
// countdown took its place. Reports whether it reactivated.
func (uc *Countdown) expire(ctx context.Context, gen uint64) (bool, error) {
	uc.mu.Lock()
	defer uc.mu.Unlock()
	if !uc.runtime.releaseCountdown(gen) {
		countdownLog.Debug("stale_countdown_skipped")
		return false, nil
	}
	return true, uc.reactivate(ctx)
}

func (uc *Countdown) reactivate(ctx context.Context) error {
	if err := uc.store.SetFeatureEnabled(ctx, true); err != nil {
		return err
	}
	if err := uc.store.ClearReactivationTime(ctx); err != nil {
		return err
	}
	countdownLog.Info("feature_reactivated")
	uc.popup.NotifyPopup(ctx, domain.PopupEvent{Action: domain.PopupCountdownCompleted})
	return uc.propagate(ctx)
}

func (uc *Countdown) propagate(ctx context.Context) error {
	settings, err := uc.store.Settings(ctx)
	if err != nil {
		return err
	}
	_, err = uc.propagator.PropagateMergeState(ctx, settings.ChannelName, uc.runtime.BitbucketTabID())
	return err
}

// start runs the tick loop until the due time, replacing any running countdown
func (uc *Countdown) start(due int64) uint64 {
	ctx, cancel := context.WithCancel(context.Background())
	gen := uc.runtime.replaceCountdown(cancel)

	go func() {
		ticker := time.NewTicker(uc.config.Tick)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				left := due - uc.now().UnixMilli()
				if left <= 0 {
					if _, err := uc.expire(context.WithoutCancel(ctx), gen); err != nil {
						countdownLog.Error("reactivation_failed", "error", err)
					}
					return
				}
				uc.popup.NotifyPopup(ctx, domain.PopupEvent{Action: domain.PopupUpdateCountdown, TimeLeft: left})
			}
		}
	}()
	return gen
}
