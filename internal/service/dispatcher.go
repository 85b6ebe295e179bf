package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/devricklin/slack-merge-gate/internal/biz/usecase"
)

// ErrNotConfigured is returned when token, app token or channel are missing
var ErrNotConfigured = errors.New("slack token, app token and channel name are required")

// Feed is the live feed connection as seen by the services
type Feed interface {
	Reconnect(ctx context.Context) error
	State() string
}

// Dispatcher executes actions
type Dispatcher struct {
	store      *usecase.Storage
	resolver   *usecase.ChannelResolver
	messages   *usecase.MessageStore
	classifier *usecase.ErrorClassifier
	propagator *usecase.Propagator
	countdown  *usecase.Countdown
	runtime    *usecase.Runtime
	feed       Feed
}

// NewDispatcher creates a new action dispatcher
func NewDispatcher(
	store *usecase.Storage,
	resolver *usecase.ChannelResolver,
	messages *usecase.MessageStore,
	classifier *usecase.ErrorClassifier,
	propagator *usecase.Propagator,
	countdown *usecase.Countdown,
	runtime *usecase.Runtime,
	feed Feed,
) *Dispatcher {
	return &Dispatcher{
		store:      store,
		resolver:   resolver,
		messages:   messages,
		classifier: classifier,
		propagator: propagator,
		countdown:  countdown,
		runtime:    runtime,
		feed:       feed,
	}
}

// Dispatch runs an action and returns its response body.
// Failures are reported in the response, never as a Go error.
func (d *Dispatcher) Dispatch(ctx context.Context, action Action) any {
	switch a := action.(type) {
	case FetchNewMessages:
		return d.result(d.fetchNewMessages(ctx))
	case Reconnect:
		return d.result(d.feed.Reconnect(ctx))
	case FeatureToggleChanged:
		return d.result(d.countdown.ToggleFeature(ctx, a.Enabled))
	case CountdownCompleted:
		return d.result(d.countdown.Complete(ctx))
	case GetCountdownStatus:
		st, err := d.countdown.Status(ctx)
		if err != nil {
			return failed(err)
		}
		return st
	case UpdateMergeButton:
		return d.result(d.propagate(ctx, d.runtime.BitbucketTabID()))
	case BitbucketTabLoaded:
		d.runtime.SetBitbucketTabID(a.TabID)
		return d.result(d.propagate(ctx, a.TabID))
	default:
		return failed(fmt.Errorf("unhandled action %T", action))
	}
}

func (d *Dispatcher) result(err error) Result {
	if err != nil {
		return failed(err)
	}
	return ok()
}

func (d *Dispatcher) fetchNewMessages(ctx context.Context) error {
	settings, err := d.store.Settings(ctx)
	if err != nil {
		return err
	}
	if settings.SlackToken == "" || settings.ChannelName == "" {
		return ErrNotConfigured
	}

	channelID, err := d.resolver.Resolve(ctx, settings.SlackToken, settings.ChannelName)
	if err != nil {
		d.classifier.ClassifyAPIError(ctx, err)
		return err
	}
	if err := d.messages.ReplaceAllMessages(ctx, channelID, ""); err != nil {
		d.classifier.ClassifyAPIError(ctx, err)
		return err
	}
	return nil
}

func (d *Dispatcher) propagate(ctx context.Context, tabID string) error {
	settings, err := d.store.Settings(ctx)
	if err != nil {
		return err
	}
	_, err = d.propagator.PropagateMergeState(ctx, settings.ChannelName, tabID)
	return err
}
