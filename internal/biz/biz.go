package biz

import (
	"github.com/devricklin/slack-merge-gate/internal/biz/repo"
	"github.com/devricklin/slack-merge-gate/internal/biz/usecase"
)

// Hosts are the outbound surfaces the usecases talk to
type Hosts struct {
	Icons   repo.IconSink
	Popup   repo.PopupNotifier
	Pages   repo.PageBroadcaster
	Scripts repo.ScriptRegistry
}

// Options tunes the usecases
type Options struct {
	MaxMessages int
	Countdown   usecase.CountdownConfig
}

// Usecases contains all usecases
type Usecases struct {
	Runtime    *usecase.Runtime
	Storage    *usecase.Storage
	Status     *usecase.StatusCoordinator
	Classifier *usecase.ErrorClassifier
	Resolver   *usecase.ChannelResolver
	Propagator *usecase.Propagator
	Messages   *usecase.MessageStore
	Countdown  *usecase.Countdown
}

// NewUsecases wires the usecases over the given repositories
func NewUsecases(kv repo.KVRepo, slack repo.SlackRepo, hosts Hosts, opts Options) *Usecases {
	runtime := usecase.NewRuntime()
	store := usecase.NewStorage(kv)
	status := usecase.NewStatusCoordinator(store, hosts.Icons, runtime)
	propagator := usecase.NewPropagator(store, hosts.Popup, hosts.Pages, hosts.Scripts)
	canvas := usecase.NewCanvasFetcher(slack)

	return &Usecases{
		Runtime:    runtime,
		Storage:    store,
		Status:     status,
		Classifier: usecase.NewErrorClassifier(store, status),
		Resolver:   usecase.NewChannelResolver(store, slack),
		Propagator: propagator,
		Messages:   usecase.NewMessageStore(store, slack, canvas, status, propagator, runtime, opts.MaxMessages),
		Countdown:  usecase.NewCountdown(store, propagator, hosts.Popup, runtime, opts.Countdown),
	}
}
