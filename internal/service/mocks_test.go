package service

import (
	"context"
	"errors"
	"sync"

	"github.com/devricklin/slack-merge-gate/internal/biz"
	"github.com/devricklin/slack-merge-gate/internal/biz/domain"
	"github.com/devricklin/slack-merge-gate/internal/biz/repo"
	"github.com/devricklin/slack-merge-gate/internal/data"
)

// Mock implementations

type mockSlack struct {
	mu         sync.Mutex
	channels   []repo.Channel
	listErr    error
	history    []domain.IncomingMessage
	historyErr error
}

func (m *mockSlack) ListChannels(ctx context.Context, token string) ([]repo.Channel, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.channels, m.listErr
}

func (m *mockSlack) TeamID(ctx context.Context, token string) (string, error) {
	return "T1", nil
}

func (m *mockSlack) ChannelInfo(ctx context.Context, token, channelID string) (*repo.ChannelInfo, error) {
	return &repo.ChannelInfo{ID: channelID}, nil
}

func (m *mockSlack) History(ctx context.Context, token, channelID string, limit int) ([]domain.IncomingMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.history, m.historyErr
}

func (m *mockSlack) OpenConnection(ctx context.Context, appToken string) (string, error) {
	return "wss://example.invalid", nil
}

func (m *mockSlack) CanvasContent(ctx context.Context, token, fileID string) (*repo.CanvasFile, error) {
	return nil, errors.New("file_not_found")
}

// mockHosts stands in for every outbound surface
type mockHosts struct {
	mu      sync.Mutex
	icon    domain.MergeStatus
	popup   []domain.PopupEvent
	tabs    []repo.Tab
	sent    map[string][]domain.PagePayload
	scripts map[string]repo.ContentScript
}

func newMockHosts(tabs ...repo.Tab) *mockHosts {
	return &mockHosts{
		tabs:    tabs,
		sent:    map[string][]domain.PagePayload{},
		scripts: map[string]repo.ContentScript{},
	}
}

func (m *mockHosts) SetIcon(status domain.MergeStatus, icons domain.IconSet) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.icon = status
}

func (m *mockHosts) CurrentIcon() (domain.MergeStatus, domain.IconSet) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.icon, domain.IconFor(m.icon)
}

func (m *mockHosts) NotifyPopup(ctx context.Context, event domain.PopupEvent) repo.Delivery {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.popup = append(m.popup, event)
	return repo.Delivery{Target: "popup"}
}

func (m *mockHosts) Tabs() []repo.Tab {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]repo.Tab(nil), m.tabs...)
}

func (m *mockHosts) SendToTab(ctx context.Context, tabID string, payload domain.PagePayload) repo.Delivery {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent[tabID] = append(m.sent[tabID], payload)
	return repo.Delivery{Target: tabID}
}

func (m *mockHosts) RegisteredScripts(ctx context.Context, ids ...string) ([]repo.ContentScript, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []repo.ContentScript
	for _, id := range ids {
		if s, ok := m.scripts[id]; ok {
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *mockHosts) UnregisterScripts(ctx context.Context, ids ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range ids {
		delete(m.scripts, id)
	}
	return nil
}

func (m *mockHosts) RegisterScripts(ctx context.Context, scripts ...repo.ContentScript) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range scripts {
		m.scripts[s.ID] = s
	}
	return nil
}

func (m *mockHosts) sentTo(tabID string) []domain.PagePayload {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.PagePayload(nil), m.sent[tabID]...)
}

func (m *mockHosts) script(id string) (repo.ContentScript, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.scripts[id]
	return s, ok
}

type mockFeed struct {
	mu         sync.Mutex
	reconnects int
	err        error
}

func (m *mockFeed) Reconnect(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reconnects++
	return m.err
}

func (m *mockFeed) State() string { return "open" }

func (m *mockFeed) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.reconnects
}

type fixture struct {
	uc    *biz.Usecases
	slack *mockSlack
	hosts *mockHosts
	feed  *mockFeed
}

func newFixture(tabs ...repo.Tab) *fixture {
	f := &fixture{
		slack: &mockSlack{},
		hosts: newMockHosts(tabs...),
		feed:  &mockFeed{},
	}
	hosts := biz.Hosts{Icons: f.hosts, Popup: f.hosts, Pages: f.hosts, Scripts: f.hosts}
	f.uc = biz.NewUsecases(data.NewMemoryKV(), f.slack, hosts, biz.Options{})
	return f
}

func (f *fixture) dispatcher() *Dispatcher {
	uc := f.uc
	return NewDispatcher(uc.Storage, uc.Resolver, uc.Messages, uc.Classifier, uc.Propagator, uc.Countdown, uc.Runtime, f.feed)
}
