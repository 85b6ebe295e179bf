package usecase

import (
	"context"
	"errors"
	"sync"

	"github.com/devricklin/slack-merge-gate/internal/biz/domain"
	"github.com/devricklin/slack-merge-gate/internal/biz/repo"
)

// Mock implementations

type mockKV struct {
	mu     sync.Mutex
	values map[repo.Area]map[string][]byte
	sets   int
}

func newMockKV() *mockKV {
	return &mockKV{values: map[repo.Area]map[string][]byte{}}
}

func (m *mockKV) Get(ctx context.Context, area repo.Area, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.values[area][key]
	return v, ok, nil
}

func (m *mockKV) Set(ctx context.Context, area repo.Area, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.values[area] == nil {
		m.values[area] = map[string][]byte{}
	}
	m.values[area][key] = append([]byte(nil), value...)
	m.sets++
	return nil
}

func (m *mockKV) Remove(ctx context.Context, area repo.Area, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.values[area], k)
	}
	return nil
}

func (m *mockKV) All(ctx context.Context, area repo.Area) (map[string][]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := map[string][]byte{}
	for k, v := range m.values[area] {
		out[k] = v
	}
	return out, nil
}

func (m *mockKV) Close() error { return nil }

func (m *mockKV) has(area repo.Area, key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.values[area][key]
	return ok
}

func (m *mockKV) setCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sets
}

type mockSlack struct {
	mu sync.Mutex

	channels   []repo.Channel
	listErr    error
	listCalls  int
	history    []domain.IncomingMessage
	historyErr error
	info       *repo.ChannelInfo
	infoErr    error
	canvases   map[string]*repo.CanvasFile
	teamID     string
	feedURL    string
	openErr    error
}

func (m *mockSlack) ListChannels(ctx context.Context, token string) ([]repo.Channel, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listCalls++
	return m.channels, m.listErr
}

func (m *mockSlack) TeamID(ctx context.Context, token string) (string, error) {
	return m.teamID, nil
}

func (m *mockSlack) ChannelInfo(ctx context.Context, token, channelID string) (*repo.ChannelInfo, error) {
	return m.info, m.infoErr
}

func (m *mockSlack) History(ctx context.Context, token, channelID string, limit int) ([]domain.IncomingMessage, error) {
	return m.history, m.historyErr
}

func (m *mockSlack) OpenConnection(ctx context.Context, appToken string) (string, error) {
	return m.feedURL, m.openErr
}

func (m *mockSlack) CanvasContent(ctx context.Context, token, fileID string) (*repo.CanvasFile, error) {
	if f, ok := m.canvases[fileID]; ok {
		return f, nil
	}
	return nil, errors.New("file_not_found")
}

type mockIcons struct {
	mu       sync.Mutex
	statuses []domain.MergeStatus
}

func (m *mockIcons) SetIcon(status domain.MergeStatus, icons domain.IconSet) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.statuses = append(m.statuses, status)
}

func (m *mockIcons) last() domain.MergeStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.statuses) == 0 {
		return ""
	}
	return m.statuses[len(m.statuses)-1]
}

func (m *mockIcons) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.statuses)
}

type mockPopup struct {
	mu     sync.Mutex
	events []domain.PopupEvent
	err    error
}

func (m *mockPopup) NotifyPopup(ctx context.Context, event domain.PopupEvent) repo.Delivery {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, event)
	return repo.Delivery{Target: "popup", Err: m.err}
}

func (m *mockPopup) actions() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for _, e := range m.events {
		out = append(out, e.Action)
	}
	return out
}

type mockPages struct {
	mu    sync.Mutex
	tabs  []repo.Tab
	sent  map[string][]domain.PagePayload
	fails map[string]error
}

func newMockPages(tabs ...repo.Tab) *mockPages {
	return &mockPages{tabs: tabs, sent: map[string][]domain.PagePayload{}, fails: map[string]error{}}
}

func (m *mockPages) Tabs() []repo.Tab {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]repo.Tab(nil), m.tabs...)
}

func (m *mockPages) SendToTab(ctx context.Context, tabID string, payload domain.PagePayload) repo.Delivery {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fails[tabID]; err != nil {
		return repo.Delivery{Target: tabID, Err: err}
	}
	m.sent[tabID] = append(m.sent[tabID], payload)
	return repo.Delivery{Target: tabID}
}

func (m *mockPages) sentTo(tabID string) []domain.PagePayload {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sent[tabID]
}

type mockScripts struct {
	registered map[string]repo.ContentScript
	unregs     int
}

func newMockScripts() *mockScripts {
	return &mockScripts{registered: map[string]repo.ContentScript{}}
}

func (m *mockScripts) RegisteredScripts(ctx context.Context, ids ...string) ([]repo.ContentScript, error) {
	var out []repo.ContentScript
	for _, id := range ids {
		if s, ok := m.registered[id]; ok {
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *mockScripts) UnregisterScripts(ctx context.Context, ids ...string) error {
	for _, id := range ids {
		delete(m.registered, id)
	}
	m.unregs++
	return nil
}

func (m *mockScripts) RegisterScripts(ctx context.Context, scripts ...repo.ContentScript) error {
	for _, s := range scripts {
		if _, dup := m.registered[s.ID]; dup {
			return errors.New("duplicate script id " + s.ID)
		}
		m.registered[s.ID] = s
	}
	return nil
}

// fixture wires every usecase against the mocks
type fixture struct {
	kv      *mockKV
	slack   *mockSlack
	icons   *mockIcons
	popup   *mockPopup
	pages   *mockPages
	scripts *mockScripts

	runtime    *Runtime
	store      *Storage
	status     *StatusCoordinator
	classifier *ErrorClassifier
	propagator *Propagator
	messages   *MessageStore
	resolver   *ChannelResolver
}

func newFixture() *fixture {
	f := &fixture{
		kv:      newMockKV(),
		slack:   &mockSlack{canvases: map[string]*repo.CanvasFile{}},
		icons:   &mockIcons{},
		popup:   &mockPopup{},
		pages:   newMockPages(),
		scripts: newMockScripts(),
		runtime: NewRuntime(),
	}
	f.store = NewStorage(f.kv)
	f.status = NewStatusCoordinator(f.store, f.icons, f.runtime)
	f.classifier = NewErrorClassifier(f.store, f.status)
	f.propagator = NewPropagator(f.store, f.popup, f.pages, f.scripts)
	f.resolver = NewChannelResolver(f.store, f.slack)
	f.messages = NewMessageStore(f.store, f.slack, NewCanvasFetcher(f.slack), f.status, f.propagator, f.runtime, domain.DefaultMaxMessages)
	return f
}
