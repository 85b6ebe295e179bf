package server

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/devricklin/slack-merge-gate/internal/biz"
	"github.com/devricklin/slack-merge-gate/internal/biz/domain"
	"github.com/devricklin/slack-merge-gate/internal/biz/repo"
	"github.com/devricklin/slack-merge-gate/internal/data"
)

// Mock implementations

type fakeConn struct {
	in        chan []byte
	closed    chan struct{}
	closeOnce sync.Once

	mu       sync.Mutex
	writes   []string
	writeErr error
}

func newFakeConn() *fakeConn {
	return &fakeConn{in: make(chan []byte, 16), closed: make(chan struct{})}
}

func (c *fakeConn) ReadMessage() ([]byte, error) {
	select {
	case <-c.closed:
		return nil, errors.New("use of closed connection")
	default:
	}
	select {
	case d := <-c.in:
		return d, nil
	case <-c.closed:
		return nil, errors.New("use of closed connection")
	}
}

func (c *fakeConn) WriteMessage(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.writeErr != nil {
		return c.writeErr
	}
	c.writes = append(c.writes, string(data))
	return nil
}

func (c *fakeConn) Close() error {
	c.closeOnce.Do(func() { close(c.closed) })
	return nil
}

func (c *fakeConn) push(frame string) {
	c.in <- []byte(frame)
}

func (c *fakeConn) written() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.writes...)
}

func (c *fakeConn) isClosed() bool {
	select {
	case <-c.closed:
		return true
	default:
		return false
	}
}

type fakeDialer struct {
	mu    sync.Mutex
	conns []*fakeConn
	urls  []string

	// gate, when set, blocks Dial until it is closed; entered signals the wait
	gate    chan struct{}
	entered chan struct{}
}

func (d *fakeDialer) Dial(ctx context.Context, url string) (repo.FeedConn, error) {
	if d.gate != nil {
		if d.entered != nil {
			d.entered <- struct{}{}
		}
		<-d.gate
	}
	c := newFakeConn()
	d.mu.Lock()
	defer d.mu.Unlock()
	d.conns = append(d.conns, c)
	d.urls = append(d.urls, url)
	return c, nil
}

func (d *fakeDialer) dials() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.conns)
}

func (d *fakeDialer) conn(i int) *fakeConn {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.conns[i]
}

type fakeSlack struct {
	mu       sync.Mutex
	channels []repo.Channel
	history  []domain.IncomingMessage
	info     *repo.ChannelInfo
	canvases map[string]*repo.CanvasFile
	openErr  error
}

func newFakeSlack() *fakeSlack {
	return &fakeSlack{
		channels: []repo.Channel{{ID: "C1", Name: "deploys"}},
		info:     &repo.ChannelInfo{ID: "C1", Name: "deploys"},
		canvases: map[string]*repo.CanvasFile{},
	}
}

func (s *fakeSlack) ListChannels(ctx context.Context, token string) ([]repo.Channel, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.channels, nil
}

func (s *fakeSlack) TeamID(ctx context.Context, token string) (string, error) {
	return "T1", nil
}

func (s *fakeSlack) ChannelInfo(ctx context.Context, token, channelID string) (*repo.ChannelInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.info, nil
}

func (s *fakeSlack) History(ctx context.Context, token, channelID string, limit int) ([]domain.IncomingMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.history, nil
}

func (s *fakeSlack) OpenConnection(ctx context.Context, appToken string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.openErr != nil {
		return "", s.openErr
	}
	return "wss://feed.example.invalid/link", nil
}

func (s *fakeSlack) CanvasContent(ctx context.Context, token, fileID string) (*repo.CanvasFile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if f, ok := s.canvases[fileID]; ok {
		return f, nil
	}
	return nil, errors.New("file_not_found")
}

type feedFixture struct {
	uc     *biz.Usecases
	hub    *Hub
	slack  *fakeSlack
	dialer *fakeDialer
}

func newFeedFixture(t *testing.T, configured bool) *feedFixture {
	t.Helper()
	f := &feedFixture{hub: NewHub(), slack: newFakeSlack(), dialer: &fakeDialer{}}
	hosts := biz.Hosts{Icons: f.hub, Popup: f.hub, Pages: f.hub, Scripts: f.hub}
	f.uc = biz.NewUsecases(data.NewMemoryKV(), f.slack, hosts, biz.Options{})
	if configured {
		err := f.uc.Storage.SaveSettings(context.Background(), domain.Settings{
			SlackToken:   "xoxb-1",
			AppToken:     "xapp-1",
			ChannelName:  "deploys",
			BitbucketURL: "https://bitbucket.example.com/*",
		})
		require.NoError(t, err)
	}
	return f
}

func (f *feedFixture) manager(t *testing.T, config FeedConfig) *FeedManager {
	t.Helper()
	m := NewFeedManager(f.uc, f.slack, f.dialer, config)
	t.Cleanup(m.Stop)
	return m
}
