package server

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/goccy/go-json"
	"golang.org/x/sync/errgroup"

	"github.com/devricklin/slack-merge-gate/internal/biz"
	"github.com/devricklin/slack-merge-gate/internal/biz/domain"
	"github.com/devricklin/slack-merge-gate/internal/biz/repo"
	"github.com/devricklin/slack-merge-gate/internal/logging"
	"github.com/devricklin/slack-merge-gate/internal/service"
)

var feedLog = logging.ForComponent(logging.CompFeed)

var errSocketClosed = errors.New("feed socket closed")

// Feed states
const (
	FeedStateDisconnected = "disconnected"
	FeedStateConnecting   = "connecting"
	FeedStateOpen         = "open"
	FeedStateReconnecting = "reconnecting"
	FeedStateStopped      = "stopped"
)

// FeedConfig holds feed timing
type FeedConfig struct {
	ReconnectDelay     time.Duration
	FastReconnectDelay time.Duration
	HealthInterval     time.Duration
	MaxConnectionAge   time.Duration
}

func (c *FeedConfig) withDefaults() FeedConfig {
	out := *c
	if out.ReconnectDelay <= 0 {
		out.ReconnectDelay = 5 * time.Second
	}
	if out.FastReconnectDelay <= 0 {
		out.FastReconnectDelay = time.Second
	}
	if out.HealthInterval <= 0 {
		out.HealthInterval = time.Minute
	}
	if out.MaxConnectionAge <= 0 {
		out.MaxConnectionAge = 30 * time.Minute
	}
	return out
}

// feedSocket serializes writes to one connection and tracks whether it is open
type feedSocket struct {
	conn     repo.FeedConn
	openedAt time.Time

	mu   sync.Mutex
	open bool
}

func (s *feedSocket) write(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.open {
		return errSocketClosed
	}
	return s.conn.WriteMessage(data)
}

func (s *feedSocket) isOpen() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.open
}

func (s *feedSocket) close() {
	s.mu.Lock()
	wasOpen := s.open
	s.open = false
	s.mu.Unlock()
	if wasOpen {
		if err := s.conn.Close(); err != nil {
			feedLog.Debug("socket_close_failed", "error", err)
		}
	}
}

// FeedManager owns the live Socket Mode connection: connect, receive
// events, health checks and reconnects.
//
// Only one socket is tracked. Connect is single-flight, a single reconnect
// timer is pending at a time (the earliest wins), and a socket replaced by a
// newer one never triggers reconnects from its close handler.
type FeedManager struct {
	uc     *biz.Usecases
	slack  repo.SlackRepo
	dialer repo.FeedDialer
	config FeedConfig
	now    func() time.Time

	mu             sync.Mutex
	socket         *feedSocket
	connecting     bool
	channelID      string
	reconnectTimer *time.Timer
	reconnectAt    time.Time
	started        bool
	stopped        bool

	pingID      atomic.Int64
	healthReset chan struct{}

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

var _ service.Feed = (*FeedManager)(nil)

// NewFeedManager creates a new feed manager
func NewFeedManager(uc *biz.Usecases, slack repo.SlackRepo, dialer repo.FeedDialer, config FeedConfig) *FeedManager {
	ctx, cancel := context.WithCancel(context.Background())
	return &FeedManager{
		uc:          uc,
		slack:       slack,
		dialer:      dialer,
		config:      config.withDefaults(),
		now:         time.Now,
		healthReset: make(chan struct{}, 1),
		ctx:         ctx,
		cancel:      cancel,
	}
}

// Start begins health checks and the first connection attempt
func (m *FeedManager) Start() {
	m.mu.Lock()
	if m.started || m.stopped {
		m.mu.Unlock()
		return
	}
	m.started = true
	m.mu.Unlock()

	m.wg.Add(2)
	go m.healthLoop()
	go func() {
		defer m.wg.Done()
		if err := m.Connect(m.ctx); err != nil {
			feedLog.Warn("initial_connect_failed", "error", err)
		}
	}()

	feedLog.Info("feed_started",
		"health_interval", m.config.HealthInterval.String(),
		"reconnect_delay", m.config.ReconnectDelay.String())
}

// Stop closes the socket and waits for background work
func (m *FeedManager) Stop() {
	m.mu.Lock()
	if m.stopped {
		m.mu.Unlock()
		return
	}
	m.stopped = true
	sock := m.socket
	m.socket = nil
	if m.reconnectTimer != nil {
		m.reconnectTimer.Stop()
		m.reconnectTimer = nil
	}
	m.mu.Unlock()

	m.cancel()
	if sock != nil {
		sock.close()
	}
	m.wg.Wait()
	feedLog.Info("feed_stopped")
}

// State reports the connection state
func (m *FeedManager) State() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch {
	case m.stopped:
		return FeedStateStopped
	case m.connecting:
		return FeedStateConnecting
	case m.socket != nil && m.socket.isOpen():
		return FeedStateOpen
	case m.reconnectTimer != nil:
		return FeedStateReconnecting
	default:
		return FeedStateDisconnected
	}
}

// Reconnect drops the current socket without scheduling a retry and connects again
func (m *FeedManager) Reconnect(ctx context.Context) error {
	m.mu.Lock()
	sock := m.socket
	m.socket = nil
	m.mu.Unlock()
	if sock != nil {
		sock.close()
	}
	return m.Connect(ctx)
}

// Connect runs the Connecting phase. A call made while another attempt is in
// flight returns immediately. Failures are classified into the app status;
// no retry is scheduled from here.
func (m *FeedManager) Connect(ctx context.Context) error {
	m.mu.Lock()
	if m.stopped || m.connecting {
		m.mu.Unlock()
		return nil
	}
	m.connecting = true
	m.mu.Unlock()
	defer func() {
		m.mu.Lock()
		m.connecting = false
		m.mu.Unlock()
	}()

	settings, err := m.uc.Storage.Settings(ctx)
	if err != nil {
		return err
	}
	if !settings.HasFeedConfig() {
		feedLog.Warn("config_missing")
		if _, err := m.uc.Status.SetAppStatus(ctx, domain.AppStatusConfigError); err != nil {
			feedLog.Error("set_app_status_failed", "error", err)
		}
		if err := m.uc.Messages.ClearMessages(ctx); err != nil {
			feedLog.Error("clear_messages_failed", "error", err)
		}
		return service.ErrNotConfigured
	}

	feedLog.Info("connecting", "channel", settings.ChannelName)
	m.uc.Status.SetIconForStatus(domain.MergeStatusLoading)

	channelID, err := m.prepare(ctx, settings)
	if err != nil {
		m.fail(ctx, settings, err)
		return err
	}

	url, err := m.slack.OpenConnection(ctx, settings.AppToken)
	if err != nil {
		m.fail(ctx, settings, err)
		return err
	}
	conn, err := m.dialer.Dial(ctx, url)
	if err != nil {
		m.fail(ctx, settings, err)
		return err
	}

	m.open(ctx, conn, channelID)
	return nil
}

// prepare resolves the channel and loads messages alongside the team id lookup.
// Only a resolution failure aborts the attempt.
func (m *FeedManager) prepare(ctx context.Context, settings domain.Settings) (string, error) {
	var (
		channelID string
		g         errgroup.Group
	)
	g.Go(func() error {
		id, err := m.uc.Resolver.Resolve(ctx, settings.SlackToken, settings.ChannelName)
		if err != nil {
			return err
		}
		channelID = id
		if err := m.uc.Messages.ReplaceAllMessages(ctx, id, ""); err != nil {
			feedLog.Warn("initial_fetch_failed", "channel_id", id, "error", err)
			m.uc.Classifier.ClassifyAPIError(ctx, err)
		}
		return nil
	})
	g.Go(func() error {
		teamID, err := m.slack.TeamID(ctx, settings.SlackToken)
		if err != nil {
			feedLog.Warn("team_id_failed", "error", err)
			return nil
		}
		if err := m.uc.Storage.SetTeamID(ctx, teamID); err != nil {
			feedLog.Warn("team_id_store_failed", "error", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return "", err
	}
	return channelID, nil
}

func (m *FeedManager) fail(ctx context.Context, settings domain.Settings, err error) {
	status := m.uc.Classifier.ClassifyAPIError(ctx, err)
	feedLog.Error("connect_failed", "error", err, "app_status", string(status))
	// the attempt showed loading and may have re-derived the icon from
	// messages; a repeated status is deduplicated, so restore its icon here
	if iconErr := m.uc.Status.ApplyIcon(ctx, status); iconErr != nil {
		feedLog.Warn("icon_restore_failed", "error", iconErr)
	}
	if tabID := m.uc.Runtime.BitbucketTabID(); tabID != "" {
		if _, err := m.uc.Propagator.PropagateMergeState(ctx, settings.ChannelName, tabID); err != nil {
			feedLog.Error("propagate_failed", "error", err)
		}
	}
}

func (m *FeedManager) open(ctx context.Context, conn repo.FeedConn, channelID string) {
	sock := &feedSocket{conn: conn, openedAt: m.now(), open: true}

	m.mu.Lock()
	if m.stopped {
		m.mu.Unlock()
		sock.close()
		return
	}
	old := m.socket
	m.socket = sock
	m.channelID = channelID
	if m.reconnectTimer != nil {
		m.reconnectTimer.Stop()
		m.reconnectTimer = nil
	}
	m.wg.Add(1)
	m.mu.Unlock()

	if old != nil {
		old.close()
	}
	go m.readLoop(sock)

	feedLog.Info("feed_open", "channel_id", channelID)
	if _, err := m.uc.Status.SetAppStatus(ctx, domain.AppStatusOK); err != nil {
		feedLog.Error("set_app_status_failed", "error", err)
	}
	if err := m.uc.Storage.SetLastConnectTime(ctx, sock.openedAt); err != nil {
		feedLog.Warn("last_connect_store_failed", "error", err)
	}
	m.resetHealth()
}

func (m *FeedManager) readLoop(sock *feedSocket) {
	defer m.wg.Done()
	for {
		data, err := sock.conn.ReadMessage()
		if err != nil {
			m.onClose(sock, err)
			return
		}
		m.handleFrame(sock, data)
	}
}

func (m *FeedManager) onClose(sock *feedSocket, cause error) {
	sock.close()

	m.mu.Lock()
	current := m.socket == sock
	if current {
		m.socket = nil
	}
	stopped := m.stopped
	m.mu.Unlock()
	if !current || stopped {
		return
	}

	feedLog.Warn("feed_closed", "error", cause)
	if _, err := m.uc.Status.SetAppStatus(m.ctx, domain.AppStatusWebSocketError); err != nil {
		feedLog.Error("set_app_status_failed", "error", err)
	}
	m.scheduleReconnect(m.config.ReconnectDelay)
}

func (m *FeedManager) handleFrame(sock *feedSocket, data []byte) {
	var env socketEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		feedLog.Debug("frame_decode_failed", "error", err)
		return
	}
	if env.EnvelopeID != "" {
		if err := sock.write(ackFrame{EnvelopeID: env.EnvelopeID}); err != nil {
			feedLog.Warn("ack_failed", "envelope_id", env.EnvelopeID, "error", err)
		}
	}

	switch env.Type {
	case "hello":
		feedLog.Debug("feed_hello")
	case "disconnect":
		feedLog.Info("disconnect_requested", "reason", env.Reason)
		sock.close()
	case "events_api":
		var payload eventsAPIPayload
		if err := json.Unmarshal(env.Payload, &payload); err != nil || len(payload.Event) == 0 {
			return
		}
		var ev feedEvent
		if err := json.Unmarshal(payload.Event, &ev); err != nil {
			feedLog.Debug("event_decode_failed", "error", err)
			return
		}
		m.handleEvent(&ev)
	}
}

func (m *FeedManager) handleEvent(ev *feedEvent) {
	ctx := m.ctx
	settings, err := m.uc.Storage.Settings(ctx)
	if err != nil {
		feedLog.Error("read_settings_failed", "error", err)
		return
	}

	switch ev.Type {
	case "message":
		if ev.TS == "" || ev.Text == "" {
			return
		}
		m.mu.Lock()
		channelID := m.channelID
		m.mu.Unlock()
		if channelID != "" && ev.Channel != "" && ev.Channel != channelID {
			return
		}
		if _, err := m.uc.Messages.RecordIncomingMessage(ctx, domain.IncomingMessage{
			Text: ev.Text,
			TS:   ev.TS,
			User: ev.User,
		}); err != nil {
			feedLog.Error("record_message_failed", "ts", ev.TS, "error", err)
			return
		}
		if _, err := m.uc.Propagator.PropagateMergeState(ctx, settings.ChannelName, m.uc.Runtime.BitbucketTabID()); err != nil {
			feedLog.Error("propagate_failed", "error", err)
		}
	case "file_change":
		fileID := ev.fileID()
		channelID, err := m.uc.Resolver.Resolve(ctx, settings.SlackToken, settings.ChannelName)
		if err != nil {
			m.uc.Classifier.ClassifyAPIError(ctx, err)
			return
		}
		feedLog.Info("canvas_changed", "file_id", fileID)
		if err := m.uc.Messages.ReplaceAllMessages(ctx, channelID, fileID); err != nil {
			m.uc.Classifier.ClassifyAPIError(ctx, err)
		}
	}
}

// scheduleReconnect arms the reconnect timer unless an earlier one is pending
func (m *FeedManager) scheduleReconnect(delay time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stopped {
		return
	}
	at := m.now().Add(delay)
	if m.reconnectTimer != nil {
		if !m.reconnectAt.After(at) {
			return
		}
		m.reconnectTimer.Stop()
	}
	m.reconnectAt = at

	var timer *time.Timer
	timer = time.AfterFunc(delay, func() {
		m.mu.Lock()
		if m.reconnectTimer == timer {
			m.reconnectTimer = nil
		}
		m.mu.Unlock()
		if err := m.Connect(m.ctx); err != nil {
			feedLog.Warn("reconnect_failed", "error", err)
		}
	})
	m.reconnectTimer = timer
	feedLog.Info("reconnect_scheduled", "delay", delay.String())
}

func (m *FeedManager) resetHealth() {
	select {
	case m.healthReset <- struct{}{}:
	default:
	}
}

func (m *FeedManager) healthLoop() {
	defer m.wg.Done()

	ticker := time.NewTicker(m.config.HealthInterval)
	defer ticker.Stop()

	for {
		select {
		case <-m.ctx.Done():
			return
		case <-m.healthReset:
			ticker.Reset(m.config.HealthInterval)
		case <-ticker.C:
			m.HealthCheck(m.ctx)
		}
	}
}

// HealthCheck reconnects a missing socket, recycles an old one and pings a live one
func (m *FeedManager) HealthCheck(ctx context.Context) {
	m.mu.Lock()
	sock := m.socket
	stopped := m.stopped
	m.mu.Unlock()
	if stopped {
		return
	}

	if sock == nil || !sock.isOpen() {
		feedLog.Info("health_no_socket")
		if err := m.Connect(ctx); err != nil {
			feedLog.Warn("health_connect_failed", "error", err)
		}
		return
	}
	if age := m.now().Sub(sock.openedAt); age > m.config.MaxConnectionAge {
		feedLog.Info("health_connection_too_old", "age", age.String())
		m.forceReconnect(sock)
		return
	}
	if err := sock.write(pingFrame{Type: "ping", ID: m.pingID.Add(1)}); err != nil {
		feedLog.Warn("health_ping_failed", "error", err)
		m.forceReconnect(sock)
	}
}

func (m *FeedManager) forceReconnect(sock *feedSocket) {
	sock.close()
	m.scheduleReconnect(m.config.FastReconnectDelay)
}
