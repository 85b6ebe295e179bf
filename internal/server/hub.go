package server

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/devricklin/slack-merge-gate/internal/biz/domain"
	"github.com/devricklin/slack-merge-gate/internal/biz/repo"
	"github.com/devricklin/slack-merge-gate/internal/logging"
)

var bridgeLog = logging.ForComponent(logging.CompBridge)

var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     allowWSOrigin,
}

// allowWSOrigin accepts same-host origins, extension origins and clients without one
func allowWSOrigin(r *http.Request) bool {
	origin := strings.TrimSpace(r.Header.Get("Origin"))
	if origin == "" {
		return true
	}

	originURL, err := url.Parse(origin)
	if err != nil || originURL.Host == "" {
		return false
	}
	if strings.HasSuffix(originURL.Scheme, "-extension") {
		return true
	}
	return strings.EqualFold(originURL.Host, r.Host)
}

// ActionHandler answers an action frame. tabID is empty for popups.
type ActionHandler func(ctx context.Context, raw []byte, tabID string) any

type wsClient struct {
	id   string
	url  string
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *wsClient) writeJSON(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

// hubFrame is a control frame sent by the hub itself
type hubFrame struct {
	Type     string `json:"type"`
	TabID    string `json:"tabId,omitempty"`
	Response any    `json:"response,omitempty"`
}

// Hub holds the popup and page connections, the content script registry
// and the current icon
type Hub struct {
	mu         sync.RWMutex
	popups     map[string]*wsClient
	pages      map[string]*wsClient
	scripts    map[string]repo.ContentScript
	iconStatus domain.MergeStatus
	icon       domain.IconSet

	handler     ActionHandler
	onPageClose func(tabID string)
}

var (
	_ repo.IconSink        = (*Hub)(nil)
	_ repo.PopupNotifier   = (*Hub)(nil)
	_ repo.PageBroadcaster = (*Hub)(nil)
	_ repo.ScriptRegistry  = (*Hub)(nil)
)

// NewHub creates an empty hub showing the loading icon
func NewHub() *Hub {
	return &Hub{
		popups:     make(map[string]*wsClient),
		pages:      make(map[string]*wsClient),
		scripts:    make(map[string]repo.ContentScript),
		iconStatus: domain.MergeStatusLoading,
		icon:       domain.IconFor(domain.MergeStatusLoading),
	}
}

// SetActionHandler sets the handler for action frames
func (h *Hub) SetActionHandler(fn ActionHandler) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.handler = fn
}

// SetPageCloseHandler sets the callback run after a page disconnects
func (h *Hub) SetPageCloseHandler(fn func(tabID string)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.onPageClose = fn
}

// SetIcon records the icon and pushes it to open popups
func (h *Hub) SetIcon(status domain.MergeStatus, icons domain.IconSet) {
	h.mu.Lock()
	h.iconStatus = status
	h.icon = icons
	popups := h.popupList()
	h.mu.Unlock()

	event := domain.PopupEvent{Action: domain.PopupIconChanged, Icon: &icons}
	for _, c := range popups {
		if err := c.writeJSON(event); err != nil {
			bridgeLog.Debug("icon_push_failed", "client", c.id, "error", err)
		}
	}
}

// CurrentIcon returns the icon last set
func (h *Hub) CurrentIcon() (domain.MergeStatus, domain.IconSet) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.iconStatus, h.icon
}

// NotifyPopup sends an event to every open popup
func (h *Hub) NotifyPopup(ctx context.Context, event domain.PopupEvent) repo.Delivery {
	h.mu.RLock()
	popups := h.popupList()
	h.mu.RUnlock()

	d := repo.Delivery{Target: "popup"}
	if len(popups) == 0 {
		d.Err = repo.ErrNoReceiver
		return d
	}
	for _, c := range popups {
		if err := c.writeJSON(event); err != nil && d.Err == nil {
			d.Err = err
		}
	}
	return d
}

// Tabs lists connected pages
func (h *Hub) Tabs() []repo.Tab {
	h.mu.RLock()
	defer h.mu.RUnlock()
	tabs := make([]repo.Tab, 0, len(h.pages))
	for _, c := range h.pages {
		tabs = append(tabs, repo.Tab{ID: c.id, URL: c.url})
	}
	sort.Slice(tabs, func(i, j int) bool { return tabs[i].ID < tabs[j].ID })
	return tabs
}

// SendToTab delivers a payload to one page
func (h *Hub) SendToTab(ctx context.Context, tabID string, payload domain.PagePayload) repo.Delivery {
	h.mu.RLock()
	c, ok := h.pages[tabID]
	h.mu.RUnlock()

	d := repo.Delivery{Target: tabID}
	if !ok {
		d.Err = fmt.Errorf("no tab with id: %s", tabID)
		return d
	}
	d.Err = c.writeJSON(payload)
	return d
}

// RegisteredScripts returns the registered scripts among ids, or all of them
func (h *Hub) RegisteredScripts(ctx context.Context, ids ...string) ([]repo.ContentScript, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	var out []repo.ContentScript
	if len(ids) == 0 {
		for _, s := range h.scripts {
			out = append(out, s)
		}
		sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
		return out, nil
	}
	for _, id := range ids {
		if s, ok := h.scripts[id]; ok {
			out = append(out, s)
		}
	}
	return out, nil
}

// UnregisterScripts removes scripts by id. Unknown ids are an error.
func (h *Hub) UnregisterScripts(ctx context.Context, ids ...string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, id := range ids {
		if _, ok := h.scripts[id]; !ok {
			return fmt.Errorf("nonexistent script id %q", id)
		}
	}
	for _, id := range ids {
		delete(h.scripts, id)
	}
	return nil
}

// RegisterScripts adds scripts. Duplicate ids and bad patterns are rejected.
func (h *Hub) RegisterScripts(ctx context.Context, scripts ...repo.ContentScript) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, s := range scripts {
		if _, ok := h.scripts[s.ID]; ok {
			return fmt.Errorf("duplicate script id %q", s.ID)
		}
		for _, m := range s.Matches {
			if _, err := domain.CompileURLPattern(m); err != nil {
				return fmt.Errorf("invalid match pattern %q: %w", m, err)
			}
		}
	}
	for _, s := range scripts {
		h.scripts[s.ID] = s
	}
	return nil
}

// Covers reports whether a registered script matches pageURL
func (h *Hub) Covers(pageURL string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, s := range h.scripts {
		for _, m := range s.Matches {
			if domain.MatchURLPattern(m, pageURL) {
				return true
			}
		}
	}
	return false
}

// Close drops every client connection
func (h *Hub) Close() {
	h.mu.Lock()
	var all []*wsClient
	for _, c := range h.popups {
		all = append(all, c)
	}
	for _, c := range h.pages {
		all = append(all, c)
	}
	h.mu.Unlock()
	for _, c := range all {
		c.conn.Close()
	}
}

// popupList must be called with h.mu held
func (h *Hub) popupList() []*wsClient {
	out := make([]*wsClient, 0, len(h.popups))
	for _, c := range h.popups {
		out = append(out, c)
	}
	return out
}

// ServePopup upgrades a popup connection
func (h *Hub) ServePopup(w http.ResponseWriter, r *http.Request) {
	conn, err := wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	c := &wsClient{id: uuid.NewString(), conn: conn}

	h.mu.Lock()
	h.popups[c.id] = c
	icons := h.icon
	h.mu.Unlock()
	bridgeLog.Debug("popup_connected", "client", c.id)

	defer func() {
		h.mu.Lock()
		delete(h.popups, c.id)
		h.mu.Unlock()
		conn.Close()
		bridgeLog.Debug("popup_disconnected", "client", c.id)
	}()

	_ = c.writeJSON(domain.PopupEvent{Action: domain.PopupIconChanged, Icon: &icons})
	h.readLoop(r.Context(), c, "")
}

// ServePage upgrades a page control connection. The page URL must be covered
// by a registered content script. The tab announces itself on connect.
func (h *Hub) ServePage(w http.ResponseWriter, r *http.Request) {
	pageURL := r.URL.Query().Get("url")
	if pageURL == "" || !h.Covers(pageURL) {
		http.Error(w, "no content script registered for url", http.StatusForbidden)
		return
	}

	conn, err := wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	c := &wsClient{id: uuid.NewString(), url: pageURL, conn: conn}

	h.mu.Lock()
	h.pages[c.id] = c
	h.mu.Unlock()
	bridgeLog.Info("page_connected", "tab_id", c.id, "url", pageURL)

	defer func() {
		h.mu.Lock()
		delete(h.pages, c.id)
		onClose := h.onPageClose
		h.mu.Unlock()
		conn.Close()
		if onClose != nil {
			onClose(c.id)
		}
		bridgeLog.Info("page_disconnected", "tab_id", c.id)
	}()

	_ = c.writeJSON(hubFrame{Type: "registered", TabID: c.id})
	h.answer(r.Context(), c, []byte(`{"action":"bitbucketTabLoaded"}`), c.id)
	h.readLoop(r.Context(), c, c.id)
}

func (h *Hub) readLoop(ctx context.Context, c *wsClient, tabID string) {
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				bridgeLog.Debug("client_read_failed", "client", c.id, "error", err)
			}
			return
		}
		h.answer(ctx, c, data, tabID)
	}
}

func (h *Hub) answer(ctx context.Context, c *wsClient, data []byte, tabID string) {
	h.mu.RLock()
	handler := h.handler
	h.mu.RUnlock()
	if handler == nil {
		return
	}
	resp := handler(ctx, data, tabID)
	if err := c.writeJSON(hubFrame{Type: "response", Response: resp}); err != nil {
		bridgeLog.Debug("response_write_failed", "client", c.id, "error", err)
	}
}
