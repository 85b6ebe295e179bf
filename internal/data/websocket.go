package data

import (
	"context"
	"fmt"
	"time"

	"github.com/gorilla/websocket"

	"github.com/devricklin/slack-merge-gate/internal/biz/repo"
)

// WebsocketDialer opens feed sockets with gorilla/websocket
type WebsocketDialer struct {
	dialer *websocket.Dialer
}

// NewWebsocketDialer creates a dialer with the given handshake timeout
func NewWebsocketDialer(handshakeTimeout time.Duration) *WebsocketDialer {
	d := *websocket.DefaultDialer
	if handshakeTimeout > 0 {
		d.HandshakeTimeout = handshakeTimeout
	}
	return &WebsocketDialer{dialer: &d}
}

// Dial opens a socket to url
func (d *WebsocketDialer) Dial(ctx context.Context, url string) (repo.FeedConn, error) {
	conn, resp, err := d.dialer.DialContext(ctx, url, nil)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial feed: %w (http %d)", err, resp.StatusCode)
		}
		return nil, fmt.Errorf("dial feed: %w", err)
	}
	return &wsConn{conn: conn}, nil
}

type wsConn struct {
	conn *websocket.Conn
}

func (c *wsConn) ReadMessage() ([]byte, error) {
	_, data, err := c.conn.ReadMessage()
	return data, err
}

func (c *wsConn) WriteMessage(data []byte) error {
	if err := c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second)); err != nil {
		return err
	}
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

func (c *wsConn) Close() error {
	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	return c.conn.Close()
}
