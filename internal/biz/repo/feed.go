package repo

import "context"

// FeedConn is an open realtime feed socket
// Reads must come from a single goroutine; writes are serialized by the caller.
type FeedConn interface {
	ReadMessage() ([]byte, error)
	WriteMessage(data []byte) error
	Close() error
}

// FeedDialer opens feed sockets
type FeedDialer interface {
	Dial(ctx context.Context, url string) (FeedConn, error)
}
