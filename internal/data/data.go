package data

import (
	"time"

	"github.com/devricklin/slack-merge-gate/internal/biz/repo"
)

// MemoryDBPath selects the in-memory key-value store
const MemoryDBPath = "memory"

// Repositories contains all repositories
type Repositories struct {
	KV     repo.KVRepo
	Slack  repo.SlackRepo
	Dialer repo.FeedDialer
}

// NewRepositories creates all repositories
func NewRepositories(stateDBPath string, slackOpts SlackOptions) (*Repositories, error) {
	var kv repo.KVRepo
	if stateDBPath == MemoryDBPath {
		kv = NewMemoryKV()
	} else {
		var err error
		kv, err = NewSQLiteKV(stateDBPath)
		if err != nil {
			return nil, err
		}
	}

	return &Repositories{
		KV:     kv,
		Slack:  NewSlackRepo(slackOpts),
		Dialer: NewWebsocketDialer(15 * time.Second),
	}, nil
}

// Close releases storage
func (r *Repositories) Close() error {
	return r.KV.Close()
}
