package data

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devricklin/slack-merge-gate/internal/biz/domain"
	"github.com/devricklin/slack-merge-gate/internal/biz/repo"
)

func newTestSlack(t *testing.T, handler http.HandlerFunc) repo.SlackRepo {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewSlackRepo(SlackOptions{APIURL: srv.URL + "/"})
}

func TestSlackRepo_ListChannelsFollowsCursor(t *testing.T) {
	var calls atomic.Int32
	r := newTestSlack(t, func(w http.ResponseWriter, req *http.Request) {
		assert.Equal(t, "/conversations.list", req.URL.Path)
		calls.Add(1)
		if req.FormValue("cursor") == "" {
			fmt.Fprint(w, `{"ok":true,"channels":[{"id":"C1","name":"deploys"}],"response_metadata":{"next_cursor":"page2"}}`)
			return
		}
		fmt.Fprint(w, `{"ok":true,"channels":[{"id":"C2","name":"releases"}],"response_metadata":{"next_cursor":""}}`)
	})

	channels, err := r.ListChannels(context.Background(), "xoxb")
	require.NoError(t, err)
	assert.Equal(t, []repo.Channel{{ID: "C1", Name: "deploys"}, {ID: "C2", Name: "releases"}}, channels)
	assert.Equal(t, int32(2), calls.Load())
}

func TestSlackRepo_HistoryAndErrors(t *testing.T) {
	var fail atomic.Bool
	r := newTestSlack(t, func(w http.ResponseWriter, req *http.Request) {
		if fail.Load() {
			fmt.Fprint(w, `{"ok":false,"error":"not_in_channel"}`)
			return
		}
		fmt.Fprint(w, `{"ok":true,"messages":[{"type":"message","ts":"2.0","text":"hi","user":"U1"},{"type":"message","ts":"1.0","text":"yo","user":"U2"}]}`)
	})
	ctx := context.Background()

	msgs, err := r.History(ctx, "xoxb", "C1", 50)
	require.NoError(t, err)
	assert.Equal(t, []domain.IncomingMessage{
		{TS: "2.0", Text: "hi", User: "U1", Channel: "C1"},
		{TS: "1.0", Text: "yo", User: "U2", Channel: "C1"},
	}, msgs)

	fail.Store(true)
	_, err = r.History(ctx, "xoxb", "C1", 50)
	var apiErr *repo.APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, "not_in_channel", apiErr.Code)
}

func TestSlackRepo_TeamIDAndOpenConnection(t *testing.T) {
	r := newTestSlack(t, func(w http.ResponseWriter, req *http.Request) {
		switch req.URL.Path {
		case "/auth.test":
			fmt.Fprint(w, `{"ok":true,"team_id":"T123","user_id":"U1"}`)
		case "/apps.connections.open":
			fmt.Fprint(w, `{"ok":true,"url":"wss://feed.example/link"}`)
		default:
			http.NotFound(w, req)
		}
	})
	ctx := context.Background()

	team, err := r.TeamID(ctx, "xoxb")
	require.NoError(t, err)
	assert.Equal(t, "T123", team)

	feedURL, err := r.OpenConnection(ctx, "xapp")
	require.NoError(t, err)
	assert.Equal(t, "wss://feed.example/link", feedURL)
}

func TestSlackRepo_ChannelInfoCanvasOrder(t *testing.T) {
	r := newTestSlack(t, func(w http.ResponseWriter, req *http.Request) {
		assert.Equal(t, "Bearer xoxb", req.Header.Get("Authorization"))
		assert.Equal(t, "C1", req.URL.Query().Get("channel"))
		fmt.Fprint(w, `{"ok":true,"channel":{"id":"C1","name":"deploys","properties":{
			"canvas":{"file_id":"F0"},
			"tabs":[{"type":"canvas","data":{"file_id":"F1"}},{"type":"files"},{"type":"canvas","data":{"file_id":"F0"}},{"type":"canvas","data":{"file_id":"F2"}}]
		}}}`)
	})

	info, err := r.ChannelInfo(context.Background(), "xoxb", "C1")
	require.NoError(t, err)
	assert.Equal(t, &repo.ChannelInfo{ID: "C1", Name: "deploys", CanvasFileIDs: []string{"F0", "F1", "F2"}}, info)
}

func TestSlackRepo_CanvasContent(t *testing.T) {
	r := newTestSlack(t, func(w http.ResponseWriter, req *http.Request) {
		if req.URL.Query().Get("file") != "F1" {
			fmt.Fprint(w, `{"ok":false,"error":"file_not_found"}`)
			return
		}
		fmt.Fprint(w, `{"ok":true,"file":{"id":"F1","created":100,"updated":250,"blocks":[
			{"type":"rich_text","elements":[{"type":"rich_text_section","elements":[{"type":"text","text":"Release freeze"}]}]}
		]}}`)
	})
	ctx := context.Background()

	file, err := r.CanvasContent(ctx, "xoxb", "F1")
	require.NoError(t, err)
	assert.Equal(t, "250", file.TS)
	assert.Equal(t, "Release freeze", domain.ExtractCanvasText(file.Blocks))

	_, err = r.CanvasContent(ctx, "xoxb", "F9")
	var apiErr *repo.APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, "files.info", apiErr.Method)
}

func TestSlackRepo_HTTPFailureIsNotAPIError(t *testing.T) {
	r := newTestSlack(t, func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	_, err := r.ChannelInfo(context.Background(), "xoxb", "C1")
	require.Error(t, err)
	var apiErr *repo.APIError
	assert.False(t, errors.As(err, &apiErr))
}
