package data

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/slack-go/slack"
	"golang.org/x/time/rate"

	"github.com/devricklin/slack-merge-gate/internal/biz/domain"
	"github.com/devricklin/slack-merge-gate/internal/biz/repo"
	"github.com/devricklin/slack-merge-gate/internal/logging"
)

var slackLog = logging.ForComponent(logging.CompSlack)

// SlackOptions configures the Slack repository
type SlackOptions struct {
	// APIURL overrides the API base, mainly for tests (default slack.APIURL)
	APIURL string
	// RatePerSecond paces all API calls; <= 0 disables pacing
	RatePerSecond float64
	Burst         int
	HTTPClient    *http.Client
}

// slackRepo implements the Slack repository
// Standard endpoints go through slack-go; channel properties and canvas
// blocks are not modelled there and use direct calls.
type slackRepo struct {
	apiURL     string
	httpClient *http.Client
	limiter    *rate.Limiter

	mu      sync.Mutex
	clients map[string]*slack.Client
}

// NewSlackRepo creates a new Slack repository
func NewSlackRepo(opts SlackOptions) repo.SlackRepo {
	if opts.APIURL == "" {
		opts.APIURL = slack.APIURL
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}
	limit := rate.Inf
	if opts.RatePerSecond > 0 {
		limit = rate.Limit(opts.RatePerSecond)
	}
	if opts.Burst <= 0 {
		opts.Burst = 3
	}
	return &slackRepo{
		apiURL:     opts.APIURL,
		httpClient: opts.HTTPClient,
		limiter:    rate.NewLimiter(limit, opts.Burst),
		clients:    make(map[string]*slack.Client),
	}
}

func (r *slackRepo) client(token string, appLevel bool) *slack.Client {
	key := token
	if appLevel {
		key = "app:" + token
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.clients[key]; ok {
		return c
	}
	options := []slack.Option{
		slack.OptionAPIURL(r.apiURL),
		slack.OptionHTTPClient(r.httpClient),
	}
	if appLevel {
		options = append(options, slack.OptionAppLevelToken(token))
	}
	c := slack.New(token, options...)
	r.clients[key] = c
	return c
}

// apiError converts slack-go ok=false responses into repo.APIError
func apiError(method string, err error) error {
	var slackErr slack.SlackErrorResponse
	if errors.As(err, &slackErr) {
		return &repo.APIError{Method: method, Code: slackErr.Err}
	}
	return fmt.Errorf("%s: %w", method, err)
}

// ListChannels lists public and private channels
func (r *slackRepo) ListChannels(ctx context.Context, token string) ([]repo.Channel, error) {
	c := r.client(token, false)
	params := &slack.GetConversationsParameters{
		Types:           []string{"public_channel", "private_channel"},
		Limit:           1000,
		ExcludeArchived: true,
	}

	var result []repo.Channel
	for {
		if err := r.limiter.Wait(ctx); err != nil {
			return nil, err
		}
		channels, nextCursor, err := c.GetConversationsContext(ctx, params)
		if err != nil {
			return nil, apiError("conversations.list", err)
		}
		for _, ch := range channels {
			result = append(result, repo.Channel{ID: ch.ID, Name: ch.Name})
		}
		if nextCursor == "" {
			break
		}
		params.Cursor = nextCursor
	}
	return result, nil
}

// TeamID resolves the token's workspace
func (r *slackRepo) TeamID(ctx context.Context, token string) (string, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return "", err
	}
	resp, err := r.client(token, false).AuthTestContext(ctx)
	if err != nil {
		return "", apiError("auth.test", err)
	}
	return resp.TeamID, nil
}

// History fetches recent channel messages
func (r *slackRepo) History(ctx context.Context, token, channelID string, limit int) ([]domain.IncomingMessage, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	resp, err := r.client(token, false).GetConversationHistoryContext(ctx, &slack.GetConversationHistoryParameters{
		ChannelID: channelID,
		Limit:     limit,
	})
	if err != nil {
		return nil, apiError("conversations.history", err)
	}

	result := make([]domain.IncomingMessage, 0, len(resp.Messages))
	for _, m := range resp.Messages {
		result = append(result, domain.IncomingMessage{
			TS:      m.Timestamp,
			Text:    m.Text,
			User:    m.User,
			Channel: channelID,
		})
	}
	return result, nil
}

// OpenConnection performs the Socket Mode handshake
func (r *slackRepo) OpenConnection(ctx context.Context, appToken string) (string, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return "", err
	}
	_, feedURL, err := r.client(appToken, true).StartSocketModeContext(ctx)
	if err != nil {
		return "", apiError("apps.connections.open", err)
	}
	if feedURL == "" {
		return "", &repo.APIError{Method: "apps.connections.open", Code: "missing_url"}
	}
	return feedURL, nil
}

type conversationInfoResponse struct {
	Channel struct {
		ID         string `json:"id"`
		Name       string `json:"name"`
		Properties struct {
			Canvas struct {
				FileID string `json:"file_id"`
			} `json:"canvas"`
			Tabs []struct {
				Type string `json:"type"`
				Data struct {
					FileID string `json:"file_id"`
				} `json:"data"`
			} `json:"tabs"`
		} `json:"properties"`
	} `json:"channel"`
}

// ChannelInfo fetches channel properties including canvas tabs
func (r *slackRepo) ChannelInfo(ctx context.Context, token, channelID string) (*repo.ChannelInfo, error) {
	var resp conversationInfoResponse
	if err := r.call(ctx, token, "conversations.info", url.Values{"channel": {channelID}}, &resp); err != nil {
		return nil, err
	}

	info := &repo.ChannelInfo{ID: resp.Channel.ID, Name: resp.Channel.Name}
	seen := make(map[string]bool)
	add := func(id string) {
		if id != "" && !seen[id] {
			seen[id] = true
			info.CanvasFileIDs = append(info.CanvasFileIDs, id)
		}
	}
	add(resp.Channel.Properties.Canvas.FileID)
	for _, tab := range resp.Channel.Properties.Tabs {
		if tab.Type == "canvas" {
			add(tab.Data.FileID)
		}
	}
	return info, nil
}

type fileInfoResponse struct {
	File struct {
		ID      string              `json:"id"`
		Created int64               `json:"created"`
		Updated int64               `json:"updated"`
		Blocks  []domain.CanvasNode `json:"blocks"`
	} `json:"file"`
}

// CanvasContent fetches the blocks of a canvas file
func (r *slackRepo) CanvasContent(ctx context.Context, token, fileID string) (*repo.CanvasFile, error) {
	var resp fileInfoResponse
	if err := r.call(ctx, token, "files.info", url.Values{"file": {fileID}}, &resp); err != nil {
		return nil, err
	}
	stamp := resp.File.Updated
	if stamp == 0 {
		stamp = resp.File.Created
	}
	file := &repo.CanvasFile{FileID: fileID, Blocks: resp.File.Blocks}
	if stamp > 0 {
		file.TS = strconv.FormatInt(stamp, 10)
	}
	return file, nil
}

type slackEnvelope struct {
	OK    bool   `json:"ok"`
	Error string `json:"error"`
}

// call performs a GET against a Web API method and decodes the body into dst
func (r *slackRepo) call(ctx context.Context, token, method string, params url.Values, dst any) error {
	if err := r.limiter.Wait(ctx); err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.apiURL+method+"?"+params.Encode(), nil)
	if err != nil {
		return fmt.Errorf("%s: %w", method, err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", method, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%s: read body: %w", method, err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s: http %d", method, resp.StatusCode)
	}

	var env slackEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return fmt.Errorf("%s: decode: %w", method, err)
	}
	if !env.OK {
		slackLog.Debug("api_error", "method", method, "code", env.Error)
		return &repo.APIError{Method: method, Code: env.Error}
	}
	if err := json.Unmarshal(body, dst); err != nil {
		return fmt.Errorf("%s: decode: %w", method, err)
	}
	return nil
}
