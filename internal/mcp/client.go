package mcp

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/goccy/go-json"

	"github.com/devricklin/slack-merge-gate/internal/service"
)

// Client is the HTTP client for the merge gate daemon API
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a new daemon client
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// ============ State ============

// State fetches the popup read model
func (c *Client) State(ctx context.Context) (*service.PopupState, error) {
	var state service.PopupState
	if err := c.get(ctx, "/api/state", &state); err != nil {
		return nil, err
	}
	return &state, nil
}

// ============ Actions ============

// Action posts one action and decodes the {success, error} answer.
// An unsuccessful answer is returned as an error.
func (c *Client) Action(ctx context.Context, name string, fields map[string]any) error {
	body := map[string]any{"action": name}
	for k, v := range fields {
		body[k] = v
	}

	var result service.Result
	if err := c.post(ctx, "/api/action", body, &result); err != nil {
		return err
	}
	if !result.Success {
		if result.Error == "" {
			return fmt.Errorf("%s failed", name)
		}
		return fmt.Errorf("%s failed: %s", name, result.Error)
	}
	return nil
}

// ============ HTTP Helpers ============

func (c *Client) get(ctx context.Context, path string, result interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	return c.do(req, result)
}

func (c *Client) post(ctx context.Context, path string, body interface{}, result interface{}) error {
	jsonBody, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(jsonBody))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, result)
}

func (c *Client) do(req *http.Request, result interface{}) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("HTTP %s failed: %w", req.Method, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("HTTP %d: %s", resp.StatusCode, bytes.TrimSpace(body))
	}

	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}
