// Package slack wraps the handful of Web API calls quill needs and the
// reaction-event payload shape published by slack-forwarder.
package slack

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

const defaultAPIBase = "https://slack.com/api"

type Client struct {
	token      string
	httpClient *http.Client
	logger     *slog.Logger
	apiBase    string

	mu        sync.Mutex
	botUserID string
}

func NewClient(token string, logger *slog.Logger) *Client {
	return &Client{
		token:      token,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		apiBase:    defaultAPIBase,
		logger:     logger,
	}
}

// SetTestBaseURL points the client at a fake server.
func (c *Client) SetTestBaseURL(url string) {
	c.apiBase = url
}

// Message is one Slack message as returned by the history and replies calls.
type Message struct {
	User     string `json:"user"`
	Text     string `json:"text"`
	TS       string `json:"ts"`
	ThreadTS string `json:"thread_ts,omitempty"`
	BotID    string `json:"bot_id,omitempty"`
}

type listResponse struct {
	OK       bool      `json:"ok"`
	Error    string    `json:"error,omitempty"`
	Messages []Message `json:"messages"`
}

// FetchMessageAt retrieves the single message at ts in channel.
func (c *Client) FetchMessageAt(ctx context.Context, channel, ts string) (*Message, error) {
	q := url.Values{}
	q.Set("channel", channel)
	q.Set("latest", ts)
	q.Set("inclusive", "true")
	q.Set("limit", "1")

	var resp listResponse
	if err := c.get(ctx, "/conversations.history", q, &resp); err != nil {
		return nil, err
	}
	if !resp.OK {
		return nil, fmt.Errorf("slack error: %s", resp.Error)
	}
	if len(resp.Messages) == 0 {
		return nil, fmt.Errorf("no message found at %s in %s", ts, channel)
	}
	return &resp.Messages[0], nil
}

// FetchReplies retrieves the root message and all replies of a thread.
func (c *Client) FetchReplies(ctx context.Context, channel, rootTS string) ([]Message, error) {
	q := url.Values{}
	q.Set("channel", channel)
	q.Set("ts", rootTS)

	var resp listResponse
	if err := c.get(ctx, "/conversations.replies", q, &resp); err != nil {
		return nil, err
	}
	if !resp.OK {
		return nil, fmt.Errorf("slack error: %s", resp.Error)
	}
	return resp.Messages, nil
}

// PostMessage posts text into a thread.
func (c *Client) PostMessage(ctx context.Context, channel, threadTS, text string) error {
	payload := map[string]any{
		"channel": channel,
		"text":    text,
	}
	if threadTS != "" {
		payload["thread_ts"] = threadTS
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiBase+"/chat.postMessage", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("slack post: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	var slackResp struct {
		OK    bool   `json:"ok"`
		Error string `json:"error,omitempty"`
	}
	if err := json.Unmarshal(respBody, &slackResp); err != nil {
		return fmt.Errorf("parse slack response: %w", err)
	}
	if !slackResp.OK {
		return fmt.Errorf("slack error: %s", slackResp.Error)
	}
	return nil
}

// BotUserID returns this bot's own user id, fetched once via auth.test and
// cached for the lifetime of the client.
func (c *Client) BotUserID(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.botUserID != "" {
		return c.botUserID, nil
	}

	var resp struct {
		OK     bool   `json:"ok"`
		Error  string `json:"error,omitempty"`
		UserID string `json:"user_id"`
	}
	if err := c.get(ctx, "/auth.test", nil, &resp); err != nil {
		return "", err
	}
	if !resp.OK {
		return "", fmt.Errorf("slack error: %s", resp.Error)
	}

	c.botUserID = resp.UserID
	return c.botUserID, nil
}

func (c *Client) get(ctx context.Context, path string, q url.Values, out any) error {
	u := c.apiBase + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("slack %s: %w", path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("parse slack response: %w", err)
	}
	return nil
}

// SourceLink builds the permalink used as the document source-link property.
func SourceLink(channel, ts string) string {
	return fmt.Sprintf("https://slack.com/archives/%s/p%s", channel, strings.ReplaceAll(ts, ".", ""))
}
