// Package assistai is the outbound REST client for the upstream inbox API.
package assistai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/Vovarama1992/inbox-sync-core/internal/inbox"
)

type Client struct {
	baseURL string
	token   string
	client  *http.Client
}

func NewClient(baseURL, token string) *Client {
	return &Client{
		baseURL: baseURL,
		token:   token,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

func (c *Client) ListConversations(ctx context.Context, page, take int) ([]inbox.Conversation, error) {
	q := url.Values{}
	q.Set("page", strconv.Itoa(page))
	q.Set("take", strconv.Itoa(take))

	var out []inbox.Conversation
	if err := c.get(ctx, "/conversations?"+q.Encode(), &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) Poll(ctx context.Context, since string) (*inbox.PollResult, error) {
	path := "/assistai/poll"
	if since != "" {
		path += "?since=" + url.QueryEscape(since)
	}

	var out inbox.PollResult
	if err := c.get(ctx, path, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Send delivers a message. The API echoes no message body back; the caller
// synthesizes its own optimistic copy.
func (c *Client) Send(ctx context.Context, req inbox.SendRequest) error {
	return c.post(ctx, "/chat/send", req, nil)
}

func (c *Client) RequestTakeover(ctx context.Context, sessionID, userID string, durationMinutes int) (*inbox.TakeoverStatus, error) {
	body := map[string]any{
		"userId":          userID,
		"durationMinutes": durationMinutes,
	}

	var out struct {
		Takeover struct {
			TakenBy   string    `json:"takenBy"`
			ExpiresAt time.Time `json:"expiresAt"`
		} `json:"takeover"`
	}
	path := "/conversations/" + url.PathEscape(sessionID) + "/takeover"
	if err := c.post(ctx, path, body, &out); err != nil {
		return nil, err
	}
	return &inbox.TakeoverStatus{
		Active:    true,
		TakenBy:   out.Takeover.TakenBy,
		ExpiresAt: out.Takeover.ExpiresAt,
	}, nil
}

func (c *Client) Release(ctx context.Context, sessionID string) error {
	return c.post(ctx, "/conversations/"+url.PathEscape(sessionID)+"/release", nil, nil)
}

func (c *Client) CheckTakeover(ctx context.Context, sessionID string) (*inbox.TakeoverStatus, error) {
	var out inbox.TakeoverStatus
	path := "/conversations/" + url.PathEscape(sessionID) + "/takeover-status"
	if err := c.get(ctx, path, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		rd = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, rd)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("assistai api error: %s body=%s", resp.Status, respBody)
	}

	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
