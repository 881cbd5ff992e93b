package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/osa030/19player/internal/api/httpapi"
	"github.com/osa030/19player/internal/app/notification"
	"github.com/osa030/19player/internal/app/session"
)

// Client talks to the control API.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// NewClient creates a client for the API at baseURL.
func NewClient(baseURL, token string, hc *http.Client) *Client {
	if hc == nil {
		hc = http.DefaultClient
	}
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), token: token, http: hc}
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return errors.Wrap(err, "failed to encode request")
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return errors.Wrap(err, "failed to create request")
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set(httpapi.TokenHeader, c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return errors.Wrapf(err, "%s %s", method, path)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var e struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&e)
		return errors.Newf("%s %s: %s: %s", method, path, resp.Status, e.Error)
	}
	if out == nil {
		return nil
	}
	return errors.Wrap(json.NewDecoder(resp.Body).Decode(out), "failed to decode response")
}

func (c *Client) Status(ctx context.Context) (session.Status, error) {
	var s session.Status
	return s, c.do(ctx, http.MethodGet, "/api/v1/status", nil, &s)
}

func (c *Client) Queue(ctx context.Context) ([]notification.TrackInfo, error) {
	var entries []notification.TrackInfo
	return entries, c.do(ctx, http.MethodGet, "/api/v1/queue", nil, &entries)
}

// Player sends a transport command such as "play" or "next".
func (c *Client) Player(ctx context.Context, action string) error {
	return c.do(ctx, http.MethodPost, "/api/v1/player/"+action, nil, nil)
}

func (c *Client) Goto(ctx context.Context, pos int) error {
	return c.do(ctx, http.MethodPost, "/api/v1/player/goto", httpapi.GotoRequest{Pos: pos}, nil)
}

func (c *Client) Seek(ctx context.Context, ms int64, relative bool) error {
	return c.do(ctx, http.MethodPost, "/api/v1/player/seek", httpapi.SeekRequest{Ms: ms, Relative: relative}, nil)
}

func (c *Client) Enqueue(ctx context.Context, req session.EnqueueRequest) (int, error) {
	var resp httpapi.PositionResponse
	return resp.Pos, c.do(ctx, http.MethodPost, "/api/v1/queue", req, &resp)
}

func (c *Client) Unqueue(ctx context.Context, req session.UnqueueRequest) (int, error) {
	var resp httpapi.CountResponse
	return resp.Count, c.do(ctx, http.MethodDelete, "/api/v1/queue", req, &resp)
}

func (c *Client) Move(ctx context.Context, ids []int64, amount int) (int, error) {
	var resp httpapi.CountResponse
	return resp.Count, c.do(ctx, http.MethodPost, "/api/v1/queue/move", httpapi.MoveRequest{IDs: ids, Amount: amount}, &resp)
}

func (c *Client) Settings(ctx context.Context) (session.Settings, error) {
	var s session.Settings
	return s, c.do(ctx, http.MethodGet, "/api/v1/settings", nil, &s)
}

func (c *Client) UpdateSettings(ctx context.Context, u session.SettingsUpdate) (session.Settings, error) {
	var s session.Settings
	return s, c.do(ctx, http.MethodPut, "/api/v1/settings", u, &s)
}

// Events calls fn for every notification until ctx ends or the stream closes.
func (c *Client) Events(ctx context.Context, fn func(*notification.Notification)) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/v1/events", nil)
	if err != nil {
		return errors.Wrap(err, "failed to create request")
	}
	if c.token != "" {
		req.Header.Set(httpapi.TokenHeader, c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return errors.Wrap(err, "failed to open event stream")
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return errors.Newf("failed to open event stream: %s", resp.Status)
	}

	sc := bufio.NewScanner(resp.Body)
	for sc.Scan() {
		data, ok := strings.CutPrefix(sc.Text(), "data: ")
		if !ok {
			continue
		}
		var n notification.Notification
		if err := json.Unmarshal([]byte(data), &n); err != nil {
			return errors.Wrap(err, "invalid event")
		}
		fn(&n)
	}
	if err := sc.Err(); err != nil && ctx.Err() == nil {
		return errors.Wrap(err, "event stream failed")
	}
	return nil
}
