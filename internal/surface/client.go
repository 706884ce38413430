// Package surface is the client side of livesync: sources that read the
// session state (server poll, real-time push, local cache), the sync loop
// that reconciles them into one render target, and the controller that
// publishes operator changes and consumes remote commands.
package surface

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rpggio/livesync/internal/domain/access"
	"github.com/rpggio/livesync/internal/live"
	"github.com/rpggio/livesync/internal/transport"
)

const (
	defaultUserAgent = "livesync-surface/0.1"
	requestTimeout   = 6 * time.Second
)

// StateReader reads a session state. Implemented by *Client.
type StateReader interface {
	ReadState(ctx context.Context, workspaceID, sessionID string) (*StateResponse, error)
}

// StateWriter merges partial state into a session. Implemented by *Client.
type StateWriter interface {
	UpsertState(ctx context.Context, workspaceID, sessionID string, partial map[string]any) (*StateResponse, error)
}

var (
	_ StateReader = (*Client)(nil)
	_ StateWriter = (*Client)(nil)
)

// StateResponse is the server's view of one session.
type StateResponse struct {
	WorkspaceID string         `json:"workspaceId"`
	SessionID   string         `json:"sessionId"`
	Version     int64          `json:"version"`
	State       map[string]any `json:"state"`
	UpdatedAt   time.Time      `json:"updatedAt"`
}

// CommandResponse confirms an issued remote command.
type CommandResponse struct {
	Command         string `json:"command"`
	RemoteCommandAt int64  `json:"remoteCommandAt"`
	Version         int64  `json:"version"`
}

// APIError is a non-2xx reply from the server.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("api returned %d %s: %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("api returned %d %s", e.Status, e.Code)
}

// Client talks to the livesync HTTP API as one actor.
type Client struct {
	baseURL   *url.URL
	http      *http.Client
	stream    *http.Client
	actor     access.Actor
	userAgent string
}

// NewClient builds a Client for the server at baseURL. Requests carry the
// actor's identity headers; an anonymous actor sends none.
func NewClient(baseURL string, actor access.Actor) (*Client, error) {
	base, err := parseBaseURL(baseURL)
	if err != nil {
		return nil, err
	}
	return &Client{
		baseURL:   base,
		http:      &http.Client{Timeout: requestTimeout},
		stream:    &http.Client{},
		actor:     actor,
		userAgent: defaultUserAgent,
	}, nil
}

// ReadState fetches the latest state of a session.
func (c *Client) ReadState(ctx context.Context, workspaceID, sessionID string) (*StateResponse, error) {
	var payload StateResponse
	if err := c.do(ctx, http.MethodGet, sessionPath(workspaceID, sessionID, "state"), nil, &payload); err != nil {
		return nil, err
	}
	return &payload, nil
}

// UpsertState merges partial into the session state.
func (c *Client) UpsertState(ctx context.Context, workspaceID, sessionID string, partial map[string]any) (*StateResponse, error) {
	body := map[string]any{"state": partial}
	var payload StateResponse
	if err := c.do(ctx, http.MethodPost, sessionPath(workspaceID, sessionID, "state"), body, &payload); err != nil {
		return nil, err
	}
	return &payload, nil
}

// IssueCommand sends NEXT, PREV or BLACKOUT to the session's controller.
func (c *Client) IssueCommand(ctx context.Context, workspaceID, sessionID, command string) (*CommandResponse, error) {
	body := map[string]any{"command": command}
	var payload CommandResponse
	if err := c.do(ctx, http.MethodPost, sessionPath(workspaceID, sessionID, "commands"), body, &payload); err != nil {
		return nil, err
	}
	return &payload, nil
}

// StageTimerLayout fetches the workspace's saved stage timer geometry.
// Requires owner or operator identity.
func (c *Client) StageTimerLayout(ctx context.Context, workspaceID string) (live.StageTimerLayout, error) {
	var payload struct {
		StageTimerLayout live.StageTimerLayout `json:"stageTimerLayout"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/workspaces/"+workspaceID, nil, &payload); err != nil {
		return live.StageTimerLayout{}, err
	}
	return payload.StageTimerLayout, nil
}

// OpenStream opens the server-sent event stream of a session. The stream
// has no timeout; cancel ctx to close it.
func (c *Client) OpenStream(ctx context.Context, workspaceID, sessionID string) (io.ReadCloser, error) {
	req, err := c.newRequest(ctx, http.MethodGet, sessionPath(workspaceID, sessionID, "stream"), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.stream.Do(req)
	if err != nil {
		return nil, fmt.Errorf("open stream: %w", err)
	}
	if resp.StatusCode >= 400 {
		defer func() { _ = resp.Body.Close() }()
		return nil, decodeAPIError(resp)
	}
	return resp.Body, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, dest any) error {
	req, err := c.newRequest(ctx, method, path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 400 {
		return decodeAPIError(resp)
	}
	if dest == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func (c *Client) newRequest(ctx context.Context, method, path string, body any) (*http.Request, error) {
	reqURL := c.baseURL.ResolveReference(&url.URL{Path: path})

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, reqURL.String(), reader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("User-Agent", c.userAgent)
	if uid := strings.TrimSpace(c.actor.UID); uid != "" {
		req.Header.Set(transport.HeaderUserUID, uid)
	}
	if email := strings.TrimSpace(c.actor.Email); email != "" {
		req.Header.Set(transport.HeaderUserEmail, email)
	}
	return req, nil
}

func decodeAPIError(resp *http.Response) error {
	apiErr := &APIError{Status: resp.StatusCode}
	var payload struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&payload); err == nil {
		apiErr.Code = payload.Error
		apiErr.Message = payload.Message
	}
	if apiErr.Code == "" {
		apiErr.Code = http.StatusText(resp.StatusCode)
	}
	return apiErr
}

func sessionPath(workspaceID, sessionID, leaf string) string {
	return "/api/workspaces/" + workspaceID + "/sessions/" + sessionID + "/" + leaf
}

func parseBaseURL(raw string) (*url.URL, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, fmt.Errorf("server url is empty")
	}
	if !strings.Contains(trimmed, "://") {
		trimmed = "http://" + trimmed
	}
	u, err := url.Parse(trimmed)
	if err != nil {
		return nil, fmt.Errorf("parse server url %q: %w", raw, err)
	}
	u.Path = ""
	u.RawQuery = ""
	u.Fragment = ""
	return u, nil
}
