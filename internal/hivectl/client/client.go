// Package client is a thin HTTP client for the hivemind /v1 API.
package client

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gin-contrib/sse"

	v1 "github.com/kiosk404/hivelink/internal/hivemind/handler/v1"
	"github.com/kiosk404/hivelink/internal/hivemind/service/agents/domain/entity"
	"github.com/kiosk404/hivelink/internal/pkg/core"
	"github.com/kiosk404/hivelink/pkg/utils/json"
)

// APIError is a non-2xx response from hivemind.
type APIError struct {
	Status int
	core.ErrResponse
}

func (e *APIError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s (code %d, http %d): %s", e.Message, e.Code, e.Status, e.Detail)
	}
	return fmt.Sprintf("%s (code %d, http %d)", e.Message, e.Code, e.Status)
}

// Client talks to one hivemind server.
type Client struct {
	BaseURL string
	Token   string

	// HTTPClient serves regular requests. Event streams use StreamClient, which has
	// no overall timeout.
	HTTPClient   *http.Client
	StreamClient *http.Client
}

// New creates a client for addr ("host:port" or a full URL).
func New(addr, token string) *Client {
	base := addr
	if !strings.Contains(base, "://") {
		base = "http://" + base
	}
	return &Client{
		BaseURL:      strings.TrimRight(base, "/"),
		Token:        token,
		HTTPClient:   &http.Client{Timeout: 30 * time.Second},
		StreamClient: &http.Client{},
	}
}

type listResponse[T any] struct {
	Data []T `json:"data"`
}

// SpawnResult mirrors the spawn response body.
type SpawnResult struct {
	Pending    bool                `json:"pending"`
	ApprovalID string              `json:"approval_id,omitempty"`
	Info       entity.SubAgentInfo `json:"info"`
}

func (c *Client) CreateSession(ctx context.Context, title string) (*v1.SessionResponse, error) {
	var out v1.SessionResponse
	err := c.do(ctx, http.MethodPost, "/v1/sessions", v1.CreateSessionRequest{Title: title}, &out)
	return &out, err
}

func (c *Client) ListSessions(ctx context.Context) ([]v1.SessionResponse, error) {
	var out listResponse[v1.SessionResponse]
	err := c.do(ctx, http.MethodGet, "/v1/sessions", nil, &out)
	return out.Data, err
}

func (c *Client) ListChildren(ctx context.Context, sessionID string) ([]v1.SessionResponse, error) {
	var out listResponse[v1.SessionResponse]
	err := c.do(ctx, http.MethodGet, "/v1/sessions/"+url.PathEscape(sessionID)+"/children", nil, &out)
	return out.Data, err
}

func (c *Client) EndSession(ctx context.Context, sessionID string) error {
	return c.do(ctx, http.MethodDelete, "/v1/sessions/"+url.PathEscape(sessionID), nil, nil)
}

func (c *Client) SendMessage(ctx context.Context, sessionID, content string) error {
	return c.do(ctx, http.MethodPost, "/v1/sessions/"+url.PathEscape(sessionID)+"/messages",
		v1.SendMessageRequest{Content: content}, nil)
}

func (c *Client) CancelRun(ctx context.Context, sessionID string) (bool, error) {
	var out struct {
		Cancelled bool `json:"cancelled"`
	}
	err := c.do(ctx, http.MethodPost, "/v1/sessions/"+url.PathEscape(sessionID)+"/cancel", nil, &out)
	return out.Cancelled, err
}

func (c *Client) SpawnSubAgent(ctx context.Context, sessionID string, req v1.SpawnSubAgentRequest) (*SpawnResult, error) {
	var out SpawnResult
	err := c.do(ctx, http.MethodPost, "/v1/sessions/"+url.PathEscape(sessionID)+"/subagents", req, &out)
	return &out, err
}

func (c *Client) ListSubAgents(ctx context.Context, sessionID string) ([]v1.SubAgentView, error) {
	var out listResponse[v1.SubAgentView]
	err := c.do(ctx, http.MethodGet, "/v1/sessions/"+url.PathEscape(sessionID)+"/subagents", nil, &out)
	return out.Data, err
}

func (c *Client) CancelSubAgent(ctx context.Context, agentID string) (bool, error) {
	var out struct {
		Cancelled bool `json:"cancelled"`
	}
	err := c.do(ctx, http.MethodDelete, "/v1/subagents/"+url.PathEscape(agentID), nil, &out)
	return out.Cancelled, err
}

// ListApprovals lists pending approvals, for one session when sessionID is set.
func (c *Client) ListApprovals(ctx context.Context, sessionID string) ([]v1.ApprovalView, error) {
	path := "/v1/approvals"
	if sessionID != "" {
		path = "/v1/sessions/" + url.PathEscape(sessionID) + "/approvals"
	}
	var out listResponse[v1.ApprovalView]
	err := c.do(ctx, http.MethodGet, path, nil, &out)
	return out.Data, err
}

func (c *Client) RespondApproval(ctx context.Context, approvalID string, req v1.ApprovalResponseRequest) error {
	return c.do(ctx, http.MethodPost, "/v1/approvals/"+url.PathEscape(approvalID), req, nil)
}

func (c *Client) CancelApproval(ctx context.Context, approvalID string) error {
	return c.do(ctx, http.MethodDelete, "/v1/approvals/"+url.PathEscape(approvalID), nil, nil)
}

func (c *Client) ListDefinitions(ctx context.Context) ([]entity.AgentConfig, error) {
	var out listResponse[entity.AgentConfig]
	err := c.do(ctx, http.MethodGet, "/v1/agents", nil, &out)
	return out.Data, err
}

// Events follows the session's event stream and calls fn for each event until the
// stream ends, ctx is done or fn returns false.
func (c *Client) Events(ctx context.Context, sessionID string, fn func(sse.Event) bool) error {
	req, err := c.newRequest(ctx, http.MethodGet, "/v1/sessions/"+url.PathEscape(sessionID)+"/events", nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.StreamClient.Do(req)
	if err != nil {
		return fmt.Errorf("connect to event stream: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		return decodeError(resp)
	}

	return readEvents(resp.Body, fn)
}

// readEvents splits r into blank-line separated blocks and decodes each on its own,
// so events are delivered as they arrive rather than at EOF.
func readEvents(r io.Reader, fn func(sse.Event) bool) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)

	var block bytes.Buffer
	flush := func() (bool, error) {
		if block.Len() == 0 {
			return true, nil
		}
		block.WriteString("\n")
		events, err := sse.Decode(&block)
		block.Reset()
		if err != nil {
			return false, fmt.Errorf("decode event: %w", err)
		}
		for _, ev := range events {
			if !fn(ev) {
				return false, nil
			}
		}
		return true, nil
	}

	for scanner.Scan() {
		line := scanner.Text()
		if line != "" {
			block.WriteString(line)
			block.WriteString("\n")
			continue
		}
		if more, err := flush(); err != nil || !more {
			return err
		}
	}
	if err := scanner.Err(); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("read event stream: %w", err)
	}
	_, err := flush()
	return err
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	req, err := c.newRequest(ctx, method, path, body)
	if err != nil {
		return err
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		return decodeError(resp)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read %s %s response: %w", method, path, err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode %s %s response: %w", method, path, err)
	}
	return nil
}

func (c *Client) newRequest(ctx context.Context, method, path string, body any) (*http.Request, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, reader)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}
	return req, nil
}

func decodeError(resp *http.Response) error {
	apiErr := &APIError{Status: resp.StatusCode}
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err := json.Unmarshal(data, &apiErr.ErrResponse); err != nil || apiErr.Message == "" {
		apiErr.Message = strings.TrimSpace(string(data))
		if apiErr.Message == "" {
			apiErr.Message = http.StatusText(resp.StatusCode)
		}
	}
	return apiErr
}
