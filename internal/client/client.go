// Package client talks to a running mnemo server.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/lazypower/mnemo/internal/server"
	"github.com/lazypower/mnemo/internal/tools"
)

const (
	DefaultServerURL = "http://127.0.0.1:37777"
	httpTimeout      = 10 * time.Second
)

// Client talks to the mnemo HTTP API.
type Client struct {
	http      *http.Client
	serverURL string

	// SessionID is sent with every tool call when set.
	SessionID string
}

// NewClient creates a client for serverURL. An empty URL falls back to
// MNEMO_URL, then to http://127.0.0.1:37777.
func NewClient(serverURL string) *Client {
	if serverURL == "" {
		serverURL = os.Getenv("MNEMO_URL")
	}
	if serverURL == "" {
		serverURL = DefaultServerURL
	}
	return &Client{
		http:      &http.Client{Timeout: httpTimeout},
		serverURL: serverURL,
	}
}

// Post sends a POST request with JSON body. Returns response body.
func (c *Client) Post(ctx context.Context, path string, body []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.serverURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("POST %s: %w", path, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.SessionID != "" {
		req.Header.Set(server.SessionHeader, c.SessionID)
	}
	return c.do(req, path)
}

// Get sends a GET request. Returns response body.
func (c *Client) Get(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.serverURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("GET %s: %w", path, err)
	}
	return c.do(req, path)
}

func (c *Client) do(req *http.Request, path string) ([]byte, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", req.Method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response %s: %w", path, err)
	}
	if resp.StatusCode >= 400 {
		return data, &StatusError{Method: req.Method, Path: path, Status: resp.StatusCode, Body: data}
	}
	return data, nil
}

// StatusError is returned for 4xx and 5xx responses. Body holds the
// response, which for tool calls is still a tool result.
type StatusError struct {
	Method string
	Path   string
	Status int
	Body   []byte
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: status %d: %s", e.Method, e.Path, e.Status, bytes.TrimSpace(e.Body))
}

// Healthy checks if the server is reachable.
func (c *Client) Healthy(ctx context.Context) bool {
	_, err := c.Get(ctx, "/api/health")
	return err == nil
}

// CallTool invokes a tool. Tool-level failures come back as a Result with
// success=false; the error is reserved for transport problems.
func (c *Client) CallTool(ctx context.Context, name string, args map[string]any) (tools.Result, error) {
	if args == nil {
		args = map[string]any{}
	}
	body, err := json.Marshal(args)
	if err != nil {
		return nil, fmt.Errorf("encode arguments: %w", err)
	}

	data, err := c.Post(ctx, "/api/tools/"+name, body)
	if err != nil && data == nil {
		return nil, err
	}

	var res tools.Result
	if jerr := json.Unmarshal(data, &res); jerr != nil || res == nil {
		if err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("decode %s result: %w", name, jerr)
	}
	return res, nil
}

// ToolInfo describes a tool as listed by the server.
type ToolInfo struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	InputSchema json.RawMessage `json:"inputSchema"`
}

// Tools lists the server's tools.
func (c *Client) Tools(ctx context.Context) ([]ToolInfo, error) {
	data, err := c.Get(ctx, "/api/tools")
	if err != nil {
		return nil, err
	}
	var out struct {
		Tools []ToolInfo `json:"tools"`
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("decode tools: %w", err)
	}
	return out.Tools, nil
}
