// Package client talks to a running gateway. Both clients implement core.Env.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/m-mizutani/goerr/v2"

	"github.com/boristopalov/sciworld/pkg/core"
	"github.com/boristopalov/sciworld/pkg/gateway"
)

// HTTPClient calls the gateway's HTTP routes. It never retries.
type HTTPClient struct {
	baseURL   string
	http      *http.Client
	sessionID string
}

var _ core.Env = (*HTTPClient)(nil)

type Option func(*HTTPClient)

func WithHTTPClient(c *http.Client) Option {
	return func(h *HTTPClient) {
		h.http = c
	}
}

// WithTimeout bounds every round trip. Zero keeps the transport default.
func WithTimeout(d time.Duration) Option {
	return func(h *HTTPClient) {
		h.http = &http.Client{Timeout: d}
	}
}

// WithSessionID targets a named gateway session instead of the default one.
func WithSessionID(id string) Option {
	return func(h *HTTPClient) {
		h.sessionID = id
	}
}

func NewHTTPClient(baseURL string, opts ...Option) *HTTPClient {
	c := &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    http.DefaultClient,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *HTTPClient) ListTasks(ctx context.Context) (core.TaskList, error) {
	var tasks core.TaskList
	if err := c.do(ctx, http.MethodPost, "/tasks", nil, &tasks); err != nil {
		return nil, err
	}
	return tasks, nil
}

func (c *HTTPClient) Load(ctx context.Context, name string, variation int) (*core.Snapshot, error) {
	var snap core.Snapshot
	req := gateway.LoadRequest{Name: name, Variation: variation}
	if err := c.do(ctx, http.MethodPost, "/load", req, &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

func (c *HTTPClient) Step(ctx context.Context, action string) (*core.Snapshot, error) {
	var snap core.Snapshot
	if err := c.do(ctx, http.MethodPost, "/step", gateway.StepRequest{Action: action}, &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

func (c *HTTPClient) do(ctx context.Context, method, path string, body, out any) error {
	var r io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return goerr.Wrap(err, "failed to encode request", goerr.Value("path", path))
		}
		r = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, r)
	if err != nil {
		return goerr.Wrap(core.ErrTransport, "failed to build request",
			goerr.Value("url", c.baseURL+path), goerr.Value("cause", err.Error()))
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.sessionID != "" {
		req.Header.Set(gateway.SessionHeader, c.sessionID)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return goerr.Wrap(core.ErrTransport, "request failed",
			goerr.Value("url", c.baseURL+path), goerr.Value("cause", err.Error()))
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return goerr.Wrap(core.ErrTransport, "failed to read response",
			goerr.Value("url", c.baseURL+path), goerr.Value("cause", err.Error()))
	}

	if resp.StatusCode != http.StatusOK {
		return responseError(resp.StatusCode, raw, path)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return goerr.Wrap(core.ErrTransport, "failed to decode response",
			goerr.Value("path", path), goerr.Value("cause", err.Error()))
	}
	return nil
}

func responseError(status int, raw []byte, path string) error {
	var env gateway.ErrorResponse
	if err := json.Unmarshal(raw, &env); err != nil || env.Error.Code == "" {
		env.Error = gateway.ErrorBody{Code: gateway.CodeEngine, Message: strings.TrimSpace(string(raw))}
		if status >= 400 && status < 500 {
			env.Error.Code = gateway.CodeBadRequest
		}
	}
	return goerr.Wrap(env.Error.Sentinel(), env.Error.Message,
		goerr.Value("path", path), goerr.Value("status", status), goerr.Value("code", env.Error.Code))
}
