package npm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/Wikid82/proxybot/internal/metrics"
	"github.com/Wikid82/proxybot/internal/version"
)

const (
	proxyHostsPath = "/api/nginx/proxy-hosts"
	maxBodySize    = 4 << 20
)

// Test hook for request encoding failures.
var jsonMarshalClient = json.Marshal

// Client talks to the proxy-manager control-plane API.
type Client struct {
	baseURL    string
	tokens     TokenSource
	httpClient *http.Client
}

// NewClient creates a control-plane client. Every call asks tokens for a
// bearer token.
func NewClient(baseURL string, tokens TokenSource, timeout time.Duration) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		tokens:     tokens,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// List returns every proxy host visible to the configured identity.
func (c *Client) List(ctx context.Context) ([]ProxyHost, error) {
	var hosts []ProxyHost
	if err := c.do(ctx, opRead, http.MethodGet, proxyHostsPath, nil, &hosts); err != nil {
		return nil, err
	}
	return hosts, nil
}

// FindByDomain returns the first host serving domain, or nil when none does.
func (c *Client) FindByDomain(ctx context.Context, domain string) (*ProxyHost, error) {
	var hosts []ProxyHost
	path := proxyHostsPath + "?query=" + url.QueryEscape(domain)
	if err := c.do(ctx, opRead, http.MethodGet, path, nil, &hosts); err != nil {
		return nil, err
	}
	for i := range hosts {
		if hosts[i].HasDomain(domain) {
			return &hosts[i], nil
		}
	}
	return nil, nil
}

// Create registers a new proxy host.
func (c *Client) Create(ctx context.Context, req ProxyHostRequest) (*ProxyHost, error) {
	var host ProxyHost
	if err := c.do(ctx, opCreate, http.MethodPost, proxyHostsPath, req, &host); err != nil {
		return nil, err
	}
	return &host, nil
}

// Update replaces the writable fields of host id with req.
func (c *Client) Update(ctx context.Context, id int, req ProxyHostRequest) (*ProxyHost, error) {
	var host ProxyHost
	path := proxyHostsPath + "/" + strconv.Itoa(id)
	if err := c.do(ctx, opUpdate, http.MethodPut, path, req, &host); err != nil {
		return nil, err
	}
	return &host, nil
}

// Delete removes host id. The control-plane answers with a bare boolean.
func (c *Client) Delete(ctx context.Context, id int) error {
	var ok bool
	path := proxyHostsPath + "/" + strconv.Itoa(id)
	if err := c.do(ctx, opDelete, http.MethodDelete, path, nil, &ok); err != nil {
		return err
	}
	if !ok {
		return &RemoteError{Status: http.StatusOK, Message: "deletion was not confirmed"}
	}
	return nil
}

// do performs one call. When a reused token is rejected it is dropped and
// the call is sent once more with a fresh one.
func (c *Client) do(ctx context.Context, op operation, method, path string, in, out interface{}) error {
	var payload []byte
	if in != nil {
		var err error
		if payload, err = jsonMarshalClient(in); err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
	}

	status, raw, err := c.send(ctx, method, path, payload)
	if err != nil {
		return err
	}
	if status == http.StatusUnauthorized && c.tokens.Invalidate() {
		if status, raw, err = c.send(ctx, method, path, payload); err != nil {
			return err
		}
	}

	if status < 200 || status >= 300 {
		return statusError(op, status, raw)
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func (c *Client) send(ctx context.Context, method, path string, payload []byte) (status int, raw []byte, err error) {
	start := time.Now()
	defer func() {
		metrics.ObserveControlPlaneRequest(method, status, time.Since(start))
	}()

	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return 0, nil, fmt.Errorf("create request: %w", err)
	}

	token, err := c.tokens.Token(ctx)
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("User-Agent", version.UserAgent())
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	raw, err = io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("read response: %w", err)
	}
	return resp.StatusCode, raw, nil
}
