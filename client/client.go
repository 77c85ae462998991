// Package client fetches monitoring payloads over HTTP and exposes them as
// producers for freshness.Fetch.
package client

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/unkn0wn-root/freshness/codec"
)

// Client talks to the monitoring HTTP API.
type Client struct {
	baseURL   *url.URL
	http      *http.Client
	userAgent string
	header    http.Header
	maxBody   int
}

const (
	defaultAPIBase   = "127.0.0.1:8080"
	defaultUserAgent = "freshness-monitor/0.1"
	requestTimeout   = 10 * time.Second
	defaultMaxBody   = 8 << 20
)

type Option func(*Client)

// WithHTTPClient replaces the default client (10s timeout).
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		if h != nil {
			c.http = h
		}
	}
}

// WithUserAgent overrides the User-Agent header; blank values are ignored.
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		if ua = strings.TrimSpace(ua); ua != "" {
			c.userAgent = ua
		}
	}
}

// WithHeader adds a header sent with every request.
func WithHeader(key, value string) Option {
	return func(c *Client) { c.header.Add(key, value) }
}

// WithMaxBodySize limits response bodies; n <= 0 disables the limit.
func WithMaxBodySize(n int) Option {
	return func(c *Client) { c.maxBody = n }
}

// New builds a Client for apiBase (host:port or URL).
func New(apiBase string, opts ...Option) (*Client, error) {
	base, err := parseBaseURL(apiBase)
	if err != nil {
		return nil, err
	}
	c := &Client{
		baseURL:   base,
		http:      &http.Client{Timeout: requestTimeout},
		userAgent: defaultUserAgent,
		header:    make(http.Header),
		maxBody:   defaultMaxBody,
	}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

// BaseURL returns the normalized API base.
func (c *Client) BaseURL() string { return c.baseURL.String() }

// Get fetches path and decodes the body as V according to its Content-Type.
// path is in escaped form, so segments built with url.PathEscape are sent as is.
func Get[V any](ctx context.Context, c *Client, path string, query url.Values) (V, error) {
	var zero V
	if c == nil {
		return zero, fmt.Errorf("client is nil")
	}
	rel, err := url.Parse(path)
	if err != nil {
		return zero, fmt.Errorf("parse path %q: %w", path, err)
	}
	rel.RawQuery = query.Encode()
	ct, body, err := c.get(ctx, rel)
	if err != nil {
		return zero, err
	}
	inner, err := codec.ForContentType[V](ct)
	if err != nil {
		return zero, fmt.Errorf("api %s: %w", rel.Path, err)
	}
	v, err := codec.LimitCodec[V]{Inner: inner, MaxDecode: c.maxBody}.Decode(body)
	if err != nil {
		return zero, fmt.Errorf("decode response: %w", err)
	}
	return v, nil
}

// Producer returns a producer that fetches path on every call.
func Producer[V any](c *Client, path string, query url.Values) func(context.Context) (V, error) {
	return func(ctx context.Context) (V, error) {
		return Get[V](ctx, c, path, query)
	}
}

func (c *Client) get(ctx context.Context, rel *url.URL) (string, []byte, error) {
	reqURL := c.baseURL.ResolveReference(rel)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL.String(), nil)
	if err != nil {
		return "", nil, fmt.Errorf("create request: %w", err)
	}
	for k, vs := range c.header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	req.Header.Set("Accept", codec.Accept)
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", nil, fmt.Errorf("execute request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 400 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", nil, &StatusError{Path: rel.Path, Code: resp.StatusCode, Body: strings.TrimSpace(string(snippet))}
	}

	var r io.Reader = resp.Body
	if c.maxBody > 0 {
		// one extra byte lets the codec see that the limit was exceeded
		r = io.LimitReader(resp.Body, int64(c.maxBody)+1)
	}
	body, err := io.ReadAll(r)
	if err != nil {
		return "", nil, fmt.Errorf("read response: %w", err)
	}
	return resp.Header.Get("Content-Type"), body, nil
}

func parseBaseURL(apiBase string) (*url.URL, error) {
	trimmed := strings.TrimSpace(apiBase)
	if trimmed == "" {
		trimmed = defaultAPIBase
	}
	if !strings.Contains(trimmed, "://") {
		trimmed = "http://" + trimmed
	}
	u, err := url.Parse(trimmed)
	if err != nil {
		return nil, fmt.Errorf("parse api_base %q: %w", apiBase, err)
	}
	u.Path = ""
	u.RawQuery = ""
	u.Fragment = ""
	return u, nil
}
