package httpx

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	// DefaultUserAgent is sent on every request unless the request sets its own.
	DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	// DefaultAcceptLanguage prefers Italian pages, then English.
	DefaultAcceptLanguage = "it-IT,it;q=0.9,en-US;q=0.8,en;q=0.7"

	maxBody = 8 << 20
)

// HTTPClient describes an HTTP client.
//
//go:generate mockgen -package=httpx_test -destination=mock_http_client_test.go -source=httpx.go HTTPClient
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Gate is consulted before every request to a host.
type Gate interface {
	Wait(ctx context.Context, host string) error
}

// Client is the process-wide session: one connection pool, fixed default
// headers and a per-host pacing gate. It is built once and shared by every
// adapter and fetcher of a run.
type Client struct {
	HTTP      HTTPClient
	UserAgent string
	Headers   map[string]string
	Gate      Gate
}

func New(timeout time.Duration) *Client {
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: 5 * time.Second, KeepAlive: 30 * time.Second}).DialContext,
		MaxIdleConns:          20,
		MaxIdleConnsPerHost:   4,
		ForceAttemptHTTP2:     true,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   5 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		ResponseHeaderTimeout: 20 * time.Second,
	}
	return &Client{
		HTTP:      &http.Client{Timeout: timeout, Transport: transport},
		UserAgent: DefaultUserAgent,
		Headers:   map[string]string{"Accept-Language": DefaultAcceptLanguage},
	}
}

// NewWithDoer builds a session around any HTTPClient, typically a test double.
func NewWithDoer(doer HTTPClient) *Client {
	return &Client{
		HTTP:      doer,
		UserAgent: DefaultUserAgent,
		Headers:   map[string]string{"Accept-Language": DefaultAcceptLanguage},
	}
}

// StatusError is returned for non-2xx responses.
type StatusError struct {
	Method string
	URL    string
	Code   int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s -> %d", e.Method, e.URL, e.Code)
}

func (c *Client) Do(ctx context.Context, req *http.Request) (*http.Response, error) {
	if c.Gate != nil {
		if err := c.Gate.Wait(ctx, req.URL.Host); err != nil {
			return nil, err
		}
	}
	if c.UserAgent != "" && req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", c.UserAgent)
	}
	for k, v := range c.Headers {
		if req.Header.Get(k) == "" {
			req.Header.Set(k, v)
		}
	}
	return c.HTTP.Do(req)
}

// Fetch performs req and returns the body of a 2xx response.
func (c *Client) Fetch(ctx context.Context, req *http.Request) ([]byte, error) {
	resp, err := c.Do(ctx, req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 2<<10))
		return nil, &StatusError{Method: req.Method, URL: req.URL.String(), Code: resp.StatusCode}
	}
	b, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", req.URL.String(), err)
	}
	return b, nil
}

// GetText fetches addr and returns the body as a string.
func (c *Client) GetText(ctx context.Context, addr string, header http.Header) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, addr, http.NoBody)
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	copyHeader(req.Header, header)
	b, err := c.Fetch(ctx, req)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// GetJSON fetches addr and decodes the JSON body into v.
func (c *Client) GetJSON(ctx context.Context, addr string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, addr, http.NoBody)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	b, err := c.Fetch(ctx, req)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(b, v); err != nil {
		return fmt.Errorf("decode %s: %w", req.URL.Path, err)
	}
	return nil
}

// PostForm posts an url-encoded form and returns the body as a string.
func (c *Client) PostForm(ctx context.Context, addr string, form url.Values, header http.Header) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, addr, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	copyHeader(req.Header, header)
	b, err := c.Fetch(ctx, req)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func copyHeader(dst, src http.Header) {
	for k, vs := range src {
		for _, v := range vs {
			dst.Add(k, v)
		}
	}
}

// Doer exposes the session as a plain HTTPClient, so API clients built around
// that interface still pass through the gate and the default headers.
func (c *Client) Doer() HTTPClient { return sessionDoer{c: c} }

type sessionDoer struct{ c *Client }

func (d sessionDoer) Do(req *http.Request) (*http.Response, error) {
	return d.c.Do(req.Context(), req)
}
