// Package justetf talks to justETF: the JSON listing API, the ETF profile
// page and the name search page.
package justetf

import (
	"net/http"
	"net/url"
)

const baseURL = "https://www.justetf.com"

// HTTPClient describes an HTTP client.
//
//go:generate mockgen -package=justetf_test -destination=mock_http_client_test.go -source=client.go HTTPClient
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// APIClient is a client for the justETF listing API.
type APIClient struct {
	// baseURL is the base URL for the API.
	baseURL string
	// httpClient is the HTTP client.
	httpClient HTTPClient
	// header contains additional headers to be sent with each request.
	header http.Header
	// query contains additional query parameters to be sent with each request.
	query url.Values
}

// APIClientOption is a configuration option for the API client.
type APIClientOption func(*APIClient)

// WithBaseURL sets the base URL for the API.
func WithBaseURL(baseURL string) APIClientOption {
	return func(c *APIClient) {
		c.baseURL = baseURL
	}
}

// WithHTTPClient sets the HTTP client for the API.
func WithHTTPClient(httpClient HTTPClient) APIClientOption {
	return func(c *APIClient) {
		c.httpClient = httpClient
	}
}

// NewAPIClient creates a new justETF API client. The listing is restricted
// to European UCITS ETFs.
func NewAPIClient(options ...APIClientOption) (*APIClient, error) {
	var apiClient = &APIClient{
		baseURL:    baseURL,
		httpClient: http.DefaultClient,
		header:     http.Header{"Accept": []string{"application/json"}},
		query: url.Values{
			"type":   []string{"ETF"},
			"ucits":  []string{"true"},
			"region": []string{"Europe"},
		},
	}
	for _, option := range options {
		option(apiClient)
	}
	return apiClient, nil
}
