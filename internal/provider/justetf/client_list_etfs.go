package justetf

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"maps"
	"net/http"
	"net/url"
	"strconv"

	"github.com/PaesslerAG/jsonpath"
)

// ETF is one entry of the listing API.
type ETF struct {
	Issuer       string `json:"issuer"`
	Name         string `json:"name"`
	ISIN         string `json:"isin"`
	Symbol       string `json:"symbol"`
	Exchange     string `json:"exchange"`
	Currency     string `json:"currency"`
	BaseCurrency string `json:"base_currency"`
	Hedged       string `json:"hedged"`
	Category     string `json:"category"`
}

// ProfileURL is the public profile page of the ETF.
func (e ETF) ProfileURL() string {
	return baseURL + "/en/etf-profile.html?isin=" + e.ISIN
}

// ErrUnexpectedShape is returned when neither the data list nor any symbol
// field can be found in a response.
var ErrUnexpectedShape = errors.New("unexpected response shape")

// ListETFs retrieves one page of the listing.
func (c *APIClient) ListETFs(ctx context.Context, page, limit int, opts ...APIClientOption) ([]ETF, error) {
	query := maps.Clone(c.query)
	query.Set("page", strconv.Itoa(page))
	query.Set("limit", strconv.Itoa(limit))
	return c.get(ctx, query, opts...)
}

// Search retrieves listing entries matching an ISIN, ticker or name.
func (c *APIClient) Search(ctx context.Context, term string, opts ...APIClientOption) ([]ETF, error) {
	query := maps.Clone(c.query)
	query.Set("query", term)
	return c.get(ctx, query, opts...)
}

func (c *APIClient) get(ctx context.Context, query url.Values, opts ...APIClientOption) ([]ETF, error) {
	var override = &APIClient{
		baseURL:    c.baseURL,
		httpClient: c.httpClient,
		header:     c.header.Clone(),
		query:      maps.Clone(c.query),
	}
	for _, opt := range opts {
		opt(override)
	}
	for k, vs := range override.query {
		if _, set := query[k]; !set {
			query[k] = vs
		}
	}

	addr := fmt.Sprintf("%s/api/etfs?%s", override.baseURL, query.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, addr, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header = override.header

	res, err := override.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("performing request: %w", err)
	}
	defer res.Body.Close()

	switch res.StatusCode {
	case http.StatusOK:
		break

	case http.StatusNotFound:
		return nil, nil

	case http.StatusTooManyRequests:
		return nil, fmt.Errorf("rate limited")

	default:
		return nil, fmt.Errorf("unexpected status code: %d", res.StatusCode)
	}

	b, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}
	var body any
	if err := json.Unmarshal(b, &body); err != nil {
		return nil, fmt.Errorf("decoding listing response: %w", err)
	}
	return DecodeListing(body)
}

// DecodeListing reads the "data" list of a listing response. When the list
// is missing it falls back to any "symbol" field found anywhere in the body.
func DecodeListing(body any) ([]ETF, error) {
	if data, err := jsonpath.Get("$.data", body); err == nil {
		list, ok := data.([]any)
		if !ok {
			return nil, fmt.Errorf("decoding data: %w", ErrUnexpectedShape)
		}
		etfs := make([]ETF, 0, len(list))
		for _, raw := range list {
			// {
			//   "issuer": "iShares",
			//   "name": "iShares Core MSCI World UCITS ETF USD (Acc)",
			//   "isin": "IE00B4L5Y983",
			//   "symbol": "SWDA",
			//   "exchange": "Borsa Italiana",
			//   "currency": "EUR",
			//   "baseCurrency": "USD",
			//   "hedged": false,
			//   "category": "Equity"
			// }
			item, ok := raw.(map[string]any)
			if !ok {
				continue
			}
			etfs = append(etfs, ETF{
				Issuer:       field(item, "issuer"),
				Name:         field(item, "name"),
				ISIN:         field(item, "isin"),
				Symbol:       field(item, "symbol"),
				Exchange:     field(item, "exchange"),
				Currency:     field(item, "currency"),
				BaseCurrency: field(item, "baseCurrency"),
				Hedged:       field(item, "hedged"),
				Category:     field(item, "category"),
			})
		}
		return etfs, nil
	}

	symbols, err := jsonpath.Get("$..symbol", body)
	if err != nil {
		return nil, fmt.Errorf("decoding symbols: %w", ErrUnexpectedShape)
	}
	list, _ := symbols.([]any)
	if len(list) == 0 {
		return nil, fmt.Errorf("decoding symbols: %w", ErrUnexpectedShape)
	}
	etfs := make([]ETF, 0, len(list))
	for _, s := range list {
		if sym := stringify(s); sym != "" {
			etfs = append(etfs, ETF{Symbol: sym})
		}
	}
	return etfs, nil
}

// field renders a JSON scalar as text; the API mixes strings, numbers and booleans.
func field(item map[string]any, key string) string {
	return stringify(item[key])
}

func stringify(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case bool:
		return strconv.FormatBool(x)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	}
	return fmt.Sprint(v)
}
