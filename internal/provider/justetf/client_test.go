package justetf_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"etfhistory/internal/provider/justetf"
)

var mockListing = map[string]any{
	"data": []any{
		map[string]any{
			"issuer":       "iShares",
			"name":         "iShares Core MSCI World UCITS ETF USD (Acc)",
			"isin":         "IE00B4L5Y983",
			"symbol":       "SWDA",
			"exchange":     "London Stock Exchange",
			"currency":     "USD",
			"baseCurrency": "USD",
			"hedged":       false,
			"category":     "Equity",
		},
		map[string]any{
			"issuer":   "iShares",
			"name":     "iShares Core MSCI World UCITS ETF USD (Acc)",
			"isin":     "IE00B4L5Y983",
			"symbol":   "SWDA",
			"exchange": "Borsa Italiana",
			"currency": "EUR",
			"category": "Equity",
		},
	},
}

func jsonResponse(t *testing.T, status int, v any) *http.Response {
	t.Helper()
	buffer := &bytes.Buffer{}
	require.NoError(t, json.NewEncoder(buffer).Encode(v))
	return &http.Response{StatusCode: status, Body: io.NopCloser(buffer)}
}

func TestNewAPIClient(t *testing.T) {
	t.Parallel()

	client, err := justetf.NewAPIClient()
	require.NoError(t, err)
	require.NotNil(t, client)
}

func TestListETFs(t *testing.T) {
	t.Parallel()

	// Arrange: create a mock controller
	ctrl := gomock.NewController(t)

	// Arrange: create a mock HTTP client
	httpClient := NewMockHTTPClient(ctrl)

	// Assert: stub the Do method
	httpClient.EXPECT().
		Do(gomock.Any()).
		DoAndReturn(func(req *http.Request) (*http.Response, error) {
			require.Equal(t, http.MethodGet, req.Method)
			require.Equal(t, "/api/etfs", req.URL.Path)
			require.Equal(t, "2", req.URL.Query().Get("page"))
			require.Equal(t, "100", req.URL.Query().Get("limit"))
			require.Equal(t, "true", req.URL.Query().Get("ucits"))
			require.Equal(t, "Europe", req.URL.Query().Get("region"))
			require.Equal(t, "application/json", req.Header.Get("Accept"))
			return jsonResponse(t, http.StatusOK, mockListing), nil
		}).
		Times(1)

	// Arrange: setup a new client
	client, err := justetf.NewAPIClient(justetf.WithHTTPClient(httpClient))
	require.NoError(t, err)

	// Act: call ListETFs
	etfs, err := client.ListETFs(t.Context(), 2, 100)
	require.NoError(t, err)

	// Assert: rows are decoded, booleans are rendered as text
	require.Len(t, etfs, 2)
	require.Equal(t, "SWDA", etfs[0].Symbol)
	require.Equal(t, "iShares", etfs[0].Issuer)
	require.Equal(t, "false", etfs[0].Hedged)
	require.Equal(t, "Borsa Italiana", etfs[1].Exchange)
	require.Equal(t, "", etfs[1].BaseCurrency)
}

func TestSearch_WithBaseURLKeepsDefaults(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	httpClient := NewMockHTTPClient(ctrl)
	httpClient.EXPECT().
		Do(gomock.Any()).
		DoAndReturn(func(req *http.Request) (*http.Response, error) {
			require.Equal(t, "mirror.example", req.URL.Host)
			require.Equal(t, "IE00B4L5Y983", req.URL.Query().Get("query"))
			require.Equal(t, "true", req.URL.Query().Get("ucits"))
			require.Equal(t, "application/json", req.Header.Get("Accept"))
			return jsonResponse(t, http.StatusOK, mockListing), nil
		}).
		Times(1)

	client, err := justetf.NewAPIClient(
		justetf.WithHTTPClient(httpClient),
		justetf.WithBaseURL("https://mirror.example"),
	)
	require.NoError(t, err)

	etfs, err := client.Search(t.Context(), "IE00B4L5Y983")
	require.NoError(t, err)
	require.Len(t, etfs, 2)
}

func TestListETFs_ErrPerformingRequest(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	httpClient := NewMockHTTPClient(ctrl)
	httpClient.EXPECT().
		Do(gomock.Any()).
		Return(nil, fmt.Errorf("error")).
		Times(1)

	client, err := justetf.NewAPIClient(justetf.WithHTTPClient(httpClient))
	require.NoError(t, err)

	etfs, err := client.ListETFs(t.Context(), 1, 100)
	require.Error(t, err)
	require.Nil(t, etfs)
}

func TestListETFs_ErrCreatingRequest(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	httpClient := NewMockHTTPClient(ctrl)
	httpClient.EXPECT().Do(gomock.Any()).Times(0)

	client, err := justetf.NewAPIClient(justetf.WithHTTPClient(httpClient))
	require.NoError(t, err)

	etfs, err := client.ListETFs(t.Context(), 1, 100, justetf.WithBaseURL(string([]rune{0x7f})))
	require.Error(t, err)
	require.Nil(t, etfs)
}

func TestListETFs_ErrUnexpectedStatusCode(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	httpClient := NewMockHTTPClient(ctrl)
	httpClient.EXPECT().
		Do(gomock.Any()).
		Return(&http.Response{StatusCode: http.StatusInternalServerError, Body: io.NopCloser(bytes.NewReader(nil))}, nil).
		Times(1)

	client, err := justetf.NewAPIClient(justetf.WithHTTPClient(httpClient))
	require.NoError(t, err)

	etfs, err := client.ListETFs(t.Context(), 1, 100)
	require.Error(t, err)
	require.Nil(t, etfs)
}

func TestDecodeListing_SymbolFallback(t *testing.T) {
	t.Parallel()

	// the data list moved under another key
	var body any
	require.NoError(t, json.Unmarshal([]byte(`{"result":{"items":[{"symbol":"SWDA"},{"symbol":"EUNL"}]}}`), &body))

	etfs, err := justetf.DecodeListing(body)
	require.NoError(t, err)
	require.Len(t, etfs, 2)
	require.ElementsMatch(t, []string{"SWDA", "EUNL"}, []string{etfs[0].Symbol, etfs[1].Symbol})

	require.NoError(t, json.Unmarshal([]byte(`{"status":"ok"}`), &body))
	_, err = justetf.DecodeListing(body)
	require.ErrorIs(t, err, justetf.ErrUnexpectedShape)
}
