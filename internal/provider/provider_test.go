package provider_test

import (
	"net/http"
	"regexp"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"etfhistory/internal/httpx"
	"etfhistory/internal/httpx/httpxtest"
	"etfhistory/internal/instrument"
	"etfhistory/internal/provider"
)

func TestHomeMarket_PrefersHomeVenue(t *testing.T) {
	t.Parallel()

	cands := []instrument.Resolved{
		{CanonicalSymbol: "SWDA.L", ExchangeHint: "LSE"},
		{CanonicalSymbol: "SWDA.MI", ExchangeHint: "Milan"},
		{CanonicalSymbol: "EUNL.DE", ExchangeHint: "XETRA"},
	}

	got, ok := provider.DefaultHomeMarket.Pick(cands)
	require.True(t, ok)
	assert.Equal(t, "SWDA.MI", got.CanonicalSymbol)

	// venue name alone is enough
	got, ok = provider.DefaultHomeMarket.Pick([]instrument.Resolved{
		{CanonicalSymbol: "SWDA", ExchangeHint: "LSE"},
		{CanonicalSymbol: "SWDA", ExchangeHint: "Borsa Italiana"},
	})
	require.True(t, ok)
	assert.Equal(t, "Borsa Italiana", got.ExchangeHint)
}

func TestHomeMarket_FallsBackToProviderOrder(t *testing.T) {
	t.Parallel()

	got, ok := provider.DefaultHomeMarket.Pick([]instrument.Resolved{
		{CanonicalSymbol: ""},
		{CanonicalSymbol: "EUNL.DE"},
		{CanonicalSymbol: "SWDA.L"},
	})
	require.True(t, ok)
	assert.Equal(t, "EUNL.DE", got.CanonicalSymbol)

	_, ok = provider.DefaultHomeMarket.Pick(nil)
	assert.False(t, ok)
}

func TestHomeMarket_IsConfigurable(t *testing.T) {
	t.Parallel()

	picker := provider.HomeMarket{Suffixes: []string{".de"}}
	got, ok := picker.Pick([]instrument.Resolved{{CanonicalSymbol: "SWDA.MI"}, {CanonicalSymbol: "EUNL.DE"}})
	require.True(t, ok)
	assert.Equal(t, "EUNL.DE", got.CanonicalSymbol)
}

func TestChain_FallbackOrder(t *testing.T) {
	t.Parallel()

	re := regexp.MustCompile(`\b[A-Z]{4}\.MI\b`)
	chain := provider.Chain{
		{Name: "never", Extract: func(string) []instrument.Resolved { return nil }},
		{Name: "scan", Extract: func(body string) []instrument.Resolved {
			return provider.Symbols(provider.ScanSymbols(re, body), "", "")
		}},
	}

	name, cands := chain.Run("listed as SWDA.MI and again SWDA.MI, also CSSPX.MI")
	assert.Equal(t, "scan", name)
	require.Len(t, cands, 1)
	assert.Equal(t, "SWDA.MI", cands[0].CanonicalSymbol)

	name, cands = chain.Run("nothing here")
	assert.Empty(t, name)
	assert.Empty(t, cands)
}

func TestLabelledValue(t *testing.T) {
	t.Parallel()

	doc := provider.Document(`<table>
		<tr><td>ISIN</td><td>IE00B4L5Y983</td></tr>
		<tr><td><span>Ticker:</span></td><td>SWDA</td></tr>
	</table>
	<dl><dt>Exchange</dt><dd>Borsa Italiana</dd></dl>`)

	assert.Equal(t, "SWDA", provider.LabelledValue(doc.Selection, "Ticker"))
	assert.Equal(t, "Borsa Italiana", provider.LabelledValue(doc.Selection, "Exchange"))
	assert.Empty(t, provider.LabelledValue(doc.Selection, "Currency"))
}

func TestPage_FailsSoft(t *testing.T) {
	t.Parallel()

	doer := httpxtest.New().
		Handle(http.MethodGet, "/ok", http.StatusOK, "<p>SWDA.MI</p>").
		Handle(http.MethodGet, "/down", http.StatusInternalServerError, "").
		Fail(http.MethodGet, "/refused")

	re := regexp.MustCompile(`\b[A-Z]{4}\.MI\b`)
	page := func(path string) *provider.Page {
		return &provider.Page{
			ProviderName: "test",
			Client:       httpx.NewWithDoer(doer),
			Target:       func(instrument.Query) (string, bool) { return "https://example.com" + path, true },
			Chain: provider.Chain{{Name: "scan", Extract: func(b string) []instrument.Resolved {
				return provider.Symbols(provider.ScanSymbols(re, b), "", "")
			}}},
			Log: zerolog.Nop(),
		}
	}
	q := instrument.NewQuery("IE00B4L5Y983", "iShares Core MSCI World")

	got, ok := page("/ok").Resolve(t.Context(), q)
	require.True(t, ok)
	assert.Equal(t, "SWDA.MI", got.CanonicalSymbol)
	assert.Equal(t, "test", got.ProviderName)
	assert.Equal(t, "iShares Core MSCI World", got.DisplayName)
	assert.Equal(t, "IE00B4L5Y983", got.QueryIdentifier)
	assert.Equal(t, "https://example.com/ok", got.DetailURL)

	_, ok = page("/down").Resolve(t.Context(), q)
	assert.False(t, ok)
	_, ok = page("/refused").Resolve(t.Context(), q)
	assert.False(t, ok)
}

func TestSymbols_LabelsOnlyTheVenueSuffix(t *testing.T) {
	t.Parallel()

	got := provider.Symbols([]string{"EUNL.DE", "SWDA.MI", "eunm.de"}, "Xetra", ".DE")
	require.Len(t, got, 3)
	assert.Equal(t, "Xetra", got[0].ExchangeHint)
	assert.Empty(t, got[1].ExchangeHint)
	assert.Equal(t, "Xetra", got[2].ExchangeHint)

	for _, r := range provider.Symbols([]string{"A.MI", "B"}, "Any", "") {
		assert.Equal(t, "Any", r.ExchangeHint)
	}
}
