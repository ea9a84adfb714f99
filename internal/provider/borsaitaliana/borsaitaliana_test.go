package borsaitaliana_test

import (
	"net/http"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"etfhistory/internal/httpx"
	"etfhistory/internal/httpx/httpxtest"
	"etfhistory/internal/instrument"
	"etfhistory/internal/provider/borsaitaliana"
)

const labelledPage = `<html><body>
<table class="m-table">
  <tr><td><strong>Codice Isin</strong></td><td>IE00B4L5Y983</td></tr>
  <tr><td><strong>Codice Alfanumerico</strong></td><td>swda</td></tr>
  <tr><td><strong>Valuta di Denominazione</strong></td><td>EUR</td></tr>
</table></body></html>`

// no labelled cell, the code only appears inside prose
const driftedPage = `<html><body><div class="summary">
  <p>Strumento negoziato come</p><p>SWDA.MI</p><p>sul segmento ETFplus</p>
</div></body></html>`

func TestLabelledCode(t *testing.T) {
	t.Parallel()

	got := borsaitaliana.LabelledCode(labelledPage)
	require.Len(t, got, 1)
	assert.Equal(t, "SWDA.MI", got[0].CanonicalSymbol)
	assert.Equal(t, "EUR", got[0].CurrencyHint)
	assert.Equal(t, borsaitaliana.Exchange, got[0].ExchangeHint)

	assert.Empty(t, borsaitaliana.LabelledCode(driftedPage))
}

func TestSymbolScan(t *testing.T) {
	t.Parallel()

	got := borsaitaliana.SymbolScan(driftedPage)
	require.Len(t, got, 1)
	assert.Equal(t, "SWDA.MI", got[0].CanonicalSymbol)
}

func TestResolve_FallbackMarker(t *testing.T) {
	t.Parallel()

	// Arrange: the page lost its primary marker
	doer := httpxtest.New().Handle(http.MethodGet, "/borsa/etf/scheda/IE00B4L5Y983.html", http.StatusOK, driftedPage)
	adapter := borsaitaliana.New(httpx.NewWithDoer(doer), zerolog.Nop())

	// Act
	got, ok := adapter.Resolve(t.Context(), instrument.NewQuery("IE00B4L5Y983", "iShares Core MSCI World"))

	// Assert
	require.True(t, ok)
	assert.Equal(t, "SWDA.MI", got.CanonicalSymbol)
	assert.Equal(t, borsaitaliana.Name, got.ProviderName)
	assert.Equal(t, "IE00B4L5Y983", got.QueryIdentifier)
}

func TestResolve_SkipsTickers(t *testing.T) {
	t.Parallel()

	doer := httpxtest.New()
	adapter := borsaitaliana.New(httpx.NewWithDoer(doer), zerolog.Nop())

	_, ok := adapter.Resolve(t.Context(), instrument.NewQuery("SWDA", ""))
	assert.False(t, ok)
	assert.Empty(t, doer.Calls())
}

func TestResolve_NotFound(t *testing.T) {
	t.Parallel()

	doer := httpxtest.New()
	adapter := borsaitaliana.New(httpx.NewWithDoer(doer), zerolog.Nop())

	_, ok := adapter.Resolve(t.Context(), instrument.NewQuery("IE00B4L5Y983", ""))
	assert.False(t, ok)
	assert.Equal(t, 1, doer.Count("scheda"))
}
