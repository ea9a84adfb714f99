package investing_test

import (
	"net/http"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"etfhistory/internal/httpx"
	"etfhistory/internal/httpx/httpxtest"
	"etfhistory/internal/instrument"
	"etfhistory/internal/provider/investing"
)

const searchPage = `<html><body><div class="js-inner-all-results-quotes-wrapper">
  <a href="/equities/ishares">Azioni</a>
  <a class="js-inner-all-results-quote-item" href="/etfs/ishares-msci-world---acc">
    <span class="second">SWDA</span><span class="third">ETF - Milano</span>
  </a>
</div></body></html>`

// results are embedded in a script block instead of anchors
const driftedSearch = `<html><body><script>window.__results = [{"html":"<div href=\"/etfs/ishares-msci-world---acc\">SWDA</div>"}]</script>
<div data-row='x' href="/etfs/ishares-msci-world---acc"></div></body></html>`

func TestETFLink(t *testing.T) {
	t.Parallel()

	got := investing.ETFLink(searchPage)
	require.Len(t, got, 1)
	assert.Equal(t, "ishares-msci-world---acc", got[0].CanonicalSymbol)
	assert.Equal(t, "https://it.investing.com/etfs/ishares-msci-world---acc-historical-data", got[0].DetailURL)

	assert.Empty(t, investing.ETFLink(driftedSearch))
}

func TestHrefScan(t *testing.T) {
	t.Parallel()

	got := investing.HrefScan(driftedSearch)
	require.NotEmpty(t, got)
	assert.Equal(t, "ishares-msci-world---acc", got[0].CanonicalSymbol)
}

func TestHistoricalURL(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "https://it.investing.com/etfs/x-historical-data", investing.HistoricalURL("/etfs/x"))
	assert.Equal(t, "https://it.investing.com/etfs/x-historical-data", investing.HistoricalURL("/etfs/x/"))
	assert.Equal(t, "https://it.investing.com/etfs/x-historical-data", investing.HistoricalURL("https://it.investing.com/etfs/x-historical-data"))
	assert.Equal(t, "x", investing.Slug("https://it.investing.com/etfs/x-historical-data"))
	assert.Empty(t, investing.Slug("/equities/x"))
}

func TestResolve_FallbackMarker(t *testing.T) {
	t.Parallel()

	doer := httpxtest.New().Handle(http.MethodGet, "/search/?q=SWDA", http.StatusOK, driftedSearch)
	adapter := investing.New(httpx.NewWithDoer(doer), zerolog.Nop())

	got, ok := adapter.Resolve(t.Context(), instrument.NewQuery("SWDA", "iShares MSCI World"))
	require.True(t, ok)
	assert.Equal(t, investing.Name, got.ProviderName)
	assert.Equal(t, "https://it.investing.com/etfs/ishares-msci-world---acc-historical-data", got.DetailURL)
	assert.Equal(t, "SWDA", got.QueryIdentifier)
}
