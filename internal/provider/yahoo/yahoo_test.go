package yahoo_test

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"etfhistory/internal/httpx"
	"etfhistory/internal/httpx/httpxtest"
	"etfhistory/internal/instrument"
	"etfhistory/internal/provider"
	"etfhistory/internal/provider/yahoo"
)

const searchBody = `{"quotes":[
  {"symbol":"IWDA.AS","exchange":"AMS","exchDisp":"Amsterdam","longname":"iShares Core MSCI World UCITS ETF","quoteType":"ETF"},
  {"symbol":"SWDA.MI","exchange":"MIL","exchDisp":"Milan","longname":"iShares Core MSCI World UCITS ETF","quoteType":"ETF"},
  {"symbol":"SWDA.L","exchange":"LSE","exchDisp":"London","longname":"iShares Core MSCI World UCITS ETF","quoteType":"ETF"}
],"news":[]}`

// quotes renamed, symbols still present
const driftedSearch = `{"results":{"items":[{"symbol":"SWDA.MI","kind":"fund"}]}}`

const liveChart = `{"chart":{"result":[{"meta":{"currency":"EUR","symbol":"X","regularMarketPrice":101.2}}],"error":null}}`
const deadChart = `{"chart":{"result":[{"meta":{"currency":"EUR","symbol":"X"}}],"error":null}}`

type countingPacer struct{ n int }

func (p *countingPacer) Pace(context.Context) error { p.n++; return nil }

func TestSearchQuotes_TieBreak(t *testing.T) {
	t.Parallel()

	cands := yahoo.SearchQuotes(searchBody)
	require.Len(t, cands, 3)

	got, ok := provider.DefaultHomeMarket.Pick(cands)
	require.True(t, ok)
	assert.Equal(t, "SWDA.MI", got.CanonicalSymbol)
	assert.Equal(t, "Milan", got.ExchangeHint)

	// with no home listing the provider order decides
	got, ok = provider.DefaultHomeMarket.Pick([]instrument.Resolved{cands[0], cands[2]})
	require.True(t, ok)
	assert.Equal(t, "IWDA.AS", got.CanonicalSymbol)
}

func TestSymbolScan(t *testing.T) {
	t.Parallel()

	assert.Empty(t, yahoo.SearchQuotes(driftedSearch))
	got := yahoo.SymbolScan(driftedSearch)
	require.Len(t, got, 1)
	assert.Equal(t, "SWDA.MI", got[0].CanonicalSymbol)
}

func TestParseSuffixes(t *testing.T) {
	t.Parallel()

	assert.Equal(t, []string{".MI", ".AS", ".PA", ".DE", ".IR", ""}, yahoo.ParseSuffixes(yahoo.DefaultSuffixOrder))
	assert.Equal(t, []string{".MI", "", ".DE"}, yahoo.ParseSuffixes(".MI,, .mi ,DE,"))
}

func TestGuesser_Candidates(t *testing.T) {
	t.Parallel()

	g := yahoo.NewGuesser(nil, yahoo.ParseSuffixes(yahoo.DefaultSuffixOrder), nil, zerolog.Nop())
	assert.Equal(t, []string{"SWDA.MI", "SWDA.AS", "SWDA.PA", "SWDA.DE", "SWDA.IR", "SWDA"}, g.Candidates("swda"))
	assert.Equal(t, []string{"EUNL.DE", "EUNL.MI", "EUNL.AS", "EUNL.PA", "EUNL.IR", "EUNL"}, g.Candidates("EUNL.DE"))
}

func TestGuesser_ShortCircuits(t *testing.T) {
	t.Parallel()

	// Arrange: Milan has no quote, Amsterdam does
	doer := httpxtest.New().
		Handle(http.MethodGet, "/chart/XYZ.MI?", http.StatusOK, deadChart).
		Handle(http.MethodGet, "/chart/XYZ.AS?", http.StatusOK, liveChart).
		Handle(http.MethodGet, "/chart/XYZ.PA?", http.StatusOK, liveChart)
	pacer := &countingPacer{}
	g := yahoo.NewGuesser(httpx.NewWithDoer(doer), yahoo.ParseSuffixes(yahoo.DefaultSuffixOrder), pacer, zerolog.Nop())

	// Act
	sym, ok := g.Guess(t.Context(), "XYZ")

	// Assert
	require.True(t, ok)
	assert.Equal(t, "XYZ.AS", sym)
	assert.Equal(t, 0, doer.Count("/chart/XYZ.PA"))
	assert.Equal(t, 1, pacer.n)
}

func TestGuesser_NothingLive(t *testing.T) {
	t.Parallel()

	doer := httpxtest.New()
	g := yahoo.NewGuesser(httpx.NewWithDoer(doer), []string{".MI", ""}, nil, zerolog.Nop())

	_, ok := g.Guess(t.Context(), "XYZ")
	assert.False(t, ok)
	assert.Len(t, doer.Calls(), 2)
}

func TestAdapter_SearchThenGuess(t *testing.T) {
	t.Parallel()

	doer := httpxtest.New().
		Handle(http.MethodGet, "/v1/finance/search?q=SWDA", http.StatusOK, searchBody).
		Handle(http.MethodGet, "/v1/finance/search?q=XYZ", http.StatusOK, `{"quotes":[]}`).
		Handle(http.MethodGet, "/chart/XYZ.MI?", http.StatusOK, liveChart)
	client := httpx.NewWithDoer(doer)
	guess := yahoo.NewGuesser(client, yahoo.ParseSuffixes(yahoo.DefaultSuffixOrder), nil, zerolog.Nop())
	adapter := yahoo.New(client, zerolog.Nop(), provider.DefaultHomeMarket, guess)

	got, ok := adapter.Resolve(t.Context(), instrument.NewQuery("SWDA", "World"))
	require.True(t, ok)
	assert.Equal(t, "SWDA.MI", got.CanonicalSymbol)
	assert.Equal(t, yahoo.Name, got.ProviderName)
	assert.Equal(t, "https://finance.yahoo.com/quote/SWDA.MI/history/", got.DetailURL)

	got, ok = adapter.Resolve(t.Context(), instrument.NewQuery("XYZ", "Test ETF"))
	require.True(t, ok)
	assert.Equal(t, "XYZ.MI", got.CanonicalSymbol)
	assert.Equal(t, "XYZ", got.QueryIdentifier)
}

type isinLookup struct {
	syms []string
	err  error
	got  []string
}

func (l *isinLookup) LookupISIN(_ context.Context, isin string, _ int) ([]string, error) {
	l.got = append(l.got, isin)
	return l.syms, l.err
}

func TestAdapter_ISINLookupAfterSearch(t *testing.T) {
	t.Parallel()

	doer := httpxtest.New().Handle(http.MethodGet, "/v1/finance/search?", http.StatusOK, `{"quotes":[]}`)
	client := httpx.NewWithDoer(doer)
	adapter := yahoo.New(client, zerolog.Nop(), provider.DefaultHomeMarket, nil)
	lookup := &isinLookup{syms: []string{"IWDA.AS", "SWDA.MI"}}
	adapter.Lookup = lookup

	got, ok := adapter.Resolve(t.Context(), instrument.NewQuery("ie00b4l5y983", "World"))
	require.True(t, ok)
	assert.Equal(t, "SWDA.MI", got.CanonicalSymbol)
	assert.Equal(t, yahoo.HistoryURL("SWDA.MI"), got.DetailURL)
	assert.Equal(t, yahoo.Name, got.ProviderName)
	assert.Equal(t, []string{"IE00B4L5Y983"}, lookup.got)

	// tickers never reach the lookup
	_, ok = adapter.Resolve(t.Context(), instrument.NewQuery("SWDA", "World"))
	assert.False(t, ok)
	assert.Len(t, lookup.got, 1)
}

func TestAdapter_ISINLookupFailure(t *testing.T) {
	t.Parallel()

	adapter := yahoo.New(httpx.NewWithDoer(httpxtest.New()), zerolog.Nop(), nil, nil)
	adapter.Lookup = &isinLookup{err: errors.New("crumb rejected")}

	_, ok := adapter.Resolve(t.Context(), instrument.NewQuery("IE00B4L5Y983", ""))
	assert.False(t, ok)

	adapter.Lookup = &isinLookup{}
	_, ok = adapter.Resolve(t.Context(), instrument.NewQuery("IE00B4L5Y983", ""))
	assert.False(t, ok)
}

func TestKeywordSector(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "Euro Stoxx 50", yahoo.KeywordSector("Xtrackers Euro Stoxx 50 UCITS ETF"))
	assert.Equal(t, "Gold", yahoo.KeywordSector("WisdomTree Physical Gold"))
	assert.Equal(t, "Emerging Markets", yahoo.KeywordSector("iShares Core MSCI EMERGING MARKETS IMI"))
	assert.Equal(t, "Ftse 100", yahoo.KeywordSector("Vanguard FTSE 100 UCITS ETF"))
	assert.Empty(t, yahoo.KeywordSector("iShares Core MSCI World"))
}
