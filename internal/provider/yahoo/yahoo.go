// Package yahoo resolves identifiers to Yahoo Finance symbols, through the
// search API first and by probing venue suffixes after.
package yahoo

import (
	"context"
	"encoding/json"
	"net/url"
	"strings"

	"github.com/PaesslerAG/jsonpath"
	"github.com/rs/zerolog"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"etfhistory/internal/httpx"
	"etfhistory/internal/instrument"
	"etfhistory/internal/provider"
)

const (
	Name = "yahoo"
	// DefaultSuffixOrder favours Milan, the trailing empty entry is the bare ticker.
	DefaultSuffixOrder = ".MI,.AS,.PA,.DE,.IR,"
)

// searchResponse is the part of the search API we read.
type searchResponse struct {
	Quotes []struct {
		Symbol    string `json:"symbol"`
		Exchange  string `json:"exchange"`
		ExchDisp  string `json:"exchDisp"`
		LongName  string `json:"longname"`
		ShortName string `json:"shortname"`
		QuoteType string `json:"quoteType"`
	} `json:"quotes"`
}

// ISINLookup lists Yahoo symbols for an ISIN.
type ISINLookup interface {
	LookupISIN(ctx context.Context, isin string, n int) ([]string, error)
}

// lookupLimit bounds the ISIN lookup answers handed to the picker.
const lookupLimit = 10

// Adapter is the search API, then the ISIN lookup for ISIN queries, with
// the suffix guesser as its last resort.
type Adapter struct {
	Search *provider.Page
	Lookup ISINLookup
	Guess  *Guesser
	Log    zerolog.Logger
}

// New builds the adapter. The picker settles multi-listing search answers.
func New(client *httpx.Client, log zerolog.Logger, picker provider.Picker, guess *Guesser) *Adapter {
	log = log.With().Str("provider", Name).Logger()
	return &Adapter{
		Search: &provider.Page{
			ProviderName: Name,
			Client:       client,
			Target: func(q instrument.Query) (string, bool) {
				if q.RawIdentifier == "" {
					return "", false
				}
				return searchURL + "?q=" + url.QueryEscape(q.RawIdentifier) + "&quotesCount=10&newsCount=0", true
			},
			Chain: provider.Chain{
				{Name: "quotes", Extract: SearchQuotes},
				{Name: "symbol-scan", Extract: SymbolScan},
			},
			Picker: picker,
			Log:    log,
		},
		Guess: guess,
		Log:   log,
	}
}

func (a *Adapter) Name() string { return Name }

func (a *Adapter) Resolve(ctx context.Context, q instrument.Query) (instrument.Resolved, bool) {
	if r, ok := a.Search.Resolve(ctx, q); ok {
		if r.DetailURL != "" && strings.HasPrefix(r.DetailURL, searchURL) {
			r.DetailURL = HistoryURL(r.CanonicalSymbol)
		}
		return r, true
	}
	if r, ok := a.lookup(ctx, q); ok {
		return r, true
	}
	if a.Guess == nil || q.Kind() != instrument.KindTicker {
		return instrument.Resolved{}, false
	}
	sym, ok := a.Guess.Guess(ctx, q.RawIdentifier)
	if !ok {
		return instrument.Resolved{}, false
	}
	r := instrument.Resolved{CanonicalSymbol: sym, DetailURL: HistoryURL(sym)}
	return r.Complete(q, Name), true
}

func (a *Adapter) lookup(ctx context.Context, q instrument.Query) (instrument.Resolved, bool) {
	if a.Lookup == nil || q.Kind() != instrument.KindISIN {
		return instrument.Resolved{}, false
	}
	syms, err := a.Lookup.LookupISIN(ctx, strings.ToUpper(q.RawIdentifier), lookupLimit)
	if err != nil {
		a.Log.Debug().Err(err).Str("isin", q.RawIdentifier).Msg("isin lookup failed")
		return instrument.Resolved{}, false
	}
	cands := make([]instrument.Resolved, 0, len(syms))
	for _, s := range syms {
		cands = append(cands, instrument.Resolved{CanonicalSymbol: s, DetailURL: HistoryURL(s)})
	}
	var picker provider.Picker = provider.First{}
	if a.Search != nil && a.Search.Picker != nil {
		picker = a.Search.Picker
	}
	r, ok := picker.Pick(cands)
	if !ok {
		return instrument.Resolved{}, false
	}
	return r.Complete(q, Name), true
}

// SearchQuotes decodes the quotes list, dropping non-tradable entries.
func SearchQuotes(body string) []instrument.Resolved {
	var resp searchResponse
	if err := json.Unmarshal([]byte(body), &resp); err != nil {
		return nil
	}
	var out []instrument.Resolved
	for _, q := range resp.Quotes {
		switch strings.ToUpper(q.QuoteType) {
		case "ETF", "EQUITY", "MUTUALFUND", "INDEX", "":
		default:
			continue
		}
		if q.Symbol == "" {
			continue
		}
		name := q.LongName
		if name == "" {
			name = q.ShortName
		}
		exch := q.ExchDisp
		if exch == "" {
			exch = q.Exchange
		}
		out = append(out, instrument.Resolved{
			CanonicalSymbol: q.Symbol,
			ExchangeHint:    exch,
			DisplayName:     name,
			SectorHint:      KeywordSector(name),
		})
	}
	return out
}

// SymbolScan collects every "symbol" field anywhere in the body.
func SymbolScan(body string) []instrument.Resolved {
	var v any
	if err := json.Unmarshal([]byte(body), &v); err != nil {
		return nil
	}
	found, err := jsonpath.Get("$..symbol", v)
	if err != nil {
		return nil
	}
	list, _ := found.([]any)
	var out []instrument.Resolved
	for _, s := range list {
		if sym, ok := s.(string); ok && sym != "" {
			out = append(out, instrument.Resolved{CanonicalSymbol: sym})
		}
	}
	return out
}

var sectorKeywords = []string{
	"banks", "oil", "gold", "copper", "coffee",
	"euro stoxx 50", "dax", "emerging markets", "bund", "btp", "ftse 100",
}

// KeywordSector derives a sector from well known words of a fund name, or "".
func KeywordSector(name string) string {
	low := strings.ToLower(name)
	for _, k := range sectorKeywords {
		if strings.Contains(low, k) {
			return cases.Title(language.English).String(k)
		}
	}
	return ""
}
