package justetf

import (
	"context"
	"regexp"
	"strings"

	"github.com/rs/zerolog"

	"etfhistory/internal/httpx"
	"etfhistory/internal/instrument"
	"etfhistory/internal/provider"
)

const (
	// Name is the profile page adapter.
	Name = "justetf"
	// APIName is the listing API adapter.
	APIName = "justetf-api"
	// SearchName is the name search adapter.
	SearchName = "justetf-search"
)

var (
	tickerRe = regexp.MustCompile(`Ticker[:\s]+([A-Z0-9]{2,6})\b`)
	codeRe   = regexp.MustCompile(`^[A-Z0-9]{2,6}(\.[A-Z]{1,3})?$`)
)

// NewProfile returns the adapter reading the ETF profile page of an ISIN.
func NewProfile(client *httpx.Client, log zerolog.Logger, picker provider.Picker) *provider.Page {
	return &provider.Page{
		ProviderName: Name,
		Client:       client,
		Target: func(q instrument.Query) (string, bool) {
			if q.Kind() != instrument.KindISIN {
				return "", false
			}
			return baseURL + "/en/etf-profile.html?isin=" + strings.ToUpper(q.RawIdentifier), true
		},
		Chain: provider.Chain{
			{Name: "labelled-ticker", Extract: LabelledTicker},
			{Name: "ticker-scan", Extract: TickerScan},
		},
		Picker: picker,
		Log:    log.With().Str("provider", Name).Logger(),
	}
}

// LabelledTicker reads the elements following the "Ticker" and "Exchange" labels.
func LabelledTicker(body string) []instrument.Resolved {
	doc := provider.Document(body)
	ticker := strings.ToUpper(provider.LabelledValue(doc.Selection, "Ticker", "Ticker symbol"))
	if !codeRe.MatchString(ticker) {
		return nil
	}
	return []instrument.Resolved{{
		CanonicalSymbol: ticker,
		ExchangeHint:    provider.LabelledValue(doc.Selection, "Exchange", "Stock exchange", "Listing"),
		DisplayName:     strings.TrimSpace(doc.Find("h1").First().Text()),
	}}
}

// TickerScan finds "Ticker XXXX" anywhere in the page text.
func TickerScan(body string) []instrument.Resolved {
	text := provider.Text(provider.Document(body).Selection)
	var out []instrument.Resolved
	for _, m := range tickerRe.FindAllStringSubmatch(text, -1) {
		out = append(out, instrument.Resolved{CanonicalSymbol: m[1]})
	}
	return out
}

// API resolves through the listing API search. Listing rows carry exchange,
// currency and category, so several rows for one ISIN go through the Picker.
type API struct {
	Client *APIClient
	Picker provider.Picker
	Log    zerolog.Logger
}

// NewAPI wires the listing client onto the shared session.
func NewAPI(session *httpx.Client, log zerolog.Logger, picker provider.Picker, opts ...APIClientOption) *API {
	opts = append([]APIClientOption{WithHTTPClient(session.Doer())}, opts...)
	c, _ := NewAPIClient(opts...)
	return &API{Client: c, Picker: picker, Log: log.With().Str("provider", APIName).Logger()}
}

func (a *API) Name() string { return APIName }

func (a *API) Resolve(ctx context.Context, q instrument.Query) (instrument.Resolved, bool) {
	if q.RawIdentifier == "" {
		return instrument.Resolved{}, false
	}
	etfs, err := a.Client.Search(ctx, q.RawIdentifier)
	if err != nil {
		a.Log.Debug().Err(err).Str("query", q.Label()).Msg("search failed")
		return instrument.Resolved{}, false
	}
	isin := q.Kind() == instrument.KindISIN
	var cands []instrument.Resolved
	for _, e := range etfs {
		if isin && e.ISIN != "" && !strings.EqualFold(e.ISIN, q.RawIdentifier) {
			continue
		}
		if !isin && e.Symbol != "" && !strings.EqualFold(e.Symbol, q.RawIdentifier) {
			continue
		}
		cands = append(cands, e.Resolved())
	}
	picker := a.Picker
	if picker == nil {
		picker = provider.First{}
	}
	best, ok := picker.Pick(cands)
	if !ok {
		return instrument.Resolved{}, false
	}
	a.Log.Debug().Str("query", q.Label()).Int("candidates", len(cands)).Str("symbol", best.CanonicalSymbol).Msg("matched")
	return best.Complete(q, APIName), true
}

// Resolved converts a listing row into a candidate.
func (e ETF) Resolved() instrument.Resolved {
	r := instrument.Resolved{
		DisplayName:     e.Name,
		CanonicalSymbol: strings.ToUpper(strings.TrimSpace(e.Symbol)),
		ExchangeHint:    e.Exchange,
		CurrencyHint:    e.Currency,
		SectorHint:      e.Category,
	}
	if e.ISIN != "" {
		r.DetailURL = e.ProfileURL()
	}
	return r
}
