// Package borsaitaliana resolves ISINs through the Borsa Italiana ETF
// profile page.
package borsaitaliana

import (
	"regexp"
	"strings"

	"github.com/rs/zerolog"

	"etfhistory/internal/httpx"
	"etfhistory/internal/instrument"
	"etfhistory/internal/provider"
)

const (
	Name     = "borsaitaliana"
	Exchange = "Borsa Italiana"
	baseURL  = "https://www.borsaitaliana.it"
)

var (
	symbolRe = regexp.MustCompile(`\b[A-Z0-9]{3,6}\.MI\b`)
	codeRe   = regexp.MustCompile(`^[A-Z0-9]{2,6}$`)
	ccyRe    = regexp.MustCompile(`^[A-Z]{3}$`)
)

type options struct {
	baseURL string
	picker  provider.Picker
}

// Option configures the adapter.
type Option func(*options)

// WithBaseURL points the adapter at another host.
func WithBaseURL(u string) Option { return func(o *options) { o.baseURL = strings.TrimRight(u, "/") } }

// WithPicker overrides the tie-break policy.
func WithPicker(p provider.Picker) Option { return func(o *options) { o.picker = p } }

// New returns the adapter. Only ISIN queries reach the network.
func New(client *httpx.Client, log zerolog.Logger, opts ...Option) *provider.Page {
	o := options{baseURL: baseURL, picker: provider.DefaultHomeMarket}
	for _, opt := range opts {
		opt(&o)
	}
	return &provider.Page{
		ProviderName: Name,
		Client:       client,
		Target: func(q instrument.Query) (string, bool) {
			if q.Kind() != instrument.KindISIN {
				return "", false
			}
			return o.baseURL + "/borsa/etf/scheda/" + strings.ToUpper(q.RawIdentifier) + ".html", true
		},
		Chain: provider.Chain{
			{Name: "labelled-code", Extract: LabelledCode},
			{Name: "symbol-scan", Extract: SymbolScan},
		},
		Picker: o.picker,
		Log:    log.With().Str("provider", Name).Logger(),
	}
}

// LabelledCode reads the trading code from its labelled cell and qualifies it
// with the Milan suffix.
func LabelledCode(body string) []instrument.Resolved {
	doc := provider.Document(body)
	code := strings.ToUpper(provider.LabelledValue(doc.Selection, "Codice Alfanumerico", "Alphanumeric Code", "Ticker", "Codice"))
	code = strings.TrimSuffix(code, ".MI")
	if !codeRe.MatchString(code) {
		return nil
	}
	r := instrument.Resolved{CanonicalSymbol: code + ".MI", ExchangeHint: Exchange}
	if ccy := strings.ToUpper(provider.LabelledValue(doc.Selection, "Valuta di Denominazione", "Valuta", "Currency")); ccyRe.MatchString(ccy) {
		r.CurrencyHint = ccy
	}
	return []instrument.Resolved{r}
}

// SymbolScan looks for any XXX.MI code in the page text.
func SymbolScan(body string) []instrument.Resolved {
	text := provider.Text(provider.Document(body).Selection)
	return provider.Symbols(provider.ScanSymbols(symbolRe, text), Exchange, ".MI")
}
