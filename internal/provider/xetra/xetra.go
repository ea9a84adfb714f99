// Package xetra resolves ISINs through the Xetra ETF finder.
package xetra

import (
	"regexp"
	"strings"

	"github.com/rs/zerolog"

	"etfhistory/internal/httpx"
	"etfhistory/internal/instrument"
	"etfhistory/internal/provider"
)

const (
	Name     = "xetra"
	Exchange = "Xetra"
	baseURL  = "https://www.xetra.com"
)

var (
	symbolRe = regexp.MustCompile(`\b[A-Z0-9]{2,6}\.[A-Z]{2,3}\b`)
	codeRe   = regexp.MustCompile(`^[A-Z0-9]{2,6}$`)
)

type options struct {
	baseURL string
	picker  provider.Picker
}

// Option configures the adapter.
type Option func(*options)

func WithBaseURL(u string) Option { return func(o *options) { o.baseURL = strings.TrimRight(u, "/") } }

func WithPicker(p provider.Picker) Option { return func(o *options) { o.picker = p } }

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
			return o.baseURL + "/xetra-en/instruments/etf-finder/" + strings.ToUpper(q.RawIdentifier), true
		},
		Chain: provider.Chain{
			{Name: "labelled-code", Extract: LabelledCode},
			{Name: "symbol-scan", Extract: SymbolScan},
		},
		Picker: o.picker,
		Log:    log.With().Str("provider", Name).Logger(),
	}
}

// LabelledCode reads the Xetra trading code and qualifies it with ".DE".
func LabelledCode(body string) []instrument.Resolved {
	doc := provider.Document(body)
	code := strings.ToUpper(provider.LabelledValue(doc.Selection, "Xetra Code", "Xetra-Kürzel", "Trading Symbol", "Ticker"))
	code = strings.TrimSuffix(code, ".DE")
	if !codeRe.MatchString(code) {
		return nil
	}
	return []instrument.Resolved{{CanonicalSymbol: code + ".DE", ExchangeHint: Exchange}}
}

// SymbolScan collects every CODE.VENUE pattern in the page text.
func SymbolScan(body string) []instrument.Resolved {
	text := provider.Text(provider.Document(body).Selection)
	return provider.Symbols(provider.ScanSymbols(symbolRe, text), Exchange, ".DE")
}
