package instrument

import "strings"

// Unresolved is the provider name carried by a Resolved that no adapter matched.
const Unresolved = "N/A"

// Query is one input row: an ISIN or a market ticker plus an optional display name.
type Query struct {
	RawIdentifier string `json:"identifier"`
	DisplayName   string `json:"name"`
}

// NewQuery trims both fields. A Query is never modified afterwards.
func NewQuery(identifier, name string) Query {
	return Query{
		RawIdentifier: strings.TrimSpace(identifier),
		DisplayName:   strings.TrimSpace(name),
	}
}

// Kind reports whether the identifier is an ISIN or a plain ticker.
func (q Query) Kind() Kind {
	if q.RawIdentifier == "" {
		return KindNone
	}
	if ValidateISIN(strings.ToUpper(q.RawIdentifier)) == nil {
		return KindISIN
	}
	return KindTicker
}

// Label is the best human readable handle for log lines.
func (q Query) Label() string {
	if q.RawIdentifier != "" {
		return q.RawIdentifier
	}
	return q.DisplayName
}

// Resolved is the outcome of the resolution waterfall.
//
// Every hint field uses the empty string for "unknown". CanonicalSymbol is
// non-empty exactly when resolution succeeded.
type Resolved struct {
	DisplayName     string `json:"name"`
	QueryIdentifier string `json:"identifier"`
	CanonicalSymbol string `json:"symbol"`
	ProviderName    string `json:"provider"`
	DetailURL       string `json:"detail_url"`
	ExchangeHint    string `json:"exchange"`
	CurrencyHint    string `json:"currency"`
	SectorHint      string `json:"sector"`
}

// OK reports whether resolution succeeded.
func (r Resolved) OK() bool { return r.CanonicalSymbol != "" }

// UnresolvedFor builds the terminal value for a query no adapter matched.
func UnresolvedFor(q Query) Resolved {
	return Resolved{
		DisplayName:     q.DisplayName,
		QueryIdentifier: q.RawIdentifier,
		ProviderName:    Unresolved,
	}
}

// Complete stamps the query-owned fields onto an adapter answer and returns
// the copy. The query's display name and identifier win when present; the
// adapter's values are kept only to fill a blank query.
func (r Resolved) Complete(q Query, provider string) Resolved {
	if q.DisplayName != "" || r.DisplayName == "" {
		r.DisplayName = q.DisplayName
	}
	if q.RawIdentifier != "" || r.QueryIdentifier == "" {
		r.QueryIdentifier = q.RawIdentifier
	}
	if r.ProviderName == "" {
		r.ProviderName = provider
	}
	return r
}

// Suffix returns the venue suffix of the canonical symbol (".MI" for "SWDA.MI"), or "".
func (r Resolved) Suffix() string {
	return SymbolSuffix(r.CanonicalSymbol)
}

// SymbolSuffix returns the trailing ".XX" venue part of a symbol, upper-cased.
func SymbolSuffix(symbol string) string {
	i := strings.LastIndexByte(symbol, '.')
	if i <= 0 || i == len(symbol)-1 {
		return ""
	}
	return strings.ToUpper(symbol[i:])
}
