// Package record turns fetched series into the canonical output rows and
// moves them in and out of delimited tables.
package record

import (
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"

	"etfhistory/internal/history"
	"etfhistory/internal/instrument"
	"etfhistory/internal/series"
)

// DefaultCurrency is written when no source names a valid currency.
const DefaultCurrency = "EUR"

// Header is the exact column list of the output table.
var Header = []string{"name", "ticker", "date", "close", "sector", "currency"}

// Row is one line of the output table.
type Row struct {
	Name     string          `json:"name"`
	Ticker   string          `json:"ticker"`
	Date     time.Time       `json:"date"`
	Close    decimal.Decimal `json:"close"`
	Sector   string          `json:"sector"`
	Currency string          `json:"currency"`
}

// Strings renders r in Header order.
func (r Row) Strings() []string {
	return []string{r.Name, r.Ticker, r.Date.Format(series.DateLayout), r.Close.String(), r.Sector, r.Currency}
}

// Normalize merges one resolved instrument with its series. It returns no
// rows exactly when the series is empty. Fetch metadata beats resolution
// hints; currency falls back to DefaultCurrency and sector to "".
func Normalize(r instrument.Resolved, s series.Series, meta history.Meta) []Row {
	if len(s) == 0 {
		return nil
	}
	ticker := r.QueryIdentifier
	if ticker == "" {
		ticker = r.CanonicalSymbol
	}
	name := r.DisplayName
	if name == "" {
		name = meta.LongName
	}
	sector := firstNonEmpty(meta.Sector, r.SectorHint)
	currency := Currency(meta.Currency, r.CurrencyHint)

	out := make([]Row, 0, len(s))
	for _, row := range s {
		out = append(out, Row{
			Name:     name,
			Ticker:   ticker,
			Date:     row.Date,
			Close:    row.Close,
			Sector:   sector,
			Currency: currency,
		})
	}
	return out
}

var codeRe = regexp.MustCompile(`\b[A-Z]{3}\b`)

// minorUnits are the quote currencies counted in hundredths of the ISO unit.
// Closes quoted in them are written unscaled, under the same code.
var minorUnits = map[string]bool{"GBp": true, "GBX": true, "ZAc": true, "ZAC": true, "ILA": true}

// Currency returns the first candidate naming a known ISO 4217 code or a
// minor-unit code, or DefaultCurrency. A code embedded in free text
// ("Valuta: USD") counts.
func Currency(candidates ...string) string {
	for _, c := range candidates {
		c = strings.TrimSpace(c)
		if minorUnits[c] {
			return c
		}
		c = strings.ToUpper(c)
		if c == "" {
			continue
		}
		if money.GetCurrency(c) != nil {
			return c
		}
		for _, code := range codeRe.FindAllString(c, -1) {
			if money.GetCurrency(code) != nil {
				return code
			}
		}
	}
	return DefaultCurrency
}

// Sort orders a batch by ticker, then date. Rows of equal key keep their
// relative order.
func Sort(rows []Row) {
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].Ticker != rows[j].Ticker {
			return rows[i].Ticker < rows[j].Ticker
		}
		return rows[i].Date.Before(rows[j].Date)
	})
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
