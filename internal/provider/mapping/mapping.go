// Package mapping serves operator supplied identifier mappings. A mapping
// always wins over the scraped sources.
package mapping

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"

	"etfhistory/internal/instrument"
	"etfhistory/internal/provider/investing"
	"etfhistory/internal/provider/yahoo"
)

const Name = "mapping"

// Entry maps one identifier to a Yahoo symbol or an investing history page,
// with optional sector and currency overrides.
type Entry struct {
	Key      string `json:"key"`
	Yahoo    string `json:"yahoo"`
	HistURL  string `json:"hist_url"`
	Sector   string `json:"sector"`
	Currency string `json:"currency"`
	Exchange string `json:"exchange"`
}

// Resolved converts the entry. A Yahoo symbol takes precedence over a
// history page.
func (e Entry) Resolved() instrument.Resolved {
	r := instrument.Resolved{
		ExchangeHint: e.Exchange,
		CurrencyHint: e.Currency,
		SectorHint:   e.Sector,
	}
	switch {
	case e.Yahoo != "":
		r.CanonicalSymbol = e.Yahoo
		r.DetailURL = yahoo.HistoryURL(e.Yahoo)
	case e.HistURL != "":
		r.CanonicalSymbol = investing.Slug(e.HistURL)
		r.DetailURL = investing.HistoricalURL(e.HistURL)
	}
	return r
}

// Source looks entries up by identifier.
type Source interface {
	Lookup(ctx context.Context, key string) (Entry, bool, error)
}

// Sources consults each source in order and returns the first hit. A
// failing source is skipped when a later one answers.
type Sources []Source

func (ss Sources) Lookup(ctx context.Context, key string) (Entry, bool, error) {
	var errs []error
	for _, s := range ss {
		e, ok, err := s.Lookup(ctx, key)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if ok {
			return e, true, nil
		}
	}
	return Entry{}, false, errors.Join(errs...)
}

// EntryFor records a resolution so a later run can skip the scrapers.
// Investing pages are kept as hist_url, everything else as a Yahoo symbol.
func EntryFor(key string, r instrument.Resolved, investingPage bool) Entry {
	e := Entry{
		Key:      strings.ToUpper(strings.TrimSpace(key)),
		Sector:   r.SectorHint,
		Currency: r.CurrencyHint,
		Exchange: r.ExchangeHint,
	}
	if investingPage {
		e.HistURL = r.DetailURL
		if e.HistURL == "" {
			e.HistURL = investing.HistoricalURL("/etfs/" + r.CanonicalSymbol)
		}
	} else {
		e.Yahoo = r.CanonicalSymbol
	}
	return e
}

// Table is an in-memory Source keyed by upper-cased identifier.
type Table map[string]Entry

func (t Table) Lookup(_ context.Context, key string) (Entry, bool, error) {
	e, ok := t[strings.ToUpper(strings.TrimSpace(key))]
	return e, ok, nil
}

// Merge returns a table holding both; entries of o win.
func (t Table) Merge(o Table) Table {
	out := make(Table, len(t)+len(o))
	for k, v := range t {
		out[k] = v
	}
	for k, v := range o {
		if prev, ok := out[k]; ok {
			v = merge(prev, v)
		}
		out[k] = v
	}
	return out
}

func merge(a, b Entry) Entry {
	if b.Yahoo == "" {
		b.Yahoo = a.Yahoo
	}
	if b.HistURL == "" {
		b.HistURL = a.HistURL
	}
	if b.Sector == "" {
		b.Sector = a.Sector
	}
	if b.Currency == "" {
		b.Currency = a.Currency
	}
	if b.Exchange == "" {
		b.Exchange = a.Exchange
	}
	return b
}

// LoadCSV reads a mapping file. A missing file is an empty table. Rows are
// keyed by their ticker column, and also by isin when present.
func LoadCSV(path string) (Table, error) {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return Table{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open mapping: %w", err)
	}
	defer f.Close()
	return ReadCSV(f)
}

// ReadCSV parses mapping rows with columns ticker, isin, yahoo, hist_url,
// sector, currency, exchange. Only one of ticker and isin is required.
func ReadCSV(r io.Reader) (Table, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return Table{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read mapping header: %w", err)
	}
	idx := map[string]int{}
	for i, h := range header {
		idx[strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))] = i
	}
	_, hasTicker := idx["ticker"]
	_, hasISIN := idx["isin"]
	if !hasTicker && !hasISIN {
		return nil, fmt.Errorf("mapping has neither ticker nor isin column")
	}
	col := func(rec []string, name string) string {
		i, ok := idx[name]
		if !ok || i >= len(rec) {
			return ""
		}
		return strings.TrimSpace(rec[i])
	}

	t := Table{}
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read mapping: %w", err)
		}
		e := Entry{
			Yahoo:    col(rec, "yahoo"),
			HistURL:  col(rec, "hist_url"),
			Sector:   col(rec, "sector"),
			Currency: strings.ToUpper(col(rec, "currency")),
			Exchange: col(rec, "exchange"),
		}
		if e.Yahoo == "" && e.HistURL == "" {
			continue
		}
		for _, k := range []string{col(rec, "ticker"), col(rec, "isin")} {
			if k == "" {
				continue
			}
			e.Key = strings.ToUpper(k)
			t[e.Key] = e
		}
	}
	return t, nil
}

// Adapter resolves queries from a Source.
type Adapter struct {
	Source Source
	Log    zerolog.Logger
}

func New(src Source, log zerolog.Logger) *Adapter {
	return &Adapter{Source: src, Log: log.With().Str("provider", Name).Logger()}
}

func (a *Adapter) Name() string { return Name }

func (a *Adapter) Resolve(ctx context.Context, q instrument.Query) (instrument.Resolved, bool) {
	if a.Source == nil || q.RawIdentifier == "" {
		return instrument.Resolved{}, false
	}
	e, ok, err := a.Source.Lookup(ctx, q.RawIdentifier)
	if err != nil {
		a.Log.Debug().Err(err).Str("query", q.Label()).Msg("lookup failed")
		return instrument.Resolved{}, false
	}
	if !ok {
		return instrument.Resolved{}, false
	}
	r := e.Resolved()
	if !r.OK() {
		return instrument.Resolved{}, false
	}
	return r.Complete(q, Name), true
}
