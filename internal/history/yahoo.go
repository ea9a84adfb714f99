package history

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"etfhistory/internal/httpx"
	"etfhistory/internal/instrument"
	"etfhistory/internal/provider"
	"etfhistory/internal/provider/yahoo"
	"etfhistory/internal/series"
)

var errNoResult = errors.New("chart has no result")

// Yahoo fetches the daily chart JSON and falls back to the rendered
// history table of the quote page.
type Yahoo struct {
	Client *httpx.Client
	// Profile supplies the fund category used as sector. Optional.
	Profile yahoo.Profiler
	Log     zerolog.Logger
}

func NewYahoo(client *httpx.Client, profile yahoo.Profiler, log zerolog.Logger) *Yahoo {
	return &Yahoo{Client: client, Profile: profile, Log: log.With().Str("fetcher", yahoo.Name).Logger()}
}

func (f *Yahoo) Fetch(ctx context.Context, r instrument.Resolved, rng series.Range) (series.Series, Meta) {
	sym := r.CanonicalSymbol
	meta := Meta{Source: yahoo.Name, Symbol: sym}
	log := f.Log.With().Str("ticker", r.QueryIdentifier).Str("symbol", sym).Logger()

	// period2 is exclusive: ask up to the start of the day after rng.To
	body, err := f.Client.GetText(ctx, yahoo.ChartURL(sym, rng.From, rng.To.AddDate(0, 0, 1)), nil)
	var rows series.Series
	if err == nil {
		rows, meta, err = ParseChart(body, meta)
	}
	if err != nil {
		log.Warn().Err(err).Msg("chart failed, falling back to history page")
	}
	meta.Path = PathPrimary
	if len(rows) == 0 {
		meta.Path = PathFallback
		page, err := f.Client.GetText(ctx, yahoo.HistoryURL(sym), nil)
		if err != nil {
			log.Warn().Err(err).Msg("history page failed")
			return nil, Meta{Source: yahoo.Name, Symbol: sym, Currency: meta.Currency, Sector: meta.Sector}
		}
		var dropped int
		rows, dropped = HistoryTable(page)
		log.Debug().Int("rows", len(rows)).Int("dropped", dropped).Msg("history table")
	}
	rows = series.Normalize(rows, rng)
	if len(rows) == 0 {
		meta.Path = ""
		return rows, meta
	}
	return rows, f.profile(ctx, meta, log)
}

// profile fills the sector from the fund category, then the legal fund
// category, then the keyword table. Names and venue only fill blanks.
func (f *Yahoo) profile(ctx context.Context, meta Meta, log zerolog.Logger) Meta {
	if f.Profile == nil {
		return meta
	}
	p, err := f.Profile.Profile(ctx, meta.Symbol)
	if err != nil {
		log.Debug().Err(err).Msg("profile failed")
	}
	if p.LongName == "" {
		p.LongName = meta.LongName
	}
	if meta.LongName == "" {
		meta.LongName = p.LongName
	}
	if meta.Exchange == "" {
		meta.Exchange = p.Exchange
	}
	if sector := p.Sector(); sector != "" {
		meta.Sector = sector
	}
	return meta
}

// ParseChart turns a chart body into rows and fills meta from the chart's
// meta block. Bars without a close are skipped.
func ParseChart(body string, meta Meta) (series.Series, Meta, error) {
	var resp yahoo.ChartResponse
	if err := json.Unmarshal([]byte(body), &resp); err != nil {
		return nil, meta, fmt.Errorf("decode chart: %w", err)
	}
	if resp.Chart.Error != nil {
		return nil, meta, resp.Chart.Error
	}
	if len(resp.Chart.Result) == 0 {
		return nil, meta, errNoResult
	}

	var raw any
	if err := json.Unmarshal([]byte(body), &raw); err == nil {
		meta.Currency = yahoo.MetaString(raw, "currency")
		meta.Exchange = yahoo.MetaString(raw, "fullExchangeName")
		if meta.Exchange == "" {
			meta.Exchange = yahoo.MetaString(raw, "exchangeName")
		}
		meta.LongName = yahoo.MetaString(raw, "longName")
		meta.Sector = yahoo.KeywordSector(meta.LongName)
	}

	res := resp.Chart.Result[0]
	closes := res.Closes()
	rows := make(series.Series, 0, len(res.Timestamp))
	for i, ts := range res.Timestamp {
		if i >= len(closes) || closes[i] == "" {
			continue
		}
		d, err := decimal.NewFromString(string(closes[i]))
		if err != nil {
			continue
		}
		rows = append(rows, series.Row{Date: res.Day(ts), Close: d})
	}
	return rows, meta, nil
}

// HistoryTable reads the quote history page. The close column is found
// from the header, adjusted close first.
func HistoryTable(html string) (series.Series, int) {
	doc := provider.Document(html)
	cols := series.Columns{Date: 0, Close: 4}
	adj, plain := -1, -1
	doc.Find("table thead th").Each(func(i int, th *goquery.Selection) {
		h := strings.ToLower(strings.TrimSpace(th.Text()))
		switch {
		case strings.HasPrefix(h, "adj close"):
			adj = i
		case strings.HasPrefix(h, "close") && plain < 0:
			plain = i
		}
	})
	if adj >= 0 {
		cols.Close = adj
	} else if plain >= 0 {
		cols.Close = plain
	}
	return series.FromTableColumns(doc.Selection, series.English, cols)
}
