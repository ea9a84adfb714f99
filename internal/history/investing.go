package history

import (
	"context"
	"net/http"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog"

	"etfhistory/internal/httpx"
	"etfhistory/internal/instrument"
	"etfhistory/internal/provider"
	"etfhistory/internal/provider/investing"
	"etfhistory/internal/series"
)

const investingDateLayout = "02/01/2006"

var (
	pairIDRe = regexp.MustCompile(`pairId\s*[:=]\s*([0-9]+)`)
	smlIDRe  = regexp.MustCompile(`name="smlID"\s+value="([0-9]+)"`)
)

// Investing fetches from it.investing.com: the historical data AJAX
// endpoint keyed by the page's pair id, then the table of the page itself.
type Investing struct {
	Client *httpx.Client
	Log    zerolog.Logger
}

func NewInvesting(client *httpx.Client, log zerolog.Logger) *Investing {
	return &Investing{Client: client, Log: log.With().Str("fetcher", investing.Name).Logger()}
}

// PageInfo is what the detail page tells before any price is fetched.
type PageInfo struct {
	PairID   string
	SmlID    string
	Currency string
	Sector   string
}

// ParsePage extracts pair id, sml id, currency and sector from a detail page.
func ParsePage(html string) PageInfo {
	var info PageInfo
	if m := pairIDRe.FindStringSubmatch(html); m != nil {
		info.PairID = m[1]
	}
	if m := smlIDRe.FindStringSubmatch(html); m != nil {
		info.SmlID = m[1]
	}
	doc := provider.Document(html)
	doc.Find("li").Each(func(_ int, li *goquery.Selection) {
		text := provider.Text(li)
		if !strings.Contains(text, ":") {
			return
		}
		low := strings.ToLower(text)
		value := strings.TrimSpace(text[strings.LastIndex(text, ":")+1:])
		if strings.Contains(low, "valuta") {
			info.Currency = value
		}
		if strings.Contains(low, "categoria") || strings.Contains(low, "settore") || strings.Contains(low, "tipo") {
			info.Sector = value
		}
	})
	if info.Sector == "" {
		var crumbs []string
		doc.Find("div.breadcrumb a").Each(func(_ int, a *goquery.Selection) {
			crumbs = append(crumbs, strings.TrimSpace(a.Text()))
		})
		if len(crumbs) >= 3 {
			info.Sector = strings.Join(crumbs[1:3], " / ")
		}
	}
	return info
}

func (f *Investing) Fetch(ctx context.Context, r instrument.Resolved, rng series.Range) (series.Series, Meta) {
	meta := Meta{Source: investing.Name, Symbol: r.CanonicalSymbol}
	page := r.DetailURL
	if page == "" && r.CanonicalSymbol != "" {
		page = investing.HistoricalURL("/etfs/" + r.CanonicalSymbol)
	}
	log := f.Log.With().Str("ticker", r.QueryIdentifier).Str("url", page).Logger()

	html, err := f.Client.GetText(ctx, page, nil)
	if err != nil {
		log.Warn().Err(err).Msg("history page failed")
		return nil, meta
	}
	info := ParsePage(html)
	if info.PairID == "" {
		// the overview page carries the id when the history page does not
		overview := strings.TrimSuffix(page, "-historical-data")
		if overview != page {
			if alt, err := f.Client.GetText(ctx, overview, nil); err == nil {
				altInfo := ParsePage(alt)
				info.PairID, info.SmlID = altInfo.PairID, altInfo.SmlID
				if info.Currency == "" {
					info.Currency = altInfo.Currency
				}
				if info.Sector == "" {
					info.Sector = altInfo.Sector
				}
			}
		}
	}
	meta.Currency, meta.Sector = info.Currency, info.Sector

	var rows series.Series
	if info.PairID != "" {
		rows, err = f.ajax(ctx, page, info, rng)
		if err != nil {
			log.Warn().Err(err).Msg("ajax failed, falling back to visible table")
		}
		meta.Path = PathPrimary
	}
	if len(rows) == 0 {
		var dropped int
		rows, dropped, _ = series.FromHTML(html, series.Italian)
		meta.Path = PathFallback
		log.Debug().Int("rows", len(rows)).Int("dropped", dropped).Msg("visible table")
	}
	rows = series.Normalize(rows, rng)
	if len(rows) == 0 {
		meta.Path = ""
	}
	return rows, meta
}

func (f *Investing) ajax(ctx context.Context, referer string, info PageInfo, rng series.Range) (series.Series, error) {
	sml := info.SmlID
	if sml == "" {
		sml = "0"
	}
	form := url.Values{
		"action":       {"historical_data"},
		"pair_id":      {info.PairID},
		"smlID":        {sml},
		"header":       {"Historical Data"},
		"st_date":      {rng.From.Format(investingDateLayout)},
		"end_date":     {rng.To.Format(investingDateLayout)},
		"interval_sec": {"Daily"},
		"sort_col":     {"date"},
		"sort_ord":     {"DESC"},
	}
	header := http.Header{
		"X-Requested-With": {"XMLHttpRequest"},
		"Origin":           {investing.BaseURL},
		"Referer":          {referer},
	}
	body, err := f.Client.PostForm(ctx, investing.BaseURL+"/instruments/HistoricalDataAjax", form, header)
	if err != nil {
		return nil, err
	}
	rows, dropped, err := series.FromHTML(body, series.Italian)
	if err != nil {
		return nil, err
	}
	f.Log.Debug().Str("pair_id", info.PairID).Int("rows", len(rows)).Int("dropped", dropped).Msg("ajax table")
	return rows, nil
}
