// Package investing resolves tickers to it.investing.com ETF pages.
package investing

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog"

	"etfhistory/internal/httpx"
	"etfhistory/internal/instrument"
	"etfhistory/internal/provider"
)

const (
	Name = "investing"
	// BaseURL is the Italian edition, whose pages render Italian-locale numbers.
	BaseURL = "https://it.investing.com"

	historySuffix = "-historical-data"
)

var hrefRe = regexp.MustCompile(`href="(/etfs/[^"?#]+)"`)

// New returns the search page adapter. The canonical symbol is the page
// slug; the detail URL is the historical data page.
func New(client *httpx.Client, log zerolog.Logger) *provider.Page {
	return &provider.Page{
		ProviderName: Name,
		Client:       client,
		Target: func(q instrument.Query) (string, bool) {
			if q.RawIdentifier == "" {
				return "", false
			}
			return BaseURL + "/search/?q=" + url.QueryEscape(q.RawIdentifier), true
		},
		Chain: provider.Chain{
			{Name: "etf-link", Extract: ETFLink},
			{Name: "href-scan", Extract: HrefScan},
		},
		Picker: provider.First{},
		Log:    log.With().Str("provider", Name).Logger(),
	}
}

// ETFLink takes the ETF result links of the search page.
func ETFLink(body string) []instrument.Resolved {
	var out []instrument.Resolved
	provider.Document(body).Find(`a[href^="/etfs/"]`).Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		if r, ok := candidate(href); ok {
			out = append(out, r)
		}
	})
	return out
}

// HrefScan finds /etfs/ links in the raw markup, for results rendered
// outside regular anchors (inline JSON, data attributes).
func HrefScan(body string) []instrument.Resolved {
	var out []instrument.Resolved
	for _, m := range hrefRe.FindAllStringSubmatch(body, -1) {
		if r, ok := candidate(m[1]); ok {
			out = append(out, r)
		}
	}
	return out
}

func candidate(href string) (instrument.Resolved, bool) {
	slug := Slug(href)
	if slug == "" {
		return instrument.Resolved{}, false
	}
	return instrument.Resolved{CanonicalSymbol: slug, DetailURL: HistoricalURL(href)}, true
}

// Slug is the page name of an /etfs/ link without the history suffix.
func Slug(href string) string {
	href = strings.TrimSuffix(strings.TrimRight(href, "/"), historySuffix)
	i := strings.LastIndex(href, "/etfs/")
	if i < 0 {
		return ""
	}
	return strings.Trim(href[i+len("/etfs/"):], "/")
}

// HistoricalURL turns an ETF page link (absolute or relative) into the
// absolute URL of its historical data page.
func HistoricalURL(href string) string {
	href = strings.TrimRight(strings.TrimSpace(href), "/")
	if !strings.HasPrefix(href, "http://") && !strings.HasPrefix(href, "https://") {
		href = BaseURL + href
	}
	if strings.HasSuffix(href, historySuffix) {
		return href
	}
	return href + historySuffix
}
