package justetf

import (
	"context"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog"

	"etfhistory/internal/httpx"
	"etfhistory/internal/instrument"
	"etfhistory/internal/provider"
)

// NameSearch resolves queries that carry only a display name: the find-etf
// result list gives the profile link, the profile gives ISIN and ticker.
type NameSearch struct {
	Client *httpx.Client
	Log    zerolog.Logger
}

func NewNameSearch(client *httpx.Client, log zerolog.Logger) *NameSearch {
	return &NameSearch{Client: client, Log: log.With().Str("provider", SearchName).Logger()}
}

func (s *NameSearch) Name() string { return SearchName }

func (s *NameSearch) Resolve(ctx context.Context, q instrument.Query) (instrument.Resolved, bool) {
	if q.RawIdentifier != "" || q.DisplayName == "" {
		return instrument.Resolved{}, false
	}
	addr := baseURL + "/en/find-etf.html?query=" + url.QueryEscape(q.DisplayName)
	body, err := s.Client.GetText(ctx, addr, nil)
	if err != nil {
		s.Log.Debug().Err(err).Str("query", q.Label()).Msg("search failed")
		return instrument.Resolved{}, false
	}
	href := ResultLink(body)
	if href == "" {
		return instrument.Resolved{}, false
	}
	detail := absolute(href)
	page, err := s.Client.GetText(ctx, detail, nil)
	if err != nil {
		s.Log.Debug().Err(err).Str("url", detail).Msg("profile failed")
		return instrument.Resolved{}, false
	}
	doc := provider.Document(page)
	isin := strings.ToUpper(provider.LabelledValue(doc.Selection, "ISIN"))
	if instrument.ValidateISIN(isin) != nil {
		isin = ""
	}
	var r instrument.Resolved
	if cands := LabelledTicker(page); len(cands) > 0 {
		r = cands[0]
	} else if cands := TickerScan(page); len(cands) > 0 {
		r = cands[0]
	}
	if !r.OK() {
		return instrument.Resolved{}, false
	}
	r.QueryIdentifier = isin
	r.DetailURL = detail
	s.Log.Debug().Str("query", q.Label()).Str("symbol", r.CanonicalSymbol).Str("isin", isin).Msg("matched")
	return r.Complete(q, SearchName), true
}

// ResultLink returns the first search hit: the dedicated result link, or
// failing that the first link of the results table.
func ResultLink(body string) string {
	doc := provider.Document(body)
	for _, sel := range []string{"a.result-link", "table a"} {
		var href string
		doc.Find(sel).EachWithBreak(func(_ int, a *goquery.Selection) bool {
			href, _ = a.Attr("href")
			href = strings.TrimSpace(href)
			return href == ""
		})
		if href != "" {
			return href
		}
	}
	return ""
}

func absolute(href string) string {
	if strings.HasPrefix(href, "http://") || strings.HasPrefix(href, "https://") {
		return href
	}
	if !strings.HasPrefix(href, "/") {
		href = "/" + href
	}
	return baseURL + href
}
