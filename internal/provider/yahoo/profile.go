package yahoo

import (
	"context"
	"errors"
	"net/url"

	"github.com/PaesslerAG/jsonpath"

	"etfhistory/internal/httpx"
)

const summaryURL = "https://query2.finance.yahoo.com/v10/finance/quoteSummary/"

// Profile is what Yahoo says about a fund beyond its chart. Empty fields
// are unknown.
type Profile struct {
	Category     string
	FundCategory string
	LongName     string
	Exchange     string
}

// Sector is the fund category, then the fund category of the legal
// classification, then the keyword table on the long name.
func (p Profile) Sector() string {
	switch {
	case p.Category != "":
		return p.Category
	case p.FundCategory != "":
		return p.FundCategory
	}
	return KeywordSector(p.LongName)
}

// Profiler looks up the profile of a Yahoo symbol.
type Profiler interface {
	Profile(ctx context.Context, symbol string) (Profile, error)
}

// Profilers asks every profiler in order and keeps, per field, the first
// non-empty answer. It fails only when every profiler failed.
type Profilers []Profiler

func (ps Profilers) Profile(ctx context.Context, symbol string) (Profile, error) {
	var (
		out  Profile
		errs []error
	)
	for _, p := range ps {
		got, err := p.Profile(ctx, symbol)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		out = out.fill(got)
	}
	if len(errs) == len(ps) && len(errs) > 0 {
		return out, errors.Join(errs...)
	}
	return out, nil
}

func (p Profile) fill(o Profile) Profile {
	if p.Category == "" {
		p.Category = o.Category
	}
	if p.FundCategory == "" {
		p.FundCategory = o.FundCategory
	}
	if p.LongName == "" {
		p.LongName = o.LongName
	}
	if p.Exchange == "" {
		p.Exchange = o.Exchange
	}
	return p
}

// Summary reads the fundProfile module of the quote summary API through
// the shared session, so the call is paced with the chart requests.
type Summary struct {
	Client *httpx.Client
}

func NewSummary(client *httpx.Client) *Summary { return &Summary{Client: client} }

// SummaryURL asks for the modules carrying the fund category and names.
func SummaryURL(symbol string) string {
	return summaryURL + url.PathEscape(symbol) + "?modules=fundProfile,price"
}

func (s *Summary) Profile(ctx context.Context, symbol string) (Profile, error) {
	var body any
	if err := s.Client.GetJSON(ctx, SummaryURL(symbol), &body); err != nil {
		return Profile{}, err
	}
	return ParseSummary(body), nil
}

// ParseSummary reads a decoded quote summary body.
//
//	{"quoteSummary":{"result":[{
//	  "fundProfile":{"categoryName":"Global Large-Cap Blend Equity","legalType":"Exchange Traded Fund"},
//	  "price":{"longName":"iShares Core MSCI World UCITS ETF","exchangeName":"Milan"}
//	}]}}
func ParseSummary(body any) Profile {
	str := func(path string) string {
		v, err := jsonpath.Get(path, body)
		if err != nil {
			return ""
		}
		s, _ := v.(string)
		return s
	}
	p := Profile{
		Category: str("$.quoteSummary.result[0].fundProfile.categoryName"),
		LongName: str("$.quoteSummary.result[0].price.longName"),
		Exchange: str("$.quoteSummary.result[0].price.exchangeName"),
	}
	// fundCategory shows up in different modules depending on the fund
	if found, err := jsonpath.Get("$..fundCategory", body); err == nil {
		if list, ok := found.([]any); ok {
			for _, v := range list {
				if s, ok := v.(string); ok && s != "" {
					p.FundCategory = s
					break
				}
			}
		}
	}
	return p
}
