package yahoo

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/PaesslerAG/jsonpath"
)

const (
	chartURL  = "https://query1.finance.yahoo.com/v8/finance/chart/"
	searchURL = "https://query2.finance.yahoo.com/v1/finance/search"
	// QuoteURL is the public quote page, whose /history view renders a table.
	QuoteURL = "https://finance.yahoo.com/quote/"
)

// ChartResponse is the top-level container of the chart endpoint.
type ChartResponse struct {
	Chart struct {
		Result []ChartResult `json:"result"`
		Error  *ChartError   `json:"error"`
	} `json:"chart"`
}

type ChartError struct {
	Code        string `json:"code"`
	Description string `json:"description"`
}

func (e *ChartError) Error() string { return e.Code + ": " + e.Description }

type ChartResult struct {
	Meta       ChartMeta  `json:"meta"`
	Timestamp  []int64    `json:"timestamp"`
	Indicators Indicators `json:"indicators"`
}

type ChartMeta struct {
	Currency           string       `json:"currency"`
	Symbol             string       `json:"symbol"`
	ExchangeName       string       `json:"exchangeName"`
	FullExchangeName   string       `json:"fullExchangeName"`
	InstrumentType     string       `json:"instrumentType"`
	LongName           string       `json:"longName"`
	ShortName          string       `json:"shortName"`
	GMTOffset          int64        `json:"gmtoffset"`
	RegularMarketPrice *json.Number `json:"regularMarketPrice"`
}

// Indicators holds the price columns; nulls decode to empty numbers.
type Indicators struct {
	Quote []struct {
		Close []json.Number `json:"close"`
	} `json:"quote"`
	AdjClose []struct {
		AdjClose []json.Number `json:"adjclose"`
	} `json:"adjclose"`
}

// Closes prefers the adjusted close column when it is present and complete.
func (r ChartResult) Closes() []json.Number {
	if len(r.Indicators.AdjClose) > 0 && len(r.Indicators.AdjClose[0].AdjClose) == len(r.Timestamp) {
		return r.Indicators.AdjClose[0].AdjClose
	}
	if len(r.Indicators.Quote) > 0 {
		return r.Indicators.Quote[0].Close
	}
	return nil
}

// Day converts a bar timestamp to its calendar day on the listing exchange.
func (r ChartResult) Day(ts int64) time.Time {
	t := time.Unix(ts+r.Meta.GMTOffset, 0).UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// ChartURL is the daily chart between two instants.
func ChartURL(symbol string, from, to time.Time) string {
	q := url.Values{}
	q.Set("period1", strconv.FormatInt(from.Unix(), 10))
	q.Set("period2", strconv.FormatInt(to.Unix(), 10))
	q.Set("interval", "1d")
	q.Set("events", "history")
	q.Set("includeAdjustedClose", "true")
	return chartURL + url.PathEscape(symbol) + "?" + q.Encode()
}

// ProbeURL is the cheapest chart call: one day, used to check a symbol is live.
func ProbeURL(symbol string) string {
	return chartURL + url.PathEscape(symbol) + "?range=1d&interval=1d"
}

// HistoryURL is the rendered history page of the quote.
func HistoryURL(symbol string) string {
	return QuoteURL + url.PathEscape(symbol) + "/history/"
}

// MetaString reads one string field of the first chart result's meta.
func MetaString(body any, field string) string {
	v, err := jsonpath.Get(fmt.Sprintf("$.chart.result[0].meta.%s", field), body)
	if err != nil {
		return ""
	}
	s, _ := v.(string)
	return s
}

// LivePrice reports whether the chart body carries a regular market price.
func LivePrice(body any) bool {
	v, err := jsonpath.Get("$.chart.result[0].meta.regularMarketPrice", body)
	if err != nil || v == nil {
		return false
	}
	_, ok := v.(float64)
	return ok
}
