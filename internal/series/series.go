// Package series holds the daily close series model and the row parsing rules
// shared by every history source.
package series

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// DateLayout is the ISO form used on the wire and in the output table.
const DateLayout = "2006-01-02"

// Epoch is the lower bound of every series.
var Epoch = Day(2010, time.January, 1)

// Row is one daily close.
type Row struct {
	Date  time.Time       `json:"date"`
	Close decimal.Decimal `json:"close"`
}

// Series is the close history of one instrument. It is produced unsorted by
// sources and put in canonical order by Normalize.
type Series []Row

// Range is an inclusive calendar range.
type Range struct {
	From time.Time
	To   time.Time
}

// Day returns the UTC midnight of a calendar day.
func Day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Truncate drops the time of day, keeping the calendar date the value carries.
func Truncate(t time.Time) time.Time {
	y, m, d := t.Date()
	return Day(y, m, d)
}

// DefaultRange is Epoch through today.
func DefaultRange(now time.Time) Range {
	return Range{From: Epoch, To: Truncate(now)}
}

// Contains reports whether day lies in the range (bounds included).
func (r Range) Contains(day time.Time) bool {
	return !day.Before(r.From) && !day.After(r.To)
}

// Normalize returns the series sorted ascending by date, restricted to rng,
// with one row per date. When a date repeats, the first row seen wins.
func Normalize(s Series, rng Range) Series {
	seen := make(map[time.Time]struct{}, len(s))
	out := make(Series, 0, len(s))
	for _, row := range s {
		day := Truncate(row.Date)
		if !rng.Contains(day) {
			continue
		}
		if _, dup := seen[day]; dup {
			continue
		}
		seen[day] = struct{}{}
		out = append(out, Row{Date: day, Close: row.Close})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out
}
