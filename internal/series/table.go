package series

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// TableRowSelector matches the body rows of a rendered history table.
const TableRowSelector = "table tbody tr"

// Columns locates the date and close cells of a table row.
type Columns struct {
	Date  int
	Close int
}

// DefaultColumns is the two-cell layout: date first, close second.
var DefaultColumns = Columns{Date: 0, Close: 1}

// FromTable reads every body row of the HTML tables under sel with the
// default columns. Rows that fail either parse are counted in dropped and
// left out; rows too short to hold both cells are ignored.
func FromTable(sel *goquery.Selection, loc Locale) (rows Series, dropped int) {
	return FromTableColumns(sel, loc, DefaultColumns)
}

// FromTableColumns is FromTable with explicit cell positions.
func FromTableColumns(sel *goquery.Selection, loc Locale, cols Columns) (rows Series, dropped int) {
	need := max(cols.Date, cols.Close) + 1
	sel.Find(TableRowSelector).Each(func(_ int, tr *goquery.Selection) {
		cells := tr.Find("td")
		if cells.Length() < need {
			return
		}
		date := strings.TrimSpace(cells.Eq(cols.Date).Text())
		close := strings.TrimSpace(cells.Eq(cols.Close).Text())
		row, err := ParseRow(date, close, loc)
		if err != nil {
			dropped++
			return
		}
		rows = append(rows, row)
	})
	return rows, dropped
}

// FromHTML parses html and applies FromTable to the whole document.
func FromHTML(html string, loc Locale) (Series, int, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, 0, err
	}
	rows, dropped := FromTable(doc.Selection, loc)
	return rows, dropped, nil
}
