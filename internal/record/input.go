package record

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"etfhistory/internal/instrument"
)

// ErrMissingColumn is returned when the input has no name column or
// neither an isin nor a ticker column.
var ErrMissingColumn = errors.New("input table: missing required column")

// Table is a delimited file with a normalised header.
type Table struct {
	Comma   rune
	Header  []string
	Records [][]string
}

// ReadTable reads a ',' or ';' separated table. The separator is the one
// appearing more often in the header line. Header names are trimmed and
// lower-cased.
func ReadTable(r io.Reader) (*Table, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read table: %w", err)
	}
	b = bytes.TrimPrefix(b, []byte("\ufeff"))
	comma := DetectComma(b)

	cr := csv.NewReader(bytes.NewReader(b))
	cr.Comma = comma
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	all, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse table: %w", err)
	}
	t := &Table{Comma: comma}
	if len(all) == 0 {
		return t, nil
	}
	for _, h := range all[0] {
		t.Header = append(t.Header, strings.ToLower(strings.TrimSpace(h)))
	}
	t.Records = all[1:]
	return t, nil
}

// DetectComma picks ';' when the first line holds more semicolons than commas.
func DetectComma(b []byte) rune {
	line, _, _ := bufio.NewReader(bytes.NewReader(b)).ReadLine()
	if bytes.Count(line, []byte(";")) > bytes.Count(line, []byte(",")) {
		return ';'
	}
	return ','
}

// Index returns the position of column name, or -1.
func (t *Table) Index(name string) int {
	for i, h := range t.Header {
		if h == name {
			return i
		}
	}
	return -1
}

// Get returns the trimmed value of column name in rec, or "".
func (t *Table) Get(rec []string, name string) string {
	i := t.Index(name)
	if i < 0 || i >= len(rec) {
		return ""
	}
	return strings.TrimSpace(rec[i])
}

// Queries builds one query per record. The ticker column wins over the isin
// column when both are filled; records with neither identifier nor name
// are skipped.
func (t *Table) Queries() ([]instrument.Query, error) {
	if t.Index("name") < 0 || (t.Index("isin") < 0 && t.Index("ticker") < 0) {
		return nil, fmt.Errorf("%w: need name and isin or ticker, have %v", ErrMissingColumn, t.Header)
	}
	out := make([]instrument.Query, 0, len(t.Records))
	for _, rec := range t.Records {
		id := t.Get(rec, "ticker")
		if id == "" {
			id = t.Get(rec, "isin")
		}
		q := instrument.NewQuery(id, t.Get(rec, "name"))
		if q.RawIdentifier == "" && q.DisplayName == "" {
			continue
		}
		out = append(out, q)
	}
	return out, nil
}

// ReadQueries opens path and returns its queries.
func ReadQueries(path string) ([]instrument.Query, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open input: %w", err)
	}
	defer f.Close()
	t, err := ReadTable(f)
	if err != nil {
		return nil, err
	}
	return t.Queries()
}
