package series

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Locale selects how separators in a rendered number are read.
type Locale int

const (
	// Italian renders 1.234,56 (dot thousands, comma decimal).
	Italian Locale = iota
	// English renders 1,234.56 (comma thousands, dot decimal).
	English
)

var errEmptyNumber = errors.New("empty number")

// ParseClose rewrites a locale-formatted decimal into canonical form and parses it.
func ParseClose(s string, loc Locale) (decimal.Decimal, error) {
	s = strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\u00a0', '\u202f', '\'':
			return -1
		}
		return r
	}, s)
	if s == "" {
		return decimal.Zero, errEmptyNumber
	}
	switch loc {
	case Italian:
		s = strings.ReplaceAll(s, ".", "")
		s = strings.ReplaceAll(s, ",", ".")
	case English:
		s = strings.ReplaceAll(s, ",", "")
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parse close %q: %w", s, err)
	}
	return d, nil
}

// DateLayouts is the fixed order in which rendered dates are tried.
var DateLayouts = []string{
	"2/1/2006",
	"2.1.2006",
	"Jan 2, 2006",
	"2 Jan 2006",
	DateLayout,
}

// ParseDate tries every layout of DateLayouts in order.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range DateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return Truncate(t), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised date %q", s)
}

// ParseRow parses a rendered (date, close) pair. Callers drop rows that fail.
func ParseRow(date, close string, loc Locale) (Row, error) {
	d, err := ParseDate(date)
	if err != nil {
		return Row{}, err
	}
	c, err := ParseClose(close, loc)
	if err != nil {
		return Row{}, err
	}
	return Row{Date: d, Close: c}, nil
}
