package provider

import (
	"strings"

	"etfhistory/internal/instrument"
)

// Picker chooses one candidate when a source answers with several.
type Picker interface {
	Pick(cands []instrument.Resolved) (instrument.Resolved, bool)
}

// First takes the first candidate in provider order.
type First struct{}

func (First) Pick(cands []instrument.Resolved) (instrument.Resolved, bool) {
	for _, c := range cands {
		if c.OK() {
			return c, true
		}
	}
	return instrument.Resolved{}, false
}

// HomeMarket prefers candidates listed on the operator's home venue: a symbol
// ending in one of Suffixes, or an exchange hint naming one of Venues. When
// nothing matches it behaves like First.
type HomeMarket struct {
	Suffixes []string
	Venues   []string
}

// DefaultHomeMarket favours Borsa Italiana listings.
var DefaultHomeMarket = HomeMarket{
	Suffixes: []string{".MI"},
	Venues:   []string{"Italiana", "Milan", "MIL"},
}

func (h HomeMarket) Pick(cands []instrument.Resolved) (instrument.Resolved, bool) {
	for _, c := range cands {
		if c.OK() && h.home(c) {
			return c, true
		}
	}
	return First{}.Pick(cands)
}

func (h HomeMarket) home(c instrument.Resolved) bool {
	if sfx := c.Suffix(); sfx != "" {
		for _, s := range h.Suffixes {
			if strings.EqualFold(s, sfx) {
				return true
			}
		}
	}
	if c.ExchangeHint == "" {
		return false
	}
	for _, v := range h.Venues {
		if v == "" {
			continue
		}
		if strings.EqualFold(c.ExchangeHint, v) || strings.Contains(strings.ToLower(c.ExchangeHint), strings.ToLower(v)) {
			return true
		}
	}
	return false
}
