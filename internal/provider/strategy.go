package provider

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"etfhistory/internal/instrument"
)

// Strategy is one named way of pulling candidates out of a response body.
type Strategy struct {
	Name    string
	Extract func(body string) []instrument.Resolved
}

// Chain runs strategies in order and stops at the first that yields a
// resolved candidate. The order is the documented fallback order: the
// structural selector first, the generic scan after it.
type Chain []Strategy

// Run returns the name of the winning strategy and its candidates.
func (c Chain) Run(body string) (string, []instrument.Resolved) {
	for _, s := range c {
		cands := s.Extract(body)
		for _, cand := range cands {
			if cand.OK() {
				return s.Name, cands
			}
		}
	}
	return "", nil
}

// Document parses body as HTML. Parse failures yield an empty document.
func Document(body string) *goquery.Document {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		doc, _ = goquery.NewDocumentFromReader(strings.NewReader(""))
	}
	return doc
}

// LabelledValue finds a leaf element whose text is one of labels (case
// insensitive, trailing colon ignored) and returns the text of the element
// that follows it, or of the parent's next sibling for row/cell layouts.
func LabelledValue(sel *goquery.Selection, labels ...string) string {
	var out string
	sel.Find("td, th, dt, dd, span, div, strong, b, label, p, li").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if s.Children().Length() > 0 {
			return true
		}
		if !isLabel(s.Text(), labels) {
			return true
		}
		next := s.Next()
		if next.Length() == 0 {
			next = s.Parent().Next()
		}
		if v := strings.TrimSpace(next.Text()); v != "" {
			out = v
			return false
		}
		return true
	})
	return out
}

func isLabel(text string, labels []string) bool {
	text = strings.TrimSuffix(strings.TrimSpace(text), ":")
	for _, l := range labels {
		if strings.EqualFold(text, l) {
			return true
		}
	}
	return false
}

// ScanSymbols returns every distinct match of re in text, in order.
func ScanSymbols(re *regexp.Regexp, text string) []string {
	var out []string
	seen := map[string]struct{}{}
	for _, m := range re.FindAllString(text, -1) {
		if _, dup := seen[m]; dup {
			continue
		}
		seen[m] = struct{}{}
		out = append(out, m)
	}
	return out
}

// Symbols wraps plain symbols as candidates. Only symbols ending in the
// page venue's suffix are labelled with exchange; codes of other venues
// found on the same page carry no exchange hint. An empty suffix labels
// every symbol.
func Symbols(symbols []string, exchange, suffix string) []instrument.Resolved {
	suffix = strings.ToUpper(suffix)
	out := make([]instrument.Resolved, 0, len(symbols))
	for _, s := range symbols {
		r := instrument.Resolved{CanonicalSymbol: s}
		if suffix == "" || instrument.SymbolSuffix(s) == suffix {
			r.ExchangeHint = exchange
		}
		out = append(out, r)
	}
	return out
}

// Text returns the text of sel with text nodes separated by single spaces,
// so adjacent cells do not run together. Script and style bodies are skipped.
func Text(sel *goquery.Selection) string {
	var parts []string
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			if t := strings.TrimSpace(n.Data); t != "" {
				parts = append(parts, t)
			}
			return
		case html.ElementNode:
			if n.Data == "script" || n.Data == "style" {
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	for _, n := range sel.Nodes {
		walk(n)
	}
	return strings.Join(parts, " ")
}
