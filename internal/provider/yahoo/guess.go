package yahoo

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/rs/zerolog"

	"etfhistory/internal/httpx"
	"etfhistory/internal/instrument"
	"etfhistory/internal/provider"
)

// Guesser derives a Yahoo symbol from a plain ticker by trying venue
// suffixes in order and keeping the first candidate with a live quote.
type Guesser struct {
	Client   *httpx.Client
	Suffixes []string
	Pacer    provider.Pacer
	Log      zerolog.Logger
}

func NewGuesser(client *httpx.Client, suffixes []string, pacer provider.Pacer, log zerolog.Logger) *Guesser {
	return &Guesser{
		Client:   client,
		Suffixes: suffixes,
		Pacer:    pacer,
		Log:      log.With().Str("provider", Name).Str("mode", "guess").Logger(),
	}
}

// ParseSuffixes splits a comma separated suffix list. Blank entries stand
// for the bare ticker; duplicates keep their first position.
func ParseSuffixes(s string) []string {
	var out []string
	seen := map[string]struct{}{}
	for _, p := range strings.Split(s, ",") {
		p = strings.ToUpper(strings.TrimSpace(p))
		if p != "" && !strings.HasPrefix(p, ".") {
			p = "." + p
		}
		if _, dup := seen[p]; dup {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	return out
}

// Candidates lists the symbols to probe for ticker, de-duplicated. A ticker
// that already carries a suffix is probed as given first.
func (g *Guesser) Candidates(ticker string) []string {
	ticker = strings.ToUpper(strings.TrimSpace(ticker))
	if ticker == "" {
		return nil
	}
	var out []string
	seen := map[string]struct{}{}
	add := func(s string) {
		if _, dup := seen[s]; !dup {
			seen[s] = struct{}{}
			out = append(out, s)
		}
	}
	base := ticker
	if sfx := instrument.SymbolSuffix(ticker); sfx != "" {
		add(ticker)
		base = strings.TrimSuffix(ticker, sfx)
	}
	for _, s := range g.Suffixes {
		add(base + s)
	}
	return out
}

// Guess probes candidates in order and stops at the first live one.
func (g *Guesser) Guess(ctx context.Context, ticker string) (string, bool) {
	for i, sym := range g.Candidates(ticker) {
		if i > 0 && g.Pacer != nil {
			if err := g.Pacer.Pace(ctx); err != nil {
				return "", false
			}
		}
		if g.Probe(ctx, sym) {
			g.Log.Debug().Str("ticker", ticker).Str("symbol", sym).Msg("live quote")
			return sym, true
		}
	}
	g.Log.Debug().Str("ticker", ticker).Msg("no live candidate")
	return "", false
}

// Probe reports whether sym answers with a regular market price.
func (g *Guesser) Probe(ctx context.Context, sym string) bool {
	body, err := g.Client.GetText(ctx, ProbeURL(sym), nil)
	if err != nil {
		g.Log.Debug().Err(err).Str("symbol", sym).Msg("probe failed")
		return false
	}
	var v any
	if err := json.Unmarshal([]byte(body), &v); err != nil {
		return false
	}
	return LivePrice(v)
}
