package history

import (
	"context"
	"net/url"
	"strings"

	"github.com/rs/zerolog"

	"etfhistory/internal/instrument"
	"etfhistory/internal/provider/investing"
	"etfhistory/internal/provider/yahoo"
	"etfhistory/internal/series"
)

// Router picks the fetcher for a resolved instrument: investing pages go
// to the investing fetcher, everything else to Yahoo. A Yahoo symbol
// without a venue suffix is first completed by the guesser.
type Router struct {
	Investing Fetcher
	Yahoo     Fetcher
	Guess     *yahoo.Guesser
	Log       zerolog.Logger
}

func (rt *Router) Fetch(ctx context.Context, r instrument.Resolved, rng series.Range) (series.Series, Meta) {
	if !r.OK() {
		return nil, Meta{}
	}
	if IsInvesting(r) {
		return rt.Investing.Fetch(ctx, r, rng)
	}
	if r.Suffix() == "" && rt.Guess != nil {
		if sym, ok := rt.Guess.Guess(ctx, r.CanonicalSymbol); ok {
			rt.Log.Debug().Str("ticker", r.QueryIdentifier).Str("from", r.CanonicalSymbol).Str("symbol", sym).Msg("guessed symbol")
			r.CanonicalSymbol = sym
		}
	}
	return rt.Yahoo.Fetch(ctx, r, rng)
}

// IsInvesting reports whether r points at an investing.com page.
func IsInvesting(r instrument.Resolved) bool {
	if r.ProviderName == investing.Name {
		return true
	}
	u, err := url.Parse(r.DetailURL)
	if err != nil {
		return false
	}
	return strings.HasSuffix(u.Hostname(), "investing.com")
}
