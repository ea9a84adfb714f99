package provider

import (
	"context"
	"net/http"

	"github.com/rs/zerolog"

	"etfhistory/internal/httpx"
	"etfhistory/internal/instrument"
)

// Page is the common shape of an adapter that fetches one document per query
// and runs an extraction Chain over it.
type Page struct {
	ProviderName string
	Client       *httpx.Client
	// Target builds the URL for q; false skips the source without a request.
	Target func(q instrument.Query) (string, bool)
	Header http.Header
	Chain  Chain
	Picker Picker
	Log    zerolog.Logger
}

func (p *Page) Name() string { return p.ProviderName }

func (p *Page) Resolve(ctx context.Context, q instrument.Query) (instrument.Resolved, bool) {
	addr, ok := p.Target(q)
	if !ok {
		return instrument.Resolved{}, false
	}
	body, err := p.Client.GetText(ctx, addr, p.Header)
	if err != nil {
		p.Log.Debug().Err(err).Str("query", q.Label()).Msg("request failed")
		return instrument.Resolved{}, false
	}
	strategy, cands := p.Chain.Run(body)
	if len(cands) == 0 {
		p.Log.Debug().Str("query", q.Label()).Msg("no marker found")
		return instrument.Resolved{}, false
	}
	picker := p.Picker
	if picker == nil {
		picker = First{}
	}
	best, ok := picker.Pick(cands)
	if !ok {
		return instrument.Resolved{}, false
	}
	if best.DetailURL == "" {
		best.DetailURL = addr
	}
	p.Log.Debug().
		Str("query", q.Label()).
		Str("strategy", strategy).
		Int("candidates", len(cands)).
		Str("symbol", best.CanonicalSymbol).
		Msg("matched")
	return best.Complete(q, p.ProviderName), true
}
