// Package resolve runs the resolution waterfall: adapters are asked in
// priority order and the first answer wins.
package resolve

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"etfhistory/internal/instrument"
	"etfhistory/internal/provider"
)

// Waterfall holds the ordered adapters of a run.
type Waterfall struct {
	Adapters []provider.Adapter
	Pacer    provider.Pacer
	Log      zerolog.Logger
}

func New(adapters []provider.Adapter, pacer provider.Pacer, log zerolog.Logger) *Waterfall {
	return &Waterfall{Adapters: adapters, Pacer: pacer, Log: log.With().Str("component", "waterfall").Logger()}
}

// Resolve never fails: a query nobody matched comes back with an empty
// symbol and the "N/A" provider. The pacer runs after every attempt that
// is followed by another one, whatever its outcome.
func (w *Waterfall) Resolve(ctx context.Context, q instrument.Query) instrument.Resolved {
	for i, a := range w.Adapters {
		if i > 0 && w.Pacer != nil {
			if err := w.Pacer.Pace(ctx); err != nil {
				w.Log.Debug().Err(err).Str("query", q.Label()).Msg("pacing interrupted")
				break
			}
		}
		start := time.Now()
		r, ok := a.Resolve(ctx, q)
		if ok && r.OK() {
			r = r.Complete(q, a.Name())
			w.Log.Info().
				Str("query", q.Label()).
				Str("provider", r.ProviderName).
				Str("symbol", r.CanonicalSymbol).
				Dur("took", time.Since(start)).
				Msg("resolved")
			return r
		}
		w.Log.Debug().Str("query", q.Label()).Str("provider", a.Name()).Msg("no match")
	}
	w.Log.Info().Str("query", q.Label()).Msg("unresolved")
	return instrument.UnresolvedFor(q)
}

// Names lists the adapters in priority order.
func (w *Waterfall) Names() []string {
	out := make([]string, len(w.Adapters))
	for i, a := range w.Adapters {
		out[i] = a.Name()
	}
	return out
}
