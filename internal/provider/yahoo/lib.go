package yahoo

import (
	"context"
	"fmt"

	"github.com/wnjoon/go-yfinance/pkg/lookup"
	"github.com/wnjoon/go-yfinance/pkg/ticker"
)

// Lib answers through go-yfinance, which keeps its own cookie and crumb
// session. Its calls bypass the shared session and its host gate, so it is
// only used for one-off lookups, never for probing or history.
type Lib struct{}

// Profile reads the quote info of symbol.
func (Lib) Profile(ctx context.Context, symbol string) (Profile, error) {
	if err := ctx.Err(); err != nil {
		return Profile{}, err
	}
	t, err := ticker.New(symbol)
	if err != nil {
		return Profile{}, fmt.Errorf("ticker %s: %w", symbol, err)
	}
	defer t.Close()

	info, err := t.Info()
	if err != nil {
		return Profile{}, fmt.Errorf("info %s: %w", symbol, err)
	}
	p := Profile{LongName: info.LongName, Exchange: info.Exchange}
	if p.LongName == "" {
		p.LongName = info.ShortName
	}
	return p, nil
}

// LookupISIN returns up to n Yahoo symbols listed for isin.
func (Lib) LookupISIN(ctx context.Context, isin string, n int) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	lc, err := lookup.New(isin)
	if err != nil {
		return nil, fmt.Errorf("lookup %s: %w", isin, err)
	}
	defer lc.Close()

	results, err := lc.Stock(n)
	if err != nil {
		return nil, fmt.Errorf("lookup %s: %w", isin, err)
	}
	out := make([]string, 0, len(results))
	for _, r := range results {
		if r.Symbol != "" {
			out = append(out, r.Symbol)
		}
	}
	return out, nil
}
