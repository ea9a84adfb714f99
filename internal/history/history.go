// Package history fetches daily close series for resolved instruments.
// Every source has a primary structured endpoint and falls back to the
// table rendered on the page it already loaded.
package history

import (
	"context"

	"etfhistory/internal/instrument"
	"etfhistory/internal/series"
)

// Meta is what a source says about the instrument besides prices. Empty
// fields are unknown.
type Meta struct {
	Source   string `json:"source"`
	Symbol   string `json:"symbol"`
	Currency string `json:"currency"`
	Sector   string `json:"sector"`
	Exchange string `json:"exchange"`
	LongName string `json:"long_name"`
	// Path is "primary" or "fallback", whichever produced the rows.
	Path string `json:"path"`
}

const (
	PathPrimary  = "primary"
	PathFallback = "fallback"
)

// Fetcher returns the normalised series for r within rng. Failures are
// absorbed: an unusable source yields an empty series.
type Fetcher interface {
	Fetch(ctx context.Context, r instrument.Resolved, rng series.Range) (series.Series, Meta)
}
