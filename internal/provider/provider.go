// Package provider defines the adapter contract shared by every resolution
// source, the tie-break policy for multi-candidate answers and the named
// extraction strategies adapters are built from.
package provider

import (
	"context"

	"etfhistory/internal/instrument"
)

// Adapter resolves a query against one external source. A false result
// means NONE: the source had no answer, failed, or timed out. Adapters never
// return errors past their own boundary.
//
//go:generate mockgen -package=resolve_test -destination=../resolve/mock_adapter_test.go -source=provider.go Adapter
type Adapter interface {
	Name() string
	Resolve(ctx context.Context, q instrument.Query) (instrument.Resolved, bool)
}

// Func adapts a plain function to the Adapter interface.
type Func struct {
	ProviderName string
	Fn           func(ctx context.Context, q instrument.Query) (instrument.Resolved, bool)
}

func (f Func) Name() string { return f.ProviderName }

func (f Func) Resolve(ctx context.Context, q instrument.Query) (instrument.Resolved, bool) {
	return f.Fn(ctx, q)
}

// Pacer blocks between two attempts of a waterfall.
type Pacer interface {
	Pace(ctx context.Context) error
}
