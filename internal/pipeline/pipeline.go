// Package pipeline runs a batch: every query is resolved, fetched and
// normalised on its own, and the surviving rows are written in one sorted
// batch at the end.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"etfhistory/internal/history"
	"etfhistory/internal/instrument"
	"etfhistory/internal/provider"
	"etfhistory/internal/provider/mapping"
	"etfhistory/internal/record"
	"etfhistory/internal/series"
)

// ErrNoData is returned when no instrument of the run produced a row.
var ErrNoData = errors.New("no rows produced")

// Resolver turns a query into a resolved instrument. It never fails.
type Resolver interface {
	Resolve(ctx context.Context, q instrument.Query) instrument.Resolved
}

// MappingSaver persists a resolution for later runs.
type MappingSaver interface {
	SaveMapping(ctx context.Context, e mapping.Entry) error
}

// Runner holds the collaborators of a run. Workers <= 1 processes queries
// strictly one after the other, pacing in between.
type Runner struct {
	Resolver Resolver
	Fetcher  history.Fetcher
	Sink     record.Sink
	Pacer    provider.Pacer
	Mappings MappingSaver
	Range    series.Range
	Workers  int
	Log      zerolog.Logger
	Now      func() time.Time
}

// Result is the outcome of one query.
type Result struct {
	Query    instrument.Query
	Resolved instrument.Resolved
	Meta     history.Meta
	Rows     []record.Row
	Outcome  record.Outcome
}

// Run processes queries and writes their rows sorted by ticker and date.
// Per-query failures only show in the summary; the returned error is
// ErrNoData or a sink failure.
func (r *Runner) Run(ctx context.Context, queries []instrument.Query) (record.Summary, error) {
	sum := record.Summary{RunID: uuid.NewString()}
	log := r.Log.With().Str("run_id", sum.RunID).Logger()
	rng := r.rangeFor()
	log.Info().
		Int("inputs", len(queries)).
		Int("workers", max(r.Workers, 1)).
		Str("from", rng.From.Format(series.DateLayout)).
		Str("to", rng.To.Format(series.DateLayout)).
		Msg("run started")

	results := make([]Result, len(queries))
	if r.Workers <= 1 {
		for i, q := range queries {
			if i > 0 && r.Pacer != nil {
				if err := r.Pacer.Pace(ctx); err != nil {
					log.Warn().Err(err).Int("done", i).Msg("run interrupted")
					results = results[:i]
					break
				}
			}
			results[i] = r.process(ctx, log, q, rng)
		}
	} else {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(r.Workers)
		for i, q := range queries {
			g.Go(func() error {
				results[i] = r.process(gctx, log, q, rng)
				return nil
			})
		}
		_ = g.Wait()
	}

	var rows []record.Row
	for _, res := range results {
		sum.Add(res.Outcome, res.Resolved.ProviderName, len(res.Rows))
		rows = append(rows, res.Rows...)
	}
	if len(rows) == 0 {
		sum.Log(log)
		log.Error().Msg("no instrument produced any row")
		return sum, ErrNoData
	}

	record.Sort(rows)
	if err := r.Sink.Write(ctx, rows); err != nil {
		return sum, fmt.Errorf("write rows: %w", err)
	}
	sum.Log(log)
	return sum, nil
}

// Process resolves, fetches and normalises one query.
func (r *Runner) Process(ctx context.Context, q instrument.Query) Result {
	return r.process(ctx, r.Log, q, r.rangeFor())
}

func (r *Runner) process(ctx context.Context, log zerolog.Logger, q instrument.Query, rng series.Range) (res Result) {
	res = Result{Query: q, Resolved: instrument.UnresolvedFor(q), Outcome: record.OutcomeUnresolved}
	log = log.With().Str("query", q.Label()).Logger()
	defer func() {
		if rec := recover(); rec != nil {
			log.Error().Interface("panic", rec).Msg("instrument aborted")
			res.Rows = nil
			if res.Resolved.OK() {
				res.Outcome = record.OutcomeNoData
			}
		}
	}()

	res.Resolved = r.Resolver.Resolve(ctx, q)
	if !res.Resolved.OK() {
		log.Warn().Msg("skipped: unresolved")
		return res
	}

	s, meta := r.Fetcher.Fetch(ctx, res.Resolved, rng)
	res.Meta = meta
	res.Rows = record.Normalize(res.Resolved, s, meta)
	if len(res.Rows) == 0 {
		res.Outcome = record.OutcomeNoData
		log.Warn().Str("provider", res.Resolved.ProviderName).Str("symbol", res.Resolved.CanonicalSymbol).Msg("no data")
		return res
	}
	res.Outcome = record.OutcomeWritten
	log.Info().
		Str("provider", res.Resolved.ProviderName).
		Str("symbol", res.Resolved.CanonicalSymbol).
		Str("source", meta.Source).
		Str("path", meta.Path).
		Int("rows", len(res.Rows)).
		Msg("fetched")

	r.remember(ctx, log, res)
	return res
}

// remember stores a scraped resolution that produced data.
func (r *Runner) remember(ctx context.Context, log zerolog.Logger, res Result) {
	if r.Mappings == nil || res.Resolved.ProviderName == mapping.Name || res.Query.RawIdentifier == "" {
		return
	}
	resolved := res.Resolved
	if res.Meta.Symbol != "" && !history.IsInvesting(resolved) {
		resolved.CanonicalSymbol = res.Meta.Symbol
	}
	e := mapping.EntryFor(res.Query.RawIdentifier, resolved, history.IsInvesting(resolved))
	if err := r.Mappings.SaveMapping(ctx, e); err != nil {
		log.Warn().Err(err).Msg("save mapping failed")
	}
}

func (r *Runner) rangeFor() series.Range {
	if !r.Range.To.IsZero() {
		return r.Range
	}
	now := time.Now
	if r.Now != nil {
		now = r.Now
	}
	return series.DefaultRange(now())
}
