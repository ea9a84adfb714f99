package cli

import (
	"context"
	"encoding/csv"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/subcommands"

	"etfhistory/internal/config"
	"etfhistory/internal/instrument"
	"etfhistory/internal/record"
)

// Columns the resolve command adds to its input.
var resolveColumns = []string{"ticker", "exchange", "source"}

type resolveCmd struct {
	app *App

	in  string
	out string
}

func (*resolveCmd) Name() string { return "resolve" }
func (*resolveCmd) Synopsis() string {
	return "adds ticker, exchange and source columns to an ISIN list"
}
func (*resolveCmd) Usage() string {
	return `etfhistory resolve [-in ETF_list.csv] [-out ETF_list_tickers.csv]

Runs the provider waterfall on every row of the input whose ticker column is
empty and writes a copy of the table with ticker, exchange and source
columns. Rows that already carry a ticker are copied unchanged. The
separator of the input is kept.
`
}

func (c *resolveCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.in, "in", "", "input table (default ETF_CSV)")
	f.StringVar(&c.out, "out", "", "output table (default <in>_tickers.csv)")
}

func (c *resolveCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	stack, err := c.app.setup(func(cfg *config.Config) {
		if c.in != "" {
			cfg.Input.ETFCSV = c.in
		}
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	defer stack.Close()
	log := stack.Log

	in := stack.Config.Input.ETFCSV
	out := c.out
	if out == "" {
		out = strings.TrimSuffix(in, filepath.Ext(in)) + "_tickers.csv"
	}
	f, err := os.Open(in)
	if err != nil {
		log.Error().Err(err).Str("path", in).Msg("cannot open input")
		return subcommands.ExitFailure
	}
	tbl, err := record.ReadTable(f)
	f.Close()
	if err != nil {
		log.Error().Err(err).Str("path", in).Msg("cannot read input")
		return subcommands.ExitFailure
	}
	if tbl.Index("isin") < 0 {
		log.Error().Err(record.ErrMissingColumn).Strs("header", tbl.Header).Msg("resolve needs an isin column")
		return subcommands.ExitFailure
	}

	ctx, stop := interruptible(ctx)
	defer stop()
	header, rows, found := Enrich(ctx, stack, tbl)

	if err := writeTable(out, tbl.Comma, header, rows); err != nil {
		log.Error().Err(err).Msg("cannot write output")
		return subcommands.ExitFailure
	}
	fmt.Fprintf(c.app.stdout(), "resolved %d/%d rows into %s\n", found, len(rows), out)
	return subcommands.ExitSuccess
}

// Enrich returns the table with the resolve columns appended when missing
// and filled for rows without a ticker, plus how many rows got one.
func Enrich(ctx context.Context, stack *Stack, tbl *record.Table) ([]string, [][]string, int) {
	header := append([]string(nil), tbl.Header...)
	for _, col := range resolveColumns {
		if tbl.Index(col) < 0 {
			header = append(header, col)
		}
	}
	idx := func(name string) int {
		for i, h := range header {
			if h == name {
				return i
			}
		}
		return -1
	}

	rows := make([][]string, 0, len(tbl.Records))
	found, attempts := 0, 0
	for _, rec := range tbl.Records {
		row := make([]string, len(header))
		copy(row, rec)
		rows = append(rows, row)

		if tbl.Get(rec, "ticker") != "" {
			continue
		}
		q := instrument.NewQuery(tbl.Get(rec, "isin"), tbl.Get(rec, "name"))
		if q.RawIdentifier == "" {
			continue
		}
		if attempts > 0 {
			if err := stack.Pacer.Pace(ctx); err != nil {
				break
			}
		}
		attempts++
		r := stack.Waterfall.Resolve(ctx, q)
		if !r.OK() {
			row[idx("source")] = r.ProviderName
			continue
		}
		found++
		row[idx("ticker")] = r.CanonicalSymbol
		row[idx("exchange")] = r.ExchangeHint
		row[idx("source")] = r.ProviderName
	}
	return header, rows, found
}

func writeTable(path string, comma rune, header []string, rows [][]string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	w := csv.NewWriter(f)
	w.Comma = comma
	_ = w.Write(header)
	_ = w.WriteAll(rows)
	if err := w.Error(); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}
