package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/google/subcommands"

	"etfhistory/internal/config"
	"etfhistory/internal/pipeline"
	"etfhistory/internal/record"
)

type fetchCmd struct {
	app *App

	in           string
	out          string
	mode         string
	sqlite       string
	workers      int
	saveMappings bool
}

func (*fetchCmd) Name() string     { return "fetch" }
func (*fetchCmd) Synopsis() string { return "resolves every input row and appends its daily closes" }
func (*fetchCmd) Usage() string {
	return `etfhistory fetch [-in ETF_list.csv] [-out etf_prices.csv] [-mode append|overwrite]

Reads the input table (',' or ';' separated, with a name column and an isin
or ticker column), resolves each instrument through the provider waterfall,
downloads its daily closes since 2010-01-01 and writes the rows

  name,ticker,date,close,sector,currency

sorted by ticker and date. Instruments nobody resolves are skipped. The run
fails when the input lacks an identifier column or no row is produced.

With -sqlite the rows are also upserted into a SQLite database, and with
-save-mappings successful resolutions are stored there for later runs.
`
}

func (c *fetchCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.in, "in", "", "input table (default ETF_CSV)")
	f.StringVar(&c.out, "out", "", "output CSV (default OUT_CSV)")
	f.StringVar(&c.mode, "mode", "", "append or overwrite (default SINK_MODE)")
	f.StringVar(&c.sqlite, "sqlite", "", "also write to this SQLite database (default SQLITE_PATH)")
	f.IntVar(&c.workers, "workers", 0, "parallel instruments (default WORKERS)")
	f.BoolVar(&c.saveMappings, "save-mappings", false, "store resolutions in the SQLite database")
}

func (c *fetchCmd) override(cfg *config.Config) {
	if c.in != "" {
		cfg.Input.ETFCSV = c.in
	}
	if c.out != "" {
		cfg.Output.OutCSV = c.out
	}
	if c.mode != "" {
		cfg.Output.SinkMode = c.mode
	}
	if c.sqlite != "" {
		cfg.Output.SQLitePath = c.sqlite
	}
	if c.workers > 0 {
		cfg.Workers = c.workers
	}
	if c.saveMappings {
		cfg.Output.SaveMappings = true
	}
}

func (c *fetchCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	stack, err := c.app.setup(c.override)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	defer stack.Close()
	log := stack.Log

	queries, err := record.ReadQueries(stack.Config.Input.ETFCSV)
	if err != nil {
		log.Error().Err(err).Str("path", stack.Config.Input.ETFCSV).Msg("cannot read input")
		return subcommands.ExitFailure
	}

	ctx, stop := interruptible(ctx)
	defer stop()
	runner := stack.Runner()
	runner.Now = c.app.Now
	sum, err := runner.Run(ctx, queries)
	switch {
	case errors.Is(err, pipeline.ErrNoData):
		fmt.Fprintf(c.app.stdout(), "aborted: no rows produced from %d inputs (%d unresolved, %d without data)\n",
			sum.Inputs, sum.Unresolved, sum.NoData)
		return subcommands.ExitFailure
	case err != nil:
		log.Error().Err(err).Msg("run failed")
		return subcommands.ExitFailure
	}
	fmt.Fprintf(c.app.stdout(), "wrote %d rows for %d/%d instruments to %s\n",
		sum.Rows, sum.Resolved-sum.NoData, sum.Inputs, stack.Config.Output.OutCSV)
	return subcommands.ExitSuccess
}
