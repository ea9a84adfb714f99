package cli

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/google/subcommands"

	"etfhistory/internal/provider/justetf"
)

var listHeader = []string{"issuer", "name", "isin", "symbol", "exchange", "currency", "category"}

type listCmd struct {
	app *App

	out   string
	pages int
}

func (*listCmd) Name() string     { return "list" }
func (*listCmd) Synopsis() string { return "downloads the UCITS ETF catalogue into an input table" }
func (*listCmd) Usage() string {
	return `etfhistory list [-out ETF_list.csv] [-pages 50]

Pages through the justETF listing API, drops duplicate ISINs, sorts by
issuer and writes a ';' separated table that fetch and resolve accept as
input.
`
}

func (c *listCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.out, "out", "", "output table (default LIST_CSV)")
	f.IntVar(&c.pages, "pages", 50, "maximum listing pages to download")
}

func (c *listCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	stack, err := c.app.setup(nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	defer stack.Close()
	log := stack.Log

	out := c.out
	if out == "" {
		out = stack.Config.Output.ListCSV
	}
	client, err := justetf.NewAPIClient(justetf.WithHTTPClient(stack.Client.Doer()))
	if err != nil {
		log.Error().Err(err).Msg("listing client")
		return subcommands.ExitFailure
	}

	ctx, stop := interruptible(ctx)
	defer stop()
	etfs, err := justetf.FetchCatalog(ctx, client, c.pages, stack.Pacer.Pace)
	if err != nil {
		log.Error().Err(err).Msg("listing failed")
		return subcommands.ExitFailure
	}
	if len(etfs) == 0 {
		log.Error().Msg("listing returned no ETF")
		return subcommands.ExitFailure
	}

	rows := make([][]string, 0, len(etfs))
	for _, e := range etfs {
		rows = append(rows, []string{e.Issuer, e.Name, e.ISIN, e.Symbol, e.Exchange, e.Currency, e.Category})
	}
	if err := writeTable(out, ';', listHeader, rows); err != nil {
		log.Error().Err(err).Msg("cannot write output")
		return subcommands.ExitFailure
	}
	fmt.Fprintf(c.app.stdout(), "wrote %d ETFs to %s\n", len(etfs), out)
	return subcommands.ExitSuccess
}
