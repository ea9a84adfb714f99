package main

import (
	"context"
	"flag"
	"os"
	"path"

	"github.com/google/subcommands"

	"etfhistory/internal/cli"
)

func main() {
	commander := subcommands.NewCommander(flag.CommandLine, path.Base(os.Args[0]))
	commander.Register(commander.HelpCommand(), "")
	commander.Register(commander.FlagsCommand(), "")
	commander.Register(commander.CommandsCommand(), "")

	app := &cli.App{}
	flag.StringVar(&app.ConfigPath, "config", "", "path to config.json (default CONFIG_FILE or ./config.json)")
	cli.Register(commander, app)

	flag.Parse()
	os.Exit(int(commander.Execute(context.Background())))
}
