package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/google/subcommands"

	"etfhistory/internal/config"
	"etfhistory/internal/pipeline"
	"etfhistory/internal/record"
	"etfhistory/internal/scheduler"
)

type serveCmd struct {
	app *App

	port     string
	schedule string
}

func (*serveCmd) Name() string     { return "serve" }
func (*serveCmd) Synopsis() string { return "serves resolution and history over HTTP" }
func (*serveCmd) Usage() string {
	return `etfhistory serve [-port 8080]

Endpoints:
  GET /healthz
  GET /api/resolve?id=<isin|ticker>[&name=]
  GET /api/history?id=<isin|ticker>[&name=][&from=YYYY-MM-DD][&to=YYYY-MM-DD]

With -schedule (a cron spec such as "@daily" or "30 18 * * MON-FRI") the
input list is fetched into the configured sinks on that schedule as well.
`
}

func (c *serveCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.port, "port", "", "listen port (default PORT)")
	f.StringVar(&c.schedule, "schedule", "", "cron spec for refreshing the input list (default SCHEDULE)")
}

func (c *serveCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	stack, err := c.app.setup(func(cfg *config.Config) {
		if c.port != "" {
			cfg.Server.Port = c.port
		}
		if c.schedule != "" {
			cfg.Server.Schedule = c.schedule
		}
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	defer stack.Close()
	log := stack.Log

	batch := stack.Runner()
	batch.Now = c.app.Now
	runner := stack.ServerRunner()
	runner.Now = c.app.Now
	h := NewServer(runner, log, c.app.Now)

	if spec := stack.Config.Server.Schedule; spec != "" {
		sched := scheduler.New(log)
		if err := sched.Add(spec, "refresh", refreshJob(batch, stack.Config.Input.ETFCSV)); err != nil {
			log.Error().Err(err).Msg("invalid schedule")
			return subcommands.ExitFailure
		}
		sched.Start()
		defer sched.Stop()
	}

	// history requests walk several pages, hence the long write timeout
	srv := &http.Server{
		Addr:              ":" + stack.Config.Server.Port,
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      5 * time.Minute,
		IdleTimeout:       60 * time.Second,
	}

	ctx, stop := interruptible(ctx)
	defer stop()
	errc := make(chan error, 1)
	go func() {
		log.Info().Str("addr", srv.Addr).Msg("server listening")
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("server")
			return subcommands.ExitFailure
		}
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
	return subcommands.ExitSuccess
}

// refreshJob fetches the input list into the runner's sink. A run without
// rows is logged by the runner and not treated as a job failure.
func refreshJob(runner *pipeline.Runner, input string) scheduler.Job {
	return func(ctx context.Context) error {
		queries, err := record.ReadQueries(input)
		if err != nil {
			return err
		}
		if _, err := runner.Run(ctx, queries); err != nil && !errors.Is(err, pipeline.ErrNoData) {
			return err
		}
		return nil
	}
}
