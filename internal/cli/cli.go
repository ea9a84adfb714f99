// Package cli implements the etfhistory commands.
package cli

import (
	"context"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/subcommands"
	"github.com/rs/zerolog"

	"etfhistory/internal/config"
	"etfhistory/internal/httpx"
	"etfhistory/internal/logger"
)

// App carries what every command shares. Zero fields are filled from the
// loaded configuration; tests set them to swap in doubles.
type App struct {
	ConfigPath string
	Config     *config.Config
	Log        *zerolog.Logger
	Doer       httpx.HTTPClient
	Stdout     io.Writer
	Now        func() time.Time
}

// Register adds every command to c.
func Register(c *subcommands.Commander, app *App) {
	c.Register(&fetchCmd{app: app}, "")
	c.Register(&resolveCmd{app: app}, "")
	c.Register(&listCmd{app: app}, "")
	c.Register(&serveCmd{app: app}, "")
}

func (a *App) config() (config.Config, error) {
	if a.Config != nil {
		return *a.Config, a.Config.Validate()
	}
	return config.Load(a.ConfigPath)
}

func (a *App) logger(cfg config.Config) zerolog.Logger {
	if a.Log != nil {
		return *a.Log
	}
	return logger.New(logger.Config{Level: cfg.Log.Level, Pretty: cfg.Log.Pretty})
}

func (a *App) stdout() io.Writer {
	if a.Stdout != nil {
		return a.Stdout
	}
	return os.Stdout
}

func (a *App) now() time.Time {
	if a.Now != nil {
		return a.Now()
	}
	return time.Now()
}

// setup loads config, builds the logger and the stack.
func (a *App) setup(override func(*config.Config)) (*Stack, error) {
	cfg, err := a.config()
	if err != nil {
		return nil, err
	}
	if override != nil {
		override(&cfg)
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}
	return NewStack(cfg, a.logger(cfg), a.Doer)
}

// interruptible returns a context canceled on SIGINT or SIGTERM.
func interruptible(ctx context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
}
