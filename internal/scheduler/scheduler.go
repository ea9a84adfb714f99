// Package scheduler runs named jobs on cron schedules.
package scheduler

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Job is one unit of scheduled work.
type Job func(ctx context.Context) error

// Scheduler wraps a cron runner. A job still running when its next tick
// fires is skipped for that tick.
type Scheduler struct {
	cron *cron.Cron
	log  zerolog.Logger

	// ctx is handed to every job and canceled by Stop.
	ctx    context.Context
	cancel context.CancelFunc
}

func New(log zerolog.Logger) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron:   cron.New(),
		log:    log.With().Str("component", "scheduler").Logger(),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Add registers job under name. spec is a five-field cron expression or a
// descriptor such as "@daily" or "@every 6h".
func (s *Scheduler) Add(spec, name string, job Job) error {
	var wrapped cron.Job = cron.FuncJob(func() { s.run(name, job) })
	wrapped = cron.NewChain(cron.SkipIfStillRunning(cron.DiscardLogger)).Then(wrapped)
	if _, err := s.cron.AddJob(spec, wrapped); err != nil {
		return fmt.Errorf("schedule %s: %w", name, err)
	}
	s.log.Info().Str("schedule", spec).Str("job", name).Msg("job registered")
	return nil
}

// RunNow runs job outside its schedule and returns its error.
func (s *Scheduler) RunNow(name string, job Job) error {
	return s.run(name, job)
}

func (s *Scheduler) run(name string, job Job) error {
	s.log.Debug().Str("job", name).Msg("running job")
	if err := job(s.ctx); err != nil {
		s.log.Error().Err(err).Str("job", name).Msg("job failed")
		return err
	}
	s.log.Debug().Str("job", name).Msg("job completed")
	return nil
}

// Len reports the number of registered jobs.
func (s *Scheduler) Len() int { return len(s.cron.Entries()) }

func (s *Scheduler) Start() {
	s.cron.Start()
	s.log.Info().Msg("scheduler started")
}

// Stop cancels running jobs and waits for them to return.
func (s *Scheduler) Stop() {
	s.cancel()
	<-s.cron.Stop().Done()
	s.log.Info().Msg("scheduler stopped")
}
