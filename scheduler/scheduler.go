// Package scheduler drives periodic scrape runs.
package scheduler

import (
	"log/slog"

	"github.com/robfig/cron/v3"
)

// RunFunc executes one scrape run and reports how many listings it saved.
type RunFunc func() (int, error)

// Scheduler triggers scrape runs on a cron schedule. Each run is a finite,
// one-shot batch; overlapping ticks are skipped rather than queued.
type Scheduler struct {
	cron *cron.Cron
	run  RunFunc
}

// New builds a scheduler around run.
func New(run RunFunc) *Scheduler {
	return &Scheduler{
		cron: cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		run:  run,
	}
}

// Start registers the cron spec and begins scheduling.
func (s *Scheduler) Start(spec string) error {
	if _, err := s.cron.AddFunc(spec, s.tick); err != nil {
		return err
	}
	s.cron.Start()
	slog.Info("scrape schedule active", slog.String("spec", spec))
	return nil
}

// Stop halts scheduling; a run already in flight finishes on its own.
func (s *Scheduler) Stop() {
	if s.cron != nil {
		s.cron.Stop()
	}
}

func (s *Scheduler) tick() {
	slog.Info("scheduled scrape run starting")
	saved, err := s.run()
	if err != nil {
		slog.Error("scheduled scrape run failed", slog.Any("error", err))
		return
	}
	slog.Info("scheduled scrape run complete", slog.Int("listings_saved", saved))
}
