// Package schedule starts compliance crawls on a cron schedule.
package schedule

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/kalambet/laiwatch/internal/crawl"
)

// Starter starts a crawl. *crawl.Controller satisfies it.
type Starter interface {
	Start(seedURL string) (string, error)
}

// Standard 5-field expressions plus descriptors such as @daily and @every 6h.
var parser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// Scheduler fires one crawl of a fixed seed per schedule tick. A tick that
// finds a crawl already running is skipped.
type Scheduler struct {
	cron    *cron.Cron
	entry   cron.EntryID
	starter Starter
	seed    string
	log     *zap.Logger
}

func New(s Starter, spec, seed string, logger *zap.Logger) (*Scheduler, error) {
	if seed == "" {
		return nil, errors.New("schedule: seed URL is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	sch := &Scheduler{
		starter: s,
		seed:    seed,
		log:     logger.With(zap.String("component", "schedule")),
	}

	cl := cronLogger{sch.log.Sugar()}
	sch.cron = cron.New(cron.WithParser(parser), cron.WithChain(cron.Recover(cl)), cron.WithLogger(cl))
	id, err := sch.cron.AddFunc(spec, sch.fire)
	if err != nil {
		return nil, fmt.Errorf("parsing schedule %q: %w", spec, err)
	}
	sch.entry = id
	return sch, nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
	s.log.Info("crawl schedule started", zap.String("seed", s.seed), zap.Time("next", s.Next()))
}

// Stop prevents further ticks and waits for a tick in progress, or ctx.
func (s *Scheduler) Stop(ctx context.Context) error {
	select {
	case <-s.cron.Stop().Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Next is the time of the next tick; zero before Start.
func (s *Scheduler) Next() time.Time {
	return s.cron.Entry(s.entry).Next
}

func (s *Scheduler) fire() {
	runID, err := s.starter.Start(s.seed)
	switch {
	case errors.Is(err, crawl.ErrAlreadyRunning):
		s.log.Info("skipping scheduled crawl; a crawl is already running", zap.String("seed", s.seed))
	case err != nil:
		s.log.Error("scheduled crawl failed to start", zap.String("seed", s.seed), zap.Error(err))
	default:
		s.log.Info("scheduled crawl started", zap.String("run_id", runID), zap.String("seed", s.seed))
	}
}

// cronLogger routes the cron library's logs through zap.
type cronLogger struct {
	s *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.s.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.s.Errorw(msg, append(keysAndValues, "error", err)...)
}
