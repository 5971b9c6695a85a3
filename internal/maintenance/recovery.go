// Package maintenance runs periodic endpoint health recovery on a cron schedule.
package maintenance

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// DefaultSchedule is used when no schedule is configured.
const DefaultSchedule = "@every 30s"

// Optimizer is the recovery target, normally the orchestrator.
type Optimizer interface {
	OptimizeAll()
}

// Scheduler invokes Optimizer.OptimizeAll on a cron schedule.
type Scheduler struct {
	target  Optimizer
	log     zerolog.Logger
	cron    *cron.Cron
	entryID cron.EntryID

	runs    atomic.Int64
	lastRun atomic.Int64 // unix nanos
}

// NewScheduler parses schedule (standard cron or @every descriptor) and
// prepares a stopped scheduler.
func NewScheduler(schedule string, target Optimizer, log zerolog.Logger) (*Scheduler, error) {
	if schedule == "" {
		schedule = DefaultSchedule
	}
	s := &Scheduler{
		target: target,
		log:    log,
		cron:   cron.New(),
	}
	id, err := s.cron.AddFunc(schedule, s.RunNow)
	if err != nil {
		return nil, fmt.Errorf("maintenance: invalid schedule %q: %w", schedule, err)
	}
	s.entryID = id
	return s, nil
}

// Start starts the cron scheduler.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.log.Info().Time("next", s.Next()).Msg("recovery scheduler started")
}

// Stop stops the scheduler and waits for a running recovery pass, bounded by ctx.
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RunNow performs one recovery pass immediately.
func (s *Scheduler) RunNow() {
	start := time.Now()
	s.target.OptimizeAll()
	s.runs.Add(1)
	s.lastRun.Store(start.UnixNano())
	s.log.Debug().Dur("took", time.Since(start)).Msg("recovery pass finished")
}

// Runs returns the number of completed recovery passes.
func (s *Scheduler) Runs() int64 { return s.runs.Load() }

// LastRun returns the start time of the latest pass, zero if none ran.
func (s *Scheduler) LastRun() time.Time {
	n := s.lastRun.Load()
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n)
}

// Next returns the next scheduled firing after now.
func (s *Scheduler) Next() time.Time {
	entry := s.cron.Entry(s.entryID)
	if entry.Schedule == nil {
		return time.Time{}
	}
	return entry.Schedule.Next(time.Now())
}
