// Package scheduler runs the analysis on a cron schedule.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/sartorproj/stockarima/logger"
)

// ErrAlreadyRunning is returned by RunNow while another run is in progress.
var ErrAlreadyRunning = errors.New("job is already running")

// ErrStopped is returned by RunNow after Stop.
var ErrStopped = errors.New("scheduler is stopped")

// Job is one scheduled unit of work.
type Job func(ctx context.Context) error

// Scheduler manages the cron entry of a single job.
type Scheduler struct {
	Cron  *cron.Cron
	Ctx   context.Context
	entry cron.EntryID
	job   Job
	log   *logger.Entry
	runs  atomic.Int64
	fails atomic.Int64

	running atomic.Bool
	mu      sync.Mutex
	stopped bool
	wg      sync.WaitGroup
}

// NewScheduler registers job under a six-field cron spec (seconds first).
// An overlapping trigger is skipped while the previous run is still going.
func NewScheduler(ctx context.Context, spec string, job Job, log *logger.Log) (*Scheduler, error) {
	if job == nil {
		return nil, errors.New("scheduler: nil job")
	}
	if log == nil {
		log = logger.GetLogger()
	}
	entry := log.WithComponent("scheduler")
	cronLog := cron.PrintfLogger(entry)

	s := &Scheduler{
		Cron: cron.New(
			cron.WithSeconds(),
			cron.WithLogger(cronLog),
			cron.WithChain(cron.Recover(cronLog), cron.SkipIfStillRunning(cronLog)),
		),
		Ctx: ctx,
		job: job,
		log: entry,
	}
	id, err := s.Cron.AddFunc(spec, s.task)
	if err != nil {
		return nil, fmt.Errorf("register job %q: %w", spec, err)
	}
	s.entry = id
	return s, nil
}

// Start starts the cron scheduler.
func (s *Scheduler) Start() {
	s.Cron.Start()
	s.log.WithFields(logger.Fields{"next": s.Next().Format(time.RFC3339)}).Info("scheduler started")
}

// Stop stops the scheduler and waits for a running job to return,
// including one started by RunNow.
func (s *Scheduler) Stop() {
	<-s.Cron.Stop().Done()
	s.mu.Lock()
	s.stopped = true
	s.mu.Unlock()
	s.wg.Wait()
	s.log.WithFields(logger.Fields{"runs": s.runs.Load(), "failures": s.fails.Load()}).Info("scheduler stopped")
}

// RunNow executes the job immediately, outside the schedule.
// At most one run is in progress at a time, whether started here or by cron.
func (s *Scheduler) RunNow() error {
	return s.run()
}

// Next returns the next scheduled activation, or the zero time before Start.
func (s *Scheduler) Next() time.Time {
	return s.Cron.Entry(s.entry).Next
}

// Runs returns how many times the job has been executed.
func (s *Scheduler) Runs() int64 {
	return s.runs.Load()
}

func (s *Scheduler) task() {
	err := s.run()
	if errors.Is(err, ErrAlreadyRunning) {
		s.log.Info("previous run still in progress, skipping")
		return
	}
	if err != nil {
		s.log.WithError(err).Error("scheduled run failed")
	}
}

func (s *Scheduler) run() error {
	if err := s.Ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return ErrStopped
	}
	if !s.running.CompareAndSwap(false, true) {
		s.mu.Unlock()
		return ErrAlreadyRunning
	}
	s.wg.Add(1)
	s.mu.Unlock()
	defer func() {
		s.running.Store(false)
		s.wg.Done()
	}()

	start := time.Now()
	s.runs.Add(1)
	err := s.job(s.Ctx)
	if err != nil {
		s.fails.Add(1)
	}
	logger.LogPerformanceEntry(s.log, "scheduler", "job", time.Since(start), logger.Fields{"ok": err == nil})
	return err
}
