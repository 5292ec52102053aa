package pipeline

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Job is one schedulable run. *Runner implements it.
type Job interface {
	Run(ctx context.Context, opts RunOptions) (*Result, error)
}

// Scheduler runs a Job every Interval from a single goroutine, so runs never
// overlap. Run errors are logged and the next tick proceeds.
type Scheduler struct {
	job      Job
	interval time.Duration
	opts     RunOptions
	onResult func(*Result)
	logger   *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewScheduler creates a Scheduler. opts.Now is ignored; each run uses the clock.
func NewScheduler(job Job, interval time.Duration, opts RunOptions, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	opts.Now = time.Time{}
	return &Scheduler{
		job:      job,
		interval: interval,
		opts:     opts,
		logger:   logger,
	}
}

// OnResult registers fn to receive every successful result. Call before Start.
func (s *Scheduler) OnResult(fn func(*Result)) {
	s.onResult = fn
}

// Start begins the run loop.
func (s *Scheduler) Start(ctx context.Context) error {
	s.ctx, s.cancel = context.WithCancel(ctx)

	s.wg.Add(1)
	go s.loop()

	s.logger.Info("scheduler started",
		"interval", s.interval,
		"event_ticker", s.opts.EventTicker,
	)

	return nil
}

// Stop cancels the loop and waits for an in-flight run to return.
func (s *Scheduler) Stop(ctx context.Context) error {
	if s.cancel != nil {
		s.cancel()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("scheduler stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Scheduler) loop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	// Run immediately on start.
	s.runOnce()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.runOnce()
		}
	}
}

func (s *Scheduler) runOnce() {
	res, err := s.job.Run(s.ctx, s.opts)
	if err != nil {
		if s.ctx.Err() == nil {
			s.logger.Error("scheduled run failed", "error", err)
		}
		return
	}
	if s.onResult != nil {
		s.onResult(res)
	}
}
