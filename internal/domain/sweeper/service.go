package sweeper

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/multierr"

	"buddydesk/internal/pkg/logger"
	"buddydesk/internal/pkg/metrics"
)

const defaultInterval = 15 * time.Minute

// ServiceParams configure the sweeper service.
type ServiceParams struct {
	Logger   *logger.Logger
	Lock     Lock
	Metrics  *metrics.JobMetrics
	Interval time.Duration
	Jobs     []Job
}

// Service runs the registered jobs under the lock, once or on a fixed cadence.
type Service struct {
	log      *logger.Logger
	lock     Lock
	metrics  *metrics.JobMetrics
	interval time.Duration
	jobs     []Job
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Lock == nil {
		return nil, fmt.Errorf("lock required")
	}
	if len(params.Jobs) == 0 {
		return nil, fmt.Errorf("at least one job required")
	}
	if params.Logger == nil {
		params.Logger = logger.Nop()
	}
	interval := params.Interval
	if interval <= 0 {
		interval = defaultInterval
	}
	return &Service{
		log:      params.Logger,
		lock:     params.Lock,
		metrics:  params.Metrics,
		interval: interval,
		jobs:     params.Jobs,
	}, nil
}

// Run sweeps immediately, then every interval until ctx is cancelled.
func (s *Service) Run(ctx context.Context) error {
	if err := s.RunOnce(ctx); err != nil {
		s.log.Error(ctx, "sweep failed", err)
	}
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info(ctx, "sweeper context canceled")
			return ctx.Err()
		case <-ticker.C:
			if err := s.RunOnce(ctx); err != nil {
				s.log.Error(ctx, "sweep failed", err)
			}
		}
	}
}

// RunOnce runs every job a single time. A cycle skipped because another
// instance holds the lock is not an error.
func (s *Service) RunOnce(ctx context.Context) error {
	locked, err := s.lock.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("lock acquire: %w", err)
	}
	if !locked {
		s.log.Info(ctx, "another sweeper instance is running; skipping this cycle")
		return nil
	}
	defer func() {
		// Release even if ctx was cancelled mid-run.
		relCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if relErr := s.lock.Release(relCtx); relErr != nil {
			s.log.Error(ctx, "failed to release sweeper lock", relErr)
		}
	}()

	var errs error
	for _, job := range s.jobs {
		if ctx.Err() != nil {
			multierr.AppendInto(&errs, ctx.Err())
			break
		}
		multierr.AppendInto(&errs, s.runJob(ctx, job))
	}
	return errs
}

func (s *Service) runJob(ctx context.Context, job Job) error {
	jobCtx := s.log.WithFields(ctx, map[string]any{"job": job.Name(), "event": "sweeper.job"})
	s.log.Info(jobCtx, "job start")

	start := time.Now()
	affected, err := job.Run(jobCtx)
	duration := time.Since(start)

	s.metrics.ObserveDuration(job.Name(), duration)
	s.metrics.AddAffected(job.Name(), affected)
	jobCtx = s.log.WithFields(jobCtx, map[string]any{"duration_ms": duration.Milliseconds(), "affected": affected})
	if err != nil {
		s.metrics.IncFailure(job.Name())
		if errors.Is(err, context.Canceled) {
			s.log.Warn(jobCtx, "job interrupted")
		} else {
			s.log.Error(jobCtx, "job failed", err)
		}
		return fmt.Errorf("%s: %w", job.Name(), err)
	}
	s.metrics.IncSuccess(job.Name())
	s.log.Info(jobCtx, "job completed")
	return nil
}
