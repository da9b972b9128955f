package sweeper

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"buddydesk/internal/domain/buddyrequest"
	"buddydesk/internal/pkg/logger"
)

const (
	defaultPendingTTL  = 48 * time.Hour
	defaultBatchSize   = 200
	defaultConcurrency = 4
)

// Job is one unit of scheduled work. Run reports how many rows it changed.
type Job interface {
	Name() string
	Run(ctx context.Context) (int, error)
}

type requestFinder interface {
	FindPendingBefore(ctx context.Context, cutoff time.Time, limit int) ([]buddyrequest.BuddyRequest, error)
	FindAssignedPaidBefore(ctx context.Context, date string, limit int) ([]buddyrequest.BuddyRequest, error)
}

type paidChecker interface {
	CompletedRequestIDs(ctx context.Context, requestIDs []int64) (map[int64]bool, error)
}

type canceller interface {
	Cancel(ctx context.Context, id int64, reason string) (*buddyrequest.BuddyRequest, error)
}

// ExpiryJobParams configure the request expiry job.
type ExpiryJobParams struct {
	Logger      *logger.Logger
	Requests    requestFinder
	Payments    paidChecker
	Canceller   canceller
	PendingTTL  time.Duration
	Location    *time.Location
	BatchSize   int
	Concurrency int
}

// NewExpiryJob builds the job that cancels stale requests with reason
// system_timeout: PENDING requests older than PendingTTL, and paid-flow
// requests still unpaid once their preferred date has passed.
func NewExpiryJob(params ExpiryJobParams) (*ExpiryJob, error) {
	if params.Requests == nil {
		return nil, fmt.Errorf("request finder required")
	}
	if params.Payments == nil {
		return nil, fmt.Errorf("payment checker required")
	}
	if params.Canceller == nil {
		return nil, fmt.Errorf("canceller required")
	}
	if params.Logger == nil {
		params.Logger = logger.Nop()
	}
	if params.PendingTTL <= 0 {
		params.PendingTTL = defaultPendingTTL
	}
	if params.Location == nil {
		params.Location = time.UTC
	}
	if params.BatchSize <= 0 {
		params.BatchSize = defaultBatchSize
	}
	if params.Concurrency <= 0 {
		params.Concurrency = defaultConcurrency
	}
	return &ExpiryJob{
		log:         params.Logger,
		requests:    params.Requests,
		payments:    params.Payments,
		canceller:   params.Canceller,
		pendingTTL:  params.PendingTTL,
		loc:         params.Location,
		batchSize:   params.BatchSize,
		concurrency: params.Concurrency,
		now:         time.Now,
	}, nil
}

type ExpiryJob struct {
	log         *logger.Logger
	requests    requestFinder
	payments    paidChecker
	canceller   canceller
	pendingTTL  time.Duration
	loc         *time.Location
	batchSize   int
	concurrency int
	now         func() time.Time
}

func (j *ExpiryJob) Name() string { return "request-expiry" }

func (j *ExpiryJob) Run(ctx context.Context) (int, error) {
	var errs error
	pending, err := j.expireStalePending(ctx)
	multierr.AppendInto(&errs, err)
	unpaid, err := j.expireUnpaid(ctx)
	multierr.AppendInto(&errs, err)
	return pending + unpaid, errs
}

func (j *ExpiryJob) expireStalePending(ctx context.Context) (int, error) {
	cutoff := j.now().UTC().Add(-j.pendingTTL)
	rows, err := j.requests.FindPendingBefore(ctx, cutoff, j.batchSize)
	if err != nil {
		return 0, fmt.Errorf("query stale pending requests: %w", err)
	}
	count, err := j.cancelAll(ctx, ids(rows))
	logCtx := j.log.WithFields(ctx, map[string]any{"count": count, "cutoff": cutoff})
	j.log.Info(logCtx, "pending request expiry loop complete")
	return count, err
}

func (j *ExpiryJob) expireUnpaid(ctx context.Context) (int, error) {
	today := j.now().In(j.loc).Format(time.DateOnly)
	rows, err := j.requests.FindAssignedPaidBefore(ctx, today, j.batchSize)
	if err != nil {
		return 0, fmt.Errorf("query past paid-flow requests: %w", err)
	}
	if len(rows) == 0 {
		return 0, nil
	}
	paid, err := j.payments.CompletedRequestIDs(ctx, ids(rows))
	if err != nil {
		return 0, fmt.Errorf("query completed payments: %w", err)
	}
	var unpaid []int64
	for _, row := range rows {
		if !paid[row.ID] {
			unpaid = append(unpaid, row.ID)
		}
	}
	count, err := j.cancelAll(ctx, unpaid)
	logCtx := j.log.WithFields(ctx, map[string]any{"count": count, "before": today})
	j.log.Info(logCtx, "unpaid request expiry loop complete")
	return count, err
}

// cancelAll cancels ids with bounded concurrency. A request that moved on
// since it was read is skipped, not reported.
func (j *ExpiryJob) cancelAll(ctx context.Context, requestIDs []int64) (int, error) {
	var (
		mu    sync.Mutex
		count int
		errs  error
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(j.concurrency)
	for _, id := range requestIDs {
		g.Go(func() error {
			out, err := j.canceller.Cancel(gctx, id, buddyrequest.ReasonSystemTimeout)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				if cancelledByTimeout(out) {
					count++
				}
			case errors.Is(err, buddyrequest.ErrRequestTerminal),
				errors.Is(err, buddyrequest.ErrInvalidTransition),
				errors.Is(err, buddyrequest.ErrRequestNotFound),
				errors.Is(err, buddyrequest.ErrRequestPaid):
				j.log.Info(j.log.WithBuddyRequestID(gctx, id), "request changed before expiry; skipped")
			default:
				multierr.AppendInto(&errs, fmt.Errorf("cancel request %d: %w", id, err))
			}
			return nil
		})
	}
	_ = g.Wait()
	return count, errs
}

// cancelledByTimeout is false when Cancel found the request already cancelled
// by someone else.
func cancelledByTimeout(req *buddyrequest.BuddyRequest) bool {
	return req != nil && req.CancelReason != nil && *req.CancelReason == buddyrequest.ReasonSystemTimeout
}

func ids(rows []buddyrequest.BuddyRequest) []int64 {
	out := make([]int64, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.ID)
	}
	return out
}
