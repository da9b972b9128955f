package buddyrequest

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"buddydesk/internal/database"
	"buddydesk/internal/domain/buddy"
	"buddydesk/internal/pkg/logger"
	"buddydesk/internal/pkg/metrics"
)

const defaultMaxAttempts = 3

var errSkipCandidate = errors.New("candidate unavailable")

// Matcher assigns a new request to the least-loaded active buddy that is free
// for the requested date and slot.
type Matcher struct {
	db          *gorm.DB
	repo        *Repository
	maxAttempts int
	metrics     *metrics.Lifecycle
	log         *logger.Logger
	now         func() time.Time
	loc         *time.Location
}

type MatcherParams struct {
	DB          *gorm.DB
	Repo        *Repository
	MaxAttempts int
	Metrics     *metrics.Lifecycle
	Logger      *logger.Logger
	Location    *time.Location
}

func NewMatcher(p MatcherParams) *Matcher {
	m := &Matcher{
		db:          p.DB,
		repo:        p.Repo,
		maxAttempts: p.MaxAttempts,
		metrics:     p.Metrics,
		log:         p.Logger,
		now:         time.Now,
		loc:         p.Location,
	}
	if m.maxAttempts <= 0 {
		m.maxAttempts = defaultMaxAttempts
	}
	if m.log == nil {
		m.log = logger.Nop()
	}
	if m.loc == nil {
		m.loc = time.UTC
	}
	return m
}

func (m *Matcher) today() string {
	return m.now().In(m.loc).Format(time.DateOnly)
}

// AssignBuddy validates the submission, then walks the candidates. For each
// one it re-checks the slot and inserts the ASSIGNED row in a single
// transaction. Losing the insert race on the slot index moves on to the next
// candidate; after maxAttempts such losses, or when no candidate is free, it
// returns ErrAllBuddiesBusy. A failed call persists nothing.
func (m *Matcher) AssignBuddy(ctx context.Context, in *CreateBuddyRequestRequest) (*BuddyRequest, *buddy.Buddy, error) {
	in.normalize()
	if err := validateNewRequest(in, m.today()); err != nil {
		return nil, nil, err
	}

	candidates, err := m.repo.ActiveCandidates(ctx)
	if err != nil {
		return nil, nil, err
	}

	violations := 0
	for i := range candidates {
		candidate := candidates[i]

		var created *BuddyRequest
		err := m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if _, err := buddy.LockActive(tx, candidate.ID); err != nil {
				if errors.Is(err, buddy.ErrBuddyNotFound) || errors.Is(err, buddy.ErrBuddyInactive) {
					return errSkipCandidate
				}
				return err
			}

			conflict, err := HasConflict(ctx, tx, candidate.ID, in.PreferredDate, in.TimeSlot, nil)
			if err != nil {
				return err
			}
			if conflict {
				return errSkipCandidate
			}

			row := newAssignedRequest(in, candidate.ID)
			if err := tx.Create(row).Error; err != nil {
				return err
			}
			created = row
			return nil
		})

		switch {
		case err == nil:
			m.metrics.IncMatch("assigned")
			m.metrics.IncTransition(string(StatusPending), string(StatusAssigned))
			return created, &candidate, nil
		case errors.Is(err, errSkipCandidate):
			continue
		case database.IsUniqueViolation(err, uniqueSlotIndex):
			violations++
			m.metrics.IncUniqueViolation()
			m.log.Info(m.log.WithBuddyID(ctx, candidate.ID), "slot taken concurrently, trying next buddy")
			if violations >= m.maxAttempts {
				m.metrics.IncMatch("busy")
				return nil, nil, ErrAllBuddiesBusy
			}
		default:
			return nil, nil, err
		}
	}

	m.metrics.IncMatch("busy")
	return nil, nil, ErrAllBuddiesBusy
}

func newAssignedRequest(in *CreateBuddyRequestRequest, buddyID int64) *BuddyRequest {
	id := buddyID
	return &BuddyRequest{
		RequesterName:          in.Name,
		RequesterEmail:         in.Email,
		RequesterPhone:         in.Phone,
		RequestType:            in.RequestType,
		CommunicationMode:      in.CommunicationMode,
		SessionDurationMinutes: in.SessionDuration,
		PreferredDate:          in.PreferredDate,
		TimeSlot:               in.TimeSlot,
		Message:                in.Message,
		ExtraInfo:              in.ExtraInfo,
		Status:                 StatusAssigned,
		AssignedBuddyID:        &id,
	}
}
