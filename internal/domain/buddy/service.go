package buddy

import (
	"context"
	"strings"

	"gorm.io/gorm"

	"buddydesk/internal/pkg/logger"
)

// ActiveRequestCounter counts non-terminal (PENDING/ASSIGNED) requests per buddy.
// tx may be nil, in which case the counter uses its own handle.
type ActiveRequestCounter interface {
	CountActive(ctx context.Context, tx *gorm.DB, buddyIDs ...int64) (map[int64]int64, error)
}

type Service struct {
	repo    *Repository
	counter ActiveRequestCounter
	log     *logger.Logger
}

func NewService(repo *Repository, counter ActiveRequestCounter, log *logger.Logger) *Service {
	if log == nil {
		log = logger.Nop()
	}
	return &Service{repo: repo, counter: counter, log: log}
}

func (s *Service) Create(ctx context.Context, req *CreateBuddyRequest) (*Buddy, error) {
	b := &Buddy{
		Name:         strings.TrimSpace(req.Name),
		Email:        normalizeEmail(req.Email),
		Phone:        req.Phone,
		IsActive:     true,
		CalendlyLink: strings.TrimSpace(req.CalendlyLink),
	}
	if req.IsActive != nil {
		b.IsActive = *req.IsActive
	}
	if err := s.repo.Create(ctx, b); err != nil {
		return nil, err
	}
	s.log.Info(s.log.WithBuddyID(ctx, b.ID), "buddy created")
	return b, nil
}

func (s *Service) Get(ctx context.Context, id int64) (*BuddyWithLoad, error) {
	b, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	counts, err := s.counter.CountActive(ctx, nil, id)
	if err != nil {
		return nil, err
	}
	return &BuddyWithLoad{Buddy: *b, ActiveRequests: counts[id]}, nil
}

func (s *Service) List(ctx context.Context, activeOnly bool) ([]BuddyWithLoad, error) {
	buddies, err := s.repo.List(ctx, activeOnly)
	if err != nil {
		return nil, err
	}
	ids := make([]int64, 0, len(buddies))
	for _, b := range buddies {
		ids = append(ids, b.ID)
	}
	counts, err := s.counter.CountActive(ctx, nil, ids...)
	if err != nil {
		return nil, err
	}
	out := make([]BuddyWithLoad, 0, len(buddies))
	for _, b := range buddies {
		out = append(out, BuddyWithLoad{Buddy: b, ActiveRequests: counts[b.ID]})
	}
	return out, nil
}

// Update edits a buddy. Deactivation never touches existing assignments; it only
// removes the buddy from future matching and reassignment.
func (s *Service) Update(ctx context.Context, id int64, req *UpdateBuddyRequest) (*Buddy, error) {
	b, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.Name != nil {
		b.Name = strings.TrimSpace(*req.Name)
	}
	if req.Email != nil {
		b.Email = normalizeEmail(*req.Email)
	}
	if req.Phone != nil {
		b.Phone = req.Phone
	}
	if req.CalendlyLink != nil {
		b.CalendlyLink = strings.TrimSpace(*req.CalendlyLink)
	}
	if req.IsActive != nil {
		b.IsActive = *req.IsActive
	}
	if err := s.repo.Update(ctx, b); err != nil {
		return nil, err
	}
	return b, nil
}

// Delete hard-deletes a buddy with no PENDING/ASSIGNED requests. Otherwise it
// returns *ActiveRequestsError and the caller should deactivate instead.
func (s *Service) Delete(ctx context.Context, id int64) error {
	err := s.repo.DeleteGuarded(ctx, id, func(tx *gorm.DB) error {
		counts, err := s.counter.CountActive(ctx, tx, id)
		if err != nil {
			return err
		}
		if n := counts[id]; n > 0 {
			return &ActiveRequestsError{Count: n}
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.log.Info(s.log.WithBuddyID(ctx, id), "buddy deleted")
	return nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
