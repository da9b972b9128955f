package buddyrequest

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	"buddydesk/internal/database"
	"buddydesk/internal/domain/buddy"
	"buddydesk/internal/domain/notification"
	"buddydesk/internal/pkg/logger"
	"buddydesk/internal/pkg/metrics"
	"buddydesk/internal/pkg/pagination"
)

const (
	ReasonAdmin         = "admin"
	ReasonRequester     = "requester"
	ReasonSystemTimeout = "system_timeout"
)

type Deps struct {
	DB          *gorm.DB
	Repo        *Repository
	Buddies     *buddy.Repository
	Payments    PaymentLookup
	Paid        PaidChecker
	Notifier    NotificationSender
	Events      EventPublisher
	Prices      PriceCatalog
	Metrics     *metrics.Lifecycle
	Logger      *logger.Logger
	Location    *time.Location
	MaxAttempts int
}

// Service owns every status mutation of a buddy request.
type Service struct {
	db       *gorm.DB
	repo     *Repository
	buddies  *buddy.Repository
	matcher  *Matcher
	payments PaymentLookup
	paid     PaidChecker
	notifs   NotificationSender
	events   EventPublisher
	prices   PriceCatalog
	metrics  *metrics.Lifecycle
	log      *logger.Logger
	now      func() time.Time
	loc      *time.Location
}

func NewService(d Deps) *Service {
	if d.Logger == nil {
		d.Logger = logger.Nop()
	}
	if d.Location == nil {
		d.Location = time.UTC
	}
	return &Service{
		db:      d.DB,
		repo:    d.Repo,
		buddies: d.Buddies,
		matcher: NewMatcher(MatcherParams{
			DB:          d.DB,
			Repo:        d.Repo,
			MaxAttempts: d.MaxAttempts,
			Metrics:     d.Metrics,
			Logger:      d.Logger,
			Location:    d.Location,
		}),
		payments: d.Payments,
		paid:     d.Paid,
		notifs:   d.Notifier,
		events:   d.Events,
		prices:   d.Prices,
		metrics:  d.Metrics,
		log:      d.Logger,
		now:      time.Now,
		loc:      d.Location,
	}
}

// Create matches a new submission to a buddy and persists it as ASSIGNED.
func (s *Service) Create(ctx context.Context, in *CreateBuddyRequestRequest) (*CreateBuddyRequestResponse, error) {
	req, b, err := s.matcher.AssignBuddy(ctx, in)
	if err != nil {
		if errors.Is(err, ErrAllBuddiesBusy) {
			s.log.Info(s.log.WithFields(ctx, map[string]any{
				"preferred_date": in.PreferredDate,
				"time_slot":      string(in.TimeSlot),
			}), "no buddy available for slot")
		}
		return nil, err
	}

	ctx = s.log.WithBuddyRequestID(ctx, req.ID)
	s.log.Info(s.log.WithBuddyID(ctx, b.ID), "buddy request assigned")

	if s.notifs != nil {
		s.notifs.NotifyRequestAssigned(ctx, notification.Assignment{
			RequestID:       req.ID,
			RequesterName:   req.RequesterName,
			RequesterEmail:  req.RequesterEmail,
			BuddyName:       b.Name,
			BuddyEmail:      b.Email,
			PreferredDate:   req.PreferredDate,
			TimeSlot:        string(req.TimeSlot),
			CalendlyLink:    b.CalendlyLink,
			PaymentRequired: req.RequestType.IsPaid(),
		})
	}
	s.publish(EventRequestAssigned, req)

	return &CreateBuddyRequestResponse{
		RequestID:         req.ID,
		Status:            req.Status,
		BuddyName:         b.Name,
		BuddyCalendlyLink: b.CalendlyLink,
		PaymentRequired:   req.RequestType.IsPaid(),
	}, nil
}

func (s *Service) Get(ctx context.Context, id int64) (*RequestDetail, error) {
	req, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	out := &RequestDetail{BuddyRequest: *req}

	if req.AssignedBuddyID != nil {
		b, err := s.buddies.GetByID(ctx, *req.AssignedBuddyID)
		switch {
		case err == nil:
			out.Buddy = b
		case !errors.Is(err, buddy.ErrBuddyNotFound):
			return nil, err
		}
	}
	if s.payments != nil && req.RequestType.IsPaid() {
		p, err := s.payments.PaymentInfoForRequest(ctx, id)
		if err != nil {
			return nil, err
		}
		out.Payment = p
	}
	return out, nil
}

func (s *Service) List(ctx context.Context, f ListFilter, p pagination.Params) ([]RequestListItem, pagination.Meta, error) {
	p = p.Normalize()
	rows, total, err := s.repo.List(ctx, f, p)
	if err != nil {
		return nil, pagination.Meta{}, err
	}

	ids := make([]int64, 0, len(rows))
	for _, r := range rows {
		if r.AssignedBuddyID != nil {
			ids = append(ids, *r.AssignedBuddyID)
		}
	}
	names, err := s.buddies.GetByIDs(ctx, ids)
	if err != nil {
		return nil, pagination.Meta{}, err
	}

	items := make([]RequestListItem, 0, len(rows))
	for _, r := range rows {
		item := RequestListItem{BuddyRequest: r}
		if r.AssignedBuddyID != nil {
			if b, ok := names[*r.AssignedBuddyID]; ok {
				name := b.Name
				item.BuddyName = &name
			}
		}
		items = append(items, item)
	}
	return items, pagination.NewMeta(p, total), nil
}

// UpdateRequest applies an admin override. A buddy change re-runs the
// conflict check for the request's own date and slot.
func (s *Service) UpdateRequest(ctx context.Context, id int64, in UpdateRequestInput) (*BuddyRequest, error) {
	if in.Status == nil && in.AssignedBuddyID == nil {
		return nil, newValidationError("status", "status or assignedBuddyId is required")
	}
	if in.Status != nil && !in.Status.Valid() {
		return nil, newValidationError("status", "unknown status")
	}
	if in.Status != nil && in.Status.IsTerminal() && in.AssignedBuddyID != nil {
		return nil, newValidationError("assignedBuddyId", "cannot change buddy while closing a request")
	}

	target := StatusAssigned
	if in.Status != nil {
		target = *in.Status
	}

	switch target {
	case StatusCancelled:
		reason := ReasonAdmin
		if in.Reason != nil && strings.TrimSpace(*in.Reason) != "" {
			reason = strings.TrimSpace(*in.Reason)
		}
		return s.Cancel(ctx, id, reason)
	case StatusCompleted:
		return s.Complete(ctx, id)
	case StatusAssigned:
		if in.AssignedBuddyID == nil {
			return s.confirmAssigned(ctx, id)
		}
		return s.assign(ctx, id, *in.AssignedBuddyID)
	default:
		req, err := s.repo.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		return nil, checkTransition(req.Status, target)
	}
}

// confirmAssigned handles status=ASSIGNED without a buddy: a no-op for an
// assigned request, an error otherwise.
func (s *Service) confirmAssigned(ctx context.Context, id int64) (*BuddyRequest, error) {
	req, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	switch {
	case req.Status == StatusAssigned:
		return req, nil
	case req.Status.IsTerminal():
		return nil, ErrRequestTerminal
	default:
		return nil, ErrBuddyRequired
	}
}

func (s *Service) assign(ctx context.Context, id, buddyID int64) (*BuddyRequest, error) {
	var (
		out     *BuddyRequest
		from    Status
		prev    *int64
		target  *buddy.Buddy
		changed bool
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		cur, err := LockByID(tx, id)
		if err != nil {
			return err
		}
		if err := checkTransition(cur.Status, StatusAssigned); err != nil {
			return err
		}
		if cur.Status == StatusAssigned && cur.AssignedBuddyID != nil && *cur.AssignedBuddyID == buddyID {
			out = cur
			return nil
		}

		b, err := buddy.LockActive(tx, buddyID)
		if err != nil {
			return err
		}
		conflict, err := HasConflict(ctx, tx, buddyID, cur.PreferredDate, cur.TimeSlot, &cur.ID)
		if err != nil {
			return err
		}
		if conflict {
			return ErrSlotConflict
		}

		rows, err := updateGuarded(tx, id, []Status{cur.Status}, map[string]any{
			"status":            StatusAssigned,
			"assigned_buddy_id": buddyID,
			"updated_at":        s.now(),
		})
		if err != nil {
			return err
		}
		if rows == 0 {
			return s.classifyLostUpdate(tx, id, StatusAssigned)
		}

		out, err = getByID(tx, id)
		if err != nil {
			return err
		}
		from, prev, target, changed = cur.Status, cur.AssignedBuddyID, b, true
		return nil
	})
	if err != nil {
		if database.IsUniqueViolation(err, uniqueSlotIndex) {
			s.metrics.IncUniqueViolation()
			err = ErrSlotConflict
		}
		if errors.Is(err, ErrSlotConflict) {
			s.log.Info(s.log.WithBuddyID(s.log.WithBuddyRequestID(ctx, id), buddyID), "reassignment rejected: slot taken")
		}
		return nil, err
	}
	if !changed {
		return out, nil
	}

	s.metrics.IncTransition(string(from), string(StatusAssigned))
	ctx = s.log.WithBuddyRequestID(ctx, id)
	s.log.Info(s.log.WithFields(ctx, map[string]any{"buddy_id": buddyID, "previous_buddy_id": prev}), "buddy request reassigned")

	if s.notifs != nil {
		s.notifs.NotifyRequestAssigned(ctx, notification.Assignment{
			RequestID:       out.ID,
			RequesterName:   out.RequesterName,
			RequesterEmail:  out.RequesterEmail,
			BuddyName:       target.Name,
			BuddyEmail:      target.Email,
			PreferredDate:   out.PreferredDate,
			TimeSlot:        string(out.TimeSlot),
			CalendlyLink:    target.CalendlyLink,
			PaymentRequired: out.RequestType.IsPaid(),
		})
	}
	s.publish(EventRequestUpdated, out)
	return out, nil
}

// Cancel moves a request to CANCELLED. Cancelling an already cancelled
// request succeeds without changes.
func (s *Service) Cancel(ctx context.Context, id int64, reason string) (*BuddyRequest, error) {
	var guard func(tx *gorm.DB, cur *BuddyRequest) error
	if reason == ReasonSystemTimeout {
		guard = s.requireUnpaid
	}

	now := s.now()
	out, from, changed, err := s.transitionTo(ctx, id, StatusCancelled, guard, map[string]any{
		"status":        StatusCancelled,
		"cancelled_at":  now,
		"cancel_reason": reason,
		"updated_at":    now,
	})
	if err != nil || !changed {
		return out, err
	}

	s.metrics.IncTransition(string(from), string(StatusCancelled))
	ctx = s.log.WithBuddyRequestID(ctx, id)
	s.log.Info(s.log.WithField(ctx, "reason", reason), "buddy request cancelled")

	if s.notifs != nil {
		c := notification.Cancellation{
			RequestID:      out.ID,
			RequesterName:  out.RequesterName,
			RequesterEmail: out.RequesterEmail,
			Reason:         reason,
		}
		if out.AssignedBuddyID != nil {
			if b, err := s.buddies.GetByID(ctx, *out.AssignedBuddyID); err == nil {
				c.BuddyEmail = b.Email
			}
		}
		s.notifs.NotifyRequestCancelled(ctx, c)
	}
	s.publish(EventRequestCancelled, out)
	return out, nil
}

// Complete closes an ASSIGNED request. Paid requests also need a completed payment.
func (s *Service) Complete(ctx context.Context, id int64) (*BuddyRequest, error) {
	req, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := checkTransition(req.Status, StatusCompleted); err != nil {
		return nil, err
	}
	if err := s.requirePaid(ctx, req); err != nil {
		return nil, err
	}

	now := s.now()
	out, from, changed, err := s.transitionTo(ctx, id, StatusCompleted, nil, map[string]any{
		"status":       StatusCompleted,
		"completed_at": now,
		"updated_at":   now,
	})
	if err != nil || !changed {
		return out, err
	}

	s.metrics.IncTransition(string(from), string(StatusCompleted))
	s.log.Info(s.log.WithBuddyRequestID(ctx, id), "buddy request completed")
	if s.notifs != nil {
		s.notifs.NotifyRequestCompleted(ctx, notification.Completion{
			RequestID:      out.ID,
			RequesterName:  out.RequesterName,
			RequesterEmail: out.RequesterEmail,
		})
	}
	s.publish(EventRequestCompleted, out)
	return out, nil
}

// transitionTo applies one guarded status update. changed is false for a
// repeated cancel, which returns the stored row.
// requireUnpaid refuses a timeout cancellation once a payment has landed. It
// runs under the request row lock that payment completion also takes.
func (s *Service) requireUnpaid(tx *gorm.DB, cur *BuddyRequest) error {
	if s.paid == nil || !cur.RequestType.IsPaid() {
		return nil
	}
	paid, err := s.paid.HasCompletedPayment(tx, cur.ID)
	if err != nil {
		return err
	}
	if paid {
		return ErrRequestPaid
	}
	return nil
}

// transitionTo moves the locked row to status to. guard, when set, runs after
// the transition check and before the update.
func (s *Service) transitionTo(ctx context.Context, id int64, to Status, guard func(tx *gorm.DB, cur *BuddyRequest) error, updates map[string]any) (out *BuddyRequest, from Status, changed bool, err error) {
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		cur, err := LockByID(tx, id)
		if err != nil {
			return err
		}
		if to == StatusCancelled && cur.Status == StatusCancelled {
			out = cur
			return nil
		}
		if err := checkTransition(cur.Status, to); err != nil {
			return err
		}
		if guard != nil {
			if err := guard(tx, cur); err != nil {
				return err
			}
		}

		rows, err := updateGuarded(tx, id, []Status{cur.Status}, updates)
		if err != nil {
			return err
		}
		if rows == 0 {
			latest, err := getByID(tx, id)
			if err != nil {
				return err
			}
			if to == StatusCancelled && latest.Status == StatusCancelled {
				out = latest
				return nil
			}
			return s.classifyLostUpdate(tx, id, to)
		}

		out, err = getByID(tx, id)
		if err != nil {
			return err
		}
		from, changed = cur.Status, true
		return nil
	})
	if err != nil {
		return nil, "", false, err
	}
	return out, from, changed, nil
}

// classifyLostUpdate reloads a row whose guarded update matched nothing.
func (s *Service) classifyLostUpdate(tx *gorm.DB, id int64, to Status) error {
	latest, err := getByID(tx, id)
	if err != nil {
		return err
	}
	if err := checkTransition(latest.Status, to); err != nil {
		return err
	}
	return ErrInvalidTransition
}

// CancelByRequester cancels on behalf of the requester. A mismatched email is
// reported as not found.
func (s *Service) CancelByRequester(ctx context.Context, id int64, in RequesterCancelRequest) (*BuddyRequest, error) {
	req, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !sameEmail(req.RequesterEmail, in.Email) {
		return nil, ErrRequestNotFound
	}
	reason := strings.TrimSpace(in.Reason)
	if reason == "" {
		reason = ReasonRequester
	}
	return s.Cancel(ctx, id, reason)
}

// AcknowledgeGuidelines records that the requester accepted the session
// guidelines and hands over the buddy's scheduling link.
func (s *Service) AcknowledgeGuidelines(ctx context.Context, id int64, in AcknowledgeGuidelinesRequest) (*GuidelinesResult, error) {
	req, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !sameEmail(req.RequesterEmail, in.Email) {
		return nil, ErrRequestNotFound
	}
	switch {
	case req.Status.IsTerminal():
		return nil, ErrRequestTerminal
	case req.Status != StatusAssigned || req.AssignedBuddyID == nil:
		return nil, ErrNotAssigned
	}
	if err := s.requirePaid(ctx, req); err != nil {
		return nil, err
	}

	b, err := s.buddies.GetByID(ctx, *req.AssignedBuddyID)
	if err != nil {
		return nil, err
	}
	if err := s.repo.MarkGuidelinesAccepted(ctx, id, s.now()); err != nil {
		return nil, err
	}
	req, err = s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	res := &GuidelinesResult{RequestID: id, CalendlyURL: b.CalendlyLink}
	if req.GuidelinesAcceptedAt != nil {
		res.AcceptedAt = *req.GuidelinesAcceptedAt
	}
	return res, nil
}

func (s *Service) requirePaid(ctx context.Context, req *BuddyRequest) error {
	if !req.RequestType.IsPaid() {
		return nil
	}
	if s.payments == nil {
		return ErrPaymentRequired
	}
	p, err := s.payments.PaymentInfoForRequest(ctx, req.ID)
	if err != nil {
		return err
	}
	if p == nil || p.Status != PaymentCompleted {
		return ErrPaymentRequired
	}
	return nil
}

// Availability reports, per slot, how many active buddies are still free on date.
func (s *Service) Availability(ctx context.Context, date string) (*AvailabilityResponse, error) {
	date = strings.TrimSpace(date)
	if _, err := time.Parse(time.DateOnly, date); err != nil {
		return nil, newValidationError("date", "must be YYYY-MM-DD")
	}

	active, err := s.buddies.List(ctx, true)
	if err != nil {
		return nil, err
	}
	ids := make([]int64, len(active))
	for i, b := range active {
		ids[i] = b.ID
	}
	busy, err := s.repo.BusyBySlot(ctx, date, ids)
	if err != nil {
		return nil, err
	}

	past := date < s.matcher.today()
	out := &AvailabilityResponse{Date: date, Slots: make([]SlotAvailability, 0, len(TimeSlots()))}
	for _, slot := range TimeSlots() {
		free := int64(len(active)) - busy[slot]
		if free < 0 || past {
			free = 0
		}
		out.Slots = append(out.Slots, SlotAvailability{TimeSlot: slot, AvailableBuddies: free, Available: free > 0})
	}
	return out, nil
}

func (s *Service) Options() *OptionsResponse {
	out := &OptionsResponse{
		TimeSlots:        TimeSlots(),
		Modes:            map[RequestType][]CommunicationMode{},
		SessionDurations: SessionDurations,
		Prices:           []PriceEntry{},
	}
	for _, t := range []RequestType{TypeFriendly, TypeDetailed} {
		out.Modes[t] = SupportedModes(t)
	}
	if s.prices != nil {
		out.Prices = s.prices.Prices()
	}
	return out
}

func (s *Service) publish(event string, req *BuddyRequest) {
	if s.events == nil || req == nil {
		return
	}
	s.events.Publish(event, req)
}

func sameEmail(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}
