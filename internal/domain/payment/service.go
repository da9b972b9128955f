package payment

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"buddydesk/internal/database"
	"buddydesk/internal/domain/buddyrequest"
	"buddydesk/internal/domain/notification"
	"buddydesk/internal/pkg/logger"
	"buddydesk/internal/pkg/metrics"
)

type Deps struct {
	Repo      *Repository
	Requests  requestReader
	Buddies   buddyReader
	Gateway   Gateway
	KeySecret string
	Currency  string
	Timeout   time.Duration
	Notifier  receiptSender
	Events    buddyrequest.EventPublisher
	Metrics   *metrics.Lifecycle
	Logger    *logger.Logger
}

// Service is the payment gate. It is the only writer of buddy_payments.
type Service struct {
	repo     *Repository
	requests requestReader
	buddies  buddyReader
	gateway  Gateway
	secret   string
	currency string
	timeout  time.Duration
	notifs   receiptSender
	events   buddyrequest.EventPublisher
	metrics  *metrics.Lifecycle
	log      *logger.Logger
	now      func() time.Time
}

func NewService(d Deps) *Service {
	if d.Logger == nil {
		d.Logger = logger.Nop()
	}
	if d.Timeout <= 0 {
		d.Timeout = 10 * time.Second
	}
	if d.Currency == "" {
		d.Currency = "INR"
	}
	return &Service{
		repo:     d.Repo,
		requests: d.Requests,
		buddies:  d.Buddies,
		gateway:  d.Gateway,
		secret:   d.KeySecret,
		currency: d.Currency,
		timeout:  d.Timeout,
		notifs:   d.Notifier,
		events:   d.Events,
		metrics:  d.Metrics,
		log:      d.Logger,
		now:      time.Now,
	}
}

// CreateOrder returns the gateway order for a paid request. A request with a
// PENDING payment always gets the same order back.
func (s *Service) CreateOrder(ctx context.Context, in CreateOrderRequest) (*OrderInfo, error) {
	ctx = s.log.WithBuddyRequestID(ctx, in.RequestID)

	req, err := s.requests.GetByID(ctx, in.RequestID)
	if err != nil {
		return nil, err
	}
	if !strings.EqualFold(strings.TrimSpace(req.RequesterEmail), strings.TrimSpace(in.Email)) {
		return nil, buddyrequest.ErrRequestNotFound
	}
	if !req.RequestType.IsPaid() {
		return nil, ErrPaymentNotRequired
	}
	switch {
	case req.Status.IsTerminal():
		return nil, buddyrequest.ErrRequestTerminal
	case req.Status != buddyrequest.StatusAssigned:
		return nil, buddyrequest.ErrNotAssigned
	}
	if req.CommunicationMode != in.Mode || req.SessionDurationMinutes == nil || *req.SessionDurationMinutes != in.Duration {
		return nil, ErrRequestMismatch
	}
	amount, err := PriceFor(in.Mode, in.Duration)
	if err != nil {
		return nil, err
	}

	existing, err := s.repo.GetByRequestID(ctx, req.ID)
	switch {
	case err == nil:
		return s.reuseOrRetry(ctx, req, existing, amount)
	case !errors.Is(err, ErrPaymentNotFound):
		return nil, err
	}

	order, err := s.createGatewayOrder(ctx, req.ID, amount, 1)
	if err != nil {
		return nil, err
	}
	p := &BuddyPayment{
		BuddyRequestID: req.ID,
		GatewayOrderID: order.ID,
		Amount:         amount,
		Currency:       s.currency,
		Status:         StatusPending,
		Attempt:        1,
	}
	if err := s.repo.Create(ctx, p); err != nil {
		if !database.IsUniqueViolation(err, "idx_buddy_payments_request") {
			return nil, err
		}
		// A concurrent caller created the row first; its order wins.
		s.log.Info(s.log.WithField(ctx, "orphan_order_id", order.ID), "concurrent order creation, returning existing order")
		winner, err := s.repo.GetByRequestID(ctx, req.ID)
		if err != nil {
			return nil, err
		}
		return s.reuseOrRetry(ctx, req, winner, amount)
	}

	s.metrics.IncPayment("order_created")
	s.log.Info(s.log.WithField(ctx, "order_id", order.ID), "payment order created")
	return s.orderInfo(p), nil
}

func (s *Service) reuseOrRetry(ctx context.Context, req *buddyrequest.BuddyRequest, p *BuddyPayment, amount int64) (*OrderInfo, error) {
	switch p.Status {
	case StatusCompleted:
		return nil, ErrAlreadyPaid
	case StatusPending:
		s.metrics.IncPayment("order_reused")
		return s.orderInfo(p), nil
	}

	attempt := p.Attempt + 1
	order, err := s.createGatewayOrder(ctx, req.ID, amount, attempt)
	if err != nil {
		return nil, err
	}
	ok, err := s.repo.Reattempt(ctx, p.ID, order.ID, amount, s.currency)
	if err != nil {
		return nil, err
	}
	latest, err := s.repo.GetByRequestID(ctx, req.ID)
	if err != nil {
		return nil, err
	}
	if !ok {
		if latest.Status == StatusCompleted {
			return nil, ErrAlreadyPaid
		}
		return s.orderInfo(latest), nil
	}
	s.metrics.IncPayment("order_reattempted")
	s.log.Info(s.log.WithFields(ctx, map[string]any{"order_id": order.ID, "attempt": latest.Attempt}), "payment order re-created after failure")
	return s.orderInfo(latest), nil
}

func (s *Service) createGatewayOrder(ctx context.Context, requestID, amount int64, attempt int) (*Order, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := time.Now()
	order, err := s.gateway.CreateOrder(ctx, OrderRequest{
		Amount:   toSubunits(amount),
		Currency: s.currency,
		Receipt:  fmt.Sprintf("buddy_req_%d_%d", requestID, attempt),
		Notes:    map[string]string{"buddy_request_id": strconv.FormatInt(requestID, 10)},
	})
	s.metrics.ObserveGateway("create_order", gatewayResult(err), time.Since(start))
	if err != nil {
		s.logGatewayError(ctx, "create order failed", err)
		return nil, err
	}
	return order, nil
}

func (s *Service) orderInfo(p *BuddyPayment) *OrderInfo {
	return &OrderInfo{
		OrderID:   p.GatewayOrderID,
		Amount:    p.Amount,
		Currency:  p.Currency,
		KeyID:     s.gateway.KeyID(),
		RequestID: p.BuddyRequestID,
		Attempt:   p.Attempt,
	}
}

// VerifyPayment checks the checkout signature, then confirms with the gateway
// that the payment is captured for this order before marking it COMPLETED.
// Any doubt leaves the payment untouched.
func (s *Service) VerifyPayment(ctx context.Context, in VerifyPaymentRequest) (*VerifyResult, error) {
	ctx = s.log.WithFields(ctx, map[string]any{"order_id": in.OrderID, "payment_id": in.PaymentID})

	if !VerifySignature(s.secret, in.OrderID, in.PaymentID, in.Signature) {
		s.metrics.IncPayment("invalid_signature")
		s.log.Warn(ctx, "payment signature mismatch")
		return nil, ErrInvalidSignature
	}

	p, err := s.repo.GetByOrderID(ctx, in.OrderID)
	if err != nil {
		return nil, err
	}
	ctx = s.log.WithBuddyRequestID(ctx, p.BuddyRequestID)

	switch p.Status {
	case StatusCompleted:
		return s.verified(ctx, p)
	case StatusFailed:
		return nil, ErrPaymentFailed
	}

	gp, err := s.fetchPayment(ctx, in.PaymentID)
	if err != nil {
		return nil, err
	}
	if gp.OrderID != p.GatewayOrderID || gp.Amount != toSubunits(p.Amount) {
		s.metrics.IncPayment("mismatch")
		s.log.Warn(s.log.WithFields(ctx, map[string]any{
			"gateway_order_id": gp.OrderID,
			"gateway_amount":   gp.Amount,
		}), "gateway payment does not match order")
		return nil, ErrPaymentMismatch
	}

	switch gp.Status {
	case GatewayCaptured:
	case GatewayFailed:
		if err := s.repo.MarkFailed(ctx, p.GatewayOrderID, gp.ID, "gateway reported failed"); err != nil {
			return nil, err
		}
		s.metrics.IncPayment("failed")
		s.log.Info(ctx, "payment failed at gateway")
		return nil, ErrPaymentFailed
	default:
		s.log.Info(s.log.WithField(ctx, "gateway_status", gp.Status), "payment not captured yet")
		return nil, ErrPaymentNotCaptured
	}

	paid, changed, err := s.repo.MarkPaidIdempotent(ctx, p.GatewayOrderID, gp.ID, s.now())
	if err != nil {
		return nil, err
	}
	if changed {
		s.metrics.IncPayment("completed")
		s.log.Info(ctx, "payment completed")
	}
	res, err := s.verified(ctx, paid)
	if err != nil {
		return nil, err
	}
	if changed {
		s.announce(ctx, paid, res.CalendlyURL)
	}
	return res, nil
}

func (s *Service) fetchPayment(ctx context.Context, paymentID string) (*GatewayPayment, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := time.Now()
	gp, err := s.gateway.FetchPayment(ctx, paymentID)
	s.metrics.ObserveGateway("fetch_payment", gatewayResult(err), time.Since(start))
	if err != nil {
		s.logGatewayError(ctx, "fetch payment failed", err)
		return nil, err
	}
	return gp, nil
}

func (s *Service) verified(ctx context.Context, p *BuddyPayment) (*VerifyResult, error) {
	res := &VerifyResult{Verified: true, RequestID: p.BuddyRequestID}
	req, err := s.requests.GetByID(ctx, p.BuddyRequestID)
	if err != nil {
		return nil, err
	}
	if req.Status == buddyrequest.StatusCancelled {
		s.log.Warn(ctx, "payment completed for a cancelled request, refund required")
		return nil, ErrRequestCancelled
	}
	if req.AssignedBuddyID != nil {
		b, err := s.buddies.GetByID(ctx, *req.AssignedBuddyID)
		if err == nil {
			res.CalendlyURL = b.CalendlyLink
		} else {
			s.log.Warn(ctx, "assigned buddy missing, scheduling link unavailable")
		}
	}
	return res, nil
}

func (s *Service) announce(ctx context.Context, p *BuddyPayment, calendlyURL string) {
	if s.notifs != nil {
		if req, err := s.requests.GetByID(ctx, p.BuddyRequestID); err == nil {
			s.notifs.NotifyPaymentCompleted(ctx, notification.PaymentReceipt{
				RequestID:      p.BuddyRequestID,
				RequesterName:  req.RequesterName,
				RequesterEmail: req.RequesterEmail,
				OrderID:        p.GatewayOrderID,
				Amount:         p.Amount,
				Currency:       p.Currency,
				CalendlyLink:   calendlyURL,
			})
		}
	}
	if s.events != nil {
		s.events.Publish(EventPaymentCompleted, PaymentEvent{
			RequestID: p.BuddyRequestID,
			OrderID:   p.GatewayOrderID,
			Amount:    p.Amount,
			Currency:  p.Currency,
		})
	}
}

// PaymentInfoForRequest implements buddyrequest.PaymentLookup.
func (s *Service) PaymentInfoForRequest(ctx context.Context, requestID int64) (*buddyrequest.PaymentInfo, error) {
	p, err := s.repo.GetByRequestID(ctx, requestID)
	if err != nil {
		if errors.Is(err, ErrPaymentNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &buddyrequest.PaymentInfo{
		Status:   string(p.Status),
		OrderID:  p.GatewayOrderID,
		Amount:   p.Amount,
		Currency: p.Currency,
		Attempt:  p.Attempt,
		PaidAt:   p.PaidAt,
	}, nil
}

func (s *Service) logGatewayError(ctx context.Context, msg string, err error) {
	if errors.Is(err, ErrGatewayTimeout) {
		s.log.Warn(ctx, msg+": timeout")
		return
	}
	s.log.Error(ctx, msg, err)
}

func gatewayResult(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrGatewayTimeout):
		return "timeout"
	default:
		return "error"
	}
}
