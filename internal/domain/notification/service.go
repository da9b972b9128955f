package notification

import (
	"context"
	"sync"
	"time"

	"buddydesk/internal/pkg/logger"
)

// Sender delivers one message.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// LogSender writes messages to the log instead of delivering them. Delivery is
// done by an external mail relay that tails these records.
type LogSender struct {
	log *logger.Logger
}

func NewLogSender(log *logger.Logger) *LogSender {
	if log == nil {
		log = logger.Nop()
	}
	return &LogSender{log: log}
}

func (s *LogSender) Send(ctx context.Context, msg Message) error {
	ctx = s.log.WithFields(ctx, map[string]any{
		"notification_type": string(msg.Type),
		"to":                msg.To,
		"subject":           msg.Subject,
	})
	s.log.Info(ctx, "notification queued")
	return nil
}

// Service sends notifications in the background. A failed send is logged and
// never reported back to the caller.
type Service struct {
	sender  Sender
	from    string
	timeout time.Duration
	log     *logger.Logger
	wg      sync.WaitGroup
}

func NewService(sender Sender, from string, timeout time.Duration, log *logger.Logger) *Service {
	if log == nil {
		log = logger.Nop()
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Service{sender: sender, from: from, timeout: timeout, log: log}
}

func (s *Service) dispatch(ctx context.Context, msgs ...Message) {
	if s == nil || s.sender == nil {
		return
	}
	base := context.WithoutCancel(ctx)
	for _, msg := range msgs {
		if msg.To == "" {
			continue
		}
		msg.From = s.from
		s.wg.Add(1)
		go func(msg Message) {
			defer s.wg.Done()
			sendCtx, cancel := context.WithTimeout(base, s.timeout)
			defer cancel()
			if err := s.sender.Send(sendCtx, msg); err != nil {
				s.log.Error(s.log.WithField(sendCtx, "notification_type", string(msg.Type)), "notification send failed", err)
			}
		}(msg)
	}
}

// Wait blocks until all in-flight sends have returned.
func (s *Service) Wait() {
	if s == nil {
		return
	}
	s.wg.Wait()
}

func (s *Service) NotifyRequestAssigned(ctx context.Context, a Assignment) {
	s.dispatch(ctx, assignedToRequester(a), assignedToBuddy(a))
}

func (s *Service) NotifyRequestCancelled(ctx context.Context, c Cancellation) {
	msgs := []Message{cancelledToRequester(c)}
	if c.BuddyEmail != "" {
		msgs = append(msgs, cancelledToBuddy(c))
	}
	s.dispatch(ctx, msgs...)
}

func (s *Service) NotifyRequestCompleted(ctx context.Context, c Completion) {
	s.dispatch(ctx, completedToRequester(c))
}

func (s *Service) NotifyPaymentCompleted(ctx context.Context, p PaymentReceipt) {
	s.dispatch(ctx, paymentReceipt(p))
}
