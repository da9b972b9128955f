package payment

import (
	"context"

	"buddydesk/internal/domain/buddy"
	"buddydesk/internal/domain/buddyrequest"
	"buddydesk/internal/domain/notification"
)

type requestReader interface {
	GetByID(ctx context.Context, id int64) (*buddyrequest.BuddyRequest, error)
}

type buddyReader interface {
	GetByID(ctx context.Context, id int64) (*buddy.Buddy, error)
}

type receiptSender interface {
	NotifyPaymentCompleted(ctx context.Context, p notification.PaymentReceipt)
}

const EventPaymentCompleted = "payment.completed"
