package buddyrequest

import (
	"context"

	"gorm.io/gorm"

	"buddydesk/internal/domain/notification"
)

// PaymentLookup returns the payment summary for a request, or nil when no
// payment has been started.
type PaymentLookup interface {
	PaymentInfoForRequest(ctx context.Context, requestID int64) (*PaymentInfo, error)
}

// PaidChecker reports whether a request has a COMPLETED payment, reading
// through tx so the answer is consistent with the locked request row.
type PaidChecker interface {
	HasCompletedPayment(tx *gorm.DB, requestID int64) (bool, error)
}

// NotificationSender delivers lifecycle emails. Calls must not block the caller.
type NotificationSender interface {
	NotifyRequestAssigned(ctx context.Context, a notification.Assignment)
	NotifyRequestCancelled(ctx context.Context, c notification.Cancellation)
	NotifyRequestCompleted(ctx context.Context, c notification.Completion)
}

// EventPublisher fans lifecycle events out to live admin views.
type EventPublisher interface {
	Publish(eventType string, payload any)
}

// PriceCatalog exposes the paid session price table.
type PriceCatalog interface {
	Prices() []PriceEntry
}

const (
	EventRequestAssigned  = "request.assigned"
	EventRequestUpdated   = "request.updated"
	EventRequestCancelled = "request.cancelled"
	EventRequestCompleted = "request.completed"
)
