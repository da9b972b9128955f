package payment

import (
	"time"

	"gorm.io/gorm"
)

type Status string

const (
	StatusPending   Status = "PENDING"
	StatusCompleted Status = "COMPLETED"
	StatusFailed    Status = "FAILED"
)

// BuddyPayment is the single payment row of a paid request. Amount is in
// whole currency units; the gateway is charged in subunits.
type BuddyPayment struct {
	ID               int64      `gorm:"primaryKey" json:"id"`
	BuddyRequestID   int64      `gorm:"not null;uniqueIndex:idx_buddy_payments_request" json:"buddyRequestId"`
	GatewayOrderID   string     `gorm:"size:64;not null;uniqueIndex:idx_buddy_payments_order" json:"gatewayOrderId"`
	GatewayPaymentID *string    `gorm:"size:64" json:"gatewayPaymentId,omitempty"`
	Amount           int64      `gorm:"not null" json:"amount"`
	Currency         string     `gorm:"size:8;not null" json:"currency"`
	Status           Status     `gorm:"size:16;not null" json:"status"`
	Attempt          int        `gorm:"not null" json:"attempt"`
	FailureReason    *string    `gorm:"type:text" json:"failureReason,omitempty"`
	PaidAt           *time.Time `json:"paidAt,omitempty"`
	CreatedAt        time.Time  `json:"createdAt"`
	UpdatedAt        time.Time  `json:"updatedAt"`
}

func (BuddyPayment) TableName() string { return "buddy_payments" }

// AutoMigrate creates the table for SQLite development databases and tests.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&BuddyPayment{})
}
