package payment

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"buddydesk/internal/domain/buddyrequest"
)

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) Create(ctx context.Context, p *BuddyPayment) error {
	return r.db.WithContext(ctx).Create(p).Error
}

func (r *Repository) GetByRequestID(ctx context.Context, requestID int64) (*BuddyPayment, error) {
	var p BuddyPayment
	if err := r.db.WithContext(ctx).Where("buddy_request_id = ?", requestID).First(&p).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPaymentNotFound
		}
		return nil, err
	}
	return &p, nil
}

func (r *Repository) GetByOrderID(ctx context.Context, orderID string) (*BuddyPayment, error) {
	var p BuddyPayment
	if err := r.db.WithContext(ctx).Where("gateway_order_id = ?", orderID).First(&p).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPaymentNotFound
		}
		return nil, err
	}
	return &p, nil
}

// Reattempt points a FAILED payment at a fresh gateway order. It reports false
// when the row was no longer FAILED.
func (r *Repository) Reattempt(ctx context.Context, id int64, orderID string, amount int64, currency string) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&BuddyPayment{}).
		Where("id = ? AND status = ?", id, StatusFailed).
		Updates(map[string]any{
			"gateway_order_id":   orderID,
			"gateway_payment_id": nil,
			"amount":             amount,
			"currency":           currency,
			"status":             StatusPending,
			"attempt":            gorm.Expr("attempt + 1"),
			"failure_reason":     nil,
			"updated_at":         time.Now(),
		})
	return res.RowsAffected > 0, res.Error
}

// MarkPaidIdempotent moves a PENDING payment to COMPLETED. changed is false
// when it was already COMPLETED.
func (r *Repository) MarkPaidIdempotent(ctx context.Context, orderID, paymentID string, paidAt time.Time) (*BuddyPayment, bool, error) {
	var (
		out     BuddyPayment
		changed bool
	)
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("gateway_order_id = ?", orderID).First(&out).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrPaymentNotFound
			}
			return err
		}
		switch out.Status {
		case StatusCompleted:
			return nil
		case StatusFailed:
			return ErrPaymentFailed
		}
		// Serializes with the timeout sweep, which cancels under the same lock.
		if _, err := buddyrequest.LockByID(tx, out.BuddyRequestID); err != nil {
			return err
		}

		res := tx.Model(&BuddyPayment{}).
			Where("id = ? AND status = ?", out.ID, StatusPending).
			Updates(map[string]any{
				"status":             StatusCompleted,
				"gateway_payment_id": paymentID,
				"paid_at":            paidAt,
				"updated_at":         paidAt,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return errors.New("payment row not updated")
		}
		changed = true
		return tx.First(&out, out.ID).Error
	})
	if err != nil {
		return nil, false, err
	}
	return &out, changed, nil
}

// MarkFailed moves a PENDING payment to FAILED.
func (r *Repository) MarkFailed(ctx context.Context, orderID, paymentID, reason string) error {
	return r.db.WithContext(ctx).
		Model(&BuddyPayment{}).
		Where("gateway_order_id = ? AND status = ?", orderID, StatusPending).
		Updates(map[string]any{
			"status":             StatusFailed,
			"gateway_payment_id": paymentID,
			"failure_reason":     reason,
			"updated_at":         time.Now(),
		}).Error
}

// HasCompletedPayment reports whether the request has a COMPLETED payment,
// reading through tx.
func (r *Repository) HasCompletedPayment(tx *gorm.DB, requestID int64) (bool, error) {
	var n int64
	err := tx.Model(&BuddyPayment{}).
		Where("buddy_request_id = ? AND status = ?", requestID, StatusCompleted).
		Count(&n).Error
	return n > 0, err
}

// CompletedRequestIDs returns which of requestIDs have a COMPLETED payment.
func (r *Repository) CompletedRequestIDs(ctx context.Context, requestIDs []int64) (map[int64]bool, error) {
	out := make(map[int64]bool, len(requestIDs))
	if len(requestIDs) == 0 {
		return out, nil
	}
	var ids []int64
	err := r.db.WithContext(ctx).
		Model(&BuddyPayment{}).
		Where("buddy_request_id IN ? AND status = ?", requestIDs, StatusCompleted).
		Pluck("buddy_request_id", &ids).Error
	if err != nil {
		return nil, err
	}
	for _, id := range ids {
		out[id] = true
	}
	return out, nil
}
