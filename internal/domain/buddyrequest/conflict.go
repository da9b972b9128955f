package buddyrequest

import (
	"context"

	"gorm.io/gorm"
)

// HasConflict reports whether buddyID already holds a PENDING or ASSIGNED request
// for (date, slot), ignoring excludeID. Pass a transaction handle to run the
// check inside the caller's transaction.
func HasConflict(ctx context.Context, db *gorm.DB, buddyID int64, date string, slot TimeSlot, excludeID *int64) (bool, error) {
	q := db.WithContext(ctx).
		Model(&BuddyRequest{}).
		Where("assigned_buddy_id = ? AND preferred_date = ? AND time_slot = ? AND status IN ?",
			buddyID, date, slot, ActiveStatuses())
	if excludeID != nil {
		q = q.Where("id <> ?", *excludeID)
	}

	var n int64
	if err := q.Count(&n).Error; err != nil {
		return false, err
	}
	return n > 0, nil
}
