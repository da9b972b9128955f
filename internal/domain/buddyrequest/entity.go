package buddyrequest

import (
	"fmt"
	"time"

	"gorm.io/gorm"
)

// uniqueSlotIndex is the partial unique index that closes the double-booking race.
const uniqueSlotIndex = "idx_no_double_booking"

type BuddyRequest struct {
	ID                     int64             `gorm:"primaryKey" json:"id"`
	RequesterName          string            `gorm:"size:120;not null" json:"requesterName"`
	RequesterEmail         string            `gorm:"size:255;not null;index:idx_buddy_requests_email" json:"requesterEmail"`
	RequesterPhone         *string           `gorm:"size:32" json:"requesterPhone,omitempty"`
	RequestType            RequestType       `gorm:"size:16;not null" json:"requestType"`
	CommunicationMode      CommunicationMode `gorm:"size:16;not null" json:"communicationMode"`
	SessionDurationMinutes *int              `json:"sessionDurationMinutes,omitempty"`
	PreferredDate          string            `gorm:"size:10;not null" json:"preferredDate"`
	TimeSlot               TimeSlot          `gorm:"size:32;not null" json:"timeSlot"`
	Message                string            `gorm:"type:text;not null" json:"message"`
	ExtraInfo              *string           `gorm:"type:text" json:"extraInfo,omitempty"`
	Status                 Status            `gorm:"size:16;not null;index:idx_buddy_requests_status_created,priority:1" json:"status"`
	AssignedBuddyID        *int64            `json:"assignedBuddyId,omitempty"`
	GuidelinesAcceptedAt   *time.Time        `json:"guidelinesAcceptedAt,omitempty"`
	CancelledAt            *time.Time        `json:"cancelledAt,omitempty"`
	CancelReason           *string           `json:"cancelReason,omitempty"`
	CompletedAt            *time.Time        `json:"completedAt,omitempty"`
	CreatedAt              time.Time         `gorm:"index:idx_buddy_requests_status_created,priority:2" json:"createdAt"`
	UpdatedAt              time.Time         `json:"updatedAt"`
}

func (BuddyRequest) TableName() string { return "buddy_requests" }

// AutoMigrate creates the table and the partial unique slot index on SQLite.
// Postgres uses the goose migrations.
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&BuddyRequest{}); err != nil {
		return err
	}
	return db.Exec(fmt.Sprintf(
		`CREATE UNIQUE INDEX IF NOT EXISTS %s ON buddy_requests (assigned_buddy_id, preferred_date, time_slot) WHERE status IN ('%s', '%s')`,
		uniqueSlotIndex, StatusPending, StatusAssigned,
	)).Error
}
