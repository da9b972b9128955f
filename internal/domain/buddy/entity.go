package buddy

import (
	"time"

	"gorm.io/gorm"
)

// Buddy is a support buddy who can be matched to requests.
type Buddy struct {
	ID           int64     `gorm:"primaryKey" json:"id"`
	Name         string    `gorm:"size:120;not null" json:"name"`
	Email        string    `gorm:"size:255;not null;uniqueIndex:idx_buddies_email" json:"email"`
	Phone        *string   `gorm:"size:32" json:"phone,omitempty"`
	IsActive     bool      `gorm:"not null" json:"isActive"`
	CalendlyLink string    `gorm:"not null" json:"calendlyLink"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

func (Buddy) TableName() string { return "buddies" }

// AutoMigrate creates the table for SQLite development databases and tests.
// Postgres uses the goose migrations.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&Buddy{})
}
