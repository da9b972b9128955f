package buddy

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"buddydesk/internal/database"
)

// Repository handles buddy data access
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) Create(ctx context.Context, b *Buddy) error {
	if err := r.db.WithContext(ctx).Create(b).Error; err != nil {
		if database.IsUniqueViolation(err, "idx_buddies_email") {
			return ErrEmailExists
		}
		return err
	}
	return nil
}

func (r *Repository) GetByID(ctx context.Context, id int64) (*Buddy, error) {
	var b Buddy
	if err := r.db.WithContext(ctx).First(&b, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrBuddyNotFound
		}
		return nil, err
	}
	return &b, nil
}

// GetByIDs returns the buddies keyed by id; unknown ids are absent from the map.
func (r *Repository) GetByIDs(ctx context.Context, ids []int64) (map[int64]Buddy, error) {
	out := make(map[int64]Buddy, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var rows []Buddy
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, err
	}
	for _, b := range rows {
		out[b.ID] = b
	}
	return out, nil
}

// List returns buddies ordered by id. activeOnly restricts to isActive buddies.
func (r *Repository) List(ctx context.Context, activeOnly bool) ([]Buddy, error) {
	var rows []Buddy
	q := r.db.WithContext(ctx).Order("id ASC")
	if activeOnly {
		q = q.Where("is_active = ?", true)
	}
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *Repository) Update(ctx context.Context, b *Buddy) error {
	if err := r.db.WithContext(ctx).Save(b).Error; err != nil {
		if database.IsUniqueViolation(err, "idx_buddies_email") {
			return ErrEmailExists
		}
		return err
	}
	return nil
}

// LockActive loads an active buddy inside tx with a share lock so a concurrent
// delete waits for the caller's transaction.
func LockActive(tx *gorm.DB, id int64) (*Buddy, error) {
	var b Buddy
	if err := tx.Clauses(clause.Locking{Strength: "SHARE"}).First(&b, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrBuddyNotFound
		}
		return nil, err
	}
	if !b.IsActive {
		return &b, ErrBuddyInactive
	}
	return &b, nil
}

// DeleteGuarded removes the buddy after guard approves it, holding a row lock
// for the whole check-then-delete.
func (r *Repository) DeleteGuarded(ctx context.Context, id int64, guard func(tx *gorm.DB) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var b Buddy
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&b, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrBuddyNotFound
			}
			return err
		}
		if err := guard(tx); err != nil {
			return err
		}
		return tx.Delete(&Buddy{}, id).Error
	})
}
