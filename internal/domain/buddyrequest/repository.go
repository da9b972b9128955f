package buddyrequest

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"buddydesk/internal/domain/buddy"
	"buddydesk/internal/pkg/pagination"
)

// ListFilter narrows the admin request list.
type ListFilter struct {
	Status  *Status
	Type    *RequestType
	BuddyID *int64
	Date    string
	Email   string
}

// Repository handles buddy request data access. Writes and decisions use the
// primary; admin listings and availability read from the replica when one is set.
type Repository struct {
	db     *gorm.DB
	reader *gorm.DB
}

func NewRepository(db, reader *gorm.DB) *Repository {
	if reader == nil {
		reader = db
	}
	return &Repository{db: db, reader: reader}
}

func (r *Repository) GetByID(ctx context.Context, id int64) (*BuddyRequest, error) {
	return getByID(r.db.WithContext(ctx), id)
}

func getByID(db *gorm.DB, id int64) (*BuddyRequest, error) {
	var req BuddyRequest
	if err := db.First(&req, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRequestNotFound
		}
		return nil, err
	}
	return &req, nil
}

// LockByID loads a request with a row lock held until tx ends.
func LockByID(tx *gorm.DB, id int64) (*BuddyRequest, error) {
	return getByID(tx.Clauses(clause.Locking{Strength: "UPDATE"}), id)
}

func (r *Repository) List(ctx context.Context, f ListFilter, p pagination.Params) ([]BuddyRequest, int64, error) {
	p = p.Normalize()
	q := r.reader.WithContext(ctx).Model(&BuddyRequest{})
	if f.Status != nil {
		q = q.Where("status = ?", *f.Status)
	}
	if f.Type != nil {
		q = q.Where("request_type = ?", *f.Type)
	}
	if f.BuddyID != nil {
		q = q.Where("assigned_buddy_id = ?", *f.BuddyID)
	}
	if f.Date != "" {
		q = q.Where("preferred_date = ?", f.Date)
	}
	if f.Email != "" {
		q = q.Where("requester_email = ?", strings.ToLower(strings.TrimSpace(f.Email)))
	}

	q = q.Session(&gorm.Session{})

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var rows []BuddyRequest
	if err := q.Order("created_at DESC, id DESC").Limit(p.Limit).Offset(p.Offset()).Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}

// CountActive implements buddy.ActiveRequestCounter.
func (r *Repository) CountActive(ctx context.Context, tx *gorm.DB, buddyIDs ...int64) (map[int64]int64, error) {
	out := make(map[int64]int64, len(buddyIDs))
	if len(buddyIDs) == 0 {
		return out, nil
	}
	db := tx
	if db == nil {
		db = r.db
	}

	var rows []struct {
		BuddyID int64
		Total   int64
	}
	err := db.WithContext(ctx).
		Model(&BuddyRequest{}).
		Select("assigned_buddy_id AS buddy_id, COUNT(*) AS total").
		Where("assigned_buddy_id IN ? AND status IN ?", buddyIDs, ActiveStatuses()).
		Group("assigned_buddy_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		out[row.BuddyID] = row.Total
	}
	return out, nil
}

// ActiveCandidates returns active buddies ordered by current non-terminal load,
// then by id, so assignments spread evenly and deterministically.
func (r *Repository) ActiveCandidates(ctx context.Context) ([]buddy.Buddy, error) {
	var buddies []buddy.Buddy
	if err := r.db.WithContext(ctx).Where("is_active = ?", true).Order("id ASC").Find(&buddies).Error; err != nil {
		return nil, err
	}
	ids := make([]int64, len(buddies))
	for i, b := range buddies {
		ids[i] = b.ID
	}
	load, err := r.CountActive(ctx, nil, ids...)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(buddies, func(i, j int) bool {
		return load[buddies[i].ID] < load[buddies[j].ID]
	})
	return buddies, nil
}

// updateGuarded applies updates only while the row is still in one of from.
func updateGuarded(tx *gorm.DB, id int64, from []Status, updates map[string]any) (int64, error) {
	res := tx.Model(&BuddyRequest{}).Where("id = ? AND status IN ?", id, from).Updates(updates)
	return res.RowsAffected, res.Error
}

// MarkGuidelinesAccepted stamps the acknowledgment once; later calls keep the first time.
func (r *Repository) MarkGuidelinesAccepted(ctx context.Context, id int64, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&BuddyRequest{}).
		Where("id = ? AND status = ? AND guidelines_accepted_at IS NULL", id, StatusAssigned).
		Updates(map[string]any{"guidelines_accepted_at": at, "updated_at": at}).Error
}

// FindPendingBefore returns PENDING requests created before cutoff.
func (r *Repository) FindPendingBefore(ctx context.Context, cutoff time.Time, limit int) ([]BuddyRequest, error) {
	var rows []BuddyRequest
	err := r.db.WithContext(ctx).
		Where("status = ? AND created_at < ?", StatusPending, cutoff).
		Order("id ASC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

// FindAssignedPaidBefore returns ASSIGNED paid-flow requests whose preferred date
// is strictly before date.
func (r *Repository) FindAssignedPaidBefore(ctx context.Context, date string, limit int) ([]BuddyRequest, error) {
	var rows []BuddyRequest
	err := r.db.WithContext(ctx).
		Where("status = ? AND request_type = ? AND preferred_date < ?", StatusAssigned, TypeDetailed, date).
		Order("id ASC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

// BusyBySlot counts, per slot on date, the distinct buddies among buddyIDs holding
// a non-terminal request.
func (r *Repository) BusyBySlot(ctx context.Context, date string, buddyIDs []int64) (map[TimeSlot]int64, error) {
	out := make(map[TimeSlot]int64)
	if len(buddyIDs) == 0 {
		return out, nil
	}
	var rows []struct {
		TimeSlot TimeSlot
		Total    int64
	}
	err := r.reader.WithContext(ctx).
		Model(&BuddyRequest{}).
		Select("time_slot, COUNT(DISTINCT assigned_buddy_id) AS total").
		Where("preferred_date = ? AND status IN ? AND assigned_buddy_id IN ?", date, ActiveStatuses(), buddyIDs).
		Group("time_slot").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		out[row.TimeSlot] = row.Total
	}
	return out, nil
}
