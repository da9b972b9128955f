package buddyrequest

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"buddydesk/internal/database"
	"buddydesk/internal/domain/buddy"
	"buddydesk/internal/domain/notification"
)

const testDate = "2025-06-01"

var testNow = time.Date(2025, 5, 1, 10, 0, 0, 0, time.UTC)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := database.OpenSQLite(fmt.Sprintf("file:buddyrequest_%s?mode=memory&cache=shared", name))
	require.NoError(t, err)
	require.NoError(t, buddy.AutoMigrate(db))
	require.NoError(t, AutoMigrate(db))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

type fakePayments struct {
	mu    sync.Mutex
	infos map[int64]*PaymentInfo
}

func (f *fakePayments) PaymentInfoForRequest(ctx context.Context, requestID int64) (*PaymentInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.infos[requestID], nil
}

func (f *fakePayments) HasCompletedPayment(tx *gorm.DB, requestID int64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	info := f.infos[requestID]
	return info != nil && info.Status == PaymentCompleted, nil
}

func (f *fakePayments) markPaid(requestID int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.infos == nil {
		f.infos = map[int64]*PaymentInfo{}
	}
	f.infos[requestID] = &PaymentInfo{Status: PaymentCompleted, OrderID: "order_test", Amount: 299, Currency: "INR"}
}

type recordingNotifier struct {
	mu        sync.Mutex
	assigned  []notification.Assignment
	cancelled []notification.Cancellation
	completed []notification.Completion
}

func (r *recordingNotifier) NotifyRequestAssigned(ctx context.Context, a notification.Assignment) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.assigned = append(r.assigned, a)
}

func (r *recordingNotifier) NotifyRequestCancelled(ctx context.Context, c notification.Cancellation) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cancelled = append(r.cancelled, c)
}

func (r *recordingNotifier) NotifyRequestCompleted(ctx context.Context, c notification.Completion) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.completed = append(r.completed, c)
}

type recordingEvents struct {
	mu     sync.Mutex
	events []string
}

func (r *recordingEvents) Publish(eventType string, payload any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, eventType)
}

func (r *recordingEvents) list() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.events...)
}

type staticPrices []PriceEntry

func (p staticPrices) Prices() []PriceEntry { return p }

type testEnv struct {
	db       *gorm.DB
	svc      *Service
	repo     *Repository
	buddies  *buddy.Repository
	payments *fakePayments
	notifier *recordingNotifier
	events   *recordingEvents
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db := newTestDB(t)
	env := &testEnv{
		db:       db,
		repo:     NewRepository(db, nil),
		buddies:  buddy.NewRepository(db),
		payments: &fakePayments{},
		notifier: &recordingNotifier{},
		events:   &recordingEvents{},
	}
	env.svc = NewService(Deps{
		DB:       db,
		Repo:     env.repo,
		Buddies:  env.buddies,
		Payments: env.payments,
		Paid:     env.payments,
		Notifier: env.notifier,
		Events:   env.events,
		Prices:   staticPrices{{Mode: ModeChat, Duration: 30, Amount: 299, Currency: "INR"}},
	})
	clock := func() time.Time { return testNow }
	env.svc.now = clock
	env.svc.matcher.now = clock
	return env
}

func (e *testEnv) seedBuddy(t *testing.T, name string, active bool) *buddy.Buddy {
	t.Helper()
	b := &buddy.Buddy{
		Name:         name,
		Email:        strings.ToLower(name) + "@example.com",
		IsActive:     active,
		CalendlyLink: "https://calendly.com/" + strings.ToLower(name),
	}
	require.NoError(t, e.buddies.Create(context.Background(), b))
	return b
}

// seedRequest inserts a request row directly, bypassing matching.
func (e *testEnv) seedRequest(t *testing.T, buddyID *int64, status Status, slot TimeSlot) *BuddyRequest {
	t.Helper()
	req := &BuddyRequest{
		RequesterName:     "Seeded",
		RequesterEmail:    "seeded@example.com",
		RequestType:       TypeFriendly,
		CommunicationMode: ModeChat,
		PreferredDate:     testDate,
		TimeSlot:          slot,
		Message:           "hello",
		Status:            status,
		AssignedBuddyID:   buddyID,
	}
	require.NoError(t, e.db.Create(req).Error)
	return req
}

func newInput(t RequestType, mode CommunicationMode, duration *int) *CreateBuddyRequestRequest {
	return &CreateBuddyRequestRequest{
		Name:              "Meera",
		Email:             "Meera@Example.com",
		RequestType:       t,
		CommunicationMode: mode,
		SessionDuration:   duration,
		PreferredDate:     testDate,
		TimeSlot:          SlotMorning,
		Message:           "I would like to talk.",
	}
}

func intPtr(v int) *int       { return &v }
func int64Ptr(v int64) *int64 { return &v }
func strPtr(s string) *string { return &s }
func statusPtr(s Status) *Status {
	return &s
}
