package payment

import (
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"buddydesk/internal/database"
	"buddydesk/internal/domain/buddy"
	"buddydesk/internal/domain/buddyrequest"
)

const testSecret = "test-gateway-secret"

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

type testEnv struct {
	db      *gorm.DB
	svc     *Service
	repo    *Repository
	gateway *SandboxGateway
	events  *recordingEvents
	buddy   *buddy.Buddy
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := database.OpenSQLite(fmt.Sprintf("file:payment_%s?mode=memory&cache=shared", name))
	require.NoError(t, err)
	require.NoError(t, buddy.AutoMigrate(db))
	require.NoError(t, buddyrequest.AutoMigrate(db))
	require.NoError(t, AutoMigrate(db))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	b := &buddy.Buddy{Name: "Xavi", Email: "xavi@example.com", IsActive: true, CalendlyLink: "https://calendly.com/xavi"}
	require.NoError(t, db.Create(b).Error)

	env := &testEnv{
		db:      db,
		repo:    NewRepository(db),
		gateway: NewSandboxGateway("rzp_test_key"),
		events:  &recordingEvents{},
		buddy:   b,
	}
	env.svc = NewService(Deps{
		Repo:      env.repo,
		Requests:  buddyrequest.NewRepository(db, nil),
		Buddies:   buddy.NewRepository(db),
		Gateway:   env.gateway,
		KeySecret: testSecret,
		Currency:  "INR",
		Timeout:   time.Second,
		Events:    env.events,
	})
	return env
}

func (e *testEnv) seedRequest(t *testing.T, typ buddyrequest.RequestType, status buddyrequest.Status, slot buddyrequest.TimeSlot) *buddyrequest.BuddyRequest {
	t.Helper()
	duration := 30
	req := &buddyrequest.BuddyRequest{
		RequesterName:          "Meera",
		RequesterEmail:         "meera@example.com",
		RequestType:            typ,
		CommunicationMode:      buddyrequest.ModeChat,
		SessionDurationMinutes: &duration,
		PreferredDate:          "2025-06-01",
		TimeSlot:               slot,
		Message:                "hello",
		Status:                 status,
	}
	if status != buddyrequest.StatusPending {
		req.AssignedBuddyID = &e.buddy.ID
	}
	require.NoError(t, e.db.Create(req).Error)
	return req
}

func orderInput(requestID int64) CreateOrderRequest {
	return CreateOrderRequest{
		RequestID: requestID,
		Email:     "meera@example.com",
		Name:      "Meera",
		Mode:      buddyrequest.ModeChat,
		Duration:  30,
	}
}

func (e *testEnv) paymentStatus(t *testing.T, requestID int64) Status {
	t.Helper()
	p, err := e.repo.GetByRequestID(t.Context(), requestID)
	require.NoError(t, err)
	return p.Status
}
