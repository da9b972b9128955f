package buddyrequest

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRouter(t *testing.T) (*gin.Engine, *testEnv) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	env := newTestEnv(t)
	h := NewHandler(env.svc)
	r := gin.New()
	api := r.Group("/api/v1")
	RegisterPublicRoutes(api, h, nil)
	RegisterAdminRoutes(api.Group("/admin"), h)
	return r, env
}

func doJSONRequest(r http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body == nil {
		reader = bytes.NewReader(nil)
	} else {
		b, _ := json.Marshal(body)
		reader = bytes.NewReader(b)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	return rr
}

func decode(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out), rr.Body.String())
	return out
}

func submission() map[string]any {
	return map[string]any{
		"name":          "Meera",
		"email":         "meera@example.com",
		"type":          "DETAILED",
		"mode":          "CHAT",
		"duration":      30,
		"preferredDate": testDate,
		"timeSlot":      "Morning (9 AM - 12 PM)",
		"message":       "I would like to talk.",
	}
}

func TestCreateRequest_CreatedThenBusy(t *testing.T) {
	r, env := setupTestRouter(t)
	x := env.seedBuddy(t, "Xavi", true)

	rr := doJSONRequest(r, http.MethodPost, "/api/v1/buddy-request", submission())
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	body := decode(t, rr)
	assert.NotZero(t, body["requestId"])
	assert.Equal(t, "Xavi", body["buddyName"])
	assert.Equal(t, x.CalendlyLink, body["buddyCalendlyLink"])
	assert.Equal(t, "ASSIGNED", body["status"])

	rr = doJSONRequest(r, http.MethodPost, "/api/v1/buddy-request", submission())
	require.Equal(t, http.StatusConflict, rr.Code)
	assert.Equal(t, "All buddies are busy at this time", decode(t, rr)["message"])
}

func TestCreateRequest_BindsTypeModeDuration(t *testing.T) {
	r, env := setupTestRouter(t)
	env.seedBuddy(t, "Xavi", true)

	rr := doJSONRequest(r, http.MethodPost, "/api/v1/buddy-request", map[string]any{
		"name":          "Meera",
		"email":         "meera@example.com",
		"type":          "DETAILED",
		"mode":          "CHAT",
		"duration":      30,
		"preferredDate": testDate,
		"timeSlot":      "Morning (9 AM - 12 PM)",
		"message":       "hi",
	})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	stored, err := env.repo.GetByID(context.Background(), int64(decode(t, rr)["requestId"].(float64)))
	require.NoError(t, err)
	assert.Equal(t, TypeDetailed, stored.RequestType)
	assert.Equal(t, ModeChat, stored.CommunicationMode)
	require.NotNil(t, stored.SessionDurationMinutes)
	assert.Equal(t, 30, *stored.SessionDurationMinutes)

	in := submission()
	delete(in, "mode")
	delete(in, "duration")
	rr = doJSONRequest(r, http.MethodPost, "/api/v1/buddy-request", in)
	require.Equal(t, http.StatusBadRequest, rr.Code)
	errs, ok := decode(t, rr)["errors"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, errs, "mode")
	assert.Contains(t, errs, "duration")
}

func TestCreateRequest_ValidationError(t *testing.T) {
	r, env := setupTestRouter(t)
	env.seedBuddy(t, "Xavi", true)

	in := submission()
	in["timeSlot"] = "Brunch"
	in["preferredDate"] = "2020-01-01"

	rr := doJSONRequest(r, http.MethodPost, "/api/v1/buddy-request", in)
	require.Equal(t, http.StatusBadRequest, rr.Code)
	errs, ok := decode(t, rr)["errors"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, errs, "timeSlot")

	rr = doJSONRequest(r, http.MethodPost, "/api/v1/buddy-request", "not-an-object")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestAdminListRequests_PaginationShape(t *testing.T) {
	r, env := setupTestRouter(t)
	x := env.seedBuddy(t, "Xavi", true)
	env.seedRequest(t, &x.ID, StatusAssigned, SlotMorning)
	env.seedRequest(t, &x.ID, StatusAssigned, SlotEvening)

	rr := doJSONRequest(r, http.MethodGet, "/api/v1/admin/buddy-requests?status=assigned&type=FRIENDLY&page=1&limit=1", nil)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	body := decode(t, rr)
	data, ok := body["data"].([]any)
	require.True(t, ok)
	assert.Len(t, data, 1)

	page := body["pagination"].(map[string]any)
	assert.Equal(t, float64(1), page["currentPage"])
	assert.Equal(t, float64(2), page["totalPages"])
	assert.Equal(t, float64(2), page["totalCount"])
	assert.Equal(t, true, page["hasNextPage"])
	assert.Equal(t, false, page["hasPrevPage"])

	rr = doJSONRequest(r, http.MethodGet, "/api/v1/admin/buddy-requests?status=LOST", nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestAdminUpdateRequest_StatusCodes(t *testing.T) {
	r, env := setupTestRouter(t)
	x := env.seedBuddy(t, "Xavi", true)
	y := env.seedBuddy(t, "Yara", true)
	off := env.seedBuddy(t, "Ivan", false)
	env.seedRequest(t, &x.ID, StatusAssigned, SlotMorning)
	b := env.seedRequest(t, &y.ID, StatusAssigned, SlotMorning)
	path := "/api/v1/admin/buddy-requests/" + strconv.FormatInt(b.ID, 10)

	rr := doJSONRequest(r, http.MethodPut, path, map[string]any{"assignedBuddyId": x.ID})
	assert.Equal(t, http.StatusConflict, rr.Code)

	rr = doJSONRequest(r, http.MethodPut, path, map[string]any{"assignedBuddyId": off.ID})
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)

	rr = doJSONRequest(r, http.MethodPut, path, map[string]any{"status": "completed"})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	rr = doJSONRequest(r, http.MethodPut, path, map[string]any{"status": "CANCELLED"})
	assert.Equal(t, http.StatusConflict, rr.Code)
	errBody := decode(t, rr)["error"].(map[string]any)
	assert.Equal(t, "REQUEST_TERMINAL", errBody["code"])

	rr = doJSONRequest(r, http.MethodPut, "/api/v1/admin/buddy-requests/abc", map[string]any{"status": "CANCELLED"})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestAdminDeleteRequest_SoftCancels(t *testing.T) {
	r, env := setupTestRouter(t)
	x := env.seedBuddy(t, "Xavi", true)
	req := env.seedRequest(t, &x.ID, StatusAssigned, SlotMorning)
	path := "/api/v1/admin/buddy-requests/" + strconv.FormatInt(req.ID, 10)

	rr := doJSONRequest(r, http.MethodDelete, path, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	rr = doJSONRequest(r, http.MethodDelete, path, nil)
	require.Equal(t, http.StatusOK, rr.Code, "repeat cancel succeeds")

	var n int64
	require.NoError(t, env.db.Model(&BuddyRequest{}).Where("id = ?", req.ID).Count(&n).Error)
	assert.Equal(t, int64(1), n)

	rr = doJSONRequest(r, http.MethodGet, path, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	data := decode(t, rr)["data"].(map[string]any)
	assert.Equal(t, "CANCELLED", data["status"])
}

func TestAcknowledgeGuidelines_PaymentRequired(t *testing.T) {
	r, env := setupTestRouter(t)
	env.seedBuddy(t, "Xavi", true)

	rr := doJSONRequest(r, http.MethodPost, "/api/v1/buddy-request", submission())
	require.Equal(t, http.StatusCreated, rr.Code)
	id := int64(decode(t, rr)["requestId"].(float64))
	path := "/api/v1/buddy-request/" + strconv.FormatInt(id, 10) + "/acknowledge-guidelines"

	rr = doJSONRequest(r, http.MethodPost, path, map[string]any{"email": "meera@example.com"})
	assert.Equal(t, http.StatusPaymentRequired, rr.Code)

	env.payments.markPaid(id)
	rr = doJSONRequest(r, http.MethodPost, path, map[string]any{"email": "meera@example.com"})
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "https://calendly.com/xavi", decode(t, rr)["calendlyUrl"])

	rr = doJSONRequest(r, http.MethodPost, path, map[string]any{"email": "bad"})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestRequesterCancel(t *testing.T) {
	r, env := setupTestRouter(t)
	env.seedBuddy(t, "Xavi", true)

	in := submission()
	in["type"] = "FRIENDLY"
	delete(in, "duration")
	rr := doJSONRequest(r, http.MethodPost, "/api/v1/buddy-request", in)
	require.Equal(t, http.StatusCreated, rr.Code)
	id := int64(decode(t, rr)["requestId"].(float64))
	path := "/api/v1/buddy-request/" + strconv.FormatInt(id, 10) + "/cancel"

	rr = doJSONRequest(r, http.MethodPost, path, map[string]any{"email": "other@example.com"})
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = doJSONRequest(r, http.MethodPost, path, map[string]any{"email": "meera@example.com", "reason": "plans changed"})
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "CANCELLED", decode(t, rr)["status"])
}

func TestOptionsAndAvailability(t *testing.T) {
	r, env := setupTestRouter(t)
	env.seedBuddy(t, "Xavi", true)

	rr := doJSONRequest(r, http.MethodGet, "/api/v1/buddy-request/options", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Len(t, decode(t, rr)["timeSlots"], 4)

	rr = doJSONRequest(r, http.MethodGet, "/api/v1/buddy-request/availability?date="+testDate, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Len(t, decode(t, rr)["slots"], 4)

	rr = doJSONRequest(r, http.MethodGet, "/api/v1/buddy-request/availability", nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}
