package payment

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"buddydesk/internal/domain/buddyrequest"
)

func doJSONRequest(r http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	b, _ := json.Marshal(body)
	req := httptest.NewRequest(method, path, bytes.NewReader(b))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	return rr
}

func TestPaymentEndpoints(t *testing.T) {
	gin.SetMode(gin.TestMode)
	env := newTestEnv(t)
	r := gin.New()
	RegisterRoutes(r.Group("/api/v1"), NewHandler(env.svc), nil)

	req := env.seedRequest(t, buddyrequest.TypeDetailed, buddyrequest.StatusAssigned, buddyrequest.SlotMorning)

	rr := doJSONRequest(r, http.MethodPost, "/api/v1/buddy-payment/create-order", map[string]any{
		"requestId": req.ID,
		"email":     "meera@example.com",
		"name":      "Meera",
		"mode":      "chat",
		"duration":  30,
	})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var order OrderInfo
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &order))
	assert.Equal(t, int64(299), order.Amount)
	assert.NotEmpty(t, order.OrderID)
	assert.Equal(t, "rzp_test_key", order.KeyID)

	paymentID := env.gateway.Capture(order.OrderID)

	rr = doJSONRequest(r, http.MethodPost, "/api/v1/buddy-payment/verify", map[string]any{
		"orderId":   order.OrderID,
		"paymentId": paymentID,
		"signature": "deadbeef",
	})
	require.Equal(t, http.StatusBadRequest, rr.Code)
	var bad map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &bad))
	assert.Equal(t, "Invalid payment signature", bad["message"])
	assert.Equal(t, StatusPending, env.paymentStatus(t, req.ID))

	rr = doJSONRequest(r, http.MethodPost, "/api/v1/buddy-payment/verify", map[string]any{
		"orderId":   order.OrderID,
		"paymentId": paymentID,
		"signature": Sign(testSecret, order.OrderID, paymentID),
	})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var res VerifyResult
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &res))
	assert.True(t, res.Verified)
	assert.Equal(t, "https://calendly.com/xavi", res.CalendlyURL)

	rr = doJSONRequest(r, http.MethodPost, "/api/v1/buddy-payment/create-order", map[string]any{
		"requestId": req.ID,
		"email":     "meera@example.com",
		"mode":      "CHAT",
		"duration":  30,
	})
	assert.Equal(t, http.StatusConflict, rr.Code)

	rr = doJSONRequest(r, http.MethodPost, "/api/v1/buddy-payment/create-order", map[string]any{
		"requestId": req.ID,
		"email":     "meera@example.com",
		"mode":      "CHAT",
		"duration":  45,
	})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}
