package payment

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"buddydesk/internal/domain/buddyrequest"
	"buddydesk/internal/pkg/response"
	"buddydesk/internal/pkg/validator"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// CreateOrder handles POST /api/v1/buddy-payment/create-order
// @Summary Create or reuse the payment order of a paid request
// @Tags Buddy Payments
// @Accept json
// @Produce json
// @Param request body CreateOrderRequest true "Order"
// @Success 200 {object} OrderInfo
// @Failure 409 {object} map[string]interface{}
// @Failure 504 {object} map[string]interface{}
// @Router /buddy-payment/create-order [post]
func (h *Handler) CreateOrder(c *gin.Context) {
	var req CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Message(c, http.StatusBadRequest, "Invalid JSON body", nil)
		return
	}
	req.Mode = buddyrequest.CommunicationMode(strings.ToUpper(string(req.Mode)))
	if errs := validator.Validate(&req); errs != nil {
		response.Message(c, http.StatusBadRequest, "Invalid request", gin.H{"code": "VALIDATION_ERROR", "errors": errs})
		return
	}

	order, err := h.service.CreateOrder(c.Request.Context(), req)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

// VerifyPayment handles POST /api/v1/buddy-payment/verify
// @Summary Verify a checkout callback
// @Tags Buddy Payments
// @Accept json
// @Produce json
// @Param request body VerifyPaymentRequest true "Checkout result"
// @Success 200 {object} VerifyResult
// @Failure 400 {object} map[string]interface{}
// @Failure 504 {object} map[string]interface{}
// @Router /buddy-payment/verify [post]
func (h *Handler) VerifyPayment(c *gin.Context) {
	var req VerifyPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Message(c, http.StatusBadRequest, "Invalid JSON body", nil)
		return
	}
	if errs := validator.Validate(&req); errs != nil {
		response.Message(c, http.StatusBadRequest, "Invalid request", gin.H{"code": "VALIDATION_ERROR", "errors": errs})
		return
	}

	res, err := h.service.VerifyPayment(c.Request.Context(), req)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) writeError(c *gin.Context, err error) {
	status, code, msg := http.StatusInternalServerError, "INTERNAL_ERROR", "Internal server error"
	switch {
	case errors.Is(err, ErrInvalidSignature):
		status, code, msg = http.StatusBadRequest, "INVALID_SIGNATURE", "Invalid payment signature"
	case errors.Is(err, ErrGatewayTimeout):
		status, code, msg = http.StatusGatewayTimeout, "GATEWAY_TIMEOUT", "Payment gateway did not respond in time. Please retry."
	case errors.Is(err, ErrGateway):
		status, code, msg = http.StatusBadGateway, "GATEWAY_ERROR", "Payment gateway error. Please retry."
	case errors.Is(err, ErrAlreadyPaid):
		status, code, msg = http.StatusConflict, "ALREADY_PAID", "This request is already paid. Refresh to continue."
	case errors.Is(err, ErrPaymentNotRequired):
		status, code, msg = http.StatusBadRequest, "PAYMENT_NOT_REQUIRED", "This request does not need a payment"
	case errors.Is(err, ErrRequestMismatch), errors.Is(err, ErrUnknownPrice):
		status, code, msg = http.StatusBadRequest, "REQUEST_MISMATCH", "Mode and duration must match the request"
	case errors.Is(err, ErrPaymentMismatch):
		status, code, msg = http.StatusBadRequest, "PAYMENT_MISMATCH", "Payment does not match the order"
	case errors.Is(err, ErrPaymentNotCaptured):
		status, code, msg = http.StatusConflict, "PAYMENT_NOT_CAPTURED", "Payment is not captured yet. Please retry shortly."
	case errors.Is(err, ErrPaymentFailed):
		status, code, msg = http.StatusPaymentRequired, "PAYMENT_FAILED", "Payment failed. Create a new order to retry."
	case errors.Is(err, ErrPaymentNotFound):
		status, code, msg = http.StatusNotFound, "PAYMENT_NOT_FOUND", "Payment order not found"
	case errors.Is(err, ErrRequestCancelled):
		status, code, msg = http.StatusConflict, "REQUEST_CANCELLED", "This request was cancelled before the payment completed. Contact support for a refund."
	case errors.Is(err, buddyrequest.ErrRequestNotFound):
		status, code, msg = http.StatusNotFound, "REQUEST_NOT_FOUND", "Buddy request not found"
	case errors.Is(err, buddyrequest.ErrRequestTerminal):
		status, code, msg = http.StatusConflict, "REQUEST_TERMINAL", "This request is already completed or cancelled"
	case errors.Is(err, buddyrequest.ErrNotAssigned):
		status, code, msg = http.StatusConflict, "NOT_ASSIGNED", "This request has no buddy yet"
	default:
		_ = c.Error(err)
	}
	response.Message(c, status, msg, gin.H{"code": code})
}
