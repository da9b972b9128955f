package buddyrequest

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"buddydesk/internal/domain/buddy"
	"buddydesk/internal/pkg/pagination"
	"buddydesk/internal/pkg/response"
	"buddydesk/internal/pkg/validator"
)

// Handler serves the public request flow and the admin override endpoints.
type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// CreateRequest handles POST /api/v1/buddy-request
// @Summary Submit a buddy session request
// @Tags Buddy Requests
// @Accept json
// @Produce json
// @Param request body CreateBuddyRequestRequest true "Request"
// @Success 201 {object} CreateBuddyRequestResponse
// @Failure 400 {object} map[string]interface{}
// @Failure 409 {object} map[string]interface{}
// @Router /buddy-request [post]
func (h *Handler) CreateRequest(c *gin.Context) {
	var req CreateBuddyRequestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Message(c, http.StatusBadRequest, "Invalid JSON body", nil)
		return
	}

	res, err := h.service.Create(c.Request.Context(), &req)
	if err != nil {
		h.writePublicError(c, err)
		return
	}
	c.JSON(http.StatusCreated, res)
}

// Options handles GET /api/v1/buddy-request/options
func (h *Handler) Options(c *gin.Context) {
	c.JSON(http.StatusOK, h.service.Options())
}

// Availability handles GET /api/v1/buddy-request/availability?date=YYYY-MM-DD
// @Summary Free buddies per slot
// @Tags Buddy Requests
// @Produce json
// @Param date query string true "Date (YYYY-MM-DD)"
// @Success 200 {object} AvailabilityResponse
// @Router /buddy-request/availability [get]
func (h *Handler) Availability(c *gin.Context) {
	res, err := h.service.Availability(c.Request.Context(), c.Query("date"))
	if err != nil {
		h.writePublicError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// CancelByRequester handles POST /api/v1/buddy-request/:id/cancel
func (h *Handler) CancelByRequester(c *gin.Context) {
	id, ok := parseRequestID(c, true)
	if !ok {
		return
	}
	var req RequesterCancelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Message(c, http.StatusBadRequest, "Invalid JSON body", nil)
		return
	}
	if fields := validator.Validate(&req); fields != nil {
		writeValidation(c, fields)
		return
	}

	out, err := h.service.CancelByRequester(c.Request.Context(), id, req)
	if err != nil {
		h.writePublicError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"requestId": out.ID, "status": out.Status})
}

// AcknowledgeGuidelines handles POST /api/v1/buddy-request/:id/acknowledge-guidelines
// @Summary Accept session guidelines and get the scheduling link
// @Tags Buddy Requests
// @Accept json
// @Produce json
// @Param id path int true "Request ID"
// @Success 200 {object} GuidelinesResult
// @Failure 402 {object} map[string]interface{}
// @Router /buddy-request/{id}/acknowledge-guidelines [post]
func (h *Handler) AcknowledgeGuidelines(c *gin.Context) {
	id, ok := parseRequestID(c, true)
	if !ok {
		return
	}
	var req AcknowledgeGuidelinesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Message(c, http.StatusBadRequest, "Invalid JSON body", nil)
		return
	}
	if fields := validator.Validate(&req); fields != nil {
		writeValidation(c, fields)
		return
	}

	res, err := h.service.AcknowledgeGuidelines(c.Request.Context(), id, req)
	if err != nil {
		h.writePublicError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// ListRequests handles GET /api/v1/admin/buddy-requests
// @Summary List buddy requests
// @Tags Admin Buddy Requests
// @Produce json
// @Security BearerAuth
// @Param status query string false "PENDING|ASSIGNED|COMPLETED|CANCELLED"
// @Param type query string false "FRIENDLY|DETAILED"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Router /admin/buddy-requests [get]
func (h *Handler) ListRequests(c *gin.Context) {
	var f ListFilter
	if v := strings.ToUpper(strings.TrimSpace(c.Query("status"))); v != "" {
		st := Status(v)
		if !st.Valid() {
			response.CustomError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Unknown status filter")
			return
		}
		f.Status = &st
	}
	if v := strings.ToUpper(strings.TrimSpace(c.Query("type"))); v != "" {
		t := RequestType(v)
		if t != TypeFriendly && t != TypeDetailed {
			response.CustomError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Unknown type filter")
			return
		}
		f.Type = &t
	}
	if v := c.Query("buddyId"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			response.CustomError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid buddyId filter")
			return
		}
		f.BuddyID = &id
	}
	f.Date = strings.TrimSpace(c.Query("date"))
	f.Email = c.Query("email")

	items, meta, err := h.service.List(c.Request.Context(), f, pagination.FromQuery(c.Query("page"), c.Query("limit")))
	if err != nil {
		_ = c.Error(err)
		response.CustomError(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to list requests")
		return
	}
	response.Paginated(c, http.StatusOK, items, meta)
}

// GetRequest handles GET /api/v1/admin/buddy-requests/:id
func (h *Handler) GetRequest(c *gin.Context) {
	id, ok := parseRequestID(c, false)
	if !ok {
		return
	}
	detail, err := h.service.Get(c.Request.Context(), id)
	if err != nil {
		h.writeAdminError(c, err)
		return
	}
	response.Success(c, http.StatusOK, detail)
}

// UpdateRequest handles PUT /api/v1/admin/buddy-requests/:id
// @Summary Override status or buddy of a request
// @Tags Admin Buddy Requests
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Request ID"
// @Param request body UpdateRequestInput true "Override"
// @Failure 409 {object} response.Response
// @Failure 422 {object} response.Response
// @Router /admin/buddy-requests/{id} [put]
func (h *Handler) UpdateRequest(c *gin.Context) {
	id, ok := parseRequestID(c, false)
	if !ok {
		return
	}
	var in UpdateRequestInput
	if err := c.ShouldBindJSON(&in); err != nil {
		response.CustomError(c, http.StatusBadRequest, "INVALID_JSON", "Invalid JSON body")
		return
	}
	if in.Status != nil {
		st := Status(strings.ToUpper(string(*in.Status)))
		in.Status = &st
	}

	out, err := h.service.UpdateRequest(c.Request.Context(), id, in)
	if err != nil {
		h.writeAdminError(c, err)
		return
	}
	response.Success(c, http.StatusOK, out)
}

// CancelRequest handles DELETE /api/v1/admin/buddy-requests/:id. Rows are
// never removed; the request is cancelled.
func (h *Handler) CancelRequest(c *gin.Context) {
	id, ok := parseRequestID(c, false)
	if !ok {
		return
	}
	out, err := h.service.Cancel(c.Request.Context(), id, ReasonAdmin)
	if err != nil {
		h.writeAdminError(c, err)
		return
	}
	response.Success(c, http.StatusOK, out)
}

type failure struct {
	status  int
	code    string
	message string
}

func classify(err error) (failure, bool) {
	switch {
	case errors.Is(err, ErrAllBuddiesBusy):
		return failure{http.StatusConflict, "ALL_BUDDIES_BUSY", "All buddies are busy at this time"}, true
	case errors.Is(err, ErrSlotConflict):
		return failure{http.StatusConflict, "SLOT_CONFLICT", "The buddy already has a request in this slot. Choose another buddy or refresh."}, true
	case errors.Is(err, ErrRequestTerminal):
		return failure{http.StatusConflict, "REQUEST_TERMINAL", "This request is already completed or cancelled. Refresh to see its current state."}, true
	case errors.Is(err, ErrInvalidTransition):
		return failure{http.StatusConflict, "INVALID_TRANSITION", "This status change is not allowed. Refresh to see the current state."}, true
	case errors.Is(err, ErrNotAssigned):
		return failure{http.StatusConflict, "NOT_ASSIGNED", "This request has no buddy yet"}, true
	case errors.Is(err, ErrBuddyRequired):
		return failure{http.StatusBadRequest, "BUDDY_REQUIRED", "assignedBuddyId is required to assign a request"}, true
	case errors.Is(err, buddy.ErrBuddyInactive):
		return failure{http.StatusUnprocessableEntity, "BUDDY_INACTIVE", "The selected buddy is inactive. Refresh the buddy list."}, true
	case errors.Is(err, buddy.ErrBuddyNotFound):
		return failure{http.StatusNotFound, "BUDDY_NOT_FOUND", "Buddy not found"}, true
	case errors.Is(err, ErrRequestNotFound):
		return failure{http.StatusNotFound, "REQUEST_NOT_FOUND", "Buddy request not found"}, true
	case errors.Is(err, ErrPaymentRequired):
		return failure{http.StatusPaymentRequired, "PAYMENT_REQUIRED", "Payment must be completed first"}, true
	}
	return failure{}, false
}

func (h *Handler) writePublicError(c *gin.Context, err error) {
	var verr *ValidationError
	if errors.As(err, &verr) {
		writeValidation(c, verr.Fields)
		return
	}
	if f, ok := classify(err); ok {
		response.Message(c, f.status, f.message, gin.H{"code": f.code})
		return
	}
	_ = c.Error(err)
	response.Message(c, http.StatusInternalServerError, "Internal server error", nil)
}

func (h *Handler) writeAdminError(c *gin.Context, err error) {
	var verr *ValidationError
	if errors.As(err, &verr) {
		response.ErrorWithDetails(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request", verr.Fields)
		return
	}
	if f, ok := classify(err); ok {
		response.CustomError(c, f.status, f.code, f.message)
		return
	}
	_ = c.Error(err)
	response.CustomError(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Internal server error")
}

func writeValidation(c *gin.Context, fields map[string]string) {
	response.Message(c, http.StatusBadRequest, "Invalid request", gin.H{"code": "VALIDATION_ERROR", "errors": fields})
}

func parseRequestID(c *gin.Context, public bool) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err == nil && id > 0 {
		return id, true
	}
	if public {
		response.Message(c, http.StatusBadRequest, "Invalid request ID", nil)
	} else {
		response.CustomError(c, http.StatusBadRequest, "INVALID_ID", "Invalid request ID")
	}
	return 0, false
}
