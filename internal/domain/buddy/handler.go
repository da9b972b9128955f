package buddy

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"buddydesk/internal/pkg/response"
	"buddydesk/internal/pkg/validator"
)

// Handler handles admin buddy directory requests
type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// ListBuddies handles GET /api/v1/admin/buddies
// @Summary List buddies
// @Tags Admin Buddies
// @Produce json
// @Security BearerAuth
// @Param active query bool false "Only active buddies"
// @Success 200 {object} response.Response{data=[]BuddyWithLoad}
// @Router /admin/buddies [get]
func (h *Handler) ListBuddies(c *gin.Context) {
	activeOnly, _ := strconv.ParseBool(c.Query("active"))

	buddies, err := h.service.List(c.Request.Context(), activeOnly)
	if err != nil {
		_ = c.Error(err)
		response.CustomError(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to list buddies")
		return
	}
	response.Success(c, http.StatusOK, buddies)
}

// GetBuddy handles GET /api/v1/admin/buddies/:id
func (h *Handler) GetBuddy(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	b, err := h.service.Get(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, b)
}

// CreateBuddy handles POST /api/v1/admin/buddies
// @Summary Create buddy
// @Tags Admin Buddies
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body CreateBuddyRequest true "Buddy"
// @Success 201 {object} response.Response{data=Buddy}
// @Failure 400 {object} response.Response
// @Failure 409 {object} response.Response
// @Router /admin/buddies [post]
func (h *Handler) CreateBuddy(c *gin.Context) {
	var req CreateBuddyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.CustomError(c, http.StatusBadRequest, "INVALID_JSON", "Invalid JSON body")
		return
	}
	if errs := validator.Validate(&req); errs != nil {
		response.ErrorWithDetails(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid buddy", errs)
		return
	}

	b, err := h.service.Create(c.Request.Context(), &req)
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, http.StatusCreated, b)
}

// UpdateBuddy handles PUT /api/v1/admin/buddies/:id
func (h *Handler) UpdateBuddy(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var req UpdateBuddyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.CustomError(c, http.StatusBadRequest, "INVALID_JSON", "Invalid JSON body")
		return
	}
	if errs := validator.Validate(&req); errs != nil {
		response.ErrorWithDetails(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid buddy", errs)
		return
	}

	b, err := h.service.Update(c.Request.Context(), id, &req)
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, b)
}

// DeleteBuddy handles DELETE /api/v1/admin/buddies/:id
// @Summary Delete buddy
// @Description Fails with 400 and activeRequests when the buddy still has PENDING or ASSIGNED requests
// @Tags Admin Buddies
// @Security BearerAuth
// @Param id path int true "Buddy ID"
// @Success 200 {object} response.Response
// @Failure 400 {object} map[string]interface{}
// @Router /admin/buddies/{id} [delete]
func (h *Handler) DeleteBuddy(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	if err := h.service.Delete(c.Request.Context(), id); err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"deleted": true})
}

func (h *Handler) writeError(c *gin.Context, err error) {
	var active *ActiveRequestsError
	switch {
	case errors.As(err, &active):
		response.Message(c, http.StatusBadRequest,
			"Buddy has active requests. Deactivate the buddy instead, or refresh and retry once they are resolved.",
			gin.H{"activeRequests": active.Count})
	case errors.Is(err, ErrBuddyNotFound):
		response.CustomError(c, http.StatusNotFound, "BUDDY_NOT_FOUND", "Buddy not found")
	case errors.Is(err, ErrEmailExists):
		response.CustomError(c, http.StatusConflict, "EMAIL_EXISTS", "A buddy with this email already exists")
	default:
		_ = c.Error(err)
		response.CustomError(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Internal server error")
	}
}

func parseID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		response.CustomError(c, http.StatusBadRequest, "INVALID_ID", "Invalid buddy ID")
		return 0, false
	}
	return id, true
}
