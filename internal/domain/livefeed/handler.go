package livefeed

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"buddydesk/internal/pkg/jwt"
	"buddydesk/internal/pkg/logger"
	"buddydesk/internal/pkg/response"
)

type Handler struct {
	hub       *Hub
	jwt       *jwt.Service
	adminRole string
	log       *logger.Logger
}

func NewHandler(hub *Hub, jwtService *jwt.Service, adminRole string, log *logger.Logger) *Handler {
	if log == nil {
		log = logger.Nop()
	}
	return &Handler{hub: hub, jwt: jwtService, adminRole: adminRole, log: log}
}

// ServeWS upgrades an admin connection to the live lifecycle feed.
//
// Endpoint: GET /api/v1/admin/live?token=JWT
//
// Browsers cannot set headers on a websocket handshake, so the token is read
// from the query string, falling back to the Authorization header.
func (h *Handler) ServeWS(c *gin.Context) {
	token := strings.TrimSpace(c.Query("token"))
	if token == "" {
		token = strings.TrimSpace(strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer "))
	}
	if token == "" {
		response.Error(c, http.StatusUnauthorized, "UNAUTHORIZED", "token is required")
		return
	}

	claims, err := h.jwt.ValidateToken(token)
	if err != nil {
		response.Error(c, http.StatusUnauthorized, "UNAUTHORIZED", "invalid or expired token")
		return
	}
	if claims.Role != h.adminRole {
		response.Error(c, http.StatusForbidden, "FORBIDDEN", "admin access required")
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade has already written the HTTP error.
		h.log.Warn(c.Request.Context(), "live feed upgrade failed: "+err.Error())
		return
	}

	ctx := h.log.WithField(c.Request.Context(), "admin", claims.Subject)
	h.log.Info(ctx, "live feed connected")
	h.hub.serve(conn, claims.Subject)
	h.log.Info(ctx, "live feed disconnected")
}

func RegisterRoutes(r *gin.RouterGroup, h *Handler) {
	r.GET("/admin/live", h.ServeWS)
}
