package buddyrequest

import "github.com/gin-gonic/gin"

// RegisterPublicRoutes registers the requester-facing routes. writeLimit, when
// set, guards the POST endpoints.
func RegisterPublicRoutes(r *gin.RouterGroup, handler *Handler, writeLimit gin.HandlerFunc) {
	requests := r.Group("/buddy-request")
	{
		requests.GET("/options", handler.Options)
		requests.GET("/availability", handler.Availability)

		writes := requests.Group("")
		if writeLimit != nil {
			writes.Use(writeLimit)
		}
		writes.POST("", handler.CreateRequest)
		writes.POST("/:id/cancel", handler.CancelByRequester)
		writes.POST("/:id/acknowledge-guidelines", handler.AcknowledgeGuidelines)
	}
}

// RegisterAdminRoutes registers the admin override routes
func RegisterAdminRoutes(r *gin.RouterGroup, handler *Handler) {
	requests := r.Group("/buddy-requests")
	{
		requests.GET("", handler.ListRequests)
		requests.GET("/:id", handler.GetRequest)
		requests.PUT("/:id", handler.UpdateRequest)
		requests.DELETE("/:id", handler.CancelRequest)
	}
}
