package buddy

import "github.com/gin-gonic/gin"

// RegisterAdminRoutes registers admin buddy directory routes
func RegisterAdminRoutes(r *gin.RouterGroup, handler *Handler) {
	buddies := r.Group("/buddies")
	{
		buddies.GET("", handler.ListBuddies)
		buddies.POST("", handler.CreateBuddy)
		buddies.GET("/:id", handler.GetBuddy)
		buddies.PUT("/:id", handler.UpdateBuddy)
		buddies.DELETE("/:id", handler.DeleteBuddy)
	}
}
