package payment

import "github.com/gin-gonic/gin"

// RegisterRoutes registers the public payment routes. writeLimit, when set,
// guards both endpoints.
func RegisterRoutes(r *gin.RouterGroup, handler *Handler, writeLimit gin.HandlerFunc) {
	payments := r.Group("/buddy-payment")
	if writeLimit != nil {
		payments.Use(writeLimit)
	}
	{
		payments.POST("/create-order", handler.CreateOrder)
		payments.POST("/verify", handler.VerifyPayment)
	}
}
