package middleware

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"buddydesk/internal/pkg/logger"
	"buddydesk/internal/pkg/response"
)

var errServerStatus = errors.New("server error response")

// ErrorLogger recovers from panics and logs handler errors attached with c.Error.
func ErrorLogger(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		defer func() {
			if recovered := recover(); recovered != nil {
				err := fmt.Errorf("panic: %v", recovered)
				log.Error(requestFields(c, log, start, "panic"), "request panicked", err)

				if !c.Writer.Written() {
					response.CustomError(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "Internal Server Error")
				}
				c.Abort()
				return
			}

			if len(c.Errors) == 0 {
				if c.Writer.Status() >= http.StatusInternalServerError {
					log.Error(requestFields(c, log, start, "http_error"), "request failed", errServerStatus)
				}
				return
			}

			for _, ginErr := range c.Errors {
				ctx := requestFields(c, log, start, fmt.Sprintf("%v", ginErr.Type))
				if ginErr.Meta != nil {
					ctx = log.WithField(ctx, "meta", ginErr.Meta)
				}
				if c.Writer.Status() >= http.StatusInternalServerError {
					log.Error(ctx, "request error", ginErr.Err)
				} else {
					log.Warn(log.WithField(ctx, "error", ginErr.Error()), "request error")
				}
			}
		}()

		c.Next()
	}
}

// AccessLog writes one info line per request.
func AccessLog(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Info(requestFields(c, log, start, ""), "request completed")
	}
}

func requestFields(c *gin.Context, log *logger.Logger, start time.Time, errType string) context.Context {
	fields := map[string]any{
		"status":     c.Writer.Status(),
		"method":     c.Request.Method,
		"path":       c.FullPath(),
		"client_ip":  c.ClientIP(),
		"latency_ms": time.Since(start).Milliseconds(),
	}
	if c.FullPath() == "" {
		fields["path"] = c.Request.URL.Path
	}
	if errType != "" {
		fields["type"] = errType
	}
	if admin := c.GetString(ContextAdmin); admin != "" {
		fields["admin"] = admin
	}
	return log.WithFields(c.Request.Context(), fields)
}
