package response

import "github.com/gin-gonic/gin"

func Success(c *gin.Context, statusCode int, data interface{}) {
	c.JSON(statusCode, gin.H{
		"success": true,
		"data":    data,
	})
}

func Error(c *gin.Context, statusCode int, code string, message string) {
	c.JSON(statusCode, gin.H{
		"success": false,
		"error": gin.H{
			"code":    code,
			"message": message,
		},
	})
}

func ErrorWithDetails(c *gin.Context, statusCode int, code string, message string, details any) {
	c.JSON(statusCode, gin.H{
		"success": false,
		"error": gin.H{
			"code":    code,
			"message": message,
			"details": details,
		},
	})
}

// CustomError accepts a string, an error or a field map as the message.
func CustomError(c *gin.Context, statusCode int, code string, message any) {
	switch m := message.(type) {
	case error:
		message = m.Error()
	case nil:
		message = code
	}
	c.JSON(statusCode, gin.H{
		"success": false,
		"error": gin.H{
			"code":    code,
			"message": message,
		},
	})
}

// Message writes the flat {"message": ...} body the public booking widget reads,
// plus any extra top-level fields.
func Message(c *gin.Context, statusCode int, message string, extra gin.H) {
	body := gin.H{"message": message}
	for k, v := range extra {
		body[k] = v
	}
	c.JSON(statusCode, body)
}

// Paginated writes list endpoints as {"data": [...], "pagination": {...}}.
func Paginated(c *gin.Context, statusCode int, data any, pagination any) {
	c.JSON(statusCode, gin.H{
		"data":       data,
		"pagination": pagination,
	})
}
