package handlers

import (
	"floatchat/web/middleware"
	"floatchat/web/types"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// respondWithError logs the technical error and returns a user-friendly message
func respondWithError(c *gin.Context, statusCode int, technicalError error, userMessage string, logger *zap.Logger, fields ...zap.Field) {
	if logger != nil {
		fields = append(fields, zap.Error(technicalError))
		logger.Error("Request failed", fields...)
	}

	c.JSON(statusCode, types.QueryResponse{
		Type:     types.OutputText,
		Message:  userMessage,
		Degraded: true,
		Status:   "error",
	})
}

// respondWithClientError returns a client error (no logging needed for validation errors)
func respondWithClientError(c *gin.Context, statusCode int, userMessage string) {
	c.JSON(statusCode, types.QueryResponse{
		Type:     types.OutputText,
		Message:  userMessage,
		Degraded: true,
		Status:   "invalid_input",
		Session:  middleware.SessionID(c),
	})
}
