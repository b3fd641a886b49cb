package response

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	domainerrors "oft-bridge.backend/internal/domain/errors"
	"oft-bridge.backend/pkg/logger"
)

// Success sends a success response
func Success(c *gin.Context, status int, data interface{}) {
	c.JSON(status, data)
}

// Error maps err onto its AppError status. Anything else is a 500 whose
// cause is logged, not returned.
func Error(c *gin.Context, err error) {
	appErr, ok := domainerrors.As(err)
	if !ok {
		logger.Error(c.Request.Context(), "unhandled error", zap.Error(err))
		appErr = domainerrors.InternalError(err)
	} else if appErr.Status >= 500 {
		logger.Warn(c.Request.Context(), "request failed", zap.Error(err))
	}

	body := gin.H{
		"code":    appErr.Code,
		"message": appErr.Message,
		"error":   appErr.Message,
	}
	if appErr.Hint != "" {
		body["hint"] = appErr.Hint
	}
	if appErr.UpstreamStatus != 0 {
		body["upstreamStatus"] = appErr.UpstreamStatus
	}
	c.AbortWithStatusJSON(appErr.Status, body)
}

// ErrorWithError sends an error response with a specific status and message
func ErrorWithError(c *gin.Context, status int, code string, message string) {
	c.AbortWithStatusJSON(status, gin.H{
		"code":    code,
		"message": message,
		"error":   message,
	})
}
