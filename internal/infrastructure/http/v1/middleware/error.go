package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"stockledger/internal/core/apperror"
	"stockledger/internal/domain/idempotency"
	"stockledger/pkg/logger"
)

// ErrorHandler middleware transforms errors into consistent JSON responses.
// Hides internal errors from clients while logging full details.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}

		err := c.Errors.Last().Err

		// If response already written by handler, do not override it.
		if c.Writer.Written() {
			return
		}

		status, body := renderError(c, err)

		// Client errors are final and replayed; server errors leave the key retryable.
		failIdempotency(c, status, body)

		c.JSON(status, body)
	}
}

func renderError(c *gin.Context, err error) (int, gin.H) {
	ctx := c.Request.Context()

	appErr, ok := apperror.AsAppError(err)
	if !ok {
		// Unknown error - log and return generic message
		logger.Error(ctx, "unhandled error", "error", err)
		return http.StatusInternalServerError, gin.H{
			"code":    apperror.CodeInternal,
			"message": "Internal server error",
			"details": map[string]any{
				"requestId": c.GetString(ContextKeyRequestID),
			},
		}
	}

	switch {
	case appErr.HTTPStatus >= http.StatusInternalServerError && appErr.Code != apperror.CodeLockTimeout:
		logger.Error(ctx, "request error", "code", appErr.Code, "cause", appErr.Err)
	case appErr.Err != nil:
		logger.Warn(ctx, "request error", "code", appErr.Code, "cause", appErr.Err)
	}

	if appErr.Code == apperror.CodeLockTimeout {
		c.Header("Retry-After", "1")
	}

	status := appErr.HTTPStatus
	if status == 0 {
		status = http.StatusInternalServerError
	}

	return status, gin.H{
		"code":    appErr.Code,
		"message": appErr.Message,
		"details": appErr.Details,
	}
}

func failIdempotency(c *gin.Context, status int, body any) {
	key, exists := c.Get(ContextKeyIdempotencyKey)
	if !exists {
		return
	}
	v, ok := c.Get(ContextKeyIdempotencyStore)
	if !ok {
		return
	}
	store, ok := v.(idempotency.Store)
	if !ok || store == nil {
		return
	}
	ctx := c.Request.Context()
	if status >= http.StatusInternalServerError {
		if err := store.ReleaseKey(ctx, key.(string)); err != nil {
			logger.Warn(ctx, "idempotency release key", "error", err)
		}
		return
	}
	if err := store.FailKey(ctx, key.(string), status, "application/json", body); err != nil {
		logger.Warn(ctx, "idempotency fail key", "error", err)
	}
}
