package middleware

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"maplocate/api/internal/apperror"
)

const internalReason = "Internal server error"

// Errors renders the last error attached with c.Error as the JSON error envelope.
// Errors outside the apperror taxonomy are logged and answered with a bare 500.
func Errors(log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}
		err := c.Errors.Last().Err

		if appErr, ok := apperror.As(err); ok {
			c.JSON(appErr.Status(), appErr.Envelope())
			return
		}

		log.Error().
			Err(err).
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Str("request_id", c.Writer.Header().Get(requestIDHeader)).
			Msg("request failed")
		c.JSON(http.StatusInternalServerError, internalEnvelope())
	}
}

func internalEnvelope() gin.H {
	return gin.H{
		"error":        gin.H{},
		"error_reason": internalReason,
		"error_code":   http.StatusInternalServerError,
	}
}

// Fail records err for the Errors middleware and stops the handler chain.
func Fail(c *gin.Context, err error) {
	_ = c.Error(err)
	c.Abort()
}

func errorReason(c *gin.Context) string {
	if len(c.Errors) == 0 {
		return ""
	}
	err := c.Errors.Last().Err
	var appErr *apperror.Error
	if errors.As(err, &appErr) {
		return appErr.Reason
	}
	return internalReason
}
