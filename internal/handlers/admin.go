package handlers

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"maplocate/api/internal/middleware"
)

const (
	defaultPageSize = 50
	maxPageSize     = 200
)

var secretFields = []string{"password", "old_password"}

// logAdminAction records a successful mutation by the current admin. Password fields
// are dropped from form before logging.
func (h HandlerSet) logAdminAction(c *gin.Context, form map[string]any) {
	event := h.log.Info().
		Str("method", c.Request.Method).
		Str("path", c.Request.URL.Path)

	if s, ok := middleware.CurrentSession(c); ok {
		event = event.Int64("uid", s.UID).Str("username", s.Username)
	}

	if form != nil {
		clean := make(map[string]any, len(form))
		for k, v := range form {
			clean[k] = v
		}
		for _, k := range secretFields {
			delete(clean, k)
		}
		event = event.Interface("form", clean)
	}

	event.Msg("admin action")
}

// pageParams reads ?limit= and ?offset=, falling back to defaults on bad input.
func pageParams(c *gin.Context) (limit int, offset int) {
	limit = defaultPageSize
	if v, err := strconv.Atoi(c.Query("limit")); err == nil && v > 0 && v <= maxPageSize {
		limit = v
	}
	if v, err := strconv.Atoi(c.Query("offset")); err == nil && v > 0 {
		offset = v
	}
	return limit, offset
}
