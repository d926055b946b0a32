package middleware

import (
	"github.com/gin-gonic/gin"

	"maplocate/api/internal/models"
	"maplocate/api/internal/permissions"
	"maplocate/api/internal/policy"
)

const sessionKey = "admin_session"

// RequireSuperuser admits only sessions of superusers.
func RequireSuperuser(p *policy.Policy) gin.HandlerFunc {
	return func(c *gin.Context) {
		s, err := p.Superadmin(c.Request.Context(), c.GetHeader("Authorization"))
		if err != nil {
			Fail(c, err)
			return
		}
		c.Set(sessionKey, s)
		c.Next()
	}
}

// RequirePermission admits sessions whose user holds permission.
func RequirePermission(p *policy.Policy, permission permissions.Permission) gin.HandlerFunc {
	return func(c *gin.Context) {
		s, err := p.Admin(c.Request.Context(), c.GetHeader("Authorization"), permission)
		if err != nil {
			Fail(c, err)
			return
		}
		c.Set(sessionKey, s)
		c.Next()
	}
}

// CurrentSession returns the session stored by RequireSuperuser or RequirePermission.
func CurrentSession(c *gin.Context) (models.Session, bool) {
	val, ok := c.Get(sessionKey)
	if !ok {
		return models.Session{}, false
	}
	s, ok := val.(models.Session)
	return s, ok
}
