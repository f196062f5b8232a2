package middleware

import (
	"net/http"

	"groundstation/internal/models"
	"groundstation/internal/service"

	"github.com/gin-gonic/gin"
)

const (
	UsernameKey = "auth_username"
	RoleKey     = "auth_role"
)

// RequireRole authenticates the caller with HTTP basic credentials. With no
// roles given any valid account passes; otherwise the account's role must
// be one of roles.
func RequireRole(auth service.AuthService, roles ...models.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		username, password, ok := c.Request.BasicAuth()
		if !ok {
			c.Header("WWW-Authenticate", `Basic realm="groundstation"`)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
			return
		}

		valid, role, err := auth.Authenticate(c.Request.Context(), username, password)
		if err != nil {
			_ = c.Error(err)
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "failed to verify credentials"})
			return
		}
		if !valid {
			c.Header("WWW-Authenticate", `Basic realm="groundstation"`)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
			return
		}

		if len(roles) > 0 && !hasRole(role, roles) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "insufficient permissions"})
			return
		}

		c.Set(UsernameKey, username)
		c.Set(RoleKey, role)
		c.Next()
	}
}

func hasRole(role models.Role, allowed []models.Role) bool {
	for _, r := range allowed {
		if r == role {
			return true
		}
	}
	return false
}

// CurrentUser returns the account authenticated by RequireRole.
func CurrentUser(c *gin.Context) (string, models.Role) {
	role, _ := c.Get(RoleKey)
	r, _ := role.(models.Role)
	return c.GetString(UsernameKey), r
}
