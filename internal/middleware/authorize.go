package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"learnhub/api/internal/models"
)

// RequireRoles passes requests whose authenticated role satisfies any of
// the allowed roles. Superadmin satisfies every gate through Role.Implies.
// Must run after Authenticate; a request that reaches it without claims is
// a 401, never a 403, so unauthenticated callers learn nothing about the
// required roles.
func RequireRoles(allowed ...models.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := ClaimsFrom(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":   "unauthorized",
				"message": "authentication required",
			})
			return
		}

		role, ok := models.ParseRole(claims.RoleName)
		if !ok || !role.Implies(allowed...) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error":   "forbidden",
				"message": "role does not permit this operation",
			})
			return
		}

		c.Next()
	}
}
