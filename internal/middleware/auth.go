package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"learnhub/api/internal/security"
)

const claimsContextKey = "auth_claims"

// Authenticate extracts and verifies the bearer access token. Verification
// is a local signature check only; no store lookup happens on the request
// path. Verified claims are attached to the request context for downstream
// handlers.
func Authenticate(codec *security.Codec) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" || !strings.HasPrefix(authHeader, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":   "missing_token",
				"message": "authorization header with bearer token required",
			})
			return
		}

		claims, err := codec.VerifyAccess(strings.TrimPrefix(authHeader, "Bearer "))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":   "invalid_token",
				"message": "access token is invalid or expired",
			})
			return
		}

		c.Set(claimsContextKey, claims)
		c.Next()
	}
}

// ClaimsFrom returns the claims Authenticate attached, if any.
func ClaimsFrom(c *gin.Context) (*security.Claims, bool) {
	val, exists := c.Get(claimsContextKey)
	if !exists {
		return nil, false
	}
	claims, ok := val.(*security.Claims)
	return claims, ok
}
