package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"ojtportal/internal/auth"
	"ojtportal/internal/database"
)

// Context keys for the resolved caller identity.
const (
	UserIDKey   = "userID"
	UserRoleKey = "userRole"
)

func abortUnauthorized(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
}

func abortForbidden(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden"})
}

// AuthMiddleware validates the bearer token and resolves the caller
// identity into the context exactly once. Handlers never parse tokens.
func AuthMiddleware(authService *auth.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			abortUnauthorized(c)
			return
		}

		parts := strings.Fields(header)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			abortUnauthorized(c)
			return
		}

		rawToken := parts[1]
		if strings.TrimSpace(rawToken) == "" {
			abortUnauthorized(c)
			return
		}

		claims, err := authService.ValidateToken(rawToken)
		if err != nil || claims.TokenType != "access" {
			abortUnauthorized(c)
			return
		}

		role := database.Role(claims.Role)
		if !role.Valid() {
			abortUnauthorized(c)
			return
		}

		c.Set(UserIDKey, claims.UserID)
		c.Set(UserRoleKey, role)
		c.Next()
	}
}

// RequireRole rejects callers whose resolved role differs from the one the
// route group demands.
func RequireRole(role database.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		value, ok := c.Get(UserRoleKey)
		if !ok {
			abortUnauthorized(c)
			return
		}
		callerRole, ok := value.(database.Role)
		if !ok || callerRole != role {
			abortForbidden(c)
			return
		}
		c.Next()
	}
}
