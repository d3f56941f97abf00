package api

import (
	"log/slog"

	"github.com/gin-gonic/gin"

	"ojtportal/internal/api/middleware"
	"ojtportal/internal/database"
	"ojtportal/internal/ojt"
)

// callerFromContext reads the identity the auth middleware resolved.
func callerFromContext(c *gin.Context) (ojt.Caller, bool) {
	idValue, ok := c.Get(middleware.UserIDKey)
	if !ok {
		return ojt.Caller{}, false
	}
	userID, ok := idValue.(uint)
	if !ok {
		return ojt.Caller{}, false
	}

	roleValue, ok := c.Get(middleware.UserRoleKey)
	if !ok {
		return ojt.Caller{}, false
	}
	role, ok := roleValue.(database.Role)
	if !ok || !role.Valid() {
		return ojt.Caller{}, false
	}

	return ojt.Caller{ID: userID, Role: role}, true
}

func requestLogger(c *gin.Context, caller ojt.Caller) *slog.Logger {
	return middleware.LoggerFromContext(c).With(slog.Uint64("caller_id", uint64(caller.ID)))
}
