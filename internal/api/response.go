package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"ojtportal/internal/ojt"
)

func Error(c *gin.Context, status int, msg string) {
	c.JSON(status, gin.H{"error": msg})
}

func AbortUnauthorized(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
}

func Unauthorized(c *gin.Context)           { Error(c, http.StatusUnauthorized, "unauthorized") }
func BadRequest(c *gin.Context, msg string) { Error(c, http.StatusBadRequest, msg) }
func Forbidden(c *gin.Context, msg string)  { Error(c, http.StatusForbidden, msg) }
func NotFound(c *gin.Context, msg string)   { Error(c, http.StatusNotFound, msg) }
func Internal(c *gin.Context, msg string)   { Error(c, http.StatusInternalServerError, msg) }

// ValidationFailed writes the field->messages map the way form clients
// expect it: {"errors": {field: [messages]}} with a 422.
func ValidationFailed(c *gin.Context, fields map[string][]string) {
	c.JSON(http.StatusUnprocessableEntity, gin.H{"errors": fields})
}

// RespondError translates the domain error taxonomy to HTTP. Anything
// outside the taxonomy is logged with the request context and surfaced as
// a generic 500 so internals never leak to the client.
func RespondError(c *gin.Context, logger *slog.Logger, err error) {
	var (
		validationErr *ojt.ValidationError
		conflictErr   *ojt.ConflictError
		notFoundErr   *ojt.NotFoundError
		authzErr      *ojt.AuthorizationError
		storageErr    *ojt.StorageIOError
	)

	switch {
	case errors.As(err, &validationErr):
		ValidationFailed(c, validationErr.Fields)
	case errors.As(err, &conflictErr):
		c.JSON(http.StatusBadRequest, gin.H{"message": conflictErr.Message})
	case errors.As(err, &notFoundErr):
		NotFound(c, notFoundErr.Error())
	case errors.As(err, &authzErr):
		Forbidden(c, authzErr.Error())
	case errors.As(err, &storageErr):
		if logger != nil {
			logger.Error("storage failure", slog.String("op", storageErr.Op), slog.Any("error", storageErr.Err))
		}
		Internal(c, "internal error")
	default:
		if logger != nil {
			logger.Error("unexpected failure", slog.Any("error", err))
		}
		Internal(c, "internal error")
	}
}
