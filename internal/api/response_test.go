package api

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"ojtportal/internal/ojt"
)

func TestRespondErrorMapsTaxonomy(t *testing.T) {
	gin.SetMode(gin.TestMode)

	cases := []struct {
		name       string
		err        error
		wantStatus int
		wantBody   string
	}{
		{
			name:       "validation",
			err:        ojt.FieldError("email", "The email field is required."),
			wantStatus: http.StatusUnprocessableEntity,
			wantBody:   `"errors"`,
		},
		{
			name:       "conflict",
			err:        &ojt.ConflictError{Message: "Cannot delete program with associated students"},
			wantStatus: http.StatusBadRequest,
			wantBody:   "Cannot delete program",
		},
		{
			name:       "not found",
			err:        &ojt.NotFoundError{Resource: "application"},
			wantStatus: http.StatusNotFound,
			wantBody:   "application",
		},
		{
			name:       "authorization",
			err:        &ojt.AuthorizationError{Message: "admin role required"},
			wantStatus: http.StatusForbidden,
			wantBody:   "admin role required",
		},
		{
			name:       "storage",
			err:        &ojt.StorageIOError{Op: "upload", Err: errors.New("boom")},
			wantStatus: http.StatusInternalServerError,
			wantBody:   "internal error",
		},
		{
			name:       "unexpected",
			err:        errors.New("boom"),
			wantStatus: http.StatusInternalServerError,
			wantBody:   "internal error",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			c.Request = httptest.NewRequest(http.MethodGet, "/", nil)

			RespondError(c, nil, tc.err)

			if w.Code != tc.wantStatus {
				t.Fatalf("expected %d got %d body=%s", tc.wantStatus, w.Code, w.Body.String())
			}
			if !strings.Contains(w.Body.String(), tc.wantBody) {
				t.Fatalf("expected body containing %q got %s", tc.wantBody, w.Body.String())
			}
		})
	}
}

func TestRespondErrorHidesInternals(t *testing.T) {
	gin.SetMode(gin.TestMode)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)

	RespondError(c, nil, errors.New("pq: connection refused at 10.0.0.5"))

	if strings.Contains(w.Body.String(), "10.0.0.5") {
		t.Fatalf("internal detail leaked: %s", w.Body.String())
	}
}
