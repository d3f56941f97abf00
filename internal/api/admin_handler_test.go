package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"ojtportal/internal/api/middleware"
	"ojtportal/internal/database"
	"ojtportal/internal/ojt"
)

func newHandlerTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:" + strings.ReplaceAll(t.Name(), "/", "_") + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func newAdminContext(t *testing.T, method, target string, body any) (*gin.Context, *httptest.ResponseRecorder) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, target, reader)
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = req
	c.Set(middleware.UserIDKey, uint(1))
	c.Set(middleware.UserRoleKey, database.RoleAdmin)
	return c, w
}

func newAdminTestHandler(db *gorm.DB) *AdminHandler {
	registry := ojt.NewRegistryService(db)
	reports := ojt.NewReportService(db)
	applications := ojt.NewApplicationService(db, nil)
	progress := ojt.NewProgressService(db, applications)
	return NewAdminHandler(registry, reports, progress)
}

func TestCreateProgramReturnsCreated(t *testing.T) {
	db := newHandlerTestDB(t)
	h := newAdminTestHandler(db)

	c, w := newAdminContext(t, http.MethodPost, "/v1/admin/programs", gin.H{
		"programName": "BSIT",
		"description": "Information Technology",
	})
	h.CreateProgram(c)

	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d body=%s", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Body.String(), "Program added successfully") {
		t.Fatalf("unexpected body: %s", w.Body.String())
	}

	var count int64
	if err := db.Model(&database.Program{}).Count(&count).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 program row, got %d", count)
	}
}

func TestCreateProgramValidationShape(t *testing.T) {
	db := newHandlerTestDB(t)
	h := newAdminTestHandler(db)

	c, w := newAdminContext(t, http.MethodPost, "/v1/admin/programs", gin.H{})
	h.CreateProgram(c)

	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 got %d body=%s", w.Code, w.Body.String())
	}

	var payload struct {
		Errors map[string][]string `json:"errors"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if len(payload.Errors["programName"]) == 0 {
		t.Fatalf("expected programName errors, got %v", payload.Errors)
	}
	if len(payload.Errors["description"]) == 0 {
		t.Fatalf("expected description errors, got %v", payload.Errors)
	}
}

func TestDeleteProgramConflict(t *testing.T) {
	db := newHandlerTestDB(t)
	h := newAdminTestHandler(db)

	program := database.Program{ProgramName: "BSIT", Status: database.StatusActive}
	if err := db.Create(&program).Error; err != nil {
		t.Fatalf("seed program: %v", err)
	}
	sid := "2024-3001"
	student := database.User{
		Name:       "Enrolled",
		Email:      "enrolled@example.com",
		Role:       database.RoleStudent,
		StudentID:  &sid,
		OJTProgram: "BSIT",
		Status:     database.UserStatusActive,
	}
	if err := db.Create(&student).Error; err != nil {
		t.Fatalf("seed student: %v", err)
	}

	c, w := newAdminContext(t, http.MethodDelete, "/v1/admin/programs/"+strconv.Itoa(int(program.ID)), nil)
	c.Params = gin.Params{{Key: "id", Value: strconv.Itoa(int(program.ID))}}
	h.DeleteProgram(c)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d body=%s", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Body.String(), "Cannot delete program with associated students") {
		t.Fatalf("unexpected body: %s", w.Body.String())
	}
}

func TestStudentEndpointRejectsNonAdminCaller(t *testing.T) {
	db := newHandlerTestDB(t)
	h := newAdminTestHandler(db)

	c, w := newAdminContext(t, http.MethodPost, "/v1/admin/students", gin.H{
		"studentId": "2024-4001",
		"name":      "Someone",
		"email":     "someone@example.com",
		"password":  "password123",
		"phone":     "09170000000",
		"program":   "BSIT",
		"status":    "Active",
	})
	c.Set(middleware.UserRoleKey, database.RoleStudent)
	h.CreateStudent(c)

	if w.Code != http.StatusForbidden {
		t.Fatalf("expected 403 got %d body=%s", w.Code, w.Body.String())
	}
}
