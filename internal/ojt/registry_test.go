package ojt

import (
	"context"
	"errors"
	"testing"

	"ojtportal/internal/database"
)

func TestCreateStudentValidation(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	svc := NewRegistryService(db)
	admin := Caller{ID: 1, Role: database.RoleAdmin}

	program := database.Program{ProgramName: "BSIT", Status: database.StatusActive}
	if err := db.Create(&program).Error; err != nil {
		t.Fatalf("seed program: %v", err)
	}

	_, err := svc.CreateStudent(ctx, admin, StudentInput{})
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected validation error got %v", err)
	}
	for _, field := range []string{"studentId", "name", "email", "password", "phone", "program", "status"} {
		if _, ok := verr.Fields[field]; !ok {
			t.Fatalf("expected %s field error, got %v", field, verr.Fields)
		}
	}

	student, err := svc.CreateStudent(ctx, admin, StudentInput{
		StudentID: "2024-0001",
		Name:      "Juan dela Cruz",
		Email:     "juan@example.com",
		Password:  "password123",
		Phone:     "09171234567",
		Program:   "BSIT",
		Status:    database.StatusActive,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if student.Role != database.RoleStudent {
		t.Fatalf("expected student role, got %q", student.Role)
	}
	if student.PasswordHash == "password123" || student.PasswordHash == "" {
		t.Fatal("password stored unhashed")
	}

	// Duplicate email and student id come back as field errors.
	_, err = svc.CreateStudent(ctx, admin, StudentInput{
		StudentID: "2024-0001",
		Name:      "Other",
		Email:     "juan@example.com",
		Password:  "password123",
		Phone:     "09170000000",
		Program:   "BSIT",
		Status:    database.StatusActive,
	})
	if !errors.As(err, &verr) {
		t.Fatalf("expected validation error got %v", err)
	}
	if _, ok := verr.Fields["email"]; !ok {
		t.Fatalf("expected email taken error, got %v", verr.Fields)
	}
	if _, ok := verr.Fields["studentId"]; !ok {
		t.Fatalf("expected studentId taken error, got %v", verr.Fields)
	}
}

func TestCreateStudentRequiresAdmin(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	svc := NewRegistryService(db)

	_, err := svc.CreateStudent(ctx, Caller{ID: 2, Role: database.RoleStudent}, StudentInput{})
	var authz *AuthorizationError
	if !errors.As(err, &authz) {
		t.Fatalf("expected authorization error got %v", err)
	}
}

func TestDeleteProgramBlockedByEnrollment(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	svc := NewRegistryService(db)
	admin := Caller{ID: 1, Role: database.RoleAdmin}

	program, err := svc.CreateProgram(ctx, admin, ProgramInput{
		ProgramName: "BSIT",
		Description: "Information Technology",
	})
	if err != nil {
		t.Fatalf("create program: %v", err)
	}
	if program.Status != database.StatusActive {
		t.Fatalf("expected new program Active, got %q", program.Status)
	}

	seedStudent(t, db, "2024-1001", "enrolled@example.com")

	err = svc.DeleteProgram(ctx, admin, program.ID)
	var conflict *ConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("expected conflict error got %v", err)
	}

	if err := db.Where("email = ?", "enrolled@example.com").Delete(&database.User{}).Error; err != nil {
		t.Fatalf("remove student: %v", err)
	}
	if err := svc.DeleteProgram(ctx, admin, program.ID); err != nil {
		t.Fatalf("delete after unenrollment: %v", err)
	}
}

func TestDeletePartnerBlockedByApplications(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	svc := NewRegistryService(db)
	admin := Caller{ID: 1, Role: database.RoleAdmin}

	partner, err := svc.CreatePartner(ctx, admin, PartnerInput{
		PartnerName:   "Acme Corp",
		Address:       "Makati",
		Phone:         "028812345",
		Email:         "hr@acme.example.com",
		ContactPerson: "Ana Reyes",
		Status:        database.StatusActive,
	})
	if err != nil {
		t.Fatalf("create partner: %v", err)
	}

	student := seedStudent(t, db, "2024-1002", "placed@example.com")
	app := database.Application{
		UserID:    student.ID,
		PartnerID: &partner.ID,
		Status:    database.ApplicationApproved,
	}
	if err := db.Create(&app).Error; err != nil {
		t.Fatalf("seed application: %v", err)
	}

	err = svc.DeletePartner(ctx, admin, partner.ID)
	var conflict *ConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("expected conflict error got %v", err)
	}

	if err := db.Delete(&database.Application{}, app.ID).Error; err != nil {
		t.Fatalf("remove application: %v", err)
	}
	if err := svc.DeletePartner(ctx, admin, partner.ID); err != nil {
		t.Fatalf("delete after application removed: %v", err)
	}
}

func TestUpdateStudentKeepsPasswordWhenEmpty(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	svc := NewRegistryService(db)
	admin := Caller{ID: 1, Role: database.RoleAdmin}

	program := database.Program{ProgramName: "BSIT", Status: database.StatusActive}
	if err := db.Create(&program).Error; err != nil {
		t.Fatalf("seed program: %v", err)
	}
	created, err := svc.CreateStudent(ctx, admin, StudentInput{
		StudentID: "2024-0002",
		Name:      "Maria",
		Email:     "maria@example.com",
		Password:  "password123",
		Phone:     "09170001111",
		Program:   "BSIT",
		Status:    database.StatusActive,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	updated, err := svc.UpdateStudent(ctx, admin, created.ID, StudentInput{
		StudentID: "2024-0002",
		Name:      "Maria Clara",
		Email:     "maria@example.com",
		Phone:     "09170001111",
		Program:   "BSIT",
		Status:    database.StatusInactive,
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Name != "Maria Clara" || updated.Status != database.StatusInactive {
		t.Fatalf("update not applied: %+v", updated)
	}
	if updated.PasswordHash != created.PasswordHash {
		t.Fatal("password changed although none was provided")
	}
}
