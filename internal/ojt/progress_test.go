package ojt

import (
	"context"
	"errors"
	"testing"
	"time"

	"gorm.io/gorm"

	"ojtportal/internal/database"
)

func seedApprovedApplication(t *testing.T, db *gorm.DB, userID uint, requiredHours int) database.Application {
	t.Helper()
	app := database.Application{
		UserID:          userID,
		Status:          database.ApplicationApproved,
		RequiredHours:   requiredHours,
		ApplicationDate: dateAt(2024, time.February, 1),
	}
	if err := db.Create(&app).Error; err != nil {
		t.Fatalf("seed application: %v", err)
	}
	return app
}

func TestComputeCompletionSumsHours(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	apps := NewApplicationService(db, newFakeStore())
	svc := NewProgressService(db, apps)

	student := seedStudent(t, db, "2022-0001", "p1@example.com")
	seedApprovedApplication(t, db, student.ID, 500)

	caller := Caller{ID: student.ID, Role: database.RoleStudent}
	for _, hours := range []float64{10, 15} {
		_, err := svc.Log(ctx, caller, LogInput{
			Date:          dateAt(2024, time.March, 4),
			HoursRendered: hours,
		})
		if err != nil {
			t.Fatalf("log: %v", err)
		}
	}

	completion, err := svc.ComputeCompletion(ctx, student.ID)
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	if completion == nil {
		t.Fatal("expected completion data")
	}
	if completion.CompletedHours != 25 {
		t.Fatalf("expected 25 completed hours, got %v", completion.CompletedHours)
	}
	if completion.Percentage != 5.0 {
		t.Fatalf("expected 5.0%%, got %v", completion.Percentage)
	}
	if completion.TotalHours != 500 {
		t.Fatalf("expected total 500, got %d", completion.TotalHours)
	}

	// Repeated calls agree with each other.
	again, err := svc.ComputeCompletion(ctx, student.ID)
	if err != nil {
		t.Fatalf("compute again: %v", err)
	}
	if *again != *completion {
		t.Fatalf("completion changed between calls: %+v vs %+v", completion, again)
	}
}

func TestComputeCompletionNilWithoutApprovedApplication(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	apps := NewApplicationService(db, newFakeStore())
	svc := NewProgressService(db, apps)

	student := seedStudent(t, db, "2022-0002", "p2@example.com")

	completion, err := svc.ComputeCompletion(ctx, student.ID)
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	if completion != nil {
		t.Fatalf("expected nil without application, got %+v", completion)
	}

	pending := database.Application{
		UserID:          student.ID,
		Status:          database.ApplicationPending,
		ApplicationDate: dateAt(2024, time.February, 1),
	}
	if err := db.Create(&pending).Error; err != nil {
		t.Fatalf("seed pending: %v", err)
	}

	completion, err = svc.ComputeCompletion(ctx, student.ID)
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	if completion != nil {
		t.Fatalf("expected nil for pending application, got %+v", completion)
	}
}

func TestComputeCompletionDefaultsRequiredHours(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	apps := NewApplicationService(db, newFakeStore())
	svc := NewProgressService(db, apps)

	student := seedStudent(t, db, "2022-0003", "p3@example.com")
	seedApprovedApplication(t, db, student.ID, 0)

	completion, err := svc.ComputeCompletion(ctx, student.ID)
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	if completion == nil || completion.TotalHours != DefaultRequiredHours {
		t.Fatalf("expected default total %d, got %+v", DefaultRequiredHours, completion)
	}
}

func TestLogRequiresApprovedApplication(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	apps := NewApplicationService(db, newFakeStore())
	svc := NewProgressService(db, apps)

	student := seedStudent(t, db, "2022-0004", "p4@example.com")

	_, err := svc.Log(ctx, Caller{ID: student.ID, Role: database.RoleStudent}, LogInput{
		Date:          dateAt(2024, time.March, 4),
		HoursRendered: 8,
	})
	var conflict *ConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("expected conflict error got %v", err)
	}
}

func TestStudentsCannotLogForOthers(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	apps := NewApplicationService(db, newFakeStore())
	svc := NewProgressService(db, apps)

	student := seedStudent(t, db, "2022-0005", "p5@example.com")
	victim := seedStudent(t, db, "2022-0006", "p6@example.com")
	seedApprovedApplication(t, db, victim.ID, 500)

	_, err := svc.Log(ctx, Caller{ID: student.ID, Role: database.RoleStudent}, LogInput{
		UserID:        victim.ID,
		Date:          dateAt(2024, time.March, 4),
		HoursRendered: 8,
	})
	var authz *AuthorizationError
	if !errors.As(err, &authz) {
		t.Fatalf("expected authorization error got %v", err)
	}

	// Admins may log on a student's behalf.
	entry, err := svc.Log(ctx, Caller{ID: 1, Role: database.RoleAdmin}, LogInput{
		UserID:        victim.ID,
		Date:          dateAt(2024, time.March, 4),
		HoursRendered: 8,
	})
	if err != nil {
		t.Fatalf("admin log: %v", err)
	}
	if entry.UserID != victim.ID {
		t.Fatalf("expected entry for %d, got %d", victim.ID, entry.UserID)
	}
}

func TestRecentProgressOrdersByDate(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	apps := NewApplicationService(db, newFakeStore())
	svc := NewProgressService(db, apps)

	student := seedStudent(t, db, "2022-0007", "p7@example.com")
	for day := 1; day <= 7; day++ {
		entry := database.Progress{
			UserID:        student.ID,
			Date:          dateAt(2024, time.March, day),
			HoursRendered: float64(day),
		}
		if err := db.Create(&entry).Error; err != nil {
			t.Fatalf("seed entry: %v", err)
		}
	}

	entries, err := svc.RecentProgress(ctx, student.ID, 0)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(entries) != 5 {
		t.Fatalf("expected default limit 5, got %d", len(entries))
	}
	if !entries[0].Date.After(entries[1].Date) {
		t.Fatalf("expected newest first, got %v then %v", entries[0].Date, entries[1].Date)
	}
}
