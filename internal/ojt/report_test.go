package ojt

import (
	"context"
	"testing"
	"time"

	"ojtportal/internal/database"
)

func TestMonthlySeriesBucketsBySubmissionMonth(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	svc := NewReportService(db)
	svc.now = func() time.Time { return dateAt(2024, time.March, 15) }

	student := seedStudent(t, db, "2023-0001", "r1@example.com")
	app := database.Application{
		UserID:          student.ID,
		Status:          database.ApplicationPending,
		ApplicationDate: dateAt(2024, time.February, 10),
	}
	if err := db.Create(&app).Error; err != nil {
		t.Fatalf("seed application: %v", err)
	}

	series, err := svc.MonthlySeries(ctx, 3)
	if err != nil {
		t.Fatalf("series: %v", err)
	}
	if len(series) != 3 {
		t.Fatalf("expected 3 buckets, got %d", len(series))
	}

	counts := []int64{series[0].Count, series[1].Count, series[2].Count}
	want := []int64{0, 1, 0}
	for i := range want {
		if counts[i] != want[i] {
			t.Fatalf("expected %v got %v", want, counts)
		}
	}
	if series[0].Month.Month() != time.January || series[2].Month.Month() != time.March {
		t.Fatalf("expected Jan..Mar oldest first, got %v..%v", series[0].Month, series[2].Month)
	}
}

func TestMonthlySeriesEmptyStore(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	svc := NewReportService(db)

	series, err := svc.MonthlySeries(ctx, 0)
	if err != nil {
		t.Fatalf("series: %v", err)
	}
	if len(series) != 6 {
		t.Fatalf("expected default 6 buckets, got %d", len(series))
	}
	for _, bucket := range series {
		if bucket.Count != 0 {
			t.Fatalf("expected zero counts, got %v", series)
		}
	}
}

func TestStudentStatsPartitionsByStatus(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	svc := NewReportService(db)

	statuses := []string{
		database.UserStatusActive,
		database.UserStatusActive,
		database.UserStatusOnOJT,
		database.UserStatusCompleted,
	}
	for i, status := range statuses {
		sid := "2023-100" + string(rune('0'+i))
		user := database.User{
			Name:      "Student",
			Email:     sid + "@example.com",
			Role:      database.RoleStudent,
			StudentID: &sid,
			Status:    status,
		}
		if err := db.Create(&user).Error; err != nil {
			t.Fatalf("seed: %v", err)
		}
	}
	admin := database.User{
		Name:   "Admin",
		Email:  "admin@example.com",
		Role:   database.RoleAdmin,
		Status: database.UserStatusActive,
	}
	if err := db.Create(&admin).Error; err != nil {
		t.Fatalf("seed admin: %v", err)
	}

	stats, err := svc.StudentStats(ctx)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.Total != 4 || stats.Active != 2 || stats.Inactive != 2 || stats.OnOJT != 1 || stats.Completed != 1 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
}

func TestApplicationStatsEmptyStore(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	svc := NewReportService(db)

	stats, err := svc.ApplicationStats(ctx)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.Total != 0 || stats.Pending != 0 || stats.Approved != 0 || stats.Rejected != 0 {
		t.Fatalf("expected zero stats, got %+v", stats)
	}
}

func TestProgramStatsCountsEnrollment(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	svc := NewReportService(db)

	program := database.Program{ProgramName: "BSIT", Status: database.StatusActive}
	if err := db.Create(&program).Error; err != nil {
		t.Fatalf("seed program: %v", err)
	}
	seedStudent(t, db, "2023-2001", "bsit1@example.com")
	seedStudent(t, db, "2023-2002", "bsit2@example.com")

	stats, err := svc.ProgramStats(ctx, true)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if len(stats) != 1 {
		t.Fatalf("expected 1 program, got %d", len(stats))
	}
	if stats[0].TotalStudents != 2 || stats[0].ActiveStudents != 2 {
		t.Fatalf("unexpected enrollment counts: %+v", stats[0])
	}
}
