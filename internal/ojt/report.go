package ojt

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"ojtportal/internal/database"
)

// ReportService computes read-only aggregates for the admin dashboard and
// the reporting surface. Every query tolerates an empty store and returns
// zeros or empty slices.
type ReportService struct {
	db  *gorm.DB
	now func() time.Time
}

// NewReportService constructs the service.
func NewReportService(db *gorm.DB) *ReportService {
	return &ReportService{db: db, now: time.Now}
}

// StudentStats partitions student accounts by status.
type StudentStats struct {
	Total     int64 `json:"total"`
	Active    int64 `json:"active"`
	Inactive  int64 `json:"inactive"`
	OnOJT     int64 `json:"onOJT"`
	Completed int64 `json:"completed"`
}

// StudentStats counts students per account status.
func (s *ReportService) StudentStats(ctx context.Context) (StudentStats, error) {
	var stats StudentStats
	students := func() *gorm.DB {
		return s.db.WithContext(ctx).Model(&database.User{}).Where("role = ?", database.RoleStudent)
	}
	if err := students().Count(&stats.Total).Error; err != nil {
		return stats, fmt.Errorf("count students: %w", err)
	}
	if err := students().Where("status = ?", database.UserStatusActive).Count(&stats.Active).Error; err != nil {
		return stats, fmt.Errorf("count active students: %w", err)
	}
	if err := students().Where("status = ?", database.UserStatusOnOJT).Count(&stats.OnOJT).Error; err != nil {
		return stats, fmt.Errorf("count on-ojt students: %w", err)
	}
	if err := students().Where("status = ?", database.UserStatusCompleted).Count(&stats.Completed).Error; err != nil {
		return stats, fmt.Errorf("count completed students: %w", err)
	}
	stats.Inactive = stats.Total - stats.Active
	return stats, nil
}

// ApplicationStats partitions applications by review status.
type ApplicationStats struct {
	Total    int64 `json:"total"`
	Pending  int64 `json:"pending"`
	Approved int64 `json:"approved"`
	Rejected int64 `json:"rejected"`
}

// ApplicationStats counts applications per lifecycle state.
func (s *ReportService) ApplicationStats(ctx context.Context) (ApplicationStats, error) {
	var stats ApplicationStats
	apps := func() *gorm.DB {
		return s.db.WithContext(ctx).Model(&database.Application{})
	}
	if err := apps().Count(&stats.Total).Error; err != nil {
		return stats, fmt.Errorf("count applications: %w", err)
	}
	if err := apps().Where("status = ?", database.ApplicationPending).Count(&stats.Pending).Error; err != nil {
		return stats, fmt.Errorf("count pending applications: %w", err)
	}
	if err := apps().Where("status = ?", database.ApplicationApproved).Count(&stats.Approved).Error; err != nil {
		return stats, fmt.Errorf("count approved applications: %w", err)
	}
	if err := apps().Where("status = ?", database.ApplicationRejected).Count(&stats.Rejected).Error; err != nil {
		return stats, fmt.Errorf("count rejected applications: %w", err)
	}
	return stats, nil
}

// ProgramStatusStats partitions programs by status.
type ProgramStatusStats struct {
	Total    int64 `json:"total"`
	Active   int64 `json:"active"`
	Inactive int64 `json:"inactive"`
}

// ProgramStatusStats counts programs per status.
func (s *ReportService) ProgramStatusStats(ctx context.Context) (ProgramStatusStats, error) {
	var stats ProgramStatusStats
	programs := func() *gorm.DB {
		return s.db.WithContext(ctx).Model(&database.Program{})
	}
	if err := programs().Count(&stats.Total).Error; err != nil {
		return stats, fmt.Errorf("count programs: %w", err)
	}
	if err := programs().Where("status = ?", database.StatusActive).Count(&stats.Active).Error; err != nil {
		return stats, fmt.Errorf("count active programs: %w", err)
	}
	if err := programs().Where("status = ?", database.StatusInactive).Count(&stats.Inactive).Error; err != nil {
		return stats, fmt.Errorf("count inactive programs: %w", err)
	}
	return stats, nil
}

// ProgramStat is one program, optionally annotated with enrollment counts.
type ProgramStat struct {
	ID             uint   `json:"id"`
	ProgramName    string `json:"programName"`
	Description    string `json:"description,omitempty"`
	Status         string `json:"status,omitempty"`
	TotalStudents  int64  `json:"totalStudents"`
	ActiveStudents int64  `json:"activeStudents"`
}

// ProgramStats lists programs; withCounts adds per-program student totals
// joined through User.OJTProgram.
func (s *ReportService) ProgramStats(ctx context.Context, withCounts bool) ([]ProgramStat, error) {
	var programs []database.Program
	if err := s.db.WithContext(ctx).Order("program_name").Find(&programs).Error; err != nil {
		return nil, fmt.Errorf("list programs: %w", err)
	}

	stats := make([]ProgramStat, 0, len(programs))
	for _, p := range programs {
		stat := ProgramStat{
			ID:          p.ID,
			ProgramName: p.ProgramName,
			Description: p.ProgramDescription,
			Status:      p.Status,
		}
		if withCounts {
			students := func() *gorm.DB {
				return s.db.WithContext(ctx).Model(&database.User{}).
					Where("role = ? AND ojt_program = ?", database.RoleStudent, p.ProgramName)
			}
			if err := students().Count(&stat.TotalStudents).Error; err != nil {
				return nil, fmt.Errorf("count program students: %w", err)
			}
			if err := students().Where("status = ?", database.UserStatusActive).Count(&stat.ActiveStudents).Error; err != nil {
				return nil, fmt.Errorf("count active program students: %w", err)
			}
		}
		stats = append(stats, stat)
	}
	return stats, nil
}

// MonthlyCount is one calendar-month bucket of application submissions.
type MonthlyCount struct {
	Month time.Time `json:"month"`
	Count int64     `json:"count"`
}

// MonthlySeries buckets application counts by submission month for the
// trailing months window anchored at now, oldest first. A bucket spans
// [start of month, start of next month).
func (s *ReportService) MonthlySeries(ctx context.Context, months int) ([]MonthlyCount, error) {
	if months <= 0 {
		months = 6
	}

	now := s.now()
	series := make([]MonthlyCount, 0, months)
	for i := months - 1; i >= 0; i-- {
		start := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location()).AddDate(0, -i, 0)
		end := start.AddDate(0, 1, 0)

		var count int64
		if err := s.db.WithContext(ctx).
			Model(&database.Application{}).
			Where("application_date >= ? AND application_date < ?", start, end).
			Count(&count).Error; err != nil {
			return nil, fmt.Errorf("count applications for %s: %w", start.Format("2006-01"), err)
		}
		series = append(series, MonthlyCount{Month: start, Count: count})
	}
	return series, nil
}

// RecentStudents returns the newest student accounts.
func (s *ReportService) RecentStudents(ctx context.Context, limit int) ([]database.User, error) {
	if limit <= 0 {
		limit = 5
	}
	var students []database.User
	if err := s.db.WithContext(ctx).
		Where("role = ?", database.RoleStudent).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&students).Error; err != nil {
		return nil, fmt.Errorf("list recent students: %w", err)
	}
	return students, nil
}
