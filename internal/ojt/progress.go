package ojt

import (
	"context"
	"fmt"
	"math"
	"time"

	"gorm.io/gorm"

	"ojtportal/internal/database"
)

// DefaultRequiredHours is the portal-wide OJT hour target applied when an
// approved application carries no explicit requirement.
const DefaultRequiredHours = 500

// ProgressService derives completion views from the append-only progress
// log and accepts new entries. It never mutates applications.
type ProgressService struct {
	db           *gorm.DB
	applications *ApplicationService
}

// NewProgressService constructs the service.
func NewProgressService(db *gorm.DB, applications *ApplicationService) *ProgressService {
	return &ProgressService{db: db, applications: applications}
}

// Completion is the derived hours summary for an approved placement.
type Completion struct {
	TotalHours     int     `json:"totalHours"`
	CompletedHours float64 `json:"completedHours"`
	Percentage     float64 `json:"percentage"`
}

// ComputeCompletion sums the user's rendered hours against the required
// target of the current application. Returns nil (no data, not an error)
// when the user has no current application or it is not Approved. The
// result depends only on stored rows, so repeated calls agree.
func (s *ProgressService) ComputeCompletion(ctx context.Context, userID uint) (*Completion, error) {
	app, err := s.applications.Current(ctx, userID)
	if err != nil {
		return nil, err
	}
	if app == nil || app.Status != database.ApplicationApproved {
		return nil, nil
	}

	totalHours := app.RequiredHours
	if totalHours < 1 {
		totalHours = DefaultRequiredHours
	}

	var completed float64
	err = s.db.WithContext(ctx).
		Model(&database.Progress{}).
		Where("user_id = ?", userID).
		Select("COALESCE(SUM(hours_rendered), 0)").
		Scan(&completed).Error
	if err != nil {
		return nil, fmt.Errorf("sum progress hours: %w", err)
	}

	return &Completion{
		TotalHours:     totalHours,
		CompletedHours: completed,
		Percentage:     math.Round(completed/float64(totalHours)*1000) / 10,
	}, nil
}

// RecentProgress returns the newest entries by work date, truncated to
// limit (default 5). Each call recomputes from the store.
func (s *ProgressService) RecentProgress(ctx context.Context, userID uint, limit int) ([]database.Progress, error) {
	if limit <= 0 {
		limit = 5
	}
	var entries []database.Progress
	if err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("date DESC, id DESC").
		Limit(limit).
		Find(&entries).Error; err != nil {
		return nil, fmt.Errorf("list progress: %w", err)
	}
	return entries, nil
}

// LogInput is one day's worth of rendered hours.
type LogInput struct {
	UserID         uint
	Date           time.Time
	HoursRendered  float64
	TasksCompleted string
	Remarks        string
}

// Log appends a progress entry. Students log only for themselves; admins
// may log for any student. The target must hold an Approved current
// application, otherwise there is nothing to render hours against.
func (s *ProgressService) Log(ctx context.Context, caller Caller, in LogInput) (*database.Progress, error) {
	target := in.UserID
	if !caller.IsAdmin() {
		if target != 0 && target != caller.ID {
			return nil, &AuthorizationError{Message: "students may only log their own progress"}
		}
		target = caller.ID
	}
	if target == 0 {
		return nil, FieldError("userId", "The user id field is required.")
	}

	verr := NewValidationError()
	if in.Date.IsZero() {
		verr.Add("date", "The date field is required.")
	}
	if in.HoursRendered < 0 {
		verr.Add("hoursRendered", "The hours rendered must be at least 0.")
	}
	if err := verr.Err(); err != nil {
		return nil, err
	}

	app, err := s.applications.Current(ctx, target)
	if err != nil {
		return nil, err
	}
	if app == nil || app.Status != database.ApplicationApproved {
		return nil, &ConflictError{Message: "no approved application to log progress against"}
	}

	entry := database.Progress{
		UserID:         target,
		Date:           in.Date,
		HoursRendered:  in.HoursRendered,
		TasksCompleted: in.TasksCompleted,
		Remarks:        in.Remarks,
	}
	if err := s.db.WithContext(ctx).Create(&entry).Error; err != nil {
		return nil, fmt.Errorf("create progress entry: %w", err)
	}
	return &entry, nil
}

// RecentEvaluations returns the student's newest supervisor evaluations.
func (s *ProgressService) RecentEvaluations(ctx context.Context, studentID uint, limit int) ([]database.Evaluation, error) {
	if limit <= 0 {
		limit = 3
	}
	var evals []database.Evaluation
	if err := s.db.WithContext(ctx).
		Where("student_id = ?", studentID).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Preload("Supervisor").
		Find(&evals).Error; err != nil {
		return nil, fmt.Errorf("list evaluations: %w", err)
	}
	return evals, nil
}
