package ojt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"ojtportal/internal/database"
)

// ApplicationService owns the application lifecycle:
// Pending -> {Approved, Rejected}, with document storage coupled to the row
// so a stored key never outlives (or predates) its object.
type ApplicationService struct {
	db    *gorm.DB
	store ObjectStore
	now   func() time.Time
}

// NewApplicationService constructs the service.
func NewApplicationService(db *gorm.DB, store ObjectStore) *ApplicationService {
	return &ApplicationService{db: db, store: store, now: time.Now}
}

// SubmitInput is a student's application submission.
type SubmitInput struct {
	Resume           *FileUpload
	Letter           *FileUpload
	OtherDocuments   []FileUpload
	StartDate        time.Time
	EndDate          time.Time
	PreferredCompany string
}

// Submit creates a Pending application for the caller. Resume and letter
// are mandatory; the date range must be forward. Nothing is persisted when
// validation fails, and uploaded objects are released again if the row
// cannot be written.
func (s *ApplicationService) Submit(ctx context.Context, caller Caller, in SubmitInput) (*database.Application, error) {
	verr := NewValidationError()
	if in.Resume == nil {
		verr.Add("resume", "The resume file is required.")
	}
	if in.Letter == nil {
		verr.Add("applicationLetter", "The application letter file is required.")
	}
	validateDateRange(verr, in.StartDate, in.EndDate)
	if err := verr.Err(); err != nil {
		return nil, err
	}

	var uploaded []string
	cleanup := func() {
		for _, key := range uploaded {
			_ = s.store.DeleteObject(ctx, key)
		}
	}

	resumeKey, err := s.storeUpload(ctx, resumeFolder, *in.Resume)
	if err != nil {
		return nil, err
	}
	uploaded = append(uploaded, resumeKey)

	letterKey, err := s.storeUpload(ctx, letterFolder, *in.Letter)
	if err != nil {
		cleanup()
		return nil, err
	}
	uploaded = append(uploaded, letterKey)

	otherKeys := make([]string, 0, len(in.OtherDocuments))
	for _, doc := range in.OtherDocuments {
		key, err := s.storeUpload(ctx, otherFolder, doc)
		if err != nil {
			cleanup()
			return nil, err
		}
		uploaded = append(uploaded, key)
		otherKeys = append(otherKeys, key)
	}

	app := database.Application{
		UserID:           caller.ID,
		Status:           database.ApplicationPending,
		ResumePath:       resumeKey,
		LetterPath:       letterKey,
		PreferredCompany: in.PreferredCompany,
		StartDate:        timePtr(in.StartDate),
		EndDate:          timePtr(in.EndDate),
		ApplicationDate:  s.now(),
	}
	if len(otherKeys) > 0 {
		raw, err := json.Marshal(otherKeys)
		if err != nil {
			cleanup()
			return nil, fmt.Errorf("encode other documents: %w", err)
		}
		app.OtherDocuments = datatypes.JSON(raw)
	}

	if err := s.db.WithContext(ctx).Create(&app).Error; err != nil {
		cleanup()
		return nil, fmt.Errorf("create application: %w", err)
	}
	return &app, nil
}

// AdminCreateInput records an application on a student's behalf. Documents
// are optional here; walk-in submissions often arrive on paper.
type AdminCreateInput struct {
	StudentID       string
	PartnerID       *uint
	ApplicationDate time.Time
	Resume          *FileUpload
	Letter          *FileUpload
}

// AdminCreate creates a Pending application for the student identified by
// the registrar-issued student id.
func (s *ApplicationService) AdminCreate(ctx context.Context, caller Caller, in AdminCreateInput) (*database.Application, error) {
	if !caller.IsAdmin() {
		return nil, &AuthorizationError{Message: "admin role required"}
	}

	verr := NewValidationError()
	if in.StudentID == "" {
		verr.Add("studentId", "The student id field is required.")
	}
	if in.ApplicationDate.IsZero() {
		verr.Add("applicationDate", "The application date field is required.")
	}
	if err := verr.Err(); err != nil {
		return nil, err
	}

	var student database.User
	err := s.db.WithContext(ctx).
		Where("student_id = ? AND role = ?", in.StudentID, database.RoleStudent).
		First(&student).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, FieldError("studentId", "The selected student id is invalid.")
	} else if err != nil {
		return nil, fmt.Errorf("find student: %w", err)
	}

	if in.PartnerID != nil {
		if err := s.partnerExists(ctx, *in.PartnerID); err != nil {
			return nil, err
		}
	}

	var uploaded []string
	cleanup := func() {
		for _, key := range uploaded {
			_ = s.store.DeleteObject(ctx, key)
		}
	}

	app := database.Application{
		UserID:          student.ID,
		PartnerID:       in.PartnerID,
		Status:          database.ApplicationPending,
		ApplicationDate: in.ApplicationDate,
	}
	if in.Resume != nil {
		key, err := s.storeUpload(ctx, resumeFolder, *in.Resume)
		if err != nil {
			return nil, err
		}
		uploaded = append(uploaded, key)
		app.ResumePath = key
	}
	if in.Letter != nil {
		key, err := s.storeUpload(ctx, letterFolder, *in.Letter)
		if err != nil {
			cleanup()
			return nil, err
		}
		uploaded = append(uploaded, key)
		app.LetterPath = key
	}

	if err := s.db.WithContext(ctx).Create(&app).Error; err != nil {
		cleanup()
		return nil, fmt.Errorf("create application: %w", err)
	}
	app.User = student
	return &app, nil
}

// UpdateInput replaces the mutable fields of an application. A non-nil file
// replaces the stored document of that kind; OtherDocuments, when non-nil,
// replaces the whole set.
type UpdateInput struct {
	Resume           *FileUpload
	Letter           *FileUpload
	OtherDocuments   []FileUpload
	StartDate        time.Time
	EndDate          time.Time
	PreferredCompany string
}

// Update lets the owning student (or an admin) revise a submission.
// Replaced documents are uploaded before the row is updated; the old
// objects are released only after the row commit, so a failure at any point
// leaves no dangling reference.
func (s *ApplicationService) Update(ctx context.Context, caller Caller, applicationID uint, in UpdateInput) (*database.Application, error) {
	app, err := s.get(ctx, applicationID)
	if err != nil {
		return nil, err
	}
	if !caller.Owns(app.UserID) {
		return nil, &AuthorizationError{Message: "not the application owner"}
	}

	verr := NewValidationError()
	validateDateRange(verr, in.StartDate, in.EndDate)
	if err := verr.Err(); err != nil {
		return nil, err
	}

	updates := map[string]any{
		"preferred_company": in.PreferredCompany,
		"start_date":        in.StartDate,
		"end_date":          in.EndDate,
	}

	var uploaded, obsolete []string
	cleanup := func() {
		for _, key := range uploaded {
			_ = s.store.DeleteObject(ctx, key)
		}
	}

	if in.Resume != nil {
		key, err := s.storeUpload(ctx, resumeFolder, *in.Resume)
		if err != nil {
			return nil, err
		}
		uploaded = append(uploaded, key)
		updates["resume_path"] = key
		if app.ResumePath != "" {
			obsolete = append(obsolete, app.ResumePath)
		}
	}
	if in.Letter != nil {
		key, err := s.storeUpload(ctx, letterFolder, *in.Letter)
		if err != nil {
			cleanup()
			return nil, err
		}
		uploaded = append(uploaded, key)
		updates["letter_path"] = key
		if app.LetterPath != "" {
			obsolete = append(obsolete, app.LetterPath)
		}
	}
	if in.OtherDocuments != nil {
		newKeys := make([]string, 0, len(in.OtherDocuments))
		for _, doc := range in.OtherDocuments {
			key, err := s.storeUpload(ctx, otherFolder, doc)
			if err != nil {
				cleanup()
				return nil, err
			}
			uploaded = append(uploaded, key)
			newKeys = append(newKeys, key)
		}
		raw, err := json.Marshal(newKeys)
		if err != nil {
			cleanup()
			return nil, fmt.Errorf("encode other documents: %w", err)
		}
		updates["other_documents"] = datatypes.JSON(raw)
		obsolete = append(obsolete, otherDocumentKeys(app)...)
	}

	if err := s.db.WithContext(ctx).Model(app).Updates(updates).Error; err != nil {
		cleanup()
		return nil, fmt.Errorf("update application: %w", err)
	}

	for _, key := range obsolete {
		_ = s.store.DeleteObject(ctx, key)
	}

	if err := s.db.WithContext(ctx).Preload("Partner").First(app, app.ID).Error; err != nil {
		return nil, fmt.Errorf("reload application: %w", err)
	}
	return app, nil
}

// ReviewInput is an admin's decision on an application.
type ReviewInput struct {
	Status        string
	PartnerID     *uint
	StartDate     *time.Time
	EndDate       *time.Time
	RequiredHours *int
	Remarks       string
}

// Review moves an application to a reviewed state. Approval demands a
// positive required-hours target; any other status forces it back to zero.
func (s *ApplicationService) Review(ctx context.Context, caller Caller, applicationID uint, in ReviewInput) (*database.Application, error) {
	if !caller.IsAdmin() {
		return nil, &AuthorizationError{Message: "admin role required"}
	}

	app, err := s.get(ctx, applicationID)
	if err != nil {
		return nil, err
	}

	verr := NewValidationError()
	switch in.Status {
	case database.ApplicationPending, database.ApplicationApproved, database.ApplicationRejected:
	default:
		verr.Add("status", "The selected status is invalid.")
	}
	if in.StartDate != nil && in.EndDate != nil && in.EndDate.Before(*in.StartDate) {
		verr.Add("endDate", "The end date must be a date after or equal to start date.")
	}
	if in.Status == database.ApplicationApproved && (in.RequiredHours == nil || *in.RequiredHours < 1) {
		verr.Add("requiredHours", "Required Hours is required for Approved status")
	}
	if err := verr.Err(); err != nil {
		return nil, err
	}

	if in.PartnerID != nil {
		if err := s.partnerExists(ctx, *in.PartnerID); err != nil {
			return nil, err
		}
	}

	requiredHours := 0
	if in.Status == database.ApplicationApproved {
		requiredHours = *in.RequiredHours
	}

	updates := map[string]any{
		"status":         in.Status,
		"partner_id":     in.PartnerID,
		"start_date":     in.StartDate,
		"end_date":       in.EndDate,
		"required_hours": requiredHours,
		"remarks":        in.Remarks,
	}
	if err := s.db.WithContext(ctx).Model(app).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("review application: %w", err)
	}

	if err := s.db.WithContext(ctx).Preload("User").Preload("Partner").First(app, app.ID).Error; err != nil {
		return nil, fmt.Errorf("reload application: %w", err)
	}
	return app, nil
}

// Delete removes an application and releases every referenced document.
// Object deletion is best-effort; a missing object never blocks the delete.
func (s *ApplicationService) Delete(ctx context.Context, caller Caller, applicationID uint) error {
	app, err := s.get(ctx, applicationID)
	if err != nil {
		return err
	}
	if !caller.Owns(app.UserID) {
		return &AuthorizationError{Message: "not the application owner"}
	}

	for _, key := range app.DocumentKeys() {
		_ = s.store.DeleteObject(ctx, key)
	}

	if err := s.db.WithContext(ctx).Delete(&database.Application{}, app.ID).Error; err != nil {
		return fmt.Errorf("delete application: %w", err)
	}
	return nil
}

// Current returns the user's most recent application with its partner, or
// nil when the user never applied. Ties on creation time go to the highest
// id.
func (s *ApplicationService) Current(ctx context.Context, userID uint) (*database.Application, error) {
	var app database.Application
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC, id DESC").
		Preload("Partner").
		First(&app).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query current application: %w", err)
	}
	return &app, nil
}

// List returns all applications, newest submissions first, with owner and
// partner preloaded.
func (s *ApplicationService) List(ctx context.Context, caller Caller) ([]database.Application, error) {
	if !caller.IsAdmin() {
		return nil, &AuthorizationError{Message: "admin role required"}
	}
	var apps []database.Application
	if err := s.db.WithContext(ctx).
		Preload("User").
		Preload("Partner").
		Order("application_date DESC, id DESC").
		Find(&apps).Error; err != nil {
		return nil, fmt.Errorf("list applications: %w", err)
	}
	return apps, nil
}

// DocumentKind selects which stored document of an application to open.
type DocumentKind string

const (
	DocumentResume DocumentKind = "resume"
	DocumentLetter DocumentKind = "letter"
)

// OpenDocument streams a stored document. NotFoundError covers a missing
// application, an absent reference, and a reference whose object is gone.
func (s *ApplicationService) OpenDocument(ctx context.Context, caller Caller, applicationID uint, kind DocumentKind) (io.ReadCloser, error) {
	app, err := s.get(ctx, applicationID)
	if err != nil {
		return nil, err
	}
	if !caller.Owns(app.UserID) {
		return nil, &AuthorizationError{Message: "not the application owner"}
	}

	ref, err := documentRef(app, kind)
	if err != nil {
		return nil, err
	}

	rc, err := s.store.GetObject(ctx, ref.Key())
	if err != nil {
		return nil, &NotFoundError{Resource: string(kind)}
	}
	return rc, nil
}

// DocumentLink returns a presigned URL for one of the caller's documents.
// The object is stat'ed, never fetched; a dangling reference reports the
// same NotFoundError a missing reference does.
func (s *ApplicationService) DocumentLink(ctx context.Context, caller Caller, applicationID uint, kind DocumentKind, ttl time.Duration) (string, error) {
	app, err := s.get(ctx, applicationID)
	if err != nil {
		return "", err
	}
	if !caller.Owns(app.UserID) {
		return "", &AuthorizationError{Message: "not the application owner"}
	}

	ref, err := documentRef(app, kind)
	if err != nil {
		return "", err
	}

	exists, err := s.store.ObjectExists(ctx, ref.Key())
	if err != nil {
		return "", &StorageIOError{Op: "stat", Err: err}
	}
	if !exists {
		return "", &NotFoundError{Resource: string(kind)}
	}

	url, err := s.store.GeneratePresignedURL(ctx, ref.Key(), ttl)
	if err != nil {
		return "", &StorageIOError{Op: "presign", Err: err}
	}
	return url, nil
}

func documentRef(app *database.Application, kind DocumentKind) (DocumentRef, error) {
	var ref DocumentRef
	switch kind {
	case DocumentResume:
		ref = DocumentRef(app.ResumePath)
	case DocumentLetter:
		ref = DocumentRef(app.LetterPath)
	default:
		return "", &NotFoundError{Resource: "document"}
	}
	if !ref.Present() {
		return "", &NotFoundError{Resource: string(kind)}
	}
	return ref, nil
}

func (s *ApplicationService) get(ctx context.Context, id uint) (*database.Application, error) {
	var app database.Application
	err := s.db.WithContext(ctx).First(&app, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, &NotFoundError{Resource: "application"}
	}
	if err != nil {
		return nil, fmt.Errorf("query application: %w", err)
	}
	return &app, nil
}

func (s *ApplicationService) partnerExists(ctx context.Context, partnerID uint) error {
	var count int64
	if err := s.db.WithContext(ctx).
		Model(&database.Partner{}).
		Where("id = ?", partnerID).
		Count(&count).Error; err != nil {
		return fmt.Errorf("check partner: %w", err)
	}
	if count == 0 {
		return FieldError("partnerId", "The selected partner id is invalid.")
	}
	return nil
}

func (s *ApplicationService) storeUpload(ctx context.Context, folder string, f FileUpload) (string, error) {
	key := objectKey(folder, f.Filename)
	if err := s.store.UploadFile(ctx, key, f.Reader, f.Size, uploadContentType(f)); err != nil {
		return "", &StorageIOError{Op: "upload", Err: err}
	}
	return key, nil
}

func validateDateRange(verr *ValidationError, start, end time.Time) {
	if start.IsZero() {
		verr.Add("startDate", "The start date field is required.")
	}
	if end.IsZero() {
		verr.Add("endDate", "The end date field is required.")
	}
	if !start.IsZero() && !end.IsZero() && !end.After(start) {
		verr.Add("endDate", "The end date must be a date after start date.")
	}
}

func timePtr(t time.Time) *time.Time { return &t }

func otherDocumentKeys(app *database.Application) []string {
	if len(app.OtherDocuments) == 0 {
		return nil
	}
	var keys []string
	if err := json.Unmarshal(app.OtherDocuments, &keys); err != nil {
		return nil
	}
	return keys
}
