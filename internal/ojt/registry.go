package ojt

import (
	"context"
	"errors"
	"fmt"
	"net/mail"

	"gorm.io/gorm"

	"ojtportal/internal/auth"
	"ojtportal/internal/database"
)

// RegistryService maintains the reference data behind the application
// workflow: student accounts, academic programs, and host partners. All
// mutations are admin-gated and run one row at a time; uniqueness is backed
// by store constraints so concurrent duplicates fail instead of clobbering.
type RegistryService struct {
	db *gorm.DB
}

// NewRegistryService constructs the service.
func NewRegistryService(db *gorm.DB) *RegistryService {
	return &RegistryService{db: db}
}

// StudentInput carries the admin-editable fields of a student account.
type StudentInput struct {
	StudentID string
	Name      string
	Email     string
	Password  string
	Phone     string
	Program   string
	Status    string
}

func (s *RegistryService) validateStudent(ctx context.Context, in StudentInput, excludeID uint, passwordRequired bool) error {
	verr := NewValidationError()
	if in.StudentID == "" {
		verr.Add("studentId", "The student id field is required.")
	}
	if in.Name == "" {
		verr.Add("name", "The name field is required.")
	}
	if in.Email == "" {
		verr.Add("email", "The email field is required.")
	} else if _, err := mail.ParseAddress(in.Email); err != nil {
		verr.Add("email", "The email must be a valid email address.")
	}
	if passwordRequired && in.Password == "" {
		verr.Add("password", "The password field is required.")
	}
	if in.Password != "" && len(in.Password) < 8 {
		verr.Add("password", "The password must be at least 8 characters.")
	}
	if in.Phone == "" {
		verr.Add("phone", "The phone field is required.")
	}
	if in.Status != database.StatusActive && in.Status != database.StatusInactive {
		verr.Add("status", "The selected status is invalid.")
	}

	if in.Program == "" {
		verr.Add("program", "The program field is required.")
	} else {
		var count int64
		if err := s.db.WithContext(ctx).
			Model(&database.Program{}).
			Where("program_name = ?", in.Program).
			Count(&count).Error; err != nil {
			return fmt.Errorf("check program: %w", err)
		}
		if count == 0 {
			verr.Add("program", "The selected program is invalid.")
		}
	}

	if in.Email != "" {
		taken, err := s.columnTaken(ctx, &database.User{}, "email", in.Email, excludeID)
		if err != nil {
			return err
		}
		if taken {
			verr.Add("email", "The email has already been taken.")
		}
	}
	if in.StudentID != "" {
		taken, err := s.columnTaken(ctx, &database.User{}, "student_id", in.StudentID, excludeID)
		if err != nil {
			return err
		}
		if taken {
			verr.Add("studentId", "The student id has already been taken.")
		}
	}

	return verr.Err()
}

// CreateStudent registers a student account.
func (s *RegistryService) CreateStudent(ctx context.Context, caller Caller, in StudentInput) (*database.User, error) {
	if !caller.IsAdmin() {
		return nil, &AuthorizationError{Message: "admin role required"}
	}
	if err := s.validateStudent(ctx, in, 0, true); err != nil {
		return nil, err
	}

	hashed, err := auth.HashPassword(in.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	studentID := in.StudentID
	user := database.User{
		Name:         in.Name,
		Email:        in.Email,
		PasswordHash: hashed,
		Role:         database.RoleStudent,
		StudentID:    &studentID,
		StudentPhone: in.Phone,
		OJTProgram:   in.Program,
		Status:       in.Status,
	}
	if err := s.db.WithContext(ctx).Create(&user).Error; err != nil {
		return nil, translateWriteError(err, "student")
	}
	return &user, nil
}

// UpdateStudent revises a student account; an empty password keeps the
// current one.
func (s *RegistryService) UpdateStudent(ctx context.Context, caller Caller, id uint, in StudentInput) (*database.User, error) {
	if !caller.IsAdmin() {
		return nil, &AuthorizationError{Message: "admin role required"}
	}

	user, err := s.findStudent(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.validateStudent(ctx, in, id, false); err != nil {
		return nil, err
	}

	updates := map[string]any{
		"student_id":    in.StudentID,
		"name":          in.Name,
		"email":         in.Email,
		"student_phone": in.Phone,
		"ojt_program":   in.Program,
		"status":        in.Status,
	}
	if in.Password != "" {
		hashed, err := auth.HashPassword(in.Password)
		if err != nil {
			return nil, fmt.Errorf("hash password: %w", err)
		}
		updates["password_hash"] = hashed
	}

	if err := s.db.WithContext(ctx).Model(user).Updates(updates).Error; err != nil {
		return nil, translateWriteError(err, "student")
	}
	if err := s.db.WithContext(ctx).First(user, id).Error; err != nil {
		return nil, fmt.Errorf("reload student: %w", err)
	}
	return user, nil
}

// DeleteStudent removes a student account.
func (s *RegistryService) DeleteStudent(ctx context.Context, caller Caller, id uint) error {
	if !caller.IsAdmin() {
		return &AuthorizationError{Message: "admin role required"}
	}
	user, err := s.findStudent(ctx, id)
	if err != nil {
		return err
	}
	if err := s.db.WithContext(ctx).Delete(&database.User{}, user.ID).Error; err != nil {
		return fmt.Errorf("delete student: %w", err)
	}
	return nil
}

// ListStudents returns all student accounts, newest first.
func (s *RegistryService) ListStudents(ctx context.Context) ([]database.User, error) {
	var students []database.User
	if err := s.db.WithContext(ctx).
		Where("role = ?", database.RoleStudent).
		Order("created_at DESC, id DESC").
		Find(&students).Error; err != nil {
		return nil, fmt.Errorf("list students: %w", err)
	}
	return students, nil
}

// ProgramInput carries the admin-editable fields of a program.
type ProgramInput struct {
	ProgramName string
	Description string
	Status      string
}

func (s *RegistryService) validateProgram(ctx context.Context, in ProgramInput, excludeID uint) error {
	verr := NewValidationError()
	if in.ProgramName == "" {
		verr.Add("programName", "The program name field is required.")
	}
	if in.Description == "" {
		verr.Add("description", "The description field is required.")
	}
	if in.ProgramName != "" {
		taken, err := s.columnTaken(ctx, &database.Program{}, "program_name", in.ProgramName, excludeID)
		if err != nil {
			return err
		}
		if taken {
			verr.Add("programName", "The program name has already been taken.")
		}
	}
	return verr.Err()
}

// CreateProgram adds a program; new programs start Active.
func (s *RegistryService) CreateProgram(ctx context.Context, caller Caller, in ProgramInput) (*database.Program, error) {
	if !caller.IsAdmin() {
		return nil, &AuthorizationError{Message: "admin role required"}
	}
	if err := s.validateProgram(ctx, in, 0); err != nil {
		return nil, err
	}

	status := in.Status
	if status == "" {
		status = database.StatusActive
	}
	program := database.Program{
		ProgramName:        in.ProgramName,
		ProgramDescription: in.Description,
		Status:             status,
	}
	if err := s.db.WithContext(ctx).Create(&program).Error; err != nil {
		return nil, translateWriteError(err, "program")
	}
	return &program, nil
}

// UpdateProgram revises a program.
func (s *RegistryService) UpdateProgram(ctx context.Context, caller Caller, id uint, in ProgramInput) (*database.Program, error) {
	if !caller.IsAdmin() {
		return nil, &AuthorizationError{Message: "admin role required"}
	}

	var program database.Program
	if err := s.db.WithContext(ctx).First(&program, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &NotFoundError{Resource: "program"}
		}
		return nil, fmt.Errorf("query program: %w", err)
	}
	if err := s.validateProgram(ctx, in, id); err != nil {
		return nil, err
	}

	updates := map[string]any{
		"program_name":        in.ProgramName,
		"program_description": in.Description,
	}
	if in.Status != "" {
		updates["status"] = in.Status
	}
	if err := s.db.WithContext(ctx).Model(&program).Updates(updates).Error; err != nil {
		return nil, translateWriteError(err, "program")
	}
	return &program, nil
}

// DeleteProgram removes a program unless students still reference it
// through their enrolled program name.
func (s *RegistryService) DeleteProgram(ctx context.Context, caller Caller, id uint) error {
	if !caller.IsAdmin() {
		return &AuthorizationError{Message: "admin role required"}
	}

	var program database.Program
	if err := s.db.WithContext(ctx).First(&program, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return &NotFoundError{Resource: "program"}
		}
		return fmt.Errorf("query program: %w", err)
	}

	var enrolled int64
	if err := s.db.WithContext(ctx).
		Model(&database.User{}).
		Where("ojt_program = ?", program.ProgramName).
		Count(&enrolled).Error; err != nil {
		return fmt.Errorf("count enrolled students: %w", err)
	}
	if enrolled > 0 {
		return &ConflictError{Message: "Cannot delete program with associated students"}
	}

	if err := s.db.WithContext(ctx).Delete(&database.Program{}, program.ID).Error; err != nil {
		return fmt.Errorf("delete program: %w", err)
	}
	return nil
}

// ListPrograms returns programs, optionally only the active ones.
func (s *RegistryService) ListPrograms(ctx context.Context, activeOnly bool) ([]database.Program, error) {
	query := s.db.WithContext(ctx).Order("created_at DESC, id DESC")
	if activeOnly {
		query = query.Where("status = ?", database.StatusActive)
	}
	var programs []database.Program
	if err := query.Find(&programs).Error; err != nil {
		return nil, fmt.Errorf("list programs: %w", err)
	}
	return programs, nil
}

// PartnerInput carries the admin-editable fields of a host partner.
type PartnerInput struct {
	PartnerName   string
	Address       string
	Phone         string
	Email         string
	ContactPerson string
	Status        string
}

func (s *RegistryService) validatePartner(ctx context.Context, in PartnerInput, excludeID uint) error {
	verr := NewValidationError()
	if in.PartnerName == "" {
		verr.Add("partnerName", "The partner name field is required.")
	}
	if in.Address == "" {
		verr.Add("address", "The address field is required.")
	}
	if in.Phone == "" {
		verr.Add("phone", "The phone field is required.")
	}
	if in.Email == "" {
		verr.Add("email", "The email field is required.")
	} else if _, err := mail.ParseAddress(in.Email); err != nil {
		verr.Add("email", "The email must be a valid email address.")
	}
	if in.ContactPerson == "" {
		verr.Add("contactPerson", "The contact person field is required.")
	}
	if in.Status != database.StatusActive && in.Status != database.StatusInactive {
		verr.Add("status", "The selected status is invalid.")
	}

	if in.PartnerName != "" {
		taken, err := s.columnTaken(ctx, &database.Partner{}, "partner_name", in.PartnerName, excludeID)
		if err != nil {
			return err
		}
		if taken {
			verr.Add("partnerName", "The partner name has already been taken.")
		}
	}
	if in.Email != "" {
		taken, err := s.columnTaken(ctx, &database.Partner{}, "email", in.Email, excludeID)
		if err != nil {
			return err
		}
		if taken {
			verr.Add("email", "The email has already been taken.")
		}
	}
	return verr.Err()
}

// CreatePartner adds a host partner.
func (s *RegistryService) CreatePartner(ctx context.Context, caller Caller, in PartnerInput) (*database.Partner, error) {
	if !caller.IsAdmin() {
		return nil, &AuthorizationError{Message: "admin role required"}
	}
	if err := s.validatePartner(ctx, in, 0); err != nil {
		return nil, err
	}

	partner := database.Partner{
		PartnerName:   in.PartnerName,
		Address:       in.Address,
		Phone:         in.Phone,
		Email:         in.Email,
		ContactPerson: in.ContactPerson,
		Status:        in.Status,
	}
	if err := s.db.WithContext(ctx).Create(&partner).Error; err != nil {
		return nil, translateWriteError(err, "partner")
	}
	return &partner, nil
}

// UpdatePartner revises a host partner.
func (s *RegistryService) UpdatePartner(ctx context.Context, caller Caller, id uint, in PartnerInput) (*database.Partner, error) {
	if !caller.IsAdmin() {
		return nil, &AuthorizationError{Message: "admin role required"}
	}

	var partner database.Partner
	if err := s.db.WithContext(ctx).First(&partner, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &NotFoundError{Resource: "partner"}
		}
		return nil, fmt.Errorf("query partner: %w", err)
	}
	if err := s.validatePartner(ctx, in, id); err != nil {
		return nil, err
	}

	updates := map[string]any{
		"partner_name":   in.PartnerName,
		"address":        in.Address,
		"phone":          in.Phone,
		"email":          in.Email,
		"contact_person": in.ContactPerson,
		"status":         in.Status,
	}
	if err := s.db.WithContext(ctx).Model(&partner).Updates(updates).Error; err != nil {
		return nil, translateWriteError(err, "partner")
	}
	return &partner, nil
}

// DeletePartner removes a host partner unless applications still reference
// it as their placement.
func (s *RegistryService) DeletePartner(ctx context.Context, caller Caller, id uint) error {
	if !caller.IsAdmin() {
		return &AuthorizationError{Message: "admin role required"}
	}

	var partner database.Partner
	if err := s.db.WithContext(ctx).First(&partner, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return &NotFoundError{Resource: "partner"}
		}
		return fmt.Errorf("query partner: %w", err)
	}

	var referenced int64
	if err := s.db.WithContext(ctx).
		Model(&database.Application{}).
		Where("partner_id = ?", partner.ID).
		Count(&referenced).Error; err != nil {
		return fmt.Errorf("count partner applications: %w", err)
	}
	if referenced > 0 {
		return &ConflictError{Message: "Cannot delete partner with associated applications"}
	}

	if err := s.db.WithContext(ctx).Delete(&database.Partner{}, partner.ID).Error; err != nil {
		return fmt.Errorf("delete partner: %w", err)
	}
	return nil
}

// ListPartners returns partners, optionally only the active ones.
func (s *RegistryService) ListPartners(ctx context.Context, activeOnly bool) ([]database.Partner, error) {
	query := s.db.WithContext(ctx).Order("created_at DESC, id DESC")
	if activeOnly {
		query = query.Where("status = ?", database.StatusActive).Order("partner_name")
	}
	var partners []database.Partner
	if err := query.Find(&partners).Error; err != nil {
		return nil, fmt.Errorf("list partners: %w", err)
	}
	return partners, nil
}

// UpdateProfile lets a caller change their own name and email.
func (s *RegistryService) UpdateProfile(ctx context.Context, caller Caller, name, email string) (*database.User, error) {
	verr := NewValidationError()
	if name == "" {
		verr.Add("name", "The name field is required.")
	}
	if email == "" {
		verr.Add("email", "The email field is required.")
	} else if _, err := mail.ParseAddress(email); err != nil {
		verr.Add("email", "The email must be a valid email address.")
	}
	if email != "" {
		taken, err := s.columnTaken(ctx, &database.User{}, "email", email, caller.ID)
		if err != nil {
			return nil, err
		}
		if taken {
			verr.Add("email", "The email has already been taken.")
		}
	}
	if err := verr.Err(); err != nil {
		return nil, err
	}

	var user database.User
	if err := s.db.WithContext(ctx).First(&user, caller.ID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &NotFoundError{Resource: "user"}
		}
		return nil, fmt.Errorf("query user: %w", err)
	}

	if err := s.db.WithContext(ctx).Model(&user).Updates(map[string]any{
		"name":  name,
		"email": email,
	}).Error; err != nil {
		return nil, translateWriteError(err, "user")
	}
	return &user, nil
}

func (s *RegistryService) findStudent(ctx context.Context, id uint) (*database.User, error) {
	var user database.User
	err := s.db.WithContext(ctx).
		Where("role = ?", database.RoleStudent).
		First(&user, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, &NotFoundError{Resource: "student"}
	}
	if err != nil {
		return nil, fmt.Errorf("query student: %w", err)
	}
	return &user, nil
}

func (s *RegistryService) columnTaken(ctx context.Context, model any, column, value string, excludeID uint) (bool, error) {
	query := s.db.WithContext(ctx).Model(model).Where(column+" = ?", value)
	if excludeID != 0 {
		query = query.Where("id <> ?", excludeID)
	}
	var count int64
	if err := query.Count(&count).Error; err != nil {
		return false, fmt.Errorf("check %s uniqueness: %w", column, err)
	}
	return count > 0, nil
}

// translateWriteError converts store-level duplicate-key failures (a
// concurrent writer beat the pre-check) into the conflict taxonomy.
func translateWriteError(err error, resource string) error {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return &ConflictError{Message: resource + " already exists"}
	}
	return fmt.Errorf("write %s: %w", resource, err)
}
