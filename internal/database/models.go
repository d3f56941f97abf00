package database

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Role is the closed set of account roles. Role checks happen at the
// request boundary; business code receives an already-resolved Role.
type Role string

const (
	RoleAdmin   Role = "admin"
	RoleStudent Role = "student"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleStudent
}

// User account statuses as tracked by the registrar.
const (
	UserStatusActive    = "Active"
	UserStatusInactive  = "Inactive"
	UserStatusPending   = "Pending"
	UserStatusOnOJT     = "On OJT"
	UserStatusCompleted = "Completed"
)

// Application lifecycle states. Pending is the only initial state;
// Approved and Rejected are set exclusively through admin review.
const (
	ApplicationPending  = "Pending"
	ApplicationApproved = "Approved"
	ApplicationRejected = "Rejected"
)

// Reference-data statuses shared by Program and Partner.
const (
	StatusActive   = "Active"
	StatusInactive = "Inactive"
)

// User is an account in the portal, either an administrator or a student.
// Student-only columns (StudentID, StudentPhone, OJTProgram) stay empty
// for admins.
type User struct {
	gorm.Model
	Name         string  `gorm:"size:191"`
	Email        string  `gorm:"uniqueIndex;size:191"`
	PasswordHash string  `gorm:"size:255"`
	Role         Role    `gorm:"size:16;index"`
	StudentID    *string `gorm:"uniqueIndex;size:64"`
	StudentPhone string  `gorm:"size:64"`
	OJTProgram   string  `gorm:"size:191;index"`
	Status       string  `gorm:"size:32;index"`
}

// Program is an academic degree program students belong to.
// Users reference it by ProgramName.
type Program struct {
	gorm.Model
	ProgramName        string `gorm:"uniqueIndex;size:191"`
	ProgramDescription string `gorm:"size:191"`
	Status             string `gorm:"size:32"`
}

// Partner is a host company offering internship placements.
type Partner struct {
	gorm.Model
	PartnerName   string `gorm:"uniqueIndex;size:191"`
	Address       string `gorm:"size:191"`
	Phone         string `gorm:"size:64"`
	Email         string `gorm:"uniqueIndex;size:191"`
	ContactPerson string `gorm:"size:191"`
	Status        string `gorm:"size:32"`
}

// Application is a student's request for an OJT placement. UserID is
// immutable after creation. Document columns hold object-store keys,
// never raw bytes, and a key is only ever written together with the
// object it names. CompletedHours is intentionally absent: it is always
// derived from Progress rows at read time.
type Application struct {
	gorm.Model
	UserID           uint `gorm:"index"`
	User             User
	PartnerID        *uint
	Partner          *Partner
	Status           string         `gorm:"size:32;index"`
	ResumePath       string         `gorm:"size:512"`
	LetterPath       string         `gorm:"size:512"`
	OtherDocuments   datatypes.JSON `gorm:"type:jsonb"`
	PreferredCompany string         `gorm:"size:255"`
	StartDate        *time.Time
	EndDate          *time.Time
	RequiredHours    int
	Remarks          string    `gorm:"size:1024"`
	ApplicationDate  time.Time `gorm:"index"`
}

// DocumentKeys lists every object-store key the application references:
// resume, letter, and each extra document.
func (a *Application) DocumentKeys() []string {
	var keys []string
	if a.ResumePath != "" {
		keys = append(keys, a.ResumePath)
	}
	if a.LetterPath != "" {
		keys = append(keys, a.LetterPath)
	}
	if len(a.OtherDocuments) > 0 {
		var others []string
		if err := json.Unmarshal(a.OtherDocuments, &others); err == nil {
			keys = append(keys, others...)
		}
	}
	return keys
}

// Progress is one append-only log entry of rendered OJT hours.
type Progress struct {
	gorm.Model
	UserID         uint `gorm:"index"`
	Date           time.Time
	HoursRendered  float64
	TasksCompleted string `gorm:"size:1024"`
	Remarks        string `gorm:"size:1024"`
}

// Evaluation is a supervisor's rating of a student. The portal only
// reads these.
type Evaluation struct {
	gorm.Model
	StudentID    uint `gorm:"index"`
	SupervisorID uint
	Supervisor   *User `gorm:"foreignKey:SupervisorID"`
	Rating       int
	Feedback     string `gorm:"size:1024"`
}
