package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"ojtportal/internal/database"
	"ojtportal/internal/ojt"
)

// AdminHandler serves the administrative dashboard and the reference-data
// CRUD surface: students, programs, and host partners.
type AdminHandler struct {
	registry *ojt.RegistryService
	reports  *ojt.ReportService
	progress *ojt.ProgressService
}

// NewAdminHandler constructs the handler.
func NewAdminHandler(registry *ojt.RegistryService, reports *ojt.ReportService, progress *ojt.ProgressService) *AdminHandler {
	return &AdminHandler{registry: registry, reports: reports, progress: progress}
}

// Home returns the dashboard: headline stats, recent students, and
// per-program enrollment.
func (h *AdminHandler) Home(c *gin.Context) {
	caller, ok := callerFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}
	ctx := c.Request.Context()
	logger := requestLogger(c, caller)

	studentStats, err := h.reports.StudentStats(ctx)
	if err != nil {
		RespondError(c, logger, err)
		return
	}
	appStats, err := h.reports.ApplicationStats(ctx)
	if err != nil {
		RespondError(c, logger, err)
		return
	}
	programStats, err := h.reports.ProgramStats(ctx, true)
	if err != nil {
		RespondError(c, logger, err)
		return
	}
	recent, err := h.reports.RecentStudents(ctx, 5)
	if err != nil {
		RespondError(c, logger, err)
		return
	}

	recentStudents := make([]gin.H, 0, len(recent))
	for _, s := range recent {
		recentStudents = append(recentStudents, gin.H{
			"id":      s.ID,
			"name":    s.Name,
			"program": s.OJTProgram,
			"status":  s.Status,
		})
	}

	programs := make([]gin.H, 0, len(programStats))
	for _, p := range programStats {
		programs = append(programs, gin.H{
			"id":             p.ID,
			"programName":    p.ProgramName,
			"totalStudents":  p.TotalStudents,
			"activeStudents": p.ActiveStudents,
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"stats": gin.H{
			"totalStudents":       studentStats.Total,
			"totalPrograms":       int64(len(programStats)),
			"activeStudents":      studentStats.Active,
			"pendingApplications": appStats.Pending,
		},
		"recentStudents": recentStudents,
		"programStats":   programs,
	})
}

// Students returns the student roster plus the active programs and the
// headline student stats the management page renders alongside it.
func (h *AdminHandler) Students(c *gin.Context) {
	caller, ok := callerFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}
	ctx := c.Request.Context()
	logger := requestLogger(c, caller)

	students, err := h.registry.ListStudents(ctx)
	if err != nil {
		RespondError(c, logger, err)
		return
	}
	programs, err := h.registry.ListPrograms(ctx, true)
	if err != nil {
		RespondError(c, logger, err)
		return
	}
	stats, err := h.reports.StudentStats(ctx)
	if err != nil {
		RespondError(c, logger, err)
		return
	}

	studentList := make([]gin.H, 0, len(students))
	for _, s := range students {
		studentList = append(studentList, studentJSON(s))
	}
	programList := make([]gin.H, 0, len(programs))
	for _, p := range programs {
		programList = append(programList, gin.H{"id": p.ID, "programName": p.ProgramName})
	}

	c.JSON(http.StatusOK, gin.H{
		"students": studentList,
		"programs": programList,
		"stats": gin.H{
			"totalStudents":    stats.Total,
			"activeStudents":   stats.Active,
			"inactiveStudents": stats.Inactive,
		},
	})
}

type studentRequest struct {
	StudentID string `json:"studentId"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	Password  string `json:"password"`
	Phone     string `json:"phone"`
	Program   string `json:"program"`
	Status    string `json:"status"`
}

func (r studentRequest) input() ojt.StudentInput {
	return ojt.StudentInput{
		StudentID: r.StudentID,
		Name:      r.Name,
		Email:     r.Email,
		Password:  r.Password,
		Phone:     r.Phone,
		Program:   r.Program,
		Status:    r.Status,
	}
}

// CreateStudent registers a student account.
func (h *AdminHandler) CreateStudent(c *gin.Context) {
	caller, ok := callerFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}
	var req studentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}

	student, err := h.registry.CreateStudent(c.Request.Context(), caller, req.input())
	if err != nil {
		RespondError(c, requestLogger(c, caller), err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"message": "Student added successfully",
		"student": studentJSON(*student),
	})
}

// UpdateStudent revises a student account.
func (h *AdminHandler) UpdateStudent(c *gin.Context) {
	caller, ok := callerFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req studentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}

	student, err := h.registry.UpdateStudent(c.Request.Context(), caller, id, req.input())
	if err != nil {
		RespondError(c, requestLogger(c, caller), err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message": "Student updated successfully",
		"student": studentJSON(*student),
	})
}

// DeleteStudent removes a student account.
func (h *AdminHandler) DeleteStudent(c *gin.Context) {
	caller, ok := callerFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}
	id, ok := pathID(c)
	if !ok {
		return
	}

	if err := h.registry.DeleteStudent(c.Request.Context(), caller, id); err != nil {
		RespondError(c, requestLogger(c, caller), err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Student deleted successfully"})
}

// Programs returns every program with its enrollment counts.
func (h *AdminHandler) Programs(c *gin.Context) {
	caller, ok := callerFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}
	ctx := c.Request.Context()

	stats, err := h.reports.ProgramStats(ctx, true)
	if err != nil {
		RespondError(c, requestLogger(c, caller), err)
		return
	}

	programs := make([]gin.H, 0, len(stats))
	for _, p := range stats {
		programs = append(programs, gin.H{
			"id":             p.ID,
			"programName":    p.ProgramName,
			"description":    p.Description,
			"status":         p.Status,
			"totalStudents":  p.TotalStudents,
			"activeStudents": p.ActiveStudents,
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"programs": programs,
		"stats": gin.H{
			"totalPrograms": int64(len(programs)),
		},
	})
}

type programRequest struct {
	ProgramName string `json:"programName"`
	Description string `json:"description"`
	Status      string `json:"status"`
}

// CreateProgram adds a program.
func (h *AdminHandler) CreateProgram(c *gin.Context) {
	caller, ok := callerFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}
	var req programRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}

	program, err := h.registry.CreateProgram(c.Request.Context(), caller, ojt.ProgramInput{
		ProgramName: req.ProgramName,
		Description: req.Description,
		Status:      req.Status,
	})
	if err != nil {
		RespondError(c, requestLogger(c, caller), err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"message": "Program added successfully",
		"program": programJSON(*program),
	})
}

// UpdateProgram revises a program.
func (h *AdminHandler) UpdateProgram(c *gin.Context) {
	caller, ok := callerFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req programRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}

	program, err := h.registry.UpdateProgram(c.Request.Context(), caller, id, ojt.ProgramInput{
		ProgramName: req.ProgramName,
		Description: req.Description,
		Status:      req.Status,
	})
	if err != nil {
		RespondError(c, requestLogger(c, caller), err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message": "Program updated successfully",
		"program": programJSON(*program),
	})
}

// DeleteProgram removes a program; enrolled students block the delete.
func (h *AdminHandler) DeleteProgram(c *gin.Context) {
	caller, ok := callerFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}
	id, ok := pathID(c)
	if !ok {
		return
	}

	if err := h.registry.DeleteProgram(c.Request.Context(), caller, id); err != nil {
		RespondError(c, requestLogger(c, caller), err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Program deleted successfully"})
}

// Partners returns every host partner with status stats.
func (h *AdminHandler) Partners(c *gin.Context) {
	caller, ok := callerFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}
	ctx := c.Request.Context()

	partners, err := h.registry.ListPartners(ctx, false)
	if err != nil {
		RespondError(c, requestLogger(c, caller), err)
		return
	}

	var active, inactive int64
	partnerList := make([]gin.H, 0, len(partners))
	for _, p := range partners {
		switch p.Status {
		case database.StatusActive:
			active++
		case database.StatusInactive:
			inactive++
		}
		partnerList = append(partnerList, partnerJSON(p))
	}

	c.JSON(http.StatusOK, gin.H{
		"partners": partnerList,
		"stats": gin.H{
			"totalPartners":    int64(len(partners)),
			"activePartners":   active,
			"inactivePartners": inactive,
		},
	})
}

type partnerRequest struct {
	PartnerName   string `json:"partnerName"`
	Address       string `json:"address"`
	Phone         string `json:"phone"`
	Email         string `json:"email"`
	ContactPerson string `json:"contactPerson"`
	Status        string `json:"status"`
}

func (r partnerRequest) input() ojt.PartnerInput {
	return ojt.PartnerInput{
		PartnerName:   r.PartnerName,
		Address:       r.Address,
		Phone:         r.Phone,
		Email:         r.Email,
		ContactPerson: r.ContactPerson,
		Status:        r.Status,
	}
}

// CreatePartner adds a host partner.
func (h *AdminHandler) CreatePartner(c *gin.Context) {
	caller, ok := callerFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}
	var req partnerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}

	partner, err := h.registry.CreatePartner(c.Request.Context(), caller, req.input())
	if err != nil {
		RespondError(c, requestLogger(c, caller), err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"message": "Partner added successfully",
		"partner": partnerJSON(*partner),
	})
}

// UpdatePartner revises a host partner.
func (h *AdminHandler) UpdatePartner(c *gin.Context) {
	caller, ok := callerFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req partnerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}

	partner, err := h.registry.UpdatePartner(c.Request.Context(), caller, id, req.input())
	if err != nil {
		RespondError(c, requestLogger(c, caller), err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message": "Partner updated successfully",
		"partner": partnerJSON(*partner),
	})
}

// DeletePartner removes a host partner; referencing applications block it.
func (h *AdminHandler) DeletePartner(c *gin.Context) {
	caller, ok := callerFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}
	id, ok := pathID(c)
	if !ok {
		return
	}

	if err := h.registry.DeletePartner(c.Request.Context(), caller, id); err != nil {
		RespondError(c, requestLogger(c, caller), err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Partner deleted successfully"})
}

type adminProgressRequest struct {
	Date           string  `json:"date"`
	HoursRendered  float64 `json:"hoursRendered"`
	TasksCompleted string  `json:"tasksCompleted"`
	Remarks        string  `json:"remarks"`
}

// LogStudentProgress appends a progress entry on a student's behalf.
func (h *AdminHandler) LogStudentProgress(c *gin.Context) {
	caller, ok := callerFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req adminProgressRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}

	date, err := parseDate(req.Date)
	if err != nil {
		RespondError(c, requestLogger(c, caller), ojt.FieldError("date", "The date does not match the format Y-m-d."))
		return
	}

	entry, err := h.progress.Log(c.Request.Context(), caller, ojt.LogInput{
		UserID:         id,
		Date:           date,
		HoursRendered:  req.HoursRendered,
		TasksCompleted: req.TasksCompleted,
		Remarks:        req.Remarks,
	})
	if err != nil {
		RespondError(c, requestLogger(c, caller), err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"message":  "Progress logged successfully",
		"progress": progressJSON(*entry),
	})
}

func studentJSON(s database.User) gin.H {
	studentID := ""
	if s.StudentID != nil {
		studentID = *s.StudentID
	}
	return gin.H{
		"id":        s.ID,
		"studentId": studentID,
		"name":      s.Name,
		"email":     s.Email,
		"phone":     s.StudentPhone,
		"program":   s.OJTProgram,
		"status":    s.Status,
	}
}

func programJSON(p database.Program) gin.H {
	return gin.H{
		"id":          p.ID,
		"programName": p.ProgramName,
		"description": p.ProgramDescription,
		"status":      p.Status,
	}
}

func partnerJSON(p database.Partner) gin.H {
	return gin.H{
		"id":            p.ID,
		"partnerName":   p.PartnerName,
		"address":       p.Address,
		"phone":         p.Phone,
		"email":         p.Email,
		"contactPerson": p.ContactPerson,
		"status":        p.Status,
	}
}

func progressJSON(p database.Progress) gin.H {
	return gin.H{
		"id":             p.ID,
		"date":           p.Date.Format("2006-01-02"),
		"hoursRendered":  p.HoursRendered,
		"tasksCompleted": p.TasksCompleted,
		"remarks":        p.Remarks,
	}
}

// pathID parses the :id route parameter; it writes the 400 itself.
func pathID(c *gin.Context) (uint, bool) {
	raw := c.Param("id")
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil || id == 0 {
		BadRequest(c, "invalid id")
		return 0, false
	}
	return uint(id), true
}

func parseDate(value string) (time.Time, error) {
	return time.Parse("2006-01-02", value)
}
