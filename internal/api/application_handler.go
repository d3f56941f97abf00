package api

import (
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"ojtportal/internal/database"
	"ojtportal/internal/ojt"
)

// ApplicationHandler serves the admin application workflow: listing,
// recording walk-in submissions, reviewing, deleting, and document
// downloads.
type ApplicationHandler struct {
	applications *ojt.ApplicationService
	registry     *ojt.RegistryService
	reports      *ojt.ReportService
	uploads      uploadPolicy
}

// NewApplicationHandler constructs the handler.
func NewApplicationHandler(applications *ojt.ApplicationService, registry *ojt.RegistryService, reports *ojt.ReportService, uploads uploadPolicy) *ApplicationHandler {
	return &ApplicationHandler{
		applications: applications,
		registry:     registry,
		reports:      reports,
		uploads:      uploads,
	}
}

// List returns every application with the pickers and stats the management
// page renders alongside it.
func (h *ApplicationHandler) List(c *gin.Context) {
	caller, ok := callerFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}
	ctx := c.Request.Context()
	logger := requestLogger(c, caller)

	apps, err := h.applications.List(ctx, caller)
	if err != nil {
		RespondError(c, logger, err)
		return
	}
	students, err := h.registry.ListStudents(ctx)
	if err != nil {
		RespondError(c, logger, err)
		return
	}
	partners, err := h.registry.ListPartners(ctx, true)
	if err != nil {
		RespondError(c, logger, err)
		return
	}
	stats, err := h.reports.ApplicationStats(ctx)
	if err != nil {
		RespondError(c, logger, err)
		return
	}

	appList := make([]gin.H, 0, len(apps))
	for i := range apps {
		appList = append(appList, applicationJSON(&apps[i]))
	}
	studentList := make([]gin.H, 0, len(students))
	for _, s := range students {
		studentID := ""
		if s.StudentID != nil {
			studentID = *s.StudentID
		}
		studentList = append(studentList, gin.H{
			"id":        s.ID,
			"studentId": studentID,
			"name":      s.Name,
			"program":   s.OJTProgram,
		})
	}
	partnerList := make([]gin.H, 0, len(partners))
	for _, p := range partners {
		partnerList = append(partnerList, gin.H{"id": p.ID, "partnerName": p.PartnerName})
	}

	c.JSON(http.StatusOK, gin.H{
		"applications": appList,
		"students":     studentList,
		"partners":     partnerList,
		"stats": gin.H{
			"totalApplications":    stats.Total,
			"pendingApplications":  stats.Pending,
			"approvedApplications": stats.Approved,
			"rejectedApplications": stats.Rejected,
		},
	})
}

// Create records an application on a student's behalf. The form arrives as
// multipart so walk-in paperwork can be attached directly.
func (h *ApplicationHandler) Create(c *gin.Context) {
	caller, ok := callerFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}
	logger := requestLogger(c, caller)

	in := ojt.AdminCreateInput{StudentID: c.PostForm("studentId")}

	if raw := c.PostForm("partnerId"); raw != "" {
		id, err := strconv.ParseUint(raw, 10, 32)
		if err != nil {
			RespondError(c, logger, ojt.FieldError("partnerId", "The selected partner id is invalid."))
			return
		}
		partnerID := uint(id)
		in.PartnerID = &partnerID
	}

	if raw := c.PostForm("applicationDate"); raw != "" {
		date, err := parseDate(raw)
		if err != nil {
			RespondError(c, logger, ojt.FieldError("applicationDate", "The application date does not match the format Y-m-d."))
			return
		}
		in.ApplicationDate = date
	}

	resume, err := h.uploads.formUpload(c, "resume")
	if err != nil {
		RespondError(c, logger, err)
		return
	}
	in.Resume = resume

	letter, err := h.uploads.formUpload(c, "applicationLetter")
	if err != nil {
		RespondError(c, logger, err)
		return
	}
	in.Letter = letter

	app, err := h.applications.AdminCreate(c.Request.Context(), caller, in)
	if err != nil {
		RespondError(c, logger, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"message":     "Application added successfully",
		"application": applicationJSON(app),
	})
}

type reviewRequest struct {
	Status        string `json:"status"`
	PartnerID     *uint  `json:"partnerId"`
	StartDate     string `json:"startDate"`
	EndDate       string `json:"endDate"`
	RequiredHours *int   `json:"requiredHours"`
	Remarks       string `json:"remarks"`
}

// Review applies an admin decision to an application.
func (h *ApplicationHandler) Review(c *gin.Context) {
	caller, ok := callerFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}
	id, ok := pathID(c)
	if !ok {
		return
	}
	logger := requestLogger(c, caller)

	var req reviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}

	in := ojt.ReviewInput{
		Status:        req.Status,
		PartnerID:     req.PartnerID,
		RequiredHours: req.RequiredHours,
		Remarks:       req.Remarks,
	}
	if req.StartDate != "" {
		date, err := parseDate(req.StartDate)
		if err != nil {
			RespondError(c, logger, ojt.FieldError("startDate", "The start date does not match the format Y-m-d."))
			return
		}
		in.StartDate = &date
	}
	if req.EndDate != "" {
		date, err := parseDate(req.EndDate)
		if err != nil {
			RespondError(c, logger, ojt.FieldError("endDate", "The end date does not match the format Y-m-d."))
			return
		}
		in.EndDate = &date
	}

	app, err := h.applications.Review(c.Request.Context(), caller, id, in)
	if err != nil {
		RespondError(c, logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message":     "Application reviewed successfully",
		"application": applicationJSON(app),
	})
}

// Delete removes an application together with its stored documents.
func (h *ApplicationHandler) Delete(c *gin.Context) {
	caller, ok := callerFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}
	id, ok := pathID(c)
	if !ok {
		return
	}

	if err := h.applications.Delete(c.Request.Context(), caller, id); err != nil {
		RespondError(c, requestLogger(c, caller), err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Application deleted successfully"})
}

// DownloadResume streams the stored resume.
func (h *ApplicationHandler) DownloadResume(c *gin.Context) {
	h.downloadDocument(c, ojt.DocumentResume, "resume.pdf")
}

// DownloadLetter streams the stored application letter.
func (h *ApplicationHandler) DownloadLetter(c *gin.Context) {
	h.downloadDocument(c, ojt.DocumentLetter, "letter.pdf")
}

func (h *ApplicationHandler) downloadDocument(c *gin.Context, kind ojt.DocumentKind, filename string) {
	caller, ok := callerFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}
	id, ok := pathID(c)
	if !ok {
		return
	}
	logger := requestLogger(c, caller)

	rc, err := h.applications.OpenDocument(c.Request.Context(), caller, id, kind)
	if err != nil {
		RespondError(c, logger, err)
		return
	}
	defer rc.Close()

	c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
	c.Header("Content-Type", "application/octet-stream")
	c.Status(http.StatusOK)
	if _, err := io.Copy(c.Writer, rc); err != nil {
		logger.Error("stream document failed")
	}
}

func applicationJSON(app *database.Application) gin.H {
	studentID := ""
	if app.User.StudentID != nil {
		studentID = *app.User.StudentID
	}
	var partnerName any
	if app.Partner != nil {
		partnerName = app.Partner.PartnerName
	}
	return gin.H{
		"id":              app.ID,
		"studentName":     app.User.Name,
		"studentId":       studentID,
		"program":         app.User.OJTProgram,
		"applicationDate": formatDate(&app.ApplicationDate),
		"hasResume":       app.ResumePath != "",
		"hasLetter":       app.LetterPath != "",
		"status":          app.Status,
		"partnerId":       app.PartnerID,
		"partnerName":     partnerName,
		"startDate":       formatDate(app.StartDate),
		"endDate":         formatDate(app.EndDate),
		"requiredHours":   app.RequiredHours,
		"remarks":         app.Remarks,
	}
}

func formatDate(t *time.Time) any {
	if t == nil || t.IsZero() {
		return nil
	}
	return t.Format("2006-01-02")
}
