package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"ojtportal/internal/database"
	"ojtportal/internal/ojt"
)

// StudentHandler serves the student-facing surface: dashboard, progress
// log, the application lifecycle, and profile management.
type StudentHandler struct {
	db           *gorm.DB
	applications *ojt.ApplicationService
	progress     *ojt.ProgressService
	registry     *ojt.RegistryService
	uploads      uploadPolicy
}

// NewStudentHandler constructs the handler.
func NewStudentHandler(db *gorm.DB, applications *ojt.ApplicationService, progress *ojt.ProgressService, registry *ojt.RegistryService, uploads uploadPolicy) *StudentHandler {
	return &StudentHandler{
		db:           db,
		applications: applications,
		progress:     progress,
		registry:     registry,
		uploads:      uploads,
	}
}

// Dashboard returns the student's home view: identity, current application
// with partner, completion figures, and recent evaluations.
func (h *StudentHandler) Dashboard(c *gin.Context) {
	caller, ok := callerFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}
	ctx := c.Request.Context()
	logger := requestLogger(c, caller)

	user, err := h.currentUser(c, caller)
	if err != nil {
		RespondError(c, logger, err)
		return
	}

	app, err := h.applications.Current(ctx, caller.ID)
	if err != nil {
		RespondError(c, logger, err)
		return
	}
	completion, err := h.progress.ComputeCompletion(ctx, caller.ID)
	if err != nil {
		RespondError(c, logger, err)
		return
	}
	evaluations, err := h.progress.RecentEvaluations(ctx, caller.ID, 3)
	if err != nil {
		RespondError(c, logger, err)
		return
	}

	var appBody, partnerBody any
	if app != nil {
		completedHours := 0.0
		requiredHours := ojt.DefaultRequiredHours
		if completion != nil {
			completedHours = completion.CompletedHours
			requiredHours = completion.TotalHours
		}
		appBody = gin.H{
			"status":         app.Status,
			"remarks":        app.Remarks,
			"startDate":      formatDate(app.StartDate),
			"endDate":        formatDate(app.EndDate),
			"requiredHours":  requiredHours,
			"completedHours": completedHours,
		}
		if app.Partner != nil {
			partnerBody = gin.H{
				"partnerName":    app.Partner.PartnerName,
				"partnerAddress": app.Partner.Address,
				"partnerPhone":   app.Partner.Phone,
				"partnerEmail":   app.Partner.Email,
			}
		}
	}

	evalList := make([]gin.H, 0, len(evaluations))
	for _, eval := range evaluations {
		supervisor := "Unknown"
		if eval.Supervisor != nil {
			supervisor = eval.Supervisor.Name
		}
		evalList = append(evalList, gin.H{
			"id":         eval.ID,
			"date":       eval.CreatedAt.Format("2006-01-02"),
			"supervisor": supervisor,
			"score":      eval.Rating,
			"feedback":   eval.Feedback,
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"student": gin.H{
			"name":       user.Name,
			"studentId":  derefOr(user.StudentID, "N/A"),
			"ojtProgram": user.OJTProgram,
		},
		"application": appBody,
		"partner":     partnerBody,
		"completion":  completion,
		"evaluations": evalList,
	})
}

// Progress returns the completion figures plus the newest log entries.
func (h *StudentHandler) Progress(c *gin.Context) {
	caller, ok := callerFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}
	ctx := c.Request.Context()
	logger := requestLogger(c, caller)

	user, err := h.currentUser(c, caller)
	if err != nil {
		RespondError(c, logger, err)
		return
	}
	app, err := h.applications.Current(ctx, caller.ID)
	if err != nil {
		RespondError(c, logger, err)
		return
	}
	completion, err := h.progress.ComputeCompletion(ctx, caller.ID)
	if err != nil {
		RespondError(c, logger, err)
		return
	}
	recent, err := h.progress.RecentProgress(ctx, caller.ID, 5)
	if err != nil {
		RespondError(c, logger, err)
		return
	}

	var appBody any
	if app != nil {
		completedHours := 0.0
		requiredHours := app.RequiredHours
		if completion != nil {
			completedHours = completion.CompletedHours
			requiredHours = completion.TotalHours
		}
		appBody = gin.H{
			"status":         app.Status,
			"remarks":        app.Remarks,
			"startDate":      formatDate(app.StartDate),
			"endDate":        formatDate(app.EndDate),
			"requiredHours":  requiredHours,
			"completedHours": completedHours,
		}
	}

	var progressBody any
	if completion != nil {
		entries := make([]gin.H, 0, len(recent))
		for _, entry := range recent {
			entries = append(entries, gin.H{
				"id":      entry.ID,
				"date":    entry.Date.Format("2006-01-02"),
				"hours":   entry.HoursRendered,
				"tasks":   entry.TasksCompleted,
				"remarks": entry.Remarks,
			})
		}
		progressBody = gin.H{
			"totalHours":           completion.TotalHours,
			"completedHours":       completion.CompletedHours,
			"completionPercentage": completion.Percentage,
			"recentEntries":        entries,
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"auth": gin.H{
			"user": gin.H{
				"name":       user.Name,
				"studentId":  derefOr(user.StudentID, ""),
				"ojtProgram": user.OJTProgram,
			},
		},
		"application": appBody,
		"progress":    progressBody,
	})
}

type logProgressRequest struct {
	Date           string  `json:"date"`
	HoursRendered  float64 `json:"hoursRendered"`
	TasksCompleted string  `json:"tasksCompleted"`
	Remarks        string  `json:"remarks"`
}

// LogProgress appends a progress entry for the caller.
func (h *StudentHandler) LogProgress(c *gin.Context) {
	caller, ok := callerFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}
	logger := requestLogger(c, caller)

	var req logProgressRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}

	var date time.Time
	if req.Date != "" {
		parsed, err := parseDate(req.Date)
		if err != nil {
			RespondError(c, logger, ojt.FieldError("date", "The date does not match the format Y-m-d."))
			return
		}
		date = parsed
	}

	entry, err := h.progress.Log(c.Request.Context(), caller, ojt.LogInput{
		UserID:         caller.ID,
		Date:           date,
		HoursRendered:  req.HoursRendered,
		TasksCompleted: req.TasksCompleted,
		Remarks:        req.Remarks,
	})
	if err != nil {
		RespondError(c, logger, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"message":  "Progress logged successfully",
		"progress": progressJSON(*entry),
	})
}

// Application returns the caller's current application, with short-lived
// links for any stored documents.
func (h *StudentHandler) Application(c *gin.Context) {
	caller, ok := callerFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}
	ctx := c.Request.Context()
	logger := requestLogger(c, caller)

	app, err := h.applications.Current(ctx, caller.ID)
	if err != nil {
		RespondError(c, logger, err)
		return
	}
	if app == nil {
		c.JSON(http.StatusOK, gin.H{"existingApplication": nil})
		return
	}

	var resumeURL, letterURL any
	if app.ResumePath != "" {
		if url, err := h.applications.DocumentLink(ctx, caller, app.ID, ojt.DocumentResume, 15*time.Minute); err == nil {
			resumeURL = url
		}
	}
	if app.LetterPath != "" {
		if url, err := h.applications.DocumentLink(ctx, caller, app.ID, ojt.DocumentLetter, 15*time.Minute); err == nil {
			letterURL = url
		}
	}

	var partnerBody any
	if app.Partner != nil {
		partnerBody = gin.H{"name": app.Partner.PartnerName}
	}

	c.JSON(http.StatusOK, gin.H{
		"existingApplication": gin.H{
			"id":               app.ID,
			"status":           app.Status,
			"resumeUrl":        resumeURL,
			"letterUrl":        letterURL,
			"preferredCompany": app.PreferredCompany,
			"startDate":        formatDate(app.StartDate),
			"endDate":          formatDate(app.EndDate),
			"remarks":          app.Remarks,
			"partner":          partnerBody,
		},
	})
}

// Submit creates the caller's application from a multipart form.
func (h *StudentHandler) Submit(c *gin.Context) {
	caller, ok := callerFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}
	logger := requestLogger(c, caller)

	in := ojt.SubmitInput{PreferredCompany: c.PostForm("preferredCompany")}
	if !h.bindDates(c, &in.StartDate, &in.EndDate) {
		return
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

	others, err := h.uploads.formUploads(c, "otherDocuments")
	if err != nil {
		RespondError(c, logger, err)
		return
	}
	in.OtherDocuments = others

	if _, err := h.applications.Submit(c.Request.Context(), caller, in); err != nil {
		RespondError(c, logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Application submitted successfully"})
}

// UpdateApplication revises the caller's application from a multipart form.
func (h *StudentHandler) UpdateApplication(c *gin.Context) {
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

	in := ojt.UpdateInput{PreferredCompany: c.PostForm("preferredCompany")}
	if !h.bindDates(c, &in.StartDate, &in.EndDate) {
		return
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

	others, err := h.uploads.formUploads(c, "otherDocuments")
	if err != nil {
		RespondError(c, logger, err)
		return
	}
	in.OtherDocuments = others

	if _, err := h.applications.Update(c.Request.Context(), caller, id, in); err != nil {
		RespondError(c, logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Application updated successfully"})
}

// DeleteApplication removes the caller's application and its documents.
func (h *StudentHandler) DeleteApplication(c *gin.Context) {
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

// Profile returns the caller's account basics.
func (h *StudentHandler) Profile(c *gin.Context) {
	caller, ok := callerFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}

	user, err := h.currentUser(c, caller)
	if err != nil {
		RespondError(c, requestLogger(c, caller), err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"auth": gin.H{
			"user": gin.H{
				"name":  user.Name,
				"email": user.Email,
			},
		},
	})
}

type profileRequest struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// UpdateProfile changes the caller's name and email.
func (h *StudentHandler) UpdateProfile(c *gin.Context) {
	caller, ok := callerFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}
	var req profileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}

	user, err := h.registry.UpdateProfile(c.Request.Context(), caller, req.Name, req.Email)
	if err != nil {
		RespondError(c, requestLogger(c, caller), err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message": "Profile updated successfully",
		"user": gin.H{
			"name":  user.Name,
			"email": user.Email,
		},
	})
}

func (h *StudentHandler) currentUser(c *gin.Context, caller ojt.Caller) (*database.User, error) {
	var user database.User
	if err := h.db.WithContext(c.Request.Context()).First(&user, caller.ID).Error; err != nil {
		return nil, &ojt.NotFoundError{Resource: "user"}
	}
	return &user, nil
}

// bindDates parses the startDate/endDate form fields; absent fields stay
// zero so the service reports them as required.
func (h *StudentHandler) bindDates(c *gin.Context, start, end *time.Time) bool {
	if raw := c.PostForm("startDate"); raw != "" {
		parsed, err := parseDate(raw)
		if err != nil {
			RespondError(c, nil, ojt.FieldError("startDate", "The start date does not match the format Y-m-d."))
			return false
		}
		*start = parsed
	}
	if raw := c.PostForm("endDate"); raw != "" {
		parsed, err := parseDate(raw)
		if err != nil {
			RespondError(c, nil, ojt.FieldError("endDate", "The end date does not match the format Y-m-d."))
			return false
		}
		*end = parsed
	}
	return true
}

func derefOr(value *string, fallback string) string {
	if value == nil || *value == "" {
		return fallback
	}
	return *value
}
