package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"ojtportal/internal/ojt"
)

// ReportHandler serves the consolidated reporting endpoint.
type ReportHandler struct {
	reports  *ojt.ReportService
	registry *ojt.RegistryService
}

// NewReportHandler constructs the handler.
func NewReportHandler(reports *ojt.ReportService, registry *ojt.RegistryService) *ReportHandler {
	return &ReportHandler{reports: reports, registry: registry}
}

// Report aggregates the portal-wide figures: application, program, and
// student stats, the trailing monthly submission counts, and the detail
// rows the export view renders. The semester query parameter is echoed
// back so clients can label the export.
func (h *ReportHandler) Report(c *gin.Context) {
	caller, ok := callerFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}
	ctx := c.Request.Context()
	logger := requestLogger(c, caller)

	appStats, err := h.reports.ApplicationStats(ctx)
	if err != nil {
		RespondError(c, logger, err)
		return
	}
	programStats, err := h.reports.ProgramStatusStats(ctx)
	if err != nil {
		RespondError(c, logger, err)
		return
	}
	studentStats, err := h.reports.StudentStats(ctx)
	if err != nil {
		RespondError(c, logger, err)
		return
	}
	series, err := h.reports.MonthlySeries(ctx, 6)
	if err != nil {
		RespondError(c, logger, err)
		return
	}
	programs, err := h.registry.ListPrograms(ctx, false)
	if err != nil {
		RespondError(c, logger, err)
		return
	}
	students, err := h.registry.ListStudents(ctx)
	if err != nil {
		RespondError(c, logger, err)
		return
	}

	monthly := make([]int64, 0, len(series))
	for _, bucket := range series {
		monthly = append(monthly, bucket.Count)
	}
	programList := make([]gin.H, 0, len(programs))
	for _, p := range programs {
		programList = append(programList, programJSON(p))
	}
	studentList := make([]gin.H, 0, len(students))
	for _, s := range students {
		studentList = append(studentList, studentJSON(s))
	}

	c.JSON(http.StatusOK, gin.H{
		"semester": c.Query("semester"),
		"applicationStats": gin.H{
			"total":    appStats.Total,
			"pending":  appStats.Pending,
			"approved": appStats.Approved,
			"rejected": appStats.Rejected,
		},
		"programStats": gin.H{
			"total":    programStats.Total,
			"active":   programStats.Active,
			"inactive": programStats.Inactive,
		},
		"studentStats": gin.H{
			"total":     studentStats.Total,
			"onOJT":     studentStats.OnOJT,
			"completed": studentStats.Completed,
		},
		"monthlyApplications": monthly,
		"programs":            programList,
		"users":               studentList,
	})
}
