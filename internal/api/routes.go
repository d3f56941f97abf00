package api

import (
	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"ojtportal/internal/api/middleware"
	"ojtportal/internal/auth"
	"ojtportal/internal/config"
	"ojtportal/internal/database"
	"ojtportal/internal/ojt"
)

// RegisterRoutes wires every handler under /v1.
func RegisterRoutes(
	router *gin.Engine,
	cfg *config.Config,
	db *gorm.DB,
	authService *auth.AuthService,
	redisClient *redis.Client,
	logger *slog.Logger,
	store ojt.ObjectStore,
) {
	applications := ojt.NewApplicationService(db, store)
	progress := ojt.NewProgressService(db, applications)
	registry := ojt.NewRegistryService(db)
	reports := ojt.NewReportService(db)

	uploads := uploadPolicy{maxBytes: cfg.Uploads.MaxBytes, clamdAddr: cfg.Clamd.Addr}

	authHandler := NewAuthHandler(
		db,
		authService,
		redisClient,
		logger,
		cfg.Auth.LoginRateLimitPerHour,
		cfg.Auth.LoginLockThreshold,
		cfg.Auth.LoginLockTTL,
		cfg.API.CookieDomain,
	)
	adminHandler := NewAdminHandler(registry, reports, progress)
	applicationHandler := NewApplicationHandler(applications, registry, reports, uploads)
	reportHandler := NewReportHandler(reports, registry)
	studentHandler := NewStudentHandler(db, applications, progress, registry, uploads)

	authMiddleware := middleware.AuthMiddleware(authService)

	v1 := router.Group("/v1")
	{
		authGroup := v1.Group("/auth")
		{
			authGroup.POST("/login", authHandler.Login)
			authGroup.POST("/refresh", authHandler.Refresh)
			authGroup.POST("/logout", authHandler.Logout)
		}

		adminGroup := v1.Group("/admin")
		adminGroup.Use(authMiddleware, middleware.RequireRole(database.RoleAdmin))
		{
			adminGroup.GET("/home", adminHandler.Home)

			adminGroup.GET("/students", adminHandler.Students)
			adminGroup.POST("/students", adminHandler.CreateStudent)
			adminGroup.PUT("/students/:id", adminHandler.UpdateStudent)
			adminGroup.DELETE("/students/:id", adminHandler.DeleteStudent)
			adminGroup.POST("/students/:id/progress", adminHandler.LogStudentProgress)

			adminGroup.GET("/programs", adminHandler.Programs)
			adminGroup.POST("/programs", adminHandler.CreateProgram)
			adminGroup.PUT("/programs/:id", adminHandler.UpdateProgram)
			adminGroup.DELETE("/programs/:id", adminHandler.DeleteProgram)

			adminGroup.GET("/partners", adminHandler.Partners)
			adminGroup.POST("/partners", adminHandler.CreatePartner)
			adminGroup.PUT("/partners/:id", adminHandler.UpdatePartner)
			adminGroup.DELETE("/partners/:id", adminHandler.DeletePartner)

			adminGroup.GET("/applications", applicationHandler.List)
			adminGroup.POST("/applications", applicationHandler.Create)
			adminGroup.PUT("/applications/:id", applicationHandler.Review)
			adminGroup.DELETE("/applications/:id", applicationHandler.Delete)
			adminGroup.GET("/applications/:id/resume", applicationHandler.DownloadResume)
			adminGroup.GET("/applications/:id/letter", applicationHandler.DownloadLetter)

			adminGroup.GET("/report", reportHandler.Report)
		}

		studentGroup := v1.Group("/student")
		studentGroup.Use(authMiddleware, middleware.RequireRole(database.RoleStudent))
		{
			studentGroup.GET("/dashboard", studentHandler.Dashboard)
			studentGroup.GET("/progress", studentHandler.Progress)
			studentGroup.POST("/progress", studentHandler.LogProgress)

			studentGroup.GET("/application", studentHandler.Application)
			studentGroup.POST("/application/submit", studentHandler.Submit)
			studentGroup.POST("/application/:id", studentHandler.UpdateApplication)
			studentGroup.DELETE("/application/:id", studentHandler.DeleteApplication)

			studentGroup.GET("/profile", studentHandler.Profile)
			studentGroup.PUT("/profile", studentHandler.UpdateProfile)
			studentGroup.PUT("/password", authHandler.ChangePassword)
		}
	}
}
