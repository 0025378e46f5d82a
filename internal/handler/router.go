package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/Gowreesh-VT/Data-Rhythm-Academy-sub001/internal/middleware"
	"github.com/Gowreesh-VT/Data-Rhythm-Academy-sub001/internal/models"
	"github.com/Gowreesh-VT/Data-Rhythm-Academy-sub001/internal/service"
)

// Handlers bundles everything RegisterRoutes wires into the engine.
type Handlers struct {
	Auth         *AuthHandler
	Courses      *CourseHandler
	Schedule     *ScheduleHandler
	Enrollments  *EnrollmentHandler
	Calendar     *CalendarHandler
	Certificates *CertificateHandler

	AuthService *service.AuthService
	Metrics     *service.MetricsService
}

// RegisterRoutes mounts the API under prefix.
func RegisterRoutes(r *gin.Engine, prefix string, h Handlers) {
	if h.Metrics != nil {
		r.GET("/metrics", gin.WrapH(h.Metrics.Handler()))
	}

	api := r.Group(prefix)

	auth := api.Group("/auth")
	{
		auth.POST("/register", h.Auth.Register)
		auth.POST("/login", h.Auth.Login)
		auth.POST("/refresh", h.Auth.Refresh)
		auth.POST("/logout", middleware.JWT(h.AuthService), h.Auth.Logout)
	}

	// Public catalog and class reads. Listing honors a token when one is
	// sent so instructors see their own unpublished courses.
	api.GET("/courses", middleware.OptionalJWT(h.AuthService), h.Courses.List)
	api.GET("/courses/:id", h.Courses.Get)
	api.GET("/courses/:id/classes", h.Schedule.ListByCourse)
	api.GET("/courses/:id/classes/upcoming", h.Schedule.Upcoming)
	api.GET("/classes/:id", h.Schedule.Get)

	// Certificate downloads authenticate via the signed token itself.
	api.GET("/certificates/download", h.Certificates.Download)

	authed := api.Group("")
	authed.Use(middleware.JWT(h.AuthService))
	{
		teaching := authed.Group("")
		teaching.Use(middleware.RequireRoles(models.RoleInstructor, models.RoleAdmin))
		{
			teaching.POST("/courses", h.Courses.Create)
			teaching.PUT("/courses/:id", h.Courses.Update)
			teaching.POST("/classes", h.Schedule.Create)
			teaching.POST("/classes/pattern", h.Schedule.GeneratePattern)
			teaching.PUT("/classes/:id", h.Schedule.Update)
			teaching.POST("/classes/:id/status", h.Schedule.Transition)
			teaching.GET("/classes/mine", h.Schedule.Mine)
			teaching.GET("/classes/:id/roster.csv", h.Schedule.ExportRoster)
		}

		admin := authed.Group("")
		admin.Use(middleware.RequireRoles(models.RoleAdmin))
		{
			admin.DELETE("/classes/:id", h.Schedule.Delete)
		}

		authed.POST("/classes/:id/join", h.Schedule.Join)
		authed.GET("/courses/:id/classes/feed", h.Schedule.Feed)

		authed.POST("/enrollments", h.Enrollments.Enroll)
		authed.GET("/me/courses", h.Enrollments.MyCourses)
		authed.GET("/courses/:id/progress", h.Enrollments.Progress)
		authed.POST("/progress/events", h.Enrollments.RecordProgress)
		authed.DELETE("/courses/:id/enrollment", h.Enrollments.Unenroll)

		authed.GET("/me/calendar", h.Calendar.Calendar)
		authed.GET("/me/calendar/upcoming", h.Calendar.Upcoming)

		authed.GET("/courses/:id/certificate", h.Certificates.Link)
	}
}
