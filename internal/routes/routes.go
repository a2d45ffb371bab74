package routes

import (
	"github.com/gin-gonic/gin"

	"telemed-server/internal/config"
	"telemed-server/internal/handlers"
	"telemed-server/internal/metrics"
	"telemed-server/internal/middleware"
	"telemed-server/internal/models"
)

// Handlers groups everything SetupRoutes mounts.
type Handlers struct {
	Auth         *handlers.AuthHandler
	Users        *handlers.UserHandler
	Appointments *handlers.AppointmentHandler
	VideoRooms   *handlers.VideoRoomHandler
	Health       *handlers.HealthHandler
}

// SetupRoutes configures the application routes.
func SetupRoutes(router *gin.Engine, h Handlers, cfg *config.Config) {
	router.GET("/health/live", h.Health.Liveness)
	router.GET("/health/ready", h.Health.Readiness)
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	// Public routes (no authentication required)
	public := router.Group("/api/v1")
	{
		public.POST("/accounts/register/patient", h.Auth.RegisterPatient)
		public.POST("/accounts/register/doctor", h.Auth.RegisterDoctor)
		public.POST("/auth/login", h.Auth.Login)
		public.POST("/auth/refresh-token", h.Auth.RefreshToken)
	}

	// Authenticated routes
	private := router.Group("/api/v1")
	private.Use(middleware.AuthMiddleware(cfg))
	{
		private.POST("/auth/logout", h.Auth.Logout)

		accountRoutes := private.Group("/accounts")
		{
			accountRoutes.GET("/me", h.Auth.GetMe)
			accountRoutes.PUT("/me", h.Auth.UpdateMe)

			patientRoutes := accountRoutes.Group("/me/patient-profile")
			patientRoutes.Use(middleware.RoleAuthMiddleware(models.RolePatient))
			{
				patientRoutes.GET("", h.Users.GetPatientProfile)
				patientRoutes.PUT("", h.Users.UpdatePatientProfile)
			}

			doctorRoutes := accountRoutes.Group("/me/doctor-profile")
			doctorRoutes.Use(middleware.RoleAuthMiddleware(models.RoleDoctor))
			{
				doctorRoutes.GET("", h.Users.GetDoctorProfile)
				doctorRoutes.PUT("", h.Users.UpdateDoctorProfile)
				doctorRoutes.POST("/documents", h.Users.UploadDoctorDocument)
			}

			// Directory of approved doctors, any authenticated user
			accountRoutes.GET("/doctors", h.Users.ListDoctors)
			accountRoutes.GET("/doctors/:id", h.Users.GetDoctor)

			accountRoutes.PATCH("/admin/verify-doctor/:id", middleware.RoleAuthMiddleware(models.RoleAdmin), h.Users.VerifyDoctor)
		}

		// Appointment routes. Who may do what is decided by the scheduler.
		appointmentRoutes := private.Group("/appointments")
		{
			appointmentRoutes.POST("", h.Appointments.CreateAppointment)
			appointmentRoutes.GET("/upcoming", h.Appointments.GetUpcomingAppointments)
			appointmentRoutes.GET("/:id", h.Appointments.GetAppointmentByID)
			appointmentRoutes.PATCH("/:id/cancel", h.Appointments.CancelAppointment)
			appointmentRoutes.PATCH("/:id/complete", h.Appointments.CompleteAppointment)
			appointmentRoutes.PATCH("/:id/no-show", h.Appointments.MarkNoShow)
			appointmentRoutes.PATCH("/:id/status", h.Appointments.UpdateAppointmentStatus)
			appointmentRoutes.POST("/:id/session", h.Appointments.CreateSessionRecord)
		}

		videoRoutes := private.Group("/video-rooms")
		{
			videoRoutes.POST("/appointment/:appointment_id", h.VideoRooms.CreateRoom)
			videoRoutes.GET("/:room_name", h.VideoRooms.GetRoom)
		}
	}
}
