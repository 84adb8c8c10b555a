package routes

import (
	"net/http"
	"time"

	"clinicvoice/handlers"
	"clinicvoice/middleware"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// RegisterCallRoutes registers the dialogue engine endpoints. Session
// creation is open; everything else requires the session's own token.
func RegisterCallRoutes(r *gin.Engine, hb *handlers.HandlerBundle) {
	api := r.Group("/api/call")
	{
		api.POST("/session", hb.StartSessionHandler)

		protected := api.Group("/session/:sessionID")
		protected.Use(middleware.CallSessionAuthMiddleware())
		protected.POST("/intent", hb.IntentHandler)
		protected.POST("/utterance", hb.UtteranceHandler)
		protected.DELETE("", hb.EndSessionHandler)
	}
}

// RegisterAIRoutes registers speech endpoints.
func RegisterAIRoutes(r *gin.Engine, hb *handlers.HandlerBundle) {
	api := r.Group("/api/ai")
	{
		api.Use(middleware.CallSessionAuthMiddleware())
		api.POST("/stt", hb.STTHandler)
	}
}

// RegisterAdminRoutes sets up endpoints for roster and appointment admin.
func RegisterAdminRoutes(r *gin.Engine, hb *handlers.HandlerBundle) {
	adminGroup := r.Group("/api/admin")
	{
		adminGroup.Use(middleware.AdminAuthMiddleware())
		adminGroup.POST("/practitioners", hb.CreatePractitionerHandler)
		adminGroup.PUT("/practitioners/:id", hb.UpdatePractitionerHandler)
		adminGroup.DELETE("/practitioners/:id", hb.DeletePractitionerHandler)
		adminGroup.GET("/practitioners/:id", hb.GetPractitionerHandler)
		adminGroup.GET("/practitioners", hb.ListPractitionersHandler)
		adminGroup.POST("/directory/refresh", hb.RefreshDirectoryHandler)

		adminGroup.GET("/appointments/:practitionerID", hb.ListAppointmentsHandler)
		adminGroup.DELETE("/appointments/:practitionerID/:eventID", hb.CancelAppointmentHandler)
	}
}

// RegisterHealthRoute registers a health-check endpoint.
func RegisterHealthRoute(r *gin.Engine) {
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "message": "Hi, I'm ClinicVoice"})
	})
}

// RegisterRoutes centralizes registration of all endpoints and middleware.
func RegisterRoutes(r *gin.Engine, hb *handlers.HandlerBundle) {
	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Authorization", "Content-Type", "X-Admin-Key"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	RegisterCallRoutes(r, hb)
	RegisterAIRoutes(r, hb)
	RegisterAdminRoutes(r, hb)
	RegisterHealthRoute(r)
}
