package routes

import (
	"github.com/labstack/echo/v4"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/truesuntrading/warranty_backend/controllers"
	"github.com/truesuntrading/warranty_backend/middleware"
	"github.com/truesuntrading/warranty_backend/repositories"
	"github.com/truesuntrading/warranty_backend/services"
	"github.com/truesuntrading/warranty_backend/websocket"
)

// RegisterRequestRoutes sets up the verification request and certificate
// routes.
func RegisterRequestRoutes(e *echo.Echo, db *mongo.Database, hub *websocket.Hub) {
	requestRepo := repositories.NewRequestRepository(db)
	logRepo := repositories.NewAdminLogRepository(db)
	certificateService := services.NewCertificateService()
	rejectionService := services.NewRejectionService()
	lifecycleService := services.NewLifecycleService(requestRepo, certificateService, rejectionService, logRepo)

	requestController := controllers.NewRequestController(requestRepo, lifecycleService, hub)
	lifecycleController := controllers.NewLifecycleController(lifecycleService, hub)
	certificateController := controllers.NewCertificateController(certificateService)

	requests := e.Group("/api/requests")

	// Public routes: integrator submission and certificate verification
	requests.POST("", requestController.Submit)
	requests.GET("/:id/verify", requestController.Verify)

	// Admin dashboard routes
	protected := requests.Group("")
	protected.Use(middleware.JWTMiddleware())
	protected.Use(middleware.RequireUserType("admin", "super_admin"))

	protected.GET("", requestController.List)
	protected.GET("/:id", requestController.Get)
	protected.PUT("/:id/certificate", requestController.UpdateCertificateFields)
	protected.POST("/:id/accept", lifecycleController.Accept)
	protected.POST("/:id/reject", lifecycleController.Reject)
	protected.POST("/bulk-accept", lifecycleController.BulkAccept)
	protected.POST("/:id/select", lifecycleController.ToggleSelect)
	protected.DELETE("/:id/select", lifecycleController.ToggleSelect)

	// Raw certificate rendering for the dashboard preview
	certificates := e.Group("/api/certificates")
	certificates.Use(middleware.JWTMiddleware())
	certificates.Use(middleware.RequireUserType("admin", "super_admin"))
	certificates.POST("/generate", certificateController.Generate)

	// Live dashboard updates
	e.GET("/ws", func(c echo.Context) error {
		return websocket.HandleWebSocket(c, hub)
	})
}
