package routes

import (
	"github.com/labstack/echo/v4"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/truesuntrading/warranty_backend/controllers"
	"github.com/truesuntrading/warranty_backend/middleware"
	"github.com/truesuntrading/warranty_backend/repositories"
)

// RegisterAdminRoutes sets up admin authentication and audit log routes.
func RegisterAdminRoutes(e *echo.Echo, db *mongo.Database) {
	logRepo := repositories.NewAdminLogRepository(db)
	adminController := controllers.NewAdminController(db, logRepo)
	logController := controllers.NewAdminLogController(logRepo)

	admin := e.Group("/api/admin")

	// Public routes (no auth required)
	admin.POST("/login", adminController.Login)

	// Protected routes (require admin authentication)
	protected := admin.Group("")
	protected.Use(middleware.JWTMiddleware())
	protected.Use(middleware.RequireUserType("admin", "super_admin"))
	protected.POST("/logout", adminController.Logout)

	// Super-admin protected routes
	superAdmin := admin.Group("")
	superAdmin.Use(middleware.JWTMiddleware())
	superAdmin.Use(middleware.RequireUserType("super_admin"))
	superAdmin.POST("/register", adminController.RegisterAdmin)

	// Audit log routes
	logs := e.Group("/api")
	logs.Use(middleware.JWTMiddleware())

	writeLogs := logs.Group("")
	writeLogs.Use(middleware.RequireUserType("admin", "super_admin"))
	writeLogs.POST("/admin-log", logController.Create)

	readLogs := logs.Group("")
	readLogs.Use(middleware.RequireUserType("super_admin"))
	readLogs.GET("/admin-logs", logController.List)
}
