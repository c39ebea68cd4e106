// controllers/admin_log_controller.go
package controllers

import (
	"log"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/truesuntrading/warranty_backend/middleware"
	"github.com/truesuntrading/warranty_backend/models"
	"github.com/truesuntrading/warranty_backend/repositories"
)

// AdminLogController exposes the admin audit log.
type AdminLogController struct {
	Repo *repositories.AdminLogRepository
}

func NewAdminLogController(repo *repositories.AdminLogRepository) *AdminLogController {
	return &AdminLogController{Repo: repo}
}

// Create records an admin action. The admin email is taken from the token,
// not the request body.
func (alc *AdminLogController) Create(c echo.Context) error {
	claims := middleware.GetUserFromToken(c)

	var logReq models.AdminLogRequest
	if err := c.Bind(&logReq); err != nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Invalid request body",
		})
	}
	if logReq.Action == "" {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Action is required",
		})
	}

	if err := alc.Repo.Log(c.Request().Context(), claims.Email, logReq.Action, logReq.Details); err != nil {
		log.Printf("Failed to record admin action: %v", err)
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to record admin action",
		})
	}

	return c.JSON(http.StatusCreated, models.Response{
		Status:  http.StatusCreated,
		Message: "Action recorded",
	})
}

// List returns the audit log, newest first. Superadmin only.
func (alc *AdminLogController) List(c echo.Context) error {
	entries, err := alc.Repo.List(c.Request().Context())
	if err != nil {
		log.Printf("Failed to load admin logs: %v", err)
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to load admin logs",
		})
	}

	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Admin logs retrieved successfully",
		Data:    entries,
	})
}
