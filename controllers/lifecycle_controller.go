// controllers/lifecycle_controller.go
package controllers

import (
	"encoding/base64"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"

	"github.com/labstack/echo/v4"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/truesuntrading/warranty_backend/middleware"
	"github.com/truesuntrading/warranty_backend/models"
	"github.com/truesuntrading/warranty_backend/services"
	"github.com/truesuntrading/warranty_backend/utils"
	"github.com/truesuntrading/warranty_backend/websocket"
)

// LifecycleController exposes the accept/reject/bulk-accept workflow over
// HTTP, delegating all transition logic to the lifecycle service.
type LifecycleController struct {
	Lifecycle *services.LifecycleService
	Hub       *websocket.Hub
}

func NewLifecycleController(lifecycle *services.LifecycleService, hub *websocket.Hub) *LifecycleController {
	return &LifecycleController{Lifecycle: lifecycle, Hub: hub}
}

// Accept transitions a single request to accepted and returns the generated
// certificate with a verification QR code.
func (lc *LifecycleController) Accept(c echo.Context) error {
	claims := middleware.GetUserFromToken(c)
	requestID := c.Param("id")
	if requestID == "" {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Request ID is required",
		})
	}

	result, err := lc.Lifecycle.Accept(c.Request().Context(), claims.Email, requestID)
	if err != nil {
		return lifecycleErrorResponse(c, err)
	}

	lc.Hub.NotifyStatusChanged(map[string]interface{}{
		"requestId": requestID,
		"status":    models.StatusAccepted,
	})

	qrCode, err := utils.GenerateVerificationQR(verificationLink(requestID))
	if err != nil {
		log.Printf("Failed to generate verification QR for request %s: %v", requestID, err)
	}

	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Request accepted successfully",
		Data: map[string]interface{}{
			"request":        result.Request,
			"certificate":    base64.StdEncoding.EncodeToString(result.Certificate),
			"verificationQr": qrCode,
		},
	})
}

// Reject transitions a single request to rejected with a required reason.
func (lc *LifecycleController) Reject(c echo.Context) error {
	claims := middleware.GetUserFromToken(c)
	requestID := c.Param("id")
	if requestID == "" {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Request ID is required",
		})
	}

	var rejectReq models.RejectRequest
	if err := c.Bind(&rejectReq); err != nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Invalid request body",
		})
	}

	request, err := lc.Lifecycle.Reject(c.Request().Context(), claims.Email, requestID, rejectReq.Reason)
	if err != nil {
		return lifecycleErrorResponse(c, err)
	}

	lc.Hub.NotifyStatusChanged(map[string]interface{}{
		"requestId": requestID,
		"status":    models.StatusRejected,
	})

	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Request rejected successfully",
		Data:    request,
	})
}

// BulkAccept accepts a set of pending requests one at a time, returning the
// per-item outcomes.
func (lc *LifecycleController) BulkAccept(c echo.Context) error {
	claims := middleware.GetUserFromToken(c)

	var bulkReq models.BulkAcceptRequest
	if err := c.Bind(&bulkReq); err != nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Invalid request body",
		})
	}
	if err := c.Validate(&bulkReq); err != nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "At least one request ID is required",
		})
	}

	results := lc.Lifecycle.BulkAccept(c.Request().Context(), claims.Email, bulkReq.IDs)

	accepted := 0
	for _, result := range results {
		if result.Accepted {
			accepted++
			lc.Hub.NotifyStatusChanged(map[string]interface{}{
				"requestId": result.ID,
				"status":    models.StatusAccepted,
			})
		}
	}

	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: fmt.Sprintf("Bulk accept processed: %d of %d accepted", accepted, len(results)),
		Data: map[string]interface{}{
			"results": results,
		},
	})
}

// ToggleSelect adds or removes a request from the bulk selection set.
func (lc *LifecycleController) ToggleSelect(c echo.Context) error {
	requestID := c.Param("id")
	if requestID == "" {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Request ID is required",
		})
	}

	selected := lc.Lifecycle.ToggleSelect(requestID)

	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Selection updated",
		Data: map[string]interface{}{
			"requestId": requestID,
			"selected":  selected,
			"selection": lc.Lifecycle.SelectedIDs(),
		},
	})
}

// verificationLink builds the public certificate verification URL.
func verificationLink(requestID string) string {
	baseURL := os.Getenv("PUBLIC_BASE_URL")
	if baseURL == "" {
		baseURL = "http://localhost:8080"
	}
	return fmt.Sprintf("%s/api/requests/%s/verify", baseURL, requestID)
}

// lifecycleErrorResponse maps lifecycle service errors onto HTTP responses.
func lifecycleErrorResponse(c echo.Context, err error) error {
	var validationErr *services.ValidationError
	var collaboratorErr *services.CollaboratorError

	switch {
	case errors.As(err, &validationErr):
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: validationErr.Error(),
		})
	case errors.Is(err, services.ErrAlreadyProcessed):
		return c.JSON(http.StatusConflict, models.Response{
			Status:  http.StatusConflict,
			Message: "Request is already processed",
		})
	case errors.Is(err, services.ErrInvalidTransition):
		return c.JSON(http.StatusConflict, models.Response{
			Status:  http.StatusConflict,
			Message: "Invalid status transition",
		})
	case errors.Is(err, services.ErrNotFound), errors.Is(err, mongo.ErrNoDocuments):
		return c.JSON(http.StatusNotFound, models.Response{
			Status:  http.StatusNotFound,
			Message: "Request not found",
		})
	case errors.As(err, &collaboratorErr):
		message := "Downstream service failed"
		if collaboratorErr.Reverted {
			message = "Certificate generation failed; request reverted to pending"
		}
		return c.JSON(http.StatusBadGateway, models.Response{
			Status:  http.StatusBadGateway,
			Message: message,
		})
	}

	log.Printf("Unexpected lifecycle error: %v", err)
	return c.JSON(http.StatusInternalServerError, models.Response{
		Status:  http.StatusInternalServerError,
		Message: "Internal server error",
	})
}
