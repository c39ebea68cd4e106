// controllers/request_controller.go
package controllers

import (
	"errors"
	"log"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/truesuntrading/warranty_backend/models"
	"github.com/truesuntrading/warranty_backend/repositories"
	"github.com/truesuntrading/warranty_backend/services"
	"github.com/truesuntrading/warranty_backend/utils"
	"github.com/truesuntrading/warranty_backend/websocket"
)

// RequestController handles submission, listing and certificate-field
// updates for verification requests.
type RequestController struct {
	Repo      *repositories.RequestRepository
	Lifecycle *services.LifecycleService
	Hub       *websocket.Hub
}

func NewRequestController(repo *repositories.RequestRepository, lifecycle *services.LifecycleService, hub *websocket.Hub) *RequestController {
	return &RequestController{Repo: repo, Lifecycle: lifecycle, Hub: hub}
}

// Submit creates a new verification request. Public endpoint used by
// integrators.
func (rc *RequestController) Submit(c echo.Context) error {
	var submission models.SubmissionRequest
	if err := c.Bind(&submission); err != nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Invalid request body",
		})
	}
	if err := c.Validate(&submission); err != nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Validation failed: " + err.Error(),
		})
	}

	request := &models.VerificationRequest{
		IntegratorName:         submission.IntegratorName,
		OfficeAddress:          submission.OfficeAddress,
		ContactPerson:          submission.ContactPerson,
		ContactNo:              submission.ContactNo,
		Email:                  submission.Email,
		CustomerProjectSite:    submission.CustomerProjectSite,
		CustomerContact:        submission.CustomerContact,
		CustomerAlternate:      submission.CustomerAlternate,
		CustomerEmail:          submission.CustomerEmail,
		CustomerAlternateEmail: submission.CustomerAlternateEmail,
		SerialNumbers:          submission.SerialNumbers,
		SitePictures:           submission.SitePictures,
	}

	created, err := rc.Repo.Create(c.Request().Context(), request)
	if err != nil {
		log.Printf("Failed to create verification request: %v", err)
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to create verification request",
		})
	}

	rc.Hub.NotifyRequestCreated(map[string]interface{}{
		"requestId":      created.ID.Hex(),
		"integratorName": created.IntegratorName,
	})

	return c.JSON(http.StatusCreated, models.Response{
		Status:  http.StatusCreated,
		Message: "Verification request submitted successfully",
		Data:    created,
	})
}

// List returns one page of requests for the admin dashboard, newest first.
func (rc *RequestController) List(c echo.Context) error {
	status := c.QueryParam("status")
	cursor := c.QueryParam("cursor")

	if status != "" && status != models.StatusPending && status != models.StatusAccepted && status != models.StatusRejected {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Unknown status filter",
		})
	}

	page, err := rc.Lifecycle.LoadPage(c.Request().Context(), status, cursor)
	if err != nil {
		log.Printf("Failed to load request page: %v", err)
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to load requests",
		})
	}

	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Requests retrieved successfully",
		Data:    page,
	})
}

// Get returns a single request by id.
func (rc *RequestController) Get(c echo.Context) error {
	requestID := c.Param("id")
	request, err := rc.Repo.Get(c.Request().Context(), requestID)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return c.JSON(http.StatusNotFound, models.Response{
				Status:  http.StatusNotFound,
				Message: "Request not found",
			})
		}
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Invalid request ID",
		})
	}

	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Request retrieved successfully",
		Data:    request,
	})
}

// UpdateCertificateFields saves certificate details on a request before
// acceptance.
func (rc *RequestController) UpdateCertificateFields(c echo.Context) error {
	requestID := c.Param("id")

	var fields models.CertificateFieldsRequest
	if err := c.Bind(&fields); err != nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Invalid request body",
		})
	}

	updated, err := rc.Repo.UpdateCertificateFields(c.Request().Context(), requestID, fields)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return c.JSON(http.StatusNotFound, models.Response{
				Status:  http.StatusNotFound,
				Message: "Request not found",
			})
		}
		log.Printf("Failed to update certificate fields for %s: %v", requestID, err)
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to update certificate fields",
		})
	}

	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Certificate fields updated successfully",
		Data:    updated,
	})
}

// Verify is the public certificate verification endpoint reached from the
// QR code on an issued certificate.
func (rc *RequestController) Verify(c echo.Context) error {
	requestID := c.Param("id")
	request, err := rc.Repo.Get(c.Request().Context(), requestID)
	if err != nil {
		return c.JSON(http.StatusNotFound, models.Response{
			Status:  http.StatusNotFound,
			Message: "Certificate not found",
		})
	}

	if request.Status != models.StatusAccepted {
		return c.JSON(http.StatusOK, models.Response{
			Status:  http.StatusOK,
			Message: "No issued certificate for this request",
			Data: map[string]interface{}{
				"valid": false,
			},
		})
	}

	qrCode, err := utils.GenerateVerificationQR(verificationLink(requestID))
	if err != nil {
		log.Printf("Failed to generate verification QR for %s: %v", requestID, err)
	}

	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Certificate is valid",
		Data: map[string]interface{}{
			"valid":                 true,
			"warrantyCertificateNo": request.WarrantyCertificateNo,
			"integratorName":        request.IntegratorName,
			"certificateIssueDate":  request.CertificateIssueDate,
			"productDescription":    request.ProductDescription,
			"verificationQr":        qrCode,
		},
	})
}
