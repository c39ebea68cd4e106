// controllers/certificate_controller.go
package controllers

import (
	"encoding/base64"
	"log"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/truesuntrading/warranty_backend/models"
	"github.com/truesuntrading/warranty_backend/services"
)

const docxContentType = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"

// CertificateController renders warranty certificates from a raw placeholder
// payload, independent of the request lifecycle.
type CertificateController struct {
	Certificates *services.CertificateService
}

func NewCertificateController(certificates *services.CertificateService) *CertificateController {
	return &CertificateController{Certificates: certificates}
}

// Generate fills the certificate template with the posted placeholder values
// and returns the document. With ?format=json the document is returned
// base64-encoded inside the JSON envelope; otherwise it is streamed as a
// docx attachment.
func (cc *CertificateController) Generate(c echo.Context) error {
	var payload map[string]string
	if err := c.Bind(&payload); err != nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Invalid request body",
		})
	}
	if len(payload) == 0 {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Placeholder payload is required",
		})
	}

	document, err := cc.Certificates.GenerateFromPayload(c.Request().Context(), payload)
	if err != nil {
		log.Printf("Certificate generation failed: %v", err)
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Certificate generation failed",
		})
	}

	if c.QueryParam("format") == "json" {
		return c.JSON(http.StatusOK, map[string]interface{}{
			"success": true,
			"file":    base64.StdEncoding.EncodeToString(document),
		})
	}

	c.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="warranty-certificate.docx"`)
	return c.Blob(http.StatusOK, docxContentType, document)
}
