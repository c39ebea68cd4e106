// services/certificate_service.go
package services

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"gopkg.in/gomail.v2"

	"github.com/truesuntrading/warranty_backend/models"
)

// MaxSerialSlots is the number of serial number placeholders in the
// certificate template (Serial_No1 .. Serial_No50).
const MaxSerialSlots = 50

// DefaultCertificateRecipient receives every generated certificate when no
// CERTIFICATE_RECIPIENT is configured.
const DefaultCertificateRecipient = "warranty@truesuntradingcompany.com"

// CertificateService fills the warranty certificate template and emails the
// result. A .docx file is a zip archive; the template carries {Placeholder}
// fields inside word/document.xml.
type CertificateService struct {
	templatePath string
	archiveDir   string
	recipient    string
}

// NewCertificateService creates a certificate service configured from the
// environment.
func NewCertificateService() *CertificateService {
	templatePath := os.Getenv("CERTIFICATE_TEMPLATE")
	if templatePath == "" {
		templatePath = "templates/template.docx"
	}

	recipient := os.Getenv("CERTIFICATE_RECIPIENT")
	if recipient == "" {
		recipient = DefaultCertificateRecipient
	}

	return &CertificateService{
		templatePath: templatePath,
		archiveDir:   "uploads/certificates",
		recipient:    recipient,
	}
}

// BuildPayload flattens a request into the template's placeholder mapping.
// Empty serial slots are filled with empty strings so unused placeholders
// disappear from the rendered document.
func BuildPayload(req *models.VerificationRequest) map[string]string {
	payload := map[string]string{
		// Integrator
		"Name_Id":   req.IntegratorName,
		"EPC_Addr":  req.OfficeAddress,
		"EPC_Per":   req.ContactPerson,
		"EPC_Con":   req.ContactNo,
		"EPC_Email": req.Email,

		// Customer
		"Cust_Addr":    req.CustomerProjectSite,
		"Phone_Number": req.CustomerContact,
		"Alter_Number": req.CustomerAlternate,
		"Cust_Email":   req.CustomerEmail,
		"Alter_Email":  req.CustomerAlternateEmail,

		// Certificate fields
		"Warranty_No":  req.WarrantyCertificateNo,
		"Invoice_No":   req.PremierInvoiceNo,
		"Issue_Date":   req.CertificateIssueDate,
		"Product_Desc": req.ProductDescription,
	}

	for i := 1; i <= MaxSerialSlots; i++ {
		value := ""
		if i <= len(req.SerialNumbers) {
			value = req.SerialNumbers[i-1]
		}
		payload["Serial_No"+strconv.Itoa(i)] = value
	}

	return payload
}

// FillTemplate substitutes {Key} placeholders in the document body of a docx
// template and returns the rewritten archive.
func FillTemplate(template []byte, payload map[string]string) ([]byte, error) {
	reader, err := zip.NewReader(bytes.NewReader(template), int64(len(template)))
	if err != nil {
		return nil, fmt.Errorf("failed to open template archive: %w", err)
	}

	var out bytes.Buffer
	writer := zip.NewWriter(&out)

	for _, file := range reader.File {
		rc, err := file.Open()
		if err != nil {
			writer.Close()
			return nil, fmt.Errorf("failed to open template entry %s: %w", file.Name, err)
		}
		content, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			writer.Close()
			return nil, fmt.Errorf("failed to read template entry %s: %w", file.Name, err)
		}

		// Placeholders live in the document body and in headers/footers.
		if strings.HasPrefix(file.Name, "word/") && strings.HasSuffix(file.Name, ".xml") {
			text := string(content)
			for key, value := range payload {
				text = strings.ReplaceAll(text, "{"+key+"}", xmlEscape(value))
			}
			content = []byte(text)
		}

		w, err := writer.CreateHeader(&zip.FileHeader{
			Name:   file.Name,
			Method: zip.Deflate,
		})
		if err != nil {
			writer.Close()
			return nil, fmt.Errorf("failed to write archive entry %s: %w", file.Name, err)
		}
		if _, err := w.Write(content); err != nil {
			writer.Close()
			return nil, fmt.Errorf("failed to write archive entry %s: %w", file.Name, err)
		}
	}

	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to finalize document: %w", err)
	}
	return out.Bytes(), nil
}

func xmlEscape(s string) string {
	replacer := strings.NewReplacer(
		"&", "&amp;",
		"<", "&lt;",
		">", "&gt;",
		`"`, "&quot;",
		"'", "&apos;",
	)
	return replacer.Replace(s)
}

// Generate fills the template for a request, archives a copy, and emails the
// certificate to the fixed recipient when the integrator email is present.
// The email is part of the generation contract: a send failure fails the
// whole call.
func (cs *CertificateService) Generate(ctx context.Context, req *models.VerificationRequest) ([]byte, error) {
	return cs.GenerateFromPayload(ctx, BuildPayload(req))
}

// GenerateFromPayload fills the template from a flat placeholder mapping.
func (cs *CertificateService) GenerateFromPayload(ctx context.Context, payload map[string]string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	template, err := os.ReadFile(cs.templatePath)
	if err != nil {
		return nil, fmt.Errorf("failed to load certificate template: %w", err)
	}

	document, err := FillTemplate(template, payload)
	if err != nil {
		return nil, err
	}

	cs.archiveCopy(document)

	if payload["EPC_Email"] != "" {
		if err := cs.sendCertificateEmail(document); err != nil {
			return nil, fmt.Errorf("failed to email certificate: %w", err)
		}
	}

	return document, nil
}

// archiveCopy keeps a server-side copy of every generated certificate.
// Archive failures are logged, not fatal.
func (cs *CertificateService) archiveCopy(document []byte) {
	if err := os.MkdirAll(cs.archiveDir, 0755); err != nil {
		log.Printf("Failed to create certificate archive directory: %v", err)
		return
	}
	name := filepath.Join(cs.archiveDir, uuid.New().String()+".docx")
	if err := os.WriteFile(name, document, 0644); err != nil {
		log.Printf("Failed to archive certificate copy: %v", err)
	}
}

func (cs *CertificateService) sendCertificateEmail(document []byte) error {
	smtpHost := os.Getenv("SMTP_HOST")
	smtpUser := os.Getenv("SMTP_USER")
	smtpPass := os.Getenv("SMTP_PASS")
	if smtpHost == "" || smtpUser == "" {
		return fmt.Errorf("SMTP is not configured")
	}
	smtpPort := 2525
	if portStr := os.Getenv("SMTP_PORT"); portStr != "" {
		fmt.Sscanf(portStr, "%d", &smtpPort)
	}

	m := gomail.NewMessage()
	m.SetHeader("From", m.FormatAddress(smtpUser, "Premier Energies"))
	m.SetHeader("To", cs.recipient)
	m.SetHeader("Subject", "Warranty Certificate")
	m.SetBody("text/plain", "Please find your warranty certificate attached.")
	m.Attach("warranty-certificate.docx", gomail.SetCopyFunc(func(w io.Writer) error {
		_, err := w.Write(document)
		return err
	}))

	d := gomail.NewDialer(smtpHost, smtpPort, smtpUser, smtpPass)
	return d.DialAndSend(m)
}
