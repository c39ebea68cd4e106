// services/rejection_service.go
package services

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/gomail.v2"
)

// RejectionService emails rejection notices to requesters.
type RejectionService struct{}

func NewRejectionService() *RejectionService {
	return &RejectionService{}
}

// SendRejection sends a plain-text rejection notice.
func (rs *RejectionService) SendRejection(ctx context.Context, email, name, reason, certificateNo string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

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

	body := fmt.Sprintf("Dear %s,\n\nYour installation verification request has been reviewed and could not be accepted.\n\nReason: %s\n", name, reason)
	if certificateNo != "" {
		body += fmt.Sprintf("\nReference certificate number: %s\n", certificateNo)
	}
	body += "\nPlease correct the issue above and submit a new request.\n\nBest regards,\nPremier Energies Warranty Team"

	m := gomail.NewMessage()
	m.SetHeader("From", m.FormatAddress(smtpUser, "Premier Energies"))
	m.SetHeader("To", email)
	m.SetHeader("Subject", "Warranty Verification Request Rejected")
	m.SetBody("text/plain", body)

	d := gomail.NewDialer(smtpHost, smtpPort, smtpUser, smtpPass)
	return d.DialAndSend(m)
}
