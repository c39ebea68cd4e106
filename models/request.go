package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Request lifecycle statuses.
const (
	StatusPending  = "pending"
	StatusAccepted = "accepted"
	StatusRejected = "rejected"
)

// VerificationRequest is a warranty verification request submitted by a
// system integrator.
type VerificationRequest struct {
	ID                     primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	IntegratorName         string             `json:"integratorName" bson:"integratorName"`
	OfficeAddress          string             `json:"officeAddress" bson:"officeAddress"`
	ContactPerson          string             `json:"contactPerson" bson:"contactPerson"`
	ContactNo              string             `json:"contactNo" bson:"contactNo"`
	Email                  string             `json:"email" bson:"email"`
	CustomerProjectSite    string             `json:"customerProjectSite" bson:"customerProjectSite"`
	CustomerContact        string             `json:"customerContact" bson:"customerContact"`
	CustomerAlternate      string             `json:"customerAlternate,omitempty" bson:"customerAlternate,omitempty"`
	CustomerEmail          string             `json:"customerEmail" bson:"customerEmail"`
	CustomerAlternateEmail string             `json:"customerAlternateEmail,omitempty" bson:"customerAlternateEmail,omitempty"`
	SerialNumbers          []string           `json:"serialNumbers" bson:"serialNumbers"`
	SitePictures           []string           `json:"sitePictures,omitempty" bson:"sitePictures,omitempty"`

	// Certificate fields, filled in by an admin before acceptance.
	WarrantyCertificateNo string `json:"warrantyCertificateNo,omitempty" bson:"warrantyCertificateNo,omitempty"`
	PremierInvoiceNo      string `json:"premierInvoiceNo,omitempty" bson:"premierInvoiceNo,omitempty"`
	CertificateIssueDate  string `json:"certificateIssueDate,omitempty" bson:"certificateIssueDate,omitempty"`
	ProductDescription    string `json:"productDescription,omitempty" bson:"productDescription,omitempty"`

	Status          string    `json:"status" bson:"status"`
	RejectionReason string    `json:"rejectionReason,omitempty" bson:"rejectionReason,omitempty"`
	ProcessedBy     string    `json:"processedBy,omitempty" bson:"processedBy,omitempty"`
	CreatedAt       time.Time `json:"createdAt" bson:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt,omitempty" bson:"updatedAt,omitempty"`
}

// HasCertificateFields reports whether every field needed to issue a
// certificate has been filled in.
func (r *VerificationRequest) HasCertificateFields() bool {
	return r.WarrantyCertificateNo != "" &&
		r.PremierInvoiceNo != "" &&
		r.CertificateIssueDate != "" &&
		r.ProductDescription != ""
}

// SubmissionRequest is the public payload for creating a verification request.
type SubmissionRequest struct {
	IntegratorName         string   `json:"integratorName" validate:"required"`
	OfficeAddress          string   `json:"officeAddress" validate:"required"`
	ContactPerson          string   `json:"contactPerson" validate:"required"`
	ContactNo              string   `json:"contactNo" validate:"required"`
	Email                  string   `json:"email" validate:"required,email"`
	CustomerProjectSite    string   `json:"customerProjectSite" validate:"required"`
	CustomerContact        string   `json:"customerContact" validate:"required"`
	CustomerAlternate      string   `json:"customerAlternate"`
	CustomerEmail          string   `json:"customerEmail" validate:"required,email"`
	CustomerAlternateEmail string   `json:"customerAlternateEmail" validate:"omitempty,email"`
	SerialNumbers          []string `json:"serialNumbers" validate:"required,min=1,max=50"`
	SitePictures           []string `json:"sitePictures"`
}

// CertificateFieldsRequest updates the certificate details on a pending
// request. Empty fields are left unchanged.
type CertificateFieldsRequest struct {
	WarrantyCertificateNo string `json:"warrantyCertificateNo"`
	PremierInvoiceNo      string `json:"premierInvoiceNo"`
	CertificateIssueDate  string `json:"certificateIssueDate"`
	ProductDescription    string `json:"productDescription"`
	ContactPerson         string `json:"contactPerson"`
	ContactNo             string `json:"contactNo"`
	Email                 string `json:"email"`
}

// RejectRequest carries the mandatory rejection reason.
type RejectRequest struct {
	Reason string `json:"reason"`
}

// BulkAcceptRequest lists the request ids to accept in one batch.
type BulkAcceptRequest struct {
	IDs []string `json:"ids" validate:"required,min=1"`
}

// RequestPage is one page of the admin dashboard list.
type RequestPage struct {
	Requests   []VerificationRequest `json:"requests"`
	NextCursor string                `json:"nextCursor,omitempty"`
	HasMore    bool                  `json:"hasMore"`
}
