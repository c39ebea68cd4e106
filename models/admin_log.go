package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Admin action tags recorded in the audit log.
const (
	ActionLogin    = "LOGIN"
	ActionAccepted = "ACCEPTED"
	ActionRejected = "REJECTED"
)

// LogDetails is the structured detail payload of an audit entry. All fields
// are optional; rejection entries carry the reason.
type LogDetails struct {
	WarrantyCertificateNo string `json:"warrantyCertificateNo,omitempty" bson:"warrantyCertificateNo,omitempty"`
	IntegratorName        string `json:"integratorName,omitempty" bson:"integratorName,omitempty"`
	Reason                string `json:"reason,omitempty" bson:"reason,omitempty"`
}

// AdminLogEntry records a single admin action. The timestamp is assigned by
// the server at write time.
type AdminLogEntry struct {
	ID         primitive.ObjectID `json:"id,omitempty" bson:"_id,omitempty"`
	AdminEmail string             `json:"adminEmail" bson:"adminEmail"`
	Action     string             `json:"action" bson:"action"`
	Details    LogDetails         `json:"details,omitempty" bson:"details,omitempty"`
	Timestamp  time.Time          `json:"timestamp" bson:"timestamp"`
}

// AdminLogRequest is the body of the audit-log write endpoint.
type AdminLogRequest struct {
	AdminEmail string     `json:"adminEmail" validate:"required,email"`
	Action     string     `json:"action" validate:"required"`
	Details    LogDetails `json:"details"`
}
