package models

import "time"

// These structs define the JSON payloads exchanged between the admin console
// and the verification functions, plus the uniform result envelope every
// operation returns.

// VerifyDocumentRequest asks for a sign-off decision on a single document.
type VerifyDocumentRequest struct {
	DriverID        string         `json:"driverId" validate:"required"`
	DocumentType    DocumentType   `json:"documentType" validate:"required,oneof=drivingLicense aadhaarCard bikeInsurance rcBook profilePhoto other"`
	Status          DocumentStatus `json:"status" validate:"required,oneof=verified rejected"`
	Comments        string         `json:"comments,omitempty"`
	RejectionReason string         `json:"rejectionReason,omitempty"`
	ReviewedBy      string         `json:"reviewedBy,omitempty"`
}

// Reason returns the rejection reason, falling back to the free-text
// comments when only those were supplied.
func (r VerifyDocumentRequest) Reason() string {
	if r.RejectionReason != "" {
		return r.RejectionReason
	}
	return r.Comments
}

// DriverDecisionRequest is an explicit driver-level approve or reject,
// bypassing per-document aggregation.
type DriverDecisionRequest struct {
	DriverID  string `json:"driverId" validate:"required"`
	Decision  string `json:"status" validate:"required,oneof=approved rejected"`
	Notes     string `json:"notes,omitempty"`
	Reason    string `json:"reason,omitempty"`
	DecidedBy string `json:"decidedBy,omitempty"`
}

// VerifyDocumentResult reports the outcome of a document sign-off, including
// the driver status recomputed after the write. Degraded marks writes that
// bypassed the primary API and landed in the record store instead.
type VerifyDocumentResult struct {
	DriverID     string         `json:"driverId"`
	DocumentType DocumentType   `json:"documentType"`
	Status       DocumentStatus `json:"status"`
	Degraded     bool           `json:"degraded,omitempty"`
	DriverStatus StatusValue    `json:"driverStatus"`
}

// DriverResyncResult is the per-driver line item of a resync.
type DriverResyncResult struct {
	DriverID string             `json:"driverId"`
	Status   VerificationStatus `json:"status,omitempty"`
	Error    string             `json:"error,omitempty"`
}

// ResyncReport summarizes a bulk resync. Per-driver failures are collected
// here rather than failing the batch.
type ResyncReport struct {
	BatchID    string               `json:"batchId"`
	Total      int                  `json:"total"`
	Succeeded  int                  `json:"succeeded"`
	Failed     int                  `json:"failed"`
	Results    []DriverResyncResult `json:"results"`
	StartedAt  time.Time            `json:"startedAt"`
	FinishedAt time.Time            `json:"finishedAt"`
}

// ErrorPayload is the stable error shape surfaced to callers. Code is from
// the fixed taxonomy; raw cause text stays in server logs.
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Result is the envelope every exposed operation returns.
type Result struct {
	Success bool          `json:"success"`
	Data    any           `json:"data,omitempty"`
	Error   *ErrorPayload `json:"error,omitempty"`
}

// OK wraps data in a successful envelope.
func OK(data any) Result {
	return Result{Success: true, Data: data}
}

// Fail builds an error envelope with a stable code.
func Fail(code, message string) Result {
	return Result{Success: false, Error: &ErrorPayload{Code: code, Message: message}}
}
