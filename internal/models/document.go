package models

import "time"

// DocumentType is the canonical category of a driver document. Raw records
// arrive keyed by many historical spellings; the verify package maps them all
// onto these values.
type DocumentType string

const (
	DocTypeDrivingLicense DocumentType = "drivingLicense"
	DocTypeAadhaarCard    DocumentType = "aadhaarCard"
	DocTypeBikeInsurance  DocumentType = "bikeInsurance"
	DocTypeRCBook         DocumentType = "rcBook"
	DocTypeProfilePhoto   DocumentType = "profilePhoto"

	// DocTypeOther is the catch-all for artifacts that cannot be classified.
	// They are retained for display but never count toward verification.
	DocTypeOther DocumentType = "other"
)

// RequiredDocumentTypes is the fixed set a driver must have verified before
// the driver as a whole can be verified. This list is the single source of
// truth for both aggregation and the missing-document diagnostics.
var RequiredDocumentTypes = []DocumentType{
	DocTypeDrivingLicense,
	DocTypeAadhaarCard,
	DocTypeBikeInsurance,
	DocTypeRCBook,
	DocTypeProfilePhoto,
}

// IsRequired reports whether t is one of the five required document types.
func (t DocumentType) IsRequired() bool {
	for _, req := range RequiredDocumentTypes {
		if t == req {
			return true
		}
	}
	return false
}

// DocumentStatus is the administrative sign-off state of a single document.
type DocumentStatus string

const (
	DocStatusPending  DocumentStatus = "pending"
	DocStatusVerified DocumentStatus = "verified"
	DocStatusRejected DocumentStatus = "rejected"
)

// SourceOrigin identifies which adapter produced a record. It drives merge
// priority and is never meaningful to drivers themselves.
type SourceOrigin string

const (
	SourceAPI           SourceOrigin = "api"
	SourceDocumentStore SourceOrigin = "document-store"
	SourceStorage       SourceOrigin = "storage"
)

// DocumentRecord is the normalized representation of one uploaded artifact
// and its review state, whichever source it came from.
type DocumentRecord struct {
	DriverID    string         `firestore:"driverId,omitempty" json:"driverId,omitempty"`
	Type        DocumentType   `firestore:"documentType,omitempty" json:"documentType"`
	URL         string         `firestore:"url,omitempty" json:"url,omitempty"`
	FileName    string         `firestore:"fileName,omitempty" json:"fileName,omitempty"`
	ContentType string         `firestore:"contentType,omitempty" json:"contentType,omitempty"`
	SizeBytes   int64          `firestore:"sizeBytes,omitempty" json:"sizeBytes,omitempty"`
	UploadedAt  *time.Time     `firestore:"uploadedAt,omitempty" json:"uploadedAt,omitempty"`
	Status      DocumentStatus `firestore:"status,omitempty" json:"status"`

	// Verified mirrors Status for backward compatibility with older records.
	// Invariant: Verified == (Status == DocStatusVerified); Status wins when a
	// raw record disagrees.
	Verified bool `firestore:"verified" json:"verified"`

	VerificationNotes string `firestore:"verificationNotes,omitempty" json:"verificationNotes,omitempty"`
	RejectionReason   string `firestore:"rejectionReason,omitempty" json:"rejectionReason,omitempty"`

	Origin     SourceOrigin `firestore:"-" json:"sourceOrigin,omitempty"`
	Folder     string       `firestore:"-" json:"folder,omitempty"`
	SourcePath string       `firestore:"-" json:"sourcePath,omitempty"`
}

// Uploaded reports whether the record points at a retrievable artifact.
// Records without a URL are placeholders, excluded from aggregation.
func (r DocumentRecord) Uploaded() bool {
	return r.URL != ""
}

// VerificationStatus is the driver-level aggregate state.
type VerificationStatus string

const (
	VerificationPending       VerificationStatus = "pending"
	VerificationPendingReview VerificationStatus = "pending_verification"
	VerificationVerified      VerificationStatus = "verified"
	VerificationRejected      VerificationStatus = "rejected"
)

// StatusKind distinguishes a status derived from the document set from an
// explicit admin decision on the whole driver.
type StatusKind string

const (
	StatusComputed StatusKind = "computed"
	StatusOverride StatusKind = "override"
)

// StatusValue is the driver verification status as a tagged value, so that
// override precedence is structural rather than a convention on one field.
// Overrides are sticky: they survive resyncs until an explicit driver-level
// decision replaces them.
type StatusValue struct {
	Kind   StatusKind         `firestore:"kind" json:"kind"`
	Value  VerificationStatus `firestore:"value" json:"value"`
	SetBy  string             `firestore:"setBy,omitempty" json:"setBy,omitempty"`
	SetAt  time.Time          `firestore:"setAt,omitempty" json:"setAt,omitempty"`
	Notes  string             `firestore:"notes,omitempty" json:"notes,omitempty"`
	Reason string             `firestore:"reason,omitempty" json:"reason,omitempty"`
}

// IsOverride reports whether the value is a sticky admin decision.
func (s StatusValue) IsOverride() bool {
	return s.Kind == StatusOverride
}

// PartialDocumentSet is what a single source adapter found for one driver.
// Records holds at most one classified record per type; Extras keeps
// unclassifiable artifacts so nothing discovered is silently dropped.
type PartialDocumentSet struct {
	DriverName string
	Records    map[DocumentType]DocumentRecord
	Extras     []DocumentRecord
}

// NewPartialDocumentSet returns an empty set ready for inserts.
func NewPartialDocumentSet() *PartialDocumentSet {
	return &PartialDocumentSet{Records: make(map[DocumentType]DocumentRecord)}
}

// SourceOutcome records how one adapter fared during discovery.
type SourceOutcome struct {
	Origin  SourceOrigin `json:"source"`
	OK      bool         `json:"ok"`
	Records int          `json:"records"`
	Error   string       `json:"error,omitempty"`
}

// Diagnostics carries per-source outcomes and merge notes alongside a
// discovery result. It is informational; discovery succeeds with partial
// sources as long as the driver itself could be located.
type Diagnostics struct {
	Sources         []SourceOutcome `json:"sources"`
	MissingRequired []DocumentType  `json:"missingRequired"`
	Conflicts       []string        `json:"conflicts,omitempty"`
}

// DriverDocuments is the full discovery result for one driver.
type DriverDocuments struct {
	DriverID    string                          `json:"driverId"`
	DriverName  string                          `json:"driverName,omitempty"`
	Documents   map[DocumentType]DocumentRecord `json:"documents"`
	Extras      []DocumentRecord                `json:"extras,omitempty"`
	Status      StatusValue                     `json:"verificationStatus"`
	IsVerified  bool                            `json:"isVerified"`
	Diagnostics Diagnostics                     `json:"diagnostics"`
}
