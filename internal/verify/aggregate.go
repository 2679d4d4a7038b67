package verify

import (
	"github.com/Vaigainathan/E-Pickup-Admin-sub000/internal/models"
)

// AggregateStatus computes the driver-level status from the merged document
// set. It is a pure function of the five required types; other documents are
// ignored. The policy is conjunctive: a driver is verified only when every
// required document is uploaded and individually verified.
//
// A required type with no uploaded artifact is excluded entirely: absence is
// the driver's move, not the reviewer's, so a set of only-verified uploads
// with gaps reports pending rather than pending_verification.
func AggregateStatus(documents map[models.DocumentType]models.DocumentRecord) models.VerificationStatus {
	present := 0
	verified := 0
	rejected := false

	for _, typ := range models.RequiredDocumentTypes {
		rec, ok := documents[typ]
		if !ok || !rec.Uploaded() {
			continue
		}
		present++
		switch rec.Status {
		case models.DocStatusVerified:
			verified++
		case models.DocStatusRejected:
			rejected = true
		}
	}

	switch {
	case present == 0:
		return models.VerificationPending
	case rejected:
		return models.VerificationRejected
	case verified == len(models.RequiredDocumentTypes):
		return models.VerificationVerified
	case verified > 0 && verified < present:
		return models.VerificationPendingReview
	default:
		return models.VerificationPending
	}
}

// ResolveStatus applies override precedence: an explicit admin decision on
// the whole driver is returned verbatim and is sticky until replaced by
// another driver-level decision. Otherwise the computed aggregate is tagged
// as such.
func ResolveStatus(override *models.StatusValue, documents map[models.DocumentType]models.DocumentRecord) models.StatusValue {
	if override != nil && override.IsOverride() {
		return *override
	}
	return models.StatusValue{
		Kind:  models.StatusComputed,
		Value: AggregateStatus(documents),
	}
}

// MissingRequired lists the required types with no uploaded artifact, for
// diagnostics and console badge counts.
func MissingRequired(documents map[models.DocumentType]models.DocumentRecord) []models.DocumentType {
	missing := make([]models.DocumentType, 0, len(models.RequiredDocumentTypes))
	for _, typ := range models.RequiredDocumentTypes {
		if rec, ok := documents[typ]; !ok || !rec.Uploaded() {
			missing = append(missing, typ)
		}
	}
	return missing
}
