package verify

import (
	"strings"
	"time"

	"github.com/Vaigainathan/E-Pickup-Admin-sub000/internal/models"
)

// The three sources never agreed on field names: the API emits camelCase,
// older record-store documents are snake_case, and several synonyms
// accumulated over the years. Each logical field owns an ordered alias list,
// probed first-non-empty-wins, so a new alias is one line here instead of a
// change to merge logic.
var fieldAliases = map[string][]string{
	"url":               {"url", "downloadURL", "downloadUrl", "download_url", "fileUrl", "file_url", "documentUrl", "document_url", "link"},
	"status":            {"status", "verificationStatus", "verification_status", "state"},
	"fileName":          {"fileName", "file_name", "filename", "name"},
	"contentType":       {"contentType", "content_type", "mimeType", "mime_type"},
	"sizeBytes":         {"sizeBytes", "size_bytes", "size", "fileSize", "file_size"},
	"uploadedAt":        {"uploadedAt", "uploaded_at", "createdAt", "created_at", "timestamp"},
	"verified":          {"verified", "isVerified", "is_verified"},
	"verificationNotes": {"verificationNotes", "verification_notes", "notes", "comments"},
	"rejectionReason":   {"rejectionReason", "rejection_reason", "reason"},
	"folder":            {"folder", "path"},
	"sourcePath":        {"sourcePath", "source_path", "storagePath", "storage_path"},
}

// typeKeyAliases lists, per canonical type, the keys under which the sources
// have historically filed that document inside a "documents" object.
var typeKeyAliases = map[models.DocumentType][]string{
	models.DocTypeDrivingLicense: {"drivingLicense", "driving_license", "drivinglicense", "license", "dl"},
	models.DocTypeAadhaarCard:    {"aadhaarCard", "aadhaar_card", "aadharCard", "aadhar_card", "aadhaar", "aadhar"},
	models.DocTypeBikeInsurance:  {"bikeInsurance", "bike_insurance", "vehicleInsurance", "vehicle_insurance", "insurance"},
	models.DocTypeRCBook:         {"rcBook", "rc_book", "rcbook", "registrationCertificate", "registration_certificate", "rc"},
	models.DocTypeProfilePhoto:   {"profilePhoto", "profile_photo", "profilePicture", "profile_picture", "photo"},
}

// ExtractDocumentSet pulls every classifiable record out of a raw
// "documents" object (as decoded from JSON or Firestore) into a
// PartialDocumentSet. Keys that match no canonical type are classified by
// name and kept under other when nothing matches.
func ExtractDocumentSet(documents map[string]any, driverID string, origin models.SourceOrigin) *models.PartialDocumentSet {
	set := models.NewPartialDocumentSet()
	if documents == nil {
		return set
	}

	claimed := make(map[string]bool)
	for _, typ := range models.RequiredDocumentTypes {
		for _, key := range typeKeyAliases[typ] {
			raw, ok := documents[key]
			if !ok {
				continue
			}
			claimed[key] = true
			if _, filled := set.Records[typ]; filled {
				continue // first alias wins
			}
			if rec := NormalizeRecord(raw, driverID, typ, origin); rec != nil {
				set.Records[typ] = *rec
			}
		}
	}

	// Leftover keys are legacy or ad hoc uploads; classify by key name.
	for key, raw := range documents {
		if claimed[key] {
			continue
		}
		typ := Classify(key, "")
		rec := NormalizeRecord(raw, driverID, typ, origin)
		if rec == nil {
			continue
		}
		if typ == models.DocTypeOther {
			set.Extras = append(set.Extras, *rec)
			continue
		}
		if _, filled := set.Records[typ]; !filled {
			set.Records[typ] = *rec
		}
	}
	return set
}

// NormalizeRecord converts one raw per-source document record, whatever its
// shape, into a canonical DocumentRecord. It returns nil when no alias
// yields a URL: that is "not uploaded", not an error. Legacy records that
// are a bare URL string instead of an object are accepted too.
func NormalizeRecord(raw any, driverID string, typ models.DocumentType, origin models.SourceOrigin) *models.DocumentRecord {
	fields, ok := raw.(map[string]any)
	if !ok {
		// Oldest shape: the value under the type key is the URL itself.
		if url, isString := raw.(string); isString && url != "" {
			return &models.DocumentRecord{
				DriverID: driverID,
				Type:     typ,
				URL:      url,
				Status:   models.DocStatusPending,
				Origin:   origin,
			}
		}
		return nil
	}

	url := stringField(fields, "url")
	if url == "" {
		return nil
	}

	status := normalizeStatus(stringField(fields, "status"))
	if status == "" {
		// The verified flag only counts when no status field exists at all;
		// otherwise status wins, whatever the flag claims.
		if b, found := boolField(fields, "verified"); found && b {
			status = models.DocStatusVerified
		} else {
			status = models.DocStatusPending
		}
	}

	rec := &models.DocumentRecord{
		DriverID:          driverID,
		Type:              typ,
		URL:               url,
		FileName:          stringField(fields, "fileName"),
		ContentType:       stringField(fields, "contentType"),
		SizeBytes:         intField(fields, "sizeBytes"),
		UploadedAt:        timeField(fields, "uploadedAt"),
		Status:            status,
		Verified:          status == models.DocStatusVerified,
		VerificationNotes: stringField(fields, "verificationNotes"),
		RejectionReason:   stringField(fields, "rejectionReason"),
		Origin:            origin,
		Folder:            stringField(fields, "folder"),
		SourcePath:        stringField(fields, "sourcePath"),
	}
	return rec
}

// normalizeStatus folds the status spellings seen across sources onto the
// canonical three. Unknown non-empty values are treated as pending rather
// than dropped, so a record never loses its artifact over a bad status.
func normalizeStatus(s string) models.DocumentStatus {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return ""
	case "verified", "approved", "accepted":
		return models.DocStatusVerified
	case "rejected", "declined", "denied":
		return models.DocStatusRejected
	default:
		return models.DocStatusPending
	}
}

func stringField(fields map[string]any, logical string) string {
	for _, alias := range fieldAliases[logical] {
		if v, ok := fields[alias]; ok {
			if s, isString := v.(string); isString && s != "" {
				return s
			}
		}
	}
	return ""
}

func boolField(fields map[string]any, logical string) (value, found bool) {
	for _, alias := range fieldAliases[logical] {
		if v, ok := fields[alias]; ok {
			if b, isBool := v.(bool); isBool {
				return b, true
			}
		}
	}
	return false, false
}

func intField(fields map[string]any, logical string) int64 {
	for _, alias := range fieldAliases[logical] {
		v, ok := fields[alias]
		if !ok {
			continue
		}
		switch n := v.(type) {
		case int64:
			return n
		case int:
			return int64(n)
		case float64:
			return int64(n)
		}
	}
	return 0
}

// timeField coerces the timestamp shapes the sources produce: native
// time.Time from Firestore, RFC 3339 strings from the API, and numeric
// epochs from the oldest records. Absent or unparseable values stay nil;
// timestamps are never fabricated.
func timeField(fields map[string]any, logical string) *time.Time {
	for _, alias := range fieldAliases[logical] {
		v, ok := fields[alias]
		if !ok {
			continue
		}
		switch t := v.(type) {
		case time.Time:
			return &t
		case string:
			if parsed, err := time.Parse(time.RFC3339, t); err == nil {
				return &parsed
			}
		case float64:
			return epochTime(int64(t))
		case int64:
			return epochTime(t)
		}
	}
	return nil
}

func epochTime(n int64) *time.Time {
	if n <= 0 {
		return nil
	}
	var t time.Time
	if n > 1e12 { // milliseconds
		t = time.UnixMilli(n).UTC()
	} else {
		t = time.Unix(n, 0).UTC()
	}
	return &t
}
