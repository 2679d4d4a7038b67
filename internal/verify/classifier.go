package verify

import (
	"strings"

	"github.com/Vaigainathan/E-Pickup-Admin-sub000/internal/models"
)

// classificationPatterns maps each canonical document type to the folder and
// filename fragments that identify it. Order matters twice over: types are
// tried top to bottom and the first matching fragment wins, so the more
// specific vehicle-document fragments sit above the generic identity ones.
var classificationPatterns = []struct {
	Type     models.DocumentType
	Patterns []string
}{
	{models.DocTypeDrivingLicense, []string{"license", "driving", "dl"}},
	{models.DocTypeBikeInsurance, []string{"insurance", "policy", "coverage"}},
	{models.DocTypeRCBook, []string{"registration", "rc", "vehicle"}},
	{models.DocTypeAadhaarCard, []string{"identity", "id", "aadhar", "aadhaar", "pan", "passport", "voter"}},
	{models.DocTypeProfilePhoto, []string{"photo", "picture", "image", "profile"}},
}

// Classify maps a raw filename or storage key to a canonical document type.
// The folder hint is checked before the filename: folder placement is the
// stronger signal where the storage tree enforces structure, while filename
// patterns catch legacy flat uploads. Anything without a signal is "other";
// a bare file extension says nothing about which document this is.
func Classify(fileNameOrKey, folderHint string) models.DocumentType {
	if typ, ok := matchPatterns(folderHint); ok {
		return typ
	}
	if typ, ok := matchPatterns(fileNameOrKey); ok {
		return typ
	}
	return models.DocTypeOther
}

func matchPatterns(input string) (models.DocumentType, bool) {
	normalized := normalizeKey(input)
	if normalized == "" {
		return models.DocTypeOther, false
	}
	for _, entry := range classificationPatterns {
		for _, pattern := range entry.Patterns {
			if strings.Contains(normalized, pattern) {
				return entry.Type, true
			}
		}
	}
	return models.DocTypeOther, false
}

// normalizeKey lowercases and strips the separators the three sources use
// interchangeably, so "Driving_License" and "driving-license" compare equal.
func normalizeKey(s string) string {
	s = strings.ToLower(s)
	return strings.Map(func(r rune) rune {
		switch r {
		case '-', '_', ' ', '.', '/':
			return -1
		}
		return r
	}, s)
}
