package source

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Vaigainathan/E-Pickup-Admin-sub000/internal/models"
	"github.com/Vaigainathan/E-Pickup-Admin-sub000/internal/verify"
)

func TestAPIClientDiscoverForDriver(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/drivers/d1/documents" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer token-123" {
			t.Errorf("Authorization = %q", got)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"driverName": "Ravi Kumar",
			"documents": map[string]any{
				"drivingLicense":  map[string]any{"url": "https://cdn/dl.pdf", "status": "verified"},
				"aadhaar_card":    map[string]any{"download_url": "https://cdn/aadhaar.png"},
				"unrelated_bytes": map[string]any{"url": "https://cdn/extra.bin"},
			},
		})
	}))
	defer server.Close()

	client := NewAPIClient(APIConfig{BaseURL: server.URL, AuthToken: "token-123"})
	set, err := client.DiscoverForDriver(context.Background(), "d1")
	if err != nil {
		t.Fatalf("DiscoverForDriver failed: %v", err)
	}
	if set.DriverName != "Ravi Kumar" {
		t.Errorf("DriverName = %q", set.DriverName)
	}
	if rec := set.Records[models.DocTypeDrivingLicense]; rec.Status != models.DocStatusVerified || rec.Origin != models.SourceAPI {
		t.Errorf("driving license record wrong: %+v", rec)
	}
	if rec, ok := set.Records[models.DocTypeAadhaarCard]; !ok || rec.URL != "https://cdn/aadhaar.png" {
		t.Errorf("snake_case aadhaar shape not normalized: %+v", rec)
	}
	if len(set.Extras) != 1 {
		t.Errorf("unclassifiable document should land in extras: %+v", set.Extras)
	}
}

func TestAPIClientDriverNotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer server.Close()

	client := NewAPIClient(APIConfig{BaseURL: server.URL})
	_, err := client.DiscoverForDriver(context.Background(), "ghost")
	if verify.CodeOf(err) != verify.CodeDriverNotFound {
		t.Errorf("code = %q, want %q", verify.CodeOf(err), verify.CodeDriverNotFound)
	}
}

func TestAPIClientServerErrorIsAdapterUnavailable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream database down", http.StatusBadGateway)
	}))
	defer server.Close()

	client := NewAPIClient(APIConfig{BaseURL: server.URL})
	_, err := client.DiscoverForDriver(context.Background(), "d1")
	if verify.CodeOf(err) != verify.CodeAdapterUnavailable {
		t.Errorf("code = %q, want %q", verify.CodeOf(err), verify.CodeAdapterUnavailable)
	}
}

func TestAPIClientVerifyDocument(t *testing.T) {
	var gotPath string
	var gotBody map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		if r.Method != http.MethodPost {
			t.Errorf("method = %q", r.Method)
		}
		json.NewDecoder(r.Body).Decode(&gotBody)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := NewAPIClient(APIConfig{BaseURL: server.URL})
	err := client.VerifyDocument(context.Background(), "d1", models.DocTypeRCBook,
		models.DocStatusRejected, "plate mismatch", "number plate does not match registration")
	if err != nil {
		t.Fatalf("VerifyDocument failed: %v", err)
	}
	if gotPath != "/drivers/d1/documents/rcBook/verify" {
		t.Errorf("path = %q", gotPath)
	}
	if gotBody["status"] != "rejected" || gotBody["rejectionReason"] != "number plate does not match registration" {
		t.Errorf("body = %+v", gotBody)
	}
}

func TestAPIClientListDriverIDs(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/drivers" {
			t.Errorf("path = %q", r.URL.Path)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"drivers": []map[string]any{
				{"id": "d1"}, {"id": "d2"}, {"id": ""},
			},
		})
	}))
	defer server.Close()

	client := NewAPIClient(APIConfig{BaseURL: server.URL})
	ids, err := client.ListDriverIDs(context.Background())
	if err != nil {
		t.Fatalf("ListDriverIDs failed: %v", err)
	}
	if len(ids) != 2 || ids[0] != "d1" || ids[1] != "d2" {
		t.Errorf("ids = %v, want [d1 d2] with blanks dropped", ids)
	}
}
