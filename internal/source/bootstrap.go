package source

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/Vaigainathan/E-Pickup-Admin-sub000/internal/gcp"
	"github.com/Vaigainathan/E-Pickup-Admin-sub000/internal/verify"
)

// NewVerificationService wires the full reconciliation service from
// environment configuration: the primary API client, the Firestore record
// store, and the storage tree, in that priority order.
func NewVerificationService(ctx context.Context) (*verify.Service, error) {
	projectID := gcp.GetEnv("GCP_PROJECT", "")
	if projectID == "" {
		return nil, fmt.Errorf("GCP_PROJECT environment variable must be set")
	}
	baseURL := gcp.GetEnv("PRIMARY_API_BASE_URL", "")
	if baseURL == "" {
		return nil, fmt.Errorf("PRIMARY_API_BASE_URL must be set")
	}
	bucket := gcp.GetEnv("DOCUMENTS_BUCKET", "")
	if bucket == "" {
		return nil, fmt.Errorf("DOCUMENTS_BUCKET must be set")
	}

	firestoreClient, err := gcp.NewFirestoreClient(ctx, projectID)
	if err != nil {
		return nil, err
	}
	storageClient, err := gcp.NewStorageClient(ctx)
	if err != nil {
		return nil, err
	}

	api := NewAPIClient(APIConfig{
		BaseURL:   baseURL,
		AuthToken: gcp.GetEnv("PRIMARY_API_TOKEN", ""),
		Timeout:   envSeconds("PRIMARY_API_TIMEOUT_SECONDS", 15),
	})
	store := NewRecordStore(firestoreClient, RecordStoreConfig{
		RequestsCollection: gcp.GetEnv("FIRESTORE_REQUESTS_COLLECTION", "verification_requests"),
		DriversCollection:  gcp.GetEnv("FIRESTORE_DRIVERS_COLLECTION", "drivers"),
	})
	tree := NewStorageTree(storageClient, StorageTreeConfig{Bucket: bucket})

	cfg := verify.ServiceConfig{
		AdapterTimeout:    envSeconds("ADAPTER_TIMEOUT_SECONDS", 10),
		ResyncConcurrency: envInt("RESYNC_CONCURRENCY", verify.DefaultResyncConcurrency),
	}
	return verify.NewService(api, store, tree, cfg), nil
}

func envInt(key string, fallback int) int {
	if raw := gcp.GetEnv(key, ""); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			return n
		}
	}
	return fallback
}

func envSeconds(key string, fallback int) time.Duration {
	return time.Duration(envInt(key, fallback)) * time.Second
}
