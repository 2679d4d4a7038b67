package source

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/Vaigainathan/E-Pickup-Admin-sub000/internal/models"
	"github.com/Vaigainathan/E-Pickup-Admin-sub000/internal/verify"
)

// RecordStoreConfig names the Firestore collections the admin console has
// accumulated: verification requests written by the driver app, and the
// per-driver status documents this core maintains.
type RecordStoreConfig struct {
	RequestsCollection string
	DriversCollection  string
}

// RecordStore is the document-record store adapter: the second-priority
// discovery source, the degraded-mode write target, and the home of the
// driver status document (overrides included).
type RecordStore struct {
	client *firestore.Client
	cfg    RecordStoreConfig
}

// NewRecordStore builds the Firestore adapter.
func NewRecordStore(client *firestore.Client, cfg RecordStoreConfig) *RecordStore {
	if cfg.RequestsCollection == "" {
		cfg.RequestsCollection = "verification_requests"
	}
	if cfg.DriversCollection == "" {
		cfg.DriversCollection = "drivers"
	}
	return &RecordStore{client: client, cfg: cfg}
}

// Origin implements verify.Source.
func (s *RecordStore) Origin() models.SourceOrigin {
	return models.SourceDocumentStore
}

// DiscoverForDriver loads the most recent verification request for the
// driver and normalizes its documents object. Requests were written by
// several app versions, so the driver key and the nested document keys come
// in both camelCase and snake_case.
func (s *RecordStore) DiscoverForDriver(ctx context.Context, driverID string) (*models.PartialDocumentSet, error) {
	snap, err := s.latestRequest(ctx, driverID)
	if err != nil {
		return nil, err
	}
	if snap == nil {
		return models.NewPartialDocumentSet(), nil
	}

	data := snap.Data()
	documents, _ := data["documents"].(map[string]any)
	set := verify.ExtractDocumentSet(documents, driverID, models.SourceDocumentStore)
	if name, ok := data["driverName"].(string); ok {
		set.DriverName = name
	} else if name, ok := data["driver_name"].(string); ok {
		set.DriverName = name
	}
	return set, nil
}

// latestRequest returns the newest verification request snapshot for the
// driver, or nil when none exists. The driver reference field was renamed
// at some point, so both spellings are queried.
func (s *RecordStore) latestRequest(ctx context.Context, driverID string) (*firestore.DocumentSnapshot, error) {
	for _, field := range []string{"driverId", "driver_id"} {
		docs, err := s.client.Collection(s.cfg.RequestsCollection).
			Where(field, "==", driverID).
			OrderBy("createdAt", firestore.Desc).
			Limit(1).
			Documents(ctx).GetAll()
		if err != nil {
			return nil, verify.WrapError(verify.CodeAdapterUnavailable,
				fmt.Sprintf("failed to query verification requests by %s", field), err)
		}
		if len(docs) > 0 {
			return docs[0], nil
		}
	}
	return nil, nil
}

// driverStatusDoc is the per-driver status document this core maintains.
type driverStatusDoc struct {
	Status    models.StatusValue `firestore:"status"`
	UpdatedAt time.Time          `firestore:"updatedAt"`
}

// DriverStatus loads the stored status value for a driver. A missing
// document means no status has been recorded yet; that is nil, not an
// error.
func (s *RecordStore) DriverStatus(ctx context.Context, driverID string) (*models.StatusValue, error) {
	snap, err := s.client.Collection(s.cfg.DriversCollection).Doc(driverID).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, nil
		}
		return nil, verify.WrapError(verify.CodeAdapterUnavailable, "failed to load driver status document", err)
	}
	var doc driverStatusDoc
	if err := snap.DataTo(&doc); err != nil {
		return nil, verify.WrapError(verify.CodeAdapterUnavailable, "driver status document has an unexpected shape", err)
	}
	if doc.Status.Value == "" {
		return nil, nil
	}
	return &doc.Status, nil
}

// SaveDriverStatus upserts the driver status document. Only the status
// fields are touched; whatever else lives on the driver document survives.
func (s *RecordStore) SaveDriverStatus(ctx context.Context, driverID string, value models.StatusValue) error {
	_, err := s.client.Collection(s.cfg.DriversCollection).Doc(driverID).Set(ctx, map[string]any{
		"status":    value,
		"updatedAt": time.Now().UTC(),
	}, firestore.MergeAll)
	if err != nil {
		return verify.WrapError(verify.CodeAdapterUnavailable, "failed to save driver status document", err)
	}
	return nil
}

// SaveDocumentStatus is the degraded-mode write: when the primary API is
// down, the sign-off lands on the latest verification request directly.
// Superseded records are updated in place, never deleted; the request
// history is the audit trail.
func (s *RecordStore) SaveDocumentStatus(ctx context.Context, driverID string, typ models.DocumentType, docStatus models.DocumentStatus, notes, rejectionReason string) error {
	snap, err := s.latestRequest(ctx, driverID)
	if err != nil {
		return err
	}

	if snap == nil {
		record := map[string]any{
			"status":   docStatus,
			"verified": docStatus == models.DocStatusVerified,
		}
		if notes != "" {
			record["verificationNotes"] = notes
		}
		if rejectionReason != "" {
			record["rejectionReason"] = rejectionReason
		}
		_, _, err := s.client.Collection(s.cfg.RequestsCollection).Add(ctx, map[string]any{
			"driverId":  driverID,
			"createdAt": time.Now().UTC(),
			"documents": map[string]any{string(typ): record},
		})
		if err != nil {
			return verify.WrapError(verify.CodeAdapterUnavailable, "failed to create fallback verification request", err)
		}
		return nil
	}

	prefix := fmt.Sprintf("documents.%s", typ)
	updates := []firestore.Update{
		{Path: prefix + ".status", Value: docStatus},
		{Path: prefix + ".verified", Value: docStatus == models.DocStatusVerified},
	}
	if notes != "" {
		updates = append(updates, firestore.Update{Path: prefix + ".verificationNotes", Value: notes})
	}
	if rejectionReason != "" {
		updates = append(updates, firestore.Update{Path: prefix + ".rejectionReason", Value: rejectionReason})
	}
	if _, err := snap.Ref.Update(ctx, updates); err != nil {
		return verify.WrapError(verify.CodeAdapterUnavailable, "failed to update verification request", err)
	}
	return nil
}

// ListDriverIDs enumerates driver status documents, the fallback when the
// primary API cannot list drivers.
func (s *RecordStore) ListDriverIDs(ctx context.Context) ([]string, error) {
	it := s.client.Collection(s.cfg.DriversCollection).DocumentRefs(ctx)
	var ids []string
	for {
		ref, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, verify.WrapError(verify.CodeAdapterUnavailable, "failed to list driver documents", err)
		}
		ids = append(ids, ref.ID)
	}
	return ids, nil
}
