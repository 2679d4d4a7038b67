package verify

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Vaigainathan/E-Pickup-Admin-sub000/internal/models"
)

// fakePrimaryAPI is an in-memory stand-in for the e-pickup backend.
type fakePrimaryAPI struct {
	mu            sync.Mutex
	docs          map[string]map[models.DocumentType]models.DocumentRecord
	discoverErrs  map[string]error
	verifyErr     error
	verifyCalls   int
	discoverCalls int
	syncCalls     int
	decisions     []string
	driverIDs     []string
	listErr       error
}

func newFakeAPI() *fakePrimaryAPI {
	return &fakePrimaryAPI{
		docs:         make(map[string]map[models.DocumentType]models.DocumentRecord),
		discoverErrs: make(map[string]error),
	}
}

func (f *fakePrimaryAPI) seed(driverID string, typ models.DocumentType, status models.DocumentStatus) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.docs[driverID] == nil {
		f.docs[driverID] = make(map[models.DocumentType]models.DocumentRecord)
	}
	f.docs[driverID][typ] = models.DocumentRecord{
		DriverID: driverID,
		Type:     typ,
		URL:      "https://api/" + string(typ),
		Status:   status,
		Verified: status == models.DocStatusVerified,
		Origin:   models.SourceAPI,
	}
}

func (f *fakePrimaryAPI) Origin() models.SourceOrigin { return models.SourceAPI }

func (f *fakePrimaryAPI) DiscoverForDriver(ctx context.Context, driverID string) (*models.PartialDocumentSet, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.discoverCalls++
	if err := f.discoverErrs[driverID]; err != nil {
		return nil, err
	}
	set := models.NewPartialDocumentSet()
	for typ, rec := range f.docs[driverID] {
		set.Records[typ] = rec
	}
	return set, nil
}

func (f *fakePrimaryAPI) VerifyDocument(ctx context.Context, driverID string, typ models.DocumentType, status models.DocumentStatus, comments, rejectionReason string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.verifyCalls++
	if f.verifyErr != nil {
		return f.verifyErr
	}
	rec := f.docs[driverID][typ]
	rec.Status = status
	rec.Verified = status == models.DocStatusVerified
	rec.VerificationNotes = comments
	rec.RejectionReason = rejectionReason
	f.docs[driverID][typ] = rec
	return nil
}

func (f *fakePrimaryAPI) SetDriverDecision(ctx context.Context, driverID, decision, reason string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.decisions = append(f.decisions, driverID+":"+decision)
	return nil
}

func (f *fakePrimaryAPI) SyncDriverStatus(ctx context.Context, driverID string, status models.VerificationStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.syncCalls++
	return nil
}

func (f *fakePrimaryAPI) ListDriverIDs(ctx context.Context) ([]string, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.driverIDs, nil
}

// fakeRecordStore is an in-memory stand-in for the Firestore record store.
type fakeRecordStore struct {
	mu              sync.Mutex
	docs            map[string]map[models.DocumentType]models.DocumentRecord
	status          map[string]models.StatusValue
	discoverErrs    map[string]error
	saveDocCalls    int
	saveStatusCalls int
}

func newFakeStore() *fakeRecordStore {
	return &fakeRecordStore{
		docs:         make(map[string]map[models.DocumentType]models.DocumentRecord),
		status:       make(map[string]models.StatusValue),
		discoverErrs: make(map[string]error),
	}
}

func (f *fakeRecordStore) Origin() models.SourceOrigin { return models.SourceDocumentStore }

func (f *fakeRecordStore) DiscoverForDriver(ctx context.Context, driverID string) (*models.PartialDocumentSet, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.discoverErrs[driverID]; err != nil {
		return nil, err
	}
	set := models.NewPartialDocumentSet()
	for typ, rec := range f.docs[driverID] {
		set.Records[typ] = rec
	}
	return set, nil
}

func (f *fakeRecordStore) SaveDocumentStatus(ctx context.Context, driverID string, typ models.DocumentType, status models.DocumentStatus, notes, rejectionReason string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saveDocCalls++
	if f.docs[driverID] == nil {
		f.docs[driverID] = make(map[models.DocumentType]models.DocumentRecord)
	}
	rec := f.docs[driverID][typ]
	rec.Type = typ
	if rec.URL == "" {
		rec.URL = "https://store/" + string(typ)
	}
	rec.Status = status
	rec.Verified = status == models.DocStatusVerified
	rec.VerificationNotes = notes
	rec.RejectionReason = rejectionReason
	rec.Origin = models.SourceDocumentStore
	f.docs[driverID][typ] = rec
	return nil
}

func (f *fakeRecordStore) DriverStatus(ctx context.Context, driverID string) (*models.StatusValue, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if status, ok := f.status[driverID]; ok {
		return &status, nil
	}
	return nil, nil
}

func (f *fakeRecordStore) SaveDriverStatus(ctx context.Context, driverID string, status models.StatusValue) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saveStatusCalls++
	f.status[driverID] = status
	return nil
}

func (f *fakeRecordStore) ListDriverIDs(ctx context.Context) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ids := make([]string, 0, len(f.status))
	for id := range f.status {
		ids = append(ids, id)
	}
	return ids, nil
}

func newTestService(api *fakePrimaryAPI, store *fakeRecordStore) *Service {
	return NewService(api, store, nil, ServiceConfig{
		AdapterTimeout:    time.Second,
		ResyncConcurrency: 2,
	})
}

func TestVerifyDocumentRejectWithoutReason(t *testing.T) {
	api := newFakeAPI()
	store := newFakeStore()
	svc := newTestService(api, store)

	_, err := svc.VerifyDocument(context.Background(), models.VerifyDocumentRequest{
		DriverID:     "d1",
		DocumentType: models.DocTypeDrivingLicense,
		Status:       models.DocStatusRejected,
	})
	if err == nil {
		t.Fatal("expected rejection without reason to fail")
	}
	if CodeOf(err) != CodeInvalidCommand {
		t.Errorf("code = %q, want %q", CodeOf(err), CodeInvalidCommand)
	}
	if api.verifyCalls != 0 || store.saveDocCalls != 0 || api.discoverCalls != 0 {
		t.Error("validation failure must happen before any network call")
	}
}

func TestVerifyDocumentInvalidStatus(t *testing.T) {
	svc := newTestService(newFakeAPI(), newFakeStore())
	_, err := svc.VerifyDocument(context.Background(), models.VerifyDocumentRequest{
		DriverID:     "d1",
		DocumentType: models.DocTypeDrivingLicense,
		Status:       models.DocStatusPending, // only verified/rejected are commands
	})
	if CodeOf(err) != CodeInvalidCommand {
		t.Errorf("code = %q, want %q", CodeOf(err), CodeInvalidCommand)
	}
}

func TestVerifyDocumentRoundTrip(t *testing.T) {
	api := newFakeAPI()
	store := newFakeStore()
	svc := newTestService(api, store)

	for _, typ := range models.RequiredDocumentTypes {
		status := models.DocStatusVerified
		if typ == models.DocTypeDrivingLicense {
			status = models.DocStatusPending
		}
		api.seed("d1", typ, status)
	}

	result, err := svc.VerifyDocument(context.Background(), models.VerifyDocumentRequest{
		DriverID:     "d1",
		DocumentType: models.DocTypeDrivingLicense,
		Status:       models.DocStatusVerified,
		Comments:     "all good",
	})
	if err != nil {
		t.Fatalf("VerifyDocument failed: %v", err)
	}
	if result.Degraded {
		t.Error("healthy primary write must not be degraded")
	}
	if result.DriverStatus.Value != models.VerificationVerified {
		t.Errorf("driver status after final sign-off = %q, want verified", result.DriverStatus.Value)
	}

	// Discovery immediately afterwards reflects the write.
	discovered, err := svc.DiscoverDriver(context.Background(), "d1")
	if err != nil {
		t.Fatalf("DiscoverDriver failed: %v", err)
	}
	rec := discovered.Documents[models.DocTypeDrivingLicense]
	if rec.Status != models.DocStatusVerified || !rec.Verified {
		t.Errorf("round trip lost the sign-off: %+v", rec)
	}
	if !discovered.IsVerified {
		t.Error("driver should be verified after all five documents are")
	}
	if stored := store.status["d1"]; stored.Value != models.VerificationVerified || stored.Kind != models.StatusComputed {
		t.Errorf("computed status not persisted: %+v", stored)
	}
}

func TestVerifyDocumentDegradedFallback(t *testing.T) {
	api := newFakeAPI()
	store := newFakeStore()
	svc := newTestService(api, store)

	api.seed("d1", models.DocTypeProfilePhoto, models.DocStatusPending)
	api.verifyErr = errors.New("primary write path down")

	result, err := svc.VerifyDocument(context.Background(), models.VerifyDocumentRequest{
		DriverID:     "d1",
		DocumentType: models.DocTypeProfilePhoto,
		Status:       models.DocStatusVerified,
	})
	if err != nil {
		t.Fatalf("degraded write should still succeed: %v", err)
	}
	if !result.Degraded {
		t.Error("result must flag the degraded write path")
	}
	if store.saveDocCalls != 1 {
		t.Errorf("record store fallback writes = %d, want 1", store.saveDocCalls)
	}
}

func TestVerifyDocumentUnknownDriverIsFatal(t *testing.T) {
	api := newFakeAPI()
	store := newFakeStore()
	svc := newTestService(api, store)

	// Discovery finds a stale record, but the primary API says the driver
	// is gone by the time the write lands.
	api.seed("d1", models.DocTypeDrivingLicense, models.DocStatusPending)
	api.verifyErr = NewError(CodeDriverNotFound, "driver not found on primary API")

	_, err := svc.VerifyDocument(context.Background(), models.VerifyDocumentRequest{
		DriverID:     "d1",
		DocumentType: models.DocTypeDrivingLicense,
		Status:       models.DocStatusVerified,
	})
	if err == nil {
		t.Fatal("signing off a document for a nonexistent driver must fail")
	}
	if CodeOf(err) != CodeDriverNotFound {
		t.Errorf("code = %q, want %q", CodeOf(err), CodeDriverNotFound)
	}
	if store.saveDocCalls != 0 {
		t.Errorf("fallback fabricated a record for a nonexistent driver: %d writes", store.saveDocCalls)
	}
}

func TestVerifyDocumentVerifiedIsNotRevocable(t *testing.T) {
	api := newFakeAPI()
	store := newFakeStore()
	svc := newTestService(api, store)
	api.seed("d1", models.DocTypeRCBook, models.DocStatusVerified)

	_, err := svc.VerifyDocument(context.Background(), models.VerifyDocumentRequest{
		DriverID:        "d1",
		DocumentType:    models.DocTypeRCBook,
		Status:          models.DocStatusRejected,
		RejectionReason: "changed my mind",
	})
	if CodeOf(err) != CodeInvalidCommand {
		t.Errorf("rejecting a verified document: code = %q, want %q", CodeOf(err), CodeInvalidCommand)
	}
	if api.verifyCalls != 0 {
		t.Error("no write may happen for an invalid transition")
	}

	// Re-verifying is a harmless no-op.
	result, err := svc.VerifyDocument(context.Background(), models.VerifyDocumentRequest{
		DriverID:     "d1",
		DocumentType: models.DocTypeRCBook,
		Status:       models.DocStatusVerified,
	})
	if err != nil {
		t.Fatalf("re-verify should be a no-op success: %v", err)
	}
	if result.Status != models.DocStatusVerified || api.verifyCalls != 0 {
		t.Errorf("no-op re-verify still wrote: calls=%d result=%+v", api.verifyCalls, result)
	}
}

func TestRejectedDocumentCanBeVerifiedAgain(t *testing.T) {
	api := newFakeAPI()
	store := newFakeStore()
	svc := newTestService(api, store)
	api.seed("d1", models.DocTypeBikeInsurance, models.DocStatusRejected)

	result, err := svc.VerifyDocument(context.Background(), models.VerifyDocumentRequest{
		DriverID:     "d1",
		DocumentType: models.DocTypeBikeInsurance,
		Status:       models.DocStatusVerified,
	})
	if err != nil {
		t.Fatalf("re-review after rejection must be allowed: %v", err)
	}
	if result.Status != models.DocStatusVerified {
		t.Errorf("status = %q, want verified", result.Status)
	}
}

func TestRejectDriverRequiresReason(t *testing.T) {
	api := newFakeAPI()
	store := newFakeStore()
	svc := newTestService(api, store)

	_, err := svc.RejectDriver(context.Background(), "d1", "", "admin@epickup")
	if CodeOf(err) != CodeInvalidCommand {
		t.Errorf("code = %q, want %q", CodeOf(err), CodeInvalidCommand)
	}
	if len(store.status) != 0 || len(api.decisions) != 0 {
		t.Error("invalid decision must not be recorded anywhere")
	}
}

func TestDriverOverrideIsStickyAcrossResync(t *testing.T) {
	api := newFakeAPI()
	store := newFakeStore()
	svc := newTestService(api, store)

	// A rejected document would normally force the aggregate to rejected.
	api.seed("d1", models.DocTypeDrivingLicense, models.DocStatusRejected)

	override, err := svc.ApproveDriver(context.Background(), "d1", "background check passed offline", "admin@epickup")
	if err != nil {
		t.Fatalf("ApproveDriver failed: %v", err)
	}
	if !override.IsOverride() || override.Value != models.VerificationVerified {
		t.Errorf("unexpected override %+v", override)
	}

	status, err := svc.ResyncDriver(context.Background(), "d1")
	if err != nil {
		t.Fatalf("ResyncDriver failed: %v", err)
	}
	if !status.IsOverride() || status.Value != models.VerificationVerified {
		t.Errorf("resync must not clear the override, got %+v", status)
	}
	if store.saveStatusCalls != 1 {
		t.Errorf("resync overwrote the override document: %d writes, want the initial 1", store.saveStatusCalls)
	}

	// A fresh driver-level decision replaces the old override.
	replaced, err := svc.RejectDriver(context.Background(), "d1", "expired license", "admin@epickup")
	if err != nil {
		t.Fatalf("RejectDriver failed: %v", err)
	}
	if replaced.Value != models.VerificationRejected || replaced.Reason != "expired license" {
		t.Errorf("unexpected replacement override %+v", replaced)
	}
}

func TestResyncDriverPersistsComputedStatus(t *testing.T) {
	api := newFakeAPI()
	store := newFakeStore()
	svc := newTestService(api, store)

	api.seed("d2", models.DocTypeDrivingLicense, models.DocStatusVerified)
	api.seed("d2", models.DocTypeAadhaarCard, models.DocStatusPending)

	status, err := svc.ResyncDriver(context.Background(), "d2")
	if err != nil {
		t.Fatalf("ResyncDriver failed: %v", err)
	}
	if status.Value != models.VerificationPendingReview {
		t.Errorf("status = %q, want pending_verification", status.Value)
	}
	if stored := store.status["d2"]; stored.Value != models.VerificationPendingReview {
		t.Errorf("computed status not persisted to store: %+v", stored)
	}
	if api.syncCalls != 1 {
		t.Errorf("primary API sync calls = %d, want 1", api.syncCalls)
	}
}

func TestResyncAllPartialFailure(t *testing.T) {
	api := newFakeAPI()
	store := newFakeStore()
	svc := newTestService(api, store)

	api.driverIDs = []string{"healthy", "broken"}
	api.seed("healthy", models.DocTypeDrivingLicense, models.DocStatusVerified)
	api.seed("healthy", models.DocTypeProfilePhoto, models.DocStatusPending)
	api.discoverErrs["broken"] = errors.New("listing timed out")
	store.discoverErrs["broken"] = errors.New("query timed out")

	report, err := svc.ResyncAll(context.Background())
	if err != nil {
		t.Fatalf("partial failure must not fail the batch: %v", err)
	}
	if report.Total != 2 || report.Succeeded != 1 || report.Failed != 1 {
		t.Errorf("report counts = %d/%d/%d, want 2/1/1", report.Total, report.Succeeded, report.Failed)
	}
	if report.BatchID == "" {
		t.Error("report must carry a batch ID")
	}

	byDriver := make(map[string]models.DriverResyncResult)
	for _, res := range report.Results {
		byDriver[res.DriverID] = res
	}
	if byDriver["broken"].Error == "" {
		t.Error("broken driver must report its failure")
	}
	if byDriver["healthy"].Status != models.VerificationPendingReview {
		t.Errorf("healthy driver status = %q", byDriver["healthy"].Status)
	}
	if stored := store.status["healthy"]; stored.Value != models.VerificationPendingReview {
		t.Error("healthy driver's status must still be updated despite the sibling failure")
	}
}

func TestResyncAllFallsBackToStoreListing(t *testing.T) {
	api := newFakeAPI()
	store := newFakeStore()
	svc := newTestService(api, store)

	api.listErr = errors.New("listing endpoint down")
	store.status["d9"] = models.StatusValue{Kind: models.StatusComputed, Value: models.VerificationPending}
	api.seed("d9", models.DocTypeDrivingLicense, models.DocStatusPending)

	report, err := svc.ResyncAll(context.Background())
	if err != nil {
		t.Fatalf("ResyncAll should fall back to the record store listing: %v", err)
	}
	if report.Total != 1 || report.Results[0].DriverID != "d9" {
		t.Errorf("unexpected report %+v", report)
	}
}
