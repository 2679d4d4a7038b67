package verify

import (
	"context"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/Vaigainathan/E-Pickup-Admin-sub000/internal/models"
)

// PrimaryAPI is the write surface of the e-pickup backend, the primary
// source of truth for verification decisions.
type PrimaryAPI interface {
	Source
	VerifyDocument(ctx context.Context, driverID string, typ models.DocumentType, status models.DocumentStatus, comments, rejectionReason string) error
	SetDriverDecision(ctx context.Context, driverID, decision, reason string) error
	SyncDriverStatus(ctx context.Context, driverID string, status models.VerificationStatus) error
	ListDriverIDs(ctx context.Context) ([]string, error)
}

// RecordStore is the document-record store: the degraded-mode write target
// and the home of the driver status document, overrides included.
type RecordStore interface {
	Source
	SaveDocumentStatus(ctx context.Context, driverID string, typ models.DocumentType, status models.DocumentStatus, notes, rejectionReason string) error
	DriverStatus(ctx context.Context, driverID string) (*models.StatusValue, error)
	SaveDriverStatus(ctx context.Context, driverID string, status models.StatusValue) error
	ListDriverIDs(ctx context.Context) ([]string, error)
}

// ServiceConfig tunes the command handlers.
type ServiceConfig struct {
	// AdapterTimeout bounds each source adapter call during discovery.
	AdapterTimeout time.Duration
	// ResyncConcurrency bounds the ResyncAll fan-out; the storage listing
	// API is rate-limit-sensitive.
	ResyncConcurrency int
}

// DefaultResyncConcurrency is the ResyncAll fan-out bound when none is
// configured.
const DefaultResyncConcurrency = 8

// Service exposes the verification operations the admin console calls:
// discovery plus the document/driver/resync commands. All writes go to the
// primary API first; the record store is the degraded-mode fallback.
type Service struct {
	api        PrimaryAPI
	store      RecordStore
	reconciler *Reconciler
	validate   *validator.Validate
	cfg        ServiceConfig
}

// NewService wires the command handlers over the three sources in priority
// order: primary API, record store, storage tree.
func NewService(api PrimaryAPI, store RecordStore, storageTree Source, cfg ServiceConfig) *Service {
	if cfg.ResyncConcurrency <= 0 {
		cfg.ResyncConcurrency = DefaultResyncConcurrency
	}
	sources := []Source{api, store}
	if storageTree != nil {
		sources = append(sources, storageTree)
	}
	return &Service{
		api:        api,
		store:      store,
		reconciler: NewReconciler(sources, cfg.AdapterTimeout),
		validate:   validator.New(),
		cfg:        cfg,
	}
}

// DiscoverDriver runs discovery and resolves the driver status, override
// included. This backs the console's document panel.
func (s *Service) DiscoverDriver(ctx context.Context, driverID string) (*models.DriverDocuments, error) {
	if driverID == "" {
		return nil, invalidCommand("driverId is required")
	}
	result, err := s.reconciler.Discover(ctx, driverID)
	if err != nil {
		return nil, err
	}
	override := s.loadOverride(ctx, driverID)
	result.Status = ResolveStatus(override, result.Documents)
	result.IsVerified = result.Status.Value == models.VerificationVerified
	return result, nil
}

// VerifyDocument signs off one document: verified or rejected, a rejection
// requiring a reason. The write goes to the primary API; when that fails the
// record store takes it in degraded mode and the result says so. Afterwards
// the driver status is recomputed and persisted unless an override is in
// force.
func (s *Service) VerifyDocument(ctx context.Context, req models.VerifyDocumentRequest) (*models.VerifyDocumentResult, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, WrapError(CodeInvalidCommand, "invalid verify-document request", err)
	}
	if req.Status == models.DocStatusRejected && req.Reason() == "" {
		return nil, invalidCommand("rejecting %s requires a reason", req.DocumentType)
	}

	logCtx := slog.With("driverId", req.DriverID, "documentType", req.DocumentType)

	// A verified document is not revocable here; only a fresh upload
	// producing a new pending record reopens it.
	current, err := s.reconciler.Discover(ctx, req.DriverID)
	if err != nil {
		return nil, err
	}
	if rec, ok := current.Documents[req.DocumentType]; ok && rec.Status == models.DocStatusVerified {
		if req.Status == models.DocStatusRejected {
			return nil, invalidCommand("document %s is already verified; it can only be superseded by a new upload", req.DocumentType)
		}
		logCtx.Info("Document already verified; nothing to do.")
		return &models.VerifyDocumentResult{
			DriverID:     req.DriverID,
			DocumentType: req.DocumentType,
			Status:       rec.Status,
			DriverStatus: ResolveStatus(s.loadOverride(ctx, req.DriverID), current.Documents),
		}, nil
	}

	degraded := false
	if err := s.api.VerifyDocument(ctx, req.DriverID, req.DocumentType, req.Status, req.Comments, req.RejectionReason); err != nil {
		if CodeOf(err) == CodeDriverNotFound {
			// Not an availability failure. A fallback write here would
			// fabricate a verification request for a driver that does not
			// exist.
			return nil, err
		}
		logCtx.Warn("Primary API write failed; falling back to record store. This write bypassed the primary system.", "error", err)
		if ferr := s.store.SaveDocumentStatus(ctx, req.DriverID, req.DocumentType, req.Status, req.Comments, req.Reason()); ferr != nil {
			return nil, WrapError(CodeAdapterUnavailable, "document status write failed on both the primary API and the record store", ferr)
		}
		degraded = true
	}

	status, err := s.recomputeAndPersist(ctx, req.DriverID)
	if err != nil {
		// The sign-off itself landed; surface the recompute failure as a
		// partial write rather than pretending the command failed.
		logCtx.Error("Status re-aggregation failed after document write.", "error", err)
		return nil, WrapError(CodePartialWrite, "document updated but driver status re-aggregation failed", err)
	}

	return &models.VerifyDocumentResult{
		DriverID:     req.DriverID,
		DocumentType: req.DocumentType,
		Status:       req.Status,
		Degraded:     degraded,
		DriverStatus: status,
	}, nil
}

// ApproveDriver records an explicit driver-level approval, bypassing
// per-document aggregation. The override is sticky until the next
// driver-level decision.
func (s *Service) ApproveDriver(ctx context.Context, driverID, notes, decidedBy string) (*models.StatusValue, error) {
	return s.applyDriverDecision(ctx, models.DriverDecisionRequest{
		DriverID:  driverID,
		Decision:  "approved",
		Notes:     notes,
		DecidedBy: decidedBy,
	})
}

// RejectDriver records an explicit driver-level rejection. A non-empty
// reason is required.
func (s *Service) RejectDriver(ctx context.Context, driverID, reason, decidedBy string) (*models.StatusValue, error) {
	return s.applyDriverDecision(ctx, models.DriverDecisionRequest{
		DriverID:  driverID,
		Decision:  "rejected",
		Reason:    reason,
		DecidedBy: decidedBy,
	})
}

// ApplyDriverDecision handles a decision arriving as a request payload.
func (s *Service) ApplyDriverDecision(ctx context.Context, req models.DriverDecisionRequest) (*models.StatusValue, error) {
	return s.applyDriverDecision(ctx, req)
}

func (s *Service) applyDriverDecision(ctx context.Context, req models.DriverDecisionRequest) (*models.StatusValue, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, WrapError(CodeInvalidCommand, "invalid driver decision request", err)
	}
	if req.Decision == "rejected" && req.Reason == "" {
		return nil, invalidCommand("rejecting a driver requires a reason")
	}

	value := models.VerificationVerified
	if req.Decision == "rejected" {
		value = models.VerificationRejected
	}
	override := models.StatusValue{
		Kind:   models.StatusOverride,
		Value:  value,
		SetBy:  req.DecidedBy,
		SetAt:  time.Now().UTC(),
		Notes:  req.Notes,
		Reason: req.Reason,
	}

	logCtx := slog.With("driverId", req.DriverID, "decision", req.Decision)
	if err := s.api.SetDriverDecision(ctx, req.DriverID, req.Decision, req.Reason); err != nil {
		logCtx.Warn("Primary API rejected the driver decision write; recording override in the record store only.", "error", err)
	}
	if err := s.store.SaveDriverStatus(ctx, req.DriverID, override); err != nil {
		return nil, WrapError(CodeAdapterUnavailable, "failed to record driver decision", err)
	}
	logCtx.Info("Driver-level decision recorded.", "status", override.Value)
	return &override, nil
}

// ResyncDriver re-runs discovery and aggregation for one driver and
// persists the computed status. An explicit override is left untouched and
// returned as-is.
func (s *Service) ResyncDriver(ctx context.Context, driverID string) (*models.StatusValue, error) {
	if driverID == "" {
		return nil, invalidCommand("driverId is required")
	}
	status, err := s.recomputeAndPersist(ctx, driverID)
	if err != nil {
		return nil, err
	}
	return &status, nil
}

// ResyncAll fans ResyncDriver out over every known driver with a bounded
// concurrency. Per-driver failures land in the report; the batch itself
// fails only when no driver list could be obtained at all.
func (s *Service) ResyncAll(ctx context.Context) (*models.ResyncReport, error) {
	ids, err := s.api.ListDriverIDs(ctx)
	if err != nil {
		slog.Warn("Primary API driver listing failed; enumerating from the record store.", "error", err)
		ids, err = s.store.ListDriverIDs(ctx)
		if err != nil {
			return nil, WrapError(CodeAdapterUnavailable, "could not enumerate drivers from any source", err)
		}
	}

	report := &models.ResyncReport{
		BatchID:   uuid.NewString(),
		Total:     len(ids),
		Results:   make([]models.DriverResyncResult, len(ids)),
		StartedAt: time.Now().UTC(),
	}
	logCtx := slog.With("batchId", report.BatchID)
	logCtx.Info("Starting bulk driver status resync.", "drivers", len(ids), "concurrency", s.cfg.ResyncConcurrency)

	eg, gctx := errgroup.WithContext(ctx)
	eg.SetLimit(s.cfg.ResyncConcurrency)
	for i, id := range ids {
		i, id := i, id
		eg.Go(func() error {
			res := models.DriverResyncResult{DriverID: id}
			if status, rerr := s.recomputeAndPersist(gctx, id); rerr != nil {
				res.Error = MessageOf(rerr)
				logCtx.Warn("Driver resync failed.", "driverId", id, "error", rerr)
			} else {
				res.Status = status.Value
			}
			report.Results[i] = res
			return nil
		})
	}
	_ = eg.Wait() // per-driver errors are reported, never propagated

	for _, res := range report.Results {
		if res.Error == "" {
			report.Succeeded++
		} else {
			report.Failed++
		}
	}
	report.FinishedAt = time.Now().UTC()
	logCtx.Info("Bulk resync finished.", "succeeded", report.Succeeded, "failed", report.Failed)
	return report, nil
}

// recomputeAndPersist re-discovers the driver's documents, resolves the
// status and persists the computed value. Overrides are sticky: when one is
// in force nothing is persisted and the override is returned.
func (s *Service) recomputeAndPersist(ctx context.Context, driverID string) (models.StatusValue, error) {
	result, err := s.reconciler.Discover(ctx, driverID)
	if err != nil {
		return models.StatusValue{}, err
	}

	override := s.loadOverride(ctx, driverID)
	status := ResolveStatus(override, result.Documents)
	if status.IsOverride() {
		return status, nil
	}

	if err := s.store.SaveDriverStatus(ctx, driverID, status); err != nil {
		return models.StatusValue{}, WrapError(CodeAdapterUnavailable, "failed to persist recomputed driver status", err)
	}
	// Best effort: the API recomputes on its own sync endpoint; a failure
	// here leaves the store authoritative until the next resync.
	if err := s.api.SyncDriverStatus(ctx, driverID, status.Value); err != nil {
		slog.Warn("Primary API status sync failed.", "driverId", driverID, "error", err)
	}
	return status, nil
}

// loadOverride fetches the driver status document, tolerating record-store
// outages: a missing override never blocks a read path.
func (s *Service) loadOverride(ctx context.Context, driverID string) *models.StatusValue {
	status, err := s.store.DriverStatus(ctx, driverID)
	if err != nil {
		slog.Warn("Could not load driver status document.", "driverId", driverID, "error", err)
		return nil
	}
	return status
}
