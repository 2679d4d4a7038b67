package verify

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Vaigainathan/E-Pickup-Admin-sub000/internal/models"
)

// Source is the common discovery contract the three adapters implement. The
// orchestrator iterates an ordered list of these instead of hand-coded
// nested fallbacks.
type Source interface {
	Origin() models.SourceOrigin
	DiscoverForDriver(ctx context.Context, driverID string) (*models.PartialDocumentSet, error)
}

// DefaultAdapterTimeout bounds each adapter call; a hung storage listing
// must not hang the whole discovery.
const DefaultAdapterTimeout = 10 * time.Second

// Reconciler merges document records from the ordered source list. Priority
// order models trust, not recency: the API is server-reconciled, the record
// store holds the latest verification request, storage is the last resort.
type Reconciler struct {
	sources        []Source
	adapterTimeout time.Duration
}

// NewReconciler builds a reconciler over sources, highest priority first.
func NewReconciler(sources []Source, adapterTimeout time.Duration) *Reconciler {
	if adapterTimeout <= 0 {
		adapterTimeout = DefaultAdapterTimeout
	}
	return &Reconciler{sources: sources, adapterTimeout: adapterTimeout}
}

// Discover queries every source in priority order and merges the normalized
// records per canonical type. A type already filled by a higher-priority
// source is never overwritten, even by a fresher record. Adapter failures
// are swallowed into diagnostics; discovery fails only when no source
// produced anything and the driver itself could not be located.
func (r *Reconciler) Discover(ctx context.Context, driverID string) (*models.DriverDocuments, error) {
	logCtx := slog.With("driverId", driverID)

	result := &models.DriverDocuments{
		DriverID:  driverID,
		Documents: make(map[models.DocumentType]models.DocumentRecord),
	}

	var firstErr error
	succeeded := 0
	for _, src := range r.sources {
		set, err := r.discoverOne(ctx, src, driverID)
		outcome := models.SourceOutcome{Origin: src.Origin()}
		if err != nil {
			outcome.Error = err.Error()
			result.Diagnostics.Sources = append(result.Diagnostics.Sources, outcome)
			logCtx.Warn("Source adapter failed; continuing with remaining sources.",
				"source", src.Origin(), "error", err)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		succeeded++
		outcome.OK = true
		outcome.Records = len(set.Records) + len(set.Extras)
		result.Diagnostics.Sources = append(result.Diagnostics.Sources, outcome)

		if result.DriverName == "" {
			result.DriverName = set.DriverName
		}
		r.mergeSet(result, set, logCtx)
	}

	if succeeded == 0 {
		if code := CodeOf(firstErr); code == CodeDriverNotFound {
			return nil, WrapError(CodeDriverNotFound, fmt.Sprintf("driver %s not found", driverID), firstErr)
		}
		return nil, WrapError(CodeAdapterUnavailable, "all document sources unavailable", firstErr)
	}

	result.Diagnostics.MissingRequired = MissingRequired(result.Documents)
	return result, nil
}

// discoverOne runs a single adapter under its own timeout so one hung
// source cannot stall the rest.
func (r *Reconciler) discoverOne(ctx context.Context, src Source, driverID string) (*models.PartialDocumentSet, error) {
	sctx, cancel := context.WithTimeout(ctx, r.adapterTimeout)
	defer cancel()
	set, err := src.DiscoverForDriver(sctx, driverID)
	if err != nil {
		return nil, err
	}
	if set == nil {
		set = models.NewPartialDocumentSet()
	}
	return set, nil
}

// mergeSet inserts records from one source into the merge map, filling gaps
// only. A record from a lower-priority source lands when its type is absent
// or present without an artifact URL.
func (r *Reconciler) mergeSet(result *models.DriverDocuments, set *models.PartialDocumentSet, logCtx *slog.Logger) {
	for typ, rec := range set.Records {
		if rec.Type != typ {
			// Should not occur given the adapter contract. Keep the map key
			// authoritative and say so loudly.
			note := fmt.Sprintf("%s mapped record of type %q under key %q", rec.Origin, rec.Type, typ)
			result.Diagnostics.Conflicts = append(result.Diagnostics.Conflicts, note)
			logCtx.Error("Aggregation inconsistency detected in source set.",
				"code", CodeAggregationInconsistency, "source", rec.Origin, "recordType", rec.Type, "mapKey", typ)
			rec.Type = typ
		}
		existing, filled := result.Documents[typ]
		if filled && existing.Uploaded() {
			continue
		}
		result.Documents[typ] = rec
	}
	result.Extras = append(result.Extras, set.Extras...)
}
