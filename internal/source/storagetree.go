package source

import (
	"context"
	"fmt"
	"path"
	"sort"
	"strings"

	"cloud.google.com/go/storage"
	"google.golang.org/api/iterator"

	"github.com/Vaigainathan/E-Pickup-Admin-sub000/internal/models"
	"github.com/Vaigainathan/E-Pickup-Admin-sub000/internal/verify"
)

// StorageTreeConfig configures the blob-storage adapter.
type StorageTreeConfig struct {
	Bucket string
}

// StorageTree scans the driver document tree in Cloud Storage, the lowest
// priority source. The tree has three generations of layout: canonical
// per-type folders under drivers/{id}/documents/{type}/, a flat
// drivers/{id}/documents/ root, and the legacy drivers/{id}/ root.
type StorageTree struct {
	client *storage.Client
	cfg    StorageTreeConfig

	// list is the prefix listing; a field so the selection logic can be
	// exercised without a live bucket.
	list func(ctx context.Context, prefix string) ([]*storage.ObjectAttrs, error)
}

// NewStorageTree builds the blob-storage adapter.
func NewStorageTree(client *storage.Client, cfg StorageTreeConfig) *StorageTree {
	s := &StorageTree{client: client, cfg: cfg}
	s.list = s.listObjects
	return s
}

// Origin implements verify.Source.
func (s *StorageTree) Origin() models.SourceOrigin {
	return models.SourceStorage
}

// DiscoverForDriver scans canonical per-type folders first, then falls back
// to the flat and legacy roots for types still missing. Within a folder the
// lexicographically-last name wins: upload names encode recency, and no
// reliable timestamp ordering is assumed across storage backends.
func (s *StorageTree) DiscoverForDriver(ctx context.Context, driverID string) (*models.PartialDocumentSet, error) {
	set := models.NewPartialDocumentSet()

	for _, typ := range models.RequiredDocumentTypes {
		prefix := fmt.Sprintf("drivers/%s/documents/%s/", driverID, typ)
		objects, err := s.list(ctx, prefix)
		if err != nil {
			return nil, err
		}
		if rec := s.pickLatest(objects, driverID, typ); rec != nil {
			set.Records[typ] = *rec
		}
	}

	// Flat and legacy roots only fill remaining gaps, classified by name.
	for _, root := range []string{
		fmt.Sprintf("drivers/%s/documents/", driverID),
		fmt.Sprintf("drivers/%s/", driverID),
	} {
		if s.allRequiredFound(set) {
			break
		}
		if err := s.scanRoot(ctx, root, driverID, set); err != nil {
			return nil, err
		}
	}

	return set, nil
}

func (s *StorageTree) allRequiredFound(set *models.PartialDocumentSet) bool {
	for _, typ := range models.RequiredDocumentTypes {
		if _, ok := set.Records[typ]; !ok {
			return false
		}
	}
	return true
}

// scanRoot lists one fallback root and classifies each direct child by its
// folder and filename. Children nested under a further folder keep that
// folder as the classification hint, so legacy trees like
// drivers/{id}/license/front.jpg still land on the right type.
func (s *StorageTree) scanRoot(ctx context.Context, root, driverID string, set *models.PartialDocumentSet) error {
	objects, err := s.list(ctx, root)
	if err != nil {
		return err
	}
	// Lexicographically-last first, so the newest candidate per type wins.
	sort.Slice(objects, func(i, j int) bool { return objects[i].Name > objects[j].Name })

	for _, attrs := range objects {
		rel := strings.TrimPrefix(attrs.Name, root)
		if rel == "" {
			continue
		}
		folderHint := ""
		if idx := strings.IndexByte(rel, '/'); idx >= 0 {
			folderHint = rel[:idx]
			if folderHint == "documents" {
				continue // covered by the flat root scan
			}
		}
		typ := verify.Classify(path.Base(rel), folderHint)
		rec := s.recordFromAttrs(attrs, driverID, typ)
		if typ == models.DocTypeOther {
			set.Extras = append(set.Extras, *rec)
			continue
		}
		if _, filled := set.Records[typ]; !filled {
			set.Records[typ] = *rec
		}
	}
	return nil
}

func (s *StorageTree) pickLatest(objects []*storage.ObjectAttrs, driverID string, typ models.DocumentType) *models.DocumentRecord {
	var latest *storage.ObjectAttrs
	for _, attrs := range objects {
		if strings.HasSuffix(attrs.Name, "/") {
			continue // folder placeholder objects
		}
		if latest == nil || attrs.Name > latest.Name {
			latest = attrs
		}
	}
	if latest == nil {
		return nil
	}
	return s.recordFromAttrs(latest, driverID, typ)
}

func (s *StorageTree) recordFromAttrs(attrs *storage.ObjectAttrs, driverID string, typ models.DocumentType) *models.DocumentRecord {
	url := attrs.MediaLink
	if url == "" {
		url = fmt.Sprintf("https://storage.googleapis.com/%s/%s", s.cfg.Bucket, attrs.Name)
	}
	rec := &models.DocumentRecord{
		DriverID:    driverID,
		Type:        typ,
		URL:         url,
		FileName:    path.Base(attrs.Name),
		ContentType: attrs.ContentType,
		SizeBytes:   attrs.Size,
		// Storage knows nothing about review state; an artifact found here
		// is awaiting review until a higher source says otherwise.
		Status:     models.DocStatusPending,
		Origin:     models.SourceStorage,
		Folder:     path.Dir(attrs.Name),
		SourcePath: attrs.Name,
	}
	if !attrs.Created.IsZero() {
		created := attrs.Created
		rec.UploadedAt = &created
	}
	return rec
}

func (s *StorageTree) listObjects(ctx context.Context, prefix string) ([]*storage.ObjectAttrs, error) {
	it := s.client.Bucket(s.cfg.Bucket).Objects(ctx, &storage.Query{Prefix: prefix})
	var objects []*storage.ObjectAttrs
	for {
		attrs, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, verify.WrapError(verify.CodeAdapterUnavailable,
				fmt.Sprintf("failed to list storage objects under %s", prefix), err)
		}
		objects = append(objects, attrs)
	}
	return objects, nil
}
