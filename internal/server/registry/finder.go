// Package registry resolves opaque derived file keys to metadata records and
// assembles per-identity listings.
package registry

import (
	"context"
	"fmt"

	"github.com/dpavlovs/filegate/internal/common"
	"github.com/dpavlovs/filegate/internal/logging"
	"github.com/dpavlovs/filegate/internal/server/metastore"
	"github.com/dpavlovs/filegate/internal/server/models"
	"github.com/dpavlovs/filegate/internal/server/storage"
)

// Finder looks up file records by derived key and lists files visible to an
// identity. Stateless; safe for concurrent use.
type Finder struct {
	store   metastore.Store
	backend storage.Backend
	logger  logging.Logger
}

func NewFinder(store metastore.Store, backend storage.Backend, logger logging.Logger) *Finder {
	return &Finder{store: store, backend: backend, logger: logger.With("module", "finder")}
}

// FindByKey resolves key within the requested owner scope and, when
// alsoShared is set, falls back to the shared scope. Returns the record and
// the scope it was actually found in. First match wins; a duplicate derived
// key within one collection is undefined input: it is logged, never fatal.
func (f *Finder) FindByKey(ctx context.Context, key string, owner models.OwnerID, alsoShared bool) (*models.FileRecord, models.OwnerID, error) {
	scopes := []models.OwnerID{owner}
	if alsoShared && owner != models.SharedOwner {
		scopes = append(scopes, models.SharedOwner)
	}

	for _, scope := range scopes {
		records, err := metastore.Collection[models.FileRecord](ctx, f.store, scope, metastore.CollectionFiles)
		if err != nil {
			return nil, 0, fmt.Errorf("load files of owner %d: %w", scope, err)
		}

		var found *models.FileRecord
		for i := range records {
			if records[i].Key() != key {
				continue
			}
			if found != nil {
				f.logger.Warn(ctx, "duplicate derived key in collection", "key", key, "owner", scope)
				break
			}
			found = &records[i]
		}
		if found != nil {
			return found, scope, nil
		}
	}

	return nil, 0, common.ErrNotFound
}

// ListForIdentity merges the identity's private records with shared records
// minus those excluding this identity. Every returned record is hydrated.
// O(n) over all shared records per call; fine at this scale.
func (f *Finder) ListForIdentity(ctx context.Context, id models.OwnerID) ([]*models.FileRecord, error) {
	private, err := metastore.Collection[models.FileRecord](ctx, f.store, id, metastore.CollectionFiles)
	if err != nil {
		return nil, fmt.Errorf("load files of owner %d: %w", id, err)
	}

	result := make([]*models.FileRecord, 0, len(private))
	for i := range private {
		result = append(result, &private[i])
	}

	if id != models.SharedOwner {
		sharedRecords, err := metastore.Collection[models.FileRecord](ctx, f.store, models.SharedOwner, metastore.CollectionFiles)
		if err != nil {
			return nil, fmt.Errorf("load shared files: %w", err)
		}
		for i := range sharedRecords {
			if sharedRecords[i].Excludes(id) {
				continue
			}
			result = append(result, &sharedRecords[i])
		}
	}

	for _, rec := range result {
		f.Hydrate(ctx, rec)
	}
	return result, nil
}

// Hydrate refreshes a record's size and timestamp from live storage.
// A failed head leaves the cached values in place and logs the cause;
// listings must not break because one object is briefly unreachable.
func (f *Finder) Hydrate(ctx context.Context, rec *models.FileRecord) {
	info, err := f.backend.Head(ctx, rec.Locator)
	if err != nil {
		f.logger.Warn(ctx, "hydration failed", "file", rec.DisplayName, "error", err)
		return
	}
	rec.Size = info.Size
	rec.ModifiedAt = info.ModifiedAt
}
