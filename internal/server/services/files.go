// Package services contains the server-side business logic: file
// management, download dispatch, bundle building, and audit logging.
package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dpavlovs/filegate/internal/common"
	"github.com/dpavlovs/filegate/internal/cryptox"
	"github.com/dpavlovs/filegate/internal/logging"
	"github.com/dpavlovs/filegate/internal/server/metastore"
	"github.com/dpavlovs/filegate/internal/server/models"
	"github.com/dpavlovs/filegate/internal/server/registry"
	"github.com/dpavlovs/filegate/internal/server/storage"
)

var (
	// ErrAlreadyEncrypted is returned when encrypting a record that is
	// already ciphertext at rest.
	ErrAlreadyEncrypted = errors.New("file is already encrypted")

	// ErrNotEncrypted is returned when decrypting a plaintext record, or
	// requesting encrypted-mode delivery of one.
	ErrNotEncrypted = errors.New("file is not encrypted")
)

// FileService implements the management operations over file records and
// folders. All operations are owner-scoped; callers pass SharedOwner to
// manage the shared space.
type FileService struct {
	store   metastore.Store
	backend storage.Backend
	finder  *registry.Finder
	logger  logging.Logger
}

func NewFileService(store metastore.Store, backend storage.Backend, finder *registry.Finder, logger logging.Logger) *FileService {
	return &FileService{
		store:   store,
		backend: backend,
		finder:  finder,
		logger:  logger.With("module", "files"),
	}
}

// Upload stores the content and appends a record to the owner's collection.
func (s *FileService) Upload(ctx context.Context, owner models.OwnerID, name, contentType, folder string, r io.Reader) (*models.FileRecord, error) {
	if folder == "" {
		folder = models.UncategorizedFolder
	}

	loc, size, err := s.backend.Put(ctx, r, name)
	if err != nil {
		return nil, fmt.Errorf("store upload: %w", err)
	}

	rec := models.FileRecord{
		DisplayName: name,
		ContentType: contentType,
		Locator:     loc,
		Folder:      folder,
		Size:        size,
		ModifiedAt:  time.Now().UTC(),
	}

	err = metastore.UpdateCollection(ctx, s.store, owner, metastore.CollectionFiles, func(records []models.FileRecord) ([]models.FileRecord, error) {
		return append(records, rec), nil
	})
	if err != nil {
		// metadata write failed; remove the freshly stored object so no
		// unaddressable orphan is left behind
		if derr := s.backend.Delete(ctx, loc); derr != nil {
			s.logger.Error(ctx, "orphan cleanup failed after metadata error", "file", name, "error", derr)
		}
		return nil, err
	}

	s.logger.Info(ctx, "file uploaded", "file", name, "owner", owner, "size", size)
	return &rec, nil
}

// updateOne applies mutate to the single record matching key within the
// owner's collection. This is the only place a management operation rewrites
// the files collection; the whole-collection read-modify-write stays
// confined here (last-writer-wins, documented race).
func (s *FileService) updateOne(ctx context.Context, owner models.OwnerID, key string, mutate func(*models.FileRecord) error) error {
	return metastore.UpdateCollection(ctx, s.store, owner, metastore.CollectionFiles, func(records []models.FileRecord) ([]models.FileRecord, error) {
		for i := range records {
			if records[i].Key() == key {
				if err := mutate(&records[i]); err != nil {
					return nil, err
				}
				return records, nil
			}
		}
		return nil, common.ErrNotFound
	})
}

func (s *FileService) deleteOne(ctx context.Context, owner models.OwnerID, key string) error {
	var target *models.FileRecord

	records, err := metastore.Collection[models.FileRecord](ctx, s.store, owner, metastore.CollectionFiles)
	if err != nil {
		return err
	}
	for i := range records {
		if records[i].Key() == key {
			target = &records[i]
			break
		}
	}
	if target == nil {
		return common.ErrNotFound
	}

	// remove the physical object first; a missing object is fine (metadata
	// cleanup should still proceed), any other storage failure keeps the
	// record so the operation can be retried
	if err := s.backend.Delete(ctx, target.Locator); err != nil && !errors.Is(err, common.ErrNotFound) {
		return err
	}

	return metastore.UpdateCollection(ctx, s.store, owner, metastore.CollectionFiles, func(records []models.FileRecord) ([]models.FileRecord, error) {
		kept := records[:0]
		for _, rec := range records {
			if rec.Key() != key {
				kept = append(kept, rec)
			}
		}
		return kept, nil
	})
}

// BulkDelete removes every addressed file, continuing past failures.
func (s *FileService) BulkDelete(ctx context.Context, owner models.OwnerID, keys []string) *BatchResult {
	result := &BatchResult{}
	for _, key := range keys {
		if err := s.deleteOne(ctx, owner, key); err != nil {
			s.logger.Warn(ctx, "delete failed", "key", key, "error", err)
			result.failure(err)
			continue
		}
		result.success()
	}
	return result
}

// BulkMove reassigns the addressed files to folder, continuing past failures.
func (s *FileService) BulkMove(ctx context.Context, owner models.OwnerID, keys []string, folder string) *BatchResult {
	if folder == "" {
		folder = models.UncategorizedFolder
	}

	result := &BatchResult{}
	for _, key := range keys {
		err := s.updateOne(ctx, owner, key, func(rec *models.FileRecord) error {
			rec.Folder = folder
			return nil
		})
		if err != nil {
			s.logger.Warn(ctx, "move failed", "key", key, "error", err)
			result.failure(err)
			continue
		}
		result.success()
	}
	return result
}

// Encrypt rewrites the file's bytes at rest as ciphertext under passphrase
// and flips the record's encryption flag. The locator, and therefore the
// derived key, does not change.
func (s *FileService) Encrypt(ctx context.Context, owner models.OwnerID, key, passphrase string) error {
	return s.transform(ctx, owner, key, func(rec *models.FileRecord, content []byte) ([]byte, error) {
		if rec.IsEncrypted {
			return nil, ErrAlreadyEncrypted
		}
		blob, err := cryptox.Encrypt(content, passphrase)
		if err != nil {
			return nil, err
		}
		rec.IsEncrypted = true
		return blob, nil
	})
}

// Decrypt is the inverse management operation: ciphertext back to plaintext
// at rest.
func (s *FileService) Decrypt(ctx context.Context, owner models.OwnerID, key, passphrase string) error {
	return s.transform(ctx, owner, key, func(rec *models.FileRecord, content []byte) ([]byte, error) {
		if !rec.IsEncrypted {
			return nil, ErrNotEncrypted
		}
		plaintext, err := cryptox.Decrypt(content, passphrase)
		if err != nil {
			return nil, err
		}
		rec.IsEncrypted = false
		return plaintext, nil
	})
}

func (s *FileService) transform(ctx context.Context, owner models.OwnerID, key string, fn func(*models.FileRecord, []byte) ([]byte, error)) error {
	records, err := metastore.Collection[models.FileRecord](ctx, s.store, owner, metastore.CollectionFiles)
	if err != nil {
		return err
	}

	var target *models.FileRecord
	for i := range records {
		if records[i].Key() == key {
			target = &records[i]
			break
		}
	}
	if target == nil {
		return common.ErrNotFound
	}

	content, err := s.backend.Get(ctx, target.Locator)
	if err != nil {
		return err
	}

	replacement, err := fn(target, content)
	if err != nil {
		return err
	}

	if _, err := s.backend.Replace(ctx, target.Locator, bytes.NewReader(replacement)); err != nil {
		return err
	}

	// persist the flipped flag only after the bytes are rewritten
	return s.updateOne(ctx, owner, key, func(rec *models.FileRecord) error {
		rec.IsEncrypted = target.IsEncrypted
		return nil
	})
}

// SetExclusions replaces the exclusion list of a shared record.
func (s *FileService) SetExclusions(ctx context.Context, key string, excluded []models.OwnerID) error {
	return s.updateOne(ctx, models.SharedOwner, key, func(rec *models.FileRecord) error {
		rec.Excluded = excluded
		return nil
	})
}

// Search returns the requester's visible files whose display name contains
// the query, case-insensitively.
func (s *FileService) Search(ctx context.Context, id models.OwnerID, query string) ([]*models.FileRecord, error) {
	records, err := s.finder.ListForIdentity(ctx, id)
	if err != nil {
		return nil, err
	}

	q := strings.ToLower(query)
	matched := make([]*models.FileRecord, 0, len(records))
	for _, rec := range records {
		if strings.Contains(strings.ToLower(rec.DisplayName), q) {
			matched = append(matched, rec)
		}
	}
	return matched, nil
}

// CreateFolder adds a folder to the owner's scope. Names are unique
// case-insensitively within the scope.
func (s *FileService) CreateFolder(ctx context.Context, owner models.OwnerID, name, location string) error {
	if name == "" || name == models.UncategorizedFolder {
		return fmt.Errorf("invalid folder name %q", name)
	}

	return metastore.UpdateCollection(ctx, s.store, owner, metastore.CollectionFolders, func(folders []models.Folder) ([]models.Folder, error) {
		for _, f := range folders {
			if strings.EqualFold(f.Name, name) {
				return nil, common.ErrAlreadyExists
			}
		}
		return append(folders, models.Folder{Name: name, Location: location}), nil
	})
}

// DeleteFolder removes the folder and reassigns its files to the
// uncategorized folder. Deleting an absent folder reports ErrNotFound and
// nothing else; the operation is safe to repeat.
func (s *FileService) DeleteFolder(ctx context.Context, owner models.OwnerID, name string) error {
	err := metastore.UpdateCollection(ctx, s.store, owner, metastore.CollectionFolders, func(folders []models.Folder) ([]models.Folder, error) {
		kept := folders[:0]
		found := false
		for _, f := range folders {
			if strings.EqualFold(f.Name, name) {
				found = true
				continue
			}
			kept = append(kept, f)
		}
		if !found {
			return nil, common.ErrNotFound
		}
		return kept, nil
	})
	if err != nil {
		return err
	}

	// files never keep a dangling folder reference
	return metastore.UpdateCollection(ctx, s.store, owner, metastore.CollectionFiles, func(records []models.FileRecord) ([]models.FileRecord, error) {
		for i := range records {
			if strings.EqualFold(records[i].Folder, name) {
				records[i].Folder = models.UncategorizedFolder
			}
		}
		return records, nil
	})
}

// ListFolders returns the folders of the owner's scope.
func (s *FileService) ListFolders(ctx context.Context, owner models.OwnerID) ([]models.Folder, error) {
	return metastore.Collection[models.Folder](ctx, s.store, owner, metastore.CollectionFolders)
}

// List returns the hydrated records visible to the identity.
func (s *FileService) List(ctx context.Context, id models.OwnerID) ([]*models.FileRecord, error) {
	return s.finder.ListForIdentity(ctx, id)
}
