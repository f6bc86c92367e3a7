// Package metastore is the boundary to the key-value metadata store holding
// per-owner collections (file records, folders, bundles) and global
// singletons. The store offers no transactions across keys; a collection is
// always replaced whole. The read-modify-write pattern that implies is
// isolated behind UpdateCollection; concurrent mutations of the same
// owner's collection remain a documented race (single-admin usage pattern).
package metastore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dpavlovs/filegate/internal/common"
	"github.com/dpavlovs/filegate/internal/server/models"
)

// Well-known collection names.
const (
	CollectionFiles   = "files"
	CollectionFolders = "folders"
	CollectionBundles = "bundles"
)

// Store is the raw key-value interface. Values are opaque JSON documents.
type Store interface {
	// GetCollection returns the stored document for (owner, name) or
	// common.ErrNotFound.
	GetCollection(ctx context.Context, owner models.OwnerID, name string) (json.RawMessage, error)

	// ReplaceCollection overwrites the whole document for (owner, name).
	ReplaceCollection(ctx context.Context, owner models.OwnerID, name string, value json.RawMessage) error

	// GetSingleton returns the global document stored under key or
	// common.ErrNotFound.
	GetSingleton(ctx context.Context, key string) (json.RawMessage, error)

	// SetSingleton overwrites the global document stored under key.
	SetSingleton(ctx context.Context, key string, value json.RawMessage) error

	// OwnersWithCollection lists every owner that has a document under the
	// given collection name. Used by the bundle sweep.
	OwnersWithCollection(ctx context.Context, name string) ([]models.OwnerID, error)
}

// Collection decodes the (owner, name) document into a typed slice.
// A missing document is an empty collection, not an error.
func Collection[T any](ctx context.Context, s Store, owner models.OwnerID, name string) ([]T, error) {
	raw, err := s.GetCollection(ctx, owner, name)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	var items []T
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, fmt.Errorf("decode collection %s/%d: %w", name, owner, err)
	}
	return items, nil
}

// SaveCollection encodes items and replaces the (owner, name) document.
func SaveCollection[T any](ctx context.Context, s Store, owner models.OwnerID, name string, items []T) error {
	if items == nil {
		items = []T{}
	}
	raw, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("encode collection %s/%d: %w", name, owner, err)
	}
	return s.ReplaceCollection(ctx, owner, name, raw)
}

// UpdateCollection reads a typed collection, applies mutate, and writes the
// result back whole. This is the single place the collection-level
// read-modify-write happens; callers must treat it as last-writer-wins.
func UpdateCollection[T any](ctx context.Context, s Store, owner models.OwnerID, name string, mutate func([]T) ([]T, error)) error {
	items, err := Collection[T](ctx, s, owner, name)
	if err != nil {
		return err
	}
	updated, err := mutate(items)
	if err != nil {
		return err
	}
	return SaveCollection(ctx, s, owner, name, updated)
}
