package registry

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/dpavlovs/filegate/internal/common"
	"github.com/dpavlovs/filegate/internal/logging"
	"github.com/dpavlovs/filegate/internal/server/metastore"
	"github.com/dpavlovs/filegate/internal/server/models"
	"github.com/dpavlovs/filegate/internal/server/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() (logging.Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	return logging.NewSlogLogger(slog.New(slog.NewTextHandler(&buf, nil))), &buf
}

type fakeBackend struct {
	storage.Backend
	infos   map[string]storage.ObjectInfo
	headErr error
}

func (f *fakeBackend) Head(ctx context.Context, loc models.Locator) (storage.ObjectInfo, error) {
	if f.headErr != nil {
		return storage.ObjectInfo{}, f.headErr
	}
	return f.infos[models.DeriveKey(loc)], nil
}

func seedFiles(t *testing.T, store metastore.Store, owner models.OwnerID, records []models.FileRecord) {
	t.Helper()
	require.NoError(t, metastore.SaveCollection(context.Background(), store, owner, metastore.CollectionFiles, records))
}

func TestFindByKey_OwnScopeFirstThenShared(t *testing.T) {
	store := metastore.NewMemoryStore()
	log, _ := testLogger()
	f := NewFinder(store, &fakeBackend{}, log)
	ctx := context.Background()

	mine := models.FileRecord{DisplayName: "mine.pdf", Locator: models.ObjectKey("filegate/a/mine.pdf")}
	shared := models.FileRecord{DisplayName: "shared.pdf", Locator: models.ObjectKey("filegate/b/shared.pdf")}
	seedFiles(t, store, 1, []models.FileRecord{mine})
	seedFiles(t, store, models.SharedOwner, []models.FileRecord{shared})

	rec, scope, err := f.FindByKey(ctx, mine.Key(), 1, true)
	require.NoError(t, err)
	assert.Equal(t, "mine.pdf", rec.DisplayName)
	assert.Equal(t, models.OwnerID(1), scope)

	rec, scope, err = f.FindByKey(ctx, shared.Key(), 1, true)
	require.NoError(t, err)
	assert.Equal(t, "shared.pdf", rec.DisplayName)
	assert.Equal(t, models.SharedOwner, scope)

	// shared search disabled
	_, _, err = f.FindByKey(ctx, shared.Key(), 1, false)
	assert.True(t, errors.Is(err, common.ErrNotFound))

	_, _, err = f.FindByKey(ctx, "nope", 1, true)
	assert.True(t, errors.Is(err, common.ErrNotFound))
}

func TestFindByKey_DuplicateKeyFirstMatchWinsAndWarns(t *testing.T) {
	store := metastore.NewMemoryStore()
	log, buf := testLogger()
	f := NewFinder(store, &fakeBackend{}, log)

	dup := models.ObjectKey("filegate/a/dup.pdf")
	seedFiles(t, store, 1, []models.FileRecord{
		{DisplayName: "first.pdf", Locator: dup},
		{DisplayName: "second.pdf", Locator: dup},
	})

	rec, _, err := f.FindByKey(context.Background(), models.DeriveKey(dup), 1, false)
	require.NoError(t, err)
	assert.Equal(t, "first.pdf", rec.DisplayName)
	assert.Contains(t, buf.String(), "duplicate derived key")
}

func TestListForIdentity_MergesAndFiltersAndHydrates(t *testing.T) {
	store := metastore.NewMemoryStore()
	log, _ := testLogger()

	private := models.FileRecord{DisplayName: "mine.pdf", Locator: models.LocalPath("/up/mine.pdf"), Folder: "reports"}
	visible := models.FileRecord{DisplayName: "memo.pdf", Locator: models.ObjectKey("filegate/s/memo.pdf")}
	hidden := models.FileRecord{DisplayName: "secret.pdf", Locator: models.ObjectKey("filegate/s/secret.pdf"), Excluded: []models.OwnerID{7}}

	seedFiles(t, store, 7, []models.FileRecord{private})
	seedFiles(t, store, models.SharedOwner, []models.FileRecord{visible, hidden})

	backend := &fakeBackend{infos: map[string]storage.ObjectInfo{
		private.Key(): {Size: 1024},
		visible.Key(): {Size: 42},
	}}
	f := NewFinder(store, backend, log)

	records, err := f.ListForIdentity(context.Background(), 7)
	require.NoError(t, err)
	require.Len(t, records, 2)

	byName := map[string]*models.FileRecord{}
	for _, r := range records {
		byName[r.DisplayName] = r
	}
	require.Contains(t, byName, "mine.pdf")
	require.Contains(t, byName, "memo.pdf")
	assert.NotContains(t, byName, "secret.pdf")

	// hydrated sizes come from the backend, not the stored record
	assert.Equal(t, int64(1024), byName["mine.pdf"].Size)
	assert.Equal(t, int64(42), byName["memo.pdf"].Size)
}

func TestListForIdentity_HydrationFailureKeepsRecord(t *testing.T) {
	store := metastore.NewMemoryStore()
	log, buf := testLogger()

	rec := models.FileRecord{DisplayName: "mine.pdf", Locator: models.ObjectKey("filegate/a/mine.pdf")}
	seedFiles(t, store, 7, []models.FileRecord{rec})

	f := NewFinder(store, &fakeBackend{headErr: errors.New("endpoint down")}, log)

	records, err := f.ListForIdentity(context.Background(), 7)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Contains(t, buf.String(), "hydration failed")
}
