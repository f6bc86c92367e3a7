package services

import (
	"bytes"
	"context"
	"crypto/rand"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dpavlovs/filegate/internal/common"
	"github.com/dpavlovs/filegate/internal/logging"
	"github.com/dpavlovs/filegate/internal/server/metastore"
	"github.com/dpavlovs/filegate/internal/server/models"
	"github.com/dpavlovs/filegate/internal/server/registry"
	"github.com/dpavlovs/filegate/internal/server/storage"
)

func testLogger() (logging.Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	return logging.NewSlogLogger(slog.New(slog.NewTextHandler(&buf, nil))), &buf
}

func newFileService(t *testing.T) (*FileService, metastore.Store, *storage.LocalBackend) {
	t.Helper()
	store := metastore.NewMemoryStore()
	backend, err := storage.NewLocalBackend(t.TempDir())
	require.NoError(t, err)
	log, _ := testLogger()
	finder := registry.NewFinder(store, backend, log)
	return NewFileService(store, backend, finder, log), store, backend
}

func TestUpload_StoresAndLists(t *testing.T) {
	svc, _, _ := newFileService(t)
	ctx := context.Background()

	content := make([]byte, 1024)
	_, err := rand.Read(content)
	require.NoError(t, err)

	rec, err := svc.Upload(ctx, 1, "report.pdf", "application/pdf", "", bytes.NewReader(content))
	require.NoError(t, err)
	assert.Equal(t, models.UncategorizedFolder, rec.Folder)
	assert.Equal(t, int64(1024), rec.Size)

	records, err := svc.List(ctx, 1)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "report.pdf", records[0].DisplayName)
	assert.Equal(t, int64(1024), records[0].Size)
	assert.False(t, records[0].IsEncrypted)
}

func TestEncryptDecrypt_RoundTripAtRest(t *testing.T) {
	svc, _, backend := newFileService(t)
	ctx := context.Background()

	plaintext := []byte("quarterly numbers")
	rec, err := svc.Upload(ctx, 1, "numbers.txt", "text/plain", "", bytes.NewReader(plaintext))
	require.NoError(t, err)

	require.NoError(t, svc.Encrypt(ctx, 1, rec.Key(), "s3cret"))

	// bytes at rest must now be ciphertext under the same locator
	stored, err := backend.Get(ctx, rec.Locator)
	require.NoError(t, err)
	assert.NotEqual(t, plaintext, stored)

	records, err := svc.List(ctx, 1)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.True(t, records[0].IsEncrypted)
	assert.Equal(t, rec.Key(), records[0].Key())

	// double encryption is rejected
	assert.ErrorIs(t, svc.Encrypt(ctx, 1, rec.Key(), "s3cret"), ErrAlreadyEncrypted)

	// a wrong passphrase fails generically and leaves everything untouched
	err = svc.Decrypt(ctx, 1, rec.Key(), "wrong")
	assert.ErrorIs(t, err, common.ErrDecryptFailed)
	records, err = svc.List(ctx, 1)
	require.NoError(t, err)
	assert.True(t, records[0].IsEncrypted)

	require.NoError(t, svc.Decrypt(ctx, 1, rec.Key(), "s3cret"))
	stored, err = backend.Get(ctx, rec.Locator)
	require.NoError(t, err)
	assert.Equal(t, plaintext, stored)
}

func TestDecrypt_PlaintextRejected(t *testing.T) {
	svc, _, _ := newFileService(t)
	ctx := context.Background()

	rec, err := svc.Upload(ctx, 1, "plain.txt", "text/plain", "", bytes.NewReader([]byte("x")))
	require.NoError(t, err)

	assert.ErrorIs(t, svc.Decrypt(ctx, 1, rec.Key(), "whatever"), ErrNotEncrypted)
}

func TestBulkDelete_ContinuesPastFailures(t *testing.T) {
	svc, _, _ := newFileService(t)
	ctx := context.Background()

	a, err := svc.Upload(ctx, 1, "a.txt", "text/plain", "", bytes.NewReader([]byte("a")))
	require.NoError(t, err)
	b, err := svc.Upload(ctx, 1, "b.txt", "text/plain", "", bytes.NewReader([]byte("b")))
	require.NoError(t, err)

	result := svc.BulkDelete(ctx, 1, []string{a.Key(), "missing-1", "missing-2", b.Key()})
	assert.Equal(t, 2, result.Succeeded)
	assert.Equal(t, 2, result.Failed)
	// distinct messages only
	assert.Len(t, result.Errors, 1)

	records, err := svc.List(ctx, 1)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestBulkMove_ReassignsFolder(t *testing.T) {
	svc, _, _ := newFileService(t)
	ctx := context.Background()

	rec, err := svc.Upload(ctx, 1, "a.txt", "text/plain", "inbox", bytes.NewReader([]byte("a")))
	require.NoError(t, err)

	result := svc.BulkMove(ctx, 1, []string{rec.Key(), "missing"}, "archive")
	assert.Equal(t, 1, result.Succeeded)
	assert.Equal(t, 1, result.Failed)

	records, err := svc.List(ctx, 1)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "archive", records[0].Folder)
}

func TestBulkMove_ResultIndependentOfKeyOrder(t *testing.T) {
	svc, _, _ := newFileService(t)
	ctx := context.Background()

	a, err := svc.Upload(ctx, 1, "a.txt", "text/plain", "inbox", bytes.NewReader([]byte("a")))
	require.NoError(t, err)
	b, err := svc.Upload(ctx, 1, "b.txt", "text/plain", "inbox", bytes.NewReader([]byte("b")))
	require.NoError(t, err)

	forward := svc.BulkMove(ctx, 1, []string{a.Key(), "missing-1", b.Key(), "missing-2"}, "archive")
	reversed := svc.BulkMove(ctx, 1, []string{"missing-2", b.Key(), "missing-1", a.Key()}, "archive")

	assert.Equal(t, 2, forward.Succeeded)
	assert.Equal(t, 2, forward.Failed)
	assert.Equal(t, forward.Succeeded, reversed.Succeeded)
	assert.Equal(t, forward.Failed, reversed.Failed)
	assert.ElementsMatch(t, forward.Errors, reversed.Errors)
}

func TestSetExclusions_SharedScopeOnly(t *testing.T) {
	svc, store, _ := newFileService(t)
	ctx := context.Background()

	shared := models.FileRecord{DisplayName: "memo.pdf", Locator: models.ObjectKey("filegate/s/memo.pdf")}
	require.NoError(t, metastore.SaveCollection(ctx, store, models.SharedOwner, metastore.CollectionFiles, []models.FileRecord{shared}))

	require.NoError(t, svc.SetExclusions(ctx, shared.Key(), []models.OwnerID{7}))

	// identity 7 no longer sees the shared file, identity 8 still does
	records, err := svc.List(ctx, 7)
	require.NoError(t, err)
	assert.Empty(t, records)

	records, err = svc.List(ctx, 8)
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

func TestSearch_CaseInsensitiveSubstring(t *testing.T) {
	svc, _, _ := newFileService(t)
	ctx := context.Background()

	_, err := svc.Upload(ctx, 1, "Annual-Report.pdf", "application/pdf", "", bytes.NewReader([]byte("r")))
	require.NoError(t, err)
	_, err = svc.Upload(ctx, 1, "notes.txt", "text/plain", "", bytes.NewReader([]byte("n")))
	require.NoError(t, err)

	matched, err := svc.Search(ctx, 1, "report")
	require.NoError(t, err)
	require.Len(t, matched, 1)
	assert.Equal(t, "Annual-Report.pdf", matched[0].DisplayName)

	matched, err = svc.Search(ctx, 1, "nope")
	require.NoError(t, err)
	assert.Empty(t, matched)
}

func TestFolders_CreateDeleteIdempotency(t *testing.T) {
	svc, _, _ := newFileService(t)
	ctx := context.Background()

	require.NoError(t, svc.CreateFolder(ctx, 1, "Reports", ""))
	assert.ErrorIs(t, svc.CreateFolder(ctx, 1, "reports", ""), common.ErrAlreadyExists)
	assert.Error(t, svc.CreateFolder(ctx, 1, "", ""))
	assert.Error(t, svc.CreateFolder(ctx, 1, models.UncategorizedFolder, ""))

	rec, err := svc.Upload(ctx, 1, "a.txt", "text/plain", "Reports", bytes.NewReader([]byte("a")))
	require.NoError(t, err)

	require.NoError(t, svc.DeleteFolder(ctx, 1, "Reports"))

	// files fall back to the uncategorized folder
	records, err := svc.List(ctx, 1)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, rec.Key(), records[0].Key())
	assert.Equal(t, models.UncategorizedFolder, records[0].Folder)

	// repeating the delete reports not-found and changes nothing
	err = svc.DeleteFolder(ctx, 1, "Reports")
	assert.True(t, errors.Is(err, common.ErrNotFound))

	folders, err := svc.ListFolders(ctx, 1)
	require.NoError(t, err)
	assert.Empty(t, folders)
}
