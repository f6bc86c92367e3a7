package metastore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dpavlovs/filegate/internal/common"
	"github.com/dpavlovs/filegate/internal/server/models"
)

func newStoreWithMock(t *testing.T) (*PostgresStore, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	return NewPostgresStore(db), mock, db
}

func TestGetCollection_Found(t *testing.T) {
	store, mock, db := newStoreWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`SELECT\s+value\s+FROM\s+meta_collections`).
		WithArgs(int64(7), "files").
		WillReturnRows(sqlmock.NewRows([]string{"value"}).AddRow([]byte(`[{"a":1}]`)))

	raw, err := store.GetCollection(context.Background(), models.OwnerID(7), "files")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(raw) != `[{"a":1}]` {
		t.Fatalf("unexpected payload: %s", raw)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestGetCollection_Missing(t *testing.T) {
	store, mock, db := newStoreWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`SELECT\s+value\s+FROM\s+meta_collections`).
		WithArgs(int64(7), "files").
		WillReturnError(sql.ErrNoRows)

	_, err := store.GetCollection(context.Background(), models.OwnerID(7), "files")
	if !errors.Is(err, common.ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
}

func TestReplaceCollection_Upserts(t *testing.T) {
	store, mock, db := newStoreWithMock(t)
	defer db.Close()

	q := `(?s)^\s*INSERT\s+INTO\s+meta_collections\b.*ON\s+CONFLICT\s*\(owner_id,\s*name\)\s*DO\s+UPDATE\s+SET\b`
	mock.ExpectExec(q).
		WithArgs(int64(0), "bundles", []byte(`[]`)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := store.ReplaceCollection(context.Background(), models.SharedOwner, "bundles", json.RawMessage(`[]`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestSingleton_RoundTripAndMissing(t *testing.T) {
	store, mock, db := newStoreWithMock(t)
	defer db.Close()

	mock.ExpectExec(`(?s)^\s*INSERT\s+INTO\s+meta_singletons\b.*ON\s+CONFLICT\s*\(key\)`).
		WithArgs("settings", []byte(`{"v":1}`)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`SELECT\s+value\s+FROM\s+meta_singletons`).
		WithArgs("settings").
		WillReturnRows(sqlmock.NewRows([]string{"value"}).AddRow([]byte(`{"v":1}`)))
	mock.ExpectQuery(`SELECT\s+value\s+FROM\s+meta_singletons`).
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	ctx := context.Background()
	if err := store.SetSingleton(ctx, "settings", json.RawMessage(`{"v":1}`)); err != nil {
		t.Fatalf("set: %v", err)
	}
	raw, err := store.GetSingleton(ctx, "settings")
	if err != nil || string(raw) != `{"v":1}` {
		t.Fatalf("get: %v %s", err, raw)
	}
	if _, err := store.GetSingleton(ctx, "missing"); !errors.Is(err, common.ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
}

func TestOwnersWithCollection(t *testing.T) {
	store, mock, db := newStoreWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`SELECT\s+owner_id\s+FROM\s+meta_collections\s+WHERE\s+name=`).
		WithArgs("bundles").
		WillReturnRows(sqlmock.NewRows([]string{"owner_id"}).AddRow(int64(0)).AddRow(int64(3)))

	owners, err := store.OwnersWithCollection(context.Background(), "bundles")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(owners) != 2 || owners[0] != models.SharedOwner || owners[1] != models.OwnerID(3) {
		t.Fatalf("unexpected owners: %v", owners)
	}
}
