package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocatorJSON_RoundTrip(t *testing.T) {
	for _, loc := range []Locator{LocalPath("/var/uploads/a.pdf"), ObjectKey("filegate/x/a.pdf")} {
		raw, err := MarshalLocator(loc)
		require.NoError(t, err)

		got, err := UnmarshalLocator(raw)
		require.NoError(t, err)
		assert.Equal(t, loc, got)
	}
}

func TestUnmarshalLocator_RejectsBothAndNeither(t *testing.T) {
	_, err := UnmarshalLocator(json.RawMessage(`{"local_path":"/a","object_key":"k"}`))
	assert.Error(t, err)

	_, err = UnmarshalLocator(json.RawMessage(`{}`))
	assert.Error(t, err)
}

func TestDeriveKey(t *testing.T) {
	// object keys address themselves
	assert.Equal(t, "filegate/x/a.pdf", DeriveKey(ObjectKey("filegate/x/a.pdf")))

	// local paths hash; derivation is stable and path-sensitive
	k1 := DeriveKey(LocalPath("/var/uploads/a.pdf"))
	k2 := DeriveKey(LocalPath("/var/uploads/a.pdf"))
	k3 := DeriveKey(LocalPath("/var/uploads/b.pdf"))
	assert.Equal(t, k1, k2)
	assert.NotEqual(t, k1, k3)
	assert.Len(t, k1, 64)
}

func TestFileRecordJSON_RoundTrip(t *testing.T) {
	rec := FileRecord{
		DisplayName: "report.pdf",
		ContentType: "application/pdf",
		Locator:     ObjectKey("filegate/x/report.pdf"),
		Folder:      "reports",
		IsEncrypted: true,
		Excluded:    []OwnerID{7, 9},
	}

	b, err := json.Marshal(rec)
	require.NoError(t, err)

	var got FileRecord
	require.NoError(t, json.Unmarshal(b, &got))
	assert.Equal(t, rec, got)
}

func TestFileRecordJSON_EmptyFolderDefaultsToUncategorized(t *testing.T) {
	var got FileRecord
	require.NoError(t, json.Unmarshal([]byte(`{"display_name":"a","locator":{"object_key":"k"}}`), &got))
	assert.Equal(t, UncategorizedFolder, got.Folder)
}

func TestFileRecord_Excludes(t *testing.T) {
	rec := FileRecord{Excluded: []OwnerID{2, 4}}
	assert.True(t, rec.Excludes(2))
	assert.False(t, rec.Excludes(3))
}
