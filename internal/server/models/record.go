// Package models holds the persisted data shapes of the file-distribution
// core: file records, folders, bundles, and audit entries.
package models

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"slices"
	"time"
)

// OwnerID is an identity identifier. Every record lives in exactly one owner
// scope: a single identity's private space (id > 0) or the shared space.
type OwnerID int64

// SharedOwner is the sentinel owner of the shared/global scope.
const SharedOwner OwnerID = 0

// UncategorizedFolder is where files land when their folder is deleted.
const UncategorizedFolder = "/"

// FileRecord describes one uploaded file. Size and ModifiedAt are cached
// values refreshed from live storage (hydration) and never trusted as stored.
type FileRecord struct {
	DisplayName string
	ContentType string
	Locator     Locator
	Folder      string
	IsEncrypted bool
	// Excluded lists identities barred from a shared record. It carries no
	// meaning on an owner-scoped record.
	Excluded []OwnerID

	Size       int64
	ModifiedAt time.Time
}

// Excludes reports whether the given identity is barred from this record.
func (r *FileRecord) Excludes(id OwnerID) bool {
	return slices.Contains(r.Excluded, id)
}

// DeriveKey computes the opaque identifier a client uses to address a file:
// the object key verbatim, or a digest of the local path. Identity is tied
// to storage location on purpose (compatibility); keep every derivation
// inside this one function so a move to a surrogate key stays a local change.
func DeriveKey(l Locator) string {
	switch v := l.(type) {
	case ObjectKey:
		return string(v)
	case LocalPath:
		h := sha256.Sum256([]byte(v))
		return hex.EncodeToString(h[:])
	default:
		return ""
	}
}

// Key returns the record's derived key.
func (r *FileRecord) Key() string {
	return DeriveKey(r.Locator)
}

type fileRecordDTO struct {
	DisplayName string          `json:"display_name"`
	ContentType string          `json:"content_type,omitempty"`
	Locator     json.RawMessage `json:"locator"`
	Folder      string          `json:"folder"`
	IsEncrypted bool            `json:"is_encrypted,omitempty"`
	Excluded    []OwnerID       `json:"excluded_identities,omitempty"`
}

func (r FileRecord) MarshalJSON() ([]byte, error) {
	loc, err := MarshalLocator(r.Locator)
	if err != nil {
		return nil, err
	}
	return json.Marshal(fileRecordDTO{
		DisplayName: r.DisplayName,
		ContentType: r.ContentType,
		Locator:     loc,
		Folder:      r.Folder,
		IsEncrypted: r.IsEncrypted,
		Excluded:    r.Excluded,
	})
}

func (r *FileRecord) UnmarshalJSON(b []byte) error {
	var dto fileRecordDTO
	if err := json.Unmarshal(b, &dto); err != nil {
		return err
	}
	loc, err := UnmarshalLocator(dto.Locator)
	if err != nil {
		return err
	}
	r.DisplayName = dto.DisplayName
	r.ContentType = dto.ContentType
	r.Locator = loc
	r.Folder = dto.Folder
	r.IsEncrypted = dto.IsEncrypted
	r.Excluded = dto.Excluded
	if r.Folder == "" {
		r.Folder = UncategorizedFolder
	}
	return nil
}

// Folder is a named grouping of files, scoped to one owner or shared.
// Name uniqueness is case-insensitive within its scope.
type Folder struct {
	Name     string `json:"name"`
	Location string `json:"location,omitempty"`
}
