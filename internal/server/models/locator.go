package models

import (
	"encoding/json"
	"errors"
)

// Locator identifies where a file's bytes live. It is a closed variant:
// exactly one of LocalPath or ObjectKey, never both, never neither.
// The zero invariant is enforced structurally by the type switch in
// consumers and at the JSON boundary by UnmarshalJSON below.
type Locator interface {
	isLocator()
}

// LocalPath locates a file on the local filesystem.
type LocalPath string

// ObjectKey locates an object in the S3-compatible backend.
type ObjectKey string

func (LocalPath) isLocator() {}
func (ObjectKey) isLocator() {}

var errBadLocator = errors.New("locator must carry exactly one of local_path or object_key")

// locatorDTO is the persisted shape of a Locator.
type locatorDTO struct {
	LocalPath string `json:"local_path,omitempty"`
	ObjectKey string `json:"object_key,omitempty"`
}

// MarshalLocator converts a Locator to its JSON form.
func MarshalLocator(l Locator) (json.RawMessage, error) {
	switch v := l.(type) {
	case LocalPath:
		return json.Marshal(locatorDTO{LocalPath: string(v)})
	case ObjectKey:
		return json.Marshal(locatorDTO{ObjectKey: string(v)})
	default:
		return nil, errBadLocator
	}
}

// UnmarshalLocator parses the JSON form back into a Locator, rejecting
// records that carry both or neither field.
func UnmarshalLocator(raw json.RawMessage) (Locator, error) {
	var dto locatorDTO
	if err := json.Unmarshal(raw, &dto); err != nil {
		return nil, err
	}
	switch {
	case dto.LocalPath != "" && dto.ObjectKey != "":
		return nil, errBadLocator
	case dto.LocalPath != "":
		return LocalPath(dto.LocalPath), nil
	case dto.ObjectKey != "":
		return ObjectKey(dto.ObjectKey), nil
	default:
		return nil, errBadLocator
	}
}
