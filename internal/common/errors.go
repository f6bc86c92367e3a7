// Package common defines shared constants and sentinel errors used across
// FileGate components. Callers should use errors.Is to match these values.
package common

import "errors"

var (
	// Repository/metadata-level errors.
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")

	// Service-level errors (generic/internal flow control).
	ErrInternal     = errors.New("internal error")
	ErrUnauthorized = errors.New("unauthorized")

	// Anti-forgery/auth token errors.
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")

	// Crypto codec errors. ErrDecryptFailed deliberately covers both a wrong
	// passphrase and a corrupted blob so callers cannot tell them apart.
	ErrDecryptFailed = errors.New("decryption failed")

	// Storage backend errors.
	ErrNotSupported = errors.New("operation not supported by this backend")
)
