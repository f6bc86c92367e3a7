package models

import "time"

// Bundle is a transient, owner-scoped, password-protected ZIP archive.
// It lives in a temporary area and is purged after the retention window.
type Bundle struct {
	Filename   string    `json:"filename"`
	Passphrase string    `json:"passphrase"`
	CreatedAt  time.Time `json:"created_at"`
}

// Expired reports whether the bundle is past the retention window at now.
func (b *Bundle) Expired(now time.Time, retention time.Duration) bool {
	return now.Sub(b.CreatedAt) > retention
}
