package models

import "time"

// AuditEntry is an immutable record of one successful delivery.
// Append-only; the application never mutates or deletes entries.
type AuditEntry struct {
	ID          int64     `json:"id"`
	IdentityID  OwnerID   `json:"identity_id"`
	DisplayName string    `json:"display_name"`
	IP          string    `json:"ip"`
	Timestamp   time.Time `json:"utc_timestamp"`
}
