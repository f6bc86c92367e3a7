package audit

import (
	"context"

	"github.com/dpavlovs/filegate/internal/server/models"
)

// Repository persists the append-only delivery audit trail.
type Repository interface {
	// Append stores one entry. Entries are never mutated or deleted by the
	// application; retention is external tooling's job.
	Append(ctx context.Context, entry *models.AuditEntry) error

	// List returns a page of entries ordered newest-first, plus the total
	// entry count.
	List(ctx context.Context, limit, offset int) ([]*models.AuditEntry, int64, error)
}
