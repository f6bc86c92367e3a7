package services

import (
	"context"
	"time"

	"github.com/dpavlovs/filegate/internal/logging"
	"github.com/dpavlovs/filegate/internal/server/models"
	"github.com/dpavlovs/filegate/internal/server/repositories/audit"
)

// AuditService records successful deliveries and serves the audit page.
type AuditService struct {
	repo   audit.Repository
	logger logging.Logger
}

func NewAuditService(repo audit.Repository, logger logging.Logger) *AuditService {
	return &AuditService{repo: repo, logger: logger.With("module", "audit")}
}

// Record appends one entry, fire-and-forget: it runs after the point of no
// return of a delivery, so a logging failure must never fail the download it
// accompanies. Failures are logged server-side only.
func (s *AuditService) Record(ctx context.Context, id models.OwnerID, displayName, clientIP string) {
	entry := &models.AuditEntry{
		IdentityID:  id,
		DisplayName: displayName,
		IP:          clientIP,
		Timestamp:   time.Now().UTC(),
	}
	if err := s.repo.Append(ctx, entry); err != nil {
		s.logger.Error(ctx, "audit append failed", "file", displayName, "identity", id, "error", err)
	}
}

// Query returns one page of entries, newest first, plus the total count.
func (s *AuditService) Query(ctx context.Context, page, pageSize int) ([]*models.AuditEntry, int64, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 50
	}
	return s.repo.List(ctx, pageSize, (page-1)*pageSize)
}
