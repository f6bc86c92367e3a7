package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dpavlovs/filegate/internal/server/models"
)

func TestRecord_FailureIsSwallowedAndLogged(t *testing.T) {
	log, buf := testLogger()
	repo := &memAuditRepo{err: errors.New("db down")}
	svc := NewAuditService(repo, log)

	// must not panic or surface the error
	svc.Record(context.Background(), 1, "a.txt", "10.0.0.5")
	assert.Contains(t, buf.String(), "audit append failed")
}

func TestQuery_DefaultsPageAndSize(t *testing.T) {
	log, _ := testLogger()
	repo := &memAuditRepo{entries: []*models.AuditEntry{
		{IdentityID: 1, DisplayName: "a.txt"},
		{IdentityID: 2, DisplayName: "b.txt"},
	}}
	svc := NewAuditService(repo, log)

	entries, total, err := svc.Query(context.Background(), 0, -5)
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Len(t, entries, 2)
}
