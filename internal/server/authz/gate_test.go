package authz

import (
	"testing"

	"github.com/dpavlovs/filegate/internal/server/models"
	"github.com/stretchr/testify/assert"
)

func TestAuthorize(t *testing.T) {
	shared := &models.FileRecord{DisplayName: "shared.pdf", Excluded: []models.OwnerID{2}}
	private := &models.FileRecord{DisplayName: "mine.pdf"}

	tests := []struct {
		name        string
		rec         *models.FileRecord
		recordOwner models.OwnerID
		requester   models.OwnerID
		isAdmin     bool
		want        bool
	}{
		{"admin always allowed on private", private, 1, 99, true, true},
		{"admin always allowed even when excluded", shared, models.SharedOwner, 2, true, true},
		{"owner allowed", private, 5, 5, false, true},
		{"other identity denied on private", private, 5, 6, false, false},
		{"shared allowed when not excluded", shared, models.SharedOwner, 3, false, true},
		{"shared denied when excluded", shared, models.SharedOwner, 2, false, false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Authorize(tc.rec, tc.recordOwner, tc.requester, tc.isAdmin))
		})
	}
}

// Authorize must be a pure function: same inputs, same answer, every time.
func TestAuthorize_Pure(t *testing.T) {
	rec := &models.FileRecord{Excluded: []models.OwnerID{4}}
	for i := 0; i < 3; i++ {
		assert.True(t, Authorize(rec, models.SharedOwner, 3, false))
		assert.False(t, Authorize(rec, models.SharedOwner, 4, false))
	}
}
