package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/dpavlovs/filegate/internal/common"
	"github.com/dpavlovs/filegate/internal/server/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testSecret = []byte("test-secret")

func TestGenerateParseToken(t *testing.T) {
	tok, err := GenerateToken(7, true, []string{"manage_files"}, testSecret, time.Minute)
	require.NoError(t, err)

	claims, err := ParseToken(tok, testSecret)
	require.NoError(t, err)
	assert.Equal(t, models.OwnerID(7), claims.IdentityID)
	assert.True(t, claims.Admin)
	assert.Equal(t, []string{"manage_files"}, claims.Capabilities)
}

func TestParseToken_WrongSecret(t *testing.T) {
	tok, err := GenerateToken(7, false, nil, testSecret, time.Minute)
	require.NoError(t, err)

	_, err = ParseToken(tok, []byte("other-secret"))
	assert.True(t, errors.Is(err, common.ErrInvalidToken))
}

func TestParseToken_Expired(t *testing.T) {
	tok, err := GenerateToken(7, false, nil, testSecret, -time.Minute)
	require.NoError(t, err)

	_, err = ParseToken(tok, testSecret)
	assert.True(t, errors.Is(err, common.ErrTokenExpired))
}

func TestParseToken_Garbage(t *testing.T) {
	_, err := ParseToken("not-a-token", testSecret)
	assert.True(t, errors.Is(err, common.ErrInvalidToken))
}
