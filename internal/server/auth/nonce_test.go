package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/dpavlovs/filegate/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestActionToken_RoundTrip(t *testing.T) {
	tok, err := GenerateActionToken(7, "download", testSecret, time.Minute)
	require.NoError(t, err)

	assert.NoError(t, VerifyActionToken(tok, 7, "download", testSecret))
}

func TestActionToken_Mismatches(t *testing.T) {
	tok, err := GenerateActionToken(7, "download", testSecret, time.Minute)
	require.NoError(t, err)

	tests := []struct {
		name string
		err  error
	}{
		{"wrong identity", VerifyActionToken(tok, 8, "download", testSecret)},
		{"wrong action", VerifyActionToken(tok, 7, "bundle", testSecret)},
		{"wrong secret", VerifyActionToken(tok, 7, "download", []byte("other"))},
		{"garbage", VerifyActionToken("garbage", 7, "download", testSecret)},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.True(t, errors.Is(tc.err, common.ErrInvalidToken))
		})
	}
}

func TestActionToken_Expired(t *testing.T) {
	tok, err := GenerateActionToken(7, "download", testSecret, -time.Minute)
	require.NoError(t, err)

	assert.True(t, errors.Is(VerifyActionToken(tok, 7, "download", testSecret), common.ErrInvalidToken))
}
