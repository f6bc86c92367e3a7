// Package auth issues and verifies the two token kinds the service uses:
// identity access tokens and short-lived, action-scoped anti-forgery tokens.
// Both are HS256 JWTs signed with the server secret.
package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/dpavlovs/filegate/internal/common"
	"github.com/dpavlovs/filegate/internal/server/models"
)

// Claims carries the identity attributes the rest of the service consumes:
// who the caller is, whether they are an admin, and their capabilities.
type Claims struct {
	jwt.RegisteredClaims
	IdentityID   models.OwnerID `json:"identity_id"`
	Admin        bool           `json:"admin,omitempty"`
	Capabilities []string       `json:"capabilities,omitempty"`
}

// GenerateToken mints an access token for the given identity.
func GenerateToken(id models.OwnerID, admin bool, capabilities []string, secretKey []byte, validity time.Duration) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(validity)),
		},
		IdentityID:   id,
		Admin:        admin,
		Capabilities: capabilities,
	})

	return token.SignedString(secretKey)
}

// ParseToken verifies an access token and returns its claims.
// Expired tokens yield common.ErrTokenExpired; any other problem yields
// common.ErrInvalidToken.
func ParseToken(tokenString string, secretKey []byte) (*Claims, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return secretKey, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, common.ErrTokenExpired
		}
		return nil, common.ErrInvalidToken
	}

	if !token.Valid {
		return nil, common.ErrInvalidToken
	}

	return claims, nil
}
