package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/dpavlovs/filegate/internal/common"
	"github.com/dpavlovs/filegate/internal/server/models"
)

// Anti-forgery tokens are minted per identity and per action ("download",
// "bundle", ...) and expire quickly. Every dispatch path verifies one
// before any authorization or I/O work.

type nonceClaims struct {
	jwt.RegisteredClaims
	IdentityID models.OwnerID `json:"identity_id"`
	Action     string         `json:"action"`
}

// GenerateActionToken mints an anti-forgery token binding identity and action.
func GenerateActionToken(id models.OwnerID, action string, secretKey []byte, validity time.Duration) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, nonceClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(validity)),
		},
		IdentityID: id,
		Action:     action,
	})

	return token.SignedString(secretKey)
}

// VerifyActionToken checks that tokenString is a live anti-forgery token for
// exactly this identity and action. Any mismatch or parse problem yields
// common.ErrInvalidToken; the caller rejects before doing any other work.
func VerifyActionToken(tokenString string, id models.OwnerID, action string, secretKey []byte) error {
	claims := &nonceClaims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return secretKey, nil
	})
	if err != nil || !token.Valid {
		return common.ErrInvalidToken
	}

	if claims.IdentityID != id || claims.Action != action {
		return common.ErrInvalidToken
	}

	return nil
}
