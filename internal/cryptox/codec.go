// Package cryptox implements the symmetric codec used for files encrypted
// at rest. The at-rest blob format is:
//
//	base64( nonce || AES-256-GCM ciphertext )
//
// with the key derived from the user passphrase by a single SHA-256 digest.
// The nonce is not secret and travels with the ciphertext.
package cryptox

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"

	"github.com/dpavlovs/filegate/internal/common"
	"github.com/dpavlovs/filegate/internal/shared"
)

// DeriveKey hashes the passphrase into a fixed-length AES-256 key.
// Kept digest-based (not a memory-hard KDF) so existing encrypted blobs
// remain readable.
func DeriveKey(passphrase string) []byte {
	h := sha256.Sum256([]byte(passphrase))
	return h[:]
}

// Encrypt seals plaintext with a key derived from passphrase. A fresh random
// nonce is generated per call and prepended to the ciphertext before the
// whole blob is base64-encoded.
func Encrypt(plaintext []byte, passphrase string) ([]byte, error) {
	key := DeriveKey(passphrase)
	defer shared.WipeByteArray(key)

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("cipher init: %w", err)
	}
	aesgcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("gcm init: %w", err)
	}

	nonce := make([]byte, aesgcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("nonce: %w", err)
	}

	sealed := aesgcm.Seal(nonce, nonce, plaintext, nil)

	blob := make([]byte, base64.StdEncoding.EncodedLen(len(sealed)))
	base64.StdEncoding.Encode(blob, sealed)
	return blob, nil
}

// Decrypt reverses Encrypt. Any failure (malformed encoding, truncated
// blob, wrong passphrase, or a GCM integrity failure) is reported as the
// single generic common.ErrDecryptFailed so callers cannot distinguish a
// wrong password from corrupted data.
func Decrypt(blob []byte, passphrase string) ([]byte, error) {
	sealed := make([]byte, base64.StdEncoding.DecodedLen(len(blob)))
	n, err := base64.StdEncoding.Decode(sealed, blob)
	if err != nil {
		return nil, common.ErrDecryptFailed
	}
	sealed = sealed[:n]

	key := DeriveKey(passphrase)
	defer shared.WipeByteArray(key)

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, common.ErrDecryptFailed
	}
	aesgcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, common.ErrDecryptFailed
	}

	if len(sealed) < aesgcm.NonceSize() {
		return nil, common.ErrDecryptFailed
	}
	nonce, ciphertext := sealed[:aesgcm.NonceSize()], sealed[aesgcm.NonceSize():]

	plaintext, err := aesgcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, common.ErrDecryptFailed
	}
	return plaintext, nil
}
