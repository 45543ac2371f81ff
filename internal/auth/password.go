// Package auth implements password hashing and the signed session cookie.
package auth

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/crypto/pbkdf2"
)

const (
	// DefaultIterations is the PBKDF2 work factor for new hashes. Old
	// hashes carry their own count, so raising this never breaks logins.
	DefaultIterations = 240000

	passwordAlgorithm = "pbkdf2_sha256"
	saltSize          = 16
	keySize           = 32
)

var ErrInvalidHash = errors.New("malformed password hash")

// HashPassword derives an encoded hash in the form
// pbkdf2_sha256$iterations$salt$hash with hex salt and hash.
func HashPassword(password string) (string, error) {
	salt := make([]byte, saltSize)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}

	key := pbkdf2.Key([]byte(password), salt, DefaultIterations, keySize, sha256.New)
	return fmt.Sprintf("%s$%d$%s$%s",
		passwordAlgorithm,
		DefaultIterations,
		hex.EncodeToString(salt),
		hex.EncodeToString(key)), nil
}

// VerifyPassword reports whether password matches the encoded hash. A
// malformed hash is an error, a wrong password is just false.
func VerifyPassword(password, encoded string) (bool, error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 4 || parts[0] != passwordAlgorithm {
		return false, ErrInvalidHash
	}

	iterations, err := strconv.Atoi(parts[1])
	if err != nil || iterations < 1 {
		return false, ErrInvalidHash
	}

	salt, err := hex.DecodeString(parts[2])
	if err != nil {
		return false, ErrInvalidHash
	}

	want, err := hex.DecodeString(parts[3])
	if err != nil || len(want) == 0 {
		return false, ErrInvalidHash
	}

	got := pbkdf2.Key([]byte(password), salt, iterations, len(want), sha256.New)
	return hmac.Equal(got, want), nil
}
