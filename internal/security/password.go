package security

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/argon2"
)

const (
	saltLength   = 64
	saltAlphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
)

type Argon2Params struct {
	Time    uint32
	Memory  uint32
	Threads uint8
	KeyLen  uint32
}

var defaultParams = Argon2Params{
	Time:    3,
	Memory:  64 * 1024,
	Threads: 2,
	KeyLen:  32,
}

// GenerateSalt returns a random alphanumeric salt. Each user gets a fresh one on
// creation and on every password change.
func GenerateSalt() (string, error) {
	// Bytes >= 248 are rejected so every alphabet index is equally likely.
	const limit = 256 - 256%len(saltAlphabet)

	out := make([]byte, 0, saltLength)
	buf := make([]byte, saltLength)
	for len(out) < saltLength {
		if _, err := rand.Read(buf); err != nil {
			return "", fmt.Errorf("generate salt: %w", err)
		}
		for _, b := range buf {
			if int(b) >= limit {
				continue
			}
			out = append(out, saltAlphabet[int(b)%len(saltAlphabet)])
			if len(out) == saltLength {
				break
			}
		}
	}
	return string(out), nil
}

func HashPassword(password string, salt string) string {
	return HashPasswordWithParams(password, salt, defaultParams)
}

func HashPasswordWithParams(password string, salt string, params Argon2Params) string {
	hash := argon2.IDKey([]byte(password), []byte(salt), params.Time, params.Memory, params.Threads, params.KeyLen)
	return hex.EncodeToString(hash)
}

func VerifyPassword(password string, passwordHash string, salt string) bool {
	computed := HashPassword(password, salt)
	return subtle.ConstantTimeCompare([]byte(passwordHash), []byte(computed)) == 1
}
