package common

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
)

// MakeRandHexString generates size random bytes and returns them hex-encoded,
// so the resulting string is 2*size characters long.
func MakeRandHexString(size int) (string, error) {
	b := make([]byte, size)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// NewSessionToken returns a fresh unguessable session token.
func NewSessionToken() (string, error) {
	return MakeRandHexString(SessionTokenBytes)
}

// TokensEqual compares two tokens in constant time.
func TokensEqual(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// WipeByteArray overwrites b with zeros. Used for passwords read from the
// terminal once they have been copied where they are needed.
func WipeByteArray(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
