package password

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"strings"
)

// Legacy is the unsalted SHA-256 hex format written by older deployments.
type Legacy struct{}

func (Legacy) Hash(password string) (string, error) {
	sum := sha256.Sum256([]byte(password))
	return hex.EncodeToString(sum[:]), nil
}

func (Legacy) Verify(password, encoded string) error {
	sum := sha256.Sum256([]byte(password))
	want := strings.ToLower(encoded)
	if subtle.ConstantTimeCompare([]byte(hex.EncodeToString(sum[:])), []byte(want)) != 1 {
		return ErrMismatch
	}
	return nil
}

// IsLegacy reports whether encoded looks like a bare SHA-256 hex digest.
func IsLegacy(encoded string) bool {
	if len(encoded) != sha256.Size*2 {
		return false
	}
	_, err := hex.DecodeString(encoded)
	return err == nil
}
