// Package password hashes and verifies user passwords.
//
// New hashes are argon2id PHC strings:
//
//	$argon2id$v=19$m=MEMORY,t=TIME,p=THREADS$SALT$HASH
//
// Bare 64-character hex digests (unsalted SHA-256) are recognised as legacy
// hashes. They verify only when the Verifier is built with legacy acceptance
// and are reported as needing an upgrade.
package password

import (
	"errors"
	"strings"
)

var (
	ErrMismatch      = errors.New("password: mismatch")
	ErrUnknownFormat = errors.New("password: unknown hash format")
	ErrLegacyRefused = errors.New("password: legacy hash not accepted")
)

// Hasher produces and checks one hash format.
type Hasher interface {
	Hash(password string) (string, error)
	Verify(password, encoded string) error
}

// Verifier dispatches on the stored hash format.
type Verifier struct {
	current      *Argon2
	legacy       Legacy
	acceptLegacy bool
}

func NewVerifier(current *Argon2, acceptLegacy bool) *Verifier {
	return &Verifier{current: current, acceptLegacy: acceptLegacy}
}

// Hash always produces the current format.
func (v *Verifier) Hash(password string) (string, error) {
	return v.current.Hash(password)
}

// Verify checks password against encoded. needsUpgrade is true when the
// password matched a hash that is not in the current format.
func (v *Verifier) Verify(password, encoded string) (needsUpgrade bool, err error) {
	switch {
	case strings.HasPrefix(encoded, "$"+algorithmID+"$"):
		return false, v.current.Verify(password, encoded)
	case IsLegacy(encoded):
		if !v.acceptLegacy {
			return false, ErrLegacyRefused
		}
		if err := v.legacy.Verify(password, encoded); err != nil {
			return false, err
		}
		return true, nil
	default:
		return false, ErrUnknownFormat
	}
}
