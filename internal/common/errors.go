// Package common defines shared constants, sentinel errors and small helpers
// used by the gateway server and the admin tooling. Callers should match the
// errors with errors.Is.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound = errors.New("not found")
	ErrorConflict = errors.New("already exists")

	// Service-level errors.
	ErrorInternal         = errors.New("internal error")
	ErrorStoreUnavailable = errors.New("store unavailable")

	// Auth errors.
	ErrorInvalidCredentials = errors.New("invalid credentials")
	ErrorUnauthenticated    = errors.New("unauthenticated")

	// Balance errors.
	ErrorInsufficient = errors.New("insufficient points")

	// Request errors.
	ErrorBadRequest = errors.New("bad request")
)
