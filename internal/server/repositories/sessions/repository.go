// Package sessions declares the server-side repository contract for session
// rows and its SQL implementation.
package sessions

import (
	"context"
	"time"

	"github.com/dmitrijs2005/authgate/internal/server/models"
)

// Repository defines operations for issuing, reading and revoking sessions.
type Repository interface {
	// Create stores a new session row.
	Create(ctx context.Context, s *models.Session) error

	// FindView returns the session joined with its owner. Expiry is not
	// checked here. A missing token yields common.ErrorNotFound.
	FindView(ctx context.Context, token string) (*models.SessionView, error)

	// Delete removes a session and reports whether a row existed.
	Delete(ctx context.Context, token string) (bool, error)

	// DeleteExpired removes every session with expires_at <= now.
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)

	// DeleteExpiredToken removes token only if it is expired at now.
	DeleteExpiredToken(ctx context.Context, token string, now time.Time) error
}
