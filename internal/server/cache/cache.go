// Package cache holds the session fast path that fronts the credential store.
//
// Entries are mirrors of store rows and are never authoritative. Every entry
// honours its own expiry, which is the earlier of the session expiry and the
// configured max age. Writers that read the store first should take an Epoch
// before the read and pass it to Store; the write is dropped if any
// invalidation happened in between, so a stale view can never overwrite a
// fresher invalidation.
package cache

import (
	"context"
	"errors"

	"github.com/dmitrijs2005/authgate/internal/server/models"
)

// ErrMiss is returned by Load when no live entry exists.
var ErrMiss = errors.New("cache miss")

type Cache interface {
	Epoch(ctx context.Context) (uint64, error)
	Load(ctx context.Context, token string) (*models.SessionView, error)
	Store(ctx context.Context, view *models.SessionView, epoch uint64) error
	Delete(ctx context.Context, token string) error
	InvalidateUser(ctx context.Context, userID int64) error
}

// None disables caching.
type None struct{}

func (None) Epoch(context.Context) (uint64, error) { return 0, nil }
func (None) Load(context.Context, string) (*models.SessionView, error) {
	return nil, ErrMiss
}
func (None) Store(context.Context, *models.SessionView, uint64) error { return nil }
func (None) Delete(context.Context, string) error                     { return nil }
func (None) InvalidateUser(context.Context, int64) error              { return nil }
