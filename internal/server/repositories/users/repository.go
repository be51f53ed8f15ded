// Package users declares the user repository contract and its SQL
// implementation.
package users

import (
	"context"
	"time"

	"github.com/dmitrijs2005/authgate/internal/server/models"
)

type Repository interface {
	// Create inserts a user and fills in its ID. Uniqueness violations on
	// username or account yield common.ErrorConflict.
	Create(ctx context.Context, user *models.User) (*models.User, error)

	GetUserByAccount(ctx context.Context, account string) (*models.User, error)
	GetUserByID(ctx context.Context, id int64) (*models.User, error)
	List(ctx context.Context) ([]models.User, error)

	TouchLastLogin(ctx context.Context, id int64, at time.Time) error
	UpdatePasswordHash(ctx context.Context, id int64, hash string) error
	UpdateProfile(ctx context.Context, id int64, userName, email string) error

	// AdjustPoints applies delta in a single statement and returns the new
	// balance. When the balance would drop below zero it returns the current
	// balance together with common.ErrorInsufficient.
	AdjustPoints(ctx context.Context, id int64, delta int64) (int64, error)
}
