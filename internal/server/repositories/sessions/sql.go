package sessions

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/authgate/internal/common"
	"github.com/dmitrijs2005/authgate/internal/dbx"
	"github.com/dmitrijs2005/authgate/internal/server/models"
)

// SQLRepository implements Repository over dbx.DBTX (satisfied by *sql.DB or
// *sql.Tx). Timestamps are stored as unix milliseconds.
type SQLRepository struct {
	db      dbx.DBTX
	dialect dbx.Dialect
}

func NewSQLRepository(db dbx.DBTX, dialect dbx.Dialect) *SQLRepository {
	return &SQLRepository{db: db, dialect: dialect}
}

func (r *SQLRepository) Create(ctx context.Context, s *models.Session) error {
	query := r.dialect.Rebind(
		`INSERT INTO sessions (token, user_id, created_at, expires_at)
		 VALUES (?, ?, ?, ?)`)

	if _, err := r.db.ExecContext(ctx, query, s.Token, s.UserID, s.CreatedAt.UnixMilli(), s.ExpiresAt.UnixMilli()); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *SQLRepository) FindView(ctx context.Context, token string) (*models.SessionView, error) {
	query := r.dialect.Rebind(
		`SELECT s.token, s.user_id, s.expires_at, u.username, u.account, u.email, u.points
		 FROM sessions s
		 JOIN users u ON s.user_id = u.id
		 WHERE s.token = ?`)

	var (
		v         models.SessionView
		expiresAt int64
	)
	err := r.db.QueryRowContext(ctx, query, token).
		Scan(&v.Token, &v.UserID, &expiresAt, &v.UserName, &v.Account, &v.Email, &v.Points)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	v.ExpiresAt = time.UnixMilli(expiresAt)

	return &v, nil
}

func (r *SQLRepository) Delete(ctx context.Context, token string) (bool, error) {
	res, err := r.db.ExecContext(ctx, r.dialect.Rebind(`DELETE FROM sessions WHERE token = ?`), token)
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return n > 0, nil
}

func (r *SQLRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, r.dialect.Rebind(`DELETE FROM sessions WHERE expires_at <= ?`), now.UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return n, nil
}

func (r *SQLRepository) DeleteExpiredToken(ctx context.Context, token string, now time.Time) error {
	query := r.dialect.Rebind(`DELETE FROM sessions WHERE token = ? AND expires_at <= ?`)
	if _, err := r.db.ExecContext(ctx, query, token, now.UnixMilli()); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}
