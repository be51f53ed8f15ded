package users

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

// SQLRepository works on PostgreSQL and SQLite; queries are written with '?'
// placeholders and rebound for the dialect.
type SQLRepository struct {
	db      dbx.DBTX
	dialect dbx.Dialect
}

func NewSQLRepository(db dbx.DBTX, dialect dbx.Dialect) *SQLRepository {
	return &SQLRepository{db: db, dialect: dialect}
}

const userColumns = `id, username, account, password, email, points, created_at, last_login`

func (r *SQLRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {
	query := r.dialect.Rebind(
		`INSERT INTO users (username, account, password, email, points, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 RETURNING id`)

	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now()
	}

	err := r.db.QueryRowContext(ctx, query,
		user.UserName, user.Account, user.PasswordHash, user.Email, user.Points, user.CreatedAt.UnixMilli()).
		Scan(&user.ID)
	if err != nil {
		if dbx.IsUniqueViolation(err) {
			return nil, common.ErrorConflict
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return user, nil
}

func (r *SQLRepository) GetUserByAccount(ctx context.Context, account string) (*models.User, error) {
	query := r.dialect.Rebind(`SELECT ` + userColumns + ` FROM users WHERE account = ?`)
	return r.scanOne(r.db.QueryRowContext(ctx, query, account))
}

func (r *SQLRepository) GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	query := r.dialect.Rebind(`SELECT ` + userColumns + ` FROM users WHERE id = ?`)
	return r.scanOne(r.db.QueryRowContext(ctx, query, id))
}

func (r *SQLRepository) List(ctx context.Context) ([]models.User, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+userColumns+` FROM users ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var list []models.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		list = append(list, *u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return list, nil
}

func (r *SQLRepository) TouchLastLogin(ctx context.Context, id int64, at time.Time) error {
	query := r.dialect.Rebind(`UPDATE users SET last_login = ? WHERE id = ?`)
	return r.execOne(ctx, query, at.UnixMilli(), id)
}

func (r *SQLRepository) UpdatePasswordHash(ctx context.Context, id int64, hash string) error {
	query := r.dialect.Rebind(`UPDATE users SET password = ? WHERE id = ?`)
	return r.execOne(ctx, query, hash, id)
}

func (r *SQLRepository) UpdateProfile(ctx context.Context, id int64, userName, email string) error {
	query := r.dialect.Rebind(`UPDATE users SET username = ?, email = ? WHERE id = ?`)
	err := r.execOne(ctx, query, userName, email, id)
	if dbx.IsUniqueViolation(err) {
		return common.ErrorConflict
	}
	return err
}

func (r *SQLRepository) AdjustPoints(ctx context.Context, id int64, delta int64) (int64, error) {
	query := r.dialect.Rebind(
		`UPDATE users SET points = points + ?
		 WHERE id = ? AND points + ? >= 0
		 RETURNING points`)

	var balance int64
	err := r.db.QueryRowContext(ctx, query, delta, id, delta).Scan(&balance)
	if err == nil {
		return balance, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("db error: %w", err)
	}

	// Nothing updated: either the user is missing or the guard rejected it.
	err = r.db.QueryRowContext(ctx, r.dialect.Rebind(`SELECT points FROM users WHERE id = ?`), id).Scan(&balance)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, common.ErrorNotFound
		}
		return 0, fmt.Errorf("db error: %w", err)
	}
	return balance, common.ErrorInsufficient
}

func (r *SQLRepository) execOne(ctx context.Context, query string, args ...any) error {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		if dbx.IsUniqueViolation(err) {
			return err
		}
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return common.ErrorNotFound
	}
	return nil
}

func (r *SQLRepository) scanOne(row *sql.Row) (*models.User, error) {
	u, err := scanUser(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return u, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanUser(s scanner) (*models.User, error) {
	var (
		u                   models.User
		createdAt, lastSeen int64
	)
	if err := s.Scan(&u.ID, &u.UserName, &u.Account, &u.PasswordHash, &u.Email, &u.Points, &createdAt, &lastSeen); err != nil {
		return nil, err
	}
	u.CreatedAt = time.UnixMilli(createdAt)
	if lastSeen > 0 {
		u.LastLogin = time.UnixMilli(lastSeen)
	}
	return &u, nil
}
