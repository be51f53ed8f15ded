// Package services contains server-side business logic. CredentialStore owns
// users and sessions in the database; SessionManager layers expiry policy and
// the session cache on top of it.
package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/dmitrijs2005/authgate/internal/common"
	"github.com/dmitrijs2005/authgate/internal/dbx"
	"github.com/dmitrijs2005/authgate/internal/logging"
	"github.com/dmitrijs2005/authgate/internal/server/models"
	"github.com/dmitrijs2005/authgate/internal/server/password"
	"github.com/dmitrijs2005/authgate/internal/server/repositories/repomanager"
)

type CredentialStore struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	hasher      *password.Verifier
	timeout     time.Duration
	now         func() time.Time
	log         logging.Logger

	dummyOnce sync.Once
	dummyHash string
}

type StoreOption func(*CredentialStore)

// WithClock replaces time.Now for expiry decisions.
func WithClock(now func() time.Time) StoreOption {
	return func(s *CredentialStore) { s.now = now }
}

// WithStoreTimeout bounds every database call.
func WithStoreTimeout(d time.Duration) StoreOption {
	return func(s *CredentialStore) { s.timeout = d }
}

func WithStoreLogger(l logging.Logger) StoreOption {
	return func(s *CredentialStore) { s.log = l }
}

func NewCredentialStore(db *sql.DB, m repomanager.RepositoryManager, hasher *password.Verifier, opts ...StoreOption) *CredentialStore {
	s := &CredentialStore{
		db:          db,
		repomanager: m,
		hasher:      hasher,
		timeout:     2 * time.Second,
		now:         time.Now,
		log:         logging.Nop{},
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *CredentialStore) Now() time.Time { return s.now() }

// CreateUser hashes password and inserts a new user, returning its id.
func (s *CredentialStore) CreateUser(ctx context.Context, userName, account, pw, email string, points int64) (int64, error) {
	userName, account = strings.TrimSpace(userName), strings.TrimSpace(account)
	if userName == "" || account == "" || pw == "" || points < 0 {
		return 0, common.ErrorBadRequest
	}

	hash, err := s.hasher.Hash(pw)
	if err != nil {
		return 0, fmt.Errorf("hash password: %w", err)
	}

	ctx, cancel := dbx.WithTimeout(ctx, s.timeout)
	defer cancel()

	u, err := s.repomanager.Users(s.db).Create(ctx, &models.User{
		UserName:     userName,
		Account:      account,
		PasswordHash: hash,
		Email:        strings.TrimSpace(email),
		Points:       points,
		CreatedAt:    s.now(),
	})
	if err != nil {
		return 0, storeErr(err)
	}
	return u.ID, nil
}

// VerifyCredentials returns the user when password matches the stored hash.
// Unknown accounts and wrong passwords both yield ErrorInvalidCredentials.
// A matching legacy hash is replaced by a current one.
func (s *CredentialStore) VerifyCredentials(ctx context.Context, account, pw string) (*models.User, error) {
	ctx, cancel := dbx.WithTimeout(ctx, s.timeout)
	defer cancel()

	u, err := s.repomanager.Users(s.db).GetUserByAccount(ctx, account)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			// keep the miss as slow as a mismatch
			_, _ = s.hasher.Verify(pw, s.dummy())
			return nil, common.ErrorInvalidCredentials
		}
		return nil, storeErr(err)
	}

	needsUpgrade, err := s.hasher.Verify(pw, u.PasswordHash)
	if err != nil {
		if !errors.Is(err, password.ErrMismatch) {
			s.log.Warn(ctx, "unverifiable password hash", "account", account, "error", err)
		}
		return nil, common.ErrorInvalidCredentials
	}

	now := s.now()
	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repomanager.Users(tx)
		if needsUpgrade {
			hash, err := s.hasher.Hash(pw)
			if err != nil {
				return err
			}
			if err := repo.UpdatePasswordHash(ctx, u.ID, hash); err != nil {
				return err
			}
			u.PasswordHash = hash
		}
		return repo.TouchLastLogin(ctx, u.ID, now)
	})
	if err != nil {
		return nil, storeErr(err)
	}
	if needsUpgrade {
		s.log.Info(ctx, "password hash upgraded", "account", account)
	}

	u.LastLogin = now
	return u, nil
}

// AdjustPoints applies delta atomically. A rejected deduction returns
// *InsufficientError carrying the unchanged balance.
func (s *CredentialStore) AdjustPoints(ctx context.Context, userID, delta int64) (int64, error) {
	ctx, cancel := dbx.WithTimeout(ctx, s.timeout)
	defer cancel()

	balance, err := s.repomanager.Users(s.db).AdjustPoints(ctx, userID, delta)
	if err != nil {
		if errors.Is(err, common.ErrorInsufficient) {
			return balance, &InsufficientError{Balance: balance}
		}
		return 0, storeErr(err)
	}
	return balance, nil
}

func (s *CredentialStore) GetUser(ctx context.Context, userID int64) (*models.User, error) {
	ctx, cancel := dbx.WithTimeout(ctx, s.timeout)
	defer cancel()

	u, err := s.repomanager.Users(s.db).GetUserByID(ctx, userID)
	if err != nil {
		return nil, storeErr(err)
	}
	return u, nil
}

func (s *CredentialStore) ListUsers(ctx context.Context) ([]models.User, error) {
	ctx, cancel := dbx.WithTimeout(ctx, s.timeout)
	defer cancel()

	list, err := s.repomanager.Users(s.db).List(ctx)
	if err != nil {
		return nil, storeErr(err)
	}
	return list, nil
}

// UpdateProfile changes the display name and email and returns the fresh row.
func (s *CredentialStore) UpdateProfile(ctx context.Context, userID int64, userName, email string) (*models.User, error) {
	userName = strings.TrimSpace(userName)
	if userName == "" {
		return nil, common.ErrorBadRequest
	}

	ctx, cancel := dbx.WithTimeout(ctx, s.timeout)
	defer cancel()

	var u *models.User
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repomanager.Users(tx)
		if err := repo.UpdateProfile(ctx, userID, userName, strings.TrimSpace(email)); err != nil {
			return err
		}
		var err error
		u, err = repo.GetUserByID(ctx, userID)
		return err
	})
	if err != nil {
		return nil, storeErr(err)
	}
	return u, nil
}

// CreateSession issues a new token for userID valid for ttl.
func (s *CredentialStore) CreateSession(ctx context.Context, userID int64, ttl time.Duration) (*models.Session, error) {
	if ttl <= 0 {
		return nil, fmt.Errorf("session ttl must be positive, got %v", ttl)
	}

	token, err := common.NewSessionToken()
	if err != nil {
		return nil, fmt.Errorf("generate token: %w", err)
	}

	now := s.now()
	sess := &models.Session{Token: token, UserID: userID, CreatedAt: now, ExpiresAt: now.Add(ttl)}

	ctx, cancel := dbx.WithTimeout(ctx, s.timeout)
	defer cancel()

	if err := s.repomanager.Sessions(s.db).Create(ctx, sess); err != nil {
		return nil, storeErr(err)
	}
	return sess, nil
}

// ReadSession returns the live session joined with its owner. Unknown and
// expired tokens both yield ErrorNotFound; an expired row is deleted first.
func (s *CredentialStore) ReadSession(ctx context.Context, token string) (*models.SessionView, error) {
	if token == "" {
		return nil, common.ErrorNotFound
	}

	ctx, cancel := dbx.WithTimeout(ctx, s.timeout)
	defer cancel()

	repo := s.repomanager.Sessions(s.db)
	v, err := repo.FindView(ctx, token)
	if err != nil {
		return nil, storeErr(err)
	}
	if !common.TokensEqual(v.Token, token) {
		return nil, common.ErrorNotFound
	}

	now := s.now()
	if v.Expired(now) {
		if err := repo.DeleteExpiredToken(ctx, token, now); err != nil {
			s.log.Warn(ctx, "lazy session cleanup failed", "token", logging.TokenHint(token), "error", err)
		}
		return nil, common.ErrorNotFound
	}
	return v, nil
}

// DeleteSession is idempotent and reports whether a row was removed.
func (s *CredentialStore) DeleteSession(ctx context.Context, token string) (bool, error) {
	if token == "" {
		return false, nil
	}

	ctx, cancel := dbx.WithTimeout(ctx, s.timeout)
	defer cancel()

	removed, err := s.repomanager.Sessions(s.db).Delete(ctx, token)
	if err != nil {
		return false, storeErr(err)
	}
	return removed, nil
}

// SweepExpiredSessions deletes every expired session and returns the count.
func (s *CredentialStore) SweepExpiredSessions(ctx context.Context) (int64, error) {
	ctx, cancel := dbx.WithTimeout(ctx, s.timeout)
	defer cancel()

	n, err := s.repomanager.Sessions(s.db).DeleteExpired(ctx, s.now())
	if err != nil {
		return 0, storeErr(err)
	}
	return n, nil
}

// SeedAdmin describes the administrator created on first start.
type SeedAdmin struct {
	Account  string
	Password string
	UserName string
	Email    string
	Points   int64
}

// EnsureUser creates the seed user unless its account already exists.
func (s *CredentialStore) EnsureUser(ctx context.Context, seed SeedAdmin) (bool, error) {
	if seed.Account == "" || seed.Password == "" {
		return false, nil
	}

	lookupCtx, cancel := dbx.WithTimeout(ctx, s.timeout)
	_, err := s.repomanager.Users(s.db).GetUserByAccount(lookupCtx, seed.Account)
	cancel()
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, common.ErrorNotFound) {
		return false, storeErr(err)
	}

	userName := seed.UserName
	if userName == "" {
		userName = seed.Account
	}
	if _, err := s.CreateUser(ctx, userName, seed.Account, seed.Password, seed.Email, seed.Points); err != nil {
		if errors.Is(err, common.ErrorConflict) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (s *CredentialStore) dummy() string {
	s.dummyOnce.Do(func() {
		h, err := s.hasher.Hash("not-a-real-password")
		if err == nil {
			s.dummyHash = h
		}
	})
	return s.dummyHash
}
